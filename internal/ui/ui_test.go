package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/tasks"
)

var piece = models.CanonicalPiece{Composer: "Gustav Mahler", Work: "Symphony No. 5", RawInput: "mahler 5"}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newRankedModel(t *testing.T, pipeline Pipeline) *Model {
	t.Helper()
	m := NewModel(t.Context(), piece, pipeline)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(rankedMsg(&ranking.Result{Candidates: []models.AlbumCandidate{
		{ID: "abbado", Title: "Abbado", Artists: []string{"Berliner Philharmoniker"}, IsComplete: true},
		{ID: "bernstein", Title: "Bernstein", Artists: []string{"Wiener Philharmoniker"}, IsComplete: true},
		{ID: "adagios", Title: "Adagios", Artists: []string{"Various Artists"}},
	}}, nil))
	if m.view != PickView {
		t.Fatalf("expected PickView, got %d", m.view)
	}
	return m
}

func TestModel(t *testing.T) {
	t.Run("Rank Failure Quits", func(t *testing.T) {
		m := NewModel(t.Context(), piece, Pipeline{})
		_, cmd := m.Update(rankedMsg(nil, errors.New("upstream catalog unavailable")))
		if cmd == nil {
			t.Fatal("expected a quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if m.Err() == nil {
			t.Error("expected the error to be kept")
		}
	})

	t.Run("Select And Reorder", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})

		m.Update(runes("x"))
		m.Update(runes("j"))
		m.Update(runes("x"))
		m.Update(runes("K"))

		got := m.Selection()
		if len(got) != 2 {
			t.Fatalf("expected 2 selected, got %d", len(got))
		}
		if got[0].ID != "bernstein" || got[1].ID != "abbado" {
			t.Errorf("expected bernstein before abbado, got %s, %s", got[0].ID, got[1].ID)
		}
	})

	t.Run("Toggle Off", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})
		m.Update(runes("x"))
		m.Update(runes("x"))
		if len(m.Selection()) != 0 {
			t.Errorf("expected nothing selected, got %d", len(m.Selection()))
		}
	})

	t.Run("Enter Requires Selection", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != PickView {
			t.Errorf("expected to stay in PickView, got %d", m.view)
		}
	})

	t.Run("Full Flow", func(t *testing.T) {
		var handedOff []models.AlbumCandidate
		m := newRankedModel(t, Pipeline{
			Handoff: func(ctx context.Context, albums []models.AlbumCandidate) (string, error) {
				handedOff = albums
				return "https://accounts.spotify.com/authorize?state=h", nil
			},
			Wait: func(ctx context.Context) (*tasks.AssemblyJob, error) {
				return &tasks.AssemblyJob{PlaylistURL: "https://open.spotify.com/playlist/pl1", TrackIDs: []string{"a"}}, nil
			},
		})

		m.Update(runes("x"))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != ConfirmView {
			t.Fatalf("expected ConfirmView, got %d", m.view)
		}
		if !strings.Contains(m.View(), "from 1 recordings") {
			t.Errorf("unexpected confirm view:\n%s", m.View())
		}

		_, cmd := m.Update(runes("y"))
		if cmd == nil {
			t.Fatal("expected a handoff command")
		}
		m.Update(cmd())
		if m.view != WaitingView {
			t.Fatalf("expected WaitingView, got %d", m.view)
		}
		if len(handedOff) != 1 || handedOff[0].ID != "abbado" {
			t.Errorf("unexpected handoff %v", handedOff)
		}
		if !strings.Contains(m.View(), "state=h") {
			t.Error("expected the consent URL in the waiting view")
		}

		m.Update(m.wait()())
		if m.view != ResultView {
			t.Fatalf("expected ResultView, got %d", m.view)
		}
		if m.Job() == nil || !strings.Contains(m.View(), "https://open.spotify.com/playlist/pl1") {
			t.Errorf("expected the playlist URL in the result view:\n%s", m.View())
		}
	})

	t.Run("Confirm Back", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})
		m.Update(runes("x"))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(runes("n"))
		if m.view != PickView {
			t.Errorf("expected PickView, got %d", m.view)
		}
	})

	t.Run("Failed Assembly And Restart", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})
		m.Update(assembledMsg(nil, errors.New("assembly step failed: Appending: status 502")))
		if m.view != ResultView || !strings.Contains(m.View(), "Appending") {
			t.Fatalf("expected the failed step in the result view:\n%s", m.View())
		}

		m.Update(runes("r"))
		if m.view != PickView || m.Err() != nil {
			t.Errorf("expected a clean PickView after restart, got %d / %v", m.view, m.Err())
		}
	})

	t.Run("Failed Assembly Step Log", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})
		job := &tasks.AssemblyJob{
			State: tasks.Failed,
			Steps: []tasks.StepResult{
				{Phase: tasks.TokenExchange, Message: "authorized"},
				{Phase: tasks.Appending, Error: "status 502"},
			},
		}
		m.Update(assembledMsg(job, errors.New("assembly step failed")))

		view := m.View()
		if !strings.Contains(view, "• TokenExchange: authorized") || !strings.Contains(view, "✗ Appending: status 502") {
			t.Errorf("expected the step log in the result view:\n%s", view)
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newRankedModel(t, Pipeline{})
		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected a quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}
