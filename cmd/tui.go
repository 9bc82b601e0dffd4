package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/conductr/internal/formatter"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/tasks"
	"github.com/desertthunder/conductr/internal/ui"
)

// playlistTUI resolves the request, then hands ranking, picking and the authorization wait to the picker.
func (r *Runner) playlistTUI(ctx context.Context, query, priorContext string) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger("./tmp/conductr-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(fileLogger)

	res, err := r.resolver()
	if err != nil {
		return err
	}
	ranker, err := r.ranker()
	if err != nil {
		return err
	}
	orch, err := r.orchestrator()
	if err != nil {
		return err
	}

	r.writePlain("→ Resolving %q...\n", query)
	piece, err := res.Resolve(ctx, query, priorContext)
	if err != nil {
		return err
	}

	session := r.newAuthSession(orch)
	defer session.close()

	model := ui.NewModel(ctx, piece, ui.Pipeline{
		Rank: func(ctx context.Context) (*ranking.Result, error) {
			return ranker.Rank(ctx, piece)
		},
		Handoff: func(ctx context.Context, albums []models.AlbumCandidate) (string, error) {
			return session.begin(ctx, piece, albums)
		},
		Wait: func(ctx context.Context) (*tasks.AssemblyJob, error) {
			return session.wait(ctx)
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	if job := model.Job(); job != nil {
		if _, err := r.output.Write(formatter.JobToText(job)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
