package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/conductr/internal/extractor"
	"github.com/desertthunder/conductr/internal/handoff"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/tasks"
	tu "github.com/desertthunder/conductr/internal/testing"
)

var mahler5 = models.CanonicalPiece{
	Composer: "Gustav Mahler",
	Work:     "Symphony No. 5 in C-sharp minor",
	RawInput: "mahler 5",
}

type fakeResolver struct {
	piece models.CanonicalPiece
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, raw, priorContext string) (models.CanonicalPiece, error) {
	return f.piece, f.err
}

type fakeRanker struct {
	result *ranking.Result
	err    error
}

func (f *fakeRanker) Rank(ctx context.Context, piece models.CanonicalPiece) (*ranking.Result, error) {
	return f.result, f.err
}

type testEnv struct {
	router  *BasicRouter
	store   *handoff.Store
	user    *tu.MockSpotifyUser
	catalog *tu.MockCatalog
	cb      *CallbackHandler
}

func newTestEnv(t *testing.T, resolver Resolver, ranker Ranker) *testEnv {
	t.Helper()
	kv := handoff.NewMemoryKV(0)
	store := handoff.NewStore(kv, time.Minute, nil)
	t.Cleanup(func() { _ = store.Close() })

	catalog := &tu.MockCatalog{Tracks: map[string][]services.SpotifyTrack{"abbado": tu.Tracks("abbado", 6)}}
	user := &tu.MockSpotifyUser{}
	orch := tasks.NewOrchestrator(user, user, extractor.New(catalog, tu.StaticCompleter("unsure"), 4, 50, nil), 0, nil)

	api := NewAPIHandler(resolver, ranker, store, user, nil)
	cb := NewCallbackHandler(store, orch, nil)
	return &testEnv{router: NewRouter(api, cb, nil), store: store, user: user, catalog: catalog, cb: cb}
}

func (e *testEnv) do(method, target string, body any, accept string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: empty", shared.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: which one?", shared.ErrInputAmbiguous), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: 503", shared.ErrUpstreamUnavailable), http.StatusBadGateway},
		{shared.ErrSessionExpired, http.StatusGone},
		{shared.StepFailed("Appending", errors.New("boom")), http.StatusBadGateway},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAPIHandler(t *testing.T) {
	t.Run("Canonicalize", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{piece: mahler5}, &fakeRanker{})
		rec := env.do(http.MethodPost, "/api/canonicalize", CanonicalizeRequest{Input: "mahler 5"}, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got models.CanonicalPiece
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Composer != mahler5.Composer {
			t.Errorf("unexpected composer %q", got.Composer)
		}
	})

	t.Run("Canonicalize Ambiguous", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{err: fmt.Errorf("%w: which Bach?", shared.ErrInputAmbiguous)}, &fakeRanker{})
		rec := env.do(http.MethodPost, "/api/canonicalize", CanonicalizeRequest{Input: "bach"}, "")

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "which Bach?") {
			t.Errorf("expected the model text in the body, got %s", rec.Body.String())
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		req := httptest.NewRequest(http.MethodPost, "/api/canonicalize", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		rec := env.do(http.MethodGet, "/api/search", nil, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Search", func(t *testing.T) {
		result := &ranking.Result{Candidates: []models.AlbumCandidate{{ID: "abbado", IsComplete: true}, {ID: "other"}}}
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{result: result})
		rec := env.do(http.MethodPost, "/api/search", mahler5, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got ranking.Result
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Candidates) != 2 || got.Candidates[0].ID != "abbado" {
			t.Errorf("unexpected candidates %+v", got.Candidates)
		}
	})

	t.Run("Search Upstream Unavailable", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{err: fmt.Errorf("%w: 503", shared.ErrUpstreamUnavailable)})
		rec := env.do(http.MethodPost, "/api/search", mahler5, "")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Handoff", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		payload := models.HandoffPayload{Piece: mahler5, Albums: []models.AlbumCandidate{{ID: "abbado"}}}
		rec := env.do(http.MethodPost, "/api/handoff", payload, "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var got HandoffResponse
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Handle == "" || !strings.Contains(got.AuthURL, "state="+got.Handle) {
			t.Errorf("expected the handle as state, got %+v", got)
		}
		if _, err := env.store.Get(t.Context(), got.Handle); err != nil {
			t.Errorf("expected the payload to be stored: %v", err)
		}
	})

	t.Run("Handoff Without Albums", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		rec := env.do(http.MethodPost, "/api/handoff", models.HandoffPayload{Piece: mahler5}, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

// cancellingLister cancels the request context the first time a track listing is fetched.
type cancellingLister struct {
	services.TrackLister
	cancel context.CancelFunc
}

func (l *cancellingLister) AlbumTracks(ctx context.Context, accessToken, albumID string, limit int) ([]services.SpotifyTrack, error) {
	l.cancel()
	return l.TrackLister.AlbumTracks(ctx, accessToken, albumID, limit)
}

func TestCallbackHandler(t *testing.T) {
	put := func(t *testing.T, env *testEnv) string {
		t.Helper()
		handle, err := env.store.Put(t.Context(), models.HandoffPayload{
			Piece:  mahler5,
			Albums: []models.AlbumCandidate{{ID: "abbado", Title: "Mahler 5 / Abbado"}},
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		return handle
	}

	t.Run("Assembles Playlist", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		handle := put(t, env)

		rec := env.do(http.MethodGet, "/callback?code=abc&state="+handle, nil, "application/json")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var job tasks.AssemblyJob
		if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if job.PlaylistURL != "https://open.spotify.com/playlist/pl1" {
			t.Errorf("unexpected playlist URL %q", job.PlaylistURL)
		}
		if len(job.TrackIDs) != 4 {
			t.Errorf("expected 4 fallback tracks, got %d", len(job.TrackIDs))
		}

		select {
		case res := <-env.cb.Results():
			if res.Err != nil || res.Job == nil {
				t.Errorf("unexpected callback result %+v", res)
			}
		default:
			t.Error("expected a callback result")
		}
	})

	t.Run("Client Disconnect Completes Assembly", func(t *testing.T) {
		store := handoff.NewStore(handoff.NewMemoryKV(0), time.Minute, nil)
		t.Cleanup(func() { _ = store.Close() })

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		catalog := &tu.MockCatalog{Tracks: map[string][]services.SpotifyTrack{
			"abbado":    tu.Tracks("abbado", 6),
			"bernstein": tu.Tracks("bernstein", 6),
		}}
		user := &tu.MockSpotifyUser{}
		lister := &cancellingLister{TrackLister: catalog, cancel: cancel}
		orch := tasks.NewOrchestrator(user, user, extractor.New(lister, tu.StaticCompleter("unsure"), 4, 50, nil), 3, nil)
		cb := NewCallbackHandler(store, orch, nil)

		handle, err := store.Put(t.Context(), models.HandoffPayload{
			Piece: mahler5,
			Albums: []models.AlbumCandidate{
				{ID: "abbado", Title: "Mahler 5 / Abbado"},
				{ID: "bernstein", Title: "Mahler 5 / Bernstein"},
			},
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state="+handle, nil).WithContext(ctx)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		cb.ServeHTTP(rec, req)

		if ctx.Err() == nil {
			t.Fatal("expected the request context to be cancelled during assembly")
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := fmt.Sprint(user.BatchSizes()); got != "[3 3 2]" {
			t.Errorf("expected every batch appended, got %s", got)
		}
	})

	t.Run("HTML Page", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		handle := put(t, env)

		rec := env.do(http.MethodGet, "/callback?code=abc&state="+handle, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "https://open.spotify.com/playlist/pl1") {
			t.Error("expected the playlist link in the page")
		}
	})

	t.Run("Handle Is Single Use", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		handle := put(t, env)

		first := env.do(http.MethodGet, "/callback?code=abc&state="+handle, nil, "application/json")
		if first.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", first.Code)
		}
		second := env.do(http.MethodGet, "/callback?code=abc&state="+handle, nil, "application/json")
		if second.Code != http.StatusGone {
			t.Errorf("expected 410 on reuse, got %d", second.Code)
		}
		if !strings.Contains(second.Body.String(), "session expired, please restart") {
			t.Errorf("unexpected body %s", second.Body.String())
		}
		if len(env.user.Created) != 1 {
			t.Errorf("expected one playlist, got %d", len(env.user.Created))
		}
	})

	t.Run("Unknown Handle", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		rec := env.do(http.MethodGet, "/callback?code=abc&state=not-a-handle", nil, "")
		if rec.Code != http.StatusGone {
			t.Errorf("expected 410, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "session expired") {
			t.Error("expected the expiry message in the page")
		}
	})

	t.Run("Denied Consent", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		handle := put(t, env)

		rec := env.do(http.MethodGet, "/callback?error=access_denied&state="+handle, nil, "application/json")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		if _, err := env.store.Get(t.Context(), handle); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected the handoff to be discarded, got %v", err)
		}
	})

	t.Run("Append Failure Reports Step", func(t *testing.T) {
		env := newTestEnv(t, &fakeResolver{}, &fakeRanker{})
		env.user.AddErrOn = 1
		handle := put(t, env)

		rec := env.do(http.MethodGet, "/callback?code=abc&state="+handle, nil, "application/json")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		var body errorBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Step != "Appending" {
			t.Errorf("expected step Appending, got %q", body.Step)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recoverer(shared.ComponentLogger(nil, "test")))
		router.HandleFunc(http.MethodGet, "/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}
