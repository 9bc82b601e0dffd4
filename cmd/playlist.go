package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/conductr/internal/formatter"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/server"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// authSession runs the local callback server for one playlist command.
//
// The server starts on the first handoff and stays up until close, so a restarted
// selection reuses it.
type authSession struct {
	r        *Runner
	callback *server.CallbackHandler
	srv      *http.Server
	errs     chan error
	mu       sync.Mutex
}

func (r *Runner) newAuthSession(orch *tasks.Orchestrator) *authSession {
	return &authSession{
		r:        r,
		callback: server.NewCallbackHandler(r.handoff, orch, r.logger),
		errs:     make(chan error, 1),
	}
}

func (s *authSession) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	addr := s.r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           server.NewRouter(nil, s.callback, s.r.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv = srv
	go func() {
		s.r.logger.Infof("starting callback server at %v", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()
	return nil
}

// begin parks the selection and opens the consent page. It returns the consent URL.
func (s *authSession) begin(ctx context.Context, piece models.CanonicalPiece, albums []models.AlbumCandidate) (string, error) {
	if err := s.listen(); err != nil {
		return "", err
	}

	handle, err := s.r.handoff.Put(ctx, models.HandoffPayload{Piece: piece, Albums: albums})
	if err != nil {
		return "", err
	}

	authURL := s.r.account.AuthURL(handle)
	if err := s.r.openBrowser(authURL); err != nil {
		s.r.logger.Warnf("failed to open browser automatically %v", err)
	}
	return authURL, nil
}

// wait blocks until the callback has assembled a playlist or the session times out.
func (s *authSession) wait(ctx context.Context) (*tasks.AssemblyJob, error) {
	timeout := time.NewTimer(s.r.authTimeout)
	defer timeout.Stop()

	select {
	case result := <-s.callback.Results():
		return result.Job, result.Err
	case err := <-s.errs:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, s.r.authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *authSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.r.logger.Warn("error shutting down server", "error", err)
	}
	s.srv = nil
}

// Playlist runs the whole pipeline. Without --album or --top the candidates are picked interactively.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	query, err := queryArg(cmd)
	if err != nil {
		return err
	}

	ids := cmd.StringSlice("album")
	top := cmd.Int("top")
	if len(ids) == 0 && top <= 0 {
		return r.playlistTUI(ctx, query, cmd.String("context"))
	}

	orch, err := r.orchestrator()
	if err != nil {
		return err
	}

	piece, result, err := r.resolveAndRank(ctx, query, cmd.String("context"))
	if err != nil {
		return err
	}

	albums, err := pickAlbums(result.Candidates, ids, top)
	if err != nil {
		return err
	}

	session := r.newAuthSession(orch)
	defer session.close()

	authURL, err := session.begin(ctx, piece, albums)
	if err != nil {
		return err
	}

	r.writePlain("→ Building %q from %d recordings\n", piece.PlaylistName(), len(albums))
	r.writePlain("→ If the browser did not open, visit:\n%s\n\n", authURL)
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", r.authTimeout)

	job, err := session.wait(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}

	r.writePlainHeader("Playlist assembled")
	if _, err := r.output.Write(formatter.JobToText(job)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// pickAlbums selects candidates by id, keeping the order given, or takes the top n ranked.
func pickAlbums(candidates []models.AlbumCandidate, ids []string, top int) ([]models.AlbumCandidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no recordings found", shared.ErrInvalidInput)
	}

	if len(ids) == 0 {
		if top > len(candidates) {
			top = len(candidates)
		}
		return append([]models.AlbumCandidate(nil), candidates[:top]...), nil
	}

	byID := make(map[string]models.AlbumCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	picked := make([]models.AlbumCandidate, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not among the ranked recordings", shared.ErrAlbumNotFound, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		picked = append(picked, c)
	}
	return picked, nil
}
