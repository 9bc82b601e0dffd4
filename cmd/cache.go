package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/conductr/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) requireCache() error {
	if r.cache == nil {
		return fmt.Errorf("%w: classification cache not initialized (run 'conductr setup database')", shared.ErrServiceUnavailable)
	}
	return nil
}

// CacheList prints cached classifications, newest first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCache(); err != nil {
		return err
	}

	entries, err := r.cache.List(ctx, cmd.String("key"), cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list classifications: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	total, err := r.cache.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count classifications: %w", err)
	}

	r.writePlain("Showing %d of %d cached classifications:\n\n", len(entries), total)
	now := time.Now()
	for _, e := range entries {
		mark := " "
		if e.IsComplete {
			mark = "✓"
		}
		expired := ""
		if e.IsExpired(now) {
			expired = " (expired)"
		}
		r.writePlain("%s %s  %s%s\n", mark, e.AlbumID, e.CanonicalKey, expired)
		if e.Conductor != "" || e.Orchestra != "" {
			r.writePlain("    %s / %s\n", e.Conductor, e.Orchestra)
		}
	}
	return nil
}

// CachePrune deletes expired classifications.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCache(); err != nil {
		return err
	}

	n, err := r.cache.Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune classifications: %w", err)
	}
	r.logger.Info("pruned classification cache", "removed", n)
	r.writePlain("✓ Removed %d expired classifications\n", n)
	return nil
}

// CacheClear deletes every classification.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCache(); err != nil {
		return err
	}

	n, err := r.cache.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear classifications: %w", err)
	}
	r.logger.Info("cleared classification cache", "removed", n)
	r.writePlain("✓ Removed %d classifications\n", n)
	return nil
}
