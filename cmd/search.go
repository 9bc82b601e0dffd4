package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/conductr/internal/formatter"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/urfave/cli/v3"
)

func queryArg(cmd *cli.Command) (string, error) {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return "", fmt.Errorf("%w: a query is required, e.g. \"mahler 5\"", shared.ErrMissingArgument)
	}
	return query, nil
}

// Resolve prints the canonical piece for a free-text request.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	query, err := queryArg(cmd)
	if err != nil {
		return err
	}

	res, err := r.resolver()
	if err != nil {
		return err
	}

	piece, err := res.Resolve(ctx, query, cmd.String("context"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(piece, true)
	}

	r.writePlain("Composer:  %s\n", piece.Composer)
	r.writePlain("Work:      %s\n", piece.Work)
	if piece.Movement != "" {
		r.writePlain("Movement:  %s\n", piece.Movement)
	}
	if piece.MovementNumber > 0 {
		r.writePlain("Number:    %d\n", piece.MovementNumber)
	}
	if piece.CatalogNumber != "" {
		r.writePlain("Catalog:   %s\n", piece.CatalogNumber)
	}
	r.writePlain("Query:     %s\n", ranking.BuildQuery(piece))
	return nil
}

// resolveAndRank runs the first two pipeline stages for query.
func (r *Runner) resolveAndRank(ctx context.Context, query, priorContext string) (models.CanonicalPiece, *ranking.Result, error) {
	res, err := r.resolver()
	if err != nil {
		return models.CanonicalPiece{}, nil, err
	}
	ranker, err := r.ranker()
	if err != nil {
		return models.CanonicalPiece{}, nil, err
	}

	piece, err := res.Resolve(ctx, query, priorContext)
	if err != nil {
		return models.CanonicalPiece{}, nil, err
	}

	r.logger.Info("searching recordings", "query", ranking.BuildQuery(piece))
	result, err := ranker.Rank(ctx, piece)
	if err != nil {
		return piece, nil, err
	}
	return piece, result, nil
}

// Search resolves a request and prints the ranked candidates.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query, err := queryArg(cmd)
	if err != nil {
		return err
	}

	name := strings.ToLower(strings.TrimSpace(cmd.String("format")))
	var format formatter.Format
	if name != "json" {
		if format, err = formatter.ParseFormat(name); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
	}

	piece, result, err := r.resolveAndRank(ctx, query, cmd.String("context"))
	if err != nil {
		return err
	}

	r.logger.Info("ranking complete",
		"candidates", len(result.Candidates),
		"cache_hits", result.CacheHits,
		"classified", result.Classified,
		"degraded", result.Degraded,
	)

	if name == "json" {
		return r.writeJSON(result, true)
	}

	if out := cmd.String("output"); out != "" {
		if info, err := os.Stat(out); err == nil && info.IsDir() {
			out = filepath.Join(out, formatter.Filename(piece, format))
		}
		path, err := formatter.WriteExport(format, piece, result.Candidates, out)
		if err != nil {
			return err
		}
		r.writePlain("✓ Wrote %d recordings to %s\n", len(result.Candidates), path)
		return nil
	}

	data, err := formatter.Render(format, piece, result.Candidates)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Extract prints the tracks of one album that make up a work, using the application token.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	albumID := strings.TrimSpace(cmd.Args().First())
	if albumID == "" {
		return fmt.Errorf("%w: an album ID is required", shared.ErrMissingArgument)
	}

	ex, err := r.extractor()
	if err != nil {
		return err
	}

	var sel models.TrackSelection
	if cmd.Bool("all") {
		sel, err = ex.AllTracks(ctx, "", albumID)
	} else {
		sel, err = ex.Extract(ctx, "", albumID, cmd.String("work"), cmd.StringSlice("movement"))
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sel, true)
	}

	note := ""
	if sel.Fallback {
		note = " (fallback)"
	}
	r.writePlain("Album %s: %d tracks%s\n", sel.AlbumID, len(sel.TrackIDs), note)
	for i, id := range sel.TrackIDs {
		r.writePlain("%3d. %s\n", i+1, id)
	}
	return nil
}
