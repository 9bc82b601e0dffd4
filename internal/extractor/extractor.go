// Package extractor picks the tracks of an album that belong to the requested work or movements.
package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
)

const (
	DefaultTrackLimit     = 50
	DefaultFallbackTracks = 4
)

var number = regexp.MustCompile(`\d+`)

// Extractor maps a work and its movements onto an album's track listing.
type Extractor struct {
	tracks   services.TrackLister
	llm      services.Completer
	fallback int
	limit    int
	logger   *log.Logger
}

// New creates an Extractor. fallback is the number of leading tracks used when no movements are
// requested and the model reply is unusable; limit caps the fetched track listing.
func New(tracks services.TrackLister, llm services.Completer, fallback, limit int, logger *log.Logger) *Extractor {
	if fallback <= 0 {
		fallback = DefaultFallbackTracks
	}
	if limit <= 0 {
		limit = DefaultTrackLimit
	}
	return &Extractor{
		tracks:   tracks,
		llm:      llm,
		fallback: fallback,
		limit:    limit,
		logger:   shared.ComponentLogger(logger, "extractor"),
	}
}

// Extract selects the tracks of albumID matching work and movements.
//
// Only a failure to list the album's tracks is returned. An unusable or failed model reply
// selects the first K tracks instead and sets Fallback.
func (e *Extractor) Extract(ctx context.Context, accessToken, albumID, work string, movements []string) (models.TrackSelection, error) {
	sel := models.TrackSelection{AlbumID: albumID}

	tracks, err := e.tracks.AlbumTracks(ctx, accessToken, albumID, e.limit)
	if err != nil {
		return sel, fmt.Errorf("list tracks for album %s: %w", albumID, err)
	}
	if len(tracks) == 0 {
		return sel, nil
	}

	reply, err := e.llm.Complete(ctx, extractSystemPrompt, trackPrompt(tracks, work, movements), 0)
	if err != nil {
		e.logger.Error("track selection request failed", "album", albumID, "error", err)
		reply = ""
	}

	picked := SelectTracks(reply, tracks)
	if len(picked) == 0 {
		k := len(movements)
		if k == 0 {
			k = e.fallback
		}
		picked = tracks[:min(k, len(tracks))]
		sel.Fallback = true
		e.logger.Warn("track selection fell back to leading tracks", "album", albumID, "count", len(picked))
	}

	sel.TrackIDs = NormalizeTrackIDs(trackRefs(picked))
	return sel, nil
}

// AllTracks selects every track of albumID.
func (e *Extractor) AllTracks(ctx context.Context, accessToken, albumID string) (models.TrackSelection, error) {
	tracks, err := e.tracks.AlbumTracks(ctx, accessToken, albumID, e.limit)
	if err != nil {
		return models.TrackSelection{AlbumID: albumID}, fmt.Errorf("list tracks for album %s: %w", albumID, err)
	}
	return models.TrackSelection{AlbumID: albumID, TrackIDs: NormalizeTrackIDs(trackRefs(tracks)), Fallback: true}, nil
}

// SelectTracks maps every integer in reply that is a valid 1-based index into tracks, in reply order.
func SelectTracks(reply string, tracks []services.SpotifyTrack) []services.SpotifyTrack {
	var out []services.SpotifyTrack
	for _, m := range number.FindAllString(reply, -1) {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > len(tracks) {
			continue
		}
		out = append(out, tracks[n-1])
	}
	return out
}

func trackRefs(tracks []services.SpotifyTrack) []string {
	refs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.URI != "" {
			refs = append(refs, t.URI)
		} else {
			refs = append(refs, t.ID)
		}
	}
	return refs
}

func trackPrompt(tracks []services.SpotifyTrack, work string, movements []string) string {
	var b strings.Builder
	b.WriteString("Tracks on the album:\n")
	for i, t := range tracks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Name)
	}
	fmt.Fprintf(&b, "\nThe user wants to extract tracks for: %q\n", work)
	if len(movements) > 0 {
		b.WriteString("\nSpecifically looking for these movements:\n")
		for i, m := range movements {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m)
		}
	}
	return b.String()
}
