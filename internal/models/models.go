package models

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalPiece describes the requested musical work.
//
// It is built once per search session and treated as immutable afterwards.
// Both the catalog query and the classification cache namespace derive from it.
type CanonicalPiece struct {
	Composer       string `json:"composer"`
	Work           string `json:"work"`
	Movement       string `json:"movement,omitempty"`
	MovementNumber int    `json:"movementNumber,omitempty"`
	CatalogNumber  string `json:"catalogNumber,omitempty"`
	RawInput       string `json:"rawInput"`
}

// Fields returns the non-empty canonical fields in query order: composer, work, movement, catalog number.
func (p CanonicalPiece) Fields() []string {
	var fields []string
	for _, f := range []string{p.Composer, p.Work, p.Movement, p.CatalogNumber} {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Movements returns the requested movement titles; empty means the whole work.
func (p CanonicalPiece) Movements() []string {
	if m := strings.TrimSpace(p.Movement); m != "" {
		return []string{m}
	}
	return nil
}

// PlaylistName derives the default playlist title.
func (p CanonicalPiece) PlaylistName() string {
	name := fmt.Sprintf("%s: %s", strings.TrimSpace(p.Composer), strings.TrimSpace(p.Work))
	if m := strings.TrimSpace(p.Movement); m != "" {
		name += " - " + m
	}
	return name
}

// Validate checks the fields every downstream stage depends on.
func (p CanonicalPiece) Validate() error {
	if strings.TrimSpace(p.Composer) == "" {
		return fmt.Errorf("canonical piece: composer is required")
	}
	if strings.TrimSpace(p.Work) == "" {
		return fmt.Errorf("canonical piece: work is required")
	}
	return nil
}

// AlbumCandidate is a catalog album returned for a search, with its classification merged in.
type AlbumCandidate struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	ReleaseDate string   `json:"releaseDate"`
	TotalTracks int      `json:"totalTracks"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	ExternalURI string   `json:"externalUri"`
	IsComplete  bool     `json:"isComplete"`
	Conductor   string   `json:"conductor,omitempty"`
	Orchestra   string   `json:"orchestra,omitempty"`
}

// ArtistLine joins the album artists for display.
func (a AlbumCandidate) ArtistLine() string {
	return strings.Join(a.Artists, ", ")
}

// Apply merges a classification verdict into the candidate.
func (a *AlbumCandidate) Apply(c Classification) {
	a.IsComplete = c.IsComplete
	a.Conductor = c.Conductor
	a.Orchestra = c.Orchestra
}

// Classification is the language-model verdict for one album against one canonical key.
type Classification struct {
	IsComplete bool   `json:"isComplete"`
	Conductor  string `json:"conductor,omitempty"`
	Orchestra  string `json:"orchestra,omitempty"`
}

// ClassificationEntry is a cached [Classification] with its key and lifetime.
type ClassificationEntry struct {
	AlbumID      string
	CanonicalKey string
	Classification
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the entry is past its expiry at now.
func (e ClassificationEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Track is one entry of an album track listing.
type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	TrackNumber int    `json:"trackNumber"`
	DurationMS  int    `json:"durationMs"`
}

// TrackSelection is the ordered set of canonical track URIs chosen from one album.
type TrackSelection struct {
	AlbumID  string   `json:"albumId"`
	TrackIDs []string `json:"trackIds"`
	Fallback bool     `json:"fallback"` // heuristic selection was used
}

// HandoffPayload is the state parked across the authorization redirect.
type HandoffPayload struct {
	Piece  CanonicalPiece   `json:"piece"`
	Albums []AlbumCandidate `json:"albums"`
}

// Validate requires a usable piece and at least one album.
func (h HandoffPayload) Validate() error {
	if err := h.Piece.Validate(); err != nil {
		return err
	}
	if len(h.Albums) == 0 {
		return fmt.Errorf("handoff payload: no albums selected")
	}
	return nil
}
