// package testing contains shared test doubles for the pipeline's upstream collaborators
package testing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
	"golang.org/x/oauth2"
)

// MockCompleter is a test double for [services.Completer]. Reply decides the answer for each call.
type MockCompleter struct {
	Reply func(systemPrompt, userPrompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	systems []string
}

// StaticCompleter always answers reply.
func StaticCompleter(reply string) *MockCompleter {
	return &MockCompleter{Reply: func(string, string) (string, error) { return reply, nil }}
}

func (m *MockCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, userPrompt)
	m.systems = append(m.systems, systemPrompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(systemPrompt) == "" || strings.TrimSpace(userPrompt) == "" {
		return "", fmt.Errorf("%w: mock completer: system and user prompts required", shared.ErrInvalidInput)
	}
	if m.Reply == nil {
		return "", errors.New("mock completer: no reply configured")
	}
	return m.Reply(systemPrompt, userPrompt)
}

// CallCount returns how many completions were requested.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns the user prompts received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// SystemPrompts returns the system prompts received so far.
func (m *MockCompleter) SystemPrompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.systems...)
}

// MockCatalog is a test double for [services.AlbumSearcher] and [services.TrackLister].
//
// Albums is the full result set for any query; SearchAlbums pages through it by offset and limit.
type MockCatalog struct {
	Albums    []services.SpotifyAlbum
	SearchErr error
	Tracks    map[string][]services.SpotifyTrack
	TracksErr map[string]error

	mu      sync.Mutex
	queries []string
	offsets []int
}

func (m *MockCatalog) SearchAlbums(ctx context.Context, query string, limit, offset int) (*services.SpotifyAlbumPage, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.offsets = append(m.offsets, offset)
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	page := &services.SpotifyAlbumPage{Limit: limit, Offset: offset, Total: len(m.Albums)}
	if offset < len(m.Albums) {
		end := min(offset+limit, len(m.Albums))
		page.Items = m.Albums[offset:end]
	}
	return page, nil
}

func (m *MockCatalog) AlbumTracks(ctx context.Context, accessToken, albumID string, limit int) ([]services.SpotifyTrack, error) {
	if err := m.TracksErr[albumID]; err != nil {
		return nil, err
	}
	tracks, ok := m.Tracks[albumID]
	if !ok {
		return nil, fmt.Errorf("album %s not found", albumID)
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// Queries returns the search queries received.
func (m *MockCatalog) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Offsets returns the search offsets requested, in call order.
func (m *MockCatalog) Offsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.offsets...)
}

// MockSpotifyUser is a test double for [services.Authorizer] and [services.PlaylistWriter].
type MockSpotifyUser struct {
	ExchangeErr error
	ProfileErr  error
	CreateErr   error
	AddErrOn    int // 1-based AddTracks call that fails; zero never fails
	AddErr      error

	Created []string   // playlist names
	Batches [][]string // AddTracks payloads in call order
}

func (m *MockSpotifyUser) AuthURL(state string) string {
	return "https://accounts.spotify.com/authorize?state=" + state
}

func (m *MockSpotifyUser) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	return &oauth2.Token{AccessToken: "user-token-" + code}, nil
}

func (m *MockSpotifyUser) UserProfile(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	return &services.SpotifyUser{ID: "listener", DisplayName: "Listener"}, nil
}

func (m *MockSpotifyUser) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, name)
	return &services.SpotifyPlaylist{ID: fmt.Sprintf("pl%d", len(m.Created)), Name: name, Description: description, Public: public}, nil
}

func (m *MockSpotifyUser) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Batches = append(m.Batches, append([]string(nil), uris...))
	if m.AddErrOn > 0 && len(m.Batches) == m.AddErrOn {
		if m.AddErr != nil {
			return m.AddErr
		}
		return errors.New("spotify API error: status 502")
	}
	return nil
}

// BatchSizes returns the length of every AddTracks payload.
func (m *MockSpotifyUser) BatchSizes() []int {
	sizes := make([]int, len(m.Batches))
	for i, b := range m.Batches {
		sizes[i] = len(b)
	}
	return sizes
}

// MemoryClassificationCache is an in-memory classification cache keyed like the sqlite repository.
type MemoryClassificationCache struct {
	LookupErr error
	StoreErr  error

	mu      sync.Mutex
	entries map[string]models.Classification
	stores  int
}

func cacheKey(albumID, canonicalKey string) string {
	return albumID + "\x00" + canonicalKey
}

func (m *MemoryClassificationCache) Lookup(ctx context.Context, albumID, canonicalKey string) (models.Classification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LookupErr != nil {
		return models.Classification{}, false, m.LookupErr
	}
	c, ok := m.entries[cacheKey(albumID, canonicalKey)]
	return c, ok, nil
}

func (m *MemoryClassificationCache) Store(ctx context.Context, albumID, canonicalKey string, c models.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return m.StoreErr
	}
	if m.entries == nil {
		m.entries = make(map[string]models.Classification)
	}
	m.entries[cacheKey(albumID, canonicalKey)] = c
	m.stores++
	return nil
}

// Stores returns how many entries were written.
func (m *MemoryClassificationCache) Stores() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores
}

// Album builds a search result with a stable id.
func Album(id, name string, artists ...string) services.SpotifyAlbum {
	a := services.SpotifyAlbum{ID: id, Name: name, TotalTracks: 4}
	for _, artist := range artists {
		a.Artists = append(a.Artists, services.SpotifyArtist{Name: artist})
	}
	return a
}

// Tracks builds n tracks whose ids are valid 22 character catalog ids derived from prefix.
func Tracks(prefix string, n int) []services.SpotifyTrack {
	tracks := make([]services.SpotifyTrack, n)
	for i := range tracks {
		id := TrackID(prefix, i+1)
		tracks[i] = services.SpotifyTrack{
			ID:          id,
			Name:        fmt.Sprintf("%s track %d", prefix, i+1),
			URI:         "spotify:track:" + id,
			TrackNumber: i + 1,
		}
	}
	return tracks
}

// TrackID returns a deterministic 22 character base62 id.
func TrackID(prefix string, n int) string {
	id := fmt.Sprintf("%s%04d", prefix, n)
	for len(id) < 22 {
		id += "x"
	}
	return id[:22]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
