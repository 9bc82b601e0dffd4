// Spotify Web API client for catalog search, album track listings and playlist writes.
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyWebURL   = "https://open.spotify.com"

	// MaxAppendBatch is the Spotify limit on URIs per add-items call.
	MaxAppendBatch = 100
	maxTrackPage   = 50
	maxSearchPage  = 50
)

// SpotifyScopes are the scopes requested for playlist assembly.
var SpotifyScopes = []string{"playlist-modify-public", "playlist-modify-private"}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album as returned by search.
type SpotifyAlbum struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	ReleaseDate  string          `json:"release_date"`
	TotalTracks  int             `json:"total_tracks"`
	Images       []SpotifyImage  `json:"images"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// Candidate converts the album into an unclassified [models.AlbumCandidate].
func (a SpotifyAlbum) Candidate() models.AlbumCandidate {
	c := models.AlbumCandidate{
		ID:          a.ID,
		Title:       a.Name,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.TotalTracks,
		ExternalURI: a.ExternalURLs.Spotify,
	}
	if c.ExternalURI == "" {
		c.ExternalURI = spotifyWebURL + "/album/" + a.ID
	}
	for _, artist := range a.Artists {
		c.Artists = append(c.Artists, artist.Name)
	}
	if len(a.Images) > 0 {
		c.ImageURL = a.Images[0].URL
	}
	return c
}

// SpotifyTrack represents a simplified track inside an album listing.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	DiscNumber  int             `json:"disc_number"`
	URI         string          `json:"uri"`
}

// Model converts the track into a [models.Track].
func (t SpotifyTrack) Model() models.Track {
	return models.Track{
		ID:          t.ID,
		Name:        t.Name,
		URI:         t.URI,
		TrackNumber: t.TrackNumber,
		DurationMS:  t.DurationMS,
	}
}

// SpotifyPlaylist represents a created Spotify playlist.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Public       bool         `json:"public"`
	ExternalURLs externalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// URL returns the shareable web link for the playlist.
func (p SpotifyPlaylist) URL() string {
	if p.ExternalURLs.Spotify != "" {
		return p.ExternalURLs.Spotify
	}
	return spotifyWebURL + "/playlist/" + p.ID
}

// SpotifyAlbumPage is one page of album search results.
type SpotifyAlbumPage struct {
	Items  []SpotifyAlbum `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

type spotifyTrackPage struct {
	Items []SpotifyTrack `json:"items"`
	Total int            `json:"total"`
	Next  *string        `json:"next"`
}

// SpotifyService talks to the Spotify Web API.
//
// Catalog reads use an app token from [TokenCache] unless a user token is supplied.
// Playlist writes always take the user token obtained through [SpotifyService.Exchange].
type SpotifyService struct {
	config     *oauth2.Config
	tokens     *TokenCache
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      RetryPolicy
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyHTTPClient overrides the HTTP client used for API and token calls.
func WithSpotifyHTTPClient(client *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithSpotifyBaseURL points API calls at baseURL, used with httptest servers.
func WithSpotifyBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithSpotifyTokenURL overrides the accounts token endpoint for code exchange and app tokens.
func WithSpotifyTokenURL(tokenURL string) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = tokenURL }
}

// WithTokenCache injects the app token cache.
func WithTokenCache(tokens *TokenCache) SpotifyOption {
	return func(s *SpotifyService) { s.tokens = tokens }
}

// WithRetryPolicy sets the policy applied to search and track-list reads.
func WithRetryPolicy(p RetryPolicy) SpotifyOption {
	return func(s *SpotifyService) { s.retry = p }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) SpotifyOption {
	return func(s *SpotifyService) {
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// NewSpotifyService creates a Spotify client for the given application credentials.
func NewSpotifyService(creds shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
		retry:      NewRetryPolicy(0, 0, 0),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.tokens == nil {
		fetch := ClientCredentialsFetcher(creds.ClientID, creds.ClientSecret, s.config.Endpoint.TokenURL)
		s.tokens = NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
			return fetch(s.oauthContext(ctx))
		}, defaultTokenLeeway)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the consent URL. state carries only the opaque handoff handle.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a user token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty authorization code", shared.ErrAuthFailed)
	}
	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// SearchAlbums runs one page of an album search with the app token.
func (s *SpotifyService) SearchAlbums(ctx context.Context, query string, limit, offset int) (*SpotifyAlbumPage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	limit = clampLimit(limit, 20, maxSearchPage)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "album")
	params.Set("limit", fmt.Sprint(limit))
	params.Set("offset", fmt.Sprint(offset))

	var response struct {
		Albums SpotifyAlbumPage `json:"albums"`
	}
	err := s.retry.Do(ctx, "spotify search", func(ctx context.Context) error {
		return s.doRequest(ctx, "", http.MethodGet, "/search?"+params.Encode(), nil, &response)
	})
	if err != nil {
		return nil, err
	}
	return &response.Albums, nil
}

// AlbumTracks returns up to limit tracks of an album in disc order.
// An empty accessToken falls back to the app token.
func (s *SpotifyService) AlbumTracks(ctx context.Context, accessToken, albumID string, limit int) ([]SpotifyTrack, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: empty album id", shared.ErrInvalidInput)
	}
	limit = clampLimit(limit, maxTrackPage, maxTrackPage)
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d", url.PathEscape(albumID), limit)

	var page spotifyTrackPage
	err := s.retry.Do(ctx, "spotify album tracks", func(ctx context.Context) error {
		return s.doRequest(ctx, accessToken, http.MethodGet, endpoint, nil, &page)
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// UserProfile retrieves the profile of the user owning accessToken.
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	if accessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	var user SpotifyUser
	if err := s.doRequest(ctx, accessToken, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*SpotifyPlaylist, error) {
	if accessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, accessToken, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends up to [MaxAppendBatch] track URIs to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	if accessToken == "" {
		return shared.ErrNotAuthenticated
	}
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxAppendBatch {
		return fmt.Errorf("%w: maximum %d track URIs per request", shared.ErrInvalidArgument, MaxAppendBatch)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, accessToken, http.MethodPost, endpoint, map[string][]string{"uris": uris}, nil)
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, accessToken, method, endpoint string, body, result any) error {
	appToken := accessToken == ""
	if appToken {
		tok, err := s.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		}
		accessToken = tok
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if resp.StatusCode == http.StatusUnauthorized && appToken {
			s.tokens.Invalidate()
		}
		return &StatusError{
			Service:    "spotify",
			StatusCode: resp.StatusCode,
			Body:       string(data),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, ceiling)
}
