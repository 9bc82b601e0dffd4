// package services defines the upstream collaborators of the pipeline: the Spotify catalog and the language model.
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Completer is a language-model endpoint: prompts in, freeform text out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// AlbumSearcher pages through catalog album search results.
type AlbumSearcher interface {
	SearchAlbums(ctx context.Context, query string, limit, offset int) (*SpotifyAlbumPage, error)
}

// TrackLister returns an album's ordered track list.
type TrackLister interface {
	AlbumTracks(ctx context.Context, accessToken, albumID string, limit int) ([]SpotifyTrack, error)
}

// Authorizer builds consent URLs and exchanges authorization codes.
type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// PlaylistWriter covers the user-scoped calls made while assembling a playlist.
type PlaylistWriter interface {
	UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error)
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*SpotifyPlaylist, error)
	AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error
}

var (
	_ Completer      = (*LLMClient)(nil)
	_ AlbumSearcher  = (*SpotifyService)(nil)
	_ TrackLister    = (*SpotifyService)(nil)
	_ Authorizer     = (*SpotifyService)(nil)
	_ PlaylistWriter = (*SpotifyService)(nil)
)
