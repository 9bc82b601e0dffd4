package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/conductr/internal/shared"
	"golang.org/x/oauth2"
)

func staticTokens(token string) *TokenCache {
	return NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: token, Expiry: time.Now().Add(time.Hour)}, nil
	}, time.Minute)
}

func newTestSpotify(t *testing.T, handler http.Handler) *SpotifyService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(
		shared.SpotifyConfig{ClientID: "test_client_id", ClientSecret: "test_client_secret"},
		WithSpotifyBaseURL(server.URL),
		WithSpotifyTokenURL(server.URL+"/api/token"),
		WithSpotifyHTTPClient(server.Client()),
		WithTokenCache(staticTokens("app-token")),
		WithRetryPolicy(NewRetryPolicy(3, time.Millisecond, time.Millisecond).WithSleeper(func(context.Context, time.Duration) error { return nil })),
	)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
				RedirectURI:  "http://localhost:3000/callback",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.tokens == nil {
				t.Error("expected a default token cache")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientSecret: "secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.RedirectURL != "http://127.0.0.1:3000/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(shared.SpotifyConfig{ClientID: "test_client_id", ClientSecret: "secret"})
		authURL := srv.AuthURL("handle-123")

		for _, want := range []string{"accounts.spotify.com", "test_client_id", "state=handle-123", "playlist-modify-private"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL %q should contain %q", authURL, want)
			}
		}
	})

	t.Run("SearchAlbums", func(t *testing.T) {
		var gotQuery, gotAuth string
		srv := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("q")
			gotAuth = r.Header.Get("Authorization")
			if r.URL.Query().Get("type") != "album" {
				t.Errorf("expected type=album, got %s", r.URL.Query().Get("type"))
			}
			fmt.Fprint(w, `{"albums":{"items":[{"id":"alb1","name":"Mahler 5","artists":[{"name":"Berliner Philharmoniker"}],
				"release_date":"2011","total_tracks":5,"images":[{"url":"https://i.scdn.co/1"}],
				"external_urls":{"spotify":"https://open.spotify.com/album/alb1"}}],"total":1,"limit":20,"offset":0}}`)
		}))

		page, err := srv.SearchAlbums(context.Background(), "Gustav Mahler Symphony No. 5", 20, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotQuery != "Gustav Mahler Symphony No. 5" {
			t.Errorf("unexpected query %q", gotQuery)
		}
		if gotAuth != "Bearer app-token" {
			t.Errorf("expected app token bearer, got %q", gotAuth)
		}
		if len(page.Items) != 1 {
			t.Fatalf("expected 1 album, got %d", len(page.Items))
		}

		c := page.Items[0].Candidate()
		if c.ID != "alb1" || c.ImageURL != "https://i.scdn.co/1" || c.ArtistLine() != "Berliner Philharmoniker" {
			t.Errorf("unexpected candidate %+v", c)
		}
	})

	t.Run("SearchAlbums retries transient failures", func(t *testing.T) {
		calls := 0
		srv := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `{"albums":{"items":[]}}`)
		}))

		if _, err := srv.SearchAlbums(context.Background(), "Mahler", 20, 0); err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("SearchAlbums does not retry client errors", func(t *testing.T) {
		calls := 0
		srv := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
		}))

		_, err := srv.SearchAlbums(context.Background(), "Mahler", 20, 0)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 StatusError, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("AlbumTracks uses the user token", func(t *testing.T) {
		srv := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums/alb1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "50" {
				t.Errorf("expected limit 50, got %s", r.URL.Query().Get("limit"))
			}
			if r.Header.Get("Authorization") != "Bearer user-token" {
				t.Errorf("expected user token, got %s", r.Header.Get("Authorization"))
			}
			fmt.Fprint(w, `{"items":[{"id":"t1","name":"I. Trauermarsch","uri":"spotify:track:t1","track_number":1}]}`)
		}))

		tracks, err := srv.AlbumTracks(context.Background(), "user-token", "alb1", 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].Model().TrackNumber != 1 {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("CreatePlaylist and AddTracks", func(t *testing.T) {
		var created map[string]any
		var added struct {
			URIs []string `json:"uris"`
		}
		srv := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/users/user1/playlists":
				json.NewDecoder(r.Body).Decode(&created)
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id":"pl1","name":"Gustav Mahler: Symphony No. 5"}`)
			case "/playlists/pl1/tracks":
				json.NewDecoder(r.Body).Decode(&added)
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"snapshot_id":"s1"}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		ctx := context.Background()
		pl, err := srv.CreatePlaylist(ctx, "user-token", "user1", "Gustav Mahler: Symphony No. 5", "Created with conductr.dev", false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created["public"] != false || created["description"] != "Created with conductr.dev" {
			t.Errorf("unexpected create body %v", created)
		}
		if pl.URL() != "https://open.spotify.com/playlist/pl1" {
			t.Errorf("unexpected playlist URL %s", pl.URL())
		}

		uris := []string{"spotify:track:4uLU6hMCjMI75M1A2tKUQC"}
		if err := srv.AddTracks(ctx, "user-token", "pl1", uris); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(added.URIs) != 1 || added.URIs[0] != uris[0] {
			t.Errorf("unexpected add body %v", added.URIs)
		}
	})

	t.Run("AddTracks rejects oversized batches", func(t *testing.T) {
		srv := newTestSpotify(t, http.NotFoundHandler())
		err := srv.AddTracks(context.Background(), "user-token", "pl1", make([]string, MaxAppendBatch+1))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Write calls require a user token", func(t *testing.T) {
		srv := newTestSpotify(t, http.NotFoundHandler())
		if _, err := srv.UserProfile(context.Background(), ""); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		srv := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/token" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			r.ParseForm()
			if r.Form.Get("code") != "auth-code" {
				t.Errorf("expected code auth-code, got %s", r.Form.Get("code"))
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"user-token","token_type":"Bearer","expires_in":3600}`)
		}))

		tok, err := srv.Exchange(context.Background(), "auth-code")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok.AccessToken != "user-token" {
			t.Errorf("expected user-token, got %s", tok.AccessToken)
		}

		if _, err := srv.Exchange(context.Background(), ""); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed for empty code, got %v", err)
		}
	})
}
