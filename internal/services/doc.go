// Package services implements the upstream clients used by the conductr pipeline.
//
// # Spotify
//
// [SpotifyService] covers catalog search, album track listings, the OAuth2 authorization-code exchange and
// playlist writes. Catalog reads use a client-credentials app token held in an injected [TokenCache]; the
// cache refreshes the token once it is within a minute of expiry. Writes take the user's access token.
//
// # Language model
//
// [LLMClient] posts chat completions to an OpenRouter-compatible endpoint and returns the reply as text.
// Callers extract structured data with [ExtractJSONObject] or [DecodeJSONObject], which take the first
// balanced JSON object in the reply.
//
// # Retries
//
// Search, track-list and completion calls run through a [RetryPolicy]: bounded attempts, exponential
// backoff with full jitter, Retry-After honored. Only 408, 429, 5xx and timeouts are retried. Playlist
// writes are never retried.
//
// # Error Handling
//
// Non-2xx responses surface as [*StatusError]. Credential problems wrap [shared.ErrMissingCredentials],
// [shared.ErrNotAuthenticated] or [shared.ErrAuthFailed].
package services
