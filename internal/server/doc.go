// Package server exposes the pipeline over HTTP.
//
// # Routes
//
//	POST /api/canonicalize  free text to a canonical piece
//	POST /api/search        canonical piece to ranked candidates
//	POST /api/handoff       park a selection, returns the handle and the consent URL
//	GET  /callback          consume the handoff named by state and assemble the playlist
//	GET  /healthz
//
// Pipeline errors map to status codes through [StatusFor]: ambiguous input is 422, an unavailable
// catalog or a failed assembly step is 502, an expired or unknown handoff is 410 and malformed
// input is 400.
//
// # Router Infrastructure
//
// [BasicRouter] registers method patterns on an [http.ServeMux] and wraps every handler with the
// [Middleware] added before it.
package server
