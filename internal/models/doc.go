// Package models defines the domain entities passed between the conductr pipeline stages.
//
// The types follow a request from free text to a finished playlist:
//
//  1. [CanonicalPiece] : the normalized work descriptor produced once per search session
//  2. [AlbumCandidate] : a catalog album, classified for completeness and attribution
//  3. [Classification] : the cached verdict for an (album, canonical key) pair
//  4. [TrackSelection] : the canonical track URIs chosen from one album
//  5. [HandoffPayload] : the selection parked server-side across the OAuth redirect
//
// Values are plain structs with JSON tags so the HTTP API, the handoff store and the CLI share one wire shape.
package models
