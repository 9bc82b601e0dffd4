// Package tasks assembles playlists from a confirmed album selection with real-time progress reporting.
//
// # Assembly
//
// [Orchestrator.Assemble] runs one job through a fixed sequence of states:
//
//  1. TokenExchange : trade the authorization code for a user token
//  2. IdentityResolved : fetch the user profile
//  3. ContainerCreated : create a private playlist named after the piece
//  4. ExtractingTracks : select tracks per album, sequentially
//     - an extraction failure falls back to every track of that album
//     - an album whose listing also fails is skipped
//  5. Appending : add the normalized ids in batches of at most 100
//
// Any failure in steps 1-3 or 5 ends the job in Failed with an [shared.AssemblyError].
// Partial work is left in place, so retrying after a failed append creates a second playlist.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
