// Package ui implements the interactive candidate picker using bubbletea's Elm architecture.
//
// The TUI walks through the second half of the pipeline:
//  1. [RankingView] : spinner while candidates are retrieved and classified
//  2. [PickView] : select recordings and put them in playlist order
//  3. [ConfirmView] : confirm before leaving for the authorization page
//  4. [WaitingView] : spinner until the callback reports the assembled playlist
//  5. [ResultView] : playlist link or the step that failed
//
// The [Model] receives its collaborators as plain functions in [Pipeline], so the CLI decides how
// ranking, handoff and the callback are wired.
//
// Keyboard navigation uses vim-style bindings (j/k, space, J/K to reorder, enter, esc, y/n, q) with contextual help via charmbracelet/bubbles/help.
package ui
