package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a playlist assembly.
//
// Used to send real-time updates to the CLI, UI or callback page for display.
type ProgressUpdate struct {
	Phase   Phase  // Assembly phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Assembly phase enumeration
type Phase int

const (
	Idle Phase = iota
	TokenExchange
	IdentityResolved
	ContainerCreated
	ExtractingTracks
	Appending
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case TokenExchange:
		return "TokenExchange"
	case IdentityResolved:
		return "IdentityResolved"
	case ContainerCreated:
		return "ContainerCreated"
	case ExtractingTracks:
		return "ExtractingTracks"
	case Appending:
		return "Appending"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	default:
		return ""
	}
}

// MarshalText renders the phase by name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := Idle; candidate <= Failed; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

func tokenExchangeUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   TokenExchange,
		Step:    1,
		Total:   1,
		Message: "Exchanging authorization code...",
	}
}

func identityUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IdentityResolved,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Signed in as %s", name),
	}
}

func containerUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ContainerCreated,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", name, id),
		Data:    id,
	}
}

func extractingUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractingTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Selecting tracks from %s...", step, total, title),
	}
}

func appendingUpdate(step, total, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Appending,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Added %d tracks", step, total, added),
	}
}

func doneUpdate(url string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %d tracks added: %s", tracks, url),
		Data:    url,
	}
}

func failedUpdate(step Phase, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✗ %s: %v", step, err),
		Data:    step,
	}
}
