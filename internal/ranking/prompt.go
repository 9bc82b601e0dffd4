package ranking

import (
	"fmt"
	"strings"

	"github.com/desertthunder/conductr/internal/models"
)

const classifySystemPrompt = "You are an expert classical music metadata assistant."

const classifyTemperature = 0.0

func classifyPrompt(query string, album models.AlbumCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a classical music metadata expert.\n")
	fmt.Fprintf(&b, "The user is searching for: %q.\n", query)
	fmt.Fprintf(&b, "Here is a Spotify album:\n")
	fmt.Fprintf(&b, "- Album name: %s\n", album.Title)
	fmt.Fprintf(&b, "- Album artists: %s\n", album.ArtistLine())
	fmt.Fprintf(&b, "- Release date: %s\n", album.ReleaseDate)
	fmt.Fprintf(&b, "- Total tracks: %d\n\n", album.TotalTracks)
	b.WriteString(`Based on the album metadata and your knowledge of classical discography, answer:
1. Does this album most likely contain a complete recording of the requested work (not just a single movement or excerpt)? Only say true if you are quite certain.
2. What is the likely conductor and orchestra (guess from the artist or album name if possible)?

Output JSON like:
{"isComplete": true, "conductor": "...", "orchestra": "..."}`)
	return b.String()
}
