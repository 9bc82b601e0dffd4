// package formatter renders ranked candidates and assembly results as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/tasks"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.English, cases.NoLower)

// Format names an output format accepted by [Render].
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

// ParseFormat accepts text, markdown (md) and csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Render renders candidates for piece in format f.
func Render(f Format, piece models.CanonicalPiece, candidates []models.AlbumCandidate) ([]byte, error) {
	switch f {
	case Markdown:
		return CandidatesToMarkdown(piece, candidates)
	case CSV:
		return CandidatesToCSV(candidates)
	default:
		return CandidatesToText(piece, candidates)
	}
}

// CandidatesToCSV converts candidates to CSV with columns: Rank, ID, Title, Artists, Released, Tracks, Complete, Conductor, Orchestra, URL
func CandidatesToCSV(candidates []models.AlbumCandidate) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Rank", "ID", "Title", "Artists", "Released", "Tracks", "Complete", "Conductor", "Orchestra", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, c := range candidates {
		record := []string{
			strconv.Itoa(i + 1),
			c.ID,
			c.Title,
			c.ArtistLine(),
			c.ReleaseDate,
			strconv.Itoa(c.TotalTracks),
			strconv.FormatBool(c.IsComplete),
			c.Conductor,
			c.Orchestra,
			c.ExternalURI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// CandidatesToMarkdown renders a heading for the piece followed by a numbered candidate list.
func CandidatesToMarkdown(piece models.CanonicalPiece, candidates []models.AlbumCandidate) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title.String(piece.PlaylistName()))
	if piece.CatalogNumber != "" {
		fmt.Fprintf(&buf, "**Catalog**: %s\n", piece.CatalogNumber)
	}
	fmt.Fprintf(&buf, "**Recordings**: %d (%d complete)\n\n", len(candidates), countComplete(candidates))

	buf.WriteString("## Recordings\n\n")
	for i, c := range candidates {
		mark := " "
		if c.IsComplete {
			mark = "x"
		}
		fmt.Fprintf(&buf, "%d. [%s] [%s](%s) - %s", i+1, mark, c.Title, c.ExternalURI, c.ArtistLine())
		if performers := performerLine(c); performers != "" {
			fmt.Fprintf(&buf, " (%s)", performers)
		}
		if c.ReleaseDate != "" {
			fmt.Fprintf(&buf, " [%s]", releaseYear(c.ReleaseDate))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// CandidatesToText converts candidates to plain text.
func CandidatesToText(piece models.CanonicalPiece, candidates []models.AlbumCandidate) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Piece: %s\n", piece.PlaylistName())
	fmt.Fprintf(&buf, "Recordings: %d (%d complete)\n\n", len(candidates), countComplete(candidates))

	for i, c := range candidates {
		mark := " "
		if c.IsComplete {
			mark = "✓"
		}
		fmt.Fprintf(&buf, "%2d. %s %s - %s\n", i+1, mark, c.Title, c.ArtistLine())
		if performers := performerLine(c); performers != "" {
			fmt.Fprintf(&buf, "       %s\n", performers)
		}
		fmt.Fprintf(&buf, "       %s\n", c.ID)
	}
	return buf.Bytes(), nil
}

// JobToText summarizes an assembly job.
func JobToText(job *tasks.AssemblyJob) []byte {
	var buf bytes.Buffer
	for _, step := range job.Steps {
		if step.Error != "" {
			fmt.Fprintf(&buf, "✗ %s: %s\n", step.Phase, step.Error)
			continue
		}
		fmt.Fprintf(&buf, "✓ %s: %s\n", step.Phase, step.Message)
	}
	for _, sel := range job.Selections {
		note := ""
		if sel.Fallback {
			note = " (fallback)"
		}
		fmt.Fprintf(&buf, "  %s: %d tracks%s\n", sel.AlbumID, len(sel.TrackIDs), note)
	}
	if len(job.Skipped) > 0 {
		fmt.Fprintf(&buf, "  skipped: %s\n", strings.Join(job.Skipped, ", "))
	}
	if job.PlaylistURL != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", job.PlaylistURL)
	}
	return buf.Bytes()
}

// WriteExport writes rendered candidates to path, defaulting the name from the piece.
func WriteExport(f Format, piece models.CanonicalPiece, candidates []models.AlbumCandidate, path string) (string, error) {
	if path == "" {
		path = Filename(piece, f)
	}

	data, err := Render(f, piece, candidates)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Filename derives a file name such as gustav_mahler_symphony_no_5.md from the piece.
func Filename(piece models.CanonicalPiece, f Format) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(piece.Composer + " " + piece.Work) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	base := strings.TrimSuffix(b.String(), "_")
	if base == "" {
		base = "recordings"
	}

	ext := ".txt"
	switch f {
	case Markdown:
		ext = ".md"
	case CSV:
		ext = ".csv"
	}
	return base + ext
}

func performerLine(c models.AlbumCandidate) string {
	var parts []string
	if c.Conductor != "" {
		parts = append(parts, c.Conductor)
	}
	if c.Orchestra != "" {
		parts = append(parts, c.Orchestra)
	}
	return strings.Join(parts, ", ")
}

func countComplete(candidates []models.AlbumCandidate) int {
	n := 0
	for _, c := range candidates {
		if c.IsComplete {
			n++
		}
	}
	return n
}

func releaseYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return date
}
