package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/conductr/internal/models"
)

var _ list.Item = candidateItem{}

// candidateItem wraps [models.AlbumCandidate] to implement [list.Item].
type candidateItem struct {
	album    models.AlbumCandidate
	selected bool
}

func (i candidateItem) FilterValue() string { return i.album.Title + " " + i.album.ArtistLine() }

func (i candidateItem) Title() string {
	box := "[ ]"
	if i.selected {
		box = styles.pick.Render("[x]")
	}
	title := fmt.Sprintf("%s %s", box, i.album.Title)
	if i.album.IsComplete {
		title += " " + styles.ok.Render("complete")
	}
	return title
}

func (i candidateItem) Description() string {
	parts := []string{i.album.ArtistLine()}
	if i.album.Conductor != "" {
		parts = append(parts, i.album.Conductor)
	}
	if i.album.Orchestra != "" {
		parts = append(parts, i.album.Orchestra)
	}
	if len(i.album.ReleaseDate) >= 4 {
		parts = append(parts, i.album.ReleaseDate[:4])
	}
	return fmt.Sprintf("    %s • %d tracks", strings.Join(parts, " • "), i.album.TotalTracks)
}
