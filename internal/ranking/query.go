package ranking

import (
	"strings"

	"github.com/desertthunder/conductr/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// BuildQuery joins the non-empty canonical fields with single spaces.
func BuildQuery(p models.CanonicalPiece) string {
	return strings.Join(strings.Fields(strings.Join(p.Fields(), " ")), " ")
}

// CanonicalKey is the cache namespace for a piece: its non-empty fields lowercased,
// with whitespace inside each field turned into underscores and the fields joined by "_".
//
// Two raw requests that resolve to the same piece share a key.
func CanonicalKey(p models.CanonicalPiece) string {
	fields := p.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, strings.Join(strings.Fields(lower.String(f)), "_"))
	}
	return strings.Join(parts, "_")
}
