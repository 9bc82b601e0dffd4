// Package resolver turns free text such as "Tchaik 6 mvt 4" into a [models.CanonicalPiece].
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
)

// Resolver asks the language model for the canonical descriptor of a request.
type Resolver struct {
	llm    services.Completer
	logger *log.Logger
}

// New creates a Resolver.
func New(llm services.Completer, logger *log.Logger) *Resolver {
	return &Resolver{llm: llm, logger: shared.ComponentLogger(logger, "resolver")}
}

// canonicalReply mirrors the JSON the model is asked for. catalog is accepted as an alias of catalogNumber.
type canonicalReply struct {
	Composer       string  `json:"composer"`
	Work           string  `json:"work"`
	Movement       string  `json:"movement"`
	MovementNumber flexInt `json:"movementNumber"`
	CatalogNumber  string  `json:"catalogNumber"`
	Catalog        string  `json:"catalog"`
}

// Resolve returns the canonical piece for raw. priorContext is the previous request in the same session, if any.
//
// A reply without a usable JSON object is reported as [shared.ErrInputAmbiguous] carrying the model's text;
// there is no default descriptor.
func (r *Resolver) Resolve(ctx context.Context, raw, priorContext string) (models.CanonicalPiece, error) {
	raw = collapse(raw)
	if raw == "" {
		return models.CanonicalPiece{}, fmt.Errorf("%w: empty request", shared.ErrInvalidInput)
	}

	reply, err := r.llm.Complete(ctx, systemPrompt, userPrompt(raw, collapse(priorContext)), temperature)
	if err != nil {
		return models.CanonicalPiece{}, fmt.Errorf("%w: resolve %q: %v", shared.ErrServiceUnavailable, raw, err)
	}

	obj, ok := services.ExtractJSONObject(reply)
	if !ok {
		r.logger.Warn("no descriptor in model reply", "input", raw)
		return models.CanonicalPiece{}, fmt.Errorf("%w: %s", shared.ErrInputAmbiguous, strings.TrimSpace(reply))
	}

	var parsed canonicalReply
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return models.CanonicalPiece{}, fmt.Errorf("%w: unreadable descriptor %s: %v", shared.ErrInputAmbiguous, obj, err)
	}

	piece := models.CanonicalPiece{
		Composer:       collapse(parsed.Composer),
		Work:           collapse(parsed.Work),
		Movement:       collapse(parsed.Movement),
		MovementNumber: int(parsed.MovementNumber),
		CatalogNumber:  collapse(firstNonEmpty(parsed.CatalogNumber, parsed.Catalog)),
		RawInput:       raw,
	}
	if err := piece.Validate(); err != nil {
		return models.CanonicalPiece{}, fmt.Errorf("%w: %v", shared.ErrInputAmbiguous, err)
	}

	r.logger.Debug("resolved", "input", raw, "composer", piece.Composer, "work", piece.Work, "movement", piece.Movement)
	return piece, nil
}

func userPrompt(raw, priorContext string) string {
	if priorContext == "" {
		return raw
	}
	return fmt.Sprintf("Previous request: %s\nNew request: %s", priorContext, raw)
}

// flexInt accepts 4, 4.0 and "4". Anything else decodes to zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		*f = flexInt(n)
	}
	return nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
