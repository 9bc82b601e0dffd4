// Package ranking retrieves catalog albums for a [models.CanonicalPiece], classifies each one
// with the language model and orders complete recordings first.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/workers"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize        = 20
	DefaultMaxPages        = 3
	DefaultClassifyTimeout = 20 * time.Second
)

// Cache stores classifications keyed by album id and canonical key.
type Cache interface {
	Lookup(ctx context.Context, albumID, canonicalKey string) (models.Classification, bool, error)
	Store(ctx context.Context, albumID, canonicalKey string, c models.Classification) error
}

// Options tunes retrieval and classification. Zero values use the package defaults.
type Options struct {
	PageSize        int
	MaxPages        int
	ClassifyTimeout time.Duration
	Pool            *workers.Pool
}

// Ranker produces ranked candidates for a canonical piece.
type Ranker struct {
	search  services.AlbumSearcher
	llm     services.Completer
	cache   Cache
	pool    *workers.Pool
	flight  singleflight.Group
	timeout time.Duration
	pageSz  int
	pages   int
	logger  *log.Logger
}

// Result is the outcome of one ranking.
type Result struct {
	Query        string                  `json:"query"`
	CanonicalKey string                  `json:"canonicalKey"`
	Candidates   []models.AlbumCandidate `json:"candidates"`
	CacheHits    int                     `json:"cacheHits"`
	Classified   int                     `json:"classified"` // fresh model verdicts
	Degraded     int                     `json:"degraded"`   // failed closed to incomplete
}

// New creates a Ranker. cache may be nil, in which case every album is classified.
func New(search services.AlbumSearcher, llm services.Completer, cache Cache, opts Options, logger *log.Logger) *Ranker {
	r := &Ranker{
		search:  search,
		llm:     llm,
		cache:   cache,
		pool:    opts.Pool,
		timeout: opts.ClassifyTimeout,
		pageSz:  opts.PageSize,
		pages:   opts.MaxPages,
		logger:  shared.ComponentLogger(logger, "ranking"),
	}
	if r.pool == nil {
		r.pool = workers.New(workers.DefaultSize)
	}
	if r.timeout <= 0 {
		r.timeout = DefaultClassifyTimeout
	}
	if r.pageSz <= 0 {
		r.pageSz = DefaultPageSize
	}
	if r.pages <= 0 {
		r.pages = DefaultMaxPages
	}
	return r
}

// Rank retrieves, classifies and orders the candidates for piece.
//
// Only a retrieval failure is returned. Classification failures count as incomplete.
func (r *Ranker) Rank(ctx context.Context, piece models.CanonicalPiece) (*Result, error) {
	if err := piece.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	res := &Result{Query: BuildQuery(piece), CanonicalKey: CanonicalKey(piece)}

	candidates, err := r.Retrieve(ctx, res.Query)
	if err != nil {
		return nil, err
	}

	verdicts := workers.Map(ctx, r.pool, candidates, func(ctx context.Context, c models.AlbumCandidate) verdict {
		return r.classify(ctx, c, res.CanonicalKey, res.Query)
	})

	for i, v := range verdicts {
		candidates[i].Apply(v.Classification)
		switch v.source {
		case fromCache:
			res.CacheHits++
		case fromModel:
			res.Classified++
		case degraded:
			res.Degraded++
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].IsComplete && !candidates[j].IsComplete
	})
	res.Candidates = candidates

	r.logger.Info("ranked", "query", res.Query, "candidates", len(candidates),
		"cache_hits", res.CacheHits, "classified", res.Classified, "degraded", res.Degraded)
	return res, nil
}

// Retrieve pages through album search for query and deduplicates by id in first-seen order.
func (r *Ranker) Retrieve(ctx context.Context, query string) ([]models.AlbumCandidate, error) {
	seen := make(map[string]struct{})
	var out []models.AlbumCandidate

	for page := range r.pages {
		result, err := r.search.SearchAlbums(ctx, query, r.pageSz, page*r.pageSz)
		if err != nil {
			return nil, fmt.Errorf("%w: search %q: %v", shared.ErrUpstreamUnavailable, query, err)
		}

		for _, album := range result.Items {
			if album.ID == "" {
				continue
			}
			if _, dup := seen[album.ID]; dup {
				continue
			}
			seen[album.ID] = struct{}{}
			out = append(out, album.Candidate())
		}

		if len(result.Items) < r.pageSz {
			break
		}
	}
	return out, nil
}

type source int

// The zero source is degraded so that tasks skipped after cancellation fail closed.
const (
	degraded source = iota
	fromCache
	fromModel
)

type verdict struct {
	models.Classification
	source source
}

func (r *Ranker) classify(ctx context.Context, album models.AlbumCandidate, key, query string) verdict {
	if r.cache != nil {
		c, ok, err := r.cache.Lookup(ctx, album.ID, key)
		switch {
		case err != nil:
			r.logger.Warn("cache lookup failed", "album", album.ID, "error", err)
		case ok:
			return verdict{Classification: c, source: fromCache}
		}
	}

	// Waiters share this call, so it must not die with the first caller.
	detached := context.WithoutCancel(ctx)
	v, _, _ := r.flight.Do(album.ID+"|"+key, func() (any, error) {
		return r.classifyUncached(detached, album, key, query), nil
	})
	return v.(verdict)
}

func (r *Ranker) classifyUncached(ctx context.Context, album models.AlbumCandidate, key, query string) verdict {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.llm.Complete(callCtx, classifySystemPrompt, classifyPrompt(query, album), classifyTemperature)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}
		return r.degrade(album, err)
	}

	var c models.Classification
	if err := services.DecodeJSONObject(reply, &c); err != nil {
		return r.degrade(album, err)
	}

	if r.cache != nil {
		if err := r.cache.Store(ctx, album.ID, key, c); err != nil {
			r.logger.Warn("cache store failed", "album", album.ID, "error", err)
		}
	}
	return verdict{Classification: c, source: fromModel}
}

func (r *Ranker) degrade(album models.AlbumCandidate, err error) verdict {
	r.logger.Warn("classification degraded", "album", album.ID, "title", album.Title,
		"error", fmt.Errorf("%w: %v", shared.ErrClassificationDegraded, err))
	return verdict{source: degraded}
}
