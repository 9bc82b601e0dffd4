package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/extractor"
	"github.com/desertthunder/conductr/internal/handoff"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/resolver"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/tasks"
	"github.com/desertthunder/conductr/internal/workers"
	"github.com/urfave/cli/v3"
)

// Catalog is the application-scoped half of the Spotify client.
type Catalog interface {
	services.AlbumSearcher
	services.TrackLister
}

// Account is the user-scoped half of the Spotify client.
type Account interface {
	services.Authorizer
	services.PlaylistWriter
}

// ClassificationStore is the classification cache as seen by the cache commands.
type ClassificationStore interface {
	ranking.Cache
	List(ctx context.Context, canonicalKey string, limit int) ([]models.ClassificationEntry, error)
	Prune(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	catalog     Catalog
	account     Account
	llm         services.Completer
	cache       ClassificationStore
	handoff     *handoff.Store
	logger      *log.Logger
	output      io.Writer
	openBrowser func(url string) error
	authTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Catalog     Catalog
	Account     Account
	LLM         services.Completer
	Cache       ClassificationStore
	Handoff     *handoff.Store
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(url string) error
	AuthTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 5 * time.Minute
	}
	if opts.Handoff == nil {
		opts.Handoff = handoff.NewStore(handoff.NewMemoryKV(time.Minute), opts.Config.Handoff.TTL(), opts.Logger)
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		catalog:     opts.Catalog,
		account:     opts.Account,
		llm:         opts.LLM,
		cache:       opts.Cache,
		handoff:     opts.Handoff,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
		authTimeout: opts.AuthTimeout,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		resolveCommand, searchCommand, extractCommand, playlistCommand, serveCommand, cacheCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) resolver() (*resolver.Resolver, error) {
	if r.llm == nil {
		return nil, fmt.Errorf("%w: language model not configured (credentials.llm.api_key)", shared.ErrServiceUnavailable)
	}
	return resolver.New(r.llm, r.logger), nil
}

func (r *Runner) ranker() (*ranking.Ranker, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if r.llm == nil {
		return nil, fmt.Errorf("%w: language model not configured (credentials.llm.api_key)", shared.ErrServiceUnavailable)
	}

	rc := r.config.Ranking
	opts := ranking.Options{
		PageSize:        rc.PageSize,
		MaxPages:        rc.MaxPages,
		ClassifyTimeout: time.Duration(rc.ClassifyTimeoutSeconds) * time.Second,
		Pool:            workers.New(rc.Concurrency),
	}

	var cache ranking.Cache
	if r.cache != nil {
		cache = r.cache
	}
	return ranking.New(r.catalog, r.llm, cache, opts, r.logger), nil
}

func (r *Runner) extractor() (*extractor.Extractor, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if r.llm == nil {
		return nil, fmt.Errorf("%w: language model not configured (credentials.llm.api_key)", shared.ErrServiceUnavailable)
	}
	ac := r.config.Assembly
	return extractor.New(r.catalog, r.llm, ac.FallbackTracks, ac.TrackPageSize, r.logger), nil
}

func (r *Runner) orchestrator() (*tasks.Orchestrator, error) {
	if r.account == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	ex, err := r.extractor()
	if err != nil {
		return nil, err
	}
	return tasks.NewOrchestrator(r.account, r.account, ex, r.config.Assembly.BatchSize, r.logger), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
