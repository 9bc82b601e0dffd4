package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/extractor"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
)

// PlaylistDescription is attached to every assembled playlist.
const PlaylistDescription = "Created with conductr.dev"

// DefaultBatchSize is the maximum number of tracks appended per request.
const DefaultBatchSize = services.MaxAppendBatch

// TrackExtractor selects the tracks of one album.
type TrackExtractor interface {
	Extract(ctx context.Context, accessToken, albumID, work string, movements []string) (models.TrackSelection, error)
	AllTracks(ctx context.Context, accessToken, albumID string) (models.TrackSelection, error)
}

// StepResult records one completed or failed state transition.
type StepResult struct {
	Phase   Phase     `json:"phase"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// AssemblyJob is the request-scoped record of one assembly. It is never persisted.
type AssemblyJob struct {
	ID          string                  `json:"id"`
	State       Phase                   `json:"state"`
	Steps       []StepResult            `json:"steps"`
	UserID      string                  `json:"userId,omitempty"`
	PlaylistID  string                  `json:"playlistId,omitempty"`
	PlaylistURL string                  `json:"playlistUrl,omitempty"`
	Selections  []models.TrackSelection `json:"selections,omitempty"`
	TrackIDs    []string                `json:"trackIds,omitempty"` // normalized, in playlist order
	Skipped     []string                `json:"skipped,omitempty"`  // album ids with no usable tracks
	FailedStep  string                  `json:"failedStep,omitempty"`
	Err         error                   `json:"-"`
}

func (j *AssemblyJob) record(p Phase, msg string) {
	j.State = p
	j.Steps = append(j.Steps, StepResult{Phase: p, Message: msg, At: time.Now().UTC()})
}

// Orchestrator drives the assembly state machine:
// Idle, TokenExchange, IdentityResolved, ContainerCreated, ExtractingTracks, Appending, then Done or Failed.
type Orchestrator struct {
	auth      services.Authorizer
	writer    services.PlaylistWriter
	extractor TrackExtractor
	batchSize int
	logger    *log.Logger
}

// NewOrchestrator creates an Orchestrator. batchSize is clamped to the append limit.
func NewOrchestrator(auth services.Authorizer, writer services.PlaylistWriter, ex TrackExtractor, batchSize int, logger *log.Logger) *Orchestrator {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{
		auth:      auth,
		writer:    writer,
		extractor: ex,
		batchSize: batchSize,
		logger:    shared.ComponentLogger(logger, "assembly"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (o *Orchestrator) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Assemble exchanges code for a user token and builds a private playlist from payload.
//
// The returned job is always non-nil. Any error is an [shared.AssemblyError] naming the failed step.
// Nothing created before a failure is rolled back.
func (o *Orchestrator) Assemble(ctx context.Context, code string, payload models.HandoffPayload, progress chan<- ProgressUpdate) (*AssemblyJob, error) {
	job := &AssemblyJob{ID: shared.GenerateID(), State: Idle}
	logger := o.logger.With("job", job.ID)

	fail := func(step Phase, err error) (*AssemblyJob, error) {
		job.State = Failed
		job.FailedStep = step.String()
		job.Err = shared.StepFailed(step.String(), err)
		job.Steps = append(job.Steps, StepResult{Phase: step, Message: "failed", Error: err.Error(), At: time.Now().UTC()})
		o.sendProgress(progress, failedUpdate(step, err))
		logger.Error("assembly failed", "step", step, "error", err)
		return job, job.Err
	}

	if err := payload.Validate(); err != nil {
		return fail(Idle, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	o.sendProgress(progress, tokenExchangeUpdate())
	token, err := o.auth.Exchange(ctx, code)
	if err != nil {
		return fail(TokenExchange, err)
	}
	job.record(TokenExchange, "authorization code exchanged")
	accessToken := token.AccessToken

	user, err := o.writer.UserProfile(ctx, accessToken)
	if err != nil {
		return fail(IdentityResolved, err)
	}
	job.UserID = user.ID
	job.record(IdentityResolved, "user "+user.ID)
	o.sendProgress(progress, identityUpdate(displayName(user)))

	name := payload.Piece.PlaylistName()
	playlist, err := o.writer.CreatePlaylist(ctx, accessToken, user.ID, name, PlaylistDescription, false)
	if err != nil {
		return fail(ContainerCreated, err)
	}
	job.PlaylistID = playlist.ID
	job.PlaylistURL = playlist.URL()
	job.record(ContainerCreated, "playlist "+playlist.ID)
	o.sendProgress(progress, containerUpdate(name, playlist.ID))

	var refs []string
	total := len(payload.Albums)
	for i, album := range payload.Albums {
		if err := ctx.Err(); err != nil {
			return fail(ExtractingTracks, err)
		}
		o.sendProgress(progress, extractingUpdate(i+1, total, album.Title))

		sel, err := o.extractor.Extract(ctx, accessToken, album.ID, payload.Piece.Work, payload.Piece.Movements())
		if err != nil {
			logger.Warn("extraction failed, using all tracks", "album", album.ID, "error", err)
			sel, err = o.extractor.AllTracks(ctx, accessToken, album.ID)
			if err != nil {
				logger.Warn("skipping album", "album", album.ID, "error", err)
				job.Skipped = append(job.Skipped, album.ID)
				continue
			}
		}
		job.Selections = append(job.Selections, sel)
		refs = append(refs, sel.TrackIDs...)
	}
	job.TrackIDs = extractor.NormalizeTrackIDs(refs)
	job.record(ExtractingTracks, fmt.Sprintf("%d tracks from %d albums", len(job.TrackIDs), len(job.Selections)))

	batches := Batches(job.TrackIDs, o.batchSize)
	for i, batch := range batches {
		if err := o.writer.AddTracks(ctx, accessToken, playlist.ID, batch); err != nil {
			return fail(Appending, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err))
		}
		o.sendProgress(progress, appendingUpdate(i+1, len(batches), len(batch)))
	}
	job.record(Appending, fmt.Sprintf("%d batches", len(batches)))

	job.record(Done, job.PlaylistURL)
	o.sendProgress(progress, doneUpdate(job.PlaylistURL, len(job.TrackIDs)))
	logger.Info("playlist assembled", "playlist", playlist.ID, "tracks", len(job.TrackIDs), "skipped", len(job.Skipped))
	return job, nil
}

// Batches splits ids into consecutive chunks of at most size.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

func displayName(u *services.SpotifyUser) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// IsStep reports whether err is an assembly failure at step.
func IsStep(err error, step Phase) bool {
	var ae *shared.AssemblyError
	return errors.As(err, &ae) && ae.Step == step.String()
}
