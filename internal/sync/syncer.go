package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyperengineering/pricecheck"
	"github.com/sirupsen/logrus"
)

// State is a step of the full-refresh sync.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateUploadSucceeded
	StateUploadPartial
	StateUploadFailed
	StateDownloading
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateUploading:       "uploading",
	StateUploadSucceeded: "upload_succeeded",
	StateUploadPartial:   "upload_partial",
	StateUploadFailed:    "upload_failed",
	StateDownloading:     "downloading",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Decision describes an upload failure the user must accept before the
// store is destroyed.
type Decision struct {
	State  State    `json:"state"`
	Failed int      `json:"failed"`
	Total  int      `json:"total"`
	Errors []string `json:"errors,omitempty"`
}

// Confirmer asks the user whether to continue a sync after an upload
// failure. Returning true accepts losing the failed records.
type Confirmer interface {
	Confirm(ctx context.Context, d Decision) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, d Decision) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, d Decision) (bool, error) { return f(ctx, d) }

// Always returns a Confirmer that answers proceed without asking.
func Always(proceed bool) Confirmer {
	return ConfirmFunc(func(context.Context, Decision) (bool, error) { return proceed, nil })
}

// SyncStore defines the store operations needed for sync.
type SyncStore interface {
	BulkWriter

	// Destroy discards every document; metadata survives.
	Destroy() error

	SetMetadata(key, value string) error
}

// Report summarises one sync attempt.
type Report struct {
	Pending     int                     `json:"pending"`
	Upload      *pricecheck.BatchResult `json:"upload,omitempty"`
	UploadError string                  `json:"upload_error,omitempty"`
	Marked      int                     `json:"marked"`
	Decision    *Decision               `json:"decision,omitempty"`
	Proceeded   bool                    `json:"proceeded"`
	Downloads   []SetDownload           `json:"downloads,omitempty"`
	LastSync    time.Time               `json:"last_sync,omitempty"`
	State       State                   `json:"-"`
}

// Downloaded returns the number of stored documents across all sets.
func (r *Report) Downloaded() int {
	n := 0
	for _, d := range r.Downloads {
		n += d.Stored
	}
	return n
}

// Rejected returns every record the store refused during download.
func (r *Report) Rejected() []Rejection {
	var out []Rejection
	for _, d := range r.Downloads {
		out = append(out, d.Rejected...)
	}
	return out
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithConfirmer sets who decides whether to proceed after upload failures.
// Without one, failed uploads abort the sync.
func WithConfirmer(c Confirmer) Option { return func(s *Syncer) { s.confirm = c } }

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State)) Option { return func(s *Syncer) { s.observe = fn } }

// WithSettleDelay sets the pause between destroying the store and the first
// download.
func WithSettleDelay(d time.Duration) Option { return func(s *Syncer) { s.settle = d } }

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Syncer) { s.log = log.WithField("component", "syncer") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Syncer) { s.now = now } }

// Syncer runs the full-refresh sync: upload pending collected prices, then
// replace the local store with the backend's entity sets.
type Syncer struct {
	store   SyncStore
	repo    *pricecheck.Repository
	backend Backend
	probe   Probe
	confirm Confirmer
	observe func(State)
	settle  time.Duration
	now     func() time.Time
	log     logrus.FieldLogger
	state   State
}

// NewSyncer creates a syncer with injected dependencies. A nil backend
// means offline.
func NewSyncer(store SyncStore, repo *pricecheck.Repository, backend Backend, probe Probe, opts ...Option) *Syncer {
	s := &Syncer{
		store:   store,
		repo:    repo,
		backend: backend,
		probe:   probe,
		settle:  50 * time.Millisecond,
		now:     time.Now,
		log:     discardLogger().WithField("component", "syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Syncer) State() State { return s.state }

func (s *Syncer) setState(st State) {
	s.state = st
	s.log.WithField("state", st.String()).Info("sync state")
	if s.observe != nil {
		s.observe(st)
	}
}

// Sync runs one sync attempt.
//
// Process:
//  1. Probe connectivity; offline returns ErrOffline with nothing touched
//  2. Upload every pending collected price in one batch
//  3. On partial success mark the accepted products uploaded
//  4. On any failure ask the Confirmer; declining returns ErrSyncAborted
//  5. Destroy the store, wait the settle delay, download all entity sets
//  6. Record the sync timestamp in store metadata
//
// A download failure is fatal and leaves the store partially populated.
// The report is returned alongside errors occurring after the upload.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("sync: %w", pricecheck.ErrOffline)
	}
	if s.probe != nil {
		if err := s.probe.Check(ctx); err != nil {
			if errors.Is(err, pricecheck.ErrOffline) {
				return nil, fmt.Errorf("sync: %w", err)
			}
			return nil, fmt.Errorf("sync: %w: %v", pricecheck.ErrOffline, err)
		}
	}

	report := &Report{}
	defer func() { report.State = s.state }()

	proceed, err := s.upload(ctx, report)
	if err != nil {
		s.setState(StateIdle)
		return report, err
	}
	if !proceed {
		s.setState(StateIdle)
		return report, fmt.Errorf("sync: %w", pricecheck.ErrSyncAborted)
	}

	if err := s.download(ctx, report); err != nil {
		s.setState(StateIdle)
		return report, err
	}

	now := s.now().UTC()
	if err := s.store.SetMetadata(pricecheck.LastSyncKey, now.Format(time.RFC3339Nano)); err != nil {
		s.setState(StateIdle)
		return report, fmt.Errorf("sync: record last sync: %w", err)
	}
	report.LastSync = now
	s.setState(StateIdle)
	return report, nil
}

// upload runs the upload half and reports whether to continue to download.
func (s *Syncer) upload(ctx context.Context, report *Report) (bool, error) {
	s.setState(StateUploading)

	uploader := NewUploader(s.repo, s.backend, nil)
	uploader.log = s.log.WithField("component", "uploader")
	uploader.now = s.now

	up, err := uploader.Upload(ctx)
	var terr *pricecheck.TransportError
	if err != nil && !errors.As(err, &terr) {
		return false, fmt.Errorf("sync: %w", err)
	}
	report.Pending = len(up.Pending)
	report.Upload = up.Batch
	if err != nil {
		report.UploadError = err.Error()
	}

	batch := up.Batch
	switch {
	case err == nil && batch.Failed == 0:
		s.setState(StateUploadSucceeded)
		marked, merr := s.repo.MarkUploaded(up.Pending, len(up.Pending), s.now())
		report.Marked = marked
		if merr != nil {
			return false, fmt.Errorf("sync: mark uploaded: %w", merr)
		}
		report.Proceeded = true
		return true, nil

	case err == nil && batch.Failed < batch.Total:
		s.setState(StateUploadPartial)
		marked, merr := s.repo.MarkUploadedItems(up.Pending, batch.Succeeded(), s.now())
		report.Marked = marked
		if merr != nil {
			return false, fmt.Errorf("sync: mark uploaded: %w", merr)
		}

	default:
		s.setState(StateUploadFailed)
	}

	d := Decision{State: s.state, Failed: batch.Failed, Total: batch.Total, Errors: batch.Errors}
	report.Decision = &d
	if s.confirm == nil {
		return false, nil
	}
	proceed, cerr := s.confirm.Confirm(ctx, d)
	if cerr != nil {
		return false, fmt.Errorf("sync: confirm: %w", cerr)
	}
	report.Proceeded = proceed
	if proceed {
		s.log.WithFields(logrus.Fields{
			"failed": batch.Failed,
			"total":  batch.Total,
		}).Warn("proceeding with sync, failed records will be discarded")
	}
	return proceed, nil
}

// download replaces the store contents with the backend's entity sets.
func (s *Syncer) download(ctx context.Context, report *Report) error {
	s.setState(StateDownloading)

	if err := s.store.Destroy(); err != nil {
		return fmt.Errorf("sync: destroy store: %w", err)
	}

	if s.settle > 0 {
		timer := time.NewTimer(s.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("sync: %w", ctx.Err())
		case <-timer.C:
		}
	}

	for _, entity := range pricecheck.DownloadSets() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		res, err := DownloadSet(ctx, s.backend, s.store, entity, s.now(), s.log)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		report.Downloads = append(report.Downloads, *res)
		s.log.WithFields(logrus.Fields{
			"entity":   entity,
			"fetched":  res.Fetched,
			"stored":   res.Stored,
			"rejected": len(res.Rejected),
		}).Info("entity set downloaded")
	}
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
