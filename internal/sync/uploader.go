package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/pricecheck"
	"github.com/sirupsen/logrus"
)

// Upload is what one upload attempt submitted and how the backend answered.
// Batch.Outcomes is aligned with Pending.
type Upload struct {
	Pending []*pricecheck.Product
	Batch   *pricecheck.BatchResult
}

// Uploader sends every pending collected price to the backend in one batch.
type Uploader struct {
	repo    *pricecheck.Repository
	backend Backend
	now     func() time.Time
	log     logrus.FieldLogger
}

// NewUploader creates an uploader. A nil logger discards.
func NewUploader(repo *pricecheck.Repository, backend Backend, log logrus.FieldLogger) *Uploader {
	if log == nil {
		log = discardLogger()
	}
	return &Uploader{repo: repo, backend: backend, now: time.Now, log: log.WithField("component", "uploader")}
}

// Upload selects the pending products, maps them to upload records and
// submits them. On a transport failure the returned Upload reports every
// record failed and the *pricecheck.TransportError is returned alongside it.
// Nothing is marked here; marking is the caller's decision.
func (u *Uploader) Upload(ctx context.Context) (*Upload, error) {
	pending, err := u.repo.SelectPending()
	if err != nil {
		return nil, fmt.Errorf("upload: select pending: %w", err)
	}
	up := &Upload{Pending: pending}
	if len(pending) == 0 {
		up.Batch = pricecheck.NewBatchResult(nil)
		return up, nil
	}

	now := u.now()
	records := make([]pricecheck.UploadRecord, len(pending))
	for i, p := range pending {
		records[i] = pricecheck.ToPayload(p, now)
	}

	outcomes, err := u.backend.CreateCollectedPrices(ctx, records)
	if err != nil {
		up.Batch = &pricecheck.BatchResult{
			Failed: len(records),
			Total:  len(records),
			Errors: []string{err.Error()},
		}
		u.log.WithError(err).WithField("total", len(records)).Warn("upload batch failed")
		return up, fmt.Errorf("upload: %w", err)
	}
	if len(outcomes) != len(records) {
		err := &pricecheck.TransportError{
			Operation: "create_collected_prices",
			Err:       fmt.Errorf("got %d outcomes for %d records", len(outcomes), len(records)),
		}
		up.Batch = &pricecheck.BatchResult{Failed: len(records), Total: len(records), Errors: []string{err.Error()}}
		return up, fmt.Errorf("upload: %w", err)
	}

	up.Batch = pricecheck.NewBatchResult(outcomes)
	u.log.WithFields(logrus.Fields{
		"success": up.Batch.Success,
		"failed":  up.Batch.Failed,
		"total":   up.Batch.Total,
	}).Info("upload batch completed")
	return up, nil
}
