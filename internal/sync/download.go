package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/pricecheck"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Rejection is a downloaded record the local store refused.
type Rejection struct {
	Entity pricecheck.EntityName `json:"entity"`
	ID     string                `json:"id"`
	Error  string                `json:"error"`
}

// SetDownload is the result of fetching one entity set.
type SetDownload struct {
	Entity   pricecheck.EntityName `json:"entity"`
	Fetched  int                   `json:"fetched"`
	Stored   int                   `json:"stored"`
	Rejected []Rejection           `json:"rejected,omitempty"`
}

// BulkWriter is the store operation downloads need.
type BulkWriter interface {
	BulkPut(docs []pricecheck.Document) ([]pricecheck.BulkResult, error)
}

// CleanRecord turns a backend record into a local document: transport
// metadata and fields starting with "_" or "$" are dropped, the id is the
// record's SyncKey (or a generated one), and the entity name and download
// timestamp are set.
func CleanRecord(entity pricecheck.EntityName, rec pricecheck.Document, now time.Time) pricecheck.Document {
	doc := make(pricecheck.Document, len(rec)+3)
	for k, v := range rec {
		if k == "__metadata" || strings.HasPrefix(k, "_") || strings.HasPrefix(k, "$") {
			continue
		}
		doc[k] = v
	}

	id := doc.String(pricecheck.FieldSyncKey)
	if id == "" {
		id = string(entity) + "_" + strings.ToLower(ulid.Make().String())
	}
	doc[pricecheck.FieldID] = id
	doc[pricecheck.FieldEntityName] = string(entity)
	doc[pricecheck.FieldTimestamp] = now.UTC().Format(time.RFC3339Nano)
	return doc
}

// DownloadSet fetches one entity set and bulk-inserts it. Records the store
// rejects are logged and reported; fetch and store failures are returned.
func DownloadSet(ctx context.Context, backend Backend, store BulkWriter, entity pricecheck.EntityName, now time.Time, log logrus.FieldLogger) (*SetDownload, error) {
	records, err := backend.ReadEntitySet(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", entity, err)
	}

	res := &SetDownload{Entity: entity, Fetched: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	docs := make([]pricecheck.Document, len(records))
	for i, rec := range records {
		docs[i] = CleanRecord(entity, rec, now)
	}

	results, err := store.BulkPut(docs)
	if err != nil {
		return nil, fmt.Errorf("download %s: store: %w", entity, err)
	}
	for _, r := range results {
		if r.Err == nil {
			res.Stored++
			continue
		}
		log.WithError(r.Err).WithFields(logrus.Fields{
			"entity": entity,
			"id":     r.ID,
		}).Warn("downloaded record rejected")
		res.Rejected = append(res.Rejected, Rejection{Entity: entity, ID: r.ID, Error: r.Err.Error()})
	}
	return res, nil
}
