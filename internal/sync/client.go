package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/pricecheck"
	"github.com/sirupsen/logrus"
)

// Backend abstracts the remote system of record.
// Implementations must be safe for concurrent use.
type Backend interface {
	// ReadEntitySet returns every record of an entity set as flat documents.
	ReadEntitySet(ctx context.Context, entity pricecheck.EntityName) ([]pricecheck.Document, error)

	// CreateCollectedPrices submits records as one batch. The returned
	// outcomes are aligned with records. A transport failure returns an
	// error and no outcomes.
	CreateCollectedPrices(ctx context.Context, records []pricecheck.UploadRecord) ([]pricecheck.Outcome, error)
}

// Credentials authenticate backend requests. APIKey is sent as a bearer
// token; otherwise Username and Password are sent as basic auth.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

// HTTPBackend implements Backend over the backend's OData JSON API.
type HTTPBackend struct {
	baseURL    string
	creds      Credentials
	sourceID   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewHTTPBackend creates a backend client for baseURL.
// sourceID is optional; if non-empty, it's sent as X-Pricecheck-Source-ID header.
func NewHTTPBackend(baseURL string, creds Credentials, sourceID string) *HTTPBackend {
	return &HTTPBackend{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		creds:    creds,
		sourceID: sourceID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logrus.StandardLogger().WithField("component", "backend"),
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *HTTPBackend) WithHTTPClient(client *http.Client) *HTTPBackend {
	c.httpClient = client
	return c
}

// WithLogger sets the logger request round trips are reported to.
func (c *HTTPBackend) WithLogger(log logrus.FieldLogger) *HTTPBackend {
	c.log = log.WithField("component", "backend")
	return c
}

func (c *HTTPBackend) setHeaders(req *http.Request) {
	switch {
	case c.creds.APIKey != "":
		req.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	case c.creds.Username != "":
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pricecheck-client/1.0")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if strings.TrimSpace(c.sourceID) != "" {
		req.Header.Set("X-Pricecheck-Source-ID", c.sourceID)
	}
}

func newTransportError(op string, statusCode int, body []byte) *pricecheck.TransportError {
	msg := ""
	if len(body) > 0 && statusCode >= 400 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &pricecheck.TransportError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}

// do sends req and returns the response body of a 2xx reply.
func (c *HTTPBackend) do(op string, req *http.Request) ([]byte, error) {
	c.setHeaders(req)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &pricecheck.TransportError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	c.log.WithFields(logrus.Fields{
		"op":         op,
		"status":     resp.StatusCode,
		"request_id": req.Header.Get("X-Request-ID"),
		"elapsed":    time.Since(start).String(),
	}).Debug("backend round trip")
	if err != nil {
		return nil, &pricecheck.TransportError{Operation: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newTransportError(op, resp.StatusCode, body)
	}
	return body, nil
}

// ReadEntitySet fetches GET <base>/<entity>?$format=json. OData v2
// ({"d":{"results":[...]}}), OData v4 ({"value":[...]}) and bare array
// bodies are accepted.
func (c *HTTPBackend) ReadEntitySet(ctx context.Context, entity pricecheck.EntityName) ([]pricecheck.Document, error) {
	const op = "read_entity_set"

	endpoint := c.baseURL + "/" + url.PathEscape(string(entity)) + "?$format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &pricecheck.TransportError{Operation: op, Err: err}
	}

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	docs, err := decodeEntitySet(body)
	if err != nil {
		return nil, &pricecheck.TransportError{Operation: op, Err: fmt.Errorf("decode %s: %w", entity, err)}
	}
	return docs, nil
}

func decodeEntitySet(body []byte) ([]pricecheck.Document, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var docs []pricecheck.Document
		if err := unmarshalNumbers(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var env entitySetEnvelope
	if err := unmarshalNumbers(trimmed, &env); err != nil {
		return nil, err
	}
	if len(env.D) == 0 {
		return env.Value, nil
	}

	d := bytes.TrimSpace(env.D)
	if len(d) > 0 && d[0] == '[' {
		var docs []pricecheck.Document
		if err := unmarshalNumbers(d, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}
	var v2 odataV2Results
	if err := unmarshalNumbers(d, &v2); err != nil {
		return nil, err
	}
	return v2.Results, nil
}

// unmarshalNumbers decodes JSON keeping numbers as json.Number, so prices
// are stored exactly as the backend sent them.
func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// CreateCollectedPrices posts records to <base>/$batch, one create per
// record. Outcomes are matched to records by part id; a reply without a
// usable id is matched by position.
func (c *HTTPBackend) CreateCollectedPrices(ctx context.Context, records []pricecheck.UploadRecord) ([]pricecheck.Outcome, error) {
	const op = "create_collected_prices"
	if len(records) == 0 {
		return nil, nil
	}

	batch := batchRequest{Requests: make([]batchPart, len(records))}
	for i, rec := range records {
		batch.Requests[i] = batchPart{
			ID:      strconv.Itoa(i + 1),
			Method:  http.MethodPost,
			URL:     CollectedPricesSet,
			Headers: map[string]string{"content-type": "application/json"},
			Body:    rec,
		}
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, &pricecheck.TransportError{Operation: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/$batch", bytes.NewReader(payload))
	if err != nil {
		return nil, &pricecheck.TransportError{Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var resp batchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &pricecheck.TransportError{Operation: op, Err: fmt.Errorf("decode batch response: %w", err)}
	}
	return c.matchOutcomes(records, resp.Responses), nil
}

// matchOutcomes aligns batch replies with the submitted records. Records the
// backend did not answer are reported as failed.
func (c *HTTPBackend) matchOutcomes(records []pricecheck.UploadRecord, replies []batchResult) []pricecheck.Outcome {
	outcomes := make([]pricecheck.Outcome, len(records))
	answered := make([]bool, len(records))

	for pos, r := range replies {
		i, err := strconv.Atoi(r.ID)
		if err != nil || i < 1 || i > len(records) || answered[i-1] {
			if pos >= len(records) || answered[pos] {
				c.log.WithField("part_id", r.ID).Warn("batch reply matches no submitted record")
				continue
			}
			c.log.WithField("part_id", r.ID).Warn("batch reply without usable id, matching by position")
			i = pos + 1
		}
		idx := i - 1
		answered[idx] = true
		outcomes[idx] = pricecheck.Outcome{
			Index:   idx,
			SyncKey: records[idx].SyncKey,
			OK:      r.Status >= 200 && r.Status <= 299,
			Status:  r.Status,
		}
		if !outcomes[idx].OK {
			outcomes[idx].Message = r.message()
		}
	}

	for i, ok := range answered {
		if !ok {
			outcomes[i] = pricecheck.Outcome{Index: i, SyncKey: records[i].SyncKey, Message: "no response for record"}
		}
	}
	return outcomes
}

// ForClient builds a syncer for an open client, using its backend
// configuration, store and logger. An offline client yields a syncer whose
// Sync returns pricecheck.ErrOffline.
func ForClient(c *pricecheck.Client, opts ...Option) *Syncer {
	cfg := c.Config()

	var backend Backend
	if !cfg.IsOffline() {
		creds := Credentials{APIKey: cfg.APIKey, Username: cfg.Username, Password: cfg.Password}
		backend = NewHTTPBackend(cfg.BackendURL, creds, cfg.SourceID).
			WithHTTPClient(&http.Client{Timeout: cfg.Timeout}).
			WithLogger(c.Logger())
	}

	base := []Option{
		WithSettleDelay(cfg.SettleDelay),
		WithLogger(c.Logger()),
	}
	return NewSyncer(c.Store(), c.Repository(), backend, NewDialProbe(cfg.BackendURL, 0), append(base, opts...)...)
}
