package sync

import (
	"encoding/json"

	"github.com/hyperengineering/pricecheck"
)

// CollectedPricesSet is the backend collection uploads are created in.
const CollectedPricesSet = "CollectedPrices"

// batchRequest is the body of POST /$batch.
type batchRequest struct {
	Requests []batchPart `json:"requests"`
}

// batchPart is one create operation inside a batch.
type batchPart struct {
	ID      string                  `json:"id"`
	Method  string                  `json:"method"`
	URL     string                  `json:"url"`
	Headers map[string]string       `json:"headers,omitempty"`
	Body    pricecheck.UploadRecord `json:"body"`
}

// batchResponse is the body returned by POST /$batch.
type batchResponse struct {
	Responses []batchResult `json:"responses"`
}

// batchResult is the backend's answer to one batch part.
type batchResult struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// odataError is the error body of a failed part. OData v2 nests the message
// text in {"value": ...}; v4 uses a plain string.
type odataError struct {
	Error struct {
		Code    string          `json:"code"`
		Message json.RawMessage `json:"message"`
	} `json:"error"`
}

// message extracts a human-readable message from a part body, or "".
func (r batchResult) message() string {
	if len(r.Body) == 0 {
		return ""
	}
	var e odataError
	if err := json.Unmarshal(r.Body, &e); err != nil || len(e.Error.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Error.Message, &s); err == nil {
		return s
	}
	var v struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(e.Error.Message, &v); err == nil {
		return v.Value
	}
	return ""
}

// entitySetEnvelope covers the OData v2 and v4 collection shapes.
type entitySetEnvelope struct {
	D     json.RawMessage       `json:"d"`
	Value []pricecheck.Document `json:"value"`
}

// odataV2Results is the object form of the v2 "d" member.
type odataV2Results struct {
	Results []pricecheck.Document `json:"results"`
}
