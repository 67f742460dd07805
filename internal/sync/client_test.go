package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperengineering/pricecheck"
)

func TestHTTPBackend_ReadEntitySet_Formats(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"odata v2", `{"d":{"results":[{"Area":"A01","__metadata":{"uri":"x"}},{"Area":"A02"}]}}`},
		{"odata v2 array", `{"d":[{"Area":"A01"},{"Area":"A02"}]}`},
		{"odata v4", `{"@odata.context":"$metadata#Areas","value":[{"Area":"A01"},{"Area":"A02"}]}`},
		{"bare array", `[{"Area":"A01"},{"Area":"A02"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/Areas" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if r.URL.Query().Get("$format") != "json" {
					t.Errorf("$format = %q, want json", r.URL.Query().Get("$format"))
				}
				if r.Method != http.MethodGet {
					t.Errorf("unexpected method: %s", r.Method)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			backend := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "")
			docs, err := backend.ReadEntitySet(context.Background(), pricecheck.EntityAreas)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(docs) != 2 {
				t.Fatalf("len(docs) = %d, want 2", len(docs))
			}
			if docs[0].String("Area") != "A01" || docs[1].String("Area") != "A02" {
				t.Errorf("docs = %v", docs)
			}
		})
	}
}

func TestHTTPBackend_ReadEntitySet_KeepsNumbersExact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":[{"NormalPrice":1.10}]}`))
	}))
	defer server.Close()

	docs, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").ReadEntitySet(context.Background(), pricecheck.EntityProducts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := docs[0].String("NormalPrice"); got != "1.10" {
		t.Errorf("NormalPrice = %q, want 1.10", got)
	}
}

func TestHTTPBackend_Headers(t *testing.T) {
	tests := []struct {
		name     string
		creds    Credentials
		wantAuth func(r *http.Request) bool
	}{
		{
			name:  "bearer",
			creds: Credentials{APIKey: "secret-key", Username: "ignored"},
			wantAuth: func(r *http.Request) bool {
				return r.Header.Get("Authorization") == "Bearer secret-key"
			},
		},
		{
			name:  "basic",
			creds: Credentials{Username: "agent", Password: "pw"},
			wantAuth: func(r *http.Request) bool {
				u, p, ok := r.BasicAuth()
				return ok && u == "agent" && p == "pw"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !tt.wantAuth(r) {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				if got := r.Header.Get("User-Agent"); got != "pricecheck-client/1.0" {
					t.Errorf("User-Agent = %q", got)
				}
				if r.Header.Get("X-Request-ID") == "" {
					t.Error("X-Request-ID not set")
				}
				if got := r.Header.Get("X-Pricecheck-Source-ID"); got != "device-7" {
					t.Errorf("X-Pricecheck-Source-ID = %q, want device-7", got)
				}
				_, _ = w.Write([]byte(`[]`))
			}))
			defer server.Close()

			_, err := NewHTTPBackend(server.URL, tt.creds, "device-7").ReadEntitySet(context.Background(), pricecheck.EntityUserCard)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHTTPBackend_ReadEntitySet_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid credentials"}`))
	}))
	defer server.Close()

	_, err := NewHTTPBackend(server.URL, Credentials{APIKey: "bad"}, "").ReadEntitySet(context.Background(), pricecheck.EntityAreas)

	var terr *pricecheck.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if terr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", terr.StatusCode, http.StatusUnauthorized)
	}
	if terr.Operation != "read_entity_set" {
		t.Errorf("Operation = %q, want read_entity_set", terr.Operation)
	}
}

func TestHTTPBackend_NetworkError(t *testing.T) {
	backend := NewHTTPBackend("http://localhost:1", Credentials{APIKey: "k"}, "")
	_, err := backend.ReadEntitySet(context.Background(), pricecheck.EntityAreas)

	var terr *pricecheck.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if terr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", terr.StatusCode)
	}
}

func TestHTTPBackend_ReadEntitySet_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value": "nope"}`))
	}))
	defer server.Close()

	_, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").ReadEntitySet(context.Background(), pricecheck.EntityAreas)
	var terr *pricecheck.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func testRecords(keys ...string) []pricecheck.UploadRecord {
	recs := make([]pricecheck.UploadRecord, len(keys))
	for i, k := range keys {
		recs[i] = pricecheck.UploadRecord{SyncKey: k, NormalPrice: "1.00"}
	}
	return recs
}

func TestHTTPBackend_CreateCollectedPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/$batch" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if len(req.Requests) != 3 {
			t.Errorf("len(requests) = %d, want 3", len(req.Requests))
			return
		}
		for i, part := range req.Requests {
			if part.Method != "POST" || part.URL != "CollectedPrices" {
				t.Errorf("part %d = %s %s", i, part.Method, part.URL)
			}
		}
		if req.Requests[1].Body.SyncKey != "K2" {
			t.Errorf("part 2 SyncKey = %q, want K2", req.Requests[1].Body.SyncKey)
		}

		// replies out of order; part 2 rejected with an OData v2 error
		_, _ = w.Write([]byte(`{"responses":[
			{"id":"3","status":201,"body":{}},
			{"id":"2","status":400,"body":{"error":{"code":"X","message":{"lang":"en","value":"bad price"}}}},
			{"id":"1","status":201,"body":{}}
		]}`))
	}))
	defer server.Close()

	outcomes, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").
		CreateCollectedPrices(context.Background(), testRecords("K1", "K2", "K3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []bool{true, false, true}
	for i, o := range outcomes {
		if o.OK != want[i] {
			t.Errorf("outcome %d OK = %v, want %v", i, o.OK, want[i])
		}
		if o.Index != i {
			t.Errorf("outcome %d Index = %d", i, o.Index)
		}
	}
	if outcomes[1].SyncKey != "K2" || outcomes[1].Status != 400 || outcomes[1].Message != "bad price" {
		t.Errorf("outcome 2 = %+v", outcomes[1])
	}

	result := pricecheck.NewBatchResult(outcomes)
	if result.Success != 2 || result.Failed != 1 || result.Total != 3 {
		t.Errorf("result = %+v, want 2 success 1 failed", result)
	}
}

func TestHTTPBackend_CreateCollectedPrices_PositionalFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"status":201},{"status":500,"body":{"error":{"message":"boom"}}}]}`))
	}))
	defer server.Close()

	outcomes, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").
		CreateCollectedPrices(context.Background(), testRecords("K1", "K2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcomes[0].OK || outcomes[1].OK {
		t.Errorf("outcomes = %+v", outcomes)
	}
	if outcomes[1].Message != "boom" {
		t.Errorf("Message = %q, want boom", outcomes[1].Message)
	}
}

func TestHTTPBackend_CreateCollectedPrices_MissingReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"id":"1","status":201}]}`))
	}))
	defer server.Close()

	outcomes, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").
		CreateCollectedPrices(context.Background(), testRecords("K1", "K2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcomes[0].OK {
		t.Error("record 1 should be accepted")
	}
	if outcomes[1].OK || !strings.Contains(outcomes[1].Message, "no response") {
		t.Errorf("record 2 = %+v, want failed without response", outcomes[1])
	}
}

func TestHTTPBackend_CreateCollectedPrices_BatchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	outcomes, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").
		CreateCollectedPrices(context.Background(), testRecords("K1"))

	var terr *pricecheck.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.StatusCode != http.StatusServiceUnavailable || terr.Operation != "create_collected_prices" {
		t.Errorf("TransportError = %+v", terr)
	}
	if outcomes != nil {
		t.Errorf("outcomes = %v, want nil on transport failure", outcomes)
	}
}

func TestHTTPBackend_CreateCollectedPrices_Empty(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	outcomes, err := NewHTTPBackend(server.URL, Credentials{APIKey: "k"}, "").CreateCollectedPrices(context.Background(), nil)
	if err != nil || outcomes != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", outcomes, err)
	}
	if called {
		t.Error("empty batch should not reach the backend")
	}
}
