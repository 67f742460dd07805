package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperengineering/pricecheck"
)

func TestProbeAddress(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"", ""},
		{"http://backend.local", "backend.local:80"},
		{"https://backend.local/sap/opu", "backend.local:443"},
		{"http://10.0.0.5:8080", "10.0.0.5:8080"},
		{"::not a url", ""},
	}
	for _, tt := range tests {
		if got := probeAddress(tt.url); got != tt.want {
			t.Errorf("probeAddress(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDialProbe_NoBackend(t *testing.T) {
	err := NewDialProbe("", time.Second).Check(context.Background())
	if !errors.Is(err, pricecheck.ErrOffline) {
		t.Errorf("Check() = %v, want ErrOffline", err)
	}
}

func TestDialProbe_Reachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	if err := NewDialProbe(server.URL, time.Second).Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

func TestDialProbe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewDialProbe(url, time.Second).Check(context.Background())
	if !errors.Is(err, pricecheck.ErrOffline) {
		t.Errorf("Check() = %v, want ErrOffline", err)
	}
}
