package sync

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/hyperengineering/pricecheck"
)

// Probe decides whether the backend is reachable before a sync starts.
// Check returns nil when online and an error wrapping
// pricecheck.ErrOffline otherwise.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

// Check calls f.
func (f ProbeFunc) Check(ctx context.Context) error { return f(ctx) }

// DialProbe checks connectivity with a TCP connection to the backend host.
type DialProbe struct {
	// Address is host:port. Empty means no backend is configured.
	Address string
	Timeout time.Duration
}

// NewDialProbe derives the probe address from a backend URL, defaulting the
// port from the scheme. An empty or unparsable URL yields a probe that
// always reports offline.
func NewDialProbe(backendURL string, timeout time.Duration) *DialProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DialProbe{Address: probeAddress(backendURL), Timeout: timeout}
}

func probeAddress(backendURL string) string {
	if backendURL == "" {
		return ""
	}
	u, err := url.Parse(backendURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Check dials the backend and closes the connection straight away.
func (p *DialProbe) Check(ctx context.Context) error {
	if p.Address == "" {
		return fmt.Errorf("%w: no backend configured", pricecheck.ErrOffline)
	}
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", pricecheck.ErrOffline, err)
	}
	_ = conn.Close()
	return nil
}
