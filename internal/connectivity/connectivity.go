// Package connectivity tracks whether the remote is believed reachable.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

const defaultProbeTimeout = 5 * time.Second

// Static is a fixed connectivity state.
type Static bool

// Online reports the fixed state.
func (s Static) Online() bool { return bool(s) }

// Monitor probes a URL on an interval. Any HTTP response counts as online;
// only transport failures count as offline.
type Monitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	online   atomic.Bool
}

// NewMonitor creates a monitor. It starts optimistic: online until the
// first probe says otherwise.
func NewMonitor(url string, interval time.Duration) *Monitor {
	m := &Monitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: defaultProbeTimeout},
	}
	m.online.Store(true)
	return m
}

// Online reports the last probe result.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Probe checks reachability once and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	ok := m.probe(ctx)
	m.online.Store(ok)
	return ok
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		slog.Debug("connectivity probe failed", "url", m.url, "err", err)
		return false
	}
	resp.Body.Close()
	return true
}

// Run probes until ctx is done, calling onRestore on every offline to
// online transition.
func (m *Monitor) Run(ctx context.Context, onRestore func()) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		wasOnline := m.Online()
		nowOnline := m.Probe(ctx)
		switch {
		case !wasOnline && nowOnline:
			slog.Info("connectivity restored")
			if onRestore != nil {
				onRestore()
			}
		case wasOnline && !nowOnline && ctx.Err() == nil:
			slog.Warn("connectivity lost", "url", m.url)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
