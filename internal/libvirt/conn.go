package libvirt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"
)

// NodeAPI is the subset of the libvirt RPC client used to read host
// counters. *golibvirt.Libvirt satisfies it.
type NodeAPI interface {
	NodeGetCPUStats(CPUNum int32, Nparams int32, Flags uint32) ([]golibvirt.NodeGetCPUStats, int32, error)
	NodeGetMemoryStats(Nparams int32, CellNum int32, Flags uint32) ([]golibvirt.NodeGetMemoryStats, int32, error)
	ConnectNumOfDomains() (int32, error)
}

// maxBackoffFactor caps the doubling of the reconnect delay.
const maxBackoffFactor = 8

// ConnManager owns a single libvirt RPC connection. Dialing retries with
// doubling, jittered delays until ctx ends.
type ConnManager struct {
	mu     sync.RWMutex
	client *golibvirt.Libvirt
	uri    string
	logger *slog.Logger
	base   time.Duration
	spread time.Duration
}

func NewConnManager(uri string, reconnect, jitter time.Duration, logger *slog.Logger) *ConnManager {
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	return &ConnManager{
		uri:    uri,
		logger: logger,
		base:   reconnect,
		spread: max(jitter, 0),
	}
}

// Node returns the connected client, dialing on first use.
func (m *ConnManager) Node(ctx context.Context) (NodeAPI, error) {
	m.mu.RLock()
	c := m.client
	m.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.connectLocked(ctx); err != nil {
		return nil, err
	}
	return m.client, nil
}

// Invalidate drops the current connection so the next Node call redials.
func (m *ConnManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return
	}
	if err := m.client.Disconnect(); err != nil {
		m.logger.Debug("libvirt disconnect failed", "error", err)
	}
	m.client = nil
}

func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect()
	m.client = nil
	return err
}

// connectLocked dials until it succeeds or ctx ends. A client left over
// from an earlier dial is reused when it still answers.
func (m *ConnManager) connectLocked(ctx context.Context) error {
	if m.client != nil {
		if _, err := m.client.Version(); err == nil {
			return nil
		}
		_ = m.client.Disconnect()
		m.client = nil
	}

	target, err := ParseURI(m.uri)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		client, dialErr := golibvirt.ConnectToURI(target)
		if dialErr == nil {
			m.client = client
			m.logger.Info("libvirt connection established", "uri", target.Redacted(), "attempts", attempt+1)
			return nil
		}

		delay := m.backoff(attempt)
		m.logger.Warn("libvirt dial failed", "uri", target.Redacted(), "error", dialErr, "retry_in", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("libvirt dial %s: %w", target.Redacted(), dialErr)
		case <-time.After(delay):
		}
	}
}

// ParseURI falls back to the local system hypervisor when raw is empty or
// has no scheme.
func ParseURI(raw string) (*url.URL, error) {
	if raw == "" {
		raw = string(golibvirt.QEMUSystem)
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri %q: %w", raw, err)
	}
	if uri.Scheme == "" {
		uri, err = url.Parse(string(golibvirt.QEMUSystem))
		if err != nil {
			return nil, fmt.Errorf("parse fallback uri: %w", err)
		}
	}
	return uri, nil
}

// backoff is base·2^attempt, capped at maxBackoffFactor·base, plus up to
// spread of random jitter.
func (m *ConnManager) backoff(attempt int) time.Duration {
	factor := time.Duration(1) << min(attempt, 3)
	delay := min(m.base*factor, m.base*maxBackoffFactor)
	if m.spread > 0 {
		delay += rand.N(m.spread)
	}
	return delay
}
