// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package probe determines, with a time-bounded and cached result,
// whether outbound internet access and remote-API reachability currently
// hold. Implements: prd012-routing (connectivity prober);
//
//	docs/ARCHITECTURE § Connectivity Prober.
package probe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pdiddy/refsync/pkg/types"
)

// DefaultEndpoints are the well-known internet endpoints tried in order
// by the reachability check. Overridable through ProbeConfig.Endpoints.
var DefaultEndpoints = []string{
	"https://clients3.google.com/generate_204",
	"https://www.cloudflare.com/cdn-cgi/trace",
	"https://httpbin.org/status/200",
}

const (
	defaultTTL     = 30 * time.Second
	defaultTimeout = 5 * time.Second
)

// RemotePinger reports whether the remote backend answers an
// authenticated request. Implemented by the remote adapter.
type RemotePinger interface {
	Ping(ctx context.Context) error
}

// Prober performs connectivity checks and caches the result for a TTL
// window. Safe for concurrent use: the cached state is replaced as a
// whole under the lock, never observed half-written.
type Prober struct {
	cfg    types.ProbeConfig
	client *http.Client
	remote RemotePinger // nil when no remote backend is configured

	mu   sync.Mutex
	last types.ConnectivityState
	ok   bool // last holds a completed probe
}

// New returns a Prober. remote may be nil, in which case
// RemoteAPIReachable is always reported false.
func New(cfg types.ProbeConfig, remote RemotePinger) *Prober {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	return &Prober{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		remote: remote,
	}
}

// Probe returns the current connectivity state. A cached result younger
// than the TTL is returned immediately unless force is set. Unreachable
// is a valid result, not an error: Probe never fails.
func (p *Prober) Probe(ctx context.Context, force bool) types.ConnectivityState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force && p.ok && time.Since(p.last.CheckedAt) < p.cfg.TTL {
		return p.last
	}

	state := types.ConnectivityState{CheckedAt: time.Now()}
	state.InternetReachable = p.checkInternet(ctx)

	// The remote check is only worth attempting once general internet
	// reachability holds.
	if state.InternetReachable && p.remote != nil {
		state.RemoteAPIReachable = p.checkRemote(ctx)
	}

	p.last = state
	p.ok = true
	return state
}

// checkInternet tries each endpoint in order and reports reachable on the
// first 2xx-3xx response. Connection errors, DNS failures, and timeouts
// move on to the next endpoint.
func (p *Prober) checkInternet(ctx context.Context) bool {
	for _, endpoint := range p.cfg.Endpoints {
		reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			cancel()
			continue
		}
		resp, err := p.client.Do(req)
		cancel()
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return true
		}
	}
	return false
}

func (p *Prober) checkRemote(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.remote.Ping(reqCtx) == nil
}
