// Package health serves liveness and readiness probes.
//
// Each probe runs in the background at a fixed interval. A probe flips to
// unhealthy after failureThreshold consecutive failures and back after
// successThreshold consecutive successes, so a single slow ping does not
// take the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a probe reports to.
type Kind uint8

const (
	Liveness Kind = iota
	Readiness
)

type probe struct {
	kind    Kind
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the probe goroutine.
	fails int
	oks   int
}

// run executes the check once. Not safe for concurrent use.
func (p *probe) run(ctx context.Context, lg *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	if err == nil {
		p.fails = 0
		p.oks++
		p.lastErr.Store(nil)
		if p.oks >= successThreshold && !p.healthy.Swap(true) {
			lg.Info("Health check recovered", zap.String("check", p.name))
		}
		return
	}

	msg := err.Error()
	p.lastErr.Store(&msg)
	p.oks = 0
	p.fails++
	if p.fails >= failureThreshold && p.healthy.Swap(false) {
		lg.Warn("Health check failing", zap.String("check", p.name), zap.Error(err))
	}
}

func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if msg := p.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is unhealthy", true
}

// Health tracks probes and the manual readiness flag.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
}

// New creates a Health that starts not ready.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// Register adds a probe. Probes start healthy.
func (h *Health) Register(kind Kind, name string, timeout time.Duration, check CheckFunc) {
	p := &probe{kind: kind, name: name, timeout: timeout, check: check}
	p.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// Run executes every probe each interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	h.mu.RLock()
	probes := slices.Clone(h.probes)
	h.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx, h.lg)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

// SetReady toggles the manual readiness flag. It is set once dependencies
// are wired and cleared when draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Ready reports whether the flag is set and every readiness probe passes.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, p := range h.probes {
		if p.kind != kind {
			continue
		}
		if msg, failed := p.failure(); failed {
			out[p.name] = msg
		}
	}
	return out
}

// Livez serves the liveness endpoint.
func (h *Health) Livez(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// Readyz serves the readiness endpoint.
func (h *Health) Readyz(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status, code := "ok", http.StatusOK
	if len(failures) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	var e jx.Encoder
	e.ObjStart()
	e.Field("status", func(e *jx.Encoder) { e.Str(status) })
	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.ObjStart()
			for _, name := range names {
				e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
			}
			e.ObjEnd()
		})
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
