package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const (
	bloomMinCapacity = 1024
	bloomFPR         = 0.001
)

// CodeSource is the part of Repository the BloomGuard needs.
type CodeSource interface {
	Finder
	ListCodes(ctx context.Context) ([]string, error)
}

// BloomGuard is a Finder that tracks the set of stored codes in a bloom
// filter. Codes outside the filter are still looked up, since other
// processes (imports, seeding, other API instances) write coupons too;
// found codes are added so later lookups hit the filter.
type BloomGuard struct {
	src CodeSource

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	misses uint64
}

var _ Finder = (*BloomGuard)(nil)

// NewBloomGuard wraps src with a code filter.
func NewBloomGuard(src CodeSource) *BloomGuard {
	return &BloomGuard{src: src}
}

// FindActiveByCode defers to the source. A code missing from the filter
// that the source knows is added to it.
func (g *BloomGuard) FindActiveByCode(ctx context.Context, code string) (*Coupon, error) {
	code = NormalizeCode(code)

	g.mu.RLock()
	unknown := g.filter != nil && !g.filter.TestString(code)
	g.mu.RUnlock()

	c, err := g.src.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if unknown {
		g.mu.Lock()
		g.misses++
		g.mu.Unlock()
		zctx.From(ctx).Debug("Coupon code missing from filter", zap.String("code", code))
		g.Add(code)
	}
	return c, nil
}

// Misses returns how many found codes were missing from the filter since
// the last Refresh.
func (g *BloomGuard) Misses() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.misses
}

// Add records a newly created code so it is counted as known before the next
// Refresh.
func (g *BloomGuard) Add(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.filter != nil {
		g.filter.AddString(NormalizeCode(code))
	}
}

// Refresh rebuilds the filter from every stored code.
func (g *BloomGuard) Refresh(ctx context.Context) error {
	codes, err := g.src.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}

	capacity := uint(2 * len(codes))
	if capacity < bloomMinCapacity {
		capacity = bloomMinCapacity
	}
	filter := bloom.NewWithEstimates(capacity, bloomFPR)
	for _, code := range codes {
		filter.AddString(NormalizeCode(code))
	}

	g.mu.Lock()
	g.filter = filter
	g.misses = 0
	g.mu.Unlock()

	return nil
}

// Run refreshes the filter every interval until ctx is cancelled. Refresh
// failures are logged and keep the previous filter.
func (g *BloomGuard) Run(ctx context.Context, interval time.Duration) error {
	lg := zctx.From(ctx)
	if err := g.Refresh(ctx); err != nil {
		lg.Warn("Initial coupon filter refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if misses := g.Misses(); misses > 0 {
				lg.Info("Coupon codes added outside refresh", zap.Uint64("count", misses))
			}
			if err := g.Refresh(ctx); err != nil {
				lg.Warn("Coupon filter refresh failed", zap.Error(err))
			}
		}
	}
}
