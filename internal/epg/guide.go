package epg

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// lookBehind covers programs that started before the fetch and are still airing.
const lookBehind = 6 * time.Hour

// Result is one window of the guide.
type Result struct {
	Window      string
	GeneratedAt time.Time
	Programs    []domain.Program
	Degraded    bool
}

// Options configures a Guide.
type Options struct {
	TTL        time.Duration
	Classifier *Classifier
	Logger     *zap.Logger
	Now        func() time.Time
}

type snapshot struct {
	programs  []domain.Program
	fetchedAt time.Time
}

// Guide serves classified programs from a cached copy of the feed. Concurrent
// cache misses share a single upstream fetch.
type Guide struct {
	source     Source
	classifier *Classifier
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache *snapshot
}

// NewGuide wires a Guide to a feed source.
func NewGuide(source Source, opts Options) *Guide {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewClassifier(DefaultKeywords())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Guide{
		source:     source,
		classifier: classifier,
		ttl:        opts.TTL,
		logger:     logger.Named("epg"),
		now:        now,
	}
}

// Programs returns the programs inside w. A failed fetch yields an empty,
// degraded result instead of an error.
func (g *Guide) Programs(ctx context.Context, w Window) Result {
	now := g.now().UTC()
	res := Result{Window: w.Name, GeneratedAt: now, Programs: []domain.Program{}}

	programs, err := g.load(ctx, now)
	if err != nil {
		g.logger.Warn("epg degraded", zap.String("window", w.Name), zap.Error(err))
		res.Degraded = true
		return res
	}
	res.Programs = w.Select(programs, now)
	return res
}

func (g *Guide) load(ctx context.Context, now time.Time) ([]domain.Program, error) {
	if programs, ok := g.cached(now); ok {
		return programs, nil
	}

	ch := g.group.DoChan("feed", func() (interface{}, error) {
		if programs, ok := g.cached(now); ok {
			return programs, nil
		}
		// The shared fetch outlives any single caller.
		return g.refresh(context.WithoutCancel(ctx), now)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]domain.Program), nil
	}
}

// SetClassifier swaps the keyword classifier and drops the cached feed so the
// next request reclassifies.
func (g *Guide) SetClassifier(c *Classifier) {
	g.mu.Lock()
	g.classifier = c
	g.cache = nil
	g.mu.Unlock()
}

func (g *Guide) cached(now time.Time) ([]domain.Program, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.cache == nil || g.ttl <= 0 || now.Sub(g.cache.fetchedAt) >= g.ttl {
		return nil, false
	}
	return g.cache.programs, true
}

func (g *Guide) refresh(ctx context.Context, now time.Time) ([]domain.Program, error) {
	// A snapshot serves windows until it expires, so it must reach MaxUpcoming
	// past the last instant it can be read at.
	horizon := MaxUpcoming
	if g.ttl > 0 {
		horizon += g.ttl
	}
	channels, err := g.source.Fetch(ctx, now.Add(-lookBehind), now.Add(horizon))
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	classifier := g.classifier
	g.mu.RUnlock()
	programs := Normalize(channels, classifier)

	g.mu.Lock()
	g.cache = &snapshot{programs: programs, fetchedAt: now}
	g.mu.Unlock()

	g.logger.Info("epg refreshed",
		zap.Int("channels", len(channels)),
		zap.Int("programs", len(programs)),
	)
	return programs, nil
}

// Warm refreshes the cache every interval until ctx is cancelled. Failures are
// logged and retried on the next tick.
func (g *Guide) Warm(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := g.refresh(ctx, g.now().UTC()); err != nil && ctx.Err() == nil {
			g.logger.Warn("epg warm failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
