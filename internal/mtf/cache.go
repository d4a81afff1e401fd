// Package mtf provides the multi-timeframe candle cache.
package mtf

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/internal/timeframe"
)

// Fetcher pulls candles for one (symbol, timeframe) from an external source.
// Results are ascending by timestamp and bucket-aligned. since, when non-nil,
// is the earliest timestamp of interest.
type Fetcher interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int, since *int64) ([]models.Candle, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, symbol, timeframe string, limit int, since *int64) ([]models.Candle, error)

// FetchCandles calls f.
func (f FetcherFunc) FetchCandles(ctx context.Context, symbol, tf string, limit int, since *int64) ([]models.Candle, error) {
	return f(ctx, symbol, tf, limit, since)
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	Symbol     string
	Timeframes []string
	Capacity   int
	// Fetcher is optional; without it RefreshAll is a no-op and the cache is
	// fed through Append.
	Fetcher Fetcher
}

// series is a bounded, time-ascending window for one timeframe.
type series struct {
	tfMs    int64
	candles []models.Candle
}

// Cache holds one bounded candle series per tracked timeframe for a symbol.
type Cache struct {
	symbol   string
	capacity int
	fetcher  Fetcher
	order    []string
	series   map[string]*series
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewCache creates a cache tracking cfg.Timeframes. Timeframes are stored in
// their canonical form ("1H" is tracked as "1h").
func NewCache(cfg CacheConfig, logger zerolog.Logger) (*Cache, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", cfg.Capacity)
	}
	if len(cfg.Timeframes) == 0 {
		return nil, fmt.Errorf("cache needs at least one timeframe")
	}

	c := &Cache{
		symbol:   cfg.Symbol,
		capacity: cfg.Capacity,
		fetcher:  cfg.Fetcher,
		series:   make(map[string]*series, len(cfg.Timeframes)),
		logger:   logger.With().Str("component", "mtf_cache").Str("symbol", cfg.Symbol).Logger(),
	}

	for _, tf := range cfg.Timeframes {
		spec, err := timeframe.Parse(tf)
		if err != nil {
			return nil, err
		}
		name := spec.String()
		if _, dup := c.series[name]; dup {
			continue
		}
		c.series[name] = &series{tfMs: spec.Ms, candles: make([]models.Candle, 0, cfg.Capacity)}
		c.order = append(c.order, name)
	}

	// Shortest timeframe first.
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.series[c.order[i]].tfMs < c.series[c.order[j]].tfMs
	})

	return c, nil
}

// Symbol returns the symbol the cache tracks.
func (c *Cache) Symbol() string {
	return c.symbol
}

// Capacity returns the per-timeframe bound.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Timeframes returns the tracked timeframes, shortest first.
func (c *Cache) Timeframes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// lookup resolves tf to its series. Callers hold c.mu.
func (c *Cache) lookup(tf string) (*series, string, error) {
	name, err := timeframe.Normalize(tf)
	if err != nil {
		return nil, "", err
	}
	s, ok := c.series[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", errors.ErrUnknownTimeframe, tf)
	}
	return s, name, nil
}

// Candles returns a copy of the cached series for tf, oldest first.
func (c *Cache) Candles(tf string) ([]models.Candle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, _, err := c.lookup(tf)
	if err != nil {
		return nil, err
	}
	out := make([]models.Candle, len(s.candles))
	copy(out, s.candles)
	return out, nil
}

// Latest returns the newest candle for tf, if any.
func (c *Cache) Latest(tf string) (models.Candle, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, _, err := c.lookup(tf)
	if err != nil {
		return models.Candle{}, false, err
	}
	if len(s.candles) == 0 {
		return models.Candle{}, false, nil
	}
	return s.candles[len(s.candles)-1], true, nil
}

// Snapshot returns a copy of every tracked series keyed by timeframe.
func (c *Cache) Snapshot() map[string][]models.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]models.Candle, len(c.series))
	for name, s := range c.series {
		cp := make([]models.Candle, len(s.candles))
		copy(cp, s.candles)
		out[name] = cp
	}
	return out
}

// Append adds one candle to its timeframe's series. A candle with the same
// timestamp as the newest one replaces it (the in-progress bucket); an older
// candle is rejected with errors.ErrOutOfOrder. Misaligned candles are
// rejected with an *errors.AlignmentError.
func (c *Cache) Append(candle models.Candle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, name, err := c.lookup(candle.Timeframe)
	if err != nil {
		return err
	}
	candle.Timeframe = name
	return c.push(s, candle)
}

func (c *Cache) push(s *series, candle models.Candle) error {
	if err := timeframe.AssertAligned(candle.Timestamp, s.tfMs, "candle"); err != nil {
		return err
	}

	if n := len(s.candles); n > 0 {
		last := s.candles[n-1].Timestamp
		switch {
		case candle.Timestamp == last:
			s.candles[n-1] = candle
			return nil
		case candle.Timestamp < last:
			return fmt.Errorf("%w: %s %d < %d", errors.ErrOutOfOrder, candle.Timeframe, candle.Timestamp, last)
		}
	}

	if len(s.candles) < c.capacity {
		s.candles = append(s.candles, candle)
		return nil
	}
	// FIFO eviction reusing the backing array.
	copy(s.candles, s.candles[1:])
	s.candles[len(s.candles)-1] = candle
	return nil
}

// RefreshAll pulls fresh candles for every tracked timeframe from the
// fetcher. It is a no-op when the cache has no fetcher. Candles older than
// the newest cached one are ignored.
func (c *Cache) RefreshAll(ctx context.Context) error {
	if c.fetcher == nil {
		return nil
	}

	for _, name := range c.order {
		if err := c.refresh(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) refresh(ctx context.Context, name string) error {
	c.mu.RLock()
	s := c.series[name]
	var since *int64
	limit := c.capacity
	if n := len(s.candles); n > 0 {
		last := s.candles[n-1].Timestamp
		since = &last
	}
	c.mu.RUnlock()

	fetched, err := c.fetcher.FetchCandles(ctx, c.symbol, name, limit, since)
	if err != nil {
		return errors.NewDataError("candles", c.symbol, "refreshing "+name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added, skipped := 0, 0
	for _, candle := range fetched {
		candle.Timeframe = name
		if candle.Symbol == "" {
			candle.Symbol = c.symbol
		}
		if n := len(s.candles); n > 0 && candle.Timestamp < s.candles[n-1].Timestamp {
			skipped++
			continue
		}
		if err := c.push(s, candle); err != nil {
			return errors.Wrapf(err, "refreshing %s", name)
		}
		added++
	}

	c.logger.Debug().
		Str("timeframe", name).
		Int("fetched", len(fetched)).
		Int("applied", added).
		Int("skipped", skipped).
		Msg("Timeframe refreshed")
	return nil
}
