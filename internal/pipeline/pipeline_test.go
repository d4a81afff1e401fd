package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"signal-trader/internal/account"
	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	xerrors "signal-trader/internal/errors"
	"signal-trader/internal/metrics"
	"signal-trader/internal/models"
	"signal-trader/internal/mtf"
	"signal-trader/internal/resilience"
	"signal-trader/internal/risk"
	"signal-trader/internal/snapshot"
	"signal-trader/internal/timeframe"
	"signal-trader/pkg/utils"
)

const (
	testSymbol = "BTC/USDT"
	baseTs     = int64(1735689600000) // 2025-01-01T00:00:00Z
)

// scripted returns its intents in order, then NO_ACTION.
type scripted struct {
	intents []models.IntentAction
	seen    []*snapshot.TickSnapshot
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Evaluate(snap *snapshot.TickSnapshot) models.TradeIntent {
	s.seen = append(s.seen, snap)
	if len(s.intents) == 0 {
		return models.NoAction(snap.Symbol, "script exhausted")
	}
	action := s.intents[0]
	s.intents = s.intents[1:]
	return models.TradeIntent{Symbol: snap.Symbol, Action: action, Reason: "scripted"}
}

func testRisk() config.RiskConfig {
	return config.RiskConfig{
		MaxLeverage:         3,
		RiskPerTradePercent: 0.01,
		MaxPositions:        1,
		StopLossPercent:     1,
		TakeProfitPercent:   10,
		MinPositionSize:     0.001,
		MaxPositionSize:     10,
	}
}

func bar(i int, open, high, low, close float64) models.Candle {
	return models.Candle{
		Symbol:    testSymbol,
		Timeframe: "1m",
		Timestamp: baseTs + int64(i)*timeframe.MinuteMs,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    10,
	}
}

func flat(i int, price float64) models.Candle {
	return bar(i, price, price+0.5, price-0.5, price)
}

type harness struct {
	runner   *Runner
	broker   *broker.PaperBroker
	cache    *mtf.Cache
	ledger   *account.Paper
	metrics  *metrics.Metrics
	strategy *scripted
}

func newHarness(t *testing.T, rc config.RiskConfig, timeframes []string, intents ...models.IntentAction) *harness {
	t.Helper()
	h := &harness{
		ledger:   account.NewPaper(10000),
		metrics:  metrics.New(),
		strategy: &scripted{intents: intents},
	}

	cache, err := mtf.NewCache(mtf.CacheConfig{Symbol: testSymbol, Timeframes: timeframes, Capacity: 100}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	h.cache = cache

	h.broker = broker.NewPaperBroker(broker.PaperBrokerConfig{
		StartingBalance: 10000,
		FeeRate:         0.0004,
		OnClose:         func(tr models.ClosedTrade) { h.runner.OnClosedTrade(tr) },
	}, zerolog.Nop())

	h.runner, err = New(Config{SignalVenue: "binance", ExecutionTimeframe: "1m"}, Deps{
		Cache:    cache,
		Strategy: h.strategy,
		Risk:     risk.NewEngine(rc),
		Broker:   h.broker,
		Ledger:   h.ledger,
		Metrics:  h.metrics,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func (h *harness) feed(t *testing.T, c models.Candle) {
	t.Helper()
	h.broker.OnCandle(c)
	if err := h.cache.Append(c); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}, Deps{}, zerolog.Nop()); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestStepEmptyCache(t *testing.T) {
	h := newHarness(t, testRisk(), []string{"1m"})
	if _, err := h.runner.Step(context.Background()); err == nil {
		t.Error("Step() on empty cache should fail")
	}
}

func TestStepOpensBracket(t *testing.T) {
	h := newHarness(t, testRisk(), []string{"1m"}, models.IntentOpenLong)
	h.feed(t, flat(0, 100))

	res, err := h.runner.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if res.Plan == nil || res.Plan.Action != models.PlanOpen || res.Plan.Amount != 10 {
		t.Fatalf("plan = %+v, want OPEN of 10", res.Plan)
	}
	if d := res.EffectiveRisk - 0.001; d > 1e-9 || d < -1e-9 {
		t.Errorf("EffectiveRisk = %v, want 0.001", res.EffectiveRisk)
	}
	if res.Report == nil || res.Report.StopOrderID == "" || res.Report.TakeProfitOrderID == "" {
		t.Fatalf("report = %+v, want full bracket", res.Report)
	}

	orders, _ := h.broker.OpenOrders(context.Background(), testSymbol)
	if len(orders) != 2 {
		t.Errorf("open orders = %d, want 2", len(orders))
	}
	if got := testutil.ToFloat64(h.metrics.Plans.WithLabelValues("OPEN")); got != 1 {
		t.Errorf("plans{OPEN} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.Orders.WithLabelValues("stop")); got != 1 {
		t.Errorf("orders{stop} = %v, want 1", got)
	}
	if res.Account.StartingBalance != 10000 {
		t.Errorf("account snapshot missing: %+v", res.Account)
	}
}

func TestStepSkipsCloseWithoutPosition(t *testing.T) {
	h := newHarness(t, testRisk(), []string{"1m"}, models.IntentCloseLong)
	h.feed(t, flat(0, 100))

	res, err := h.runner.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if res.Skip != risk.SkipNoPositionToClose || res.Plan != nil {
		t.Errorf("res = %+v, want no_position_to_close skip", res)
	}
	if got := testutil.ToFloat64(h.metrics.Skips.WithLabelValues("no_position_to_close")); got != 1 {
		t.Errorf("skips = %v, want 1", got)
	}
}

func TestStepReconcilesOppositeOpen(t *testing.T) {
	h := newHarness(t, testRisk(), []string{"1m"}, models.IntentOpenLong, models.IntentOpenShort)
	ctx := context.Background()

	h.feed(t, flat(0, 100))
	if _, err := h.runner.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	h.feed(t, flat(1, 100.2))
	res, err := h.runner.Step(ctx)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if res.Intent.Action != models.IntentCloseLong || res.Plan == nil || res.Plan.Action != models.PlanClose {
		t.Fatalf("res = %+v, want reconciled CLOSE", res)
	}
	if len(res.Closed) != 1 || res.Closed[0].Reason != broker.ReasonSignal {
		t.Errorf("closed = %+v, want one signal close", res.Closed)
	}

	acct, _ := h.broker.FetchAccount(ctx)
	if len(acct.Positions) != 0 {
		t.Errorf("positions = %+v, want flat", acct.Positions)
	}
	orders, _ := h.broker.OpenOrders(ctx, testSymbol)
	if len(orders) != 0 {
		t.Errorf("protective orders left after close: %d", len(orders))
	}
}

func TestStepTrailsStop(t *testing.T) {
	rc := testRisk()
	rc.TrailingActivationPercent = 1
	rc.TrailingTrailPercent = 0.5
	h := newHarness(t, rc, []string{"1m"}, models.IntentOpenLong)
	ctx := context.Background()

	h.feed(t, flat(0, 100))
	if _, err := h.runner.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	h.feed(t, bar(1, 100, 102.2, 99.8, 102))
	if _, err := h.runner.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	orders, _ := h.broker.OpenOrders(ctx, testSymbol)
	var stop float64
	for _, o := range orders {
		if o.Request.Type == models.OrderTypeStop {
			stop = *o.Request.Price
		}
	}
	// 102 * (1 - 0.005)
	if stop != 101.49 {
		t.Errorf("stop = %v, want 101.49", stop)
	}
}

func liveRunner(t *testing.T, fetcher mtf.Fetcher, intents ...models.IntentAction) *Runner {
	t.Helper()
	cache, err := mtf.NewCache(mtf.CacheConfig{
		Symbol:     testSymbol,
		Timeframes: []string{"1m"},
		Capacity:   100,
		Fetcher:    fetcher,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	var r *Runner
	pb := broker.NewPaperBroker(broker.PaperBrokerConfig{
		StartingBalance: 10000,
		OnClose:         func(tr models.ClosedTrade) { r.OnClosedTrade(tr) },
	}, zerolog.Nop())
	r, err = New(Config{
		SignalVenue:        "binance",
		ExecutionTimeframe: "1m",
		Live:               true,
		Retry:              utils.RetryConfig{MaxAttempts: 1},
		Breaker:            resilience.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Hour},
	}, Deps{
		Cache:    cache,
		Strategy: &scripted{intents: intents},
		Risk:     risk.NewEngine(testRisk()),
		Broker:   pb,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

// growingFeed serves candles at or after since, like the candle store.
type growingFeed struct {
	candles []models.Candle
}

func (f *growingFeed) FetchCandles(_ context.Context, _, _ string, _ int, since *int64) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range f.candles {
		if since == nil || c.Timestamp >= *since {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestStepLiveFillsRestingStopFromRefreshedCandle(t *testing.T) {
	feed := &growingFeed{candles: []models.Candle{flat(0, 100)}}
	r := liveRunner(t, feed, models.IntentOpenLong)
	ctx := context.Background()

	res, err := r.Step(ctx)
	if err != nil {
		t.Fatalf("first Step() error = %v", err)
	}
	if res.Report == nil || res.Report.StopOrderID == "" {
		t.Fatalf("report = %+v, want bracket", res.Report)
	}

	feed.candles = append(feed.candles, bar(1, 100, 100.2, 98.5, 99.2))
	res, err = r.Step(ctx)
	if err != nil {
		t.Fatalf("second Step() error = %v", err)
	}
	if len(res.Closed) != 1 {
		t.Fatalf("closed = %+v, want the stop-loss exit", res.Closed)
	}
	if res.Closed[0].ExitPrice != 99 || res.Closed[0].RealizedPnL >= 0 {
		t.Errorf("closed trade = %+v, want loss at 99", res.Closed[0])
	}
	if res.Price != 99.2 {
		t.Errorf("Price = %v, want 99.2", res.Price)
	}
}

func TestStepLiveRefreshesCache(t *testing.T) {
	fetcher := mtf.FetcherFunc(func(_ context.Context, _, _ string, _ int, since *int64) ([]models.Candle, error) {
		if since != nil {
			return nil, nil
		}
		return []models.Candle{flat(0, 100), flat(1, 101)}, nil
	})
	r := liveRunner(t, fetcher)

	res, err := r.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if res.Price != 101 {
		t.Errorf("Price = %v, want 101", res.Price)
	}
	if res.Intent.Action != models.IntentNoAction {
		t.Errorf("Intent = %s, want no action", res.Intent.Action)
	}
}

func TestStepLiveOpensBreakerOnFetchFailures(t *testing.T) {
	errVenue := errors.New("venue down")
	calls := 0
	fetcher := mtf.FetcherFunc(func(context.Context, string, string, int, *int64) ([]models.Candle, error) {
		calls++
		return nil, errVenue
	})
	r := liveRunner(t, fetcher)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := r.Step(ctx); !errors.Is(err, errVenue) {
			t.Fatalf("step %d: err = %v, want venue error", i, err)
		}
	}
	var buf bytes.Buffer
	r.logger = zerolog.New(&buf)
	if _, err := r.Step(ctx); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("third step err = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("fetcher calls = %d, want 2", calls)
	}
	if out := buf.String(); !strings.Contains(out, "Refresh skipped while circuit open") || !strings.Contains(out, `"rejected":1`) {
		t.Errorf("missing open-circuit log, got:\n%s", out)
	}
}

// stopRejecter forwards to a paper broker but fails every stop order.
type stopRejecter struct {
	*broker.PaperBroker
}

func (s stopRejecter) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	if req.Type == models.OrderTypeStop {
		return nil, xerrors.ErrOrderRejected
	}
	return s.PaperBroker.CreateOrder(ctx, req)
}

func TestStepLogsIncompleteBracket(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	cache, err := mtf.NewCache(mtf.CacheConfig{Symbol: testSymbol, Timeframes: []string{"1m"}, Capacity: 10}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	pb := broker.NewPaperBroker(broker.PaperBrokerConfig{StartingBalance: 10000}, zerolog.Nop())
	r, err := New(Config{SignalVenue: "binance", ExecutionTimeframe: "1m"}, Deps{
		Cache:    cache,
		Strategy: &scripted{intents: []models.IntentAction{models.IntentOpenLong}},
		Risk:     risk.NewEngine(testRisk()),
		Broker:   stopRejecter{pb},
	}, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c := flat(0, 100)
	pb.OnCandle(c)
	if err := cache.Append(c); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	res, err := r.Step(context.Background())
	var partial *xerrors.PartialExecutionError
	if !errors.As(err, &partial) {
		t.Fatalf("Step() err = %v, want PartialExecutionError", err)
	}
	if res.Report == nil || res.Report.EntryOrderID != partial.EntryOrderID {
		t.Errorf("report = %+v, want entry %s", res.Report, partial.EntryOrderID)
	}

	out := buf.String()
	if !strings.Contains(out, "Bracket incomplete") || !strings.Contains(out, `"order_id":"`+partial.EntryOrderID+`"`) {
		t.Errorf("missing incomplete-bracket log with order id, got:\n%s", out)
	}
}
