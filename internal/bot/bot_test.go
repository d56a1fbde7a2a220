package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/internal/ledger"
	"github.com/Qwalex/QTrader/internal/market"
	"github.com/Qwalex/QTrader/internal/strategy"
	"github.com/Qwalex/QTrader/pkg/models"
)

// fakeClient детерминированный источник рыночных данных для тестов
type fakeClient struct {
	candles []models.Candle
	ticker  *models.Ticker
	err     error

	mu       sync.Mutex
	seenCtxs []context.Context
}

func (f *fakeClient) GetCandles(ctx context.Context, symbol string, intervalMinutes, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	f.seenCtxs = append(f.seenCtxs, ctx)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ticker, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Symbols:                 []string{"TESTUSDT"},
			IntervalMinutes:         15,
			CandleLimit:             200,
			RefreshLimit:            50,
			AnalysisIntervalSeconds: 300,
		},
		Strategy: config.StrategyConfig{
			ConfirmationCandles:     3,
			SupportResistancePeriod: 20,
			MinVolumeThreshold:      50,
		},
		Demo: config.DemoConfig{Balance: 10000, RiskPercent: 2, MaxPositions: 3},
	}
}

func flatCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		price := 100 + float64(i%5)
		candles[i] = models.Candle{Timestamp: int64(i), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 100}
	}
	return candles
}

func newTestBot(client MarketData) *Bot {
	cfg := testConfig()
	return New(cfg, client, strategy.NewEngine(cfg.Strategy), ledger.New(cfg.Demo), market.NewStore(cfg.Trading.CandleLimit))
}

func TestStartStopLifecycle(t *testing.T) {
	b := newTestBot(&fakeClient{candles: flatCandles(150), ticker: &models.Ticker{Symbol: "TESTUSDT", Price: 100}})

	require.NoError(t, b.Start())
	assert.True(t, b.Running())
	assert.Error(t, b.Start())

	require.NoError(t, b.Stop())
	assert.False(t, b.Running())
	assert.Error(t, b.Stop())
}

func TestStopDoesNotInterruptProviderCalls(t *testing.T) {
	client := &fakeClient{candles: flatCandles(150), ticker: &models.Ticker{Symbol: "TESTUSDT", Price: 100}}
	b := newTestBot(client)

	require.NoError(t, b.Start())
	require.NoError(t, b.Stop())

	// Остановка прекращает планирование циклов, но не отменяет контексты
	// запросов к провайдеру
	client.mu.Lock()
	defer client.mu.Unlock()
	require.NotEmpty(t, client.seenCtxs)
	for _, ctx := range client.seenCtxs {
		assert.NoError(t, ctx.Err())
	}
}

func TestPerformTickCachesAnalysis(t *testing.T) {
	b := newTestBot(&fakeClient{candles: flatCandles(150), ticker: &models.Ticker{Symbol: "TESTUSDT", Price: 100}})

	b.performTick(context.Background())

	result := b.Analysis("TESTUSDT")
	require.NotNil(t, result)
	assert.NotZero(t, result.CurrentPrice)
	assert.Nil(t, b.Analysis("UNKNOWN"))
}

func TestPerformTickToleratesProviderErrors(t *testing.T) {
	b := newTestBot(&fakeClient{err: errors.New("сеть недоступна")})

	b.performTick(context.Background())

	assert.Nil(t, b.Analysis("TESTUSDT"))
	assert.Empty(t, b.ActivePositions())
}

func TestStatusReportsWindows(t *testing.T) {
	b := newTestBot(&fakeClient{candles: flatCandles(150), ticker: &models.Ticker{Symbol: "TESTUSDT", Price: 100}})

	b.performTick(context.Background())

	status := b.Status()
	assert.False(t, status.Running)
	require.Len(t, status.Windows, 1)
	assert.Equal(t, "TESTUSDT", status.Windows[0].Symbol)
	assert.Equal(t, 150, status.Windows[0].Candles)
}

func TestOpenManualPositionRequiresRunning(t *testing.T) {
	b := newTestBot(&fakeClient{candles: flatCandles(150), ticker: &models.Ticker{Symbol: "TESTUSDT", Price: 100}})

	_, err := b.OpenManualPosition(context.Background(), "TESTUSDT", models.PositionLong)

	assert.Error(t, err)
}

func TestManualPositionLifecycle(t *testing.T) {
	b := newTestBot(&fakeClient{candles: flatCandles(150), ticker: &models.Ticker{Symbol: "TESTUSDT", Price: 100}})

	require.NoError(t, b.Start())
	defer func() {
		if b.Running() {
			_ = b.Stop()
		}
	}()

	position, err := b.OpenManualPosition(context.Background(), "TESTUSDT", models.PositionShort)
	require.NoError(t, err)
	assert.Equal(t, models.PositionShort, position.Type)
	assert.Equal(t, 100.0, position.EntryPrice)

	closed, err := b.CloseManualPosition(context.Background(), "TESTUSDT")
	require.NoError(t, err)
	assert.Equal(t, models.CloseManual, closed.CloseReason)
	assert.Empty(t, b.ActivePositions())
}

func TestManualPositionWithoutQuote(t *testing.T) {
	b := newTestBot(&fakeClient{err: errors.New("сеть недоступна")})

	_, err := b.CloseManualPosition(context.Background(), "TESTUSDT")

	assert.Error(t, err)
}
