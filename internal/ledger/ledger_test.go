package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/models"
)

func testLedger() *Ledger {
	return New(config.DemoConfig{Balance: 10000, RiskPercent: 2, MaxPositions: 3})
}

func buySignal() *models.Signal {
	return &models.Signal{Type: models.SignalBuy, Level: 100, CurrentPrice: 100, Strength: 2}
}

func sellSignal() *models.Signal {
	return &models.Signal{Type: models.SignalSell, Level: 100, CurrentPrice: 100, Strength: 2}
}

func TestOpenPositionLong(t *testing.T) {
	l := testLedger()

	position, err := l.OpenPosition("BTCUSDT", buySignal(), 100)

	require.NoError(t, err)
	assert.Equal(t, models.PositionLong, position.Type)
	assert.Equal(t, 100.0, position.EntryPrice)
	assert.InDelta(t, 98.0, position.StopLoss, 1e-9)
	assert.InDelta(t, 104.0, position.TakeProfit, 1e-9)
	assert.Equal(t, models.PositionOpen, position.Status)
	assert.NotEmpty(t, position.ID)

	// riskAmount 200 / дистанция до стопа 2 = размер 100
	assert.InDelta(t, 100.0, position.Size, 1e-9)

	stats := l.Statistics()
	assert.InDelta(t, 9900.0, stats.AvailableBalance, 1e-9)
	assert.Equal(t, 1, stats.ActivePositions)
}

func TestOpenPositionShort(t *testing.T) {
	l := testLedger()

	position, err := l.OpenPosition("BTCUSDT", sellSignal(), 100)

	require.NoError(t, err)
	assert.Equal(t, models.PositionShort, position.Type)
	assert.InDelta(t, 102.0, position.StopLoss, 1e-9)
	assert.InDelta(t, 96.0, position.TakeProfit, 1e-9)
}

func TestOpenPositionDuplicateSymbol(t *testing.T) {
	l := testLedger()

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	_, err = l.OpenPosition("BTCUSDT", buySignal(), 100)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestOpenPositionMaxPositions(t *testing.T) {
	l := New(config.DemoConfig{Balance: 10000, RiskPercent: 2, MaxPositions: 1})

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	_, err = l.OpenPosition("ETHUSDT", buySignal(), 100)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestOpenPositionInsufficientFunds(t *testing.T) {
	l := New(config.DemoConfig{Balance: 0, RiskPercent: 2, MaxPositions: 3})

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestUpdatePositionsStopLoss(t *testing.T) {
	l := testLedger()

	opened, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	closed := l.UpdatePositions(map[string]float64{"BTCUSDT": 97.9})

	require.Len(t, closed, 1)
	assert.Equal(t, models.CloseStopLoss, closed[0].CloseReason)
	assert.Equal(t, models.PositionClosed, closed[0].Status)
	assert.Equal(t, 97.9, closed[0].ExitPrice)
	assert.InDelta(t, (97.9-100)*opened.Size, closed[0].PnL, 1e-9)

	stats := l.Statistics()
	assert.Equal(t, 0, stats.ActivePositions)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 0, stats.WinningTrades)
	assert.InDelta(t, 10000+closed[0].PnL, stats.TotalBalance, 1e-9)
}

func TestUpdatePositionsTakeProfit(t *testing.T) {
	l := testLedger()

	opened, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	closed := l.UpdatePositions(map[string]float64{"BTCUSDT": 104.5})

	require.Len(t, closed, 1)
	assert.Equal(t, models.CloseTakeProfit, closed[0].CloseReason)
	assert.InDelta(t, (104.5-100)*opened.Size, closed[0].PnL, 1e-9)

	stats := l.Statistics()
	assert.Equal(t, 1, stats.WinningTrades)
	assert.InDelta(t, 100.0, stats.WinRate, 1e-9)
}

func TestUpdatePositionsShortStopLoss(t *testing.T) {
	l := testLedger()

	opened, err := l.OpenPosition("BTCUSDT", sellSignal(), 100)
	require.NoError(t, err)

	closed := l.UpdatePositions(map[string]float64{"BTCUSDT": 102.5})

	require.Len(t, closed, 1)
	assert.Equal(t, models.CloseStopLoss, closed[0].CloseReason)
	assert.InDelta(t, (100-102.5)*opened.Size, closed[0].PnL, 1e-9)
}

func TestUpdatePositionsRefreshesUnrealizedPnL(t *testing.T) {
	l := testLedger()

	opened, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	closed := l.UpdatePositions(map[string]float64{"BTCUSDT": 101})
	assert.Empty(t, closed)

	active := l.ActivePositions()
	require.Len(t, active, 1)
	assert.InDelta(t, (101-100)*opened.Size, active[0].PnL, 1e-9)
}

func TestUpdatePositionsSkipsSymbolsWithoutPrice(t *testing.T) {
	l := testLedger()

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	closed := l.UpdatePositions(map[string]float64{"ETHUSDT": 1})

	assert.Empty(t, closed)
	assert.Len(t, l.ActivePositions(), 1)
}

func TestClosePositionManual(t *testing.T) {
	l := testLedger()

	opened, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)

	closed, err := l.ClosePosition("BTCUSDT", 101, models.CloseManual)

	require.NoError(t, err)
	assert.Equal(t, models.CloseManual, closed.CloseReason)
	assert.InDelta(t, opened.Size, closed.PnL, 1e-9)

	// Баланс: начальный плюс реализованный PnL
	stats := l.Statistics()
	assert.InDelta(t, 10000+closed.PnL, stats.TotalBalance, 1e-9)
	assert.Equal(t, stats.TotalBalance, stats.AvailableBalance)
}

func TestClosePositionNotFound(t *testing.T) {
	l := testLedger()

	_, err := l.ClosePosition("BTCUSDT", 100, models.CloseManual)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestTradeHistoryNewestFirst(t *testing.T) {
	l := testLedger()

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)
	_, err = l.ClosePosition("BTCUSDT", 101, models.CloseManual)
	require.NoError(t, err)

	_, err = l.OpenPosition("ETHUSDT", buySignal(), 10)
	require.NoError(t, err)
	_, err = l.ClosePosition("ETHUSDT", 10.1, models.CloseManual)
	require.NoError(t, err)

	history := l.TradeHistory(50)

	require.Len(t, history, 2)
	assert.Equal(t, "ETHUSDT", history[0].Position.Symbol)
	assert.Equal(t, "BTCUSDT", history[1].Position.Symbol)
	for _, entry := range history {
		assert.Equal(t, models.TradeActionClose, entry.Action)
	}
}

func TestTradeHistoryLimit(t *testing.T) {
	l := testLedger()

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	for _, symbol := range symbols {
		_, err := l.OpenPosition(symbol, buySignal(), 100)
		require.NoError(t, err)
		_, err = l.ClosePosition(symbol, 101, models.CloseManual)
		require.NoError(t, err)
	}

	history := l.TradeHistory(2)

	require.Len(t, history, 2)
	assert.Equal(t, "SOLUSDT", history[0].Position.Symbol)
	assert.Equal(t, "ETHUSDT", history[1].Position.Symbol)
}

func TestResetDemoBalance(t *testing.T) {
	l := testLedger()

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)
	_, err = l.ClosePosition("BTCUSDT", 90, models.CloseManual)
	require.NoError(t, err)

	l.ResetDemoBalance()

	stats := l.Statistics()
	assert.InDelta(t, 10000.0, stats.TotalBalance, 1e-9)
	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0, stats.ActivePositions)
	assert.Empty(t, l.TradeHistory(50))
}

// Инвариант: свободный баланс плюс размеры открытых позиций равны
// начальному балансу плюс реализованный PnL, при любой последовательности
// операций
func TestBalanceInvariant(t *testing.T) {
	l := testLedger()

	_, err := l.OpenPosition("BTCUSDT", buySignal(), 100)
	require.NoError(t, err)
	remaining, err := l.OpenPosition("ETHUSDT", sellSignal(), 50)
	require.NoError(t, err)

	closed, err := l.ClosePosition("BTCUSDT", 103, models.CloseManual)
	require.NoError(t, err)

	stats := l.Statistics()

	assert.InDelta(t, 10000+closed.PnL, stats.AvailableBalance+remaining.Size, 1e-9)
}
