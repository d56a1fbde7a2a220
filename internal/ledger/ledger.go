package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/models"
)

const (
	stopLossPercent   = 0.02 // фиксированный стоп-лосс 2% от входа
	takeProfitPercent = 0.04 // тейк-профит 4%: риск к прибыли 1:2
	maxBalanceShare   = 0.95 // не более 95% свободного баланса в одну позицию

	defaultHistoryLimit = 50
)

// ValidationError ошибка проверки условий торговой операции
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Ledger владеет демо-балансом, активными позициями и историей сделок.
// Все мутации сериализуются одним мьютексом: расчет размера позиции и
// списание баланса не должны чередоваться между конкурентными вызовами.
// Инвариант: balance + сумма размеров открытых позиций ==
// initialBalance + сумма реализованного PnL закрытых.
type Ledger struct {
	mu             sync.RWMutex
	initialBalance float64
	balance        float64 // свободные средства, размер открытых позиций уже списан
	riskPercent    float64
	maxPositions   int
	positions      map[string]*models.Position
	history        []models.TradeHistoryEntry
}

// New создает леджер с настройками демо-счёта
func New(cfg config.DemoConfig) *Ledger {
	return &Ledger{
		initialBalance: cfg.Balance,
		balance:        cfg.Balance,
		riskPercent:    cfg.RiskPercent,
		maxPositions:   cfg.MaxPositions,
		positions:      make(map[string]*models.Position),
	}
}

// OpenPosition открывает позицию по сигналу. По одному символу может
// существовать не более одной открытой позиции.
func (l *Ledger) OpenPosition(symbol string, signal *models.Signal, currentPrice float64) (*models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.positions) >= l.maxPositions {
		return nil, &ValidationError{Reason: "достигнут лимит максимального количества позиций"}
	}
	if _, exists := l.positions[symbol]; exists {
		return nil, &ValidationError{Reason: "позиция по данному символу уже существует"}
	}

	positionType := models.PositionLong
	if signal.Type == models.SignalSell {
		positionType = models.PositionShort
	}

	entryPrice := currentPrice
	var stopLoss, takeProfit float64
	if positionType == models.PositionLong {
		stopLoss = entryPrice * (1 - stopLossPercent)
		takeProfit = entryPrice * (1 + takeProfitPercent)
	} else {
		stopLoss = entryPrice * (1 + stopLossPercent)
		takeProfit = entryPrice * (1 - takeProfitPercent)
	}

	size := l.positionSize(entryPrice, stopLoss)
	if size <= 0 {
		return nil, &ValidationError{Reason: "недостаточно средств для открытия позиции"}
	}

	position := &models.Position{
		ID:         fmt.Sprintf("pos_%s", uuid.NewString()),
		Symbol:     symbol,
		Type:       positionType,
		EntryPrice: entryPrice,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Size:       size,
		EntryTime:  time.Now().UnixMilli(),
		Status:     models.PositionOpen,
	}

	l.positions[symbol] = position
	l.balance -= size

	l.history = append(l.history, models.TradeHistoryEntry{
		Action:    models.TradeActionOpen,
		Position:  *position,
		Timestamp: time.Now().UnixMilli(),
	})

	result := *position
	return &result, nil
}

// positionSize рассчитывает номинальный размер позиции от риска:
// riskPercent от свободного баланса, делённый на дистанцию до стопа,
// с потолком в 95% свободных средств. Вызывается под мьютексом.
func (l *Ledger) positionSize(entryPrice, stopLoss float64) float64 {
	riskAmount := l.balance * (l.riskPercent / 100)
	priceDifference := math.Abs(entryPrice - stopLoss)

	if priceDifference == 0 {
		return 0
	}

	size := riskAmount / priceDifference
	return math.Min(size, l.balance*maxBalanceShare)
}

// ClosePosition закрывает позицию по реальной котировке. Размер и PnL
// возвращаются на баланс, позиция архивируется в историю.
func (l *Ledger) ClosePosition(symbol string, exitPrice float64, reason models.CloseReason) (*models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closeLocked(symbol, exitPrice, reason)
}

// closeLocked общая логика закрытия, вызывается под мьютексом
func (l *Ledger) closeLocked(symbol string, exitPrice float64, reason models.CloseReason) (*models.Position, error) {
	position, ok := l.positions[symbol]
	if !ok {
		return nil, &ValidationError{Reason: "позиция не найдена"}
	}

	pnl := calculatePnL(position, exitPrice)

	l.balance += position.Size + pnl

	position.Status = models.PositionClosed
	position.ExitPrice = exitPrice
	position.ExitTime = time.Now().UnixMilli()
	position.PnL = pnl
	position.PnLPercent = (pnl / position.Size) * 100
	position.CloseReason = reason

	l.history = append(l.history, models.TradeHistoryEntry{
		Action:    models.TradeActionClose,
		Position:  *position,
		Timestamp: time.Now().UnixMilli(),
	})

	delete(l.positions, symbol)

	result := *position
	return &result, nil
}

// UpdatePositions переоценивает открытые позиции по последним ценам.
// Для каждой позиции сначала проверяется стоп-лосс, затем тейк-профит;
// порядок зафиксирован для детерминизма, если оба условия когда-либо
// совпадут на одном тике. Возвращает закрытые на этом проходе позиции.
func (l *Ledger) UpdatePositions(latestPrices map[string]float64) []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var closed []models.Position

	for symbol, position := range l.positions {
		price, ok := latestPrices[symbol]
		if !ok {
			continue
		}

		if stopLossHit(position, price) {
			if p, err := l.closeLocked(symbol, price, models.CloseStopLoss); err == nil {
				closed = append(closed, *p)
			}
			continue
		}

		if takeProfitHit(position, price) {
			if p, err := l.closeLocked(symbol, price, models.CloseTakeProfit); err == nil {
				closed = append(closed, *p)
			}
			continue
		}

		position.PnL = calculatePnL(position, price)
		position.PnLPercent = (position.PnL / position.Size) * 100
	}

	return closed
}

// stopLossHit проверяет срабатывание стоп-лосса
func stopLossHit(position *models.Position, price float64) bool {
	if position.Type == models.PositionLong {
		return price <= position.StopLoss
	}
	return price >= position.StopLoss
}

// takeProfitHit проверяет срабатывание тейк-профита
func takeProfitHit(position *models.Position, price float64) bool {
	if position.Type == models.PositionLong {
		return price >= position.TakeProfit
	}
	return price <= position.TakeProfit
}

// calculatePnL считает PnL позиции по текущей цене
func calculatePnL(position *models.Position, price float64) float64 {
	if position.Type == models.PositionLong {
		return (price - position.EntryPrice) * position.Size
	}
	return (position.EntryPrice - price) * position.Size
}

// Statistics возвращает агрегированную статистику счёта. Свободный баланс
// уже не содержит зарезервированных под позиции средств.
func (l *Ledger) Statistics() models.Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totalTrades := 0
	winningTrades := 0
	totalPnL := 0.0

	for _, entry := range l.history {
		if entry.Action != models.TradeActionClose {
			continue
		}
		totalTrades++
		if entry.Position.PnL > 0 {
			winningTrades++
		}
		totalPnL += entry.Position.PnL
	}

	winRate := 0.0
	if totalTrades > 0 {
		winRate = float64(winningTrades) / float64(totalTrades) * 100
	}

	return models.Statistics{
		TotalBalance:     l.balance,
		AvailableBalance: l.balance,
		ActivePositions:  len(l.positions),
		TotalTrades:      totalTrades,
		WinningTrades:    winningTrades,
		WinRate:          winRate,
		TotalPnL:         totalPnL,
		TotalPnLPercent:  totalPnL / l.initialBalance * 100,
	}
}

// ActivePositions возвращает снимок открытых позиций
func (l *Ledger) ActivePositions() []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, *p)
	}
	return positions
}

// TradeHistory возвращает закрытые сделки, самые свежие первыми
func (l *Ledger) TradeHistory(limit int) []models.TradeHistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var closes []models.TradeHistoryEntry
	for _, entry := range l.history {
		if entry.Action == models.TradeActionClose {
			closes = append(closes, entry)
		}
	}

	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}

	// Разворачиваем: сначала самые свежие
	out := make([]models.TradeHistoryEntry, len(closes))
	for i, entry := range closes {
		out[len(closes)-1-i] = entry
	}
	return out
}

// ResetDemoBalance сбрасывает счёт к начальному состоянию: баланс
// восстанавливается, позиции и история очищаются. Операция необратима.
func (l *Ledger) ResetDemoBalance() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = l.initialBalance
	l.positions = make(map[string]*models.Position)
	l.history = nil
}
