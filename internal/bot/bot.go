package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/internal/ledger"
	"github.com/Qwalex/QTrader/internal/market"
	"github.com/Qwalex/QTrader/internal/strategy"
	"github.com/Qwalex/QTrader/pkg/logger"
	"github.com/Qwalex/QTrader/pkg/models"
)

// MarketData источник рыночных данных
type MarketData interface {
	GetCandles(ctx context.Context, symbol string, intervalMinutes, limit int) ([]models.Candle, error)
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
}

// WindowStatus состояние окна свечей одного символа
type WindowStatus struct {
	Symbol     string    `json:"symbol"`
	Candles    int       `json:"candlesCount"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Status снимок состояния бота
type Status struct {
	Running         bool              `json:"isRunning"`
	Statistics      models.Statistics `json:"statistics"`
	ActivePositions []models.Position `json:"activePositions"`
	Symbols         []string          `json:"symbols"`
	Windows         []WindowStatus    `json:"marketDataStatus"`
}

// Bot оркестратор: по таймеру обновляет окна свечей, прогоняет движок
// сигналов по каждому символу и проводит принятые сигналы и текущие цены
// через леджер. Анализ символов веерный, мутации леджера строго
// последовательные.
type Bot struct {
	cfg     *config.Config
	client  MarketData
	engine  *strategy.Engine
	ledger  *ledger.Ledger
	windows *market.Store

	mu           sync.RWMutex
	running      bool
	stop         chan struct{}
	wg           sync.WaitGroup
	lastAnalysis map[string]*models.AnalysisResult

	// tickMu защищает от наложения циклов: если предыдущий цикл ещё
	// выполняется, очередной пропускается, а не ставится в очередь
	tickMu sync.Mutex
}

// New создает оркестратор
func New(cfg *config.Config, client MarketData, engine *strategy.Engine, lgr *ledger.Ledger, windows *market.Store) *Bot {
	return &Bot{
		cfg:          cfg,
		client:       client,
		engine:       engine,
		ledger:       lgr,
		windows:      windows,
		lastAnalysis: make(map[string]*models.AnalysisResult),
	}
}

// Start инициализирует рыночные данные и запускает цикл анализа:
// немедленный первый прогон, далее по интервалу
func (b *Bot) Start() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("бот уже запущен")
	}

	stop := make(chan struct{})
	b.stop = stop
	b.running = true
	b.mu.Unlock()

	logger.Info("Запуск торгового бота", zap.Strings("symbols", b.cfg.Trading.Symbols))

	ctx := context.Background()
	b.initializeMarketData(ctx)

	b.wg.Add(1)
	go b.runLoop(ctx, stop)

	logger.Info("Торговый бот запущен")
	return nil
}

// Stop останавливает планирование новых циклов и дожидается завершения
// текущего. Начатый цикл не отменяется и дорабатывает до конца: его
// запросы к провайдеру данных не прерываются.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return errors.New("бот не запущен")
	}
	b.running = false
	stop := b.stop
	b.mu.Unlock()

	logger.Info("Остановка торгового бота")
	close(stop)
	b.wg.Wait()
	logger.Info("Торговый бот остановлен")
	return nil
}

// Running сообщает, запущен ли бот
func (b *Bot) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// initializeMarketData загружает стартовую историю свечей по всем символам.
// Отказ провайдера по одному символу логируется и не мешает остальным.
func (b *Bot) initializeMarketData(ctx context.Context) {
	logger.Info("Инициализация рыночных данных")

	for _, symbol := range b.cfg.Trading.Symbols {
		candles, err := b.client.GetCandles(ctx, symbol, b.cfg.Trading.IntervalMinutes, b.cfg.Trading.CandleLimit)
		if err != nil {
			logger.Error("Ошибка загрузки данных", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		b.windows.Merge(symbol, candles)
		logger.Info("Данные загружены", zap.String("symbol", symbol), zap.Int("candles", len(candles)))
	}
}

// runLoop цикл анализа: немедленный первый прогон, далее по тикеру.
// Сигнал остановки прекращает только планирование новых циклов.
func (b *Bot) runLoop(ctx context.Context, stop <-chan struct{}) {
	defer b.wg.Done()

	b.performTick(ctx)

	ticker := time.NewTicker(time.Duration(b.cfg.Trading.AnalysisIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.performTick(ctx)
		case <-stop:
			return
		}
	}
}

// performTick один проход: веерное обновление и анализ всех символов,
// затем последовательная обработка сигналов и переоценка позиций
func (b *Bot) performTick(ctx context.Context) {
	if !b.tickMu.TryLock() {
		logger.Warn("Предыдущий цикл анализа ещё выполняется, пропуск")
		return
	}
	defer b.tickMu.Unlock()

	logger.Debug("Выполнение анализа рынка")

	type analyzed struct {
		symbol string
		result *models.AnalysisResult
	}

	var wg sync.WaitGroup
	var mutex sync.Mutex
	var results []analyzed

	for _, symbol := range b.cfg.Trading.Symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			result := b.refreshAndAnalyze(ctx, sym)
			if result == nil {
				return
			}

			mutex.Lock()
			results = append(results, analyzed{symbol: sym, result: result})
			mutex.Unlock()
		}(symbol)
	}
	wg.Wait()

	// Сигналы проводятся через леджер строго последовательно
	for _, r := range results {
		if r.result.Signal != nil {
			b.processSignal(r.symbol, r.result.Signal, r.result.CurrentPrice)
		}
	}

	b.updatePositions(ctx)

	logger.Debug("Анализ завершен", zap.Int("symbols", len(results)))
}

// refreshAndAnalyze обновляет окно символа и запускает анализ.
// Возвращает nil, если данных недостаточно или анализ не удался.
func (b *Bot) refreshAndAnalyze(ctx context.Context, symbol string) *models.AnalysisResult {
	candles, err := b.client.GetCandles(ctx, symbol, b.cfg.Trading.IntervalMinutes, b.cfg.Trading.RefreshLimit)
	if err != nil {
		logger.Error("Ошибка обновления данных", zap.String("symbol", symbol), zap.Error(err))
	} else {
		b.windows.Merge(symbol, candles)
	}

	snapshot := b.windows.Snapshot(symbol)

	result, err := b.engine.Analyze(snapshot)
	if err != nil {
		var insufficient *strategy.InsufficientDataError
		if errors.As(err, &insufficient) {
			logger.Debug("Недостаточно данных для анализа",
				zap.String("symbol", symbol),
				zap.Int("candles", insufficient.Got))
		} else {
			logger.Error("Ошибка анализа", zap.String("symbol", symbol), zap.Error(err))
		}
		return nil
	}

	b.mu.Lock()
	b.lastAnalysis[symbol] = result
	b.mu.Unlock()

	return result
}

// processSignal открывает позицию по принятому сигналу
func (b *Bot) processSignal(symbol string, signal *models.Signal, currentPrice float64) {
	logger.Info("Получен сигнал",
		zap.String("symbol", symbol),
		zap.String("type", string(signal.Type)),
		zap.Float64("price", currentPrice),
		zap.Int("strength", signal.Strength))

	position, err := b.ledger.OpenPosition(symbol, signal, currentPrice)
	if err != nil {
		var validation *ledger.ValidationError
		if errors.As(err, &validation) {
			logger.Warn("Позиция не открыта", zap.String("symbol", symbol), zap.String("reason", validation.Reason))
		} else {
			logger.Error("Ошибка открытия позиции", zap.String("symbol", symbol), zap.Error(err))
		}
		return
	}

	logger.Info("Позиция открыта",
		zap.String("symbol", symbol),
		zap.String("type", string(position.Type)),
		zap.Float64("size", position.Size),
		zap.Float64("stopLoss", position.StopLoss),
		zap.Float64("takeProfit", position.TakeProfit))
}

// updatePositions собирает живые котировки по открытым позициям и
// переоценивает их. Символ без котировки пропускается до следующего цикла.
func (b *Bot) updatePositions(ctx context.Context) {
	active := b.ledger.ActivePositions()
	if len(active) == 0 {
		return
	}

	latestPrices := make(map[string]float64, len(active))
	for _, position := range active {
		ticker, err := b.client.GetTicker(ctx, position.Symbol)
		if err != nil {
			logger.Error("Ошибка получения котировки", zap.String("symbol", position.Symbol), zap.Error(err))
			continue
		}
		latestPrices[position.Symbol] = ticker.Price
	}

	closed := b.ledger.UpdatePositions(latestPrices)
	for _, position := range closed {
		logger.Info("Позиция закрыта",
			zap.String("symbol", position.Symbol),
			zap.String("reason", string(position.CloseReason)),
			zap.Float64("pnl", position.PnL))
	}
}

// Analysis возвращает последний результат анализа символа или nil
func (b *Bot) Analysis(symbol string) *models.AnalysisResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastAnalysis[symbol]
}

// Status возвращает снимок состояния бота
func (b *Bot) Status() Status {
	windows := make([]WindowStatus, 0, len(b.cfg.Trading.Symbols))
	for _, symbol := range b.cfg.Trading.Symbols {
		windows = append(windows, WindowStatus{
			Symbol:     symbol,
			Candles:    b.windows.Len(symbol),
			LastUpdate: b.windows.LastUpdate(symbol),
		})
	}

	return Status{
		Running:         b.Running(),
		Statistics:      b.ledger.Statistics(),
		ActivePositions: b.ledger.ActivePositions(),
		Symbols:         b.cfg.Trading.Symbols,
		Windows:         windows,
	}
}

// Symbols возвращает список отслеживаемых символов
func (b *Bot) Symbols() []string {
	return b.cfg.Trading.Symbols
}

// Statistics возвращает статистику счёта
func (b *Bot) Statistics() models.Statistics {
	return b.ledger.Statistics()
}

// ActivePositions возвращает открытые позиции
func (b *Bot) ActivePositions() []models.Position {
	return b.ledger.ActivePositions()
}

// TradeHistory возвращает историю закрытых сделок, свежие первыми
func (b *Bot) TradeHistory(limit int) []models.TradeHistoryEntry {
	return b.ledger.TradeHistory(limit)
}

// ResetDemoBalance сбрасывает демо-счёт
func (b *Bot) ResetDemoBalance() {
	b.ledger.ResetDemoBalance()
	logger.Info("Демо-баланс сброшен")
}

// OpenManualPosition открывает позицию вручную по живой котировке.
// Отсутствие котировки считается ошибкой провайдера, синтетическая цена не
// подставляется.
func (b *Bot) OpenManualPosition(ctx context.Context, symbol string, positionType models.PositionType) (*models.Position, error) {
	if !b.Running() {
		return nil, errors.New("бот не запущен")
	}

	ticker, err := b.client.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	signalType := models.SignalBuy
	if positionType == models.PositionShort {
		signalType = models.SignalSell
	}

	signal := &models.Signal{
		Type:         signalType,
		Level:        ticker.Price,
		CurrentPrice: ticker.Price,
		Strength:     1,
		Volume:       ticker.Volume24h,
		Timestamp:    time.Now().UnixMilli(),
	}

	return b.ledger.OpenPosition(symbol, signal, ticker.Price)
}

// CloseManualPosition закрывает позицию вручную по живой котировке
func (b *Bot) CloseManualPosition(ctx context.Context, symbol string) (*models.Position, error) {
	ticker, err := b.client.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return b.ledger.ClosePosition(symbol, ticker.Price, models.CloseManual)
}
