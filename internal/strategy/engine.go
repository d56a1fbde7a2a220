package strategy

import (
	"fmt"
	"time"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/models"
)

// minAnalysisCandles минимальное окно для полного анализа
const minAnalysisCandles = 100

// InsufficientDataError недостаточно свечей для анализа
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("недостаточно данных для анализа: есть %d свечей, нужно %d", e.Got, e.Required)
}

// Engine объединяет поиск уровней, детектор пробоя, расчет индикаторов и
// фильтр сигналов в единую точку входа
type Engine struct {
	cfg      config.StrategyConfig
	breakout *BreakoutDetector
}

// NewEngine создает движок сигналов с настройками стратегии
func NewEngine(cfg config.StrategyConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		breakout: NewBreakoutDetector(cfg),
	}
}

// Analyze выполняет полный анализ окна свечей: уровни -> пробой ->
// индикаторы -> фильтр. Чистая функция над снимком окна, безопасна для
// параллельного вызова по разным символам. Любой внутренний сбой
// возвращается ошибкой, а не паникой: отказ одного символа не должен
// прерывать анализ остальных.
func (e *Engine) Analyze(candles []models.Candle) (result *models.AnalysisResult, err error) {
	if len(candles) < minAnalysisCandles {
		return nil, &InsufficientDataError{Required: minAnalysisCandles, Got: len(candles)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("сбой анализа: %v", r)
		}
	}()

	levels := FindLevels(candles, e.cfg.SupportResistancePeriod)
	signal := e.breakout.Check(candles, levels, DirectionBoth)
	indicators := ComputeIndicators(candles)
	filtered := FilterSignal(signal, indicators)

	return &models.AnalysisResult{
		Levels:       levels,
		Signal:       filtered,
		Indicators:   indicators,
		CurrentPrice: candles[len(candles)-1].Close,
		Timestamp:    time.Now().UnixMilli(),
	}, nil
}
