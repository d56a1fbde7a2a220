package strategy

import (
	"time"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/models"
)

// breakoutTolerance допуск 0.2%: закрытие должно пробить уровень с запасом,
// а подтверждающие свечи должны удержаться в пределах полосы вокруг уровня
const breakoutTolerance = 0.002

// Direction ограничивает сторону проверки пробоя
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionBoth Direction = "both"
)

// BreakoutDetector проверяет пробой найденных уровней последними свечами
type BreakoutDetector struct {
	confirmationCandles int
	minVolumeThreshold  float64
}

// NewBreakoutDetector создает детектор пробоя с настройками стратегии
func NewBreakoutDetector(cfg config.StrategyConfig) *BreakoutDetector {
	return &BreakoutDetector{
		confirmationCandles: cfg.ConfirmationCandles,
		minVolumeThreshold:  cfg.MinVolumeThreshold,
	}
}

// Check возвращает первый подтвержденный пробой или nil. Сопротивления
// проверяются раньше поддержек, уровни идут в порядке убывания силы; за один
// вызов возвращается не более одного сигнала. Пробои на малом объеме
// отсекаются независимо от движения цены.
func (d *BreakoutDetector) Check(candles []models.Candle, levels models.Levels, direction Direction) *models.Signal {
	if len(candles) < d.confirmationCandles {
		return nil
	}

	recent := candles[len(candles)-d.confirmationCandles:]
	currentPrice := recent[len(recent)-1].Close

	volumeSum := 0.0
	for _, c := range recent {
		volumeSum += c.Volume
	}
	volume := volumeSum / float64(len(recent))

	if volume < d.minVolumeThreshold {
		return nil
	}

	if direction == DirectionBoth || direction == DirectionUp {
		for _, level := range levels.Resistance {
			if isBreakoutUp(recent, level.Price) {
				return &models.Signal{
					Type:         models.SignalBuy,
					Level:        level.Price,
					CurrentPrice: currentPrice,
					Strength:     level.Strength,
					Volume:       volume,
					Timestamp:    time.Now().UnixMilli(),
				}
			}
		}
	}

	if direction == DirectionBoth || direction == DirectionDown {
		for _, level := range levels.Support {
			if isBreakoutDown(recent, level.Price) {
				return &models.Signal{
					Type:         models.SignalSell,
					Level:        level.Price,
					CurrentPrice: currentPrice,
					Strength:     level.Strength,
					Volume:       volume,
					Timestamp:    time.Now().UnixMilli(),
				}
			}
		}
	}

	return nil
}

// isBreakoutUp проверяет пробой сопротивления: последняя свеча закрылась
// выше уровня с запасом, а обе последние свечи удержались над нижней
// границей полосы, одиночный вынос фитилем не проходит
func isBreakoutUp(candles []models.Candle, resistance float64) bool {
	last := candles[len(candles)-1]
	if last.Close <= resistance*(1+breakoutTolerance) {
		return false
	}

	for _, c := range lastN(candles, 2) {
		if c.Close <= resistance*(1-breakoutTolerance) {
			return false
		}
	}
	return true
}

// isBreakoutDown проверяет пробой поддержки, зеркально isBreakoutUp
func isBreakoutDown(candles []models.Candle, support float64) bool {
	last := candles[len(candles)-1]
	if last.Close >= support*(1-breakoutTolerance) {
		return false
	}

	for _, c := range lastN(candles, 2) {
		if c.Close >= support*(1+breakoutTolerance) {
			return false
		}
	}
	return true
}

// lastN возвращает не более n последних свечей
func lastN(candles []models.Candle, n int) []models.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
