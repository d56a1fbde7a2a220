package strategy

import (
	"github.com/Qwalex/QTrader/pkg/models"
)

const (
	rsiOverbought = 70
	rsiOversold   = 30
)

// FilterSignal пропускает сигнал через фильтры индикаторов. Возвращает
// nil, если сигнал отклонен; выживший сигнал получает скорректированную
// силу и прикрепленное состояние тренда. Правила применяются по порядку:
// RSI, тренд, MACD; первое отклонение решает. Недоступный индикатор
// (NaN) не блокирует сигнал: сравнение с NaN всегда ложно.
func FilterSignal(signal *models.Signal, indicators models.Indicators) *models.Signal {
	if signal == nil {
		return nil
	}

	// Фильтр по RSI: перекупленность и перепроданность
	if signal.Type == models.SignalBuy && indicators.RSI > rsiOverbought {
		return nil
	}
	if signal.Type == models.SignalSell && indicators.RSI < rsiOversold {
		return nil
	}

	trend := indicators.Trend

	// Для покупок предпочтителен восходящий тренд
	if signal.Type == models.SignalBuy {
		if trend.Direction == models.TrendStrongDown || trend.Direction == models.TrendDown {
			return nil
		}
		if trend.Direction == models.TrendWeakDown {
			signal.Strength = maxInt(1, signal.Strength-1)
		}
		if trend.Direction == models.TrendStrongUp || trend.Direction == models.TrendUp {
			signal.Strength++
		}
	}

	// Для продаж зеркально
	if signal.Type == models.SignalSell {
		if trend.Direction == models.TrendStrongUp || trend.Direction == models.TrendUp {
			return nil
		}
		if trend.Direction == models.TrendWeakUp {
			signal.Strength = maxInt(1, signal.Strength-1)
		}
		if trend.Direction == models.TrendStrongDown || trend.Direction == models.TrendDown {
			signal.Strength++
		}
	}

	// Фильтр по MACD: состояние пересечения с сигнальной линией
	if signal.Type == models.SignalBuy && indicators.MACD.MACD < indicators.MACD.Signal {
		return nil
	}
	if signal.Type == models.SignalSell && indicators.MACD.MACD > indicators.MACD.Signal {
		return nil
	}

	trendCopy := trend
	signal.Trend = &trendCopy

	return signal
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
