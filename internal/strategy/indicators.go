package strategy

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/Qwalex/QTrader/pkg/models"
)

const (
	rsiPeriod  = 14
	smaFast    = 20
	smaMid     = 50
	smaSlow    = 200
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	slopeWindow    = 5  // по скольким последним значениям SMA считается наклон
	minTrendCloses = 50 // если меньше, тренд NEUTRAL
)

// ComputeIndicators рассчитывает последние значения индикаторов по окну
// свечей. Серия, которой не хватает истории, отдается как NaN; talib
// вызывается только при достаточной длине входа.
func ComputeIndicators(candles []models.Candle) models.Indicators {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	ind := models.Indicators{
		RSI:    math.NaN(),
		SMA20:  math.NaN(),
		SMA50:  math.NaN(),
		SMA200: math.NaN(),
		MACD: models.MACDValue{
			MACD:      math.NaN(),
			Signal:    math.NaN(),
			Histogram: math.NaN(),
		},
		Volume: math.NaN(),
	}

	if len(candles) > 0 {
		ind.Volume = candles[len(candles)-1].Volume
	}

	if len(closes) > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		ind.RSI = rsi[len(rsi)-1]
	}

	var sma20, sma50, sma200 []float64
	if len(closes) >= smaFast {
		sma20 = talib.Sma(closes, smaFast)
		ind.SMA20 = sma20[len(sma20)-1]
	}
	if len(closes) >= smaMid {
		sma50 = talib.Sma(closes, smaMid)
		ind.SMA50 = sma50[len(sma50)-1]
	}
	if len(closes) >= smaSlow {
		sma200 = talib.Sma(closes, smaSlow)
		ind.SMA200 = sma200[len(sma200)-1]
	}

	if len(closes) >= macdSlow+macdSignal {
		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		ind.MACD = models.MACDValue{
			MACD:      macd[len(macd)-1],
			Signal:    signal[len(signal)-1],
			Histogram: hist[len(hist)-1],
		}
	}

	ind.Trend = classifyTrend(closes, sma20, sma50, sma200)

	return ind
}

// classifyTrend классифицирует тренд по положению цены относительно SMA и
// наклону SMA20/SMA50. Правила проверяются в фиксированном порядке, первое
// совпавшее побеждает. Недоступная SMA200 (NaN) даёт false в обоих
// сравнениях, поэтому при коротком окне цена считается «не выше SMA200».
func classifyTrend(closes, sma20, sma50, sma200 []float64) models.TrendState {
	if len(closes) < minTrendCloses {
		return models.TrendState{Direction: models.TrendNeutral, Strength: 0}
	}

	price := closes[len(closes)-1]
	lastSMA200 := math.NaN()
	if len(sma200) > 0 {
		lastSMA200 = sma200[len(sma200)-1]
	}

	// go-talib заполняет первые period-1 значений серии нулями,
	// наклон считается только по валидному хвосту
	state := models.TrendState{
		PriceAboveSMA20:  price > sma20[len(sma20)-1],
		PriceAboveSMA50:  price > sma50[len(sma50)-1],
		PriceAboveSMA200: price > lastSMA200,
		SMA20Slope:       slope(tail(sma20[smaFast-1:], slopeWindow)),
		SMA50Slope:       slope(tail(sma50[smaMid-1:], slopeWindow)),
	}

	switch {
	case state.PriceAboveSMA20 && state.PriceAboveSMA50 && state.PriceAboveSMA200 &&
		state.SMA20Slope > 0 && state.SMA50Slope > 0:
		state.Direction = models.TrendStrongUp
		state.Strength = 3
	case state.PriceAboveSMA20 && state.PriceAboveSMA50 && state.SMA20Slope > 0:
		state.Direction = models.TrendUp
		state.Strength = 2
	case state.PriceAboveSMA20 && state.SMA20Slope > 0:
		state.Direction = models.TrendWeakUp
		state.Strength = 1
	case !state.PriceAboveSMA20 && !state.PriceAboveSMA50 && !state.PriceAboveSMA200 &&
		state.SMA20Slope < 0 && state.SMA50Slope < 0:
		state.Direction = models.TrendStrongDown
		state.Strength = 3
	case !state.PriceAboveSMA20 && !state.PriceAboveSMA50 && state.SMA20Slope < 0:
		state.Direction = models.TrendDown
		state.Strength = 2
	case !state.PriceAboveSMA20 && state.SMA20Slope < 0:
		state.Direction = models.TrendWeakDown
		state.Strength = 1
	default:
		state.Direction = models.TrendSideways
		state.Strength = 0
	}

	return state
}

// slope наклон линии по методу наименьших квадратов, x = 0..n-1
func slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}

	fn := float64(n)
	return (fn*sumXY - sumX*sumY) / (fn*sumX2 - sumX*sumX)
}

// tail возвращает последние n значений серии
func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
