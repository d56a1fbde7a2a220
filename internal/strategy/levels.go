package strategy

import (
	"math"
	"sort"

	"github.com/Qwalex/QTrader/pkg/models"
)

const (
	touchTolerance   = 0.001 // 0.1%, касание уровня соседней свечой
	groupTolerance   = 0.005 // 0.5%, группировка близких уровней
	maxLevelsPerSide = 5
)

// FindLevels ищет уровни поддержки и сопротивления по пивотам.
// Свеча считается пивотом поддержки, если её минимум не выше минимумов
// period свечей слева и справа; пивот сопротивления симметричен по
// максимумам. Равенство считается касанием: плоское дно тоже пивот.
// Если свечей меньше 2*period+1, возвращаются пустые списки.
func FindLevels(candles []models.Candle, period int) models.Levels {
	var support, resistance []models.Level

	for i := period; i < len(candles)-period; i++ {
		current := candles[i]

		if isSupportPivot(candles, i, period) {
			support = append(support, models.Level{
				Price:      current.Low,
				Strength:   pivotStrength(candles, i, period, current.Low, true),
				Touches:    1,
				Timestamps: []int64{current.Timestamp},
			})
		}

		if isResistancePivot(candles, i, period) {
			resistance = append(resistance, models.Level{
				Price:      current.High,
				Strength:   pivotStrength(candles, i, period, current.High, false),
				Touches:    1,
				Timestamps: []int64{current.Timestamp},
			})
		}
	}

	return models.Levels{
		Support:    sortAndTrim(GroupLevels(support)),
		Resistance: sortAndTrim(GroupLevels(resistance)),
	}
}

// isSupportPivot проверяет, является ли свеча i локальным минимумом
func isSupportPivot(candles []models.Candle, i, period int) bool {
	low := candles[i].Low
	for j := i - period; j < i; j++ {
		if candles[j].Low < low {
			return false
		}
	}
	for j := i + 1; j <= i+period; j++ {
		if candles[j].Low < low {
			return false
		}
	}
	return true
}

// isResistancePivot проверяет, является ли свеча i локальным максимумом
func isResistancePivot(candles []models.Candle, i, period int) bool {
	high := candles[i].High
	for j := i - period; j < i; j++ {
		if candles[j].High > high {
			return false
		}
	}
	for j := i + 1; j <= i+period; j++ {
		if candles[j].High > high {
			return false
		}
	}
	return true
}

// pivotStrength считает касания: сколько из 2*period соседних свечей
// имеют экстремум в пределах touchTolerance от цены пивота
func pivotStrength(candles []models.Candle, i, period int, price float64, support bool) int {
	touches := 0
	for j := i - period; j <= i+period; j++ {
		if j == i {
			continue
		}
		candlePrice := candles[j].High
		if support {
			candlePrice = candles[j].Low
		}
		if math.Abs(candlePrice-price)/price <= touchTolerance {
			touches++
		}
	}
	return touches
}

// GroupLevels группирует близкие уровни: уровень присоединяется к первой
// группе, чья средняя цена отличается не более чем на groupTolerance,
// иначе образует новую. Группа сворачивается в один уровень: цена берется
// как среднее по участникам, сила и касания суммируются.
func GroupLevels(levels []models.Level) []models.Level {
	type group struct {
		priceSum float64
		members  []models.Level
	}

	var groups []*group
	for _, level := range levels {
		added := false
		for _, g := range groups {
			avg := g.priceSum / float64(len(g.members))
			if math.Abs(level.Price-avg)/avg <= groupTolerance {
				g.priceSum += level.Price
				g.members = append(g.members, level)
				added = true
				break
			}
		}
		if !added {
			groups = append(groups, &group{priceSum: level.Price, members: []models.Level{level}})
		}
	}

	grouped := make([]models.Level, 0, len(groups))
	for _, g := range groups {
		merged := models.Level{
			Price: g.priceSum / float64(len(g.members)),
		}
		for _, m := range g.members {
			merged.Strength += m.Strength
			merged.Touches += m.Touches
			merged.Timestamps = append(merged.Timestamps, m.Timestamps...)
		}
		grouped = append(grouped, merged)
	}

	return grouped
}

// sortAndTrim сортирует уровни по убыванию силы и оставляет сильнейшие
func sortAndTrim(levels []models.Level) []models.Level {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Strength > levels[j].Strength
	})
	if len(levels) > maxLevelsPerSide {
		levels = levels[:maxLevelsPerSide]
	}
	return levels
}
