package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/models"
)

func closeCandle(ts int64, close, volume float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: volume}
}

func testDetector() *BreakoutDetector {
	return NewBreakoutDetector(config.StrategyConfig{
		ConfirmationCandles: 3,
		MinVolumeThreshold:  100,
	})
}

func TestBreakoutUpThroughResistance(t *testing.T) {
	d := testDetector()
	levels := models.Levels{
		Resistance: []models.Level{{Price: 100, Strength: 4}},
	}
	candles := []models.Candle{
		closeCandle(1, 110, 200),
		closeCandle(2, 110, 200),
		closeCandle(3, 110, 200),
	}

	signal := d.Check(candles, levels, DirectionBoth)

	require.NotNil(t, signal)
	assert.Equal(t, models.SignalBuy, signal.Type)
	assert.Equal(t, 100.0, signal.Level)
	assert.Equal(t, 110.0, signal.CurrentPrice)
	assert.Equal(t, 4, signal.Strength)
	assert.Equal(t, 200.0, signal.Volume)
}

func TestBreakoutDownThroughSupport(t *testing.T) {
	d := testDetector()
	levels := models.Levels{
		Support: []models.Level{{Price: 100, Strength: 2}},
	}
	candles := []models.Candle{
		closeCandle(1, 90, 200),
		closeCandle(2, 90, 200),
		closeCandle(3, 90, 200),
	}

	signal := d.Check(candles, levels, DirectionBoth)

	require.NotNil(t, signal)
	assert.Equal(t, models.SignalSell, signal.Type)
	assert.Equal(t, 100.0, signal.Level)
}

func TestBreakoutRejectsUnconfirmedSpike(t *testing.T) {
	d := testDetector()
	levels := models.Levels{
		Resistance: []models.Level{{Price: 100, Strength: 4}},
	}
	// Предпоследняя свеча закрылась ниже полосы вокруг уровня
	candles := []models.Candle{
		closeCandle(1, 99, 200),
		closeCandle(2, 99, 200),
		closeCandle(3, 110, 200),
	}

	assert.Nil(t, d.Check(candles, levels, DirectionBoth))
}

func TestBreakoutRejectsLowVolume(t *testing.T) {
	d := testDetector()
	levels := models.Levels{
		Resistance: []models.Level{{Price: 100, Strength: 4}},
	}
	candles := []models.Candle{
		closeCandle(1, 110, 10),
		closeCandle(2, 110, 10),
		closeCandle(3, 110, 10),
	}

	assert.Nil(t, d.Check(candles, levels, DirectionBoth))
}

func TestBreakoutRespectsDirection(t *testing.T) {
	d := testDetector()
	levels := models.Levels{
		Support: []models.Level{{Price: 100, Strength: 2}},
	}
	candles := []models.Candle{
		closeCandle(1, 90, 200),
		closeCandle(2, 90, 200),
		closeCandle(3, 90, 200),
	}

	assert.Nil(t, d.Check(candles, levels, DirectionUp))
	assert.NotNil(t, d.Check(candles, levels, DirectionDown))
}

func TestBreakoutTooFewCandles(t *testing.T) {
	d := testDetector()
	levels := models.Levels{
		Resistance: []models.Level{{Price: 100, Strength: 4}},
	}

	assert.Nil(t, d.Check([]models.Candle{closeCandle(1, 110, 200)}, levels, DirectionBoth))
}
