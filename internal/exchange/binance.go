package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/models"
)

const maxAttempts = 3

// ProviderError ошибка обращения к источнику рыночных данных.
// Символ, для которого получена такая ошибка, пропускается на текущем
// цикле, остальные символы обрабатываются дальше.
type ProviderError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("провайдер данных: %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// BinanceClient клиент спотового рынка Binance
type BinanceClient struct {
	spot *binance.Client
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	spotClient := binance.NewClient(cfg.APIKey, cfg.APISecret)

	if cfg.Testnet {
		spotClient.BaseURL = "https://testnet.binance.vision"
	}

	return &BinanceClient{
		spot: spotClient,
	}, nil
}

// GetCandles получает исторические свечи
func (c *BinanceClient) GetCandles(ctx context.Context, symbol string, intervalMinutes, limit int) ([]models.Candle, error) {
	var klines []*binance.Kline
	err := c.withRetry(ctx, func() error {
		var err error
		klines, err = c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(intervalString(intervalMinutes)).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, &ProviderError{Op: "получение свечей", Symbol: symbol, Err: err}
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(k)
		if err != nil {
			return nil, &ProviderError{Op: "разбор свечи", Symbol: symbol, Err: err}
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetTicker получает текущую котировку символа
func (c *BinanceClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	var stats []*binance.PriceChangeStats
	err := c.withRetry(ctx, func() error {
		var err error
		stats, err = c.spot.NewListPriceChangeStatsService().
			Symbol(symbol).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, &ProviderError{Op: "получение котировки", Symbol: symbol, Err: err}
	}
	if len(stats) == 0 {
		return nil, &ProviderError{Op: "получение котировки", Symbol: symbol, Err: fmt.Errorf("пустой ответ")}
	}

	s := stats[0]
	price, err := strconv.ParseFloat(s.LastPrice, 64)
	if err != nil {
		return nil, &ProviderError{Op: "разбор котировки", Symbol: symbol, Err: err}
	}
	volume, err := strconv.ParseFloat(s.Volume, 64)
	if err != nil {
		return nil, &ProviderError{Op: "разбор котировки", Symbol: symbol, Err: err}
	}
	change, err := strconv.ParseFloat(s.PriceChangePercent, 64)
	if err != nil {
		return nil, &ProviderError{Op: "разбор котировки", Symbol: symbol, Err: err}
	}

	return &models.Ticker{
		Symbol:    symbol,
		Price:     price,
		Volume24h: volume,
		Change24h: change,
	}, nil
}

// withRetry повторяет вызов с экспоненциальной задержкой.
// Политика повторов живет здесь, на стороне провайдера данных,
// ядро ничего не повторяет само.
func (c *BinanceClient) withRetry(ctx context.Context, fn func() error) error {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		// После последней попытки ошибка возвращается без задержки
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return err
}

// parseKline конвертирует свечу Binance во внутреннюю модель
func parseKline(k *binance.Kline) (models.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return models.Candle{}, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return models.Candle{}, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return models.Candle{}, err
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return models.Candle{}, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return models.Candle{}, err
	}

	return models.Candle{
		Timestamp: k.OpenTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

// intervalString конвертирует интервал в минутах в обозначение Binance
func intervalString(minutes int) string {
	switch minutes {
	case 1, 3, 5, 15, 30:
		return fmt.Sprintf("%dm", minutes)
	case 60:
		return "1h"
	case 120:
		return "2h"
	case 240:
		return "4h"
	case 360:
		return "6h"
	case 480:
		return "8h"
	case 720:
		return "12h"
	case 1440:
		return "1d"
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
