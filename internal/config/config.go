package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Strategy StrategyConfig `yaml:"strategy"`
	Demo     DemoConfig     `yaml:"demo"`
	Server   ServerConfig   `yaml:"server"`
	UI       UIConfig       `yaml:"ui"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TradingConfig содержит настройки торговли
type TradingConfig struct {
	Symbols                 []string `yaml:"symbols"`
	IntervalMinutes         int      `yaml:"interval_minutes"`
	CandleLimit             int      `yaml:"candle_limit"`              // размер окна свечей
	RefreshLimit            int      `yaml:"refresh_limit"`             // сколько свечей дотягивать на каждом цикле
	AnalysisIntervalSeconds int      `yaml:"analysis_interval_seconds"` // период цикла анализа
}

// StrategyConfig содержит настройки стратегии пробоя
type StrategyConfig struct {
	ConfirmationCandles     int     `yaml:"confirmation_candles"`
	SupportResistancePeriod int     `yaml:"support_resistance_period"`
	MinVolumeThreshold      float64 `yaml:"min_volume_threshold"`
}

// DemoConfig содержит настройки демо-счёта
type DemoConfig struct {
	Balance      float64 `yaml:"balance"`
	RiskPercent  float64 `yaml:"risk_percent"`
	MaxPositions int     `yaml:"max_positions"`
}

// ServerConfig настройки HTTP-сервера
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// UIConfig настройки терминального интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms"`
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults подставляет значения по умолчанию вместо незаполненных полей
func (c *Config) applyDefaults() {
	if len(c.Trading.Symbols) == 0 {
		c.Trading.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "ADAUSDT", "DOTUSDT"}
	}
	if c.Trading.IntervalMinutes == 0 {
		c.Trading.IntervalMinutes = 15
	}
	if c.Trading.CandleLimit == 0 {
		c.Trading.CandleLimit = 200
	}
	if c.Trading.RefreshLimit == 0 {
		c.Trading.RefreshLimit = 50
	}
	if c.Trading.AnalysisIntervalSeconds == 0 {
		c.Trading.AnalysisIntervalSeconds = 300
	}

	if c.Strategy.ConfirmationCandles == 0 {
		c.Strategy.ConfirmationCandles = 3
	}
	if c.Strategy.SupportResistancePeriod == 0 {
		c.Strategy.SupportResistancePeriod = 20
	}
	if c.Strategy.MinVolumeThreshold == 0 {
		c.Strategy.MinVolumeThreshold = 1000000
	}

	if c.Demo.Balance == 0 {
		c.Demo.Balance = 10000
	}
	if c.Demo.RiskPercent == 0 {
		c.Demo.RiskPercent = 2
	}
	if c.Demo.MaxPositions == 0 {
		c.Demo.MaxPositions = 3
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.UI.RefreshRate == 0 {
		c.UI.RefreshRate = 1000
	}
}
