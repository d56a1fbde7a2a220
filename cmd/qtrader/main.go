package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Qwalex/QTrader/internal/bot"
	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/internal/exchange"
	"github.com/Qwalex/QTrader/internal/ledger"
	"github.com/Qwalex/QTrader/internal/market"
	"github.com/Qwalex/QTrader/internal/server"
	"github.com/Qwalex/QTrader/internal/strategy"
	"github.com/Qwalex/QTrader/internal/ui"
	"github.com/Qwalex/QTrader/pkg/logger"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	// Собираем ядро: окна свечей, движок сигналов, леджер, оркестратор
	windows := market.NewStore(cfg.Trading.CandleLimit)
	engine := strategy.NewEngine(cfg.Strategy)
	demoLedger := ledger.New(cfg.Demo)
	tradingBot := bot.New(cfg, client, engine, demoLedger, windows)

	if err := tradingBot.Start(); err != nil {
		logger.Fatal("Ошибка запуска бота", zap.Error(err))
	}

	// Запускаем HTTP API в отдельной горутине
	var apiServer *server.Server
	if cfg.Server.Enabled {
		apiServer = server.New(cfg.Server, tradingBot)
		go func() {
			logger.Info("Запуск HTTP API", zap.String("addr", cfg.Server.Addr))
			if err := apiServer.Start(); err != nil {
				logger.Error("Ошибка HTTP-сервера", zap.Error(err))
			}
		}()
	}

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.UI.Enabled {
		// Запускаем UI в основном потоке (блокирующий вызов)
		userInterface := ui.NewTermUI(cfg.UI, tradingBot)
		if err := userInterface.Start(); err != nil {
			logger.Error("Ошибка пользовательского интерфейса", zap.Error(err))
		}
	} else {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
	}

	shutdown(tradingBot, apiServer)
}

// shutdown останавливает бот и HTTP-сервер, дожидаясь завершения текущего
// цикла анализа
func shutdown(tradingBot *bot.Bot, apiServer *server.Server) {
	if tradingBot.Running() {
		if err := tradingBot.Stop(); err != nil {
			logger.Error("Ошибка остановки бота", zap.Error(err))
		}
	}

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Error("Ошибка остановки HTTP-сервера", zap.Error(err))
		}
	}

	logger.Info("Работа завершена")
}
