package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Qwalex/QTrader/internal/bot"
	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/internal/exchange"
	"github.com/Qwalex/QTrader/pkg/models"
)

// Server тонкий HTTP-интерфейс бота: обработчики только вызывают операции
// ядра и отдают JSON, никакой логики
type Server struct {
	bot        *bot.Bot
	httpServer *http.Server
}

// New создает HTTP-сервер с роутами API
func New(cfg config.ServerConfig, b *bot.Bot) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	s := &Server{
		bot: b,
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: router,
		},
	}

	api := router.Group("/api")
	{
		api.POST("/bot/start", s.startBot)
		api.POST("/bot/stop", s.stopBot)
		api.GET("/bot/status", s.botStatus)
		api.GET("/analysis/:symbol", s.analysis)
		api.POST("/positions/open", s.openPosition)
		api.POST("/positions/close", s.closePosition)
		api.GET("/trades", s.trades)
		api.GET("/statistics", s.statistics)
		api.GET("/market/symbols", s.symbols)
		api.POST("/demo/reset", s.resetDemo)
	}

	return s
}

// Start запускает HTTP-сервер, блокирующий вызов
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает HTTP-сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) startBot(c *gin.Context) {
	if err := s.bot.Start(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Бот запущен"})
}

func (s *Server) stopBot(c *gin.Context) {
	if err := s.bot.Stop(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Бот остановлен"})
}

func (s *Server) botStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": s.bot.Status()})
}

func (s *Server) analysis(c *gin.Context) {
	symbol := c.Param("symbol")

	result := s.bot.Analysis(symbol)
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "анализ для символа не найден"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": result})
}

type openPositionRequest struct {
	Symbol string              `json:"symbol" binding:"required"`
	Type   models.PositionType `json:"type" binding:"required"`
}

func (s *Server) openPosition(c *gin.Context) {
	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Type != models.PositionLong && req.Type != models.PositionShort {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "тип позиции должен быть LONG или SHORT"})
		return
	}

	position, err := s.bot.OpenManualPosition(c.Request.Context(), req.Symbol, req.Type)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "position": position})
}

type closePositionRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (s *Server) closePosition(c *gin.Context) {
	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	position, err := s.bot.CloseManualPosition(c.Request.Context(), req.Symbol)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "position": position})
}

func (s *Server) trades(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "некорректный параметр limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trades": s.bot.TradeHistory(limit)})
}

func (s *Server) statistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "statistics": s.bot.Statistics()})
}

func (s *Server) symbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "symbols": s.bot.Symbols()})
}

func (s *Server) resetDemo(c *gin.Context) {
	s.bot.ResetDemoBalance()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Демо-баланс сброшен"})
}

// statusFor подбирает HTTP-статус по типу ошибки ядра: отказ провайдера
// данных дает 502, отказ валидации и прочее 400
func statusFor(err error) int {
	var provider *exchange.ProviderError
	if errors.As(err, &provider) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}
