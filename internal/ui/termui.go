package ui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Qwalex/QTrader/internal/bot"
	"github.com/Qwalex/QTrader/internal/config"
	"github.com/Qwalex/QTrader/pkg/logger"
	"github.com/Qwalex/QTrader/pkg/models"
)

// Стили UI
var (
	primaryColor = lipgloss.Color("#0077cc")
	sectionColor = lipgloss.Color("#333333")
	errorColor   = lipgloss.Color("#cc3300")
	successColor = lipgloss.Color("#33cc33")
	warningColor = lipgloss.Color("#cccc00")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(sectionColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(sectionColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
)

// TermUI терминальный интерфейс: сигналы, позиции, статистика, логи
type TermUI struct {
	bot       *bot.Bot
	cfg       config.UIConfig
	program   *tea.Program
	logFile   string
	logs      []string
	logsMutex sync.RWMutex
	width     int
	height    int
}

// Сообщение периодического обновления UI
type refreshMsg struct{}

// bubbleModel модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает терминальный интерфейс поверх бота
func NewTermUI(cfg config.UIConfig, b *bot.Bot) *TermUI {
	ui := &TermUI{
		bot:     b,
		cfg:     cfg,
		logFile: logger.JSONLogFile(),
		logs:    []string{"QTrader запущен. Ожидание данных..."},
		width:   120,
		height:  40,
	}

	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	return ui
}

// Start запускает UI, блокирующий вызов в основном потоке
func (ui *TermUI) Start() error {
	model := bubbleModel{ui: ui}
	ui.program = tea.NewProgram(model, tea.WithAltScreen())

	if _, err := ui.program.Run(); err != nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// refreshCmd планирует следующее обновление экрана
func (ui *TermUI) refreshCmd() tea.Cmd {
	interval := time.Duration(ui.cfg.RefreshRate) * time.Millisecond
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// loadLogsFromFile подтягивает последние записи из JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var logs []string

	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)

	for scanner.Scan() {
		line := scanner.Text()

		var zapLog map[string]interface{}
		if err := json.Unmarshal([]byte(line), &zapLog); err == nil {
			level, _ := zapLog["level"].(string)
			ts, _ := zapLog["ts"].(string)
			msg, _ := zapLog["msg"].(string)

			level = ansiRegex.ReplaceAllString(level, "")

			timestamp := ""
			if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
				timestamp = t.Format("15:04:05")
			}

			logs = append(logs, fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg))
		} else {
			logs = append(logs, line)
		}

		if len(logs) > 50 {
			logs = logs[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	ui.logsMutex.Lock()
	defer ui.logsMutex.Unlock()

	if len(logs) > 0 {
		ui.logs = logs
	}

	return nil
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return m.ui.refreshCmd()
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case refreshMsg:
		_ = m.ui.loadLogsFromFile()
		return m, m.ui.refreshCmd()
	}

	return m, nil
}

func (m bubbleModel) View() string {
	status := m.ui.bot.Status()

	title := titleStyle.Render("QTrader - Breakout Trading Bot")
	signals := renderSignalsSection(m.ui.bot)
	positions := renderPositionsSection(status.ActivePositions)
	statistics := renderStatisticsSection(status.Statistics)
	logs := m.renderLogsSection()
	footer := footerStyle.Render("Клавиши: Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			signals,
			"\n",
			positions,
			"\n",
			statistics,
			"\n",
			logs,
			"\n",
			footer,
		),
	)
}

// renderSignalsSection отрисовывает последние результаты анализа
func renderSignalsSection(b *bot.Bot) string {
	header := headerStyle.Render("СИГНАЛЫ")
	content := strings.Builder{}

	empty := true
	for _, symbol := range b.Symbols() {
		analysis := b.Analysis(symbol)
		if analysis == nil {
			continue
		}
		empty = false

		line := fmt.Sprintf("  %s: %s Цена: %.2f", symbol, formatSignalText(analysis.Signal), analysis.CurrentPrice)
		content.WriteString(line + "\n")
	}

	if empty {
		content.WriteString("  Ожидание данных...\n")
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, content.String()),
	)
}

// renderPositionsSection отрисовывает открытые позиции
func renderPositionsSection(positions []models.Position) string {
	header := headerStyle.Render("ПОЗИЦИИ")
	content := strings.Builder{}

	if len(positions) == 0 {
		content.WriteString("  Нет открытых позиций\n")
	} else {
		for _, p := range positions {
			pnlStyle := lipgloss.NewStyle().Foreground(successColor)
			if p.PnL < 0 {
				pnlStyle = lipgloss.NewStyle().Foreground(errorColor)
			}
			line := fmt.Sprintf("  %s %s вход: %.4f стоп: %.4f цель: %.4f PnL: %s",
				p.Symbol, p.Type, p.EntryPrice, p.StopLoss, p.TakeProfit,
				pnlStyle.Render(fmt.Sprintf("%.2f (%.2f%%)", p.PnL, p.PnLPercent)))
			content.WriteString(line + "\n")
		}
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, content.String()),
	)
}

// renderStatisticsSection отрисовывает статистику счёта
func renderStatisticsSection(stats models.Statistics) string {
	header := headerStyle.Render("СТАТИСТИКА")

	line := fmt.Sprintf("  Баланс: %.2f | Сделок: %d | Прибыльных: %d (%.1f%%) | PnL: %.2f (%.2f%%)",
		stats.TotalBalance, stats.TotalTrades, stats.WinningTrades,
		stats.WinRate, stats.TotalPnL, stats.TotalPnLPercent)

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, line+"\n"),
	)
}

// renderLogsSection отрисовывает хвост лога с подсветкой уровней
func (m bubbleModel) renderLogsSection() string {
	m.ui.logsMutex.RLock()
	defer m.ui.logsMutex.RUnlock()

	header := headerStyle.Render("ЛОГИ")
	content := strings.Builder{}

	maxLogsToShow := 8
	start := 0
	if len(m.ui.logs) > maxLogsToShow {
		start = len(m.ui.logs) - maxLogsToShow
	}

	for i := start; i < len(m.ui.logs); i++ {
		log := m.ui.logs[i]

		if strings.Contains(log, "[ERROR]") {
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		} else if strings.Contains(log, "[INFO]") {
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		} else if strings.Contains(log, "[WARN]") {
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		}

		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, content.String()),
	)
}

// formatSignalText форматирует сигнал с цветом по направлению
func formatSignalText(signal *models.Signal) string {
	if signal == nil {
		return lipgloss.NewStyle().Foreground(warningColor).Render("НЕТ СИГНАЛА")
	}

	var style lipgloss.Style
	var text string

	switch signal.Type {
	case models.SignalBuy:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
		text = fmt.Sprintf("ПОКУПКА (уровень %.2f, сила %d)", signal.Level, signal.Strength)
	case models.SignalSell:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
		text = fmt.Sprintf("ПРОДАЖА (уровень %.2f, сила %d)", signal.Level, signal.Strength)
	}

	return style.Render(text)
}
