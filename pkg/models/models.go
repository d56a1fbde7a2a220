package models

// SignalType направление торгового сигнала
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Candle представляет свечу OHLCV
type Candle struct {
	Timestamp int64   `json:"timestamp"` // миллисекунды, уникален в пределах окна
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Ticker представляет текущую котировку символа
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume24h"`
	Change24h float64 `json:"change24h"`
}

// Level уровень поддержки или сопротивления
type Level struct {
	Price      float64 `json:"price"`
	Strength   int     `json:"strength"` // суммарное число касаний по группе
	Touches    int     `json:"touches"`  // размер группы
	Timestamps []int64 `json:"timestamps"`
}

// Levels результат поиска уровней, отсортированы по убыванию силы
type Levels struct {
	Support    []Level `json:"support"`
	Resistance []Level `json:"resistance"`
}

// TrendDirection дискретное направление тренда
type TrendDirection string

const (
	TrendStrongUp   TrendDirection = "STRONG_UP"
	TrendUp         TrendDirection = "UP"
	TrendWeakUp     TrendDirection = "WEAK_UP"
	TrendSideways   TrendDirection = "SIDEWAYS"
	TrendNeutral    TrendDirection = "NEUTRAL"
	TrendWeakDown   TrendDirection = "WEAK_DOWN"
	TrendDown       TrendDirection = "DOWN"
	TrendStrongDown TrendDirection = "STRONG_DOWN"
)

// TrendState состояние тренда по скользящим средним
type TrendState struct {
	Direction        TrendDirection `json:"direction"`
	Strength         int            `json:"strength"` // 0..3
	PriceAboveSMA20  bool           `json:"priceAboveSma20"`
	PriceAboveSMA50  bool           `json:"priceAboveSma50"`
	PriceAboveSMA200 bool           `json:"priceAboveSma200"`
	SMA20Slope       float64        `json:"sma20Slope"`
	SMA50Slope       float64        `json:"sma50Slope"`
}

// MACDValue значения MACD
type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Indicators последние значения индикаторов по окну свечей.
// Серия, которой не хватает истории, представлена NaN: «индикатор
// недоступен», а не ноль.
type Indicators struct {
	RSI    float64    `json:"rsi"`
	SMA20  float64    `json:"sma20"`
	SMA50  float64    `json:"sma50"`
	SMA200 float64    `json:"sma200"`
	MACD   MACDValue  `json:"macd"`
	Volume float64    `json:"volume"`
	Trend  TrendState `json:"trend"`
}

// Signal торговый сигнал пробоя уровня
type Signal struct {
	Type         SignalType  `json:"type"`
	Level        float64     `json:"level"`
	CurrentPrice float64     `json:"currentPrice"`
	Strength     int         `json:"strength"`
	Volume       float64     `json:"volume"`
	Timestamp    int64       `json:"timestamp"`
	Trend        *TrendState `json:"trend,omitempty"` // заполняется фильтром сигналов
}

// AnalysisResult результат анализа одного символа
type AnalysisResult struct {
	Levels       Levels     `json:"levels"`
	Signal       *Signal    `json:"signal,omitempty"`
	Indicators   Indicators `json:"indicators"`
	CurrentPrice float64    `json:"currentPrice"`
	Timestamp    int64      `json:"timestamp"`
}

// PositionType направление позиции
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
)

// PositionStatus статус позиции
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// CloseReason причина закрытия позиции
type CloseReason string

const (
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
	CloseManual     CloseReason = "MANUAL"
)

// Position симулируемая позиция. Размер номинальный, в котируемой валюте.
type Position struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Type        PositionType   `json:"type"`
	EntryPrice  float64        `json:"entryPrice"`
	StopLoss    float64        `json:"stopLoss"`
	TakeProfit  float64        `json:"takeProfit"`
	Size        float64        `json:"size"`
	EntryTime   int64          `json:"entryTime"`
	Status      PositionStatus `json:"status"`
	PnL         float64        `json:"pnl"`
	PnLPercent  float64        `json:"pnlPercent"`
	ExitPrice   float64        `json:"exitPrice,omitempty"`
	ExitTime    int64          `json:"exitTime,omitempty"`
	CloseReason CloseReason    `json:"closeReason,omitempty"`
}

// TradeAction тип записи в истории сделок
type TradeAction string

const (
	TradeActionOpen  TradeAction = "OPEN"
	TradeActionClose TradeAction = "CLOSE"
)

// TradeHistoryEntry неизменяемый снимок позиции в момент открытия или закрытия
type TradeHistoryEntry struct {
	Action    TradeAction `json:"action"`
	Position  Position    `json:"position"`
	Timestamp int64       `json:"timestamp"`
}

// Statistics агрегированная статистика счёта
type Statistics struct {
	TotalBalance     float64 `json:"totalBalance"`
	AvailableBalance float64 `json:"availableBalance"`
	ActivePositions  int     `json:"activePositions"`
	TotalTrades      int     `json:"totalTrades"`
	WinningTrades    int     `json:"winningTrades"`
	WinRate          float64 `json:"winRate"`
	TotalPnL         float64 `json:"totalPnL"`
	TotalPnLPercent  float64 `json:"totalPnLPercent"`
}
