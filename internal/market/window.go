package market

import (
	"sort"
	"sync"
	"time"

	"github.com/Qwalex/QTrader/pkg/models"
)

// DefaultWindowSize размер окна свечей по умолчанию
const DefaultWindowSize = 200

// Window ограниченное окно свечей одного символа: без дубликатов,
// отсортировано по возрастанию времени, при переполнении вытесняются
// самые старые свечи. Не потокобезопасно само по себе, доступ
// сериализует Store.
type Window struct {
	maxCandles int
	candles    []models.Candle
	lastUpdate time.Time
}

// NewWindow создает пустое окно
func NewWindow(maxCandles int) *Window {
	if maxCandles <= 0 {
		maxCandles = DefaultWindowSize
	}
	return &Window{maxCandles: maxCandles}
}

// Merge добавляет пачку свечей: дубликаты по timestamp отбрасываются
// (первое вхождение побеждает, уже лежащие в окне свечи не заменяются),
// итог сортируется и обрезается до maxCandles.
func (w *Window) Merge(batch []models.Candle) {
	seen := make(map[int64]struct{}, len(w.candles)+len(batch))
	merged := make([]models.Candle, 0, len(w.candles)+len(batch))

	for _, c := range w.candles {
		if _, ok := seen[c.Timestamp]; ok {
			continue
		}
		seen[c.Timestamp] = struct{}{}
		merged = append(merged, c)
	}
	for _, c := range batch {
		if _, ok := seen[c.Timestamp]; ok {
			continue
		}
		seen[c.Timestamp] = struct{}{}
		merged = append(merged, c)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if len(merged) > w.maxCandles {
		merged = merged[len(merged)-w.maxCandles:]
	}

	w.candles = merged
	w.lastUpdate = time.Now()
}

// Snapshot возвращает копию свечей окна
func (w *Window) Snapshot() []models.Candle {
	out := make([]models.Candle, len(w.candles))
	copy(out, w.candles)
	return out
}

// Len возвращает число свечей в окне
func (w *Window) Len() int {
	return len(w.candles)
}

// LastUpdate время последнего обновления окна
func (w *Window) LastUpdate() time.Time {
	return w.lastUpdate
}

// Store набор окон свечей по символам
type Store struct {
	mu         sync.RWMutex
	maxCandles int
	windows    map[string]*Window
}

// NewStore создает хранилище окон
func NewStore(maxCandles int) *Store {
	return &Store{
		maxCandles: maxCandles,
		windows:    make(map[string]*Window),
	}
}

// Merge добавляет свечи в окно символа, создавая окно при необходимости
func (s *Store) Merge(symbol string, batch []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[symbol]
	if !ok {
		w = NewWindow(s.maxCandles)
		s.windows[symbol] = w
	}
	w.Merge(batch)
}

// Snapshot возвращает неизменяемый снимок окна символа
func (s *Store) Snapshot(symbol string) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[symbol]
	if !ok {
		return nil
	}
	return w.Snapshot()
}

// Len возвращает число свечей в окне символа
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[symbol]
	if !ok {
		return 0
	}
	return w.Len()
}

// LastUpdate время последнего обновления окна символа
func (s *Store) LastUpdate(symbol string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[symbol]
	if !ok {
		return time.Time{}
	}
	return w.LastUpdate()
}
