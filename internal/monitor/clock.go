package monitor

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// Ticker delivers polling ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

type systemTicker struct {
	*time.Ticker
}

func (t systemTicker) C() <-chan time.Time { return t.Ticker.C }

// NewSystemTicker wraps time.NewTicker
func NewSystemTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}
