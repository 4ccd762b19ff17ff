package quiz

import (
	"sync"
	"time"
)

// Task is a handle on a recurring callback.
type Task interface {
	// Stop cancels the task. It does not wait for a running callback and may
	// be called from inside one.
	Stop()
}

// Scheduler starts recurring callbacks.
type Scheduler interface {
	Every(d time.Duration, f func()) Task
}

// TickerScheduler runs callbacks on a time.Ticker goroutine.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, f func()) Task {
	t := &tickerTask{ticker: time.NewTicker(d), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.stop:
				return
			case <-t.ticker.C:
				// a Stop racing with the tick wins
				select {
				case <-t.stop:
					return
				default:
				}
				f()
			}
		}
	}()
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *tickerTask) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
}
