package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/zombor/ahorro/internal/receipt"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

// Engine keeps the summary of the current month up to date with the collection
type Engine struct {
	timeSource TimeSource

	mu      sync.RWMutex
	version uint64
	seen    bool
	current *Summary
}

// NewEngine creates an Engine using the wall clock
func NewEngine() *Engine {
	return NewEngineWithDeps(wallClock{})
}

// NewEngineWithDeps creates an Engine with a custom time source for testing
func NewEngineWithDeps(timeSrc TimeSource) *Engine {
	return &Engine{timeSource: timeSrc}
}

// Run recomputes on every snapshot until ctx is done or updates is closed
func (e *Engine) Run(ctx context.Context, updates <-chan *receipt.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			e.Observe(snap)
		}
	}
}

// Observe recomputes the summary from snap at the current time.
// Snapshots older than the last one observed are dropped.
func (e *Engine) Observe(snap *receipt.Snapshot) {
	if snap == nil {
		return
	}

	summary := Recompute(snap.Receipts, e.timeSource.Now())

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seen && snap.Version < e.version {
		return
	}
	e.seen = true
	e.version = snap.Version
	e.current = summary
}

// Current returns the latest summary. It reports false when no receipt was
// purchased in the current month.
func (e *Engine) Current() (*Summary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current, e.current != nil
}

// RecentSpending returns the daily series of the latest summary
func (e *Engine) RecentSpending() []DailySpend {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.current == nil {
		return []DailySpend{}
	}
	return append([]DailySpend(nil), e.current.Daily...)
}
