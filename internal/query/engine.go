package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

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

// MerchantTotal is the spend at one merchant within a result
type MerchantTotal struct {
	Merchant string          `json:"merchant"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

// Answer summarizes a result set
type Answer struct {
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Merchants []MerchantTotal `json:"merchants"`
}

// Result is a resolved query and its matching receipts
type Result struct {
	Query    Query             `json:"query"`
	Receipts []receipt.Receipt `json:"receipts"`
	Answer   Answer            `json:"answer"`
}

// Summarize totals receipts overall and per merchant. Merchants are ordered by
// total descending, then by name.
func Summarize(receipts []receipt.Receipt) Answer {
	answer := Answer{
		Count:     len(receipts),
		Total:     decimal.Zero,
		Currency:  "CLP",
		Merchants: []MerchantTotal{},
	}
	if len(receipts) > 0 && receipts[0].CurrencyCode != "" {
		answer.Currency = receipts[0].CurrencyCode
	}

	index := map[string]int{}
	for _, r := range receipts {
		answer.Total = answer.Total.Add(r.Amount)

		i, ok := index[r.MerchantName]
		if !ok {
			i = len(answer.Merchants)
			index[r.MerchantName] = i
			answer.Merchants = append(answer.Merchants, MerchantTotal{Merchant: r.MerchantName, Total: decimal.Zero})
		}
		answer.Merchants[i].Count++
		answer.Merchants[i].Total = answer.Merchants[i].Total.Add(r.Amount)
	}

	sort.SliceStable(answer.Merchants, func(i, j int) bool {
		a, b := answer.Merchants[i], answer.Merchants[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.Merchant < b.Merchant
	})
	return answer
}

// Text renders the answer as a short Spanish reply
func (a Answer) Text() string {
	if a.Count == 0 {
		return "No encontré boletas relevantes para tu consulta. Intenta ajustar las palabras clave o cargar nuevas boletas."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Resumen de %d boletas relacionadas con tu consulta:\n", a.Count)
	fmt.Fprintf(&b, "Total estimado: %s %s\n\nDetalle por comercio:", a.Total.String(), a.Currency)
	for _, m := range a.Merchants {
		fmt.Fprintf(&b, "\n• %s: %d documentos, total %s %s", m.Merchant, m.Count, m.Total.String(), a.Currency)
	}
	return b.String()
}

// Engine resolves prompts against the latest published snapshot of the collection
type Engine struct {
	timeSource TimeSource
	snapshot   atomic.Pointer[receipt.Snapshot]

	mu   sync.Mutex
	last *Result
}

// NewEngine creates an Engine with an empty collection
func NewEngine() *Engine {
	return NewEngineWithDeps(wallClock{})
}

// NewEngineWithDeps creates an Engine with a custom time source for testing
func NewEngineWithDeps(timeSrc TimeSource) *Engine {
	e := &Engine{timeSource: timeSrc}
	e.snapshot.Store(&receipt.Snapshot{Receipts: []receipt.Receipt{}})
	return e
}

// Run observes snapshots until ctx is done or updates is closed
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

// Observe makes snap the current collection and re-runs the last query
// against it. Snapshots older than the current one are ignored.
func (e *Engine) Observe(snap *receipt.Snapshot) {
	if snap == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cur := e.snapshot.Load(); cur != nil && cur.Version > snap.Version {
		return
	}
	e.snapshot.Store(snap)

	if e.last != nil {
		refreshed := e.executeLocked(e.last.Query)
		e.last = &refreshed
	}
}

// Snapshot returns the collection queries currently run against
func (e *Engine) Snapshot() *receipt.Snapshot {
	return e.snapshot.Load()
}

// Resolve turns prompt into a Query and runs it
func (e *Engine) Resolve(prompt string) Result {
	return e.Execute(NewQuery(prompt, e.timeSource.Now()))
}

// Execute runs q against the current snapshot and remembers the result
func (e *Engine) Execute(q Query) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.executeLocked(q)
	e.last = &res
	return res
}

func (e *Engine) executeLocked(q Query) Result {
	receipts := Search(e.snapshot.Load().Receipts, q)
	return Result{
		Query:    q,
		Receipts: receipts,
		Answer:   Summarize(receipts),
	}
}

// Last returns the most recent result, refreshed against later snapshots
func (e *Engine) Last() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.last == nil {
		return Result{}, false
	}
	return *e.last, true
}
