package race

import "github.com/dttson/drifting-car/internal/shared/types"

// Ledger is the rank-ordered, append-only record of finished cars. It holds
// at most one entry per car and at most capacity entries.
type Ledger struct {
	capacity int
	results  []types.CarResult
	seen     map[string]struct{}
}

// NewLedger returns an empty ledger sized for a roster.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{
		capacity: capacity,
		results:  make([]types.CarResult, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Record appends a result with the next rank. It reports false, and records
// nothing, when the ledger is full or the car already has an entry.
func (l *Ledger) Record(id, name string, duration float64, player bool) (types.CarResult, bool) {
	if l.Full() || l.Has(id) {
		return types.CarResult{}, false
	}
	if duration < 0 {
		duration = 0
	}
	r := types.CarResult{
		Rank:     len(l.results) + 1,
		CarID:    id,
		CarName:  name,
		Duration: duration,
		IsPlayer: player,
	}
	l.results = append(l.results, r)
	l.seen[id] = struct{}{}
	return r, true
}

// Has reports whether the car already finished.
func (l *Ledger) Has(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.results) }

// Capacity returns the roster size the ledger was built for.
func (l *Ledger) Capacity() int { return l.capacity }

// Full reports whether every roster slot has a result.
func (l *Ledger) Full() bool { return len(l.results) >= l.capacity }

// Results returns a copy of the entries in rank order.
func (l *Ledger) Results() []types.CarResult {
	out := make([]types.CarResult, len(l.results))
	copy(out, l.results)
	return out
}
