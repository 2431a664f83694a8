// Package journal provides an append-only record of settled transactions
// with Apache Arrow export.
// This package implements:
//   - Journal: thread-safe, append-only settlement log
//   - Arrow schema, record conversion and IPC round-trip
package journal

import (
	"sync"
	"time"

	"github.com/dvnam/ledger-engine/engine"
)

// Entry statuses.
const (
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// Entry is one settled transaction in the journal.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Account   uint64    `json:"account"`
	Amount    uint64    `json:"amount"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Worker    int32     `json:"worker"`
	Balance   uint64    `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal is an append-only settlement log with thread-safe operations.
// Entries live for the process lifetime; there is no eviction.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	nextSeq uint64
}

// New creates an empty Journal.
func New() *Journal {
	return &Journal{}
}

// Record appends one settled transaction. Safe for concurrent use from
// worker goroutines; it is a valid engine.ResultHandler.
func (j *Journal) Record(res engine.Result) {
	entry := Entry{
		Account:   uint64(res.Tx.Account),
		Amount:    res.Tx.Amount,
		Kind:      res.Tx.Kind.String(),
		Status:    StatusApplied,
		Worker:    int32(res.Worker),
		Balance:   res.Balance,
		Timestamp: time.Now(),
	}
	if res.Err != nil {
		entry.Status = StatusRejected
		entry.Reason = res.Err.Error()
	}

	j.mu.Lock()
	entry.Seq = j.nextSeq
	j.nextSeq++
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

// Len returns the number of journal entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Entries returns a copy of all journal entries in settlement order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	copied := make([]Entry, len(j.entries))
	copy(copied, j.entries)
	return copied
}

// Stats contains journal statistics.
type Stats struct {
	Entries  int `json:"entries"`
	Applied  int `json:"applied"`
	Rejected int `json:"rejected"`
}

// Stats returns journal statistics.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := Stats{Entries: len(j.entries)}
	for _, e := range j.entries {
		if e.Status == StatusApplied {
			stats.Applied++
		} else {
			stats.Rejected++
		}
	}
	return stats
}
