// Package engine implements the affinity-aware ledger core.
// This package implements:
//   - State: mutex-guarded balances, pending counts, affinity and worker load
//   - Ledger: dispatcher, fixed worker pool and shutdown coordination
//   - Worker loop with poison-pill termination
package engine

import (
	"errors"
	"sync"
)

// Common errors for ledger operations
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrLedgerStopped     = errors.New("ledger is stopped")
	ErrInvalidWorkers    = errors.New("worker count must be positive")
)

// AccountID identifies an account. Accounts are never created explicitly:
// the first reference materializes a zero balance and zero pending count.
type AccountID uint64

// WorkerID identifies one worker in [0, Workers), or WorkerUnassigned.
type WorkerID int

// WorkerUnassigned marks an account that currently has no worker affinity.
const WorkerUnassigned WorkerID = -1

// TxKind is the transaction type.
type TxKind int

const (
	Deposit TxKind = iota
	Withdraw
)

func (k TxKind) String() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// Transaction is one deposit or withdrawal. Immutable once created; owned by
// a worker queue until consumed by exactly one worker.
type Transaction struct {
	Account AccountID `json:"account"`
	Amount  uint64    `json:"amount"`
	Kind    TxKind    `json:"kind"`
}

// State is the shared ledger record: balances, per-account pending counts,
// per-account worker affinity and per-worker load. One coarse lock guards
// everything, so the pending-then-affinity read-modify-write stays atomic.
//
// Methods do not lock. Callers hold the embedded mutex for the whole compound
// sequence they need to be atomic.
type State struct {
	sync.Mutex

	balances map[AccountID]uint64
	pending  map[AccountID]uint32
	affinity map[AccountID]WorkerID
	load     []uint32
}

// NewState creates ledger state for a pool of the given size.
func NewState(workers int) *State {
	return &State{
		balances: make(map[AccountID]uint64),
		pending:  make(map[AccountID]uint32),
		affinity: make(map[AccountID]WorkerID),
		load:     make([]uint32, workers),
	}
}

// IncreasePending raises the pending count for an account and returns the
// new value.
func (s *State) IncreasePending(account AccountID, n uint32) uint32 {
	s.pending[account] += n
	return s.pending[account]
}

// DecreasePending lowers the pending count for an account, saturating at
// zero, and returns the new value.
func (s *State) DecreasePending(account AccountID, n uint32) uint32 {
	p := s.pending[account]
	if p <= n {
		p = 0
	} else {
		p -= n
	}
	s.pending[account] = p
	return p
}

// Pending returns the pending count for an account, zero for unseen accounts.
func (s *State) Pending(account AccountID) uint32 {
	return s.pending[account]
}

// IncreaseLoad raises the in-flight transaction count for a worker.
func (s *State) IncreaseLoad(worker WorkerID, n uint32) {
	if worker < 0 || int(worker) >= len(s.load) {
		return
	}
	s.load[worker] += n
}

// DecreaseLoad lowers the in-flight transaction count for a worker,
// saturating at zero.
func (s *State) DecreaseLoad(worker WorkerID, n uint32) {
	if worker < 0 || int(worker) >= len(s.load) {
		return
	}
	if s.load[worker] <= n {
		s.load[worker] = 0
	} else {
		s.load[worker] -= n
	}
}

// Load returns the in-flight transaction count for a worker.
func (s *State) Load(worker WorkerID) uint32 {
	if worker < 0 || int(worker) >= len(s.load) {
		return 0
	}
	return s.load[worker]
}

// ApplyDeposit credits an account, creating it on first touch.
func (s *State) ApplyDeposit(account AccountID, amount uint64) {
	s.balances[account] += amount
}

// ApplyWithdraw debits an account. Returns ErrUnknownAccount when the account
// has no balance entry yet and ErrInsufficientFunds when the balance does not
// cover the amount. The balance is unchanged on error.
func (s *State) ApplyWithdraw(account AccountID, amount uint64) error {
	balance, ok := s.balances[account]
	if !ok {
		return ErrUnknownAccount
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	s.balances[account] = balance - amount
	return nil
}

// Balance returns the applied balance for an account. An account with no
// history has a zero balance, not an error.
func (s *State) Balance(account AccountID) uint64 {
	return s.balances[account]
}

// SetAffinity binds an account to a worker, or to WorkerUnassigned to release
// the binding. Affinity may only change while the account's pending count is
// zero; callers enforce that under the state lock.
func (s *State) SetAffinity(account AccountID, worker WorkerID) {
	s.affinity[account] = worker
}

// Affinity returns the worker currently bound to an account, or
// WorkerUnassigned.
func (s *State) Affinity(account AccountID) WorkerID {
	if w, ok := s.affinity[account]; ok {
		return w
	}
	return WorkerUnassigned
}

// ResolveWorker returns the worker responsible for an account: the bound
// worker if affinity is set, otherwise the least-loaded worker with ties
// broken by lowest WorkerID. The assignment is not committed; callers commit
// it with SetAffinity.
func (s *State) ResolveWorker(account AccountID) WorkerID {
	if w, ok := s.affinity[account]; ok && w != WorkerUnassigned {
		return w
	}

	best := WorkerID(0)
	for i := 1; i < len(s.load); i++ {
		if s.load[i] < s.load[best] {
			best = WorkerID(i)
		}
	}
	return best
}
