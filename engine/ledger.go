package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Ledger dispatches transactions to a fixed pool of workers with account
// affinity: all transactions for one account are processed by exactly one
// worker at a time, in submission order, while accounts spread across workers
// by current load.
type Ledger struct {
	cfg    Config
	state  *State
	queues []chan message

	// Atomic counters for thread-safe statistics
	applied  uint64
	rejected uint64

	// Control
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// New creates a ledger and starts its worker pool.
func New(cfg Config) (*Ledger, error) {
	cfg = cfg.withDefaults()
	if cfg.Workers < 1 {
		return nil, ErrInvalidWorkers
	}

	l := &Ledger{
		cfg:    cfg,
		state:  NewState(cfg.Workers),
		queues: make([]chan message, cfg.Workers),
	}

	for i := range l.queues {
		l.queues[i] = make(chan message, cfg.QueueDepth)
	}
	for i := 0; i < cfg.Workers; i++ {
		l.wg.Add(1)
		go l.runWorker(WorkerID(i), l.queues[i])
	}

	return l, nil
}

// Submit accepts a transaction for eventual processing by exactly one worker.
// Fire and forget: no completion result is returned; set Config.OnResult to
// observe settling. Returns ErrLedgerStopped after Shutdown.
func (l *Ledger) Submit(account AccountID, amount uint64, kind TxKind) error {
	// The read lock is held across the queue send so Shutdown cannot append
	// a poison pill between the bookkeeping and the handoff.
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.stopped {
		return ErrLedgerStopped
	}

	st := l.state
	st.Lock()
	worker := st.ResolveWorker(account)
	st.SetAffinity(account, worker)
	st.IncreasePending(account, 1)
	st.IncreaseLoad(worker, 1)
	st.Unlock()

	// The queue send stays outside the state lock; a slow worker must not
	// stall bookkeeping or balance reads.
	l.queues[worker] <- message{
		tx:        Transaction{Account: account, Amount: amount, Kind: kind},
		submitted: time.Now(),
	}
	return nil
}

// Deposit submits a deposit for the account.
func (l *Ledger) Deposit(account AccountID, amount uint64) error {
	return l.Submit(account, amount, Deposit)
}

// Withdraw submits a withdrawal for the account.
func (l *Ledger) Withdraw(account AccountID, amount uint64) error {
	return l.Submit(account, amount, Withdraw)
}

// BalanceOf returns the applied balance for an account. Pending transactions
// are not reflected. Unseen accounts have a zero balance.
func (l *Ledger) BalanceOf(account AccountID) uint64 {
	st := l.state
	st.Lock()
	defer st.Unlock()
	return st.Balance(account)
}

// Shutdown appends a poison pill to every worker queue, after all prior
// sends, and waits for every worker to drain its queue and exit. Calling
// Shutdown again after it returns is a no-op.
func (l *Ledger) Shutdown() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()

	for _, q := range l.queues {
		q <- message{terminate: true}
	}
	l.wg.Wait()
}

// Stats contains ledger statistics.
type Stats struct {
	Workers      int      `json:"workers"`
	Accounts     int      `json:"accounts"`
	PendingTotal uint64   `json:"pending_total"`
	WorkerLoads  []uint32 `json:"worker_loads"`
	QueueDepths  []int    `json:"queue_depths"`
	Applied      uint64   `json:"applied"`
	Rejected     uint64   `json:"rejected"`
}

// Stats returns a snapshot of current ledger statistics. Accounts counts
// every account the dispatcher has seen.
func (l *Ledger) Stats() Stats {
	st := l.state
	st.Lock()

	loads := make([]uint32, len(st.load))
	copy(loads, st.load)

	var pending uint64
	for _, p := range st.pending {
		pending += uint64(p)
	}
	accounts := len(st.affinity)

	st.Unlock()

	depths := make([]int, len(l.queues))
	for i, q := range l.queues {
		depths[i] = len(q)
	}

	return Stats{
		Workers:      l.cfg.Workers,
		Accounts:     accounts,
		PendingTotal: pending,
		WorkerLoads:  loads,
		QueueDepths:  depths,
		Applied:      atomic.LoadUint64(&l.applied),
		Rejected:     atomic.LoadUint64(&l.rejected),
	}
}
