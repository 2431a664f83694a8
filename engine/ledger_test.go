package engine

import (
	"sync"
	"testing"
	"time"
)

// collector gathers results from worker goroutines.
type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) handle(res Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
}

func (c *collector) snapshot() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

func waitQuiescent(t *testing.T, l *Ledger) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if l.Stats().PendingTotal == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timeout waiting for quiescence: %+v", l.Stats())
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	stats := l.Stats()
	if stats.Workers != DefaultWorkers {
		t.Errorf("Expected %d workers, got %d", DefaultWorkers, stats.Workers)
	}
}

func TestNewInvalidWorkers(t *testing.T) {
	if _, err := New(Config{Workers: -1}); err != ErrInvalidWorkers {
		t.Errorf("Expected ErrInvalidWorkers, got %v", err)
	}
}

func TestDepositThenOverdraw(t *testing.T) {
	c := &collector{}
	l, err := New(Config{Workers: 2, OnResult: c.handle})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	if err := l.Deposit(1, 500); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if err := l.Withdraw(1, 300); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if err := l.Withdraw(1, 300); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	waitQuiescent(t, l)

	if got := l.BalanceOf(1); got != 200 {
		t.Errorf("Expected balance 200, got %d", got)
	}

	rejected := 0
	for _, res := range c.snapshot() {
		if res.Err == ErrInsufficientFunds {
			rejected++
		} else if res.Err != nil {
			t.Errorf("Unexpected error: %v", res.Err)
		}
	}
	if rejected != 1 {
		t.Errorf("Expected exactly 1 rejected withdrawal, got %d", rejected)
	}

	stats := l.Stats()
	if stats.Applied != 2 || stats.Rejected != 1 {
		t.Errorf("Expected 2 applied / 1 rejected, got %d / %d", stats.Applied, stats.Rejected)
	}
}

func TestWithdrawUnknownAccount(t *testing.T) {
	c := &collector{}
	l, err := New(Config{Workers: 1, OnResult: c.handle})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	if err := l.Withdraw(77, 10); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	waitQuiescent(t, l)

	results := c.snapshot()
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Err != ErrUnknownAccount {
		t.Errorf("Expected ErrUnknownAccount, got %v", results[0].Err)
	}
	if got := l.BalanceOf(77); got != 0 {
		t.Errorf("Expected balance 0, got %d", got)
	}
}

func TestBalanceOfUnseenAccount(t *testing.T) {
	l, err := New(Config{Workers: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	if got := l.BalanceOf(12345); got != 0 {
		t.Errorf("Expected balance 0, got %d", got)
	}
}

func TestSingleAccountOrderAndAffinity(t *testing.T) {
	const n = 40

	c := &collector{}
	l, err := New(Config{Workers: 4, Delay: 2 * time.Millisecond, OnResult: c.handle})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	// Submissions outpace the delayed worker, so the account stays pending
	// for the whole burst and must be pinned to a single worker.
	for i := 1; i <= n; i++ {
		if err := l.Deposit(9, uint64(i)); err != nil {
			t.Fatalf("Deposit %d failed: %v", i, err)
		}
	}
	waitQuiescent(t, l)

	results := c.snapshot()
	if len(results) != n {
		t.Fatalf("Expected %d results, got %d", n, len(results))
	}

	worker := results[0].Worker
	for i, res := range results {
		if res.Tx.Amount != uint64(i+1) {
			t.Fatalf("Result %d out of order: amount %d", i, res.Tx.Amount)
		}
		if res.Worker != worker {
			t.Errorf("Account migrated workers mid-burst: %d then %d", worker, res.Worker)
		}
	}

	var want uint64
	for i := 1; i <= n; i++ {
		want += uint64(i)
	}
	if got := l.BalanceOf(9); got != want {
		t.Errorf("Expected balance %d, got %d", want, got)
	}
}

func TestAlternatingAccountsTwoWorkers(t *testing.T) {
	l, err := New(Config{Workers: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	for i := 0; i < 10; i++ {
		if err := l.Deposit(AccountID(i%2), 100); err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}
	}
	waitQuiescent(t, l)

	for account := AccountID(0); account < 2; account++ {
		if got := l.BalanceOf(account); got != 500 {
			t.Errorf("Account %d: expected balance 500, got %d", account, got)
		}
	}
}

func TestQuiescentInvariants(t *testing.T) {
	l, err := New(Config{Workers: 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	for i := 0; i < 30; i++ {
		if err := l.Deposit(AccountID(i%5), 10); err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}
	}
	waitQuiescent(t, l)

	stats := l.Stats()
	for w, load := range stats.WorkerLoads {
		if load != 0 {
			t.Errorf("Worker %d: expected load 0 at quiescence, got %d", w, load)
		}
	}

	st := l.state
	st.Lock()
	for account := AccountID(0); account < 5; account++ {
		if got := st.Affinity(account); got != WorkerUnassigned {
			t.Errorf("Account %d: expected affinity released, got worker %d", account, got)
		}
		if got := st.Pending(account); got != 0 {
			t.Errorf("Account %d: expected pending 0, got %d", account, got)
		}
	}
	st.Unlock()
}

func TestShutdownDrainsQueuedWork(t *testing.T) {
	l, err := New(Config{Workers: 1, Delay: time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		if err := l.Deposit(3, 5); err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}
	}

	// Shutdown must process already-queued transactions before stopping.
	l.Shutdown()

	if got := l.BalanceOf(3); got != 100 {
		t.Errorf("Expected balance 100 after drain, got %d", got)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	l, err := New(Config{Workers: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Shutdown()

	done := make(chan struct{})
	go func() {
		l.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Second Shutdown blocked")
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	l, err := New(Config{Workers: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Shutdown()

	if err := l.Deposit(1, 100); err != ErrLedgerStopped {
		t.Errorf("Expected ErrLedgerStopped, got %v", err)
	}
}

func TestConcurrentSubmitters(t *testing.T) {
	const (
		submitters   = 8
		perSubmitter = 50
	)

	l, err := New(Config{Workers: 4})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Shutdown()

	var wg sync.WaitGroup
	for s := 0; s < submitters; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSubmitter; i++ {
				if err := l.Deposit(AccountID(s%3), 1); err != nil {
					t.Errorf("Deposit failed: %v", err)
					return
				}
			}
		}(s)
	}
	wg.Wait()
	waitQuiescent(t, l)

	var total uint64
	for account := AccountID(0); account < 3; account++ {
		total += l.BalanceOf(account)
	}
	if want := uint64(submitters * perSubmitter); total != want {
		t.Errorf("Expected total %d, got %d", want, total)
	}
}
