package engine

import (
	"sync/atomic"
	"time"
)

// message is a control message consumed by exactly one worker: either a
// transaction or the terminate poison pill.
type message struct {
	tx        Transaction
	submitted time.Time
	terminate bool
}

// Result describes one settled transaction. A rejected withdrawal carries
// ErrInsufficientFunds or ErrUnknownAccount in Err and leaves the balance
// unchanged; the transaction still counts as settled.
type Result struct {
	Tx      Transaction
	Worker  WorkerID
	Balance uint64 // account balance after settling
	Err     error
	Latency time.Duration // time from submission to settling
}

// ResultHandler is the asynchronous completion hook for settled transactions.
// It runs on the worker goroutine; the state lock is never held during the
// call.
type ResultHandler func(Result)

// runWorker is the sequential processing loop of one worker. It blocks on its
// queue, settles transactions in receive order and exits on the poison pill.
func (l *Ledger) runWorker(id WorkerID, queue <-chan message) {
	defer l.wg.Done()

	for msg := range queue {
		if msg.terminate {
			return
		}

		l.settle(id, msg)

		if l.cfg.Delay > 0 {
			// Simulated service time stays outside the state lock.
			time.Sleep(l.cfg.Delay)
		}
	}
}

// settle applies one transaction and clears its bookkeeping under a single
// lock acquisition.
func (l *Ledger) settle(id WorkerID, msg message) {
	tx := msg.tx
	st := l.state

	st.Lock()

	var err error
	switch tx.Kind {
	case Withdraw:
		err = st.ApplyWithdraw(tx.Account, tx.Amount)
	default:
		st.ApplyDeposit(tx.Account, tx.Amount)
	}

	// Affinity is released only here, under the same lock acquisition that
	// observed the drained pending count.
	if st.DecreasePending(tx.Account, 1) == 0 {
		st.SetAffinity(tx.Account, WorkerUnassigned)
	}
	st.DecreaseLoad(id, 1)
	balance := st.Balance(tx.Account)

	st.Unlock()

	if err != nil {
		atomic.AddUint64(&l.rejected, 1)
	} else {
		atomic.AddUint64(&l.applied, 1)
	}

	if l.cfg.OnResult != nil {
		l.cfg.OnResult(Result{
			Tx:      tx,
			Worker:  id,
			Balance: balance,
			Err:     err,
			Latency: time.Since(msg.submitted),
		})
	}
}
