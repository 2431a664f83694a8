// Command ledger-engine runs the in-memory affinity ledger with a demo
// traffic generator and optional metrics, journal export and event feed.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvnam/ledger-engine/api"
	"github.com/dvnam/ledger-engine/engine"
	"github.com/dvnam/ledger-engine/events"
	"github.com/dvnam/ledger-engine/journal"
)

func main() {
	var (
		workers     = flag.Int("workers", engine.DefaultWorkers, "Number of worker goroutines")
		queueDepth  = flag.Int("queue", engine.DefaultQueueDepth, "Per-worker queue buffer size")
		delay       = flag.Duration("delay", 500*time.Millisecond, "Simulated service time per transaction")
		rounds      = flag.Int("rounds", 4, "Demo traffic rounds")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address, e.g. :2112 (empty = disabled)")
		eventsAddr  = flag.String("events-addr", "", "ZeroMQ PUB endpoint, e.g. tcp://127.0.0.1:5556 (empty = disabled)")
		journalOut  = flag.String("journal", "", "Write the settlement journal as Arrow IPC to this file on exit")
	)
	flag.Parse()

	log.SetPrefix("[LEDGER] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jrnl := journal.New()

	var metrics *api.Metrics
	var metricsServer *api.MetricsServer
	if *metricsAddr != "" {
		metrics = api.NewMetrics("ledger")
		metricsServer = api.NewMetricsServer(*metricsAddr)
		metricsServer.StartAsync()
		log.Printf("metrics listening on %s", *metricsAddr)
	}

	var pub *events.Publisher
	if *eventsAddr != "" {
		pub = events.NewPublisher(*eventsAddr)
		if err := pub.Start(); err != nil {
			log.Fatalf("start event publisher: %v", err)
		}
		defer pub.Stop()
		log.Printf("events published on %s", *eventsAddr)
	}

	onResult := func(res engine.Result) {
		jrnl.Record(res)
		if metrics != nil {
			metrics.RecordResult(res)
		}
		if pub != nil {
			_ = pub.Publish(res)
		}
		if res.Err != nil {
			log.Printf("rejected %s of %d for account %d: %v",
				res.Tx.Kind, res.Tx.Amount, res.Tx.Account, res.Err)
		}
	}

	led, err := engine.New(engine.Config{
		Workers:    *workers,
		QueueDepth: *queueDepth,
		Delay:      *delay,
		OnResult:   onResult,
	})
	if err != nil {
		log.Fatalf("create ledger: %v", err)
	}

	if metrics != nil {
		go pollStats(ctx, led, metrics)
	}

	runTraffic(ctx, led, metrics, *rounds)

	waitQuiescent(ctx, led)
	led.Shutdown()

	for account := engine.AccountID(0); account < 2; account++ {
		log.Printf("account %d: balance %d", account, led.BalanceOf(account))
	}
	stats := led.Stats()
	log.Printf("applied %d, rejected %d across %d workers", stats.Applied, stats.Rejected, stats.Workers)

	if *journalOut != "" {
		exportJournal(jrnl, *journalOut)
	}
	if metricsServer != nil {
		_ = metricsServer.Stop()
	}
}

// runTraffic reproduces the demo load: per round, two deposits and two
// withdrawals alternating between accounts 0 and 1.
func runTraffic(ctx context.Context, led *engine.Ledger, metrics *api.Metrics, rounds int) {
	submit := func(account engine.AccountID, amount uint64, kind engine.TxKind) {
		if err := led.Submit(account, amount, kind); err != nil {
			log.Printf("submit failed: %v", err)
			return
		}
		if metrics != nil {
			metrics.RecordSubmit()
		}
	}

	for r := 0; r < rounds; r++ {
		submit(0, 500, engine.Deposit)
		submit(1, 400, engine.Deposit)
		submit(1, 300, engine.Withdraw)
		submit(0, 100, engine.Withdraw)

		select {
		case <-ctx.Done():
			log.Println("interrupted, draining")
			return
		case <-time.After(700 * time.Millisecond):
		}
	}
}

// waitQuiescent blocks until no transactions are pending or the context is
// cancelled. Shutdown drains the queues either way.
func waitQuiescent(ctx context.Context, led *engine.Ledger) {
	for led.Stats().PendingTotal > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// pollStats refreshes metric gauges until the context is cancelled.
func pollStats(ctx context.Context, led *engine.Ledger, metrics *api.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateStats(led.Stats())
		}
	}
}

func exportJournal(jrnl *journal.Journal, path string) {
	entries := jrnl.Entries()
	if len(entries) == 0 {
		log.Println("journal empty, nothing to export")
		return
	}

	data, err := journal.ExportIPC(entries)
	if err != nil {
		log.Printf("export journal: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("write journal file: %v", err)
		return
	}
	log.Printf("journal written to %s (%d entries)", path, len(entries))
}
