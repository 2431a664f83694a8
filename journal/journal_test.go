package journal

import (
	"testing"

	"github.com/dvnam/ledger-engine/engine"
)

func TestRecordAppliesSequence(t *testing.T) {
	j := New()

	j.Record(engine.Result{
		Tx:      engine.Transaction{Account: 1, Amount: 500, Kind: engine.Deposit},
		Worker:  0,
		Balance: 500,
	})
	j.Record(engine.Result{
		Tx:      engine.Transaction{Account: 1, Amount: 900, Kind: engine.Withdraw},
		Worker:  0,
		Balance: 500,
		Err:     engine.ErrInsufficientFunds,
	})

	entries := j.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	if entries[0].Seq != 0 || entries[1].Seq != 1 {
		t.Errorf("Expected sequences 0,1, got %d,%d", entries[0].Seq, entries[1].Seq)
	}
	if entries[0].Status != StatusApplied {
		t.Errorf("Expected status %q, got %q", StatusApplied, entries[0].Status)
	}
	if entries[1].Status != StatusRejected {
		t.Errorf("Expected status %q, got %q", StatusRejected, entries[1].Status)
	}
	if entries[1].Reason != engine.ErrInsufficientFunds.Error() {
		t.Errorf("Unexpected reject reason %q", entries[1].Reason)
	}
	if entries[0].Kind != "deposit" || entries[1].Kind != "withdraw" {
		t.Errorf("Unexpected kinds %q, %q", entries[0].Kind, entries[1].Kind)
	}
}

func TestStats(t *testing.T) {
	j := New()

	for i := 0; i < 3; i++ {
		j.Record(engine.Result{
			Tx:      engine.Transaction{Account: 2, Amount: 10, Kind: engine.Deposit},
			Balance: uint64(10 * (i + 1)),
		})
	}
	j.Record(engine.Result{
		Tx:  engine.Transaction{Account: 9, Amount: 10, Kind: engine.Withdraw},
		Err: engine.ErrUnknownAccount,
	})

	stats := j.Stats()
	if stats.Entries != 4 {
		t.Errorf("Expected 4 entries, got %d", stats.Entries)
	}
	if stats.Applied != 3 {
		t.Errorf("Expected 3 applied, got %d", stats.Applied)
	}
	if stats.Rejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", stats.Rejected)
	}
}

func TestToRecordEmpty(t *testing.T) {
	if _, err := ToRecord(nil); err == nil {
		t.Error("Expected error for empty entries")
	}
}

func TestIPCRoundTrip(t *testing.T) {
	j := New()
	j.Record(engine.Result{
		Tx:      engine.Transaction{Account: 1, Amount: 500, Kind: engine.Deposit},
		Worker:  2,
		Balance: 500,
	})
	j.Record(engine.Result{
		Tx:      engine.Transaction{Account: 3, Amount: 200, Kind: engine.Withdraw},
		Worker:  1,
		Balance: 0,
		Err:     engine.ErrUnknownAccount,
	})
	want := j.Entries()

	data, err := ExportIPC(want)
	if err != nil {
		t.Fatalf("ExportIPC failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("ExportIPC returned no data")
	}

	got, err := ImportIPC(data)
	if err != nil {
		t.Fatalf("ImportIPC failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}

	for i := range want {
		if got[i].Seq != want[i].Seq ||
			got[i].Account != want[i].Account ||
			got[i].Amount != want[i].Amount ||
			got[i].Kind != want[i].Kind ||
			got[i].Status != want[i].Status ||
			got[i].Reason != want[i].Reason ||
			got[i].Worker != want[i].Worker ||
			got[i].Balance != want[i].Balance {
			t.Errorf("Entry %d mismatch: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSchemaFields(t *testing.T) {
	schema := Schema()
	if schema.NumFields() != 9 {
		t.Errorf("Expected 9 fields, got %d", schema.NumFields())
	}
	if schema.Field(0).Name != "seq" {
		t.Errorf("Expected first field 'seq', got %q", schema.Field(0).Name)
	}
}
