package journal

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Schema returns the Arrow schema for journal entries.
//
// Fields:
//   - seq: uint64 - Settlement sequence number
//   - account: uint64 - Account identifier
//   - amount: uint64 - Transaction amount
//   - kind: string - "deposit" or "withdraw"
//   - status: string - "applied" or "rejected"
//   - reason: string - Reject reason, empty when applied
//   - worker: int32 - Worker that settled the transaction
//   - balance: uint64 - Account balance after settling
//   - timestamp: float64 - Unix timestamp of settlement
func Schema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "seq", Type: arrow.PrimitiveTypes.Uint64},
			{Name: "account", Type: arrow.PrimitiveTypes.Uint64},
			{Name: "amount", Type: arrow.PrimitiveTypes.Uint64},
			{Name: "kind", Type: arrow.BinaryTypes.String},
			{Name: "status", Type: arrow.BinaryTypes.String},
			{Name: "reason", Type: arrow.BinaryTypes.String},
			{Name: "worker", Type: arrow.PrimitiveTypes.Int32},
			{Name: "balance", Type: arrow.PrimitiveTypes.Uint64},
			{Name: "timestamp", Type: arrow.PrimitiveTypes.Float64},
		},
		nil,
	)
}

// ToRecord converts journal entries to an Arrow RecordBatch. The caller owns
// the returned record and must Release it.
func ToRecord(entries []Entry) (arrow.Record, error) {
	if len(entries) == 0 {
		return nil, errors.New("empty entries slice")
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, Schema())
	defer builder.Release()

	seqBuilder := builder.Field(0).(*array.Uint64Builder)
	accountBuilder := builder.Field(1).(*array.Uint64Builder)
	amountBuilder := builder.Field(2).(*array.Uint64Builder)
	kindBuilder := builder.Field(3).(*array.StringBuilder)
	statusBuilder := builder.Field(4).(*array.StringBuilder)
	reasonBuilder := builder.Field(5).(*array.StringBuilder)
	workerBuilder := builder.Field(6).(*array.Int32Builder)
	balanceBuilder := builder.Field(7).(*array.Uint64Builder)
	timestampBuilder := builder.Field(8).(*array.Float64Builder)

	for _, e := range entries {
		seqBuilder.Append(e.Seq)
		accountBuilder.Append(e.Account)
		amountBuilder.Append(e.Amount)
		kindBuilder.Append(e.Kind)
		statusBuilder.Append(e.Status)
		reasonBuilder.Append(e.Reason)
		workerBuilder.Append(e.Worker)
		balanceBuilder.Append(e.Balance)
		timestampBuilder.Append(float64(e.Timestamp.UnixNano()) / 1e9)
	}

	return builder.NewRecord(), nil
}

// ExportIPC serializes journal entries to Arrow IPC bytes.
func ExportIPC(entries []Entry) ([]byte, error) {
	record, err := ToRecord(entries)
	if err != nil {
		return nil, err
	}
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(record.Schema()))

	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return buf.Bytes(), nil
}

// ImportIPC deserializes Arrow IPC bytes back into journal entries.
func ImportIPC(data []byte) ([]Entry, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var entries []Entry
	for reader.Next() {
		record := reader.Record()

		seq := record.Column(0).(*array.Uint64)
		account := record.Column(1).(*array.Uint64)
		amount := record.Column(2).(*array.Uint64)
		kind := record.Column(3).(*array.String)
		status := record.Column(4).(*array.String)
		reason := record.Column(5).(*array.String)
		worker := record.Column(6).(*array.Int32)
		balance := record.Column(7).(*array.Uint64)
		timestamp := record.Column(8).(*array.Float64)

		for i := 0; i < int(record.NumRows()); i++ {
			ts := timestamp.Value(i)
			secs := int64(ts)
			nsecs := int64((ts - float64(secs)) * 1e9)

			entries = append(entries, Entry{
				Seq:       seq.Value(i),
				Account:   account.Value(i),
				Amount:    amount.Value(i),
				Kind:      kind.Value(i),
				Status:    status.Value(i),
				Reason:    reason.Value(i),
				Worker:    worker.Value(i),
				Balance:   balance.Value(i),
				Timestamp: time.Unix(secs, nsecs),
			})
		}
	}

	if reader.Err() != nil {
		return nil, reader.Err()
	}
	return entries, nil
}
