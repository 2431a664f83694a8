// Package events broadcasts settlement results over ZeroMQ.
// This package implements:
//   - Publisher: PUB socket with topic-framed JSON payloads
//   - Best-effort fan-out; subscribers never block settlement
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/dvnam/ledger-engine/engine"
)

// Common errors for event publishing
var (
	ErrNotRunning = errors.New("publisher is not running")
)

// Topics for settlement events.
const (
	TopicApplied  = "ledger.applied"
	TopicRejected = "ledger.rejected"
)

// Payload is the JSON body of one settlement event.
type Payload struct {
	Account   uint64    `json:"account"`
	Amount    uint64    `json:"amount"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Worker    int       `json:"worker"`
	Balance   uint64    `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

// PayloadFrom builds the event payload for a settled transaction.
func PayloadFrom(res engine.Result) Payload {
	p := Payload{
		Account:   uint64(res.Tx.Account),
		Amount:    res.Tx.Amount,
		Kind:      res.Tx.Kind.String(),
		Status:    "applied",
		Worker:    int(res.Worker),
		Balance:   res.Balance,
		Timestamp: time.Now(),
	}
	if res.Err != nil {
		p.Status = "rejected"
		p.Reason = res.Err.Error()
	}
	return p
}

// Topic returns the topic frame for a settled transaction.
func Topic(res engine.Result) string {
	if res.Err != nil {
		return TopicRejected
	}
	return TopicApplied
}

// Publisher broadcasts settlement events on a ZeroMQ PUB socket.
type Publisher struct {
	endpoint string

	ctx    context.Context
	cancel context.CancelFunc
	socket zmq4.Socket

	running bool
	mu      sync.Mutex
}

// NewPublisher creates a publisher that will bind the given endpoint,
// e.g. "tcp://127.0.0.1:5556".
func NewPublisher(endpoint string) *Publisher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Publisher{
		endpoint: endpoint,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start binds the PUB socket.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("publisher already running")
	}

	p.socket = zmq4.NewPub(p.ctx)
	if err := p.socket.Listen(p.endpoint); err != nil {
		return fmt.Errorf("failed to bind publisher: %w", err)
	}

	p.running = true
	return nil
}

// Stop closes the socket. Calling Stop again is a no-op.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false

	p.cancel()
	if p.socket != nil {
		// Best effort - errors during shutdown are expected
		_ = p.socket.Close()
	}
}

// Publish broadcasts one settlement event: a topic frame followed by a JSON
// payload frame.
func (p *Publisher) Publish(res engine.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}

	data, err := json.Marshal(PayloadFrom(res))
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	return p.socket.Send(zmq4.NewMsgFrom([]byte(Topic(res)), data))
}

// Handler adapts the publisher into an engine.ResultHandler. Publish errors
// are dropped; the event feed is best effort and must never stall a worker.
func (p *Publisher) Handler() engine.ResultHandler {
	return func(res engine.Result) {
		_ = p.Publish(res)
	}
}
