// Package publisher fans trail events out to the event store and an optional
// streaming sink.
//
// The store write is the quality record and is mandatory: in sync mode its
// error surfaces to the caller. The sink is best-effort and guarded by a
// circuit breaker so a broker outage degrades to store-only operation instead
// of back-pressuring report mutations.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/circuit"
)

// ErrBufferFull is returned in async mode when the inbox is saturated. The
// event is dropped; emitting operations are never blocked on the trail.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned when emitting after Close.
var ErrClosed = errors.New("audit publisher closed")

type Publisher struct {
	store   audit.Store
	sink    audit.Sink
	breaker *circuit.Breaker
	logger  *slog.Logger

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed atomic.Bool
	once   sync.Once
	probes atomic.Uint64
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given inbox
// capacity. Store and sink writes then happen on a background goroutine.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan audit.Event, size)
		}
	}
}

// WithSink attaches a streaming sink (Kafka).
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithLogger sets the logger for sink degradation notices.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher constructs a Publisher. Without WithAsyncBuffer it persists
// events synchronously on Emit.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		breaker: circuit.New("audit-sink", circuit.WithFailureThreshold(3)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an event. A zero timestamp is stamped with the current time
// and a zero category is derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.TrailEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrBufferFull
	}
}

// List returns the trail for one record, oldest first.
func (p *Publisher) List(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	return p.store.ListByEntity(ctx, entityType, entityID)
}

// ListRecent returns the newest events across all records.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close drains the async inbox and stops the background goroutine. Events
// already accepted by Emit are persisted before Close returns.
func (p *Publisher) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	// Detached from request contexts: events already accepted must survive
	// the request that produced them.
	ctx := context.Background()
	for event := range p.inbox {
		if err := p.persist(ctx, event); err != nil && p.logger != nil {
			p.logger.Error("audit event dropped", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	p.forward(ctx, event)
	return nil
}

// probeEvery is how many events are skipped between probe sends while the
// breaker is open. Successful probes close the circuit again.
const probeEvery = 16

// forward streams the event to the sink when the breaker allows it. Sink
// errors never fail the emit; the store already holds the record. While the
// circuit is open most events skip the sink, with every probeEvery-th event
// sent as a probe so recovery is detected without a dedicated health check.
func (p *Publisher) forward(ctx context.Context, event audit.Event) {
	if p.sink == nil {
		return
	}
	if p.breaker.IsOpen() {
		if p.probes.Add(1)%probeEvery != 0 {
			return
		}
	}
	if err := p.sink.Send(ctx, event); err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened && p.logger != nil {
			p.logger.Warn("audit sink circuit opened, events continue store-only",
				"breaker", p.breaker.Name(), "error", err)
		}
		return
	}
	_, change := p.breaker.RecordSuccess()
	if change.Closed && p.logger != nil {
		p.logger.Info("audit sink circuit closed", "breaker", p.breaker.Name())
	}
}

// ResetSink force-closes the sink breaker. Exposed for operational tooling
// after a broker recovery.
func (p *Publisher) ResetSink() {
	p.breaker.Reset()
}
