// Package engine composes the share ledger, the registry and marketplace,
// the rental escrow and the treasury into one accounting engine.
//
// Every mutating operation runs under a single write lock inside its own
// unit of work: the components apply their changes, the operation is
// appended to the journal, and only then is the unit committed.  Any error,
// including a journal failure, rolls every component back.  Committed
// operations are published to the broker after the lock is released.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/smartrent-ledger/internal/escrow"
	"github.com/iliyamo/smartrent-ledger/internal/ledger"
	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/registry"
	"github.com/iliyamo/smartrent-ledger/internal/treasury"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// Journal persists committed operations in order.
type Journal interface {
	Append(ctx context.Context, ev model.Event) error
}

// Publisher announces committed operations.  Failures are logged and
// counted; they never undo an operation.
type Publisher interface {
	PublishEvent(ctx context.Context, ev model.Event) error
	PublishLockAccess(ctx context.Context, b model.Booking) error
}

// Recorder receives operation metrics.
type Recorder interface {
	RecordOperation(kind, outcome string, duration time.Duration)
	RecordPublishFailure(queue string)
}

// Policy is the fee and income configuration of the engine.
type Policy struct {
	PlatformFeeBps     uint32            `json:"platform_fee_bps" toml:"platform_fee_bps"`
	CancellationFeeBps uint32            `json:"cancellation_fee_bps" toml:"cancellation_fee_bps"`
	FeeRecipient       model.Address     `json:"fee_recipient" toml:"fee_recipient"`
	IncomeBasis        model.IncomeBasis `json:"income_basis" toml:"income_basis"`
}

func (p Policy) registry() registry.Config {
	return registry.Config{PlatformFeeBps: p.PlatformFeeBps, FeeRecipient: p.FeeRecipient}
}

func (p Policy) escrow() escrow.Config {
	return escrow.Config{CancellationFeeBps: p.CancellationFeeBps, FeeRecipient: p.FeeRecipient, Basis: p.IncomeBasis}
}

// Validate checks every part of the policy.
func (p Policy) Validate() error {
	if err := p.registry().Validate(); err != nil {
		return err
	}
	return p.escrow().Validate()
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithJournal appends every committed event to j.
func WithJournal(j Journal) Option { return func(e *Engine) { e.journal = j } }

// WithPublisher announces committed events through p.
func WithPublisher(p Publisher) Option { return func(e *Engine) { e.pub = p } }

// WithClock replaces time.Now as the engine clock.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the engine logger.  The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMetrics records operation outcomes and publish failures in r.
func WithMetrics(r Recorder) Option { return func(e *Engine) { e.metrics = r } }

// Engine serializes every mutating operation and serves the read views.
type Engine struct {
	mu sync.RWMutex

	policy Policy
	tr     *treasury.Treasury
	reg    *registry.Registry
	led    *ledger.Ledger
	esc    *escrow.Escrow
	seq    uint64

	journal Journal
	pub     Publisher
	metrics Recorder
	now     func() time.Time
	log     zerolog.Logger
}

// New builds an empty engine.
func New(policy Policy, opts ...Option) (*Engine, error) {
	if policy.IncomeBasis == "" {
		policy.IncomeBasis = model.IncomeAtCompletion
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("engine policy: %w", err)
	}
	e := &Engine{
		policy: policy,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.tr = treasury.New()
	e.reg = registry.New(policy.registry(), e.tr)
	e.led = ledger.New(e.reg)
	e.reg.Bind(e.led)
	e.esc = escrow.New(policy.escrow(), e.reg, e.tr)
	return e, nil
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// Seq returns the sequence number of the last committed operation.
func (e *Engine) Seq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// payload is the JSON body of a journal event.
type payload struct {
	Input  json.RawMessage `json:"input"`
	Result any             `json:"result,omitempty"`
}

// run executes one operation as a unit: apply, journal, commit.  It returns
// the committed event alongside the result so callers can publish follow-up
// messages.
func run[R any](ctx context.Context, e *Engine, kind model.EventKind, caller model.Address, input any, apply func(tx *txn.Tx, at time.Time) (R, error)) (R, error) {
	var zero R
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	in, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("encode %s input: %w", kind, err)
	}

	e.mu.Lock()
	// Microsecond precision matches the journal column, so replayed
	// timestamps equal the live ones.
	at := e.now().UTC().Truncate(time.Microsecond)
	tx := txn.Begin()
	res, err := apply(tx, at)
	if err != nil {
		tx.Rollback()
		e.mu.Unlock()
		e.record(kind, string(outcomeOf(err)), start)
		return zero, err
	}

	ev, err := newEvent(e.seq+1, kind, caller, at, in, res)
	if err == nil && e.journal != nil {
		if jerr := e.journal.Append(ctx, ev); jerr != nil {
			err = fmt.Errorf("journal append: %w", jerr)
		}
	}
	if err != nil {
		tx.Rollback()
		e.mu.Unlock()
		e.record(kind, "journal_error", start)
		e.log.Error().Err(err).Str("kind", string(kind)).Msg("operation rolled back")
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		e.mu.Unlock()
		return zero, err
	}
	e.seq = ev.Seq
	e.mu.Unlock()

	e.log.Debug().
		Uint64("seq", ev.Seq).
		Str("kind", string(kind)).
		Str("caller", caller.String()).
		Msg("operation committed")
	e.record(kind, "ok", start)

	if e.pub != nil {
		if perr := e.pub.PublishEvent(ctx, ev); perr != nil {
			e.publishFailed("ledger.events", ev, perr)
		}
	}
	return res, nil
}

func newEvent(seq uint64, kind model.EventKind, caller model.Address, at time.Time, input json.RawMessage, result any) (model.Event, error) {
	body, err := json.Marshal(payload{Input: input, Result: result})
	if err != nil {
		return model.Event{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return model.Event{
		ID:      uuid.NewString(),
		Seq:     seq,
		Kind:    kind,
		Caller:  caller,
		At:      at,
		Payload: body,
	}, nil
}

func outcomeOf(err error) model.ErrorKind {
	if k := model.KindOf(err); k != "" {
		return k
	}
	return "error"
}

func (e *Engine) record(kind model.EventKind, outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordOperation(string(kind), outcome, time.Since(start))
	}
}

func (e *Engine) publishFailed(queue string, ev model.Event, err error) {
	e.log.Warn().Err(err).
		Str("queue", queue).
		Uint64("seq", ev.Seq).
		Str("kind", string(ev.Kind)).
		Msg("publish failed")
	if e.metrics != nil {
		e.metrics.RecordPublishFailure(queue)
	}
}

// notifyLock tells the lock actuator about a booking state change.
func (e *Engine) notifyLock(ctx context.Context, b model.Booking) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishLockAccess(ctx, b); err != nil {
		e.log.Warn().Err(err).Uint64("booking_id", b.ID).Str("status", string(b.Status)).Msg("lock access publish failed")
		if e.metrics != nil {
			e.metrics.RecordPublishFailure("lock.access")
		}
	}
}
