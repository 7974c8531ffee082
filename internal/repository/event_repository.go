package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// EventRepo is the SQL journal of committed engine operations.
type EventRepo struct{ DB *sqlx.DB }

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{DB: db} }

// eventRow scans the payload into a plain byte slice so the driver buffer
// is copied.
type eventRow struct {
	ID      string          `db:"event_id"`
	Seq     uint64          `db:"seq"`
	Kind    model.EventKind `db:"kind"`
	Caller  string          `db:"caller"`
	At      time.Time       `db:"occurred_at"`
	Payload []byte          `db:"payload"`
}

func (r eventRow) event() model.Event {
	return model.Event{
		ID:      r.ID,
		Seq:     r.Seq,
		Kind:    r.Kind,
		Caller:  model.Address(r.Caller),
		At:      r.At.UTC(),
		Payload: r.Payload,
	}
}

// Append inserts ev.  A sequence number or event id that is already stored
// yields model.ErrDuplicateEventSeq.
func (r *EventRepo) Append(ctx context.Context, ev model.Event) error {
	q := r.DB.Rebind(`INSERT INTO ledger_events (seq, event_id, kind, caller, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.DB.ExecContext(ctx, q,
		ev.Seq, ev.ID, string(ev.Kind), ev.Caller.String(), string(ev.Payload), ev.At.UTC())
	if err != nil {
		if _, dup := uniqueViolation(err); dup {
			return fmt.Errorf("event %d: %w", ev.Seq, model.ErrDuplicateEventSeq)
		}
		return err
	}
	return nil
}

// Events returns up to limit events with seq > afterSeq in order.  limit
// <= 0 returns every remaining event.
func (r *EventRepo) Events(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	q := `SELECT seq, event_id, kind, caller, payload, occurred_at
		FROM ledger_events WHERE seq > ? ORDER BY seq`
	args := []any{afterSeq}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	var rows []eventRow
	if err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(q), args...); err != nil {
		return nil, err
	}
	out := make([]model.Event, len(rows))
	for i, row := range rows {
		out[i] = row.event()
	}
	return out, nil
}

// LastSeq returns the highest stored sequence number, or 0 when empty.
func (r *EventRepo) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := r.DB.GetContext(ctx, &seq, "SELECT COALESCE(MAX(seq), 0) FROM ledger_events")
	return seq, err
}

// All streams the whole journal in pages of batch events.
func (r *EventRepo) All(ctx context.Context, batch int) ([]model.Event, error) {
	if batch <= 0 {
		batch = 500
	}
	var (
		all   []model.Event
		after uint64
	)
	for {
		page, err := r.Events(ctx, after, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < batch {
			return all, nil
		}
		after = page[len(page)-1].Seq
	}
}
