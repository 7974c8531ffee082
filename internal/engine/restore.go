package engine

import (
	"context"
	"fmt"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// EventSource reads the journal in sequence order.
type EventSource interface {
	Events(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error)
}

const restoreBatch = 500

// Restore builds an engine and replays every event of src into it before
// applying opts' journal and publisher, so nothing replayed is journaled or
// published again.
func Restore(ctx context.Context, policy Policy, src EventSource, opts ...Option) (*Engine, error) {
	e, err := New(policy, opts...)
	if err != nil {
		return nil, err
	}
	journal, pub := e.journal, e.pub
	e.journal, e.pub = nil, nil
	defer func() { e.journal, e.pub = journal, pub }()

	for {
		batch, err := src.Events(ctx, e.Seq(), restoreBatch)
		if err != nil {
			return nil, fmt.Errorf("read journal after %d: %w", e.Seq(), err)
		}
		if len(batch) == 0 {
			return e, nil
		}
		if err := e.Replay(ctx, batch); err != nil {
			return nil, err
		}
		if len(batch) < restoreBatch {
			return e, nil
		}
	}
}
