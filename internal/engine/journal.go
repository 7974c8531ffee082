package engine

import (
	"context"
	"sync"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// MemoryJournal keeps events in memory.  It backs tests and the admin
// tooling when no database is configured.
type MemoryJournal struct {
	mu     sync.Mutex
	events []model.Event
}

func NewMemoryJournal() *MemoryJournal { return &MemoryJournal{} }

func (j *MemoryJournal) Append(_ context.Context, ev model.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n := len(j.events); n > 0 && j.events[n-1].Seq >= ev.Seq {
		return model.ErrDuplicateEventSeq
	}
	j.events = append(j.events, ev)
	return nil
}

// Events returns up to limit events with Seq > afterSeq.  limit <= 0 means
// no limit.
func (j *MemoryJournal) Events(_ context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.Event
	for _, ev := range j.events {
		if ev.Seq <= afterSeq {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (j *MemoryJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}
