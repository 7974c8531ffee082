// Package txn provides the in-memory unit of work that makes every engine
// operation all-or-nothing.  Components register the inverse of each
// mutation on the Tx; Rollback runs those inverses newest first.
package txn

import "errors"

// ErrDone is returned when a finished Tx is used again.
var ErrDone = errors.New("txn: transaction already finished")

// Tx is an undo log.  It is not safe for concurrent use; the engine hands
// one Tx to exactly one operation while it holds the write lock.
type Tx struct {
	undo []func()
	done bool
}

// Begin starts a new unit of work.
func Begin() *Tx { return &Tx{} }

// OnRollback registers fn to run if the unit of work is rolled back.
func (tx *Tx) OnRollback(fn func()) {
	if tx.done {
		return
	}
	tx.undo = append(tx.undo, fn)
}

// Len returns the number of registered undo steps.
func (tx *Tx) Len() int { return len(tx.undo) }

// Done reports whether the Tx was committed or rolled back.
func (tx *Tx) Done() bool { return tx.done }

// Commit discards the undo log.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrDone
	}
	tx.done = true
	tx.undo = nil
	return nil
}

// Rollback undoes every registered mutation in reverse order.  Calling it
// after Commit or a previous Rollback does nothing.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}
