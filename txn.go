package lmdbx

import (
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/zhaozg/lmdbx/internal/anchor"
)

// Transaction states. A transaction is born active, may bounce between
// active and reset (read-only only), and ends in exactly one of committed
// or aborted. Terminal states never transition again.
const (
	txnActive = iota
	txnReset
	txnCommitted
	txnAborted
)

// Txn is a transaction handle. Write transactions are bound to the OS thread
// that created them; begin them from a goroutine locked with
// runtime.LockOSThread, or use Update which does the locking.
type Txn struct {
	txn      *mdbx.Txn
	env      *Env
	parent   *Txn
	readonly bool

	envToken    anchor.Token
	parentToken anchor.Token

	mu      sync.Mutex
	state   int
	cursors []*Cursor
}

// BeginTxn starts a transaction. Pass TxnReadOnly for a read snapshot, or
// TxnReadWrite for the single writer. A non-nil parent nests a write
// transaction inside another write transaction.
func (e *Env) BeginTxn(parent *Txn, flags uint) (*Txn, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	e.txns.Add(1)
	e.mu.Unlock()

	var nativeParent *mdbx.Txn
	var parentToken anchor.Token
	if parent != nil {
		parent.mu.Lock()
		if parent.state != txnActive {
			parent.mu.Unlock()
			e.txns.Done()
			return nil, NewError(ErrTxnDone)
		}
		if parent.readonly {
			parent.mu.Unlock()
			e.txns.Done()
			return nil, NewError(ErrIncompatible)
		}
		nativeParent = parent.txn
		parentToken = anchors.Pin(parent)
		parent.mu.Unlock()
	}

	txn, err := e.env.BeginTxn(nativeParent, flags)
	if err != nil {
		if parentToken != 0 {
			anchors.Release(parentToken)
		}
		e.txns.Done()
		return nil, errFromEngine("begin txn", err)
	}

	t := &Txn{
		txn:         txn,
		env:         e,
		parent:      parent,
		readonly:    flags&TxnReadOnly != 0,
		envToken:    anchors.Pin(e),
		parentToken: parentToken,
		state:       txnActive,
	}
	runtime.SetFinalizer(t, func(t *Txn) { t.Abort() })
	return t, nil
}

// ID returns the transaction's snapshot ID, or 0 once the transaction is
// finished.
func (t *Txn) ID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == txnCommitted || t.state == txnAborted {
		return 0
	}
	return uint64(t.txn.ID())
}

// IsReadOnly reports whether the transaction is a read snapshot.
func (t *Txn) IsReadOnly() bool {
	return t.readonly
}

// Env returns the owning environment.
func (t *Txn) Env() *Env {
	return t.env
}

// guard acquires t.mu and fails unless the transaction is active. The caller
// must release t.mu on the nil-error path.
func (t *Txn) guard() error {
	t.mu.Lock()
	if t.state != txnActive {
		t.mu.Unlock()
		return NewError(ErrTxnDone)
	}
	return nil
}

// registerCursor records a cursor for teardown when the transaction ends.
// Caller holds t.mu via guard.
func (t *Txn) registerCursor(c *Cursor) {
	t.cursors = append(t.cursors, c)
}

// dropCursor forgets a cursor that closed itself. Called from Cursor.Close.
func (t *Txn) dropCursor(c *Cursor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, rc := range t.cursors {
		if rc == c {
			t.cursors[i] = t.cursors[len(t.cursors)-1]
			t.cursors = t.cursors[:len(t.cursors)-1]
			return
		}
	}
}

// closeCursors invalidates the cursors registered on a write transaction;
// they must die before the native transaction does. Read-only cursors
// survive their transaction and may be re-homed with Cursor.Renew, so they
// are only unregistered here. Caller holds t.mu.
func (t *Txn) closeCursors() {
	if !t.readonly {
		for _, c := range t.cursors {
			c.invalidate()
		}
	}
	t.cursors = nil
}

// finish moves the transaction into a terminal state and releases everything
// it held: the environment pin, the parent pin and the environment's
// in-flight counter. Caller holds t.mu and has closed the cursors.
func (t *Txn) finish(state int) {
	t.state = state
	anchors.Release(t.envToken)
	if t.parentToken != 0 {
		anchors.Release(t.parentToken)
	}
	t.env.txns.Done()
	runtime.SetFinalizer(t, nil)
}

// Commit makes the transaction's writes durable and ends it. The native
// transaction is consumed whether or not the commit succeeds.
func (t *Txn) Commit() error {
	if err := t.guard(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	t.closeCursors()
	_, err := t.txn.Commit()
	if err != nil {
		t.finish(txnAborted)
		return errFromEngine("commit", err)
	}
	t.finish(txnCommitted)
	return nil
}

// Abort discards the transaction. Aborting an already-finished transaction
// is a no-op.
func (t *Txn) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == txnCommitted || t.state == txnAborted {
		return
	}
	t.closeCursors()
	t.txn.Abort()
	t.finish(txnAborted)
}

// Reset releases a read-only transaction's snapshot while keeping the handle
// for a later Renew. Resetting a write transaction fails.
func (t *Txn) Reset() error {
	if err := t.guard(); err != nil {
		return err
	}
	defer t.mu.Unlock()
	if !t.readonly {
		return NewError(ErrIncompatible)
	}
	t.txn.Reset()
	t.state = txnReset
	return nil
}

// Renew acquires a fresh snapshot on a reset read-only transaction.
func (t *Txn) Renew() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txnReset {
		if t.state == txnActive {
			return NewError(ErrIncompatible)
		}
		return NewError(ErrTxnDone)
	}
	if err := t.txn.Renew(); err != nil {
		return errFromEngine("renew", err)
	}
	t.state = txnActive
	return nil
}
