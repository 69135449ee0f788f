package lmdbx

import (
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/zhaozg/lmdbx/internal/anchor"
)

// Cursor navigates one table within one transaction. It pins its owner (the
// table, or after Renew the new transaction) and is torn down automatically
// when the transaction ends. Not safe for concurrent use.
type Cursor struct {
	cur   *mdbx.Cursor
	table *Table
	txn   *Txn

	ownerToken anchor.Token

	mu     sync.Mutex
	closed bool
}

// OpenCursor opens a cursor on the table.
func (tb *Table) OpenCursor() (*Cursor, error) {
	if err := tb.guard(); err != nil {
		return nil, err
	}
	cur, err := tb.txn.txn.OpenCursor(tb.dbi)
	tb.mu.Unlock()
	if err != nil {
		return nil, errFromEngine("open cursor", err)
	}
	c := &Cursor{
		cur:        cur,
		table:      tb,
		txn:        tb.txn,
		ownerToken: anchors.Pin(tb),
	}
	tb.txn.mu.Lock()
	tb.txn.registerCursor(c)
	tb.txn.mu.Unlock()
	runtime.SetFinalizer(c, func(c *Cursor) { c.Close() })
	return c, nil
}

// guard acquires c.mu and fails if the cursor is closed or its transaction
// has finished. The caller must release c.mu on the nil-error path.
func (c *Cursor) guard() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return NewError(ErrCursorClosed)
	}
	if !c.txn.active() {
		c.mu.Unlock()
		return NewError(ErrTxnDone)
	}
	return nil
}

// Table returns the table the cursor was opened on.
func (c *Cursor) Table() *Table {
	return c.table
}

// Txn returns the transaction currently serving the cursor.
func (c *Cursor) Txn() *Txn {
	return c.txn
}

// DBI returns the native handle of the cursor's table.
func (c *Cursor) DBI() mdbx.DBI {
	return c.table.dbi
}

// Get positions the cursor with op and returns the pair under it. setKey and
// setVal seed the lookup for the Set*/GetBoth* operators. Running off either
// end of the table returns ErrNotFound. Returned slices point into the
// memory map and are valid only until the transaction ends.
func (c *Cursor) Get(setKey, setVal []byte, op CursorOp) (key, val []byte, err error) {
	if err := c.guard(); err != nil {
		return nil, nil, err
	}
	defer c.mu.Unlock()
	key, val, err = c.cur.Get(setKey, setVal, uint(op))
	if err != nil {
		return nil, nil, errFromEngine("cursor get", err)
	}
	return key, val, nil
}

// Put stores val at key through the cursor, leaving the cursor on the
// written pair.
func (c *Cursor) Put(key, val []byte, flags uint) error {
	if err := c.guard(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.cur.Put(key, val, flags); err != nil {
		return errFromEngine("cursor put", err)
	}
	return nil
}

// PutMulti stores a contiguous page of fixed-size values under key in one
// call. The table must be DupFixed; stride is the size of each value.
func (c *Cursor) PutMulti(key, page []byte, stride int, flags uint) error {
	if err := c.guard(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.cur.PutMulti(key, page, stride, flags); err != nil {
		return errFromEngine("cursor putmulti", err)
	}
	return nil
}

// Del deletes the pair under the cursor. NoDupData deletes all duplicates of
// the current key.
func (c *Cursor) Del(flags uint) error {
	if err := c.guard(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.cur.Del(flags); err != nil {
		return errFromEngine("cursor del", err)
	}
	return nil
}

// Count returns the number of duplicate values for the current key.
func (c *Cursor) Count() (uint64, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()
	n, err := c.cur.Count()
	if err != nil {
		return 0, errFromEngine("cursor count", err)
	}
	return n, nil
}

// Renew re-homes a cursor from a finished read-only transaction onto a fresh
// one, avoiding the allocation of a new cursor. The cursor's ownership moves
// to the new transaction.
func (c *Cursor) Renew(t *Txn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return NewError(ErrCursorClosed)
	}
	if t == nil || !t.readonly {
		return NewError(ErrIncompatible)
	}
	if err := t.guard(); err != nil {
		return err
	}
	err := c.cur.Renew(t.txn)
	if err != nil {
		t.mu.Unlock()
		return errFromEngine("cursor renew", err)
	}
	t.registerCursor(c)
	t.mu.Unlock()

	old := c.txn
	c.txn = t
	anchors.Release(c.ownerToken)
	c.ownerToken = anchors.Pin(t)
	old.dropCursor(c)
	return nil
}

// invalidate closes the cursor on behalf of its finishing transaction.
// The transaction's own bookkeeping is the caller's job.
func (c *Cursor) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cur.Close()
	anchors.Release(c.ownerToken)
	runtime.SetFinalizer(c, nil)
}

// Close releases the cursor and its pin on the owner. Close is idempotent;
// cursors left open are closed when their transaction ends.
func (c *Cursor) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cur.Close()
	anchors.Release(c.ownerToken)
	runtime.SetFinalizer(c, nil)
	txn := c.txn
	c.mu.Unlock()

	txn.dropCursor(c)
}
