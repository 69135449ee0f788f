package lmdbx

import (
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/zhaozg/lmdbx/internal/anchor"
)

// Table is a named key space opened inside a transaction. The handle pins
// its transaction: the transaction object cannot be collected while any of
// its tables is still reachable. Like the native handles underneath, a Table
// must not be used from multiple goroutines at once.
type Table struct {
	name string
	dbi  mdbx.DBI
	txn  *Txn

	txnToken anchor.Token

	mu     sync.Mutex
	closed bool
}

// active reports whether the transaction can still serve operations.
func (t *Txn) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == txnActive
}

// OpenTable opens the named table, creating it when flags contain
// CreateTable. Creation requires a write transaction.
func (t *Txn) OpenTable(name string, flags uint) (*Table, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	dbi, err := t.txn.OpenDBI(name, flags, nil, nil)
	t.mu.Unlock()
	if err != nil {
		return nil, errFromEngine("open table", err)
	}
	return t.newTable(name, dbi), nil
}

// OpenRoot opens the unnamed root table.
func (t *Txn) OpenRoot(flags uint) (*Table, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	dbi, err := t.txn.OpenRoot(flags)
	t.mu.Unlock()
	if err != nil {
		return nil, errFromEngine("open root", err)
	}
	return t.newTable("", dbi), nil
}

func (t *Txn) newTable(name string, dbi mdbx.DBI) *Table {
	tb := &Table{
		name:     name,
		dbi:      dbi,
		txn:      t,
		txnToken: anchors.Pin(t),
	}
	runtime.SetFinalizer(tb, func(tb *Table) { tb.Close() })
	return tb
}

// guard acquires tb.mu and fails if the table is closed or its transaction
// has finished. The caller must release tb.mu on the nil-error path.
func (tb *Table) guard() error {
	tb.mu.Lock()
	if tb.closed {
		tb.mu.Unlock()
		return NewError(ErrTableClosed)
	}
	if !tb.txn.active() {
		tb.mu.Unlock()
		return NewError(ErrTxnDone)
	}
	return nil
}

// Name returns the table name; empty for the root table.
func (tb *Table) Name() string {
	return tb.name
}

// Txn returns the owning transaction.
func (tb *Table) Txn() *Txn {
	return tb.txn
}

// DBI returns the native table handle.
func (tb *Table) DBI() mdbx.DBI {
	return tb.dbi
}

// Get returns the value stored at key, or (nil, nil) when the key is absent.
// The returned slice points into the memory map and is valid only until the
// transaction ends; copy it to keep it.
func (tb *Table) Get(key []byte) ([]byte, error) {
	if err := tb.guard(); err != nil {
		return nil, err
	}
	defer tb.mu.Unlock()
	v, err := tb.txn.txn.Get(tb.dbi, key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil
		}
		return nil, errFromEngine("get", err)
	}
	return v, nil
}

// Has reports whether key is present.
func (tb *Table) Has(key []byte) (bool, error) {
	v, err := tb.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Put stores val at key. Flags refine the write: NoOverwrite, NoDupData,
// Append, AppendDup.
func (tb *Table) Put(key, val []byte, flags uint) error {
	if err := tb.guard(); err != nil {
		return err
	}
	defer tb.mu.Unlock()
	if err := tb.txn.txn.Put(tb.dbi, key, val, flags); err != nil {
		return errFromEngine("put", err)
	}
	return nil
}

// PutReserve allocates n bytes at key inside the map and returns the slice
// for the caller to fill before the transaction commits.
func (tb *Table) PutReserve(key []byte, n int, flags uint) ([]byte, error) {
	if err := tb.guard(); err != nil {
		return nil, err
	}
	defer tb.mu.Unlock()
	buf, err := tb.txn.txn.PutReserve(tb.dbi, key, n, flags)
	if err != nil {
		return nil, errFromEngine("put reserve", err)
	}
	return buf, nil
}

// Del removes key. On a DupSort table a non-nil val removes only that
// duplicate; nil removes all values for the key. Deleting an absent key
// fails with ErrNotFound.
func (tb *Table) Del(key, val []byte) error {
	if err := tb.guard(); err != nil {
		return err
	}
	defer tb.mu.Unlock()
	if err := tb.txn.txn.Del(tb.dbi, key, val); err != nil {
		return errFromEngine("del", err)
	}
	return nil
}

// Cmp compares two keys the way the table orders them.
func (tb *Table) Cmp(a, b []byte) (int, error) {
	if err := tb.guard(); err != nil {
		return 0, err
	}
	defer tb.mu.Unlock()
	return tb.txn.txn.Cmp(tb.dbi, a, b), nil
}

// DCmp compares two values the way a DupSort table orders duplicates.
func (tb *Table) DCmp(a, b []byte) (int, error) {
	if err := tb.guard(); err != nil {
		return 0, err
	}
	defer tb.mu.Unlock()
	return tb.txn.txn.DCmp(tb.dbi, a, b), nil
}

// Stat returns B-tree statistics for this table.
func (tb *Table) Stat() (*Stat, error) {
	if err := tb.guard(); err != nil {
		return nil, err
	}
	defer tb.mu.Unlock()
	st, err := tb.txn.txn.StatDBI(tb.dbi)
	if err != nil {
		return nil, errFromEngine("table stat", err)
	}
	return &Stat{
		PageSize:      uint32(st.PSize),
		Depth:         uint32(st.Depth),
		BranchPages:   uint64(st.BranchPages),
		LeafPages:     uint64(st.LeafPages),
		OverflowPages: uint64(st.OverflowPages),
		Entries:       uint64(st.Entries),
	}, nil
}

// Flags returns the flags the table was created with.
func (tb *Table) Flags() (uint, error) {
	if err := tb.guard(); err != nil {
		return 0, err
	}
	defer tb.mu.Unlock()
	flags, err := tb.txn.txn.Flags(tb.dbi)
	if err != nil {
		return 0, errFromEngine("table flags", err)
	}
	return flags, nil
}

// Drop empties the table. With del it also deletes the table itself, after
// which the handle is closed and unusable.
func (tb *Table) Drop(del bool) error {
	if err := tb.guard(); err != nil {
		return err
	}
	defer tb.mu.Unlock()
	if err := tb.txn.txn.Drop(tb.dbi, del); err != nil {
		return errFromEngine("drop", err)
	}
	if del {
		tb.closed = true
		anchors.Release(tb.txnToken)
		runtime.SetFinalizer(tb, nil)
	}
	return nil
}

// Close releases the handle's pin on its transaction. The native table slot
// stays cached in the environment; Env.CloseDBI exists for the rare case
// where it must really go. Close is idempotent.
func (tb *Table) Close() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.closed {
		return
	}
	tb.closed = true
	anchors.Release(tb.txnToken)
	runtime.SetFinalizer(tb, nil)
}
