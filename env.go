package lmdbx

import (
	"os"
	"runtime"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/ledgerwatch/log/v3"

	"github.com/zhaozg/lmdbx/internal/anchor"
)

// anchors is the process-wide ownership registry. Every child handle pins its
// parent here for exactly its own lifetime, so a parent can never be
// finalized while a child still needs it.
var anchors = &anchor.Registry{}

// Stat holds B-tree statistics for an environment or a single table.
type Stat struct {
	PageSize      uint32 // Size of a database page
	Depth         uint32 // Depth of the B-tree
	BranchPages   uint64 // Number of internal (non-leaf) pages
	LeafPages     uint64 // Number of leaf pages
	OverflowPages uint64 // Number of overflow pages
	Entries       uint64 // Number of data items
}

// EnvInfo holds environment runtime information.
type EnvInfo struct {
	MapSize    int64  // Size of the data memory map
	LastPgNo   int64  // Number of the last used page
	LastTxnID  uint64 // ID of the last committed transaction
	MaxReaders uint32 // Maximum number of reader slots
	NumReaders uint32 // Number of reader slots in use
	PageSize   uint32 // Database page size
}

// EnvOpts collects environment parameters before Open. The zero value is not
// usable; start from New.
type EnvOpts struct {
	label      Label
	path       string
	flags      uint
	mode       os.FileMode
	mapSize    datasize.ByteSize
	pageSize   int
	maxReaders int
	maxDBs     int
	log        log.Logger
}

// New returns environment options with the historical defaults: a 4MB map,
// a single reader slot, 16 named tables and file mode 0664.
func New() *EnvOpts {
	return &EnvOpts{
		label:      Default,
		flags:      Create,
		mode:       0664,
		mapSize:    4 * datasize.MB,
		pageSize:   -1,
		maxReaders: 1,
		maxDBs:     16,
		log:        log.New(),
	}
}

// Path sets the directory (or file, with NoSubdir) holding the database.
func (opts *EnvOpts) Path(path string) *EnvOpts {
	opts.path = path
	return opts
}

// Label tags the environment in log lines and diagnostics.
func (opts *EnvOpts) Label(label Label) *EnvOpts {
	opts.label = label
	return opts
}

// Flags replaces the environment open flags.
func (opts *EnvOpts) Flags(flags uint) *EnvOpts {
	opts.flags = flags
	return opts
}

// WithFlags adds flags to the current set.
func (opts *EnvOpts) WithFlags(flags uint) *EnvOpts {
	opts.flags |= flags
	return opts
}

// Mode sets the unix file mode for created files.
func (opts *EnvOpts) Mode(mode os.FileMode) *EnvOpts {
	opts.mode = mode
	return opts
}

// MapSize sets the upper bound of the data memory map.
func (opts *EnvOpts) MapSize(sz datasize.ByteSize) *EnvOpts {
	opts.mapSize = sz
	return opts
}

// PageSize sets the database page size. Only meaningful when the database is
// being created.
func (opts *EnvOpts) PageSize(sz int) *EnvOpts {
	opts.pageSize = sz
	return opts
}

// MaxReaders sets the number of reader slots.
func (opts *EnvOpts) MaxReaders(n int) *EnvOpts {
	opts.maxReaders = n
	return opts
}

// MaxDBs sets the number of named tables that may be opened.
func (opts *EnvOpts) MaxDBs(n int) *EnvOpts {
	opts.maxDBs = n
	return opts
}

// Logger replaces the environment logger.
func (opts *EnvOpts) Logger(l log.Logger) *EnvOpts {
	opts.log = l
	return opts
}

// Readonly opens the environment read-only.
func (opts *EnvOpts) Readonly() *EnvOpts {
	opts.flags |= Readonly
	return opts
}

// NoSubdir stores the database in a single file at path.
func (opts *EnvOpts) NoSubdir() *EnvOpts {
	opts.flags |= NoSubdir
	return opts
}

// Open creates the native environment, applies the collected parameters and
// opens it at the configured path.
func (opts *EnvOpts) Open() (*Env, error) {
	env, err := mdbx.NewEnv(mdbx.Label(opts.label))
	if err != nil {
		return nil, errFromEngine("create env", err)
	}
	if err = env.SetOption(mdbx.OptMaxDB, uint64(opts.maxDBs)); err != nil {
		env.Close()
		return nil, errFromEngine("set maxdbs", err)
	}
	if err = env.SetOption(mdbx.OptMaxReaders, uint64(opts.maxReaders)); err != nil {
		env.Close()
		return nil, errFromEngine("set maxreaders", err)
	}
	if err = env.SetGeometry(-1, -1, int(opts.mapSize), -1, -1, opts.pageSize); err != nil {
		env.Close()
		return nil, errFromEngine("set geometry", err)
	}
	if err = env.Open(opts.path, opts.flags, opts.mode); err != nil {
		env.Close()
		return nil, errFromEngine("open env", err)
	}

	logger := opts.log.New("label", string(opts.label))
	e := &Env{
		env:   env,
		label: opts.label,
		path:  opts.path,
		flags: opts.flags,
		log:   logger,
	}

	// Dead readers from a crashed process hold old snapshots alive and bloat
	// the file. Clear them eagerly, like any long-lived opener would.
	if opts.flags&(Readonly|Accede) == 0 {
		if stale, err := env.ReaderCheck(); err != nil {
			logger.Warn("reader check failed", "err", err)
		} else if stale > 0 {
			logger.Debug("cleared stale readers", "count", stale)
		}
	}

	runtime.SetFinalizer(e, func(e *Env) { e.Close() })
	return e, nil
}

// Env is an open environment handle. It stays valid until Close; operations
// after Close fail with ErrEnvClosed instead of reaching freed native state.
type Env struct {
	env   *mdbx.Env
	label Label
	path  string
	flags uint
	log   log.Logger

	mu      sync.Mutex
	closed  bool
	txns    sync.WaitGroup
	userCtx anchor.Token
}

// valid reports whether the handle may touch the native environment.
// Caller holds e.mu.
func (e *Env) valid() bool {
	return !e.closed
}

// guard acquires e.mu and fails if the environment is closed. The caller must
// release e.mu on the nil-error path.
func (e *Env) guard() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return NewError(ErrEnvClosed)
	}
	return nil
}

// Label returns the diagnostic label.
func (e *Env) Label() Label {
	return e.label
}

// Path returns the path the environment was opened at.
func (e *Env) Path() string {
	return e.path
}

// Flags returns the environment open flags plus any later SetFlags changes.
func (e *Env) Flags() (uint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid() {
		return 0, NewError(ErrEnvClosed)
	}
	return e.flags, nil
}

// SetFlags enables environment flags at runtime.
func (e *Env) SetFlags(flags uint) error {
	if err := e.guard(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.env.SetFlags(flags); err != nil {
		return errFromEngine("set flags", err)
	}
	e.flags |= flags
	return nil
}

// UnsetFlags disables environment flags at runtime.
func (e *Env) UnsetFlags(flags uint) error {
	if err := e.guard(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.env.UnsetFlags(flags); err != nil {
		return errFromEngine("unset flags", err)
	}
	e.flags &^= flags
	return nil
}

// MaxKeySize returns the maximum key size the environment accepts.
func (e *Env) MaxKeySize() (int, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	return e.env.MaxKeySize(), nil
}

// Stat returns B-tree statistics for the main table.
func (e *Env) Stat() (*Stat, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	st, err := e.env.Stat()
	if err != nil {
		return nil, errFromEngine("env stat", err)
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

// Info returns environment runtime information. A transaction may be passed
// to observe the map as of that snapshot; nil reads the current state.
func (e *Env) Info(txn *Txn) (*EnvInfo, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	var native *mdbx.Txn
	if txn != nil {
		if !txn.active() {
			return nil, NewError(ErrTxnDone)
		}
		native = txn.txn
	}
	info, err := e.env.Info(native)
	if err != nil {
		return nil, errFromEngine("env info", err)
	}
	return &EnvInfo{
		MapSize:    int64(info.MapSize),
		LastPgNo:   int64(info.LastPNO),
		LastTxnID:  uint64(info.LastTxnID),
		MaxReaders: uint32(info.MaxReaders),
		NumReaders: uint32(info.NumReaders),
		PageSize:   uint32(info.PageSize),
	}, nil
}

// MapSize returns the current size of the data memory map.
func (e *Env) MapSize() (int64, error) {
	info, err := e.Info(nil)
	if err != nil {
		return 0, err
	}
	return info.MapSize, nil
}

// SetMapSize grows (or shrinks, where the engine allows) the memory map.
// No transaction may be active in this process during the call.
func (e *Env) SetMapSize(sz datasize.ByteSize) error {
	if err := e.guard(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.env.SetGeometry(-1, -1, int(sz), -1, -1, -1); err != nil {
		return errFromEngine("set mapsize", err)
	}
	return nil
}

// MaxReaders returns the size of the reader slot table.
func (e *Env) MaxReaders() (int, error) {
	info, err := e.Info(nil)
	if err != nil {
		return 0, err
	}
	return int(info.MaxReaders), nil
}

// Sync flushes buffered writes to disk. With force it flushes even under
// NoSync-style flags; with nonblock it returns ErrBusy instead of waiting
// for a concurrent writer.
func (e *Env) Sync(force, nonblock bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.env.Sync(force, nonblock); err != nil {
		return errFromEngine("env sync", err)
	}
	return nil
}

// ReaderCheck clears reader slots held by dead processes and returns how many
// were cleared.
func (e *Env) ReaderCheck() (int, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	n, err := e.env.ReaderCheck()
	if err != nil {
		return 0, errFromEngine("reader check", err)
	}
	return n, nil
}

// CloseDBI closes a table handle at the environment level. Normally
// unnecessary; table handles are closed when the environment closes.
func (e *Env) CloseDBI(dbi mdbx.DBI) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid() {
		return
	}
	e.env.CloseDBI(dbi)
}

// SetUserCtx pins v as the environment's user context. A previous context,
// if any, is released first. Passing nil clears the slot.
func (e *Env) SetUserCtx(v any) error {
	if err := e.guard(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if e.userCtx != 0 {
		anchors.Release(e.userCtx)
		e.userCtx = 0
	}
	if v != nil {
		e.userCtx = anchors.Pin(v)
	}
	return nil
}

// UserCtx returns the value pinned by SetUserCtx, or nil.
func (e *Env) UserCtx() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid() || e.userCtx == 0 {
		return nil
	}
	v, _ := anchors.Value(e.userCtx)
	return v
}

// GetProperty reads a named environment property. Known names are "flags",
// "path", "fd", "mapsize", "maxreaders", "maxkeysize" and "userctx".
func (e *Env) GetProperty(name string) (any, error) {
	switch name {
	case "flags":
		return e.Flags()
	case "path":
		return e.path, nil
	case "fd":
		return e.FD()
	case "mapsize":
		info, err := e.Info(nil)
		if err != nil {
			return nil, err
		}
		return info.MapSize, nil
	case "maxreaders":
		info, err := e.Info(nil)
		if err != nil {
			return nil, err
		}
		return int(info.MaxReaders), nil
	case "maxkeysize":
		n, err := e.MaxKeySize()
		if err != nil {
			return nil, err
		}
		return n, nil
	case "userctx":
		return e.UserCtx(), nil
	}
	return nil, &Error{Code: ErrIncompatible, Message: "unknown property " + name}
}

// SetProperty writes a named environment property. Writable names are
// "flags" (uint), "mapsize" (int or datasize.ByteSize), "maxreaders" (int,
// before any transaction) and "userctx" (any value).
func (e *Env) SetProperty(name string, value any) error {
	switch name {
	case "flags":
		flags, ok := value.(uint)
		if !ok {
			return NewError(ErrIncompatible)
		}
		return e.SetFlags(flags)
	case "mapsize":
		var sz int
		switch v := value.(type) {
		case int:
			sz = v
		case int64:
			sz = int(v)
		case datasize.ByteSize:
			sz = int(v)
		default:
			return NewError(ErrIncompatible)
		}
		if err := e.guard(); err != nil {
			return err
		}
		defer e.mu.Unlock()
		if err := e.env.SetGeometry(-1, -1, sz, -1, -1, -1); err != nil {
			return errFromEngine("set mapsize", err)
		}
		return nil
	case "maxreaders":
		n, ok := value.(int)
		if !ok {
			return NewError(ErrIncompatible)
		}
		if err := e.guard(); err != nil {
			return err
		}
		defer e.mu.Unlock()
		if err := e.env.SetOption(mdbx.OptMaxReaders, uint64(n)); err != nil {
			return errFromEngine("set maxreaders", err)
		}
		return nil
	case "userctx":
		return e.SetUserCtx(value)
	}
	return NewError(ErrIncompatible)
}

// Close tears the environment down. It marks the handle dead, waits for
// in-flight transactions to finish, then closes the native environment.
// Close is idempotent.
func (e *Env) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.userCtx != 0 {
		anchors.Release(e.userCtx)
		e.userCtx = 0
	}
	e.mu.Unlock()

	e.txns.Wait()
	e.env.Close()
	runtime.SetFinalizer(e, nil)
	e.log.Debug("environment closed", "path", e.path)
}
