package lmdbx

import "github.com/erigontech/mdbx-go/mdbx"

// Environment flags for EnvOpts.Flags and Env.SetFlags. Values are the
// engine's own bits, so they can be combined and passed through verbatim.
const (
	// Create creates the environment if it does not exist
	Create = uint(mdbx.Create)

	// NoSubdir stores the data in a single file instead of a directory
	NoSubdir = uint(mdbx.NoSubdir)

	// Readonly opens the environment read-only
	Readonly = uint(mdbx.Readonly)

	// Exclusive opens the environment for exclusive use by one process
	Exclusive = uint(mdbx.Exclusive)

	// Accede attaches to an environment already opened by another process,
	// adopting its flags
	Accede = uint(mdbx.Accede)

	// WriteMap maps the data file read-write (faster, less safe)
	WriteMap = uint(mdbx.WriteMap)

	// NoMetaSync skips the meta-page flush on commit
	NoMetaSync = uint(mdbx.NoMetaSync)

	// NoSync skips all flushing; durability is traded for speed
	NoSync = uint(mdbx.UtterlyNoSync)

	// Durable is the fully synchronous (default) durability mode
	Durable = uint(mdbx.Durable)

	// NoReadahead disables OS readahead on the data file
	NoReadahead = uint(mdbx.NoReadahead)

	// NoMemInit skips zeroing of freshly allocated pages
	NoMemInit = uint(mdbx.NoMemInit)

	// LifoReclaim reclaims the most recently freed pages first
	LifoReclaim = uint(mdbx.LifoReclaim)
)

// Transaction flags for Env.BeginTxn.
const (
	// TxnReadOnly begins a read-only transaction
	TxnReadOnly = uint(mdbx.Readonly)

	// TxnReadWrite begins a read-write transaction
	TxnReadWrite = uint(0)
)

// Table flags for Txn.OpenTable.
const (
	// ReverseKey compares keys back-to-front
	ReverseKey = uint(mdbx.ReverseKey)

	// DupSort allows duplicate keys with sorted values
	DupSort = uint(mdbx.DupSort)

	// DupFixed requires all duplicate values to have the same size
	DupFixed = uint(mdbx.DupFixed)

	// ReverseDup compares duplicate values back-to-front
	ReverseDup = uint(mdbx.ReverseDup)

	// CreateTable creates the named table if it does not exist
	CreateTable = uint(mdbx.Create)

	// AccedeTable opens an existing table whatever its flags
	AccedeTable = uint(mdbx.DBAccede)
)

// Put flags for Table.Put and Cursor.Put.
const (
	// NoOverwrite fails with ErrKeyExist instead of replacing a value
	NoOverwrite = uint(mdbx.NoOverwrite)

	// NoDupData fails with ErrKeyExist if the exact key/value pair exists
	// (DupSort tables)
	NoDupData = uint(mdbx.NoDupData)

	// Current replaces the value at the cursor's current position
	Current = uint(mdbx.Current)

	// Append appends the pair at the end; keys must arrive in order
	Append = uint(mdbx.Append)

	// AppendDup appends a duplicate value at the end of the key's values
	AppendDup = uint(mdbx.AppendDup)
)

// CursorOp is a positioning operator for Cursor.Get.
type CursorOp uint

// Cursor positioning operators.
const (
	First        = CursorOp(mdbx.First)
	FirstDup     = CursorOp(mdbx.FirstDup)
	GetBoth      = CursorOp(mdbx.GetBoth)
	GetBothRange = CursorOp(mdbx.GetBothRange)
	GetCurrent   = CursorOp(mdbx.GetCurrent)
	GetMultiple  = CursorOp(mdbx.GetMultiple)
	Last         = CursorOp(mdbx.Last)
	LastDup      = CursorOp(mdbx.LastDup)
	Next         = CursorOp(mdbx.Next)
	NextDup      = CursorOp(mdbx.NextDup)
	NextMultiple = CursorOp(mdbx.NextMultiple)
	NextNoDup    = CursorOp(mdbx.NextNoDup)
	Prev         = CursorOp(mdbx.Prev)
	PrevDup      = CursorOp(mdbx.PrevDup)
	PrevNoDup    = CursorOp(mdbx.PrevNoDup)
	PrevMultiple = CursorOp(mdbx.PrevMultiple)
	Set          = CursorOp(mdbx.Set)
	SetKey       = CursorOp(mdbx.SetKey)
	SetRange     = CursorOp(mdbx.SetRange)
)

// Label identifies an environment for diagnostics.
type Label string

// Default is the default environment label.
const Default Label = "default"
