// Package lmdbx is a lifecycle-safe binding layer over the MDBX embedded
// transactional key-value engine.
//
// The engine hands out raw handles whose validity is chained: a cursor is
// only valid while its table's transaction runs, a transaction only while
// its environment is open. This package wraps each native handle in a Go
// object that tracks its own state, pins its parent in an ownership
// registry for exactly its lifetime, and turns any use of a dead handle
// into a normal error instead of undefined behavior.
//
// Key properties:
//   - Single writer, multiple readers concurrency model
//   - Parent handles cannot be collected while a child is reachable
//   - Operations on closed handles fail with lifecycle error codes
//   - Leaked handles are reclaimed by finalizers in dependency order
//
// Basic usage:
//
//	env, err := lmdbx.New().Path("/path/to/db").MapSize(64 * datasize.MB).Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	err = env.Update(func(txn *lmdbx.Txn) error {
//	    tb, err := txn.OpenRoot(0)
//	    if err != nil {
//	        return err
//	    }
//	    return tb.Put([]byte("key"), []byte("value"), 0)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
package lmdbx
