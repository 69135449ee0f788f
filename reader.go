package lmdbx

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
)

// resultTrue is the engine's alternative success code; the reader-table walk
// returns it when the table is empty.
const resultTrue = -1

// readerCtx carries one walk's callback through the native trampoline. The
// token pinning it is the only thing that crosses the language boundary; the
// callback's error comes back through err because the engine only transports
// a numeric code.
type readerCtx struct {
	fn  func(msg string) error
	err error
}

// ReaderList walks the reader lock table and hands each entry, formatted as
// a single text line ("slot pid thread txnid lag used retained"), to fn.
// Returning an error from fn stops the walk and surfaces that error. The
// callback is pinned for the duration of the walk so the engine can never
// call into released memory, and a panic inside fn is converted into an
// error instead of unwinding through the engine. fn may call back into the
// environment; the handle lock is not held during the walk.
func (e *Env) ReaderList(fn func(msg string) error) error {
	if fn == nil {
		return NewError(ErrIncompatible)
	}
	if err := e.guard(); err != nil {
		return err
	}
	// Close must not free the native env mid-walk, but fn needs the handle
	// lock available. Ride the transaction WaitGroup instead of e.mu.
	e.txns.Add(1)
	e.mu.Unlock()
	defer e.txns.Done()

	rctx := &readerCtx{fn: fn}
	token := anchors.Pin(rctx)
	defer anchors.Release(token)

	ret := e.readerList(token)
	if rctx.err != nil {
		return rctx.err
	}
	if ret != 0 && ret != resultTrue {
		return errFromEngine("reader list", mdbx.Errno(ret))
	}
	return nil
}

// callReader invokes one callback, translating a panic into an error that
// aborts the walk.
func callReader(fn func(msg string) error, msg string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Code: ErrPanic, Message: fmt.Sprintf("reader callback panic: %v", r)}
		}
	}()
	return fn(msg)
}
