//go:build !windows

package lmdbx

/*
#include <stdint.h>
#include "lmdbxgo.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/zhaozg/lmdbx/internal/anchor"
)

// FD returns the file descriptor of the data file.
func (e *Env) FD() (uintptr, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	var fd C.int
	if ret := C.lmdbxgo_env_get_fd(e.env.CHandle(), &fd); ret != 0 {
		return 0, errFromEngine("env fd", mdbx.Errno(ret))
	}
	return uintptr(fd), nil
}

// Copy writes a consistent snapshot of the environment to path.
func (e *Env) Copy(path string, flags uint) error {
	if err := e.guard(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	if ret := C.lmdbxgo_env_copy(e.env.CHandle(), cpath, C.uint(flags)); ret != 0 {
		return errFromEngine("env copy", mdbx.Errno(ret))
	}
	return nil
}

// readerList walks the native reader table with the context pinned under
// token and returns the engine status code.
func (e *Env) readerList(token anchor.Token) int {
	return int(C.lmdbxgo_reader_list(e.env.CHandle(), C.size_t(token)))
}

// lmdbxgoReaderBridge receives one reader slot from the native walk, resolves
// the context token and dispatches a formatted line to the pinned callback.
// A non-zero return stops the walk; the Go-side cause is stashed on the
// context because only the numeric code travels back through the engine.
//
//export lmdbxgoReaderBridge
func lmdbxgoReaderBridge(ctx C.size_t, num, slot C.int, pid C.int64_t, thread, txnid, lag C.uint64_t, used, retained C.size_t) C.int {
	v, ok := anchors.Value(anchor.Token(ctx))
	if !ok {
		return C.int(ErrProblem)
	}
	rctx := v.(*readerCtx)
	msg := fmt.Sprintf("%d %d %d %d %d %d %d",
		int(slot), int64(pid), uint64(thread), uint64(txnid), uint64(lag),
		uint64(used), uint64(retained))
	if err := callReader(rctx.fn, msg); err != nil {
		rctx.err = err
		return C.int(ErrProblem)
	}
	return 0
}
