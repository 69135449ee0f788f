//go:build windows

package lmdbx

import "github.com/zhaozg/lmdbx/internal/anchor"

// The descriptor, copy and reader-table proxies are declared against the
// unix libmdbx ABI. Until a windows variant exists these report
// ErrIncompatible instead of linking against mismatched prototypes.

func (e *Env) FD() (uintptr, error) {
	return 0, NewError(ErrIncompatible)
}

func (e *Env) Copy(path string, flags uint) error {
	return NewError(ErrIncompatible)
}

func (e *Env) readerList(token anchor.Token) int {
	return int(ErrIncompatible)
}
