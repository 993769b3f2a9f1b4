// Package hostcall implements the whitelisted syscall surface exposed to
// guest WebAssembly modules under the "env" import module, matching the
// musl-on-WASM ABI: open/read/close/fcntl64/poll/ioctl/puts/writev,
// socketcall, clock_gettime, mmap/munmap/brk, and a long tail of syscalls
// that exist only to trap with ErrUnimplemented.
package hostcall

import "errors"

// ErrPathBlocked is returned when a guest attempts to open a path outside
// the configured whitelist.
var ErrPathBlocked = errors.New("hostcall: path not whitelisted")

// ErrModeRejected is returned when open is called with anything other
// than read-only flags; this host never exposes writable files to guest
// code.
var ErrModeRejected = errors.New("hostcall: non-read-only open rejected")

// ErrUnimplemented marks a syscall this host never intends to support.
// It traps the calling goroutine the same way the guest's own
// unimplemented-intrinsic trap would.
var ErrUnimplemented = errors.New("hostcall: unimplemented syscall")

// ErrUnsupported marks a syscall argument shape this host does not
// handle (e.g. poll on more than one fd at once).
var ErrUnsupported = errors.New("hostcall: unsupported syscall form")
