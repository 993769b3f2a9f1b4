// Package guest provides bounds-checked translation of guest WebAssembly
// addresses into host references, and the per-thread file-descriptor
// ownership table that the host-call layer consults before touching a
// descriptor on a caller's behalf.
package guest

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// ErrBounds is returned when a guest access would exceed the module's
// current linear memory size.
var ErrBounds = errors.New("guest-bounds")

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

// Value is the set of scalar types lattice knows how to translate across
// the guest/host boundary. WASM integers are little-endian on the wire,
// matching the ABI wazero itself exposes via ReadUint32Le etc.
type Value interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

func sizeOf[T Value]() uint32 {
	var zero T
	switch any(zero).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32:
		return 4
	case int64, uint64:
		return 8
	default:
		panic(fmt.Sprintf("guest: unsupported value type %T", zero))
	}
}

// Ref returns the value stored at addr in guest memory. It fails with
// ErrBounds if addr+sizeof(T) exceeds the module's current memory size.
//
// The returned value is a copy, not a live reference: Go has no way to
// alias a typed pointer onto a []byte without unsafe, and the contract
// callers actually need ("don't read stale data after a grow/unmap") is
// better served by re-reading than by retaining a pointer. Callers that
// need to write back call WriteRef.
func Ref[T Value](mem api.Memory, addr uint32) (T, error) {
	var zero T
	n := sizeOf[T]()
	raw, ok := mem.Read(addr, n)
	if !ok {
		return zero, fmt.Errorf("%w: addr=%#x size=%d memSize=%d", ErrBounds, addr, n, mem.Size())
	}
	return decode[T](raw), nil
}

// WriteRef stores v at addr in guest memory, failing with ErrBounds under
// the same condition as Ref.
func WriteRef[T Value](mem api.Memory, addr uint32, v T) error {
	n := sizeOf[T]()
	buf := make([]byte, n)
	encode(buf, v)
	if !mem.Write(addr, buf) {
		return fmt.Errorf("%w: addr=%#x size=%d memSize=%d", ErrBounds, addr, n, mem.Size())
	}
	return nil
}

// Slice returns a host-side copy of count contiguous values starting at
// addr. As with Ref, the contract states that a subsequent grow or unmap
// of the module's memory invalidates any assumption that the underlying
// guest bytes still mean the same thing; callers must not stash a Slice
// result across such a call and expect it to reflect the guest's current
// state.
func Slice[T Value](mem api.Memory, addr, count uint32) ([]T, error) {
	n := sizeOf[T]()
	raw, ok := mem.Read(addr, n*count)
	if !ok {
		return nil, fmt.Errorf("%w: addr=%#x count=%d size=%d memSize=%d", ErrBounds, addr, count, n, mem.Size())
	}
	out := make([]T, count)
	for i := range out {
		out[i] = decode[T](raw[i*int(n):])
	}
	return out, nil
}

// Bytes returns the raw byte slice backing [addr, addr+length), failing
// with ErrBounds out of range. Unlike Slice, this is a live view directly
// into wazero's backing buffer (wazero's Memory.Read already returns such
// a view for byte reads), so the same invalidate-on-grow/unmap contract
// applies with extra force: never retain it past a call that can resize
// memory.
func Bytes(mem api.Memory, addr, length uint32) ([]byte, error) {
	raw, ok := mem.Read(addr, length)
	if !ok {
		return nil, fmt.Errorf("%w: addr=%#x length=%d memSize=%d", ErrBounds, addr, length, mem.Size())
	}
	return raw, nil
}

// WriteBytes copies src into guest memory at addr.
func WriteBytes(mem api.Memory, addr uint32, src []byte) error {
	if !mem.Write(addr, src) {
		return fmt.Errorf("%w: addr=%#x length=%d memSize=%d", ErrBounds, addr, len(src), mem.Size())
	}
	return nil
}

// InBounds reports whether an access of length n at addr is currently
// valid, without performing the access. It is used by handlers that must
// validate before doing something irreversible (e.g. socketcall handlers
// that need to first check several pointers before running any syscall).
func InBounds(mem api.Memory, addr, n uint32) bool {
	return uint64(addr)+uint64(n) <= uint64(mem.Size())
}

func decode[T Value](raw []byte) T {
	var zero T
	switch any(zero).(type) {
	case int8:
		return T(int8(raw[0]))
	case uint8:
		return T(raw[0])
	case int16:
		return T(int16(binary.LittleEndian.Uint16(raw)))
	case uint16:
		return T(binary.LittleEndian.Uint16(raw))
	case int32:
		return T(int32(binary.LittleEndian.Uint32(raw)))
	case uint32:
		return T(binary.LittleEndian.Uint32(raw))
	case int64:
		return T(int64(binary.LittleEndian.Uint64(raw)))
	case uint64:
		return T(binary.LittleEndian.Uint64(raw))
	}
	panic(fmt.Sprintf("guest: unsupported value type %T", zero))
}

func encode[T Value](buf []byte, v T) {
	switch x := any(v).(type) {
	case int8:
		buf[0] = byte(x)
	case uint8:
		buf[0] = x
	case int16:
		binary.LittleEndian.PutUint16(buf, uint16(x))
	case uint16:
		binary.LittleEndian.PutUint16(buf, x)
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(x))
	case uint32:
		binary.LittleEndian.PutUint32(buf, x)
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(x))
	case uint64:
		binary.LittleEndian.PutUint64(buf, x)
	default:
		panic(fmt.Sprintf("guest: unsupported value type %T", v))
	}
}
