package hostcall

import (
	"context"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/tetratelabs/wazero/api"

	"github.com/latticerun/lattice/guest"
)

// sysOpen implements __syscall_open. Only "/etc/hosts" and
// "/etc/resolv.conf" are ever openable, read-only, mapped onto the two
// host files configured on the Table; everything else is rejected.
func (t *Table) sysOpen(ctx context.Context, mod api.Module, pathPtr, flags, mode uint32) uint32 {
	mem := mod.Memory()
	path, err := readCString(mem, pathPtr)
	if err != nil {
		panic(err)
	}
	log.Debug.Printf("hostcall: open(path=%s, flags=%#o, mode=%#o)", path, flags, mode)
	if mode != 0 {
		panic(fmt.Errorf("%w: mode=%#o", ErrModeRejected, mode))
	}

	var hostPath string
	switch path {
	case "/etc/hosts":
		hostPath = t.HostsFile
	case "/etc/resolv.conf":
		hostPath = t.ResolvConfFile
	default:
		panic(fmt.Errorf("%w: %s", ErrPathBlocked, path))
	}

	f, err := os.Open(hostPath)
	if err != nil {
		panic(fmt.Errorf("%w: %s: %v", ErrPathBlocked, path, err))
	}
	fd := int(f.Fd())
	t.FDs.Insert(ThreadFrom(ctx), fd)
	t.openFiles.store(fd, f)
	t.incr("hostcall.open")
	return uint32(fd)
}

// sysFcntl64 implements __syscall_fcntl64: ownership-gated no-op, matching
// the teacher's dummy implementation where most fcntl commands are
// irrelevant to a sandboxed read-only fd.
func (t *Table) sysFcntl64(ctx context.Context, fd, cmd, arg uint32) uint32 {
	log.Debug.Printf("hostcall: fcntl64(fd=%d, cmd=%d, arg=%d)", fd, cmd, arg)
	t.requireOwned(ctx, fd)
	return 0
}

// sysRead implements __syscall_read.
func (t *Table) sysRead(ctx context.Context, mod api.Module, fd, bufPtr, count uint32) uint32 {
	log.Debug.Printf("hostcall: read(fd=%d, bufPtr=%#x, count=%d)", fd, bufPtr, count)
	t.requireOwned(ctx, fd)
	f := t.openFiles.load(int(fd))
	if f == nil {
		panic(fmt.Errorf("hostcall: read on fd %d with no backing file", fd))
	}
	buf := make([]byte, count)
	n, err := f.Read(buf)
	if n > 0 {
		if werr := guest.WriteBytes(mod.Memory(), bufPtr, buf[:n]); werr != nil {
			panic(werr)
		}
	}
	if err != nil && n == 0 {
		return 0
	}
	t.incr("hostcall.read")
	return uint32(n)
}

// sysClose implements __syscall_close.
func (t *Table) sysClose(ctx context.Context, fd uint32) uint32 {
	log.Debug.Printf("hostcall: close(fd=%d)", fd)
	t.requireOwned(ctx, fd)
	thread := ThreadFrom(ctx)
	if f := t.openFiles.load(int(fd)); f != nil {
		_ = f.Close()
		t.openFiles.delete(int(fd))
	}
	t.FDs.Remove(thread, int(fd))
	return 0
}

// sysPoll implements __syscall_poll. Only a single fd is supported,
// matching the teacher's "poll is annoying" comment.
func (t *Table) sysPoll(ctx context.Context, mod api.Module, fdsPtr, nfds, timeoutMs uint32) uint32 {
	log.Debug.Printf("hostcall: poll(fdsPtr=%#x, nfds=%d, timeoutMs=%d)", fdsPtr, nfds, timeoutMs)
	if nfds != 1 {
		panic(fmt.Errorf("%w: poll on %d fds", ErrUnsupported, nfds))
	}
	fd, err := guest.Ref[uint32](mod.Memory(), fdsPtr)
	if err != nil {
		panic(err)
	}
	t.requireOwned(ctx, fd)
	// This host never multiplexes guest I/O against a real poller; the
	// single whitelisted fd is always ready.
	revents := uint16(0x0001) // POLLIN
	if err := guest.WriteRef[uint16](mod.Memory(), fdsPtr+6, revents); err != nil {
		panic(err)
	}
	return 1
}

// ioctl is the bare intrinsic some runtimes import directly (not via the
// __syscall_ioctl trampoline). Always a no-op.
func (t *Table) ioctl(a, b, c uint32) uint32 { return 0 }

// sysIoctl implements __syscall_ioctl, also always a no-op: nothing this
// host exposes needs terminal or device control.
func (t *Table) sysIoctl(fd, request, argPtr, d, e, f uint32) uint32 { return 0 }

// puts writes a NUL-terminated guest string to the pool's log sink.
func (t *Table) puts(mod api.Module, strPtr uint32) uint32 {
	s, err := readCString(mod.Memory(), strPtr)
	if err != nil {
		panic(err)
	}
	log.Debug.Printf("hostcall: puts(strPtr=%#x)", strPtr)
	fmt.Println(s)
	return 0
}

// sysWritev implements __syscall_writev by gathering the guest iovec
// array and writing it straight to stdout; guests never get a writable fd
// of their own, so all writes are treated as console output.
func (t *Table) sysWritev(mod api.Module, fd, iovPtr, iovcnt uint32) uint32 {
	log.Debug.Printf("hostcall: writev(fd=%d, iovPtr=%#x, iovcnt=%d)", fd, iovPtr, iovcnt)
	mem := mod.Memory()
	var total int
	for i := uint32(0); i < iovcnt; i++ {
		base, err := guest.Ref[uint32](mem, iovPtr+i*8)
		if err != nil {
			panic(err)
		}
		length, err := guest.Ref[uint32](mem, iovPtr+i*8+4)
		if err != nil {
			panic(err)
		}
		buf, err := guest.Bytes(mem, base, length)
		if err != nil {
			panic(err)
		}
		n, _ := os.Stdout.Write(buf)
		total += n
	}
	return uint32(total)
}

func (t *Table) requireOwned(ctx context.Context, fd uint32) {
	if err := t.FDs.RequireOwned(ThreadFrom(ctx), int(fd)); err != nil {
		panic(err)
	}
}

func (t *Table) incr(name string) {
	if t.Stats != nil {
		t.Stats.Int(name).Add(1)
	}
}

func readCString(mem api.Memory, addr uint32) (string, error) {
	size := mem.Size()
	var buf []byte
	for p := addr; p < size; p++ {
		b, ok := mem.ReadByte(p)
		if !ok {
			return "", fmt.Errorf("%w: unterminated string at %#x", guest.ErrBounds, addr)
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", fmt.Errorf("%w: unterminated string at %#x", guest.ErrBounds, addr)
}
