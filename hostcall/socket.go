package hostcall

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/grailbio/base/log"
	"github.com/tetratelabs/wazero/api"

	"github.com/latticerun/lattice/guest"
)

// Socket call numbers, matching the Linux socketcall(2) multiplexer the
// musl port dispatches through.
const (
	scSocket = 1 + iota
	scBind
	scConnect
	scListen
	scAccept
	scGetsockname
	scGetpeername
	scSocketpair
	scSend
	scRecv
	scSendto
	scRecvfrom
	scShutdown
	scSetsockopt
	scGetsockopt
	scSendmsg
	scRecvmsg
	scAccept4
	scRecvmmsg
	scSendmmsg
)

// sysSocketcall implements __syscall_socketcall. Guest functions only ever
// act as network clients, so server-side calls (accept, listen) trap, and
// several rarely-exercised calls are silent no-op successes rather than
// fully implemented, matching the teacher's own "unfinished" bucket.
func (t *Table) sysSocketcall(ctx context.Context, mod api.Module, call, argsPtr uint32) uint32 {
	log.Debug.Printf("hostcall: socketcall(call=%d, argsPtr=%#x)", call, argsPtr)
	mem := mod.Memory()
	thread := ThreadFrom(ctx)

	switch call {
	case scSocket:
		args, err := guest.Slice[uint32](mem, argsPtr, 3)
		if err != nil {
			panic(err)
		}
		fd, err := syscall.Socket(int(args[0]), int(args[1]), int(args[2]))
		if err != nil {
			panic(fmt.Errorf("hostcall: socket: %w", err))
		}
		t.FDs.Insert(thread, fd)
		return uint32(fd)

	case scConnect:
		args, err := guest.Slice[uint32](mem, argsPtr, 3)
		if err != nil {
			panic(err)
		}
		sockfd := int(args[0])
		if err := t.FDs.RequireOwned(thread, sockfd); err != nil {
			panic(err)
		}
		sa, err := readSockaddr(mem, args[1])
		if err != nil {
			panic(err)
		}
		if err := syscall.Connect(sockfd, sa); err != nil {
			panic(fmt.Errorf("hostcall: connect: %w", err))
		}
		return 0

	case scSend, scRecv, scSendto, scRecvfrom:
		return t.socketTransfer(ctx, mem, call, argsPtr)

	case scBind:
		args, err := guest.Slice[uint32](mem, argsPtr, 3)
		if err != nil {
			panic(err)
		}
		sockfd := int(args[0])
		if err := t.FDs.RequireOwned(thread, sockfd); err != nil {
			panic(err)
		}
		sa, err := readSockaddr(mem, args[1])
		if err != nil {
			panic(err)
		}
		if err := syscall.Bind(sockfd, sa); err != nil {
			panic(fmt.Errorf("hostcall: bind: %w", err))
		}
		return 0

	case scGetsockname:
		args, err := guest.Slice[uint32](mem, argsPtr, 3)
		if err != nil {
			panic(err)
		}
		sockfd := int(args[0])
		if err := t.FDs.RequireOwned(thread, sockfd); err != nil {
			panic(err)
		}
		sa, err := syscall.Getsockname(sockfd)
		if err != nil {
			panic(fmt.Errorf("hostcall: getsockname: %w", err))
		}
		if err := writeSockaddr(mem, args[1], sa); err != nil {
			panic(err)
		}
		return 0

	// Unfinished upstream too: acknowledged but not actually forwarded.
	// Per the whitelisted-syscall policy, an unimplemented call still
	// returns success rather than trapping the guest - but it is logged
	// so a silent no-op is never mistaken for a real socket operation.
	case scGetpeername, scSocketpair, scShutdown, scSetsockopt, scGetsockopt,
		scSendmsg, scRecvmsg, scAccept4, scRecvmmsg, scSendmmsg:
		log.Debug.Printf("hostcall: socketcall %d is a no-op stub, returning 0", call)
		return 0

	case scAccept, scListen:
		panic(fmt.Errorf("%w: server-side socketcall %d", ErrUnimplemented, call))

	default:
		return 0
	}
}

func (t *Table) socketTransfer(ctx context.Context, mem api.Memory, call, argsPtr uint32) uint32 {
	argCount := uint32(4)
	if call == scSendto || call == scRecvfrom {
		argCount = 6
	}
	args, err := guest.Slice[uint32](mem, argsPtr, argCount)
	if err != nil {
		panic(err)
	}
	sockfd := int(args[0])
	if err := t.FDs.RequireOwned(ThreadFrom(ctx), sockfd); err != nil {
		panic(err)
	}
	bufPtr, bufLen, flags := args[1], args[2], int(args[3])

	switch call {
	case scSend:
		buf, err := guest.Bytes(mem, bufPtr, bufLen)
		if err != nil {
			panic(err)
		}
		n, err := syscall.Write(sockfd, buf)
		if err != nil {
			panic(fmt.Errorf("hostcall: send: %w", err))
		}
		_ = flags
		return uint32(n)

	case scRecv:
		buf := make([]byte, bufLen)
		n, err := syscall.Read(sockfd, buf)
		if err != nil {
			panic(fmt.Errorf("hostcall: recv: %w", err))
		}
		if werr := guest.WriteBytes(mem, bufPtr, buf[:n]); werr != nil {
			panic(werr)
		}
		return uint32(n)

	case scSendto:
		buf, err := guest.Bytes(mem, bufPtr, bufLen)
		if err != nil {
			panic(err)
		}
		sa, err := readSockaddr(mem, args[4])
		if err != nil {
			panic(err)
		}
		if err := syscall.Sendto(sockfd, buf, flags, sa); err != nil {
			panic(fmt.Errorf("hostcall: sendto: %w", err))
		}
		return uint32(len(buf))

	default: // scRecvfrom
		buf := make([]byte, bufLen)
		n, from, err := syscall.Recvfrom(sockfd, buf, flags)
		if err != nil {
			panic(fmt.Errorf("hostcall: recvfrom: %w", err))
		}
		if werr := guest.WriteBytes(mem, bufPtr, buf[:n]); werr != nil {
			panic(werr)
		}
		if from != nil {
			if werr := writeSockaddr(mem, args[4], from); werr != nil {
				panic(werr)
			}
		}
		return uint32(n)
	}
}

// gethostbyname resolves a guest hostname via the host resolver. This host
// never returns a real struct hostent pointer into guest memory (the
// guest's musl libc consults /etc/hosts and /etc/resolv.conf for that
// instead); it exists purely so the import resolves and a lookup can be
// logged.
func (t *Table) gethostbyname(mod api.Module, hostnamePtr uint32) uint32 {
	host, err := readCString(mod.Memory(), hostnamePtr)
	if err != nil {
		panic(err)
	}
	log.Debug.Printf("hostcall: gethostbyname(host=%s)", host)
	_, _ = net.LookupHost(host)
	return 0
}

// wasmSockaddrSize matches the guest ABI's struct sockaddr: a 16-bit
// family followed by 14 bytes of opaque address data.
const wasmSockaddrSize = 16

func readSockaddr(mem api.Memory, addr uint32) (syscall.Sockaddr, error) {
	raw, err := guest.Bytes(mem, addr, wasmSockaddrSize)
	if err != nil {
		return nil, err
	}
	family := uint16(raw[0]) | uint16(raw[1])<<8
	switch family {
	case syscall.AF_INET:
		sa := &syscall.SockaddrInet4{}
		sa.Port = int(raw[2])<<8 | int(raw[3])
		copy(sa.Addr[:], raw[4:8])
		return sa, nil
	default:
		return nil, fmt.Errorf("hostcall: unsupported sockaddr family %d", family)
	}
}

func writeSockaddr(mem api.Memory, addr uint32, sa syscall.Sockaddr) error {
	buf := make([]byte, wasmSockaddrSize)
	switch v := sa.(type) {
	case *syscall.SockaddrInet4:
		buf[0] = byte(syscall.AF_INET)
		buf[1] = byte(syscall.AF_INET >> 8)
		buf[2] = byte(v.Port >> 8)
		buf[3] = byte(v.Port)
		copy(buf[4:8], v.Addr[:])
	default:
		return fmt.Errorf("hostcall: unsupported sockaddr type %T", sa)
	}
	return guest.WriteBytes(mem, addr, buf)
}
