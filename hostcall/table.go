package hostcall

import (
	"os"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/latticerun/lattice/guest"
	"github.com/latticerun/lattice/stats"
)

// Table owns the per-invocation state the registered host functions close
// over: the fd ownership table, the whitelisted paths open() will honor,
// and a counter set the worker pool reports through.
type Table struct {
	FDs            *guest.FDTable
	HostsFile      string
	ResolvConfFile string
	Stats          *stats.Map

	openFiles fileSet
}

// New returns a Table configured with the given whitelist paths. hostsFile
// and resolvConfFile are the real, host-local files returned in place of
// a guest's "/etc/hosts" and "/etc/resolv.conf" opens. statsMap may be nil.
func New(hostsFile, resolvConfFile string, statsMap *stats.Map) *Table {
	return &Table{
		FDs:            guest.NewFDTable(),
		HostsFile:      hostsFile,
		ResolvConfFile: resolvConfFile,
		Stats:          statsMap,
	}
}

// fileSet maps the fds this table has opened on behalf of guest code back
// to their *os.File, so read/close can operate on them.
type fileSet struct {
	mu    sync.Mutex
	files map[int]*os.File
}

func (s *fileSet) store(fd int, f *os.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[int]*os.File)
	}
	s.files[fd] = f
}

func (s *fileSet) load(fd int) *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[fd]
}

func (s *fileSet) delete(fd int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, fd)
}

// Build registers every host call onto b, an "env" host module builder
// shared with the openmp package's intrinsics: both sets of imports are
// resolved against the same compiler-emitted "env" module, so the
// caller owns creating and instantiating the builder.
func (t *Table) Build(b wazero.HostModuleBuilder) {
	reg := func(name string, fn interface{}) {
		b.NewFunctionBuilder().WithFunc(fn).Export(name)
	}

	// I/O - supported
	reg("__syscall_open", t.sysOpen)
	reg("__syscall_fcntl64", t.sysFcntl64)
	reg("__syscall_read", t.sysRead)
	reg("__syscall_close", t.sysClose)
	reg("__syscall_poll", t.sysPoll)
	reg("ioctl", t.ioctl)
	reg("__syscall_ioctl", t.sysIoctl)
	reg("puts", t.puts)
	reg("__syscall_writev", t.sysWritev)

	// I/O - unsupported
	reg("__syscall_readv", trap6)
	reg("__syscall_llseek", trap5)
	reg("__syscall_futex", trap6)
	reg("__syscall_fstat64", trap2)
	reg("__syscall_stat64", trap2)
	reg("__syscall_access", trap2)

	// Sockets
	reg("__syscall_socketcall", t.sysSocketcall)
	reg("_gethostbyname", t.gethostbyname)

	// Timing
	reg("__syscall_clock_gettime", t.sysClockGettime)
	reg("__syscall_gettimeofday", trap2)

	// Misc - unimplemented
	reg("__unsupported_syscall", trap7)
	reg("__syscall_exit_group", trap1)
	reg("__syscall_exit", trap1)
	reg("__syscall_gettid", trap1)
	reg("__syscall_tkill", trap2)
	reg("__syscall_rt_sigprocmask", trap3)

	// Memory - supported
	reg("__syscall_mmap", t.sysMmap)
	reg("__syscall_munmap", t.sysMunmap)
	reg("__syscall_brk", t.sysBrk)

	// Memory - unsupported
	reg("__syscall_madvise", trap3)
	reg("__syscall_mremap", trap5)
}

// ThreadExit closes every host file thread opened and drops its fd
// ownership bookkeeping, called once the invocation (or chained OMP team
// member) running as thread finishes. Without this, a long-lived worker
// node leaks both the open *os.File handles and the FDTable entries of
// every invocation it has ever run.
func (t *Table) ThreadExit(thread guest.ThreadHandle) {
	for _, fd := range t.FDs.Owned(thread) {
		if f := t.openFiles.load(fd); f != nil {
			_ = f.Close()
			t.openFiles.delete(fd)
		}
	}
	t.FDs.ThreadExit(thread)
}

func trap1(uint32) uint32 { panic(ErrUnimplemented) }

func trap2(uint32, uint32) uint32 { panic(ErrUnimplemented) }

func trap3(uint32, uint32, uint32) uint32 { panic(ErrUnimplemented) }

func trap5(uint32, uint32, uint32, uint32, uint32) uint32 { panic(ErrUnimplemented) }

func trap6(uint32, uint32, uint32, uint32, uint32, uint32) uint32 { panic(ErrUnimplemented) }

func trap7(uint32, uint32, uint32, uint32, uint32, uint32, uint32) uint32 {
	panic(ErrUnimplemented)
}
