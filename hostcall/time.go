package hostcall

import (
	"time"

	"github.com/grailbio/base/log"
	"github.com/tetratelabs/wazero/api"

	"github.com/latticerun/lattice/guest"
)

// wasmTimespec mirrors the guest ABI's 32-bit struct timespec: musl on
// wasm32 never widened tv_sec/tv_nsec to 64 bits.
type wasmTimespec struct {
	Sec  int32
	Nsec int32
}

// sysClockGettime implements __syscall_clock_gettime against the host
// wall clock, truncated to the guest's 32-bit timespec fields.
func (t *Table) sysClockGettime(mod api.Module, clockID, resultAddr uint32) uint32 {
	log.Debug.Printf("hostcall: clock_gettime(clockID=%d, resultAddr=%#x)", clockID, resultAddr)
	now := time.Now()
	if err := guest.WriteRef[int32](mod.Memory(), resultAddr, int32(now.Unix())); err != nil {
		panic(err)
	}
	if err := guest.WriteRef[int32](mod.Memory(), resultAddr+4, int32(now.Nanosecond())); err != nil {
		panic(err)
	}
	return 0
}
