package hostcall

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/tetratelabs/wazero/api"

	"github.com/latticerun/lattice/guest"
)

// sysMmap implements __syscall_mmap. File-backed mappings are not
// supported; every mmap simply grows the module's own linear memory by
// the requested length, rounded up to a whole page, and returns the base
// address of the new region.
func (t *Table) sysMmap(mod api.Module, addr, length, prot, flags, fd, offset uint32) uint32 {
	log.Debug.Printf("hostcall: mmap(addr=%#x, length=%d, prot=%d, flags=%#x, fd=%d, offset=%d)", addr, length, prot, flags, fd, offset)
	if int32(fd) != -1 {
		panic(fmt.Errorf("%w: file-backed mmap", ErrUnimplemented))
	}
	numPages := (length + guest.PageSize - 1) / guest.PageSize
	m := guest.New(mod, nil)
	base, err := m.GrowMemory(numPages)
	if err != nil {
		panic(err)
	}
	return base * guest.PageSize
}

// sysMunmap implements __syscall_munmap. See guest.Module.UnmapPages for
// why this is a bookkeeping-only no-op under wazero's grow-only memory.
func (t *Table) sysMunmap(mod api.Module, addr, length uint32) uint32 {
	log.Debug.Printf("hostcall: munmap(addr=%#x, length=%d)", addr, length)
	basePageIndex := addr / guest.PageSize
	numPages := (length + guest.PageSize - 1) / guest.PageSize
	guest.New(mod, nil).UnmapPages(basePageIndex, numPages)
	return 0
}

// sysBrk implements __syscall_brk: grows memory up to the requested
// target address if it exceeds the module's current size, otherwise
// leaves memory untouched. Returns the break address in effect before
// this call, matching brk(2) semantics.
func (t *Table) sysBrk(mod api.Module, addr uint32) uint32 {
	log.Debug.Printf("hostcall: brk(addr=%#x)", addr)
	mem := mod.Memory()
	currentBytes := mem.Size()
	targetPages := addr / guest.PageSize
	currentPages := currentBytes / guest.PageSize

	if targetPages <= currentPages {
		return currentBytes
	}

	expansion := targetPages - currentPages
	if _, err := guest.New(mod, nil).GrowMemory(expansion); err != nil {
		panic(err)
	}
	return currentBytes
}
