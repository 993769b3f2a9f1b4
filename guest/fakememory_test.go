package guest

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// fakeMemory is a minimal api.Memory implementation backed by a plain
// []byte, used so guest-package tests don't need to compile a real .wasm
// module just to exercise bounds-checking logic.
type fakeMemory struct {
	buf []byte
}

func newFakeMemory(pages uint32) *fakeMemory {
	return &fakeMemory{buf: make([]byte, pages*PageSize)}
}

func (m *fakeMemory) Definition() api.MemoryDefinition { return nil }

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *fakeMemory) Grow(deltaPages uint32) (previousPages uint32, ok bool) {
	previousPages = uint32(len(m.buf)) / PageSize
	m.buf = append(m.buf, make([]byte, deltaPages*PageSize)...)
	return previousPages, true
}

func (m *fakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) WriteString(offset uint32, v string) bool {
	return m.Write(offset, []byte(v))
}

func (m *fakeMemory) ReadByte(offset uint32) (byte, bool) {
	b, ok := m.Read(offset, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (m *fakeMemory) WriteByte(offset uint32, v byte) bool {
	return m.Write(offset, []byte{v})
}

func (m *fakeMemory) ReadUint16Le(offset uint32) (uint16, bool) {
	b, ok := m.Read(offset, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (m *fakeMemory) WriteUint16Le(offset uint32, v uint16) bool {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return m.Write(offset, buf)
}

func (m *fakeMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := m.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (m *fakeMemory) WriteUint32Le(offset uint32, v uint32) bool {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return m.Write(offset, buf)
}

func (m *fakeMemory) ReadUint64Le(offset uint32) (uint64, bool) {
	b, ok := m.Read(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (m *fakeMemory) WriteUint64Le(offset uint32, v uint64) bool {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return m.Write(offset, buf)
}

func (m *fakeMemory) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(offset)
	return math.Float32frombits(v), ok
}

func (m *fakeMemory) WriteFloat32Le(offset uint32, v float32) bool {
	return m.WriteUint32Le(offset, math.Float32bits(v))
}

func (m *fakeMemory) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(offset)
	return math.Float64frombits(v), ok
}

func (m *fakeMemory) WriteFloat64Le(offset uint32, v float64) bool {
	return m.WriteUint64Le(offset, math.Float64bits(v))
}
