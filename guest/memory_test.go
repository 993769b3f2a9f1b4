package guest

import (
	"testing"

	fuzz "github.com/google/gofuzz"
)

func TestRefWriteRefRoundTrip(t *testing.T) {
	mem := newFakeMemory(1)
	if err := WriteRef[uint32](mem, 100, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	got, err := Ref[uint32](mem, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("got %#x, want 0xdeadbeef", got)
	}
}

func TestRefOutOfBounds(t *testing.T) {
	mem := newFakeMemory(1) // 1 page = 65536 bytes
	if _, err := Ref[uint32](mem, 65536-2); err == nil {
		t.Fatal("expected bounds error")
	}
}

// TestSliceBoundsProperty fuzzes (addr, count, pages) triples and checks
// that Slice succeeds iff addr+count*4 <= pages*PageSize, matching the
// universal invariant from the spec's testable properties section.
func TestSliceBoundsProperty(t *testing.T) {
	f := fuzz.New().NilChance(0)
	for i := 0; i < 200; i++ {
		var pagesSeed, addrSeed, countSeed uint32
		f.Fuzz(&pagesSeed)
		f.Fuzz(&addrSeed)
		f.Fuzz(&countSeed)
		pages := pagesSeed%8 + 1
		addr := addrSeed % (pages * PageSize)
		count := countSeed % 64

		mem := newFakeMemory(pages)
		_, err := Slice[uint32](mem, addr, count)
		want := uint64(addr)+uint64(count)*4 <= uint64(pages)*PageSize
		if (err == nil) != want {
			t.Fatalf("addr=%d count=%d pages=%d: got err=%v, want success=%v", addr, count, pages, err, want)
		}
	}
}

func TestGrowExtendsBounds(t *testing.T) {
	mem := newFakeMemory(2)
	oldSize := mem.Size()
	if _, ok := mem.Grow(1); !ok {
		t.Fatal("grow failed")
	}
	// Any access into the newly added page must now succeed.
	if _, err := Ref[uint32](mem, oldSize); err != nil {
		t.Fatalf("expected access into grown region to succeed: %v", err)
	}
}
