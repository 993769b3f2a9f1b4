package guest

import "testing"

func TestFDTableInsertContains(t *testing.T) {
	tbl := NewFDTable()
	const thread ThreadHandle = 1
	if tbl.Contains(thread, 3) {
		t.Fatal("fresh table should not contain fd 3")
	}
	tbl.Insert(thread, 3)
	if !tbl.Contains(thread, 3) {
		t.Fatal("expected fd 3 to be owned after Insert")
	}
}

func TestFDTableForeignThreadRejected(t *testing.T) {
	tbl := NewFDTable()
	const owner ThreadHandle = 1
	const foreign ThreadHandle = 2
	tbl.Insert(owner, 5)
	if tbl.Contains(foreign, 5) {
		t.Fatal("foreign thread must not see another thread's fd")
	}
	if err := tbl.RequireOwned(foreign, 5); err != ErrFDNotOwned {
		t.Fatalf("got %v, want ErrFDNotOwned", err)
	}
}

func TestFDTableRemove(t *testing.T) {
	tbl := NewFDTable()
	const thread ThreadHandle = 1
	tbl.Insert(thread, 7)
	tbl.Remove(thread, 7)
	if tbl.Contains(thread, 7) {
		t.Fatal("fd should be gone after Remove")
	}
	if err := tbl.RequireOwned(thread, 7); err != ErrFDNotOwned {
		t.Fatalf("got %v, want ErrFDNotOwned", err)
	}
}

func TestFDTableThreadExitReleasesAll(t *testing.T) {
	tbl := NewFDTable()
	const thread ThreadHandle = 9
	tbl.Insert(thread, 1)
	tbl.Insert(thread, 2)
	tbl.ThreadExit(thread)
	if tbl.Contains(thread, 1) || tbl.Contains(thread, 2) {
		t.Fatal("expected all fds released after ThreadExit")
	}
}

func TestFDTableDisjointOwnership(t *testing.T) {
	tbl := NewFDTable()
	const a ThreadHandle = 1
	const b ThreadHandle = 2
	tbl.Insert(a, 10)
	tbl.Insert(b, 10) // same fd number, different thread: independent ownership
	if !tbl.Contains(a, 10) || !tbl.Contains(b, 10) {
		t.Fatal("each thread should independently own fd 10")
	}
	tbl.Remove(a, 10)
	if tbl.Contains(a, 10) {
		t.Fatal("removing from a must not affect a's own record")
	}
	if !tbl.Contains(b, 10) {
		t.Fatal("removing fd from thread a must not affect thread b's ownership")
	}
}
