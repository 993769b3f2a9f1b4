package tracing

import (
	"bytes"
	"testing"

	"github.com/latticerun/lattice/message"
)

func TestTracerCoalescesBeginEndIntoSpan(t *testing.T) {
	tr := New()
	inv := message.New("u", "f")
	tr.Invocation("node-a", inv, "B")
	tr.Invocation("node-a", inv, "E")

	doc := tr.Document()
	var complete int
	for _, e := range doc.Events {
		if e.Ph == "X" {
			complete++
			if e.Cat != "invocation" {
				t.Fatalf("got cat %q, want invocation", e.Cat)
			}
		}
	}
	if complete != 1 {
		t.Fatalf("got %d complete events, want 1", complete)
	}
}

func TestTracerDropsUnmatchedBegin(t *testing.T) {
	tr := New()
	inv := message.New("u", "f")
	tr.Invocation("node-a", inv, "B")

	doc := tr.Document()
	for _, e := range doc.Events {
		if e.Ph == "X" {
			t.Fatal("an unmatched begin must not produce a complete event")
		}
	}
}

func TestNilTracerIsNoop(t *testing.T) {
	var tr *Tracer
	inv := message.New("u", "f")
	tr.Invocation("node-a", inv, "B")
	if tr.Document() == nil {
		t.Fatal("Document on a nil tracer should still return an empty document, not nil")
	}
}

func TestSpansLabelsTrackByProcessName(t *testing.T) {
	tr := New()
	inv := message.New("u", "f")
	tr.Invocation("node-a", inv, "B")
	tr.Invocation("node-a", inv, "E")

	spans := Spans(tr.Document())
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Track != "node-a/t1" {
		t.Fatalf("got track %q, want node-a/t1", spans[0].Track)
	}
}

func TestWriteGanttProducesWellFormedSVG(t *testing.T) {
	tr := New()
	inv := message.New("u", "f")
	tr.Invocation("node-a", inv, "B")
	tr.Invocation("node-a", inv, "E")

	var buf bytes.Buffer
	if err := WriteGantt(&buf, Spans(tr.Document())); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("<svg")) {
		t.Fatal("expected an <svg> root element")
	}
}
