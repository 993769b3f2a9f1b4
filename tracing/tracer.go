package tracing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/latticerun/lattice/message"
)

// ThreadSpan identifies one OMP worker thread's slice of a parallel
// region, scoped to the invocation that forked it.
type ThreadSpan struct {
	Invocation *message.Invocation
	ThreadNum  int
}

// Tracer accumulates trace events for invocations running across a
// fleet of nodes and the OMP threads they fork, assigning each node its
// own Chrome "process" row and coalescing paired Begin/End events into
// single spans at render time. A nil *Tracer is valid and every method
// on it is a no-op, so tracing can be wired in unconditionally and
// disabled by simply not constructing one.
type Tracer struct {
	mu sync.Mutex

	events       []Event
	invEvents    map[uint64][]Event
	threadEvents map[ThreadSpan][]Event

	nodePids map[string]int
	nodeTids map[string]tidPool

	firstEvent time.Time
}

type tidPool []bool

// New returns an empty Tracer.
func New() *Tracer {
	return &Tracer{
		invEvents:    make(map[uint64][]Event),
		threadEvents: make(map[ThreadSpan][]Event),
		nodePids:     make(map[string]int),
		nodeTids:     make(map[string]tidPool),
	}
}

// Invocation records a Begin ("B") or End ("E") event for inv running on
// node. args is a list of interleaved key/value pairs attached as event
// metadata.
func (t *Tracer) Invocation(node string, inv *message.Invocation, ph string, args ...interface{}) {
	if t == nil {
		return
	}
	event := t.newEvent(node, ph, args)
	event.Name = inv.String()
	event.Cat = "invocation"

	t.mu.Lock()
	defer t.mu.Unlock()
	t.assignTid(node, ph, t.invEvents[inv.ID], &event)
	t.invEvents[inv.ID] = append(t.invEvents[inv.ID], event)
}

// Thread records a Begin/End event for one OMP thread of a forked team.
func (t *Tracer) Thread(node string, span ThreadSpan, ph string, args ...interface{}) {
	if t == nil {
		return
	}
	event := t.newEvent(node, ph, args)
	event.Name = fmt.Sprintf("%s/thread%d", span.Invocation.String(), span.ThreadNum)
	event.Cat = "ompthread"

	t.mu.Lock()
	defer t.mu.Unlock()
	t.assignTid(node, ph, t.threadEvents[span], &event)
	t.threadEvents[span] = append(t.threadEvents[span], event)
}

func (t *Tracer) newEvent(node, ph string, args []interface{}) Event {
	if len(args)%2 != 0 {
		panic("tracing: odd number of args")
	}
	event := Event{Ph: ph, Args: make(map[string]interface{}, len(args)/2)}
	for i := 0; i < len(args); i += 2 {
		event.Args[fmt.Sprint(args[i])] = args[i+1]
	}

	t.mu.Lock()
	if t.firstEvent.IsZero() {
		t.firstEvent = time.Now()
		event.Ts = 0
	} else {
		event.Ts = time.Since(t.firstEvent).Nanoseconds() / 1e3
	}
	pid, ok := t.nodePids[node]
	if !ok {
		pid = len(t.nodePids) + 1
		t.nodePids[node] = pid
		t.events = append(t.events, Event{
			Pid: pid, Ts: event.Ts, Ph: "M", Name: "process_name",
			Args: map[string]interface{}{"name": node},
		})
	}
	event.Pid = pid
	t.mu.Unlock()
	return event
}

// assignTid must be called with t.mu held.
func (t *Tracer) assignTid(node, ph string, prior []Event, event *Event) {
	pool := t.nodeTids[node]
	switch ph {
	case "B":
		event.Tid = pool.acquire()
		t.nodeTids[node] = pool
	case "E":
		if len(prior) == 0 {
			break
		}
		last := prior[len(prior)-1]
		if last.Ph != "B" {
			break
		}
		event.Tid = last.Tid
		pool.release(event.Tid)
	}
}

func (p *tidPool) acquire() int {
	for tid, free := range *p {
		if free {
			(*p)[tid] = false
			return tid + 1
		}
	}
	tid := len(*p)
	*p = append(*p, false)
	return tid + 1
}

func (p tidPool) release(tid int) {
	if tid-1 >= 0 && tid-1 < len(p) {
		p[tid-1] = true
	}
}

// Document renders the accumulated events into a Chrome-trace Document,
// coalescing matched Begin/End pairs into single complete ("X") spans.
func (t *Tracer) Document() *Document {
	if t == nil {
		return &Document{}
	}
	t.mu.Lock()
	events := make([]Event, len(t.events))
	copy(events, t.events)
	for _, v := range t.invEvents {
		events = appendCoalesced(events, v)
	}
	for _, v := range t.threadEvents {
		events = appendCoalesced(events, v)
	}
	t.mu.Unlock()
	return &Document{Events: events}
}

func appendCoalesced(list, events []Event) []Event {
	begIndex := -1
	for _, event := range events {
		switch {
		case event.Ph == "B" && begIndex < 0:
			begIndex = len(list)
			list = append(list, event)
		case event.Ph == "E" && begIndex >= 0:
			list[begIndex].Ph = "X"
			list[begIndex].Dur = event.Ts - list[begIndex].Ts
			if list[begIndex].Dur == 0 {
				list[begIndex].Dur = 1
			}
			for k, v := range event.Args {
				if _, ok := list[begIndex].Args[k]; !ok {
					list[begIndex].Args[k] = v
				}
			}
			begIndex = -1
		case event.Ph != "E":
			list = append(list, event)
		}
	}
	if begIndex >= 0 {
		list = append(list[:begIndex], list[begIndex+1:]...)
	}
	return list
}

// Summary names and durations for rendering: one row per (pid, tid)
// track, produced from the coalesced "X" events in doc.
type Span struct {
	Track string
	Name  string
	Start time.Duration
	End   time.Duration
}

// Spans flattens a Document's complete events into render-ready rows,
// labeling each track by the process_name metadata event recorded for
// its pid joined with its tid.
func Spans(doc *Document) []Span {
	names := make(map[int]string)
	for _, e := range doc.Events {
		if e.Ph == "M" && e.Name == "process_name" {
			if n, ok := e.Args["name"].(string); ok {
				names[e.Pid] = n
			}
		}
	}
	var spans []Span
	for _, e := range doc.Events {
		if e.Ph != "X" {
			continue
		}
		track := fmt.Sprintf("%s/t%d", names[e.Pid], e.Tid)
		spans = append(spans, Span{
			Track: track,
			Name:  strings.TrimSpace(e.Name),
			Start: time.Duration(e.Ts) * time.Microsecond,
			End:   time.Duration(e.Ts+e.Dur) * time.Microsecond,
		})
	}
	return spans
}
