// Package tracing records invocation and OMP-thread activity in Chrome's
// trace event format and renders the recorded timeline as SVG, PNG, and
// PDF reports for cmd/latticetrace.
package tracing

import (
	"encoding/json"
	"io"
)

// Document is the top-level container Chrome's about:tracing and
// Perfetto both expect.
type Document struct {
	Events []Event `json:"traceEvents"`
}

// Event mirrors the Chrome tracing event fields exactly. See:
// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/preview
type Event struct {
	Pid  int                    `json:"pid"`
	Tid  int                    `json:"tid"`
	Ts   int64                  `json:"ts"`
	Ph   string                 `json:"ph"`
	Dur  int64                  `json:"dur,omitempty"`
	Name string                 `json:"name"`
	Cat  string                 `json:"cat,omitempty"`
	Args map[string]interface{} `json:"args"`
}

// Encode writes d to w as JSON.
func (d *Document) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(d)
}

// Decode reads a Document previously written by Encode.
func (d *Document) Decode(r io.Reader) error {
	return json.NewDecoder(r).Decode(d)
}
