// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Latticetrace renders a Chrome-trace-format timeline captured from a
// lattice run (via tracing.Tracer.Document) into a Gantt-chart SVG, a
// span-duration histogram PDF, and a per-node utilization heatmap PNG.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"

	"github.com/latticerun/lattice/tracing"
)

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("latticetrace: ")
	must.Func = log.Fatal

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: latticetrace [-out prefix] trace.json

Latticetrace reads a Chrome-trace-format JSON file produced by a lattice
run and writes:

	<prefix>.gantt.svg    a per-thread timeline
	<prefix>.latency.pdf  a histogram of span durations
	<prefix>.heat.png     a per-node concurrency heatmap
`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	out := flag.String("out", "trace", "output file prefix")
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}

	f, err := os.Open(flag.Arg(0))
	must.Nil(err, "open trace")
	defer f.Close()

	var doc tracing.Document
	must.Nil(doc.Decode(f), "decode trace")

	spans := tracing.Spans(&doc)
	if len(spans) == 0 {
		log.Fatal("trace contains no complete spans")
	}
	log.Printf("latticetrace: %d spans across %d tracks", len(spans), countTracks(spans))

	svgFile, err := os.Create(*out + ".gantt.svg")
	must.Nil(err, "create gantt svg")
	must.Nil(tracing.WriteGantt(svgFile, spans), "write gantt svg")
	must.Nil(svgFile.Close(), "close gantt svg")

	must.Nil(tracing.WriteLatencyHistogram(*out+".latency.pdf", spans), "write latency histogram")
	must.Nil(tracing.WriteUtilizationHeatmap(*out+".heat.png", spans), "write utilization heatmap")

	log.Printf("latticetrace: wrote %s.gantt.svg, %s.latency.pdf, %s.heat.png", *out, *out, *out)
}

func countTracks(spans []tracing.Span) int {
	seen := make(map[string]bool)
	for _, s := range spans {
		seen[s.Track] = true
	}
	return len(seen)
}
