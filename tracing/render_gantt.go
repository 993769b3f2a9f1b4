package tracing

import (
	"io"
	"sort"
	"time"

	svg "github.com/ajstarks/svgo"
)

const (
	ganttRowHeight  = 24
	ganttLeftMargin = 220
	ganttTopMargin  = 30
	ganttPxPerMilli = 4.0
)

// WriteGantt renders spans as an SVG Gantt chart, one row per track, bars
// positioned by (Start, End) scaled to pixels. It is the visual
// counterpart to the Chrome-trace JSON Document also produced from a
// Tracer: the JSON is for about:tracing/Perfetto, the SVG is for a
// quick look without either tool installed.
func WriteGantt(w io.Writer, spans []Span) error {
	tracks := sortedTracks(spans)
	trackRow := make(map[string]int, len(tracks))
	for i, tr := range tracks {
		trackRow[tr] = i
	}

	var maxEnd time.Duration
	for _, s := range spans {
		if s.End > maxEnd {
			maxEnd = s.End
		}
	}

	width := ganttLeftMargin + int(float64(maxEnd.Milliseconds())*ganttPxPerMilli) + 40
	if width < ganttLeftMargin+200 {
		width = ganttLeftMargin + 200
	}
	height := ganttTopMargin + len(tracks)*ganttRowHeight + 20

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white")

	for i, tr := range tracks {
		y := ganttTopMargin + i*ganttRowHeight
		canvas.Text(5, y+ganttRowHeight/2+4, tr, "font-family:monospace;font-size:11px")
		canvas.Line(ganttLeftMargin, y+ganttRowHeight, width-10, y+ganttRowHeight, "stroke:#ddd")
	}

	palette := []string{"#4c78a8", "#f58518", "#54a24b", "#e45756", "#72b7b2", "#b279a2"}
	for i, s := range spans {
		row := trackRow[s.Track]
		x := ganttLeftMargin + int(float64(s.Start.Milliseconds())*ganttPxPerMilli)
		barWidth := int(float64((s.End - s.Start).Milliseconds()) * ganttPxPerMilli)
		if barWidth < 1 {
			barWidth = 1
		}
		y := ganttTopMargin + row*ganttRowHeight + 2
		color := palette[i%len(palette)]
		canvas.Rect(x, y, barWidth, ganttRowHeight-4, "fill:"+color+";fill-opacity:0.85")
	}

	canvas.End()
	return nil
}

func sortedTracks(spans []Span) []string {
	seen := make(map[string]bool)
	var tracks []string
	for _, s := range spans {
		if !seen[s.Track] {
			seen[s.Track] = true
			tracks = append(tracks, s.Track)
		}
	}
	sort.Strings(tracks)
	return tracks
}
