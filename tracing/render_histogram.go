package tracing

import (
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteLatencyHistogram renders the distribution of span durations (in
// milliseconds) to a PDF at path, for a quick read on tail latency
// across a fleet-wide run without needing the interactive Gantt view.
func WriteLatencyHistogram(path string, spans []Span) error {
	values := make(plotter.Values, len(spans))
	for i, s := range spans {
		values[i] = float64((s.End - s.Start) / time.Millisecond)
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "invocation span duration (ms)"
	p.X.Label.Text = "duration (ms)"
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(values, bucketCount(len(values)))
	if err != nil {
		return err
	}
	hist.Normalize(0)
	p.Add(hist)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func bucketCount(n int) int {
	switch {
	case n <= 1:
		return 1
	case n < 20:
		return n
	default:
		return 20
	}
}
