package tracing

import (
	"image/color"
	"sort"
	"time"

	"github.com/fogleman/gg"
)

const (
	heatmapCellW  = 10
	heatmapCellH  = 20
	heatmapBucket = 50 * time.Millisecond
)

// WriteUtilizationHeatmap renders, per node, the count of concurrently
// active spans in each time bucket across the run, as a PNG at path.
// Rows are nodes (one Track's pid-prefix, ompthread rows folded into
// their owning invocation's node); darker cells mean more concurrent
// activity.
func WriteUtilizationHeatmap(path string, spans []Span) error {
	nodes := sortedNodes(spans)
	nodeRow := make(map[string]int, len(nodes))
	for i, n := range nodes {
		nodeRow[n] = i
	}

	var maxEnd time.Duration
	for _, s := range spans {
		if s.End > maxEnd {
			maxEnd = s.End
		}
	}
	buckets := int(maxEnd/heatmapBucket) + 1
	if buckets < 1 {
		buckets = 1
	}

	counts := make([][]int, len(nodes))
	for i := range counts {
		counts[i] = make([]int, buckets)
	}
	for _, s := range spans {
		row, ok := nodeRow[nodeOf(s.Track)]
		if !ok {
			continue
		}
		startBucket := int(s.Start / heatmapBucket)
		endBucket := int(s.End / heatmapBucket)
		for b := startBucket; b <= endBucket && b < buckets; b++ {
			counts[row][b]++
		}
	}

	maxCount := 1
	for _, row := range counts {
		for _, c := range row {
			if c > maxCount {
				maxCount = c
			}
		}
	}

	width := 160 + buckets*heatmapCellW
	height := len(nodes) * heatmapCellH
	if height == 0 {
		height = heatmapCellH
	}

	ctx := gg.NewContext(width, height)
	ctx.SetColor(color.White)
	ctx.Clear()

	for row, name := range nodes {
		ctx.SetColor(color.Black)
		ctx.DrawString(name, 4, float64(row*heatmapCellH+heatmapCellH/2+4))
		for b := 0; b < buckets; b++ {
			intensity := float64(counts[row][b]) / float64(maxCount)
			ctx.SetColor(heatColor(intensity))
			x := float64(160 + b*heatmapCellW)
			y := float64(row * heatmapCellH)
			ctx.DrawRectangle(x, y, heatmapCellW, heatmapCellH)
			ctx.Fill()
		}
	}

	return ctx.SavePNG(path)
}

// heatColor interpolates from pale blue (idle) to deep red (saturated).
func heatColor(t float64) color.Color {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	r := uint8(200 + t*55)
	g := uint8(220 - t*200)
	b := uint8(240 - t*230)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func nodeOf(track string) string {
	for i := len(track) - 1; i >= 0; i-- {
		if track[i] == '/' {
			return track[:i]
		}
	}
	return track
}

func sortedNodes(spans []Span) []string {
	seen := make(map[string]bool)
	var nodes []string
	for _, s := range spans {
		n := nodeOf(s.Track)
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	sort.Strings(nodes)
	return nodes
}
