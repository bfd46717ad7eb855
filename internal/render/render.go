package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"time"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/you/bsgo-tracker/internal/core"
	"github.com/you/bsgo-tracker/internal/stats"
)

const (
	panelWidth   = 1100
	distHeight   = 450
	seriesHeight = 500

	barWidth   = 48
	barSpacing = 24
)

var (
	colorBG       = drawing.ColorFromHex("0e1116")
	colorGrid     = drawing.ColorFromHex("3a3f44")
	colorColonial = drawing.ColorFromHex("4f9dff")
	colorCylon    = drawing.ColorFromHex("ff0000")
	colorText     = drawing.ColorWhite
)

// Combined renders the two-panel stats image: level distribution on top,
// faction counts over time below, stacked into one PNG.
func Combined(snap core.Snapshot, history []core.AggregateRow, label string) ([]byte, error) {
	top, err := distributionPanel(snap, label)
	if err != nil {
		return nil, errors.Wrap(err, "render distribution panel")
	}

	var bottom image.Image
	if len(history) > 0 {
		bottom, err = timeSeriesPanel(history, label)
		if err != nil {
			return nil, errors.Wrap(err, "render time series panel")
		}
		bottom = overlayBottomRight(bottom, stats.LeaderText(history))
	} else {
		bottom = placeholderPanel("No history yet to plot.")
	}

	counts := stats.Count(snap)
	top = overlayTopRight(top, fmt.Sprintf("Colonial: %d   Cylon: %d   Total: %d",
		counts.Colonial, counts.Cylon, counts.Total))

	return stackPanels(top, bottom)
}

func titlePrefix(label string) string {
	if label == "" {
		return ""
	}
	return fmt.Sprintf("[%s] ", label)
}

func distributionPanel(snap core.Snapshot, label string) (image.Image, error) {
	buckets := stats.Bucketize(snap)

	var bars []chart.Value
	maxCount := 1
	for i, band := range stats.LevelRanges {
		if buckets.Colonial[i] > maxCount {
			maxCount = buckets.Colonial[i]
		}
		if buckets.Cylon[i] > maxCount {
			maxCount = buckets.Cylon[i]
		}
		bars = append(bars,
			chart.Value{
				Value: float64(buckets.Colonial[i]),
				Label: band.Label(),
				Style: chart.Style{FillColor: colorColonial, StrokeColor: colorColonial},
			},
			chart.Value{
				Value: float64(buckets.Cylon[i]),
				Style: chart.Style{FillColor: colorCylon, StrokeColor: colorCylon},
			},
		)
	}

	yMax := float64(maxCount) * 1.25

	bc := chart.BarChart{
		Title: fmt.Sprintf("%sPlayer Level Distribution by Faction (%s)",
			titlePrefix(label), snap.Ts.UTC().Format("2006-01-02 15:04:05 UTC")),
		TitleStyle: chart.Style{FontColor: colorText},
		Width:      panelWidth,
		Height:     distHeight,
		Background: chart.Style{FillColor: colorBG},
		Canvas:     chart.Style{FillColor: colorBG},
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.Style{FontColor: colorText, StrokeColor: colorGrid},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: colorText, StrokeColor: colorGrid},
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
			GridMajorStyle: chart.Style{
				StrokeColor: colorGrid,
				StrokeWidth: 0.6,
			},
		},
		Bars: bars,
	}
	bc.Elements = []chart.Renderable{barValueLabels(bars, yMax, barWidth, barSpacing)}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

// barValueLabels draws each bar's count just above its top edge. Bar
// positions are recomputed with the same effective width/spacing rules the
// bar chart itself applies when the requested layout overflows the canvas.
func barValueLabels(bars []chart.Value, yMax float64, width, spacing int) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		effWidth, effSpacing := effectiveBarLayout(len(bars), width, spacing, canvasBox.Width())
		yr := &chart.ContinuousRange{Min: 0, Max: yMax, Domain: canvasBox.Height()}

		style := chart.Style{
			FontColor: colorText,
			FontSize:  9,
			Font:      defaults.Font,
		}
		style.WriteTextOptionsToRenderer(r)

		xoffset := canvasBox.Left
		for _, bar := range bars {
			bodyText := fmt.Sprintf("%d", int(bar.Value))
			tb := r.MeasureText(bodyText)

			barLeft := xoffset + (effSpacing >> 1)
			barTop := canvasBox.Bottom - yr.Translate(bar.Value)
			tx := barLeft + (effWidth-tb.Width())/2
			ty := barTop - 4
			if ty < canvasBox.Top+tb.Height() {
				ty = canvasBox.Top + tb.Height()
			}
			r.Text(bodyText, tx, ty)

			xoffset += effWidth + effSpacing
		}
	}
}

// effectiveBarLayout mirrors the go-chart bar chart's scaling: when the
// requested bars do not fit, spacing shrinks first, then bar width.
func effectiveBarLayout(count, width, spacing, canvasWidth int) (int, int) {
	total := count * (width + spacing)
	if total > canvasWidth {
		less := canvasWidth - count*width
		if less > 0 {
			spacing = (less + count - 1) / count
		} else {
			spacing = 0
		}
	}
	total = count * (width + spacing)
	if total > canvasWidth {
		less := canvasWidth - count*spacing
		if less > 0 {
			width = (less + count - 1) / count
		} else {
			width = 0
		}
	}
	return width, spacing
}

func timeSeriesPanel(history []core.AggregateRow, label string) (image.Image, error) {
	times := make([]time.Time, len(history))
	colonial := make([]float64, len(history))
	cylon := make([]float64, len(history))
	maxY := 1.0
	for i, row := range history {
		times[i] = row.Ts
		colonial[i] = float64(row.Colonial)
		cylon[i] = float64(row.Cylon)
		if colonial[i] > maxY {
			maxY = colonial[i]
		}
		if cylon[i] > maxY {
			maxY = cylon[i]
		}
	}

	// A single sample cannot form an x range; pad it one interval out.
	if len(times) == 1 {
		times = append(times, times[0].Add(time.Second))
		colonial = append(colonial, colonial[0])
		cylon = append(cylon, cylon[0])
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("%sPlayers Online Over Time", titlePrefix(label)),
		TitleStyle: chart.Style{FontColor: colorText},
		Width:      panelWidth,
		Height:     seriesHeight,
		Background: chart.Style{FillColor: colorBG},
		Canvas:     chart.Style{FillColor: colorBG},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: colorText, StrokeColor: colorGrid},
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
			GridMajorStyle: chart.Style{StrokeColor: colorGrid, StrokeWidth: 0.6},
		},
		YAxis: chart.YAxis{
			Style:          chart.Style{FontColor: colorText, StrokeColor: colorGrid},
			GridMajorStyle: chart.Style{StrokeColor: colorGrid, StrokeWidth: 0.6},
			// Explicit range: a flat history (all-equal counts) would
			// otherwise produce a zero-height value range.
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * 1.25},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Colonial",
				XValues: times,
				YValues: colonial,
				Style:   chart.Style{StrokeColor: colorColonial, StrokeWidth: 1.8},
			},
			chart.TimeSeries{
				Name:    "Cylon",
				XValues: times,
				YValues: cylon,
				Style:   chart.Style{StrokeColor: colorCylon, StrokeWidth: 1.8},
			},
		},
	}
	ch.Elements = []chart.Renderable{
		chart.Legend(&ch, chart.Style{
			FillColor:   colorBG,
			FontColor:   colorText,
			StrokeColor: colorGrid,
		}),
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

func stackPanels(top, bottom image.Image) ([]byte, error) {
	tb := top.Bounds()
	bb := bottom.Bounds()

	width := tb.Dx()
	if bb.Dx() > width {
		width = bb.Dx()
	}

	out := image.NewRGBA(image.Rect(0, 0, width, tb.Dy()+bb.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(colorBG), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, 0, tb.Dx(), tb.Dy()), top, tb.Min, draw.Src)
	draw.Draw(out, image.Rect(0, tb.Dy(), bb.Dx(), tb.Dy()+bb.Dy()), bottom, bb.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, errors.Wrap(err, "encode combined png")
	}
	return buf.Bytes(), nil
}
