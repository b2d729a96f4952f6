package aggregate

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/novus/internal/models"
)

// ErrInsufficientData is returned when a series is too short to chart.
var ErrInsufficientData = errors.New("not enough data points to chart")

// RenderTrendChart renders a PNG line chart of primary, with secondary (if
// any) drawn as a gray dashed line. Both series share the primary's labels.
func RenderTrendChart(title string, primary, secondary []models.TrendPoint) ([]byte, error) {
	if len(primary) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientData, len(primary))
	}

	xValues := make([]float64, len(primary))
	yValues := make([]float64, len(primary))
	for i, p := range primary {
		xValues[i] = float64(i)
		yValues[i] = p.Price
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name: title,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: xValues,
			YValues: yValues,
		},
	}

	if len(secondary) == len(primary) {
		secondY := make([]float64, len(secondary))
		for i, p := range secondary {
			secondY[i] = p.Price
		}
		series = append(series, chart.ContinuousSeries{
			Name: "Invested",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: xValues,
			YValues: secondY,
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				i := int(math.Round(f))
				if i < 0 || i >= len(primary) {
					return ""
				}
				return primary[i].Name
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("Rs %.0fk", f/1000)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
