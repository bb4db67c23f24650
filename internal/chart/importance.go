// Package chart renders feature importance rankings as standalone HTML charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"migraine-sense/internal/ml"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	chartWidthPx  = 800
	chartHeightPx = 400

	colorBar           = "#45a29e"
	colorBackground    = "#0b0c10"
	colorTextPrimary   = "#66fcf1"
	colorTextSecondary = "#c5c6c7"
)

// ErrNoImportances is returned when there is nothing to plot.
var ErrNoImportances = errors.New("no feature importances to chart")

// RenderImportance draws ranked as a bar chart, highest weight on the left,
// and returns a complete HTML document.
func RenderImportance(title string, ranked []ml.RankedFeature) ([]byte, error) {
	if len(ranked) == 0 {
		return nil, ErrNoImportances
	}

	names := make([]string, len(ranked))
	data := make([]opts.BarData, len(ranked))
	for i, r := range ranked {
		names[i] = r.Name
		data[i] = opts.BarData{Name: r.Name, Value: round(r.Score, 4)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       title,
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			Left:       "center",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 16},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Interval: "0", Rotate: 45, Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Importance Score",
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	bar.SetXAxis(names)
	bar.AddSeries("Importance", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBar}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, fmt.Errorf("render importance chart: %w", err)
	}
	return buf.Bytes(), nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
