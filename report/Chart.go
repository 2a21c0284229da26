// Package report renders learning curves of experiments as HTML charts
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is a named sequence of per-episode values, such as the
// episodic returns saved by a trackers.Return
type Series struct {
	Name   string
	Values []float64
}

// Line returns a line chart of the series against the episode number.
// Series of different lengths are plotted over the longest one.
func Line(title string, series ...Series) (*charts.Line, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("line: no series to plot")
	}

	var episodes int
	for _, s := range series {
		if len(s.Values) > episodes {
			episodes = len(s.Values)
		}
	}
	xAxis := make([]string, episodes)
	for i := range xAxis {
		xAxis[i] = fmt.Sprintf("%d", i+1)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Return"}),
	)
	line.SetXAxis(xAxis)

	for _, s := range series {
		items := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			items[i] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Name, items)
	}
	return line, nil
}

// Render writes an HTML page holding a line chart of the series to w
func Render(w io.Writer, title string, series ...Series) error {
	line, err := Line(title, series...)
	if err != nil {
		return fmt.Errorf("render: %v", err)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// Save renders the chart of the series into the HTML file at path
func Save(path, title string, series ...Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	defer f.Close()

	if err := Render(f, title, series...); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return f.Close()
}
