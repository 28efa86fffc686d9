package app

// this file contains all functions related to charting

import (
	"context"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"
)

type chartPeriod struct {
	window   time.Duration
	title    string
	subtitle string
	// maxPoints bounds each series, 0 keeps everything
	maxPoints int
}

var chartPeriods = map[string]chartPeriod{
	"1h":  {window: time.Hour, title: "Credits - last hour", subtitle: "All Data points"},
	"24h": {window: 24 * time.Hour, title: "Credits - last 24 hours", subtitle: "Down-sampled", maxPoints: 300},
	"7d":  {window: 7 * 24 * time.Hour, title: "Credits - last 7 days", subtitle: "Adaptive down-sampling", maxPoints: 200},
}

func (a *App) LoadChartHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	period, ok := chartPeriods[q.Get("period")]
	if !ok {
		period = chartPeriods["1h"]
	}

	var own string
	if agent, err := a.game.Agent(r.Context()); err != nil {
		slog.Warn("could not load own agent for chart", "error", err)
	} else {
		own = agent.Symbol
	}
	agents := mergeAgents(own, q["agent"])

	line := a.CreditChart(r.Context(), agents, period)
	w.Header().Set("Content-Type", "text/html")
	if err := a.RenderChartFragment(w, line); err != nil {
		slog.Error("failed to render chart", "error", err)
	}
}

// CreditChart draws one credits series per agent over the period's window.
func (a *App) CreditChart(ctx context.Context, agents []string, p chartPeriod) *charts.Line {
	line := charts.NewLine()
	since := a.now().Add(-p.window)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark"}),
		charts.WithTitleOpts(opts.Title{
			Title:    p.title,
			Subtitle: p.subtitle,
		}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Min: int(since.UnixMilli())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	for _, symbol := range agents {
		hist, err := a.store.AgentHistory(ctx, symbol, since)
		if err != nil {
			slog.Error("error getting agent records", "agent", symbol, "error", err)
			continue
		}
		stride := 1
		if p.maxPoints > 0 && len(hist) > p.maxPoints {
			stride = (len(hist) + p.maxPoints - 1) / p.maxPoints
		}
		items := make([]opts.LineData, 0, len(hist)/stride+1)
		for i, r := range hist {
			if i%stride == 0 {
				items = append(items, opts.LineData{Value: []interface{}{r.Timestamp, r.Credits}})
			}
		}
		line.AddSeries(symbol, items)
	}
	return line
}

// RenderChartFragment renders a go-echarts chart as a fragment (div + script) to the ResponseWriter.
func (a *App) RenderChartFragment(w io.Writer, chart render.Renderer) error {
	snippet := chart.RenderSnippet()

	data := struct {
		Element template.HTML
		Script  template.HTML
	}{
		Element: template.HTML(snippet.Element),
		Script:  template.HTML(snippet.Script),
	}

	return a.t.ExecuteTemplate(w, "chart.html", data)
}
