package app

import (
	"embed"
	"html/template"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papaburgs/fluffy-miner/internal/db"
	"github.com/papaburgs/fluffy-miner/internal/events"
	"github.com/papaburgs/fluffy-miner/internal/fleet"
	"github.com/papaburgs/fluffy-miner/internal/game"
	"github.com/papaburgs/fluffy-miner/internal/workflow"
)

//go:embed templates
var templateFiles embed.FS

// App is our main application
// it holds the services the handlers talk to
type App struct {
	game      *game.Service
	fleet     *fleet.Service
	engine    *workflow.Engine
	publisher *events.Publisher
	store     *db.Store
	// now is used to place the chart window
	now func() time.Time
	t   *template.Template
}

// NewApp returns an app that contains all the handlers for the ui
func NewApp(g *game.Service, fl *fleet.Service, engine *workflow.Engine, publisher *events.Publisher, store *db.Store) *App {
	return &App{
		game:      g,
		fleet:     fl,
		engine:    engine,
		publisher: publisher,
		store:     store,
		now:       time.Now,
		t:         template.Must(template.ParseFS(templateFiles, "templates/*.html")),
	}
}

// Routes registers every handler on a new mux.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", a.StatusHandler)
	mux.HandleFunc("GET /agent", a.AgentHandler)
	mux.HandleFunc("GET /starting-location", a.StartingLocationHandler)
	mux.HandleFunc("GET /contracts", a.ContractsHandler)
	mux.HandleFunc("POST /negotiate-contract", a.NegotiateContractHandler)
	mux.HandleFunc("POST /accept-contract", a.AcceptContractHandler)
	mux.HandleFunc("GET /ships", a.ShipsHandler)
	mux.HandleFunc("POST /submit", a.SubmitHandler)
	mux.HandleFunc("GET /events", a.EventsHandler)
	mux.HandleFunc("GET /runs/{id}", a.RunHandler)
	mux.HandleFunc("GET /chart", a.LoadChartHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// mergeAgents collects agent symbols from its arguments:
// - a string is split by comma and each part trimmed
// - a []string has each element trimmed
// Empty entries are dropped. The result is sorted and deduplicated.
func mergeAgents(args ...any) []string {
	seen := make(map[string]bool)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			seen[s] = true
		}
	}
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			for _, part := range strings.Split(v, ",") {
				add(part)
			}
		case []string:
			for _, s := range v {
				add(s)
			}
		}
	}

	merged := make([]string, 0, len(seen))
	for e := range seen {
		merged = append(merged, e)
	}
	slices.Sort(merged)
	return merged
}
