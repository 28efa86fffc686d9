// Package workflow drives one agent from a fresh account to a ship full of ore:
// accept a contract, buy a mining drone, fly it to the home asteroid, mine
// until the hold is full and sell what the contract does not need.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papaburgs/fluffy-miner/internal/clock"
	"github.com/papaburgs/fluffy-miner/internal/db"
	"github.com/papaburgs/fluffy-miner/internal/fleet"
	"github.com/papaburgs/fluffy-miner/internal/game"
	"github.com/papaburgs/fluffy-miner/internal/metrics"
	"github.com/papaburgs/fluffy-miner/internal/systems"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// AuditRecorder stores the outcome of each step. db.Store satisfies it.
type AuditRecorder interface {
	RecordStep(ctx context.Context, r db.StepRecord) error
}

type Config struct {
	// ShipType is bought at the first shipyard that sells it.
	ShipType string
	// SaleDelay separates consecutive sales.
	SaleDelay time.Duration
}

// Result is what a finished run produced.
type Result struct {
	RunID    string                    `json:"runId"`
	Contract types.Contract            `json:"contract"`
	Ship     types.Ship                `json:"ship"`
	Asteroid types.Waypoint            `json:"asteroid"`
	Market   *types.Market             `json:"market,omitempty"`
	Cargo    types.ShipCargo           `json:"cargo"`
	Sales    []types.MarketTransaction `json:"sales"`
}

// Engine runs the workflow. Runs are serialized: a second Run waits until the
// first one finishes or its own context ends.
type Engine struct {
	game    *game.Service
	systems *systems.Service
	fleet   *fleet.Service
	clock   clock.Clock
	audit   AuditRecorder
	cfg     Config
	tracer  trace.Tracer
	sem     chan struct{}
	newID   func() string
}

// New builds an engine. audit may be nil.
func New(g *game.Service, sys *systems.Service, fl *fleet.Service, clk clock.Clock, audit AuditRecorder, cfg Config) *Engine {
	if cfg.ShipType == "" {
		cfg.ShipType = types.ShipTypeMiningDrone
	}
	return &Engine{
		game:    g,
		systems: sys,
		fleet:   fl,
		clock:   clk,
		audit:   audit,
		cfg:     cfg,
		tracer:  otel.Tracer("fluffy-miner/workflow"),
		sem:     make(chan struct{}, 1),
		newID:   uuid.NewString,
	}
}

// Run executes every step once, in dependency order, and stops at the first
// failing step. Nothing is rolled back. The returned Result carries the run
// id even on failure.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-e.sem }()

	r := newRun(e, e.newID())
	l := slog.With("function", "Run", "run", r.id)
	l.Info("workflow started")

	ctx, span := e.tracer.Start(ctx, "Workflow.Run", trace.WithAttributes(attribute.String("run.id", r.id)))
	defer span.End()

	res, err := r.result(ctx)
	res.RunID = r.id
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordWorkflowRun(db.StepFailed)
		l.Error("workflow failed", "error", err)
		return res, err
	}
	metrics.RecordWorkflowRun(db.StepSucceeded)
	l.Info("workflow finished", "ship", res.Ship.Symbol, "cargo", res.Cargo.Units, "sales", len(res.Sales))
	return res, nil
}
