// Package collector takes periodic snapshots of the agent for the credits chart.
package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

// Source is the uncached game API, api.Client satisfies it.
type Source interface {
	Status(ctx context.Context) (types.ServerStatus, error)
	MyAgent(ctx context.Context) (types.Agent, error)
}

// Recorder is satisfied by db.Store.
type Recorder interface {
	RecordAgent(ctx context.Context, at time.Time, a types.Agent) error
}

type Collector struct {
	source   Source
	recorder Recorder
	now      func() time.Time
	// reset is the last reset date seen on the status endpoint
	reset string
}

func New(source Source, recorder Recorder) *Collector {
	return &Collector{
		source:   source,
		recorder: recorder,
		now:      time.Now,
	}
}

func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	c.Ingest(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Ingest(ctx)
		}
	}
}

// Ingest checks the server status and, when it answers, stores one agent snapshot.
func (c *Collector) Ingest(ctx context.Context) {
	l := slog.With("function", "Ingest")

	if err := c.updateStatus(ctx); err != nil {
		l.Error("failed to update status", "error", err)
		return
	}
	if err := c.updateAgent(ctx); err != nil {
		l.Error("failed to update agent", "error", err)
		return
	}
	l.Debug("agent snapshot stored")
}

func (c *Collector) updateStatus(ctx context.Context) error {
	st, err := c.source.Status(ctx)
	if err != nil {
		return err
	}
	if st.ResetDate != c.reset {
		if c.reset != "" {
			slog.Info("server was reset", "previous", c.reset, "current", st.ResetDate)
		}
		c.reset = st.ResetDate
	}
	return nil
}

func (c *Collector) updateAgent(ctx context.Context) error {
	a, err := c.source.MyAgent(ctx)
	if err != nil {
		return err
	}
	return c.recorder.RecordAgent(ctx, c.now(), a)
}
