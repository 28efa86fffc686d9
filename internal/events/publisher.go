package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papaburgs/fluffy-miner/internal/metrics"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// GameSource is satisfied by game.Service.
type GameSource interface {
	Status(ctx context.Context) (types.ServerStatus, error)
	Agent(ctx context.Context) (types.Agent, error)
	Contracts(ctx context.Context) ([]types.Contract, error)
}

// ShipSource is satisfied by fleet.Service.
type ShipSource interface {
	Ships(ctx context.Context) ([]types.Ship, error)
}

// Publisher polls the cached state on an interval.
type Publisher struct {
	game     GameSource
	ships    ShipSource
	interval time.Duration
}

func NewPublisher(game GameSource, ships ShipSource, interval time.Duration) *Publisher {
	return &Publisher{game: game, ships: ships, interval: interval}
}

// Stream sends a snapshot right away and then once per interval until ctx
// ends, when the channel is closed. A tick that comes while the previous
// snapshot is still being fetched is dropped.
func (p *Publisher) Stream(ctx context.Context) <-chan Event {
	out := make(chan Event, 8)
	go func() {
		metrics.EventSubscribers.Inc()
		defer metrics.EventSubscribers.Dec()

		var (
			busy atomic.Bool
			wg   sync.WaitGroup
		)
		tick := func() {
			if !busy.CompareAndSwap(false, true) {
				metrics.EventTicksDroppedTotal.Inc()
				slog.Debug("dropping event tick, previous fetch still running")
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer busy.Store(false)
				evs, err := p.Snapshot(ctx)
				if err != nil {
					if ctx.Err() == nil {
						slog.Warn("could not build event snapshot", "error", err)
					}
					return
				}
				for _, ev := range evs {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick()
		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				close(out)
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
	return out
}

// Snapshot fetches the four views concurrently and returns them as events:
// status, agent, one per contract, then ships.
func (p *Publisher) Snapshot(ctx context.Context) ([]Event, error) {
	var (
		status    types.ServerStatus
		agent     types.Agent
		contracts []types.Contract
		ships     []types.Ship
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		status, err = p.game.Status(gctx)
		return err
	})
	g.Go(func() (err error) {
		agent, err = p.game.Agent(gctx)
		return err
	})
	g.Go(func() (err error) {
		contracts, err = p.game.Contracts(gctx)
		return err
	})
	g.Go(func() (err error) {
		ships, err = p.ships.Ships(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	evs := make([]Event, 0, len(contracts)+3)
	evs = append(evs, NewStatusEvent(status), NewAgentEvent(agent))
	for _, c := range contracts {
		evs = append(evs, NewContractEvent(c))
	}
	evs = append(evs, NewShipsEvent(ships))
	return evs, nil
}
