// Package game covers the agent-level calls: server status, the agent itself
// and its contracts.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/cache"
	"github.com/papaburgs/fluffy-miner/internal/pager"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// ShipLister is satisfied by fleet.Service.
type ShipLister interface {
	Ships(ctx context.Context) ([]types.Ship, error)
}

// WaypointLookup is satisfied by systems.Service.
type WaypointLookup interface {
	Waypoint(ctx context.Context, wp types.WaypointSymbol) (types.Waypoint, error)
}

// AgentRecorder keeps a history of agent snapshots.
type AgentRecorder interface {
	RecordAgent(ctx context.Context, at time.Time, a types.Agent) error
}

type Service struct {
	client    api.Client
	cache     *cache.Cache
	ships     ShipLister
	waypoints WaypointLookup
	history   AgentRecorder
	now       func() time.Time
}

// New builds the service. history may be nil.
func New(client api.Client, c *cache.Cache, ships ShipLister, waypoints WaypointLookup, history AgentRecorder) *Service {
	return &Service{
		client:    client,
		cache:     c,
		ships:     ships,
		waypoints: waypoints,
		history:   history,
		now:       time.Now,
	}
}

func (s *Service) Status(ctx context.Context) (types.ServerStatus, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.Status, func(ctx context.Context) (types.ServerStatus, error) {
		st, err := s.client.Status(ctx)
		if err != nil {
			return types.ServerStatus{}, fmt.Errorf("server status: %w", err)
		}
		return st, nil
	})
}

// Agent returns the cached agent. Each fresh fetch is also written to the history.
func (s *Service) Agent(ctx context.Context) (types.Agent, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.Agent, func(ctx context.Context) (types.Agent, error) {
		a, err := s.client.MyAgent(ctx)
		if err != nil {
			return types.Agent{}, fmt.Errorf("my agent: %w", err)
		}
		if s.history != nil {
			if err := s.history.RecordAgent(ctx, s.now(), a); err != nil {
				slog.Warn("could not record agent history", "agent", a.Symbol, "error", err)
			}
		}
		return a, nil
	})
}

// HomeSystem parses the agent's headquarters.
func (s *Service) HomeSystem(ctx context.Context) (types.WaypointSymbol, error) {
	a, err := s.Agent(ctx)
	if err != nil {
		return types.WaypointSymbol{}, err
	}
	return types.ParseWaypointSymbol(a.Headquarters)
}

// StartingLocation returns the waypoint the agent is headquartered at.
func (s *Service) StartingLocation(ctx context.Context) (types.Waypoint, error) {
	hq, err := s.HomeSystem(ctx)
	if err != nil {
		return types.Waypoint{}, err
	}
	return s.waypoints.Waypoint(ctx, hq)
}

func (s *Service) Contracts(ctx context.Context) ([]types.Contract, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.Contracts, func(ctx context.Context) ([]types.Contract, error) {
		cs, err := pager.FetchAll[types.Contract](ctx, s.client.Contracts)
		if err != nil {
			return nil, fmt.Errorf("list contracts: %w", err)
		}
		return cs, nil
	})
}

// AcceptContract accepts id and returns the updated contract.
func (s *Service) AcceptContract(ctx context.Context, id string) (types.Contract, error) {
	res, err := s.client.AcceptContract(ctx, id)
	if err != nil {
		return types.Contract{}, fmt.Errorf("accept contract %s: %w", id, err)
	}
	s.cache.Invalidate(cache.Agent, cache.Contracts)
	slog.Info("accepted contract", "contract", id, "credits", res.Agent.Credits)
	return res.Contract, nil
}

// NegotiateContract asks for a new contract with a docked ship in the
// agent's starting faction and returns the contract list afterwards. A
// refusal from the game API is logged. Either way the list is fetched again.
func (s *Service) NegotiateContract(ctx context.Context) ([]types.Contract, error) {
	l := slog.With("function", "NegotiateContract")

	a, err := s.Agent(ctx)
	if err != nil {
		return nil, err
	}
	ship, err := s.FindDockedShipWithinFaction(ctx, a.StartingFaction)
	if err != nil {
		return nil, err
	}

	c, err := s.client.NegotiateContract(ctx, ship.Symbol)
	var apiErr *api.Error
	switch {
	case err == nil:
		l.Info("negotiated contract", "contract", c.ID, "ship", ship.Symbol)
	case errors.As(err, &apiErr):
		l.Warn("contract negotiation refused", "ship", ship.Symbol, "error", err)
	default:
		return nil, fmt.Errorf("negotiate contract with %s: %w", ship.Symbol, err)
	}
	s.cache.Invalidate(cache.Contracts)
	return s.Contracts(ctx)
}

// FindDockedShipWithinFaction returns the first docked ship whose current
// waypoint belongs to faction.
func (s *Service) FindDockedShipWithinFaction(ctx context.Context, faction string) (types.Ship, error) {
	ships, err := s.ships.Ships(ctx)
	if err != nil {
		return types.Ship{}, err
	}
	for _, ship := range ships {
		if ship.Nav.Status != types.NavStatusDocked {
			continue
		}
		wps, err := types.ParseWaypointSymbol(ship.Nav.WaypointSymbol)
		if err != nil {
			return types.Ship{}, err
		}
		wp, err := s.waypoints.Waypoint(ctx, wps)
		if err != nil {
			return types.Ship{}, err
		}
		if wp.Faction != nil && wp.Faction.Symbol == faction {
			return ship, nil
		}
	}
	return types.Ship{}, fmt.Errorf("faction %s: %w", faction, types.ErrNoDockedShip)
}
