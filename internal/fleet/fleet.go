// Package fleet moves, fuels and mines with the agent's ships. Every call that
// changes remote state clears the cache groups it makes stale.
package fleet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/cache"
	"github.com/papaburgs/fluffy-miner/internal/clock"
	"github.com/papaburgs/fluffy-miner/internal/pager"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

type Service struct {
	client api.Client
	cache  *cache.Cache
	clock  clock.Clock
}

func New(client api.Client, c *cache.Cache, clk clock.Clock) *Service {
	return &Service{client: client, cache: c, clock: clk}
}

// Ships returns the whole fleet, cached under cache.Ships.
func (s *Service) Ships(ctx context.Context) ([]types.Ship, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.Ships, func(ctx context.Context) ([]types.Ship, error) {
		ships, err := pager.FetchAll[types.Ship](ctx, s.client.Ships)
		if err != nil {
			return nil, fmt.Errorf("list ships: %w", err)
		}
		return ships, nil
	})
}

// Ship fetches the current state of one ship, bypassing the cache.
func (s *Service) Ship(ctx context.Context, symbol string) (types.Ship, error) {
	ship, err := s.client.Ship(ctx, symbol)
	if err != nil {
		return types.Ship{}, fmt.Errorf("get ship %s: %w", symbol, err)
	}
	return ship, nil
}

func (s *Service) Purchase(ctx context.Context, shipType, waypoint string) (types.Ship, error) {
	res, err := s.client.PurchaseShip(ctx, shipType, waypoint)
	if err != nil {
		return types.Ship{}, fmt.Errorf("purchase %s at %s: %w", shipType, waypoint, err)
	}
	s.cache.Invalidate(cache.Agent, cache.Ships)
	slog.Info("purchased ship", "ship", res.Ship.Symbol, "type", shipType, "waypoint", waypoint, "price", res.Transaction.Price)
	return res.Ship, nil
}

func (s *Service) Orbit(ctx context.Context, symbol string) (types.ShipNav, error) {
	nav, err := s.client.OrbitShip(ctx, symbol)
	if err != nil {
		return types.ShipNav{}, fmt.Errorf("orbit %s: %w", symbol, err)
	}
	s.cache.Invalidate(cache.Ships)
	return nav, nil
}

func (s *Service) Dock(ctx context.Context, symbol string) (types.ShipNav, error) {
	nav, err := s.client.DockShip(ctx, symbol)
	if err != nil {
		return types.ShipNav{}, fmt.Errorf("dock %s: %w", symbol, err)
	}
	s.cache.Invalidate(cache.Ships)
	return nav, nil
}

// StartNavigation puts the ship in orbit and sends it to waypoint.
func (s *Service) StartNavigation(ctx context.Context, symbol, waypoint string) (types.NavigateResult, error) {
	if _, err := s.Orbit(ctx, symbol); err != nil {
		return types.NavigateResult{}, err
	}
	res, err := s.client.NavigateShip(ctx, symbol, waypoint)
	if err != nil {
		return types.NavigateResult{}, fmt.Errorf("navigate %s to %s: %w", symbol, waypoint, err)
	}
	s.cache.Invalidate(cache.Ships)
	slog.Info("started navigation", "ship", symbol, "destination", waypoint,
		"arrival", res.Nav.Route.Arrival, "fuel_consumed", res.Fuel.Consumed.Amount)
	return res, nil
}

// FinishNavigation waits out the flight described by nav and docks on arrival.
func (s *Service) FinishNavigation(ctx context.Context, symbol string, nav types.ShipNav) (types.ShipNav, error) {
	d := nav.Route.FlightDuration()
	slog.Debug("waiting for arrival", "ship", symbol, "duration", d)
	if err := s.clock.Sleep(ctx, d); err != nil {
		return types.ShipNav{}, err
	}
	docked, err := s.Dock(ctx, symbol)
	if err != nil {
		return types.ShipNav{}, err
	}
	slog.Info("finished navigation", "ship", symbol, "waypoint", docked.WaypointSymbol)
	return docked, nil
}

func (s *Service) Refuel(ctx context.Context, symbol string, units int) (types.RefuelResult, error) {
	res, err := s.client.RefuelShip(ctx, symbol, units)
	if err != nil {
		return types.RefuelResult{}, fmt.Errorf("refuel %s: %w", symbol, err)
	}
	s.cache.Invalidate(cache.Agent, cache.Ships)
	return res, nil
}

func (s *Service) Extract(ctx context.Context, symbol string) (types.ExtractResult, error) {
	res, err := s.client.ExtractResources(ctx, symbol)
	if err != nil {
		return types.ExtractResult{}, fmt.Errorf("extract with %s: %w", symbol, err)
	}
	s.cache.Invalidate(cache.Ships)
	return res, nil
}

func (s *Service) Sell(ctx context.Context, symbol, tradeSymbol string, units int) (types.SellResult, error) {
	res, err := s.client.SellCargo(ctx, symbol, tradeSymbol, units)
	if err != nil {
		return types.SellResult{}, fmt.Errorf("sell %d %s from %s: %w", units, tradeSymbol, symbol, err)
	}
	s.cache.Invalidate(cache.Agent, cache.Ships)
	slog.Info("sold cargo", "ship", symbol, "good", tradeSymbol, "units", units, "total", res.Transaction.TotalPrice)
	return res, nil
}
