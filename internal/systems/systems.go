// Package systems answers questions about the waypoints of a star system.
package systems

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/cache"
	"github.com/papaburgs/fluffy-miner/internal/pager"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// shipyardQueries bounds how many shipyards are asked at once.
const shipyardQueries = 4

type Service struct {
	client api.Client
	cache  *cache.Cache
}

func New(client api.Client, c *cache.Cache) *Service {
	return &Service{client: client, cache: c}
}

// ListWaypoints returns every waypoint of system matching filter, across all pages.
func (s *Service) ListWaypoints(ctx context.Context, system string, filter api.WaypointFilter) ([]types.Waypoint, error) {
	wps, err := pager.FetchAll[types.Waypoint](ctx, func(ctx context.Context, page, limit int) ([]types.Waypoint, *types.Meta, error) {
		return s.client.Waypoints(ctx, system, filter, page, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("list waypoints of %s: %w", system, err)
	}
	return wps, nil
}

// Waypoint looks up a single waypoint. Waypoints do not change during a
// reset, so results stay cached until the waypoint group is invalidated.
func (s *Service) Waypoint(ctx context.Context, wp types.WaypointSymbol) (types.Waypoint, error) {
	return cache.GetOrComputeKey(ctx, s.cache, cache.Waypoint, wp.Waypoint, func(ctx context.Context) (types.Waypoint, error) {
		return s.client.Waypoint(ctx, wp.System, wp.Waypoint)
	})
}

// ShipyardsSelling returns the shipyards of system that list at least one ship
// for sale and offer shipType, in waypoint listing order.
func (s *Service) ShipyardsSelling(ctx context.Context, system, shipType string) ([]types.Shipyard, error) {
	l := slog.With("function", "ShipyardsSelling", "system", system)

	wps, err := s.ListWaypoints(ctx, system, api.WaypointFilter{Traits: []string{types.TraitShipyard}})
	if err != nil {
		return nil, err
	}

	yards := make([]types.Shipyard, len(wps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(shipyardQueries)
	for i, wp := range wps {
		g.Go(func() error {
			y, err := s.client.Shipyard(gctx, system, wp.Symbol)
			if err != nil {
				return fmt.Errorf("shipyard %s: %w", wp.Symbol, err)
			}
			yards[i] = y
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []types.Shipyard
	for _, y := range yards {
		if len(y.Ships) == 0 || !y.Offers(shipType) {
			l.Debug("skipping shipyard", "shipyard", y.Symbol, "ships", len(y.Ships))
			continue
		}
		out = append(out, y)
	}
	return out, nil
}

// FindShipyard returns the first shipyard of system selling shipType.
func (s *Service) FindShipyard(ctx context.Context, system, shipType string) (types.Shipyard, error) {
	yards, err := s.ShipyardsSelling(ctx, system, shipType)
	if err != nil {
		return types.Shipyard{}, err
	}
	if len(yards) == 0 {
		return types.Shipyard{}, fmt.Errorf("no shipyard selling %s in %s: %w", shipType, system, types.ErrNotFound)
	}
	return yards[0], nil
}

// FindAsteroid returns the first engineered asteroid of system.
func (s *Service) FindAsteroid(ctx context.Context, system string) (types.Waypoint, error) {
	wps, err := s.ListWaypoints(ctx, system, api.WaypointFilter{Type: types.WaypointTypeEngineeredAsteroid})
	if err != nil {
		return types.Waypoint{}, err
	}
	if len(wps) == 0 {
		return types.Waypoint{}, fmt.Errorf("no engineered asteroid in %s: %w", system, types.ErrNotFound)
	}
	return wps[0], nil
}

func (s *Service) Market(ctx context.Context, system, waypoint string) (types.Market, error) {
	m, err := s.client.Market(ctx, system, waypoint)
	if err != nil {
		return types.Market{}, fmt.Errorf("market at %s: %w", waypoint, err)
	}
	return m, nil
}
