// Package api is a hand-written binding for the parts of the SpaceTraders v2
// API this program uses.
package api

import (
	"context"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

const DefaultBaseURL = "https://api.spacetraders.io/v2"

// WaypointFilter narrows a waypoint listing. Empty fields are not sent.
type WaypointFilter struct {
	Type   string
	Traits []string
}

// Client is every remote call the services make. Listing calls return a nil
// Meta when the server did not send pagination data.
type Client interface {
	Status(ctx context.Context) (types.ServerStatus, error)
	MyAgent(ctx context.Context) (types.Agent, error)

	Contracts(ctx context.Context, page, limit int) ([]types.Contract, *types.Meta, error)
	NegotiateContract(ctx context.Context, shipSymbol string) (types.Contract, error)
	AcceptContract(ctx context.Context, contractID string) (types.AcceptContractResult, error)

	Waypoints(ctx context.Context, system string, filter WaypointFilter, page, limit int) ([]types.Waypoint, *types.Meta, error)
	Waypoint(ctx context.Context, system, waypoint string) (types.Waypoint, error)
	Shipyard(ctx context.Context, system, waypoint string) (types.Shipyard, error)
	Market(ctx context.Context, system, waypoint string) (types.Market, error)

	Ships(ctx context.Context, page, limit int) ([]types.Ship, *types.Meta, error)
	Ship(ctx context.Context, shipSymbol string) (types.Ship, error)
	PurchaseShip(ctx context.Context, shipType, waypoint string) (types.PurchaseShipResult, error)
	OrbitShip(ctx context.Context, shipSymbol string) (types.ShipNav, error)
	DockShip(ctx context.Context, shipSymbol string) (types.ShipNav, error)
	NavigateShip(ctx context.Context, shipSymbol, waypoint string) (types.NavigateResult, error)
	RefuelShip(ctx context.Context, shipSymbol string, units int) (types.RefuelResult, error)
	ExtractResources(ctx context.Context, shipSymbol string) (types.ExtractResult, error)
	SellCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int) (types.SellResult, error)
}
