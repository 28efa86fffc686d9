package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

// Step names as they appear in spans, metrics and the audit trail.
const (
	StepHomeSystem        = "home_system"
	StepContract          = "contract"
	StepShip              = "ship"
	StepAsteroid          = "asteroid"
	StepNavigationStart   = "navigation_start"
	StepNavigationFinish  = "navigation_finish"
	StepRefuel            = "refuel"
	StepRequiredResources = "required_resources"
	StepExtraction        = "extraction"
	StepMarket            = "market"
	StepDocked            = "docked"
	StepCargoSold         = "cargo_sold"
)

type sales struct {
	transactions []types.MarketTransaction
	cargo        types.ShipCargo
}

// run wires the steps of one execution together. A step only starts once
// the steps it reads from have finished; joins wait for their inputs in
// declaration order.
type run struct {
	engine *Engine
	id     string

	home      *step[types.WaypointSymbol]
	contract  *step[types.Contract]
	ship      *step[types.Ship]
	asteroid  *step[types.Waypoint]
	navStart  *step[types.NavigateResult]
	navFinish *step[types.ShipNav]
	refuel    *step[bool]
	required  *step[map[string]bool]
	extracted *step[types.Ship]
	market    *step[*types.Market]
	docked    *step[types.ShipNav]
	sold      *step[sales]
}

func newRun(e *Engine, id string) *run {
	r := &run{engine: e, id: id}

	r.home = newStep(r, StepHomeSystem, e.game.HomeSystem)

	r.contract = newStep(r, StepContract, r.ensureContractAccepted)

	r.ship = newStep(r, StepShip, func(ctx context.Context) (types.Ship, error) {
		home, err := r.home.Get(ctx)
		if err != nil {
			return types.Ship{}, err
		}
		yard, err := e.systems.FindShipyard(ctx, home.System, e.cfg.ShipType)
		if err != nil {
			return types.Ship{}, err
		}
		return e.fleet.Purchase(ctx, e.cfg.ShipType, yard.Symbol)
	})

	r.asteroid = newStep(r, StepAsteroid, func(ctx context.Context) (types.Waypoint, error) {
		home, err := r.home.Get(ctx)
		if err != nil {
			return types.Waypoint{}, err
		}
		return e.systems.FindAsteroid(ctx, home.System)
	})

	r.navStart = newStep(r, StepNavigationStart, func(ctx context.Context) (types.NavigateResult, error) {
		ship, err := r.ship.Get(ctx)
		if err != nil {
			return types.NavigateResult{}, err
		}
		asteroid, err := r.asteroid.Get(ctx)
		if err != nil {
			return types.NavigateResult{}, err
		}
		return e.fleet.StartNavigation(ctx, ship.Symbol, asteroid.Symbol)
	})

	r.navFinish = newStep(r, StepNavigationFinish, func(ctx context.Context) (types.ShipNav, error) {
		ship, err := r.ship.Get(ctx)
		if err != nil {
			return types.ShipNav{}, err
		}
		nav, err := r.navStart.Get(ctx)
		if err != nil {
			return types.ShipNav{}, err
		}
		return e.fleet.FinishNavigation(ctx, ship.Symbol, nav.Nav)
	})

	r.refuel = newStep(r, StepRefuel, func(ctx context.Context) (bool, error) {
		ship, err := r.ship.Get(ctx)
		if err != nil {
			return false, err
		}
		nav, err := r.navStart.Get(ctx)
		if err != nil {
			return false, err
		}
		if _, err := r.navFinish.Get(ctx); err != nil {
			return false, err
		}
		units := nav.Fuel.Consumed.Amount
		if units <= 0 {
			slog.Debug("no fuel consumed, skipping refuel", "run", r.id, "ship", ship.Symbol)
			return false, nil
		}
		if _, err := e.fleet.Refuel(ctx, ship.Symbol, units); err != nil {
			return false, err
		}
		return true, nil
	})

	r.required = newStep(r, StepRequiredResources, func(ctx context.Context) (map[string]bool, error) {
		c, err := r.contract.Get(ctx)
		if err != nil {
			return nil, err
		}
		return RequiredResources(c), nil
	})

	r.extracted = newStep(r, StepExtraction, func(ctx context.Context) (types.Ship, error) {
		ship, err := r.ship.Get(ctx)
		if err != nil {
			return types.Ship{}, err
		}
		required, err := r.required.Get(ctx)
		if err != nil {
			return types.Ship{}, err
		}
		asteroid, err := r.asteroid.Get(ctx)
		if err != nil {
			return types.Ship{}, err
		}
		nav, err := r.navFinish.Get(ctx)
		if err != nil {
			return types.Ship{}, err
		}
		if _, err := r.refuel.Get(ctx); err != nil {
			return types.Ship{}, err
		}
		ship.Nav = nav
		return e.fleet.ExtractUntilFull(ctx, ship, required, asteroid)
	})

	// market is informational, a failed lookup does not stop the run
	r.market = newStep(r, StepMarket, func(ctx context.Context) (*types.Market, error) {
		asteroid, err := r.asteroid.Get(ctx)
		if err != nil {
			return nil, err
		}
		m, err := e.systems.Market(ctx, asteroid.SystemSymbol, asteroid.Symbol)
		if err != nil {
			slog.Warn("market lookup failed", "run", r.id, "waypoint", asteroid.Symbol, "error", err)
			return nil, nil
		}
		return &m, nil
	})

	r.docked = newStep(r, StepDocked, func(ctx context.Context) (types.ShipNav, error) {
		ship, err := r.extracted.Get(ctx)
		if err != nil {
			return types.ShipNav{}, err
		}
		if _, err := r.market.Get(ctx); err != nil {
			return types.ShipNav{}, err
		}
		return e.fleet.Dock(ctx, ship.Symbol)
	})

	r.sold = newStep(r, StepCargoSold, func(ctx context.Context) (sales, error) {
		ship, err := r.extracted.Get(ctx)
		if err != nil {
			return sales{}, err
		}
		required, err := r.required.Get(ctx)
		if err != nil {
			return sales{}, err
		}
		if _, err := r.docked.Get(ctx); err != nil {
			return sales{}, err
		}
		return r.sellSpareCargo(ctx, ship, required)
	})

	return r
}

// result awaits the steps in order and collects what they produced.
func (r *run) result(ctx context.Context) (Result, error) {
	var res Result
	var err error
	if _, err = r.home.Get(ctx); err != nil {
		return res, err
	}
	if res.Contract, err = r.contract.Get(ctx); err != nil {
		return res, err
	}
	if _, err = r.ship.Get(ctx); err != nil {
		return res, err
	}
	if res.Asteroid, err = r.asteroid.Get(ctx); err != nil {
		return res, err
	}
	if _, err = r.navStart.Get(ctx); err != nil {
		return res, err
	}
	if _, err = r.navFinish.Get(ctx); err != nil {
		return res, err
	}
	if _, err = r.refuel.Get(ctx); err != nil {
		return res, err
	}
	if _, err = r.required.Get(ctx); err != nil {
		return res, err
	}
	if res.Ship, err = r.extracted.Get(ctx); err != nil {
		return res, err
	}
	if res.Market, err = r.market.Get(ctx); err != nil {
		return res, err
	}
	nav, err := r.docked.Get(ctx)
	if err != nil {
		return res, err
	}
	sold, err := r.sold.Get(ctx)
	if err != nil {
		return res, err
	}
	res.Ship.Nav = nav
	res.Ship.Cargo = sold.cargo
	res.Cargo = sold.cargo
	res.Sales = sold.transactions
	return res, nil
}

func (r *run) ensureContractAccepted(ctx context.Context) (types.Contract, error) {
	g := r.engine.game
	contracts, err := g.Contracts(ctx)
	if err != nil {
		return types.Contract{}, err
	}
	c, ok := firstOpen(contracts)
	if !ok {
		slog.Info("no open contract, negotiating", "run", r.id, "contracts", len(contracts))
		if contracts, err = g.NegotiateContract(ctx); err != nil {
			return types.Contract{}, err
		}
		if c, ok = firstOpen(contracts); !ok {
			return types.Contract{}, fmt.Errorf("no open contract: %w", types.ErrNotFound)
		}
	}

	if c.Accepted {
		slog.Info("contract already accepted", "run", r.id, "contract", c.ID)
		return c, nil
	}
	return g.AcceptContract(ctx, c.ID)
}

// firstOpen returns the first contract that is not fulfilled yet.
func firstOpen(contracts []types.Contract) (types.Contract, bool) {
	for _, c := range contracts {
		if !c.Fulfilled {
			return c, true
		}
	}
	return types.Contract{}, false
}

// sellSpareCargo sells every inventory line the contract does not need,
// pausing between sales.
func (r *run) sellSpareCargo(ctx context.Context, ship types.Ship, required map[string]bool) (sales, error) {
	e := r.engine
	out := sales{cargo: ship.Cargo, transactions: []types.MarketTransaction{}}
	// walk a copy, a sale rewrites the inventory
	for _, item := range slices.Clone(ship.Cargo.Inventory) {
		if required[item.Symbol] || item.Units <= 0 {
			continue
		}
		if len(out.transactions) > 0 {
			if err := e.clock.Sleep(ctx, e.cfg.SaleDelay); err != nil {
				return out, err
			}
		}
		res, err := e.fleet.Sell(ctx, ship.Symbol, item.Symbol, item.Units)
		if err != nil {
			return out, err
		}
		out.transactions = append(out.transactions, res.Transaction)
		out.cargo = res.Cargo
	}
	return out, nil
}

// RequiredResources returns the trade symbols the contract still needs.
// Deliveries whose quota is already met are left out.
func RequiredResources(c types.Contract) map[string]bool {
	required := make(map[string]bool)
	for _, d := range c.Terms.Deliver {
		if d.UnitsFulfilled < d.UnitsRequired {
			required[d.TradeSymbol] = true
		}
	}
	return required
}
