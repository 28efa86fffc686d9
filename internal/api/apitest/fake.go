// Package apitest provides an in-memory game server implementing api.Client.
package apitest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// Fake is a small, rule-enforcing stand-in for the game API. Set the exported
// fields before use; it is safe for concurrent use afterwards.
type Fake struct {
	mu sync.Mutex

	Now func() time.Time

	StatusText   string
	Agent        types.Agent
	ContractList []types.Contract
	ShipList     []types.Ship
	// SystemWaypoints holds the full listing of each system in listing order.
	SystemWaypoints map[string][]types.Waypoint
	Shipyards       map[string]types.Shipyard
	Markets         map[string]types.Market

	// Yields is cycled through by ExtractResources.
	Yields           []types.ExtractionYield
	CooldownSeconds  int
	FlightTime       time.Duration
	FuelPerTrip      int
	NewShipCapacity  int
	PricePerUnit     int
	OmitMeta         bool
	NegotiateError   error
	NegotiatedResult *types.Contract

	// Errors forces an operation (by name, see Calls) to fail.
	Errors map[string]error

	calls    []string
	yieldIdx int
}

var _ api.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		StatusText:      "SpaceTraders is currently online",
		SystemWaypoints: make(map[string][]types.Waypoint),
		Shipyards:       make(map[string]types.Shipyard),
		Markets:         make(map[string]types.Market),
		Errors:          make(map[string]error),
		CooldownSeconds: 70,
		FlightTime:      30 * time.Second,
		FuelPerTrip:     12,
		NewShipCapacity: 15,
		PricePerUnit:    10,
		Now:             time.Now,
	}
}

// Calls returns the operations received so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times op was called.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// ShipSnapshot returns the current state of a ship.
func (f *Fake) ShipSnapshot(symbol string) (types.Ship, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.Ship{}, false
	}
	return cloneShip(f.ShipList[i]), true
}

// record must be called with f.mu held.
func (f *Fake) record(op string) error {
	f.calls = append(f.calls, op)
	if err := f.Errors[op]; err != nil {
		return err
	}
	return nil
}

func apiError(op string, status, code int, msg string) error {
	return &api.Error{Operation: op, StatusCode: status, Code: code, Message: msg}
}

func page[T any](items []T, page, limit int, omitMeta bool) ([]T, *types.Meta) {
	if limit <= 0 {
		limit = len(items)
	}
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	if omitMeta {
		return out, nil
	}
	return out, &types.Meta{Total: len(items), Page: page, Limit: limit}
}

func (f *Fake) Status(ctx context.Context) (types.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("status"); err != nil {
		return types.ServerStatus{}, err
	}
	return types.ServerStatus{Status: f.StatusText}, nil
}

func (f *Fake) MyAgent(ctx context.Context) (types.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("my-agent"); err != nil {
		return types.Agent{}, err
	}
	return f.Agent, nil
}

func (f *Fake) Contracts(ctx context.Context, p, limit int) ([]types.Contract, *types.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("contracts"); err != nil {
		return nil, nil, err
	}
	out, meta := page(f.ContractList, p, limit, f.OmitMeta)
	return out, meta, nil
}

func (f *Fake) NegotiateContract(ctx context.Context, shipSymbol string) (types.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("negotiate-contract"); err != nil {
		return types.Contract{}, err
	}
	if f.NegotiateError != nil {
		return types.Contract{}, f.NegotiateError
	}
	i := f.shipIndex(shipSymbol)
	if i < 0 {
		return types.Contract{}, apiError("negotiate-contract", http.StatusNotFound, 404, "ship not found")
	}
	if f.ShipList[i].Nav.Status != types.NavStatusDocked {
		return types.Contract{}, apiError("negotiate-contract", http.StatusBadRequest, 4244, "ship is not docked")
	}
	c := types.Contract{ID: fmt.Sprintf("contract-%d", len(f.ContractList)+1), FactionSymbol: f.Agent.StartingFaction}
	if f.NegotiatedResult != nil {
		c = *f.NegotiatedResult
	}
	f.ContractList = append(f.ContractList, c)
	return c, nil
}

func (f *Fake) AcceptContract(ctx context.Context, id string) (types.AcceptContractResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("accept-contract"); err != nil {
		return types.AcceptContractResult{}, err
	}
	for i := range f.ContractList {
		if f.ContractList[i].ID != id {
			continue
		}
		if f.ContractList[i].Accepted {
			return types.AcceptContractResult{}, apiError("accept-contract", http.StatusBadRequest, 4501, "contract already accepted")
		}
		f.ContractList[i].Accepted = true
		f.Agent.Credits += int64(f.ContractList[i].Terms.Payment.OnAccepted)
		return types.AcceptContractResult{Agent: f.Agent, Contract: f.ContractList[i]}, nil
	}
	return types.AcceptContractResult{}, apiError("accept-contract", http.StatusNotFound, 404, "contract not found")
}

func (f *Fake) Waypoints(ctx context.Context, system string, filter api.WaypointFilter, p, limit int) ([]types.Waypoint, *types.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("waypoints"); err != nil {
		return nil, nil, err
	}
	var matched []types.Waypoint
	for _, w := range f.SystemWaypoints[system] {
		if filter.Type != "" && w.Type != filter.Type {
			continue
		}
		ok := true
		for _, t := range filter.Traits {
			if !w.HasTrait(t) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, w)
		}
	}
	out, meta := page(matched, p, limit, f.OmitMeta)
	return out, meta, nil
}

func (f *Fake) Waypoint(ctx context.Context, system, waypoint string) (types.Waypoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("waypoint"); err != nil {
		return types.Waypoint{}, err
	}
	for _, w := range f.SystemWaypoints[system] {
		if w.Symbol == waypoint {
			return w, nil
		}
	}
	return types.Waypoint{}, apiError("waypoint", http.StatusNotFound, 404, "waypoint not found")
}

func (f *Fake) Shipyard(ctx context.Context, system, waypoint string) (types.Shipyard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("shipyard"); err != nil {
		return types.Shipyard{}, err
	}
	y, ok := f.Shipyards[waypoint]
	if !ok {
		return types.Shipyard{}, apiError("shipyard", http.StatusNotFound, 404, "shipyard not found")
	}
	return y, nil
}

func (f *Fake) Market(ctx context.Context, system, waypoint string) (types.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("market"); err != nil {
		return types.Market{}, err
	}
	m, ok := f.Markets[waypoint]
	if !ok {
		return types.Market{}, apiError("market", http.StatusNotFound, 404, "market not found")
	}
	return m, nil
}

func (f *Fake) Ships(ctx context.Context, p, limit int) ([]types.Ship, *types.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ships"); err != nil {
		return nil, nil, err
	}
	out, meta := page(f.ShipList, p, limit, f.OmitMeta)
	for i := range out {
		out[i] = cloneShip(out[i])
	}
	return out, meta, nil
}

func (f *Fake) Ship(ctx context.Context, symbol string) (types.Ship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ship"); err != nil {
		return types.Ship{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.Ship{}, apiError("ship", http.StatusNotFound, 404, "ship not found")
	}
	return cloneShip(f.ShipList[i]), nil
}

func (f *Fake) PurchaseShip(ctx context.Context, shipType, waypoint string) (types.PurchaseShipResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("purchase-ship"); err != nil {
		return types.PurchaseShipResult{}, err
	}
	y, ok := f.Shipyards[waypoint]
	if !ok || !y.Offers(shipType) {
		return types.PurchaseShipResult{}, apiError("purchase-ship", http.StatusBadRequest, 3011, "ship type not available")
	}
	ws, err := types.ParseWaypointSymbol(waypoint)
	if err != nil {
		return types.PurchaseShipResult{}, err
	}
	price := 0
	for _, s := range y.Ships {
		if s.Type == shipType {
			price = s.PurchasePrice
		}
	}
	ship := types.Ship{
		Symbol:       fmt.Sprintf("%s-%X", f.Agent.Symbol, len(f.ShipList)+1),
		Registration: types.ShipRegistration{FactionSymbol: f.Agent.StartingFaction, Role: "EXCAVATOR"},
		Nav: types.ShipNav{
			SystemSymbol:   ws.System,
			WaypointSymbol: waypoint,
			Status:         types.NavStatusDocked,
			FlightMode:     "CRUISE",
		},
		Cargo: types.ShipCargo{Capacity: f.NewShipCapacity},
		Fuel:  types.ShipFuel{Current: 100, Capacity: 100},
	}
	f.ShipList = append(f.ShipList, ship)
	f.Agent.Credits -= int64(price)
	f.Agent.ShipCount++

	res := types.PurchaseShipResult{Agent: f.Agent, Ship: cloneShip(ship)}
	res.Transaction.ShipSymbol = ship.Symbol
	res.Transaction.ShipType = shipType
	res.Transaction.WaypointSymbol = waypoint
	res.Transaction.Price = price
	return res, nil
}

func (f *Fake) OrbitShip(ctx context.Context, symbol string) (types.ShipNav, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("orbit"); err != nil {
		return types.ShipNav{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.ShipNav{}, apiError("orbit", http.StatusNotFound, 404, "ship not found")
	}
	f.ShipList[i].Nav.Status = types.NavStatusInOrbit
	return f.ShipList[i].Nav, nil
}

func (f *Fake) DockShip(ctx context.Context, symbol string) (types.ShipNav, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("dock"); err != nil {
		return types.ShipNav{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.ShipNav{}, apiError("dock", http.StatusNotFound, 404, "ship not found")
	}
	f.ShipList[i].Nav.Status = types.NavStatusDocked
	return f.ShipList[i].Nav, nil
}

func (f *Fake) NavigateShip(ctx context.Context, symbol, waypoint string) (types.NavigateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("navigate"); err != nil {
		return types.NavigateResult{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.NavigateResult{}, apiError("navigate", http.StatusNotFound, 404, "ship not found")
	}
	s := &f.ShipList[i]
	if s.Nav.Status != types.NavStatusInOrbit {
		return types.NavigateResult{}, apiError("navigate", http.StatusBadRequest, 4236, "ship is not in orbit")
	}
	now := f.Now()
	s.Nav.Route = types.ShipNavRoute{
		Origin:        types.RouteWaypoint{Symbol: s.Nav.WaypointSymbol},
		Destination:   types.RouteWaypoint{Symbol: waypoint},
		DepartureTime: now,
		Arrival:       now.Add(f.FlightTime),
	}
	s.Nav.WaypointSymbol = waypoint
	s.Nav.Status = types.NavStatusInTransit
	s.Fuel.Current -= f.FuelPerTrip
	s.Fuel.Consumed = types.FuelConsumed{Amount: f.FuelPerTrip, Timestamp: now}
	return types.NavigateResult{Fuel: s.Fuel, Nav: s.Nav}, nil
}

func (f *Fake) RefuelShip(ctx context.Context, symbol string, units int) (types.RefuelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("refuel"); err != nil {
		return types.RefuelResult{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.RefuelResult{}, apiError("refuel", http.StatusNotFound, 404, "ship not found")
	}
	s := &f.ShipList[i]
	if s.Nav.Status != types.NavStatusDocked {
		return types.RefuelResult{}, apiError("refuel", http.StatusBadRequest, 4244, "ship is not docked")
	}
	s.Fuel.Current += units
	if s.Fuel.Current > s.Fuel.Capacity {
		s.Fuel.Current = s.Fuel.Capacity
	}
	f.Agent.Credits -= int64(units)
	return types.RefuelResult{Agent: f.Agent, Fuel: s.Fuel}, nil
}

func (f *Fake) ExtractResources(ctx context.Context, symbol string) (types.ExtractResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("extract"); err != nil {
		return types.ExtractResult{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.ExtractResult{}, apiError("extract", http.StatusNotFound, 404, "ship not found")
	}
	s := &f.ShipList[i]
	if s.Nav.Status != types.NavStatusInOrbit {
		return types.ExtractResult{}, apiError("extract", http.StatusBadRequest, 4236, "ship is not in orbit")
	}
	if len(f.Yields) == 0 {
		return types.ExtractResult{}, apiError("extract", http.StatusBadRequest, 4228, "nothing to extract")
	}
	y := f.Yields[f.yieldIdx%len(f.Yields)]
	f.yieldIdx++
	if free := s.Cargo.Capacity - s.Cargo.Units; y.Units > free {
		y.Units = free
	}
	addCargo(&s.Cargo, y.Symbol, y.Units)
	s.Cooldown = types.Cooldown{ShipSymbol: symbol, TotalSeconds: f.CooldownSeconds, RemainingSeconds: f.CooldownSeconds}
	return types.ExtractResult{
		Cooldown:   s.Cooldown,
		Extraction: types.Extraction{ShipSymbol: symbol, Yield: y},
		Cargo:      cloneCargo(s.Cargo),
	}, nil
}

func (f *Fake) SellCargo(ctx context.Context, symbol, tradeSymbol string, units int) (types.SellResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("sell"); err != nil {
		return types.SellResult{}, err
	}
	i := f.shipIndex(symbol)
	if i < 0 {
		return types.SellResult{}, apiError("sell", http.StatusNotFound, 404, "ship not found")
	}
	s := &f.ShipList[i]
	if s.Nav.Status != types.NavStatusDocked {
		return types.SellResult{}, apiError("sell", http.StatusBadRequest, 4244, "ship is not docked")
	}
	if !removeCargo(&s.Cargo, tradeSymbol, units) {
		return types.SellResult{}, apiError("sell", http.StatusBadRequest, 4219, "not enough cargo")
	}
	total := units * f.PricePerUnit
	f.Agent.Credits += int64(total)
	return types.SellResult{
		Agent: f.Agent,
		Cargo: cloneCargo(s.Cargo),
		Transaction: types.MarketTransaction{
			WaypointSymbol: s.Nav.WaypointSymbol,
			ShipSymbol:     symbol,
			TradeSymbol:    tradeSymbol,
			Type:           "SELL",
			Units:          units,
			PricePerUnit:   f.PricePerUnit,
			TotalPrice:     total,
			Timestamp:      f.Now(),
		},
	}, nil
}

func (f *Fake) shipIndex(symbol string) int {
	for i := range f.ShipList {
		if f.ShipList[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

func addCargo(c *types.ShipCargo, symbol string, units int) {
	if units <= 0 {
		return
	}
	c.Units += units
	for i := range c.Inventory {
		if c.Inventory[i].Symbol == symbol {
			c.Inventory[i].Units += units
			return
		}
	}
	c.Inventory = append(c.Inventory, types.ShipCargoItem{Symbol: symbol, Name: symbol, Units: units})
}

func removeCargo(c *types.ShipCargo, symbol string, units int) bool {
	for i := range c.Inventory {
		if c.Inventory[i].Symbol != symbol {
			continue
		}
		if c.Inventory[i].Units < units {
			return false
		}
		c.Inventory[i].Units -= units
		c.Units -= units
		if c.Inventory[i].Units == 0 {
			c.Inventory = slices.Delete(slices.Clone(c.Inventory), i, i+1)
		}
		return true
	}
	return false
}

// cloneShip copies the slices of s so callers never share the fake's state.
func cloneShip(s types.Ship) types.Ship {
	s.Modules = slices.Clone(s.Modules)
	s.Mounts = slices.Clone(s.Mounts)
	s.Cargo = cloneCargo(s.Cargo)
	return s
}

func cloneCargo(c types.ShipCargo) types.ShipCargo {
	c.Inventory = slices.Clone(c.Inventory)
	return c
}
