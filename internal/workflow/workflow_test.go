package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/api/apitest"
	"github.com/papaburgs/fluffy-miner/internal/cache"
	"github.com/papaburgs/fluffy-miner/internal/clock"
	"github.com/papaburgs/fluffy-miner/internal/db"
	"github.com/papaburgs/fluffy-miner/internal/fleet"
	"github.com/papaburgs/fluffy-miner/internal/game"
	"github.com/papaburgs/fluffy-miner/internal/systems"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	inv   [][]string
	steps []db.StepRecord
}

func (r *recorder) hook(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inv = append(r.inv, names)
}

func (r *recorder) RecordStep(ctx context.Context, s db.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
	return nil
}

func (r *recorder) invalidations() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inv
}

func (r *recorder) stepNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.steps {
		out = append(out, s.Step+":"+s.Status)
	}
	return out
}

func newTestEngine(t *testing.T, f *apitest.Fake) (*Engine, *clock.FakeClock, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := cache.New(cache.WithInvalidationHook(rec.hook))
	clk := clock.NewFakeClock(start)
	fl := fleet.New(f, c, clk)
	sys := systems.New(f, c)
	g := game.New(f, c, fl, sys, nil)
	e := New(g, sys, fl, clk, rec, Config{SaleDelay: 600 * time.Millisecond})
	e.newID = func() string { return "run-1" }
	return e, clk, rec
}

func TestRunEndToEnd(t *testing.T) {
	f := apitest.NewWorld(start)
	e, clk, rec := newTestEngine(t, f)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantInvalidations := [][]string{
		{cache.Agent, cache.Contracts}, // accept
		{cache.Agent, cache.Ships},     // purchase
		{cache.Ships},                  // orbit
		{cache.Ships},                  // navigate
		{cache.Ships},                  // dock on arrival
		{cache.Agent, cache.Ships},     // refuel
		{cache.Ships},                  // orbit at the asteroid
		{cache.Ships},                  // extract
		{cache.Ships},
		{cache.Ships},
		{cache.Ships},
		{cache.Ships},              // dock to sell
		{cache.Agent, cache.Ships}, // sell SILICON_CRYSTALS
		{cache.Agent, cache.Ships}, // sell COPPER_ORE
	}
	if got := rec.invalidations(); !reflect.DeepEqual(got, wantInvalidations) {
		t.Errorf("invalidations\n got %v\nwant %v", got, wantInvalidations)
	}

	wantSleeps := []time.Duration{30 * time.Second, 70 * time.Second, 70 * time.Second, 70 * time.Second, 600 * time.Millisecond}
	if got := clk.Sleeps(); !reflect.DeepEqual(got, wantSleeps) {
		t.Errorf("sleeps = %v, want %v", got, wantSleeps)
	}

	if f.CallCount("negotiate-contract") != 0 {
		t.Error("negotiation should be skipped when a contract exists")
	}
	if res.RunID != "run-1" {
		t.Errorf("run id = %s", res.RunID)
	}
	if !res.Contract.Accepted || res.Contract.ID != apitest.ContractID {
		t.Errorf("unexpected contract %+v", res.Contract)
	}
	if res.Ship.Symbol != "BURG-2" {
		t.Errorf("ship = %s, want the purchased BURG-2", res.Ship.Symbol)
	}
	if res.Ship.Nav.Status != types.NavStatusDocked {
		t.Errorf("ship should end docked, got %s", res.Ship.Nav.Status)
	}
	if res.Asteroid.Symbol != apitest.AsteroidWP {
		t.Errorf("asteroid = %s", res.Asteroid.Symbol)
	}
	if res.Market == nil || res.Market.Symbol != apitest.AsteroidWP {
		t.Errorf("market = %+v", res.Market)
	}
	if len(res.Sales) != 2 || res.Sales[0].TradeSymbol != apitest.SpareGood || res.Sales[1].TradeSymbol != apitest.SatisfiedGood {
		t.Errorf("unexpected sales %+v", res.Sales)
	}
	if res.Cargo.Units != 8 || len(res.Cargo.Inventory) != 1 || res.Cargo.Inventory[0].Symbol != apitest.RequiredGood {
		t.Errorf("expected only 8 %s left, got %+v", apitest.RequiredGood, res.Cargo)
	}

	wantSteps := []string{
		"home_system:succeeded", "contract:succeeded", "ship:succeeded", "asteroid:succeeded",
		"navigation_start:succeeded", "navigation_finish:succeeded", "refuel:succeeded",
		"required_resources:succeeded", "extraction:succeeded", "market:succeeded",
		"docked:succeeded", "cargo_sold:succeeded",
	}
	if got := rec.stepNames(); !reflect.DeepEqual(got, wantSteps) {
		t.Errorf("audit\n got %v\nwant %v", got, wantSteps)
	}
}

func TestRunNegotiatesWhenNoContracts(t *testing.T) {
	f := apitest.NewWorld(start)
	f.ContractList = nil
	e, _, rec := newTestEngine(t, f)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.CallCount("negotiate-contract") != 1 || f.CallCount("accept-contract") != 1 {
		t.Errorf("expected negotiate then accept, got calls %v", f.Calls())
	}
	if !res.Contract.Accepted {
		t.Error("negotiated contract should be accepted")
	}
	inv := rec.invalidations()
	want := [][]string{{cache.Contracts}, {cache.Agent, cache.Contracts}}
	if len(inv) < 2 || !reflect.DeepEqual(inv[:2], want) {
		t.Errorf("first invalidations = %v, want %v", inv, want)
	}
}

func TestRunNegotiatesWhenEveryContractIsFulfilled(t *testing.T) {
	f := apitest.NewWorld(start)
	f.ContractList[0].Accepted = true
	f.ContractList[0].Fulfilled = true
	e, _, _ := newTestEngine(t, f)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.CallCount("negotiate-contract") != 1 {
		t.Errorf("expected a negotiation, got calls %v", f.Calls())
	}
	if res.Contract.ID == apitest.ContractID || !res.Contract.Accepted {
		t.Errorf("expected the negotiated contract to be accepted, got %+v", res.Contract)
	}
}

func TestRunFailsWhenNegotiationYieldsNoOpenContract(t *testing.T) {
	f := apitest.NewWorld(start)
	f.ContractList[0].Fulfilled = true
	f.NegotiateError = &api.Error{Operation: "negotiate-contract", StatusCode: 400, Code: 4511}
	e, _, _ := newTestEngine(t, f)

	if _, err := e.Run(context.Background()); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("got err %v, want %v", err, types.ErrNotFound)
	}
	if f.CallCount("purchase-ship") != 0 {
		t.Error("no ship should be bought without a contract")
	}
}

func TestRunReusesAcceptedContract(t *testing.T) {
	f := apitest.NewWorld(start)
	f.ContractList[0].Accepted = true
	e, _, _ := newTestEngine(t, f)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.CallCount("accept-contract") != 0 {
		t.Error("an accepted contract must not be accepted again")
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	f := apitest.NewWorld(start)
	delete(f.Shipyards, apitest.ShipyardWP)
	f.Shipyards[apitest.ShipyardWP] = types.Shipyard{Symbol: apitest.ShipyardWP}
	e, _, rec := newTestEngine(t, f)

	res, err := e.Run(context.Background())
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("got err %v, want %v", err, types.ErrNotFound)
	}
	if res.RunID != "run-1" {
		t.Errorf("failed run should still carry its id, got %q", res.RunID)
	}
	for _, op := range []string{"purchase-ship", "orbit", "navigate", "extract"} {
		if n := f.CallCount(op); n != 0 {
			t.Errorf("%s called %d times after the failure", op, n)
		}
	}
	want := []string{"home_system:succeeded", "contract:succeeded", "ship:failed"}
	if got := rec.stepNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("audit = %v, want %v", got, want)
	}
}

func TestRunNoAsteroid(t *testing.T) {
	f := apitest.NewWorld(start)
	f.SystemWaypoints[apitest.System] = f.SystemWaypoints[apitest.System][:2]
	e, _, _ := newTestEngine(t, f)

	if _, err := e.Run(context.Background()); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("got err %v, want %v", err, types.ErrNotFound)
	}
}

func TestRunToleratesMissingMarket(t *testing.T) {
	f := apitest.NewWorld(start)
	delete(f.Markets, apitest.AsteroidWP)
	e, _, _ := newTestEngine(t, f)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Market != nil {
		t.Errorf("expected no market, got %+v", res.Market)
	}
	if len(res.Sales) != 2 {
		t.Errorf("the run should carry on to the sales, got %d", len(res.Sales))
	}
}

func TestRunSellsEveryLineWhenNothingIsRequired(t *testing.T) {
	f := apitest.NewWorld(start)
	f.ContractList[0].Terms.Deliver = nil
	e, clk, _ := newTestEngine(t, f)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var sold []string
	for _, tx := range res.Sales {
		sold = append(sold, fmt.Sprintf("%s:%d", tx.TradeSymbol, tx.Units))
	}
	want := []string{apitest.RequiredGood + ":8", apitest.SpareGood + ":4", apitest.SatisfiedGood + ":3"}
	if !reflect.DeepEqual(sold, want) {
		t.Errorf("sales = %v, want %v", sold, want)
	}
	if res.Cargo.Units != 0 || len(res.Cargo.Inventory) != 0 {
		t.Errorf("expected an empty hold, got %+v", res.Cargo)
	}
	sleeps := clk.Sleeps()
	if got := sleeps[len(sleeps)-2:]; !reflect.DeepEqual(got, []time.Duration{600 * time.Millisecond, 600 * time.Millisecond}) {
		t.Errorf("sale delays = %v", got)
	}
}

func TestRunSkipsRefuelWithoutConsumption(t *testing.T) {
	f := apitest.NewWorld(start)
	f.FuelPerTrip = 0
	e, _, _ := newTestEngine(t, f)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := f.CallCount("refuel"); n != 0 {
		t.Errorf("refuel called %d times", n)
	}
}

func TestRunIsSerialized(t *testing.T) {
	f := apitest.NewWorld(start)
	e, _, _ := newTestEngine(t, f)

	// hold the slot as if another run were in progress
	e.sem <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got err %v, want %v", err, context.DeadlineExceeded)
	}
	if len(f.Calls()) != 0 {
		t.Errorf("a waiting run must not call the API, got %v", f.Calls())
	}
	<-e.sem
}

func TestRequiredResources(t *testing.T) {
	c := types.Contract{Terms: types.ContractTerms{Deliver: []types.ContractDeliverGood{
		{TradeSymbol: "IRON_ORE", UnitsRequired: 40, UnitsFulfilled: 0},
		{TradeSymbol: "COPPER_ORE", UnitsRequired: 10, UnitsFulfilled: 10},
		{TradeSymbol: "ALUMINUM_ORE", UnitsRequired: 10, UnitsFulfilled: 9},
		{TradeSymbol: "GOLD_ORE", UnitsRequired: 5, UnitsFulfilled: 7},
	}}}
	want := map[string]bool{"IRON_ORE": true, "ALUMINUM_ORE": true}
	if got := RequiredResources(c); !reflect.DeepEqual(got, want) {
		t.Errorf("RequiredResources = %v, want %v", got, want)
	}
	if got := RequiredResources(types.Contract{}); len(got) != 0 {
		t.Errorf("expected nothing required, got %v", got)
	}
}
