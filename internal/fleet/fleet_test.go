package fleet

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/api/apitest"
	"github.com/papaburgs/fluffy-miner/internal/cache"
	"github.com/papaburgs/fluffy-miner/internal/clock"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type invalidations struct {
	mu  sync.Mutex
	got [][]string
}

func (i *invalidations) hook(names []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.got = append(i.got, names)
}

func (i *invalidations) list() [][]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.got
}

func newTestService(t *testing.T, f *apitest.Fake) (*Service, *clock.FakeClock, *invalidations) {
	t.Helper()
	inv := &invalidations{}
	clk := clock.NewFakeClock(start)
	return New(f, cache.New(cache.WithInvalidationHook(inv.hook)), clk), clk, inv
}

// addDrone puts a mining drone in orbit at the asteroid.
func addDrone(f *apitest.Fake, capacity int) types.Ship {
	s := types.Ship{
		Symbol: "BURG-2",
		Nav: types.ShipNav{
			SystemSymbol:   apitest.System,
			WaypointSymbol: apitest.AsteroidWP,
			Status:         types.NavStatusInOrbit,
		},
		Cargo: types.ShipCargo{Capacity: capacity},
		Fuel:  types.ShipFuel{Current: 80, Capacity: 80},
	}
	f.ShipList = append(f.ShipList, s)
	return s
}

func asteroid(traits ...string) types.Waypoint {
	wp := types.Waypoint{Symbol: apitest.AsteroidWP, SystemSymbol: apitest.System, Type: types.WaypointTypeEngineeredAsteroid}
	for _, t := range traits {
		wp.Traits = append(wp.Traits, types.WaypointTrait{Symbol: t})
	}
	return wp
}

func TestExtractUntilFullStopsExactlyAtCapacity(t *testing.T) {
	tests := []struct {
		name         string
		capacity     int
		wantExtracts int
		wantUnits    int
	}{
		{"fills exactly", 15, 3, 15},
		{"last yield capped", 14, 3, 14},
		{"one more than a multiple", 16, 4, 16},
		{"single extraction", 5, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := apitest.NewWorld(start)
			f.Yields = []types.ExtractionYield{{Symbol: apitest.RequiredGood, Units: 5}}
			drone := addDrone(f, tt.capacity)
			s, clk, _ := newTestService(t, f)

			got, err := s.ExtractUntilFull(context.Background(), drone, map[string]bool{apitest.RequiredGood: true}, asteroid())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n := f.CallCount("extract"); n != tt.wantExtracts {
				t.Errorf("extract called %d times, want %d", n, tt.wantExtracts)
			}
			if got.Cargo.Units != tt.wantUnits {
				t.Errorf("cargo units = %d, want %d", got.Cargo.Units, tt.wantUnits)
			}
			// no wait after the hold is full
			if n := len(clk.Sleeps()); n != tt.wantExtracts-1 {
				t.Errorf("slept %d times, want %d", n, tt.wantExtracts-1)
			}
			for _, d := range clk.Sleeps() {
				if d != 70*time.Second {
					t.Errorf("slept %v, want the 70s cooldown", d)
				}
			}
			if n := f.CallCount("orbit"); n != 0 {
				t.Errorf("ship was already in orbit, orbit called %d times", n)
			}
		})
	}
}

func TestExtractUntilFullSellsSpareYieldAtMarketplace(t *testing.T) {
	f := apitest.NewWorld(start)
	f.Yields = []types.ExtractionYield{
		{Symbol: apitest.RequiredGood, Units: 6},
		{Symbol: apitest.SpareGood, Units: 4},
	}
	drone := addDrone(f, 12)
	s, _, _ := newTestService(t, f)
	credits := f.Agent.Credits

	got, err := s.ExtractUntilFull(context.Background(), drone, map[string]bool{apitest.RequiredGood: true}, asteroid(types.TraitMarketplace))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.CallCount("sell") != 1 {
		t.Errorf("expected one sale, got %d", f.CallCount("sell"))
	}
	if f.CallCount("dock") != 1 || f.CallCount("orbit") != 1 {
		t.Errorf("expected dock before the sale and orbit after it, got dock=%d orbit=%d",
			f.CallCount("dock"), f.CallCount("orbit"))
	}
	if len(got.Cargo.Inventory) != 1 || got.Cargo.Inventory[0].Symbol != apitest.RequiredGood {
		t.Errorf("expected only %s left in the hold, got %+v", apitest.RequiredGood, got.Cargo.Inventory)
	}
	if got.Cargo.Units != 12 {
		t.Errorf("cargo units = %d, want 12", got.Cargo.Units)
	}
	if f.Agent.Credits != credits+40 {
		t.Errorf("credits = %d, want %d", f.Agent.Credits, credits+40)
	}
}

func TestExtractUntilFullKeepsSpareYieldWithoutMarketplace(t *testing.T) {
	f := apitest.NewWorld(start)
	drone := addDrone(f, 13)
	s, _, _ := newTestService(t, f)

	got, err := s.ExtractUntilFull(context.Background(), drone, map[string]bool{apitest.RequiredGood: true}, asteroid())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.CallCount("sell") != 0 {
		t.Errorf("nothing should be sold without a marketplace, got %d sales", f.CallCount("sell"))
	}
	if len(got.Cargo.Inventory) != 3 {
		t.Errorf("expected every yield kept, got %+v", got.Cargo.Inventory)
	}
}

func TestExtractUntilFullAbortsOnError(t *testing.T) {
	f := apitest.NewWorld(start)
	boom := errors.New("boom")
	f.Errors["extract"] = boom
	drone := addDrone(f, 15)
	s, clk, _ := newTestService(t, f)

	_, err := s.ExtractUntilFull(context.Background(), drone, nil, asteroid())
	if !errors.Is(err, boom) {
		t.Fatalf("got err %v, want %v", err, boom)
	}
	if f.CallCount("extract") != 1 {
		t.Errorf("errors must not be retried, extract called %d times", f.CallCount("extract"))
	}
	if len(clk.Sleeps()) != 0 {
		t.Errorf("expected no waiting, got %v", clk.Sleeps())
	}
}

func TestPurchaseInvalidatesAgentAndShips(t *testing.T) {
	f := apitest.NewWorld(start)
	s, _, inv := newTestService(t, f)
	ctx := context.Background()

	before, err := s.Ships(ctx)
	if err != nil {
		t.Fatalf("ships: %v", err)
	}
	if len(before) != 1 {
		t.Fatalf("expected 1 ship, got %d", len(before))
	}

	bought, err := s.Purchase(ctx, types.ShipTypeMiningDrone, apitest.ShipyardWP)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if want := [][]string{{cache.Agent, cache.Ships}}; !reflect.DeepEqual(inv.list(), want) {
		t.Errorf("invalidations = %v, want %v", inv.list(), want)
	}

	after, err := s.Ships(ctx)
	if err != nil {
		t.Fatalf("ships: %v", err)
	}
	if len(after) != 2 || after[1].Symbol != bought.Symbol {
		t.Errorf("expected the new ship %s in the listing, got %+v", bought.Symbol, after)
	}
	if f.CallCount("ships") != 2 {
		t.Errorf("expected the listing to be fetched again, got %d fetches", f.CallCount("ships"))
	}
}

func TestShipsIsCached(t *testing.T) {
	f := apitest.NewWorld(start)
	s, _, _ := newTestService(t, f)
	for i := 0; i < 3; i++ {
		if _, err := s.Ships(context.Background()); err != nil {
			t.Fatalf("ships: %v", err)
		}
	}
	if f.CallCount("ships") != 1 {
		t.Errorf("expected one fetch, got %d", f.CallCount("ships"))
	}
}

func TestNavigation(t *testing.T) {
	f := apitest.NewWorld(start)
	f.FlightTime = 42 * time.Second
	s, clk, inv := newTestService(t, f)
	ctx := context.Background()

	res, err := s.StartNavigation(ctx, apitest.CommandShip, apitest.AsteroidWP)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Nav.Status != types.NavStatusInTransit {
		t.Errorf("status = %s, want %s", res.Nav.Status, types.NavStatusInTransit)
	}
	if res.Fuel.Consumed.Amount != f.FuelPerTrip {
		t.Errorf("fuel consumed = %d, want %d", res.Fuel.Consumed.Amount, f.FuelPerTrip)
	}

	nav, err := s.FinishNavigation(ctx, apitest.CommandShip, res.Nav)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if nav.Status != types.NavStatusDocked || nav.WaypointSymbol != apitest.AsteroidWP {
		t.Errorf("unexpected nav after arrival: %+v", nav)
	}
	if want := []time.Duration{42 * time.Second}; !reflect.DeepEqual(clk.Sleeps(), want) {
		t.Errorf("sleeps = %v, want %v", clk.Sleeps(), want)
	}
	want := [][]string{{cache.Ships}, {cache.Ships}, {cache.Ships}}
	if !reflect.DeepEqual(inv.list(), want) {
		t.Errorf("invalidations = %v, want %v", inv.list(), want)
	}
	if got := f.Calls(); !reflect.DeepEqual(got, []string{"orbit", "navigate", "dock"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestFinishNavigationFloorsNegativeFlight(t *testing.T) {
	f := apitest.NewWorld(start)
	s, clk, _ := newTestService(t, f)
	nav := types.ShipNav{Route: types.ShipNavRoute{DepartureTime: start, Arrival: start.Add(-time.Minute)}}

	if _, err := s.FinishNavigation(context.Background(), apitest.CommandShip, nav); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if want := []time.Duration{0}; !reflect.DeepEqual(clk.Sleeps(), want) {
		t.Errorf("sleeps = %v, want %v", clk.Sleeps(), want)
	}
}

func TestFailedMutationKeepsCache(t *testing.T) {
	f := apitest.NewWorld(start)
	f.Errors["refuel"] = errors.New("no fuel for sale")
	s, _, inv := newTestService(t, f)

	if _, err := s.Refuel(context.Background(), apitest.CommandShip, 10); err == nil {
		t.Fatal("expected an error")
	}
	if len(inv.list()) != 0 {
		t.Errorf("expected no invalidation, got %v", inv.list())
	}
}
