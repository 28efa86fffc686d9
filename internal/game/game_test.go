package game

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
	"github.com/papaburgs/fluffy-miner/internal/fleet"
	"github.com/papaburgs/fluffy-miner/internal/systems"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memHistory struct {
	mu      sync.Mutex
	records []types.Agent
}

func (m *memHistory) RecordAgent(ctx context.Context, at time.Time, a types.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, a)
	return nil
}

type fixture struct {
	fake    *apitest.Fake
	cache   *cache.Cache
	svc     *Service
	history *memHistory
	mu      sync.Mutex
	inv     [][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{fake: apitest.NewWorld(start), history: &memHistory{}}
	fx.cache = cache.New(cache.WithInvalidationHook(func(names []string) {
		fx.mu.Lock()
		defer fx.mu.Unlock()
		fx.inv = append(fx.inv, names)
	}))
	ships := fleet.New(fx.fake, fx.cache, clock.NewFakeClock(start))
	wps := systems.New(fx.fake, fx.cache)
	fx.svc = New(fx.fake, fx.cache, ships, wps, fx.history)
	return fx
}

func (fx *fixture) invalidations() [][]string {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.inv
}

func TestStatusIsCached(t *testing.T) {
	fx := newFixture(t)
	for i := 0; i < 3; i++ {
		st, err := fx.svc.Status(context.Background())
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Status != fx.fake.StatusText {
			t.Errorf("status = %q", st.Status)
		}
	}
	if n := fx.fake.CallCount("status"); n != 1 {
		t.Errorf("expected one fetch, got %d", n)
	}
}

func TestAgentRecordsHistoryOnFreshFetch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.svc.Agent(ctx)
	fx.svc.Agent(ctx)
	if len(fx.history.records) != 1 {
		t.Fatalf("expected one snapshot from the cached agent, got %d", len(fx.history.records))
	}

	fx.cache.Invalidate(cache.Agent)
	a, err := fx.svc.Agent(ctx)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	if a.Symbol != apitest.AgentSymbol {
		t.Errorf("agent = %s", a.Symbol)
	}
	if len(fx.history.records) != 2 {
		t.Errorf("expected a second snapshot after invalidation, got %d", len(fx.history.records))
	}
}

func TestContractsFollowsPages(t *testing.T) {
	fx := newFixture(t)
	fx.fake.ContractList = nil
	for i := 0; i < 25; i++ {
		fx.fake.ContractList = append(fx.fake.ContractList, types.Contract{ID: fmt.Sprintf("c-%02d", i)})
	}

	got, err := fx.svc.Contracts(context.Background())
	if err != nil {
		t.Fatalf("contracts: %v", err)
	}
	if len(got) != 25 || got[0].ID != "c-00" || got[24].ID != "c-24" {
		t.Errorf("unexpected listing of %d contracts", len(got))
	}
	if n := fx.fake.CallCount("contracts"); n != 2 {
		t.Errorf("expected 2 page requests, got %d", n)
	}
}

func TestAcceptContract(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.svc.Contracts(ctx)

	c, err := fx.svc.AcceptContract(ctx, apitest.ContractID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !c.Accepted {
		t.Error("returned contract not accepted")
	}
	if want := [][]string{{cache.Agent, cache.Contracts}}; !reflect.DeepEqual(fx.invalidations(), want) {
		t.Errorf("invalidations = %v, want %v", fx.invalidations(), want)
	}
	list, _ := fx.svc.Contracts(ctx)
	if !list[0].Accepted {
		t.Error("contract list still shows the contract unaccepted")
	}
}

func TestNegotiateContract(t *testing.T) {
	fx := newFixture(t)
	fx.fake.ContractList = nil

	got, err := fx.svc.NegotiateContract(context.Background())
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the new contract in the list, got %d", len(got))
	}
	if n := fx.fake.CallCount("negotiate-contract"); n != 1 {
		t.Errorf("negotiate called %d times", n)
	}
	if want := [][]string{{cache.Contracts}}; !reflect.DeepEqual(fx.invalidations(), want) {
		t.Errorf("invalidations = %v, want %v", fx.invalidations(), want)
	}
}

func TestNegotiateContractToleratesRefusal(t *testing.T) {
	fx := newFixture(t)
	fx.fake.NegotiateError = &api.Error{Operation: "negotiate-contract", StatusCode: 400, Code: 4511, Message: "agent already has an active contract"}

	got, err := fx.svc.NegotiateContract(context.Background())
	if err != nil {
		t.Fatalf("expected the refusal to be tolerated, got %v", err)
	}
	if len(got) != 1 || got[0].ID != apitest.ContractID {
		t.Errorf("expected the existing contract list, got %+v", got)
	}
	if want := [][]string{{cache.Contracts}}; !reflect.DeepEqual(fx.invalidations(), want) {
		t.Errorf("invalidations = %v, want %v", fx.invalidations(), want)
	}
}

func TestNegotiateContractRefusalRefetchesContracts(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	server := fx.fake.ContractList
	fx.fake.ContractList = nil

	cached, err := fx.svc.Contracts(ctx)
	if err != nil || len(cached) != 0 {
		t.Fatalf("priming the cache: %v %v", cached, err)
	}

	// the server hands out a contract elsewhere, then refuses a second one
	fx.fake.ContractList = server
	fx.fake.NegotiateError = &api.Error{Operation: "negotiate-contract", StatusCode: 400, Code: 4511, Message: "agent already has an active contract"}

	got, err := fx.svc.NegotiateContract(ctx)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if len(got) != 1 || got[0].ID != apitest.ContractID {
		t.Errorf("expected the server's contract after the refusal, got %+v", got)
	}
	if n := fx.fake.CallCount("contracts"); n != 2 {
		t.Errorf("contracts fetched %d times, want 2", n)
	}
}

func TestNegotiateContractTransportErrorPropagates(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("connection reset")
	fx.fake.NegotiateError = boom

	if _, err := fx.svc.NegotiateContract(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got err %v, want %v", err, boom)
	}
}

func TestFindDockedShipWithinFaction(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *apitest.Fake)
		faction string
		want    string
		wantErr error
	}{
		{
			name:    "docked at faction waypoint",
			faction: apitest.Faction,
			want:    apitest.CommandShip,
		},
		{
			name:    "other faction",
			faction: "VOID",
			wantErr: types.ErrNoDockedShip,
		},
		{
			name:    "in orbit",
			mutate:  func(f *apitest.Fake) { f.ShipList[0].Nav.Status = types.NavStatusInOrbit },
			faction: apitest.Faction,
			wantErr: types.ErrNoDockedShip,
		},
		{
			name:    "waypoint without faction",
			mutate:  func(f *apitest.Fake) { f.ShipList[0].Nav.WaypointSymbol = apitest.AsteroidWP },
			faction: apitest.Faction,
			wantErr: types.ErrNoDockedShip,
		},
		{
			name:    "malformed waypoint",
			mutate:  func(f *apitest.Fake) { f.ShipList[0].Nav.WaypointSymbol = "nowhere" },
			faction: apitest.Faction,
			wantErr: types.ErrInvalidWaypointSymbol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			if tt.mutate != nil {
				tt.mutate(fx.fake)
			}
			got, err := fx.svc.FindDockedShipWithinFaction(context.Background(), tt.faction)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Symbol != tt.want {
				t.Errorf("got ship %s, want %s", got.Symbol, tt.want)
			}
		})
	}
}

func TestStartingLocation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		wp, err := fx.svc.StartingLocation(ctx)
		if err != nil {
			t.Fatalf("starting location: %v", err)
		}
		if wp.Symbol != apitest.Headquarters {
			t.Errorf("got %s, want %s", wp.Symbol, apitest.Headquarters)
		}
	}
	if n := fx.fake.CallCount("waypoint"); n != 1 {
		t.Errorf("expected the waypoint to be cached, fetched %d times", n)
	}
}

func TestStartingLocationBadHeadquarters(t *testing.T) {
	fx := newFixture(t)
	fx.fake.Agent.Headquarters = "X1-HD80"

	if _, err := fx.svc.StartingLocation(context.Background()); !errors.Is(err, types.ErrInvalidWaypointSymbol) {
		t.Fatalf("got err %v, want %v", err, types.ErrInvalidWaypointSymbol)
	}
}
