package apitest

import (
	"time"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

// Symbols used by NewWorld.
const (
	AgentSymbol   = "BURG"
	Faction       = "COSMIC"
	System        = "X1-HD80"
	Headquarters  = "X1-HD80-A1"
	ShipyardWP    = "X1-HD80-B2"
	AsteroidWP    = "X1-HD80-C3"
	CommandShip   = "BURG-1"
	ContractID    = "contract-1"
	RequiredGood  = "IRON_ORE"
	SatisfiedGood = "COPPER_ORE"
	SpareGood     = "SILICON_CRYSTALS"
)

// NewWorld returns a Fake holding a freshly registered agent: one docked
// command ship at headquarters, one unaccepted contract, one shipyard selling
// mining drones and one engineered asteroid without a marketplace.
func NewWorld(now time.Time) *Fake {
	f := New()
	f.Now = func() time.Time { return now }

	f.Agent = types.Agent{
		AccountID:       "acc-1",
		Symbol:          AgentSymbol,
		Headquarters:    Headquarters,
		Credits:         175000,
		StartingFaction: Faction,
		ShipCount:       1,
	}
	f.ContractList = []types.Contract{{
		ID:            ContractID,
		FactionSymbol: Faction,
		Type:          "PROCUREMENT",
		Terms: types.ContractTerms{
			Deadline: now.Add(7 * 24 * time.Hour),
			Payment:  types.ContractPayment{OnAccepted: 2000, OnFulfilled: 20000},
			Deliver: []types.ContractDeliverGood{
				{TradeSymbol: RequiredGood, DestinationSymbol: Headquarters, UnitsRequired: 40},
				{TradeSymbol: SatisfiedGood, DestinationSymbol: Headquarters, UnitsRequired: 10, UnitsFulfilled: 10},
			},
		},
		DeadlineToAccept: now.Add(24 * time.Hour),
	}}
	f.ShipList = []types.Ship{{
		Symbol:       CommandShip,
		Registration: types.ShipRegistration{Name: CommandShip, FactionSymbol: Faction, Role: "COMMAND"},
		Nav: types.ShipNav{
			SystemSymbol:   System,
			WaypointSymbol: Headquarters,
			Status:         types.NavStatusDocked,
			FlightMode:     "CRUISE",
		},
		Cargo: types.ShipCargo{Capacity: 40},
		Fuel:  types.ShipFuel{Current: 400, Capacity: 400},
	}}

	faction := &types.WaypointFaction{Symbol: Faction}
	f.SystemWaypoints[System] = []types.Waypoint{
		{
			Symbol: Headquarters, Type: "PLANET", SystemSymbol: System, Faction: faction,
			Traits: []types.WaypointTrait{{Symbol: types.TraitMarketplace}},
		},
		{
			Symbol: ShipyardWP, Type: "MOON", SystemSymbol: System, X: 10, Y: 4, Faction: faction,
			Traits: []types.WaypointTrait{{Symbol: types.TraitShipyard}, {Symbol: types.TraitMarketplace}},
		},
		{
			Symbol: AsteroidWP, Type: types.WaypointTypeEngineeredAsteroid, SystemSymbol: System, X: -20, Y: 7,
			Traits: []types.WaypointTrait{{Symbol: "COMMON_METAL_DEPOSITS"}},
		},
	}

	yard := types.Shipyard{
		Symbol: ShipyardWP,
		Ships:  []types.ShipyardShip{{Type: types.ShipTypeMiningDrone, Name: "Mining Drone", PurchasePrice: 50000}},
	}
	yard.ShipTypes = append(yard.ShipTypes, struct {
		Type string `json:"type"`
	}{Type: types.ShipTypeMiningDrone})
	f.Shipyards[ShipyardWP] = yard

	f.Markets[AsteroidWP] = types.Market{
		Symbol:  AsteroidWP,
		Imports: []types.TradeGood{{Symbol: "MACHINERY"}},
		Exports: []types.TradeGood{{Symbol: RequiredGood}},
	}

	f.Yields = []types.ExtractionYield{
		{Symbol: RequiredGood, Units: 6},
		{Symbol: SpareGood, Units: 4},
		{Symbol: SatisfiedGood, Units: 3},
	}
	return f
}
