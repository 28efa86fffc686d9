package types

import "time"

// Navigation states reported in ShipNav.Status.
const (
	NavStatusDocked    = "DOCKED"
	NavStatusInOrbit   = "IN_ORBIT"
	NavStatusInTransit = "IN_TRANSIT"
)

const (
	TraitMarketplace = "MARKETPLACE"
	TraitShipyard    = "SHIPYARD"

	WaypointTypeEngineeredAsteroid = "ENGINEERED_ASTEROID"

	ShipTypeMiningDrone = "SHIP_MINING_DRONE"
)

type Meta struct {
	Limit int `json:"limit"`
	Page  int `json:"page"`
	Total int `json:"total"`
}

type ServerStatus struct {
	// Status The current status of the game server.
	Status string `json:"status"`
	// Version The current version of the API.
	Version string `json:"version"`
	// ResetDate The date when the game server was last reset.
	ResetDate    string `json:"resetDate"`
	Description  string `json:"description"`
	ServerResets struct {
		Frequency string    `json:"frequency"`
		Next      time.Time `json:"next"`
	} `json:"serverResets"`
	Stats struct {
		Accounts  *int `json:"accounts,omitempty"`
		Agents    int  `json:"agents"`
		Ships     int  `json:"ships"`
		Systems   int  `json:"systems"`
		Waypoints int  `json:"waypoints"`
	} `json:"stats"`
}

type Agent struct {
	AccountID string `json:"accountId"`
	Symbol    string `json:"symbol"`
	// Headquarters The headquarters of the agent, a waypoint symbol.
	Headquarters string `json:"headquarters"`
	// Credits can be negative if funds have been overdrawn.
	Credits         int64  `json:"credits"`
	StartingFaction string `json:"startingFaction"`
	ShipCount       int    `json:"shipCount"`
}

type Contract struct {
	ID               string        `json:"id"`
	FactionSymbol    string        `json:"factionSymbol"`
	Type             string        `json:"type"`
	Terms            ContractTerms `json:"terms"`
	Accepted         bool          `json:"accepted"`
	Fulfilled        bool          `json:"fulfilled"`
	Expiration       time.Time     `json:"expiration"`
	DeadlineToAccept time.Time     `json:"deadlineToAccept"`
}

type ContractTerms struct {
	Deadline time.Time             `json:"deadline"`
	Payment  ContractPayment       `json:"payment"`
	Deliver  []ContractDeliverGood `json:"deliver"`
}

type ContractPayment struct {
	OnAccepted  int `json:"onAccepted"`
	OnFulfilled int `json:"onFulfilled"`
}

type ContractDeliverGood struct {
	TradeSymbol       string `json:"tradeSymbol"`
	DestinationSymbol string `json:"destinationSymbol"`
	UnitsRequired     int    `json:"unitsRequired"`
	UnitsFulfilled    int    `json:"unitsFulfilled"`
}

type Ship struct {
	Symbol       string           `json:"symbol"`
	Registration ShipRegistration `json:"registration"`
	Nav          ShipNav          `json:"nav"`
	Crew         ShipCrew         `json:"crew"`
	Frame        ShipComponent    `json:"frame"`
	Reactor      ShipComponent    `json:"reactor"`
	Engine       ShipComponent    `json:"engine"`
	Modules      []ShipComponent  `json:"modules"`
	Mounts       []ShipComponent  `json:"mounts"`
	Cargo        ShipCargo        `json:"cargo"`
	Fuel         ShipFuel         `json:"fuel"`
	Cooldown     Cooldown         `json:"cooldown"`
}

type ShipRegistration struct {
	Name          string `json:"name"`
	FactionSymbol string `json:"factionSymbol"`
	Role          string `json:"role"`
}

type ShipCrew struct {
	Current  int `json:"current"`
	Capacity int `json:"capacity"`
}

// ShipComponent covers frames, reactors, engines, modules and mounts; only
// the identifying fields are kept.
type ShipComponent struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type ShipNav struct {
	SystemSymbol   string       `json:"systemSymbol"`
	WaypointSymbol string       `json:"waypointSymbol"`
	Route          ShipNavRoute `json:"route"`
	Status         string       `json:"status"`
	FlightMode     string       `json:"flightMode"`
}

type ShipNavRoute struct {
	Origin        RouteWaypoint `json:"origin"`
	Destination   RouteWaypoint `json:"destination"`
	DepartureTime time.Time     `json:"departureTime"`
	Arrival       time.Time     `json:"arrival"`
}

// FlightDuration is the time between departure and arrival, floored at zero.
func (r ShipNavRoute) FlightDuration() time.Duration {
	d := r.Arrival.Sub(r.DepartureTime)
	if d < 0 {
		return 0
	}
	return d
}

type RouteWaypoint struct {
	Symbol       string `json:"symbol"`
	Type         string `json:"type"`
	SystemSymbol string `json:"systemSymbol"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

type ShipCargo struct {
	Capacity  int             `json:"capacity"`
	Units     int             `json:"units"`
	Inventory []ShipCargoItem `json:"inventory"`
}

// Full reports whether no more units fit in the hold.
func (c ShipCargo) Full() bool {
	return c.Units >= c.Capacity
}

type ShipCargoItem struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Units       int    `json:"units"`
}

type ShipFuel struct {
	Current  int          `json:"current"`
	Capacity int          `json:"capacity"`
	Consumed FuelConsumed `json:"consumed"`
}

type FuelConsumed struct {
	Amount    int       `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type Cooldown struct {
	ShipSymbol       string     `json:"shipSymbol"`
	TotalSeconds     int        `json:"totalSeconds"`
	RemainingSeconds int        `json:"remainingSeconds"`
	Expiration       *time.Time `json:"expiration,omitempty"`
}

// Remaining converts RemainingSeconds into a duration.
func (c Cooldown) Remaining() time.Duration {
	return time.Duration(c.RemainingSeconds) * time.Second
}

type Waypoint struct {
	Symbol       string           `json:"symbol"`
	Type         string           `json:"type"`
	SystemSymbol string           `json:"systemSymbol"`
	X            int              `json:"x"`
	Y            int              `json:"y"`
	Traits       []WaypointTrait  `json:"traits"`
	Faction      *WaypointFaction `json:"faction,omitempty"`
}

// HasTrait reports whether the waypoint carries the trait symbol.
func (w Waypoint) HasTrait(symbol string) bool {
	for _, t := range w.Traits {
		if t.Symbol == symbol {
			return true
		}
	}
	return false
}

type WaypointTrait struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type WaypointFaction struct {
	Symbol string `json:"symbol"`
}

type Shipyard struct {
	Symbol    string `json:"symbol"`
	ShipTypes []struct {
		Type string `json:"type"`
	} `json:"shipTypes"`
	Ships []ShipyardShip `json:"ships"`
}

// Offers reports whether shipType is listed among the yard's ship types.
func (s Shipyard) Offers(shipType string) bool {
	for _, t := range s.ShipTypes {
		if t.Type == shipType {
			return true
		}
	}
	for _, sh := range s.Ships {
		if sh.Type == shipType {
			return true
		}
	}
	return false
}

type ShipyardShip struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	PurchasePrice int    `json:"purchasePrice"`
}

type Market struct {
	Symbol     string            `json:"symbol"`
	Exports    []TradeGood       `json:"exports"`
	Imports    []TradeGood       `json:"imports"`
	Exchange   []TradeGood       `json:"exchange"`
	TradeGoods []MarketTradeGood `json:"tradeGoods,omitempty"`
}

type TradeGood struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type MarketTradeGood struct {
	Symbol        string `json:"symbol"`
	Type          string `json:"type"`
	TradeVolume   int    `json:"tradeVolume"`
	Supply        string `json:"supply"`
	PurchasePrice int    `json:"purchasePrice"`
	SellPrice     int    `json:"sellPrice"`
}

type MarketTransaction struct {
	WaypointSymbol string    `json:"waypointSymbol"`
	ShipSymbol     string    `json:"shipSymbol"`
	TradeSymbol    string    `json:"tradeSymbol"`
	Type           string    `json:"type"`
	Units          int       `json:"units"`
	PricePerUnit   int       `json:"pricePerUnit"`
	TotalPrice     int       `json:"totalPrice"`
	Timestamp      time.Time `json:"timestamp"`
}

type ExtractionYield struct {
	Symbol string `json:"symbol"`
	Units  int    `json:"units"`
}

type Extraction struct {
	ShipSymbol string          `json:"shipSymbol"`
	Yield      ExtractionYield `json:"yield"`
}

// Response payloads of the mutating fleet and contract calls.

type ExtractResult struct {
	Cooldown   Cooldown   `json:"cooldown"`
	Extraction Extraction `json:"extraction"`
	Cargo      ShipCargo  `json:"cargo"`
}

type NavigateResult struct {
	Fuel ShipFuel `json:"fuel"`
	Nav  ShipNav  `json:"nav"`
}

type RefuelResult struct {
	Agent       Agent             `json:"agent"`
	Fuel        ShipFuel          `json:"fuel"`
	Transaction MarketTransaction `json:"transaction"`
}

type SellResult struct {
	Agent       Agent             `json:"agent"`
	Cargo       ShipCargo         `json:"cargo"`
	Transaction MarketTransaction `json:"transaction"`
}

type PurchaseShipResult struct {
	Agent       Agent `json:"agent"`
	Ship        Ship  `json:"ship"`
	Transaction struct {
		ShipSymbol     string    `json:"shipSymbol"`
		ShipType       string    `json:"shipType"`
		WaypointSymbol string    `json:"waypointSymbol"`
		Price          int       `json:"price"`
		Timestamp      time.Time `json:"timestamp"`
	} `json:"transaction"`
}

type AcceptContractResult struct {
	Agent    Agent    `json:"agent"`
	Contract Contract `json:"contract"`
}

// AgentRecord stores a snapshot of an agent's credits and fleet size.
type AgentRecord struct {
	Timestamp time.Time
	ShipCount int
	Credits   int64
}
