// Package events turns cached game state into the UI's live event stream.
package events

import (
	"encoding/json"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

// Event is one of StatusEvent, AgentEvent, ContractEvent or ShipsEvent.
type Event interface {
	// Type is the discriminator written next to the payload.
	Type() string
}

type StatusEvent struct {
	Status string `json:"status"`
}

func (StatusEvent) Type() string { return "status" }

type AgentEvent struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Headquarters string `json:"headquarters"`
	Credits      int64  `json:"credits"`
	Faction      string `json:"faction"`
	ShipsCount   int    `json:"shipsCount"`
}

func (AgentEvent) Type() string { return "agent" }

type ContractEvent struct {
	ID                 string     `json:"id"`
	FactionSymbol      string     `json:"factionSymbol"`
	ContractType       string     `json:"type"`
	Deadline           time.Time  `json:"deadline"`
	PaymentOnAccepted  int        `json:"paymentOnAccepted"`
	PaymentOnFulfilled int        `json:"paymentOnFulfilled"`
	Delivery           []Delivery `json:"delivery"`
	IsAccepted         bool       `json:"isAccepted"`
	IsFulfilled        bool       `json:"isFulfilled"`
	Expiration         time.Time  `json:"expiration"`
	DeadlineToAccept   time.Time  `json:"deadlineToAccept"`
}

func (ContractEvent) Type() string { return "contract" }

type Delivery struct {
	TradeSymbol       string `json:"tradeSymbol"`
	DestinationSymbol string `json:"destinationSymbol"`
	UnitsRequired     int    `json:"unitsRequired"`
	UnitsFulfilled    int    `json:"unitsFulfilled"`
}

type ShipsEvent struct {
	Ships []ShipSummary `json:"ships"`
}

func (ShipsEvent) Type() string { return "ships" }

type ShipSummary struct {
	Symbol             string     `json:"symbol"`
	Role               string     `json:"role"`
	WaypointSymbol     string     `json:"waypointSymbol"`
	Status             string     `json:"status"`
	Crew               int        `json:"crew"`
	Frame              string     `json:"frame"`
	Reactor            string     `json:"reactor"`
	Engine             string     `json:"engine"`
	Modules            []string   `json:"modules"`
	Mounts             []string   `json:"mounts"`
	CargoCapacity      int        `json:"cargoCapacity"`
	CargoStored        int        `json:"cargoStored"`
	Inventory          []string   `json:"inventory"`
	FuelCapacity       int        `json:"fuelCapacity"`
	FuelCurrent        int        `json:"fuelCurrent"`
	CooldownTotal      int        `json:"cooldownTotal"`
	CooldownRemaining  int        `json:"cooldownRemaining"`
	CooldownExpiration *time.Time `json:"cooldownExpiration,omitempty"`
}

func NewStatusEvent(s types.ServerStatus) StatusEvent {
	return StatusEvent{Status: s.Status}
}

func NewAgentEvent(a types.Agent) AgentEvent {
	return AgentEvent{
		ID:           a.AccountID,
		Symbol:       a.Symbol,
		Headquarters: a.Headquarters,
		Credits:      a.Credits,
		Faction:      a.StartingFaction,
		ShipsCount:   a.ShipCount,
	}
}

func NewContractEvent(c types.Contract) ContractEvent {
	ev := ContractEvent{
		ID:                 c.ID,
		FactionSymbol:      c.FactionSymbol,
		ContractType:       c.Type,
		Deadline:           c.Terms.Deadline,
		PaymentOnAccepted:  c.Terms.Payment.OnAccepted,
		PaymentOnFulfilled: c.Terms.Payment.OnFulfilled,
		Delivery:           make([]Delivery, 0, len(c.Terms.Deliver)),
		IsAccepted:         c.Accepted,
		IsFulfilled:        c.Fulfilled,
		Expiration:         c.Expiration,
		DeadlineToAccept:   c.DeadlineToAccept,
	}
	for _, d := range c.Terms.Deliver {
		ev.Delivery = append(ev.Delivery, Delivery(d))
	}
	return ev
}

func NewShipsEvent(ships []types.Ship) ShipsEvent {
	ev := ShipsEvent{Ships: make([]ShipSummary, 0, len(ships))}
	for _, s := range ships {
		sum := ShipSummary{
			Symbol:             s.Symbol,
			Role:               s.Registration.Role,
			WaypointSymbol:     s.Nav.WaypointSymbol,
			Status:             s.Nav.Status,
			Crew:               s.Crew.Current,
			Frame:              s.Frame.Name,
			Reactor:            s.Reactor.Name,
			Engine:             s.Engine.Name,
			Modules:            names(s.Modules),
			Mounts:             names(s.Mounts),
			CargoCapacity:      s.Cargo.Capacity,
			CargoStored:        s.Cargo.Units,
			Inventory:          make([]string, 0, len(s.Cargo.Inventory)),
			FuelCapacity:       s.Fuel.Capacity,
			FuelCurrent:        s.Fuel.Current,
			CooldownTotal:      s.Cooldown.TotalSeconds,
			CooldownRemaining:  s.Cooldown.RemainingSeconds,
			CooldownExpiration: s.Cooldown.Expiration,
		}
		for _, item := range s.Cargo.Inventory {
			sum.Inventory = append(sum.Inventory, item.Symbol)
		}
		ev.Ships = append(ev.Ships, sum)
	}
	return ev
}

func names(cs []types.ShipComponent) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

type envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Marshal writes ev as {"type": ..., "data": ...}.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(envelope{Type: ev.Type(), Data: ev})
}
