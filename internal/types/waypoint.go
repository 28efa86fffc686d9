package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidWaypointSymbol is returned when a symbol is not SECTOR-SYSTEM-WAYPOINT.
	ErrInvalidWaypointSymbol = errors.New("invalid waypoint symbol")
	// ErrNoDockedShip is returned when no docked ship is found within a faction.
	ErrNoDockedShip = errors.New("no docked ship")
	// ErrNotFound is returned when a lookup that must yield something yields nothing.
	ErrNotFound = errors.New("not found")
)

// WaypointSymbol is the decomposed form of a symbol like X1-HD80-H48.
type WaypointSymbol struct {
	Sector   string // X1
	System   string // X1-HD80
	Waypoint string // X1-HD80-H48
}

// ParseWaypointSymbol splits s on '-' into exactly three non-empty segments.
func ParseWaypointSymbol(s string) (WaypointSymbol, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return WaypointSymbol{}, fmt.Errorf("%w: %q", ErrInvalidWaypointSymbol, s)
	}
	for _, p := range parts {
		if p == "" {
			return WaypointSymbol{}, fmt.Errorf("%w: %q", ErrInvalidWaypointSymbol, s)
		}
	}
	system := parts[0] + "-" + parts[1]
	return WaypointSymbol{
		Sector:   parts[0],
		System:   system,
		Waypoint: system + "-" + parts[2],
	}, nil
}

func (w WaypointSymbol) String() string {
	return w.Waypoint
}
