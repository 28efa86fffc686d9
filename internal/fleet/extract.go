package fleet

import (
	"context"
	"log/slog"

	"github.com/papaburgs/fluffy-miner/internal/metrics"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// ExtractUntilFull mines at wp until the ship's hold is full and returns the
// ship as last fetched. When wp has a marketplace, any yield whose trade
// symbol is not in required is sold straight away. Between extractions it
// waits out the cooldown reported by the extraction. Errors are not retried.
func (s *Service) ExtractUntilFull(ctx context.Context, ship types.Ship, required map[string]bool, wp types.Waypoint) (types.Ship, error) {
	l := slog.With("function", "ExtractUntilFull", "ship", ship.Symbol, "waypoint", wp.Symbol)
	sellHere := wp.HasTrait(types.TraitMarketplace)

	current := ship
	for i := 1; ; i++ {
		if current.Nav.Status != types.NavStatusInOrbit {
			nav, err := s.Orbit(ctx, ship.Symbol)
			if err != nil {
				return current, err
			}
			current.Nav = nav
		}

		res, err := s.Extract(ctx, ship.Symbol)
		if err != nil {
			return current, err
		}
		y := res.Extraction.Yield

		sold := false
		if sellHere && !required[y.Symbol] && y.Units > 0 {
			if _, err := s.Dock(ctx, ship.Symbol); err != nil {
				return current, err
			}
			if _, err := s.Sell(ctx, ship.Symbol, y.Symbol, y.Units); err != nil {
				return current, err
			}
			sold = true
		}
		metrics.RecordExtraction(y.Symbol, sold)

		next, err := s.Ship(ctx, ship.Symbol)
		if err != nil {
			return current, err
		}
		current = next
		l.Info("extracted", "iteration", i, "good", y.Symbol, "units", y.Units, "sold", sold,
			"cargo", current.Cargo.Units, "capacity", current.Cargo.Capacity)

		if current.Cargo.Full() {
			return current, nil
		}
		if err := s.clock.Sleep(ctx, res.Cooldown.Remaining()); err != nil {
			return current, err
		}
	}
}
