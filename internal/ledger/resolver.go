// Package ledger implements the derived computations over the append-only
// snapshot ledger: point-in-time resolution, cross-location/cross-ingredient
// aggregation, and monthly trend classification. Everything here is pure and
// storage-engine independent; callers fetch raw events from the repository
// and hand them in.
package ledger

import (
	"time"

	"barledger/backend/internal/domain"
)

// PairKey identifies one (ingredient, location) ledger partition.
type PairKey struct {
	IngredientID string
	LocationID   string
}

// ResolveAt returns the most recent snapshot per (ingredient, location) pair
// among events with SubmittedAt at or before cutoff. Ties on identical
// timestamps are broken by the larger Seq (insertion order), so the result is
// always exactly one row per pair. Pairs with no event at or before the
// cutoff are absent from the result, never zero-filled.
func ResolveAt(events []domain.InventorySnapshot, cutoff time.Time) map[PairKey]domain.InventorySnapshot {
	resolved := make(map[PairKey]domain.InventorySnapshot)
	for _, event := range events {
		if event.SubmittedAt.After(cutoff) {
			continue
		}
		key := PairKey{IngredientID: event.IngredientID, LocationID: event.LocationID}
		current, exists := resolved[key]
		if !exists || wins(event, current) {
			resolved[key] = event
		}
	}
	return resolved
}

func wins(candidate, current domain.InventorySnapshot) bool {
	if candidate.SubmittedAt.After(current.SubmittedAt) {
		return true
	}
	if candidate.SubmittedAt.Equal(current.SubmittedAt) {
		return candidate.Seq > current.Seq
	}
	return false
}
