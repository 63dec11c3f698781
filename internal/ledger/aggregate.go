package ledger

import (
	"github.com/shopspring/decimal"

	"barledger/backend/internal/domain"
)

// Totals accumulates exact quantity and monetary sums. All arithmetic stays
// in decimal so monetary aggregation never picks up float error.
type Totals struct {
	Quantity decimal.Decimal
	Value    decimal.Decimal
	Rows     int
}

func (t Totals) add(s domain.InventorySnapshot) Totals {
	return Totals{
		Quantity: t.Quantity.Add(s.Quantity),
		Value:    t.Value.Add(s.TotalValue),
		Rows:     t.Rows + 1,
	}
}

// SumByIngredient sums resolved rows across locations, one entry per
// ingredient that has at least one resolved row.
func SumByIngredient(resolved map[PairKey]domain.InventorySnapshot) map[string]Totals {
	sums := make(map[string]Totals)
	for key, snapshot := range resolved {
		sums[key.IngredientID] = sums[key.IngredientID].add(snapshot)
	}
	return sums
}

// SumByLocation sums resolved rows across ingredients, one entry per location
// that has at least one resolved row.
func SumByLocation(resolved map[PairKey]domain.InventorySnapshot) map[string]Totals {
	sums := make(map[string]Totals)
	for key, snapshot := range resolved {
		sums[key.LocationID] = sums[key.LocationID].add(snapshot)
	}
	return sums
}

// GrandTotal sums every resolved row.
func GrandTotal(resolved map[PairKey]domain.InventorySnapshot) Totals {
	var total Totals
	for _, snapshot := range resolved {
		total = total.add(snapshot)
	}
	return total
}
