// Package reorder derives purchase suggestions by comparing resolved current
// quantities against each ingredient's par level. It consumes the resolver's
// output and never reads the ledger directly.
package reorder

import (
	"sort"

	"github.com/shopspring/decimal"

	"barledger/backend/internal/domain"
	"barledger/backend/internal/ledger"
)

type Engine struct {
	// includeNeverCounted controls whether ingredients without any ledger
	// event are suggested. A never-counted ingredient with a par level is
	// flagged rather than treated as zero stock, since "never counted" and
	// "counted as zero" are different situations for the person ordering.
	includeNeverCounted bool
}

func NewEngine(includeNeverCounted bool) *Engine {
	return &Engine{includeNeverCounted: includeNeverCounted}
}

// Suggest returns one suggestion per ingredient whose resolved quantity sits
// below its par level, most urgent first (largest deficit relative to par),
// ties broken by ingredient name then id.
func (e *Engine) Suggest(ingredients []domain.Ingredient, sums map[string]ledger.Totals) []domain.ReorderSuggestion {
	suggestions := make([]domain.ReorderSuggestion, 0, len(ingredients))

	for _, ing := range ingredients {
		if ing.ParLevel == nil || *ing.ParLevel < 1 {
			continue
		}
		par := decimal.NewFromInt(int64(*ing.ParLevel))

		totals, counted := sums[ing.ID]
		if !counted {
			if !e.includeNeverCounted {
				continue
			}
			suggestions = append(suggestions, domain.ReorderSuggestion{
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				SupplierID:     ing.SupplierID,
				CurrentQty:     decimal.Zero,
				ParLevel:       *ing.ParLevel,
				SuggestedQty:   suggestedQty(ing, par),
				NeverCounted:   true,
			})
			continue
		}

		if totals.Quantity.GreaterThanOrEqual(par) {
			continue
		}
		suggestions = append(suggestions, domain.ReorderSuggestion{
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			SupplierID:     ing.SupplierID,
			CurrentQty:     totals.Quantity,
			ParLevel:       *ing.ParLevel,
			SuggestedQty:   suggestedQtyFromDeficit(ing, par.Sub(totals.Quantity)),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		ui := urgency(suggestions[i])
		uj := urgency(suggestions[j])
		if !ui.Equal(uj) {
			return ui.GreaterThan(uj)
		}
		if suggestions[i].IngredientName != suggestions[j].IngredientName {
			return suggestions[i].IngredientName < suggestions[j].IngredientName
		}
		return suggestions[i].IngredientID < suggestions[j].IngredientID
	})

	return suggestions
}

// urgency is the deficit as a fraction of par.
func urgency(s domain.ReorderSuggestion) decimal.Decimal {
	par := decimal.NewFromInt(int64(s.ParLevel))
	return par.Sub(s.CurrentQty).Div(par)
}

func suggestedQty(ing domain.Ingredient, par decimal.Decimal) int {
	return suggestedQtyFromDeficit(ing, par)
}

// suggestedQtyFromDeficit prefers the catalog's default reorder quantity and
// falls back to the deficit rounded up to a whole unit.
func suggestedQtyFromDeficit(ing domain.Ingredient, deficit decimal.Decimal) int {
	if ing.DefaultReorderQty != nil && *ing.DefaultReorderQty > 0 {
		return *ing.DefaultReorderQty
	}
	return int(deficit.Ceil().IntPart())
}
