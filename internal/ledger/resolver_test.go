package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"barledger/backend/internal/domain"
)

func snap(seq int64, ingredientID, locationID string, qty, value string, at time.Time) domain.InventorySnapshot {
	return domain.InventorySnapshot{
		ID:           "snap-test",
		Seq:          seq,
		IngredientID: ingredientID,
		LocationID:   locationID,
		Quantity:     decimal.RequireFromString(qty),
		TotalValue:   decimal.RequireFromString(value),
		SubmittedAt:  at,
	}
}

func TestResolveAtPicksLatestPerPair(t *testing.T) {
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	events := []domain.InventorySnapshot{
		snap(1, "ing-i", "loc-a", "3", "30", base),
		snap(2, "ing-i", "loc-b", "2", "20", base),
	}

	resolved := ResolveAt(events, base.Add(time.Hour))
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved pairs, got %d", len(resolved))
	}

	sums := SumByIngredient(resolved)
	total := sums["ing-i"]
	if !total.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected quantity 5, got %s", total.Quantity)
	}
	if !total.Value.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected value 50, got %s", total.Value)
	}
}

func TestResolveAtCorrectionSupersedesEarlierCount(t *testing.T) {
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	events := []domain.InventorySnapshot{
		snap(1, "ing-i", "loc-a", "3", "30", base),
		snap(2, "ing-i", "loc-b", "2", "20", base),
		// Correction for location A an hour later.
		snap(3, "ing-i", "loc-a", "5", "50", base.Add(time.Hour)),
	}

	resolved := ResolveAt(events, base.Add(2*time.Hour))
	sums := SumByIngredient(resolved)
	total := sums["ing-i"]
	if !total.Quantity.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected corrected quantity 7, got %s", total.Quantity)
	}
	if !total.Value.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected corrected value 70, got %s", total.Value)
	}

	// Resolving before the correction must still see the original count.
	before := ResolveAt(events, base.Add(30*time.Minute))
	sumsBefore := SumByIngredient(before)
	totalBefore := sumsBefore["ing-i"]
	if !totalBefore.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected pre-correction quantity 5, got %s", totalBefore.Quantity)
	}
	if !totalBefore.Value.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected pre-correction value 50, got %s", totalBefore.Value)
	}
}

func TestResolveAtExcludesEventsAfterCutoff(t *testing.T) {
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	events := []domain.InventorySnapshot{
		snap(1, "ing-i", "loc-a", "3", "30", base),
		snap(2, "ing-i", "loc-a", "9", "90", base.Add(time.Hour)),
	}

	resolved := ResolveAt(events, base)
	winner, ok := resolved[PairKey{IngredientID: "ing-i", LocationID: "loc-a"}]
	if !ok {
		t.Fatalf("expected resolved pair for ing-i/loc-a")
	}
	if !winner.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected quantity 3 at cutoff, got %s", winner.Quantity)
	}
}

func TestResolveAtTieBrokenBySequence(t *testing.T) {
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	// Two events for the same pair with the same timestamp: the later
	// insertion (higher seq) wins regardless of slice order.
	events := []domain.InventorySnapshot{
		snap(7, "ing-i", "loc-a", "4", "40", at),
		snap(3, "ing-i", "loc-a", "1", "10", at),
	}

	resolved := ResolveAt(events, at)
	winner := resolved[PairKey{IngredientID: "ing-i", LocationID: "loc-a"}]
	if winner.Seq != 7 {
		t.Fatalf("expected seq 7 to win the tie, got %d", winner.Seq)
	}
	if !winner.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected quantity 4, got %s", winner.Quantity)
	}
}

func TestResolveAtEmptyEvents(t *testing.T) {
	resolved := ResolveAt(nil, time.Now().UTC())
	if len(resolved) != 0 {
		t.Fatalf("expected empty resolution, got %d pairs", len(resolved))
	}

	grand := GrandTotal(resolved)
	if !grand.Quantity.IsZero() || !grand.Value.IsZero() || grand.Rows != 0 {
		t.Fatalf("expected zero grand total, got %+v", grand)
	}
}

func TestSumByLocationKeepsPairsSeparate(t *testing.T) {
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	events := []domain.InventorySnapshot{
		snap(1, "ing-i", "loc-a", "3", "30", base),
		snap(2, "ing-j", "loc-a", "2", "20", base),
		snap(3, "ing-i", "loc-b", "1", "10", base),
	}

	sums := SumByLocation(ResolveAt(events, base))
	if len(sums) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(sums))
	}
	if !sums["loc-a"].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected loc-a quantity 5, got %s", sums["loc-a"].Quantity)
	}
	if sums["loc-a"].Rows != 2 {
		t.Fatalf("expected 2 rows for loc-a, got %d", sums["loc-a"].Rows)
	}
	if !sums["loc-b"].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected loc-b quantity 1, got %s", sums["loc-b"].Quantity)
	}
}
