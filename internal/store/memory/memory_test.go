package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"barledger/backend/internal/domain"
	"barledger/backend/internal/store"
)

func testSnapshot(ingredientID, locationID, qty, value string, at time.Time) domain.InventorySnapshot {
	return domain.InventorySnapshot{
		IngredientID: ingredientID,
		LocationID:   locationID,
		Quantity:     decimal.RequireFromString(qty),
		TotalValue:   decimal.RequireFromString(value),
		SubmittedAt:  at,
	}
}

func TestAppendSnapshotsAssignsIDsAndSequence(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	stored, err := repo.AppendSnapshots(ctx, []domain.InventorySnapshot{
		testSnapshot("ing-hendricks-gin", "loc-bar", "3", "137.97", at),
		testSnapshot("ing-hendricks-gin", "loc-cabinet", "2", "91.98", at),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored snapshots, got %d", len(stored))
	}
	if stored[0].ID == "" || stored[1].ID == "" {
		t.Fatalf("expected assigned ids")
	}
	if stored[1].Seq <= stored[0].Seq {
		t.Fatalf("expected monotonic sequence, got %d then %d", stored[0].Seq, stored[1].Seq)
	}
}

func TestAppendSnapshotsRejectsWholeBatchOnOneBadTuple(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, err := repo.AppendSnapshots(ctx, []domain.InventorySnapshot{
		testSnapshot("ing-hendricks-gin", "loc-bar", "3", "137.97", at),
		testSnapshot("ing-hendricks-gin", "loc-cabinet", "-1", "0", at),
	})
	if err == nil {
		t.Fatalf("expected batch to fail")
	}

	var batchErr *domain.BatchValidationError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchValidationError, got %T: %v", err, err)
	}
	if batchErr.Index != 1 || batchErr.Field != "quantity" {
		t.Fatalf("expected tuple 1 quantity error, got %+v", batchErr)
	}

	// Nothing from the batch may have been written.
	events, err := repo.ListSnapshots(ctx, domain.SnapshotFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty ledger after failed batch, got %d events", len(events))
	}
}

func TestAppendSnapshotsRejectsUnknownReferences(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, err := repo.AppendSnapshots(ctx, []domain.InventorySnapshot{
		testSnapshot("ing-does-not-exist", "loc-bar", "1", "10", at),
	})
	if err == nil {
		t.Fatalf("expected unknown ingredient to fail")
	}

	_, err = repo.AppendSnapshots(ctx, []domain.InventorySnapshot{
		testSnapshot("ing-hendricks-gin", "loc-does-not-exist", "1", "10", at),
	})
	if err == nil {
		t.Fatalf("expected unknown location to fail")
	}
}

func TestListSnapshotsNewestFirstWithFilters(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, err := repo.AppendSnapshots(ctx, []domain.InventorySnapshot{
		testSnapshot("ing-hendricks-gin", "loc-bar", "3", "137.97", base),
		testSnapshot("ing-titos-vodka", "loc-bar", "5", "144.95", base.Add(time.Hour)),
		testSnapshot("ing-hendricks-gin", "loc-cabinet", "2", "91.98", base.Add(2*time.Hour)),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := repo.ListSnapshots(ctx, domain.SnapshotFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if !events[0].SubmittedAt.After(events[1].SubmittedAt) || !events[1].SubmittedAt.After(events[2].SubmittedAt) {
		t.Fatalf("expected newest-first ordering")
	}

	ginOnly, err := repo.ListSnapshots(ctx, domain.SnapshotFilter{IngredientID: "ing-hendricks-gin"})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(ginOnly) != 2 {
		t.Fatalf("expected 2 gin events, got %d", len(ginOnly))
	}

	limited, err := repo.ListSnapshots(ctx, domain.SnapshotFilter{Limit: 1})
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 event with limit, got %d", len(limited))
	}

	windowed, err := repo.ListSnapshots(ctx, domain.SnapshotFilter{To: base})
	if err != nil {
		t.Fatalf("windowed list failed: %v", err)
	}
	if len(windowed) != 1 {
		t.Fatalf("expected 1 event at or before base, got %d", len(windowed))
	}
}

func TestDeleteIngredientCascadesSnapshots(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, err := repo.AppendSnapshots(ctx, []domain.InventorySnapshot{
		testSnapshot("ing-hendricks-gin", "loc-bar", "3", "137.97", at),
		testSnapshot("ing-titos-vodka", "loc-bar", "5", "144.95", at),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := repo.DeleteIngredient(ctx, "ing-hendricks-gin"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	events, err := repo.ListSnapshots(ctx, domain.SnapshotFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 1 || events[0].IngredientID != "ing-titos-vodka" {
		t.Fatalf("expected only vodka events to survive, got %+v", events)
	}

	if _, err := repo.GetIngredientByID(ctx, "ing-hendricks-gin"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestIngredientCRUDRoundTrip(t *testing.T) {
	repo := New()
	ctx := context.Background()
	now := time.Now().UTC()

	supplier, err := repo.CreateSupplier(ctx, domain.Supplier{ID: "sup-test", Name: "Test Supplier", CreatedAt: now})
	if err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}

	par := 4
	created, err := repo.CreateIngredient(ctx, domain.Ingredient{
		ID:           "ing-test",
		Name:         "Test Gin",
		Category:     "Gin",
		CurrentPrice: decimal.RequireFromString("39.99"),
		ParLevel:     &par,
		SupplierID:   supplier.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("create ingredient failed: %v", err)
	}

	created.Name = "Renamed Gin"
	updated, err := repo.UpdateIngredient(ctx, *created)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Renamed Gin" {
		t.Fatalf("expected renamed ingredient, got %s", updated.Name)
	}

	byIDs, err := repo.GetIngredientsByIDs(ctx, []string{"ing-test", "ing-missing"})
	if err != nil {
		t.Fatalf("get by ids failed: %v", err)
	}
	if len(byIDs) != 1 {
		t.Fatalf("expected 1 match, got %d", len(byIDs))
	}
}

func TestListIngredientsFilters(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	gins, err := repo.ListIngredients(ctx, domain.IngredientFilter{Category: "Gin"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(gins) != 1 || gins[0].ID != "ing-hendricks-gin" {
		t.Fatalf("expected only hendricks in Gin category, got %+v", gins)
	}

	core, err := repo.ListIngredients(ctx, domain.IngredientFilter{Tags: []string{"core"}})
	if err != nil {
		t.Fatalf("tag list failed: %v", err)
	}
	if len(core) != 4 {
		t.Fatalf("expected 4 core-tagged ingredients, got %d", len(core))
	}

	bySupplier, err := repo.ListIngredients(ctx, domain.IngredientFilter{SupplierID: "sup-local-distillery"})
	if err != nil {
		t.Fatalf("supplier list failed: %v", err)
	}
	if len(bySupplier) != 3 {
		t.Fatalf("expected 3 ingredients from local distillery, got %d", len(bySupplier))
	}
}

func TestAuditLogsFilteredByWindow(t *testing.T) {
	repo := New()
	ctx := context.Background()
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := repo.CreateAuditLog(ctx, domain.AuditLog{
			ID:        "audit-" + string(rune('a'+i)),
			Action:    "worksheet_submit",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create audit log failed: %v", err)
		}
	}

	logs, err := repo.ListAuditLogs(ctx, base.Add(30*time.Minute), base.Add(90*time.Minute), 10)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log in window, got %d", len(logs))
	}
}
