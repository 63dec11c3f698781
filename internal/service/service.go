package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"barledger/backend/internal/cache"
	"barledger/backend/internal/domain"
	"barledger/backend/internal/ledger"
	"barledger/backend/internal/reorder"
	"barledger/backend/internal/store"
	"barledger/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	totalsCacheKey         = "bar:totals:current"
	totalsWithZeroCacheKey = "bar:totals:current:withzero"

	maxTrendMonths = 24
)

type Service struct {
	repo               store.Repository
	totalsCache        cache.TotalsCache
	reorderEngine      *reorder.Engine
	totalsCacheTTL     time.Duration
	defaultTrendMonths int
}

func New(repo store.Repository, totalsCache cache.TotalsCache, totalsCacheTTL time.Duration, defaultTrendMonths int) *Service {
	if totalsCache == nil {
		totalsCache = cache.NoopTotalsCache{}
	}
	if totalsCacheTTL <= 0 {
		totalsCacheTTL = 15 * time.Second
	}
	if defaultTrendMonths < 1 {
		defaultTrendMonths = 6
	}

	return &Service{
		repo:               repo,
		totalsCache:        totalsCache,
		reorderEngine:      reorder.NewEngine(true),
		totalsCacheTTL:     totalsCacheTTL,
		defaultTrendMonths: defaultTrendMonths,
	}
}

// ---- Catalog ----

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidRequest
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:          xid.New("sup"),
		Name:        req.Name,
		ContactName: strings.TrimSpace(req.ContactName),
		Email:       strings.TrimSpace(req.Email),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", created.ID, created.Name)
	return *created, nil
}

func (s *Service) ListIngredients(ctx context.Context, filter domain.IngredientFilter) ([]domain.Ingredient, error) {
	return s.repo.ListIngredients(ctx, filter)
}

func (s *Service) GetIngredient(ctx context.Context, id string) (domain.Ingredient, error) {
	ing, err := s.repo.GetIngredientByID(ctx, id)
	if err != nil {
		return domain.Ingredient{}, err
	}
	return *ing, nil
}

func (s *Service) CreateIngredient(ctx context.Context, req domain.IngredientCreateRequest) (domain.Ingredient, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Ingredient{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" || req.SupplierID == "" {
		return domain.Ingredient{}, store.ErrInvalidRequest
	}
	if req.CurrentPrice.IsNegative() {
		return domain.Ingredient{}, store.ErrInvalidRequest
	}
	if req.ParLevel != nil && *req.ParLevel < 0 {
		return domain.Ingredient{}, store.ErrInvalidRequest
	}
	if req.DefaultReorderQty != nil && *req.DefaultReorderQty < 0 {
		return domain.Ingredient{}, store.ErrInvalidRequest
	}
	if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
		return domain.Ingredient{}, err
	}

	now := time.Now().UTC()
	created, err := s.repo.CreateIngredient(ctx, domain.Ingredient{
		ID:                xid.New("ing"),
		Name:              req.Name,
		Category:          req.Category,
		BottleSize:        strings.TrimSpace(req.BottleSize),
		CurrentPrice:      req.CurrentPrice,
		ParLevel:          req.ParLevel,
		DefaultReorderQty: req.DefaultReorderQty,
		Tags:              normalizeTags(req.Tags),
		SupplierID:        req.SupplierID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return domain.Ingredient{}, err
	}

	s.logAudit(ctx, "ingredient_create", "ingredient", created.ID, fmt.Sprintf("name=%s,price=%s", created.Name, created.CurrentPrice))
	return *created, nil
}

func (s *Service) UpdateIngredient(ctx context.Context, id string, req domain.IngredientUpdateRequest) (domain.Ingredient, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Ingredient{}, err
	}

	existing, err := s.repo.GetIngredientByID(ctx, id)
	if err != nil {
		return domain.Ingredient{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Ingredient{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Ingredient{}, store.ErrInvalidRequest
		}
		updated.Category = category
	}
	if req.BottleSize != nil {
		updated.BottleSize = strings.TrimSpace(*req.BottleSize)
	}
	if req.CurrentPrice != nil {
		if req.CurrentPrice.IsNegative() {
			return domain.Ingredient{}, store.ErrInvalidRequest
		}
		updated.CurrentPrice = *req.CurrentPrice
	}
	if req.ParLevel != nil {
		if *req.ParLevel < 0 {
			return domain.Ingredient{}, store.ErrInvalidRequest
		}
		updated.ParLevel = req.ParLevel
	}
	if req.DefaultReorderQty != nil {
		if *req.DefaultReorderQty < 0 {
			return domain.Ingredient{}, store.ErrInvalidRequest
		}
		updated.DefaultReorderQty = req.DefaultReorderQty
	}
	if req.Tags != nil {
		updated.Tags = normalizeTags(req.Tags)
	}
	if req.SupplierID != nil {
		if _, err := s.repo.GetSupplierByID(ctx, *req.SupplierID); err != nil {
			return domain.Ingredient{}, err
		}
		updated.SupplierID = *req.SupplierID
	}

	saved, err := s.repo.UpdateIngredient(ctx, updated)
	if err != nil {
		return domain.Ingredient{}, err
	}

	// Price changes do not rewrite history: each snapshot keeps the value
	// captured at counting time.
	s.logAudit(ctx, "ingredient_update", "ingredient", saved.ID, fmt.Sprintf("price=%s", saved.CurrentPrice))
	return *saved, nil
}

func (s *Service) DeleteIngredient(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteIngredient(ctx, id); err != nil {
		return err
	}
	s.invalidateTotals(ctx)
	s.logAudit(ctx, "ingredient_delete", "ingredient", id, "cascade snapshots")
	return nil
}

func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return s.repo.ListLocations(ctx)
}

func (s *Service) CreateLocation(ctx context.Context, req domain.LocationCreateRequest) (domain.Location, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Location{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Location{}, store.ErrInvalidRequest
	}

	created, err := s.repo.CreateLocation(ctx, domain.Location{
		ID:        xid.New("loc"),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Location{}, err
	}

	s.logAudit(ctx, "location_create", "location", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateLocation(ctx context.Context, id string, req domain.LocationCreateRequest) (domain.Location, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Location{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if id == "" || req.Name == "" {
		return domain.Location{}, store.ErrInvalidRequest
	}

	updated, err := s.repo.UpdateLocation(ctx, domain.Location{ID: id, Name: req.Name})
	if err != nil {
		return domain.Location{}, err
	}

	s.logAudit(ctx, "location_update", "location", updated.ID, updated.Name)
	return *updated, nil
}

func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteLocation(ctx, id); err != nil {
		return err
	}
	s.invalidateTotals(ctx)
	s.logAudit(ctx, "location_delete", "location", id, "cascade snapshots")
	return nil
}

// ---- Worksheet submission ----

// SubmitWorksheet appends a batch of count events to the ledger as one atomic
// unit. The whole batch is validated first; any invalid tuple aborts the
// submission with zero writes. Tuples without an explicit timestamp all
// receive the same commit "now" so one counting session maps to one moment.
// Resubmitting an identical batch creates new events: the ledger is an event
// log and a repeated physical count is a legitimate new observation.
func (s *Service) SubmitWorksheet(ctx context.Context, req domain.WorksheetSubmitRequest) (domain.WorksheetSubmitResponse, error) {
	if len(req.Snapshots) == 0 {
		return domain.WorksheetSubmitResponse{}, store.ErrInvalidSnapshot
	}

	ingredientIDs := make([]string, 0, len(req.Snapshots))
	locationIDs := make([]string, 0, len(req.Snapshots))
	for i, tuple := range req.Snapshots {
		if tuple.Quantity.IsNegative() {
			return domain.WorksheetSubmitResponse{}, &domain.BatchValidationError{Index: i, Field: "quantity", Reason: "must not be negative"}
		}
		if tuple.TotalValue.IsNegative() {
			return domain.WorksheetSubmitResponse{}, &domain.BatchValidationError{Index: i, Field: "total_value", Reason: "must not be negative"}
		}
		if tuple.IngredientID == "" {
			return domain.WorksheetSubmitResponse{}, &domain.BatchValidationError{Index: i, Field: "ingredient_id", Reason: "is required"}
		}
		if tuple.LocationID == "" {
			return domain.WorksheetSubmitResponse{}, &domain.BatchValidationError{Index: i, Field: "location_id", Reason: "is required"}
		}
		ingredientIDs = append(ingredientIDs, tuple.IngredientID)
		locationIDs = append(locationIDs, tuple.LocationID)
	}

	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return domain.WorksheetSubmitResponse{}, err
	}
	locations, err := s.repo.GetLocationsByIDs(ctx, locationIDs)
	if err != nil {
		return domain.WorksheetSubmitResponse{}, err
	}
	for i, tuple := range req.Snapshots {
		if _, exists := ingredients[tuple.IngredientID]; !exists {
			return domain.WorksheetSubmitResponse{}, fmt.Errorf("worksheet tuple %d: ingredient %s: %w", i, tuple.IngredientID, store.ErrNotFound)
		}
		if _, exists := locations[tuple.LocationID]; !exists {
			return domain.WorksheetSubmitResponse{}, fmt.Errorf("worksheet tuple %d: location %s: %w", i, tuple.LocationID, store.ErrNotFound)
		}
	}

	now := time.Now().UTC()
	snapshots := make([]domain.InventorySnapshot, 0, len(req.Snapshots))
	for _, tuple := range req.Snapshots {
		submittedAt := now
		if tuple.SubmittedAt != nil {
			submittedAt = tuple.SubmittedAt.UTC()
		}
		snapshots = append(snapshots, domain.InventorySnapshot{
			ID:           xid.New("snap"),
			IngredientID: tuple.IngredientID,
			LocationID:   tuple.LocationID,
			Quantity:     tuple.Quantity,
			TotalValue:   tuple.TotalValue,
			SubmittedAt:  submittedAt,
		})
	}

	stored, err := s.repo.AppendSnapshots(ctx, snapshots)
	if err != nil {
		return domain.WorksheetSubmitResponse{}, err
	}

	s.invalidateTotals(ctx)

	ids := make([]string, 0, len(stored))
	for _, snap := range stored {
		ids = append(ids, snap.ID)
	}
	s.logAudit(ctx, "worksheet_submit", "worksheet", ids[0], fmt.Sprintf("snapshots=%d", len(ids)))

	return domain.WorksheetSubmitResponse{
		SnapshotIDs: ids,
		Count:       len(ids),
		SubmittedAt: now.Format(time.RFC3339),
	}, nil
}

// CreateSnapshot records a single count as a batch of one.
func (s *Service) CreateSnapshot(ctx context.Context, req domain.SnapshotCreateRequest) (domain.SnapshotDetail, error) {
	resp, err := s.SubmitWorksheet(ctx, domain.WorksheetSubmitRequest{Snapshots: []domain.SnapshotCreateRequest{req}})
	if err != nil {
		return domain.SnapshotDetail{}, err
	}

	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{IngredientID: req.IngredientID, LocationID: req.LocationID, Limit: 10})
	if err != nil {
		return domain.SnapshotDetail{}, err
	}
	for _, event := range events {
		if event.ID == resp.SnapshotIDs[0] {
			details, err := s.joinSnapshots(ctx, []domain.InventorySnapshot{event})
			if err != nil {
				return domain.SnapshotDetail{}, err
			}
			return details[0], nil
		}
	}
	return domain.SnapshotDetail{}, store.ErrNotFound
}

// ---- Derived queries ----

// GetCurrentTotals resolves the latest snapshot per (ingredient, location)
// pair as of cutoff (default now) and sums across locations per ingredient.
// includeZero adds catalog ingredients with no resolved rows, flagged
// NeverCounted rather than silently reported as zero.
func (s *Service) GetCurrentTotals(ctx context.Context, cutoff *time.Time, includeZero bool) (domain.CurrentTotalsResponse, error) {
	cacheable := cutoff == nil
	cacheKey := totalsCacheKey
	if includeZero {
		cacheKey = totalsWithZeroCacheKey
	}
	if cacheable {
		if cached, ok, err := s.totalsCache.Get(ctx, cacheKey); err == nil && ok {
			return *cached, nil
		}
	}

	at := time.Now().UTC()
	if cutoff != nil {
		at = cutoff.UTC()
	}

	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{To: at})
	if err != nil {
		return domain.CurrentTotalsResponse{}, err
	}

	resolved := ledger.ResolveAt(events, at)
	sums := ledger.SumByIngredient(resolved)
	grand := ledger.GrandTotal(resolved)

	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return domain.CurrentTotalsResponse{}, err
	}

	totals := make([]domain.IngredientTotal, 0, len(sums))
	for id, sum := range sums {
		total := domain.IngredientTotal{
			IngredientID:  id,
			TotalQuantity: sum.Quantity,
			TotalValue:    sum.Value,
			LocationCount: sum.Rows,
		}
		if ing, exists := ingredients[id]; exists {
			total.IngredientName = ing.Name
			total.Category = ing.Category
			total.SupplierID = ing.SupplierID
		}
		totals = append(totals, total)
	}

	if includeZero {
		all, err := s.repo.ListIngredients(ctx, domain.IngredientFilter{})
		if err != nil {
			return domain.CurrentTotalsResponse{}, err
		}
		for _, ing := range all {
			if _, counted := sums[ing.ID]; counted {
				continue
			}
			totals = append(totals, domain.IngredientTotal{
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Category:       ing.Category,
				SupplierID:     ing.SupplierID,
				TotalQuantity:  decimal.Zero,
				TotalValue:     decimal.Zero,
				NeverCounted:   true,
			})
		}
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].IngredientName != totals[j].IngredientName {
			return totals[i].IngredientName < totals[j].IngredientName
		}
		return totals[i].IngredientID < totals[j].IngredientID
	})

	resp := domain.CurrentTotalsResponse{
		Cutoff:        at.Format(time.RFC3339Nano),
		Totals:        totals,
		GrandQuantity: grand.Quantity,
		GrandValue:    grand.Value,
	}

	if cacheable {
		if err := s.totalsCache.Set(ctx, cacheKey, &resp, s.totalsCacheTTL); err != nil {
			log.Printf("[service] WARN: failed to cache current totals: %v", err)
		}
	}
	return resp, nil
}

func (s *Service) GetLocationTotals(ctx context.Context, locationID string, cutoff *time.Time) (domain.LocationTotalsResponse, error) {
	location, err := s.repo.GetLocationByID(ctx, locationID)
	if err != nil {
		return domain.LocationTotalsResponse{}, err
	}

	at := time.Now().UTC()
	if cutoff != nil {
		at = cutoff.UTC()
	}

	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{LocationID: locationID, To: at})
	if err != nil {
		return domain.LocationTotalsResponse{}, err
	}

	resolved := ledger.ResolveAt(events, at)
	total := ledger.GrandTotal(resolved)

	return domain.LocationTotalsResponse{
		LocationID:    location.ID,
		LocationName:  location.Name,
		Cutoff:        at.Format(time.RFC3339Nano),
		TotalQuantity: total.Quantity,
		TotalValue:    total.Value,
		ItemCount:     total.Rows,
	}, nil
}

func (s *Service) GetHistory(ctx context.Context, ingredientID string, months int) (domain.HistoryResponse, error) {
	if _, err := s.repo.GetIngredientByID(ctx, ingredientID); err != nil {
		return domain.HistoryResponse{}, err
	}
	months = clampMonths(months, 12)

	window := ledger.Window(ledger.MonthOf(time.Now().UTC()), months)
	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{
		IngredientID: ingredientID,
		From:         window[0].Start(),
	})
	if err != nil {
		return domain.HistoryResponse{}, err
	}

	return domain.HistoryResponse{
		IngredientID: ingredientID,
		Months:       months,
		Series:       toMonthlyPoints(ledger.MonthlySeries(events, ingredientID, window)),
	}, nil
}

func (s *Service) GetTrend(ctx context.Context, ingredientID string, months int) (domain.TrendRecord, error) {
	if _, err := s.repo.GetIngredientByID(ctx, ingredientID); err != nil {
		return domain.TrendRecord{}, err
	}
	months = clampMonths(months, s.defaultTrendMonths)

	window := ledger.Window(ledger.MonthOf(time.Now().UTC()), months)
	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{
		IngredientID: ingredientID,
		From:         window[0].Start(),
	})
	if err != nil {
		return domain.TrendRecord{}, err
	}

	series := ledger.MonthlySeries(events, ingredientID, window)
	classification, percent := ledger.Classify(series)

	return domain.TrendRecord{
		IngredientID:   ingredientID,
		Series:         toMonthlyPoints(series),
		Classification: classification,
		ChangePercent:  percent,
	}, nil
}

func (s *Service) GetTopMovers(ctx context.Context, months int, limit int) (domain.TopMoversResponse, error) {
	months = clampMonths(months, s.defaultTrendMonths)
	if limit < 1 {
		limit = 10
	}

	window := ledger.Window(ledger.MonthOf(time.Now().UTC()), months)
	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{From: window[0].Start()})
	if err != nil {
		return domain.TopMoversResponse{}, err
	}

	ranked := ledger.TopMovers(events, window, limit)

	ids := make([]string, 0, len(ranked))
	for _, mover := range ranked {
		ids = append(ids, mover.IngredientID)
	}
	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return domain.TopMoversResponse{}, err
	}

	movers := make([]domain.Mover, 0, len(ranked))
	for _, mover := range ranked {
		entry := domain.Mover{
			IngredientID:   mover.IngredientID,
			Classification: mover.Classification,
			ChangePercent:  mover.ChangePercent,
		}
		if ing, exists := ingredients[mover.IngredientID]; exists {
			entry.IngredientName = ing.Name
		}
		movers = append(movers, entry)
	}

	return domain.TopMoversResponse{Months: months, Movers: movers}, nil
}

func (s *Service) GetMonthActivity(ctx context.Context, year int, month time.Month) ([]domain.SnapshotDetail, error) {
	if year < 2000 || year > 2200 || month < time.January || month > time.December {
		return nil, store.ErrInvalidRequest
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{
		From: start,
		To:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, err
	}
	return s.joinSnapshots(ctx, events)
}

func (s *Service) ListRecentSnapshots(ctx context.Context, locationID string, limit int) ([]domain.SnapshotDetail, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 50
	}

	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{LocationID: locationID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return s.joinSnapshots(ctx, events)
}

// GetDayActivity sums all events of one calendar day per ingredient, raw
// (not resolved): a day with two counting sessions reports both.
func (s *Service) GetDayActivity(ctx context.Context, day time.Time) ([]domain.DayActivityEntry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{
		From: start,
		To:   start.AddDate(0, 0, 1).Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, err
	}

	type accum struct {
		quantity decimal.Decimal
		value    decimal.Decimal
	}
	sums := make(map[string]accum)
	for _, event := range events {
		a := sums[event.IngredientID]
		a.quantity = a.quantity.Add(event.Quantity)
		a.value = a.value.Add(event.TotalValue)
		sums[event.IngredientID] = a
	}

	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.DayActivityEntry, 0, len(sums))
	for id, sum := range sums {
		entry := domain.DayActivityEntry{
			IngredientID:  id,
			TotalQuantity: sum.quantity,
			TotalValue:    sum.value,
		}
		if ing, exists := ingredients[id]; exists {
			entry.IngredientName = ing.Name
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IngredientName != entries[j].IngredientName {
			return entries[i].IngredientName < entries[j].IngredientName
		}
		return entries[i].IngredientID < entries[j].IngredientID
	})
	return entries, nil
}

func (s *Service) GetReorderSuggestions(ctx context.Context) (domain.ReorderSuggestionResponse, error) {
	ingredients, err := s.repo.ListIngredients(ctx, domain.IngredientFilter{})
	if err != nil {
		return domain.ReorderSuggestionResponse{}, err
	}

	now := time.Now().UTC()
	events, err := s.repo.ListSnapshots(ctx, domain.SnapshotFilter{To: now})
	if err != nil {
		return domain.ReorderSuggestionResponse{}, err
	}
	sums := ledger.SumByIngredient(ledger.ResolveAt(events, now))

	return domain.ReorderSuggestionResponse{
		GeneratedAt: now.Format(time.RFC3339),
		Suggestions: s.reorderEngine.Suggest(ingredients, sums),
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// ---- helpers ----

func (s *Service) joinSnapshots(ctx context.Context, events []domain.InventorySnapshot) ([]domain.SnapshotDetail, error) {
	ingredientIDs := make([]string, 0, len(events))
	locationIDs := make([]string, 0, len(events))
	for _, event := range events {
		ingredientIDs = append(ingredientIDs, event.IngredientID)
		locationIDs = append(locationIDs, event.LocationID)
	}

	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return nil, err
	}
	locations, err := s.repo.GetLocationsByIDs(ctx, locationIDs)
	if err != nil {
		return nil, err
	}

	details := make([]domain.SnapshotDetail, 0, len(events))
	for _, event := range events {
		detail := domain.SnapshotDetail{InventorySnapshot: event}
		if ing, exists := ingredients[event.IngredientID]; exists {
			detail.IngredientName = ing.Name
			detail.SupplierID = ing.SupplierID
		}
		if loc, exists := locations[event.LocationID]; exists {
			detail.LocationName = loc.Name
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *Service) invalidateTotals(ctx context.Context) {
	for _, key := range []string{totalsCacheKey, totalsWithZeroCacheKey} {
		if err := s.totalsCache.Invalidate(ctx, key); err != nil {
			log.Printf("[service] WARN: failed to invalidate totals cache %s: %v", key, err)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return errors.New("admin role required")
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

func clampMonths(months int, fallback int) int {
	if months < 1 {
		return fallback
	}
	if months > maxTrendMonths {
		return maxTrendMonths
	}
	return months
}

func toMonthlyPoints(series []ledger.MonthlyTotal) []domain.MonthlyPoint {
	points := make([]domain.MonthlyPoint, 0, len(series))
	for _, bucket := range series {
		points = append(points, domain.MonthlyPoint{
			Month:    bucket.Month.String(),
			Quantity: bucket.Quantity,
			Value:    bucket.Value,
		})
	}
	return points
}
