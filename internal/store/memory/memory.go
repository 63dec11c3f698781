package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"barledger/backend/internal/domain"
	"barledger/backend/internal/store"
	"barledger/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	suppliersByID   map[string]domain.Supplier
	ingredientsByID map[string]domain.Ingredient
	locationsByID   map[string]domain.Location
	snapshots       []domain.InventorySnapshot
	nextSeq         int64
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_COUNTER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	counterPwd := envOr("SEED_COUNTER_PASSWORD", "counter123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_COUNTER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_COUNTER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"counter", counterPwd, domain.RoleCounter},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		suppliersByID:   make(map[string]domain.Supplier),
		ingredientsByID: make(map[string]domain.Ingredient),
		locationsByID:   make(map[string]domain.Location),
		snapshots:       make([]domain.InventorySnapshot, 0, 256),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded starts with a small bar catalog. The ledger itself starts empty;
// count events only ever enter through worksheet submissions.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	suppliers := []domain.Supplier{
		{ID: "sup-premium-spirits", Name: "Premium Spirits Co.", ContactName: "John Smith", Email: "orders@premiumspirits.example", CreatedAt: now},
		{ID: "sup-local-distillery", Name: "Local Distillery", ContactName: "Jane Doe", Email: "sales@localdistillery.example", CreatedAt: now},
	}
	for _, sup := range suppliers {
		s.suppliersByID[sup.ID] = sup
	}

	intp := func(v int) *int { return &v }
	ingredients := []domain.Ingredient{
		{ID: "ing-hendricks-gin", Name: "Hendricks Gin", Category: "Gin", BottleSize: "750ml", CurrentPrice: decimal.RequireFromString("45.99"), ParLevel: intp(6), DefaultReorderQty: intp(12), Tags: []string{"core", "premium"}, SupplierID: "sup-premium-spirits", CreatedAt: now, UpdatedAt: now},
		{ID: "ing-titos-vodka", Name: "Titos Vodka", Category: "Vodka", BottleSize: "750ml", CurrentPrice: decimal.RequireFromString("28.99"), ParLevel: intp(8), DefaultReorderQty: intp(24), Tags: []string{"core", "common"}, SupplierID: "sup-local-distillery", CreatedAt: now, UpdatedAt: now},
		{ID: "ing-campari", Name: "Campari", Category: "Amaro", BottleSize: "1L", CurrentPrice: decimal.RequireFromString("32.50"), ParLevel: intp(4), DefaultReorderQty: intp(6), Tags: []string{"core"}, SupplierID: "sup-premium-spirits", CreatedAt: now, UpdatedAt: now},
		{ID: "ing-angostura", Name: "Angostura Bitters", Category: "Bitters", BottleSize: "200ml", CurrentPrice: decimal.RequireFromString("14.25"), ParLevel: intp(3), Tags: []string{"common"}, SupplierID: "sup-premium-spirits", CreatedAt: now, UpdatedAt: now},
		{ID: "ing-rittenhouse-rye", Name: "Rittenhouse Rye", Category: "Whiskey", BottleSize: "750ml", CurrentPrice: decimal.RequireFromString("27.99"), ParLevel: intp(5), DefaultReorderQty: intp(12), Tags: []string{"core"}, SupplierID: "sup-local-distillery", CreatedAt: now, UpdatedAt: now},
		{ID: "ing-dry-vermouth", Name: "Dolin Dry Vermouth", Category: "Vermouth", BottleSize: "750ml", CurrentPrice: decimal.RequireFromString("15.75"), Tags: []string{"common"}, SupplierID: "sup-local-distillery", CreatedAt: now, UpdatedAt: now},
	}
	for _, ing := range ingredients {
		s.ingredientsByID[ing.ID] = ing
	}

	for _, loc := range []domain.Location{
		{ID: "loc-hobbit", Name: "hobbit", CreatedAt: now},
		{ID: "loc-cabinet", Name: "cabinet", CreatedAt: now},
		{ID: "loc-bar", Name: "bar", CreatedAt: now},
	} {
		s.locationsByID[loc.ID] = loc
	}

	return s
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.suppliersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListIngredients(_ context.Context, filter domain.IngredientFilter) ([]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ingredients := make([]domain.Ingredient, 0, len(s.ingredientsByID))
	for _, ing := range s.ingredientsByID {
		if filter.Category != "" && ing.Category != filter.Category {
			continue
		}
		if filter.SupplierID != "" && ing.SupplierID != filter.SupplierID {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(ing.Tags, filter.Tags) {
			continue
		}
		ingredients = append(ingredients, ing)
	}

	slices.SortFunc(ingredients, func(a, b domain.Ingredient) int {
		return cmpString(a.Name, b.Name)
	})
	return ingredients, nil
}

func hasAnyTag(tags []string, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func (s *Store) GetIngredientByID(_ context.Context, id string) (*domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ing, exists := s.ingredientsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyIng := ing
	return &copyIng, nil
}

func (s *Store) GetIngredientsByIDs(_ context.Context, ids []string) (map[string]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Ingredient, len(ids))
	for _, id := range ids {
		if ing, exists := s.ingredientsByID[id]; exists {
			result[id] = ing
		}
	}
	return result, nil
}

func (s *Store) CreateIngredient(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ingredient.Name == "" || ingredient.Category == "" || ingredient.SupplierID == "" {
		return nil, store.ErrInvalidRequest
	}
	if ingredient.CurrentPrice.IsNegative() {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.suppliersByID[ingredient.SupplierID]; !exists {
		return nil, store.ErrNotFound
	}
	if ingredient.ID == "" {
		ingredient.ID = xid.New("ing")
	}
	now := time.Now().UTC()
	if ingredient.CreatedAt.IsZero() {
		ingredient.CreatedAt = now
	}
	ingredient.UpdatedAt = now

	s.ingredientsByID[ingredient.ID] = ingredient
	created := ingredient
	return &created, nil
}

func (s *Store) UpdateIngredient(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ingredient.ID == "" || ingredient.Name == "" || ingredient.Category == "" {
		return nil, store.ErrInvalidRequest
	}
	if ingredient.CurrentPrice.IsNegative() {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.ingredientsByID[ingredient.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if _, exists := s.suppliersByID[ingredient.SupplierID]; !exists {
		return nil, store.ErrNotFound
	}
	ingredient.UpdatedAt = time.Now().UTC()

	s.ingredientsByID[ingredient.ID] = ingredient
	updated := ingredient
	return &updated, nil
}

// DeleteIngredient removes the ingredient and cascades deletion of its
// snapshots. This is the only way ledger events are ever removed.
func (s *Store) DeleteIngredient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ingredientsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.ingredientsByID, id)

	kept := s.snapshots[:0]
	for _, snap := range s.snapshots {
		if snap.IngredientID != id {
			kept = append(kept, snap)
		}
	}
	s.snapshots = kept
	return nil
}

func (s *Store) ListLocations(_ context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]domain.Location, 0, len(s.locationsByID))
	for _, loc := range s.locationsByID {
		locations = append(locations, loc)
	}
	slices.SortFunc(locations, func(a, b domain.Location) int {
		return cmpString(a.Name, b.Name)
	})
	return locations, nil
}

func (s *Store) GetLocationByID(_ context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, exists := s.locationsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyLoc := loc
	return &copyLoc, nil
}

func (s *Store) GetLocationsByIDs(_ context.Context, ids []string) (map[string]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Location, len(ids))
	for _, id := range ids {
		if loc, exists := s.locationsByID[id]; exists {
			result[id] = loc
		}
	}
	return result, nil
}

func (s *Store) CreateLocation(_ context.Context, location domain.Location) (*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if location.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	for _, existing := range s.locationsByID {
		if strings.EqualFold(existing.Name, location.Name) {
			return nil, store.ErrInvalidRequest
		}
	}
	if location.ID == "" {
		location.ID = xid.New("loc")
	}
	if location.CreatedAt.IsZero() {
		location.CreatedAt = time.Now().UTC()
	}
	s.locationsByID[location.ID] = location
	created := location
	return &created, nil
}

func (s *Store) UpdateLocation(_ context.Context, location domain.Location) (*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if location.ID == "" || location.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	existing, exists := s.locationsByID[location.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing.Name = location.Name
	s.locationsByID[location.ID] = existing
	updated := existing
	return &updated, nil
}

// DeleteLocation cascades deletion of the location's snapshots.
func (s *Store) DeleteLocation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locationsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.locationsByID, id)

	kept := s.snapshots[:0]
	for _, snap := range s.snapshots {
		if snap.LocationID != id {
			kept = append(kept, snap)
		}
	}
	s.snapshots = kept
	return nil
}

// AppendSnapshots validates the whole batch under the write lock and appends
// every event or none. Sequence numbers record insertion order and break
// resolver ties between snapshots sharing a timestamp.
func (s *Store) AppendSnapshots(_ context.Context, snapshots []domain.InventorySnapshot) ([]domain.InventorySnapshot, error) {
	if len(snapshots) == 0 {
		return nil, store.ErrInvalidSnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, snap := range snapshots {
		if snap.Quantity.IsNegative() {
			return nil, &domain.BatchValidationError{Index: i, Field: "quantity", Reason: "must not be negative"}
		}
		if snap.TotalValue.IsNegative() {
			return nil, &domain.BatchValidationError{Index: i, Field: "total_value", Reason: "must not be negative"}
		}
		if snap.SubmittedAt.IsZero() {
			return nil, &domain.BatchValidationError{Index: i, Field: "submitted_at", Reason: "is required"}
		}
		if _, exists := s.ingredientsByID[snap.IngredientID]; !exists {
			return nil, &domain.BatchValidationError{Index: i, Field: "ingredient_id", Reason: "unknown ingredient"}
		}
		if _, exists := s.locationsByID[snap.LocationID]; !exists {
			return nil, &domain.BatchValidationError{Index: i, Field: "location_id", Reason: "unknown location"}
		}
	}

	stored := make([]domain.InventorySnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.ID == "" {
			snap.ID = xid.New("snap")
		}
		s.nextSeq++
		snap.Seq = s.nextSeq
		snap.SubmittedAt = snap.SubmittedAt.UTC()
		s.snapshots = append(s.snapshots, snap)
		stored = append(stored, snap)
	}
	return stored, nil
}

// ListSnapshots returns matching ledger events newest-first (submitted_at
// desc, seq desc). Limit, when positive, truncates after ordering.
func (s *Store) ListSnapshots(_ context.Context, filter domain.SnapshotFilter) ([]domain.InventorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventorySnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if filter.IngredientID != "" && snap.IngredientID != filter.IngredientID {
			continue
		}
		if filter.LocationID != "" && snap.LocationID != filter.LocationID {
			continue
		}
		if !filter.From.IsZero() && snap.SubmittedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && snap.SubmittedAt.After(filter.To) {
			continue
		}
		result = append(result, snap)
	}

	slices.SortFunc(result, func(a, b domain.InventorySnapshot) int {
		if a.SubmittedAt.Equal(b.SubmittedAt) {
			return int(b.Seq - a.Seq)
		}
		if a.SubmittedAt.After(b.SubmittedAt) {
			return -1
		}
		return 1
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return cmpString(b.ID, a.ID)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRequest
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
