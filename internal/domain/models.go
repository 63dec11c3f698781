package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
}

type Ingredient struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	BottleSize        string          `json:"bottle_size"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	ParLevel          *int            `json:"par_level,omitempty"`
	DefaultReorderQty *int            `json:"default_reorder_qty,omitempty"`
	Tags              []string        `json:"tags"`
	SupplierID        string          `json:"supplier_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type IngredientCreateRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	BottleSize        string          `json:"bottle_size"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	ParLevel          *int            `json:"par_level,omitempty"`
	DefaultReorderQty *int            `json:"default_reorder_qty,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	SupplierID        string          `json:"supplier_id"`
}

type IngredientUpdateRequest struct {
	Name              *string          `json:"name,omitempty"`
	Category          *string          `json:"category,omitempty"`
	BottleSize        *string          `json:"bottle_size,omitempty"`
	CurrentPrice      *decimal.Decimal `json:"current_price,omitempty"`
	ParLevel          *int             `json:"par_level,omitempty"`
	DefaultReorderQty *int             `json:"default_reorder_qty,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
	SupplierID        *string          `json:"supplier_id,omitempty"`
}

type IngredientFilter struct {
	Category   string
	Tags       []string
	SupplierID string
}

type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type LocationCreateRequest struct {
	Name string `json:"name"`
}

// InventorySnapshot is one ledger event: a quantity/value observation for
// one ingredient at one location at one moment. Snapshots are immutable;
// corrections are made by appending a later snapshot for the same pair.
type InventorySnapshot struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	IngredientID string          `json:"ingredient_id"`
	LocationID   string          `json:"location_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	TotalValue   decimal.Decimal `json:"total_value"`
	SubmittedAt  time.Time       `json:"submitted_at"`
}

type SnapshotCreateRequest struct {
	IngredientID string          `json:"ingredient_id"`
	LocationID   string          `json:"location_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	TotalValue   decimal.Decimal `json:"total_value"`
	SubmittedAt  *time.Time      `json:"submitted_at,omitempty"`
}

type WorksheetSubmitRequest struct {
	Snapshots []SnapshotCreateRequest `json:"snapshots"`
}

type WorksheetSubmitResponse struct {
	SnapshotIDs []string `json:"snapshot_ids"`
	Count       int      `json:"count"`
	SubmittedAt string   `json:"submitted_at"`
}

// SnapshotFilter narrows raw ledger reads. Zero values mean "no filter".
type SnapshotFilter struct {
	IngredientID string
	LocationID   string
	From         time.Time
	To           time.Time
	Limit        int
}

type IngredientTotal struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Category       string          `json:"category"`
	SupplierID     string          `json:"supplier_id"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	TotalValue     decimal.Decimal `json:"total_value"`
	LocationCount  int             `json:"location_count"`
	// NeverCounted distinguishes "no ledger events exist" from a counted
	// zero; callers must not coerce the two.
	NeverCounted bool `json:"never_counted"`
}

type CurrentTotalsResponse struct {
	Cutoff        string            `json:"cutoff"`
	Totals        []IngredientTotal `json:"totals"`
	GrandQuantity decimal.Decimal   `json:"grand_quantity"`
	GrandValue    decimal.Decimal   `json:"grand_value"`
}

type LocationTotalsResponse struct {
	LocationID    string          `json:"location_id"`
	LocationName  string          `json:"location_name"`
	Cutoff        string          `json:"cutoff"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	ItemCount     int             `json:"item_count"`
}

type MonthlyPoint struct {
	Month    string          `json:"month"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

type HistoryResponse struct {
	IngredientID string         `json:"ingredient_id"`
	Months       int            `json:"months"`
	Series       []MonthlyPoint `json:"series"`
}

type TrendRecord struct {
	IngredientID   string         `json:"ingredient_id"`
	Series         []MonthlyPoint `json:"series"`
	Classification string         `json:"classification"`
	ChangePercent  float64        `json:"change_percent"`
}

type Mover struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	Classification string  `json:"classification"`
	ChangePercent  float64 `json:"change_percent"`
}

type TopMoversResponse struct {
	Months int     `json:"months"`
	Movers []Mover `json:"movers"`
}

// SnapshotDetail is a catalog-joined ledger event for display paths.
type SnapshotDetail struct {
	InventorySnapshot
	IngredientName string `json:"ingredient_name"`
	LocationName   string `json:"location_name"`
	SupplierID     string `json:"supplier_id,omitempty"`
}

type DayActivityEntry struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

type ReorderSuggestion struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	SupplierID     string          `json:"supplier_id"`
	CurrentQty     decimal.Decimal `json:"current_qty"`
	ParLevel       int             `json:"par_level"`
	SuggestedQty   int             `json:"suggested_qty"`
	NeverCounted   bool            `json:"never_counted"`
}

type ReorderSuggestionResponse struct {
	GeneratedAt string              `json:"generated_at"`
	Suggestions []ReorderSuggestion `json:"suggestions"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CounterCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CounterUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin   = "admin"
	RoleCounter = "counter"
)

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)
