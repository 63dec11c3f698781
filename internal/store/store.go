package store

import (
	"context"
	"errors"
	"time"

	"barledger/backend/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Repository is the persistence contract. The snapshot ledger is append-only:
// AppendSnapshots is the only write path, batches commit atomically, and no
// update or single-delete operation exists. Snapshots disappear only through
// cascading deletion of their parent ingredient or location.
type Repository interface {
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)

	ListIngredients(ctx context.Context, filter domain.IngredientFilter) ([]domain.Ingredient, error)
	GetIngredientByID(ctx context.Context, id string) (*domain.Ingredient, error)
	GetIngredientsByIDs(ctx context.Context, ids []string) (map[string]domain.Ingredient, error)
	CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	UpdateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	DeleteIngredient(ctx context.Context, id string) error

	ListLocations(ctx context.Context) ([]domain.Location, error)
	GetLocationByID(ctx context.Context, id string) (*domain.Location, error)
	GetLocationsByIDs(ctx context.Context, ids []string) (map[string]domain.Location, error)
	CreateLocation(ctx context.Context, location domain.Location) (*domain.Location, error)
	UpdateLocation(ctx context.Context, location domain.Location) (*domain.Location, error)
	DeleteLocation(ctx context.Context, id string) error

	// AppendSnapshots persists the batch as one atomic unit and returns the
	// stored events with their assigned sequence numbers.
	AppendSnapshots(ctx context.Context, snapshots []domain.InventorySnapshot) ([]domain.InventorySnapshot, error)
	ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.InventorySnapshot, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
