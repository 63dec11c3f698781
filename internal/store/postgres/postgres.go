package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"barledger/backend/internal/domain"
	"barledger/backend/internal/store"
	"barledger/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_name, email, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactName, &sup.Email, &sup.CreatedAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact_name, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Name, supplier.ContactName, supplier.Email, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_name, email, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.ContactName, &sup.Email, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sup.CreatedAt = sup.CreatedAt.UTC()
	return &sup, nil
}

const ingredientColumns = `id, name, category, bottle_size, current_price, par_level, default_reorder_qty, tags, supplier_id, created_at, updated_at`

func scanIngredient(scanner interface{ Scan(...any) error }) (domain.Ingredient, error) {
	var ing domain.Ingredient
	var parLevel, reorderQty sql.NullInt64
	var tagsRaw []byte
	err := scanner.Scan(&ing.ID, &ing.Name, &ing.Category, &ing.BottleSize, &ing.CurrentPrice,
		&parLevel, &reorderQty, &tagsRaw, &ing.SupplierID, &ing.CreatedAt, &ing.UpdatedAt)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if parLevel.Valid {
		v := int(parLevel.Int64)
		ing.ParLevel = &v
	}
	if reorderQty.Valid {
		v := int(reorderQty.Int64)
		ing.DefaultReorderQty = &v
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &ing.Tags); err != nil {
			return domain.Ingredient{}, err
		}
	}
	ing.CreatedAt = ing.CreatedAt.UTC()
	ing.UpdatedAt = ing.UpdatedAt.UTC()
	return ing, nil
}

func (s *Store) ListIngredients(ctx context.Context, filter domain.IngredientFilter) ([]domain.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + ` FROM ingredients`
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.SupplierID != "" {
		args = append(args, filter.SupplierID)
		conditions = append(conditions, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	if len(filter.Tags) > 0 {
		tagsJSON, err := json.Marshal(filter.Tags)
		if err != nil {
			return nil, err
		}
		args = append(args, tagsJSON)
		// overlap test against the jsonb tag array
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(tags) tag
			WHERE tag = ANY(SELECT jsonb_array_elements_text($%d::jsonb))
		)`, len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients := make([]domain.Ingredient, 0, 64)
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (s *Store) GetIngredientByID(ctx context.Context, id string) (*domain.Ingredient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1`, id)
	ing, err := scanIngredient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ing, nil
}

func (s *Store) GetIngredientsByIDs(ctx context.Context, ids []string) (map[string]domain.Ingredient, error) {
	result := make(map[string]domain.Ingredient, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		result[ing.ID] = ing
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.Name == "" || ingredient.Category == "" || ingredient.SupplierID == "" {
		return nil, store.ErrInvalidRequest
	}
	if ingredient.CurrentPrice.IsNegative() {
		return nil, store.ErrInvalidRequest
	}
	if ingredient.ID == "" {
		ingredient.ID = xid.New("ing")
	}
	now := time.Now().UTC()
	if ingredient.CreatedAt.IsZero() {
		ingredient.CreatedAt = now
	}
	ingredient.UpdatedAt = now

	tagsJSON, err := json.Marshal(ingredient.Tags)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ingredients (id, name, category, bottle_size, current_price, par_level, default_reorder_qty, tags, supplier_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, ingredient.ID, ingredient.Name, ingredient.Category, ingredient.BottleSize, ingredient.CurrentPrice,
		nullableInt(ingredient.ParLevel), nullableInt(ingredient.DefaultReorderQty), tagsJSON,
		ingredient.SupplierID, ingredient.CreatedAt, ingredient.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := ingredient
	return &created, nil
}

func (s *Store) UpdateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.ID == "" || ingredient.Name == "" || ingredient.Category == "" {
		return nil, store.ErrInvalidRequest
	}
	if ingredient.CurrentPrice.IsNegative() {
		return nil, store.ErrInvalidRequest
	}
	ingredient.UpdatedAt = time.Now().UTC()

	tagsJSON, err := json.Marshal(ingredient.Tags)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ingredients
		SET name = $2, category = $3, bottle_size = $4, current_price = $5, par_level = $6,
		    default_reorder_qty = $7, tags = $8, supplier_id = $9, updated_at = $10
		WHERE id = $1
	`, ingredient.ID, ingredient.Name, ingredient.Category, ingredient.BottleSize, ingredient.CurrentPrice,
		nullableInt(ingredient.ParLevel), nullableInt(ingredient.DefaultReorderQty), tagsJSON,
		ingredient.SupplierID, ingredient.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := ingredient
	return &updated, nil
}

// DeleteIngredient relies on ON DELETE CASCADE to drop the ingredient's
// snapshots, the only deletion path the ledger permits.
func (s *Store) DeleteIngredient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM locations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]domain.Location, 0, 16)
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, err
		}
		loc.CreatedAt = loc.CreatedAt.UTC()
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locations, nil
}

func (s *Store) GetLocationByID(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM locations
		WHERE id = $1
	`, id).Scan(&loc.ID, &loc.Name, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	loc.CreatedAt = loc.CreatedAt.UTC()
	return &loc, nil
}

func (s *Store) GetLocationsByIDs(ctx context.Context, ids []string) (map[string]domain.Location, error) {
	result := make(map[string]domain.Location, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM locations
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, err
		}
		loc.CreatedAt = loc.CreatedAt.UTC()
		result[loc.ID] = loc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateLocation(ctx context.Context, location domain.Location) (*domain.Location, error) {
	if location.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	if location.ID == "" {
		location.ID = xid.New("loc")
	}
	if location.CreatedAt.IsZero() {
		location.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, created_at)
		VALUES ($1,$2,$3)
	`, location.ID, location.Name, location.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := location
	return &created, nil
}

func (s *Store) UpdateLocation(ctx context.Context, location domain.Location) (*domain.Location, error) {
	if location.ID == "" || location.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE locations SET name = $2 WHERE id = $1
	`, location.ID, location.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetLocationByID(ctx, location.ID)
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendSnapshots commits the whole batch inside one read-committed
// transaction: concurrent readers either see every row of the batch or none.
// The seq column is a bigserial, so insertion order is preserved for the
// resolver's timestamp tiebreak.
func (s *Store) AppendSnapshots(ctx context.Context, snapshots []domain.InventorySnapshot) ([]domain.InventorySnapshot, error) {
	if len(snapshots) == 0 {
		return nil, store.ErrInvalidSnapshot
	}
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
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	stored := make([]domain.InventorySnapshot, 0, len(snapshots))
	for i, snap := range snapshots {
		if snap.ID == "" {
			snap.ID = xid.New("snap")
		}
		snap.SubmittedAt = snap.SubmittedAt.UTC()

		err := pgTx.QueryRowContext(ctx, `
			INSERT INTO inventory_snapshots (id, ingredient_id, location_id, quantity, total_value, submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING seq
		`, snap.ID, snap.IngredientID, snap.LocationID, snap.Quantity, snap.TotalValue, snap.SubmittedAt).Scan(&snap.Seq)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, &domain.BatchValidationError{Index: i, Field: "ingredient_id/location_id", Reason: "unknown reference"}
			}
			return nil, err
		}
		stored = append(stored, snap)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.InventorySnapshot, error) {
	query := `
		SELECT id, seq, ingredient_id, location_id, quantity, total_value, submitted_at
		FROM inventory_snapshots`
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if filter.IngredientID != "" {
		args = append(args, filter.IngredientID)
		conditions = append(conditions, fmt.Sprintf("ingredient_id = $%d", len(args)))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("submitted_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("submitted_at <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY submitted_at DESC, seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.InventorySnapshot, 0, 256)
	for rows.Next() {
		var snap domain.InventorySnapshot
		if err := rows.Scan(&snap.ID, &snap.Seq, &snap.IngredientID, &snap.LocationID,
			&snap.Quantity, &snap.TotalValue, &snap.SubmittedAt); err != nil {
			return nil, err
		}
		snap.SubmittedAt = snap.SubmittedAt.UTC()
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	query := `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs`
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidRequest
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM user_accounts
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_accounts SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
