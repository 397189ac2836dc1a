package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

// Inventory is the on-hand quantity of a specific batch at a specific
// warehouse, unique by (warehouse, batch). The reconciliation engine only
// ever increases quantity; reserved_quantity is reserved for a future
// allocation feature.
type Inventory struct {
	ID               string    `db:"id" json:"id"`
	WarehouseID      string    `db:"warehouse_id" json:"warehouse_id"`
	BatchID          string    `db:"batch_id" json:"batch_id"`
	Quantity         int       `db:"quantity" json:"quantity"`
	ReservedQuantity int       `db:"reserved_quantity" json:"reserved_quantity"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// InventoryRepository handles inventory ledger persistence
type InventoryRepository struct {
	db *database.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// AddStock additively posts quantity to the (warehouse, batch) ledger row
// inside the caller's transaction, creating the row when absent. Returns
// the resulting row.
func (r *InventoryRepository) AddStock(ctx context.Context, tx sqlx.ExtContext, warehouseID, batchID string, quantity int) (*Inventory, error) {
	var inv Inventory
	query := `
		INSERT INTO inventory (id, warehouse_id, batch_id, quantity, reserved_quantity)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (warehouse_id, batch_id)
		DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, warehouse_id, batch_id, quantity, reserved_quantity, created_at, updated_at
	`
	err := sqlx.GetContext(ctx, tx, &inv, query, uuid.New().String(), warehouseID, batchID, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &inv, nil
}

// Create creates a new inventory row (administrative use)
func (r *InventoryRepository) Create(ctx context.Context, inv *Inventory) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory (id, warehouse_id, batch_id, quantity, reserved_quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		inv.ID, inv.WarehouseID, inv.BatchID, inv.Quantity, inv.ReservedQuantity,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets an inventory row by ID
func (r *InventoryRepository) GetByID(ctx context.Context, id string) (*Inventory, error) {
	var inv Inventory
	query := `SELECT * FROM inventory WHERE id = $1`
	if err := r.db.GetContext(ctx, &inv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventory row")
		}
		return nil, err
	}
	return &inv, nil
}

// GetByWarehouseAndBatch gets the ledger row for a (warehouse, batch) pair
func (r *InventoryRepository) GetByWarehouseAndBatch(ctx context.Context, q sqlx.QueryerContext, warehouseID, batchID string) (*Inventory, error) {
	var inv Inventory
	query := `SELECT * FROM inventory WHERE warehouse_id = $1 AND batch_id = $2`
	if err := sqlx.GetContext(ctx, q, &inv, query, warehouseID, batchID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventory row")
		}
		return nil, err
	}
	return &inv, nil
}

// ListByWarehouse lists inventory rows for a warehouse
func (r *InventoryRepository) ListByWarehouse(ctx context.Context, warehouseID string) ([]*Inventory, error) {
	var rows []*Inventory
	query := `SELECT * FROM inventory WHERE warehouse_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, warehouseID); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update updates an inventory row (administrative use)
func (r *InventoryRepository) Update(ctx context.Context, inv *Inventory) error {
	query := `
		UPDATE inventory SET
			quantity = $2, reserved_quantity = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, inv.ID, inv.Quantity, inv.ReservedQuantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("inventory row")
	}

	return nil
}

// Delete deletes an inventory row (administrative use)
func (r *InventoryRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM inventory WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("inventory row")
	}

	return nil
}
