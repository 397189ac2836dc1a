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

// ProductBatch represents a production/supply lot of a product, unique by
// (product, batch_number). Batches are shared reference rows, never owned
// by a document.
type ProductBatch struct {
	ID            string    `db:"id" json:"id"`
	ProductID     string    `db:"product_id" json:"product_id"`
	SupplierID    string    `db:"supplier_id" json:"supplier_id"`
	BatchNumber   string    `db:"batch_number" json:"batch_number"`
	ExpiryDate    time.Time `db:"expiry_date" json:"expiry_date"`
	PurchasePrice float64   `db:"purchase_price" json:"purchase_price"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// BatchSpec carries the fields needed to resolve a batch at acceptance time
type BatchSpec struct {
	ProductID     string
	SupplierID    string
	BatchNumber   string
	ExpiryDate    time.Time
	PurchasePrice float64
}

// BatchRepository handles product batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindOrCreate resolves a batch by its (product, batch_number) key inside
// the caller's transaction, creating it when absent. An existing row with
// a different supplier is a conflict: the same lot cannot be re-sourced
// from another counterparty.
func (r *BatchRepository) FindOrCreate(ctx context.Context, tx sqlx.ExtContext, spec BatchSpec) (*ProductBatch, error) {
	var batch ProductBatch
	query := `SELECT * FROM product_batches WHERE product_id = $1 AND batch_number = $2`
	err := sqlx.GetContext(ctx, tx, &batch, query, spec.ProductID, spec.BatchNumber)
	if err == nil {
		if batch.SupplierID != spec.SupplierID {
			return nil, errors.Conflict("batch " + spec.BatchNumber + " already registered for a different supplier")
		}
		return &batch, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	batch = ProductBatch{
		ID:            uuid.New().String(),
		ProductID:     spec.ProductID,
		SupplierID:    spec.SupplierID,
		BatchNumber:   spec.BatchNumber,
		ExpiryDate:    spec.ExpiryDate,
		PurchasePrice: spec.PurchasePrice,
	}

	insert := `
		INSERT INTO product_batches (
			id, product_id, supplier_id, batch_number, expiry_date, purchase_price
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowxContext(ctx, insert,
		batch.ID, batch.ProductID, batch.SupplierID, batch.BatchNumber,
		batch.ExpiryDate, batch.PurchasePrice,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return &batch, nil
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *ProductBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO product_batches (
			id, product_id, supplier_id, batch_number, expiry_date, purchase_price
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		batch.ID, batch.ProductID, batch.SupplierID, batch.BatchNumber,
		batch.ExpiryDate, batch.PurchasePrice,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*ProductBatch, error) {
	var batch ProductBatch
	query := `SELECT * FROM product_batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// List lists batches ordered by nearest expiry
func (r *BatchRepository) List(ctx context.Context) ([]*ProductBatch, error) {
	var batches []*ProductBatch
	query := `SELECT * FROM product_batches ORDER BY expiry_date`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// Update updates a batch
func (r *BatchRepository) Update(ctx context.Context, batch *ProductBatch) error {
	query := `
		UPDATE product_batches SET
			supplier_id = $2, batch_number = $3, expiry_date = $4,
			purchase_price = $5, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.SupplierID, batch.BatchNumber, batch.ExpiryDate, batch.PurchasePrice)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// Delete deletes a batch
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM product_batches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}
