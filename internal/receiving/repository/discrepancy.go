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

// Discrepancy reasons
const (
	ReasonShortage     = "shortage"
	ReasonDamaged      = "damaged"
	ReasonExpired      = "expired"
	ReasonWrongProduct = "wrong_product"
	ReasonWrongBatch   = "wrong_batch"
	ReasonOther        = "other"
)

// IncomingDiscrepancy records one reported mismatch between expected and
// received goods on a document line. An item may accumulate several.
type IncomingDiscrepancy struct {
	ID             string    `db:"id" json:"id"`
	DocumentItemID string    `db:"document_item_id" json:"document_item_id"`
	DocumentID     string    `db:"document_id" json:"document_id"`
	Reason         string    `db:"reason" json:"reason"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Comment        *string   `db:"comment" json:"comment,omitempty"`
	PhotoURL       *string   `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DiscrepancyWithItem joins a discrepancy with the line it was reported
// against, as needed by return-document generation.
type DiscrepancyWithItem struct {
	IncomingDiscrepancy
	ItemProductID string  `db:"item_product_id" json:"item_product_id"`
	ItemPrice     float64 `db:"item_price" json:"item_price"`
	ItemBatchID   *string `db:"item_batch_id" json:"item_batch_id,omitempty"`
}

// DiscrepancyRepository handles incoming discrepancy persistence. The
// quantity-overflow check is owned by the reconciliation engine, not here.
type DiscrepancyRepository struct {
	db *database.DB
}

// NewDiscrepancyRepository creates a new discrepancy repository
func NewDiscrepancyRepository(db *database.DB) *DiscrepancyRepository {
	return &DiscrepancyRepository{db: db}
}

// Create inserts a discrepancy inside the caller's transaction
func (r *DiscrepancyRepository) Create(ctx context.Context, tx sqlx.ExtContext, d *IncomingDiscrepancy) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	query := `
		INSERT INTO incoming_discrepancies (
			id, document_item_id, document_id, reason, quantity, comment, photo_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		d.ID, d.DocumentItemID, d.DocumentID, d.Reason, d.Quantity, d.Comment, d.PhotoURL,
	).Scan(&d.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a discrepancy by ID
func (r *DiscrepancyRepository) GetByID(ctx context.Context, q sqlx.QueryerContext, id string) (*IncomingDiscrepancy, error) {
	var d IncomingDiscrepancy
	query := `SELECT * FROM incoming_discrepancies WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("discrepancy %s not found", id)
		}
		return nil, err
	}
	return &d, nil
}

// ListByDocument lists a document's discrepancies joined with their items
func (r *DiscrepancyRepository) ListByDocument(ctx context.Context, q sqlx.QueryerContext, documentID string) ([]*DiscrepancyWithItem, error) {
	var rows []*DiscrepancyWithItem
	query := `
		SELECT d.*,
		       i.product_id AS item_product_id,
		       i.price AS item_price,
		       i.batch_id AS item_batch_id
		FROM incoming_discrepancies d
		JOIN document_items i ON i.id = d.document_item_id
		WHERE d.document_id = $1
		ORDER BY d.created_at
	`
	if err := sqlx.SelectContext(ctx, q, &rows, query, documentID); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByItem lists the discrepancies reported against one item
func (r *DiscrepancyRepository) ListByItem(ctx context.Context, q sqlx.QueryerContext, itemID string) ([]*IncomingDiscrepancy, error) {
	var rows []*IncomingDiscrepancy
	query := `SELECT * FROM incoming_discrepancies WHERE document_item_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, q, &rows, query, itemID); err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByItem counts the discrepancies remaining on an item
func (r *DiscrepancyRepository) CountByItem(ctx context.Context, q sqlx.QueryerContext, itemID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM incoming_discrepancies WHERE document_item_id = $1`
	if err := sqlx.GetContext(ctx, q, &count, query, itemID); err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a discrepancy inside the caller's transaction
func (r *DiscrepancyRepository) Delete(ctx context.Context, tx sqlx.ExtContext, id string) error {
	query := `DELETE FROM incoming_discrepancies WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundf("discrepancy %s not found", id)
	}

	return nil
}
