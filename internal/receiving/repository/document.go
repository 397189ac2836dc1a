package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

// Document types
const (
	DocumentTypeIncoming = "incoming"
	DocumentTypeOutgoing = "outgoing"
)

// Document statuses
const (
	DocumentStatusInProcess = "in_process"
	DocumentStatusCompleted = "completed"
)

// Document represents a goods-receipt (incoming) or return (outgoing)
// record grouping line items under one counterparty/warehouse transaction.
type Document struct {
	ID             string     `db:"id" json:"id"`
	DocumentNumber string     `db:"document_number" json:"document_number"`
	DocumentDate   time.Time  `db:"document_date" json:"document_date"`
	Type           string     `db:"type" json:"type"`
	Status         string     `db:"status" json:"status"`
	CounterpartyID string     `db:"counterparty_id" json:"counterparty_id"`
	PharmacyID     string     `db:"pharmacy_id" json:"pharmacy_id"`
	WarehouseID    string     `db:"warehouse_id" json:"warehouse_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	ExpectedTotal  float64    `db:"expected_total" json:"expected_total"`
	ActualTotal    *float64   `db:"actual_total" json:"actual_total,omitempty"`
	ScannedAt      *time.Time `db:"scanned_at" json:"scanned_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	// Items are owned exclusively by their document.
	Items []*DocumentItem `db:"-" json:"items,omitempty"`
}

// DocumentItem is one line of a document, tracking expected vs. scanned
// vs. accepted quantity for one product. The batch reference is set only
// as a side effect of acceptance.
type DocumentItem struct {
	ID               string     `db:"id" json:"id"`
	DocumentID       string     `db:"document_id" json:"document_id"`
	ProductID        string     `db:"product_id" json:"product_id"`
	QuantityExpected int        `db:"quantity_expected" json:"quantity_expected"`
	QuantityScanned  int        `db:"quantity_scanned" json:"quantity_scanned"`
	QuantityAccepted int        `db:"quantity_accepted" json:"quantity_accepted"`
	Price            float64    `db:"price" json:"price"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Barcode          *string    `db:"barcode" json:"barcode,omitempty"`
	BatchNumber      *string    `db:"batch_number" json:"batch_number,omitempty"`
	BatchID          *string    `db:"batch_id" json:"batch_id,omitempty"`
	IsDiscrepancy    bool       `db:"is_discrepancy" json:"is_discrepancy"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ProductInfo is the product snapshot attached to scan-validation results.
type ProductInfo struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Manufacturer *string `db:"manufacturer" json:"manufacturer,omitempty"`
	Barcode      *string `db:"barcode" json:"barcode,omitempty"`
}

// DocumentFilter enumerates the recognized list filters.
type DocumentFilter struct {
	Type           *string
	Status         *string
	HasDiscrepancy *bool
}

// DocumentRepository handles document and document item persistence
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document together with its items inside the caller's
// transaction.
func (r *DocumentRepository) Create(ctx context.Context, tx sqlx.ExtContext, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.DocumentDate.IsZero() {
		doc.DocumentDate = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (
			id, document_number, document_date, type, status, counterparty_id,
			pharmacy_id, warehouse_id, user_id, expected_total, actual_total,
			scanned_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		doc.ID, doc.DocumentNumber, doc.DocumentDate, doc.Type, doc.Status,
		doc.CounterpartyID, doc.PharmacyID, doc.WarehouseID, doc.UserID,
		doc.ExpectedTotal, doc.ActualTotal, doc.ScannedAt, doc.CompletedAt,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	for _, item := range doc.Items {
		item.DocumentID = doc.ID
		if err := r.CreateItem(ctx, tx, item); err != nil {
			return err
		}
	}

	return nil
}

// CreateItem inserts a single document item inside the caller's transaction.
func (r *DocumentRepository) CreateItem(ctx context.Context, tx sqlx.ExtContext, item *DocumentItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO document_items (
			id, document_id, product_id, quantity_expected, quantity_scanned,
			quantity_accepted, price, expiry_date, barcode, batch_number,
			batch_id, is_discrepancy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		item.ID, item.DocumentID, item.ProductID, item.QuantityExpected,
		item.QuantityScanned, item.QuantityAccepted, item.Price,
		item.ExpiryDate, item.Barcode, item.BatchNumber, item.BatchID,
		item.IsDiscrepancy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, q sqlx.QueryerContext, id string) (*Document, error) {
	var doc Document
	query := `SELECT * FROM documents WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("document %s not found", id)
		}
		return nil, err
	}
	return &doc, nil
}

// GetByIDForUpdate reloads a document with a row lock. Completion holds
// this lock for its whole transaction so item state cannot shift under it.
func (r *DocumentRepository) GetByIDForUpdate(ctx context.Context, tx sqlx.QueryerContext, id string) (*Document, error) {
	var doc Document
	query := `SELECT * FROM documents WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, tx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("document %s not found", id)
		}
		return nil, err
	}
	return &doc, nil
}

// ListItems lists the items of a document
func (r *DocumentRepository) ListItems(ctx context.Context, q sqlx.QueryerContext, documentID string) ([]*DocumentItem, error) {
	var items []*DocumentItem
	query := `SELECT * FROM document_items WHERE document_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, q, &items, query, documentID); err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemsForUpdate lists the items of a document with row locks
func (r *DocumentRepository) ListItemsForUpdate(ctx context.Context, tx sqlx.QueryerContext, documentID string) ([]*DocumentItem, error) {
	var items []*DocumentItem
	query := `SELECT * FROM document_items WHERE document_id = $1 ORDER BY created_at FOR UPDATE`
	if err := sqlx.SelectContext(ctx, tx, &items, query, documentID); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem gets a document item by ID
func (r *DocumentRepository) GetItem(ctx context.Context, q sqlx.QueryerContext, id string) (*DocumentItem, error) {
	var item DocumentItem
	query := `SELECT * FROM document_items WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("document item %s not found", id)
		}
		return nil, err
	}
	return &item, nil
}

// GetItemForUpdate reloads an item with a row lock so concurrent
// accept/discrepancy calls against the same line are serialized.
func (r *DocumentRepository) GetItemForUpdate(ctx context.Context, tx sqlx.QueryerContext, id string) (*DocumentItem, error) {
	var item DocumentItem
	query := `SELECT * FROM document_items WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, tx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("document item %s not found", id)
		}
		return nil, err
	}
	return &item, nil
}

// FindItemByBatchNumber finds the document item matching a scanned batch
// number within one document.
func (r *DocumentRepository) FindItemByBatchNumber(ctx context.Context, q sqlx.QueryerContext, documentID, batchNumber string) (*DocumentItem, error) {
	var item DocumentItem
	query := `SELECT * FROM document_items WHERE document_id = $1 AND batch_number = $2 ORDER BY created_at LIMIT 1`
	if err := sqlx.GetContext(ctx, q, &item, query, documentID, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("item with batch %s not found in document %s", batchNumber, documentID)
		}
		return nil, err
	}
	return &item, nil
}

// GetProductInfo loads the product snapshot for a scan-validation result.
func (r *DocumentRepository) GetProductInfo(ctx context.Context, q sqlx.QueryerContext, productID string) (*ProductInfo, error) {
	var product ProductInfo
	query := `SELECT id, name, manufacturer, barcode FROM medical_products WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &product, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("medical product %s not found", productID)
		}
		return nil, err
	}
	return &product, nil
}

// AcceptItem increments both scanned and accepted counters and links the
// resolved batch.
func (r *DocumentRepository) AcceptItem(ctx context.Context, tx sqlx.ExtContext, itemID string, quantity int, batchID string) error {
	query := `
		UPDATE document_items SET
			quantity_scanned = quantity_scanned + $2,
			quantity_accepted = quantity_accepted + $2,
			batch_id = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, itemID, quantity, batchID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundf("document item %s not found", itemID)
	}

	return nil
}

// AddItemScanned adjusts the scanned counter by delta (positive on
// discrepancy registration, negative on cancellation) and sets the
// discrepancy flag.
func (r *DocumentRepository) AddItemScanned(ctx context.Context, tx sqlx.ExtContext, itemID string, delta int, isDiscrepancy bool) error {
	query := `
		UPDATE document_items SET
			quantity_scanned = quantity_scanned + $2,
			is_discrepancy = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, itemID, delta, isDiscrepancy)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundf("document item %s not found", itemID)
	}

	return nil
}

// SetScannedAt stamps the document's last scan time
func (r *DocumentRepository) SetScannedAt(ctx context.Context, tx sqlx.ExtContext, documentID string, t time.Time) error {
	query := `UPDATE documents SET scanned_at = $2, updated_at = NOW() WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, documentID, t)
	return err
}

// Complete transitions a document to completed. The status predicate
// makes the transition single-shot: a second call affects zero rows.
func (r *DocumentRepository) Complete(ctx context.Context, tx sqlx.ExtContext, documentID string, actualTotal float64, completedAt time.Time) error {
	query := `
		UPDATE documents SET
			status = $2,
			actual_total = $3,
			completed_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = $5
	`
	result, err := tx.ExecContext(ctx, query,
		documentID, DocumentStatusCompleted, actualTotal, completedAt, DocumentStatusInProcess)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidStatef("document %s is not in_process", documentID)
	}

	return nil
}

// List lists documents matching the filter, newest first
func (r *DocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]*Document, error) {
	query := `SELECT * FROM documents WHERE 1=1`
	args := []interface{}{}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.HasDiscrepancy != nil {
		if *filter.HasDiscrepancy {
			query += ` AND EXISTS (SELECT 1 FROM document_items i WHERE i.document_id = documents.id AND i.is_discrepancy)`
		} else {
			query += ` AND NOT EXISTS (SELECT 1 FROM document_items i WHERE i.document_id = documents.id AND i.is_discrepancy)`
		}
	}

	query += ` ORDER BY document_date DESC`

	var docs []*Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, err
	}
	return docs, nil
}

// HasDiscrepancyItems reports whether any item of the document carries
// the discrepancy flag.
func (r *DocumentRepository) HasDiscrepancyItems(ctx context.Context, q sqlx.QueryerContext, documentID string) (bool, error) {
	var has bool
	query := `SELECT EXISTS (SELECT 1 FROM document_items WHERE document_id = $1 AND is_discrepancy)`
	if err := sqlx.GetContext(ctx, q, &has, query, documentID); err != nil {
		return false, err
	}
	return has, nil
}

