package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmflow/pharmflow-backend/internal/receiving/repository"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/testutil"
)

func newTestDB(t *testing.T) (*database.DB, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	return database.NewWithDB(mockDB.DB, logger.New("test", "test")), mockDB
}

func TestBatchRepository_FindOrCreate_Creates(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewBatchRepository(db)
	expiry := time.Now().AddDate(2, 0, 0)

	mockDB.ExpectQuery("SELECT * FROM product_batches WHERE product_id = $1 AND batch_number = $2").
		WithArgs("product-1", "LOT-9").
		WillReturnRows(testutil.MockRows("id"))
	mockDB.ExpectQuery("INSERT INTO product_batches (").
		WithArgs(sqlmock.AnyArg(), "product-1", "supplier-1", "LOT-9", expiry, 14.0).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))

	batch, err := repo.FindOrCreate(context.Background(), db, repository.BatchSpec{
		ProductID:     "product-1",
		SupplierID:    "supplier-1",
		BatchNumber:   "LOT-9",
		ExpiryDate:    expiry,
		PurchasePrice: 14.0,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, "LOT-9", batch.BatchNumber)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_FindOrCreate_ReturnsExisting(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewBatchRepository(db)
	expiry := time.Now().AddDate(2, 0, 0)

	mockDB.ExpectQuery("SELECT * FROM product_batches WHERE product_id = $1 AND batch_number = $2").
		WithArgs("product-1", "LOT-9").
		WillReturnRows(testutil.MockRows(
			"id", "product_id", "supplier_id", "batch_number", "expiry_date",
			"purchase_price", "created_at", "updated_at",
		).AddRow("batch-1", "product-1", "supplier-1", "LOT-9", expiry, 14.0, time.Now(), time.Now()))

	batch, err := repo.FindOrCreate(context.Background(), db, repository.BatchSpec{
		ProductID:     "product-1",
		SupplierID:    "supplier-1",
		BatchNumber:   "LOT-9",
		ExpiryDate:    expiry,
		PurchasePrice: 14.0,
	})

	require.NoError(t, err)
	assert.Equal(t, "batch-1", batch.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_GetByID_NotFound(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewBatchRepository(db)

	mockDB.ExpectQuery("SELECT * FROM product_batches WHERE id = $1").
		WithArgs("missing").
		WillReturnRows(testutil.MockRows("id"))

	_, err := repo.GetByID(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryRepository_AddStock(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewInventoryRepository(db)
	now := time.Now()

	mockDB.ExpectQuery("INSERT INTO inventory (").
		WithArgs(sqlmock.AnyArg(), "warehouse-1", "batch-1", 12).
		WillReturnRows(testutil.MockRows(
			"id", "warehouse_id", "batch_id", "quantity", "reserved_quantity",
			"created_at", "updated_at",
		).AddRow("inv-1", "warehouse-1", "batch-1", 20, 0, now, now))

	inv, err := repo.AddStock(context.Background(), db, "warehouse-1", "batch-1", 12)

	require.NoError(t, err)
	assert.Equal(t, 20, inv.Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestDocumentRepository_Complete_NotInProcess(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewDocumentRepository(db)

	mockDB.ExpectExec("UPDATE documents SET").
		WithArgs("doc-1", "completed", 100.0, sqlmock.AnyArg(), "in_process").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), db, "doc-1", 100.0, time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	mockDB.ExpectationsWereMet(t)
}

func TestDocumentRepository_AcceptItem_NotFound(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewDocumentRepository(db)

	mockDB.ExpectExec("UPDATE document_items SET").
		WithArgs("missing", 5, "batch-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AcceptItem(context.Background(), db, "missing", 5, "batch-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestDocumentRepository_List_Filters(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewDocumentRepository(db)
	now := time.Now()

	incoming := "incoming"
	hasDiscrepancy := true

	mockDB.ExpectQuery("AND EXISTS (SELECT 1 FROM document_items i WHERE i.document_id = documents.id AND i.is_discrepancy)").
		WithArgs("incoming").
		WillReturnRows(testutil.MockRows(
			"id", "document_number", "document_date", "type", "status",
			"counterparty_id", "pharmacy_id", "warehouse_id", "user_id",
			"expected_total", "actual_total", "scanned_at", "completed_at",
			"created_at", "updated_at",
		).AddRow("doc-1", "INV-100", now, "incoming", "in_process",
			"supplier-1", "pharmacy-1", "warehouse-1", "user-1",
			250.0, nil, nil, nil, now, now))

	docs, err := repo.List(context.Background(), repository.DocumentFilter{
		Type:           &incoming,
		HasDiscrepancy: &hasDiscrepancy,
	})

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
	mockDB.ExpectationsWereMet(t)
}
