package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmflow/pharmflow-backend/internal/receiving/repository"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/service"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/testutil"
)

var (
	docColumns = []string{
		"id", "document_number", "document_date", "type", "status",
		"counterparty_id", "pharmacy_id", "warehouse_id", "user_id",
		"expected_total", "actual_total", "scanned_at", "completed_at",
		"created_at", "updated_at",
	}
	itemColumns = []string{
		"id", "document_id", "product_id", "quantity_expected",
		"quantity_scanned", "quantity_accepted", "price", "expiry_date",
		"barcode", "batch_number", "batch_id", "is_discrepancy",
		"created_at", "updated_at",
	}
	batchColumns = []string{
		"id", "product_id", "supplier_id", "batch_number", "expiry_date",
		"purchase_price", "created_at", "updated_at",
	}
)

func newEngine(t *testing.T) (*service.ReconciliationService, *testutil.MockDB) {
	t.Helper()

	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewWithDB(mockDB.DB, log)

	svc := service.NewReconciliationService(
		db,
		repository.NewDocumentRepository(db),
		repository.NewBatchRepository(db),
		repository.NewInventoryRepository(db),
		repository.NewDiscrepancyRepository(db),
		nil,
		log,
	)

	return svc, mockDB
}

func docRow(id, docType, status, counterpartyID string) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(docColumns...).AddRow(
		id, "INV-100", now, docType, status,
		counterpartyID, "pharmacy-1", "warehouse-1", "user-1",
		250.0, nil, nil, nil, now, now,
	)
}

func itemRow(id, documentID string, expected, scanned, accepted int, batchNumber, batchID *string, expiry *time.Time) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(itemColumns...).AddRow(
		id, documentID, "product-1", expected, scanned, accepted,
		25.0, expiry, nil, batchNumber, batchID, false, now, now,
	)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestCreateDocument(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO documents (").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO document_items (").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO document_items (").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectCommit()

	doc, err := svc.CreateDocument(ctx, "user-1", service.CreateDocumentInput{
		DocumentNumber: "INV-100",
		CounterpartyID: "supplier-1",
		PharmacyID:     "pharmacy-1",
		WarehouseID:    "warehouse-1",
		TotalPrice:     300.0,
		Items: []service.CreateDocumentItemInput{
			{ProductID: "product-1", QuantityExpected: 10, Price: 25.0},
			{ProductID: "product-2", QuantityExpected: 4, Price: 12.5},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, repository.DocumentTypeIncoming, doc.Type)
	assert.Equal(t, repository.DocumentStatusInProcess, doc.Status)
	assert.Equal(t, 300.0, doc.ExpectedTotal)
	assert.Len(t, doc.Items, 2)
	mockDB.ExpectationsWereMet(t)
}

func TestCreateDocument_DeclaredTotalWins(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO documents (").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO document_items (").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectCommit()

	// The supplier's declared total is stored as-is even when it disagrees
	// with the sum over the lines; completion reconciles the difference.
	doc, err := svc.CreateDocument(ctx, "user-1", service.CreateDocumentInput{
		DocumentNumber: "INV-101",
		CounterpartyID: "supplier-1",
		PharmacyID:     "pharmacy-1",
		WarehouseID:    "warehouse-1",
		TotalPrice:     1300.0,
		Items: []service.CreateDocumentItemInput{
			{ProductID: "product-1", QuantityExpected: 4, Price: 25.0},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1300.0, doc.ExpectedTotal)
	mockDB.ExpectationsWereMet(t)
}

func TestValidateScannedProduct(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE document_id = $1 AND batch_number = $2").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 3, 3, strPtr("LOT-7"), nil, timePtr(now)))
	mockDB.ExpectQuery("SELECT id, name, manufacturer, barcode FROM medical_products WHERE id = $1").
		WillReturnRows(testutil.MockRows("id", "name", "manufacturer", "barcode").
			AddRow("product-1", "Paracetamol 500mg", "Acme Pharma", "4601234567890"))

	result, err := svc.ValidateScannedProduct(ctx, "doc-1", "LOT-7")

	require.NoError(t, err)
	assert.Equal(t, "item-1", result.Item.ID)
	assert.Equal(t, "Paracetamol 500mg", result.Product.Name)
	assert.Equal(t, 7, result.RemainingQuantity)
	mockDB.ExpectationsWereMet(t)
}

func TestValidateScannedProduct_FullyScanned(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE document_id = $1 AND batch_number = $2").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 10, 10, strPtr("LOT-7"), nil, timePtr(now)))

	_, err := svc.ValidateScannedProduct(ctx, "doc-1", "LOT-7")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "already fully scanned")
	mockDB.ExpectationsWereMet(t)
}

func TestValidateScannedProduct_UnknownBatch(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE document_id = $1 AND batch_number = $2").
		WillReturnRows(testutil.MockRows(itemColumns...))

	_, err := svc.ValidateScannedProduct(ctx, "doc-1", "NO-SUCH-LOT")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestAcceptScannedItem_ExistingBatch(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 3, 3, strPtr("LOT-7"), nil, timePtr(expiry)))
	mockDB.ExpectQuery("SELECT * FROM product_batches WHERE product_id = $1 AND batch_number = $2").
		WillReturnRows(testutil.MockRows(batchColumns...).
			AddRow("batch-1", "product-1", "supplier-1", "LOT-7", expiry, 25.0, time.Now(), time.Now()))
	mockDB.ExpectExec("UPDATE document_items SET").
		WithArgs("item-1", 5, "batch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE documents SET scanned_at = $2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	item, err := svc.AcceptScannedItem(ctx, "doc-1", "item-1", service.AcceptItemInput{Quantity: 5})

	require.NoError(t, err)
	assert.Equal(t, 8, item.QuantityScanned)
	assert.Equal(t, 8, item.QuantityAccepted)
	require.NotNil(t, item.BatchID)
	assert.Equal(t, "batch-1", *item.BatchID)
	mockDB.ExpectationsWereMet(t)
}

func TestAcceptScannedItem_CreatesBatchOnFirstAcceptance(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 0, 0, strPtr("LOT-7"), nil, timePtr(expiry)))
	mockDB.ExpectQuery("SELECT * FROM product_batches WHERE product_id = $1 AND batch_number = $2").
		WillReturnRows(testutil.MockRows(batchColumns...))
	mockDB.ExpectQuery("INSERT INTO product_batches (").
		WithArgs(sqlmock.AnyArg(), "product-1", "supplier-1", "LOT-7", expiry, 25.0).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))
	mockDB.ExpectExec("UPDATE document_items SET").
		WithArgs("item-1", 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE documents SET scanned_at = $2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	item, err := svc.AcceptScannedItem(ctx, "doc-1", "item-1", service.AcceptItemInput{Quantity: 10})

	require.NoError(t, err)
	assert.Equal(t, 10, item.QuantityAccepted)
	require.NotNil(t, item.BatchID)
	assert.NotEmpty(t, *item.BatchID)
	mockDB.ExpectationsWereMet(t)
}

func TestAcceptScannedItem_SupplierMismatch(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 0, 0, strPtr("LOT-7"), nil, timePtr(expiry)))
	mockDB.ExpectQuery("SELECT * FROM product_batches WHERE product_id = $1 AND batch_number = $2").
		WillReturnRows(testutil.MockRows(batchColumns...).
			AddRow("batch-1", "product-1", "supplier-2", "LOT-7", expiry, 25.0, time.Now(), time.Now()))
	mockDB.ExpectRollback()

	_, err := svc.AcceptScannedItem(ctx, "doc-1", "item-1", service.AcceptItemInput{Quantity: 5})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockDB.ExpectationsWereMet(t)
}

func TestAcceptScannedItem_Overflow(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 8, 8, strPtr("LOT-7"), nil, timePtr(expiry)))
	mockDB.ExpectRollback()

	_, err := svc.AcceptScannedItem(ctx, "doc-1", "item-1", service.AcceptItemInput{Quantity: 5})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "exceeds expected (10)")
	mockDB.ExpectationsWereMet(t)
}

func TestAcceptScannedItem_MissingBatchData(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 0, 0, nil, nil, nil))
	mockDB.ExpectRollback()

	_, err := svc.AcceptScannedItem(ctx, "doc-1", "item-1", service.AcceptItemInput{Quantity: 5})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "no batch number or expiry date")
	mockDB.ExpectationsWereMet(t)
}

func TestAcceptScannedItem_DocumentCompleted(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))
	mockDB.ExpectRollback()

	_, err := svc.AcceptScannedItem(ctx, "doc-1", "item-1", service.AcceptItemInput{Quantity: 1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	mockDB.ExpectationsWereMet(t)
}

func TestRegisterDiscrepancy(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 7, 7, strPtr("LOT-7"), strPtr("batch-1"), timePtr(expiry)))
	mockDB.ExpectQuery("INSERT INTO incoming_discrepancies (").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectExec("UPDATE document_items SET").
		WithArgs("item-1", 3, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE documents SET scanned_at = $2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	d, err := svc.RegisterDiscrepancy(ctx, "doc-1", "item-1", service.RegisterDiscrepancyInput{
		Reason:   repository.ReasonDamaged,
		Quantity: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, repository.ReasonDamaged, d.Reason)
	assert.Equal(t, 3, d.Quantity)
	assert.NotEmpty(t, d.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestRegisterDiscrepancy_Overflow(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 8, 8, strPtr("LOT-7"), strPtr("batch-1"), timePtr(expiry)))
	mockDB.ExpectRollback()

	_, err := svc.RegisterDiscrepancy(ctx, "doc-1", "item-1", service.RegisterDiscrepancyInput{
		Reason:   repository.ReasonShortage,
		Quantity: 5,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "total scanned (8 + 5) exceeds expected (10)")
	mockDB.ExpectationsWereMet(t)
}

func TestCancelDiscrepancy_LastOneClearsFlag(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM incoming_discrepancies WHERE id = $1").
		WillReturnRows(testutil.MockRows("id", "document_item_id", "document_id", "reason", "quantity", "comment", "photo_url", "created_at").
			AddRow("disc-1", "item-1", "doc-1", "damaged", 3, nil, nil, time.Now()))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 10, 7, strPtr("LOT-7"), strPtr("batch-1"), timePtr(expiry)))
	mockDB.ExpectExec("DELETE FROM incoming_discrepancies WHERE id = $1").
		WithArgs("disc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT COUNT(*) FROM incoming_discrepancies WHERE document_item_id = $1").
		WillReturnRows(testutil.MockRows("count").AddRow(0))
	mockDB.ExpectExec("UPDATE document_items SET").
		WithArgs("item-1", -3, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := svc.CancelDiscrepancy(ctx, "doc-1", "disc-1")

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestCancelDiscrepancy_SiblingsKeepFlag(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM incoming_discrepancies WHERE id = $1").
		WillReturnRows(testutil.MockRows("id", "document_item_id", "document_id", "reason", "quantity", "comment", "photo_url", "created_at").
			AddRow("disc-1", "item-1", "doc-1", "damaged", 2, nil, nil, time.Now()))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 10, 5, strPtr("LOT-7"), strPtr("batch-1"), timePtr(expiry)))
	mockDB.ExpectExec("DELETE FROM incoming_discrepancies WHERE id = $1").
		WithArgs("disc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT COUNT(*) FROM incoming_discrepancies WHERE document_item_id = $1").
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.ExpectExec("UPDATE document_items SET").
		WithArgs("item-1", -2, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := svc.CancelDiscrepancy(ctx, "doc-1", "disc-1")

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestCompleteIncomingDocument(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()
	expiry := now.AddDate(1, 0, 0)

	items := testutil.MockRows(itemColumns...).
		AddRow("item-1", "doc-1", "product-1", 10, 10, 7, 25.0, expiry, nil, "LOT-7", "batch-1", true, now, now).
		AddRow("item-2", "doc-1", "product-2", 4, 0, 0, 12.5, nil, nil, nil, nil, false, now, now)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1 FOR UPDATE").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE document_id = $1 ORDER BY created_at FOR UPDATE").
		WillReturnRows(items)
	mockDB.ExpectQuery("INSERT INTO inventory (").
		WithArgs(sqlmock.AnyArg(), "warehouse-1", "batch-1", 7).
		WillReturnRows(testutil.MockRows("id", "warehouse_id", "batch_id", "quantity", "reserved_quantity", "created_at", "updated_at").
			AddRow("inv-1", "warehouse-1", "batch-1", 7, 0, now, now))
	mockDB.ExpectExec("UPDATE documents SET").
		WithArgs("doc-1", "completed", 175.0, sqlmock.AnyArg(), "in_process").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	doc, err := svc.CompleteIncomingDocument(ctx, "doc-1")

	require.NoError(t, err)
	assert.Equal(t, repository.DocumentStatusCompleted, doc.Status)
	require.NotNil(t, doc.ActualTotal)
	assert.Equal(t, 175.0, *doc.ActualTotal)
	require.NotNil(t, doc.CompletedAt)
	mockDB.ExpectationsWereMet(t)
}

func TestCompleteIncomingDocument_UnlottedStock(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	items := testutil.MockRows(itemColumns...).
		AddRow("item-1", "doc-1", "product-1", 10, 7, 7, 25.0, nil, nil, nil, nil, false, now, now)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1 FOR UPDATE").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE document_id = $1 ORDER BY created_at FOR UPDATE").
		WillReturnRows(items)
	mockDB.ExpectRollback()

	_, err := svc.CompleteIncomingDocument(ctx, "doc-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "accepted stock without a batch")
	mockDB.ExpectationsWereMet(t)
}

func TestCompleteIncomingDocument_AlreadyCompleted(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1 FOR UPDATE").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))
	mockDB.ExpectRollback()

	_, err := svc.CompleteIncomingDocument(ctx, "doc-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	mockDB.ExpectationsWereMet(t)
}

func TestCreateReturnDocument(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	discrepancyColumns := []string{
		"id", "document_item_id", "document_id", "reason", "quantity",
		"comment", "photo_url", "created_at",
		"item_product_id", "item_price", "item_batch_id",
	}

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))
	mockDB.ExpectQuery("JOIN document_items i ON i.id = d.document_item_id").
		WillReturnRows(testutil.MockRows(discrepancyColumns...).
			AddRow("disc-1", "item-1", "doc-1", "damaged", 3, nil, nil, now, "product-1", 25.0, "batch-1").
			AddRow("disc-2", "item-2", "doc-1", "shortage", 2, nil, nil, now, "product-2", 12.5, nil))
	mockDB.ExpectQuery("INSERT INTO documents (").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	// Return lines carry the returned quantity as expected and accepted;
	// nothing is ever scanned on a return.
	mockDB.ExpectQuery("INSERT INTO document_items (").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "product-1", 3, 0, 3,
			25.0, nil, nil, nil, "batch-1", false).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO document_items (").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "product-2", 2, 0, 2,
			12.5, nil, nil, nil, nil, false).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectCommit()

	result, err := svc.CreateReturnDocument(ctx, "doc-1", "user-2")

	require.NoError(t, err)
	assert.NotEmpty(t, result.ReturnID)
	assert.Equal(t, 5, result.TotalReturnedQuantity)
	mockDB.ExpectationsWereMet(t)
}

func TestCreateReturnDocument_NoDiscrepancies(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	discrepancyColumns := []string{
		"id", "document_item_id", "document_id", "reason", "quantity",
		"comment", "photo_url", "created_at",
		"item_product_id", "item_price", "item_batch_id",
	}

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))
	mockDB.ExpectQuery("JOIN document_items i ON i.id = d.document_item_id").
		WillReturnRows(testutil.MockRows(discrepancyColumns...))
	mockDB.ExpectRollback()

	_, err := svc.CreateReturnDocument(ctx, "doc-1", "user-2")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "no discrepancies to return")
	mockDB.ExpectationsWereMet(t)
}

func TestListView(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectQuery("SELECT * FROM documents WHERE 1=1 AND type = $1 AND status = $2").
		WithArgs("incoming", "in_process").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))

	docs, err := svc.ListView(ctx, service.ViewExpectedDeliveries)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
	mockDB.ExpectationsWereMet(t)
}

func TestListView_InboundDocumentsOnlyCompleted(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectQuery("SELECT * FROM documents WHERE 1=1 AND type = $1 AND status = $2").
		WithArgs("incoming", "completed").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))

	docs, err := svc.ListView(ctx, service.ViewInboundDocuments)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestListView_QualityIssues(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	mockDB.ExpectQuery("AND type = $1 AND status = $2 AND EXISTS (SELECT 1 FROM document_items i").
		WithArgs("incoming", "completed").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))

	docs, err := svc.ListView(ctx, service.ViewQualityIssues)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestGetView(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "completed", "supplier-1"))
	mockDB.ExpectQuery("SELECT EXISTS (SELECT 1 FROM document_items WHERE document_id = $1 AND is_discrepancy)").
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery("SELECT * FROM document_items WHERE document_id = $1 ORDER BY created_at").
		WillReturnRows(itemRow("item-1", "doc-1", 10, 10, 7, strPtr("LOT-7"), strPtr("batch-1"), timePtr(now)))

	doc, err := svc.GetView(ctx, service.ViewQualityIssues, "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	require.Len(t, doc.Items, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestGetView_NotInView(t *testing.T) {
	svc, mockDB := newEngine(t)
	ctx := context.Background()

	// Still in_process, so not visible through the posted-receipts view.
	mockDB.ExpectQuery("SELECT * FROM documents WHERE id = $1").
		WillReturnRows(docRow("doc-1", "incoming", "in_process", "supplier-1"))

	_, err := svc.GetView(ctx, service.ViewInboundDocuments, "doc-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestListView_Unknown(t *testing.T) {
	svc, _ := newEngine(t)

	_, err := svc.ListView(context.Background(), "everything")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
