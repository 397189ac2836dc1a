package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/events"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/repository"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/messaging"
)

// List views exposed over the API. Each is shorthand for a document filter.
const (
	ViewInboundDocuments   = "inbound-documents"
	ViewExpectedDeliveries = "expected-deliveries"
	ViewQualityIssues      = "quality-issues"
)

// ReconciliationService is the goods-receipt reconciliation engine. Every
// mutating operation runs inside a single database transaction; partially
// applied scans or completions never become visible.
type ReconciliationService struct {
	db            *database.DB
	documents     *repository.DocumentRepository
	batches       *repository.BatchRepository
	inventory     *repository.InventoryRepository
	discrepancies *repository.DiscrepancyRepository
	publisher     *events.Publisher
	logger        *logger.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	db *database.DB,
	documents *repository.DocumentRepository,
	batches *repository.BatchRepository,
	inventory *repository.InventoryRepository,
	discrepancies *repository.DiscrepancyRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		db:            db,
		documents:     documents,
		batches:       batches,
		inventory:     inventory,
		discrepancies: discrepancies,
		publisher:     publisher,
		logger:        log,
	}
}

// CreateDocumentItemInput is one expected line of a new document
type CreateDocumentItemInput struct {
	ProductID        string     `json:"product_id" validate:"required,uuid"`
	QuantityExpected int        `json:"quantity_expected" validate:"required,gt=0"`
	Price            float64    `json:"price" validate:"gte=0"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	Barcode          *string    `json:"barcode,omitempty"`
	BatchNumber      *string    `json:"batch_number,omitempty"`
}

// CreateDocumentInput is the request to register an incoming document
type CreateDocumentInput struct {
	DocumentNumber string                    `json:"document_number" validate:"required"`
	DocumentDate   *time.Time                `json:"document_date,omitempty"`
	CounterpartyID string                    `json:"counterparty_id" validate:"required,uuid"`
	PharmacyID     string                    `json:"pharmacy_id" validate:"required,uuid"`
	WarehouseID    string                    `json:"warehouse_id" validate:"required,uuid"`
	TotalPrice     float64                   `json:"total_price" validate:"required,gt=0"`
	Items          []CreateDocumentItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreateDocument registers an incoming goods-receipt document with its
// expected lines. The expected total is the supplier's declared total,
// not a sum over the lines; reconciliation later compares it against
// what was actually accepted.
func (s *ReconciliationService) CreateDocument(ctx context.Context, userID string, input CreateDocumentInput) (*repository.Document, error) {
	doc := &repository.Document{
		DocumentNumber: input.DocumentNumber,
		Type:           repository.DocumentTypeIncoming,
		Status:         repository.DocumentStatusInProcess,
		CounterpartyID: input.CounterpartyID,
		PharmacyID:     input.PharmacyID,
		WarehouseID:    input.WarehouseID,
		UserID:         userID,
		ExpectedTotal:  input.TotalPrice,
	}
	if input.DocumentDate != nil {
		doc.DocumentDate = *input.DocumentDate
	}

	for _, in := range input.Items {
		doc.Items = append(doc.Items, &repository.DocumentItem{
			ProductID:        in.ProductID,
			QuantityExpected: in.QuantityExpected,
			Price:            in.Price,
			ExpiryDate:       in.ExpiryDate,
			Barcode:          in.Barcode,
			BatchNumber:      in.BatchNumber,
		})
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.documents.Create(ctx, tx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.DocumentCreated(ctx, messaging.DocumentCreatedEvent{
		DocumentID:     doc.ID,
		DocumentNumber: doc.DocumentNumber,
		CounterpartyID: doc.CounterpartyID,
		WarehouseID:    doc.WarehouseID,
		ItemCount:      len(doc.Items),
	})

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("document_number", doc.DocumentNumber).
		Int("items", len(doc.Items)).
		Msg("incoming document created")

	return doc, nil
}

// ScanValidationResult is what a scanning client gets back for a valid scan
type ScanValidationResult struct {
	Item              *repository.DocumentItem `json:"item"`
	Product           *repository.ProductInfo  `json:"product"`
	RemainingQuantity int                      `json:"remaining_quantity"`
}

// ValidateScannedProduct checks a scanned batch number against an open
// document without mutating anything. Scanning clients call this on every
// scan before deciding to accept.
func (s *ReconciliationService) ValidateScannedProduct(ctx context.Context, documentID, batchNumber string) (*ScanValidationResult, error) {
	doc, err := s.documents.GetByID(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != repository.DocumentStatusInProcess {
		return nil, errors.InvalidStatef("document %s is not in_process", documentID)
	}

	item, err := s.documents.FindItemByBatchNumber(ctx, s.db, documentID, batchNumber)
	if err != nil {
		return nil, err
	}

	if item.QuantityScanned >= item.QuantityExpected {
		return nil, errors.InvalidStatef("item with batch %s is already fully scanned", batchNumber)
	}

	product, err := s.documents.GetProductInfo(ctx, s.db, item.ProductID)
	if err != nil {
		return nil, err
	}

	return &ScanValidationResult{
		Item:              item,
		Product:           product,
		RemainingQuantity: item.QuantityExpected - item.QuantityScanned,
	}, nil
}

// AcceptItemInput is the request to accept a scanned quantity
type AcceptItemInput struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// AcceptScannedItem accepts a scanned quantity against a document line.
// The line must carry a batch number and expiry date; the matching product
// batch is resolved (created on first acceptance) and linked to the line,
// with the document's counterparty as the batch supplier.
func (s *ReconciliationService) AcceptScannedItem(ctx context.Context, documentID, itemID string, input AcceptItemInput) (*repository.DocumentItem, error) {
	var item *repository.DocumentItem

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		doc, err := s.documents.GetByID(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != repository.DocumentStatusInProcess {
			return errors.InvalidStatef("document %s is not in_process", documentID)
		}

		item, err = s.documents.GetItemForUpdate(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.DocumentID != documentID {
			return errors.NotFoundf("document item %s not found", itemID)
		}

		if item.BatchNumber == nil || item.ExpiryDate == nil {
			return errors.InvalidState("item has no batch number or expiry date set")
		}

		if item.QuantityScanned+input.Quantity > item.QuantityExpected {
			return errors.InvalidStatef("cannot accept %d: total scanned (%d + %d) exceeds expected (%d)",
				input.Quantity, item.QuantityScanned, input.Quantity, item.QuantityExpected)
		}

		batch, err := s.batches.FindOrCreate(ctx, tx, repository.BatchSpec{
			ProductID:     item.ProductID,
			SupplierID:    doc.CounterpartyID,
			BatchNumber:   *item.BatchNumber,
			ExpiryDate:    *item.ExpiryDate,
			PurchasePrice: item.Price,
		})
		if err != nil {
			return err
		}

		if err := s.documents.AcceptItem(ctx, tx, item.ID, input.Quantity, batch.ID); err != nil {
			return err
		}

		item.QuantityScanned += input.Quantity
		item.QuantityAccepted += input.Quantity
		item.BatchID = &batch.ID

		return s.documents.SetScannedAt(ctx, tx, documentID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("item_id", itemID).
		Int("quantity", input.Quantity).
		Msg("scanned item accepted")

	return item, nil
}

// RegisterDiscrepancyInput is the request to register a discrepancy
type RegisterDiscrepancyInput struct {
	Reason   string  `json:"reason" validate:"required,oneof=shortage damaged expired wrong_product wrong_batch other"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Comment  *string `json:"comment,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// RegisterDiscrepancy records a mismatch against a document line. The
// quantity counts toward scanned but never toward accepted, so the line
// can still close out while the ledger ignores the disputed units.
func (s *ReconciliationService) RegisterDiscrepancy(ctx context.Context, documentID, itemID string, input RegisterDiscrepancyInput) (*repository.IncomingDiscrepancy, error) {
	d := &repository.IncomingDiscrepancy{
		DocumentItemID: itemID,
		DocumentID:     documentID,
		Reason:         input.Reason,
		Quantity:       input.Quantity,
		Comment:        input.Comment,
		PhotoURL:       input.PhotoURL,
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		doc, err := s.documents.GetByID(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != repository.DocumentStatusInProcess {
			return errors.InvalidStatef("document %s is not in_process", documentID)
		}

		item, err := s.documents.GetItemForUpdate(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.DocumentID != documentID {
			return errors.NotFoundf("document item %s not found", itemID)
		}

		if item.QuantityScanned+input.Quantity > item.QuantityExpected {
			return errors.InvalidStatef("cannot register discrepancy: total scanned (%d + %d) exceeds expected (%d)",
				item.QuantityScanned, input.Quantity, item.QuantityExpected)
		}

		if err := s.discrepancies.Create(ctx, tx, d); err != nil {
			return err
		}

		if err := s.documents.AddItemScanned(ctx, tx, item.ID, input.Quantity, true); err != nil {
			return err
		}

		return s.documents.SetScannedAt(ctx, tx, documentID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("item_id", itemID).
		Str("reason", input.Reason).
		Int("quantity", input.Quantity).
		Msg("discrepancy registered")

	return d, nil
}

// CancelDiscrepancy removes a previously registered discrepancy and rolls
// its quantity back out of the scanned counter. The item's discrepancy
// flag is cleared once no sibling discrepancies remain.
func (s *ReconciliationService) CancelDiscrepancy(ctx context.Context, documentID, discrepancyID string) error {
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		doc, err := s.documents.GetByID(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != repository.DocumentStatusInProcess {
			return errors.InvalidStatef("document %s is not in_process", documentID)
		}

		d, err := s.discrepancies.GetByID(ctx, tx, discrepancyID)
		if err != nil {
			return err
		}
		if d.DocumentID != documentID {
			return errors.NotFoundf("discrepancy %s not found", discrepancyID)
		}

		if _, err := s.documents.GetItemForUpdate(ctx, tx, d.DocumentItemID); err != nil {
			return err
		}

		if err := s.discrepancies.Delete(ctx, tx, d.ID); err != nil {
			return err
		}

		remaining, err := s.discrepancies.CountByItem(ctx, tx, d.DocumentItemID)
		if err != nil {
			return err
		}

		return s.documents.AddItemScanned(ctx, tx, d.DocumentItemID, -d.Quantity, remaining > 0)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("discrepancy_id", discrepancyID).
		Msg("discrepancy cancelled")

	return nil
}

// CompleteIncomingDocument posts an in-process incoming document: the
// actual total is computed from accepted quantities, every accepted line
// is pushed into the warehouse inventory ledger, and the document becomes
// completed. The whole posting is one transaction; events go out only
// after it commits.
func (s *ReconciliationService) CompleteIncomingDocument(ctx context.Context, documentID string) (*repository.Document, error) {
	var (
		doc      *repository.Document
		postings []messaging.StockReceivedEvent
	)

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		doc, err = s.documents.GetByIDForUpdate(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if doc.Type != repository.DocumentTypeIncoming {
			return errors.InvalidStatef("document %s is not an incoming document", documentID)
		}
		if doc.Status != repository.DocumentStatusInProcess {
			return errors.InvalidStatef("document %s is not in_process", documentID)
		}

		items, err := s.documents.ListItemsForUpdate(ctx, tx, documentID)
		if err != nil {
			return err
		}

		var actualTotal float64
		for _, item := range items {
			if item.QuantityAccepted == 0 {
				continue
			}
			if item.BatchID == nil {
				return errors.InvalidStatef("item %s has accepted stock without a batch", item.ID)
			}
			actualTotal += float64(item.QuantityAccepted) * item.Price
		}

		for _, item := range items {
			if item.QuantityAccepted == 0 {
				continue
			}
			if _, err := s.inventory.AddStock(ctx, tx, doc.WarehouseID, *item.BatchID, item.QuantityAccepted); err != nil {
				return err
			}
			postings = append(postings, messaging.StockReceivedEvent{
				WarehouseID: doc.WarehouseID,
				BatchID:     *item.BatchID,
				Quantity:    item.QuantityAccepted,
			})
		}

		now := time.Now().UTC()
		if err := s.documents.Complete(ctx, tx, documentID, actualTotal, now); err != nil {
			return err
		}

		doc.Status = repository.DocumentStatusCompleted
		doc.ActualTotal = &actualTotal
		doc.CompletedAt = &now
		doc.Items = items

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.DocumentCompleted(ctx, messaging.DocumentCompletedEvent{
		DocumentID:     doc.ID,
		DocumentNumber: doc.DocumentNumber,
		WarehouseID:    doc.WarehouseID,
		ExpectedTotal:  doc.ExpectedTotal,
		ActualTotal:    *doc.ActualTotal,
	})
	for _, posting := range postings {
		s.publisher.StockReceived(ctx, posting)
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Float64("expected_total", doc.ExpectedTotal).
		Float64("actual_total", *doc.ActualTotal).
		Int("ledger_postings", len(postings)).
		Msg("incoming document completed")

	return doc, nil
}

// ReturnDocumentResult summarizes a generated return document
type ReturnDocumentResult struct {
	ReturnID              string `json:"return_id"`
	TotalReturnedQuantity int    `json:"total_returned_quantity"`
}

// CreateReturnDocument generates an outgoing return document from the
// discrepancies of an incoming document. The return is born completed: it
// documents goods being sent back, not a workflow to reconcile.
func (s *ReconciliationService) CreateReturnDocument(ctx context.Context, documentID, userID string) (*ReturnDocumentResult, error) {
	var (
		ret    *repository.Document
		result ReturnDocumentResult
	)

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		orig, err := s.documents.GetByID(ctx, tx, documentID)
		if err != nil {
			return err
		}

		discrepancies, err := s.discrepancies.ListByDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if len(discrepancies) == 0 {
			return errors.InvalidStatef("document %s has no discrepancies to return", documentID)
		}

		now := time.Now().UTC()
		ret = &repository.Document{
			DocumentNumber: fmt.Sprintf("RET-%s-%d", orig.DocumentNumber, now.Unix()),
			DocumentDate:   now,
			Type:           repository.DocumentTypeOutgoing,
			Status:         repository.DocumentStatusCompleted,
			CounterpartyID: orig.CounterpartyID,
			PharmacyID:     orig.PharmacyID,
			WarehouseID:    orig.WarehouseID,
			UserID:         userID,
			CompletedAt:    &now,
		}

		for _, d := range discrepancies {
			ret.ExpectedTotal += float64(d.Quantity) * d.ItemPrice
			// Return lines are never scanned; only expected and accepted
			// carry the returned quantity.
			ret.Items = append(ret.Items, &repository.DocumentItem{
				ProductID:        d.ItemProductID,
				QuantityExpected: d.Quantity,
				QuantityAccepted: d.Quantity,
				Price:            d.ItemPrice,
				BatchID:          d.ItemBatchID,
			})
			result.TotalReturnedQuantity += d.Quantity
		}
		total := ret.ExpectedTotal
		ret.ActualTotal = &total

		if err := s.documents.Create(ctx, tx, ret); err != nil {
			return err
		}

		result.ReturnID = ret.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ReturnDocumentCreated(ctx, messaging.ReturnDocumentCreatedEvent{
		ReturnDocumentID:   ret.ID,
		OriginalDocumentID: documentID,
		CounterpartyID:     ret.CounterpartyID,
		TotalQuantity:      result.TotalReturnedQuantity,
	})

	s.logger.Info().
		Str("document_id", documentID).
		Str("return_id", result.ReturnID).
		Int("total_quantity", result.TotalReturnedQuantity).
		Msg("return document created")

	return &result, nil
}

// Get loads a document together with its items and discrepancies
func (s *ReconciliationService) Get(ctx context.Context, documentID string) (*repository.Document, error) {
	doc, err := s.documents.GetByID(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}

	doc.Items, err = s.documents.ListItems(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// List lists documents matching the filter
func (s *ReconciliationService) List(ctx context.Context, filter repository.DocumentFilter) ([]*repository.Document, error) {
	return s.documents.List(ctx, filter)
}

// ListView lists documents through one of the named views
func (s *ReconciliationService) ListView(ctx context.Context, view string) ([]*repository.Document, error) {
	filter, err := filterForView(view)
	if err != nil {
		return nil, err
	}
	return s.documents.List(ctx, filter)
}

// filterForView translates a named view into its document predicates.
// Inbound documents and quality issues only show receipts that have been
// posted; expected deliveries only those still being reconciled.
func filterForView(view string) (repository.DocumentFilter, error) {
	var filter repository.DocumentFilter

	incoming := repository.DocumentTypeIncoming
	inProcess := repository.DocumentStatusInProcess
	completed := repository.DocumentStatusCompleted
	hasDiscrepancy := true

	switch view {
	case ViewInboundDocuments:
		filter.Type = &incoming
		filter.Status = &completed
	case ViewExpectedDeliveries:
		filter.Type = &incoming
		filter.Status = &inProcess
	case ViewQualityIssues:
		filter.Type = &incoming
		filter.Status = &completed
		filter.HasDiscrepancy = &hasDiscrepancy
	default:
		return filter, errors.BadRequest("unknown view: " + view)
	}

	return filter, nil
}

// GetView loads a single document through a named view. A document that
// does not satisfy the view's predicates is not visible in that view.
func (s *ReconciliationService) GetView(ctx context.Context, view, documentID string) (*repository.Document, error) {
	filter, err := filterForView(view)
	if err != nil {
		return nil, err
	}

	doc, err := s.documents.GetByID(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}

	if (filter.Type != nil && doc.Type != *filter.Type) ||
		(filter.Status != nil && doc.Status != *filter.Status) {
		return nil, errors.NotFoundf("document %s not found in %s", documentID, view)
	}
	if filter.HasDiscrepancy != nil {
		has, err := s.documents.HasDiscrepancyItems(ctx, s.db, documentID)
		if err != nil {
			return nil, err
		}
		if has != *filter.HasDiscrepancy {
			return nil, errors.NotFoundf("document %s not found in %s", documentID, view)
		}
	}

	doc.Items, err = s.documents.ListItems(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ListDiscrepancies lists the discrepancies of a document
func (s *ReconciliationService) ListDiscrepancies(ctx context.Context, documentID string) ([]*repository.DiscrepancyWithItem, error) {
	if _, err := s.documents.GetByID(ctx, s.db, documentID); err != nil {
		return nil, err
	}
	return s.discrepancies.ListByDocument(ctx, s.db, documentID)
}
