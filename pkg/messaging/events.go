package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Receiving (goods-receipt) events
	EventDocumentCreated       = "receiving.document.created"
	EventDocumentCompleted     = "receiving.document.completed"
	EventReturnDocumentCreated = "receiving.document.return_created"
	EventStockReceived         = "receiving.inventory.stock_received"

	// Scan pairing channel events (consumed, published by the mobile gateway)
	EventItemScanned = "scan.item.scanned"

	// Auth events
	EventShiftOpened = "auth.shift.opened"
	EventShiftClosed = "auth.shift.closed"
)

// Exchange names
const (
	ExchangeReceivingEvents = "receiving.events"
	ExchangeScanEvents      = "scan.events"
	ExchangeAuthEvents      = "auth.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Receiving events

// DocumentCreatedEvent is published when a goods-receipt document is registered
type DocumentCreatedEvent struct {
	DocumentID     string `json:"document_id"`
	DocumentNumber string `json:"document_number"`
	CounterpartyID string `json:"counterparty_id"`
	WarehouseID    string `json:"warehouse_id"`
	ItemCount      int    `json:"item_count"`
}

// DocumentCompletedEvent is published when a goods-receipt document is posted
type DocumentCompletedEvent struct {
	DocumentID     string  `json:"document_id"`
	DocumentNumber string  `json:"document_number"`
	WarehouseID    string  `json:"warehouse_id"`
	ExpectedTotal  float64 `json:"expected_total"`
	ActualTotal    float64 `json:"actual_total"`
}

// ReturnDocumentCreatedEvent is published when a return document is generated
type ReturnDocumentCreatedEvent struct {
	ReturnDocumentID   string `json:"return_document_id"`
	OriginalDocumentID string `json:"original_document_id"`
	CounterpartyID     string `json:"counterparty_id"`
	TotalQuantity      int    `json:"total_quantity"`
}

// StockReceivedEvent is published per ledger posting at completion
type StockReceivedEvent struct {
	WarehouseID string `json:"warehouse_id"`
	BatchID     string `json:"batch_id"`
	Quantity    int    `json:"quantity"`
}

// Scan events

// ItemScannedEvent is published by the mobile scan pairing gateway when a
// paired device scans a barcode against an open document
type ItemScannedEvent struct {
	DocumentID  string `json:"document_id"`
	BatchNumber string `json:"batch_number"`
	Barcode     string `json:"barcode,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
}

// Auth events

// ShiftEvent is published when a work shift opens or closes
type ShiftEvent struct {
	ShiftID    string `json:"shift_id"`
	UserID     string `json:"user_id"`
	PharmacyID string `json:"pharmacy_id,omitempty"`
}
