package consumers

import (
	"context"

	"github.com/pharmflow/pharmflow-backend/internal/receiving/service"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/messaging"
)

// ScanConsumer validates barcode scans relayed by paired mobile devices.
// Validation is read-only; the device still has to call accept explicitly.
type ScanConsumer struct {
	consumer *messaging.Consumer
	service  *service.ReconciliationService
	logger   *logger.Logger
}

// NewScanConsumer creates a consumer bound to the scan events exchange
func NewScanConsumer(rmq *messaging.RabbitMQ, svc *service.ReconciliationService, log *logger.Logger) (*ScanConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "receiving.scan-validation", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeScanEvents, "scan.item.*"); err != nil {
		return nil, err
	}

	sc := &ScanConsumer{
		consumer: consumer,
		service:  svc,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventItemScanned, sc.handleItemScanned)

	return sc, nil
}

// Start starts consuming scan events
func (c *ScanConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *ScanConsumer) handleItemScanned(ctx context.Context, event *messaging.Event) error {
	var scan messaging.ItemScannedEvent
	if err := event.UnmarshalData(&scan); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("malformed scan event")
		return nil
	}

	result, err := c.service.ValidateScannedProduct(ctx, scan.DocumentID, scan.BatchNumber)
	if err != nil {
		// A rejected scan is an answer, not a processing failure. Retrying
		// the same scan would give the same answer.
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			c.logger.Warn().
				Str("document_id", scan.DocumentID).
				Str("batch_number", scan.BatchNumber).
				Str("device_id", scan.DeviceID).
				Str("code", appErr.Code).
				Msg("scan rejected")
			return nil
		}
		return err
	}

	c.logger.Info().
		Str("document_id", scan.DocumentID).
		Str("batch_number", scan.BatchNumber).
		Str("device_id", scan.DeviceID).
		Str("product_id", result.Product.ID).
		Int("remaining", result.RemainingQuantity).
		Msg("scan validated")

	return nil
}
