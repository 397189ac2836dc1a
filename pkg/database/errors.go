package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.NotFoundf("referenced %s does not exist", referencedResource(pqErr))

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// referencedResource guesses the missing FK target from the constraint name
// so document creation can report which upstream id was invalid.
func referencedResource(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "counterparty"):
		return "counterparty"
	case strings.Contains(constraint, "pharmacy"):
		return "pharmacy"
	case strings.Contains(constraint, "warehouse"):
		return "warehouse"
	case strings.Contains(constraint, "user"):
		return "user"
	case strings.Contains(constraint, "product"):
		return "medical product"
	case strings.Contains(constraint, "batch"):
		return "product batch"
	case strings.Contains(constraint, "document"):
		return "document"
	default:
		return "record"
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "document_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: incoming, outgoing",
		})

	case strings.Contains(constraint, "document_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: in_process, completed",
		})

	case strings.Contains(constraint, "discrepancy_reason_valid"):
		return errors.Validation(map[string]string{
			"reason": "must be one of: shortage, damaged, expired, wrong_product, wrong_batch, other",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "product_batches_product_id_batch_number"):
		return "a batch with this product and batch number already exists"
	case strings.Contains(constraint, "inventory_warehouse_id_batch_id"):
		return "an inventory row for this warehouse and batch already exists"
	case strings.Contains(constraint, "users_email"):
		return "a user with this email already exists"
	case strings.Contains(constraint, "document_number"):
		return "a document with this number already exists"
	default:
		return "a record with these values already exists"
	}
}
