package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

// WorkShift tracks when a staff member is on duty at a pharmacy
type WorkShift struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	PharmacyID *string    `db:"pharmacy_id" json:"pharmacy_id,omitempty"`
	OpenedAt   time.Time  `db:"opened_at" json:"opened_at"`
	ClosedAt   *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// ShiftRepository handles work shift persistence
type ShiftRepository struct {
	db *database.DB
}

// NewShiftRepository creates a new shift repository
func NewShiftRepository(db *database.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// Open opens a shift for a user. Fails if the user already has one open.
func (r *ShiftRepository) Open(ctx context.Context, userID string, pharmacyID *string) (*WorkShift, error) {
	open, err := r.GetOpenForUser(ctx, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if open != nil {
		return nil, errors.InvalidStatef("user %s already has an open shift", userID)
	}

	shift := &WorkShift{
		ID:         uuid.New().String(),
		UserID:     userID,
		PharmacyID: pharmacyID,
	}

	query := `
		INSERT INTO work_shifts (id, user_id, pharmacy_id)
		VALUES ($1, $2, $3)
		RETURNING opened_at
	`
	err = r.db.QueryRowxContext(ctx, query, shift.ID, shift.UserID, shift.PharmacyID).
		Scan(&shift.OpenedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return shift, nil
}

// GetOpenForUser returns the user's currently open shift
func (r *ShiftRepository) GetOpenForUser(ctx context.Context, userID string) (*WorkShift, error) {
	var shift WorkShift
	query := `SELECT * FROM work_shifts WHERE user_id = $1 AND closed_at IS NULL`
	if err := r.db.GetContext(ctx, &shift, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("open shift")
		}
		return nil, err
	}
	return &shift, nil
}

// Close closes the user's open shift and returns it
func (r *ShiftRepository) Close(ctx context.Context, userID string) (*WorkShift, error) {
	shift, err := r.GetOpenForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`UPDATE work_shifts SET closed_at = $2 WHERE id = $1`, shift.ID, now)
	if err != nil {
		return nil, err
	}

	shift.ClosedAt = &now
	return shift, nil
}
