package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

// MedicalProduct is one sellable product of the catalog
type MedicalProduct struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Manufacturer   *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	Barcode        *string   `db:"barcode" json:"barcode,omitempty"`
	IsPrescription bool      `db:"is_prescription" json:"is_prescription"`
	RetailPrice    float64   `db:"retail_price" json:"retail_price"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProductRepository handles medical product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, p *MedicalProduct) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medical_products (id, name, manufacturer, barcode, is_prescription, retail_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Manufacturer, p.Barcode, p.IsPrescription, p.RetailPrice,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*MedicalProduct, error) {
	var p MedicalProduct
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM medical_products WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medical product")
		}
		return nil, err
	}
	return &p, nil
}

// GetByBarcode gets a product by barcode
func (r *ProductRepository) GetByBarcode(ctx context.Context, barcode string) (*MedicalProduct, error) {
	var p MedicalProduct
	query := `SELECT * FROM medical_products WHERE barcode = $1 LIMIT 1`
	if err := r.db.GetContext(ctx, &p, query, barcode); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("product with barcode %s not found", barcode)
		}
		return nil, err
	}
	return &p, nil
}

// List lists products, optionally filtered by a name search
func (r *ProductRepository) List(ctx context.Context, search string) ([]*MedicalProduct, error) {
	var products []*MedicalProduct

	if search != "" {
		query := `SELECT * FROM medical_products WHERE name ILIKE $1 ORDER BY name`
		if err := r.db.SelectContext(ctx, &products, query, "%"+search+"%"); err != nil {
			return nil, err
		}
		return products, nil
	}

	if err := r.db.SelectContext(ctx, &products, `SELECT * FROM medical_products ORDER BY name`); err != nil {
		return nil, err
	}
	return products, nil
}

// Update updates a product
func (r *ProductRepository) Update(ctx context.Context, p *MedicalProduct) error {
	query := `
		UPDATE medical_products SET
			name = $2, manufacturer = $3, barcode = $4,
			is_prescription = $5, retail_price = $6, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Manufacturer, p.Barcode, p.IsPrescription, p.RetailPrice)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medical product")
	}
	return nil
}

// Delete deletes a product
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medical_products WHERE id = $1`, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medical product")
	}
	return nil
}
