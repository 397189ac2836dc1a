package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

// Counterparty types
const (
	CounterpartyTypeSupplier = "supplier"
	CounterpartyTypeBuyer    = "buyer"
	CounterpartyTypeOther    = "other"
)

// PharmacyChain is the top of the org tree
type PharmacyChain struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	LegalName *string   `db:"legal_name" json:"legal_name,omitempty"`
	TaxNumber *string   `db:"tax_number" json:"tax_number,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pharmacy is one retail location of a chain
type Pharmacy struct {
	ID        string    `db:"id" json:"id"`
	ChainID   string    `db:"chain_id" json:"chain_id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Warehouse is a stock location attached to a pharmacy
type Warehouse struct {
	ID         string    `db:"id" json:"id"`
	PharmacyID string    `db:"pharmacy_id" json:"pharmacy_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Counterparty is an external party: supplier, buyer or other
type Counterparty struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Type         string    `db:"type" json:"type"`
	TaxNumber    *string   `db:"tax_number" json:"tax_number,omitempty"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CatalogRepository handles the organizational reference data
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Chains

func (r *CatalogRepository) CreateChain(ctx context.Context, c *PharmacyChain) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pharmacy_chains (id, name, legal_name, tax_number)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, c.ID, c.Name, c.LegalName, c.TaxNumber).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func (r *CatalogRepository) GetChain(ctx context.Context, id string) (*PharmacyChain, error) {
	var c PharmacyChain
	if err := r.db.GetContext(ctx, &c, `SELECT * FROM pharmacy_chains WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("pharmacy chain")
		}
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) ListChains(ctx context.Context) ([]*PharmacyChain, error) {
	var chains []*PharmacyChain
	if err := r.db.SelectContext(ctx, &chains, `SELECT * FROM pharmacy_chains ORDER BY name`); err != nil {
		return nil, err
	}
	return chains, nil
}

// Pharmacies

func (r *CatalogRepository) CreatePharmacy(ctx context.Context, p *Pharmacy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pharmacies (id, chain_id, name, address, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, p.ID, p.ChainID, p.Name, p.Address, p.Phone).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func (r *CatalogRepository) GetPharmacy(ctx context.Context, id string) (*Pharmacy, error) {
	var p Pharmacy
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM pharmacies WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("pharmacy")
		}
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) ListPharmacies(ctx context.Context) ([]*Pharmacy, error) {
	var pharmacies []*Pharmacy
	if err := r.db.SelectContext(ctx, &pharmacies, `SELECT * FROM pharmacies ORDER BY name`); err != nil {
		return nil, err
	}
	return pharmacies, nil
}

// Warehouses

func (r *CatalogRepository) CreateWarehouse(ctx context.Context, w *Warehouse) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}

	query := `
		INSERT INTO warehouses (id, pharmacy_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, w.ID, w.PharmacyID, w.Name).
		Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func (r *CatalogRepository) GetWarehouse(ctx context.Context, id string) (*Warehouse, error) {
	var w Warehouse
	if err := r.db.GetContext(ctx, &w, `SELECT * FROM warehouses WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("warehouse")
		}
		return nil, err
	}
	return &w, nil
}

func (r *CatalogRepository) ListWarehouses(ctx context.Context, pharmacyID string) ([]*Warehouse, error) {
	var warehouses []*Warehouse
	query := `SELECT * FROM warehouses WHERE pharmacy_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &warehouses, query, pharmacyID); err != nil {
		return nil, err
	}
	return warehouses, nil
}

// Counterparties

func (r *CatalogRepository) CreateCounterparty(ctx context.Context, c *Counterparty) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Type == "" {
		c.Type = CounterpartyTypeSupplier
	}

	query := `
		INSERT INTO counterparties (id, name, type, tax_number, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.Name, c.Type, c.TaxNumber, c.ContactEmail, c.ContactPhone,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func (r *CatalogRepository) GetCounterparty(ctx context.Context, id string) (*Counterparty, error) {
	var c Counterparty
	if err := r.db.GetContext(ctx, &c, `SELECT * FROM counterparties WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("counterparty")
		}
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) ListCounterparties(ctx context.Context, counterpartyType string) ([]*Counterparty, error) {
	var counterparties []*Counterparty
	if counterpartyType != "" {
		query := `SELECT * FROM counterparties WHERE type = $1 ORDER BY name`
		if err := r.db.SelectContext(ctx, &counterparties, query, counterpartyType); err != nil {
			return nil, err
		}
		return counterparties, nil
	}

	if err := r.db.SelectContext(ctx, &counterparties, `SELECT * FROM counterparties ORDER BY name`); err != nil {
		return nil, err
	}
	return counterparties, nil
}
