package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

// PropertyRepository handles property database operations
type PropertyRepository struct {
	db *sqlx.DB
}

// NewPropertyRepository creates a new PropertyRepository
func NewPropertyRepository(db *sqlx.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// PropertyFilter narrows ListProperties. Empty fields are ignored.
type PropertyFilter struct {
	Status     string
	City       string
	LandlordID string
	MinRent    *float64
	MaxRent    *float64
}

// Create inserts a property, assigning an id when none is set.
func (r *PropertyRepository) Create(ctx context.Context, p *models.Property) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.TenantIDs == nil {
		p.TenantIDs = []string{}
	}
	query := `
		INSERT INTO properties (
			id, landlord_id, agent_id, tenant_ids, title, description, address, city,
			rent, bedrooms, status, created_by, created_at, updated_by, updated_at
		) VALUES (
			:id, :landlord_id, :agent_id, :tenant_ids, :title, :description, :address, :city,
			:rent, :bedrooms, :status, :created_by, :created_at, :updated_by, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

// GetByID retrieves a property by ID. It returns nil, nil when no row exists.
func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	if !validID(id) {
		return nil, nil
	}
	var p models.Property
	err := r.db.GetContext(ctx, &p, `SELECT * FROM properties WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &p, nil
}

// List returns one page of properties matching filter, newest first, and
// the total number of matches.
func (r *PropertyRepository) List(ctx context.Context, filter PropertyFilter, limit, offset int) ([]*models.Property, int, error) {
	limit, offset = page(limit, offset)
	var c conditions
	if filter.Status != "" {
		c.add("status = ?", filter.Status)
	}
	if filter.City != "" {
		c.add("LOWER(city) = LOWER(?)", filter.City)
	}
	if filter.LandlordID != "" {
		c.add("landlord_id = ?", filter.LandlordID)
	}
	if filter.MinRent != nil {
		c.add("rent >= ?", *filter.MinRent)
	}
	if filter.MaxRent != nil {
		c.add("rent <= ?", *filter.MaxRent)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM properties"+c.where()), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count properties: %w", err)
	}

	query := r.db.Rebind("SELECT * FROM properties" + c.where() + " ORDER BY created_at DESC LIMIT ? OFFSET ?")
	items := make([]*models.Property, 0)
	if err := r.db.SelectContext(ctx, &items, query, append(c.args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	return items, total, nil
}

// Update overwrites every mutable column of p.
func (r *PropertyRepository) Update(ctx context.Context, p *models.Property) error {
	query := `
		UPDATE properties SET
			agent_id = :agent_id, tenant_ids = :tenant_ids, title = :title,
			description = :description, address = :address, city = :city,
			rent = :rent, bedrooms = :bedrooms, status = :status,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`
	return execOne(ctx, r.db, query, p, "property")
}

// Delete removes a property. It reports whether a row was deleted.
func (r *PropertyRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "properties", id)
}

// TenantIDsForLandlord returns the distinct tenants across every property
// owned by landlordID.
func (r *PropertyRepository) TenantIDsForLandlord(ctx context.Context, landlordID string) ([]string, error) {
	ids := make([]string, 0)
	query := `SELECT DISTINCT unnest(tenant_ids) FROM properties WHERE landlord_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, landlordID); err != nil {
		return nil, fmt.Errorf("failed to list landlord tenants: %w", err)
	}
	return ids, nil
}

// execOne runs a named update and maps zero affected rows to ErrNotFound.
func execOne(ctx context.Context, db *sqlx.DB, query string, arg interface{}, noun string) error {
	res, err := db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", noun, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", noun, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteByID deletes a row from table and reports whether one existed.
func deleteByID(ctx context.Context, db *sqlx.DB, table, id string) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return n > 0, nil
}
