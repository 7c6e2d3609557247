package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

// MaintenanceRepository handles maintenance request database operations
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository creates a new MaintenanceRepository
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// MaintenanceFilter narrows ListByProperty beyond the caller's scope.
type MaintenanceFilter struct {
	Scope    access.Scope
	Status   string
	Priority string
}

// Create inserts a request, assigning an id when none is set.
func (r *MaintenanceRepository) Create(ctx context.Context, m *models.MaintenanceRequest) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO maintenance_requests (
			id, property_id, tenant_id, assignee_id, title, description, category,
			priority, status, resolution_notes, cost, resolved_at, resolved_by,
			created_by, created_at, updated_by, updated_at
		) VALUES (
			:id, :property_id, :tenant_id, :assignee_id, :title, :description, :category,
			:priority, :status, :resolution_notes, :cost, :resolved_at, :resolved_by,
			:created_by, :created_at, :updated_by, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to create maintenance request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID. It returns nil, nil when no row exists.
func (r *MaintenanceRepository) GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	if !validID(id) {
		return nil, nil
	}
	var m models.MaintenanceRequest
	err := r.db.GetContext(ctx, &m, `SELECT * FROM maintenance_requests WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get maintenance request: %w", err)
	}
	return &m, nil
}

// ListByProperty returns one page of a property's requests matching filter.
func (r *MaintenanceRepository) ListByProperty(ctx context.Context, propertyID string, filter MaintenanceFilter, limit, offset int) ([]*models.MaintenanceRequest, int, error) {
	limit, offset = page(limit, offset)
	var c conditions
	c.add("property_id = ?", propertyID)
	c.addScope(filter.Scope, "tenant_id", "assignee_id")
	if filter.Status != "" {
		c.add("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		c.add("priority = ?", filter.Priority)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM maintenance_requests"+c.where()), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count maintenance requests: %w", err)
	}
	query := r.db.Rebind("SELECT * FROM maintenance_requests" + c.where() + " ORDER BY created_at DESC LIMIT ? OFFSET ?")
	items := make([]*models.MaintenanceRequest, 0)
	if err := r.db.SelectContext(ctx, &items, query, append(c.args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list maintenance requests: %w", err)
	}
	return items, total, nil
}

// Update overwrites every mutable column of m.
func (r *MaintenanceRepository) Update(ctx context.Context, m *models.MaintenanceRequest) error {
	query := `
		UPDATE maintenance_requests SET
			tenant_id = :tenant_id, assignee_id = :assignee_id, title = :title,
			description = :description, category = :category, priority = :priority,
			status = :status, resolution_notes = :resolution_notes, cost = :cost,
			resolved_at = :resolved_at, resolved_by = :resolved_by,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`
	return execOne(ctx, r.db, query, m, "maintenance request")
}

// Delete removes a request. It reports whether a row was deleted.
func (r *MaintenanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "maintenance_requests", id)
}
