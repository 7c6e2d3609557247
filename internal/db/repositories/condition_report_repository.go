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

// ConditionReportRepository handles condition report database operations
type ConditionReportRepository struct {
	db *sqlx.DB
}

// NewConditionReportRepository creates a new ConditionReportRepository
func NewConditionReportRepository(db *sqlx.DB) *ConditionReportRepository {
	return &ConditionReportRepository{db: db}
}

// Create inserts a report, assigning an id when none is set.
func (r *ConditionReportRepository) Create(ctx context.Context, rep *models.ConditionReport) error {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.Attachments == nil {
		rep.Attachments = []string{}
	}
	query := `
		INSERT INTO condition_reports (
			id, property_id, tenant_id, type, status, items, notes, attachments,
			signed_by_landlord, landlord_signature_date, signed_by_tenant, tenant_signature_date,
			tenant_comments, created_by, created_at, updated_by, updated_at
		) VALUES (
			:id, :property_id, :tenant_id, :type, :status, :items, :notes, :attachments,
			:signed_by_landlord, :landlord_signature_date, :signed_by_tenant, :tenant_signature_date,
			:tenant_comments, :created_by, :created_at, :updated_by, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, rep); err != nil {
		return fmt.Errorf("failed to create condition report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID. It returns nil, nil when no row exists.
func (r *ConditionReportRepository) GetByID(ctx context.Context, id string) (*models.ConditionReport, error) {
	if !validID(id) {
		return nil, nil
	}
	var rep models.ConditionReport
	err := r.db.GetContext(ctx, &rep, `SELECT * FROM condition_reports WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get condition report: %w", err)
	}
	return &rep, nil
}

// ListByProperty returns one page of a property's reports visible under scope.
func (r *ConditionReportRepository) ListByProperty(ctx context.Context, propertyID string, scope access.Scope, limit, offset int) ([]*models.ConditionReport, int, error) {
	limit, offset = page(limit, offset)
	var c conditions
	c.add("property_id = ?", propertyID)
	c.addScope(scope, "tenant_id")

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM condition_reports"+c.where()), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count condition reports: %w", err)
	}
	query := r.db.Rebind("SELECT * FROM condition_reports" + c.where() + " ORDER BY created_at DESC LIMIT ? OFFSET ?")
	items := make([]*models.ConditionReport, 0)
	if err := r.db.SelectContext(ctx, &items, query, append(c.args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list condition reports: %w", err)
	}
	return items, total, nil
}

// Update overwrites every mutable column of rep.
func (r *ConditionReportRepository) Update(ctx context.Context, rep *models.ConditionReport) error {
	query := `
		UPDATE condition_reports SET
			tenant_id = :tenant_id, type = :type, status = :status, items = :items,
			notes = :notes, attachments = :attachments,
			signed_by_landlord = :signed_by_landlord, landlord_signature_date = :landlord_signature_date,
			signed_by_tenant = :signed_by_tenant, tenant_signature_date = :tenant_signature_date,
			tenant_comments = :tenant_comments, updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`
	return execOne(ctx, r.db, query, rep, "condition report")
}

// Delete removes a report. It reports whether a row was deleted.
func (r *ConditionReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "condition_reports", id)
}
