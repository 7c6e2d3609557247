package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

// InspectionRepository handles inspection database operations
type InspectionRepository struct {
	db *sqlx.DB
}

// NewInspectionRepository creates a new InspectionRepository
func NewInspectionRepository(db *sqlx.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// Create inserts an inspection, assigning an id when none is set.
func (r *InspectionRepository) Create(ctx context.Context, in *models.Inspection) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.RemindedIDs == nil {
		in.RemindedIDs = pq.StringArray{}
	}
	query := `
		INSERT INTO inspections (
			id, property_id, tenant_id, inspector_id, type, status, scheduled_date,
			notes, findings, tenant_confirmed, tenant_confirmed_at, tenant_notes,
			completed_at, reminder_sent_at, reminded_ids, created_by, created_at, updated_by, updated_at
		) VALUES (
			:id, :property_id, :tenant_id, :inspector_id, :type, :status, :scheduled_date,
			:notes, :findings, :tenant_confirmed, :tenant_confirmed_at, :tenant_notes,
			:completed_at, :reminder_sent_at, :reminded_ids, :created_by, :created_at, :updated_by, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, in); err != nil {
		return fmt.Errorf("failed to create inspection: %w", err)
	}
	return nil
}

// GetByID retrieves an inspection by ID. It returns nil, nil when no row exists.
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	if !validID(id) {
		return nil, nil
	}
	var in models.Inspection
	err := r.db.GetContext(ctx, &in, `SELECT * FROM inspections WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return &in, nil
}

// ListByProperty returns one page of a property's inspections visible under
// scope, soonest first.
func (r *InspectionRepository) ListByProperty(ctx context.Context, propertyID string, scope access.Scope, limit, offset int) ([]*models.Inspection, int, error) {
	limit, offset = page(limit, offset)
	var c conditions
	c.add("property_id = ?", propertyID)
	c.addScope(scope, "tenant_id", "inspector_id")

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM inspections"+c.where()), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count inspections: %w", err)
	}
	query := r.db.Rebind("SELECT * FROM inspections" + c.where() + " ORDER BY scheduled_date ASC LIMIT ? OFFSET ?")
	items := make([]*models.Inspection, 0)
	if err := r.db.SelectContext(ctx, &items, query, append(c.args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list inspections: %w", err)
	}
	return items, total, nil
}

// Update overwrites every mutable column of in.
func (r *InspectionRepository) Update(ctx context.Context, in *models.Inspection) error {
	if in.RemindedIDs == nil {
		in.RemindedIDs = pq.StringArray{}
	}
	query := `
		UPDATE inspections SET
			tenant_id = :tenant_id, inspector_id = :inspector_id, type = :type, status = :status,
			scheduled_date = :scheduled_date, notes = :notes, findings = :findings,
			tenant_confirmed = :tenant_confirmed, tenant_confirmed_at = :tenant_confirmed_at,
			tenant_notes = :tenant_notes, completed_at = :completed_at,
			reminder_sent_at = :reminder_sent_at, reminded_ids = :reminded_ids, updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`
	return execOne(ctx, r.db, query, in, "inspection")
}

// Delete removes an inspection. It reports whether a row was deleted.
func (r *InspectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "inspections", id)
}

// ListDueReminders returns scheduled inspections with a tenant that fall
// before cutoff and have not yet had a reminder sent.
func (r *InspectionRepository) ListDueReminders(ctx context.Context, now, cutoff time.Time, limit int) ([]*models.Inspection, error) {
	query := `
		SELECT * FROM inspections
		WHERE status = $1
		  AND tenant_id IS NOT NULL
		  AND reminder_sent_at IS NULL
		  AND scheduled_date > $2
		  AND scheduled_date <= $3
		ORDER BY scheduled_date ASC
		LIMIT $4`
	items := make([]*models.Inspection, 0)
	if err := r.db.SelectContext(ctx, &items, query, models.InspectionScheduled, now, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list due inspections: %w", err)
	}
	return items, nil
}

// MarkRecipientReminded records that userID has been emailed about the
// inspection, so a retry after a partial failure skips them.
func (r *InspectionRepository) MarkRecipientReminded(ctx context.Context, id, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inspections SET reminded_ids = array_append(reminded_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(reminded_ids))`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark recipient reminded: %w", err)
	}
	return nil
}

// MarkReminderSent stamps reminder_sent_at so the inspection is not picked
// up again.
func (r *InspectionRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE inspections SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}
