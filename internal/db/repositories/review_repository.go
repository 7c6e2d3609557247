package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

// ReviewRepository handles review database operations
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ReviewVisibility controls which reviews ListByProperty returns. Published
// reviews are always visible; hidden ones only when IncludeHidden is set or
// when written by AuthorID.
type ReviewVisibility struct {
	IncludeHidden bool
	AuthorID      string
}

// RatingSummary aggregates the published ratings of a property.
type RatingSummary struct {
	Count   int     `json:"count" db:"count"`
	Average float64 `json:"average" db:"average"`
}

// Create inserts a review, assigning an id when none is set.
func (r *ReviewRepository) Create(ctx context.Context, rev *models.Review) error {
	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}
	query := `
		INSERT INTO reviews (
			id, property_id, author_id, rating, title, comment, status,
			landlord_response, responded_at, responded_by,
			created_by, created_at, updated_by, updated_at
		) VALUES (
			:id, :property_id, :author_id, :rating, :title, :comment, :status,
			:landlord_response, :responded_at, :responded_by,
			:created_by, :created_at, :updated_by, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, rev); err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by ID. It returns nil, nil when no row exists.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.Review, error) {
	if !validID(id) {
		return nil, nil
	}
	var rev models.Review
	err := r.db.GetContext(ctx, &rev, `SELECT * FROM reviews WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &rev, nil
}

// ListByProperty returns one page of a property's reviews, newest first.
func (r *ReviewRepository) ListByProperty(ctx context.Context, propertyID string, vis ReviewVisibility, limit, offset int) ([]*models.Review, int, error) {
	limit, offset = page(limit, offset)
	var c conditions
	c.add("property_id = ?", propertyID)
	if !vis.IncludeHidden {
		if vis.AuthorID != "" {
			c.add("(status = ? OR author_id = ?)", models.ReviewPublished, vis.AuthorID)
		} else {
			c.add("status = ?", models.ReviewPublished)
		}
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM reviews"+c.where()), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	query := r.db.Rebind("SELECT * FROM reviews" + c.where() + " ORDER BY created_at DESC LIMIT ? OFFSET ?")
	items := make([]*models.Review, 0)
	if err := r.db.SelectContext(ctx, &items, query, append(c.args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return items, total, nil
}

// ExistsForAuthor reports whether authorID has already reviewed propertyID.
func (r *ReviewRepository) ExistsForAuthor(ctx context.Context, propertyID, authorID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE property_id = $1 AND author_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, propertyID, authorID); err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return exists, nil
}

// Summary aggregates the published ratings of propertyID.
func (r *ReviewRepository) Summary(ctx context.Context, propertyID string) (RatingSummary, error) {
	var s RatingSummary
	query := `
		SELECT COUNT(*) AS count, COALESCE(AVG(rating), 0) AS average
		FROM reviews WHERE property_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &s, query, propertyID, models.ReviewPublished); err != nil {
		return RatingSummary{}, fmt.Errorf("failed to summarise reviews: %w", err)
	}
	return s, nil
}

// Update overwrites every mutable column of rev.
func (r *ReviewRepository) Update(ctx context.Context, rev *models.Review) error {
	query := `
		UPDATE reviews SET
			rating = :rating, title = :title, comment = :comment, status = :status,
			landlord_response = :landlord_response, responded_at = :responded_at,
			responded_by = :responded_by, updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`
	return execOne(ctx, r.db, query, rev, "review")
}

// Delete removes a review. It reports whether a row was deleted.
func (r *ReviewRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "reviews", id)
}
