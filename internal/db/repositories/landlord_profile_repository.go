package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

// LandlordProfileRepository handles landlord profile database operations
type LandlordProfileRepository struct {
	db *sqlx.DB
}

// NewLandlordProfileRepository creates a new LandlordProfileRepository
func NewLandlordProfileRepository(db *sqlx.DB) *LandlordProfileRepository {
	return &LandlordProfileRepository{db: db}
}

// Create inserts a profile, assigning an id when none is set.
func (r *LandlordProfileRepository) Create(ctx context.Context, p *models.LandlordProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.AgentIDs == nil {
		p.AgentIDs = []string{}
	}
	query := `
		INSERT INTO landlord_profiles (
			id, user_id, company_name, phone, email, bio, website, agent_ids,
			verified, verified_at, verified_by, created_by, created_at, updated_by, updated_at
		) VALUES (
			:id, :user_id, :company_name, :phone, :email, :bio, :website, :agent_ids,
			:verified, :verified_at, :verified_by, :created_by, :created_at, :updated_by, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create landlord profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID. It returns nil, nil when no row exists.
func (r *LandlordProfileRepository) GetByID(ctx context.Context, id string) (*models.LandlordProfile, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT * FROM landlord_profiles WHERE id = $1`, id)
}

// GetByUserID retrieves the profile owned by userID, or nil, nil.
func (r *LandlordProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.LandlordProfile, error) {
	return r.getOne(ctx, `SELECT * FROM landlord_profiles WHERE user_id = $1`, userID)
}

func (r *LandlordProfileRepository) getOne(ctx context.Context, query, arg string) (*models.LandlordProfile, error) {
	var p models.LandlordProfile
	err := r.db.GetContext(ctx, &p, query, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get landlord profile: %w", err)
	}
	return &p, nil
}

// Update overwrites every mutable column of p.
func (r *LandlordProfileRepository) Update(ctx context.Context, p *models.LandlordProfile) error {
	query := `
		UPDATE landlord_profiles SET
			company_name = :company_name, phone = :phone, email = :email, bio = :bio,
			website = :website, agent_ids = :agent_ids, verified = :verified,
			verified_at = :verified_at, verified_by = :verified_by,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`
	return execOne(ctx, r.db, query, p, "landlord profile")
}

// Delete removes a profile. It reports whether a row was deleted.
func (r *LandlordProfileRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "landlord_profiles", id)
}
