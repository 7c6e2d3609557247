package models

import (
	"time"

	"github.com/lib/pq"
)

// LandlordProfile is a landlord's public business profile. UserID is the
// owning landlord; AgentIDs may edit contact details on their behalf.
type LandlordProfile struct {
	ID          string         `json:"id" db:"id"`
	UserID      string         `json:"userId" db:"user_id"`
	CompanyName string         `json:"companyName" db:"company_name"`
	Phone       string         `json:"phone" db:"phone"`
	Email       string         `json:"email" db:"email"`
	Bio         string         `json:"bio" db:"bio"`
	Website     string         `json:"website" db:"website"`
	AgentIDs    pq.StringArray `json:"agentIds" db:"agent_ids"`
	Verified    bool           `json:"verified" db:"verified"`
	VerifiedAt  *time.Time     `json:"verifiedAt,omitempty" db:"verified_at"`
	VerifiedBy  *string        `json:"verifiedBy,omitempty" db:"verified_by"`
	CreatedBy   string         `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	UpdatedBy   string         `json:"updatedBy" db:"updated_by"`
	UpdatedAt   time.Time      `json:"updatedAt" db:"updated_at"`
}
