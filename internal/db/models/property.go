package models

import (
	"time"

	"github.com/lib/pq"
)

// Property statuses
const (
	PropertyAvailable = "available"
	PropertyLet       = "let"
	PropertyArchived  = "archived"
)

// Property is the parent entity every guarded record hangs off. LandlordID
// is the owner, AgentID the optional delegate, TenantIDs the counterparties.
type Property struct {
	ID          string         `json:"id" db:"id"`
	LandlordID  string         `json:"landlordId" db:"landlord_id"`
	AgentID     *string        `json:"agentId,omitempty" db:"agent_id"`
	TenantIDs   pq.StringArray `json:"tenantIds" db:"tenant_ids"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Address     string         `json:"address" db:"address"`
	City        string         `json:"city" db:"city"`
	Rent        float64        `json:"rent" db:"rent"`
	Bedrooms    int            `json:"bedrooms" db:"bedrooms"`
	Status      string         `json:"status" db:"status"`
	CreatedBy   string         `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	UpdatedBy   string         `json:"updatedBy" db:"updated_by"`
	UpdatedAt   time.Time      `json:"updatedAt" db:"updated_at"`
}

// PropertySummary is the projection of a property embedded in record responses.
type PropertySummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Summary projects p for embedding.
func (p *Property) Summary() *PropertySummary {
	return &PropertySummary{ID: p.ID, Title: p.Title, Address: p.Address, City: p.City}
}

// HasTenant reports whether id is a current tenant.
func (p *Property) HasTenant(id string) bool {
	for _, t := range p.TenantIDs {
		if t == id {
			return true
		}
	}
	return false
}

// ValidPropertyStatus reports whether s is a known property status.
func ValidPropertyStatus(s string) bool {
	return s == PropertyAvailable || s == PropertyLet || s == PropertyArchived
}
