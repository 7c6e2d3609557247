package models

import "time"

// Maintenance priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Maintenance statuses
const (
	MaintenanceOpen       = "open"
	MaintenanceInProgress = "in_progress"
	MaintenanceResolved   = "resolved"
	MaintenanceClosed     = "closed"
)

// MaintenanceRequest is a repair request raised against a property.
// TenantID is the reporting tenant, AssigneeID the record actor.
type MaintenanceRequest struct {
	ID              string     `json:"id" db:"id"`
	PropertyID      string     `json:"propertyId" db:"property_id"`
	TenantID        *string    `json:"tenantId,omitempty" db:"tenant_id"`
	AssigneeID      *string    `json:"assigneeId,omitempty" db:"assignee_id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Category        string     `json:"category" db:"category"`
	Priority        string     `json:"priority" db:"priority"`
	Status          string     `json:"status" db:"status"`
	ResolutionNotes string     `json:"resolutionNotes" db:"resolution_notes"`
	Cost            *float64   `json:"cost,omitempty" db:"cost"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty" db:"resolved_at"`
	ResolvedBy      *string    `json:"resolvedBy,omitempty" db:"resolved_by"`
	CreatedBy       string     `json:"createdBy" db:"created_by"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedBy       string     `json:"updatedBy" db:"updated_by"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ValidMaintenanceStatus reports whether s is a known status.
func ValidMaintenanceStatus(s string) bool {
	switch s {
	case MaintenanceOpen, MaintenanceInProgress, MaintenanceResolved, MaintenanceClosed:
		return true
	}
	return false
}
