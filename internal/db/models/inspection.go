package models

import (
	"time"

	"github.com/lib/pq"
)

// Inspection types
const (
	InspectionRoutine = "routine"
	InspectionMoveIn  = "move_in"
	InspectionMoveOut = "move_out"
)

// Inspection statuses
const (
	InspectionScheduled = "scheduled"
	InspectionCompleted = "completed"
	InspectionCancelled = "cancelled"
)

// Inspection is a scheduled visit to a property. InspectorID is the
// record-specific actor; TenantID the tenant who must confirm the visit.
type Inspection struct {
	ID                string         `json:"id" db:"id"`
	PropertyID        string         `json:"propertyId" db:"property_id"`
	TenantID          *string        `json:"tenantId,omitempty" db:"tenant_id"`
	InspectorID       *string        `json:"inspectorId,omitempty" db:"inspector_id"`
	Type              string         `json:"type" db:"type"`
	Status            string         `json:"status" db:"status"`
	ScheduledDate     time.Time      `json:"scheduledDate" db:"scheduled_date"`
	Notes             string         `json:"notes" db:"notes"`
	Findings          string         `json:"findings" db:"findings"`
	TenantConfirmed   bool           `json:"tenantConfirmed" db:"tenant_confirmed"`
	TenantConfirmedAt *time.Time     `json:"tenantConfirmedAt,omitempty" db:"tenant_confirmed_at"`
	TenantNotes       string         `json:"tenantNotes" db:"tenant_notes"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty" db:"completed_at"`
	ReminderSentAt    *time.Time     `json:"reminderSentAt,omitempty" db:"reminder_sent_at"`
	RemindedIDs       pq.StringArray `json:"-" db:"reminded_ids"`
	CreatedBy         string         `json:"createdBy" db:"created_by"`
	CreatedAt         time.Time      `json:"createdAt" db:"created_at"`
	UpdatedBy         string         `json:"updatedBy" db:"updated_by"`
	UpdatedAt         time.Time      `json:"updatedAt" db:"updated_at"`
}

// ValidInspectionType reports whether t is a known inspection type.
func ValidInspectionType(t string) bool {
	return t == InspectionRoutine || t == InspectionMoveIn || t == InspectionMoveOut
}

// ValidInspectionStatus reports whether s is a known inspection status.
func ValidInspectionStatus(s string) bool {
	return s == InspectionScheduled || s == InspectionCompleted || s == InspectionCancelled
}
