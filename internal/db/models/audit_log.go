package models

import "time"

// AuditLog records an accepted mutation.
type AuditLog struct {
	ID           string                 `json:"id" db:"id"`
	UserID       *string                `json:"userId,omitempty" db:"user_id"`
	Action       string                 `json:"action" db:"action"` // "condition_report.sign", "inspection.update"
	ResourceType *string                `json:"resourceType,omitempty" db:"resource_type"`
	ResourceID   *string                `json:"resourceId,omitempty" db:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"-"`
	IPAddress    *string                `json:"ipAddress,omitempty" db:"ip_address"`
	CreatedAt    time.Time              `json:"createdAt" db:"created_at"`
}
