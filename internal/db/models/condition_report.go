package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// Condition report types
const (
	ReportMoveIn   = "move_in"
	ReportMoveOut  = "move_out"
	ReportPeriodic = "periodic"
)

// Condition report statuses
const (
	ReportDraft            = "draft"
	ReportPendingSignature = "pending_signature"
	ReportSigned           = "signed"
)

// ConditionItem records the state of one area of the property.
type ConditionItem struct {
	Area      string `json:"area"`
	Condition string `json:"condition"` // excellent, good, fair, poor, damaged
	Notes     string `json:"notes,omitempty"`
}

// ConditionItems is stored as a JSONB array.
type ConditionItems []ConditionItem

// Value implements driver.Valuer.
func (c ConditionItems) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *ConditionItems) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = ConditionItems{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("condition items: unsupported source type")
	}
	return json.Unmarshal(data, c)
}

// ConditionReport documents the state of a property at move-in, move-out
// or a periodic check, countersigned by landlord and tenant.
type ConditionReport struct {
	ID                    string         `json:"id" db:"id"`
	PropertyID            string         `json:"propertyId" db:"property_id"`
	TenantID              *string        `json:"tenantId,omitempty" db:"tenant_id"`
	Type                  string         `json:"type" db:"type"`
	Status                string         `json:"status" db:"status"`
	Items                 ConditionItems `json:"items" db:"items"`
	Notes                 string         `json:"notes" db:"notes"`
	Attachments           pq.StringArray `json:"attachments" db:"attachments"`
	SignedByLandlord      bool           `json:"signedByLandlord" db:"signed_by_landlord"`
	LandlordSignatureDate *time.Time     `json:"landlordSignatureDate,omitempty" db:"landlord_signature_date"`
	SignedByTenant        bool           `json:"signedByTenant" db:"signed_by_tenant"`
	TenantSignatureDate   *time.Time     `json:"tenantSignatureDate,omitempty" db:"tenant_signature_date"`
	TenantComments        string         `json:"tenantComments" db:"tenant_comments"`
	CreatedBy             string         `json:"createdBy" db:"created_by"`
	CreatedAt             time.Time      `json:"createdAt" db:"created_at"`
	UpdatedBy             string         `json:"updatedBy" db:"updated_by"`
	UpdatedAt             time.Time      `json:"updatedAt" db:"updated_at"`
}

// ValidReportType reports whether t is a known report type.
func ValidReportType(t string) bool {
	return t == ReportMoveIn || t == ReportMoveOut || t == ReportPeriodic
}

// ValidReportStatus reports whether s is a known report status.
func ValidReportStatus(s string) bool {
	return s == ReportDraft || s == ReportPendingSignature || s == ReportSigned
}
