package models

import "time"

// Review statuses
const (
	ReviewPublished = "published"
	ReviewHidden    = "hidden"
)

// Review is a tenant's rating of a property. AuthorID is the record actor.
type Review struct {
	ID               string     `json:"id" db:"id"`
	PropertyID       string     `json:"propertyId" db:"property_id"`
	AuthorID         string     `json:"authorId" db:"author_id"`
	Rating           int        `json:"rating" db:"rating"`
	Title            string     `json:"title" db:"title"`
	Comment          string     `json:"comment" db:"comment"`
	Status           string     `json:"status" db:"status"`
	LandlordResponse string     `json:"landlordResponse" db:"landlord_response"`
	RespondedAt      *time.Time `json:"respondedAt,omitempty" db:"responded_at"`
	RespondedBy      *string    `json:"respondedBy,omitempty" db:"responded_by"`
	CreatedBy        string     `json:"createdBy" db:"created_by"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedBy        string     `json:"updatedBy" db:"updated_by"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// ValidRating reports whether r is within 1..5.
func ValidRating(r int) bool { return r >= 1 && r <= 5 }

// ValidReviewStatus reports whether s is a known review status.
func ValidReviewStatus(s string) bool { return s == ReviewPublished || s == ReviewHidden }
