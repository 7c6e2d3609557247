// Package services implements the guarded resource lifecycle for every
// property-scoped resource. Each service resolves the caller's relations
// through internal/access, asks the policy whether the operation and the
// submitted fields are allowed, and only then touches its store.
//
// Every method takes the caller explicitly and returns *access.Error values
// for NotFound, Forbidden, NoValidUpdates, Invalid and Internal outcomes.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
	"github.com/propertydesk/propertydesk/internal/telemetry"
)

// PropertyStore persists properties.
type PropertyStore interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id string) (*models.Property, error)
	List(ctx context.Context, filter repositories.PropertyFilter, limit, offset int) ([]*models.Property, int, error)
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, id string) (bool, error)
	TenantIDsForLandlord(ctx context.Context, landlordID string) ([]string, error)
}

// ConditionReportStore persists condition reports.
type ConditionReportStore interface {
	Create(ctx context.Context, r *models.ConditionReport) error
	GetByID(ctx context.Context, id string) (*models.ConditionReport, error)
	ListByProperty(ctx context.Context, propertyID string, scope access.Scope, limit, offset int) ([]*models.ConditionReport, int, error)
	Update(ctx context.Context, r *models.ConditionReport) error
	Delete(ctx context.Context, id string) (bool, error)
}

// InspectionStore persists inspections.
type InspectionStore interface {
	Create(ctx context.Context, in *models.Inspection) error
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	ListByProperty(ctx context.Context, propertyID string, scope access.Scope, limit, offset int) ([]*models.Inspection, int, error)
	Update(ctx context.Context, in *models.Inspection) error
	Delete(ctx context.Context, id string) (bool, error)
}

// ReviewStore persists reviews.
type ReviewStore interface {
	Create(ctx context.Context, r *models.Review) error
	GetByID(ctx context.Context, id string) (*models.Review, error)
	ListByProperty(ctx context.Context, propertyID string, vis repositories.ReviewVisibility, limit, offset int) ([]*models.Review, int, error)
	ExistsForAuthor(ctx context.Context, propertyID, authorID string) (bool, error)
	Summary(ctx context.Context, propertyID string) (repositories.RatingSummary, error)
	Update(ctx context.Context, r *models.Review) error
	Delete(ctx context.Context, id string) (bool, error)
}

// MaintenanceStore persists maintenance requests.
type MaintenanceStore interface {
	Create(ctx context.Context, m *models.MaintenanceRequest) error
	GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error)
	ListByProperty(ctx context.Context, propertyID string, filter repositories.MaintenanceFilter, limit, offset int) ([]*models.MaintenanceRequest, int, error)
	Update(ctx context.Context, m *models.MaintenanceRequest) error
	Delete(ctx context.Context, id string) (bool, error)
}

// LandlordProfileStore persists landlord profiles.
type LandlordProfileStore interface {
	Create(ctx context.Context, p *models.LandlordProfile) error
	GetByID(ctx context.Context, id string) (*models.LandlordProfile, error)
	GetByUserID(ctx context.Context, userID string) (*models.LandlordProfile, error)
	Update(ctx context.Context, p *models.LandlordProfile) error
	Delete(ctx context.Context, id string) (bool, error)
}

// UserDirectory resolves actor ids to users for response embedding.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Policy     *access.Policy
	Properties PropertyStore
	Users      UserDirectory
	// Now defaults to time.Now. Tests pin it.
	Now func() time.Time
}

// base carries the shared collaborators and the property resolver.
type base struct {
	policy     *access.Policy
	properties PropertyStore
	users      UserDirectory
	parents    *access.Resolver
	now        func() time.Time
}

func newBase(d Deps) base {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return base{
		policy:     d.Policy,
		properties: d.Properties,
		users:      d.Users,
		parents:    access.NewResolver(PropertyParents(d.Properties), "Property"),
		now:        func() time.Time { return now().UTC() },
	}
}

// PropertyParents adapts a PropertyStore to the resolver: the landlord is
// the owner, the agent the delegate and the tenants the counterparties.
func PropertyParents(store PropertyStore) access.ParentLoader {
	return access.ParentLoaderFunc(func(ctx context.Context, id string) (*access.Parent, error) {
		p, err := store.GetByID(ctx, id)
		if err != nil || p == nil {
			return nil, err
		}
		return propertyParent(p), nil
	})
}

func propertyParent(p *models.Property) *access.Parent {
	parent := &access.Parent{
		ID:              p.ID,
		OwnerID:         p.LandlordID,
		CounterpartyIDs: []string(p.TenantIDs),
		Entity:          p,
	}
	if p.AgentID != nil && *p.AgentID != "" {
		parent.DelegateIDs = []string{*p.AgentID}
	}
	return parent
}

// resolveProperty loads the parent property and relates caller to it.
func (b *base) resolveProperty(ctx context.Context, caller access.Caller, propertyID string) (*models.Property, access.Relations, error) {
	parent, rel, err := b.parents.Resolve(ctx, caller, propertyID)
	if err != nil {
		return nil, access.Relations{}, err
	}
	prop, _ := parent.Entity.(*models.Property)
	return prop, rel, nil
}

// actors resolves the distinct non-empty ids to user summaries.
func (b *base) actors(ctx context.Context, ids ...string) (map[string]models.UserSummary, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	out := make(map[string]models.UserSummary, len(unique))
	if len(unique) == 0 || b.users == nil {
		return out, nil
	}
	sort.Strings(unique)
	users, err := b.users.GetByIDs(ctx, unique)
	if err != nil {
		return nil, access.Internal(fmt.Errorf("failed to resolve actors: %w", err))
	}
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// NewPage normalises page and limit: page defaults to 1, limit to 20 with a
// ceiling of 100.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return Page{Page: page, Limit: limit}
}

// Offset is the number of rows skipped by p.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// List is one page of results.
type List[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func newList[T any](items []T, total int, p Page) *List[T] {
	if items == nil {
		items = []T{}
	}
	return &List[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

// observe counts one lifecycle operation by outcome.
func observe(resource, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(access.KindOf(err))
	}
	telemetry.ResourceOperationsTotal.WithLabelValues(resource, operation, outcome).Inc()
}

// storeErr wraps a store failure as Internal.
func storeErr(action string, err error) error {
	return access.Internal(fmt.Errorf("failed to %s: %w", action, err))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// normalizeRef turns an empty string reference into nil.
func normalizeRef(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
