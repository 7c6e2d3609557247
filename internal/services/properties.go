package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/auth"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
	"github.com/propertydesk/propertydesk/internal/telemetry"
)

const (
	msgPropertyNotFound = "Property not found"
	msgPropertyCreate   = "Only landlords can create properties"
	msgPropertyUpdate   = "Not authorized to update this property"
	msgPropertyDelete   = "Not authorized to delete this property"
	msgPropertyTenants  = "Not authorized to manage tenants for this property"
)

// ListingCache stores rendered public listing pages. Implementations fail
// open: a broken cache reads as a miss and drops writes.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	Invalidate(ctx context.Context)
}

// PropertyView is a property with its landlord and agent resolved.
type PropertyView struct {
	*models.Property
	Actors map[string]models.UserSummary `json:"actors,omitempty"`
}

// CreateProperty is the payload of a new listing.
type CreateProperty struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Rent        float64 `json:"rent"`
	Bedrooms    int     `json:"bedrooms"`
	Status      string  `json:"status"`
	AgentID     *string `json:"agentId"`
}

// UpdateProperty lists every field a property update may carry.
type UpdateProperty struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Address     *string  `json:"address"`
	City        *string  `json:"city"`
	Rent        *float64 `json:"rent"`
	Bedrooms    *int     `json:"bedrooms"`
	Status      *string  `json:"status"`
	AgentID     *string  `json:"agentId"`
}

// Fields returns the submitted field names.
func (u UpdateProperty) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(u.Title != nil, "title")
	add(u.Description != nil, "description")
	add(u.Address != nil, "address")
	add(u.City != nil, "city")
	add(u.Rent != nil, "rent")
	add(u.Bedrooms != nil, "bedrooms")
	add(u.Status != nil, "status")
	add(u.AgentID != nil, "agentId")
	return f
}

// PropertyListFilter narrows the public listing.
type PropertyListFilter struct {
	Status     string   `json:"status,omitempty"`
	City       string   `json:"city,omitempty"`
	LandlordID string   `json:"landlordId,omitempty"`
	MinRent    *float64 `json:"minRent,omitempty"`
	MaxRent    *float64 `json:"maxRent,omitempty"`
}

func (f PropertyListFilter) cacheKey(p Page) string {
	rent := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%g", *v)
	}
	return fmt.Sprintf("status=%s|city=%s|landlord=%s|min=%s|max=%s|page=%d|limit=%d",
		f.Status, strings.ToLower(f.City), f.LandlordID, rent(f.MinRent), rent(f.MaxRent), p.Page, p.Limit)
}

// PropertyService runs the lifecycle of properties themselves. Unlike the
// child resources, a property is its own parent.
type PropertyService struct {
	base
	cache ListingCache
}

// NewPropertyService creates a PropertyService. cache may be nil.
func NewPropertyService(d Deps, cache ListingCache) *PropertyService {
	return &PropertyService{base: newBase(d), cache: cache}
}

// Create lists a new property owned by the caller.
func (s *PropertyService) Create(ctx context.Context, caller access.Caller, in CreateProperty) (view *PropertyView, err error) {
	defer func() { observe(access.ResourceProperty, "create", err) }()

	if caller.Anonymous() || !auth.HasAnyRole(caller.Role, auth.RoleLandlord, auth.RoleAdmin) {
		return nil, access.Forbidden(msgPropertyCreate)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, access.Invalid("title is required")
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, access.Invalid("address is required")
	}
	if in.Rent < 0 {
		return nil, access.Invalid("rent cannot be negative")
	}
	if in.Bedrooms < 0 {
		return nil, access.Invalid("bedrooms cannot be negative")
	}
	status := in.Status
	if status == "" {
		status = models.PropertyAvailable
	}
	if !models.ValidPropertyStatus(status) {
		return nil, access.Invalid("status must be one of available, let, archived")
	}

	now := s.now()
	p := &models.Property{
		LandlordID:  caller.ID,
		AgentID:     normalizeRef(in.AgentID),
		TenantIDs:   pq.StringArray{},
		Title:       title,
		Description: in.Description,
		Address:     address,
		City:        strings.TrimSpace(in.City),
		Rent:        in.Rent,
		Bedrooms:    in.Bedrooms,
		Status:      status,
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedBy:   caller.ID,
		UpdatedAt:   now,
	}
	if err := s.properties.Create(ctx, p); err != nil {
		return nil, storeErr("create property", err)
	}
	s.invalidate(ctx)
	return s.view(ctx, p, true)
}

// Get returns one property. Tenant ids are only shown to the landlord, the
// agent and the tenants themselves.
func (s *PropertyService) Get(ctx context.Context, caller access.Caller, id string) (view *PropertyView, err error) {
	defer func() { observe(access.ResourceProperty, "read", err) }()

	p, rel, err := s.resolveProperty(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceProperty, access.ActRead, rel, msgPropertyNotFound); err != nil {
		return nil, err
	}
	return s.view(ctx, p, rel.Manager() || rel.Counterparty)
}

// List returns the public listing. Pages are served from the listing cache
// when one is configured.
func (s *PropertyService) List(ctx context.Context, caller access.Caller, filter PropertyListFilter, p Page) (list *List[*PropertyView], err error) {
	defer func() { observe(access.ResourceProperty, "list", err) }()

	if err := s.policy.Authorize(access.ResourceProperty, access.ActList, access.Relations{}, msgPropertyNotFound); err != nil {
		return nil, err
	}
	if filter.Status != "" && !models.ValidPropertyStatus(filter.Status) {
		return nil, access.Invalid("status must be one of available, let, archived")
	}
	if filter.MinRent != nil && filter.MaxRent != nil && *filter.MinRent > *filter.MaxRent {
		return nil, access.Invalid("min_rent cannot exceed max_rent")
	}

	key := filter.cacheKey(p)
	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var cached List[*PropertyView]
			if err := json.Unmarshal(data, &cached); err == nil {
				telemetry.ListingCacheHitsTotal.Inc()
				return &cached, nil
			}
			slog.Warn("discarding unreadable listing cache entry", "key", key)
		}
		telemetry.ListingCacheMissesTotal.Inc()
	}

	items, total, err := s.properties.List(ctx, repositories.PropertyFilter{
		Status:     filter.Status,
		City:       filter.City,
		LandlordID: filter.LandlordID,
		MinRent:    filter.MinRent,
		MaxRent:    filter.MaxRent,
	}, p.Limit, p.Offset())
	if err != nil {
		return nil, storeErr("list properties", err)
	}
	views := make([]*PropertyView, 0, len(items))
	for _, item := range items {
		v, err := s.view(ctx, item, false)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	list = newList(views, total, p)

	if s.cache != nil {
		if data, err := json.Marshal(list); err == nil {
			s.cache.Set(ctx, key, data)
		} else {
			slog.Warn("failed to encode listing page for cache", "error", err)
		}
	}
	return list, nil
}

// Update merges the whitelisted subset of in.
func (s *PropertyService) Update(ctx context.Context, caller access.Caller, id string, in UpdateProperty) (view *PropertyView, err error) {
	defer func() { observe(access.ResourceProperty, "update", err) }()

	p, rel, err := s.resolveProperty(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.policy.UpdateFields(access.ResourceProperty, rel, in.Fields(), msgPropertyUpdate)
	if err != nil {
		return nil, err
	}
	if fields.Has("title") && strings.TrimSpace(*in.Title) == "" {
		return nil, access.Invalid("title cannot be empty")
	}
	if fields.Has("address") && strings.TrimSpace(*in.Address) == "" {
		return nil, access.Invalid("address cannot be empty")
	}
	if fields.Has("rent") && *in.Rent < 0 {
		return nil, access.Invalid("rent cannot be negative")
	}
	if fields.Has("bedrooms") && *in.Bedrooms < 0 {
		return nil, access.Invalid("bedrooms cannot be negative")
	}
	if fields.Has("status") && !models.ValidPropertyStatus(*in.Status) {
		return nil, access.Invalid("status must be one of available, let, archived")
	}

	if fields.Has("title") {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if fields.Has("description") {
		p.Description = *in.Description
	}
	if fields.Has("address") {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if fields.Has("city") {
		p.City = strings.TrimSpace(*in.City)
	}
	if fields.Has("rent") {
		p.Rent = *in.Rent
	}
	if fields.Has("bedrooms") {
		p.Bedrooms = *in.Bedrooms
	}
	if fields.Has("status") {
		p.Status = *in.Status
	}
	if fields.Has("agentId") {
		p.AgentID = normalizeRef(in.AgentID)
	}
	p.UpdatedBy = caller.ID
	p.UpdatedAt = s.now()

	if err := s.properties.Update(ctx, p); err != nil {
		return nil, updateErr("update property", msgPropertyNotFound, err)
	}
	s.invalidate(ctx)
	return s.view(ctx, p, true)
}

// Delete removes a property. Only the landlord may delete it.
func (s *PropertyService) Delete(ctx context.Context, caller access.Caller, id string) (err error) {
	defer func() { observe(access.ResourceProperty, "delete", err) }()

	p, rel, err := s.resolveProperty(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(access.ResourceProperty, access.ActDelete, rel, msgPropertyDelete); err != nil {
		return err
	}
	deleted, err := s.properties.Delete(ctx, p.ID)
	if err != nil {
		return storeErr("delete property", err)
	}
	if !deleted {
		return access.NotFound(msgPropertyNotFound)
	}
	s.invalidate(ctx)
	return nil
}

// AddTenant adds tenantID to the property's tenants. Adding a current
// tenant is a no-op.
func (s *PropertyService) AddTenant(ctx context.Context, caller access.Caller, id, tenantID string) (view *PropertyView, err error) {
	defer func() { observe(access.ResourceProperty, "add_tenant", err) }()

	p, rel, err := s.authorizeTenants(ctx, caller, id, tenantID)
	if err != nil {
		return nil, err
	}
	if s.users != nil {
		users, err := s.users.GetByIDs(ctx, []string{tenantID})
		if err != nil {
			return nil, storeErr("look up tenant", err)
		}
		if len(users) == 0 {
			return nil, access.NotFound("User not found")
		}
	}
	if p.HasTenant(tenantID) {
		return s.view(ctx, p, rel.Manager())
	}
	p.TenantIDs = append(p.TenantIDs, tenantID)
	return s.saveTenants(ctx, caller, p)
}

// RemoveTenant drops tenantID from the property's tenants.
func (s *PropertyService) RemoveTenant(ctx context.Context, caller access.Caller, id, tenantID string) (view *PropertyView, err error) {
	defer func() { observe(access.ResourceProperty, "remove_tenant", err) }()

	p, _, err := s.authorizeTenants(ctx, caller, id, tenantID)
	if err != nil {
		return nil, err
	}
	if !p.HasTenant(tenantID) {
		return nil, access.NotFound("Tenant not found on this property")
	}
	kept := make(pq.StringArray, 0, len(p.TenantIDs))
	for _, t := range p.TenantIDs {
		if t != tenantID {
			kept = append(kept, t)
		}
	}
	p.TenantIDs = kept
	return s.saveTenants(ctx, caller, p)
}

func (s *PropertyService) authorizeTenants(ctx context.Context, caller access.Caller, id, tenantID string) (*models.Property, access.Relations, error) {
	p, rel, err := s.resolveProperty(ctx, caller, id)
	if err != nil {
		return nil, access.Relations{}, err
	}
	if err := s.policy.Authorize(access.ResourceProperty, access.ActManageTenants, rel, msgPropertyTenants); err != nil {
		return nil, access.Relations{}, err
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, access.Relations{}, access.Invalid("tenantId is required")
	}
	return p, rel, nil
}

func (s *PropertyService) saveTenants(ctx context.Context, caller access.Caller, p *models.Property) (*PropertyView, error) {
	p.UpdatedBy = caller.ID
	p.UpdatedAt = s.now()
	if err := s.properties.Update(ctx, p); err != nil {
		return nil, updateErr("update property tenants", msgPropertyNotFound, err)
	}
	s.invalidate(ctx)
	return s.view(ctx, p, true)
}

func (s *PropertyService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// view renders p. Without showTenants the tenant ids are blanked on a copy
// so the stored record is left untouched.
func (s *PropertyService) view(ctx context.Context, p *models.Property, showTenants bool) (*PropertyView, error) {
	actors, err := s.actors(ctx, p.LandlordID, deref(p.AgentID))
	if err != nil {
		return nil, err
	}
	if !showTenants {
		cp := *p
		cp.TenantIDs = pq.StringArray{}
		p = &cp
	}
	return &PropertyView{Property: p, Actors: actors}, nil
}
