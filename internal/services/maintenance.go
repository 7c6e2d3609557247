package services

import (
	"context"
	"strings"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
)

const (
	msgMaintenanceNotFound = "Maintenance request not found"
	msgMaintenanceCreate   = "Not authorized to raise maintenance requests for this property"
	msgMaintenanceView     = "Not authorized to view this maintenance request"
	msgMaintenanceList     = "Not authorized to view maintenance requests for this property"
	msgMaintenanceUpdate   = "Not authorized to update this maintenance request"
	msgMaintenanceDelete   = "Not authorized to delete this maintenance request"
	msgMaintenanceResolve  = "Not authorized to resolve this maintenance request"
)

// MaintenanceView is a request with its property and actors resolved.
type MaintenanceView struct {
	*models.MaintenanceRequest
	Property *models.PropertySummary       `json:"property,omitempty"`
	Actors   map[string]models.UserSummary `json:"actors,omitempty"`
}

// CreateMaintenance is the payload of a new request.
type CreateMaintenance struct {
	PropertyID  string  `json:"propertyId"`
	TenantID    *string `json:"tenantId"`
	AssigneeID  *string `json:"assigneeId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
}

// UpdateMaintenance lists every field a request update may carry.
type UpdateMaintenance struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	Category        *string  `json:"category"`
	Priority        *string  `json:"priority"`
	Status          *string  `json:"status"`
	AssigneeID      *string  `json:"assigneeId"`
	ResolutionNotes *string  `json:"resolutionNotes"`
	Cost            *float64 `json:"cost"`
}

// Fields returns the submitted field names.
func (u UpdateMaintenance) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(u.Title != nil, "title")
	add(u.Description != nil, "description")
	add(u.Category != nil, "category")
	add(u.Priority != nil, "priority")
	add(u.Status != nil, "status")
	add(u.AssigneeID != nil, "assigneeId")
	add(u.ResolutionNotes != nil, "resolutionNotes")
	add(u.Cost != nil, "cost")
	return f
}

// ResolveMaintenance closes out a request.
type ResolveMaintenance struct {
	ResolutionNotes string   `json:"resolutionNotes"`
	Cost            *float64 `json:"cost"`
}

// MaintenanceListFilter narrows a property's maintenance listing.
type MaintenanceListFilter struct {
	Status   string
	Priority string
}

// MaintenanceService runs the lifecycle of maintenance requests.
type MaintenanceService struct {
	base
	store MaintenanceStore
}

// NewMaintenanceService creates a MaintenanceService.
func NewMaintenanceService(d Deps, store MaintenanceStore) *MaintenanceService {
	return &MaintenanceService{base: newBase(d), store: store}
}

// Create raises a request. A tenant's request always names the tenant.
func (s *MaintenanceService) Create(ctx context.Context, caller access.Caller, in CreateMaintenance) (view *MaintenanceView, err error) {
	defer func() { observe(access.ResourceMaintenance, "create", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceMaintenance, access.ActCreate, rel, msgMaintenanceCreate); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, access.Invalid("title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, access.Invalid("priority must be one of low, medium, high, urgent")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "general"
	}

	now := s.now()
	m := &models.MaintenanceRequest{
		PropertyID:  prop.ID,
		TenantID:    normalizeRef(in.TenantID),
		AssigneeID:  normalizeRef(in.AssigneeID),
		Title:       title,
		Description: in.Description,
		Category:    category,
		Priority:    priority,
		Status:      models.MaintenanceOpen,
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedBy:   caller.ID,
		UpdatedAt:   now,
	}
	if rel.CounterpartyOnly() {
		m.TenantID = strPtr(caller.ID)
		m.AssigneeID = nil
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, storeErr("create maintenance request", err)
	}
	return s.view(ctx, m, prop)
}

// Get returns one request.
func (s *MaintenanceService) Get(ctx context.Context, caller access.Caller, id string) (view *MaintenanceView, err error) {
	defer func() { observe(access.ResourceMaintenance, "read", err) }()

	m, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceMaintenance, access.ActRead, rel, msgMaintenanceView); err != nil {
		return nil, err
	}
	return s.view(ctx, m, prop)
}

// ListByProperty returns a property's requests, newest first.
func (s *MaintenanceService) ListByProperty(ctx context.Context, caller access.Caller, propertyID string, filter MaintenanceListFilter, p Page) (list *List[*MaintenanceView], err error) {
	defer func() { observe(access.ResourceMaintenance, "list", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, propertyID)
	if err != nil {
		return nil, err
	}
	scope, err := s.policy.ListScope(access.ResourceMaintenance, rel, caller.ID, msgMaintenanceList)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListByProperty(ctx, prop.ID, repositories.MaintenanceFilter{
		Scope:    scope,
		Status:   filter.Status,
		Priority: filter.Priority,
	}, p.Limit, p.Offset())
	if err != nil {
		return nil, storeErr("list maintenance requests", err)
	}
	views := make([]*MaintenanceView, 0, len(items))
	for _, m := range items {
		if !scope.Matches(m.TenantID, m.AssigneeID) {
			continue
		}
		v, err := s.view(ctx, m, prop)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return newList(views, total, p), nil
}

// Update merges the whitelisted subset of in.
func (s *MaintenanceService) Update(ctx context.Context, caller access.Caller, id string, in UpdateMaintenance) (view *MaintenanceView, err error) {
	defer func() { observe(access.ResourceMaintenance, "update", err) }()

	m, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.policy.UpdateFields(access.ResourceMaintenance, rel, in.Fields(), msgMaintenanceUpdate)
	if err != nil {
		return nil, err
	}
	if fields.Has("title") && strings.TrimSpace(*in.Title) == "" {
		return nil, access.Invalid("title cannot be empty")
	}
	if fields.Has("priority") && !models.ValidPriority(*in.Priority) {
		return nil, access.Invalid("priority must be one of low, medium, high, urgent")
	}
	if fields.Has("status") && !models.ValidMaintenanceStatus(*in.Status) {
		return nil, access.Invalid("status must be one of open, in_progress, resolved, closed")
	}
	if fields.Has("cost") && *in.Cost < 0 {
		return nil, access.Invalid("cost cannot be negative")
	}

	now := s.now()
	if fields.Has("title") {
		m.Title = strings.TrimSpace(*in.Title)
	}
	if fields.Has("description") {
		m.Description = *in.Description
	}
	if fields.Has("category") {
		m.Category = *in.Category
	}
	if fields.Has("priority") {
		m.Priority = *in.Priority
	}
	if fields.Has("status") {
		m.Status = *in.Status
		if m.Status == models.MaintenanceResolved {
			m.ResolvedAt = timePtr(now)
			m.ResolvedBy = strPtr(caller.ID)
		}
	}
	if fields.Has("assigneeId") {
		m.AssigneeID = normalizeRef(in.AssigneeID)
	}
	if fields.Has("resolutionNotes") {
		m.ResolutionNotes = *in.ResolutionNotes
	}
	if fields.Has("cost") {
		m.Cost = in.Cost
	}
	m.UpdatedBy = caller.ID
	m.UpdatedAt = now

	if err := s.store.Update(ctx, m); err != nil {
		return nil, updateErr("update maintenance request", msgMaintenanceNotFound, err)
	}
	return s.view(ctx, m, prop)
}

// Delete removes a request. A tenant may withdraw a request naming them.
func (s *MaintenanceService) Delete(ctx context.Context, caller access.Caller, id string) (err error) {
	defer func() { observe(access.ResourceMaintenance, "delete", err) }()

	m, _, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(access.ResourceMaintenance, access.ActDelete, rel, msgMaintenanceDelete); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, m.ID)
	if err != nil {
		return storeErr("delete maintenance request", err)
	}
	if !deleted {
		return access.NotFound(msgMaintenanceNotFound)
	}
	return nil
}

// Resolve marks the request resolved, stamping who resolved it and when.
func (s *MaintenanceService) Resolve(ctx context.Context, caller access.Caller, id string, in ResolveMaintenance) (view *MaintenanceView, err error) {
	defer func() { observe(access.ResourceMaintenance, "resolve", err) }()

	m, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceMaintenance, access.ActResolve, rel, msgMaintenanceResolve); err != nil {
		return nil, err
	}
	if m.Status == models.MaintenanceResolved || m.Status == models.MaintenanceClosed {
		return nil, access.Invalid("maintenance request is already " + m.Status)
	}
	if in.Cost != nil && *in.Cost < 0 {
		return nil, access.Invalid("cost cannot be negative")
	}

	now := s.now()
	m.Status = models.MaintenanceResolved
	m.ResolvedAt = timePtr(now)
	m.ResolvedBy = strPtr(caller.ID)
	if in.ResolutionNotes != "" {
		m.ResolutionNotes = in.ResolutionNotes
	}
	if in.Cost != nil {
		m.Cost = in.Cost
	}
	m.UpdatedBy = caller.ID
	m.UpdatedAt = now

	if err := s.store.Update(ctx, m); err != nil {
		return nil, updateErr("resolve maintenance request", msgMaintenanceNotFound, err)
	}
	return s.view(ctx, m, prop)
}

func (s *MaintenanceService) load(ctx context.Context, caller access.Caller, id string) (*models.MaintenanceRequest, *models.Property, access.Relations, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, access.Relations{}, storeErr("load maintenance request", err)
	}
	if m == nil {
		return nil, nil, access.Relations{}, access.NotFound(msgMaintenanceNotFound)
	}
	prop, rel, err := s.resolveProperty(ctx, caller, m.PropertyID)
	if err != nil {
		return nil, nil, access.Relations{}, err
	}
	rel = rel.Scoped(caller.ID, m.TenantID).WithRecordActor(caller.ID, m.AssigneeID)
	return m, prop, rel, nil
}

func (s *MaintenanceService) view(ctx context.Context, m *models.MaintenanceRequest, prop *models.Property) (*MaintenanceView, error) {
	actors, err := s.actors(ctx, deref(m.TenantID), deref(m.AssigneeID), deref(m.ResolvedBy), m.CreatedBy, m.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &MaintenanceView{MaintenanceRequest: m, Property: prop.Summary(), Actors: actors}, nil
}
