package services

import (
	"context"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

const (
	msgInspectionNotFound = "Inspection not found"
	msgInspectionCreate   = "Not authorized to schedule inspections for this property"
	msgInspectionView     = "Not authorized to view this inspection"
	msgInspectionList     = "Not authorized to view inspections for this property"
	msgInspectionUpdate   = "Not authorized to update this inspection"
	msgInspectionDelete   = "Not authorized to delete this inspection"
	msgInspectionConfirm  = "Not authorized to confirm this inspection"
	msgInspectionComplete = "Not authorized to complete this inspection"
)

// InspectionView is an inspection with its property and actors resolved.
type InspectionView struct {
	*models.Inspection
	Property *models.PropertySummary       `json:"property,omitempty"`
	Actors   map[string]models.UserSummary `json:"actors,omitempty"`
}

// CreateInspection is the payload of a new inspection.
type CreateInspection struct {
	PropertyID    string    `json:"propertyId"`
	TenantID      *string   `json:"tenantId"`
	InspectorID   *string   `json:"inspectorId"`
	Type          string    `json:"type"`
	ScheduledDate Timestamp `json:"scheduledDate"`
	Notes         string    `json:"notes"`
}

// UpdateInspection lists every field an inspection update may carry.
type UpdateInspection struct {
	Type            *string    `json:"type"`
	ScheduledDate   *Timestamp `json:"scheduledDate"`
	Notes           *string    `json:"notes"`
	Status          *string    `json:"status"`
	InspectorID     *string    `json:"inspectorId"`
	TenantID        *string    `json:"tenantId"`
	Findings        *string    `json:"findings"`
	TenantConfirmed *bool      `json:"tenantConfirmed"`
	TenantNotes     *string    `json:"tenantNotes"`
}

// Fields returns the submitted field names.
func (u UpdateInspection) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(u.Type != nil, "type")
	add(u.ScheduledDate != nil, "scheduledDate")
	add(u.Notes != nil, "notes")
	add(u.Status != nil, "status")
	add(u.InspectorID != nil, "inspectorId")
	add(u.TenantID != nil, "tenantId")
	add(u.Findings != nil, "findings")
	add(u.TenantConfirmed != nil, "tenantConfirmed")
	add(u.TenantNotes != nil, "tenantNotes")
	return f
}

// ConfirmInspection carries the tenant's optional note on confirmation.
type ConfirmInspection struct {
	Notes *string `json:"notes"`
}

// CompleteInspection carries the inspector's findings.
type CompleteInspection struct {
	Findings *string `json:"findings"`
}

// InspectionService runs the lifecycle of inspections.
type InspectionService struct {
	base
	store InspectionStore
}

// NewInspectionService creates an InspectionService.
func NewInspectionService(d Deps, store InspectionStore) *InspectionService {
	return &InspectionService{base: newBase(d), store: store}
}

// Create schedules an inspection.
func (s *InspectionService) Create(ctx context.Context, caller access.Caller, in CreateInspection) (view *InspectionView, err error) {
	defer func() { observe(access.ResourceInspection, "create", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceInspection, access.ActCreate, rel, msgInspectionCreate); err != nil {
		return nil, err
	}
	if in.ScheduledDate.IsZero() {
		return nil, access.Invalid("scheduledDate is required")
	}
	kind := in.Type
	if kind == "" {
		kind = models.InspectionRoutine
	}
	if !models.ValidInspectionType(kind) {
		return nil, access.Invalid("type must be one of routine, move_in, move_out")
	}

	now := s.now()
	insp := &models.Inspection{
		PropertyID:    prop.ID,
		TenantID:      normalizeRef(in.TenantID),
		InspectorID:   normalizeRef(in.InspectorID),
		Type:          kind,
		Status:        models.InspectionScheduled,
		ScheduledDate: in.ScheduledDate.Time,
		Notes:         in.Notes,
		CreatedBy:     caller.ID,
		CreatedAt:     now,
		UpdatedBy:     caller.ID,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, insp); err != nil {
		return nil, storeErr("create inspection", err)
	}
	return s.view(ctx, insp, prop)
}

// Get returns one inspection.
func (s *InspectionService) Get(ctx context.Context, caller access.Caller, id string) (view *InspectionView, err error) {
	defer func() { observe(access.ResourceInspection, "read", err) }()

	insp, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceInspection, access.ActRead, rel, msgInspectionView); err != nil {
		return nil, err
	}
	return s.view(ctx, insp, prop)
}

// ListByProperty returns a property's inspections, soonest first. Tenants
// see the inspections naming them and inspectors the ones assigned to them.
func (s *InspectionService) ListByProperty(ctx context.Context, caller access.Caller, propertyID string, p Page) (list *List[*InspectionView], err error) {
	defer func() { observe(access.ResourceInspection, "list", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, propertyID)
	if err != nil {
		return nil, err
	}
	scope, err := s.policy.ListScope(access.ResourceInspection, rel, caller.ID, msgInspectionList)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListByProperty(ctx, prop.ID, scope, p.Limit, p.Offset())
	if err != nil {
		return nil, storeErr("list inspections", err)
	}
	views := make([]*InspectionView, 0, len(items))
	for _, insp := range items {
		if !scope.Matches(insp.TenantID, insp.InspectorID) {
			continue
		}
		v, err := s.view(ctx, insp, prop)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return newList(views, total, p), nil
}

// Update merges the whitelisted subset of in.
func (s *InspectionService) Update(ctx context.Context, caller access.Caller, id string, in UpdateInspection) (view *InspectionView, err error) {
	defer func() { observe(access.ResourceInspection, "update", err) }()

	insp, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.policy.UpdateFields(access.ResourceInspection, rel, in.Fields(), msgInspectionUpdate)
	if err != nil {
		return nil, err
	}
	if fields.Has("type") && !models.ValidInspectionType(*in.Type) {
		return nil, access.Invalid("type must be one of routine, move_in, move_out")
	}
	if fields.Has("status") && !models.ValidInspectionStatus(*in.Status) {
		return nil, access.Invalid("status must be one of scheduled, completed, cancelled")
	}
	if fields.Has("scheduledDate") && in.ScheduledDate.IsZero() {
		return nil, access.Invalid("scheduledDate cannot be empty")
	}

	now := s.now()
	if fields.Has("type") {
		insp.Type = *in.Type
	}
	if fields.Has("scheduledDate") {
		insp.ScheduledDate = in.ScheduledDate.Time
		insp.ReminderSentAt = nil
		insp.RemindedIDs = nil
	}
	if fields.Has("notes") {
		insp.Notes = *in.Notes
	}
	if fields.Has("status") {
		insp.Status = *in.Status
		if insp.Status == models.InspectionCompleted && insp.CompletedAt == nil {
			insp.CompletedAt = timePtr(now)
		}
	}
	if fields.Has("inspectorId") {
		insp.InspectorID = normalizeRef(in.InspectorID)
	}
	if fields.Has("tenantId") {
		insp.TenantID = normalizeRef(in.TenantID)
	}
	if fields.Has("findings") {
		insp.Findings = *in.Findings
	}
	if fields.Has("tenantConfirmed") {
		setSignature(&insp.TenantConfirmed, &insp.TenantConfirmedAt, *in.TenantConfirmed, now)
	}
	if fields.Has("tenantNotes") {
		insp.TenantNotes = *in.TenantNotes
	}
	insp.UpdatedBy = caller.ID
	insp.UpdatedAt = now

	if err := s.store.Update(ctx, insp); err != nil {
		return nil, updateErr("update inspection", msgInspectionNotFound, err)
	}
	return s.view(ctx, insp, prop)
}

// Delete removes an inspection.
func (s *InspectionService) Delete(ctx context.Context, caller access.Caller, id string) (err error) {
	defer func() { observe(access.ResourceInspection, "delete", err) }()

	insp, _, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(access.ResourceInspection, access.ActDelete, rel, msgInspectionDelete); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, insp.ID)
	if err != nil {
		return storeErr("delete inspection", err)
	}
	if !deleted {
		return access.NotFound(msgInspectionNotFound)
	}
	return nil
}

// Confirm records the assigned tenant's confirmation of the visit.
func (s *InspectionService) Confirm(ctx context.Context, caller access.Caller, id string, in ConfirmInspection) (view *InspectionView, err error) {
	defer func() { observe(access.ResourceInspection, "confirm", err) }()

	insp, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceInspection, access.ActConfirm, rel, msgInspectionConfirm); err != nil {
		return nil, err
	}
	if insp.Status != models.InspectionScheduled {
		return nil, access.Invalid("only scheduled inspections can be confirmed")
	}

	now := s.now()
	setSignature(&insp.TenantConfirmed, &insp.TenantConfirmedAt, true, now)
	if in.Notes != nil {
		insp.TenantNotes = *in.Notes
	}
	insp.UpdatedBy = caller.ID
	insp.UpdatedAt = now

	if err := s.store.Update(ctx, insp); err != nil {
		return nil, updateErr("confirm inspection", msgInspectionNotFound, err)
	}
	return s.view(ctx, insp, prop)
}

// Complete marks the inspection done and records the findings.
func (s *InspectionService) Complete(ctx context.Context, caller access.Caller, id string, in CompleteInspection) (view *InspectionView, err error) {
	defer func() { observe(access.ResourceInspection, "complete", err) }()

	insp, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceInspection, access.ActComplete, rel, msgInspectionComplete); err != nil {
		return nil, err
	}
	if insp.Status != models.InspectionScheduled {
		return nil, access.Invalid("only scheduled inspections can be completed")
	}

	now := s.now()
	insp.Status = models.InspectionCompleted
	insp.CompletedAt = timePtr(now)
	if in.Findings != nil {
		insp.Findings = *in.Findings
	}
	insp.UpdatedBy = caller.ID
	insp.UpdatedAt = now

	if err := s.store.Update(ctx, insp); err != nil {
		return nil, updateErr("complete inspection", msgInspectionNotFound, err)
	}
	return s.view(ctx, insp, prop)
}

func (s *InspectionService) load(ctx context.Context, caller access.Caller, id string) (*models.Inspection, *models.Property, access.Relations, error) {
	insp, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, access.Relations{}, storeErr("load inspection", err)
	}
	if insp == nil {
		return nil, nil, access.Relations{}, access.NotFound(msgInspectionNotFound)
	}
	prop, rel, err := s.resolveProperty(ctx, caller, insp.PropertyID)
	if err != nil {
		return nil, nil, access.Relations{}, err
	}
	rel = rel.Scoped(caller.ID, insp.TenantID).WithRecordActor(caller.ID, insp.InspectorID)
	return insp, prop, rel, nil
}

func (s *InspectionService) view(ctx context.Context, insp *models.Inspection, prop *models.Property) (*InspectionView, error) {
	actors, err := s.actors(ctx, deref(insp.TenantID), deref(insp.InspectorID), insp.CreatedBy, insp.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &InspectionView{Inspection: insp, Property: prop.Summary(), Actors: actors}, nil
}
