package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
	"github.com/propertydesk/propertydesk/internal/storage"
)

const (
	msgReportNotFound = "Condition report not found"
	msgReportCreate   = "Not authorized to create condition reports for this property"
	msgReportView     = "Not authorized to view this condition report"
	msgReportList     = "Not authorized to view condition reports for this property"
	msgReportUpdate   = "Not authorized to update this condition report"
	msgReportDelete   = "Not authorized to delete this condition report"
	msgReportSign     = "Not authorized to sign this condition report"
	msgReportAttach   = "Not authorized to add attachments to this condition report"
	msgAttachNotFound = "Attachment not found"
)

// ConditionReportView is a report with its property and actors resolved.
type ConditionReportView struct {
	*models.ConditionReport
	Property *models.PropertySummary       `json:"property,omitempty"`
	Actors   map[string]models.UserSummary `json:"actors,omitempty"`
}

// CreateConditionReport is the payload of a new report.
type CreateConditionReport struct {
	PropertyID string                `json:"propertyId"`
	TenantID   *string               `json:"tenantId"`
	Type       string                `json:"type"`
	Items      models.ConditionItems `json:"items"`
	Notes      string                `json:"notes"`
}

// UpdateConditionReport lists every field a report update may carry. Nil
// fields were not submitted.
type UpdateConditionReport struct {
	Type             *string                `json:"type"`
	Items            *models.ConditionItems `json:"items"`
	Notes            *string                `json:"notes"`
	Attachments      *[]string              `json:"attachments"`
	Status           *string                `json:"status"`
	TenantID         *string                `json:"tenantId"`
	SignedByLandlord *bool                  `json:"signedByLandlord"`
	SignedByTenant   *bool                  `json:"signedByTenant"`
	TenantComments   *string                `json:"tenantComments"`
}

// Fields returns the submitted field names.
func (u UpdateConditionReport) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(u.Type != nil, "type")
	add(u.Items != nil, "items")
	add(u.Notes != nil, "notes")
	add(u.Attachments != nil, "attachments")
	add(u.Status != nil, "status")
	add(u.TenantID != nil, "tenantId")
	add(u.SignedByLandlord != nil, "signedByLandlord")
	add(u.SignedByTenant != nil, "signedByTenant")
	add(u.TenantComments != nil, "tenantComments")
	return f
}

// SignConditionReport carries the optional tenant comments of a signature.
type SignConditionReport struct {
	Comments *string `json:"comments"`
}

// ConditionReportService runs the lifecycle of condition reports.
type ConditionReportService struct {
	base
	store ConditionReportStore
	files storage.Storage
}

// NewConditionReportService creates a ConditionReportService. files may be
// nil, in which case attachments are rejected.
func NewConditionReportService(d Deps, store ConditionReportStore, files storage.Storage) *ConditionReportService {
	return &ConditionReportService{base: newBase(d), store: store, files: files}
}

// Create records a new report. An owner creating the report signs it as
// landlord in the same write.
func (s *ConditionReportService) Create(ctx context.Context, caller access.Caller, in CreateConditionReport) (view *ConditionReportView, err error) {
	defer func() { observe(access.ResourceConditionReport, "create", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceConditionReport, access.ActCreate, rel, msgReportCreate); err != nil {
		return nil, err
	}
	if !models.ValidReportType(in.Type) {
		return nil, access.Invalid("type must be one of move_in, move_out, periodic")
	}

	now := s.now()
	rep := &models.ConditionReport{
		PropertyID:       prop.ID,
		TenantID:         normalizeRef(in.TenantID),
		Type:             in.Type,
		Status:           models.ReportDraft,
		Items:            in.Items,
		Notes:            in.Notes,
		Attachments:      []string{},
		SignedByLandlord: rel.Owner,
		CreatedBy:        caller.ID,
		CreatedAt:        now,
		UpdatedBy:        caller.ID,
		UpdatedAt:        now,
	}
	if rep.Items == nil {
		rep.Items = models.ConditionItems{}
	}
	if rel.Owner {
		rep.LandlordSignatureDate = timePtr(now)
		rep.Status = models.ReportPendingSignature
	}
	if err := s.store.Create(ctx, rep); err != nil {
		return nil, storeErr("create condition report", err)
	}
	return s.view(ctx, rep, prop)
}

// Get returns one report. Counterparties only see reports naming them.
func (s *ConditionReportService) Get(ctx context.Context, caller access.Caller, id string) (view *ConditionReportView, err error) {
	defer func() { observe(access.ResourceConditionReport, "read", err) }()

	rep, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceConditionReport, access.ActRead, rel, msgReportView); err != nil {
		return nil, err
	}
	return s.view(ctx, rep, prop)
}

// ListByProperty returns a property's reports, newest first. Counterparties
// only receive reports naming them.
func (s *ConditionReportService) ListByProperty(ctx context.Context, caller access.Caller, propertyID string, p Page) (list *List[*ConditionReportView], err error) {
	defer func() { observe(access.ResourceConditionReport, "list", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, propertyID)
	if err != nil {
		return nil, err
	}
	scope, err := s.policy.ListScope(access.ResourceConditionReport, rel, caller.ID, msgReportList)
	if err != nil {
		return nil, err
	}
	reps, total, err := s.store.ListByProperty(ctx, prop.ID, scope, p.Limit, p.Offset())
	if err != nil {
		return nil, storeErr("list condition reports", err)
	}
	views := make([]*ConditionReportView, 0, len(reps))
	for _, rep := range reps {
		if !scope.Matches(rep.TenantID) {
			continue
		}
		v, err := s.view(ctx, rep, prop)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return newList(views, total, p), nil
}

// Update merges the whitelisted subset of in. Signature flags stamp their
// dates in the same write.
func (s *ConditionReportService) Update(ctx context.Context, caller access.Caller, id string, in UpdateConditionReport) (view *ConditionReportView, err error) {
	defer func() { observe(access.ResourceConditionReport, "update", err) }()

	rep, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.policy.UpdateFields(access.ResourceConditionReport, rel, in.Fields(), msgReportUpdate)
	if err != nil {
		return nil, err
	}
	if fields.Has("type") && !models.ValidReportType(*in.Type) {
		return nil, access.Invalid("type must be one of move_in, move_out, periodic")
	}
	if fields.Has("status") && !models.ValidReportStatus(*in.Status) {
		return nil, access.Invalid("status must be one of draft, pending_signature, signed")
	}

	now := s.now()
	if fields.Has("type") {
		rep.Type = *in.Type
	}
	if fields.Has("items") {
		rep.Items = *in.Items
	}
	if fields.Has("notes") {
		rep.Notes = *in.Notes
	}
	if fields.Has("attachments") {
		rep.Attachments = *in.Attachments
	}
	if fields.Has("status") {
		rep.Status = *in.Status
	}
	if fields.Has("tenantId") {
		rep.TenantID = normalizeRef(in.TenantID)
	}
	if fields.Has("signedByLandlord") {
		setSignature(&rep.SignedByLandlord, &rep.LandlordSignatureDate, *in.SignedByLandlord, now)
	}
	if fields.Has("signedByTenant") {
		setSignature(&rep.SignedByTenant, &rep.TenantSignatureDate, *in.SignedByTenant, now)
	}
	if fields.Has("tenantComments") {
		rep.TenantComments = *in.TenantComments
	}
	if !fields.Has("status") {
		rep.Status = reportStatus(rep)
	}
	rep.UpdatedBy = caller.ID
	rep.UpdatedAt = now

	if err := s.store.Update(ctx, rep); err != nil {
		return nil, updateErr("update condition report", msgReportNotFound, err)
	}
	return s.view(ctx, rep, prop)
}

// Delete removes a report.
func (s *ConditionReportService) Delete(ctx context.Context, caller access.Caller, id string) (err error) {
	defer func() { observe(access.ResourceConditionReport, "delete", err) }()

	rep, _, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(access.ResourceConditionReport, access.ActDelete, rel, msgReportDelete); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, rep.ID)
	if err != nil {
		return storeErr("delete condition report", err)
	}
	if !deleted {
		return access.NotFound(msgReportNotFound)
	}
	if s.files != nil {
		for _, p := range rep.Attachments {
			if err := s.files.Delete(ctx, p); err != nil {
				slog.Warn("failed to remove attachment of deleted condition report", "report_id", rep.ID, "path", p, "error", err)
			}
		}
	}
	return nil
}

// Sign records the caller's signature. The owner signs as landlord; the
// tenant named on the report signs as tenant and may leave comments. The
// report becomes signed once both parties have signed.
func (s *ConditionReportService) Sign(ctx context.Context, caller access.Caller, id string, in SignConditionReport) (view *ConditionReportView, err error) {
	defer func() { observe(access.ResourceConditionReport, "sign", err) }()

	rep, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceConditionReport, access.ActSign, rel, msgReportSign); err != nil {
		return nil, err
	}

	now := s.now()
	if rel.Owner {
		setSignature(&rep.SignedByLandlord, &rep.LandlordSignatureDate, true, now)
	}
	if rel.Counterparty {
		setSignature(&rep.SignedByTenant, &rep.TenantSignatureDate, true, now)
		if in.Comments != nil {
			rep.TenantComments = *in.Comments
		}
	}
	rep.Status = reportStatus(rep)
	rep.UpdatedBy = caller.ID
	rep.UpdatedAt = now

	if err := s.store.Update(ctx, rep); err != nil {
		return nil, updateErr("sign condition report", msgReportNotFound, err)
	}
	return s.view(ctx, rep, prop)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Attach uploads a file and appends its storage path to the report.
func (s *ConditionReportService) Attach(ctx context.Context, caller access.Caller, id, filename string, r io.Reader, size int64) (view *ConditionReportView, err error) {
	defer func() { observe(access.ResourceConditionReport, "attach", err) }()

	rep, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceConditionReport, access.ActAttach, rel, msgReportAttach); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, access.Invalid("attachments are not enabled")
	}

	name := strings.Trim(unsafeFileChars.ReplaceAllString(path.Base(filename), "_"), "._")
	if name == "" {
		name = "attachment"
	}
	key := fmt.Sprintf("conditions/%s/%s-%s", rep.ID, uuid.New().String()[:8], name)
	result, err := s.files.Upload(ctx, key, r, size)
	if err != nil {
		return nil, storeErr("store attachment", err)
	}

	rep.Attachments = append(rep.Attachments, result.Path)
	rep.UpdatedBy = caller.ID
	rep.UpdatedAt = s.now()
	if err := s.store.Update(ctx, rep); err != nil {
		_ = s.files.Delete(ctx, result.Path)
		return nil, updateErr("attach to condition report", msgReportNotFound, err)
	}
	return s.view(ctx, rep, prop)
}

// OpenAttachment streams one of the report's attachments to a caller who
// may view the report. The caller must close the reader.
func (s *ConditionReportService) OpenAttachment(ctx context.Context, caller access.Caller, id, file string) (rc io.ReadCloser, err error) {
	defer func() { observe(access.ResourceConditionReport, "download", err) }()

	rep, _, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceConditionReport, access.ActRead, rel, msgReportView); err != nil {
		return nil, err
	}
	if s.files == nil || !slices.Contains(rep.Attachments, file) {
		return nil, access.NotFound(msgAttachNotFound)
	}
	rc, err = s.files.Download(ctx, file)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, access.NotFound(msgAttachNotFound)
		}
		return nil, storeErr("open attachment", err)
	}
	return rc, nil
}

// AttachmentReportID extracts the owning report id from an attachment
// path written by Attach.
func AttachmentReportID(file string) (string, bool) {
	rest, ok := strings.CutPrefix(file, "conditions/")
	if !ok {
		return "", false
	}
	id, name, ok := strings.Cut(rest, "/")
	return id, ok && id != "" && name != ""
}

// load fetches the report, then its property, and relates caller to the
// report: a counterparty flag survives only when the report names them.
func (s *ConditionReportService) load(ctx context.Context, caller access.Caller, id string) (*models.ConditionReport, *models.Property, access.Relations, error) {
	rep, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, access.Relations{}, storeErr("load condition report", err)
	}
	if rep == nil {
		return nil, nil, access.Relations{}, access.NotFound(msgReportNotFound)
	}
	prop, rel, err := s.resolveProperty(ctx, caller, rep.PropertyID)
	if err != nil {
		return nil, nil, access.Relations{}, err
	}
	return rep, prop, rel.Scoped(caller.ID, rep.TenantID), nil
}

func (s *ConditionReportService) view(ctx context.Context, rep *models.ConditionReport, prop *models.Property) (*ConditionReportView, error) {
	actors, err := s.actors(ctx, deref(rep.TenantID), rep.CreatedBy, rep.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &ConditionReportView{ConditionReport: rep, Property: prop.Summary(), Actors: actors}, nil
}

// setSignature sets a signature flag and its date together.
func setSignature(flag *bool, date **time.Time, signed bool, now time.Time) {
	*flag = signed
	if signed {
		*date = timePtr(now)
	} else {
		*date = nil
	}
}

// reportStatus derives the status from the signatures. A draft only moves
// forward once someone has signed.
func reportStatus(rep *models.ConditionReport) string {
	switch {
	case rep.SignedByLandlord && rep.SignedByTenant:
		return models.ReportSigned
	case rep.SignedByLandlord || rep.SignedByTenant:
		return models.ReportPendingSignature
	case rep.Status == models.ReportSigned:
		return models.ReportPendingSignature
	default:
		return rep.Status
	}
}

// updateErr maps a store update failure, turning a vanished row into NotFound.
func updateErr(action, notFound string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return access.NotFound(notFound)
	}
	return storeErr(action, err)
}
