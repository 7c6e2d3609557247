package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/services/servicetest"
)

func newReportService(t *testing.T) (*ConditionReportService, *servicetest.ConditionReports, *servicetest.Files, *fixture) {
	t.Helper()
	f := newFixture(t)
	store := servicetest.NewConditionReports()
	files := servicetest.NewFiles()
	return NewConditionReportService(f.deps, store, files), store, files, f
}

// seedReport stores a draft move-in report naming tenant-1.
func seedReport(t *testing.T, store *servicetest.ConditionReports) *models.ConditionReport {
	t.Helper()
	rep := &models.ConditionReport{
		PropertyID:  propertyID,
		TenantID:    strPtr(tenantID),
		Type:        models.ReportMoveIn,
		Status:      models.ReportDraft,
		Items:       models.ConditionItems{{Area: "Kitchen", Condition: "good"}},
		Attachments: []string{},
		CreatedBy:   agentID,
		CreatedAt:   fixedNow.Add(-time.Hour),
		UpdatedBy:   agentID,
		UpdatedAt:   fixedNow.Add(-time.Hour),
	}
	require.NoError(t, store.Create(t.Context(), rep))
	return rep
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestConditionReportCreate_OwnerSignsAsLandlord(t *testing.T) {
	svc, store, _, _ := newReportService(t)

	view, err := svc.Create(t.Context(), owner, CreateConditionReport{
		PropertyID: propertyID,
		TenantID:   strPtr(tenantID),
		Type:       models.ReportMoveIn,
		Items:      models.ConditionItems{{Area: "Lounge", Condition: "fair"}},
	})
	require.NoError(t, err)

	assert.True(t, view.SignedByLandlord)
	require.NotNil(t, view.LandlordSignatureDate)
	assert.Equal(t, fixedNow, *view.LandlordSignatureDate)
	assert.Equal(t, models.ReportPendingSignature, view.Status)
	assert.Equal(t, landlordID, view.CreatedBy)
	assert.Equal(t, fixedNow, view.CreatedAt)
	assert.Equal(t, landlordID, view.UpdatedBy)
	assert.Equal(t, fixedNow, view.UpdatedAt)
	assert.Equal(t, propertyID, view.Property.ID)
	assert.Contains(t, view.Actors, tenantID)

	stored := store.Get(view.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.SignedByLandlord)
}

func TestConditionReportCreate_DelegateLeavesDraftUnsigned(t *testing.T) {
	svc, _, _, _ := newReportService(t)

	view, err := svc.Create(t.Context(), agent, CreateConditionReport{PropertyID: propertyID, Type: models.ReportPeriodic})
	require.NoError(t, err)
	assert.False(t, view.SignedByLandlord)
	assert.Nil(t, view.LandlordSignatureDate)
	assert.Equal(t, models.ReportDraft, view.Status)
	assert.NotNil(t, view.Items)
}

func TestConditionReportCreate_Denied(t *testing.T) {
	svc, _, _, _ := newReportService(t)

	for name, caller := range map[string]access.Caller{"tenant": tenant, "stranger": stranger, "anonymous": anonymous} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(t.Context(), caller, CreateConditionReport{PropertyID: propertyID, Type: models.ReportMoveIn})
			assertKind(t, err, access.KindForbidden, msgReportCreate)
		})
	}
}

func TestConditionReportCreate_MissingProperty(t *testing.T) {
	svc, _, _, _ := newReportService(t)
	_, err := svc.Create(t.Context(), owner, CreateConditionReport{PropertyID: "nope", Type: models.ReportMoveIn})
	assertKind(t, err, access.KindNotFound, "Property not found")
}

func TestConditionReportCreate_InvalidType(t *testing.T) {
	svc, _, _, _ := newReportService(t)
	_, err := svc.Create(t.Context(), owner, CreateConditionReport{PropertyID: propertyID, Type: "annual"})
	assertKind(t, err, access.KindInvalid, "")
}

func TestConditionReportCreate_StoreFailureIsInternal(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	store.Err = errStore
	_, err := svc.Create(t.Context(), owner, CreateConditionReport{PropertyID: propertyID, Type: models.ReportMoveIn})
	assertKind(t, err, access.KindInternal, "")
	assert.ErrorIs(t, err, errStore)
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestConditionReportGet(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	tests := []struct {
		name   string
		caller access.Caller
		kind   access.Kind
	}{
		{"owner", owner, ""},
		{"delegate", agent, ""},
		{"named tenant", tenant, ""},
		{"other tenant of the property", neighbour, access.KindForbidden},
		{"stranger", stranger, access.KindForbidden},
		{"anonymous", anonymous, access.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := svc.Get(t.Context(), tt.caller, rep.ID)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, rep.ID, view.ID)
				return
			}
			assertKind(t, err, tt.kind, "Not authorized to view this condition report")
		})
	}
}

func TestConditionReportGet_NotFoundBeforeForbidden(t *testing.T) {
	svc, _, _, _ := newReportService(t)
	_, err := svc.Get(t.Context(), stranger, "missing")
	assertKind(t, err, access.KindNotFound, "Condition report not found")
}

func TestConditionReportGet_ParentGone(t *testing.T) {
	svc, store, _, f := newReportService(t)
	rep := seedReport(t, store)
	_, err := f.properties.Delete(t.Context(), propertyID)
	require.NoError(t, err)

	_, err = svc.Get(t.Context(), owner, rep.ID)
	assertKind(t, err, access.KindNotFound, "Property not found")
}

// ---------------------------------------------------------------------------
// ListByProperty
// ---------------------------------------------------------------------------

func TestConditionReportList_Scoping(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	seedReport(t, store)
	other := seedReport(t, store)
	other.TenantID = strPtr(neighbourID)
	require.NoError(t, store.Update(t.Context(), other))
	seedReport(t, store)

	list, err := svc.ListByProperty(t.Context(), owner, propertyID, NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Items, 3)

	list, err = svc.ListByProperty(t.Context(), neighbour, propertyID, NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, other.ID, list.Items[0].ID)

	_, err = svc.ListByProperty(t.Context(), stranger, propertyID, NewPage(1, 20))
	assertKind(t, err, access.KindForbidden, msgReportList)
}

func TestConditionReportList_Pagination(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	for i := 0; i < 5; i++ {
		seedReport(t, store)
	}
	list, err := svc.ListByProperty(t.Context(), agent, propertyID, NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, list.Total)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 2, list.Limit)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestConditionReportUpdate_OwnerFields(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	view, err := svc.Update(t.Context(), owner, rep.ID, UpdateConditionReport{
		Notes:            strPtr("Walls repainted"),
		SignedByLandlord: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Walls repainted", view.Notes)
	assert.True(t, view.SignedByLandlord)
	assert.Equal(t, fixedNow, *view.LandlordSignatureDate)
	assert.Equal(t, models.ReportPendingSignature, view.Status)
	assert.Equal(t, landlordID, view.UpdatedBy)
	assert.Equal(t, fixedNow, view.UpdatedAt)
}

func TestConditionReportUpdate_TenantFieldsDropped(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	// notes is not tenant-writable; the tenant fields go through
	view, err := svc.Update(t.Context(), tenant, rep.ID, UpdateConditionReport{
		Notes:          strPtr("sneaky"),
		SignedByTenant: ptr(true),
		TenantComments: strPtr("Oven door is cracked"),
	})
	require.NoError(t, err)
	assert.Empty(t, view.Notes)
	assert.True(t, view.SignedByTenant)
	assert.Equal(t, "Oven door is cracked", view.TenantComments)
}

func TestConditionReportUpdate_NoValidUpdates(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)
	before := store.Get(rep.ID)

	_, err := svc.Update(t.Context(), tenant, rep.ID, UpdateConditionReport{Notes: strPtr("x")})
	assertKind(t, err, access.KindNoValidUpdates, "No valid updates provided")
	assert.Equal(t, before, store.Get(rep.ID))

	_, err = svc.Update(t.Context(), owner, rep.ID, UpdateConditionReport{})
	assertKind(t, err, access.KindNoValidUpdates, "No valid updates provided")
}

func TestConditionReportUpdate_Forbidden(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)
	_, err := svc.Update(t.Context(), neighbour, rep.ID, UpdateConditionReport{SignedByTenant: ptr(true)})
	assertKind(t, err, access.KindForbidden, msgReportUpdate)
}

func TestConditionReportUpdate_LastWriteWins(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	_, err := svc.Update(t.Context(), owner, rep.ID, UpdateConditionReport{Notes: strPtr("first")})
	require.NoError(t, err)
	_, err = svc.Update(t.Context(), agent, rep.ID, UpdateConditionReport{Notes: strPtr("second")})
	require.NoError(t, err)

	stored := store.Get(rep.ID)
	assert.Equal(t, "second", stored.Notes)
	assert.Equal(t, agentID, stored.UpdatedBy)
}

func TestConditionReportUpdate_Unsign(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	_, err := svc.Update(t.Context(), owner, rep.ID, UpdateConditionReport{SignedByLandlord: ptr(true)})
	require.NoError(t, err)
	view, err := svc.Update(t.Context(), owner, rep.ID, UpdateConditionReport{SignedByLandlord: ptr(false)})
	require.NoError(t, err)
	assert.False(t, view.SignedByLandlord)
	assert.Nil(t, view.LandlordSignatureDate)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestConditionReportDelete_Twice(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	require.NoError(t, svc.Delete(t.Context(), owner, rep.ID))
	assert.Nil(t, store.Get(rep.ID))

	err := svc.Delete(t.Context(), owner, rep.ID)
	assertKind(t, err, access.KindNotFound, "Condition report not found")
}

func TestConditionReportDelete_TenantForbidden(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)
	err := svc.Delete(t.Context(), tenant, rep.ID)
	assertKind(t, err, access.KindForbidden, msgReportDelete)
	assert.NotNil(t, store.Get(rep.ID))
}

// ---------------------------------------------------------------------------
// Sign / Attach
// ---------------------------------------------------------------------------

func TestConditionReportSign_BothParties(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)

	view, err := svc.Sign(t.Context(), owner, rep.ID, SignConditionReport{})
	require.NoError(t, err)
	assert.Equal(t, models.ReportPendingSignature, view.Status)

	view, err = svc.Sign(t.Context(), tenant, rep.ID, SignConditionReport{Comments: strPtr("Agreed")})
	require.NoError(t, err)
	assert.True(t, view.SignedByLandlord)
	assert.True(t, view.SignedByTenant)
	assert.Equal(t, "Agreed", view.TenantComments)
	assert.Equal(t, models.ReportSigned, view.Status)
	assert.Equal(t, tenantID, view.UpdatedBy)
}

func TestConditionReportSign_Denied(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)
	for name, caller := range map[string]access.Caller{"delegate": agent, "other tenant": neighbour, "stranger": stranger} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Sign(t.Context(), caller, rep.ID, SignConditionReport{})
			assertKind(t, err, access.KindForbidden, msgReportSign)
		})
	}
}

func TestConditionReportAttach(t *testing.T) {
	svc, store, files, _ := newReportService(t)
	rep := seedReport(t, store)

	view, err := svc.Attach(t.Context(), agent, rep.ID, "../../kitchen photo.jpg", strings.NewReader("jpeg"), 4)
	require.NoError(t, err)
	require.Len(t, view.Attachments, 1)
	assert.True(t, strings.HasPrefix(view.Attachments[0], "conditions/"+rep.ID+"/"))
	assert.True(t, strings.HasSuffix(view.Attachments[0], "-kitchen_photo.jpg"))
	assert.Equal(t, []string{view.Attachments[0]}, files.Paths())
}

func TestConditionReportAttach_UpdateFailureRemovesUpload(t *testing.T) {
	svc, store, files, _ := newReportService(t)
	rep := seedReport(t, store)

	// The report vanishes between load and update.
	racing := &vanishingReports{ConditionReports: store}
	svc.store = racing
	_, err := svc.Attach(t.Context(), owner, rep.ID, "a.pdf", strings.NewReader("pdf"), 3)
	assertKind(t, err, access.KindNotFound, msgReportNotFound)
	assert.Empty(t, files.Paths())
}

func TestConditionReportAttach_TenantForbidden(t *testing.T) {
	svc, store, files, _ := newReportService(t)
	rep := seedReport(t, store)
	_, err := svc.Attach(t.Context(), tenant, rep.ID, "a.pdf", strings.NewReader("pdf"), 3)
	assertKind(t, err, access.KindForbidden, msgReportAttach)
	assert.Empty(t, files.Paths())
}

func TestConditionReportOpenAttachment(t *testing.T) {
	svc, store, files, _ := newReportService(t)
	rep := seedReport(t, store)
	view, err := svc.Attach(t.Context(), owner, rep.ID, "meter.txt", strings.NewReader("01234"), 5)
	require.NoError(t, err)
	file := view.Attachments[0]

	rc, err := svc.OpenAttachment(t.Context(), tenant, rep.ID, file)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "01234", string(data))

	_, err = svc.OpenAttachment(t.Context(), neighbour, rep.ID, file)
	assertKind(t, err, access.KindForbidden, msgReportView)

	_, err = svc.OpenAttachment(t.Context(), owner, rep.ID, "conditions/"+rep.ID+"/other.txt")
	assertKind(t, err, access.KindNotFound, msgAttachNotFound)

	// Listed on the report but gone from storage.
	require.NoError(t, files.Delete(t.Context(), file))
	_, err = svc.OpenAttachment(t.Context(), owner, rep.ID, file)
	assertKind(t, err, access.KindNotFound, msgAttachNotFound)
}

func TestConditionReportDelete_RemovesAttachments(t *testing.T) {
	svc, store, files, _ := newReportService(t)
	rep := seedReport(t, store)
	_, err := svc.Attach(t.Context(), owner, rep.ID, "a.pdf", strings.NewReader("pdf"), 3)
	require.NoError(t, err)
	require.Len(t, files.Paths(), 1)

	require.NoError(t, svc.Delete(t.Context(), owner, rep.ID))
	assert.Empty(t, files.Paths())
}

func TestAttachmentReportID(t *testing.T) {
	id, ok := AttachmentReportID("conditions/cr-7/abcd1234-photo.jpg")
	assert.True(t, ok)
	assert.Equal(t, "cr-7", id)

	for _, p := range []string{"conditions/cr-7", "other/cr-7/a.jpg", "conditions//a.jpg", ""} {
		_, ok := AttachmentReportID(p)
		assert.False(t, ok, p)
	}
}

// vanishingReports deletes the report as soon as it has been loaded.
type vanishingReports struct {
	*servicetest.ConditionReports
}

func (v *vanishingReports) GetByID(ctx context.Context, id string) (*models.ConditionReport, error) {
	rep, err := v.ConditionReports.GetByID(ctx, id)
	if rep != nil {
		_, _ = v.ConditionReports.Delete(ctx, id)
	}
	return rep, err
}

func TestConditionReportReads_LeaveAuditFieldsUntouched(t *testing.T) {
	svc, store, _, _ := newReportService(t)
	rep := seedReport(t, store)
	before := store.Get(rep.ID)

	for _, caller := range []access.Caller{owner, agent, tenant} {
		_, err := svc.Get(t.Context(), caller, rep.ID)
		require.NoError(t, err)
		_, err = svc.ListByProperty(t.Context(), caller, propertyID, NewPage(1, 20))
		require.NoError(t, err)
	}
	_, err := svc.Get(t.Context(), stranger, rep.ID)
	assertKind(t, err, access.KindForbidden, "")

	after := store.Get(rep.ID)
	assert.Equal(t, agentID, after.UpdatedBy)
	assert.Equal(t, fixedNow.Add(-time.Hour), after.UpdatedAt)
	assert.Equal(t, before, after)
}
