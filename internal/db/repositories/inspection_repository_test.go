package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

var inspectionCols = []string{"id", "property_id", "tenant_id", "inspector_id", "type", "status", "scheduled_date", "tenant_confirmed"}

func sampleInspectionRow(when time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(inspectionCols).
		AddRow("i1", "p1", "t1", "ins1", "routine", "scheduled", when, false)
}

func TestInspectionCreate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO inspections").WillReturnResult(sqlmock.NewResult(1, 1))
	in := &models.Inspection{PropertyID: "p1", ScheduledDate: time.Now().Add(48 * time.Hour)}
	if err := NewInspectionRepository(db).Create(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.ID == "" {
		t.Error("expected id to be assigned")
	}
}

func TestInspectionGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	when := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM inspections WHERE id").WithArgs(rowID).WillReturnRows(sampleInspectionRow(when))

	in, err := NewInspectionRepository(db).GetByID(context.Background(), rowID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in == nil || !in.ScheduledDate.Equal(when) || *in.InspectorID != "ins1" {
		t.Errorf("GetByID() = %+v", in)
	}
}

func TestInspectionListByProperty_RecordActorScope(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM inspections WHERE property_id = ? AND (inspector_id = ?)")).
		WithArgs("p1", "ins1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY scheduled_date ASC LIMIT ? OFFSET ?")).
		WithArgs("p1", "ins1", 5, 10).
		WillReturnRows(sampleInspectionRow(time.Now()))

	items, total, err := NewInspectionRepository(db).ListByProperty(context.Background(), "p1", access.Scope{RecordActorID: "ins1"}, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("ListByProperty() = %d items, total %d", len(items), total)
	}
	expectationsMet(t, mock)
}

func TestInspectionUpdate_NoRows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE inspections SET").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := NewInspectionRepository(db).Update(context.Background(), &models.Inspection{ID: "i1"}); err != ErrNotFound {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestInspectionListDueReminders(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	cutoff := now.Add(48 * time.Hour)
	mock.ExpectQuery("SELECT \\* FROM inspections").
		WithArgs(models.InspectionScheduled, now, cutoff, 50).
		WillReturnRows(sampleInspectionRow(now.Add(time.Hour)))

	items, err := NewInspectionRepository(db).ListDueReminders(context.Background(), now, cutoff, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("ListDueReminders() len = %d, want 1", len(items))
	}
}

func TestInspectionMarkRecipientReminded(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("SET reminded_ids = array_append(reminded_ids, $2)")).
		WithArgs("i1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := NewInspectionRepository(db).MarkRecipientReminded(context.Background(), "i1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestInspectionMarkReminderSent(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Now()
	mock.ExpectExec("UPDATE inspections SET reminder_sent_at").WithArgs("i1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := NewInspectionRepository(db).MarkReminderSent(context.Background(), "i1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestInspectionMarkReminderSent_Error(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE inspections").WillReturnError(errDB)
	if err := NewInspectionRepository(db).MarkReminderSent(context.Background(), "i1", time.Now()); err == nil {
		t.Error("expected error, got nil")
	}
}
