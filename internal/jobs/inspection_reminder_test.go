package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/services/servicetest"
	"github.com/propertydesk/propertydesk/internal/telemetry"
)

var reminderNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to == m.failTo {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type reminderFixture struct {
	job         *InspectionReminder
	inspections *servicetest.Inspections
	mailer      *fakeMailer
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	props := servicetest.NewProperties()
	require.NoError(t, props.Create(t.Context(), &models.Property{
		ID: "property-1", LandlordID: "landlord-1", Title: "Flat 2", Address: "2 Park Row", City: "Leeds",
	}))
	users := servicetest.NewUsers(
		&models.User{ID: "tenant-1", Name: "Tess", Email: "tess@example.com", Role: "tenant"},
		&models.User{ID: "inspector-1", Name: "Ian", Email: "ian@example.com", Role: "agent"},
		&models.User{ID: "tenant-2", Name: "No Mail", Role: "tenant"},
	)
	f := &reminderFixture{inspections: servicetest.NewInspections(), mailer: &fakeMailer{}}
	f.job = NewInspectionReminder(f.inspections, props, users, f.mailer, &config.NotificationsConfig{
		Enabled:                true,
		SMTP:                   config.SMTPConfig{Host: "smtp.example.com", Port: 25},
		InspectionReminderDays: 2,
	})
	f.job.now = func() time.Time { return reminderNow }
	return f
}

func (f *reminderFixture) seed(t *testing.T, id string, in models.Inspection) {
	t.Helper()
	in.ID = id
	in.PropertyID = "property-1"
	if in.Status == "" {
		in.Status = models.InspectionScheduled
	}
	if in.Type == "" {
		in.Type = models.InspectionRoutine
	}
	require.NoError(t, f.inspections.Create(t.Context(), &in))
}

func ptr(s string) *string { return &s }

func TestNewInspectionReminder_Defaults(t *testing.T) {
	r := NewInspectionReminder(nil, nil, nil, nil, &config.NotificationsConfig{})
	assert.Equal(t, 48*time.Hour, r.window)
	assert.Equal(t, time.Hour, r.interval)

	r = NewInspectionReminder(nil, nil, nil, nil, &config.NotificationsConfig{
		InspectionReminderDays: 5, InspectionReminderIntervalHours: 6,
	})
	assert.Equal(t, 5*24*time.Hour, r.window)
	assert.Equal(t, 6*time.Hour, r.interval)
}

func TestInspectionReminder_RunOnce(t *testing.T) {
	f := newReminderFixture(t)
	f.seed(t, "due", models.Inspection{
		TenantID: ptr("tenant-1"), InspectorID: ptr("inspector-1"),
		ScheduledDate: reminderNow.Add(26 * time.Hour), Notes: "Boiler service",
	})
	f.seed(t, "too-far", models.Inspection{TenantID: ptr("tenant-1"), ScheduledDate: reminderNow.Add(72 * time.Hour)})
	f.seed(t, "past", models.Inspection{TenantID: ptr("tenant-1"), ScheduledDate: reminderNow.Add(-time.Hour)})
	f.seed(t, "done", models.Inspection{TenantID: ptr("tenant-1"), Status: models.InspectionCompleted, ScheduledDate: reminderNow.Add(time.Hour)})
	sentAt := reminderNow.Add(-time.Hour)
	f.seed(t, "already", models.Inspection{TenantID: ptr("tenant-1"), ScheduledDate: reminderNow.Add(time.Hour), ReminderSentAt: &sentAt})

	before := testutil.ToFloat64(telemetry.InspectionRemindersSentTotal)
	sent := f.job.RunOnce(t.Context())

	assert.Equal(t, 2, sent)
	assert.Equal(t, float64(2), testutil.ToFloat64(telemetry.InspectionRemindersSentTotal)-before)
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "tess@example.com", f.mailer.sent[0].to)
	assert.Equal(t, "ian@example.com", f.mailer.sent[1].to)
	assert.Equal(t, "Reminder: routine inspection at 2 Park Row", f.mailer.sent[0].subject)
	assert.Contains(t, f.mailer.sent[0].body, "The inspection is tomorrow.")
	assert.Contains(t, f.mailer.sent[0].body, "Please confirm you are available")
	assert.NotContains(t, f.mailer.sent[1].body, "Please confirm")
	assert.Contains(t, f.mailer.sent[0].body, "Notes: Boiler service")

	due := f.inspections.Get("due")
	require.NotNil(t, due.ReminderSentAt)
	assert.Equal(t, reminderNow, *due.ReminderSentAt)
	assert.Nil(t, f.inspections.Get("too-far").ReminderSentAt)

	// The second pass finds nothing left to remind.
	assert.Equal(t, 0, f.job.RunOnce(t.Context()))
}

func TestInspectionReminder_SendFailureRetriesNextRun(t *testing.T) {
	f := newReminderFixture(t)
	f.seed(t, "due", models.Inspection{TenantID: ptr("tenant-1"), ScheduledDate: reminderNow.Add(time.Hour)})
	f.mailer.failTo = "tess@example.com"

	assert.Equal(t, 0, f.job.RunOnce(t.Context()))
	assert.Nil(t, f.inspections.Get("due").ReminderSentAt)

	f.mailer.failTo = ""
	assert.Equal(t, 1, f.job.RunOnce(t.Context()))
	assert.NotNil(t, f.inspections.Get("due").ReminderSentAt)
	assert.True(t, strings.Contains(f.mailer.sent[0].body, "The inspection is today."))
}

func TestInspectionReminder_PartialFailureRetriesOnlyMissingRecipient(t *testing.T) {
	f := newReminderFixture(t)
	f.seed(t, "due", models.Inspection{
		TenantID: ptr("tenant-1"), InspectorID: ptr("inspector-1"),
		ScheduledDate: reminderNow.Add(3 * time.Hour),
	})
	f.mailer.failTo = "ian@example.com"

	assert.Equal(t, 1, f.job.RunOnce(t.Context()))
	due := f.inspections.Get("due")
	assert.Nil(t, due.ReminderSentAt)
	assert.Equal(t, []string{"tenant-1"}, []string(due.RemindedIDs))

	f.mailer.failTo = ""
	assert.Equal(t, 1, f.job.RunOnce(t.Context()))
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "tess@example.com", f.mailer.sent[0].to)
	assert.Equal(t, "ian@example.com", f.mailer.sent[1].to)
	assert.NotNil(t, f.inspections.Get("due").ReminderSentAt)

	assert.Equal(t, 0, f.job.RunOnce(t.Context()))
	assert.Len(t, f.mailer.sent, 2)
}

func TestInspectionReminder_RecipientsWithoutEmail(t *testing.T) {
	f := newReminderFixture(t)
	f.seed(t, "no-mail", models.Inspection{TenantID: ptr("tenant-2"), ScheduledDate: reminderNow.Add(time.Hour)})
	f.seed(t, "nobody", models.Inspection{ScheduledDate: reminderNow.Add(2 * time.Hour)})

	assert.Equal(t, 0, f.job.RunOnce(t.Context()))
	assert.Empty(t, f.mailer.sent)
	assert.NotNil(t, f.inspections.Get("no-mail").ReminderSentAt)
	assert.NotNil(t, f.inspections.Get("nobody").ReminderSentAt)
}

func TestInspectionReminder_StoreError(t *testing.T) {
	f := newReminderFixture(t)
	f.inspections.Err = errors.New("connection refused")
	assert.Equal(t, 0, f.job.RunOnce(t.Context()))
}

func TestInspectionReminder_StartDisabled(t *testing.T) {
	for name, cfg := range map[string]*config.NotificationsConfig{
		"notifications off": {Enabled: false, SMTP: config.SMTPConfig{Host: "smtp.example.com"}},
		"no smtp host":      {Enabled: true},
	} {
		t.Run(name, func(t *testing.T) {
			r := NewInspectionReminder(nil, nil, nil, nil, cfg)
			done := make(chan struct{})
			go func() {
				r.Start(context.Background())
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Start() did not return for a disabled job")
			}
		})
	}
}

func TestInspectionReminder_StartStop(t *testing.T) {
	f := newReminderFixture(t)
	done := make(chan struct{})
	go func() {
		f.job.Start(t.Context())
		close(done)
	}()
	f.job.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@propertydesk.test", "tess@example.com", "Hi", "line one\nline two"))
	assert.True(t, strings.HasPrefix(msg, "From: noreply@propertydesk.test\r\nTo: tess@example.com\r\nSubject: Hi\r\n"))
	assert.Contains(t, msg, "\r\n\r\nline one\r\nline two\r\n")
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "a@example.com", "s", "b"), context.Canceled)
}
