// inspection_reminder.go implements the InspectionReminder background job,
// which emails the tenant and inspector of each scheduled inspection that
// falls inside the reminder window. Each recipient is recorded in
// reminded_ids once emailed, and reminder_sent_at is stamped when every
// recipient has been reached, so a partial failure retries only the
// recipients still missing. Rescheduling an inspection clears both.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/telemetry"
)

// reminderBatch caps how many inspections one run processes.
const reminderBatch = 200

// ReminderStore is the slice of the inspection repository the job needs.
type ReminderStore interface {
	ListDueReminders(ctx context.Context, now, cutoff time.Time, limit int) ([]*models.Inspection, error)
	MarkRecipientReminded(ctx context.Context, id, userID string) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

// PropertyLookup resolves the property an inspection belongs to.
type PropertyLookup interface {
	GetByID(ctx context.Context, id string) (*models.Property, error)
}

// UserLookup resolves reminder recipients.
type UserLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

// InspectionReminder periodically emails upcoming-inspection reminders.
type InspectionReminder struct {
	inspections ReminderStore
	properties  PropertyLookup
	users       UserLookup
	mailer      Mailer
	cfg         *config.NotificationsConfig
	window      time.Duration
	interval    time.Duration
	now         func() time.Time
	stopChan    chan struct{}
}

// NewInspectionReminder creates the job. The window defaults to 2 days and
// the interval to 1 hour.
func NewInspectionReminder(inspections ReminderStore, properties PropertyLookup, users UserLookup, mailer Mailer, cfg *config.NotificationsConfig) *InspectionReminder {
	days := cfg.InspectionReminderDays
	if days <= 0 {
		days = 2
	}
	hours := cfg.InspectionReminderIntervalHours
	if hours <= 0 {
		hours = 1
	}
	return &InspectionReminder{
		inspections: inspections,
		properties:  properties,
		users:       users,
		mailer:      mailer,
		cfg:         cfg,
		window:      time.Duration(days) * 24 * time.Hour,
		interval:    time.Duration(hours) * time.Hour,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

// Start runs a pass immediately and then on every interval until ctx is
// cancelled or Stop is called. It returns at once when notifications are
// disabled or SMTP is not configured.
func (r *InspectionReminder) Start(ctx context.Context) {
	if !r.cfg.Enabled {
		slog.Info("inspection reminder: disabled (notifications.enabled=false)")
		return
	}
	if r.cfg.SMTP.Host == "" {
		slog.Info("inspection reminder: disabled (notifications.smtp.host not set)")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("inspection reminder started", "interval", r.interval, "window", r.window)
	r.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopChan:
			slog.Info("inspection reminder stopped")
			return
		case <-ctx.Done():
			slog.Info("inspection reminder context cancelled")
			return
		}
	}
}

func (r *InspectionReminder) Stop() {
	close(r.stopChan)
}

// RunOnce reminds every due inspection and returns how many emails were sent.
func (r *InspectionReminder) RunOnce(ctx context.Context) int {
	now := r.now().UTC()
	due, err := r.inspections.ListDueReminders(ctx, now, now.Add(r.window), reminderBatch)
	if err != nil {
		slog.Error("inspection reminder: failed to query due inspections", "error", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}
	slog.Info("inspection reminder: inspections due", "count", len(due))

	sent := 0
	for _, in := range due {
		n, err := r.remind(ctx, in, now)
		sent += n
		if err != nil {
			slog.Warn("inspection reminder: reminder not completed", "inspection_id", in.ID, "error", err)
			continue
		}
		if err := r.inspections.MarkReminderSent(ctx, in.ID, now); err != nil {
			slog.Error("inspection reminder: failed to mark reminder sent", "inspection_id", in.ID, "error", err)
		}
	}
	return sent
}

// remind emails each recipient of in not yet reminded. A failed send leaves
// the inspection due so the next run retries that recipient only.
func (r *InspectionReminder) remind(ctx context.Context, in *models.Inspection, now time.Time) (int, error) {
	prop, err := r.properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		return 0, fmt.Errorf("load property: %w", err)
	}
	if prop == nil {
		return 0, fmt.Errorf("property %s not found", in.PropertyID)
	}

	var ids []string
	for _, id := range []*string{in.TenantID, in.InspectorID} {
		if id != nil && *id != "" {
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	users, err := r.users.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load recipients: %w", err)
	}

	done := make(map[string]bool, len(in.RemindedIDs))
	for _, id := range in.RemindedIDs {
		done[id] = true
	}

	sent := 0
	var errs []error
	for _, u := range users {
		if u.Email == "" || done[u.ID] {
			continue
		}
		subject, body := reminderEmail(u, in, prop, now)
		if err := r.mailer.Send(ctx, u.Email, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", u.ID, err))
			continue
		}
		sent++
		telemetry.InspectionRemindersSentTotal.Inc()
		if err := r.inspections.MarkRecipientReminded(ctx, in.ID, u.ID); err != nil {
			errs = append(errs, fmt.Errorf("mark %s reminded: %w", u.ID, err))
		}
	}
	return sent, errors.Join(errs...)
}

func reminderEmail(u *models.User, in *models.Inspection, prop *models.Property, now time.Time) (string, string) {
	when := in.ScheduledDate.UTC().Format("Monday 2 January 2006 at 15:04 MST")
	days := int(in.ScheduledDate.Sub(now).Hours() / 24)

	subject := fmt.Sprintf("Reminder: %s inspection at %s", strings.ReplaceAll(in.Type, "_", "-"), prop.Address)
	lines := []string{
		fmt.Sprintf("Hello %s,", u.Name),
		"",
		fmt.Sprintf("An inspection of %s, %s is scheduled for %s.", prop.Address, prop.City, when),
	}
	switch {
	case days == 0:
		lines = append(lines, "The inspection is today.")
	case days == 1:
		lines = append(lines, "The inspection is tomorrow.")
	default:
		lines = append(lines, fmt.Sprintf("The inspection is in %d days.", days))
	}
	if in.TenantID != nil && *in.TenantID == u.ID && !in.TenantConfirmed {
		lines = append(lines, "", "Please confirm you are available in PropertyDesk.")
	}
	if in.Notes != "" {
		lines = append(lines, "", "Notes: "+in.Notes)
	}
	lines = append(lines, "", "PropertyDesk")
	return subject, strings.Join(lines, "\n")
}
