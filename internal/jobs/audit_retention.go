// audit_retention.go implements the AuditRetention background job, which
// prunes audit_logs rows older than audit.retention_days once a day.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// AuditPruner deletes audit rows created before cutoff.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetention periodically prunes old audit rows.
type AuditRetention struct {
	repo      AuditPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

// NewAuditRetention creates the job. retentionDays <= 0 disables pruning.
func NewAuditRetention(repo AuditPruner, retentionDays int) *AuditRetention {
	return &AuditRetention{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start prunes immediately and then daily until ctx is cancelled or Stop
// is called.
func (a *AuditRetention) Start(ctx context.Context) {
	if a.retention <= 0 {
		slog.Info("audit retention: disabled (audit.retention_days=0)")
		return
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	slog.Info("audit retention started", "retention", a.retention)
	a.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			a.RunOnce(ctx)
		case <-a.stopChan:
			slog.Info("audit retention stopped")
			return
		case <-ctx.Done():
			slog.Info("audit retention context cancelled")
			return
		}
	}
}

func (a *AuditRetention) Stop() {
	close(a.stopChan)
}

// RunOnce deletes expired rows and returns how many were removed.
func (a *AuditRetention) RunOnce(ctx context.Context) int64 {
	cutoff := a.now().UTC().Add(-a.retention)
	n, err := a.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("audit retention: prune failed", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("audit retention: pruned audit logs", "deleted", n, "cutoff", cutoff)
	}
	return n
}
