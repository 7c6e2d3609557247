// Package servicetest provides in-memory stores for exercising the
// lifecycle services and the HTTP handlers without a database.
//
// Every store copies records on the way in and out, so a caller mutating a
// returned record never changes what is stored until it calls Update.
// Setting Err on a store makes every method fail with it.
package servicetest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
	"github.com/propertydesk/propertydesk/internal/storage"
)

// table is an insertion-ordered map of records keyed by id.
type table[T any] struct {
	mu     sync.Mutex
	prefix string
	seq    int
	rows   map[string]*T
	order  []string
	id     func(*T) *string
	clone  func(*T) *T
}

func newTable[T any](prefix string, id func(*T) *string, clone func(*T) *T) *table[T] {
	return &table[T]{prefix: prefix, rows: map[string]*T{}, id: id, clone: clone}
}

func (t *table[T]) create(v *T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.id(v)
	if *id == "" {
		t.seq++
		*id = fmt.Sprintf("%s-%d", t.prefix, t.seq)
	}
	if _, ok := t.rows[*id]; !ok {
		t.order = append(t.order, *id)
	}
	t.rows[*id] = t.clone(v)
}

func (t *table[T]) get(id string) *T {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.rows[id]
	if !ok {
		return nil
	}
	return t.clone(v)
}

func (t *table[T]) update(v *T, noun string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := *t.id(v)
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%s %s: %w", noun, id, repositories.ErrNotFound)
	}
	t.rows[id] = t.clone(v)
	return nil
}

func (t *table[T]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// newestFirst returns the matching records, most recently inserted first.
func (t *table[T]) newestFirst(match func(*T) bool) []*T {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*T, 0)
	for i := len(t.order) - 1; i >= 0; i-- {
		v := t.rows[t.order[i]]
		if match(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

func paginate[T any](items []*T, limit, offset int) ([]*T, int) {
	total := len(items)
	if limit < 1 {
		limit = 20
	}
	if offset >= total {
		return []*T{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total
}

func cloneStrings[S ~[]string](s S) S {
	if s == nil {
		return nil
	}
	return append(S{}, s...)
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// Properties is an in-memory services.PropertyStore.
type Properties struct {
	Err error
	t   *table[models.Property]
}

// NewProperties creates an empty property store.
func NewProperties() *Properties {
	return &Properties{t: newTable("property",
		func(p *models.Property) *string { return &p.ID },
		func(p *models.Property) *models.Property {
			cp := *p
			cp.TenantIDs = cloneStrings(p.TenantIDs)
			return &cp
		})}
}

func (s *Properties) Create(_ context.Context, p *models.Property) error {
	if s.Err != nil {
		return s.Err
	}
	s.t.create(p)
	return nil
}

func (s *Properties) GetByID(_ context.Context, id string) (*models.Property, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.t.get(id), nil
}

func (s *Properties) List(_ context.Context, f repositories.PropertyFilter, limit, offset int) ([]*models.Property, int, error) {
	if s.Err != nil {
		return nil, 0, s.Err
	}
	items := s.t.newestFirst(func(p *models.Property) bool {
		switch {
		case f.Status != "" && p.Status != f.Status:
			return false
		case f.City != "" && !equalFold(p.City, f.City):
			return false
		case f.LandlordID != "" && p.LandlordID != f.LandlordID:
			return false
		case f.MinRent != nil && p.Rent < *f.MinRent:
			return false
		case f.MaxRent != nil && p.Rent > *f.MaxRent:
			return false
		}
		return true
	})
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (s *Properties) Update(_ context.Context, p *models.Property) error {
	if s.Err != nil {
		return s.Err
	}
	return s.t.update(p, "property")
}

func (s *Properties) Delete(_ context.Context, id string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.t.remove(id), nil
}

func (s *Properties) TenantIDsForLandlord(_ context.Context, landlordID string) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, p := range s.t.newestFirst(func(p *models.Property) bool { return p.LandlordID == landlordID }) {
		for _, t := range p.TenantIDs {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Get returns the stored copy of a property, or nil.
func (s *Properties) Get(id string) *models.Property { return s.t.get(id) }

// ---------------------------------------------------------------------------
// Condition reports
// ---------------------------------------------------------------------------

// ConditionReports is an in-memory services.ConditionReportStore.
type ConditionReports struct {
	Err error
	t   *table[models.ConditionReport]
}

// NewConditionReports creates an empty condition report store.
func NewConditionReports() *ConditionReports {
	return &ConditionReports{t: newTable("report",
		func(r *models.ConditionReport) *string { return &r.ID },
		func(r *models.ConditionReport) *models.ConditionReport {
			cp := *r
			cp.Attachments = cloneStrings(r.Attachments)
			if r.Items != nil {
				cp.Items = append(models.ConditionItems{}, r.Items...)
			}
			return &cp
		})}
}

func (s *ConditionReports) Create(_ context.Context, r *models.ConditionReport) error {
	if s.Err != nil {
		return s.Err
	}
	s.t.create(r)
	return nil
}

func (s *ConditionReports) GetByID(_ context.Context, id string) (*models.ConditionReport, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.t.get(id), nil
}

func (s *ConditionReports) ListByProperty(_ context.Context, propertyID string, scope access.Scope, limit, offset int) ([]*models.ConditionReport, int, error) {
	if s.Err != nil {
		return nil, 0, s.Err
	}
	items := s.t.newestFirst(func(r *models.ConditionReport) bool {
		return r.PropertyID == propertyID && scope.Matches(r.TenantID)
	})
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (s *ConditionReports) Update(_ context.Context, r *models.ConditionReport) error {
	if s.Err != nil {
		return s.Err
	}
	return s.t.update(r, "condition report")
}

func (s *ConditionReports) Delete(_ context.Context, id string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.t.remove(id), nil
}

// Get returns the stored copy of a report, or nil.
func (s *ConditionReports) Get(id string) *models.ConditionReport { return s.t.get(id) }

// ---------------------------------------------------------------------------
// Inspections
// ---------------------------------------------------------------------------

// Inspections is an in-memory services.InspectionStore.
type Inspections struct {
	Err error
	t   *table[models.Inspection]
}

// NewInspections creates an empty inspection store.
func NewInspections() *Inspections {
	return &Inspections{t: newTable("inspection",
		func(in *models.Inspection) *string { return &in.ID },
		func(in *models.Inspection) *models.Inspection {
			cp := *in
			cp.RemindedIDs = cloneStrings(in.RemindedIDs)
			return &cp
		})}
}

func (s *Inspections) Create(_ context.Context, in *models.Inspection) error {
	if s.Err != nil {
		return s.Err
	}
	s.t.create(in)
	return nil
}

func (s *Inspections) GetByID(_ context.Context, id string) (*models.Inspection, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.t.get(id), nil
}

func (s *Inspections) ListByProperty(_ context.Context, propertyID string, scope access.Scope, limit, offset int) ([]*models.Inspection, int, error) {
	if s.Err != nil {
		return nil, 0, s.Err
	}
	items := s.t.newestFirst(func(in *models.Inspection) bool {
		return in.PropertyID == propertyID && scope.Matches(in.TenantID, in.InspectorID)
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].ScheduledDate.Before(items[j].ScheduledDate) })
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (s *Inspections) Update(_ context.Context, in *models.Inspection) error {
	if s.Err != nil {
		return s.Err
	}
	return s.t.update(in, "inspection")
}

func (s *Inspections) Delete(_ context.Context, id string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.t.remove(id), nil
}

// ListDueReminders mirrors the repository query used by the reminder job.
func (s *Inspections) ListDueReminders(_ context.Context, now, cutoff time.Time, limit int) ([]*models.Inspection, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	items := s.t.newestFirst(func(in *models.Inspection) bool {
		return in.Status == models.InspectionScheduled && in.ReminderSentAt == nil &&
			!in.ScheduledDate.Before(now) && !in.ScheduledDate.After(cutoff)
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].ScheduledDate.Before(items[j].ScheduledDate) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// MarkRecipientReminded adds userID to the inspection's reminded recipients.
func (s *Inspections) MarkRecipientReminded(_ context.Context, id, userID string) error {
	if s.Err != nil {
		return s.Err
	}
	in := s.t.get(id)
	if in == nil {
		return fmt.Errorf("inspection %s: %w", id, repositories.ErrNotFound)
	}
	for _, done := range in.RemindedIDs {
		if done == userID {
			return nil
		}
	}
	in.RemindedIDs = append(in.RemindedIDs, userID)
	return s.t.update(in, "inspection")
}

// MarkReminderSent stamps the reminder time of an inspection.
func (s *Inspections) MarkReminderSent(_ context.Context, id string, at time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	in := s.t.get(id)
	if in == nil {
		return fmt.Errorf("inspection %s: %w", id, repositories.ErrNotFound)
	}
	in.ReminderSentAt = &at
	return s.t.update(in, "inspection")
}

// Get returns the stored copy of an inspection, or nil.
func (s *Inspections) Get(id string) *models.Inspection { return s.t.get(id) }

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

// Reviews is an in-memory services.ReviewStore.
type Reviews struct {
	Err error
	t   *table[models.Review]
}

// NewReviews creates an empty review store.
func NewReviews() *Reviews {
	return &Reviews{t: newTable("review",
		func(r *models.Review) *string { return &r.ID },
		func(r *models.Review) *models.Review {
			cp := *r
			return &cp
		})}
}

func (s *Reviews) Create(_ context.Context, r *models.Review) error {
	if s.Err != nil {
		return s.Err
	}
	s.t.create(r)
	return nil
}

func (s *Reviews) GetByID(_ context.Context, id string) (*models.Review, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.t.get(id), nil
}

func (s *Reviews) ListByProperty(_ context.Context, propertyID string, vis repositories.ReviewVisibility, limit, offset int) ([]*models.Review, int, error) {
	if s.Err != nil {
		return nil, 0, s.Err
	}
	items := s.t.newestFirst(func(r *models.Review) bool {
		if r.PropertyID != propertyID {
			return false
		}
		return vis.IncludeHidden || r.Status == models.ReviewPublished ||
			(vis.AuthorID != "" && r.AuthorID == vis.AuthorID)
	})
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (s *Reviews) ExistsForAuthor(_ context.Context, propertyID, authorID string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	found := s.t.newestFirst(func(r *models.Review) bool {
		return r.PropertyID == propertyID && r.AuthorID == authorID
	})
	return len(found) > 0, nil
}

func (s *Reviews) Summary(_ context.Context, propertyID string) (repositories.RatingSummary, error) {
	if s.Err != nil {
		return repositories.RatingSummary{}, s.Err
	}
	var sum repositories.RatingSummary
	total := 0
	for _, r := range s.t.newestFirst(func(r *models.Review) bool {
		return r.PropertyID == propertyID && r.Status == models.ReviewPublished
	}) {
		sum.Count++
		total += r.Rating
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

func (s *Reviews) Update(_ context.Context, r *models.Review) error {
	if s.Err != nil {
		return s.Err
	}
	return s.t.update(r, "review")
}

func (s *Reviews) Delete(_ context.Context, id string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.t.remove(id), nil
}

// Get returns the stored copy of a review, or nil.
func (s *Reviews) Get(id string) *models.Review { return s.t.get(id) }

// ---------------------------------------------------------------------------
// Maintenance requests
// ---------------------------------------------------------------------------

// Maintenance is an in-memory services.MaintenanceStore.
type Maintenance struct {
	Err error
	t   *table[models.MaintenanceRequest]
}

// NewMaintenance creates an empty maintenance store.
func NewMaintenance() *Maintenance {
	return &Maintenance{t: newTable("maintenance",
		func(m *models.MaintenanceRequest) *string { return &m.ID },
		func(m *models.MaintenanceRequest) *models.MaintenanceRequest {
			cp := *m
			return &cp
		})}
}

func (s *Maintenance) Create(_ context.Context, m *models.MaintenanceRequest) error {
	if s.Err != nil {
		return s.Err
	}
	s.t.create(m)
	return nil
}

func (s *Maintenance) GetByID(_ context.Context, id string) (*models.MaintenanceRequest, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.t.get(id), nil
}

func (s *Maintenance) ListByProperty(_ context.Context, propertyID string, f repositories.MaintenanceFilter, limit, offset int) ([]*models.MaintenanceRequest, int, error) {
	if s.Err != nil {
		return nil, 0, s.Err
	}
	items := s.t.newestFirst(func(m *models.MaintenanceRequest) bool {
		switch {
		case m.PropertyID != propertyID:
			return false
		case f.Status != "" && m.Status != f.Status:
			return false
		case f.Priority != "" && m.Priority != f.Priority:
			return false
		}
		return f.Scope.Matches(m.TenantID, m.AssigneeID)
	})
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (s *Maintenance) Update(_ context.Context, m *models.MaintenanceRequest) error {
	if s.Err != nil {
		return s.Err
	}
	return s.t.update(m, "maintenance request")
}

func (s *Maintenance) Delete(_ context.Context, id string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.t.remove(id), nil
}

// Get returns the stored copy of a request, or nil.
func (s *Maintenance) Get(id string) *models.MaintenanceRequest { return s.t.get(id) }

// ---------------------------------------------------------------------------
// Landlord profiles
// ---------------------------------------------------------------------------

// LandlordProfiles is an in-memory services.LandlordProfileStore.
type LandlordProfiles struct {
	Err error
	t   *table[models.LandlordProfile]
}

// NewLandlordProfiles creates an empty landlord profile store.
func NewLandlordProfiles() *LandlordProfiles {
	return &LandlordProfiles{t: newTable("profile",
		func(p *models.LandlordProfile) *string { return &p.ID },
		func(p *models.LandlordProfile) *models.LandlordProfile {
			cp := *p
			cp.AgentIDs = cloneStrings(p.AgentIDs)
			return &cp
		})}
}

func (s *LandlordProfiles) Create(_ context.Context, p *models.LandlordProfile) error {
	if s.Err != nil {
		return s.Err
	}
	s.t.create(p)
	return nil
}

func (s *LandlordProfiles) GetByID(_ context.Context, id string) (*models.LandlordProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.t.get(id), nil
}

func (s *LandlordProfiles) GetByUserID(_ context.Context, userID string) (*models.LandlordProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	found := s.t.newestFirst(func(p *models.LandlordProfile) bool { return p.UserID == userID })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *LandlordProfiles) Update(_ context.Context, p *models.LandlordProfile) error {
	if s.Err != nil {
		return s.Err
	}
	return s.t.update(p, "landlord profile")
}

func (s *LandlordProfiles) Delete(_ context.Context, id string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.t.remove(id), nil
}

// Get returns the stored copy of a profile, or nil.
func (s *LandlordProfiles) Get(id string) *models.LandlordProfile { return s.t.get(id) }

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// Users is an in-memory services.UserDirectory.
type Users struct {
	Err   error
	mu    sync.Mutex
	users map[string]*models.User
}

// NewUsers creates a directory holding users.
func NewUsers(users ...*models.User) *Users {
	d := &Users{users: map[string]*models.User{}}
	d.Add(users...)
	return d
}

// Add stores users, replacing any with the same id.
func (d *Users) Add(users ...*models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		cp := *u
		d.users[u.ID] = &cp
	}
}

func (d *Users) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Upsert stores u, mirroring the repository used by the auth middleware.
func (d *Users) Upsert(_ context.Context, u *models.User) error {
	if d.Err != nil {
		return d.Err
	}
	d.Add(u)
	return nil
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// Files is an in-memory storage.Storage.
type Files struct {
	Err   error
	mu    sync.Mutex
	files map[string][]byte
}

// NewFiles creates an empty file store.
func NewFiles() *Files { return &Files{files: map[string][]byte{}} }

var _ storage.Storage = (*Files)(nil)

func (f *Files) Upload(_ context.Context, path string, r io.Reader, _ int64) (*storage.UploadResult, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.files[path] = data
	f.mu.Unlock()
	sum := sha256.Sum256(data)
	return &storage.UploadResult{Path: path, Size: int64(len(data)), Checksum: hex.EncodeToString(sum[:])}, nil
}

func (f *Files) Download(_ context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *Files) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

func (f *Files) GetURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "/files/" + path, nil
}

func (f *Files) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok, nil
}

func (f *Files) GetMetadata(_ context.Context, path string) (*storage.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	sum := sha256.Sum256(data)
	return &storage.FileMetadata{Path: path, Size: int64(len(data)), Checksum: hex.EncodeToString(sum[:])}, nil
}

// Paths lists the stored paths in sorted order.
func (f *Files) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for p := range f.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Listing cache
// ---------------------------------------------------------------------------

// Cache is an in-memory services.ListingCache that counts its traffic.
type Cache struct {
	mu            sync.Mutex
	entries       map[string][]byte
	Hits          int
	Sets          int
	Invalidations int
}

// NewCache creates an empty cache.
func NewCache() *Cache { return &Cache{entries: map[string][]byte{}} }

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.Hits++
	}
	return data, ok
}

func (c *Cache) Set(_ context.Context, key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	c.Sets++
}

func (c *Cache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string][]byte{}
	c.Invalidations++
}

func equalFold(a, b string) bool {
	return bytes.EqualFold([]byte(a), []byte(b))
}
