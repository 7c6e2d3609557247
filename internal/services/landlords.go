package services

import (
	"context"
	"strings"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/auth"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

const (
	msgLandlordNotFound = "Landlord not found"
	msgProfileNotFound  = "Landlord profile not found"
	msgProfileCreate    = "Not authorized to create this landlord profile"
	msgProfileUpdate    = "Not authorized to update this landlord profile"
	msgProfileDelete    = "Not authorized to delete this landlord profile"
	msgProfileVerify    = "Only platform administrators can verify landlords"
)

// LandlordProfileView is a profile with its landlord and agents resolved.
type LandlordProfileView struct {
	*models.LandlordProfile
	Actors map[string]models.UserSummary `json:"actors,omitempty"`
}

// CreateLandlordProfile is the payload of a new profile. UserID defaults to
// the caller; only administrators may create profiles for someone else.
type CreateLandlordProfile struct {
	UserID      string   `json:"userId"`
	CompanyName string   `json:"companyName"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	Bio         string   `json:"bio"`
	Website     string   `json:"website"`
	AgentIDs    []string `json:"agentIds"`
}

// UpdateLandlordProfile lists every field a profile update may carry.
type UpdateLandlordProfile struct {
	CompanyName *string   `json:"companyName"`
	Phone       *string   `json:"phone"`
	Email       *string   `json:"email"`
	Bio         *string   `json:"bio"`
	Website     *string   `json:"website"`
	AgentIDs    *[]string `json:"agentIds"`
}

// Fields returns the submitted field names.
func (u UpdateLandlordProfile) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(u.CompanyName != nil, "companyName")
	add(u.Phone != nil, "phone")
	add(u.Email != nil, "email")
	add(u.Bio != nil, "bio")
	add(u.Website != nil, "website")
	add(u.AgentIDs != nil, "agentIds")
	return f
}

// LandlordService runs the lifecycle of landlord profiles. The parent of a
// profile is the landlord: they own it, their agents are delegates, the
// tenants of their properties are counterparties and platform
// administrators are the record actors.
type LandlordService struct {
	base
	store     LandlordProfileStore
	landlords *access.Resolver
}

// NewLandlordService creates a LandlordService.
func NewLandlordService(d Deps, store LandlordProfileStore) *LandlordService {
	s := &LandlordService{base: newBase(d), store: store}
	s.landlords = access.NewResolver(access.ParentLoaderFunc(s.loadLandlord), "Landlord")
	return s
}

func (s *LandlordService) loadLandlord(ctx context.Context, userID string) (*access.Parent, error) {
	users, err := s.users.GetByIDs(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	tenants, err := s.properties.TenantIDsForLandlord(ctx, userID)
	if err != nil {
		return nil, err
	}
	parent := &access.Parent{ID: userID, OwnerID: userID, CounterpartyIDs: tenants, Entity: users[0]}
	profile, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		parent.DelegateIDs = []string(profile.AgentIDs)
	}
	return parent, nil
}

func (s *LandlordService) relate(ctx context.Context, caller access.Caller, userID string) (*models.User, access.Relations, error) {
	parent, rel, err := s.landlords.Resolve(ctx, caller, userID)
	if err != nil {
		return nil, access.Relations{}, err
	}
	if !caller.Anonymous() && auth.HasAnyRole(caller.Role, auth.RoleAdmin) {
		rel.RecordActor = true
	}
	user, _ := parent.Entity.(*models.User)
	return user, rel, nil
}

// Create records a landlord's profile. Landlords create their own; platform
// administrators may create one for any existing user.
func (s *LandlordService) Create(ctx context.Context, caller access.Caller, in CreateLandlordProfile) (view *LandlordProfileView, err error) {
	defer func() { observe(access.ResourceLandlordProfile, "create", err) }()

	userID := in.UserID
	if userID == "" {
		userID = caller.ID
	}
	landlord, rel, err := s.relate(ctx, caller, userID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceLandlordProfile, access.ActCreate, rel, msgProfileCreate); err != nil {
		return nil, err
	}
	if !auth.HasAnyRole(landlord.Role, auth.RoleLandlord, auth.RoleAdmin) {
		return nil, access.Forbidden("Only landlords can have a landlord profile")
	}
	existing, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeErr("check landlord profile", err)
	}
	if existing != nil {
		return nil, access.Invalid("Landlord profile already exists")
	}

	now := s.now()
	profile := &models.LandlordProfile{
		UserID:      userID,
		CompanyName: strings.TrimSpace(in.CompanyName),
		Phone:       in.Phone,
		Email:       in.Email,
		Bio:         in.Bio,
		Website:     in.Website,
		AgentIDs:    uniqueIDs(in.AgentIDs),
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedBy:   caller.ID,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, profile); err != nil {
		return nil, storeErr("create landlord profile", err)
	}
	return s.view(ctx, profile)
}

// Get returns a profile. Profiles are public.
func (s *LandlordService) Get(ctx context.Context, caller access.Caller, id string) (view *LandlordProfileView, err error) {
	defer func() { observe(access.ResourceLandlordProfile, "read", err) }()

	profile, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceLandlordProfile, access.ActRead, rel, msgProfileNotFound); err != nil {
		return nil, err
	}
	return s.view(ctx, profile)
}

// Update merges the whitelisted subset of in.
func (s *LandlordService) Update(ctx context.Context, caller access.Caller, id string, in UpdateLandlordProfile) (view *LandlordProfileView, err error) {
	defer func() { observe(access.ResourceLandlordProfile, "update", err) }()

	profile, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.policy.UpdateFields(access.ResourceLandlordProfile, rel, in.Fields(), msgProfileUpdate)
	if err != nil {
		return nil, err
	}

	if fields.Has("companyName") {
		profile.CompanyName = strings.TrimSpace(*in.CompanyName)
	}
	if fields.Has("phone") {
		profile.Phone = *in.Phone
	}
	if fields.Has("email") {
		profile.Email = *in.Email
	}
	if fields.Has("bio") {
		profile.Bio = *in.Bio
	}
	if fields.Has("website") {
		profile.Website = *in.Website
	}
	if fields.Has("agentIds") {
		profile.AgentIDs = uniqueIDs(*in.AgentIDs)
	}
	profile.UpdatedBy = caller.ID
	profile.UpdatedAt = s.now()

	if err := s.store.Update(ctx, profile); err != nil {
		return nil, updateErr("update landlord profile", msgProfileNotFound, err)
	}
	return s.view(ctx, profile)
}

// Delete removes a profile.
func (s *LandlordService) Delete(ctx context.Context, caller access.Caller, id string) (err error) {
	defer func() { observe(access.ResourceLandlordProfile, "delete", err) }()

	profile, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(access.ResourceLandlordProfile, access.ActDelete, rel, msgProfileDelete); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, profile.ID)
	if err != nil {
		return storeErr("delete landlord profile", err)
	}
	if !deleted {
		return access.NotFound(msgProfileNotFound)
	}
	return nil
}

// Verify marks the landlord as verified by the calling administrator.
func (s *LandlordService) Verify(ctx context.Context, caller access.Caller, id string) (view *LandlordProfileView, err error) {
	defer func() { observe(access.ResourceLandlordProfile, "verify", err) }()

	profile, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceLandlordProfile, access.ActVerify, rel, msgProfileVerify); err != nil {
		return nil, err
	}

	now := s.now()
	profile.Verified = true
	profile.VerifiedAt = timePtr(now)
	profile.VerifiedBy = strPtr(caller.ID)
	profile.UpdatedBy = caller.ID
	profile.UpdatedAt = now

	if err := s.store.Update(ctx, profile); err != nil {
		return nil, updateErr("verify landlord profile", msgProfileNotFound, err)
	}
	return s.view(ctx, profile)
}

func (s *LandlordService) load(ctx context.Context, caller access.Caller, id string) (*models.LandlordProfile, access.Relations, error) {
	profile, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, access.Relations{}, storeErr("load landlord profile", err)
	}
	if profile == nil {
		return nil, access.Relations{}, access.NotFound(msgProfileNotFound)
	}
	// A profile whose landlord user is gone resolves as not found.
	_, rel, err := s.relate(ctx, caller, profile.UserID)
	if err != nil {
		return nil, access.Relations{}, err
	}
	return profile, rel, nil
}

func (s *LandlordService) view(ctx context.Context, profile *models.LandlordProfile) (*LandlordProfileView, error) {
	ids := append([]string{profile.UserID, deref(profile.VerifiedBy)}, profile.AgentIDs...)
	actors, err := s.actors(ctx, ids...)
	if err != nil {
		return nil, err
	}
	return &LandlordProfileView{LandlordProfile: profile, Actors: actors}, nil
}

// uniqueIDs trims, drops empties and de-duplicates ids, keeping order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
