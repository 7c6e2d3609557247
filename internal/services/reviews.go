package services

import (
	"context"
	"strings"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
)

const (
	msgReviewNotFound = "Review not found"
	msgReviewCreate   = "Only current tenants can review this property"
	msgReviewView     = "Not authorized to view this review"
	msgReviewUpdate   = "Not authorized to update this review"
	msgReviewDelete   = "Not authorized to delete this review"
	msgReviewRespond  = "Not authorized to respond to this review"
)

// ReviewView is a review with its property and actors resolved.
type ReviewView struct {
	*models.Review
	Property *models.PropertySummary       `json:"property,omitempty"`
	Actors   map[string]models.UserSummary `json:"actors,omitempty"`
}

// ReviewList is a page of reviews plus the property's rating summary.
type ReviewList struct {
	List[*ReviewView]
	Summary repositories.RatingSummary `json:"summary"`
}

// CreateReview is the payload of a new review.
type CreateReview struct {
	PropertyID string `json:"propertyId"`
	Rating     int    `json:"rating"`
	Title      string `json:"title"`
	Comment    string `json:"comment"`
}

// UpdateReview lists every field a review update may carry.
type UpdateReview struct {
	Rating           *int    `json:"rating"`
	Title            *string `json:"title"`
	Comment          *string `json:"comment"`
	Status           *string `json:"status"`
	LandlordResponse *string `json:"landlordResponse"`
}

// Fields returns the submitted field names.
func (u UpdateReview) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(u.Rating != nil, "rating")
	add(u.Title != nil, "title")
	add(u.Comment != nil, "comment")
	add(u.Status != nil, "status")
	add(u.LandlordResponse != nil, "landlordResponse")
	return f
}

// RespondToReview carries the landlord's public response.
type RespondToReview struct {
	Response string `json:"response"`
}

// ReviewService runs the lifecycle of property reviews.
type ReviewService struct {
	base
	store ReviewStore
}

// NewReviewService creates a ReviewService.
func NewReviewService(d Deps, store ReviewStore) *ReviewService {
	return &ReviewService{base: newBase(d), store: store}
}

// Create publishes a tenant's review. A tenant may review a property once.
func (s *ReviewService) Create(ctx context.Context, caller access.Caller, in CreateReview) (view *ReviewView, err error) {
	defer func() { observe(access.ResourceReview, "create", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceReview, access.ActCreate, rel, msgReviewCreate); err != nil {
		return nil, err
	}
	if !models.ValidRating(in.Rating) {
		return nil, access.Invalid("rating must be between 1 and 5")
	}
	exists, err := s.store.ExistsForAuthor(ctx, prop.ID, caller.ID)
	if err != nil {
		return nil, storeErr("check existing review", err)
	}
	if exists {
		return nil, access.Invalid("You have already reviewed this property")
	}

	now := s.now()
	rev := &models.Review{
		PropertyID: prop.ID,
		AuthorID:   caller.ID,
		Rating:     in.Rating,
		Title:      strings.TrimSpace(in.Title),
		Comment:    strings.TrimSpace(in.Comment),
		Status:     models.ReviewPublished,
		CreatedBy:  caller.ID,
		CreatedAt:  now,
		UpdatedBy:  caller.ID,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, rev); err != nil {
		return nil, storeErr("create review", err)
	}
	return s.view(ctx, rev, prop)
}

// Get returns one review. Hidden reviews are visible to the property's
// managers and the author only.
func (s *ReviewService) Get(ctx context.Context, caller access.Caller, id string) (view *ReviewView, err error) {
	defer func() { observe(access.ResourceReview, "read", err) }()

	rev, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	action := access.ActRead
	if rev.Status == models.ReviewHidden {
		action = access.ActReadHidden
	}
	if err := s.policy.Authorize(access.ResourceReview, action, rel, msgReviewView); err != nil {
		return nil, err
	}
	return s.view(ctx, rev, prop)
}

// ListByProperty returns a property's reviews, newest first, with the
// published rating summary.
func (s *ReviewService) ListByProperty(ctx context.Context, caller access.Caller, propertyID string, p Page) (list *ReviewList, err error) {
	defer func() { observe(access.ResourceReview, "list", err) }()

	prop, rel, err := s.resolveProperty(ctx, caller, propertyID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceReview, access.ActList, rel, msgReviewView); err != nil {
		return nil, err
	}
	includeHidden, err := s.policy.Allowed(access.ResourceReview, access.ActReadHidden, rel)
	if err != nil {
		return nil, access.Internal(err)
	}
	vis := repositories.ReviewVisibility{IncludeHidden: includeHidden, AuthorID: caller.ID}

	items, total, err := s.store.ListByProperty(ctx, prop.ID, vis, p.Limit, p.Offset())
	if err != nil {
		return nil, storeErr("list reviews", err)
	}
	summary, err := s.store.Summary(ctx, prop.ID)
	if err != nil {
		return nil, storeErr("summarise reviews", err)
	}
	views := make([]*ReviewView, 0, len(items))
	for _, rev := range items {
		if rev.Status == models.ReviewHidden && !includeHidden && rev.AuthorID != caller.ID {
			continue
		}
		v, err := s.view(ctx, rev, prop)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return &ReviewList{List: *newList(views, total, p), Summary: summary}, nil
}

// Update merges the whitelisted subset of in. The author edits the content;
// the property's managers moderate and respond.
func (s *ReviewService) Update(ctx context.Context, caller access.Caller, id string, in UpdateReview) (view *ReviewView, err error) {
	defer func() { observe(access.ResourceReview, "update", err) }()

	rev, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.policy.UpdateFields(access.ResourceReview, rel, in.Fields(), msgReviewUpdate)
	if err != nil {
		return nil, err
	}
	if fields.Has("rating") && !models.ValidRating(*in.Rating) {
		return nil, access.Invalid("rating must be between 1 and 5")
	}
	if fields.Has("status") && !models.ValidReviewStatus(*in.Status) {
		return nil, access.Invalid("status must be one of published, hidden")
	}

	now := s.now()
	if fields.Has("rating") {
		rev.Rating = *in.Rating
	}
	if fields.Has("title") {
		rev.Title = strings.TrimSpace(*in.Title)
	}
	if fields.Has("comment") {
		rev.Comment = strings.TrimSpace(*in.Comment)
	}
	if fields.Has("status") {
		rev.Status = *in.Status
	}
	if fields.Has("landlordResponse") {
		s.stampResponse(rev, caller, *in.LandlordResponse)
	}
	rev.UpdatedBy = caller.ID
	rev.UpdatedAt = now

	if err := s.store.Update(ctx, rev); err != nil {
		return nil, updateErr("update review", msgReviewNotFound, err)
	}
	return s.view(ctx, rev, prop)
}

// Delete removes a review.
func (s *ReviewService) Delete(ctx context.Context, caller access.Caller, id string) (err error) {
	defer func() { observe(access.ResourceReview, "delete", err) }()

	rev, _, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(access.ResourceReview, access.ActDelete, rel, msgReviewDelete); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, rev.ID)
	if err != nil {
		return storeErr("delete review", err)
	}
	if !deleted {
		return access.NotFound(msgReviewNotFound)
	}
	return nil
}

// Respond sets the landlord's response and stamps who responded and when.
func (s *ReviewService) Respond(ctx context.Context, caller access.Caller, id string, in RespondToReview) (view *ReviewView, err error) {
	defer func() { observe(access.ResourceReview, "respond", err) }()

	rev, prop, rel, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(access.ResourceReview, access.ActRespond, rel, msgReviewRespond); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Response) == "" {
		return nil, access.Invalid("response is required")
	}

	s.stampResponse(rev, caller, in.Response)
	rev.UpdatedBy = caller.ID
	rev.UpdatedAt = *rev.RespondedAt

	if err := s.store.Update(ctx, rev); err != nil {
		return nil, updateErr("respond to review", msgReviewNotFound, err)
	}
	return s.view(ctx, rev, prop)
}

func (s *ReviewService) stampResponse(rev *models.Review, caller access.Caller, response string) {
	rev.LandlordResponse = strings.TrimSpace(response)
	if rev.LandlordResponse == "" {
		rev.RespondedAt = nil
		rev.RespondedBy = nil
		return
	}
	rev.RespondedAt = timePtr(s.now())
	rev.RespondedBy = strPtr(caller.ID)
}

func (s *ReviewService) load(ctx context.Context, caller access.Caller, id string) (*models.Review, *models.Property, access.Relations, error) {
	rev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, access.Relations{}, storeErr("load review", err)
	}
	if rev == nil {
		return nil, nil, access.Relations{}, access.NotFound(msgReviewNotFound)
	}
	prop, rel, err := s.resolveProperty(ctx, caller, rev.PropertyID)
	if err != nil {
		return nil, nil, access.Relations{}, err
	}
	return rev, prop, rel.WithRecordActor(caller.ID, &rev.AuthorID), nil
}

func (s *ReviewService) view(ctx context.Context, rev *models.Review, prop *models.Property) (*ReviewView, error) {
	actors, err := s.actors(ctx, rev.AuthorID, deref(rev.RespondedBy))
	if err != nil {
		return nil, err
	}
	return &ReviewView{Review: rev, Property: prop.Summary(), Actors: actors}, nil
}
