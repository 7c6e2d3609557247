// Package access decides what a caller may do to a property-scoped record.
//
// A request flows through three steps: the Resolver loads the parent
// property and derives the caller's Relations to it, the Policy decides
// whether those relations permit an operation (and which fields an update
// may touch), and the lifecycle services in internal/services act on the
// result. Callers are always passed explicitly.
package access

import (
	"context"
	"fmt"
)

// Caller is the authenticated identity behind a request. An empty ID is an
// anonymous caller.
type Caller struct {
	ID       string
	Role     string
	MemberID string
}

// Anonymous reports whether the caller is unauthenticated.
func (c Caller) Anonymous() bool { return c.ID == "" }

// Parent is the entity a record hangs off, reduced to its actor references.
type Parent struct {
	ID              string
	OwnerID         string
	DelegateIDs     []string
	CounterpartyIDs []string

	// Entity is the loaded parent record, carried through for callers that
	// render it alongside the child.
	Entity interface{}
}

// Relations are the caller's relationship flags to a parent and, once
// applied, to a single record.
type Relations struct {
	Owner        bool
	Delegate     bool
	Counterparty bool
	RecordActor  bool
}

// Relate compares caller against the parent's actor references by value.
// Anonymous callers relate to nothing.
func Relate(caller Caller, p *Parent) Relations {
	if caller.Anonymous() || p == nil {
		return Relations{}
	}
	return Relations{
		Owner:        p.OwnerID != "" && p.OwnerID == caller.ID,
		Delegate:     contains(p.DelegateIDs, caller.ID),
		Counterparty: contains(p.CounterpartyIDs, caller.ID),
	}
}

// Scoped narrows the counterparty flag to one record: it survives only when
// the record's counterparty reference names the caller.
func (r Relations) Scoped(callerID string, counterpartyRef *string) Relations {
	if r.Counterparty && (counterpartyRef == nil || *counterpartyRef != callerID) {
		r.Counterparty = false
	}
	return r
}

// WithRecordActor sets the record actor flag when any of refs names the caller.
func (r Relations) WithRecordActor(callerID string, refs ...*string) Relations {
	if callerID == "" {
		return r
	}
	for _, ref := range refs {
		if ref != nil && *ref == callerID {
			r.RecordActor = true
			return r
		}
	}
	return r
}

// Any reports whether at least one flag is set.
func (r Relations) Any() bool {
	return r.Owner || r.Delegate || r.Counterparty || r.RecordActor
}

// Manager reports whether the caller is owner or delegate.
func (r Relations) Manager() bool { return r.Owner || r.Delegate }

// CounterpartyOnly reports a counterparty without owner or delegate rights.
func (r Relations) CounterpartyOnly() bool {
	return r.Counterparty && !r.Owner && !r.Delegate
}

// Subjects lists the policy subjects held by r. "public" is always present.
func (r Relations) Subjects() []string {
	subs := make([]string, 0, 5)
	if r.Owner {
		subs = append(subs, SubjectOwner)
	}
	if r.Delegate {
		subs = append(subs, SubjectDelegate)
	}
	if r.Counterparty {
		subs = append(subs, SubjectCounterparty)
	}
	if r.RecordActor {
		subs = append(subs, SubjectRecordActor)
	}
	return append(subs, SubjectPublic)
}

func (r Relations) String() string {
	return fmt.Sprintf("owner=%t delegate=%t counterparty=%t record_actor=%t",
		r.Owner, r.Delegate, r.Counterparty, r.RecordActor)
}

// ParentLoader loads a parent by id. It returns (nil, nil) when the parent
// does not exist.
type ParentLoader interface {
	LoadParent(ctx context.Context, id string) (*Parent, error)
}

// ParentLoaderFunc adapts a function to ParentLoader.
type ParentLoaderFunc func(ctx context.Context, id string) (*Parent, error)

// LoadParent calls f.
func (f ParentLoaderFunc) LoadParent(ctx context.Context, id string) (*Parent, error) {
	return f(ctx, id)
}

// Resolver derives Relations for a caller against a parent loaded on demand.
type Resolver struct {
	parents ParentLoader
	noun    string
}

// NewResolver creates a Resolver. noun names the parent in not-found
// messages ("Property", "Landlord").
func NewResolver(parents ParentLoader, noun string) *Resolver {
	return &Resolver{parents: parents, noun: noun}
}

// Resolve loads the parent and relates caller to it. A missing parent is
// NotFound and no flags are computed.
func (r *Resolver) Resolve(ctx context.Context, caller Caller, parentID string) (*Parent, Relations, error) {
	if parentID == "" {
		return nil, Relations{}, NotFound(r.noun + " not found")
	}
	p, err := r.parents.LoadParent(ctx, parentID)
	if err != nil {
		return nil, Relations{}, Internal(fmt.Errorf("failed to load %s: %w", parentID, err))
	}
	if p == nil {
		return nil, Relations{}, NotFound(r.noun + " not found")
	}
	return p, Relate(caller, p), nil
}

func contains(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
