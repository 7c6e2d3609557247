package access

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

//go:embed model.conf
var modelText string

//go:embed policy.csv
var policyText string

// Policy subjects
const (
	SubjectOwner        = "owner"
	SubjectDelegate     = "delegate"
	SubjectCounterparty = "counterparty"
	SubjectRecordActor  = "record_actor"
	SubjectPublic       = "public"
)

// Resource kinds
const (
	ResourceProperty        = "property"
	ResourceConditionReport = "condition_report"
	ResourceInspection      = "inspection"
	ResourceReview          = "review"
	ResourceMaintenance     = "maintenance_request"
	ResourceLandlordProfile = "landlord_profile"
)

// Operations
const (
	ActCreate        = "create"
	ActRead          = "read"
	ActReadHidden    = "read_hidden"
	ActList          = "list"
	ActListOwn       = "list_own"
	ActUpdate        = "update"
	ActDelete        = "delete"
	ActSign          = "sign"
	ActAttach        = "attach"
	ActConfirm       = "confirm"
	ActComplete      = "complete"
	ActRespond       = "respond"
	ActResolve       = "resolve"
	ActVerify        = "verify"
	ActManageTenants = "manage_tenants"
)

const fieldPrefix = "field:"

// Policy evaluates the rule table for every resource kind.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy builds a Policy from the embedded model and rule table.
func NewPolicy() (*Policy, error) {
	return NewPolicyFromText(modelText, policyText)
}

// NewPolicyFromText builds a Policy from a casbin model and CSV rules.
func NewPolicyFromText(modelConf, rules string) (*Policy, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(rules))
	if err != nil {
		return nil, fmt.Errorf("failed to load policy rules: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

// MustNewPolicy is NewPolicy for package initialisation and tests.
func MustNewPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// Allowed reports whether any subject held by rel may perform action on resource.
func (p *Policy) Allowed(resource, action string, rel Relations) (bool, error) {
	for _, sub := range rel.Subjects() {
		ok, err := p.enforcer.Enforce(sub, resource, action)
		if err != nil {
			return false, fmt.Errorf("policy evaluation failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize is Allowed converted into a lifecycle error: Forbidden with
// deniedMsg on deny, Internal on evaluation failure.
func (p *Policy) Authorize(resource, action string, rel Relations, deniedMsg string) error {
	ok, err := p.Allowed(resource, action, rel)
	if err != nil {
		return Internal(err)
	}
	if !ok {
		return Forbidden(deniedMsg)
	}
	return nil
}

// Whitelist returns the subset of submitted field names rel may write, in
// sorted order.
func (p *Policy) Whitelist(resource string, rel Relations, submitted []string) ([]string, error) {
	out := make([]string, 0, len(submitted))
	for _, f := range submitted {
		ok, err := p.Allowed(resource, fieldPrefix+f, rel)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FieldSet is a set of whitelisted update fields.
type FieldSet map[string]bool

// Has reports whether field is in the set.
func (s FieldSet) Has(field string) bool { return s[field] }

// UpdateFields authorizes an update and returns the whitelisted fields.
// A caller without update rights gets Forbidden; an empty intersection
// gets NoValidUpdates.
func (p *Policy) UpdateFields(resource string, rel Relations, submitted []string, deniedMsg string) (FieldSet, error) {
	if err := p.Authorize(resource, ActUpdate, rel, deniedMsg); err != nil {
		return nil, err
	}
	allowed, err := p.Whitelist(resource, rel, submitted)
	if err != nil {
		return nil, Internal(err)
	}
	if len(allowed) == 0 {
		return nil, NoValidUpdates()
	}
	set := make(FieldSet, len(allowed))
	for _, f := range allowed {
		set[f] = true
	}
	return set, nil
}

// Scope restricts a list query. All lists everything under the parent;
// otherwise rows match when their counterparty reference equals
// CounterpartyID or their record actor equals RecordActorID.
type Scope struct {
	All            bool
	CounterpartyID string
	RecordActorID  string
}

// Matches reports whether a row with the given references is visible.
func (s Scope) Matches(counterpartyRef *string, actorRefs ...*string) bool {
	if s.All {
		return true
	}
	if s.CounterpartyID != "" && counterpartyRef != nil && *counterpartyRef == s.CounterpartyID {
		return true
	}
	if s.RecordActorID != "" {
		for _, ref := range actorRefs {
			if ref != nil && *ref == s.RecordActorID {
				return true
			}
		}
	}
	return false
}

// ListScope decides what a caller may list under a parent. Callers holding
// list see everything. Counterparties holding list_own see rows naming
// them. Any authenticated caller may see rows where they are the record
// actor when the resource grants list_own to record actors. Everyone else
// is Forbidden.
func (p *Policy) ListScope(resource string, rel Relations, callerID, deniedMsg string) (Scope, error) {
	all, err := p.Allowed(resource, ActList, rel)
	if err != nil {
		return Scope{}, Internal(err)
	}
	if all {
		return Scope{All: true}, nil
	}
	if callerID == "" {
		return Scope{}, Forbidden(deniedMsg)
	}

	var scope Scope
	if rel.Counterparty {
		ok, err := p.Allowed(resource, ActListOwn, Relations{Counterparty: true})
		if err != nil {
			return Scope{}, Internal(err)
		}
		if ok {
			scope.CounterpartyID = callerID
		}
	}
	ok, err := p.Allowed(resource, ActListOwn, Relations{RecordActor: true})
	if err != nil {
		return Scope{}, Internal(err)
	}
	if ok {
		scope.RecordActorID = callerID
	}

	if scope.CounterpartyID == "" && scope.RecordActorID == "" {
		return Scope{}, Forbidden(deniedMsg)
	}
	return scope, nil
}
