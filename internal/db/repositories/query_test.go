package repositories

import (
	"context"
	"testing"

	"github.com/propertydesk/propertydesk/internal/access"
)

func TestConditions_WhereEmpty(t *testing.T) {
	var c conditions
	if got := c.where(); got != "" {
		t.Errorf("where() = %q, want empty", got)
	}
}

func TestConditions_AddScope(t *testing.T) {
	tests := []struct {
		name      string
		scope     access.Scope
		wantWhere string
		wantArgs  int
	}{
		{"all adds nothing", access.Scope{All: true}, "", 0},
		{"counterparty only", access.Scope{CounterpartyID: "t1"}, " WHERE (tenant_id = ?)", 1},
		{"record actor only", access.Scope{RecordActorID: "i1"}, " WHERE (inspector_id = ?)", 1},
		{"both", access.Scope{CounterpartyID: "u1", RecordActorID: "u1"}, " WHERE (tenant_id = ? OR inspector_id = ?)", 2},
		{"empty scope matches nothing", access.Scope{}, " WHERE FALSE", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c conditions
			c.addScope(tt.scope, "tenant_id", "inspector_id")
			if got := c.where(); got != tt.wantWhere {
				t.Errorf("where() = %q, want %q", got, tt.wantWhere)
			}
			if len(c.args) != tt.wantArgs {
				t.Errorf("args = %v, want %d", c.args, tt.wantArgs)
			}
		})
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		limit, offset int
		wantL, wantO  int
	}{
		{0, 0, 20, 0},
		{50, 10, 50, 10},
		{500, -3, 20, 0},
	}
	for _, tt := range tests {
		l, o := page(tt.limit, tt.offset)
		if l != tt.wantL || o != tt.wantO {
			t.Errorf("page(%d,%d) = %d,%d want %d,%d", tt.limit, tt.offset, l, o, tt.wantL, tt.wantO)
		}
	}
}

func TestGetByID_MalformedIDIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	lookups := map[string]func(id string) (bool, error){
		"property": func(id string) (bool, error) {
			p, err := NewPropertyRepository(db).GetByID(ctx, id)
			return p != nil, err
		},
		"condition report": func(id string) (bool, error) {
			r, err := NewConditionReportRepository(db).GetByID(ctx, id)
			return r != nil, err
		},
		"inspection": func(id string) (bool, error) {
			in, err := NewInspectionRepository(db).GetByID(ctx, id)
			return in != nil, err
		},
		"review": func(id string) (bool, error) {
			r, err := NewReviewRepository(db).GetByID(ctx, id)
			return r != nil, err
		},
		"maintenance request": func(id string) (bool, error) {
			m, err := NewMaintenanceRepository(db).GetByID(ctx, id)
			return m != nil, err
		},
		"landlord profile": func(id string) (bool, error) {
			p, err := NewLandlordProfileRepository(db).GetByID(ctx, id)
			return p != nil, err
		},
	}
	for name, get := range lookups {
		for _, id := range []string{"", "not-a-uuid", "abc", "1 OR 1=1"} {
			found, err := get(id)
			if err != nil || found {
				t.Errorf("%s GetByID(%q) = %v, %v; want not found", name, id, found, err)
			}
		}
	}
	// No query may reach the database for a malformed id.
	expectationsMet(t, mock)
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{rowID, true},
		{"7F1D2C3E-4B5A-4C6D-8E9F-0A1B2C3D4E5F", true},
		{"", false},
		{"c1", false},
		{"7f1d2c3e-4b5a-4c6d-8e9f", false},
	}
	for _, tt := range tests {
		if got := validID(tt.id); got != tt.want {
			t.Errorf("validID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
