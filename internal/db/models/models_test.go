package models

import (
	"encoding/json"
	"testing"

	"github.com/lib/pq"
)

// ---------------------------------------------------------------------------
// ConditionItems Value / Scan
// ---------------------------------------------------------------------------

func TestConditionItems_ValueNil(t *testing.T) {
	v, err := ConditionItems(nil).Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("Value() = %s, want []", v)
	}
}

func TestConditionItems_ScanBytes(t *testing.T) {
	var items ConditionItems
	if err := items.Scan([]byte(`[{"area":"kitchen","condition":"good"}]`)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(items) != 1 || items[0].Area != "kitchen" || items[0].Condition != "good" {
		t.Errorf("Scan() = %+v", items)
	}
}

func TestConditionItems_ScanString(t *testing.T) {
	var items ConditionItems
	if err := items.Scan(`[{"area":"bathroom","condition":"fair","notes":"grout"}]`); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if items[0].Notes != "grout" {
		t.Errorf("Notes = %q, want grout", items[0].Notes)
	}
}

func TestConditionItems_ScanNil(t *testing.T) {
	items := ConditionItems{{Area: "x"}}
	if err := items.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("Scan(nil) = %+v, want empty non-nil", items)
	}
}

func TestConditionItems_ScanUnsupported(t *testing.T) {
	var items ConditionItems
	if err := items.Scan(42); err == nil {
		t.Error("Scan(int) expected error")
	}
}

// ---------------------------------------------------------------------------
// Property helpers
// ---------------------------------------------------------------------------

func TestProperty_HasTenant(t *testing.T) {
	p := &Property{TenantIDs: pq.StringArray{"t1", "t2"}}
	if !p.HasTenant("t2") {
		t.Error("HasTenant(t2) = false")
	}
	if p.HasTenant("t3") {
		t.Error("HasTenant(t3) = true")
	}
}

func TestProperty_Summary(t *testing.T) {
	p := &Property{ID: "p1", Title: "Flat 2", Address: "1 High St", City: "Leeds", Rent: 900}
	s := p.Summary()
	if s.ID != "p1" || s.Title != "Flat 2" || s.City != "Leeds" {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestUser_Summary(t *testing.T) {
	u := &User{ID: "u1", Name: "Sam", Email: "sam@example.com", Role: "tenant"}
	if got := u.Summary(); got != (UserSummary{ID: "u1", Name: "Sam", Email: "sam@example.com", Role: "tenant"}) {
		t.Errorf("Summary() = %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Enum validators
// ---------------------------------------------------------------------------

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"property available", ValidPropertyStatus(PropertyAvailable), true},
		{"property bogus", ValidPropertyStatus("sold"), false},
		{"report move_out", ValidReportType(ReportMoveOut), true},
		{"report bogus type", ValidReportType("annual"), false},
		{"report signed", ValidReportStatus(ReportSigned), true},
		{"inspection routine", ValidInspectionType(InspectionRoutine), true},
		{"inspection cancelled", ValidInspectionStatus(InspectionCancelled), true},
		{"inspection bogus status", ValidInspectionStatus("late"), false},
		{"rating 0", ValidRating(0), false},
		{"rating 5", ValidRating(5), true},
		{"rating 6", ValidRating(6), false},
		{"review hidden", ValidReviewStatus(ReviewHidden), true},
		{"priority urgent", ValidPriority(PriorityUrgent), true},
		{"priority bogus", ValidPriority("asap"), false},
		{"maintenance in_progress", ValidMaintenanceStatus(MaintenanceInProgress), true},
		{"maintenance bogus", ValidMaintenanceStatus("done"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// JSON field names
// ---------------------------------------------------------------------------

func TestConditionReport_JSONFieldNames(t *testing.T) {
	r := ConditionReport{ID: "c1", SignedByLandlord: true}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"signedByLandlord", "propertyId", "updatedBy", "signedByTenant"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON missing key %q: %s", key, data)
		}
	}
	if _, ok := m["landlordSignatureDate"]; ok {
		t.Error("landlordSignatureDate should be omitted when nil")
	}
}
