package discovery

import (
	"testing"
	"time"
)

func TestMergeEmptyAndSingleton(t *testing.T) {
	if Merge(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
	if Merge([]*FusedRecord{nil, nil}) != nil {
		t.Fatalf("expected nil when every record is nil")
	}
	rec := &FusedRecord{Name: "Acme Pty Ltd", Confidence: Confidence{Overall: 0.8}}
	out := Merge([]*FusedRecord{rec})
	if out == rec {
		t.Fatalf("singleton merge must copy")
	}
	if out.Name != rec.Name {
		t.Fatalf("unexpected name %q", out.Name)
	}
}

func TestMergePicksByFieldConfidence(t *testing.T) {
	older := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := &FusedRecord{
		Name:    "Acme Pty Ltd",
		Contact: Contact{Phone: "+27115550100", Email: "info@acme.example"},
		BusinessInfo: BusinessInfo{
			EmployeeCount: 120,
			FoundedYear:   1998,
		},
		Compliance:   Compliance{Certifications: []string{"ISO 9001"}},
		SourcesUsed:  []string{"cipc_registry"},
		DiscoveredAt: older,
		Confidence: Confidence{
			Overall: 0.9,
			Fields:  map[string]float64{FieldPhone: 0.6, FieldEmail: 0.9, FieldFoundedYear: 0.8},
		},
	}
	b := &FusedRecord{
		Name:    "Acme Holdings Pty Ltd",
		Contact: Contact{Phone: "+27115550199"},
		BusinessInfo: BusinessInfo{
			EmployeeCount: 80,
			FoundedYear:   2001,
		},
		Compliance:   Compliance{Certifications: []string{"ISO 9001", "ISO 14001"}},
		SourcesUsed:  []string{"web_search"},
		DiscoveredAt: newer,
		Confidence: Confidence{
			Overall: 0.7,
			Fields:  map[string]float64{FieldPhone: 0.85, FieldFoundedYear: 0.4},
		},
	}

	out := Merge([]*FusedRecord{b, a})
	if out.Name != "Acme Pty Ltd" {
		t.Fatalf("baseline should come from the higher-overall record, got %q", out.Name)
	}
	if out.Contact.Phone != "+27115550199" {
		t.Fatalf("phone should follow per-field confidence, got %q", out.Contact.Phone)
	}
	if out.Contact.Email != "info@acme.example" {
		t.Fatalf("email lost in merge")
	}
	if out.BusinessInfo.FoundedYear != 1998 {
		t.Fatalf("founded year should follow confidence, got %d", out.BusinessInfo.FoundedYear)
	}
	if out.BusinessInfo.EmployeeCount != 120 {
		t.Fatalf("employee count should take the maximum, got %d", out.BusinessInfo.EmployeeCount)
	}
	if len(out.Compliance.Certifications) != 2 {
		t.Fatalf("certifications should union, got %v", out.Compliance.Certifications)
	}
	if len(out.SourcesUsed) != 2 {
		t.Fatalf("sources should union, got %v", out.SourcesUsed)
	}
	if !out.DiscoveredAt.Equal(newer) {
		t.Fatalf("discovered-at should be the latest, got %v", out.DiscoveredAt)
	}
}
