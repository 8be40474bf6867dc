package fusion

import (
	"errors"
	"math"
	"testing"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
)

func testEngine(t *testing.T, minConfidence float64) *Engine {
	t.Helper()
	e, err := New(Options{
		MinConfidence: minConfidence,
		TrustWeights: map[string]float64{
			"registry": 0.5, "directory": 0.3, "social": 0.15, "web": 0.1,
		},
		Jurisdictions: config.DefaultJurisdictions(),
		Localities:    config.DefaultLocalities(),
		SourceCategories: map[string]string{
			"cipc_registry": "registry",
			"biz_directory": "directory",
			"web_search":    "web",
			"alt_search":    "web",
		},
		SourceOrder: []string{"cipc_registry", "biz_directory", "web_search", "alt_search"},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func cand(source, field, value string, conf float64) discovery.RawCandidate {
	return discovery.RawCandidate{Source: source, Field: field, Value: value, Confidence: conf}
}

func TestFuseAcceptsCorroboratedRecord(t *testing.T) {
	e := testEngine(t, 0.6)
	candidates := []discovery.RawCandidate{
		cand("cipc_registry", "name", "Acme Trading Pty Ltd", 0.9),
		cand("cipc_registry", "registration_number", "2001/123456/07", 0.9),
		cand("cipc_registry", "phone", "011 555 0100", 0.8),
		cand("cipc_registry", "tax_id", "9123456789", 0.8),
		cand("web_search", "name", "acme trading pty ltd", 0.6),
		cand("web_search", "email", "Info@Acme.co.za", 0.7),
		cand("web_search", "website", "https://acme.co.za/", 0.7),
		cand("web_search", "city", "Johannesburg", 0.6),
		cand("web_search", "industry", "Mining Supplies", 0.5),
	}

	rec, err := e.Fuse(candidates)
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if rec.Name != "Acme Trading Pty Ltd" {
		t.Fatalf("unexpected name %q", rec.Name)
	}
	if rec.Contact.Phone != "+27115550100" {
		t.Fatalf("phone not normalized: %q", rec.Contact.Phone)
	}
	if rec.Contact.Email != "info@acme.co.za" {
		t.Fatalf("email not lowercased: %q", rec.Contact.Email)
	}
	if rec.Contact.Website != "https://acme.co.za" {
		t.Fatalf("website not normalized: %q", rec.Contact.Website)
	}
	if rec.RegistrationNumber != "2001/123456/07" {
		t.Fatalf("registration number lost: %q", rec.RegistrationNumber)
	}

	// two sources agree on the normalized name, so its confidence carries
	// the corroboration bonus
	if got := rec.Confidence.Fields[discovery.FieldName]; got != 1.0 {
		t.Fatalf("name confidence = %v, want corroborated 1.0", got)
	}

	// all eight required fields present, mean field confidence 0.75,
	// registry+web trust bonus 0.6
	want := 0.4*1.0 + 0.5*0.75 + 0.1*0.6
	if math.Abs(rec.Confidence.Overall-want) > 1e-9 {
		t.Fatalf("overall = %v, want %v", rec.Confidence.Overall, want)
	}

	if len(rec.SourcesUsed) != 2 {
		t.Fatalf("expected both sources recorded, got %v", rec.SourcesUsed)
	}
}

func TestFuseRejectsSparseRecord(t *testing.T) {
	e := testEngine(t, 0.6)
	_, err := e.Fuse([]discovery.RawCandidate{
		cand("web_search", "name", "Mystery Traders", 0.5),
	})
	if !errors.Is(err, discovery.ErrLowConfidence) {
		t.Fatalf("expected low-confidence rejection, got %v", err)
	}
}

func TestFuseRejectsWhenNameMissing(t *testing.T) {
	e := testEngine(t, 0.1)
	_, err := e.Fuse([]discovery.RawCandidate{
		cand("web_search", "phone", "011 555 0100", 0.9),
		cand("web_search", "email", "info@acme.co.za", 0.9),
	})
	if !errors.Is(err, discovery.ErrLowConfidence) {
		t.Fatalf("expected rejection without a name, got %v", err)
	}
}

func TestFuseRejectsEmptyInput(t *testing.T) {
	e := testEngine(t, 0.6)
	if _, err := e.Fuse(nil); !errors.Is(err, discovery.ErrLowConfidence) {
		t.Fatalf("expected low-confidence error, got %v", err)
	}
	// unknown fields and blank values are dropped before grouping
	_, err := e.Fuse([]discovery.RawCandidate{
		cand("web_search", "favourite_colour", "blue", 0.9),
		cand("web_search", "name", "   ", 0.9),
	})
	if !errors.Is(err, discovery.ErrLowConfidence) {
		t.Fatalf("expected low-confidence error, got %v", err)
	}
}

func TestFuseDropsInvalidValues(t *testing.T) {
	e := testEngine(t, 0.05)
	rec, err := e.Fuse([]discovery.RawCandidate{
		cand("cipc_registry", "name", "Acme Trading Pty Ltd", 0.9),
		cand("cipc_registry", "registration_number", "ABC-123", 0.9),
		cand("cipc_registry", "tax_id", "12345", 0.9),
		cand("cipc_registry", "phone", "555", 0.9),
		cand("cipc_registry", "email", "not-an-email", 0.9),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if rec.RegistrationNumber != "" {
		t.Fatalf("invalid registration number kept: %q", rec.RegistrationNumber)
	}
	if rec.Compliance.TaxID != "" {
		t.Fatalf("invalid tax id kept: %q", rec.Compliance.TaxID)
	}
	if rec.Contact.Phone != "" || rec.Contact.Email != "" {
		t.Fatalf("invalid contact details kept: %+v", rec.Contact)
	}
	// dropped fields must not appear in the confidence map either
	for _, f := range []string{discovery.FieldRegistrationNumber, discovery.FieldTaxID, discovery.FieldPhone, discovery.FieldEmail} {
		if _, ok := rec.Confidence.Fields[f]; ok {
			t.Fatalf("dropped field %s still scored", f)
		}
	}
}

func TestPickWinnerTieBreaks(t *testing.T) {
	e := testEngine(t, 0.05)

	// equal confidence: higher trust category wins
	rec, err := e.Fuse([]discovery.RawCandidate{
		cand("web_search", "name", "Acme Web Version", 0.7),
		cand("cipc_registry", "name", "Acme Registry Version", 0.7),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if rec.Name != "Acme Registry Version" {
		t.Fatalf("registry should win the trust tie-break, got %q", rec.Name)
	}

	// equal confidence and category: registration order wins
	rec, err = e.Fuse([]discovery.RawCandidate{
		cand("alt_search", "name", "Acme Alt Version", 0.7),
		cand("web_search", "name", "Acme Web Version", 0.7),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if rec.Name != "Acme Web Version" {
		t.Fatalf("earlier-registered source should win, got %q", rec.Name)
	}
}

func TestWebsiteCorroborationAcrossForms(t *testing.T) {
	e := testEngine(t, 0.05)
	rec, err := e.Fuse([]discovery.RawCandidate{
		cand("cipc_registry", "name", "Acme Trading Pty Ltd", 0.9),
		cand("web_search", "website", "https://acme.co.za/", 0.6),
		cand("biz_directory", "website", "acme.co.za", 0.6),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if got := rec.Confidence.Fields[discovery.FieldWebsite]; math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("website confidence = %v, want corroborated 0.7", got)
	}
	if rec.Contact.Website != "https://acme.co.za" {
		t.Fatalf("unexpected website %q", rec.Contact.Website)
	}
}

func TestAddressParsingFillsSubfields(t *testing.T) {
	e := testEngine(t, 0.05)
	rec, err := e.Fuse([]discovery.RawCandidate{
		cand("cipc_registry", "name", "Acme Trading Pty Ltd", 0.9),
		cand("biz_directory", "address", "12 Main Road, Johannesburg, Gauteng, 2001", 0.7),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if rec.Address.Street != "12 Main Road" {
		t.Fatalf("street = %q", rec.Address.Street)
	}
	if rec.Address.City != "Johannesburg" {
		t.Fatalf("city = %q", rec.Address.City)
	}
	if rec.Address.Province != "Gauteng" {
		t.Fatalf("province = %q", rec.Address.Province)
	}
	if rec.Address.PostalCode != "2001" {
		t.Fatalf("postal code = %q", rec.Address.PostalCode)
	}

	// an explicit city candidate takes precedence over the parsed one
	rec, err = e.Fuse([]discovery.RawCandidate{
		cand("cipc_registry", "name", "Acme Trading Pty Ltd", 0.9),
		cand("cipc_registry", "city", "Sandton", 0.9),
		cand("biz_directory", "address", "12 Main Road, Johannesburg, 2001", 0.7),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if rec.Address.City != "Sandton" {
		t.Fatalf("explicit city should win, got %q", rec.Address.City)
	}
}

func TestConfidenceClamping(t *testing.T) {
	e := testEngine(t, 0.05)
	rec, err := e.Fuse([]discovery.RawCandidate{
		cand("cipc_registry", "name", "Acme Trading Pty Ltd", 3.5),
		cand("web_search", "industry", "Mining", -2.0),
	})
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if got := rec.Confidence.Fields[discovery.FieldName]; got != 1.0 {
		t.Fatalf("name confidence should clamp to 1.0, got %v", got)
	}
	if got := rec.Confidence.Fields[discovery.FieldIndustry]; got != 0.0 {
		t.Fatalf("industry confidence should clamp to 0.0, got %v", got)
	}
}
