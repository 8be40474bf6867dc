package fusion

import "testing"

func TestCanonicalField(t *testing.T) {
	cases := map[string]string{
		"Company Name":     "name",
		"reg-number":       "registration_number",
		"VAT":              "tax_id",
		"telephone":        "phone",
		"Email Address":    "email",
		"homepage":         "website",
		"year_established": "founded_year",
		"physical_address": "address",
		"favourite_colour": "",
		"":                 "",
	}
	for in, want := range cases {
		if got := CanonicalField(in); got != want {
			t.Fatalf("CanonicalField(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeCompanyName(t *testing.T) {
	cases := map[string]string{
		"acme trading pty ltd":   "Acme Trading Pty Ltd",
		"ACME TRADING LTD":       "Acme Trading Ltd",
		"Smith & Sons cc":        "Smith & Sons CC",
		"  widget   works  inc.": "Widget Works Inc",
	}
	for in, want := range cases {
		if got := NormalizeCompanyName(in); got != want {
			t.Fatalf("NormalizeCompanyName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"011 555 0100":     "+27115550100",
		"0115550100":       "+27115550100",
		"27115550100":      "+27115550100",
		"+27 11 555 0100":  "+27115550100",
		"(011) 555-0100":   "+27115550100",
		"+44 20 7946 0958": "+442079460958",
	}
	for in, want := range valid {
		got, ok := NormalizePhone(in)
		if !ok || got != want {
			t.Fatalf("NormalizePhone(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "555", "12345678901234567890", "not a phone"} {
		if got, ok := NormalizePhone(in); ok {
			t.Fatalf("NormalizePhone(%q) accepted as %q", in, got)
		}
	}
}

func TestValidEmail(t *testing.T) {
	for _, in := range []string{"info@acme.co.za", "a.b+c@x.example.com"} {
		if !ValidEmail(in) {
			t.Fatalf("ValidEmail(%q) = false", in)
		}
	}
	for _, in := range []string{"", "not-an-email", "user@", "@host.com", "user@host"} {
		if ValidEmail(in) {
			t.Fatalf("ValidEmail(%q) = true", in)
		}
	}
}
