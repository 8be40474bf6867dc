package fusion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
)

var (
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneDigitPattern = regexp.MustCompile(`[^\d+]`)
	postalCodePattern = regexp.MustCompile(`\b(\d{4,5})\s*$`)
)

// validator applies field-specific post-validation to winning candidates.
// Identifier checks are data-driven: each jurisdiction entry compiles to a
// pattern, and a value matching none of its field's patterns is discarded
// outright rather than down-weighted.
type validator struct {
	identifierPatterns map[string][]*regexp.Regexp
	localities         []string
}

func newValidator(jurisdictions []config.Jurisdiction, localities []string) (*validator, error) {
	patterns := make(map[string][]*regexp.Regexp)
	for _, j := range jurisdictions {
		re, err := regexp.Compile(j.Pattern)
		if err != nil {
			return nil, fmt.Errorf("jurisdiction %s: bad pattern %q: %w", j.Name, j.Pattern, err)
		}
		patterns[j.Field] = append(patterns[j.Field], re)
	}
	return &validator{identifierPatterns: patterns, localities: localities}, nil
}

// validIdentifier checks a registration/tax identifier against the
// jurisdiction table for its field. An empty table accepts everything.
func (v *validator) validIdentifier(field, value string) bool {
	patterns, ok := v.identifierPatterns[field]
	if !ok || len(patterns) == 0 {
		return true
	}
	cleaned := strings.TrimSpace(value)
	for _, re := range patterns {
		if re.MatchString(cleaned) {
			return true
		}
	}
	return false
}

// NormalizePhone converts a local number to the +27 international form.
// Numbers that do not survive cleanup to a plausible length are rejected.
func NormalizePhone(raw string) (string, bool) {
	cleaned := phoneDigitPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	switch {
	case strings.HasPrefix(cleaned, "+"):
		digits := cleaned[1:]
		if len(digits) < 10 || len(digits) > 14 {
			return "", false
		}
		return cleaned, true
	case strings.HasPrefix(cleaned, "27") && len(cleaned) == 11:
		return "+" + cleaned, true
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		return "+27" + cleaned[1:], true
	default:
		return "", false
	}
}

// ValidEmail applies the syntactic check; failures drop the field.
func ValidEmail(raw string) bool {
	return emailPattern.MatchString(strings.TrimSpace(raw))
}

// parseAddress splits a free-form address using the known locality list and
// a trailing-digits postal code pattern. Whatever precedes the locality is
// treated as the street.
func (v *validator) parseAddress(raw string) discovery.Address {
	addr := discovery.Address{}
	text := strings.TrimSpace(raw)
	if text == "" {
		return addr
	}

	if m := postalCodePattern.FindStringSubmatch(text); m != nil {
		addr.PostalCode = m[1]
		text = strings.TrimSpace(strings.TrimSuffix(text, m[0]))
		text = strings.TrimRight(text, ", ")
	}

	lower := strings.ToLower(text)
	for _, locality := range v.localities {
		idx := strings.LastIndex(lower, strings.ToLower(locality))
		if idx < 0 {
			continue
		}
		addr.City = locality
		street := strings.TrimRight(strings.TrimSpace(text[:idx]), ", ")
		rest := strings.Trim(strings.TrimSpace(text[idx+len(locality):]), ", ")
		addr.Street = street
		if rest != "" {
			addr.Province = rest
		}
		return addr
	}

	addr.Street = text
	return addr
}
