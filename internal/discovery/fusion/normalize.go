package fusion

import (
	"strings"

	"github.com/procurehq/supplierscope/internal/discovery"
)

// fieldAliases maps source-specific field spellings onto the canonical
// vocabulary. Adapters are free to emit whatever a source calls a field;
// everything funnels through here before grouping.
var fieldAliases = map[string]string{
	"name":                discovery.FieldName,
	"company_name":        discovery.FieldName,
	"business_name":       discovery.FieldName,
	"legal_name":          discovery.FieldName,
	"trading_name":        discovery.FieldName,
	"entity_name":         discovery.FieldName,
	"registration_number": discovery.FieldRegistrationNumber,
	"reg_number":          discovery.FieldRegistrationNumber,
	"reg_no":              discovery.FieldRegistrationNumber,
	"company_number":      discovery.FieldRegistrationNumber,
	"enterprise_number":   discovery.FieldRegistrationNumber,
	"street":              discovery.FieldStreet,
	"street_address":      discovery.FieldStreet,
	"address_line_1":      discovery.FieldStreet,
	"city":                discovery.FieldCity,
	"town":                discovery.FieldCity,
	"locality":            discovery.FieldCity,
	"province":            discovery.FieldProvince,
	"state":               discovery.FieldProvince,
	"region":              discovery.FieldProvince,
	"postal_code":         discovery.FieldPostalCode,
	"postcode":            discovery.FieldPostalCode,
	"zip":                 discovery.FieldPostalCode,
	"zip_code":            discovery.FieldPostalCode,
	"country":             discovery.FieldCountry,
	"phone":               discovery.FieldPhone,
	"phone_number":        discovery.FieldPhone,
	"telephone":           discovery.FieldPhone,
	"tel":                 discovery.FieldPhone,
	"mobile":              discovery.FieldPhone,
	"email":               discovery.FieldEmail,
	"email_address":       discovery.FieldEmail,
	"contact_email":       discovery.FieldEmail,
	"website":             discovery.FieldWebsite,
	"url":                 discovery.FieldWebsite,
	"web":                 discovery.FieldWebsite,
	"homepage":            discovery.FieldWebsite,
	"industry":            discovery.FieldIndustry,
	"sector":              discovery.FieldIndustry,
	"category":            discovery.FieldIndustry,
	"founded_year":        discovery.FieldFoundedYear,
	"founded":             discovery.FieldFoundedYear,
	"established":         discovery.FieldFoundedYear,
	"year_established":    discovery.FieldFoundedYear,
	"employee_count":      discovery.FieldEmployeeCount,
	"employees":           discovery.FieldEmployeeCount,
	"staff_count":         discovery.FieldEmployeeCount,
	"headcount":           discovery.FieldEmployeeCount,
	"annual_revenue":      discovery.FieldAnnualRevenue,
	"revenue":             discovery.FieldAnnualRevenue,
	"turnover":            discovery.FieldAnnualRevenue,
	"tax_id":              discovery.FieldTaxID,
	"tax_number":          discovery.FieldTaxID,
	"vat_number":          discovery.FieldTaxID,
	"vat":                 discovery.FieldTaxID,
	"tax_reference":       discovery.FieldTaxID,
	"compliance_rating":   discovery.FieldComplianceRating,
	"bee_rating":          discovery.FieldComplianceRating,
	"rating":              discovery.FieldComplianceRating,
	"certifications":      discovery.FieldCertifications,
	"certification":       discovery.FieldCertifications,
	"accreditations":      discovery.FieldCertifications,
	"address":             discovery.FieldAddress,
	"full_address":        discovery.FieldAddress,
	"physical_address":    discovery.FieldAddress,
	"registered_address":  discovery.FieldAddress,
}

// CanonicalField resolves a source spelling to its canonical field name.
// Unknown spellings return "" and the candidate is dropped.
func CanonicalField(field string) string {
	key := strings.ToLower(strings.TrimSpace(field))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return fieldAliases[key]
}

// corporateSuffixes are the abbreviations title-cased by name normalization.
var corporateSuffixes = map[string]string{
	"pty":  "Pty",
	"ltd":  "Ltd",
	"inc":  "Inc",
	"llc":  "LLC",
	"cc":   "CC",
	"plc":  "PLC",
	"corp": "Corp",
	"co":   "Co",
	"npc":  "NPC",
	"gmbh": "GmbH",
}

// NormalizeCompanyName tidies a raw name candidate: whitespace collapsed,
// each word title-cased when it arrived fully lower- or upper-cased, and
// corporate suffixes rendered in their conventional casing.
func NormalizeCompanyName(raw string) string {
	words := strings.Fields(strings.TrimSpace(raw))
	for i, w := range words {
		lower := strings.ToLower(w)
		trimmed := strings.Trim(lower, ".,")
		if suffix, ok := corporateSuffixes[trimmed]; ok {
			words[i] = suffix
			continue
		}
		if w == lower || (w == strings.ToUpper(w) && len(w) > 3) {
			words[i] = titleCase(lower)
		}
	}
	return strings.Join(words, " ")
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
