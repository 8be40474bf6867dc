package discovery

import (
	"sort"
	"time"
)

// Merge combines multiple fused records for the same supplier into one.
// The highest-overall-confidence record is the baseline; each scalar field
// is then re-selected across records by its per-field confidence, list
// fields are unioned, and numeric business facts take the maximum observed
// value. The max heuristic for employee count and revenue is inherited
// behavior, not a considered policy; it is isolated in maxInt/maxFloat so a
// replacement lands in one place.
func Merge(records []*FusedRecord) *FusedRecord {
	records = compact(records)
	if len(records) == 0 {
		return nil
	}
	if len(records) == 1 {
		out := *records[0]
		return &out
	}

	sorted := make([]*FusedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence.Overall > sorted[j].Confidence.Overall
	})

	base := *sorted[0]
	merged := base
	merged.Confidence.Fields = make(map[string]float64, len(base.Confidence.Fields))
	for k, v := range base.Confidence.Fields {
		merged.Confidence.Fields[k] = v
	}

	merged.Name = pickString(sorted, FieldName, func(r *FusedRecord) string { return r.Name })
	merged.RegistrationNumber = pickString(sorted, FieldRegistrationNumber, func(r *FusedRecord) string { return r.RegistrationNumber })
	merged.Address.Street = pickString(sorted, FieldStreet, func(r *FusedRecord) string { return r.Address.Street })
	merged.Address.City = pickString(sorted, FieldCity, func(r *FusedRecord) string { return r.Address.City })
	merged.Address.Province = pickString(sorted, FieldProvince, func(r *FusedRecord) string { return r.Address.Province })
	merged.Address.PostalCode = pickString(sorted, FieldPostalCode, func(r *FusedRecord) string { return r.Address.PostalCode })
	merged.Address.Country = pickString(sorted, FieldCountry, func(r *FusedRecord) string { return r.Address.Country })
	merged.Contact.Phone = pickString(sorted, FieldPhone, func(r *FusedRecord) string { return r.Contact.Phone })
	merged.Contact.Email = pickString(sorted, FieldEmail, func(r *FusedRecord) string { return r.Contact.Email })
	merged.Contact.Website = pickString(sorted, FieldWebsite, func(r *FusedRecord) string { return r.Contact.Website })
	merged.BusinessInfo.Industry = pickString(sorted, FieldIndustry, func(r *FusedRecord) string { return r.BusinessInfo.Industry })
	merged.Compliance.TaxID = pickString(sorted, FieldTaxID, func(r *FusedRecord) string { return r.Compliance.TaxID })
	merged.Compliance.ComplianceRating = pickString(sorted, FieldComplianceRating, func(r *FusedRecord) string { return r.Compliance.ComplianceRating })

	merged.BusinessInfo.FoundedYear = pickFoundedYear(sorted)
	merged.BusinessInfo.EmployeeCount = maxInt(sorted, func(r *FusedRecord) int { return r.BusinessInfo.EmployeeCount })
	merged.BusinessInfo.AnnualRevenue = maxFloat(sorted, func(r *FusedRecord) float64 { return r.BusinessInfo.AnnualRevenue })

	var certs, sources []string
	var latest time.Time
	for _, r := range sorted {
		certs = unionStrings(certs, r.Compliance.Certifications)
		sources = unionStrings(sources, r.SourcesUsed)
		if r.DiscoveredAt.After(latest) {
			latest = r.DiscoveredAt
		}
	}
	merged.Compliance.Certifications = certs
	merged.SourcesUsed = sources
	merged.DiscoveredAt = latest

	return &merged
}

// pickString selects the non-empty value backed by the highest per-field
// confidence across records, falling back to record order for ties (sorted
// input keeps the highest-overall record first).
func pickString(sorted []*FusedRecord, field string, get func(*FusedRecord) string) string {
	best := ""
	bestConf := -1.0
	for _, r := range sorted {
		v := get(r)
		if v == "" {
			continue
		}
		conf := r.Confidence.Fields[field]
		if conf > bestConf {
			best = v
			bestConf = conf
		}
	}
	return best
}

// pickFoundedYear treats founded year like a scalar fact rather than a
// numeric maximum: the best-confidence non-zero value wins.
func pickFoundedYear(sorted []*FusedRecord) int {
	best := 0
	bestConf := -1.0
	for _, r := range sorted {
		if r.BusinessInfo.FoundedYear == 0 {
			continue
		}
		conf := r.Confidence.Fields[FieldFoundedYear]
		if conf > bestConf {
			best = r.BusinessInfo.FoundedYear
			bestConf = conf
		}
	}
	return best
}

func maxInt(records []*FusedRecord, get func(*FusedRecord) int) int {
	out := 0
	for _, r := range records {
		if v := get(r); v > out {
			out = v
		}
	}
	return out
}

func maxFloat(records []*FusedRecord, get func(*FusedRecord) float64) float64 {
	out := 0.0
	for _, r := range records {
		if v := get(r); v > out {
			out = v
		}
	}
	return out
}

func unionStrings(dst, add []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func compact(records []*FusedRecord) []*FusedRecord {
	var out []*FusedRecord
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
