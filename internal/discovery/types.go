package discovery

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"
)

// Canonical field names used after alias resolution. Adapters may emit any
// spelling; the fusion engine maps everything onto this vocabulary.
const (
	FieldName               = "name"
	FieldRegistrationNumber = "registration_number"
	FieldStreet             = "street"
	FieldCity               = "city"
	FieldProvince           = "province"
	FieldPostalCode         = "postal_code"
	FieldCountry            = "country"
	FieldPhone              = "phone"
	FieldEmail              = "email"
	FieldWebsite            = "website"
	FieldIndustry           = "industry"
	FieldFoundedYear        = "founded_year"
	FieldEmployeeCount      = "employee_count"
	FieldAnnualRevenue      = "annual_revenue"
	FieldTaxID              = "tax_id"
	FieldComplianceRating   = "compliance_rating"
	FieldCertifications     = "certifications"
	FieldAddress            = "address" // unparsed, split by validation
)

// RequestContext carries the optional hints a caller may attach to a
// discovery request. The set is closed so cache key derivation stays stable.
type RequestContext struct {
	Industry string `json:"industry,omitempty"`
	Region   string `json:"region,omitempty"`
	Website  string `json:"website,omitempty"`
}

// IsZero reports whether no hint is set.
func (c *RequestContext) IsZero() bool {
	return c == nil || (c.Industry == "" && c.Region == "" && c.Website == "")
}

// DiscoveryRequest identifies one supplier to enrich.
type DiscoveryRequest struct {
	Name    string          `json:"name"`
	Context *RequestContext `json:"context,omitempty"`
}

// Validate checks the request shape. The name must survive trimming with at
// least two characters.
func (r DiscoveryRequest) Validate() error {
	if len(strings.TrimSpace(r.Name)) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidRequest)
	}
	return nil
}

// CacheKey derives the deterministic cache key for the request:
// normalized name, plus a short hash of the context when present.
func (r DiscoveryRequest) CacheKey() string {
	key := NormalizeName(r.Name)
	if !r.Context.IsZero() {
		key += ":" + contextHash(r.Context)
	}
	return key
}

// BaseKey derives the key without any context suffix, used for wildcard
// invalidation across context variants.
func (r DiscoveryRequest) BaseKey() string {
	return NormalizeName(r.Name)
}

// NormalizeName lowercases, strips non-alphanumerics and collapses runs of
// whitespace into single spaces.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func contextHash(c *RequestContext) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(c.Industry)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(c.Region)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(c.Website)))
	return fmt.Sprintf("%08x", h.Sum32())
}

// RawCandidate is one low-level field observation emitted by an adapter.
// Candidates live only for the duration of one discovery operation.
type RawCandidate struct {
	Field       string    `json:"field"`
	Value       string    `json:"value"`
	Confidence  float64   `json:"confidence"` // 0.0 to 1.0
	Source      string    `json:"source"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// AdapterResult is what one adapter produced for one request. A failed
// adapter degrades to an empty candidate list.
type AdapterResult struct {
	Adapter    string         `json:"adapter"`
	Candidates []RawCandidate `json:"candidates"`
	Elapsed    time.Duration  `json:"elapsed"`
}

// Address is the structured location block of a fused record.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Contact is the reachability block of a fused record.
type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// BusinessInfo carries descriptive business facts.
type BusinessInfo struct {
	Industry      string  `json:"industry,omitempty"`
	FoundedYear   int     `json:"founded_year,omitempty"`
	EmployeeCount int     `json:"employee_count,omitempty"`
	AnnualRevenue float64 `json:"annual_revenue,omitempty"`
}

// Compliance carries regulatory identifiers and ratings.
type Compliance struct {
	TaxID            string   `json:"tax_id,omitempty"`
	ComplianceRating string   `json:"compliance_rating,omitempty"`
	Certifications   []string `json:"certifications,omitempty"`
}

// Confidence scores a fused record overall and per canonical field.
type Confidence struct {
	Overall float64            `json:"overall"`
	Fields  map[string]float64 `json:"fields"`
}

// FusedRecord is the confidence-scored output of one discovery. It only
// exists when the name resolved and the overall confidence cleared the
// acceptance threshold.
type FusedRecord struct {
	Name               string       `json:"name"`
	RegistrationNumber string       `json:"registration_number,omitempty"`
	Address            Address      `json:"address"`
	Contact            Contact      `json:"contact"`
	BusinessInfo       BusinessInfo `json:"business_info"`
	Compliance         Compliance   `json:"compliance"`
	Confidence         Confidence   `json:"confidence"`
	SourcesUsed        []string     `json:"sources_used"`
	DiscoveredAt       time.Time    `json:"discovered_at"`
}

// DiscoverOutcome wraps a record with per-call metadata.
type DiscoverOutcome struct {
	Record    *FusedRecord  `json:"record"`
	Elapsed   time.Duration `json:"elapsed"`
	Sources   []string      `json:"sources"`
	FromCache bool          `json:"from_cache"`
}

// BulkResult captures the outcome of one request inside a bulk discovery.
type BulkResult struct {
	Request DiscoveryRequest `json:"request"`
	Record  *FusedRecord     `json:"record,omitempty"`
	Err     error            `json:"-"`
	Error   string           `json:"error,omitempty"`
}

// EngineStats is the snapshot returned by Stats.
type EngineStats struct {
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	CacheEntries int     `json:"cache_entries"`
	Active       int     `json:"active_requests"`
	Waiting      int     `json:"waiting_requests"`
	Healthy      bool    `json:"healthy"`
}
