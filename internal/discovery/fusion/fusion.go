// Package fusion reconciles the raw candidates gathered by all source
// adapters for one request into a single confidence-scored supplier record,
// or rejects the whole set.
package fusion

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
)

// DefaultMinConfidence is the acceptance threshold used when none is
// configured.
const DefaultMinConfidence = 0.6

const corroborationBonus = 0.1

// requiredFields drive the completeness term of the overall score.
var requiredFields = []string{
	discovery.FieldName,
	discovery.FieldRegistrationNumber,
	discovery.FieldPhone,
	discovery.FieldEmail,
	discovery.FieldWebsite,
	discovery.FieldCity,
	discovery.FieldIndustry,
	discovery.FieldTaxID,
}

// trustRank orders categories for the equal-confidence tie-break.
var trustRank = map[string]int{
	"registry":  3,
	"directory": 2,
	"social":    1,
	"web":       0,
}

// Options configures a fusion engine.
type Options struct {
	MinConfidence    float64
	TrustWeights     map[string]float64 // category -> bonus weight
	Jurisdictions    []config.Jurisdiction
	Localities       []string
	SourceCategories map[string]string // source identifier -> category
	SourceOrder      []string          // adapter registration order, final tie-break
}

// Engine fuses candidates. Safe for concurrent use; all state is read-only
// after construction.
type Engine struct {
	minConfidence float64
	trustWeights  map[string]float64
	categories    map[string]string
	orderIndex    map[string]int
	validate      *validator
	logger        *log.Logger
}

// New builds a fusion engine, compiling the jurisdiction pattern table.
func New(opts Options) (*Engine, error) {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	v, err := newValidator(opts.Jurisdictions, opts.Localities)
	if err != nil {
		return nil, err
	}
	orderIndex := make(map[string]int, len(opts.SourceOrder))
	for i, source := range opts.SourceOrder {
		orderIndex[source] = i
	}
	categories := opts.SourceCategories
	if categories == nil {
		categories = map[string]string{}
	}
	weights := opts.TrustWeights
	if weights == nil {
		weights = map[string]float64{}
	}
	return &Engine{
		minConfidence: opts.MinConfidence,
		trustWeights:  weights,
		categories:    categories,
		orderIndex:    orderIndex,
		validate:      v,
		logger:        log.New(log.Writer(), "[FUSION] ", log.LstdFlags),
	}, nil
}

type indexed struct {
	discovery.RawCandidate
	arrival int
}

type winner struct {
	value      string
	confidence float64
	source     string
}

// Fuse runs the fusion algorithm over the union of all adapters'
// candidates. It returns discovery.ErrLowConfidence when no usable name
// resolves or the overall score stays below the threshold; in that case no
// record exists at all.
func (e *Engine) Fuse(candidates []discovery.RawCandidate) (*discovery.FusedRecord, error) {
	groups := e.group(candidates)
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no usable candidates", discovery.ErrLowConfidence)
	}

	winners := make(map[string]winner, len(groups))
	certifications := []string{}
	for field, group := range groups {
		w := e.pickWinner(field, group)
		if field == discovery.FieldCertifications {
			certifications = collectCertifications(group)
		}
		winners[field] = w
	}

	record, fieldConf := e.buildRecord(winners, certifications)

	name, ok := e.resolveName(winners)
	if !ok {
		return nil, fmt.Errorf("%w: no resolvable entity name", discovery.ErrLowConfidence)
	}
	record.Name = name

	overall := e.score(fieldConf, winners)
	record.Confidence = discovery.Confidence{Overall: overall, Fields: fieldConf}
	record.SourcesUsed = winningSources(winners)
	record.DiscoveredAt = time.Now()

	if overall < e.minConfidence {
		e.logger.Printf("rejected %q: overall %.2f below threshold %.2f", record.Name, overall, e.minConfidence)
		return nil, fmt.Errorf("%w: %.2f < %.2f", discovery.ErrLowConfidence, overall, e.minConfidence)
	}
	return &record, nil
}

// group canonicalizes field names and buckets candidates, dropping unknown
// fields, empty values and out-of-range confidences.
func (e *Engine) group(candidates []discovery.RawCandidate) map[string][]indexed {
	groups := make(map[string][]indexed)
	for i, c := range candidates {
		field := CanonicalField(c.Field)
		if field == "" || strings.TrimSpace(c.Value) == "" {
			continue
		}
		if c.Confidence < 0 {
			c.Confidence = 0
		} else if c.Confidence > 1 {
			c.Confidence = 1
		}
		c.Field = field
		groups[field] = append(groups[field], indexed{RawCandidate: c, arrival: i})
	}
	return groups
}

// pickWinner selects the best candidate for one field and applies the
// corroboration bonus when at least two distinct sources independently
// produced the same normalized value.
func (e *Engine) pickWinner(field string, group []indexed) winner {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		ra, rb := trustRank[e.category(a.Source)], trustRank[e.category(b.Source)]
		if ra != rb {
			return ra > rb
		}
		oa, ob := e.sourceOrder(a.Source), e.sourceOrder(b.Source)
		if oa != ob {
			return oa < ob
		}
		return a.arrival < b.arrival
	})

	best := group[0]
	w := winner{value: best.Value, confidence: best.Confidence, source: best.Source}

	normalized := normalizedValue(field, best.Value)
	agreeing := map[string]struct{}{}
	for _, c := range group {
		if normalizedValue(field, c.Value) == normalized {
			agreeing[c.Source] = struct{}{}
		}
	}
	if len(agreeing) >= 2 {
		w.confidence += corroborationBonus
		if w.confidence > 1 {
			w.confidence = 1
		}
	}
	return w
}

// buildRecord applies per-field post-validation and assembles the record
// body. Invalid identifiers, phones and emails vanish as if never reported.
func (e *Engine) buildRecord(winners map[string]winner, certifications []string) (discovery.FusedRecord, map[string]float64) {
	record := discovery.FusedRecord{}
	fieldConf := make(map[string]float64, len(winners))
	drop := func(field string) { delete(winners, field) }

	for field, w := range winners {
		switch field {
		case discovery.FieldName:
			fieldConf[field] = w.confidence
		case discovery.FieldRegistrationNumber:
			if !e.validate.validIdentifier(field, w.value) {
				drop(field)
				continue
			}
			record.RegistrationNumber = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldTaxID:
			if !e.validate.validIdentifier(field, w.value) {
				drop(field)
				continue
			}
			record.Compliance.TaxID = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldPhone:
			normalized, ok := NormalizePhone(w.value)
			if !ok {
				drop(field)
				continue
			}
			record.Contact.Phone = normalized
			fieldConf[field] = w.confidence
		case discovery.FieldEmail:
			if !ValidEmail(w.value) {
				drop(field)
				continue
			}
			record.Contact.Email = strings.ToLower(strings.TrimSpace(w.value))
			fieldConf[field] = w.confidence
		case discovery.FieldWebsite:
			record.Contact.Website = normalizeWebsite(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldStreet:
			record.Address.Street = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldCity:
			record.Address.City = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldProvince:
			record.Address.Province = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldPostalCode:
			record.Address.PostalCode = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldCountry:
			record.Address.Country = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldIndustry:
			record.BusinessInfo.Industry = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldFoundedYear:
			year, ok := parseYear(w.value)
			if !ok {
				drop(field)
				continue
			}
			record.BusinessInfo.FoundedYear = year
			fieldConf[field] = w.confidence
		case discovery.FieldEmployeeCount:
			n, ok := parseCount(w.value)
			if !ok {
				drop(field)
				continue
			}
			record.BusinessInfo.EmployeeCount = n
			fieldConf[field] = w.confidence
		case discovery.FieldAnnualRevenue:
			amount, ok := parseAmount(w.value)
			if !ok {
				drop(field)
				continue
			}
			record.BusinessInfo.AnnualRevenue = amount
			fieldConf[field] = w.confidence
		case discovery.FieldComplianceRating:
			record.Compliance.ComplianceRating = strings.TrimSpace(w.value)
			fieldConf[field] = w.confidence
		case discovery.FieldCertifications:
			record.Compliance.Certifications = certifications
			fieldConf[field] = w.confidence
		case discovery.FieldAddress:
			parsed := e.validate.parseAddress(w.value)
			if parsed.Street != "" && record.Address.Street == "" {
				record.Address.Street = parsed.Street
				fieldConf[discovery.FieldStreet] = w.confidence
			}
			if parsed.City != "" && record.Address.City == "" {
				record.Address.City = parsed.City
				fieldConf[discovery.FieldCity] = w.confidence
			}
			if parsed.Province != "" && record.Address.Province == "" {
				record.Address.Province = parsed.Province
				fieldConf[discovery.FieldProvince] = w.confidence
			}
			if parsed.PostalCode != "" && record.Address.PostalCode == "" {
				record.Address.PostalCode = parsed.PostalCode
				fieldConf[discovery.FieldPostalCode] = w.confidence
			}
		}
	}
	return record, fieldConf
}

// resolveName applies corporate-suffix normalization and the minimum-length
// check. Without a usable name the whole record is rejected.
func (e *Engine) resolveName(winners map[string]winner) (string, bool) {
	w, ok := winners[discovery.FieldName]
	if !ok {
		return "", false
	}
	name := NormalizeCompanyName(w.value)
	if len(strings.TrimSpace(name)) < 2 {
		return "", false
	}
	return name, true
}

// score computes 0.4*completeness + 0.5*meanFieldConfidence + 0.1*trustBonus,
// clamped to [0,1].
func (e *Engine) score(fieldConf map[string]float64, winners map[string]winner) float64 {
	present := 0
	for _, field := range requiredFields {
		if _, ok := fieldConf[field]; ok {
			present++
		}
	}
	completeness := float64(present) / float64(len(requiredFields))

	mean := 0.0
	if len(fieldConf) > 0 {
		sum := 0.0
		for _, c := range fieldConf {
			sum += c
		}
		mean = sum / float64(len(fieldConf))
	}

	seen := map[string]struct{}{}
	bonus := 0.0
	for _, w := range winners {
		cat := e.category(w.source)
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		bonus += e.trustWeights[cat]
	}
	if bonus > 1 {
		bonus = 1
	}

	overall := 0.4*completeness + 0.5*mean + 0.1*bonus
	if overall > 1 {
		overall = 1
	}
	if overall < 0 {
		overall = 0
	}
	return overall
}

func (e *Engine) category(source string) string {
	if cat, ok := e.categories[source]; ok {
		return cat
	}
	return "web"
}

func (e *Engine) sourceOrder(source string) int {
	if idx, ok := e.orderIndex[source]; ok {
		return idx
	}
	return len(e.orderIndex)
}

func winningSources(winners map[string]winner) []string {
	var out []string
	seen := map[string]struct{}{}
	fields := make([]string, 0, len(winners))
	for field := range winners {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		src := winners[field].source
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

// normalizedValue is the comparison form used for corroboration.
func normalizedValue(field, value string) string {
	switch field {
	case discovery.FieldPhone:
		if p, ok := NormalizePhone(value); ok {
			return p
		}
	case discovery.FieldName:
		return strings.ToLower(NormalizeCompanyName(value))
	case discovery.FieldWebsite:
		return normalizeWebsite(value)
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeWebsite(raw string) string {
	u := strings.TrimSpace(strings.ToLower(raw))
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimSuffix(u, "/")
	if u == "" {
		return ""
	}
	return "https://" + u
}

func collectCertifications(group []indexed) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, c := range group {
		for _, part := range strings.FieldsFunc(c.Value, func(r rune) bool { return r == ',' || r == ';' }) {
			cert := strings.TrimSpace(part)
			if cert == "" {
				continue
			}
			key := strings.ToLower(cert)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, cert)
		}
	}
	return out
}

func parseYear(raw string) (int, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year < 1800 || year > time.Now().Year() {
		return 0, false
	}
	return year, true
}

func parseCount(raw string) (int, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseAmount(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}
