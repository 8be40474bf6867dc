package adapters

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/procurehq/supplierscope/internal/discovery"
)

// strategy pairs a selector with the confidence its evidence deserves.
// Structured/semantic markup outranks generic class-name heuristics.
type strategy struct {
	selector   string
	confidence float64
}

// pageStrategies is the ordered per-field strategy table applied to any
// fetched page. First non-empty match wins.
var pageStrategies = map[string][]strategy{
	discovery.FieldName: {
		{"itemprop=name", 0.9},
		{"meta=og:site_name", 0.85},
		{"h1", 0.7},
		{".company-name", 0.65},
	},
	discovery.FieldPhone: {
		{"itemprop=telephone", 0.9},
		{"href:tel", 0.85},
		{".phone", 0.65},
		{".tel", 0.6},
	},
	discovery.FieldEmail: {
		{"itemprop=email", 0.9},
		{"href:mailto", 0.85},
		{".email", 0.65},
	},
	discovery.FieldAddress: {
		{"itemprop=address", 0.9},
		{"address", 0.8},
		{".address", 0.65},
		{".location", 0.6},
	},
	discovery.FieldRegistrationNumber: {
		{"itemprop=identifier", 0.85},
		{".registration-number", 0.65},
		{".reg-number", 0.6},
	},
	discovery.FieldTaxID: {
		{"itemprop=taxID", 0.85},
		{".vat-number", 0.65},
		{".tax-number", 0.6},
	},
	discovery.FieldIndustry: {
		{"itemprop=industry", 0.85},
		{".industry", 0.6},
	},
}

// StaticPageAdapter fetches the known website's raw markup plus its common
// contact pages and applies the selector strategy table.
type StaticPageAdapter struct {
	fetcher     Fetcher
	maxParallel int
	perTarget   time.Duration
	logger      *log.Logger
}

// NewStaticPageAdapter builds the adapter around a plain HTTP fetcher.
func NewStaticPageAdapter(fetcher Fetcher, maxParallel int, perTarget time.Duration) *StaticPageAdapter {
	if perTarget <= 0 {
		perTarget = 10 * time.Second
	}
	return &StaticPageAdapter{
		fetcher:     fetcher,
		maxParallel: maxParallel,
		perTarget:   perTarget,
		logger:      log.New(log.Writer(), "[STATIC-PAGE] ", log.LstdFlags),
	}
}

func (a *StaticPageAdapter) Name() string     { return "static_page" }
func (a *StaticPageAdapter) Category() string { return CategoryWeb }

func (a *StaticPageAdapter) Extract(ctx context.Context, req discovery.DiscoveryRequest) []discovery.RawCandidate {
	site := knownWebsite(req)
	if site == "" {
		return nil
	}
	targets := []string{site, site + "/contact", site + "/about"}
	results := fetchTargets(ctx, a.fetcher, targets, a.maxParallel, a.perTarget, a.logger)

	var out []discovery.RawCandidate
	for _, res := range results {
		doc, err := html.Parse(strings.NewReader(res.HTML))
		if err != nil {
			a.logger.Printf("parse %s failed: %v", res.URL, err)
			continue
		}
		out = append(out, extractWithStrategies(a.Name(), doc)...)
	}
	if len(out) > 0 {
		out = append(out, candidate(a.Name(), discovery.FieldWebsite, site, 0.7))
	}
	return out
}

// extractWithStrategies runs the strategy table over a parsed document.
func extractWithStrategies(source string, doc *html.Node) []discovery.RawCandidate {
	var out []discovery.RawCandidate
	for field, strategies := range pageStrategies {
		selectors := make([]string, len(strategies))
		for i, s := range strategies {
			selectors[i] = s.selector
		}
		value, idx := selectCascade(doc, selectors)
		if idx < 0 {
			continue
		}
		out = append(out, candidate(source, field, value, strategies[idx].confidence))
	}
	return out
}

// knownWebsite returns the caller-provided website hint, normalized to an
// absolute URL without a trailing slash.
func knownWebsite(req discovery.DiscoveryRequest) string {
	if req.Context.IsZero() || strings.TrimSpace(req.Context.Website) == "" {
		return ""
	}
	site := strings.TrimSpace(req.Context.Website)
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	return strings.TrimSuffix(site, "/")
}
