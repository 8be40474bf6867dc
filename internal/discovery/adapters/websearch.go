package adapters

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/tools/web_search"
)

// Snippets are secondary evidence, so everything extracted here sits in a
// moderate confidence band.
const snippetConfidence = 0.6

var (
	snippetEmail   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	snippetPhone   = regexp.MustCompile(`(?:\+27[\s\-]?\d{2}|\b0\d{2})[\s\-]?\d{3}[\s\-]?\d{4}\b`)
	snippetRegNum  = regexp.MustCompile(`\b\d{4}/\d{6}/\d{2}\b`)
	snippetTaxID   = regexp.MustCompile(`\b[49]\d{9}\b`)
	snippetWebsite = regexp.MustCompile(`https?://[^\s"']+`)
)

// WebSearchAdapter issues one bounded query against a search backend and
// mines the result titles and snippets with fixed-format patterns.
type WebSearchAdapter struct {
	searcher   web_search.WebSearcher
	maxResults int
	logger     *log.Logger
}

// NewWebSearchAdapter wraps a search backend.
func NewWebSearchAdapter(searcher web_search.WebSearcher, maxResults int) *WebSearchAdapter {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchAdapter{
		searcher:   searcher,
		maxResults: maxResults,
		logger:     log.New(log.Writer(), "[WEB-SEARCH] ", log.LstdFlags),
	}
}

func (a *WebSearchAdapter) Name() string     { return "web_search" }
func (a *WebSearchAdapter) Category() string { return CategoryWeb }

func (a *WebSearchAdapter) Extract(ctx context.Context, req discovery.DiscoveryRequest) []discovery.RawCandidate {
	query := a.buildQuery(req)
	results, err := a.searcher.Search(ctx, query, a.maxResults)
	if err != nil {
		a.logger.Printf("search %q failed: %v", query, err)
		return nil
	}

	name := strings.TrimSpace(req.Name)
	var out []discovery.RawCandidate
	for _, r := range results {
		text := r.Title + " " + r.Snippet

		if strings.Contains(strings.ToLower(r.Title), strings.ToLower(name)) {
			out = append(out, candidate(a.Name(), discovery.FieldName, name, snippetConfidence))
		}
		if m := snippetEmail.FindString(text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldEmail, m, snippetConfidence))
		}
		if m := snippetPhone.FindString(text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldPhone, m, snippetConfidence))
		}
		if m := snippetRegNum.FindString(text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldRegistrationNumber, m, snippetConfidence))
		}
		if m := snippetTaxID.FindString(text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldTaxID, m, snippetConfidence))
		}
		if snippetWebsite.MatchString(r.URL) && looksOfficial(r.URL, name) {
			out = append(out, candidate(a.Name(), discovery.FieldWebsite, r.URL, snippetConfidence))
		}
	}
	return out
}

func (a *WebSearchAdapter) buildQuery(req discovery.DiscoveryRequest) string {
	parts := []string{`"` + strings.TrimSpace(req.Name) + `"`, "company", "contact"}
	if !req.Context.IsZero() {
		if req.Context.Industry != "" {
			parts = append(parts, req.Context.Industry)
		}
		if req.Context.Region != "" {
			parts = append(parts, req.Context.Region)
		}
	}
	return strings.Join(parts, " ")
}

// looksOfficial guesses whether a result URL is the entity's own site: the
// host must contain a token of the name.
func looksOfficial(url, name string) bool {
	host := strings.ToLower(url)
	for _, token := range strings.Fields(strings.ToLower(name)) {
		if len(token) < 4 {
			continue
		}
		if strings.Contains(host, token) {
			return true
		}
	}
	return false
}
