package static

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/procurehq/supplierscope/tools/web_search/models"
)

// Search is a deterministic stand-in for a real search backend. The same
// query always yields the same results, which makes it usable both as the
// default when no API key is configured and as a test double.
type Search struct{}

func (s Search) Search(_ context.Context, q string, k int) ([]models.Result, error) {
	slug := slugify(q)
	if slug == "" {
		return nil, nil
	}
	results := []models.Result{
		{
			Title:   fmt.Sprintf("%s | Company Profile", q),
			URL:     fmt.Sprintf("https://www.%s.example.com", slug),
			Snippet: fmt.Sprintf("%s official website. Contact us at info@%s.example.com or call 011 555 0100.", q, slug),
		},
		{
			Title:   fmt.Sprintf("%s - Business Directory Listing", q),
			URL:     fmt.Sprintf("https://directory.example.net/company/%s", slug),
			Snippet: fmt.Sprintf("%s, registered supplier. Phone: 011 555 0100. Email: info@%s.example.com.", q, slug),
		},
		{
			Title:   fmt.Sprintf("Company registration details for %s", q),
			URL:     fmt.Sprintf("https://registry.example.org/entities/%s", slug),
			Snippet: fmt.Sprintf("%s registration overview and filing history.", q),
		},
	}
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func slugify(q string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(q)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
