package adapters

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	fetchmodels "github.com/procurehq/supplierscope/tools/web_fetch/models"
	"github.com/procurehq/supplierscope/tools/web_search/static"
)

// fakeFetcher serves canned pages by URL. Safe for the parallel fetches the
// adapters issue.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Exec(_ context.Context, url string) (fetchmodels.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return fetchmodels.Result{URL: url, Status: 404}, nil
	}
	return fetchmodels.Result{URL: url, HTML: body, Status: 200}, nil
}

func byField(cands []discovery.RawCandidate) map[string]discovery.RawCandidate {
	out := make(map[string]discovery.RawCandidate, len(cands))
	for _, c := range cands {
		if _, ok := out[c.Field]; !ok {
			out[c.Field] = c
		}
	}
	return out
}

func TestWebSearchAdapterExtractsFromSnippets(t *testing.T) {
	a := NewWebSearchAdapter(static.Search{}, 5)
	cands := a.Extract(context.Background(), discovery.DiscoveryRequest{Name: "Acme Trading"})
	if len(cands) == 0 {
		t.Fatalf("expected candidates from the static backend")
	}
	fields := byField(cands)

	if got, ok := fields[discovery.FieldName]; !ok || got.Value != "Acme Trading" {
		t.Fatalf("name candidate missing or wrong: %+v", got)
	}
	if got, ok := fields[discovery.FieldPhone]; !ok || got.Value != "011 555 0100" {
		t.Fatalf("phone candidate missing or wrong: %+v", got)
	}
	if got, ok := fields[discovery.FieldEmail]; !ok || !strings.HasPrefix(got.Value, "info@") {
		t.Fatalf("email candidate missing or wrong: %+v", got)
	}
	if got, ok := fields[discovery.FieldWebsite]; !ok || !strings.Contains(got.Value, "acme") {
		t.Fatalf("website candidate missing or wrong: %+v", got)
	}
	for _, c := range cands {
		if c.Source != "web_search" {
			t.Fatalf("candidate tagged %q, want web_search", c.Source)
		}
		if c.Confidence != 0.6 {
			t.Fatalf("snippet confidence = %v, want 0.6", c.Confidence)
		}
	}
}

func TestStaticPageAdapterExtractsFromSite(t *testing.T) {
	page := `<html><body>
<h1>Acme Trading</h1>
<span itemprop="telephone">011 555 0100</span>
<a href="mailto:info@acme.co.za">Mail us</a>
<div class="address">12 Main Road, Johannesburg, 2001</div>
</body></html>`
	f := &fakeFetcher{pages: map[string]string{
		"https://acme.co.za": page,
	}}
	a := NewStaticPageAdapter(f, 2, time.Second)

	req := discovery.DiscoveryRequest{
		Name:    "Acme Trading",
		Context: &discovery.RequestContext{Website: "acme.co.za/"},
	}
	cands := a.Extract(context.Background(), req)
	fields := byField(cands)

	if got := fields[discovery.FieldName]; got.Value != "Acme Trading" {
		t.Fatalf("name = %+v", got)
	}
	if got := fields[discovery.FieldPhone]; got.Value != "011 555 0100" || got.Confidence != 0.9 {
		t.Fatalf("phone should come from microdata at 0.9: %+v", got)
	}
	if got := fields[discovery.FieldEmail]; got.Value != "info@acme.co.za" {
		t.Fatalf("email = %+v", got)
	}
	if got := fields[discovery.FieldAddress]; !strings.Contains(got.Value, "Johannesburg") {
		t.Fatalf("address = %+v", got)
	}
	if got := fields[discovery.FieldWebsite]; got.Value != "https://acme.co.za" || got.Confidence != 0.7 {
		t.Fatalf("website hint = %+v", got)
	}

	// contact and about pages are attempted alongside the root
	if len(f.calls) != 3 {
		t.Fatalf("expected 3 fetches, got %v", f.calls)
	}
}

func TestStaticPageAdapterNeedsWebsiteHint(t *testing.T) {
	a := NewStaticPageAdapter(&fakeFetcher{}, 2, time.Second)
	if cands := a.Extract(context.Background(), discovery.DiscoveryRequest{Name: "Acme Trading"}); cands != nil {
		t.Fatalf("no website hint should yield nothing, got %v", cands)
	}
}

func TestRenderedPageAdapterGatesOnFrameworkMarkers(t *testing.T) {
	plainPage := `<html><body><h1>Acme</h1></body></html>`
	probe := &fakeFetcher{pages: map[string]string{"https://acme.co.za": plainPage}}
	renderer := &fakeFetcher{pages: map[string]string{}}
	a := NewRenderedPageAdapter(probe, renderer, time.Second)

	req := discovery.DiscoveryRequest{
		Name:    "Acme Trading",
		Context: &discovery.RequestContext{Website: "https://acme.co.za"},
	}
	if cands := a.Extract(context.Background(), req); cands != nil {
		t.Fatalf("server-rendered page must not trigger a render, got %v", cands)
	}
	if len(renderer.calls) != 0 {
		t.Fatalf("renderer should not have been called: %v", renderer.calls)
	}

	// a framework marker in the raw markup triggers the render pass
	probe.pages["https://acme.co.za"] = `<html><body><div id="__NEXT_DATA__"></div></body></html>`
	renderer.pages["https://acme.co.za"] = `<html><body>
<span itemprop="telephone">011 555 0100</span>
</body></html>`
	cands := a.Extract(context.Background(), req)
	fields := byField(cands)
	if got := fields[discovery.FieldPhone]; got.Value != "011 555 0100" {
		t.Fatalf("rendered extraction failed: %+v", fields)
	}
	if len(renderer.calls) != 1 {
		t.Fatalf("renderer should have run once: %v", renderer.calls)
	}
}

func TestDirectoryAdapterAppliesSelectorTable(t *testing.T) {
	listing := `<html><body>
<h2 class="listing-name">Acme Trading Pty Ltd</h2>
<span class="listing-phone">011 555 0100</span>
<span class="reg-no">2001/123456/07</span>
</body></html>`
	f := &fakeFetcher{pages: map[string]string{
		"https://directory.example.net/search?q=Acme+Trading": listing,
	}}
	a := NewDirectoryAdapter(config.DirectoryConfig{
		Name:      "example_directory",
		Category:  "directory",
		SearchURL: "https://directory.example.net/search?q={query}",
		Selectors: map[string]string{
			"name":                ".listing-name",
			"phone":               ".listing-phone",
			"registration_number": ".reg-no",
			"email":               ".listing-email",
		},
	}, f, time.Second)

	if a.Category() != CategoryDirectory {
		t.Fatalf("unexpected category %q", a.Category())
	}
	cands := a.Extract(context.Background(), discovery.DiscoveryRequest{Name: "Acme Trading"})
	fields := byField(cands)
	if got := fields["name"]; got.Value != "Acme Trading Pty Ltd" || got.Confidence != 0.75 {
		t.Fatalf("name = %+v", got)
	}
	if got := fields["phone"]; got.Value != "011 555 0100" {
		t.Fatalf("phone = %+v", got)
	}
	if got := fields["registration_number"]; got.Value != "2001/123456/07" {
		t.Fatalf("registration number = %+v", got)
	}
	if _, ok := fields["email"]; ok {
		t.Fatalf("empty selector match should produce no candidate")
	}
	for _, c := range cands {
		if c.Source != "example_directory" {
			t.Fatalf("candidate tagged %q", c.Source)
		}
	}
}

func TestDirectoryAdapterRegistryConfidence(t *testing.T) {
	page := `<html><body><span class="entity-name">Acme Trading Pty Ltd</span></body></html>`
	f := &fakeFetcher{pages: map[string]string{
		"https://registry.example.org/lookup?name=Acme": page,
	}}
	a := NewDirectoryAdapter(config.DirectoryConfig{
		Name:      "cipc_registry",
		Category:  "registry",
		SearchURL: "https://registry.example.org/lookup?name={query}",
		Selectors: map[string]string{"name": ".entity-name"},
	}, f, time.Second)

	cands := a.Extract(context.Background(), discovery.DiscoveryRequest{Name: "Acme"})
	if len(cands) != 1 || cands[0].Confidence != 0.9 {
		t.Fatalf("registry candidates should carry 0.9, got %+v", cands)
	}
}
