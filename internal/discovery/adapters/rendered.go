package adapters

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/procurehq/supplierscope/internal/discovery"
)

// frameworkMarkers betray a client-rendered page: when the raw markup
// carries one of these, the static pass has likely under-extracted and the
// expensive render is worth paying for.
var frameworkMarkers = []string{
	"__NEXT_DATA__",
	"data-reactroot",
	"data-react-helmet",
	"ng-version",
	"ng-app",
	"data-v-app",
	"window.__NUXT__",
	"id=\"___gatsby\"",
	"ember-application",
}

// RenderedPageAdapter performs a render-then-extract pass for pages that
// need script execution. A cheap probe of the raw markup gates the render.
type RenderedPageAdapter struct {
	probe    Fetcher
	renderer Fetcher
	timeout  time.Duration
	logger   *log.Logger
}

// NewRenderedPageAdapter wires the cheap probe fetcher and the renderer.
func NewRenderedPageAdapter(probe, renderer Fetcher, timeout time.Duration) *RenderedPageAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RenderedPageAdapter{
		probe:    probe,
		renderer: renderer,
		timeout:  timeout,
		logger:   log.New(log.Writer(), "[RENDERED-PAGE] ", log.LstdFlags),
	}
}

func (a *RenderedPageAdapter) Name() string     { return "rendered_page" }
func (a *RenderedPageAdapter) Category() string { return CategoryWeb }

func (a *RenderedPageAdapter) Extract(ctx context.Context, req discovery.DiscoveryRequest) []discovery.RawCandidate {
	site := knownWebsite(req)
	if site == "" {
		return nil
	}

	probeCtx, cancelProbe := context.WithTimeout(ctx, a.timeout)
	raw, err := a.probe.Exec(probeCtx, site)
	cancelProbe()
	if err != nil {
		a.logger.Printf("probe %s failed: %v", site, err)
		return nil
	}
	if !needsRender(raw.HTML) {
		return nil
	}

	renderCtx, cancelRender := context.WithTimeout(ctx, a.timeout)
	defer cancelRender()
	rendered, err := a.renderer.Exec(renderCtx, site)
	if err != nil {
		a.logger.Printf("render %s failed: %v", site, err)
		return nil
	}
	if rendered.HTML == "" {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(rendered.HTML))
	if err != nil {
		a.logger.Printf("parse rendered %s failed: %v", site, err)
		return nil
	}
	out := extractWithStrategies(a.Name(), doc)

	// The readable-text pass catches identifiers the DOM strategies miss.
	if rendered.Text != "" {
		if m := snippetRegNum.FindString(rendered.Text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldRegistrationNumber, m, 0.7))
		}
		if m := snippetTaxID.FindString(rendered.Text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldTaxID, m, 0.7))
		}
		if m := snippetEmail.FindString(rendered.Text); m != "" {
			out = append(out, candidate(a.Name(), discovery.FieldEmail, m, 0.7))
		}
	}
	return out
}

func needsRender(rawHTML string) bool {
	for _, marker := range frameworkMarkers {
		if strings.Contains(rawHTML, marker) {
			return true
		}
	}
	return false
}
