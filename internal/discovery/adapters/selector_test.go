package adapters

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
<meta property="og:site_name" content="Acme Trading">
<style>.phone { color: red; }</style>
</head>
<body>
<h1>Welcome to Acme</h1>
<div id="About">Established supplier</div>
<span itemprop="telephone">011 555 0100</span>
<p class="company-email highlight">Reach us</p>
<a href="tel:+27115550100">Call</a>
<a href="mailto:info@acme.co.za">Mail</a>
<div class="address">12 Main Road, Johannesburg</div>
<script>var phone = "000 000 0000";</script>
</body>
</html>`

func parseFixture(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fixtureHTML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestSelectFirst(t *testing.T) {
	doc := parseFixture(t)
	cases := map[string]string{
		"h1":                 "Welcome to Acme",
		"#About":             "Established supplier",
		"itemprop=telephone": "011 555 0100",
		"meta=og:site_name":  "Acme Trading",
		"href:tel":           "+27115550100",
		"href:mailto":        "info@acme.co.za",
		".address":           "12 Main Road, Johannesburg",
		"p.company-email":    "Reach us",
		".missing-class":     "",
		"table":              "",
		"":                   "",
	}
	for selector, want := range cases {
		if got := selectFirst(doc, selector); got != want {
			t.Fatalf("selectFirst(%q) = %q, want %q", selector, got, want)
		}
	}
}

func TestSelectCascade(t *testing.T) {
	doc := parseFixture(t)
	value, idx := selectCascade(doc, []string{".missing-class", "href:tel", "h1"})
	if value != "+27115550100" || idx != 1 {
		t.Fatalf("cascade = %q, %d; want tel link at index 1", value, idx)
	}
	value, idx = selectCascade(doc, []string{".nope", "table"})
	if value != "" || idx != -1 {
		t.Fatalf("cascade should report no match, got %q, %d", value, idx)
	}
}

func TestTextOfSkipsScriptAndStyle(t *testing.T) {
	doc := parseFixture(t)
	body := findByTag(doc, "body")
	text := textOf(body)
	if strings.Contains(text, "000 000 0000") {
		t.Fatalf("script content leaked into text: %q", text)
	}
	if !strings.Contains(text, "Welcome to Acme") {
		t.Fatalf("body text missing: %q", text)
	}
}
