package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/internal/discovery/adapters"
	"github.com/procurehq/supplierscope/internal/discovery/cache"
	"github.com/procurehq/supplierscope/internal/discovery/engine"
)

type fixedAdapter struct {
	cands []discovery.RawCandidate
}

func (a fixedAdapter) Name() string     { return "registry_stub" }
func (a fixedAdapter) Category() string { return "registry" }
func (a fixedAdapter) Extract(context.Context, discovery.DiscoveryRequest) []discovery.RawCandidate {
	return a.cands
}

func testHandler(t *testing.T, cands []discovery.RawCandidate) *DiscoveryHandler {
	t.Helper()
	cfg := config.Default()
	store := cache.NewMemoryStore(time.Hour, 100)
	eng, err := engine.New(cfg, store, []adapters.Adapter{fixedAdapter{cands: cands}}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &DiscoveryHandler{Engine: eng}
}

func doJSON(t *testing.T, h echo.HandlerFunc, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestDiscoverEndpoint(t *testing.T) {
	h := testHandler(t, []discovery.RawCandidate{
		{Field: "name", Value: "Acme Trading Pty Ltd", Confidence: 0.9, Source: "registry_stub"},
		{Field: "registration_number", Value: "2001/123456/07", Confidence: 0.9, Source: "registry_stub"},
		{Field: "phone", Value: "011 555 0100", Confidence: 0.9, Source: "registry_stub"},
		{Field: "tax_id", Value: "9123456789", Confidence: 0.9, Source: "registry_stub"},
	})

	rec, err := doJSON(t, h.discover, `{"name":"Acme Trading"}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out discovery.DiscoverOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Record == nil || out.Record.Name != "Acme Trading Pty Ltd" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Record.Contact.Phone != "+27115550100" {
		t.Fatalf("phone = %q", out.Record.Contact.Phone)
	}
}

func TestDiscoverEndpointErrors(t *testing.T) {
	h := testHandler(t, nil)

	_, err := doJSON(t, h.discover, `{"name":"x"}`)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short name, got %v", err)
	}

	_, err = doJSON(t, h.discover, `{"name":"Ghost Company"}`)
	he, ok = err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no source has data, got %v", err)
	}
}

func TestBulkEndpoint(t *testing.T) {
	h := testHandler(t, []discovery.RawCandidate{
		{Field: "name", Value: "Acme Trading Pty Ltd", Confidence: 0.9, Source: "registry_stub"},
		{Field: "registration_number", Value: "2001/123456/07", Confidence: 0.9, Source: "registry_stub"},
		{Field: "phone", Value: "011 555 0100", Confidence: 0.9, Source: "registry_stub"},
		{Field: "tax_id", Value: "9123456789", Confidence: 0.9, Source: "registry_stub"},
	})

	rec, err := doJSON(t, h.bulk, `{"requests":[{"name":"Acme Trading"},{"name":"y"}]}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Results []discovery.BulkResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	if out.Results[0].Record == nil || out.Results[0].Error != "" {
		t.Fatalf("first request should succeed: %+v", out.Results[0])
	}
	if out.Results[1].Error == "" {
		t.Fatalf("second request should carry its error")
	}

	_, err = doJSON(t, h.bulk, `{"requests":[]}`)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("empty bulk should 400, got %v", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{discovery.ErrInvalidRequest, http.StatusBadRequest},
		{discovery.ErrNoDataFound, http.StatusNotFound},
		{discovery.ErrLowConfidence, http.StatusUnprocessableEntity},
		{discovery.ErrTimeout, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := httpStatus(c.err); got != c.want {
			t.Fatalf("httpStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
