package server

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/internal/discovery/adapters"
	"github.com/procurehq/supplierscope/internal/discovery/cache"
	"github.com/procurehq/supplierscope/internal/discovery/engine"
)

func TestTickRefreshesStaleEntriesUnderTheirKeys(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(time.Hour, 100)
	eng, err := engine.New(config.Default(), store, []adapters.Adapter{fixedAdapter{cands: []discovery.RawCandidate{
		{Field: "name", Value: "Acme Trading Pty Ltd", Confidence: 0.9, Source: "registry_stub"},
		{Field: "registration_number", Value: "2001/123456/07", Confidence: 0.9, Source: "registry_stub"},
		{Field: "phone", Value: "011 555 0100", Confidence: 0.9, Source: "registry_stub"},
		{Field: "tax_id", Value: "9123456789", Confidence: 0.9, Source: "registry_stub"},
	}}}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	// the fused legal name is longer than the name the entry was cached
	// under, and a context variant shares the base key
	stale := &discovery.FusedRecord{
		Name:         "Acme Trading Pty Ltd",
		Confidence:   discovery.Confidence{Overall: 0.55},
		DiscoveredAt: time.Now().Add(-72 * time.Hour),
	}
	_ = store.Set(ctx, "acme trading", stale, time.Hour)
	_ = store.Set(ctx, "acme trading:1a2b3c4d", stale, time.Hour)

	s := &Scheduler{
		Engine: eng,
		Store:  store,
		Cfg:    config.SchedulerConfig{MaxRefresh: 5},
		Stop:   make(chan struct{}),
		logger: log.New(io.Discard, "", 0),
	}
	s.tick()

	if n, _ := store.Len(ctx); n != 1 {
		t.Fatalf("stale variants must be replaced by one fresh entry, store holds %d", n)
	}
	got, _ := store.Get(ctx, "acme trading")
	if got == nil {
		t.Fatalf("refreshed record must live under the original key")
	}
	if got.Confidence.Overall <= 0.55 {
		t.Fatalf("refresh kept the stale confidence: %+v", got.Confidence)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()
	halfHour := now.Add(-30 * time.Minute)
	twoHours := now.Add(-2 * time.Hour)
	twoDays := now.Add(-48 * time.Hour)

	if !isDue("@hourly", nil) {
		t.Fatalf("never-run hourly schedule should be due")
	}
	if isDue("@hourly", &halfHour) {
		t.Fatalf("hourly schedule ran 30m ago, not due")
	}
	if !isDue("@hourly", &twoHours) {
		t.Fatalf("hourly schedule ran 2h ago, due")
	}

	if isDue("@daily", &twoHours) {
		t.Fatalf("daily schedule ran 2h ago, not due")
	}
	if !isDue("@daily", &twoDays) {
		t.Fatalf("daily schedule ran 2 days ago, due")
	}

	// 5-field cron expression
	if !isDue("0 * * * *", &twoHours) {
		t.Fatalf("hourly cron with 2h-old last run should be due")
	}
	// invalid spec falls back to daily behaviour
	if isDue("not a cron", &twoHours) {
		t.Fatalf("invalid spec should behave like daily")
	}
	if !isDue("not a cron", nil) {
		t.Fatalf("invalid spec with no last run should be due")
	}
}
