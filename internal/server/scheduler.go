package server

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/internal/discovery/cache"
	"github.com/procurehq/supplierscope/internal/discovery/engine"
)

// Scheduler periodically walks the cache and re-discovers stale or
// low-confidence records, highest priority first.
type Scheduler struct {
	Engine *engine.Engine
	Store  cache.Store
	Cfg    config.SchedulerConfig
	Rdb    *redis.Client
	Stop   chan struct{}

	lastRun *time.Time
	logger  *log.Logger
}

func (s *Scheduler) Start() {
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				if isDue(s.Cfg.Cron, s.lastRun) {
					now := time.Now()
					s.lastRun = &now
					s.tick()
				}
			}
		}
	}()
}

func (s *Scheduler) Shutdown() {
	close(s.Stop)
}

func (s *Scheduler) tick() {
	ctx := context.Background()

	// Distributed lock so only one instance refreshes a shared redis cache.
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "sched:lock:refresh", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sched:lock:refresh")
	}

	// Refresh targets are the cache keys themselves, collapsed to their
	// base so context variants yield one Refresh (which invalidates all
	// of them). Refreshing under the fused record's name would miss the
	// scanned entry whenever fusion produced a longer legal name.
	rank := map[discovery.RefreshPriority]int{
		discovery.RefreshHigh:   3,
		discovery.RefreshMedium: 2,
		discovery.RefreshLow:    1,
	}
	best := map[string]discovery.RefreshPriority{}
	now := time.Now()
	err := s.Store.Scan(ctx, func(key string, rec *discovery.FusedRecord) bool {
		p := discovery.ShouldRefresh(rec, now)
		if p == discovery.RefreshNone {
			return true
		}
		base := baseKey(key)
		if rank[p] > rank[best[base]] {
			best[base] = p
		}
		return true
	})
	if err != nil {
		s.logger.Printf("cache scan: %v", err)
		return
	}
	if len(best) == 0 {
		return
	}

	type due struct {
		key      string
		priority discovery.RefreshPriority
	}
	candidates := make([]due, 0, len(best))
	for key, p := range best {
		candidates = append(candidates, due{key: key, priority: p})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if rank[candidates[i].priority] != rank[candidates[j].priority] {
			return rank[candidates[i].priority] > rank[candidates[j].priority]
		}
		return candidates[i].key < candidates[j].key
	})
	limit := s.Cfg.MaxRefresh
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.logger.Printf("refreshing %d stale records", len(candidates))
	for _, c := range candidates {
		// jitter to avoid stampedes against the same sources
		time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
		req := discovery.DiscoveryRequest{Name: c.key}
		if _, err := s.Engine.Refresh(ctx, req); err != nil {
			s.logger.Printf("refresh %q (%s): %v", c.key, c.priority, err)
		}
	}
}

// baseKey strips the context-hash suffix from a cache key.
func baseKey(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i]
	}
	return key
}

// isDue determines whether the cron spec fires now given the last run time.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
