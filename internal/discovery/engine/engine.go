// Package engine orchestrates supplier discovery: it fans a request out to
// the registered source adapters, fuses their candidates into a single
// confidence-scored record and caches the result.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/internal/discovery/adapters"
	"github.com/procurehq/supplierscope/internal/discovery/cache"
	"github.com/procurehq/supplierscope/internal/discovery/fusion"
	"github.com/procurehq/supplierscope/internal/telemetry"
)

// cacheMode selects how one discovery pass interacts with the cache.
type cacheMode int

const (
	cacheReadWrite cacheMode = iota // serve hits, overwrite on success
	cacheOverwrite                  // skip the lookup, overwrite on success
	cacheCompare                    // skip the lookup, keep the better record
)

// Engine coordinates the discovery pipeline. It is safe for concurrent use;
// at most MaxConcurrent requests run their adapter phase at a time, the rest
// queue in arrival order.
type Engine struct {
	cfg       *config.Config
	store     cache.Store
	fuser     *fusion.Engine
	adapters  []adapters.Adapter
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	// Slot accounting. A buffered-channel semaphore does not wake waiters
	// in order, so the queue is explicit.
	mu      sync.Mutex
	active  int
	waiters []*waiter
}

type waiter struct {
	ready chan struct{}
}

// New builds an engine over the given cache store and adapter set. Adapter
// registration order is also the final fusion tie-break order.
func New(cfg *config.Config, store cache.Store, adapterList []adapters.Adapter, tel *telemetry.Telemetry) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("engine: cache store is required")
	}
	if len(adapterList) == 0 {
		return nil, fmt.Errorf("engine: at least one adapter is required")
	}
	categories := make(map[string]string, len(adapterList))
	order := make([]string, 0, len(adapterList))
	for _, a := range adapterList {
		categories[a.Name()] = a.Category()
		order = append(order, a.Name())
	}
	fuser, err := fusion.New(fusion.Options{
		MinConfidence:    cfg.Discovery.MinConfidence,
		TrustWeights:     cfg.Trust.Weights,
		Jurisdictions:    cfg.Jurisdictions,
		Localities:       cfg.Localities,
		SourceCategories: categories,
		SourceOrder:      order,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: building fusion engine: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		fuser:     fuser,
		adapters:  adapterList,
		telemetry: tel,
		logger:    log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
	}, nil
}

// Discover resolves one request: cache first, then adapter fan-out and
// fusion. A fused record is cached before it is returned.
func (e *Engine) Discover(ctx context.Context, req discovery.DiscoveryRequest) (*discovery.DiscoverOutcome, error) {
	return e.discover(ctx, req, cacheReadWrite)
}

// Refresh invalidates every cached context variant of the requested supplier
// and runs a fresh discovery.
func (e *Engine) Refresh(ctx context.Context, req discovery.DiscoveryRequest) (*discovery.DiscoverOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if removed, err := e.store.DeleteAll(ctx, req.BaseKey()); err != nil {
		e.logger.Printf("refresh: invalidating %s: %v", req.BaseKey(), err)
	} else if removed > 0 {
		e.logger.Printf("refresh: invalidated %d cached variants of %s", removed, req.BaseKey())
	}
	return e.discover(ctx, req, cacheOverwrite)
}

// UpdateIfBetter runs a fresh discovery and stores the result only when its
// overall confidence beats whatever is already cached. The second return
// reports whether the cache was updated.
func (e *Engine) UpdateIfBetter(ctx context.Context, req discovery.DiscoveryRequest) (*discovery.DiscoverOutcome, bool, error) {
	outcome, err := e.discover(ctx, req, cacheCompare)
	if err != nil {
		return nil, false, err
	}
	updated, err := e.store.UpdateIfBetter(ctx, req.CacheKey(), outcome.Record, e.cfg.Discovery.CacheTTL)
	if err != nil {
		e.logger.Printf("update-if-better: %s: %v", req.CacheKey(), err)
		return outcome, false, nil
	}
	return outcome, updated, nil
}

// BulkDiscover resolves many requests in batches smaller than the
// concurrency ceiling, pausing between batches so interactive requests are
// not starved. One failing request never fails the batch.
func (e *Engine) BulkDiscover(ctx context.Context, reqs []discovery.DiscoveryRequest) []discovery.BulkResult {
	results := make([]discovery.BulkResult, len(reqs))
	batch := e.cfg.Discovery.BulkBatchSize
	for start := 0; start < len(reqs); start += batch {
		end := start + batch
		if end > len(reqs) {
			end = len(reqs)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcome, err := e.Discover(ctx, reqs[i])
				res := discovery.BulkResult{Request: reqs[i], Err: err}
				if err != nil {
					res.Error = err.Error()
				} else {
					res.Record = outcome.Record
				}
				results[i] = res
			}(i)
		}
		wg.Wait()
		if end == len(reqs) {
			break
		}
		select {
		case <-ctx.Done():
			for i := end; i < len(reqs); i++ {
				results[i] = discovery.BulkResult{Request: reqs[i], Err: ctx.Err(), Error: ctx.Err().Error()}
			}
			return results
		case <-time.After(e.cfg.Discovery.BulkBatchPause):
		}
	}
	return results
}

// Stats snapshots cache counters and slot occupancy.
func (e *Engine) Stats(ctx context.Context) discovery.EngineStats {
	cs := e.store.Stats()
	entries, err := e.store.Len(ctx)
	if err != nil {
		e.logger.Printf("stats: cache len: %v", err)
	}
	e.mu.Lock()
	active, waiting := e.active, len(e.waiters)
	e.mu.Unlock()
	return discovery.EngineStats{
		CacheHits:    cs.Hits,
		CacheMisses:  cs.Misses,
		CacheHitRate: cs.HitRate,
		CacheEntries: entries,
		Active:       active,
		Waiting:      waiting,
		Healthy:      active < e.cfg.Discovery.MaxConcurrent,
	}
}

// HealthCheck verifies the cache store is reachable and a concurrency slot
// could be granted.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if _, err := e.store.Len(ctx); err != nil {
		return fmt.Errorf("cache store unreachable: %w", err)
	}
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	if active >= e.cfg.Discovery.MaxConcurrent {
		return fmt.Errorf("all %d concurrency slots busy", e.cfg.Discovery.MaxConcurrent)
	}
	return nil
}

func (e *Engine) discover(ctx context.Context, req discovery.DiscoveryRequest, mode cacheMode) (*discovery.DiscoverOutcome, error) {
	started := time.Now()
	opID := uuid.New().String()
	if err := req.Validate(); err != nil {
		e.record("invalid", req, started, nil)
		return nil, err
	}
	key := req.CacheKey()
	e.logger.Printf("[%s] discover %s", opID, key)

	// Overall deadline, covering queue wait and the adapter phase.
	if t := e.cfg.Discovery.RequestTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	if mode == cacheReadWrite {
		if rec, err := e.store.Get(ctx, key); err != nil {
			e.logger.Printf("cache get %s: %v", key, err)
		} else if rec != nil {
			e.record("cache_hit", req, started, rec)
			return &discovery.DiscoverOutcome{
				Record:    rec,
				Elapsed:   time.Since(started),
				Sources:   rec.SourcesUsed,
				FromCache: true,
			}, nil
		}
	}

	if err := e.acquire(ctx); err != nil {
		e.record("timeout", req, started, nil)
		return nil, err
	}
	defer e.release()

	candidates := e.collect(ctx, req)
	if len(candidates) == 0 {
		// An empty union caused by the deadline is overload, not a
		// sparse supplier.
		if ctx.Err() != nil {
			e.record("timeout", req, started, nil)
			return nil, fmt.Errorf("%w: %v", discovery.ErrTimeout, ctx.Err())
		}
		e.logger.Printf("[%s] no candidates for %s", opID, key)
		e.record("no_data", req, started, nil)
		return nil, fmt.Errorf("%w: no source produced candidates for %q", discovery.ErrNoDataFound, req.Name)
	}

	rec, err := e.fuser.Fuse(candidates)
	if err != nil {
		e.record("rejected", req, started, nil)
		return nil, err
	}

	if mode != cacheCompare {
		if err := e.store.Set(ctx, key, rec, e.cfg.Discovery.CacheTTL); err != nil {
			e.logger.Printf("cache set %s: %v", key, err)
		}
	}
	e.logger.Printf("[%s] accepted %s overall=%.2f sources=%d in %v",
		opID, key, rec.Confidence.Overall, len(rec.SourcesUsed), time.Since(started))
	e.record("accepted", req, started, rec)
	return &discovery.DiscoverOutcome{
		Record:  rec,
		Elapsed: time.Since(started),
		Sources: rec.SourcesUsed,
	}, nil
}

// collect runs every adapter in parallel, each under its own timeout. A
// panicking or empty adapter degrades to zero candidates.
func (e *Engine) collect(ctx context.Context, req discovery.DiscoveryRequest) []discovery.RawCandidate {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out []discovery.RawCandidate
	)
	for _, a := range e.adapters {
		wg.Add(1)
		go func(a adapters.Adapter) {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, e.cfg.Discovery.AdapterTimeout)
			defer cancel()
			started := time.Now()
			var cands []discovery.RawCandidate
			failed := false
			func() {
				defer func() {
					if r := recover(); r != nil {
						failed = true
						e.logger.Printf("adapter %s panicked: %v", a.Name(), r)
					}
				}()
				cands = a.Extract(actx, req)
			}()
			if e.telemetry != nil {
				e.telemetry.RecordAdapterRun(a.Name(), len(cands), failed)
			}
			e.logger.Printf("adapter %s: %d candidates in %v", a.Name(), len(cands), time.Since(started))
			if len(cands) > 0 {
				mu.Lock()
				out = append(out, cands...)
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()
	return out
}

// acquire blocks until a concurrency slot is granted, the per-request wait
// deadline elapses, or ctx is cancelled. Waiters are served in arrival order.
func (e *Engine) acquire(ctx context.Context) error {
	e.mu.Lock()
	if e.active < e.cfg.Discovery.MaxConcurrent && len(e.waiters) == 0 {
		e.active++
		active := e.active
		e.mu.Unlock()
		e.publishLoad(active, 0)
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	active, waiting := e.active, len(e.waiters)
	e.mu.Unlock()
	e.publishLoad(active, waiting)

	timer := time.NewTimer(e.cfg.Discovery.WaitTimeout)
	defer timer.Stop()
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		e.abandon(w)
		return fmt.Errorf("%w: %v", discovery.ErrTimeout, ctx.Err())
	case <-timer.C:
		e.abandon(w)
		return fmt.Errorf("%w: waited %v for a concurrency slot", discovery.ErrTimeout, e.cfg.Discovery.WaitTimeout)
	}
}

// abandon removes w from the queue after a timeout or cancellation. When the
// grant raced in first, the slot is handed straight back.
func (e *Engine) abandon(w *waiter) {
	e.mu.Lock()
	for i, queued := range e.waiters {
		if queued == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			active, waiting := e.active, len(e.waiters)
			e.mu.Unlock()
			e.publishLoad(active, waiting)
			return
		}
	}
	e.releaseLocked()
	active, waiting := e.active, len(e.waiters)
	e.mu.Unlock()
	e.publishLoad(active, waiting)
}

func (e *Engine) release() {
	e.mu.Lock()
	e.releaseLocked()
	active, waiting := e.active, len(e.waiters)
	e.mu.Unlock()
	e.publishLoad(active, waiting)
}

// releaseLocked frees one slot, transferring it to the head of the queue
// when anyone is waiting. Callers hold e.mu.
func (e *Engine) releaseLocked() {
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(next.ready)
		return
	}
	e.active--
}

func (e *Engine) publishLoad(active, waiting int) {
	if e.telemetry == nil {
		return
	}
	e.telemetry.SetActive(active)
	e.telemetry.SetWaiting(waiting)
}

func (e *Engine) record(outcome string, req discovery.DiscoveryRequest, started time.Time, rec *discovery.FusedRecord) {
	if e.telemetry == nil {
		return
	}
	event := telemetry.DiscoveryEvent{
		Key:     req.BaseKey(),
		Outcome: outcome,
		Elapsed: time.Since(started),
	}
	if rec != nil {
		event.Sources = rec.SourcesUsed
		event.Overall = rec.Confidence.Overall
		event.FromCache = outcome == "cache_hit"
	}
	e.telemetry.RecordDiscoveryEvent(event)
}
