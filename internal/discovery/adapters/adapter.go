// Package adapters contains the source adapters that turn one discovery
// request into raw field candidates. Every adapter honors the same
// contract: Extract never fails. Any internal error degrades to an empty
// candidate list for that adapter, so no single source can sink a request.
package adapters

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/procurehq/supplierscope/internal/discovery"
	fetchmodels "github.com/procurehq/supplierscope/tools/web_fetch/models"
)

// Source trust categories, ordered registry > directory > social > web.
const (
	CategoryRegistry  = "registry"
	CategoryDirectory = "directory"
	CategorySocial    = "social"
	CategoryWeb       = "web"
)

// Adapter is one category of external source.
type Adapter interface {
	// Name is the source identifier candidates are tagged with.
	Name() string
	// Category is the trust category used for tie-breaks and the
	// source-type trust bonus.
	Category() string
	// Extract queries the source. It must not return an error: a failure
	// inside an adapter yields nil and is logged locally.
	Extract(ctx context.Context, req discovery.DiscoveryRequest) []discovery.RawCandidate
}

// Fetcher is the URL-content capability adapters depend on; satisfied by
// the web_fetch fetchers.
type Fetcher interface {
	Exec(ctx context.Context, url string) (fetchmodels.Result, error)
}

// fetchTargets retrieves several target URLs with bounded sub-parallelism
// and a per-target timeout. A failing target contributes nothing; retry
// behavior lives inside the fetcher.
func fetchTargets(ctx context.Context, fetcher Fetcher, targets []string, parallel int, perTarget time.Duration, logger *log.Logger) []fetchmodels.Result {
	if len(targets) == 0 {
		return nil
	}
	if parallel <= 0 {
		parallel = 3
	}
	pool, err := ants.NewPool(parallel)
	if err != nil {
		logger.Printf("target pool unavailable: %v", err)
		return nil
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		results []fetchmodels.Result
		wg      sync.WaitGroup
	)
	for _, target := range targets {
		target := target
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			tctx, cancel := context.WithTimeout(ctx, perTarget)
			defer cancel()
			res, err := fetcher.Exec(tctx, target)
			if err != nil {
				logger.Printf("target %s failed: %v", target, err)
				return
			}
			if res.Status >= 400 || (res.HTML == "" && res.Text == "") {
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			logger.Printf("target %s not scheduled: %v", target, submitErr)
		}
	}
	wg.Wait()
	return results
}

func candidate(source, field, value string, confidence float64) discovery.RawCandidate {
	return discovery.RawCandidate{
		Field:       field,
		Value:       value,
		Confidence:  confidence,
		Source:      source,
		ExtractedAt: time.Now(),
	}
}
