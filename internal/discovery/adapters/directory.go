package adapters

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
)

const directoryConfidence = 0.75

// DirectoryAdapter queries one known external business directory using its
// fixed field-to-selector table from configuration.
type DirectoryAdapter struct {
	cfg       config.DirectoryConfig
	fetcher   Fetcher
	perTarget time.Duration
	logger    *log.Logger
}

// NewDirectoryAdapter builds an adapter for one configured directory.
func NewDirectoryAdapter(cfg config.DirectoryConfig, fetcher Fetcher, perTarget time.Duration) *DirectoryAdapter {
	if perTarget <= 0 {
		perTarget = 10 * time.Second
	}
	return &DirectoryAdapter{
		cfg:       cfg,
		fetcher:   fetcher,
		perTarget: perTarget,
		logger:    log.New(log.Writer(), "[DIRECTORY] ", log.LstdFlags),
	}
}

func (a *DirectoryAdapter) Name() string { return a.cfg.Name }

func (a *DirectoryAdapter) Category() string {
	switch a.cfg.Category {
	case CategoryRegistry, CategoryDirectory, CategorySocial, CategoryWeb:
		return a.cfg.Category
	default:
		return CategoryDirectory
	}
}

func (a *DirectoryAdapter) Extract(ctx context.Context, req discovery.DiscoveryRequest) []discovery.RawCandidate {
	target := a.lookupURL(req.Name)
	if target == "" {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, a.perTarget)
	defer cancel()
	res, err := a.fetcher.Exec(fctx, target)
	if err != nil {
		a.logger.Printf("%s: fetch %s failed: %v", a.cfg.Name, target, err)
		return nil
	}
	if res.Status >= 400 || res.HTML == "" {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(res.HTML))
	if err != nil {
		a.logger.Printf("%s: parse %s failed: %v", a.cfg.Name, target, err)
		return nil
	}

	var out []discovery.RawCandidate
	for field, selector := range a.cfg.Selectors {
		value := strings.TrimSpace(selectFirst(doc, selector))
		if value == "" {
			continue
		}
		out = append(out, candidate(a.Name(), field, value, a.confidence()))
	}
	return out
}

// lookupURL substitutes the entity name into the directory's search URL
// template; {query} is replaced with the escaped name.
func (a *DirectoryAdapter) lookupURL(name string) string {
	tmpl := strings.TrimSpace(a.cfg.SearchURL)
	if tmpl == "" {
		return ""
	}
	return strings.ReplaceAll(tmpl, "{query}", url.QueryEscape(strings.TrimSpace(name)))
}

// Registries earn a higher band than generic directories.
func (a *DirectoryAdapter) confidence() float64 {
	if a.Category() == CategoryRegistry {
		return 0.9
	}
	return directoryConfidence
}
