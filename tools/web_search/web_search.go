package web_search

import (
	"context"

	"github.com/procurehq/supplierscope/tools/web_search/brave"
	"github.com/procurehq/supplierscope/tools/web_search/models"
	"github.com/procurehq/supplierscope/tools/web_search/serper"
	"github.com/procurehq/supplierscope/tools/web_search/static"
)

// WebSearcher issues a bounded query against one search backend.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
	// StaticProvider is the deterministic test double used when no real
	// backend is configured.
	StaticProvider Provider = "static"
)

var ErrUnsupportedProvider = &Error{"unsupported provider"}

type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case StaticProvider:
		return static.Search{}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
