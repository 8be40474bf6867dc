package web_fetch

import (
	"context"
	"time"

	"github.com/procurehq/supplierscope/tools/web_fetch/chromedp"
	"github.com/procurehq/supplierscope/tools/web_fetch/httpfetch"
	"github.com/procurehq/supplierscope/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// WebFetcher retrieves the content of one URL.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	// HTTPFetcherType does a plain GET and returns the raw markup.
	HTTPFetcherType FetcherType = "http"
	// ChromedpFetcherType renders the page in a headless browser first,
	// for targets that need script execution to produce content.
	ChromedpFetcherType FetcherType = "chromedp"
)

// Options tunes a fetcher. Zero values fall back to sane defaults; Retries
// and Backoff only apply to the plain HTTP fetcher.
type Options struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	Retries   int
	Backoff   time.Duration
}

type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType:
		return &httpfetch.Fetch{
			Timeout:   opts.Timeout,
			MaxChars:  opts.MaxChars,
			UserAgent: opts.UserAgent,
			Retries:   opts.Retries,
			Backoff:   opts.Backoff,
		}, nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{
			Timeout:   opts.Timeout,
			MaxChars:  opts.MaxChars,
			UserAgent: opts.UserAgent,
		}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
