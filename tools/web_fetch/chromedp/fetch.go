package chromedp

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/procurehq/supplierscope/tools/web_fetch/models"
)

// Fetch renders a page in a headless browser before extraction, for targets
// whose content only exists after script execution.
type Fetch struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

func (f Fetch) Exec(ctx context.Context, target string) (models.Result, error) {
	if strings.TrimSpace(target) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	// Headless browsing
	html, err := f.fetchHTML(ctx, target)
	if err != nil {
		return models.Result{URL: target, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	result := models.Result{
		URL:      target,
		HTML:     html,
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}

	// Readable-text pass over the rendered markup
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(target))
	if err != nil {
		return result, nil
	}
	text := article.TextContent
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	result.Title = strings.TrimSpace(article.Title)
	result.Text = strings.TrimSpace(text)
	return result, nil
}

func (f Fetch) fetchHTML(ctx context.Context, target string) (string, error) {
	ua := f.UserAgent
	if ua == "" {
		ua = "SupplierScope/1.0 (+ops@procurehq.example)"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(ua),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
