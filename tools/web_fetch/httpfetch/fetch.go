package httpfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/procurehq/supplierscope/tools/web_fetch/models"
)

const maxBodyBytes = 1 << 20 // 1MB

// Fetch does a plain GET and returns the raw markup without rendering.
type Fetch struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	Retries   int
	Backoff   time.Duration
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	client := &http.Client{Timeout: f.Timeout}
	backoff := f.Backoff
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}

	var lastErr error
	tries := f.Retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return models.Result{}, err
		}
		if f.UserAgent != "" {
			req.Header.Set("User-Agent", f.UserAgent)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				html := string(body)
				if f.MaxChars > 0 && len(html) > f.MaxChars {
					html = html[:f.MaxChars]
				}
				return models.Result{
					URL:      url,
					HTML:     html,
					Status:   resp.StatusCode,
					RenderMS: int(time.Since(t0) / time.Millisecond),
				}, nil
			} else {
				lastErr = errors.New(resp.Status)
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return models.Result{}, ctx.Err()
			}
		}
	}
	return models.Result{URL: url, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, lastErr
}
