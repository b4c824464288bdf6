package engage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	appLog "engagecal/internal/log"
	"engagecal/internal/model"
)

const (
	DefaultPageSize     = 100
	DefaultTimeout      = 30 * time.Second
	DefaultAPIKeyHeader = "X-Engage-Api-Key"

	// snippetLen caps how much of an error body is surfaced.
	snippetLen = 500
)

// Options configures a Fetcher.
type Options struct {
	// BaseURL is the list endpoint, possibly already carrying filter params.
	BaseURL string
	APIKey  string
	// APIKeyHeader defaults to DefaultAPIKeyHeader.
	APIKeyHeader string
	PageSize     int
	// Timeout is the per-request deadline.
	Timeout time.Duration
	// RequestsPerSecond paces page requests; 0 means no pacing.
	RequestsPerSecond float64
	// Client overrides the HTTP client (tests). Timeout is ignored when set.
	Client *http.Client
}

// StatusError is returned when the feed answers with anything but 200.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
	// Snippet holds the first 500 characters of the response body.
	Snippet string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engage: %s from %s: %s", e.Status, e.URL, e.Snippet)
}

// Result is the aggregated feed.
type Result struct {
	Events []model.RawEvent
	Pages  int
	// Total is the server-reported total, or the first page size when the
	// server reported none.
	Total int
}

// Fetcher pages through the Engage list endpoint.
type Fetcher struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher validates opts and fills defaults.
func NewFetcher(opts Options) (*Fetcher, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("engage: base URL is empty")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("engage: invalid base URL: %w", err)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = DefaultAPIKeyHeader
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Fetcher{opts: opts, client: client, limiter: limiter}, nil
}

// FetchAll requests pages sequentially (skip=0, take, 2*take, ...) until the
// cumulative offset reaches the reported total, and returns every item in
// delivery order. Any failure discards what was fetched so far.
func (f *Fetcher) FetchAll(ctx context.Context) (Result, error) {
	var (
		res   Result
		total = -1
	)

	for skip := 0; ; skip += f.opts.PageSize {
		if err := f.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}

		page, unpaged, err := f.fetchPage(ctx, skip)
		if err != nil {
			return Result{}, err
		}
		res.Pages++
		res.Events = append(res.Events, page.Items...)

		// Without a reported total the first page's count stands in for
		// it, so pagination degrades to this single request.
		reported, hasTotal := page.Total()
		singleShot := unpaged || (total < 0 && !hasTotal)
		if total < 0 {
			if hasTotal {
				total = reported
			} else {
				total = len(page.Items)
			}
		}

		appLog.Debug("engage page fetched",
			"skip", skip,
			"take", f.opts.PageSize,
			"items", len(page.Items),
			"total", total,
		)

		if singleShot || skip+f.opts.PageSize >= total {
			break
		}
		if len(page.Items) == 0 {
			appLog.Warn("engage returned an empty page before the reported total",
				"skip", skip, "total", total, "fetched", len(res.Events))
			break
		}
		if len(page.Items) < f.opts.PageSize {
			// The next request still starts at skip+take, so anything the
			// server held back on this page is not fetched.
			appLog.Warn("engage returned a short page; server may cap take below page size",
				"skip", skip, "take", f.opts.PageSize, "items", len(page.Items), "total", total)
		}
	}

	res.Total = total
	appLog.Info("engage fetch completed",
		"url", redactURL(f.opts.BaseURL),
		"pages", res.Pages,
		"events", len(res.Events),
		"total", total,
	)
	return res, nil
}

// fetchPage requests one page. unpaged reports a bare-array body, which
// holds the whole feed.
func (f *Fetcher) fetchPage(ctx context.Context, skip int) (page model.Page, unpaged bool, err error) {
	pageURL, err := f.pageURL(skip)
	if err != nil {
		return model.Page{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return model.Page{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(f.opts.APIKeyHeader, f.opts.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return model.Page{}, false, fmt.Errorf("engage: request skip=%d: %w", skip, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Page{}, false, fmt.Errorf("engage: read body skip=%d: %w", skip, err)
	}

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        redactURL(f.opts.BaseURL),
			Snippet:    snippet(body),
		}
		appLog.Error("engage fetch failed", serr,
			"status", resp.StatusCode,
			"skip", skip,
			"response_snippet", serr.Snippet,
		)
		return model.Page{}, false, serr
	}

	page, unpaged, err = decodePage(body)
	if err != nil {
		return model.Page{}, false, fmt.Errorf("engage: decode page skip=%d: %w", skip, err)
	}
	return page, unpaged, nil
}

// pageURL sets skip/take on the base URL, keeping any filters it has.
func (f *Fetcher) pageURL(skip int) (string, error) {
	u, err := url.Parse(f.opts.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("skip", strconv.Itoa(skip))
	q.Set("take", strconv.Itoa(f.opts.PageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodePage accepts the {skip,take,totalItems,items} envelope and, as a
// fallback, a bare array which is then the whole feed.
func decodePage(body []byte) (model.Page, bool, error) {
	trimmed := bytes.TrimSpace(body)

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []model.RawEvent
		if err := dec.Decode(&items); err != nil {
			return model.Page{}, false, err
		}
		n := json.Number(strconv.Itoa(len(items)))
		return model.Page{Take: len(items), TotalItems: &n, Items: items}, true, nil
	}

	var page model.Page
	if err := dec.Decode(&page); err != nil {
		return model.Page{}, false, err
	}
	return page, false, nil
}

func snippet(body []byte) string {
	r := []rune(string(body))
	if len(r) > snippetLen {
		r = r[:snippetLen]
	}
	return string(r)
}

// redactURL keeps scheme and host only; Engage URLs may carry keys in
// their query string.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "engage://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
