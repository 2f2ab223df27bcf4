package main

// diagnose_feeds fetches every configured source once and prints a JSON
// report: item counts, the newest publish time and how many items would
// pass the freshness window right now. Nothing is tracked or notified.
//
// Usage:
//
//	FEED_SOURCES="go-blog=https://go.dev/blog/feed.atom" go run ./scripts/diagnose_feeds.go

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"feed-digest/internal/config"
	"feed-digest/internal/domain/entity"
	"feed-digest/internal/infra/scraper"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/resilience/retry"
	"feed-digest/internal/usecase/dedup"
	"feed-digest/internal/utils/redact"
	pkgconfig "feed-digest/pkg/config"
)

// FeedDiagnostic is the result for a single source.
type FeedDiagnostic struct {
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Status       string     `json:"status"` // OK, EMPTY, HTTP_ERROR, TIMEOUT, ERROR
	HTTPCode     int        `json:"http_code,omitempty"`
	ItemCount    int        `json:"item_count"`
	Undated      int        `json:"undated_items"`
	FreshCount   int        `json:"fresh_items"`
	Newest       *time.Time `json:"newest_published,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ResponseTime int64      `json:"response_time_ms"`
}

// Report is the document written to stdout.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	FreshnessWindow string           `json:"freshness_window"`
	Sources         []FeedDiagnostic `json:"sources"`
}

func main() {
	logger := logging.NewLogger(logging.Options{Format: logging.FormatText, Writer: os.Stderr})

	env := pkgconfig.NewEnv()
	sources, err := loadSources(env)
	window := dedup.WindowFromMinutes(env.Int("FRESHNESS_WINDOW_MINUTES", config.DefaultFreshnessWindowMinutes))
	timeout := env.Duration("SOURCE_FETCH_TIMEOUT", config.DefaultSourceFetchTimeout)
	if err = errors.Join(err, env.Err()); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: timeout})
	logger.Info("diagnosing feed sources", slog.Int("count", len(sources)))

	report := Report{
		GeneratedAt:     time.Now().UTC(),
		FreshnessWindow: window.String(),
		Sources:         make([]FeedDiagnostic, 0, len(sources)),
	}
	for i, src := range sources {
		logger.Info("diagnosing", slog.Int("n", i+1), slog.String("source", src.Name))
		report.Sources = append(report.Sources, diagnose(fetcher, src, timeout, window))
	}
	sort.Slice(report.Sources, func(i, j int) bool { return report.Sources[i].Name < report.Sources[j].Name })

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadSources(env *pkgconfig.Env) ([]entity.Source, error) {
	sources, err := config.ParseSourceList(env.StringList("FEED_SOURCES"))
	if path := env.String("FEED_SOURCES_FILE", ""); path != "" {
		fromFile, fileErr := config.LoadSourcesFile(path)
		sources = append(sources, fromFile...)
		err = errors.Join(err, fileErr)
	}
	if len(sources) == 0 && err == nil {
		err = errors.New("no sources: set FEED_SOURCES or FEED_SOURCES_FILE")
	}
	return sources, err
}

func diagnose(fetcher *scraper.RSSFetcher, src entity.Source, timeout, window time.Duration) FeedDiagnostic {
	diag := FeedDiagnostic{Name: src.Name, URL: src.URL}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	items, err := fetcher.Fetch(ctx, src)
	diag.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		diag.Status = "ERROR"
		diag.ErrorMessage = redact.Error(err)
		var httpErr *retry.HTTPError
		switch {
		case errors.As(err, &httpErr):
			diag.Status = "HTTP_ERROR"
			diag.HTTPCode = httpErr.StatusCode
		case errors.Is(err, context.DeadlineExceeded):
			diag.Status = "TIMEOUT"
		}
		return diag
	}

	now := time.Now()
	diag.ItemCount = len(items)
	for _, item := range items {
		if item.PublishedAt.IsZero() {
			diag.Undated++
			continue
		}
		if diag.Newest == nil || item.PublishedAt.After(*diag.Newest) {
			t := item.PublishedAt
			diag.Newest = &t
		}
		if dedup.IsFresh(item.PublishedAt, now, window) {
			diag.FreshCount++
		}
	}

	diag.Status = "OK"
	if diag.ItemCount == 0 {
		diag.Status = "EMPTY"
	}
	return diag
}
