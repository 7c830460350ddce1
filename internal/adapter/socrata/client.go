// Package socrata fetches the Border Crossing Entry Data rows.json export.
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/couchcryptid/border-data-service/internal/observability"
)

// maxErrorBody bounds how much of a failed response is echoed into the error.
const maxErrorBody = 512

// Client downloads and decodes the dataset over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a dataset client for the given rows.json URL.
func NewClient(url string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchRows issues a single GET for the dataset and decodes its rows. Every
// failure wraps domain.ErrDataUnavailable. No retries are attempted.
func (c *Client) FetchRows(ctx context.Context) ([]domain.Row, error) {
	start := time.Now()
	rows, err := c.fetch(ctx)
	c.metrics.DatasetFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.DatasetFetches.WithLabelValues("error").Inc()
		c.logger.Error("dataset fetch failed", "url", c.url, "error", err)
		return nil, fmt.Errorf("fetch dataset: %w: %w", domain.ErrDataUnavailable, err)
	}

	c.metrics.DatasetFetches.WithLabelValues("success").Inc()
	c.logger.Info("dataset fetched", "rows", len(rows), "duration", time.Since(start))
	return rows, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("socrata API error: status %d: %s", resp.StatusCode, body)
	}

	return decodeRows(resp.Body)
}

// FileFetcher reads a rows.json document from disk. It serves the CLIs and
// offline fixtures through the same interface as Client.
type FileFetcher struct {
	Path string
}

// FetchRows reads and decodes the file. Failures wrap domain.ErrDataUnavailable.
func (f FileFetcher) FetchRows(_ context.Context) ([]domain.Row, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w: %w", domain.ErrDataUnavailable, err)
	}
	defer file.Close()

	rows, err := decodeRows(file)
	if err != nil {
		return nil, fmt.Errorf("read dataset file %s: %w: %w", f.Path, domain.ErrDataUnavailable, err)
	}
	return rows, nil
}

// document is the top-level shape of a rows.json export. The "meta" member
// (column definitions) is not needed.
type document struct {
	Data []domain.Row `json:"data"`
}

func decodeRows(r io.Reader) ([]domain.Row, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if doc.Data == nil {
		return []domain.Row{}, nil
	}
	return doc.Data, nil
}
