// Package asf implements the ASF Search API client used to query and
// download Sentinel-1 granules.
package asf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Credentials holds Earthdata URS login material. Token takes
// precedence over username/password when both are set.
type Credentials struct {
	Username string
	Password string
	Token    string
}

func (c Credentials) empty() bool {
	return c.Token == "" && c.Username == ""
}

// Client handles communication with the ASF Search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	creds      Credentials
}

// NewClient creates a new ASF API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := &Client{
		baseURL: baseURL,
		logger:  slog.Default(),
	}
	c.httpClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
		// Earthdata downloads bounce through the URS login host, which
		// strips the Authorization header on cross-host redirects.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			c.applyAuth(req)
			return nil
		},
	}
	return c
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithCredentials sets Earthdata credentials used for downloads.
func (c *Client) WithCredentials(creds Credentials) *Client {
	c.creds = creds
	return c
}

// Search performs a search against the ASF API.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	c.logger.DebugContext(ctx, "executing ASF search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sbas-pipeline/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "ASF API request failed",
			slog.String("error", err.Error()),
			slog.String("url", searchURL),
		)
		return nil, fmt.Errorf("ASF API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "ASF API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("ASF API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode ASF response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode ASF response: %w", err)
	}

	c.logger.DebugContext(ctx, "ASF search completed",
		slog.Int("feature_count", len(result.Features)),
	)

	return &result, nil
}

// DownloadGranule fetches a granule from downloadURL and writes it to
// destPath. The file is written to a temporary sibling and renamed into
// place so a partial download never masquerades as a finished one.
func (c *Client) DownloadGranule(ctx context.Context, downloadURL, destPath string) error {
	if c.creds.empty() {
		return fmt.Errorf("no Earthdata credentials configured (set EARTHDATA_TOKEN or EARTHDATA_USERNAME/EARTHDATA_PASSWORD)")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", "sbas-pipeline/1.0")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("granule download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("granule download returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	tmpPath := destPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize %s: %w", destPath, err)
	}
	return nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
		return
	}
	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
}

// buildSearchURL constructs the full search URL with query parameters.
func (c *Client) buildSearchURL(params SearchParams) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	base.Path = "/services/search/param"
	base.RawQuery = params.ToQueryString()

	return base.String(), nil
}
