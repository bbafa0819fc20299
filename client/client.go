// Package client implements the HTTP interface to the remote test-discovery
// and batch-execution backend. The wire format follows the backend's REST
// surface: JSON payloads keyed by dotted test object fullnames.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-dashboard/types"
)

// DefaultTimeout bounds a single backend request. Polling retries are the
// updater's job; a hung request must not stall the poll loop forever.
const DefaultTimeout = 30 * time.Second

// Config contains client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8080/tests".
	BaseURL string
	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client
	Log        log.Logger
}

// Client talks to the batch backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        log.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		log:        cfg.Log,
	}, nil
}

// StartBatch asks the backend to start a test batch for fullname. The
// response carries at least a batch id; the backend may answer with the
// metadata and results inline.
func (c *Client) StartBatch(ctx context.Context, fullname string) (*types.BatchStart, error) {
	var start types.BatchStart
	if err := c.do(ctx, http.MethodPost, "start_batch/"+url.PathEscape(fullname), &start); err != nil {
		return nil, fmt.Errorf("start batch for %q: %w", fullname, err)
	}
	return &start, nil
}

// BatchInfo fetches the batch metadata. A (nil, nil) return means the batch
// has not been admitted yet and the caller should poll again.
func (c *Client) BatchInfo(ctx context.Context, batchID string) (*types.BatchInfo, error) {
	var info *types.BatchInfo
	if err := c.do(ctx, http.MethodGet, "batch_info/"+url.PathEscape(batchID), &info); err != nil {
		return nil, fmt.Errorf("batch info for %q: %w", batchID, err)
	}
	return info, nil
}

// BatchResults fetches unit results starting at the given offset, oldest
// first. The response may be empty when no new results are available yet.
func (c *Client) BatchResults(ctx context.Context, batchID string, start int) ([]types.UnitResult, error) {
	path := "batch_results/" + url.PathEscape(batchID) + "?start=" + strconv.Itoa(start)
	var results []types.UnitResult
	if err := c.do(ctx, http.MethodGet, path, &results); err != nil {
		return nil, fmt.Errorf("batch results for %q at %d: %w", batchID, start, err)
	}
	return results, nil
}

// GetMethods lists the test method fullnames under the given root, along with
// any load errors hit during discovery. Used once at startup to populate the
// dashboard before any run.
func (c *Client) GetMethods(ctx context.Context, fullname string) (*types.MethodList, error) {
	var list types.MethodList
	if err := c.do(ctx, http.MethodGet, "get_methods/"+url.PathEscape(fullname), &list); err != nil {
		return nil, fmt.Errorf("get methods for %q: %w", fullname, err)
	}
	return &list, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	reqURL := c.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
