package service

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

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	defaultPerPage = 10
)

// billIncludes are the related objects requested with every bill
var billIncludes = []string{
	"sponsorships",
	"abstracts",
	"other_titles",
	"other_identifiers",
	"actions",
	"sources",
	"documents",
	"versions",
	"votes",
	"related_bills",
}

// ErrBillNotFound is returned when Open States has no bill with the given id
var ErrBillNotFound = errors.New("bill not found")

// statusError is a non-retryable client error from the API
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// OpenStatesClient handles communication with the Open States v3 API
type OpenStatesClient struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	jurisdiction string
	backoff      time.Duration
}

// NewOpenStatesClient creates a new Open States API client
func NewOpenStatesClient(baseURL, apiKey, jurisdiction string) *OpenStatesClient {
	return &OpenStatesClient{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		jurisdiction: jurisdiction,
		backoff:      initialBackoff,
	}
}

// BillSearch filters a bill listing
type BillSearch struct {
	Query          string
	Classification string
	Page           int
	PerPage        int
}

// GetBill retrieves a single bill with all related objects
func (c *OpenStatesClient) GetBill(ctx context.Context, id string) (*model.BillRecord, error) {
	params := c.params()
	endpoint := fmt.Sprintf("%s/bills/%s?%s", c.baseURL, escapeBillID(id), params.Encode())

	body, err := c.fetchWithRetry(ctx, endpoint)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrBillNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch bill %s: %w", id, err)
	}

	var bill model.BillRecord
	if err := json.Unmarshal(body, &bill); err != nil {
		return nil, fmt.Errorf("failed to parse bill response: %w", err)
	}

	return &bill, nil
}

// SearchBills lists the jurisdiction's bills, most recently active first
func (c *OpenStatesClient) SearchBills(ctx context.Context, search BillSearch) (*model.BillPage, error) {
	if search.Page < 1 {
		search.Page = 1
	}
	if search.PerPage < 1 {
		search.PerPage = defaultPerPage
	}

	params := c.params()
	params.Set("jurisdiction", c.jurisdiction)
	params.Set("sort", "latest_action_desc")
	params.Set("page", strconv.Itoa(search.Page))
	params.Set("per_page", strconv.Itoa(search.PerPage))
	if search.Query != "" {
		params.Set("q", search.Query)
	}
	if search.Classification != "" {
		params.Set("classification", search.Classification)
	}

	body, err := c.fetchWithRetry(ctx, fmt.Sprintf("%s/bills?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to search bills: %w", err)
	}

	var page model.BillPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse bills response: %w", err)
	}

	return &page, nil
}

func (c *OpenStatesClient) params() url.Values {
	params := url.Values{}
	for _, inc := range billIncludes {
		params.Add("include", inc)
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	return params
}

// escapeBillID escapes each segment of an id such as "ocd-bill/<uuid>"
func escapeBillID(id string) string {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// fetchWithRetry performs an HTTP GET with exponential backoff retry.
// Client errors other than 429 are not retried.
func (c *OpenStatesClient) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &statusError{code: resp.StatusCode}
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = &statusError{code: resp.StatusCode}
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
