// Package ledger is the typed client for the upstream budgeting API, the
// system of record for accounts and transactions. This service only reads:
// paginated transaction batches, the category list, and the data-coverage
// endpoint that bounds how far back insight windows may reach.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
	"pocketsight/internal/ports"
)

const (
	defaultPageLimit = 200
	// Pagination is bounded: a window fetch never issues more than this
	// many page requests.
	defaultMaxPages = 40
)

// Client talks to the upstream budgeting API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	pageLimit  int
	maxPages   int
}

var (
	_ ports.TransactionSource = (*Client)(nil)
	_ ports.CategorySource    = (*Client)(nil)
	_ ports.CoverageSource    = (*Client)(nil)
)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageLimit sets the per-page transaction count requested upstream.
func WithPageLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.pageLimit = limit
		}
	}
}

// WithMaxPages bounds the pagination loop.
func WithMaxPages(maxPages int) Option {
	return func(c *Client) {
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// NewClient creates a ledger API client.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ledger API base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pageLimit: defaultPageLimit,
		maxPages:  defaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger API %s: %d - %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ListTransactions fetches all transactions posted between fromMonth and
// toMonth inclusive, walking upstream pagination up to the configured page
// bound.
func (c *Client) ListTransactions(ctx context.Context, fromMonth, toMonth string) ([]core.Transaction, error) {
	var all []core.Transaction
	for page := 1; page <= c.maxPages; page++ {
		q := url.Values{}
		q.Set("from", fromMonth)
		q.Set("to", toMonth)
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(c.pageLimit))

		var resp transactionPage
		if err := c.get(ctx, "/api/transactions", q, &resp); err != nil {
			return nil, err
		}

		for _, w := range resp.Transactions {
			tx, err := w.toCore()
			if err != nil {
				return nil, fmt.Errorf("transaction %s: %w", w.ID, err)
			}
			all = append(all, tx)
		}

		if resp.TotalPages <= page {
			return all, nil
		}
		if page == c.maxPages {
			slog.WarnContext(ctx, "Transaction pagination truncated at page bound",
				"max_pages", c.maxPages,
				"total_pages", resp.TotalPages,
				"from", fromMonth,
				"to", toMonth)
		}
	}
	return all, nil
}

// ListCategories fetches the upstream category list.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var resp categoryList
	if err := c.get(ctx, "/api/categories", nil, &resp); err != nil {
		return nil, err
	}
	categories := make([]core.Category, len(resp.Categories))
	for i, wc := range resp.Categories {
		categories[i] = core.Category{ID: wc.ID, Name: wc.Name}
	}
	return categories, nil
}

// EarliestMonth asks the coverage endpoint how far back transaction data
// reaches. Returns "" when the upstream reports nothing.
func (c *Client) EarliestMonth(ctx context.Context) (string, error) {
	var resp coverageResponse
	if err := c.get(ctx, "/api/transactions/coverage", nil, &resp); err != nil {
		return "", err
	}
	return insight.MonthKeyFromISODate(resp.EarliestPostedAt), nil
}

// FetchSnapshot pulls transactions for the month window plus categories and
// coverage, concurrently.
func (c *Client) FetchSnapshot(ctx context.Context, fromMonth, toMonth string) (Snapshot, error) {
	var snap Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := c.ListTransactions(gctx, fromMonth, toMonth)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		snap.Transactions = txs
		return nil
	})
	g.Go(func() error {
		categories, err := c.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		snap.Categories = categories
		return nil
	})
	g.Go(func() error {
		earliest, err := c.EarliestMonth(gctx)
		if err != nil {
			return fmt.Errorf("fetch coverage: %w", err)
		}
		snap.EarliestMonth = earliest
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
