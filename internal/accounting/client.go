package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smilemakc/mbflow/internal/infrastructure/cache"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	"github.com/smilemakc/mbflow/pkg/models"
)

// catalogRefreshInterval is the default timer period for reloading the
// customer and item catalogs, per spec §4.3 ("refreshed on a timer,
// default 1h").
const catalogRefreshInterval = time.Hour

// DraftRequest is the payload sent to the accounting system's draft-order
// endpoint, built from an approved canonical order.
type DraftRequest struct {
	Fingerprint string            `json:"fingerprint"`
	CustomerID  string            `json:"customerId"`
	LineItems   []DraftLineItem   `json:"lineItems"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// DraftLineItem is one resolved order line sent to the accounting system.
type DraftLineItem struct {
	ItemID   string  `json:"itemId"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
}

// DraftResponse is the accounting system's response to a successful draft
// creation call.
type DraftResponse struct {
	OrderID string `json:"orderId"`
	OrderNo string `json:"orderNo"`
}

// Client is the accounting system's HTTP client: OAuth-authenticated,
// retrying, and backed by catalog caches for customer/item lookups
// (spec §4.3).
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenProvider
	retry      *RetryPolicy
	log        *logger.Logger

	Customers *CatalogCache
	Items     *CatalogCache
}

// NewClient wires an accounting Client from its dependencies. redisCache
// may be nil in single-process deployments; the in-process snapshot still
// gives callers the atomic-read guarantee.
func NewClient(baseURL string, tokens *TokenProvider, redisCache *cache.RedisCache, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		retry:      DefaultRetryPolicy(),
		log:        log,
		Customers:  NewCatalogCache(models.CatalogKindCustomer, redisCache, catalogRefreshInterval),
		Items:      NewCatalogCache(models.CatalogKindItem, redisCache, catalogRefreshInterval),
	}
}

// RefreshCatalogs reloads both catalogs from the accounting system. Callers
// schedule this on a timer (catalogRefreshInterval) and also call it once
// at startup before serving traffic.
func (c *Client) RefreshCatalogs(ctx context.Context) error {
	customers, err := c.listCustomers(ctx)
	if err != nil {
		return fmt.Errorf("refresh customer catalog: %w", err)
	}
	if err := c.Customers.Refresh(ctx, customers); err != nil {
		return fmt.Errorf("store customer catalog snapshot: %w", err)
	}

	items, err := c.listItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh item catalog: %w", err)
	}
	if err := c.Items.Refresh(ctx, items); err != nil {
		return fmt.Errorf("store item catalog snapshot: %w", err)
	}

	c.log.Info("accounting catalogs refreshed", "customers", len(customers), "items", len(items))
	return nil
}

func (c *Client) listCustomers(ctx context.Context) ([]models.CatalogEntry, error) {
	var out []models.CatalogEntry
	err := c.do(ctx, http.MethodGet, "/customers", nil, &out)
	return out, err
}

func (c *Client) listItems(ctx context.Context) ([]models.CatalogEntry, error) {
	var out []models.CatalogEntry
	err := c.do(ctx, http.MethodGet, "/items", nil, &out)
	return out, err
}

// CreateDraft posts a draft order and decodes the accounting system's
// response. Idempotency (fingerprint dedup, retry-queue fallback) is
// handled by the caller in draft.go; this method is the bare API call.
func (c *Client) CreateDraft(ctx context.Context, req DraftRequest) (*DraftResponse, error) {
	var resp DraftResponse
	if err := c.do(ctx, http.MethodPost, "/orders/draft", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes a single HTTP round trip against the accounting API under
// the client's retry policy, attaching a fresh OAuth bearer token on each
// attempt (tokens can expire between retries).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal accounting request: %w", err)
		}
		bodyBytes = b
	}

	return c.retry.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("build accounting request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("acquire accounting oauth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &apiError{Transient: true, Err: fmt.Errorf("accounting request failed: %w", err)}
		}
		defer resp.Body.Close()

		if apiErr := classifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After")); apiErr != nil {
			return apiErr
		}

		if out == nil {
			return nil
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read accounting response: %w", err)
		}
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode accounting response: %w", err)
		}
		return nil
	})
}
