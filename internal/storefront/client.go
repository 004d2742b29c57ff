// Package storefront is the HTTP client for the commerce backend's public
// store API.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const (
	defaultOrderTimeout   = 30 * time.Second
	defaultProductTimeout = 10 * time.Second
	defaultLookupTimeout  = 5 * time.Second
	responseBodyLimit     = 64 << 10
)

var errBaseURLRequired = errors.New("backend base url is required")

// Client calls the /store/{tenant} endpoints.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	orderTimeout   time.Duration
	productTimeout time.Duration
	lookupTimeout  time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeouts overrides the per-call deadlines. Zero values keep the defaults.
func WithTimeouts(order, product, lookup time.Duration) Option {
	return func(c *Client) {
		if order > 0 {
			c.orderTimeout = order
		}
		if product > 0 {
			c.productTimeout = product
		}
		if lookup > 0 {
			c.lookupTimeout = lookup
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		httpClient:     &http.Client{},
		baseURL:        trimmed,
		orderTimeout:   defaultOrderTimeout,
		productTimeout: defaultProductTimeout,
		lookupTimeout:  defaultLookupTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateOrder places an order for an authenticated customer.
func (c *Client) CreateOrder(ctx context.Context, tenant, token string, req OrderRequest) (*OrderResult, error) {
	var out OrderResult
	if err := c.do(ctx, c.orderTimeout, http.MethodPost, storePath(tenant, "orders"), token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGuestOrder places an order without a customer session.
func (c *Client) CreateGuestOrder(ctx context.Context, tenant string, req OrderRequest, info CustomerInfo) (*OrderResult, error) {
	body := guestOrderRequest{OrderRequest: req, CustomerInfo: info}
	var out OrderResult
	if err := c.do(ctx, c.orderTimeout, http.MethodPost, storePath(tenant, "orders", "guest"), "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct fetches the current product record, including stock.
func (c *Client) GetProduct(ctx context.Context, tenant string, productID int64) (*Product, error) {
	var out Product
	path := storePath(tenant, "products", fmt.Sprint(productID))
	if err := c.do(ctx, c.productTimeout, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCustomerProfile fetches the profile behind token. It shares the lookup
// deadline since callers fall back to the profile they already hold.
func (c *Client) GetCustomerProfile(ctx context.Context, tenant, token string) (*CustomerProfile, error) {
	var out CustomerProfile
	if err := c.do(ctx, c.lookupTimeout, http.MethodGet, storePath(tenant, "customer", "me"), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTenantInfo fetches store branding.
func (c *Client) GetTenantInfo(ctx context.Context, tenant string) (*TenantInfo, error) {
	var out TenantInfo
	if err := c.do(ctx, c.lookupTimeout, http.MethodGet, storePath(tenant, "info"), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchSuggestions fetches autocomplete entries for q.
func (c *Client) SearchSuggestions(ctx context.Context, tenant, q string) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Suggestion{}, nil
	}
	path := storePath(tenant, "search", "suggestions") + "?q=" + url.QueryEscape(q)
	var out []Suggestion
	if err := c.do(ctx, c.lookupTimeout, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out, nil
}

// do issues one request bounded by timeout. Transport failures are returned
// wrapped so callers can still match net and context errors; non-2xx
// responses become *StatusError.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path, token string, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "storefront client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal backend request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read backend response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(raw),
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend response")
	}
	return nil
}

func storePath(tenant string, parts ...string) string {
	segments := []string{"", "store", url.PathEscape(tenant)}
	segments = append(segments, parts...)
	return strings.Join(segments, "/")
}
