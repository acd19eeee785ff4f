// Package api is a typed client for the Unfinial finance backend.
//
// Every exported call performs exactly one HTTP round trip. There is no
// retry, no backoff and no client-side timeout; cancellation is left to the
// caller's context. Failures come back as *NetworkError, *HTTPError or
// *DecodeError, each of which renders a message fit to show a user.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"unfinial/internal/core"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Client calls the finance backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for baseURL. Trailing slashes are dropped and an
// empty value selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping calls the backend root endpoint and reports whether it answered.
func (c *Client) Ping(ctx context.Context) error {
	var out map[string]any
	return c.doJSON(ctx, http.MethodGet, "/", "", nil, &out)
}

// Register creates an owner account.
func (c *Client) Register(ctx context.Context, name, email, password string) (core.User, error) {
	var out core.User
	in := core.Registration{Name: name, Email: email, Password: password, Role: core.RoleOwner}
	err := c.doJSON(ctx, http.MethodPost, "/users", "", in, &out)
	return out, err
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (core.Token, error) {
	var out core.Token
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", core.Credentials{Email: email, Password: password}, &out)
	return out, err
}

// Summary fetches revenue, expense and profit totals with the monthly trend.
func (c *Client) Summary(ctx context.Context, token string) (core.Summary, error) {
	var out core.Summary
	err := c.doJSON(ctx, http.MethodGet, "/dashboard/summary", token, nil, &out)
	return out, err
}

// HealthScore fetches the business health score and its components.
func (c *Client) HealthScore(ctx context.Context, token string) (core.HealthScore, error) {
	var out core.HealthScore
	err := c.doJSON(ctx, http.MethodGet, "/insights/health-score", token, nil, &out)
	return out, err
}

// ExpenseIntelligence fetches recurring expenses and saving recommendations.
func (c *Client) ExpenseIntelligence(ctx context.Context, token string) (core.ExpenseIntelligence, error) {
	var out core.ExpenseIntelligence
	err := c.doJSON(ctx, http.MethodGet, "/insights/expense-intelligence", token, nil, &out)
	return out, err
}

// Prediction forecasts cash flow for the given horizon with the given model.
func (c *Client) Prediction(ctx context.Context, token string, months int, model core.PredictionModel) (core.Prediction, error) {
	q := url.Values{}
	q.Set("months", strconv.Itoa(months))
	q.Set("model", string(model))

	var out core.Prediction
	err := c.doJSON(ctx, http.MethodGet, "/predictions/cash-flow?"+q.Encode(), token, nil, &out)
	return out, err
}

// ListTransactions returns a page of the caller's transactions.
func (c *Client) ListTransactions(ctx context.Context, token string, page core.Page) ([]core.Transaction, error) {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("offset", strconv.Itoa(page.Offset))
	}
	path := "/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []core.Transaction
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransaction stores a manually entered transaction for the token's user.
func (c *Client) CreateTransaction(ctx context.Context, token string, tx core.NewTransaction) (core.Transaction, error) {
	var out core.Transaction
	err := c.doJSON(ctx, http.MethodPost, "/transactions", token, tx, &out)
	return out, err
}

// UploadTransactions sends a CSV/XLSX export as the multipart field "file".
func (c *Client) UploadTransactions(ctx context.Context, token, filename string, file io.Reader) (core.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return core.UploadResult{}, fmt.Errorf("create multipart file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return core.UploadResult{}, fmt.Errorf("copy upload %q: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return core.UploadResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	var out core.UploadResult
	err = c.do(ctx, http.MethodPost, "/transactions/upload/me", token, &buf, mw.FormDataContentType(), &out)
	return out, err
}

// Chat relays a free-text question and returns the backend's answer.
func (c *Client) Chat(ctx context.Context, token, question string) (string, error) {
	var out core.ChatAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/chat/me", token, core.ChatQuestion{Question: question}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	if in == nil {
		return c.do(ctx, method, path, token, nil, "", out)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, method, path, token, bytes.NewReader(body), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "Backend request failed",
			"method", method, "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return &NetworkError{URL: target, Err: err}
	}
	defer res.Body.Close()

	c.logger.DebugContext(ctx, "Backend request completed",
		"method", method, "path", path, "status_code", res.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newHTTPError(res)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}
