package library

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody caps how much of a failed response ends up in an APIError.
const maxErrorBody = 512

// Client talks to the library REST service. It holds no session of its own:
// callers pass the token read from their state at call time.
type Client struct {
	BaseURL string

	// OnUnauthorized runs when an authenticated catalog or mutation request
	// is answered with 401, before the error is returned to the caller.
	OnUnauthorized func()

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a client for baseURL. rps <= 0 disables throttling.
func NewClient(baseURL string, timeout time.Duration, rps float64, logger *slog.Logger) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// BooksURL is the default catalog list URL.
func (c *Client) BooksURL() string { return c.BaseURL + "/books/" }

func (c *Client) bookURL(id int64, suffix string) string {
	return fmt.Sprintf("%s/books/%d/%s", c.BaseURL, id, suffix)
}

// ------------------ Auth ------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/login/", "", credentials{username, password}, &res); err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return res.Token, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, c.BaseURL+"/register/", "", credentials{username, password}, nil)
}

// ------------------ Catalog ------------------

// ListBooks fetches pageURL exactly as given.
func (c *Client) ListBooks(ctx context.Context, pageURL, token string) (*BookPage, error) {
	var raw jsoniter.RawMessage
	if err := c.do(ctx, http.MethodGet, pageURL, token, nil, &raw); err != nil {
		return nil, err
	}
	page, err := decodeBookPage(raw)
	if err != nil {
		return nil, fmt.Errorf("decode book page: %w", err)
	}
	return page, nil
}

// decodeBookPage accepts either a bare array or a paginated envelope.
func decodeBookPage(data []byte) (*BookPage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &BookPage{Results: []Book{}}, nil
	}
	if data[0] == '[' {
		var books []Book
		if err := json.Unmarshal(data, &books); err != nil {
			return nil, err
		}
		return &BookPage{Results: books}, nil
	}

	var env struct {
		Results  []Book `json:"results"`
		Next     string `json:"next"`
		Previous string `json:"previous"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Results == nil {
		env.Results = []Book{}
	}
	return &BookPage{Results: env.Results, Next: env.Next, Previous: env.Previous}, nil
}

// CreateBook posts a new record to the catalog.
func (c *Client) CreateBook(ctx context.Context, token string, form BookForm) error {
	return c.do(ctx, http.MethodPost, c.BooksURL(), token, form, nil)
}

// UpdateBook replaces book id with form.
func (c *Client) UpdateBook(ctx context.Context, token string, id int64, form BookForm) error {
	return c.do(ctx, http.MethodPut, c.bookURL(id, ""), token, form, nil)
}

// DeleteBook removes book id.
func (c *Client) DeleteBook(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, c.bookURL(id, ""), token, nil, nil)
}

// BorrowBook posts an empty object to the borrow action of book id.
func (c *Client) BorrowBook(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodPost, c.bookURL(id, "borrow/"), token, struct{}{}, nil)
}

// ------------------ Statistics ------------------

// The statistics loaders never fire OnUnauthorized; a 401 here is returned
// like any other failure and the session stays up.

// ListBorrowed returns the caller's borrow history.
func (c *Client) ListBorrowed(ctx context.Context, token string) ([]BorrowedEntry, error) {
	var entries []BorrowedEntry
	if err := c.doQuiet(ctx, http.MethodGet, c.BaseURL+"/borrowed-books/", token, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MostBorrowed returns the service-wide borrow ranking.
func (c *Client) MostBorrowed(ctx context.Context, token string) ([]MostBorrowedEntry, error) {
	var entries []MostBorrowedEntry
	if err := c.doQuiet(ctx, http.MethodGet, c.BaseURL+"/most-borrowed/", token, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ------------------ Transport ------------------

// do sends one request. A non-empty token marks the request as
// authenticated; a 401 on such a request fires OnUnauthorized.
func (c *Client) do(ctx context.Context, method, rawURL, token string, body, out any) error {
	return c.send(ctx, method, rawURL, token, body, out, true)
}

// doQuiet is do without the 401 hook.
func (c *Client) doQuiet(ctx context.Context, method, rawURL, token string, body, out any) error {
	return c.send(ctx, method, rawURL, token, body, out, false)
}

func (c *Client) send(ctx context.Context, method, rawURL, token string, body, out any, intercept bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.Must(uuid.NewV7()).String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "url", rawURL, "request_id", reqID, "err", err)
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api request",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if intercept && resp.StatusCode == http.StatusUnauthorized && token != "" && c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
