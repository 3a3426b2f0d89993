package apiclient

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

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
)

const (
	EndpointDonation     = "/donasi"
	EndpointUploadStatus = "/upload-status"

	HeaderOfflineSync    = "X-Offline-Sync"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// TokenSource yields the API session token. An empty token means "send no Authorization header".
type TokenSource interface {
	APIToken(ctx context.Context) (string, error)
}

// Options configures the jimpitan API client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Tokens         TokenSource
}

// Client performs HTTP calls to the jimpitan backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	tokens     TokenSource
}

type uploadStatusResponse struct {
	AlreadyUploaded bool `json:"already_uploaded"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		tokens:     opts.Tokens,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadStatus asks the server whether category cat already received today's upload.
func (c *Client) UploadStatus(ctx context.Context, cat domain.Category) (bool, error) {
	endpoint := c.baseURL + EndpointUploadStatus + "?kategori=" + url.QueryEscape(cat.Label())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("apiclient: build request: %w", err)
	}
	raw, status, err := c.do(req)
	if err != nil {
		return false, err
	}
	if status >= 300 {
		return false, classify(status, raw, cat)
	}
	var decoded uploadStatusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return false, fmt.Errorf("apiclient: decode upload status: %w", err)
	}
	return decoded.AlreadyUploaded, nil
}

// SubmitDonation posts one donation record.
func (c *Client) SubmitDonation(ctx context.Context, cat domain.Category, payload domain.DonationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("apiclient: encode donation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EndpointDonation, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	raw, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status >= 300 {
		return classify(status, raw, cat)
	}
	c.logger.Debug().
		Str("category", string(cat)).
		Str("donor", payload.NamaDonatur).
		Int64("amount", payload.Nominal).
		Msg("apiclient: donation accepted")
	return nil
}

// Replay re-sends a queued write byte-for-byte to its recorded endpoint and method.
func (c *Client) Replay(ctx context.Context, item domain.PendingSyncItem) error {
	method := strings.ToUpper(strings.TrimSpace(item.Method))
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(item.Endpoint), bytes.NewReader(item.Payload))
	if err != nil {
		return fmt.Errorf("apiclient: build replay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOfflineSync, "true")
	if item.IdempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, item.IdempotencyKey)
	}
	raw, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status >= 300 {
		return classify(status, raw, categoryFromPayload(item.Payload))
	}
	return nil
}

// Ping reports whether the API host answers at all. Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context, target string) error {
	if target == "" {
		target = c.baseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("apiclient: build ping: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Err: err}
	}
	resp.Body.Close()
	return nil
}

func (c *Client) resolve(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if endpoint == "" {
		endpoint = EndpointDonation
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if c.tokens != nil {
		token, err := c.tokens.APIToken(req.Context())
		switch {
		case errors.Is(err, domain.ErrTokenExpired):
			c.logger.Debug().Msg("apiclient: stored token expired, sending request without it")
		case err != nil:
			c.logger.Warn().Err(err).Msg("apiclient: load token failed")
		case token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &domain.NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}
	return raw, resp.StatusCode, nil
}

func categoryFromPayload(raw []byte) domain.Category {
	var payload domain.DonationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	c, err := domain.ParseCategory(payload.KategoriRT)
	if err != nil {
		return ""
	}
	return c
}
