package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/signx/internal/shared"
)

const (
	defaultBaseURL       string = "http://localhost:5000"
	defaultProcessedPath string = "/processed/"
)

// ClientOpts configures a [Client].
type ClientOpts struct {
	BaseURL       string
	ProcessedPath string
	APIToken      string        // optional bearer token
	RateLimit     float64       // requests per second; zero disables pacing
	Timeout       time.Duration // zero means no client-side timeout
	HTTPClient    *http.Client  // base client, mostly for tests
}

// Client is the shared HTTP plumbing for the processing service.
type Client struct {
	baseURL       *url.URL
	processedPath string
	httpClient    *http.Client
	limiter       *rate.Limiter
}

// NewClient creates a client from opts, filling in defaults.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ProcessedPath == "" {
		opts.ProcessedPath = defaultProcessedPath
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if opts.APIToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIToken, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, src)
	}

	if opts.Timeout > 0 {
		withTimeout := *httpClient
		withTimeout.Timeout = opts.Timeout
		httpClient = &withTimeout
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	processed := "/" + strings.Trim(opts.ProcessedPath, "/") + "/"
	if processed == "//" {
		processed = "/"
	}

	return &Client{
		baseURL:       base,
		processedPath: processed,
		httpClient:    httpClient,
		limiter:       limiter,
	}, nil
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// resolve turns a path or absolute URL into a request URL against the base.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: invalid reference %q: %v", shared.ErrInvalidInput, ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return c.baseURL.String() + "/" + strings.TrimLeft(u.String(), "/"), nil
}

// newRequest builds a request for ref, which may be a path or absolute URL.
func (c *Client) newRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do waits for the limiter and sends req. Transport failures are wrapped in [shared.ErrTransport].
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrTransport, req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// errorBody is the failure shape shared by every endpoint.
type errorBody struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// statusError normalizes a non-2xx response. A JSON error message makes it an application failure.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var e errorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("%w: %s (status %d)", shared.ErrApplication, e.Error, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: %w", shared.ErrTransport, shared.ErrServiceUnavailable)
	}
	return fmt.Errorf("%w: unexpected status %d", shared.ErrTransport, resp.StatusCode)
}

// decode reads a JSON body into v.
func decode(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty response body", shared.ErrTransport)
		}
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrTransport, err)
	}
	return nil
}

// APIResponse is a raw reply returned by [Client.Get].
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to path and returns the reply without interpreting it.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrTransport, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
