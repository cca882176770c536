package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"tagsync/pkg/auth"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/logger"
	"tagsync/pkg/ratelimit"
)

// DefaultUserAgent is sent when the stored session carries none
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// StatusError is an unexpected HTTP status
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Limiter paces every request. Nil means unlimited.
	Limiter ratelimit.Limiter
	Logger  logger.Logger
}

// Client performs paced, cookie-authenticated requests against the web API.
// It never retries: a failed request surfaces to the caller.
type Client struct {
	http    *resty.Client
	baseURL *url.URL
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// NewClient creates a new Instagram web client
func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	if base == "" {
		base = BaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return nil, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid base URL %q", opts.BaseURL), err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept-Language": "en-US,en;q=0.9",
		"X-IG-App-ID":     "936619743392459",
	})

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		http:    client,
		baseURL: baseURL,
		limiter: limiter,
		logger:  log.WithField("component", "instagram"),
	}, nil
}

// BaseURL returns the origin requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetSession installs the session cookies and CSRF header
func (c *Client) SetSession(state *auth.SessionState) {
	c.http.GetClient().Jar.SetCookies(c.baseURL, state.Cookies())
	c.http.SetHeader("X-CSRFToken", state.CSRFToken)
	if state.UserAgent != "" {
		c.http.SetHeader("User-Agent", state.UserAgent)
	}
}

// HasSession reports whether the session cookie is still held
func (c *Client) HasSession() bool {
	for _, ck := range c.http.GetClient().Jar.Cookies(c.baseURL) {
		if ck.Name == auth.SessionCookie && ck.Value != "" {
			return true
		}
	}
	return false
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"path": path,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, "GET "+path, err)
	}
	logger.LogRequest(c.logger, http.MethodGet, resp.Request.URL, resp.StatusCode(), time.Since(start))

	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// checkResponse maps login redirects and error statuses to typed errors
func (c *Client) checkResponse(resp *resty.Response) error {
	if raw := resp.RawResponse; raw != nil && raw.Request != nil &&
		strings.HasPrefix(raw.Request.URL.Path, LoginPath) {
		c.logger.Warn("Redirected to login, session expired")
		return errs.ErrSessionExpired
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.ErrSessionExpired
	case code == http.StatusTooManyRequests || code >= 500:
		return errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("server returned status %d", code), nil)
	case code >= 400:
		return &StatusError{Code: code, URL: resp.Request.URL}
	}
	return nil
}

// apiEnvelope carries the failure markers the API returns with status 200
type apiEnvelope struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	RequiresToLogin bool   `json:"requires_to_login"`
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	resp, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}

	body := resp.Body()
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.WithError(err).ErrorWithFields("Failed to parse JSON response", map[string]interface{}{
			"path":         path,
			"body_preview": preview,
		})
		return errs.New(errs.ErrorTypeNetwork, "malformed response from "+path, err)
	}
	if env.RequiresToLogin || env.Message == "login_required" || env.Message == "checkpoint_required" {
		return errs.ErrSessionExpired
	}
	if env.Status == "fail" {
		return errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("%s failed: %s", path, env.Message), nil)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errs.New(errs.ErrorTypeNetwork, "malformed response from "+path, err)
	}
	return nil
}

func (c *Client) getDocument(ctx context.Context, path string) (*goquery.Document, error) {
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Find(`form#loginForm, input[name="password"]`).Length() > 0 {
		return nil, errs.ErrSessionExpired
	}
	return doc, nil
}
