package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"tekst-client/model"

	"github.com/google/uuid"
)

const (
	HeaderPickupKeys = "Pickup-Keys"
	HeaderRequestID  = "X-Request-ID"
)

// Client talks to the Tekst platform API. It keeps the session cookie set by
// Login in its own cookie jar.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar, if nil, is
// replaced by a fresh cookie jar.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{baseURL: u, http: &http.Client{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	c.logger = c.logger.With("component", "api")
	return c, nil
}

// BaseURL returns the API root this client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type request struct {
	method string
	path   []string
	query  url.Values
	header http.Header
	body   io.Reader
	ctype  string
}

func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u := c.baseURL.JoinPath(r.path...)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.ctype != "" {
		req.Header.Set("Content-Type", r.ctype)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, u.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := parseError(resp.StatusCode, body)
		c.logger.Debug("request failed", "method", r.method, "path", u.Path, "status", resp.StatusCode, "key", apiErr.Key)
		return nil, apiErr
	}
	return resp, nil
}

// doJSON sends r with an optional JSON body and decodes the response into
// out, unless out is nil.
func (c *Client) doJSON(ctx context.Context, r request, in, out any) error {
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		r.body = bytes.NewReader(data)
		r.ctype = "application/json"
	}

	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", strings.Join(r.path, "/"), err)
	}
	return nil
}

// UserTasks returns the current state of the tasks owned by the signed-in
// user and of the tasks named by pickupKeys.
func (c *Client) UserTasks(ctx context.Context, pickupKeys []string) ([]model.Task, error) {
	header := http.Header{}
	header.Set(HeaderPickupKeys, strings.Join(pickupKeys, ","))

	var tasks []model.Task
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   []string{"platform", "tasks", "user"},
		header: header,
	}, nil, &tasks)
	return tasks, err
}

// AllTasks lists every task on the platform. Admins only.
func (c *Client) AllTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := c.doJSON(ctx, request{method: http.MethodGet, path: []string{"platform", "tasks"}}, nil, &tasks)
	return tasks, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: []string{"platform", "tasks", id}}, nil, nil)
}

func (c *Client) DeleteAllTasks(ctx context.Context) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: []string{"platform", "tasks"}}, nil, nil)
}

// Artifact is the file produced by a finished export task.
type Artifact struct {
	Data []byte
	// Filename is the name suggested by the server, or "" if none was sent.
	Filename    string
	ContentType string
}

func (c *Client) DownloadArtifact(ctx context.Context, pickupKey string) (*Artifact, error) {
	resp, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   []string{"platform", "tasks", "download"},
		query:  url.Values{"pickupKey": {pickupKey}},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return &Artifact{
		Data:        data,
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func filenameFromDisposition(h string) string {
	if h == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(h); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if _, after, ok := strings.Cut(h, "filename="); ok {
		name, _, _ := strings.Cut(after, ";")
		return strings.Trim(strings.TrimSpace(name), `"`)
	}
	return ""
}

func (c *Client) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResults, error) {
	var results model.SearchResults
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: []string{"search"}}, req, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// ExportSearch starts an export of all results of req. The returned task
// produces the export file.
func (c *Client) ExportSearch(ctx context.Context, req model.SearchRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: []string{"search", "export"}}, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ExportResource starts an export of a resource's contents in the given
// format (json, tekst-json or csv).
func (c *Client) ExportResource(ctx context.Context, resourceID, format string) (*model.Task, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	var task model.Task
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   []string{"resources", resourceID, "export"},
		query:  q,
	}, nil, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateSearchIndex(ctx context.Context) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: []string{"search", "index", "create"}}, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// User is the subset of the account record the client keeps locally.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name,omitempty"`
	Locale     string `json:"locale,omitempty"`
	IsActive   bool   `json:"isActive"`
	IsSuper    bool   `json:"isSuperuser"`
	IsVerified bool   `json:"isVerified"`
}

// Login starts a cookie session. It returns when the session cookie
// expires, or the zero time for a cookie without a lifetime.
func (c *Client) Login(ctx context.Context, username, password string) (time.Time, error) {
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := c.send(ctx, request{
		method: http.MethodPost,
		path:   []string{"auth", "cookie", "login"},
		body:   strings.NewReader(form.Encode()),
		ctype:  "application/x-www-form-urlencoded",
	})
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	var expires time.Time
	for _, ck := range resp.Cookies() {
		switch {
		case ck.MaxAge > 0:
			expires = time.Now().Add(time.Duration(ck.MaxAge) * time.Second)
		case !ck.Expires.IsZero():
			expires = ck.Expires
		}
	}
	return expires, nil
}

// SessionCookies returns the cookies the jar would send to the API, so a
// session can be carried over to a later process.
func (c *Client) SessionCookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.baseURL)
}

func (c *Client) SetSessionCookies(cookies []*http.Cookie) {
	c.http.Jar.SetCookies(c.baseURL, cookies)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, request{method: http.MethodPost, path: []string{"auth", "cookie", "logout"}}, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: []string{"users", "me"}}, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
