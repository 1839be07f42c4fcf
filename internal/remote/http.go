package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Per-operation timeouts for the HTTP store.
const (
	GetTimeout  = 30 * time.Second
	HeadTimeout = 10 * time.Second
	PutTimeout  = 300 * time.Second
)

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPStore talks to a Nexus-style raw repository: GET and HEAD to read,
// PUT to write, HTTP basic auth.
type HTTPStore struct {
	Client      HTTPClient
	GetTimeout  time.Duration
	HeadTimeout time.Duration
	PutTimeout  time.Duration

	base     *url.URL
	user     string
	password string
	hasAuth  bool
}

// NewHTTPStore returns a store rooted at baseURL. credential is
// "user:password"; an empty credential disables authentication. A nil
// client uses http.DefaultClient.
func NewHTTPStore(baseURL, credential string, client HTTPClient) (*HTTPStore, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	s := &HTTPStore{
		Client:      client,
		GetTimeout:  GetTimeout,
		HeadTimeout: HeadTimeout,
		PutTimeout:  PutTimeout,
		base:        u,
	}
	if credential != "" {
		user, pass, ok := strings.Cut(credential, ":")
		if !ok {
			return nil, fmt.Errorf("credential must have the form user:password")
		}
		s.user, s.password, s.hasAuth = user, pass, true
	}
	return s, nil
}

// URL resolves key against the base URL.
func (s *HTTPStore) URL(key string) string {
	return s.base.ResolveReference(&url.URL{Path: cleanKey(key)}).String()
}

// Head reports whether key exists.
func (s *HTTPStore) Head(ctx context.Context, key string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, key, nil, -1, s.HeadTimeout)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, &OpError{Op: "head", Key: key, Err: &StatusError{Method: http.MethodHead, URL: s.URL(key), StatusCode: resp.StatusCode}}
	}
}

// Get downloads key. A 404 returns ErrNotFound.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.GetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.GetTimeout)
		defer cancel()
	}
	resp, err := s.do(ctx, http.MethodGet, key, nil, -1, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &OpError{Op: "get", Key: key, Err: ErrNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &OpError{Op: "get", Key: key, Err: statusError(resp, http.MethodGet, s.URL(key))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &OpError{Op: "get", Key: key, Err: fmt.Errorf("reading response: %w", err)}
	}
	return data, nil
}

// Put uploads size bytes from r to key, overwriting any existing file.
func (s *HTTPStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	resp, err := s.do(ctx, http.MethodPut, key, r, size, s.PutTimeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &OpError{Op: "put", Key: key, Err: statusError(resp, http.MethodPut, s.URL(key)), Hint: "check repository credentials and write permission"}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close is a no-op.
func (s *HTTPStore) Close() error { return nil }

// do sends one request. When timeout is positive it bounds the whole
// exchange; callers that read the body set their own deadline instead.
func (s *HTTPStore) do(ctx context.Context, method, key string, body io.Reader, size int64, timeout time.Duration) (*http.Response, error) {
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.URL(key), body)
	if err != nil {
		cancel()
		return nil, &OpError{Op: strings.ToLower(method), Key: key, Err: fmt.Errorf("creating request: %w", err)}
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if s.hasAuth {
		req.SetBasicAuth(s.user, s.password)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &OpError{Op: strings.ToLower(method), Key: key, Err: err, Hint: fmt.Sprintf("timed out after %s", timeout)}
		}
		return nil, &OpError{Op: strings.ToLower(method), Key: key, Err: err, Hint: "check network connectivity and channel URL"}
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func statusError(resp *http.Response, method, url string) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
