// Package remote reads and writes files in the remote channel repository.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Store is the remote file repository a channel is published to. Keys are
// slash-separated paths relative to the channel root, e.g.
// "linux-64/repodata.json".
type Store interface {
	// Head reports whether key exists.
	Head(ctx context.Context, key string) (bool, error)

	// Get returns the content of key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes size bytes from r to key, replacing any existing content.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// URL returns the location of key for display.
	URL(key string) string

	// Close releases backend resources.
	Close() error
}

// ErrNotFound is wrapped by Get when the key does not exist.
var ErrNotFound = errors.New("not found")

// OpError describes a failed store operation.
type OpError struct {
	Op   string
	Key  string
	Err  error
	Hint string
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Open returns the Store for a channel URL. http and https URLs use the
// HTTP repository client with credential ("user:password", may be empty);
// file, s3 and gs URLs use a blob bucket and ignore credential.
func Open(ctx context.Context, rawURL, credential string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing channel URL %q: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPStore(rawURL, credential, nil)
	case "file", "s3", "gs":
		return OpenBlobStore(ctx, rawURL)
	case "":
		return nil, fmt.Errorf("channel URL %q has no scheme", rawURL)
	default:
		return nil, fmt.Errorf("unsupported channel URL scheme %q", u.Scheme)
	}
}

func cleanKey(key string) string {
	return strings.TrimLeft(key, "/")
}
