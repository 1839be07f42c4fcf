package remote

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // local directory driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
	"gocloud.dev/gcerrors"
)

// BlobStore publishes a channel into a gocloud blob bucket: a local
// directory (file://), S3 (s3://) or Google Cloud Storage (gs://). A path
// on an s3 or gs URL selects a key prefix inside the bucket.
type BlobStore struct {
	bucket *blob.Bucket
	root   string
}

// OpenBlobStore opens the bucket for rawURL.
func OpenBlobStore(ctx context.Context, rawURL string) (*BlobStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing bucket URL %q: %w", rawURL, err)
	}

	var bucketURL, prefix string
	switch u.Scheme {
	case "file":
		if err := os.MkdirAll(u.Path, 0755); err != nil {
			return nil, fmt.Errorf("creating channel directory %s: %w", u.Path, err)
		}
		bucketURL = rawURL
	case "s3", "gs":
		prefix = strings.Trim(u.Path, "/")
		b := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
		bucketURL = b.String()
	default:
		return nil, fmt.Errorf("unsupported bucket scheme %q", u.Scheme)
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix+"/")
	}

	root := strings.TrimSuffix(rawURL, "/")
	if i := strings.IndexByte(root, '?'); i >= 0 {
		root = root[:i]
	}
	return &BlobStore{bucket: bucket, root: root}, nil
}

// URL returns the bucket URL of key.
func (s *BlobStore) URL(key string) string {
	return s.root + "/" + cleanKey(key)
}

// Head reports whether key exists in the bucket.
func (s *BlobStore) Head(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, cleanKey(key))
	if err != nil {
		return false, &OpError{Op: "head", Key: key, Err: err}
	}
	return ok, nil
}

// Get reads key. A missing object returns ErrNotFound.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, cleanKey(key))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, &OpError{Op: "get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &OpError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Put writes r to key.
func (s *BlobStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	w, err := s.bucket.NewWriter(ctx, cleanKey(key), nil)
	if err != nil {
		return &OpError{Op: "put", Key: key, Err: fmt.Errorf("create writer: %w", err)}
	}
	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return &OpError{Op: "put", Key: key, Err: fmt.Errorf("write data: %w", err)}
	}
	if err := w.Close(); err != nil {
		return &OpError{Op: "put", Key: key, Err: fmt.Errorf("close writer: %w", err)}
	}
	if size >= 0 && n != size {
		return &OpError{Op: "put", Key: key, Err: fmt.Errorf("wrote %d bytes, expected %d", n, size)}
	}
	return nil
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
