package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrNotFound is returned when the source has no object at the address.
	ErrNotFound = errors.New("downloader: not found")
	// ErrUnsupportedScheme is returned by Mux for addresses without a
	// registered downloader.
	ErrUnsupportedScheme = errors.New("downloader: unsupported scheme")
)

// StatusError is returned by HTTP for any status other than 200.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downloader: GET %s: status %d", e.URL, e.StatusCode)
}

// Is maps 404 and 410 to ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && (e.StatusCode == 404 || e.StatusCode == 410)
}

// Downloader fetches the bytes stored at an address.
type Downloader interface {
	FetchBytes(ctx context.Context, address string) ([]byte, error)
	FetchToStream(ctx context.Context, address string, w io.Writer) error
}

type streamer interface {
	FetchToStream(ctx context.Context, address string, w io.Writer) error
}

// fetchBytes buffers a stream fetch.
func fetchBytes(ctx context.Context, s streamer, address string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.FetchToStream(ctx, address, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SplitBucketKey parses "scheme://bucket/key" addresses used by the object
// storage downloaders.
func SplitBucketKey(address, scheme string) (bucket, key string, err error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != scheme {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("downloader: address %q needs a bucket and a key", address)
	}
	return u.Host, key, nil
}
