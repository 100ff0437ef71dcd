package downloader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// Mux routes addresses to downloaders by URL scheme. Addresses without a
// scheme use the "" entry.
type Mux struct {
	mu       sync.RWMutex
	backends map[string]Downloader
}

// NewMux creates a mux serving http and https through an HTTP downloader
// and plain paths and file:// through a File downloader.
func NewMux(optFns ...HTTPOption) *Mux {
	m := &Mux{backends: make(map[string]Downloader)}
	h := NewHTTP(optFns...)
	f := NewFile("")
	m.Handle("http", h)
	m.Handle("https", h)
	m.Handle("file", f)
	m.Handle("", f)
	return m
}

// Handle registers d for scheme.
func (m *Mux) Handle(scheme string, d Downloader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[scheme] = d
}

func (m *Mux) route(address string) (Downloader, error) {
	scheme := ""
	if u, err := url.Parse(address); err == nil {
		scheme = u.Scheme
	}
	m.mu.RLock()
	d, ok := m.backends[scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return d, nil
}

// FetchBytes implements Downloader.
func (m *Mux) FetchBytes(ctx context.Context, address string) ([]byte, error) {
	d, err := m.route(address)
	if err != nil {
		return nil, err
	}
	return d.FetchBytes(ctx, address)
}

// FetchToStream implements Downloader.
func (m *Mux) FetchToStream(ctx context.Context, address string, w io.Writer) error {
	d, err := m.route(address)
	if err != nil {
		return err
	}
	return d.FetchToStream(ctx, address, w)
}
