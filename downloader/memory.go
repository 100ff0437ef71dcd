package downloader

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrInjected is returned by Memory for scripted failures.
var ErrInjected = errors.New("downloader: injected failure")

// Memory serves addresses from a map. Failures and latency can be
// scripted per address, which makes it the downloader of choice in tests.
type Memory struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures map[string]int
	calls    map[string]int
	delay    time.Duration
	block    chan struct{}
}

// NewMemory creates an empty in-memory downloader.
func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string][]byte),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// Set stores data under address.
func (m *Memory) Set(address string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[address] = data
}

// Fail makes the next n fetches of address fail with ErrInjected. A
// negative n fails every fetch.
func (m *Memory) Fail(address string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[address] = n
}

// SetDelay delays every fetch by d, or until ctx is done.
func (m *Memory) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Block holds every fetch until Unblock is called or ctx is done.
func (m *Memory) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block == nil {
		m.block = make(chan struct{})
	}
}

// Unblock releases fetches held by Block.
func (m *Memory) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
}

// Calls returns how many fetches of address were attempted.
func (m *Memory) Calls(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[address]
}

// FetchBytes implements Downloader.
func (m *Memory) FetchBytes(ctx context.Context, address string) ([]byte, error) {
	return fetchBytes(ctx, m, address)
}

// FetchToStream implements Downloader.
func (m *Memory) FetchToStream(ctx context.Context, address string, w io.Writer) error {
	m.mu.Lock()
	m.calls[address]++
	delay, block := m.delay, m.block
	data, ok := m.objects[address]
	fail := m.failures[address]
	if fail > 0 {
		m.failures[address] = fail - 1
	}
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if fail != 0 {
		return ErrInjected
	}
	if !ok {
		return ErrNotFound
	}
	_, err := w.Write(data)
	return err
}
