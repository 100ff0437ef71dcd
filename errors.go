package imgcache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Loader.
	ErrClosed = errors.New("loader is closed")

	// ErrStale marks a task whose slot was detached or rebound. It is never
	// delivered to a renderer.
	ErrStale = errors.New("stale task")

	// ErrEmptyAddress is returned for an empty source address.
	ErrEmptyAddress = errors.New("empty address")

	// ErrDiskCacheDisabled is returned by Prefetch when no persistent cache
	// is configured or the volume is too small.
	ErrDiskCacheDisabled = errors.New("persistent cache disabled")

	// ErrNetworkFailure is the sentinel wrapped by FetchError.
	ErrNetworkFailure = errors.New("network failure")

	// ErrDecodeFailure is the sentinel wrapped by DecodeError.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrCacheIO is the sentinel wrapped by CacheIOError.
	ErrCacheIO = errors.New("cache io failure")
)

// FetchError is returned when every fetch attempt for an address failed.
//
// The last attempt's error is reachable with errors.Is and errors.As.
type FetchError struct {
	Address  string
	Attempts int
	cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q failed after %d attempt(s): %v", e.Address, e.Attempts, e.cause)
}

func (e *FetchError) Unwrap() []error { return []error{ErrNetworkFailure, e.cause} }

// DecodeError indicates bytes that could not be decoded into an image.
//
// The underlying error is reachable with errors.Is and errors.As.
type DecodeError struct {
	Address string
	cause   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Address, e.cause)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecodeFailure, e.cause} }

// CacheIOError describes a persistent cache read or write failure. Loads
// never fail because of it; it is logged and counted.
type CacheIOError struct {
	Op    string
	Key   string
	cause error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.cause)
}

func (e *CacheIOError) Unwrap() []error { return []error{ErrCacheIO, e.cause} }
