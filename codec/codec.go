// Package codec provides payload codecs for persistent cache files.
//
// The codec is not recorded in the cache files. Changing the codec of an
// existing cache directory makes its entries undecodable; the cache then
// drops them as corrupt on first read.
package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec wraps cache file streams.
// Implementations must be safe for concurrent use.
type Codec interface {
	// NewWriter returns a writer encoding into w. Close flushes the
	// encoder and does not close w.
	NewWriter(w io.Writer) (io.WriteCloser, error)
	// NewReader returns a reader decoding from r.
	NewReader(r io.Reader) (io.ReadCloser, error)
	Name() string
}

// Default stores payloads as-is. Image payloads are usually compressed
// already.
var Default Codec = None{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "none":
		return None{}, true
	case "lz4":
		return LZ4{}, true
	case "zstd":
		return Zstd{}, true
	default:
		return nil, false
	}
}

// Names lists the built-in codec names.
func Names() []string {
	return []string{"none", "lz4", "zstd"}
}

// None is the identity codec.
type None struct{}

func (None) Name() string { return "none" }

func (None) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (None) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// LZ4 uses the lz4 frame format.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }

func (LZ4) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (LZ4) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// Zstd uses zstd at the default speed.
type Zstd struct{}

func (Zstd) Name() string { return "zstd" }

func (Zstd) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func (Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return zstdReadCloser{dec}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
