package imgcache

import (
	"context"
	"image"
	"io"

	"github.com/hupe1980/imgcache/renderable"
)

// SlotID identifies a display slot. IDs are stable for the lifetime of a
// slot and reused when the host recycles it.
type SlotID uint64

// Slot is a display target owned by the host. The loader keeps only the
// slot's identity as a key; the slot itself must report when it has been
// torn down.
type Slot interface {
	ID() SlotID
	// Alive reports false once the slot was torn down.
	Alive() bool
	// Size is the decode size hint. Non-positive values mean unknown.
	Size() (width, height int)
}

// Renderer receives load results. Callbacks run on the loader's
// dispatcher goroutine, one at a time.
type Renderer interface {
	OnLoadSuccess(slot Slot, r *renderable.Resource, cfg DisplayConfig)
	OnLoadFailure(slot Slot, placeholder image.Image)
}

// LoadStarter is implemented by renderers that show a placeholder while a
// load is in flight.
type LoadStarter interface {
	OnLoadStart(slot Slot, placeholder image.Image)
}

// Downloader fetches the encoded bytes of an address.
type Downloader interface {
	FetchBytes(ctx context.Context, address string) ([]byte, error)
	FetchToStream(ctx context.Context, address string, w io.Writer) error
}

// Decoder turns encoded bytes into an image. A width or height of 0 means
// no down-sampling.
type Decoder interface {
	Decode(data []byte, width, height int) (image.Image, error)
}

// DisplayConfig is the per-request configuration forwarded to the renderer.
type DisplayConfig struct {
	MaxWidth     int
	MaxHeight    int
	LoadingImage image.Image
	FailureImage image.Image
	// Animation is an opaque hint for the renderer.
	Animation string
}

type displayOptions struct {
	cfg       DisplayConfig
	onSuccess func(address string, r *renderable.Resource)
	onFailure func(address string, err error)
}

// DisplayOption configures a single Display call.
type DisplayOption func(*displayOptions)

// WithMaxSize bounds the decode size when the slot has no size hint.
func WithMaxSize(width, height int) DisplayOption {
	return func(o *displayOptions) {
		o.cfg.MaxWidth = width
		o.cfg.MaxHeight = height
	}
}

// WithLoadingImage overrides the loading placeholder for one request.
func WithLoadingImage(img image.Image) DisplayOption {
	return func(o *displayOptions) {
		o.cfg.LoadingImage = img
	}
}

// WithFailureImage overrides the failure placeholder for one request.
func WithFailureImage(img image.Image) DisplayOption {
	return func(o *displayOptions) {
		o.cfg.FailureImage = img
	}
}

// WithAnimation forwards an animation hint to the renderer.
func WithAnimation(name string) DisplayOption {
	return func(o *displayOptions) {
		o.cfg.Animation = name
	}
}

// WithOnSuccess registers a callback run after the renderer bound the
// resource.
func WithOnSuccess(fn func(address string, r *renderable.Resource)) DisplayOption {
	return func(o *displayOptions) {
		o.onSuccess = fn
	}
}

// WithOnFailure registers a callback run after the failure placeholder was
// shown.
func WithOnFailure(fn func(address string, err error)) DisplayOption {
	return func(o *displayOptions) {
		o.onFailure = fn
	}
}
