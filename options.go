package imgcache

import (
	"image"
	"log/slog"
	"time"

	"github.com/hupe1980/imgcache/codec"
	"github.com/hupe1980/imgcache/internal/fs"
)

type options struct {
	memorySize    int64
	memoryPercent float64
	heapBytes     int64
	memoryLimit   int64

	diskDir   string
	diskSize  int64
	diskCodec codec.Codec
	fs        fs.FileSystem

	retries      int
	retryBackoff time.Duration

	decodeSizeCalculation bool
	maxWidth              int
	maxHeight             int
	graceDelay            time.Duration

	cacheMinWorkers     int
	cacheMaxWorkers     int
	cacheQueueSize      int
	networkWorkers      int
	ioLimit             int64
	prefetchConcurrency int

	loadingImage image.Image
	failureImage image.Image

	downloader       Downloader
	decoder          Decoder
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Loader.
type Option func(*options)

// WithMemoryCacheSize sets an absolute memory budget in bytes. Values not
// above 2 MiB are ignored.
func WithMemoryCacheSize(bytes int64) Option {
	return func(o *options) {
		o.memorySize = bytes
	}
}

// WithMemoryCachePercent sizes the memory budget as a share of heapBytes.
// percent must lie strictly between 0.05 and 0.8, otherwise 15% is used.
// An absolute size set with WithMemoryCacheSize takes precedence.
func WithMemoryCachePercent(percent float64, heapBytes int64) Option {
	return func(o *options) {
		o.memoryPercent = percent
		o.heapBytes = heapBytes
	}
}

// WithMemoryLimit caps the decoded pixel bytes held by the memory cache.
// Unlike the budget it never evicts: a resource that does not fit is
// returned and shown but not cached. 0 leaves only the budget.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = max(bytes, 0)
	}
}

// WithDiskCache enables the persistent cache in dir. Budgets not above
// 5 MiB fall back to 20 MiB. The tier stays disabled when the volume has
// less usable space than the budget.
func WithDiskCache(dir string, bytes int64) Option {
	return func(o *options) {
		o.diskDir = dir
		o.diskSize = bytes
	}
}

// WithDiskCodec configures the payload codec of persistent cache files.
//
// If nil is passed, codec.Default is used.
func WithDiskCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.diskCodec = c
	}
}

// WithFileSystem replaces the file system used by the persistent cache.
// Mostly useful for fault injection in tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithRetries sets how many times a failed network load is retried after
// the first attempt. Negative values are treated as 0.
func WithRetries(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.retries = n
	}
}

// WithRetryBackoff sets the initial interval of the exponential backoff
// between network attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		o.retryBackoff = d
	}
}

// WithDecodeSizeCalculation toggles down-sampling to the slot size.
func WithDecodeSizeCalculation(enabled bool) Option {
	return func(o *options) {
		o.decodeSizeCalculation = enabled
	}
}

// WithDefaultMaxSize sets the decode bound used when neither the slot nor
// the request carries a size.
func WithDefaultMaxSize(width, height int) Option {
	return func(o *options) {
		o.maxWidth = width
		o.maxHeight = height
	}
}

// WithGraceDelay sets how long an unreferenced resource survives before it
// is released. Zero releases immediately.
func WithGraceDelay(d time.Duration) Option {
	return func(o *options) {
		o.graceDelay = d
	}
}

// WithCachePool sizes the pool running cache lookups. Once queueSize loads
// are waiting and maxWorkers are busy, the oldest waiting load is dropped.
func WithCachePool(minWorkers, maxWorkers, queueSize int) Option {
	return func(o *options) {
		o.cacheMinWorkers = minWorkers
		o.cacheMaxWorkers = maxWorkers
		o.cacheQueueSize = queueSize
	}
}

// WithNetworkWorkers sets the number of concurrent network loads.
func WithNetworkWorkers(n int) Option {
	return func(o *options) {
		o.networkWorkers = n
	}
}

// WithIOLimit throttles persistent cache writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithPrefetchConcurrency bounds concurrent Prefetch downloads.
func WithPrefetchConcurrency(n int) Option {
	return func(o *options) {
		o.prefetchConcurrency = n
	}
}

// WithDefaultLoadingImage sets the placeholder shown while loading.
func WithDefaultLoadingImage(img image.Image) Option {
	return func(o *options) {
		o.loadingImage = img
	}
}

// WithDefaultFailureImage sets the placeholder shown after a failed load.
func WithDefaultFailureImage(img image.Image) Option {
	return func(o *options) {
		o.failureImage = img
	}
}

// WithDownloader replaces the default HTTP downloader.
func WithDownloader(d Downloader) Option {
	return func(o *options) {
		o.downloader = d
	}
}

// WithDecoder replaces the default decoder.
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		o.decoder = d
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &imgcache.BasicMetricsCollector{}
//	l, _ := imgcache.New(renderer, imgcache.WithMetricsCollector(metrics))
//	// ... use l ...
//	stats := metrics.GetStats()
//	fmt.Printf("Loads: %d, Avg latency: %dns\n", stats.LoadCount, stats.LoadAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := imgcache.NewJSONLogger(slog.LevelInfo)
//	l, _ := imgcache.New(renderer, imgcache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		diskCodec:             codec.Default,
		fs:                    fs.Default,
		retries:               DefaultRetries,
		retryBackoff:          DefaultRetryBackoff,
		decodeSizeCalculation: true,
		graceDelay:            DefaultGraceDelay,
		cacheMinWorkers:       1,
		cacheMaxWorkers:       2,
		cacheQueueSize:        10,
		networkWorkers:        4,
		prefetchConcurrency:   2,
		metricsCollector:      NoopMetricsCollector{},
		logger:                NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
