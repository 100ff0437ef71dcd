package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hupe1980/imgcache"
	"github.com/hupe1980/imgcache/codec"
	"github.com/hupe1980/imgcache/downloader"
	miniodl "github.com/hupe1980/imgcache/downloader/minio"
	s3dl "github.com/hupe1980/imgcache/downloader/s3"
	"github.com/hupe1980/imgcache/prommetrics"
)

type config struct {
	dir         string
	size        string
	memoryLimit string
	codec       string
	retries     int
	concurrency int

	logLevel  string
	logFormat string

	userAgent string
	rateLimit float64

	s3Region      string
	s3Endpoint    string
	s3PathStyle   bool
	s3Concurrency int

	minioEndpoint  string
	minioAccessKey string
	minioSecretKey string
	minioSecure    bool

	metricsAddr string
}

func (c *config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.dir, "dir", "d", "", "cache directory (default: user cache dir)")
	fs.StringVar(&c.size, "size", "64MiB", "persistent cache budget")
	fs.StringVar(&c.memoryLimit, "memory-limit", "0", "cap on decoded pixels held in memory (0 = budget only)")
	fs.StringVar(&c.codec, "codec", codec.Default.Name(), "payload codec ("+strings.Join(codec.Names(), ", ")+")")
	fs.IntVar(&c.retries, "retries", imgcache.DefaultRetries, "network retries after the first attempt")
	fs.IntVarP(&c.concurrency, "concurrency", "c", 4, "concurrent downloads")

	fs.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format (text, json, logfmt)")

	fs.StringVar(&c.userAgent, "user-agent", downloader.DefaultUserAgent, "HTTP user agent")
	fs.Float64Var(&c.rateLimit, "rate-limit", 0, "HTTP requests per second (0 = unlimited)")

	fs.StringVar(&c.s3Region, "s3-region", "", "AWS region for s3:// addresses")
	fs.StringVar(&c.s3Endpoint, "s3-endpoint", "", "custom S3 endpoint URL")
	fs.BoolVar(&c.s3PathStyle, "s3-path-style", false, "use path-style S3 addressing")
	fs.IntVar(&c.s3Concurrency, "s3-concurrency", 1, "parallel ranged GETs per S3 object")

	fs.StringVar(&c.minioEndpoint, "minio-endpoint", "", "MinIO endpoint for minio:// addresses (host:port)")
	fs.StringVar(&c.minioAccessKey, "minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "MinIO access key")
	fs.StringVar(&c.minioSecretKey, "minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "MinIO secret key")
	fs.BoolVar(&c.minioSecure, "minio-secure", false, "use TLS for MinIO")

	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// app is the state shared by all subcommands.
type app struct {
	cfg    config
	logger *imgcache.Logger
	loader *imgcache.Loader
	reg    *prometheus.Registry
	server *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "imgcache",
		Short:         "Fill and inspect a persistent image cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(a.cfg.logLevel, a.cfg.logFormat)
			if err != nil {
				return err
			}
			a.logger = logger
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	a.cfg.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newFetchCmd(a),
		newPrefetchCmd(a),
		newStatsCmd(a),
		newClearCmd(a),
		newRemoveCmd(a),
	)
	return root
}

// newLogger builds a loader logger backed by a charm log handler.
func newLogger(level, format string) (*imgcache.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var formatter log.Formatter
	switch format {
	case "text", "":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	h := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "imgcache",
	})
	log.SetDefault(h)
	return imgcache.NewLogger(h), nil
}

func (a *app) open(ctx context.Context) error {
	dir, err := cacheDir(a.cfg.dir)
	if err != nil {
		return err
	}
	size, err := humanize.ParseBytes(a.cfg.size)
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}
	memoryLimit, err := humanize.ParseBytes(a.cfg.memoryLimit)
	if err != nil {
		return fmt.Errorf("invalid --memory-limit: %w", err)
	}
	c, ok := codec.ByName(a.cfg.codec)
	if !ok {
		return fmt.Errorf("unknown codec %q, want one of %s", a.cfg.codec, strings.Join(codec.Names(), ", "))
	}

	mux, err := a.downloaders(ctx)
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	collector, err := prommetrics.New(a.reg, "")
	if err != nil {
		return err
	}

	a.loader, err = imgcache.New(nil,
		imgcache.WithDiskCache(dir, int64(size)),
		imgcache.WithDiskCodec(c),
		imgcache.WithMemoryLimit(int64(memoryLimit)),
		imgcache.WithDownloader(mux),
		imgcache.WithRetries(a.cfg.retries),
		imgcache.WithNetworkWorkers(a.cfg.concurrency),
		imgcache.WithPrefetchConcurrency(a.cfg.concurrency),
		imgcache.WithMetricsCollector(collector),
		imgcache.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	if err := a.loader.Initialize(); err != nil {
		return err
	}

	if a.cfg.metricsAddr != "" {
		a.serveMetrics()
	}
	return nil
}

// downloaders routes http(s), file, s3 and, when configured, minio
// addresses.
func (a *app) downloaders(ctx context.Context) (*downloader.Mux, error) {
	httpOpts := []downloader.HTTPOption{downloader.WithUserAgent(a.cfg.userAgent)}
	if a.cfg.rateLimit > 0 {
		httpOpts = append(httpOpts, downloader.WithRateLimit(a.cfg.rateLimit, max(1, int(a.cfg.rateLimit))))
	}
	mux := downloader.NewMux(httpOpts...)

	var loadOpts []func(*awsconfig.LoadOptions) error
	if a.cfg.s3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(a.cfg.s3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		a.logger.Warn("s3 addresses disabled", "error", err)
	} else {
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if a.cfg.s3Endpoint != "" {
				o.BaseEndpoint = aws.String(a.cfg.s3Endpoint)
			}
			o.UsePathStyle = a.cfg.s3PathStyle
		})
		mux.Handle(s3dl.Scheme, s3dl.New(client, s3dl.WithConcurrency(a.cfg.s3Concurrency)))
	}

	if a.cfg.minioEndpoint != "" {
		client, err := minio.New(a.cfg.minioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(a.cfg.minioAccessKey, a.cfg.minioSecretKey, ""),
			Secure: a.cfg.minioSecure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		mux.Handle(miniodl.Scheme, miniodl.New(client))
	}
	return mux, nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              a.cfg.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", a.cfg.metricsAddr)
}

func (a *app) close() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.loader != nil {
		errs = append(errs, a.loader.Close())
	}
	return errors.Join(errs...)
}

func cacheDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("no --dir given and no user cache dir: %w", err)
	}
	return filepath.Join(base, "imgcache"), nil
}
