package s3

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/imgcache/downloader"
)

// Scheme is the address scheme served by Downloader.
const Scheme = "s3"

// Client is the subset of the S3 API used by Downloader.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithConcurrency enables parallel ranged downloads through the transfer
// manager for FetchBytes.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		d.concurrency = n
	}
}

// Downloader fetches s3://bucket/key addresses.
type Downloader struct {
	client      Client
	concurrency int
}

// New creates an S3 downloader.
func New(client Client, optFns ...Option) *Downloader {
	d := &Downloader{client: client}
	for _, fn := range optFns {
		if fn != nil {
			fn(d)
		}
	}
	return d
}

// FetchBytes implements downloader.Downloader.
func (d *Downloader) FetchBytes(ctx context.Context, address string) ([]byte, error) {
	bucket, key, err := downloader.SplitBucketKey(address, Scheme)
	if err != nil {
		return nil, err
	}

	if d.concurrency <= 1 {
		resp, err := d.get(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		return io.ReadAll(resp.Body)
	}

	buf := manager.NewWriteAtBuffer(nil)
	dl := manager.NewDownloader(d.client, func(md *manager.Downloader) {
		md.Concurrency = d.concurrency
	})
	if _, err := dl.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, mapError(err)
	}
	return buf.Bytes(), nil
}

// FetchToStream implements downloader.Downloader.
func (d *Downloader) FetchToStream(ctx context.Context, address string, w io.Writer) error {
	bucket, key, err := downloader.SplitBucketKey(address, Scheme)
	if err != nil {
		return err
	}
	resp, err := d.get(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (d *Downloader) get(ctx context.Context, bucket, key string) (*s3.GetObjectOutput, error) {
	resp, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func mapError(err error) error {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return errors.Join(downloader.ErrNotFound, err)
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return errors.Join(downloader.ErrNotFound, err)
	}
	return err
}
