package minio

import (
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/imgcache/downloader"
)

// Scheme is the address scheme served by Downloader.
const Scheme = "minio"

// Downloader fetches minio://bucket/key addresses from MinIO or any other
// S3-compatible server.
type Downloader struct {
	client *minio.Client
}

// New creates a MinIO downloader.
func New(client *minio.Client) *Downloader {
	return &Downloader{client: client}
}

// FetchBytes implements downloader.Downloader.
func (d *Downloader) FetchBytes(ctx context.Context, address string) ([]byte, error) {
	obj, err := d.open(ctx, address)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

// FetchToStream implements downloader.Downloader.
func (d *Downloader) FetchToStream(ctx context.Context, address string, w io.Writer) error {
	obj, err := d.open(ctx, address)
	if err != nil {
		return err
	}
	defer func() { _ = obj.Close() }()

	if _, err := io.Copy(w, obj); err != nil {
		return mapError(err)
	}
	return nil
}

func (d *Downloader) open(ctx context.Context, address string) (*minio.Object, error) {
	bucket, key, err := downloader.SplitBucketKey(address, Scheme)
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; errors surface on the first read.
	obj, err := d.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}
	return obj, nil
}

func mapError(err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" || errResp.Code == "NoSuchBucket" {
		return errors.Join(downloader.ErrNotFound, err)
	}
	return err
}
