// Package minio fetches images from MinIO and other S3-compatible servers
// through minio-go. Addresses take the form minio://bucket/key.
package minio
