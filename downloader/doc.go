// Package downloader provides sources for encoded image bytes: HTTP with
// transparent response decompression, the local file system, an in-memory
// map for tests and a scheme router. Object storage sources live in the
// s3 and minio subpackages.
package downloader
