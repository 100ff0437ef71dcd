package downloader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// File reads file:// addresses and plain paths from the local file system.
type File struct {
	// Root, when set, confines relative paths to a directory.
	Root string
}

// NewFile creates a file downloader.
func NewFile(root string) *File {
	return &File{Root: root}
}

func (f *File) path(address string) (string, error) {
	p := address
	if strings.HasPrefix(address, "file://") {
		u, err := url.Parse(address)
		if err != nil {
			return "", err
		}
		p = u.Path
	}
	if f.Root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(f.Root, p)
	}
	return p, nil
}

// FetchBytes implements Downloader.
func (f *File) FetchBytes(ctx context.Context, address string) ([]byte, error) {
	return fetchBytes(ctx, f, address)
}

// FetchToStream implements Downloader.
func (f *File) FetchToStream(ctx context.Context, address string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(address)
	if err != nil {
		return err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Join(ErrNotFound, err)
		}
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = io.Copy(w, file)
	return err
}
