package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalImageFetcher reads frames from a directory. URLs use the file scheme
// and are resolved relative to the root; paths escaping the root are refused.
type LocalImageFetcher struct {
	root string
}

// NewLocalImageFetcher creates a fetcher confined to root
func NewLocalImageFetcher(root string) *LocalImageFetcher {
	return &LocalImageFetcher{root: root}
}

// Resolve maps a file URL or bare path to a path under the root
func (l *LocalImageFetcher) Resolve(rawURL string) (string, error) {
	p := rawURL
	if strings.HasPrefix(rawURL, "file:") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid file URL: %w", err)
		}
		p = parsed.Host + parsed.Path
	}

	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.Clean("/"+p))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rawURL, l.root)
	}
	return full, nil
}

// FetchImage reads and decodes the file behind rawURL
func (l *LocalImageFetcher) FetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	path, err := l.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := frameLimits.DecodeFrame(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
