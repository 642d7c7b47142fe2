package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
)

// Router picks a fetcher by URL: Azure blob hosts go to blob storage, file
// URLs to the local fetcher and everything else to HTTP. Nil backends are
// reported as unsupported.
type Router struct {
	HTTP  ImageFetcher
	Blob  BlobStorage
	Local ImageFetcher
}

// FetchImage dispatches to the matching backend
func (r *Router) FetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch {
	case parsed.Scheme == "file":
		if r.Local == nil {
			return nil, fmt.Errorf("local frames are not enabled")
		}
		return r.Local.FetchImage(ctx, rawURL)
	case IsBlobURL(rawURL) && r.Blob != nil:
		return r.Blob.GetImage(ctx, rawURL)
	case r.HTTP != nil:
		return r.HTTP.FetchImage(ctx, rawURL)
	default:
		return nil, fmt.Errorf("no fetcher for scheme %q", parsed.Scheme)
	}
}
