package repository

import (
	"context"
	"fmt"
	"image"

	"go-carlost-detector/internal/storage"
	"go-carlost-detector/pkg/validation"
)

// URLFrameRepository implements FrameRepository on top of a fetcher
type URLFrameRepository struct {
	fetcher   storage.ImageFetcher
	validator *validation.URLValidator
}

// NewURLFrameRepository creates a frame repository. A nil validator accepts
// http and https URLs on any host.
func NewURLFrameRepository(fetcher storage.ImageFetcher, validator *validation.URLValidator) *URLFrameRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &URLFrameRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchFrame validates frameURL and downloads the frame
func (r *URLFrameRepository) FetchFrame(ctx context.Context, frameURL string) (image.Image, error) {
	if err := r.ValidateFrameURL(frameURL); err != nil {
		return nil, err
	}
	return r.fetcher.FetchImage(ctx, frameURL)
}

// ValidateFrameURL validates if the provided URL is acceptable
func (r *URLFrameRepository) ValidateFrameURL(frameURL string) error {
	if err := r.validator.ValidateFrameURL(frameURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFrameURL, err)
	}
	return nil
}
