package repository

import (
	"context"
	"image"
)

// FrameRepository defines the interface for frame data access operations
type FrameRepository interface {
	// FetchFrame retrieves a frame from a URL
	FetchFrame(ctx context.Context, frameURL string) (image.Image, error)

	// ValidateFrameURL validates if the provided URL is acceptable
	ValidateFrameURL(frameURL string) error
}

// ModelRepository provides model assets by name
type ModelRepository interface {
	LoadModel(ctx context.Context, name string) ([]byte, error)
}
