package repository

import "errors"

var (
	// ErrInvalidFrameURL indicates a frame URL that failed validation
	ErrInvalidFrameURL = errors.New("invalid frame URL")

	// ErrModelNotFound indicates the requested model asset does not exist
	ErrModelNotFound = errors.New("model not found")

	// ErrRepositoryUnavailable indicates the backing store is not configured
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
