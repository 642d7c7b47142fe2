package validation

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	apperrors "go-carlost-detector/internal/errors"
)

// FrameLimits bounds the frames and views the service accepts
type FrameLimits struct {
	MinDimension  int
	MaxDimension  int
	MaxViewWidth  int
	MaxViewHeight int
}

// DefaultFrameLimits returns limits suited to cabin camera frames
func DefaultFrameLimits() FrameLimits {
	return FrameLimits{
		MinDimension:  16,
		MaxDimension:  8192,
		MaxViewWidth:  4096,
		MaxViewHeight: 4096,
	}
}

// ValidateRotation requires a whole number of quarter turns
func ValidateRotation(degrees int) error {
	if degrees%90 != 0 {
		return apperrors.NewValidationError(
			fmt.Sprintf("rotation must be a multiple of 90 degrees, got %d", degrees), nil)
	}
	return nil
}

// ValidateFrame checks the frame size against the limits
func (l FrameLimits) ValidateFrame(img image.Image) error {
	if img == nil {
		return apperrors.NewValidationError("frame is missing", nil)
	}
	b := img.Bounds()
	return l.ValidateDimensions(b.Dx(), b.Dy())
}

// ValidateDimensions checks a frame size against the limits
func (l FrameLimits) ValidateDimensions(width, height int) error {
	if width < l.MinDimension || height < l.MinDimension {
		return apperrors.NewValidationError(
			fmt.Sprintf("frame %dx%d is smaller than %dpx", width, height, l.MinDimension), nil)
	}
	if width > l.MaxDimension || height > l.MaxDimension {
		return apperrors.NewValidationError(
			fmt.Sprintf("frame %dx%d exceeds %dpx", width, height, l.MaxDimension), nil)
	}
	return nil
}

// DecodeFrame reads the image header first and only decodes the pixels when
// the declared size is within the limits
func (l FrameLimits) DecodeFrame(r io.ReadSeeker) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, apperrors.NewValidationError("frame is not a supported image", err)
	}
	if err := l.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, apperrors.NewInternalError("failed to rewind frame", err)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, apperrors.NewValidationError("frame is not a supported image", err)
	}
	return img, nil
}

// ValidateView rejects views that have not been laid out or are too large
// to render
func (l FrameLimits) ValidateView(width, height int) error {
	if width <= 0 || height <= 0 {
		return apperrors.NewValidationError(
			fmt.Sprintf("view size must be positive, got %dx%d", width, height), nil)
	}
	if width > l.MaxViewWidth || height > l.MaxViewHeight {
		return apperrors.NewValidationError(
			fmt.Sprintf("view %dx%d exceeds %dx%d", width, height, l.MaxViewWidth, l.MaxViewHeight), nil)
	}
	return nil
}
