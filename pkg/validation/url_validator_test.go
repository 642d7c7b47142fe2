package validation

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"strings"
	"testing"

	apperrors "go-carlost-detector/internal/errors"
)

func TestValidateFrameURL(t *testing.T) {
	tests := []struct {
		name      string
		validator *URLValidator
		url       string
		wantErr   bool
	}{
		{"https", NewURLValidator(), "https://cams.example.com/cab/1.jpg", false},
		{"http with port", NewURLValidator(), "http://10.0.0.5:8080/frame.png", false},
		{"empty", NewURLValidator(), "   ", true},
		{"bad format", NewURLValidator(), "http://[::1", true},
		{"no host", NewURLValidator(), "https:///frame.jpg", true},
		{"ftp refused", NewURLValidator(), "ftp://cams.example.com/1.jpg", true},
		{"file refused by default", NewURLValidator(), "file:///frames/1.jpg", true},
		{
			"file allowed when enabled",
			NewURLValidatorWithOptions([]string{"http", "https", "file"}, nil),
			"file:///frames/1.jpg", false,
		},
		{
			"exact host",
			NewURLValidatorWithOptions([]string{"https"}, []string{"cams.example.com"}),
			"https://cams.example.com/1.jpg", false,
		},
		{
			"host not listed",
			NewURLValidatorWithOptions([]string{"https"}, []string{"cams.example.com"}),
			"https://evil.example.net/1.jpg", true,
		},
		{
			"wildcard host",
			NewURLValidatorWithOptions([]string{"https"}, []string{"*.blob.core.windows.net"}),
			"https://acct.blob.core.windows.net/frames/1.jpg", false,
		},
		{
			"wildcard host with port",
			NewURLValidatorWithOptions([]string{"https"}, []string{"*.blob.core.windows.net"}),
			"https://acct.blob.core.windows.net:443/frames/1.jpg", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.ValidateFrameURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.url)
				}
				if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected %q to be valid, got %v", tt.url, err)
			}
		})
	}
}

func TestValidateRotation(t *testing.T) {
	for _, deg := range []int{0, 90, 180, 270, -90, 360} {
		if err := ValidateRotation(deg); err != nil {
			t.Errorf("Expected %d to be valid, got %v", deg, err)
		}
	}
	for _, deg := range []int{45, 1, -30} {
		if err := ValidateRotation(deg); err == nil {
			t.Errorf("Expected %d to be rejected", deg)
		}
	}
}

func TestFrameLimits(t *testing.T) {
	limits := DefaultFrameLimits()

	if err := limits.ValidateFrame(image.NewRGBA(image.Rect(0, 0, 640, 480))); err != nil {
		t.Errorf("Expected 640x480 frame to be valid, got %v", err)
	}
	if err := limits.ValidateFrame(image.NewRGBA(image.Rect(0, 0, 8, 480))); err == nil {
		t.Error("Expected narrow frame to be rejected")
	}
	if err := limits.ValidateFrame(nil); err == nil {
		t.Error("Expected nil frame to be rejected")
	}

	if err := limits.ValidateView(1080, 1920); err != nil {
		t.Errorf("Expected 1080x1920 view to be valid, got %v", err)
	}
	if err := limits.ValidateView(0, 1920); err == nil {
		t.Error("Expected unmeasured view to be rejected")
	}
	if err := limits.ValidateView(10000, 10); err == nil {
		t.Error("Expected oversized view to be rejected")
	}
}

func encodeGrayPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeFrame(t *testing.T) {
	limits := DefaultFrameLimits()

	img, err := limits.DecodeFrame(bytes.NewReader(encodeGrayPNG(t, 64, 48)))
	if err != nil {
		t.Fatalf("Expected frame to decode, got %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("Expected 64x48 frame, got %v", img.Bounds())
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"oversized", encodeGrayPNG(t, 9000, 20)},
		{"undersized", encodeGrayPNG(t, 10, 10)},
		{"not an image", []byte("not an image")},
	}
	for _, tt := range tests {
		_, err := limits.DecodeFrame(bytes.NewReader(tt.data))
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}

	// a header declaring a huge frame is refused before any pixel data is read
	header := encodeGrayPNG(t, 16, 16)[:33]
	binary.BigEndian.PutUint32(header[16:20], 12000)
	binary.BigEndian.PutUint32(header[20:24], 12000)
	binary.BigEndian.PutUint32(header[29:33], crc32.ChecksumIEEE(header[12:29]))
	_, err = limits.DecodeFrame(bytes.NewReader(header))
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Expected size error from the header alone, got %v", err)
	}
}
