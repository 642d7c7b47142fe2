package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "go-carlost-detector/internal/errors"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		expectCalls   int32
		expectError   bool
		errorContains string
	}{
		{"Success on first attempt", []int{200}, 1, false, ""},
		{"Success on second attempt after 5xx", []int{500, 200}, 2, false, ""},
		{"4xx client error - no retry", []int{404}, 1, true, "client error: status code 404"},
		{"4xx after 5xx - stop at 4xx", []int{500, 404}, 2, true, "client error: status code 404"},
		{"All 5xx errors - retry all attempts", []int{500, 502, 503}, 3, true, "server error: status code 503"},
	}

	frame := encodeTestPNG(t, 32, 24)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				status := http.StatusInternalServerError
				if n < len(tt.responses) {
					status = tt.responses[n]
				}
				if status == http.StatusOK {
					w.Header().Set("Content-Type", "image/png")
					w.Write(frame)
					return
				}
				w.WriteHeader(status)
				w.Write([]byte(fmt.Sprintf("Error %d", status)))
			}))
			defer server.Close()

			fetcher := NewHTTPImageFetcher(5 * time.Second).WithBackoff(time.Millisecond)
			img, err := fetcher.FetchImage(context.Background(), server.URL)

			if calls.Load() != tt.expectCalls {
				t.Errorf("Expected %d requests, got %d", tt.expectCalls, calls.Load())
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
				t.Errorf("Expected 32x24 image, got %v", img.Bounds())
			}
		})
	}
}

func TestHTTPImageFetcher_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer server.Close()

	_, err := NewHTTPImageFetcher(time.Second).FetchImage(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "failed to decode image") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestHTTPImageFetcher_FrameLimits(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"too small", 8, 8},
		{"too wide", 9000, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := encodeTestPNG(t, tt.width, tt.height)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(frame)
			}))
			defer server.Close()

			_, err := NewHTTPImageFetcher(time.Second).FetchImage(context.Background(), server.URL)
			if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestHTTPImageFetcher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTTPImageFetcher(time.Second).FetchBytes(ctx, server.URL)
	if err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Errorf("Expected cancellation to cut the backoff short, took %v", time.Since(start))
	}
}

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		url       string
		container string
		blob      string
		wantErr   bool
	}{
		{"https://acct.blob.core.windows.net/frames/cab/1.jpg", "frames", "cab/1.jpg", false},
		{"https://acct.blob.core.windows.net/frames?blob=cab/2.jpg", "frames", "cab/2.jpg", false},
		{"https://acct.blob.core.windows.net/frames", "", "", true},
		{"https://acct.blob.core.windows.net/", "", "", true},
	}
	for _, tt := range tests {
		container, blob, err := ParseBlobURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.url)
			}
			continue
		}
		if err != nil || container != tt.container || blob != tt.blob {
			t.Errorf("%s: expected %s/%s, got %s/%s (%v)", tt.url, tt.container, tt.blob, container, blob, err)
		}
	}

	if !IsBlobURL("https://acct.blob.core.windows.net/x/y") || IsBlobURL("https://example.com/x") {
		t.Error("IsBlobURL misclassified a URL")
	}
}

func TestLocalImageFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "frame.png"), encodeTestPNG(t, 20, 20), 0o644); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	fetcher := NewLocalImageFetcher(dir)

	img, err := fetcher.FetchImage(context.Background(), "file:///frame.png")
	if err != nil {
		t.Fatalf("Expected frame to load, got %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("Expected 20px wide image, got %v", img.Bounds())
	}

	path, err := fetcher.Resolve("file:///../../etc/passwd")
	if err != nil {
		t.Fatalf("Expected traversal to be clamped, got %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("Expected resolved path under %s, got %s", dir, path)
	}
}

func TestRouter(t *testing.T) {
	frame := encodeTestPNG(t, 16, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(frame)
	}))
	defer server.Close()

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.png"), frame, 0o644)

	router := &Router{
		HTTP:  NewHTTPImageFetcher(time.Second),
		Local: NewLocalImageFetcher(dir),
	}

	if _, err := router.FetchImage(context.Background(), server.URL+"/frame.png"); err != nil {
		t.Errorf("Expected HTTP frame to load, got %v", err)
	}
	if _, err := router.FetchImage(context.Background(), "file:///a.png"); err != nil {
		t.Errorf("Expected local frame to load, got %v", err)
	}

	if _, err := (&Router{}).FetchImage(context.Background(), "file:///a.png"); err == nil {
		t.Error("Expected local frames to be refused without a local fetcher")
	}
}
