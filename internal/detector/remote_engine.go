package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// RemoteLoader builds engines that forward frames to an HTTP inference
// service. The service accepts a multipart "file" field holding a JPEG and
// answers with {"detections": [...]}.
type RemoteLoader struct {
	URL    string
	Client *http.Client
}

// NewRemoteLoader creates a loader for the inference service at url
func NewRemoteLoader(url string, timeout time.Duration) *RemoteLoader {
	return &RemoteLoader{
		URL:    strings.TrimRight(url, "/"),
		Client: &http.Client{Timeout: timeout},
	}
}

type remoteEngine struct {
	url    string
	client *http.Client
}

type remoteResponse struct {
	Detections []Detection `json:"detections"`
}

// Load verifies the inference service is healthy
func (l *RemoteLoader) Load(ctx context.Context, opts Options) (Engine, error) {
	if l.URL == "" {
		return nil, fmt.Errorf("inference url is not configured")
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return &remoteEngine{url: l.URL, client: client}, nil
}

// Detect posts img to the inference service
func (e *remoteEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Detections, nil
}

func (e *remoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
