package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage reads frames and assets from Azure Blob Storage
type BlobStorage interface {
	GetImage(ctx context.Context, blobURL string) (image.Image, error)
	GetBlob(ctx context.Context, container, blob string) ([]byte, error)
}

type azureStorage struct {
	client *azblob.Client
}

// NewAzureStorage connects to the account with a shared key
func NewAzureStorage(accountName string, accountKey string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client}, nil
}

// ParseBlobURL splits a blob URL into container and blob name. Both
// https://acct.blob.core.windows.net/container/path/to/blob and
// .../container?blob=path/to/blob are accepted.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	path := strings.TrimPrefix(parsed.Path, "/")
	if q := parsed.Query().Get("blob"); q != "" {
		container, blob = path, q
	} else {
		container, blob, _ = strings.Cut(path, "/")
	}

	if container == "" || blob == "" {
		return "", "", fmt.Errorf("blob URL %q must name a container and a blob", blobURL)
	}
	return container, blob, nil
}

// IsBlobURL reports whether rawURL points at Azure Blob Storage
func IsBlobURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(parsed.Hostname(), ".blob.core.windows.net")
}

func (s *azureStorage) GetImage(ctx context.Context, blobURL string) (image.Image, error) {
	container, blob, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	data, err := s.GetBlob(ctx, container, blob)
	if err != nil {
		return nil, err
	}

	return decodeFrame(data)
}

func (s *azureStorage) GetBlob(ctx context.Context, container, blob string) ([]byte, error) {
	downloadResponse, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	data, err := io.ReadAll(retryReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s/%s: %w", container, blob, err)
	}
	return data, nil
}
