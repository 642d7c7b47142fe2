package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-carlost-detector/internal/logger"
	"go-carlost-detector/internal/storage"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

// FileModelRepository serves model assets bundled in a directory
type FileModelRepository struct {
	dir string
}

// NewFileModelRepository creates a repository rooted at dir
func NewFileModelRepository(dir string) *FileModelRepository {
	return &FileModelRepository{dir: dir}
}

// LoadModel reads dir/name. Names containing path separators are refused.
func (r *FileModelRepository) LoadModel(ctx context.Context, name string) ([]byte, error) {
	if err := validateModelName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	logger.WithFields(logrus.Fields{
		"model": name,
		"bytes": len(data),
	}).Debug("Loaded model from disk")
	return data, nil
}

// BlobModelRepository serves model assets from an Azure blob container
type BlobModelRepository struct {
	blobs     storage.BlobStorage
	container string
}

// NewBlobModelRepository creates a repository reading from container
func NewBlobModelRepository(blobs storage.BlobStorage, container string) *BlobModelRepository {
	return &BlobModelRepository{blobs: blobs, container: container}
}

// LoadModel downloads the named blob
func (r *BlobModelRepository) LoadModel(ctx context.Context, name string) ([]byte, error) {
	if r.blobs == nil {
		return nil, ErrRepositoryUnavailable
	}
	if err := validateModelName(name); err != nil {
		return nil, err
	}

	data, err := r.blobs.GetBlob(ctx, r.container, name)
	if err != nil {
		var respErr *azcore.ResponseError
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) ||
			(errors.As(err, &respErr) && respErr.StatusCode == 404) {
			return nil, fmt.Errorf("%w: %s/%s", ErrModelNotFound, r.container, name)
		}
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"model":     name,
		"container": r.container,
		"bytes":     len(data),
	}).Info("Downloaded model from blob storage")
	return data, nil
}

func validateModelName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid model name %q", ErrModelNotFound, name)
	}
	return nil
}
