package factory

import (
	"context"
	"fmt"
	"image"

	"go-carlost-detector/internal/config"
	"go-carlost-detector/internal/detector"
	"go-carlost-detector/internal/logger"
	"go-carlost-detector/internal/notify"
	"go-carlost-detector/internal/repository"
	"go-carlost-detector/internal/storage"
)

// EngineType selects the detection backend
type EngineType string

const (
	// TFLiteEngine runs the model in process
	TFLiteEngine EngineType = "tflite"
	// RemoteEngine posts frames to an inference server
	RemoteEngine EngineType = "remote"
)

// ModelSourceType selects where model assets are read from
type ModelSourceType string

const (
	// FileModels reads models from a local directory
	FileModels ModelSourceType = "file"
	// AzureModels reads models from an Azure blob container
	AzureModels ModelSourceType = "azure"
)

// StorageType represents different types of frame storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based frame fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// EngineFactory creates engine loaders
type EngineFactory interface {
	CreateLoader(engineType EngineType, models repository.ModelRepository) (detector.EngineLoader, error)
}

// ModelFactory creates model repositories
type ModelFactory interface {
	CreateModelRepository(sourceType ModelSourceType) (repository.ModelRepository, error)
}

// StorageFactory creates frame fetchers
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
	CreateRouter() (*storage.Router, error)
}

// NotifierFactory creates the notification fan-out
type NotifierFactory interface {
	CreateNotifiers(hub *notify.Hub) *notify.Multi
}

type engineFactory struct {
	cfg *config.Config
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config) EngineFactory {
	return &engineFactory{cfg: cfg}
}

// CreateLoader creates a loader for the given backend
func (f *engineFactory) CreateLoader(engineType EngineType, models repository.ModelRepository) (detector.EngineLoader, error) {
	switch engineType {
	case TFLiteEngine:
		if models == nil {
			return nil, fmt.Errorf("tflite engine needs a model repository")
		}
		return detector.NewTFLiteLoader(models), nil
	case RemoteEngine:
		if f.cfg.InferenceURL == "" {
			return nil, fmt.Errorf("remote engine needs an inference URL")
		}
		return detector.NewRemoteLoader(f.cfg.InferenceURL, f.cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported engine type: %s", engineType)
	}
}

type modelFactory struct {
	cfg *config.Config
}

// NewModelFactory creates a new model repository factory
func NewModelFactory(cfg *config.Config) ModelFactory {
	return &modelFactory{cfg: cfg}
}

// CreateModelRepository creates a model repository for the given source
func (f *modelFactory) CreateModelRepository(sourceType ModelSourceType) (repository.ModelRepository, error) {
	switch sourceType {
	case FileModels:
		return repository.NewFileModelRepository(f.cfg.ModelDir), nil
	case AzureModels:
		blobs, err := storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
		if err != nil {
			return nil, err
		}
		return repository.NewBlobModelRepository(blobs, f.cfg.AzureContainer), nil
	default:
		return nil, fmt.Errorf("unsupported model source: %s", sourceType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout), nil
	case AzureStorage:
		blobs, err := f.azure()
		if err != nil {
			return nil, err
		}
		return blobFetcher{blobs}, nil
	case LocalStorage:
		if f.cfg.FrameDir == "" {
			return nil, fmt.Errorf("local storage needs FRAME_DIR")
		}
		return storage.NewLocalImageFetcher(f.cfg.FrameDir), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateRouter builds a router over every backend the configuration enables
func (f *storageFactory) CreateRouter() (*storage.Router, error) {
	router := &storage.Router{
		HTTP: storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout),
	}
	if f.cfg.AzureAccountName != "" && f.cfg.AzureAccountKey != "" {
		blobs, err := f.azure()
		if err != nil {
			return nil, err
		}
		router.Blob = blobs
	}
	if f.cfg.FrameDir != "" {
		router.Local = storage.NewLocalImageFetcher(f.cfg.FrameDir)
	}
	return router, nil
}

func (f *storageFactory) azure() (storage.BlobStorage, error) {
	blobs, err := storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure storage: %w", err)
	}
	return blobs, nil
}

// blobFetcher adapts BlobStorage to ImageFetcher
type blobFetcher struct {
	storage.BlobStorage
}

func (b blobFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	return b.GetImage(ctx, imageURL)
}

type notifierFactory struct {
	cfg *config.Config
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config) NotifierFactory {
	return &notifierFactory{cfg: cfg}
}

// CreateNotifiers fans out to the hub plus every configured broker. A broker
// that cannot be set up is logged and skipped.
func (f *notifierFactory) CreateNotifiers(hub *notify.Hub) *notify.Multi {
	multi := notify.NewMulti()
	if hub != nil {
		multi.Add(hub)
	}

	if f.cfg.RedisAddress != "" {
		multi.Add(notify.NewRedisNotifier(f.cfg.RedisAddress, f.cfg.RedisPassword, f.cfg.RedisDB, f.cfg.RedisChannel))
	}

	if f.cfg.IoTEndpoint != "" {
		iot, err := notify.NewIoTNotifier(f.cfg.AWSRegion, f.cfg.IoTEndpoint, f.cfg.DeviceName)
		if err != nil {
			logger.WithError(err).WithField("endpoint", f.cfg.IoTEndpoint).Warn("AWS IoT notifier disabled")
		} else {
			multi.Add(iot)
		}
	}
	return multi
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory   EngineFactory
	ModelFactory    ModelFactory
	StorageFactory  StorageFactory
	NotifierFactory NotifierFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:   NewEngineFactory(cfg),
		ModelFactory:    NewModelFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
		NotifierFactory: NewNotifierFactory(cfg),
	}
}
