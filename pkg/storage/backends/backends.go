// Package backends constructs the concrete storage client selected by the
// configured storage URI, and wraps it in the FileSystem facade.
package backends

import (
	"context"
	"fmt"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/apiclient"
	"github.com/mlvault/artifactfs/pkg/config"
	"github.com/mlvault/artifactfs/pkg/metrics"
	"github.com/mlvault/artifactfs/pkg/storage"
	"github.com/mlvault/artifactfs/pkg/storage/azure"
	"github.com/mlvault/artifactfs/pkg/storage/gcs"
	"github.com/mlvault/artifactfs/pkg/storage/httpfs"
	"github.com/mlvault/artifactfs/pkg/storage/local"
	"github.com/mlvault/artifactfs/pkg/storage/s3"
)

// NewClient builds the storage client for the configured backend. In client
// mode the real backend type is discovered from the server's storage
// settings so uploads can use its native strategy.
func NewClient(ctx context.Context, settings *config.Settings, obs metrics.Observer) (storage.Client, error) {
	storageType := settings.StorageType()
	chunkSize := settings.ChunkSize.Int64()

	switch storageType {
	case storage.TypeHTTPProxy:
		api, err := apiclient.New(ctx, apiclient.Config{
			BaseURL:    settings.API.BaseURL,
			PathPrefix: settings.API.PathPrefix,
			UseAuth:    settings.API.UseAuth,
			Username:   settings.API.Username,
			Password:   settings.API.Password,
			ProdToken:  settings.API.ProdToken,
		})
		if err != nil {
			return nil, err
		}

		remote, err := api.StorageSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to discover server storage settings: %w", err)
		}
		logger.Debug("discovered server storage backend", "type", remote.StorageType)

		return httpfs.New(httpfs.Config{
			API:       api,
			Bucket:    settings.Bucket(),
			RealType:  remote.StorageType,
			ChunkSize: chunkSize,
			Metrics:   obs,
		})

	case storage.TypeGCS:
		return gcs.New(ctx, gcs.Config{
			Bucket:    settings.Bucket(),
			ChunkSize: chunkSize,
			Metrics:   obs,
		})

	case storage.TypeS3:
		return s3.New(ctx, s3.Config{
			Bucket:    settings.Bucket(),
			ChunkSize: chunkSize,
			Metrics:   obs,
		})

	case storage.TypeAzure:
		return azure.New(ctx, azure.Config{
			Container: settings.Bucket(),
			ChunkSize: chunkSize,
			Metrics:   obs,
		})

	case storage.TypeLocal:
		return local.New(settings.StorageURI, obs)

	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", storage.ErrInvalidArgument, storageType)
	}
}

// NewFileSystem builds the FileSystem facade over the configured backend.
func NewFileSystem(ctx context.Context, settings *config.Settings, obs metrics.Observer) (*storage.FileSystem, error) {
	client, err := NewClient(ctx, settings, obs)
	if err != nil {
		return nil, err
	}
	return storage.NewFileSystem(client, settings.MaxParallel), nil
}
