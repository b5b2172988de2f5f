package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ga4gh/htsget-core/internal/config"
	"github.com/ga4gh/htsget-core/internal/storage"
	"github.com/ga4gh/htsget-core/internal/storage/azblob"
	"github.com/ga4gh/htsget-core/internal/storage/gcs"
	"github.com/ga4gh/htsget-core/internal/storage/local"
	"github.com/ga4gh/htsget-core/internal/storage/remote"
	"github.com/ga4gh/htsget-core/internal/storage/s3"
)

// buildBackend constructs the storage.Backend named by cfg.Storage.
func buildBackend(ctx context.Context, cfg config.Config, httpClient *http.Client) (storage.Backend, error) {
	switch cfg.Storage {
	case config.StorageLocal, "":
		return local.New(cfg.LocalRoot), nil
	case config.StorageGCS:
		return gcs.New(ctx, cfg.GCSBucket)
	case config.StorageS3:
		return s3.New(cfg.S3Bucket)
	case config.StorageAzBlob:
		return azblob.New(cfg.AzureAccount, cfg.AzureAccountKey, cfg.AzureBucket)
	case config.StorageRemote:
		return newRemoteBackend(cfg.RemoteDataBaseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// remoteBackend adapts internal/storage/remote.Backend (which addresses
// exactly one URL per instance) onto storage.Backend's multi-object
// contract, by templating baseURL+"/"+object.Key and caching one
// remote.Backend per key seen so far.
type remoteBackend struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	backends map[string]*remote.Backend
}

func newRemoteBackend(baseURL string, client *http.Client) *remoteBackend {
	return &remoteBackend{baseURL: baseURL, client: client, backends: make(map[string]*remote.Backend)}
}

func (r *remoteBackend) objectBackend(object storage.Object) (*remote.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[object.Key]; ok {
		return b, nil
	}
	b, err := remote.New(r.baseURL+"/"+object.Key, r.client, nil)
	if err != nil {
		return nil, err
	}
	r.backends[object.Key] = b
	return b, nil
}

func (r *remoteBackend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	b, err := r.objectBackend(object)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, object, offset, length)
}

func (r *remoteBackend) Size(ctx context.Context, object storage.Object) (int64, error) {
	b, err := r.objectBackend(object)
	if err != nil {
		return 0, err
	}
	return b.Size(ctx, object)
}

func (r *remoteBackend) SupportsRangeURL() bool {
	return false
}

func (r *remoteBackend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	b, err := r.objectBackend(object)
	if err != nil {
		return "", nil, err
	}
	return b.RangeURL(ctx, object, offset, length)
}
