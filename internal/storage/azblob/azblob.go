// Package azblob implements internal/storage.Backend over Azure Blob
// Storage. Grounded on couchbase-tools-common's objazure.Client: a
// ServiceClient handed a container/blob pair, BlobDownloadOptions{Offset,
// Count} for ranged reads, GetProperties for sizing, and the SAS-URL
// generation couchbase-tools-common uses for its cross-container copies,
// reused here to hand clients a directly fetchable URL.
package azblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	az "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/ga4gh/htsget-core/internal/storage"
)

// Backend serves objects (blobs) out of a single Azure Storage container.
type Backend struct {
	client    *az.ServiceClient
	container string
	// credential is non-nil only when the ServiceClient was built from a
	// shared key credential, which is the only credential type the SDK
	// will sign a SAS URL with.
	credential *az.SharedKeyCredential
}

// New returns a Backend authenticated with a storage account's shared key.
// A shared key credential is required here (rather than any azcore.TokenCredential)
// because SAS URL generation, needed for RangeURL, can only be signed with one.
func New(accountName, accountKey, container string) (*Backend, error) {
	cred, err := az.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("creating shared key credential: %v", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := az.NewServiceClientWithSharedKey(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating service client: %v", err)
	}

	return &Backend{client: client, container: container, credential: cred}, nil
}

func (b *Backend) blobClient(object storage.Object) (az.BlobClient, error) {
	containerClient, err := b.client.NewContainerClient(b.container)
	if err != nil {
		return az.BlobClient{}, err
	}
	return containerClient.NewBlobClient(object.Key)
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	blob, err := b.blobClient(object)
	if err != nil {
		return nil, err
	}

	count := length
	if length < 0 {
		count = az.CountToEnd
	}
	resp, err := blob.Download(ctx, az.BlobDownloadOptions{Offset: &offset, Count: &count})
	if err != nil {
		return nil, translateError(err)
	}
	return resp.Body(az.RetryReaderOptions{}), nil
}

// Size implements storage.Backend.
func (b *Backend) Size(ctx context.Context, object storage.Object) (int64, error) {
	blob, err := b.blobClient(object)
	if err != nil {
		return 0, err
	}

	resp, err := blob.GetProperties(ctx, az.BlobGetPropertiesOptions{})
	if err != nil {
		return 0, translateError(err)
	}
	return *resp.ContentLength, nil
}

// SupportsRangeURL implements storage.Backend.
func (b *Backend) SupportsRangeURL() bool {
	return b.credential != nil
}

// RangeURL implements storage.Backend, returning a URL carrying a
// read-only, 15-minute account SAS token. Azure SAS URLs, unlike GCS/S3
// presigned URLs, cannot themselves scope a byte range, so the Range header
// the client must send is returned alongside the URL.
func (b *Backend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	if b.credential == nil {
		return "", nil, errors.New("backend has no shared key credential to sign a SAS URL with")
	}

	blob, err := b.blobClient(object)
	if err != nil {
		return "", nil, err
	}

	start := time.Now().Add(-5 * time.Minute)
	expiry := time.Now().Add(15 * time.Minute)
	url, err := blob.GetSASURL(az.BlobSASPermissions{Read: true}, expiry, &az.GetSASURLOptions{StartTime: &start})
	if err != nil {
		return "", nil, fmt.Errorf("getting SAS URL: %v", err)
	}

	var end string
	if length >= 0 {
		end = fmt.Sprintf("%d", offset+length-1)
	}
	headers := map[string]string{"x-ms-range": fmt.Sprintf("bytes=%d-%s", offset, end)}
	return url, headers, nil
}

func translateError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return storage.ErrNotExist
	}
	return err
}
