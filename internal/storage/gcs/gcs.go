// Package gcs implements internal/storage.Backend over Google Cloud Storage.
// Grounded on teacher api/gcs.go's GCSClient/gcsObjectHandle pair: the same
// *storage.Client wrapping and bearer-token client construction, adapted
// from the teacher's per-request Client/ObjectHandle split onto the single
// storage.Backend interface every variant now shares, and extended with
// RangeURL (the teacher's BAM-only proxy server never issued signed URLs;
// SPEC_FULL.md's direct-URL delivery mode needs one).
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/ga4gh/htsget-core/internal/storage"
)

// Backend serves objects out of a single GCS bucket.
type Backend struct {
	client *gcs.Client
	bucket string
}

// New returns a Backend that uses the application default credentials.
func New(ctx context.Context, bucket string) (*Backend, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %v", err)
	}
	return &Backend{client: client, bucket: bucket}, nil
}

// NewPublic returns a Backend that makes unauthenticated requests, suitable
// only for publicly readable buckets.
func NewPublic(ctx context.Context, bucket string) (*Backend, error) {
	client, err := gcs.NewClient(ctx, option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %v", err)
	}
	return &Backend{client: client, bucket: bucket}, nil
}

// NewFromBearerToken returns a Backend that authorizes its requests using
// the given OAuth2 bearer token, forwarded from an incoming Authorization
// header.
func NewFromBearerToken(ctx context.Context, bucket, bearerToken string) (*Backend, error) {
	token := oauth2.Token{TokenType: "Bearer", AccessToken: bearerToken}
	client, err := gcs.NewClient(ctx, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("creating storage client with token source: %v", err)
	}
	return &Backend{client: client, bucket: bucket}, nil
}

func (b *Backend) object(object storage.Object) *gcs.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(object.Key)
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	r, err := b.object(object).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, translateError(err)
	}
	return r, nil
}

// Size implements storage.Backend.
func (b *Backend) Size(ctx context.Context, object storage.Object) (int64, error) {
	attrs, err := b.object(object).Attrs(ctx)
	if err != nil {
		return 0, translateError(err)
	}
	return attrs.Size, nil
}

// SupportsRangeURL implements storage.Backend.
func (b *Backend) SupportsRangeURL() bool {
	return true
}

// RangeURL implements storage.Backend, returning a signed URL valid for 15
// minutes. GCS V4 signed URLs cannot themselves constrain which byte range a
// client requests, so the Range header a client should send is returned
// alongside the URL instead.
func (b *Backend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	opts := &gcs.SignedURLOptions{
		Method:  "GET",
		Scheme:  gcs.SigningSchemeV4,
		Expires: time.Now().Add(15 * time.Minute),
	}
	url, err := b.client.Bucket(b.bucket).SignedURL(object.Key, opts)
	if err != nil {
		return "", nil, fmt.Errorf("signing URL: %v", err)
	}

	var end string
	if length < 0 {
		end = ""
	} else {
		end = fmt.Sprintf("%d", offset+length-1)
	}
	headers := map[string]string{"Range": fmt.Sprintf("bytes=%d-%s", offset, end)}
	return url, headers, nil
}

func translateError(err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return storage.ErrNotExist
	}
	return err
}
