package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"invoiceapi/internal/config"
)

// createdEvents is the bucket notification filter used by Listen.
var createdEvents = []string{"s3:ObjectCreated:*"}

// MinIO implements Storage and Listener using an S3-compatible backend through minio-go.
// It is safe for concurrent use by multiple goroutines.
type MinIO struct {
	client *minio.Client
	bucket string
}

var (
	_ Storage  = (*MinIO)(nil)
	_ Listener = (*MinIO)(nil)
)

// NewMinIO creates a new storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinIO{client: cli, bucket: cfg.Bucket}, nil
}

// PresignPut generates a pre-signed URL for PUT with the specified expiry.
func (m *MinIO) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

// Get downloads an object content as a ReadCloser along with basic info.
func (m *MinIO) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, m.classify(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, m.classify(key, err)
	}
	info := ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
	}
	return obj, info, nil
}

// Delete removes an object by key.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isMinIONotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Listen subscribes to ObjectCreated notifications on the bucket.
// minio-go reconnects on its own; each failed attempt is reported through onErr.
func (m *MinIO) Listen(ctx context.Context, handle EventHandler, onErr func(error)) error {
	ch := m.client.ListenBucketNotification(ctx, m.bucket, "", "", createdEvents)
	for info := range ch {
		if info.Err != nil {
			if onErr != nil {
				onErr(fmt.Errorf("bucket notification: %w", info.Err))
			}
			continue
		}
		events, err := fromRecords(info.Records)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		if len(events) > 0 {
			handle(ctx, events)
		}
	}
	return ctx.Err()
}

func (m *MinIO) classify(key string, err error) error {
	if isMinIONotFound(err) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", key, err)
}

func isMinIONotFound(err error) bool {
	errResp := minio.ErrorResponse{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound || errResp.Code == "NoSuchKey"
	}
	return false
}
