package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"invoiceapi/internal/config"
)

// Package storage contains object storage abstractions for S3-compatible stores.
// Uploads never pass through this service: clients receive a presigned PUT URL
// and the store reports completed writes back as ObjectEvents.

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Storage is the object store used by the import workflow.
// Implementations are safe for concurrent use.
type Storage interface {
	// PresignPut returns a time-limited URL the client can PUT the object to without credentials.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// EventHandler receives the completion events of one notification.
type EventHandler func(ctx context.Context, events []ObjectEvent)

// Listener is implemented by drivers that can subscribe to object-created events themselves.
type Listener interface {
	// Listen blocks until ctx is done. Transport errors are passed to onErr and listening resumes.
	Listen(ctx context.Context, handle EventHandler, onErr func(error)) error
}

const (
	DriverMinIO = "minio"
	DriverS3    = "s3"
)

// New builds the driver selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case DriverMinIO, "":
		return NewMinIO(ctx, cfg.MinIO)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
