package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7/pkg/notification"
)

// ObjectEvent is one storage-completion record: the object key is the transaction ID.
type ObjectEvent struct {
	Bucket    string
	Key       string
	EventName string
}

// Created reports whether the record announces a newly written object.
func (e ObjectEvent) Created() bool {
	name := strings.TrimPrefix(e.EventName, "s3:")
	return strings.HasPrefix(name, "ObjectCreated:")
}

type notificationDocument struct {
	Records []notification.Event `json:"Records"`
}

// ParseNotification decodes an S3 event-notification document as posted by
// bucket webhooks (AWS S3, MinIO webhook targets).
func ParseNotification(body []byte) ([]ObjectEvent, error) {
	var doc notificationDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return fromRecords(doc.Records)
}

func fromRecords(records []notification.Event) ([]ObjectEvent, error) {
	events := make([]ObjectEvent, 0, len(records))
	for _, r := range records {
		// Keys arrive URL-encoded with '+' for spaces.
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", r.S3.Object.Key, err)
		}
		events = append(events, ObjectEvent{
			Bucket:    r.S3.Bucket.Name,
			Key:       key,
			EventName: r.EventName,
		})
	}
	return events, nil
}
