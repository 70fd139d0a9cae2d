package model

import "time"

// Transaction tracks one import attempt from upload-target issue to a terminal status.
// ID doubles as the object key of the uploaded file.
type Transaction struct {
	ID              string    `json:"transactionId"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	ConnectionID    string    `json:"connectionId"`
	RequestID       string    `json:"requestId"`
	Endpoint        string    `json:"endpoint"`
	UploadExpiresIn int       `json:"uploadExpiresIn"`
}

// Expired reports whether the record is past its expiry instant at now.
func (t *Transaction) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ChangeKind is the kind of a change-data-capture record.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
	ChangeRemove ChangeKind = "REMOVE"
)

// ChangeEvent is a change-data-capture record for a transaction row.
// REMOVE events carry the pre-deletion image in OldImage.
type ChangeEvent struct {
	Kind     ChangeKind
	OldImage *Transaction
	NewImage *Transaction
}
