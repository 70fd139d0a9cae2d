package model

// Actions accepted on the realtime channel.
const (
	ActionGetImportURL = "getImportUrl"
	ActionCancelImport = "cancelImport"
)

// ClientRequest is a message sent by a client over the realtime channel.
type ClientRequest struct {
	Action        string `json:"action"`
	TransactionID string `json:"transactionId,omitempty"`
}

// UploadTarget is pushed in response to getImportUrl.
type UploadTarget struct {
	URL           string `json:"url"`
	Expires       int    `json:"expires"`
	TransactionID string `json:"transactionId"`
}

// StatusMessage is the envelope for every status push.
type StatusMessage struct {
	TransactionID string `json:"transactionId"`
	Status        Status `json:"status"`
}
