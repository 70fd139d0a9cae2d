package model

import "time"

// InvoiceFile is the JSON document a client uploads to the issued target.
type InvoiceFile struct {
	CustomerName  string  `json:"customerName"`
	InvoiceNumber string  `json:"invoiceNumber"`
	TotalValue    float64 `json:"totalValue"`
	ProductID     string  `json:"productId"`
	Quantity      int     `json:"quantity"`
}

// Invoice is the record committed for a successfully validated upload.
// It is written once per transaction and never modified.
type Invoice struct {
	CustomerName  string    `json:"customerName"`
	InvoiceNumber string    `json:"invoiceNumber"`
	TotalValue    float64   `json:"totalValue"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	TransactionID string    `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// InvoiceEventType names an entry of the invoice event log.
type InvoiceEventType string

const InvoiceCreated InvoiceEventType = "INVOICE_CREATED"

// InvoiceEvent is an expiring event-log entry about an invoice.
type InvoiceEvent struct {
	PK           string           `json:"pk"`
	SK           string           `json:"sk"`
	EventType    InvoiceEventType `json:"eventType"`
	CustomerName string           `json:"customerName"`
	CreatedAt    time.Time        `json:"createdAt"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	Info         InvoiceEventInfo `json:"info"`
}

// InvoiceEventInfo is the payload of an invoice event-log entry.
type InvoiceEventInfo struct {
	TransactionID string `json:"transaction"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
}
