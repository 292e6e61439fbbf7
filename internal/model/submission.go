package model

import "time"

// ReimbursementPayload holds the fields sent to the remote create endpoint.
// Amount is in minor currency units; TransactionDate is YYYY-MM-DD.
type ReimbursementPayload struct {
	ClientName      string `json:"client_name"`
	CategoryID      int64  `json:"category_id"`
	Amount          int64  `json:"amount"`
	TransactionDate string `json:"transaction_date"`
	Note            string `json:"note,omitempty"`
}

// PendingSubmission is a reimbursement creation captured while offline,
// durably queued until the server acknowledges it. LocalID is generated
// client-side at enqueue time and never reused; it doubles as the
// idempotency key for retries.
type PendingSubmission struct {
	LocalID     string               `json:"localId"`
	Payload     ReimbursementPayload `json:"data"`
	ImageURI    string               `json:"imageUri,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	Attempts    int                  `json:"attempts"`
	LastAttempt *time.Time           `json:"lastAttempt,omitempty"`
}

// Reimbursement is a record confirmed by the server.
type Reimbursement struct {
	ID              int64  `json:"id"`
	ClientName      string `json:"client_name"`
	CategoryID      int64  `json:"category_id"`
	Amount          int64  `json:"amount"`
	TransactionDate string `json:"transaction_date"`
	Note            string `json:"note,omitempty"`
	ReceiptURL      string `json:"receipt_url,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}
