package api

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fieldexpense/claimsync/internal/model"
)

// headerIdempotencyKey carries the client-generated key that makes
// retried creates duplicate-safe. Queued submissions derive it from
// their localId so every retry of the same item sends the same key.
const headerIdempotencyKey = "Idempotency-Key"

// CreateReimbursement submits a reimbursement creation. When imagePath is
// non-empty the receipt photo is uploaded as a multipart part; otherwise
// the payload goes as JSON. idempotencyKey must be stable across retries
// of the same logical submission.
func (c *Client) CreateReimbursement(ctx context.Context, payload model.ReimbursementPayload, imagePath, idempotencyKey string) (*model.Reimbursement, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[headerIdempotencyKey] = idempotencyKey
	}

	var created model.Reimbursement

	if imagePath == "" {
		if err := c.postJSON(ctx, "/reimbursements", payload, headers, &created); err != nil {
			return nil, err
		}
		return &created, nil
	}

	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt image: %w", err)
	}
	defer func() { _ = file.Close() }()

	fields := map[string]string{
		"client_name":      payload.ClientName,
		"category_id":      strconv.FormatInt(payload.CategoryID, 10),
		"amount":           strconv.FormatInt(payload.Amount, 10),
		"transaction_date": payload.TransactionDate,
	}
	if payload.Note != "" {
		fields["note"] = payload.Note
	}

	if err := c.postMultipart(ctx, "/reimbursements", fields, "image", imagePath, file, headers, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
