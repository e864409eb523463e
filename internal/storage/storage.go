// Package storage keeps receipt artifacts in durable object storage.
package storage

import (
	"context"
	"path"
	"strings"
)

// ObjectStore stores opaque artifacts under slash-separated keys.
type ObjectStore interface {
	// Put writes body at key and returns the URL the artifact is reachable at.
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ReceiptKey namespaces a receipt file by organization and payment, so two payments
// never share a key even if they end up with the same receipt number.
func ReceiptKey(organizationID, paymentID, receiptNumber string) string {
	return path.Join(organizationID, "receipts", paymentID, receiptNumber+".pdf")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
