package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func ParseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// ReceiptQRData is the payload encoded in a receipt's QR code.
func ReceiptQRData(receiptNumber string, paymentID uuid.UUID, secret string) string {
	return fmt.Sprintf("receipt:%s;payment:%s;signature:%s",
		receiptNumber,
		paymentID.String(),
		receiptSignature(receiptNumber, paymentID, secret),
	)
}

// ValidateReceiptQRData checks the signature embedded by ReceiptQRData.
func ValidateReceiptQRData(qrData, secret string) (string, uuid.UUID, bool) {
	parts := strings.Split(qrData, ";")
	if len(parts) != 3 ||
		!strings.HasPrefix(parts[0], "receipt:") ||
		!strings.HasPrefix(parts[1], "payment:") ||
		!strings.HasPrefix(parts[2], "signature:") {
		return "", uuid.Nil, false
	}

	receiptNumber := strings.TrimPrefix(parts[0], "receipt:")
	paymentID, err := uuid.Parse(strings.TrimPrefix(parts[1], "payment:"))
	if err != nil {
		return "", uuid.Nil, false
	}

	signature := strings.TrimPrefix(parts[2], "signature:")
	expected := receiptSignature(receiptNumber, paymentID, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", uuid.Nil, false
	}
	return receiptNumber, paymentID, true
}

func receiptSignature(receiptNumber string, paymentID uuid.UUID, secret string) string {
	data := fmt.Sprintf("%s:%s", receiptNumber, paymentID.String())
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
