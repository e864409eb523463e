package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
)

const DefaultSignatureTolerance = 300 * time.Second

// WebhookVerifier checks that a webhook body was produced by the payment processor.
// Two header formats are accepted: "t=<unix>,v1=<hex hmac of "<t>.<body>">" and a bare
// hex HMAC-SHA256 of the body. An empty secret disables verification.
type WebhookVerifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &WebhookVerifier{Secret: secret, Tolerance: tolerance, Now: time.Now}
}

// Enabled reports whether a secret is configured.
func (v *WebhookVerifier) Enabled() bool {
	return v != nil && v.Secret != ""
}

func (v *WebhookVerifier) Verify(body, header string) error {
	if !v.Enabled() {
		return nil
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return errs.New("webhook.verify", errs.ErrAuthentication, "missing signature header")
	}

	if !strings.Contains(header, "=") {
		if !signatureEqual(v.sign(body), header) {
			return errs.New("webhook.verify", errs.ErrAuthentication, "signature mismatch")
		}
		return nil
	}

	timestamp, candidate, err := parseTimestampedHeader(header)
	if err != nil {
		return errs.Wrap("webhook.verify", errs.ErrAuthentication, err)
	}

	now := v.Now()
	if math.Abs(float64(now.Unix()-timestamp)) > v.Tolerance.Seconds() {
		return errs.New("webhook.verify", errs.ErrAuthentication, "timestamp outside tolerance")
	}

	if !signatureEqual(v.sign(strconv.FormatInt(timestamp, 10)+"."+body), candidate) {
		return errs.New("webhook.verify", errs.ErrAuthentication, "signature mismatch")
	}
	return nil
}

// SignTimestamped builds a header value in the "t=...,v1=..." format.
func (v *WebhookVerifier) SignTimestamped(body string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, v.sign(ts+"."+body))
}

// Sign returns the bare hex signature of body.
func (v *WebhookVerifier) Sign(body string) string {
	return v.sign(body)
}

func (v *WebhookVerifier) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseTimestampedHeader(header string) (int64, string, error) {
	var (
		timestamp string
		candidate string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, "", fmt.Errorf("malformed signature header")
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidate = value
		}
	}
	if timestamp == "" || candidate == "" {
		return 0, "", fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed signature timestamp")
	}
	return ts, candidate, nil
}

// signatureEqual compares in constant time over the candidate bytes.
func signatureEqual(expected, candidate string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(candidate))))
}
