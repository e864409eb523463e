// Package processor talks to the payment processor's REST API and exposes the
// authoritative verification used before a payment is marked completed.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/events"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 10 * time.Second

type Payment struct {
	ID          string
	Status      string
	OrderNumber string
	Raw         map[string]interface{}
}

type CheckoutSession struct {
	ID          string
	Status      string
	PaymentID   string
	OrderNumber string
	Raw         map[string]interface{}
}

// API is the subset of the processor API the engine consumes.
type API interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

type Config struct {
	BaseURL     string
	AccessToken string
	SpaceID     string
	Timeout     time.Duration
}

// Configured reports whether credentials are present.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.AccessToken != ""
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Accept", "application/json")
	if cfg.SpaceID != "" {
		r.SetHeader("Monime-Space-Id", cfg.SpaceID)
	}

	return &Client{http: r}
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	obj, err := c.get(ctx, "/payments/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	return &Payment{
		ID:          firstString(obj, []string{"id"}),
		Status:      statusOf(obj),
		OrderNumber: orderNumberOf(obj),
		Raw:         obj,
	}, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	obj, err := c.get(ctx, "/checkout-sessions/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ID:     firstString(obj, []string{"id"}),
		Status: statusOf(obj),
		PaymentID: firstString(obj,
			[]string{"payment", "id"},
			[]string{"paymentId"},
			[]string{"payment_id"},
		),
		OrderNumber: orderNumberOf(obj),
		Raw:         obj,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	op := "processor.get " + path

	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, errs.New(op, errs.ErrNotFound, "processor returned 404")
	case resp.IsError():
		return nil, errs.New(op, errs.ErrUnavailable, "processor returned %d", resp.StatusCode())
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, errs.New(op, errs.ErrUnavailable, "unreadable processor response")
	}

	// Responses are wrapped as {"success": true, "result": {...}}.
	if result, ok := body["result"].(map[string]interface{}); ok {
		return result, nil
	}
	return body, nil
}

func statusOf(obj map[string]interface{}) string {
	return strings.ToLower(firstString(obj, []string{"status"}, []string{"payment_status"}, []string{"paymentStatus"}))
}

func orderNumberOf(obj map[string]interface{}) string {
	return firstString(obj,
		[]string{"order_number"},
		[]string{"orderNumber"},
		[]string{"order", "number"},
	)
}

func firstString(obj map[string]interface{}, paths ...[]string) string {
	for _, path := range paths {
		if v := events.StringAt(obj, path...); v != "" {
			return v
		}
	}
	return ""
}
