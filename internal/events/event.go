// Package events turns inbound processor webhook bodies into one canonical shape.
//
// Three envelope variants are recognised, tried in this order:
//
//	nested:  {"event": {"name"|"type"|"id": ...}, "data"|"object": {...}}
//	legacy:  {"type"|"event": "<type>", "data": {...}}
//	bare:    {...}  (the data object itself)
//
// Whatever the variant, Normalize yields an Event with a lowercased, synonym-folded
// type and a data object.
package events

import (
	"strings"

	"github.com/spf13/cast"
)

const (
	TypePaymentCompleted         = "payment.completed"
	TypePaymentProcessing        = "payment.processing"
	TypePaymentFailed            = "payment.failed"
	TypePaymentCancelled         = "payment.cancelled"
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypeCheckoutSessionCancelled = "checkout.session.cancelled"
	TypeCheckoutSessionFailed    = "checkout.session.failed"
	TypeCheckoutSessionExpired   = "checkout.session.expired"
)

type Variant string

const (
	VariantNested Variant = "nested"
	VariantLegacy Variant = "legacy"
	VariantBare   Variant = "bare"
)

type Event struct {
	Type    string
	Data    map[string]interface{}
	Variant Variant
}

// Kind groups event types by the state transition they request.
type Kind int

const (
	KindIgnored Kind = iota
	KindCompletion
	KindProcessing
	KindTermination
)

func (e Event) Kind() Kind {
	switch e.Type {
	case TypePaymentCompleted, TypeCheckoutSessionCompleted:
		return KindCompletion
	case TypePaymentProcessing:
		return KindProcessing
	case TypePaymentFailed, TypePaymentCancelled,
		TypeCheckoutSessionCancelled, TypeCheckoutSessionFailed, TypeCheckoutSessionExpired:
		return KindTermination
	}
	return KindIgnored
}

// LocalPaymentID is the payment id the application embedded in checkout metadata.
func (e Event) LocalPaymentID() string {
	for _, path := range [][]string{
		{"metadata", "payment_id"},
		{"metadata", "paymentId"},
		{"checkoutSession", "metadata", "payment_id"},
		{"checkout_session", "metadata", "payment_id"},
	} {
		if v := StringAt(e.Data, path...); v != "" {
			return v
		}
	}
	return ""
}

// ProcessorPaymentID is the processor's payment id, if the event carries one.
func (e Event) ProcessorPaymentID() string {
	for _, path := range [][]string{
		{"payment", "id"},
		{"paymentId"},
		{"payment_id"},
	} {
		if v := StringAt(e.Data, path...); v != "" {
			return v
		}
	}

	id := StringAt(e.Data, "id")
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "pay"):
		return id
	case strings.HasPrefix(id, "cos"):
		return ""
	case strings.HasPrefix(e.Type, "payment."):
		return id
	}
	return ""
}

// CheckoutSessionID is the processor's checkout-session id, if the event carries one.
func (e Event) CheckoutSessionID() string {
	for _, path := range [][]string{
		{"checkoutSession", "id"},
		{"checkout_session", "id"},
		{"checkoutSessionId"},
		{"checkout_session_id"},
		{"sessionId"},
	} {
		if v := StringAt(e.Data, path...); v != "" {
			return v
		}
	}

	id := StringAt(e.Data, "id")
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "cos"):
		return id
	case strings.HasPrefix(id, "pay"):
		return ""
	case strings.HasPrefix(e.Type, "checkout."):
		return id
	}
	return ""
}

// Status is the processor status claimed by the payload.
func (e Event) Status() string {
	return strings.ToLower(StringAt(e.Data, "status"))
}

// StringAt walks nested objects along path and returns the scalar found there as a
// string. Missing keys, non-object intermediates and non-scalar leaves yield "".
func StringAt(data map[string]interface{}, path ...string) string {
	if len(path) == 0 {
		return ""
	}

	var current interface{} = data
	for _, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[key]
		if !ok || current == nil {
			return ""
		}
	}

	switch current.(type) {
	case map[string]interface{}, []interface{}:
		return ""
	}
	s, err := cast.ToStringE(current)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
