package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/farellandr/duesledger/internal/errs"
)

var synonyms = map[string]string{
	"payment.processing_started":   TypePaymentProcessing,
	"payment.processing_initiated": TypePaymentProcessing,
	"checkout_session.completed":   TypeCheckoutSessionCompleted,
	"checkout_session.cancelled":   TypeCheckoutSessionCancelled,
	"checkout_session.canceled":    TypeCheckoutSessionCancelled,
	"checkout.session.canceled":    TypeCheckoutSessionCancelled,
	"checkout_session.failed":      TypeCheckoutSessionFailed,
	"checkout_session.expired":     TypeCheckoutSessionExpired,
	"payment.canceled":             TypePaymentCancelled,
}

var completedStatuses = map[string]bool{
	"completed": true,
	"paid":      true,
	"succeeded": true,
}

type nestedEvent struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Normalize decodes body into a canonical Event. A body that is not a JSON object is
// a MalformedInput error.
func Normalize(body []byte) (Event, error) {
	root, err := decodeObject(body)
	if err != nil {
		return Event{}, errs.Wrap("events.normalize", errs.ErrMalformedInput, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, errs.Wrap("events.normalize", errs.ErrMalformedInput, err)
	}

	event, ok := decodeNested(raw, root)
	if !ok {
		event, ok = decodeLegacy(root)
	}
	if !ok {
		event = Event{Variant: VariantBare, Data: root}
	}

	event.Type = canonicalType(event.Type)
	if event.Type == "" && completedStatuses[event.Status()] {
		event.Type = TypePaymentCompleted
	}
	return event, nil
}

func decodeNested(raw map[string]json.RawMessage, root map[string]interface{}) (Event, bool) {
	eventRaw, ok := raw["event"]
	if !ok || !isObject(eventRaw) {
		return Event{}, false
	}

	var nested nestedEvent
	if err := json.Unmarshal(eventRaw, &nested); err != nil {
		return Event{}, false
	}

	eventType := firstNonEmpty(nested.Name, nested.Type, nested.ID, TypePaymentCompleted)
	return Event{Type: eventType, Data: dataObject(root), Variant: VariantNested}, true
}

func decodeLegacy(root map[string]interface{}) (Event, bool) {
	eventType := firstNonEmpty(StringAt(root, "type"), StringAt(root, "event"))
	if eventType == "" {
		return Event{}, false
	}
	return Event{Type: eventType, Data: dataObject(root), Variant: VariantLegacy}, true
}

// dataObject picks data, then object, then the root itself.
func dataObject(root map[string]interface{}) map[string]interface{} {
	for _, key := range []string{"data", "object"} {
		if obj, ok := root[key].(map[string]interface{}); ok {
			return obj
		}
	}
	return root
}

func canonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if canonical, ok := synonyms[t]; ok {
		return canonical
	}
	return t
}

func decodeObject(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root map[string]interface{}
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, errNotObject
	}
	return root, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var errNotObject = errors.New("body is not a JSON object")
