package events

import (
	"sort"
	"strings"
)

// Limits for the fallback key scan over untrusted payloads. A scanned value is only
// ever used as a display string.
const (
	maxScanDepth      = 4
	maxScanKeys       = 256
	maxOrderNumberLen = 64
)

var orderNumberPaths = [][]string{
	{"order_number"},
	{"orderNumber"},
	{"order", "number"},
	{"order", "orderNumber"},
	{"order", "order_number"},
	{"metadata", "order_number"},
	{"metadata", "orderNumber"},
	{"checkoutSession", "orderNumber"},
	{"checkout_session", "order_number"},
	{"payment", "orderNumber"},
	{"payment", "order_number"},
}

// OrderNumber extracts the processor order number from an event payload, trying the
// known fields first and then a bounded scan for any key containing "order".
func OrderNumber(data map[string]interface{}) string {
	for _, path := range orderNumberPaths {
		if v := StringAt(data, path...); acceptableOrderNumber(v) {
			return v
		}
	}
	return ScanOrderNumber(data)
}

// ScanOrderNumber walks data breadth-first, at most maxScanDepth levels deep and
// maxScanKeys keys in total, returning the first scalar under a key containing "order".
func ScanOrderNumber(data map[string]interface{}) string {
	type level struct {
		obj   map[string]interface{}
		depth int
	}

	queue := []level{{obj: data, depth: 1}}
	visited := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		keys := make([]string, 0, len(current.obj))
		for k := range current.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			visited++
			if visited > maxScanKeys {
				return ""
			}

			value := current.obj[key]
			if nested, ok := value.(map[string]interface{}); ok {
				if current.depth < maxScanDepth {
					queue = append(queue, level{obj: nested, depth: current.depth + 1})
				}
				continue
			}

			if !strings.Contains(strings.ToLower(key), "order") {
				continue
			}
			if v := StringAt(current.obj, key); acceptableOrderNumber(v) {
				return v
			}
		}
	}
	return ""
}

func acceptableOrderNumber(v string) bool {
	return v != "" && len(v) <= maxOrderNumberLen
}
