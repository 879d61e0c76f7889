package tracing

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys that may carry provider credentials or caller
// secrets. The sentinel-hub token flow in particular must never leak
// into exported spans.
var sensitiveAttributeKeys = []string{
	"client_secret",
	"client_id",
	"secret",
	"token",
	"api_key",
	"password",
	"authorization",
}

// SafeAttributes drops attributes with sensitive keys before they are
// attached to a span.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0]
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its type so recorded span events cannot
// carry credential-bearing messages (the oauth2 library embeds the
// token endpoint response in its errors).
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%T", err)
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveAttributeKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
