package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Span attributes that could carry credentials are never recorded.
var forbiddenAttributeKeys = map[attribute.Key]struct{}{
	"http.url":        {},
	"url.query":       {},
	"oauth.code":      {},
	"oauth.state":     {},
	"session.token":   {},
	"http.request_id": {},
}

// ExtractContext pulls remote span context and baggage from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that may leak secrets.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, bad := forbiddenAttributeKeys[attr.Key]; bad {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError strips anything after a '?' so URLs embedded in transport
// errors never record query strings on spans.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '?'); i >= 0 {
		msg = msg[:i] + "?<redacted>"
	}
	return errors.New(msg)
}
