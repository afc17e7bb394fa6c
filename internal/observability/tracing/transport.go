package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Transport starts a client span around every outbound request.
type Transport struct {
	base http.RoundTripper
	name string
}

// WrapTransport instruments base; a nil base means http.DefaultTransport.
func WrapTransport(name string, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, name: name}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer("authr/http-client").Start(req.Context(), t.name+" "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("server.address", req.URL.Host),
		attribute.String("url.path", req.URL.Path),
	)...)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}
