package cnst

// Tracer names used across boom
const (
	TraceRelay     = "boom/relay"
	TraceAPIServer = "boom/apiserver"
)

// Span names
const (
	SpanReport = "boom.relay.report"
)

// Common attribute keys
const (
	AttrNamespace      = "boom.namespace"
	AttrSocketID       = "boom.socket_id"
	AttrEvent          = "boom.event"
	AttrHTTPStatusCode = "http.status_code"
	AttrErrorReason    = "error.reason"
)
