package observability

// EventEnvelope frames a ws lifecycle event on the broker. EventType names
// the stream ("ws_events"), EventName the specific transition
// (ws_connect/ws_disconnect/ws_error).
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles the correlation headers attached to a published
// event; empty ids are omitted.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
