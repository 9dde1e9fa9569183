package logging

// Standardized structured logging keys.
const (
	FieldComponent    = "component"
	FieldStream       = "stream"
	FieldStreamIndex  = "stream_index"
	FieldEventType    = "event_type"
	FieldErrorHint    = "error_hint"
	FieldImpact       = "impact"
	FieldDecisionType = "decision_type"
	FieldRunID        = "run_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
