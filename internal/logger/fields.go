package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldBatchID is the batch job ID (UUID)
	FieldBatchID = "batch_id"

	// FieldRecordID is the news record being processed
	FieldRecordID = "record_id"

	// FieldWorkerID is the pipeline worker index
	FieldWorkerID = "worker_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the news source identifier
	FieldSource = "source"
)

// Metric fields, attached per entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldAttempt    = "attempt"
	FieldStatus     = "status"
	FieldReason     = "reason"
	FieldSize       = "size"
)
