package logger

// Standard field names for structured logging. Use these instead of raw
// strings so JSON output stays queryable.
const (
	// Identity
	FieldRunID     = "run_id"
	FieldUser      = "user"
	FieldComponent = "component"

	// Run parameters
	FieldTaskType = "task_type"
	FieldLimit    = "limit"
	FieldInterval = "interval"
	FieldServer   = "server"

	// Progress
	FieldIteration  = "iteration"
	FieldListed     = "listed"
	FieldRequested  = "requested"
	FieldClaimed    = "claimed"
	FieldCumulative = "cumulative"
	FieldTaskIDs    = "task_ids"

	// Outcome
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldErrno      = "errno"
	FieldHint       = "hint"

	// Storage
	FieldPath = "path"
)
