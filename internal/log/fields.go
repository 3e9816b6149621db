package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldUserID     = "user_id"
	FieldIntentKind = "intent_kind"
	FieldDecisionID = "decision_id"
	FieldVerdict    = "verdict"
	FieldVersion    = "state_version"
	FieldAlertKind  = "alert_kind"
	FieldDedupKey   = "dedup_key"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)
