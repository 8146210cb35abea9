package log

import "spesesync/internal/core"

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldRecordID   = "record_id"
	FieldActionKind = "action_kind"
	FieldAmount     = "amount_cents"
	FieldCategory   = "category"
	FieldQueueLen   = "queue_len"
	FieldSyncStatus = "sync_status"
	FieldApplied    = "applied"
)

const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentQueue        = "queue"
	ComponentSync         = "sync"
	ComponentConnectivity = "connectivity"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentRemote       = "remote"
	ComponentRateLimit    = "rate_limit"
)

const (
	OpCreate   = "create"
	OpReplace  = "replace"
	OpDelete   = "delete"
	OpList     = "list"
	OpSync     = "sync"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields builds attribute lists for slog calls.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithRecord(r core.Record) LogFields {
	f[FieldRecordID] = r.ID
	f[FieldAmount] = r.AmountCents()
	f[FieldCategory] = r.Category
	return f
}

func (f LogFields) WithAction(a core.PendingAction) LogFields {
	f[FieldActionKind] = string(a.Kind)
	f[FieldRecordID] = a.RecordID()
	return f
}

func (f LogFields) WithSync(status core.SyncStatus, queueLen int) LogFields {
	f[FieldSyncStatus] = status.String()
	f[FieldQueueLen] = queueLen
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
