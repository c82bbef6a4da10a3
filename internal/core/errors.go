package core

// Error codes for domain errors surfaced to clients.
const (
	// ErrCodeAuthFailed covers invalid, expired, or reused handoff tokens.
	// The connection is closed after this error.
	ErrCodeAuthFailed = "auth_failed"
	// ErrCodeValidation covers malformed arguments and out-of-range amounts.
	ErrCodeValidation = "validation_failed"
	// ErrCodeForbidden covers missing ownership, bans, and non-admin access.
	ErrCodeForbidden = "forbidden"
	// ErrCodeConflict covers duplicate names, insufficient balance, caps.
	ErrCodeConflict = "conflict"
	// ErrCodeRaceLost covers losing a claim race or a counterpart going
	// insolvent mid-operation; any deducted funds were already refunded.
	ErrCodeRaceLost = "race_lost"
	// ErrCodeStore covers transient storage failures; no partial writes.
	ErrCodeStore = "store_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
