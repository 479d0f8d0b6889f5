package ask

// Code is the fixed user-visible error enum. The API layer maps each code to
// an HTTP status; nothing outside this set ever reaches a client.
type Code string

const (
	CodeRateLimited      Code = "rate_limited"
	CodeInvalidInput     Code = "invalid_input"
	CodeSecurityRejected Code = "security_rejected"
	CodeUnanswerable     Code = "unanswerable"
	CodeLLMTimeout       Code = "llm_timeout"
	CodeLLMAuth          Code = "llm_auth"
	CodeLLMRateLimited   Code = "llm_rate_limited"
	CodeLLMUnavailable   Code = "llm_unavailable"
	CodeSchemaInvalid    Code = "schema_invalid"
	CodeDBError          Code = "db_error"
	CodeInternal         Code = "internal_error"
)

// Error is the pipeline's terminal failure. Message is safe to show to the
// caller; the wrapped cause carries the detail for logs only.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}
