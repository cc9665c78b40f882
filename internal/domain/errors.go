package domain

import "errors"

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// Window errors
	ErrInvalidWindow    = errors.New("activity window start must be before its end")
	ErrWindowNotStarted = errors.New("activity has not started yet")

	// Activity errors
	ErrActivityNotFound        = errors.New("activity not found")
	ErrActivityUnavailable     = errors.New("activity data is unavailable")
	ErrQuestionNotFound        = errors.New("question not found in this activity")
	ErrInvalidAccessKey        = errors.New("invalid access key")
	ErrUnsupportedActivityKind = errors.New("unsupported activity kind")

	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrActionInFlight    = errors.New("a previous request for this action is still in progress")
	ErrNotCodingQuestion = errors.New("question does not accept code")
	ErrNotQuizQuestion   = errors.New("question does not accept an option")
	ErrInvalidOption     = errors.New("selected option is out of range")

	// Execution errors
	ErrExecutionUnavailable = errors.New("code execution service failed")
	ErrExecutionTimeout     = errors.New("code execution timed out")

	// Backend errors
	ErrBackendUnavailable = errors.New("application backend request failed")

	// General errors
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Validation errors. Each one unwraps to ErrValidation.
var (
	ErrEmptySourceCode     = &DomainError{Err: ErrValidation, Message: "source code is empty", Code: "empty_source_code"}
	ErrEmptyAccessKey      = &DomainError{Err: ErrValidation, Message: "access key is empty", Code: "empty_access_key"}
	ErrNoOptionSelected    = &DomainError{Err: ErrValidation, Message: "no option selected", Code: "no_option_selected"}
	ErrUnsupportedLanguage = &DomainError{Err: ErrValidation, Message: "language is not supported", Code: "unsupported_language"}
	ErrMissingQuestion     = &DomainError{Err: ErrValidation, Message: "question id is required", Code: "missing_question"}
)

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with the given error and message
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// ErrorCode returns the machine readable code carried by err, if any.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	return ""
}
