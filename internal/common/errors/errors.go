// Package errors provides standardized error handling for the notification dispatch workers.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeMalformedDocument   ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeEndpointPruneFailed ErrorCode = "ENDPOINT_PRUNE_FAILED"

	ErrCodePushSendFailed  ErrorCode = "PUSH_SEND_FAILED"
	ErrCodeTopicSendFailed ErrorCode = "TOPIC_SEND_FAILED"
	ErrCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"

	ErrCodeMalformedEvent     ErrorCode = "MALFORMED_EVENT"
	ErrCodeUnsupportedEntity  ErrorCode = "UNSUPPORTED_ENTITY"
	ErrCodeJournalWriteFailed ErrorCode = "JOURNAL_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying driver or transport error.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair used as log context.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, retryable bool, cause error, details string) *StandardError {
	if details == "" && cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewStoreUnavailableError wraps a document store read/write failure.
func NewStoreUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Document store operation failed", true, err,
		fmt.Sprintf("operation: %s, error: %v", operation, err))
}

// NewMalformedDocumentError reports a stored document that cannot be decoded.
func NewMalformedDocumentError(collection, id string, err error) *StandardError {
	return newError(ErrCodeMalformedDocument, "Stored document could not be decoded", false, err,
		fmt.Sprintf("collection: %s, id: %s, error: %v", collection, id, err))
}

// NewEndpointPruneFailedError reports a failed set-difference update of a user's endpoints.
func NewEndpointPruneFailedError(uid string, err error) *StandardError {
	return newError(ErrCodeEndpointPruneFailed, "Failed to prune invalid delivery endpoints", true, err,
		fmt.Sprintf("uid: %s, error: %v", uid, err))
}

// NewPushSendFailedError wraps a multicast request that failed as a whole.
func NewPushSendFailedError(uid string, err error) *StandardError {
	return newError(ErrCodePushSendFailed, "Push multicast failed", true, err,
		fmt.Sprintf("uid: %s, error: %v", uid, err))
}

// NewTopicSendFailedError wraps a failed topic publish.
func NewTopicSendFailedError(topic string, err error) *StandardError {
	return newError(ErrCodeTopicSendFailed, "Topic publish failed", false, err,
		fmt.Sprintf("topic: %s, error: %v", topic, err))
}

// NewEmailSendFailedError wraps a failed email delivery.
func NewEmailSendFailedError(uid string, err error) *StandardError {
	return newError(ErrCodeEmailSendFailed, "Email delivery failed", true, err,
		fmt.Sprintf("uid: %s, error: %v", uid, err))
}

// NewMalformedEventError reports a change event envelope that failed decoding or validation.
func NewMalformedEventError(details string) *StandardError {
	return newError(ErrCodeMalformedEvent, "Change event is malformed", false, nil, details)
}

// NewUnsupportedEntityError reports an entity kind the dispatcher does not handle.
func NewUnsupportedEntityError(kind string) *StandardError {
	return newError(ErrCodeUnsupportedEntity, "Unsupported entity kind", false, nil,
		fmt.Sprintf("entityKind: %s", kind))
}

// NewJournalWriteFailedError wraps a failed delivery journal write.
func NewJournalWriteFailedError(err error) *StandardError {
	return newError(ErrCodeJournalWriteFailed, "Delivery journal write failed", false, err, "")
}

// NewInternalError wraps anything unexpected, including recovered panics.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", false, err, "")
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsCode reports whether err is a StandardError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

// GetRetryCount returns how many times a Zeebe job failing with code should be retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodePushSendFailed,
		ErrCodeEndpointPruneFailed,
		ErrCodeEmailSendFailed:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory groups codes for log aggregation.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "DOCUMENT") || strings.Contains(codeStr, "PRUNE"):
		return "STORE"
	case strings.Contains(codeStr, "PUSH") || strings.Contains(codeStr, "TOPIC"):
		return "PUSH"
	case strings.Contains(codeStr, "EMAIL"):
		return "EMAIL"
	case strings.Contains(codeStr, "EVENT") || strings.Contains(codeStr, "ENTITY"):
		return "VALIDATION"
	case strings.Contains(codeStr, "JOURNAL"):
		return "JOURNAL"
	default:
		return "OTHER"
	}
}
