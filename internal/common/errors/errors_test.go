package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_UnwrapAndIsCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("load user: %w", NewStoreUnavailableError("load", cause))

	assert.True(t, IsCode(err, ErrCodeStoreUnavailable))
	assert.False(t, IsCode(err, ErrCodePushSendFailed))
	assert.ErrorIs(t, err, cause)

	stdErr := Normalize(err)
	require.NotNil(t, stdErr)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "connection refused")
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	stdErr := Normalize(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	retryable := ConvertToBPMNError(NewPushSendFailedError("u1", errors.New("throttled")))
	assert.Equal(t, string(ErrCodePushSendFailed), retryable.Code)
	assert.Equal(t, 3, retryable.Retries)

	terminal := ConvertToBPMNError(NewMalformedEventError("entityId is required"))
	assert.Equal(t, 0, terminal.Retries)
	vars := terminal.ToErrorVariables()
	assert.Equal(t, string(ErrCodeMalformedEvent), vars["errorCode"])
	assert.Equal(t, "entityId is required", vars["errorDetails"])
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeStoreUnavailable:    "STORE",
		ErrCodeMalformedDocument:   "STORE",
		ErrCodeEndpointPruneFailed: "STORE",
		ErrCodePushSendFailed:      "PUSH",
		ErrCodeTopicSendFailed:     "PUSH",
		ErrCodeEmailSendFailed:     "EMAIL",
		ErrCodeMalformedEvent:      "VALIDATION",
		ErrCodeUnsupportedEntity:   "VALIDATION",
		ErrCodeJournalWriteFailed:  "JOURNAL",
		ErrCodeInternal:            "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), code)
	}
}

func TestWithMetadata(t *testing.T) {
	err := NewTopicSendFailedError("job_j1", errors.New("not found")).WithMetadata("attempt", 1)
	assert.Equal(t, 1, err.Metadata["attempt"])
	assert.Contains(t, err.Error(), "TOPIC_SEND_FAILED")
}
