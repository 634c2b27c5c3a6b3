// Package validation checks inbound change event envelopes before dispatch.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/models"
	"notification-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

// DispatchTaskType is the activity whose input schema describes a change event envelope.
const DispatchTaskType = "dispatch-change-event"

// ValidateDocument validates a decoded document against a JSON schema.
func ValidateDocument(schema map[string]interface{}, document interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// DecodeChangeEvent parses and validates a JSON change event envelope.
func DecodeChangeEvent(raw []byte) (models.ChangeEvent, error) {
	var event models.ChangeEvent

	var document map[string]interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return event, apperrors.NewMalformedEventError(fmt.Sprintf("decode envelope: %v", err))
	}

	reg, err := registry.Default()
	if err != nil {
		return event, apperrors.NewInternalError(err)
	}
	activity, err := reg.Find(DispatchTaskType)
	if err != nil {
		return event, apperrors.NewInternalError(err)
	}
	if err := ValidateDocument(activity.InputSchema, document); err != nil {
		return event, apperrors.NewMalformedEventError(err.Error())
	}

	if err := json.Unmarshal(raw, &event); err != nil {
		return event, apperrors.NewMalformedEventError(fmt.Sprintf("decode envelope: %v", err))
	}
	if err := event.Validate(); err != nil {
		return event, apperrors.NewMalformedEventError(err.Error())
	}
	return event, nil
}
