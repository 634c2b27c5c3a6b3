package gateway

import (
	"context"

	"notification-workers/internal/models"
)

// ErrorClass classifies a failed endpoint delivery.
type ErrorClass string

const (
	// ErrorClassInvalidEndpoint means the endpoint is permanently unusable and must be pruned.
	ErrorClassInvalidEndpoint ErrorClass = "invalid_endpoint"
	// ErrorClassOther covers transient or unknown failures; the endpoint is kept.
	ErrorClassOther ErrorClass = "other"
)

// EndpointResult is the outcome of delivering to one endpoint of a multicast.
type EndpointResult struct {
	Endpoint   string     `json:"endpoint"`
	Success    bool       `json:"success"`
	ErrorClass ErrorClass `json:"errorClass,omitempty"`
	Err        error      `json:"-"`
}

// Sender is the push transport. SendMulticast returns one result per endpoint,
// in input order; a non-nil error means the request failed as a whole.
type Sender interface {
	SendMulticast(ctx context.Context, endpoints []string, intent models.NotificationIntent) ([]EndpointResult, error)
	SendToTopic(ctx context.Context, topic string, intent models.NotificationIntent) error
}
