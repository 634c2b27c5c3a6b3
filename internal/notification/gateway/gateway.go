// Package gateway delivers composed notifications to user endpoints and topics.
package gateway

import (
	"context"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/registry"
)

// DirectResult summarizes one direct multicast to a user.
type DirectResult struct {
	UID       string           `json:"uid"`
	Attempted int              `json:"attempted"`
	Delivered int              `json:"delivered"`
	Invalid   []string         `json:"invalid,omitempty"`
	Transient int              `json:"transient"`
	Pruned    bool             `json:"pruned"`
	Endpoints []EndpointResult `json:"-"`
	Err       error            `json:"-"`
}

// Skipped reports whether nothing was sent because the user had no endpoints.
func (r DirectResult) Skipped() bool {
	return r.Attempted == 0 && r.Err == nil
}

// BroadcastResult is the outcome of a topic send. A failed broadcast carries no
// per-recipient detail and is not actionable; callers may drop it.
type BroadcastResult struct {
	Topic string `json:"topic"`
	Sent  bool   `json:"sent"`
	Err   error  `json:"-"`
}

// Gateway sends notifications and reconciles invalid endpoints with the registry.
type Gateway struct {
	sender   Sender
	registry registry.Registry
	logger   logger.Logger
}

func New(sender Sender, reg registry.Registry, log logger.Logger) *Gateway {
	return &Gateway{
		sender:   sender,
		registry: reg,
		logger:   log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

// SendDirect multicasts intent to all of user's endpoints and prunes the ones
// reported invalid. An empty endpoint set is a no-op.
func (g *Gateway) SendDirect(ctx context.Context, user *models.User, intent models.NotificationIntent) DirectResult {
	result := DirectResult{UID: user.UID}
	if len(user.DeliveryEndpoints) == 0 {
		g.logger.Debug("no delivery endpoints", map[string]interface{}{"uid": user.UID})
		return result
	}

	result.Attempted = len(user.DeliveryEndpoints)
	outcomes, err := g.sender.SendMulticast(ctx, user.DeliveryEndpoints, intent)
	if err != nil {
		result.Err = apperrors.NewPushSendFailedError(user.UID, err)
		metrics.PushEndpointResults.WithLabelValues("request_failed").Add(float64(result.Attempted))
		return result
	}
	result.Endpoints = outcomes

	for _, o := range outcomes {
		switch {
		case o.Success:
			result.Delivered++
			metrics.PushEndpointResults.WithLabelValues("success").Inc()
		case o.ErrorClass == ErrorClassInvalidEndpoint:
			result.Invalid = append(result.Invalid, o.Endpoint)
			metrics.PushEndpointResults.WithLabelValues(string(ErrorClassInvalidEndpoint)).Inc()
		default:
			result.Transient++
			metrics.PushEndpointResults.WithLabelValues(string(ErrorClassOther)).Inc()
			g.logger.Debug("transient endpoint failure", map[string]interface{}{
				"uid":   user.UID,
				"error": o.Err,
			})
		}
	}

	if len(result.Invalid) == 0 {
		return result
	}

	if err := g.registry.PruneEndpoints(ctx, user.UID, result.Invalid); err != nil {
		result.Err = err
		return result
	}
	result.Pruned = true
	metrics.EndpointsPruned.Add(float64(len(result.Invalid)))
	g.logger.Info("removed invalid endpoints", map[string]interface{}{
		"uid":   user.UID,
		"count": len(result.Invalid),
	})

	return result
}

// Broadcast sends intent to a topic once.
func (g *Gateway) Broadcast(ctx context.Context, topic string, intent models.NotificationIntent) BroadcastResult {
	if err := g.sender.SendToTopic(ctx, topic, intent); err != nil {
		metrics.TopicPublishes.WithLabelValues("failed").Inc()
		return BroadcastResult{Topic: topic, Err: apperrors.NewTopicSendFailedError(topic, err)}
	}
	metrics.TopicPublishes.WithLabelValues("sent").Inc()
	return BroadcastResult{Topic: topic, Sent: true}
}
