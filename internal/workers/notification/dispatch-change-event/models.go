// internal/workers/notification/dispatch-change-event/models.go
package dispatchchangeevent

// Output is written back to the process instance on completion.
type Output struct {
	InvocationID     string `json:"invocationId"`
	Status           string `json:"status"` // dispatched, skipped, duplicate, failed
	NotificationType string `json:"notificationType,omitempty"`
	Recipients       int    `json:"recipients"`
	Topics           int    `json:"topics"`
	DispatchedAt     string `json:"dispatchedAt"` // ISO 8601
}
