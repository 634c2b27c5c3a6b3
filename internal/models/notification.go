// internal/models/notification.go
package models

// Notification types carried in the data payload under "type".
const (
	TypeJobUpdate       = "job_update"
	TypeNewListing      = "new_listing"
	TypeAccountApproved = "account_approved"
	TypeMessage         = "message"
)

// NotificationIntent is the composed content of one notification.
// Data values are already strings; the push transport carries nothing else.
type NotificationIntent struct {
	Type  string            `json:"type"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// Targets lists who an event is delivered to.
type Targets struct {
	Direct []string `json:"direct,omitempty"` // user ids
	Topics []string `json:"topics,omitempty"` // broadcast topic names
}
