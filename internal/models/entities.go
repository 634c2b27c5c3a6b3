// internal/models/entities.go
package models

// Job statuses. Any value may follow any other; unknown values are tolerated.
const (
	JobStatusPending   = "pending"
	JobStatusAccepted  = "accepted"
	JobStatusEnRoute   = "enRoute"
	JobStatusAtPickup  = "atPickup"
	JobStatusLoaded    = "loaded"
	JobStatusInTransit = "inTransit"
	JobStatusAtDropoff = "atDropoff"
	JobStatusCompleted = "completed"
	JobStatusCancelled = "cancelled"
)

const (
	ListingStatusActive   = "active"
	ListingStatusInactive = "inactive"

	ListingTypeOffering   = "offering"
	ListingTypeRequesting = "requesting"

	UserStatusApproved = "approved"
)

// Job is the notification-relevant view of a job document.
type Job struct {
	ID        string
	Status    string
	Material  string
	HostUID   string
	HaulerUID string
}

// JobFromDocument reads a job snapshot. Falsy fields come back empty.
func JobFromDocument(id string, d Document) Job {
	status, _ := d.Value("status")
	return Job{
		ID:        id,
		Status:    Stringify(status),
		Material:  d.Text("material"),
		HostUID:   d.Text("hostUid"),
		HaulerUID: d.Text("haulerUid"),
	}
}

// Listing is the notification-relevant view of a marketplace listing.
type Listing struct {
	ID       string
	Status   string
	Type     string
	Material string
	Quantity string
	Unit     string
	Address  string
	Region   string
}

// ListingFromDocument reads a listing snapshot. Falsy fields come back empty.
func ListingFromDocument(id string, d Document) Listing {
	status, _ := d.Value("status")
	return Listing{
		ID:       id,
		Status:   Stringify(status),
		Type:     d.Text("type"),
		Material: d.Text("material"),
		Quantity: d.Text("quantity"),
		Unit:     d.Text("unit"),
		Address:  d.Text("address"),
		Region:   d.Text("region"),
	}
}

// IsActive reports whether the listing is published.
func (l Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// User holds the per-user delivery state owned by the endpoint registry.
type User struct {
	UID                     string                 `json:"uid" bson:"_id"`
	Email                   string                 `json:"email,omitempty" bson:"email,omitempty"`
	NotificationPreferences map[string]interface{} `json:"notificationPreferences,omitempty" bson:"notificationPreferences,omitempty"`
	DeliveryEndpoints       []string               `json:"deliveryEndpoints,omitempty" bson:"deliveryEndpoints,omitempty"`
}
