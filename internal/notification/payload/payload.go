// Package payload turns change events into user-facing notification content.
//
// Composition is a pure function of the event snapshot: the same input always
// yields the same title, body and data payload.
package payload

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"notification-workers/internal/models"
)

const (
	defaultMaterialTitle = "Material"
	defaultUnit          = "units"
	unknownQuantity      = "?"
	unknownLocation      = "Location not specified"

	accountApprovedTitle = "Account Approved! 🎉"
	accountApprovedBody  = "Your %s account has been verified. You can now start using the app."
)

// Composer builds NotificationIntents. AppName is used in account copy.
type Composer struct {
	AppName string
}

func NewComposer(appName string) *Composer {
	return &Composer{AppName: appName}
}

// StatusLabel returns the display label for a job status. Unknown statuses
// fall back to "Status: {status}".
func StatusLabel(status string) string {
	switch status {
	case models.JobStatusPending:
		return "Waiting for Hauler"
	case models.JobStatusAccepted:
		return "Hauler Accepted"
	case models.JobStatusEnRoute:
		return "Hauler En Route"
	case models.JobStatusAtPickup:
		return "Hauler at Pickup"
	case models.JobStatusLoaded:
		return "Material Loaded"
	case models.JobStatusInTransit:
		return "In Transit"
	case models.JobStatusAtDropoff:
		return "At Dropoff"
	case models.JobStatusCompleted:
		return "Job Completed! ✅"
	case models.JobStatusCancelled:
		return "Job Cancelled ❌"
	default:
		return "Status: " + status
	}
}

// JobUpdate composes the notification for a job status transition.
func (c *Composer) JobUpdate(job models.Job) models.NotificationIntent {
	material := job.Material
	if material == "" {
		material = defaultMaterialTitle
	}

	return models.NotificationIntent{
		Type:  models.TypeJobUpdate,
		Title: "Job Update: " + material,
		Body:  StatusLabel(job.Status),
		Data: map[string]string{
			"type":   models.TypeJobUpdate,
			"jobId":  job.ID,
			"status": job.Status,
		},
	}
}

// NewListing composes the broadcast for a newly published listing.
func (c *Composer) NewListing(listing models.Listing) models.NotificationIntent {
	typeLabel := "Needed"
	if listing.Type == models.ListingTypeOffering {
		typeLabel = "Available"
	}

	quantity := listing.Quantity
	if quantity == "" {
		quantity = unknownQuantity
	}
	unit := listing.Unit
	if unit == "" {
		unit = defaultUnit
	}
	address := listing.Address
	if address == "" {
		address = unknownLocation
	}

	return models.NotificationIntent{
		Type:  models.TypeNewListing,
		Title: fmt.Sprintf("%s: %s", typeLabel, MaterialLabel(listing.Material)),
		Body:  fmt.Sprintf("%s %s — %s", quantity, unit, address),
		Data: map[string]string{
			"type":        models.TypeNewListing,
			"listingId":   listing.ID,
			"material":    listing.Material,
			"listingType": listing.Type,
		},
	}
}

// RegionalListing composes the region topic variant of a listing broadcast:
// same copy, data limited to the type and listing id.
func (c *Composer) RegionalListing(listing models.Listing) models.NotificationIntent {
	intent := c.NewListing(listing)
	intent.Data = map[string]string{
		"type":      models.TypeNewListing,
		"listingId": listing.ID,
	}
	return intent
}

// AccountApproved composes the notification sent once a user is approved.
func (c *Composer) AccountApproved(uid string) models.NotificationIntent {
	return models.NotificationIntent{
		Type:  models.TypeAccountApproved,
		Title: accountApprovedTitle,
		Body:  fmt.Sprintf(accountApprovedBody, c.AppName),
		Data: map[string]string{
			"type": models.TypeAccountApproved,
			"uid":  uid,
		},
	}
}

// MaterialLabel upper-cases the first letter of material, defaulting to "Material".
func MaterialLabel(material string) string {
	if material == "" {
		return defaultMaterialTitle
	}
	r, size := utf8.DecodeRuneInString(material)
	return string(unicode.ToUpper(r)) + material[size:]
}
