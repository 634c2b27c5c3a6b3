// Package preference decides whether a user accepts a direct notification.
package preference

import "notification-workers/internal/models"

// Preference categories stored under the user's notification preferences.
const (
	CategoryNewListings = "newListings"
	CategoryJobUpdates  = "jobUpdates"
	CategoryMessages    = "messages"
)

// CategoryFor maps a notification type to the preference category that gates it.
// Types without a category (account approval) are never filtered.
func CategoryFor(notificationType string) (string, bool) {
	switch notificationType {
	case models.TypeNewListing:
		return CategoryNewListings, true
	case models.TypeJobUpdate:
		return CategoryJobUpdates, true
	case models.TypeMessage:
		return CategoryMessages, true
	}
	return "", false
}

// Admit returns false only when the stored preference for category is the boolean false.
// A missing key, a nil map or any other value admits the notification.
func Admit(user *models.User, category string) bool {
	if user == nil || user.NotificationPreferences == nil {
		return true
	}
	v, ok := user.NotificationPreferences[category]
	if !ok {
		return true
	}
	b, isBool := v.(bool)
	return !isBool || b
}

// AdmitType applies Admit to the category of notificationType, if it has one.
func AdmitType(user *models.User, notificationType string) bool {
	category, ok := CategoryFor(notificationType)
	if !ok {
		return true
	}
	return Admit(user, category)
}
