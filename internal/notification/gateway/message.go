package gateway

import (
	"encoding/json"

	"notification-workers/internal/common/config"
	"notification-workers/internal/models"
)

// Platform hints applied to every push.
type PlatformHints struct {
	AndroidPriority  string
	AndroidChannelID string
	AndroidSound     string
	APNSSound        string
	APNSBadge        int
}

// HintsFromConfig reads the platform hints from the push configuration.
func HintsFromConfig(cfg config.PushConfig) PlatformHints {
	return PlatformHints{
		AndroidPriority:  cfg.Android.Priority,
		AndroidChannelID: cfg.Android.ChannelID,
		AndroidSound:     cfg.Android.Sound,
		APNSSound:        cfg.APNS.Sound,
		APNSBadge:        cfg.APNS.Badge,
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroidNotification struct {
	ChannelID string `json:"channel_id,omitempty"`
	Sound     string `json:"sound,omitempty"`
}

type fcmAndroid struct {
	Priority     string                 `json:"priority,omitempty"`
	Notification fcmAndroidNotification `json:"notification"`
}

type fcmMessage struct {
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroid        `json:"android"`
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type aps struct {
	Alert apsAlert `json:"alert"`
	Sound string   `json:"sound,omitempty"`
	Badge int      `json:"badge,omitempty"`
}

// buildMessage renders the SNS MessageStructure=json document. Each platform
// key holds its own payload encoded as a JSON string.
func buildMessage(intent models.NotificationIntent, hints PlatformHints) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"fcmV1Message": map[string]interface{}{
			"message": fcmMessage{
				Notification: fcmNotification{Title: intent.Title, Body: intent.Body},
				Data:         intent.Data,
				Android: fcmAndroid{
					Priority: hints.AndroidPriority,
					Notification: fcmAndroidNotification{
						ChannelID: hints.AndroidChannelID,
						Sound:     hints.AndroidSound,
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	// Custom data rides next to "aps" at the top level of an APNs payload.
	apnsPayload := make(map[string]interface{}, len(intent.Data)+1)
	for k, v := range intent.Data {
		apnsPayload[k] = v
	}
	apnsPayload["aps"] = aps{
		Alert: apsAlert{Title: intent.Title, Body: intent.Body},
		Sound: hints.APNSSound,
		Badge: hints.APNSBadge,
	}
	apns, err := json.Marshal(apnsPayload)
	if err != nil {
		return "", err
	}

	msg, err := json.Marshal(map[string]string{
		"default":      intent.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(msg), nil
}
