package dispatcher

import (
	"context"
	"errors"
	"testing"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/gateway"
	"notification-workers/internal/notification/journal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	d       *Dispatcher
	sender  *recordingSender
	reg     *memoryRegistry
	dedup   *mockDedup
	journal *mockJournal
	mailer  *mockMailer
}

func newHarness(t *testing.T, users ...*models.User) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)
	h := &harness{
		sender:  newRecordingSender(),
		reg:     newMemoryRegistry(users...),
		dedup:   &mockDedup{seen: map[string]bool{}},
		journal: &mockJournal{},
		mailer:  &mockMailer{},
	}
	h.d = New(Deps{
		Registry: h.reg,
		Delivery: gateway.New(h.sender, h.reg, log),
		Dedup:    h.dedup,
		Journal:  h.journal,
		Mailer:   h.mailer,
		Logger:   log,
	}, Options{AppName: "FillExchange", MailOnApproval: true})
	return h
}

func user(uid string, endpoints ...string) *models.User {
	return &models.User{UID: uid, Email: uid + "@example.com", DeliveryEndpoints: endpoints}
}

func jobEvent(before, after models.Document) models.ChangeEvent {
	return models.ChangeEvent{EventID: "evt-job", EntityKind: models.EntityJob, EntityID: "J1", Before: before, After: after}
}

func listingEvent(before, after models.Document) models.ChangeEvent {
	return models.ChangeEvent{EventID: "evt-listing", EntityKind: models.EntityListing, EntityID: "L1", Before: before, After: after}
}

func userEvent(before, after models.Document) models.ChangeEvent {
	return models.ChangeEvent{EventID: "evt-user", EntityKind: models.EntityUser, EntityID: "U9", Before: before, After: after}
}

func TestHandle_JobStatusChange_NotifiesHostHaulerAndTopic(t *testing.T) {
	h := newHarness(t, user("H1", "h-1"), user("U2", "u-1", "u-2"))

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1", "haulerUid": "U2", "material": "gravel"},
		models.Document{"status": "enRoute", "hostUid": "H1", "haulerUid": "U2", "material": "gravel"},
	))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Equal(t, models.TypeJobUpdate, report.NotificationType)
	assert.Equal(t, [][]string{{"h-1"}, {"u-1", "u-2"}}, h.sender.multicastTargets())
	assert.Equal(t, []string{"job_J1"}, h.sender.topicNames())

	for _, c := range h.sender.multicasts {
		assert.Equal(t, "Hauler En Route", c.Intent.Body)
		assert.Equal(t, "Job Update: gravel", c.Intent.Title)
		assert.Equal(t, map[string]string{"type": "job_update", "jobId": "J1", "status": "enRoute"}, c.Intent.Data)
	}
}

func TestHandle_JobWithoutStatusChange_SendsNothing(t *testing.T) {
	tests := []struct {
		name   string
		before models.Document
		after  models.Document
	}{
		{"same status", models.Document{"status": "loaded", "hostUid": "H1"}, models.Document{"status": "loaded", "hostUid": "H1", "material": "sand"}},
		{"creation", nil, models.Document{"status": "pending", "hostUid": "H1"}},
		{"both absent", models.Document{"hostUid": "H1"}, models.Document{"hostUid": "H1"}},
		{"numeric widths", models.Document{"status": int32(3), "hostUid": "H1"}, models.Document{"status": float64(3), "hostUid": "H1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, user("H1", "h-1"))

			report := h.d.Handle(context.Background(), jobEvent(tt.before, tt.after))

			assert.Equal(t, OutcomeSkipped, report.Outcome)
			assert.Empty(t, h.sender.multicasts)
			assert.Empty(t, h.sender.topics)
			assert.Empty(t, h.dedup.marked)
		})
	}
}

func TestHandle_JobRecipients(t *testing.T) {
	tests := []struct {
		name       string
		after      models.Document
		wantDirect [][]string
	}{
		{"host equals hauler", models.Document{"status": "loaded", "hostUid": "H1", "haulerUid": "H1"}, [][]string{{"h-1"}}},
		{"no hauler", models.Document{"status": "loaded", "hostUid": "H1"}, [][]string{{"h-1"}}},
		{"null hauler", models.Document{"status": "loaded", "hostUid": "H1", "haulerUid": nil}, [][]string{{"h-1"}}},
		{"no host", models.Document{"status": "loaded", "haulerUid": "U2"}, [][]string{{"u-1"}}},
		{"nobody", models.Document{"status": "loaded"}, [][]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, user("H1", "h-1"), user("U2", "u-1"))

			h.d.Handle(context.Background(), jobEvent(models.Document{"status": "atPickup"}, tt.after))

			assert.Equal(t, tt.wantDirect, h.sender.multicastTargets())
			assert.Equal(t, []string{"job_J1"}, h.sender.topicNames())
		})
	}
}

func TestHandle_JobUnknownStatusFallsBack(t *testing.T) {
	h := newHarness(t, user("H1", "h-1"))

	h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "pending", "hostUid": "H1"},
		models.Document{"status": "onHold", "hostUid": "H1"},
	))

	require.Len(t, h.sender.multicasts, 1)
	assert.Equal(t, "Status: onHold", h.sender.multicasts[0].Intent.Body)
	assert.Equal(t, "Job Update: Material", h.sender.multicasts[0].Intent.Title)
}

func TestHandle_OneRecipientFailureDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t, user("H1", "h-1"), user("U2", "u-1"))
	h.sender.failMulticast["h-1"] = true

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1", "haulerUid": "U2"},
		models.Document{"status": "enRoute", "hostUid": "H1", "haulerUid": "U2"},
	))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Len(t, h.sender.multicasts, 2)
	assert.Equal(t, []string{"job_J1"}, h.sender.topicNames())
	require.Len(t, report.Direct, 2)
	assert.Equal(t, journal.RecipientFailed, report.Direct[0].Status)
	assert.Equal(t, journal.RecipientSent, report.Direct[1].Status)
}

func TestHandle_StoreFailureForOneRecipient(t *testing.T) {
	h := newHarness(t, user("H1", "h-1"), user("U2", "u-1"))
	h.reg.loadErr["H1"] = errors.New("store unreachable")

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "loaded", "hostUid": "H1", "haulerUid": "U2"},
		models.Document{"status": "inTransit", "hostUid": "H1", "haulerUid": "U2"},
	))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Equal(t, [][]string{{"u-1"}}, h.sender.multicastTargets())
	assert.Equal(t, []string{"job_J1"}, h.sender.topicNames())
	assert.Equal(t, journal.RecipientFailed, report.Direct[0].Status)
}

func TestHandle_PanicInOneBranchIsContained(t *testing.T) {
	h := newHarness(t, user("H1", "h-1"), user("U2", "u-1"))
	h.reg.panicFor = "H1"

	var report Report
	require.NotPanics(t, func() {
		report = h.d.Handle(context.Background(), jobEvent(
			models.Document{"status": "loaded", "hostUid": "H1", "haulerUid": "U2"},
			models.Document{"status": "atDropoff", "hostUid": "H1", "haulerUid": "U2"},
		))
	})

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Equal(t, [][]string{{"u-1"}}, h.sender.multicastTargets())
	assert.Equal(t, journal.RecipientFailed, report.Direct[0].Status)
}

func TestHandle_AbsentRecipientIsSkipped(t *testing.T) {
	h := newHarness(t, user("U2", "u-1"))

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "ghost", "haulerUid": "U2"},
		models.Document{"status": "enRoute", "hostUid": "ghost", "haulerUid": "U2"},
	))

	assert.Equal(t, [][]string{{"u-1"}}, h.sender.multicastTargets())
	assert.Equal(t, journal.RecipientAbsent, report.Direct[0].Status)
}

func TestHandle_EmptyEndpointSetIsNoop(t *testing.T) {
	h := newHarness(t, user("H1"))

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1"},
		models.Document{"status": "enRoute", "hostUid": "H1"},
	))

	assert.Empty(t, h.sender.multicasts)
	assert.Equal(t, journal.RecipientNoEndpoints, report.Direct[0].Status)
	assert.Equal(t, []string{"job_J1"}, h.sender.topicNames())
}

func TestHandle_PreferenceFilter(t *testing.T) {
	optedOut := user("H1", "h-1")
	optedOut.NotificationPreferences = map[string]interface{}{"jobUpdates": false}
	stringFalse := user("U2", "u-1")
	stringFalse.NotificationPreferences = map[string]interface{}{"jobUpdates": "false", "newListings": false}
	h := newHarness(t, optedOut, stringFalse)

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1", "haulerUid": "U2"},
		models.Document{"status": "completed", "hostUid": "H1", "haulerUid": "U2"},
	))

	assert.Equal(t, [][]string{{"u-1"}}, h.sender.multicastTargets())
	assert.Equal(t, journal.RecipientFiltered, report.Direct[0].Status)
	assert.Equal(t, []string{"job_J1"}, h.sender.topicNames(), "topic sends bypass preferences")
}

func TestHandle_PrunesOnlyInvalidEndpoints(t *testing.T) {
	h := newHarness(t, user("H1", "a", "b", "c"))
	h.sender.outcomes["a"] = gateway.ErrorClassInvalidEndpoint
	h.sender.outcomes["c"] = gateway.ErrorClassOther

	event := jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1"},
		models.Document{"status": "enRoute", "hostUid": "H1"},
	)
	report := h.d.Handle(context.Background(), event)

	assert.Equal(t, []string{"b", "c"}, h.reg.endpoints("H1"))
	assert.Equal(t, []string{"a"}, report.Direct[0].Invalid)
	assert.True(t, report.Direct[0].Pruned)

	// Redelivery of the same event leaves the stored set unchanged.
	delete(h.sender.outcomes, "a")
	h.d.Handle(context.Background(), event)
	assert.Equal(t, []string{"b", "c"}, h.reg.endpoints("H1"))
}

func TestHandle_ListingCreation(t *testing.T) {
	h := newHarness(t)

	report := h.d.Handle(context.Background(), listingEvent(nil, models.Document{
		"status":   "active",
		"type":     "offering",
		"material": "gravel",
		"quantity": 20,
		"unit":     "tons",
		"address":  "5th & Main",
		"region":   "north",
	}))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Empty(t, h.sender.multicasts)
	assert.Equal(t, []string{"all_listings", "listings_north"}, h.sender.topicNames())
	data := make(map[string]map[string]string)
	for _, c := range h.sender.topics {
		assert.Equal(t, "Available: Gravel", c.Intent.Title)
		assert.Equal(t, "20 tons — 5th & Main", c.Intent.Body)
		data[c.Topic] = c.Intent.Data
	}
	assert.Equal(t, map[string]string{
		"type":        "new_listing",
		"listingId":   "L1",
		"material":    "gravel",
		"listingType": "offering",
	}, data["all_listings"])
	assert.Equal(t, map[string]string{
		"type":      "new_listing",
		"listingId": "L1",
	}, data["listings_north"])
}

func TestHandle_ListingRules(t *testing.T) {
	tests := []struct {
		name       string
		before     models.Document
		after      models.Document
		wantTopics []string
	}{
		{"active without region", nil, models.Document{"status": "active", "type": "requesting"}, []string{"all_listings"}},
		{"empty region", nil, models.Document{"status": "active", "region": ""}, []string{"all_listings"}},
		{"draft", nil, models.Document{"status": "inactive", "region": "north"}, []string{}},
		{"no status", nil, models.Document{"region": "north"}, []string{}},
		{"update into active", models.Document{"status": "inactive"}, models.Document{"status": "active"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			h.d.Handle(context.Background(), listingEvent(tt.before, tt.after))

			assert.Equal(t, tt.wantTopics, h.sender.topicNames())
			assert.Empty(t, h.sender.multicasts)
		})
	}
}

func TestHandle_BroadcastFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.sender.topicErr = errors.New("no subscribers")

	report := h.d.Handle(context.Background(), listingEvent(nil, models.Document{"status": "active", "region": "south"}))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Equal(t, []string{"all_listings", "listings_south"}, h.sender.topicNames())
	for _, topic := range report.Topics {
		assert.False(t, topic.Sent)
		assert.NotEmpty(t, topic.Error)
	}
}

func TestHandle_UserApproval(t *testing.T) {
	tests := []struct {
		name     string
		before   models.Document
		after    models.Document
		wantSend bool
	}{
		{"pending to approved", models.Document{"status": "pending"}, models.Document{"status": "approved"}, true},
		{"missing to approved", models.Document{}, models.Document{"status": "approved"}, true},
		{"already approved", models.Document{"status": "approved"}, models.Document{"status": "approved", "name": "x"}, false},
		{"approved to suspended", models.Document{"status": "approved"}, models.Document{"status": "suspended"}, false},
		{"pending to rejected", models.Document{"status": "pending"}, models.Document{"status": "rejected"}, false},
		{"creation as approved", nil, models.Document{"status": "approved"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approved := user("U9", "u9-1")
			approved.NotificationPreferences = map[string]interface{}{"jobUpdates": false, "newListings": false}
			h := newHarness(t, approved)

			h.d.Handle(context.Background(), userEvent(tt.before, tt.after))

			if !tt.wantSend {
				assert.Empty(t, h.sender.multicasts)
				assert.Empty(t, h.mailer.sent)
				return
			}
			require.Len(t, h.sender.multicasts, 1)
			intent := h.sender.multicasts[0].Intent
			assert.Equal(t, "Account Approved! 🎉", intent.Title)
			assert.Equal(t, "Your FillExchange account has been verified. You can now start using the app.", intent.Body)
			assert.Equal(t, map[string]string{"type": "account_approved", "uid": "U9"}, intent.Data)
			assert.Empty(t, h.sender.topics)
			assert.Equal(t, []string{"U9"}, h.mailer.sent)
		})
	}
}

func TestHandle_MailFailureStillPushes(t *testing.T) {
	h := newHarness(t, user("U9", "u9-1"))
	h.mailer.err = errors.New("ses throttled")

	report := h.d.Handle(context.Background(), userEvent(models.Document{"status": "pending"}, models.Document{"status": "approved"}))

	assert.Len(t, h.sender.multicasts, 1)
	assert.Equal(t, journal.RecipientSent, report.Direct[0].Status)
}

func TestHandle_Dedup(t *testing.T) {
	event := jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1"},
		models.Document{"status": "enRoute", "hostUid": "H1"},
	)

	t.Run("marks after dispatch", func(t *testing.T) {
		h := newHarness(t, user("H1", "h-1"))
		h.d.Handle(context.Background(), event)
		assert.Equal(t, []string{"evt-job"}, h.dedup.marked)
	})

	t.Run("skips seen events", func(t *testing.T) {
		h := newHarness(t, user("H1", "h-1"))
		h.dedup.seen["evt-job"] = true

		report := h.d.Handle(context.Background(), event)

		assert.Equal(t, OutcomeDuplicate, report.Outcome)
		assert.Empty(t, h.sender.multicasts)
		assert.Empty(t, h.sender.topics)
	})

	t.Run("fails open", func(t *testing.T) {
		h := newHarness(t, user("H1", "h-1"))
		h.dedup.seenErr = errors.New("redis down")

		report := h.d.Handle(context.Background(), event)

		assert.Equal(t, OutcomeDispatched, report.Outcome)
		assert.Len(t, h.sender.multicasts, 1)
	})
}

func TestHandle_Journal(t *testing.T) {
	h := newHarness(t, user("H1", "h-1"))
	h.journal.err = errors.New("index read-only")

	report := h.d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1"},
		models.Document{"status": "enRoute", "hostUid": "H1", "material": "sand"},
	))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	require.Len(t, h.journal.entries, 1)
	entry := h.journal.entries[0]
	assert.Equal(t, report.InvocationID, entry.InvocationID)
	assert.Equal(t, "evt-job", entry.EventID)
	assert.Equal(t, "job_update", entry.NotificationType)
	assert.Equal(t, "Job Update: sand", entry.Title)
	assert.Len(t, entry.Direct, 1)
	assert.Equal(t, []journal.TopicOutcome{{Topic: "job_J1", Sent: true}}, entry.Topics)
	assert.False(t, entry.FinishedAt.Before(entry.StartedAt))
}

func TestHandle_InvalidEvent(t *testing.T) {
	tests := []struct {
		name  string
		event models.ChangeEvent
	}{
		{"unknown kind", models.ChangeEvent{EntityKind: "invoice", EntityID: "I1", After: models.Document{}}},
		{"missing id", models.ChangeEvent{EntityKind: models.EntityJob, After: models.Document{"status": "loaded"}}},
		{"missing after", models.ChangeEvent{EntityKind: models.EntityJob, EntityID: "J1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			report := h.d.Handle(context.Background(), tt.event)

			assert.Equal(t, OutcomeInvalid, report.Outcome)
			assert.NotEmpty(t, report.InvocationID)
			assert.Empty(t, h.sender.topics)
		})
	}
}

func TestNew_DefaultsOptionalDeps(t *testing.T) {
	sender := newRecordingSender()
	reg := newMemoryRegistry(user("H1", "h-1"))
	d := New(Deps{Registry: reg, Delivery: gateway.New(sender, reg, logger.NewNoOpLogger())}, Options{})

	report := d.Handle(context.Background(), jobEvent(
		models.Document{"status": "accepted", "hostUid": "H1"},
		models.Document{"status": "enRoute", "hostUid": "H1"},
	))

	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Len(t, sender.multicasts, 1)
}
