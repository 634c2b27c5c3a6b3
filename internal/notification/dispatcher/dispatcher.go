// Package dispatcher is the entry point for change events. It decides whether
// an event warrants a notification, composes it, resolves recipients and
// drives delivery, isolating failures per recipient.
//
// Handle never returns an error: every failure is logged and counted and the
// invocation completes. Redelivery by the event source is the only retry.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/dedup"
	"notification-workers/internal/notification/email"
	"notification-workers/internal/notification/gateway"
	"notification-workers/internal/notification/journal"
	"notification-workers/internal/notification/payload"
	"notification-workers/internal/notification/preference"
	"notification-workers/internal/notification/recipient"
	"notification-workers/internal/notification/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Invocation outcomes.
const (
	OutcomeDispatched = "dispatched"
	OutcomeSkipped    = "skipped"
	OutcomeDuplicate  = "duplicate"
	OutcomeInvalid    = "invalid"
	OutcomeFailed     = "failed"
)

// Delivery sends to users and topics. Implemented by *gateway.Gateway.
type Delivery interface {
	SendDirect(ctx context.Context, user *models.User, intent models.NotificationIntent) gateway.DirectResult
	Broadcast(ctx context.Context, topic string, intent models.NotificationIntent) gateway.BroadcastResult
}

// Deps are the collaborators of a Dispatcher. Registry and Delivery are
// required; the rest default to no-ops.
type Deps struct {
	Registry      registry.Registry
	Delivery      Delivery
	Dedup         dedup.Store
	Journal       journal.Journal
	Mailer        email.Mailer
	Observability *observability.Observability
	Logger        logger.Logger
}

// Options tune a Dispatcher.
type Options struct {
	AppName string
	// Timeout bounds one invocation. Zero leaves deadlines to the transports.
	Timeout time.Duration
	// MailOnApproval mirrors the account approval notification by email.
	MailOnApproval bool
}

// Report summarizes one invocation for the calling source.
type Report struct {
	InvocationID     string                  `json:"invocationId"`
	Outcome          string                  `json:"outcome"`
	NotificationType string                  `json:"notificationType,omitempty"`
	Direct           []journal.DirectOutcome `json:"direct,omitempty"`
	Topics           []journal.TopicOutcome  `json:"topics,omitempty"`
}

type Dispatcher struct {
	registry registry.Registry
	delivery Delivery
	dedup    dedup.Store
	journal  journal.Journal
	mailer   email.Mailer
	obs      *observability.Observability
	logger   logger.Logger
	composer *payload.Composer
	opts     Options
	newID    func() string
	now      func() time.Time
}

func New(deps Deps, opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: deps.Registry,
		delivery: deps.Delivery,
		dedup:    deps.Dedup,
		journal:  deps.Journal,
		mailer:   deps.Mailer,
		obs:      deps.Observability,
		logger:   deps.Logger,
		composer: payload.NewComposer(opts.AppName),
		opts:     opts,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
	if d.dedup == nil {
		d.dedup = dedup.NoopStore{}
	}
	if d.journal == nil {
		d.journal = journal.NoopJournal{}
	}
	if d.mailer == nil {
		d.mailer = email.NoopMailer{}
	}
	if d.logger == nil {
		d.logger = logger.NewNoOpLogger()
	}
	return d
}

// plan is what an event resolves to when it warrants a notification.
type plan struct {
	intent  models.NotificationIntent
	targets models.Targets
	// topicIntents replaces intent for the named topics.
	topicIntents map[string]models.NotificationIntent
}

func (p plan) intentFor(topic string) models.NotificationIntent {
	if intent, ok := p.topicIntents[topic]; ok {
		return intent
	}
	return p.intent
}

// Handle processes one change event.
func (d *Dispatcher) Handle(ctx context.Context, event models.ChangeEvent) (report Report) {
	started := d.now()
	report = Report{InvocationID: d.newID()}
	kind := string(event.EntityKind)

	log := d.logger.WithFields(map[string]interface{}{
		"invocationId": report.InvocationID,
		"eventId":      event.EventID,
		"entityKind":   kind,
		"entityId":     event.EntityID,
	})

	ctx, span := d.obs.StartSpan(ctx, "notify.dispatch",
		attribute.String("entity.kind", kind),
		attribute.String("entity.id", event.EntityID),
	)
	metrics.DispatchesInFlight.Inc()

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			log.Error("dispatch panicked", map[string]interface{}{
				"error": err,
				"stack": string(debug.Stack()),
			})
			report.Outcome = OutcomeFailed
		}
		metrics.DispatchesInFlight.Dec()
		metrics.EventsDispatched.WithLabelValues(kind, report.Outcome).Inc()
		metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
		d.obs.RecordDispatch(ctx, kind, report.Outcome)
		d.obs.RecordDispatchDuration(ctx, time.Since(started), kind)
		span.SetAttributes(attribute.String("notify.outcome", report.Outcome))
		span.End()
	}()

	if err := event.Validate(); err != nil {
		log.Error("malformed change event", map[string]interface{}{
			"error": apperrors.NewMalformedEventError(err.Error()),
		})
		report.Outcome = OutcomeInvalid
		return report
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	seen, err := d.dedup.Seen(ctx, event.EventID)
	if err != nil {
		log.Warn("dedup lookup failed, dispatching anyway", map[string]interface{}{"error": err})
	} else if seen {
		log.Debug("event already dispatched", nil)
		report.Outcome = OutcomeDuplicate
		return report
	}

	p, ok := d.planFor(event)
	if !ok {
		log.Debug("no notification for event", nil)
		report.Outcome = OutcomeSkipped
		return report
	}
	report.NotificationType = p.intent.Type

	report.Direct, report.Topics = d.deliver(ctx, log, p)
	report.Outcome = OutcomeDispatched

	if err := d.dedup.Mark(ctx, event.EventID); err != nil {
		log.Warn("failed to mark event dispatched", map[string]interface{}{"error": err})
	}

	entry := journal.Entry{
		InvocationID:     report.InvocationID,
		EventID:          event.EventID,
		EntityKind:       kind,
		EntityID:         event.EntityID,
		NotificationType: p.intent.Type,
		Title:            p.intent.Title,
		Direct:           report.Direct,
		Topics:           report.Topics,
		StartedAt:        started.UTC(),
		FinishedAt:       d.now().UTC(),
	}
	if err := d.journal.Record(ctx, entry); err != nil {
		log.Warn("failed to write delivery journal", map[string]interface{}{"error": err})
	}

	return report
}

// planFor applies the firing rules of each entity kind.
func (d *Dispatcher) planFor(event models.ChangeEvent) (plan, bool) {
	switch event.EntityKind {
	case models.EntityJob:
		if !event.StatusChanged() {
			return plan{}, false
		}
		job := models.JobFromDocument(event.EntityID, event.After)
		return plan{intent: d.composer.JobUpdate(job), targets: recipient.ForJob(job)}, true

	case models.EntityListing:
		if !event.IsCreate() {
			return plan{}, false
		}
		listing := models.ListingFromDocument(event.EntityID, event.After)
		if !listing.IsActive() {
			return plan{}, false
		}
		p := plan{intent: d.composer.NewListing(listing), targets: recipient.ForListing(listing)}
		if listing.Region != "" {
			p.topicIntents = map[string]models.NotificationIntent{
				recipient.RegionTopic(listing.Region): d.composer.RegionalListing(listing),
			}
		}
		return p, true

	case models.EntityUser:
		if !event.StatusChanged() {
			return plan{}, false
		}
		status, _ := event.After.Value("status")
		if s, ok := status.(string); !ok || s != models.UserStatusApproved {
			return plan{}, false
		}
		return plan{intent: d.composer.AccountApproved(event.EntityID), targets: recipient.ForUserApproval(event.EntityID)}, true
	}
	return plan{}, false
}

// deliver fans out to every direct recipient and topic concurrently. Each
// branch recovers on its own so one failure never stops the others.
func (d *Dispatcher) deliver(ctx context.Context, log logger.Logger, p plan) ([]journal.DirectOutcome, []journal.TopicOutcome) {
	direct := make([]journal.DirectOutcome, len(p.targets.Direct))
	topics := make([]journal.TopicOutcome, len(p.targets.Topics))

	var g errgroup.Group
	for i, uid := range p.targets.Direct {
		g.Go(func() error {
			rlog := log.WithFields(map[string]interface{}{"uid": uid})
			defer recoverBranch(rlog, func(err error) {
				direct[i] = journal.DirectOutcome{UID: uid, Status: journal.RecipientFailed, Error: err.Error()}
			})
			direct[i] = d.sendDirect(ctx, rlog, uid, p.intent)
			return nil
		})
	}
	for i, topic := range p.targets.Topics {
		g.Go(func() error {
			tlog := log.WithFields(map[string]interface{}{"topic": topic})
			defer recoverBranch(tlog, func(err error) {
				topics[i] = journal.TopicOutcome{Topic: topic, Error: err.Error()}
			})
			topics[i] = d.broadcast(ctx, tlog, topic, p.intentFor(topic))
			return nil
		})
	}
	_ = g.Wait()

	return direct, topics
}

func recoverBranch(log logger.Logger, record func(error)) {
	if r := recover(); r != nil {
		err := apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
		log.Error("delivery branch panicked", map[string]interface{}{
			"error": err,
			"stack": string(debug.Stack()),
		})
		record(err)
	}
}

func (d *Dispatcher) sendDirect(ctx context.Context, log logger.Logger, uid string, intent models.NotificationIntent) journal.DirectOutcome {
	ctx, span := d.obs.StartSpan(ctx, "notify.direct", attribute.String("user.id", uid))
	defer span.End()

	outcome := journal.DirectOutcome{UID: uid}

	user, err := d.registry.Load(ctx, uid)
	if err != nil {
		log.Error("failed to load recipient", map[string]interface{}{"error": err})
		span.RecordError(err)
		outcome.Status = journal.RecipientFailed
		outcome.Error = err.Error()
		return outcome
	}
	if user == nil {
		log.Debug("recipient does not exist", nil)
		metrics.RecipientsFiltered.WithLabelValues("absent").Inc()
		outcome.Status = journal.RecipientAbsent
		return outcome
	}
	if !preference.AdmitType(user, intent.Type) {
		log.Debug("recipient opted out", map[string]interface{}{"notificationType": intent.Type})
		metrics.RecipientsFiltered.WithLabelValues("preference").Inc()
		outcome.Status = journal.RecipientFiltered
		return outcome
	}

	if d.opts.MailOnApproval && intent.Type == models.TypeAccountApproved {
		if err := d.mailer.Send(ctx, user, intent); err != nil {
			log.Error("failed to mirror notification by email", map[string]interface{}{"error": err})
		}
	}

	result := d.delivery.SendDirect(ctx, user, intent)
	outcome.Delivered = result.Delivered
	outcome.Invalid = result.Invalid
	outcome.Pruned = result.Pruned

	switch {
	case result.Err != nil:
		log.Error("direct delivery failed", map[string]interface{}{
			"error":     result.Err,
			"attempted": result.Attempted,
			"delivered": result.Delivered,
		})
		span.RecordError(result.Err)
		outcome.Status = journal.RecipientFailed
		outcome.Error = result.Err.Error()
	case result.Skipped():
		outcome.Status = journal.RecipientNoEndpoints
	default:
		log.Info("direct notification sent", map[string]interface{}{
			"attempted": result.Attempted,
			"delivered": result.Delivered,
			"invalid":   len(result.Invalid),
			"transient": result.Transient,
		})
		outcome.Status = journal.RecipientSent
	}
	return outcome
}

// broadcast sends to a topic. A failed broadcast is recorded and otherwise
// ignored: there is nothing to reconcile and no one to retry for.
func (d *Dispatcher) broadcast(ctx context.Context, log logger.Logger, topic string, intent models.NotificationIntent) journal.TopicOutcome {
	ctx, span := d.obs.StartSpan(ctx, "notify.broadcast", attribute.String("topic", topic))
	defer span.End()

	result := d.delivery.Broadcast(ctx, topic, intent)
	if result.Err != nil {
		log.Info("broadcast not delivered", map[string]interface{}{"error": result.Err})
		return journal.TopicOutcome{Topic: topic, Error: result.Err.Error()}
	}
	log.Debug("broadcast sent", nil)
	return journal.TopicOutcome{Topic: topic, Sent: true}
}
