// Package changestream turns MongoDB change stream notifications on the job,
// listing and user collections into dispatcher change events.
//
// Pre- and post-images must be enabled on the watched collections
// (changeStreamPreAndPostImages). Updates without a pre-image are skipped
// because they cannot be told apart from creations; changes without a
// post-image are skipped because the state they produced is unknown.
package changestream

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/dispatcher"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const sourceName = "changestream"

// Dispatcher is implemented by *dispatcher.Dispatcher.
type Dispatcher interface {
	Handle(ctx context.Context, event models.ChangeEvent) dispatcher.Report
}

// changeDoc is the subset of a change stream notification the watcher reads.
type changeDoc struct {
	ID            bson.Raw `bson:"_id"`
	OperationType string   `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID interface{} `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument             bson.M `bson:"fullDocument"`
	FullDocumentBeforeChange bson.M `bson:"fullDocumentBeforeChange"`
}

// Watcher streams changes from one database.
type Watcher struct {
	db         *mongo.Database
	kinds      map[string]models.EntityKind
	checkpoint Checkpoint
	dispatcher Dispatcher
	logger     logger.Logger
}

// Collections maps collection names to the entity kind they hold.
type Collections struct {
	Jobs     string
	Listings string
	Users    string
}

func NewWatcher(db *mongo.Database, colls Collections, checkpoint Checkpoint, d Dispatcher, log logger.Logger) *Watcher {
	return &Watcher{
		db: db,
		kinds: map[string]models.EntityKind{
			colls.Jobs:     models.EntityJob,
			colls.Listings: models.EntityListing,
			colls.Users:    models.EntityUser,
		},
		checkpoint: checkpoint,
		dispatcher: d,
		logger:     log.WithFields(map[string]interface{}{"source": sourceName}),
	}
}

// Run watches until ctx is cancelled, reopening the stream from the last
// checkpoint after errors.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		w.logger.Error("change stream interrupted, reopening", map[string]interface{}{"error": err})
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *Watcher) watch(ctx context.Context) error {
	token, err := w.checkpoint.Load(ctx)
	if err != nil {
		w.logger.Warn("failed to load resume token, starting from now", map[string]interface{}{"error": err})
	}

	stream, err := w.db.Watch(ctx, w.pipeline(), streamOptions(token))
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	w.logger.Info("change stream opened", map[string]interface{}{"resumed": token != nil})

	for stream.Next(ctx) {
		var change changeDoc
		if err := stream.Decode(&change); err != nil {
			w.logger.Error("failed to decode change", map[string]interface{}{"error": err})
		} else if event, ok := w.toChangeEvent(change); ok {
			metrics.SourceEventsReceived.WithLabelValues(sourceName, "accepted").Inc()
			w.dispatcher.Handle(ctx, event)
		}

		if err := w.checkpoint.Save(ctx, stream.ResumeToken()); err != nil {
			w.logger.Warn("failed to save resume token", map[string]interface{}{"error": err})
		}
	}
	return stream.Err()
}

// streamOptions requests the stored pre- and post-images of each change, so
// before and after always describe the same mutation.
func streamOptions(token bson.Raw) *options.ChangeStreamOptionsBuilder {
	opts := options.ChangeStream().
		SetFullDocument(options.WhenAvailable).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if token != nil {
		opts.SetResumeAfter(token)
	}
	return opts
}

func (w *Watcher) pipeline() mongo.Pipeline {
	colls := make(bson.A, 0, len(w.kinds))
	for name := range w.kinds {
		colls = append(colls, name)
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}},
			{Key: "ns.coll", Value: bson.D{{Key: "$in", Value: colls}}},
		}}},
	}
}

// toChangeEvent converts a notification. It reports false for changes the
// dispatcher cannot interpret.
func (w *Watcher) toChangeEvent(change changeDoc) (models.ChangeEvent, bool) {
	kind, ok := w.kinds[change.NS.Coll]
	if !ok {
		return models.ChangeEvent{}, false
	}

	entityID := models.Stringify(change.DocumentKey.ID)
	log := w.logger.WithFields(map[string]interface{}{
		"entityKind": string(kind),
		"entityId":   entityID,
		"operation":  change.OperationType,
	})

	if change.FullDocument == nil {
		metrics.SourceEventsReceived.WithLabelValues(sourceName, "no_post_image").Inc()
		log.Warn("change without post-image skipped", nil)
		return models.ChangeEvent{}, false
	}

	event := models.ChangeEvent{
		EventID:    resumeTokenData(change.ID),
		EntityKind: kind,
		EntityID:   entityID,
		After:      models.Document(change.FullDocument),
	}

	if change.OperationType != "insert" {
		if change.FullDocumentBeforeChange == nil {
			metrics.SourceEventsReceived.WithLabelValues(sourceName, "no_pre_image").Inc()
			log.Warn("update without pre-image skipped", nil)
			return models.ChangeEvent{}, false
		}
		event.Before = models.Document(change.FullDocumentBeforeChange)
	}

	return event, true
}

// resumeTokenData extracts the opaque "_data" string of a resume token.
func resumeTokenData(token bson.Raw) string {
	if len(token) == 0 {
		return ""
	}
	v, err := token.LookupErr("_data")
	if err != nil {
		return ""
	}
	s, _ := v.StringValueOK()
	return s
}
