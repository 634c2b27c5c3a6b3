// Package journal records one audit document per dispatched change event.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	apperrors "notification-workers/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
)

// Direct recipient statuses.
const (
	RecipientSent        = "sent"
	RecipientNoEndpoints = "no_endpoints"
	RecipientAbsent      = "absent"
	RecipientFiltered    = "filtered"
	RecipientFailed      = "failed"
)

type DirectOutcome struct {
	UID       string   `json:"uid"`
	Status    string   `json:"status"`
	Delivered int      `json:"delivered"`
	Invalid   []string `json:"invalid,omitempty"`
	Pruned    bool     `json:"pruned"`
	Error     string   `json:"error,omitempty"`
}

type TopicOutcome struct {
	Topic string `json:"topic"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// Entry is the journal document for one dispatch invocation.
type Entry struct {
	InvocationID     string          `json:"invocationId"`
	EventID          string          `json:"eventId,omitempty"`
	EntityKind       string          `json:"entityKind"`
	EntityID         string          `json:"entityId"`
	NotificationType string          `json:"notificationType"`
	Title            string          `json:"title"`
	Direct           []DirectOutcome `json:"direct,omitempty"`
	Topics           []TopicOutcome  `json:"topics,omitempty"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
}

type Journal interface {
	Record(ctx context.Context, entry Entry) error
}

// ElasticsearchJournal indexes entries keyed by invocation id.
type ElasticsearchJournal struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchJournal(client *elasticsearch.Client, index string) *ElasticsearchJournal {
	return &ElasticsearchJournal{client: client, index: index}
}

func (j *ElasticsearchJournal) Record(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return apperrors.NewJournalWriteFailedError(err)
	}

	res, err := j.client.Index(
		j.index,
		bytes.NewReader(body),
		j.client.Index.WithDocumentID(entry.InvocationID),
		j.client.Index.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewJournalWriteFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return apperrors.NewJournalWriteFailedError(fmt.Errorf("index %s: %s: %s", j.index, res.Status(), msg))
	}
	return nil
}

// NoopJournal discards entries.
type NoopJournal struct{}

func (NoopJournal) Record(context.Context, Entry) error { return nil }
