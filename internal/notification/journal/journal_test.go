package journal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "notification-workers/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	body   []byte
}

func newTestJournal(t *testing.T, status int) (*ElasticsearchJournal, *capturedRequest) {
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.body, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			w.Write([]byte(`{"error":{"type":"cluster_block_exception"},"status":429}`))
			return
		}
		w.Write([]byte(`{"_index":"notification-deliveries","_id":"inv-1","result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewElasticsearchJournal(client, "notification-deliveries"), captured
}

func TestElasticsearchJournal_Record(t *testing.T) {
	j, captured := newTestJournal(t, http.StatusCreated)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := j.Record(context.Background(), Entry{
		InvocationID:     "inv-1",
		EventID:          "evt-1",
		EntityKind:       "job",
		EntityID:         "J1",
		NotificationType: "job_update",
		Title:            "Job Update: gravel",
		Direct: []DirectOutcome{
			{UID: "H1", Status: RecipientSent, Delivered: 2},
			{UID: "U2", Status: RecipientFiltered},
		},
		Topics:     []TopicOutcome{{Topic: "job_J1", Sent: true}},
		StartedAt:  now,
		FinishedAt: now.Add(40 * time.Millisecond),
	})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/notification-deliveries/_doc/inv-1", captured.path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(captured.body, &doc))
	assert.Equal(t, "J1", doc["entityId"])
	assert.Len(t, doc["direct"], 2)
	assert.Len(t, doc["topics"], 1)
}

func TestElasticsearchJournal_Record_ErrorResponse(t *testing.T) {
	j, _ := newTestJournal(t, http.StatusTooManyRequests)

	err := j.Record(context.Background(), Entry{InvocationID: "inv-2", EntityKind: "listing", EntityID: "L1"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeJournalWriteFailed))
}
