package dispatcher

import (
	"context"
	"errors"
	"sort"
	"sync"

	"notification-workers/internal/models"
	"notification-workers/internal/notification/gateway"
	"notification-workers/internal/notification/journal"
)

type multicastCall struct {
	Endpoints []string
	Intent    models.NotificationIntent
}

type topicCall struct {
	Topic  string
	Intent models.NotificationIntent
}

// recordingSender records every send. Per-endpoint outcomes come from
// outcomes; endpoints not listed succeed.
type recordingSender struct {
	mu            sync.Mutex
	multicasts    []multicastCall
	topics        []topicCall
	outcomes      map[string]gateway.ErrorClass
	failMulticast map[string]bool // first endpoint -> request error
	topicErr      error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		outcomes:      map[string]gateway.ErrorClass{},
		failMulticast: map[string]bool{},
	}
}

func (s *recordingSender) SendMulticast(ctx context.Context, endpoints []string, intent models.NotificationIntent) ([]gateway.EndpointResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multicasts = append(s.multicasts, multicastCall{Endpoints: endpoints, Intent: intent})
	if len(endpoints) > 0 && s.failMulticast[endpoints[0]] {
		return nil, errors.New("push service unavailable")
	}
	results := make([]gateway.EndpointResult, len(endpoints))
	for i, e := range endpoints {
		if class, ok := s.outcomes[e]; ok {
			results[i] = gateway.EndpointResult{Endpoint: e, ErrorClass: class, Err: errors.New(string(class))}
			continue
		}
		results[i] = gateway.EndpointResult{Endpoint: e, Success: true}
	}
	return results, nil
}

func (s *recordingSender) SendToTopic(ctx context.Context, topic string, intent models.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topicCall{Topic: topic, Intent: intent})
	return s.topicErr
}

func (s *recordingSender) topicNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.topics))
	for _, c := range s.topics {
		names = append(names, c.Topic)
	}
	sort.Strings(names)
	return names
}

func (s *recordingSender) multicastTargets() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.multicasts))
	for _, c := range s.multicasts {
		out = append(out, c.Endpoints)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// memoryRegistry is an in-process registry with set-difference pruning.
type memoryRegistry struct {
	mu       sync.Mutex
	users    map[string]*models.User
	loadErr  map[string]error
	panicFor string
}

func newMemoryRegistry(users ...*models.User) *memoryRegistry {
	r := &memoryRegistry{users: map[string]*models.User{}, loadErr: map[string]error{}}
	for _, u := range users {
		r.users[u.UID] = u
	}
	return r
}

func (r *memoryRegistry) Load(ctx context.Context, uid string) (*models.User, error) {
	if uid == r.panicFor {
		panic("corrupt user document")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadErr[uid]; err != nil {
		return nil, err
	}
	u, ok := r.users[uid]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.DeliveryEndpoints = append([]string(nil), u.DeliveryEndpoints...)
	return &cp, nil
}

func (r *memoryRegistry) PruneEndpoints(ctx context.Context, uid string, invalid []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil
	}
	drop := map[string]bool{}
	for _, e := range invalid {
		drop[e] = true
	}
	kept := []string{}
	for _, e := range u.DeliveryEndpoints {
		if !drop[e] {
			kept = append(kept, e)
		}
	}
	u.DeliveryEndpoints = kept
	return nil
}

func (r *memoryRegistry) endpoints(uid string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[uid].DeliveryEndpoints
}

type mockDedup struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
	marked  []string
}

func (m *mockDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.seen[eventID], nil
}

func (m *mockDedup) Mark(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, eventID)
	return nil
}

type mockJournal struct {
	entries []journal.Entry
	err     error
}

func (m *mockJournal) Record(ctx context.Context, entry journal.Entry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

type mockMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockMailer) Send(ctx context.Context, user *models.User, intent models.NotificationIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, user.UID)
	return m.err
}
