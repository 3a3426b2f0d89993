package session

import (
	"encoding/json"
	"sync"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/queue"
)

// EventKind names what changed.
type EventKind string

const (
	EventUploadState     EventKind = "upload_state"
	EventConnectivity    EventKind = "connectivity"
	EventCategoryChanged EventKind = "category_changed"
	EventDrafts          EventKind = "drafts"
	EventOutcome         EventKind = "outcome"
	EventReplayed        EventKind = "replayed"
	EventDrained         EventKind = "drained"
	EventDayChanged      EventKind = "day_changed"
)

// Event is one status update delivered to subscribers. Messages are rendered by the
// consumer, which knows the reader's locale.
type Event struct {
	Kind        EventKind                   `json:"kind"`
	At          time.Time                   `json:"at"`
	Category    domain.Category             `json:"category,omitempty"`
	UploadState *domain.CategoryUploadState `json:"upload_state,omitempty"`
	Online      *bool                       `json:"online,omitempty"`
	Outcome     *domain.SubmitOutcome       `json:"outcome,omitempty"`
	Error       string                      `json:"error,omitempty"`
	DonorName   string                      `json:"donor_name,omitempty"`
	Amount      int64                       `json:"amount,omitempty"`
	Replayed    int                         `json:"replayed,omitempty"`
	Remaining   int                         `json:"remaining,omitempty"`
}

const subscriberBuffer = 32

// Broker fans events out to subscribers. Slow subscribers lose events instead of
// blocking publishers.
type Broker struct {
	logger *infra.Logger
	now    func() time.Time

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBroker returns a broker with no subscribers.
func NewBroker(logger *infra.Logger) *Broker {
	return &Broker{logger: infra.LoggerOrDiscard(logger), now: time.Now, subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber without blocking.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn().Int("subscriber", id).Str("kind", string(e.Kind)).Msg("session: subscriber lagging, event dropped")
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// UploadStateEvent wraps a gatekeeper transition.
func UploadStateEvent(s domain.CategoryUploadState) Event {
	return Event{Kind: EventUploadState, Category: s.Category, UploadState: &s}
}

// ReplayedEvent names the donor of a queued write the server just accepted.
func ReplayedEvent(item domain.PendingSyncItem) Event {
	e := Event{Kind: EventReplayed}
	var payload domain.DonationPayload
	if err := json.Unmarshal(item.Payload, &payload); err == nil {
		e.DonorName = payload.NamaDonatur
		e.Amount = payload.Nominal
		if c, err := domain.ParseCategory(payload.KategoriRT); err == nil {
			e.Category = c
		}
	}
	return e
}

// DrainedEvent summarizes a drain pass.
func DrainedEvent(res queue.DrainResult, err error) Event {
	e := Event{Kind: EventDrained, Replayed: res.Replayed, Remaining: res.Remaining}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
