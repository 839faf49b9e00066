package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/goccy/go-json"

	"rhystmorgan/mira/internal/models"
)

// Remote is the endpoint holding the authoritative copy of the collection.
type Remote interface {
	Get(ctx context.Context) ([]byte, error)
	Post(ctx context.Context, body []byte) error
}

type EventKind int

const (
	EventReset EventKind = iota
	EventCreate
	EventRemove
	EventUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventReset:
		return "reset"
	case EventCreate:
		return "create"
	case EventRemove:
		return "remove"
	case EventUpdate:
		return "update"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	ID   string
}

type Option func(*ContactStore)

func WithLogger(logger *slog.Logger) Option {
	return func(s *ContactStore) {
		if logger != nil {
			s.log = logger
		}
	}
}

// ContactStore is the single source of truth for contacts. Apart from Push,
// which only touches the bytes it is given, it must be used from one
// goroutine.
type ContactStore struct {
	remote  Remote
	records map[string]*models.Contact
	order   []string

	subscribers map[int]func(Event)
	nextSub     int

	inflight atomic.Int32
	log      *slog.Logger
}

func New(remote Remote, opts ...Option) *ContactStore {
	s := &ContactStore{
		remote:      remote,
		records:     make(map[string]*models.Contact),
		subscribers: make(map[int]func(Event)),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every change. Notifications are delivered
// synchronously, in registration order.
func (s *ContactStore) Subscribe(fn func(Event)) (cancel func()) {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		delete(s.subscribers, id)
	}
}

func (s *ContactStore) notify(ev Event) {
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := s.subscribers[id]; ok {
			fn(ev)
		}
	}
}

func (s *ContactStore) Len() int {
	return len(s.order)
}

func (s *ContactStore) Get(id string) (*models.Contact, bool) {
	c, ok := s.records[id]
	return c, ok
}

// Records returns every contact in display order. Equal keys keep insertion
// order.
func (s *ContactStore) Records() []*models.Contact {
	out := make([]*models.Contact, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	SortStable(out)
	return out
}

// SortStable sorts contacts in place by SortKey.
func SortStable(contacts []*models.Contact) {
	keys := make(map[*models.Contact]float64, len(contacts))
	for _, c := range contacts {
		keys[c] = SortKey(c)
	}
	slices.SortStableFunc(contacts, func(a, b *models.Contact) int {
		ka, kb := keys[a], keys[b]
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})
}

// Comparator exposes the ordering key used for display.
func (s *ContactStore) Comparator() func(*models.Contact) float64 {
	return SortKey
}

// Create inserts a new contact with a fresh id. It does not persist.
func (s *ContactStore) Create(initial models.Fields) *models.Contact {
	c := models.NewContact(models.NewID(), initial)
	s.records[c.ID()] = c
	s.order = append(s.order, c.ID())
	s.log.Debug("contact created", "id", c.ID())
	s.notify(Event{Kind: EventCreate, ID: c.ID()})
	return c
}

// Remove deletes a contact by id. It does not persist.
func (s *ContactStore) Remove(id string) bool {
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(existing string) bool {
		return existing == id
	})
	s.log.Debug("contact removed", "id", id)
	s.notify(Event{Kind: EventRemove, ID: id})
	return true
}

// Update merges partial into the contact with the given id.
func (s *ContactStore) Update(id string, partial models.Fields) bool {
	c, ok := s.records[id]
	if !ok {
		return false
	}
	c.Update(partial)
	s.notify(Event{Kind: EventUpdate, ID: id})
	return true
}

// Reset discards every contact and rebuilds the collection from payload.
func (s *ContactStore) Reset(payload []models.Fields) {
	s.records = make(map[string]*models.Contact, len(payload))
	s.order = make([]string, 0, len(payload))
	for _, fields := range payload {
		c := models.FromPayload(fields)
		if _, dup := s.records[c.ID()]; !dup {
			s.order = append(s.order, c.ID())
		}
		s.records[c.ID()] = c
	}
	s.log.Debug("collection reset", "count", len(s.order))
	s.notify(Event{Kind: EventReset})
}

// Serialize exports every contact in insertion order.
func (s *ContactStore) Serialize() []models.Fields {
	out := make([]models.Fields, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Serialize())
	}
	return out
}

// Pending reports whether a fetch or persist is on the wire.
func (s *ContactStore) Pending() bool {
	return s.inflight.Load() > 0
}

// Load reads the remote collection without touching local state.
func (s *ContactStore) Load(ctx context.Context) ([]models.Fields, error) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	body, err := s.remote.Get(ctx)
	if err != nil {
		return nil, err
	}
	return DecodePayload(body)
}

// Fetch replaces the collection with the remote one. On error the collection
// is left as it was.
func (s *ContactStore) Fetch(ctx context.Context) error {
	payload, err := s.Load(ctx)
	if err != nil {
		return err
	}
	s.Reset(payload)
	return nil
}

// Snapshot encodes the whole collection as the remote expects it.
func (s *ContactStore) Snapshot() ([]byte, error) {
	body, err := json.Marshal(s.Serialize())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contacts: %w", err)
	}
	return body, nil
}

// Push sends a snapshot to the remote, which replaces its state wholesale.
// It is safe to call from any goroutine.
func (s *ContactStore) Push(ctx context.Context, body []byte) error {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if err := s.remote.Post(ctx, body); err != nil {
		return err
	}
	return nil
}

// Persist sends the entire current collection to the remote.
func (s *ContactStore) Persist(ctx context.Context) error {
	body, err := s.Snapshot()
	if err != nil {
		return err
	}
	return s.Push(ctx, body)
}

// DecodePayload checks that body is an array of objects and returns them.
func DecodePayload(body []byte) ([]models.Fields, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &RemoteError{Kind: ErrDecode, Op: "fetch", Cause: err}
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, &SchemaError{Got: describe(raw)}
	}

	payload := make([]models.Fields, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &SchemaError{Got: "array", Detail: fmt.Sprintf("element %d is %s", i, describe(item))}
		}
		payload = append(payload, models.Fields(obj))
	}
	return payload, nil
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", t)
	}
}
