package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"pgregory.net/rapid"

	"rhystmorgan/mira/internal/models"
)

type fakeRemote struct {
	body    []byte
	getErr  error
	postErr error
	posts   [][]byte
}

func (f *fakeRemote) Get(ctx context.Context) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.body, nil
}

func (f *fakeRemote) Post(ctx context.Context, body []byte) error {
	f.posts = append(f.posts, body)
	return f.postErr
}

func names(contacts []*models.Contact) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.Name())
	}
	return out
}

func TestComparatorFixture(t *testing.T) {
	s := New(&fakeRemote{})
	s.Create(models.Fields{"name": "B"})
	s.Create(models.Fields{"name": "C", "last": "2020-01-01"})
	s.Create(models.Fields{"name": "?"})
	s.Create(models.Fields{"name": "D", "last": "2020-06-01"})

	got := names(s.Records())
	want := []string{"?", "D", "C", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
}

func TestSortKey(t *testing.T) {
	sentinel := models.NewContact("a", models.Fields{"name": "?", "last": "2020-01-01"})
	if !math.IsInf(SortKey(sentinel), -1) {
		t.Errorf("Expected -Inf for sentinel, got %v", SortKey(sentinel))
	}

	undated := models.NewContact("b", models.Fields{"name": "B"})
	if SortKey(undated) != 0 {
		t.Errorf("Expected 0 for undated contact, got %v", SortKey(undated))
	}

	dated := models.NewContact("c", models.Fields{"name": "C", "last": "2020-01-01"})
	if want := -1577836800000.0; SortKey(dated) != want {
		t.Errorf("Expected %v, got %v", want, SortKey(dated))
	}

	garbage := models.NewContact("d", models.Fields{"name": "D", "last": "last tuesday"})
	if SortKey(garbage) != 0 {
		t.Errorf("Expected 0 for unparseable date, got %v", SortKey(garbage))
	}
}

func TestPre1970SortsAfterUndated(t *testing.T) {
	s := New(&fakeRemote{})
	s.Create(models.Fields{"name": "old", "last": "1965-03-01"})
	s.Create(models.Fields{"name": "none"})
	s.Create(models.Fields{"name": "new", "last": "2021-03-01"})

	got := names(s.Records())
	want := []string{"new", "none", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "n")
		s := New(&fakeRemote{})
		for i := 0; i < n; i++ {
			fields := models.Fields{"name": rapid.SampledFrom([]string{"x", "?"}).Draw(t, "name")}
			if rapid.Bool().Draw(t, "dated") {
				fields["last"] = rapid.SampledFrom([]string{"2020-01-01", "2021-05-05"}).Draw(t, "last")
			}
			s.Create(fields)
		}

		position := make(map[string]int)
		for i, f := range s.Serialize() {
			position[f[models.IDKey].(string)] = i
		}

		records := s.Records()
		for i := 1; i < len(records); i++ {
			prev, cur := records[i-1], records[i]
			if SortKey(prev) > SortKey(cur) {
				t.Fatalf("records out of order at %d", i)
			}
			if SortKey(prev) == SortKey(cur) && position[prev.ID()] > position[cur.ID()] {
				t.Fatalf("tie at %d broke insertion order", i)
			}
		}
	})
}

func TestFetchResetsCollection(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[{"id":"1","name":"Ann"},{"id":"2","name":"Bob","tel":["1"]}]`)}
	s := New(remote)
	stale := s.Create(models.Fields{"name": "stale"})

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if s.Len() != 2 {
		t.Errorf("Expected 2 contacts after fetch, got %d", s.Len())
	}
	if _, ok := s.Get(stale.ID()); ok {
		t.Error("Expected stale contact to be discarded by reset")
	}
	if c, ok := s.Get("2"); !ok || c.List("tel")[0] != "1" {
		t.Error("Expected contact 2 with its tel list")
	}
	if len(events) != 1 || events[0].Kind != EventReset {
		t.Errorf("Expected a single reset event, got %v", events)
	}
}

func TestFetchRejectsNonArray(t *testing.T) {
	cases := []string{`{"id":"1"}`, `"hello"`, `null`, `[1, 2]`}
	for _, body := range cases {
		s := New(&fakeRemote{body: []byte(body)})
		keep := s.Create(models.Fields{"name": "keep"})

		err := s.Fetch(context.Background())
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Errorf("Expected SchemaError for %s, got %v", body, err)
		}
		if _, ok := s.Get(keep.ID()); !ok || s.Len() != 1 {
			t.Errorf("Expected collection untouched after %s", body)
		}
	}
}

func TestFetchPropagatesRemoteError(t *testing.T) {
	cause := errors.New("connection refused")
	s := New(&fakeRemote{getErr: ClassifyError("fetch", cause)})

	err := s.Fetch(context.Background())
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Kind != ErrNetwork {
		t.Fatalf("Expected network RemoteError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be preserved")
	}
}

func TestPersistSendsWholeCollection(t *testing.T) {
	remote := &fakeRemote{}
	s := New(remote)
	a := s.Create(models.Fields{"name": "Ann"})
	b := s.Create(models.Fields{"name": "Bob", "email": []string{"b@y.com"}})

	if err := s.Persist(context.Background()); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if len(remote.posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(remote.posts))
	}

	var sent []map[string]any
	if err := json.Unmarshal(remote.posts[0], &sent); err != nil {
		t.Fatalf("Posted body is not JSON: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("Expected 2 records in body, got %d", len(sent))
	}
	if sent[0]["id"] != a.ID() || sent[1]["id"] != b.ID() {
		t.Errorf("Expected ids in insertion order, got %v", sent)
	}
}

func TestPersistReportsFailure(t *testing.T) {
	s := New(&fakeRemote{postErr: NewStatusError("persist", 500)})
	err := s.Persist(context.Background())

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Status != 500 {
		t.Fatalf("Expected status error, got %v", err)
	}
	if !remoteErr.IsRetryable() {
		t.Error("Expected 500 to be retryable")
	}
	if s.Pending() {
		t.Error("Expected nothing pending after persist returned")
	}
}

func TestCreateRemoveUpdateNotify(t *testing.T) {
	s := New(&fakeRemote{})
	var kinds []EventKind
	cancel := s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	c := s.Create(models.Fields{"name": "Ann"})
	s.Update(c.ID(), models.Fields{"place": "Oslo"})
	s.Remove(c.ID())

	if s.Remove(c.ID()) {
		t.Error("Expected second remove to report false")
	}
	if s.Update("missing", models.Fields{"name": "x"}) {
		t.Error("Expected update of missing id to report false")
	}

	want := []EventKind{EventCreate, EventUpdate, EventRemove}
	if len(kinds) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Expected event %v at %d, got %v", want[i], i, kinds[i])
		}
	}

	cancel()
	s.Create(models.Fields{"name": "Bob"})
	if len(kinds) != len(want) {
		t.Error("Expected no events after cancel")
	}
}

func TestUserMessage(t *testing.T) {
	if msg := UserMessage(&SchemaError{Got: "object"}); msg == "" {
		t.Error("Expected a message for schema errors")
	}
	if msg := UserMessage(ClassifyError("fetch", context.DeadlineExceeded)); msg != "The contacts server took too long to answer." {
		t.Errorf("Unexpected timeout message: %s", msg)
	}
}
