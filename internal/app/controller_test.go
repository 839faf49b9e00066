package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
)

type fakeRemote struct {
	mu      sync.Mutex
	body    []byte
	getErr  error
	postErr error
	posts   [][]byte
}

func (r *fakeRemote) Get(ctx context.Context) ([]byte, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.body, nil
}

func (r *fakeRemote) Post(ctx context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, body)
	return r.postErr
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
}

func newController(remote *fakeRemote) *Controller {
	return New(store.New(remote), Options{Clock: fixedClock})
}

func TestStartFetchesAndClearsBusy(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[{"id":"1","name":"Ann"},{"id":"2","name":"Bob"}]`)}
	c := newController(remote)

	cmd := c.Start()
	if !c.Busy() {
		t.Error("Expected busy while fetching")
	}
	c.Update(cmd())

	if c.Busy() {
		t.Error("Expected busy to clear after fetch")
	}
	if c.Err() != nil {
		t.Errorf("Expected no error, got %v", c.Err())
	}
	if got := len(c.Items()); got != 2 {
		t.Errorf("Expected 2 items, got %d", got)
	}
}

func TestStartSchemaErrorLeavesStore(t *testing.T) {
	remote := &fakeRemote{body: []byte(`{"not":"an array"}`)}
	c := newController(remote)
	c.Store().Create(models.Fields{"name": "Local"})

	c.Update(c.Start()())

	var schemaErr *store.SchemaError
	if !errors.As(c.Err(), &schemaErr) {
		t.Errorf("Expected SchemaError, got %v", c.Err())
	}
	if c.Busy() {
		t.Error("Expected busy to clear after a failed fetch")
	}
	if c.Store().Len() != 1 {
		t.Errorf("Expected local contact to survive, got %d", c.Store().Len())
	}
}

func TestAddAndEditScenario(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[]`)}
	c := newController(remote)
	c.Update(c.Start()())

	created := c.Store().Create(models.Fields{"name": "?", "last": "2020-01-01"})
	items := c.Items()
	if len(items) != 1 || items[0].ID() != created.ID() {
		t.Fatalf("Expected the new contact as the only item, got %d items", len(items))
	}
	if key := store.SortKey(created); !math.IsInf(key, -1) {
		t.Errorf("Expected sentinel priority, got key %v", key)
	}

	ctl := items[0]
	ctl.Toggle()
	if err := ctl.SetField("name", "Ann"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	cmd := ctl.Toggle()
	if cmd == nil {
		t.Fatal("Expected commit to return a persist command")
	}
	if !c.Busy() {
		t.Error("Expected busy while persisting")
	}
	c.Update(cmd())

	if len(remote.posts) != 1 {
		t.Fatalf("Expected persist to be called once, got %d", len(remote.posts))
	}
	var sent []map[string]any
	if err := json.Unmarshal(remote.posts[0], &sent); err != nil {
		t.Fatalf("Failed to decode posted body: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("Expected 1 contact in posted body, got %d", len(sent))
	}
	if sent[0]["name"] != "Ann" || sent[0]["last"] != "2020-01-01" || sent[0]["id"] != created.ID() {
		t.Errorf("Unexpected posted contact: %v", sent[0])
	}

	rec, _ := c.Store().Get(created.ID())
	if key := store.SortKey(rec); math.IsInf(key, -1) {
		t.Error("Expected contact to lose sentinel priority after rename")
	}
	if c.Busy() {
		t.Error("Expected busy to clear after persist")
	}
}

func TestAddCreatesSentinelAndPersists(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[]`)}
	c := newController(remote)
	c.Update(c.Start()())

	cmd := c.Add()
	if cmd == nil {
		t.Fatal("Expected add to persist")
	}
	c.Update(cmd())

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if got := items[0].Value("name"); got != "?" {
		t.Errorf("Expected name ?, got %q", got)
	}
	if got := items[0].Value("last"); got != "2024-03-09" {
		t.Errorf("Expected last 2024-03-09, got %q", got)
	}
	if len(remote.posts) != 1 {
		t.Errorf("Expected 1 post, got %d", len(remote.posts))
	}
}

func TestPersistFailureIsRecorded(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[]`), postErr: store.NewStatusError("persist", 500)}
	c := newController(remote)
	c.Update(c.Start()())

	c.Update(c.Add()())
	if c.PersistErr() == nil {
		t.Error("Expected persist error to be recorded")
	}
	if c.PersistFailures() != 1 {
		t.Errorf("Expected 1 failure, got %d", c.PersistFailures())
	}
	if c.Busy() {
		t.Error("Expected busy to clear after a failed persist")
	}
	if c.Store().Len() != 1 {
		t.Error("Expected local contact to be kept after a failed persist")
	}

	remote.postErr = nil
	c.Update(c.Persister()())
	if c.PersistErr() != nil {
		t.Errorf("Expected error to clear after a successful persist, got %v", c.PersistErr())
	}
}

func TestOverlappingPersistsKeepBusy(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[]`)}
	c := newController(remote)
	c.Update(c.Start()())

	first := c.Add()
	second := c.Add()
	c.Update(first())
	if !c.Busy() {
		t.Error("Expected busy while the second persist is pending")
	}
	c.Update(second())
	if c.Busy() {
		t.Error("Expected busy to clear after both persists")
	}
	if len(remote.posts) != 2 {
		t.Errorf("Expected 2 posts, got %d", len(remote.posts))
	}
}

func TestSearch(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[
		{"id":"1","name":"Ann","place":"Oslo"},
		{"id":"2","name":"Bob","email":["bob@y.com"]}
	]`)}
	c := newController(remote)
	c.Update(c.Start()())

	c.Search("  Y.COM ")
	if c.SearchValue() != "Y.COM" {
		t.Errorf("Expected trimmed search value, got %q", c.SearchValue())
	}
	if items := c.Items(); len(items) != 1 || items[0].ID() != "2" {
		t.Errorf("Expected only Bob, got %d items", len(items))
	}

	c.Search(`= place == "Oslo"`)
	if items := c.Items(); len(items) != 1 || items[0].ID() != "1" {
		t.Errorf("Expected only Ann, got %d items", len(items))
	}

	c.Search(`= place ==`)
	if c.SearchErr() == nil {
		t.Error("Expected a compile error")
	}
	if len(c.Items()) != 0 {
		t.Error("Expected an invalid expression to match nothing")
	}

	c.Search("")
	if c.SearchErr() != nil || len(c.Items()) != 2 {
		t.Errorf("Expected cleared search to show all, got %d items", len(c.Items()))
	}
}

func TestItemRegistryIsPruned(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[{"id":"1","name":"Ann"}]`)}
	c := newController(remote)
	c.Update(c.Start()())

	first := c.Item("1")
	if first == nil || c.Item("1") != first {
		t.Fatal("Expected a stable item controller per contact")
	}

	cmd := first.Delete(true)
	if cmd == nil {
		t.Fatal("Expected delete to persist")
	}
	c.Update(cmd())
	if c.Item("1") != nil {
		t.Error("Expected removed contact to have no controller")
	}

	c.Update(c.Start()())
	if again := c.Item("1"); again == nil || again == first {
		t.Error("Expected a fresh controller after reset")
	}
}

func TestAddRefusedWhileFetching(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[{"id":"1","name":"Ann"}]`)}
	c := newController(remote)

	fetch := c.Start()
	if c.Ready() {
		t.Error("Expected not ready while the first fetch is pending")
	}
	if cmd := c.Add(); cmd != nil {
		t.Error("Expected add to be refused while fetching")
	}
	if c.Store().Len() != 0 {
		t.Errorf("Expected no local contact, got %d", c.Store().Len())
	}

	c.Update(fetch())
	if len(remote.posts) != 0 {
		t.Errorf("Expected no posts, got %d", len(remote.posts))
	}
	if c.Store().Len() != 1 {
		t.Errorf("Expected the fetched contact, got %d", c.Store().Len())
	}
	if !c.Ready() {
		t.Error("Expected ready after the fetch")
	}
}

func TestFailedFetchRefusesSaves(t *testing.T) {
	remote := &fakeRemote{getErr: store.NewStatusError("fetch", 503)}
	c := newController(remote)

	c.Update(c.Start()())
	if c.Err() == nil {
		t.Fatal("Expected the fetch error to be kept")
	}
	if c.Loaded() || c.Ready() {
		t.Error("Expected not loaded after a failed fetch")
	}
	if cmd := c.Add(); cmd != nil {
		t.Error("Expected add to be refused")
	}
	if cmd := c.Persister(); cmd != nil {
		t.Error("Expected save to be refused")
	}
	if len(remote.posts) != 0 {
		t.Errorf("Expected no posts, got %d", len(remote.posts))
	}

	remote.getErr = nil
	remote.body = []byte(`[{"id":"1","name":"Ann"}]`)
	retry := c.Reload()
	if retry == nil {
		t.Fatal("Expected retry to be allowed after a failed fetch")
	}
	c.Update(retry())
	if !c.Ready() || c.Err() != nil {
		t.Fatalf("Expected ready after retry, got err %v", c.Err())
	}

	c.Update(c.Add()())
	if len(remote.posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(remote.posts))
	}
	var saved []map[string]any
	if err := json.Unmarshal(remote.posts[0], &saved); err != nil {
		t.Fatalf("Failed to decode post: %v", err)
	}
	if len(saved) != 2 {
		t.Errorf("Expected the fetched contact kept in the save, got %d", len(saved))
	}
}

func TestReloadWaitsForPendingSave(t *testing.T) {
	remote := &fakeRemote{body: []byte(`[{"id":"1","name":"Ann"}]`)}
	c := newController(remote)
	c.Update(c.Start()())

	save := c.Add()
	if cmd := c.Reload(); cmd != nil {
		t.Error("Expected reload to be refused while a save is pending")
	}
	c.Update(save())

	ctl := c.Item("1")
	ctl.Toggle()
	if cmd := c.Reload(); cmd != nil {
		t.Error("Expected reload to be refused while editing")
	}
	ctl.Cancel()

	if cmd := c.Reload(); cmd == nil {
		t.Error("Expected reload once idle")
	}
}
