package item

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
)

type nopRemote struct{}

func (nopRemote) Get(ctx context.Context) ([]byte, error)     { return []byte("[]"), nil }
func (nopRemote) Post(ctx context.Context, body []byte) error { return nil }

type persistedMsg struct{}

type recorder struct {
	calls []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Persister: func() tea.Cmd {
			r.calls = append(r.calls, "persist")
			return func() tea.Msg { return persistedMsg{} }
		},
		Sorter: func() { r.calls = append(r.calls, "sort") },
		Clock: func() time.Time {
			return time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
		},
	}
}

func setup(t *testing.T, initial models.Fields) (*store.ContactStore, *Controller, *recorder) {
	t.Helper()
	s := store.New(nopRemote{})
	c := s.Create(initial)
	r := &recorder{}
	return s, New(c.ID(), s, r.hooks()), r
}

func TestToggleCommitsBuffer(t *testing.T) {
	s, ctl, r := setup(t, models.Fields{"name": "Ann", "email": []string{"ann@x.com"}})

	if cmd := ctl.Toggle(); cmd != nil {
		t.Error("Expected entering edit mode to have no side effects")
	}
	if !ctl.Editing() {
		t.Fatalf("Expected editing state, got %s", ctl.State())
	}

	if err := ctl.SetField("name", "Anna"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	if err := ctl.SetListItem("email", 1, "anna@y.com"); err != nil {
		t.Fatalf("SetListItem failed: %v", err)
	}

	rec := ctl.Record()
	if rec.Name() != "Ann" {
		t.Errorf("Expected store untouched while editing, got name %q", rec.Name())
	}

	cmd := ctl.Toggle()
	if cmd == nil {
		t.Fatal("Expected commit to return a persist command")
	}
	if _, ok := cmd().(persistedMsg); !ok {
		t.Error("Expected persist command to come from the persister hook")
	}
	if ctl.Editing() {
		t.Error("Expected viewing state after commit")
	}

	rec, _ = s.Get(ctl.ID())
	if rec.Name() != "Anna" {
		t.Errorf("Expected name Anna, got %q", rec.Name())
	}
	if got := rec.List("email"); !slices.Equal(got, []string{"ann@x.com", "anna@y.com"}) {
		t.Errorf("Expected two emails, got %v", got)
	}
	if !slices.Equal(r.calls, []string{"sort", "persist"}) {
		t.Errorf("Expected sort then persist, got %v", r.calls)
	}
}

func TestCancelDiscardsBuffer(t *testing.T) {
	_, ctl, r := setup(t, models.Fields{"name": "Ann", "place": "Oslo"})

	ctl.Toggle()
	ctl.SetField("place", "Bergen")
	ctl.Cancel()

	if ctl.Editing() {
		t.Error("Expected viewing state after cancel")
	}
	if got := ctl.Value("place"); got != "Oslo" {
		t.Errorf("Expected place Oslo, got %q", got)
	}
	if len(r.calls) != 0 {
		t.Errorf("Expected no hooks to run, got %v", r.calls)
	}

	ctl.Toggle()
	if got := ctl.Value("place"); got != "Oslo" {
		t.Errorf("Expected fresh buffer from the record, got %q", got)
	}
}

func TestBufferIsIsolatedFromRecord(t *testing.T) {
	s, ctl, _ := setup(t, models.Fields{"name": "Ann", "tel": []string{"1"}})

	ctl.Toggle()
	vals := ctl.Values("tel")
	vals[0] = "mutated"
	if got := ctl.Values("tel"); got[0] != "1" {
		t.Errorf("Expected Values to return a copy, got %v", got)
	}

	ctl.SetListItem("tel", 0, "2")
	rec, _ := s.Get(ctl.ID())
	if got := rec.List("tel"); got[0] != "1" {
		t.Errorf("Expected record to keep its list until commit, got %v", got)
	}
}

func TestEditingRequired(t *testing.T) {
	_, ctl, _ := setup(t, models.Fields{"name": "Ann"})

	if err := ctl.SetField("name", "x"); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected ErrNotEditing, got %v", err)
	}
	if err := ctl.FillToday(); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected ErrNotEditing from FillToday, got %v", err)
	}
	if cmd := ctl.Commit(); cmd != nil {
		t.Error("Expected commit outside editing to do nothing")
	}
}

func TestFieldValidation(t *testing.T) {
	_, ctl, _ := setup(t, models.Fields{"name": "Ann"})
	ctl.Toggle()

	if err := ctl.SetField("tel", "1"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected list key to be rejected by SetField, got %v", err)
	}
	if err := ctl.SetField("nickname", "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected unknown key to be rejected, got %v", err)
	}
	if err := ctl.SetListItem("tel", 3, "x"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
	if err := ctl.SetListItem("tel", 0, "x"); err != nil {
		t.Errorf("Expected append at index len to succeed, got %v", err)
	}
}

func TestInputAddressing(t *testing.T) {
	_, ctl, _ := setup(t, models.Fields{"name": "Ann", "mtg": []string{"lunch"}})
	ctl.Toggle()

	if err := ctl.Input("work", "Acme"); err != nil {
		t.Fatalf("Input work failed: %v", err)
	}
	if err := ctl.Input("mtg-0", "dinner"); err != nil {
		t.Fatalf("Input mtg-0 failed: %v", err)
	}
	if err := ctl.Input("mtg-x", "dinner"); err == nil {
		t.Error("Expected malformed index to fail")
	}

	if got := ctl.Value("work"); got != "Acme" {
		t.Errorf("Expected work Acme, got %q", got)
	}
	if got := ctl.Values("mtg"); !slices.Equal(got, []string{"dinner"}) {
		t.Errorf("Expected [dinner], got %v", got)
	}
}

func TestAddListItemAndFillToday(t *testing.T) {
	s, ctl, _ := setup(t, models.Fields{"name": "Ann"})
	ctl.Toggle()

	if err := ctl.AddListItem("email"); err != nil {
		t.Fatalf("AddListItem failed: %v", err)
	}
	if got := ctl.Values("email"); len(got) != 1 || got[0] != "" {
		t.Errorf("Expected one empty email, got %v", got)
	}
	if err := ctl.FillToday(); err != nil {
		t.Fatalf("FillToday failed: %v", err)
	}
	if got := ctl.Value("last"); got != "2024-03-09" {
		t.Errorf("Expected 2024-03-09, got %q", got)
	}

	ctl.Commit()
	rec, _ := s.Get(ctl.ID())
	if rec.String("last") != "2024-03-09" {
		t.Errorf("Expected committed last date, got %q", rec.String("last"))
	}
}

func TestDelete(t *testing.T) {
	s, ctl, r := setup(t, models.Fields{"name": "Ann"})

	if got := ctl.DeletePrompt(); got != "Delete Ann?" {
		t.Errorf("Expected prompt %q, got %q", "Delete Ann?", got)
	}

	if cmd := ctl.Delete(false); cmd != nil {
		t.Error("Expected unconfirmed delete to do nothing")
	}
	if s.Len() != 1 {
		t.Fatalf("Expected contact to survive, got %d", s.Len())
	}

	ctl.Toggle()
	if cmd := ctl.Delete(true); cmd == nil {
		t.Error("Expected confirmed delete to persist")
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty store, got %d", s.Len())
	}
	if !ctl.Removed() || ctl.Editing() {
		t.Error("Expected controller to be removed and not editing")
	}
	if !slices.Equal(r.calls, []string{"persist"}) {
		t.Errorf("Expected a single persist, got %v", r.calls)
	}
	if cmd := ctl.Delete(true); cmd != nil {
		t.Error("Expected second delete to do nothing")
	}
}

func TestCommitAfterRemoval(t *testing.T) {
	s, ctl, r := setup(t, models.Fields{"name": "Ann"})
	ctl.Toggle()
	ctl.SetField("name", "Anna")

	s.Remove(ctl.ID())
	if cmd := ctl.Commit(); cmd != nil {
		t.Error("Expected commit on a vanished contact not to persist")
	}
	if len(r.calls) != 0 {
		t.Errorf("Expected no hooks, got %v", r.calls)
	}
	if ctl.Editing() {
		t.Error("Expected buffer to be dropped")
	}
}

func TestCommitKey(t *testing.T) {
	cases := []struct {
		key  Key
		want bool
	}{
		{Key{Name: "enter"}, false},
		{Key{Name: "enter", Ctrl: true}, true},
		{Key{Name: "enter", Meta: true}, true},
		{Key{Name: "s", Ctrl: true}, false},
	}
	for _, tc := range cases {
		if got := IsCommitKey(tc.key); got != tc.want {
			t.Errorf("IsCommitKey(%+v): expected %v, got %v", tc.key, tc.want, got)
		}
	}

	_, ctl, _ := setup(t, models.Fields{"name": "Ann"})
	if _, handled := ctl.HandleKey(Key{Name: "enter", Ctrl: true}); handled {
		t.Error("Expected commit key to be ignored while viewing")
	}
	ctl.Toggle()
	if _, handled := ctl.HandleKey(Key{Name: "enter"}); handled {
		t.Error("Expected plain enter to pass through")
	}
	if _, handled := ctl.HandleKey(Key{Name: "enter", Meta: true}); !handled {
		t.Error("Expected meta+enter to commit")
	}
	if ctl.Editing() {
		t.Error("Expected viewing state after commit key")
	}
}

func TestKeyFromTea(t *testing.T) {
	k := KeyFromTea(tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	if !IsCommitKey(k) {
		t.Errorf("Expected alt+enter to map to a commit key, got %+v", k)
	}
	k = KeyFromTea(tea.KeyMsg{Type: tea.KeyEnter})
	if IsCommitKey(k) {
		t.Errorf("Expected plain enter not to commit, got %+v", k)
	}
}
