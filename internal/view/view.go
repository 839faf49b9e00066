// Package view derives the filtered, sorted and capped list of contacts that
// is actually shown.
package view

import (
	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
)

// DefaultLimit is the number of contacts shown at once.
const DefaultLimit = 20

// Predicate selects contacts for display.
type Predicate func(*models.Contact) bool

func acceptAll(*models.Contact) bool { return true }

type View struct {
	store     *store.ContactStore
	predicate Predicate
	limit     int

	visible []*models.Contact
	matched int

	listeners   []func()
	unsubscribe func()
}

// New builds a view over s and keeps it current on every store change.
func New(s *store.ContactStore, limit int) *View {
	if limit <= 0 {
		limit = DefaultLimit
	}
	v := &View{
		store:     s,
		predicate: acceptAll,
		limit:     limit,
	}
	v.unsubscribe = s.Subscribe(func(store.Event) {
		v.Recompute()
	})
	v.Recompute()
	return v
}

// Filter replaces the predicate and recomputes immediately. A nil predicate
// accepts everything.
func (v *View) Filter(p Predicate) {
	if p == nil {
		p = acceptAll
	}
	v.predicate = p
	v.Recompute()
}

func (v *View) Unfilter() {
	v.Filter(nil)
}

// Recompute re-reads the store, applies the predicate, sorts and truncates.
func (v *View) Recompute() {
	records := v.store.Records()

	visible := make([]*models.Contact, 0, min(len(records), v.limit))
	matched := 0
	for _, c := range records {
		if !v.predicate(c) {
			continue
		}
		matched++
		if len(visible) < v.limit {
			visible = append(visible, c)
		}
	}

	v.visible = visible
	v.matched = matched

	for _, fn := range v.listeners {
		fn()
	}
}

// Items returns the visible contacts in display order.
func (v *View) Items() []*models.Contact {
	out := make([]*models.Contact, len(v.visible))
	copy(out, v.visible)
	return out
}

// Matched is the number of contacts accepted by the predicate, before the cap.
func (v *View) Matched() int {
	return v.matched
}

func (v *View) Limit() int {
	return v.limit
}

// OnChange registers fn to run after every recompute.
func (v *View) OnChange(fn func()) {
	v.listeners = append(v.listeners, fn)
}

func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}
