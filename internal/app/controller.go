// Package app wires the contact store, the visible list and the per-contact
// editors into one controller driven by bubbletea messages.
package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rhystmorgan/mira/internal/item"
	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
	"rhystmorgan/mira/internal/view"
)

// ExpressionPrefix switches the search box from substring to expression mode.
const ExpressionPrefix = "="

const DefaultTimeout = 10 * time.Second

type Options struct {
	Clock    func() time.Time
	Timeout  time.Duration
	Logger   *slog.Logger
	PageSize int
}

// Controller owns the store, a view over it and one item controller per
// contact. Everything except the commands it returns runs on the caller's
// goroutine.
type Controller struct {
	store *store.ContactStore
	view  *view.View
	opts  Options
	log   *slog.Logger

	items       map[string]*item.Controller
	unsubscribe func()

	search    string
	searchErr error

	busy int

	// loaded is set by the first successful fetch. Until then the local
	// collection is not the remote's and must never be saved over it.
	loaded   bool
	fetching bool

	err             error
	persistErr      error
	persistFailures int
}

func New(s *store.ContactStore, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		store: s,
		opts:  opts,
		log:   opts.Logger,
		items: make(map[string]*item.Controller),
	}
	c.unsubscribe = s.Subscribe(c.prune)
	c.view = view.New(s, opts.PageSize)
	return c
}

func (c *Controller) prune(ev store.Event) {
	switch ev.Kind {
	case store.EventRemove:
		delete(c.items, ev.ID)
	case store.EventReset:
		for id := range c.items {
			if _, ok := c.store.Get(id); !ok {
				delete(c.items, id)
			}
		}
	}
}

func (c *Controller) requestContext() (context.Context, context.CancelFunc) {
	if c.opts.Timeout < 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.opts.Timeout)
}

// Start marks the controller busy and returns the command performing the
// initial fetch.
func (c *Controller) Start() tea.Cmd {
	c.busy++
	c.fetching = true
	c.err = nil
	s := c.store
	return func() tea.Msg {
		ctx, cancel := c.requestContext()
		defer cancel()
		payload, err := s.Load(ctx)
		return FetchedMsg{Payload: payload, Err: err}
	}
}

// Update applies results of commands started by the controller. It returns a
// follow-up command, which is currently always nil.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case FetchedMsg:
		c.done()
		c.fetching = false
		if msg.Err != nil {
			c.err = msg.Err
			c.log.Error("failed to fetch contacts", "error", msg.Err)
			return nil
		}
		c.store.Reset(msg.Payload)
		c.loaded = true
		c.log.Info("contacts fetched", "count", len(msg.Payload))

	case PersistedMsg:
		c.done()
		if msg.Err != nil {
			c.persistErr = msg.Err
			c.persistFailures++
			c.log.Error("failed to persist contacts", "error", msg.Err, "count", msg.Count)
			return nil
		}
		c.persistErr = nil
		c.log.Debug("contacts persisted", "count", msg.Count)
	}
	return nil
}

func (c *Controller) done() {
	if c.busy > 0 {
		c.busy--
	}
}

// Reload fetches the collection again. It returns nil while a fetch or save
// is outstanding or a contact is being edited, since the response would
// overwrite local changes the remote has not seen yet.
func (c *Controller) Reload() tea.Cmd {
	if c.Busy() || c.Editing() {
		c.log.Debug("reload ignored", "busy", c.Busy(), "editing", c.Editing())
		return nil
	}
	return c.Start()
}

// Persister snapshots the collection now and returns the command that sends
// it. Saves are not coalesced; the last one to land wins. Nothing is sent
// before a fetch has succeeded or while one is in flight.
func (c *Controller) Persister() tea.Cmd {
	if !c.Ready() {
		c.log.Warn("save refused, contacts not loaded", "loaded", c.loaded, "fetching", c.fetching)
		return nil
	}
	body, err := c.store.Snapshot()
	if err != nil {
		c.persistErr = err
		c.persistFailures++
		c.log.Error("failed to snapshot contacts", "error", err)
		return nil
	}

	c.busy++
	s := c.store
	count := s.Len()
	return func() tea.Msg {
		ctx, cancel := c.requestContext()
		defer cancel()
		return PersistedMsg{Count: count, Err: s.Push(ctx, body)}
	}
}

// Sorter re-sorts and re-filters the visible list.
func (c *Controller) Sorter() {
	c.view.Recompute()
}

// Today is the clock's UTC date in the format stored in the last-contact
// field.
func (c *Controller) Today() string {
	return c.opts.Clock().UTC().Format(item.DateLayout)
}

// Add creates a placeholder contact met today and saves the collection. It
// does nothing until the contacts are loaded.
func (c *Controller) Add() tea.Cmd {
	if !c.Ready() {
		c.log.Warn("add refused, contacts not loaded")
		return nil
	}
	created := c.store.Create(models.Fields{
		"name": models.SentinelName,
		"last": c.Today(),
	})
	c.log.Info("contact added", "id", created.ID())
	return c.Persister()
}

// Search filters the list. Input starting with "=" is compiled as an
// expression; a compile error is kept in SearchErr and matches nothing.
func (c *Controller) Search(input string) {
	c.search = strings.TrimSpace(input)
	c.searchErr = nil

	switch {
	case c.search == "":
		c.view.Unfilter()
	case strings.HasPrefix(c.search, ExpressionPrefix):
		pred, err := view.Compile(strings.TrimPrefix(c.search, ExpressionPrefix))
		if err != nil {
			c.searchErr = err
			c.view.Filter(func(*models.Contact) bool { return false })
			return
		}
		c.view.Filter(pred)
	default:
		c.view.Filter(view.MatchTerm(c.search))
	}
}

func (c *Controller) SearchValue() string {
	return c.search
}

func (c *Controller) SearchErr() error {
	return c.searchErr
}

func (c *Controller) Busy() bool {
	return c.busy > 0
}

// Ready reports whether the collection came from a successful fetch and no
// fetch is pending, so it is safe to change and save.
func (c *Controller) Ready() bool {
	return c.loaded && !c.fetching
}

func (c *Controller) Loaded() bool {
	return c.loaded
}

// Editing reports whether any contact has an open edit buffer.
func (c *Controller) Editing() bool {
	for _, ctl := range c.items {
		if ctl.Editing() {
			return true
		}
	}
	return false
}

// Err is the last fetch failure.
func (c *Controller) Err() error {
	return c.err
}

// PersistErr is the last save failure, cleared by the next successful save.
func (c *Controller) PersistErr() error {
	return c.persistErr
}

func (c *Controller) PersistFailures() int {
	return c.persistFailures
}

// Item returns the controller for a contact, creating it on first use.
func (c *Controller) Item(id string) *item.Controller {
	if ctl, ok := c.items[id]; ok {
		return ctl
	}
	if _, ok := c.store.Get(id); !ok {
		return nil
	}
	ctl := item.New(id, c.store, item.Hooks{
		Persister: c.Persister,
		Sorter:    c.Sorter,
		Clock:     c.opts.Clock,
	})
	c.items[id] = ctl
	return ctl
}

// Items returns controllers for the visible contacts in display order.
func (c *Controller) Items() []*item.Controller {
	visible := c.view.Items()
	out := make([]*item.Controller, 0, len(visible))
	for _, rec := range visible {
		if ctl := c.Item(rec.ID()); ctl != nil {
			out = append(out, ctl)
		}
	}
	return out
}

func (c *Controller) View() *view.View {
	return c.view
}

func (c *Controller) Store() *store.ContactStore {
	return c.store
}

func (c *Controller) Close() {
	c.view.Close()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}
