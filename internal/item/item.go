// Package item holds the per-contact edit state machine.
package item

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
)

type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

// DateLayout is the format "fill today" writes into the last-contact field.
const DateLayout = "2006-01-02"

var (
	ErrNotEditing      = errors.New("contact is not being edited")
	ErrUnknownField    = errors.New("unknown field")
	ErrIndexOutOfRange = errors.New("list index out of range")
	ErrRemoved         = errors.New("contact has been removed")
)

// Hooks are the side effects a controller triggers on commit and delete.
type Hooks struct {
	// Persister starts an asynchronous save of the whole collection.
	Persister func() tea.Cmd
	// Sorter recomputes the visible list.
	Sorter func()
	Clock  func() time.Time
}

// Controller toggles one contact between viewing and editing. While editing,
// changes go to a private buffer that only reaches the store on Commit.
type Controller struct {
	id      string
	store   *store.ContactStore
	hooks   Hooks
	state   State
	buffer  models.Fields
	removed bool
}

func New(id string, s *store.ContactStore, hooks Hooks) *Controller {
	if hooks.Persister == nil {
		hooks.Persister = func() tea.Cmd { return nil }
	}
	if hooks.Sorter == nil {
		hooks.Sorter = func() {}
	}
	if hooks.Clock == nil {
		hooks.Clock = time.Now
	}
	return &Controller{id: id, store: s, hooks: hooks}
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Editing() bool {
	return c.state == Editing
}

func (c *Controller) Removed() bool {
	return c.removed
}

// Record returns the contact this controller edits, or nil once removed.
func (c *Controller) Record() *models.Contact {
	rec, ok := c.store.Get(c.id)
	if !ok {
		return nil
	}
	return rec
}

// Toggle enters editing, or commits when already editing.
func (c *Controller) Toggle() tea.Cmd {
	if c.state == Editing {
		return c.Commit()
	}
	c.begin()
	return nil
}

func (c *Controller) begin() {
	rec := c.Record()
	if rec == nil {
		return
	}
	c.buffer = rec.Serialize()
	c.state = Editing
}

// Commit applies the buffer to the contact, re-sorts and starts a save.
func (c *Controller) Commit() tea.Cmd {
	if c.state != Editing {
		return nil
	}
	buffer := c.buffer
	c.buffer = nil
	c.state = Viewing

	if !c.store.Update(c.id, buffer) {
		return nil
	}
	c.hooks.Sorter()
	return c.hooks.Persister()
}

// Cancel drops the buffer without touching the contact.
func (c *Controller) Cancel() {
	c.buffer = nil
	c.state = Viewing
}

func (c *Controller) SetField(key, value string) error {
	if err := c.checkEditing(); err != nil {
		return err
	}
	if !models.IsSingle(key) {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	c.buffer[key] = value
	return nil
}

// SetListItem sets one element of a multi-valued field. An index equal to
// the list length appends.
func (c *Controller) SetListItem(key string, idx int, value string) error {
	if err := c.checkEditing(); err != nil {
		return err
	}
	if !models.IsMulti(key) {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}

	list := c.list(key)
	switch {
	case idx < 0 || idx > len(list):
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, key, idx)
	case idx == len(list):
		list = append(list, value)
	default:
		list[idx] = value
	}
	c.buffer[key] = list
	return nil
}

// Input routes a form input by name: "prop" for single fields and
// "prop-idx" for list elements.
func (c *Controller) Input(name, value string) error {
	key, idxStr, isList := strings.Cut(name, "-")
	if !isList {
		return c.SetField(key, value)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIndexOutOfRange, name)
	}
	return c.SetListItem(key, idx, value)
}

// AddListItem appends an empty element to a multi-valued field.
func (c *Controller) AddListItem(key string) error {
	if err := c.checkEditing(); err != nil {
		return err
	}
	if !models.IsMulti(key) {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	c.buffer[key] = append(c.list(key), "")
	return nil
}

// FillToday writes today's date into the buffered last-contact field.
func (c *Controller) FillToday() error {
	return c.SetField("last", c.hooks.Clock().UTC().Format(DateLayout))
}

// Value returns a buffered single field while editing, or the stored one.
func (c *Controller) Value(key string) string {
	if c.state == Editing {
		s, _ := c.buffer[key].(string)
		return s
	}
	if rec := c.Record(); rec != nil {
		return rec.String(key)
	}
	return ""
}

// Values returns a copy of a buffered list while editing, or the stored one.
func (c *Controller) Values(key string) []string {
	if c.state == Editing {
		return slices.Clone(c.list(key))
	}
	if rec := c.Record(); rec != nil {
		return rec.List(key)
	}
	return nil
}

// DeletePrompt is the question to confirm before Delete.
func (c *Controller) DeletePrompt() string {
	name := ""
	if rec := c.Record(); rec != nil {
		name = rec.Name()
	}
	return fmt.Sprintf("Delete %s?", name)
}

// Delete removes the contact and starts a save. Without confirmation it does
// nothing.
func (c *Controller) Delete(confirmed bool) tea.Cmd {
	if !confirmed || c.removed {
		return nil
	}
	if !c.store.Remove(c.id) {
		return nil
	}
	c.removed = true
	c.buffer = nil
	c.state = Viewing
	return c.hooks.Persister()
}

func (c *Controller) checkEditing() error {
	if c.removed {
		return ErrRemoved
	}
	if c.state != Editing {
		return ErrNotEditing
	}
	return nil
}

func (c *Controller) list(key string) []string {
	switch v := c.buffer[key].(type) {
	case []string:
		return v
	case nil:
		return nil
	default:
		s := fmt.Sprint(v)
		return []string{s}
	}
}
