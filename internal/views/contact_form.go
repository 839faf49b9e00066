package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/mira/internal/item"
	"rhystmorgan/mira/internal/models"
)

// formField is one editable row. name is the input name the item controller
// routes on: "prop" for single fields, "prop-idx" for list elements.
type formField struct {
	name      string
	key       string
	label     string
	multiline bool
	// empty marks the stand-in row of a list with no elements yet.
	empty bool

	input textinput.Model
	area  textarea.Model
}

// ContactForm edits the buffer of one item controller. Every keystroke is
// pushed into the buffer, so rebuilding the rows never loses input.
type ContactForm struct {
	item   *item.Controller
	fields []formField
	focus  int
	width  int
	err    error
}

func NewContactForm(ctl *item.Controller, width int) *ContactForm {
	f := &ContactForm{item: ctl, width: width}
	f.build()
	return f
}

func (f *ContactForm) Item() *item.Controller {
	return f.item
}

func (f *ContactForm) Err() error {
	return f.err
}

func (f *ContactForm) build() {
	f.fields = f.fields[:0]

	for _, p := range models.SingleProperties() {
		f.fields = append(f.fields, f.newField(p, p.Key, p.Label, f.item.Value(p.Key)))
	}

	for _, p := range models.MultiProperties() {
		values := f.item.Values(p.Key)
		if len(values) == 0 {
			f.fields = append(f.fields, formField{key: p.Key, label: p.Label, empty: true})
			continue
		}
		for i, v := range values {
			label := p.Label
			if i > 0 {
				label = ""
			}
			f.fields = append(f.fields, f.newField(p, fmt.Sprintf("%s-%d", p.Key, i), label, v))
		}
	}
}

func (f *ContactForm) newField(p models.Property, name, label, value string) formField {
	field := formField{
		name:      name,
		key:       p.Key,
		label:     label,
		multiline: p.Multiline,
	}

	if p.Multiline {
		area := textarea.New()
		area.Placeholder = p.Placeholder
		area.ShowLineNumbers = false
		area.CharLimit = 0
		area.Prompt = ""
		area.SetWidth(f.inputWidth())
		area.SetHeight(max(3, strings.Count(value, "\n")+1))
		area.SetValue(value)
		field.area = area
		return field
	}

	input := textinput.New()
	input.Placeholder = p.Placeholder
	input.Prompt = ""
	input.Width = f.inputWidth()
	input.TextStyle = lipgloss.NewStyle().Foreground(colourText)
	input.PlaceholderStyle = lipgloss.NewStyle().Foreground(colourSurface1)
	input.SetValue(value)
	input.CursorEnd()
	field.input = input
	return field
}

func (f *ContactForm) inputWidth() int {
	if f.width <= 0 {
		return 40
	}
	return max(20, f.width-16)
}

// Focus moves focus to row i and returns the cursor blink command.
func (f *ContactForm) Focus(i int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.focus = (i + len(f.fields)) % len(f.fields)

	var cmd tea.Cmd
	for idx := range f.fields {
		field := &f.fields[idx]
		if field.empty {
			continue
		}
		switch {
		case idx != f.focus && field.multiline:
			field.area.Blur()
		case idx != f.focus:
			field.input.Blur()
		case field.multiline:
			cmd = field.area.Focus()
		default:
			cmd = field.input.Focus()
		}
	}
	return cmd
}

func (f *ContactForm) Next() tea.Cmd {
	return f.Focus(f.focus + 1)
}

func (f *ContactForm) Prev() tea.Cmd {
	return f.Focus(f.focus - 1)
}

// Focused returns the input name of the focused row, or its property key for
// a list with no elements.
func (f *ContactForm) Focused() string {
	if len(f.fields) == 0 {
		return ""
	}
	field := f.fields[f.focus]
	if field.empty {
		return field.key
	}
	return field.name
}

// AddListItem appends an element to the focused list and focuses it.
func (f *ContactForm) AddListItem() tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	key := f.fields[f.focus].key
	if !models.IsMulti(key) {
		return nil
	}
	if f.err = f.item.AddListItem(key); f.err != nil {
		return nil
	}

	f.build()
	last := f.focus
	for i, field := range f.fields {
		if field.key == key {
			last = i
		}
	}
	return f.Focus(last)
}

// FillToday sets the last-contact row to today's date.
func (f *ContactForm) FillToday() {
	if f.err = f.item.FillToday(); f.err != nil {
		return
	}
	for i := range f.fields {
		if f.fields[i].name == "last" {
			f.fields[i].input.SetValue(f.item.Value("last"))
			f.fields[i].input.CursorEnd()
		}
	}
}

// Update feeds a key to the focused row and pushes its value into the buffer.
func (f *ContactForm) Update(msg tea.KeyMsg) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	field := &f.fields[f.focus]
	if field.empty {
		return nil
	}

	var (
		cmd           tea.Cmd
		before, after string
	)
	if field.multiline {
		before = field.area.Value()
		field.area, cmd = field.area.Update(msg)
		after = field.area.Value()
		field.area.SetHeight(max(3, strings.Count(after, "\n")+1))
	} else {
		before = field.input.Value()
		field.input, cmd = field.input.Update(msg)
		after = field.input.Value()
	}

	if after != before {
		f.err = f.item.Input(field.name, after)
	}
	return cmd
}

func (f *ContactForm) View() string {
	var b strings.Builder

	for i, field := range f.fields {
		style := labelStyle
		if i == f.focus {
			style = focusedLabelStyle
		}

		var value string
		switch {
		case field.empty:
			value = lipgloss.NewStyle().Foreground(colourSurface1).Render("[Ctrl+N] add")
		case field.multiline:
			value = field.area.View()
		default:
			value = field.input.View()
		}

		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, style.Render(field.label), value))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
