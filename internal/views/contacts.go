package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/mira/internal/app"
	"rhystmorgan/mira/internal/item"
	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
	"rhystmorgan/mira/internal/utils"
)

// noName stands in for a contact whose name was cleared. It is not the
// sentinel, which only marks freshly added contacts.
const noName = "(no name)"

type ContactMode int

const (
	ModeList ContactMode = iota
	ModeSearch
	ModeEdit
	ModeConfirmDelete
)

func (m ContactMode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeEdit:
		return "edit"
	case ModeConfirmDelete:
		return "confirm-delete"
	default:
		return "list"
	}
}

type ContactsModel struct {
	ctl *app.Controller
	now func() time.Time

	mode        ContactMode
	searchInput textinput.Model
	selected    int

	form *ContactForm

	// pending is the contact a delete confirmation is for; afterDelete is
	// the mode to return to when it is cancelled.
	pending     *item.Controller
	afterDelete ContactMode

	width  int
	height int
}

func NewContactsModel(ctl *app.Controller, now func() time.Time) *ContactsModel {
	if now == nil {
		now = time.Now
	}

	searchInput := textinput.New()
	searchInput.Prompt = "/ "
	searchInput.CharLimit = 200
	searchInput.PromptStyle = lipgloss.NewStyle().Foreground(colourBlue)
	searchInput.TextStyle = lipgloss.NewStyle().Foreground(colourText)

	m := &ContactsModel{
		ctl:         ctl,
		now:         now,
		mode:        ModeList,
		searchInput: searchInput,
	}
	m.Refresh()
	return m
}

func (m *ContactsModel) Mode() ContactMode {
	return m.mode
}

func (m *ContactsModel) Selected() int {
	return m.selected
}

func (m *ContactsModel) Form() *ContactForm {
	return m.form
}

// Refresh brings derived state in line with the controller after the
// collection changed underneath the model.
func (m *ContactsModel) Refresh() {
	m.searchInput.Placeholder = fmt.Sprintf("search %d contacts ...", m.ctl.Store().Len())

	if m.form != nil && (m.form.Item().Removed() || m.form.Item().Record() == nil) {
		m.form = nil
		if m.mode == ModeEdit {
			m.mode = ModeList
		}
	}
	if m.pending != nil && m.pending.Record() == nil {
		m.pending = nil
		if m.mode == ModeConfirmDelete {
			m.mode = ModeList
		}
	}

	if n := len(m.ctl.View().Items()); m.selected >= n {
		m.selected = max(0, n-1)
	}
}

func (m *ContactsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = max(10, width/2)
}

func (m *ContactsModel) Init() tea.Cmd {
	return nil
}

func (m *ContactsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		switch m.mode {
		case ModeSearch:
			cmd = m.updateSearch(msg)
		case ModeEdit:
			cmd = m.updateEdit(msg)
		case ModeConfirmDelete:
			cmd = m.updateDeleteConfirm(msg)
		default:
			cmd = m.updateList(msg)
		}
		m.Refresh()
		return m, cmd
	}

	return m, nil
}

func (m *ContactsModel) current() *item.Controller {
	items := m.ctl.Items()
	if m.selected < 0 || m.selected >= len(items) {
		return nil
	}
	return items[m.selected]
}

func (m *ContactsModel) updateList(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.ctl.View().Items())-1 {
			m.selected++
		}

	case "home", "g":
		m.selected = 0

	case "/":
		m.mode = ModeSearch
		return m.searchInput.Focus()

	case "a", "ctrl+n":
		if !m.ctl.Ready() {
			return nil
		}
		m.selected = 0
		return m.ctl.Add()

	case "enter", "e":
		if ctl := m.current(); ctl != nil && m.ctl.Ready() {
			return m.beginEdit(ctl)
		}

	case "d", "delete", "ctrl+d":
		if ctl := m.current(); ctl != nil && m.ctl.Ready() {
			m.confirmDelete(ctl, ModeList)
		}

	case "r", "ctrl+r":
		return m.ctl.Reload()

	case "esc":
		if m.ctl.SearchValue() != "" {
			m.searchInput.SetValue("")
			m.ctl.Search("")
			m.selected = 0
		}
	}

	return nil
}

func (m *ContactsModel) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter", "down":
		m.searchInput.Blur()
		m.mode = ModeList
		return nil
	}

	var cmd tea.Cmd
	before := m.searchInput.Value()
	m.searchInput, cmd = m.searchInput.Update(msg)
	if value := m.searchInput.Value(); value != before {
		m.ctl.Search(value)
		m.selected = 0
	}
	return cmd
}

func (m *ContactsModel) beginEdit(ctl *item.Controller) tea.Cmd {
	if !ctl.Editing() {
		ctl.Toggle()
	}
	m.form = NewContactForm(ctl, m.width)
	m.mode = ModeEdit
	return m.form.Focus(0)
}

func (m *ContactsModel) updateEdit(msg tea.KeyMsg) tea.Cmd {
	ctl := m.form.Item()

	if cmd, ok := ctl.HandleKey(item.KeyFromTea(msg)); ok {
		return m.finishEdit(ctl, cmd)
	}

	switch msg.String() {
	case "ctrl+s":
		return m.finishEdit(ctl, ctl.Commit())

	case "esc":
		ctl.Cancel()
		m.form = nil
		m.mode = ModeList
		return nil

	case "tab":
		return m.form.Next()

	case "shift+tab":
		return m.form.Prev()

	case "ctrl+n":
		return m.form.AddListItem()

	case "ctrl+t":
		m.form.FillToday()
		return nil

	case "ctrl+d":
		m.confirmDelete(ctl, ModeEdit)
		return nil
	}

	return m.form.Update(msg)
}

// finishEdit leaves the form and keeps the edited contact selected, wherever
// the commit sorted it to.
func (m *ContactsModel) finishEdit(ctl *item.Controller, cmd tea.Cmd) tea.Cmd {
	m.form = nil
	m.mode = ModeList
	for i, other := range m.ctl.Items() {
		if other.ID() == ctl.ID() {
			m.selected = i
			break
		}
	}
	return cmd
}

func (m *ContactsModel) confirmDelete(ctl *item.Controller, from ContactMode) {
	m.pending = ctl
	m.afterDelete = from
	m.mode = ModeConfirmDelete
}

func (m *ContactsModel) updateDeleteConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		ctl := m.pending
		m.pending = nil
		m.mode = ModeList
		if m.form != nil && m.form.Item() == ctl {
			m.form = nil
		}
		return ctl.Delete(true)

	case "n", "N", "esc":
		m.pending.Delete(false)
		m.pending = nil
		m.mode = m.afterDelete
		if m.mode == ModeEdit && m.form == nil {
			m.mode = ModeList
		}
	}
	return nil
}

func (m *ContactsModel) View() string {
	var b strings.Builder

	b.WriteString(m.renderSearchBar())
	b.WriteString("\n")

	if msg := m.renderStatus(); msg != "" {
		b.WriteString(msg)
		b.WriteString("\n")
	}

	b.WriteString(m.renderContactList())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *ContactsModel) renderSearchBar() string {
	style := searchStyle
	if m.mode == ModeSearch {
		style = searchFocusedStyle
	}
	return style.Render(m.searchInput.View())
}

func (m *ContactsModel) renderStatus() string {
	var lines []string

	if err := m.ctl.Err(); err != nil {
		lines = append(lines, errorStyle.Render("Could not load contacts: "+store.UserMessage(err)+" [R] Retry"))
	}
	if err := m.ctl.PersistErr(); err != nil {
		text := "Changes not saved: " + store.UserMessage(err)
		if n := m.ctl.PersistFailures(); n > 1 {
			text += fmt.Sprintf(" (%d failures)", n)
		}
		lines = append(lines, warningStyle.Render(text))
	}
	if err := m.ctl.SearchErr(); err != nil {
		lines = append(lines, warningStyle.Render("Invalid expression: "+utils.FirstLine(err.Error())))
	}
	if m.form != nil && m.form.Err() != nil {
		lines = append(lines, errorStyle.Render(m.form.Err().Error()))
	}

	return strings.Join(lines, "\n")
}

func (m *ContactsModel) renderContactList() string {
	items := m.ctl.Items()
	if len(items) == 0 {
		if !m.ctl.Loaded() {
			if m.ctl.Err() != nil {
				return ""
			}
			return emptyStyle.Render("Loading contacts ...")
		}
		if m.ctl.SearchValue() != "" {
			return emptyStyle.Render("No contacts match the search.")
		}
		return emptyStyle.Render("No contacts yet. Press [A] to add one.")
	}

	var b strings.Builder
	for i, ctl := range items {
		b.WriteString(m.renderContactItem(ctl, i == m.selected))
		b.WriteString("\n")
	}

	v := m.ctl.View()
	if more := v.Matched() - len(items); more > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d more, refine the search to see them", more)))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m *ContactsModel) renderContactItem(ctl *item.Controller, isSelected bool) string {
	width := max(0, m.width-4)

	if m.form != nil && m.form.Item() == ctl {
		return editingItemStyle.Width(width).Render(m.form.View())
	}

	rec := ctl.Record()
	if rec == nil {
		return ""
	}

	var rows []string

	name := rec.Name()
	switch {
	case name == models.SentinelName:
		rows = append(rows, sentinelStyle.Render(models.SentinelName))
	case strings.TrimSpace(name) == "":
		rows = append(rows, unnamedStyle.Render(noName))
	default:
		rows = append(rows, nameStyle.Render(utils.TruncateString(name, utils.MaxValueLength)))
	}

	for _, p := range models.SingleProperties() {
		if p.Key == "name" {
			continue
		}
		value := rec.String(p.Key)
		if strings.TrimSpace(value) == "" {
			continue
		}
		value = utils.TruncateString(value, utils.MaxValueLength)
		if p.Key == "last" {
			if t, ok := store.ParseDate(value); ok {
				value += " " + agoStyle.Render(utils.FormatTimeAgo(t, m.now()))
			}
		}
		rows = append(rows, renderRow(p.Label, value))
	}

	for _, p := range models.MultiProperties() {
		label := p.Label
		for _, value := range rec.List(p.Key) {
			if strings.TrimSpace(value) == "" {
				continue
			}
			rows = append(rows, renderRow(label, utils.TruncateString(value, utils.MaxValueLength)))
			label = ""
		}
	}

	style := itemStyle
	if isSelected {
		style = selectedItemStyle
	}
	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func renderRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func (m *ContactsModel) renderFooter() string {
	var controls string

	switch m.mode {
	case ModeSearch:
		controls = "Type to filter, start with = for an expression  [Enter/Esc] Done"
	case ModeEdit:
		controls = "[Tab] Next  [Ctrl+N] Add Item  [Ctrl+T] Today  [Ctrl+S/Alt+Enter] Save  [Ctrl+D] Delete  [Esc] Cancel"
	case ModeConfirmDelete:
		prompt := ""
		if m.pending != nil {
			prompt = m.pending.DeletePrompt()
		}
		return confirmStyle.Render(prompt) + " " + helpStyle.Render("[Y] Yes, Delete  [N] Cancel  [Esc] Cancel")
	default:
		controls = "[J/K] Move  [Enter/E] Edit  [A] Add  [D] Delete  [/] Search  [R] Reload  [Q] Quit"
	}

	return helpStyle.Render(controls)
}
