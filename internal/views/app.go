package views

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/mira/internal/app"
)

// AppModel is the bubbletea root. It owns the application controller and
// routes the controller's own messages back to it before the contact list
// sees anything.
type AppModel struct {
	width  int
	height int

	ctl      *app.Controller
	contacts *ContactsModel
	spinner  spinner.Model
}

func NewAppModel(ctl *app.Controller, now func() time.Time) AppModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(colourPeach)

	return AppModel{
		ctl:      ctl,
		contacts: NewContactsModel(ctl, now),
		spinner:  s,
	}
}

func (m AppModel) Contacts() *ContactsModel {
	return m.contacts
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.ctl.Start(), m.spinner.Tick)
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.contacts.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case app.FetchedMsg, app.PersistedMsg:
		cmd := m.ctl.Update(msg)
		m.contacts.Refresh()
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	model, cmd := m.contacts.Update(msg)
	if contactsModel, ok := model.(*ContactsModel); ok {
		m.contacts = contactsModel
	}
	return m, cmd
}

func (m AppModel) View() string {
	header := titleStyle.Render("mira")

	status := addButtonStyle.Render("[A] + add")
	if m.ctl.Busy() {
		status = m.spinner.View() + " " + lipgloss.NewStyle().Foreground(colourSubtext).Render("syncing")
	}

	headerLine := lipgloss.NewStyle().
		Background(colourSurface0).
		Width(max(0, m.width)).
		Render(lipgloss.JoinHorizontal(lipgloss.Center, header, " ", status))

	return lipgloss.JoinVertical(lipgloss.Left, headerLine, m.contacts.View())
}
