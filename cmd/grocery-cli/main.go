package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"grocery-sync/entities"
	"grocery-sync/ws"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true).
			PaddingLeft(2)

	normalStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Strikethrough(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

type step int

const (
	stepEnteringEmail step = iota
	stepEnteringPassword
	stepLoggingIn
	stepBrowsing
	stepEnteringItem
)

type model struct {
	api *apiClient

	step         step
	email        string
	password     string
	currentInput string
	message      string
	quitting     bool

	user   *entities.User
	items  []entities.GroceryItem
	cursor int
	events <-chan ws.Envelope
}

type loginSuccessMsg struct {
	user   *entities.User
	items  []entities.GroceryItem
	events <-chan ws.Envelope
}
type itemChangedMsg struct{ text string }
type realtimeMsg ws.Envelope
type realtimeClosedMsg struct{}
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func initialModel(api *apiClient) model {
	return model{api: api, step: stepEnteringEmail}
}

func (m model) Init() tea.Cmd {
	return nil
}

// login authenticates, signing up first when asked to, then loads the list
// and subscribes to realtime events.
func login(api *apiClient, email, password string, signup bool) tea.Cmd {
	return func() tea.Msg {
		if signup {
			if err := api.Signup(email, password); err != nil {
				return errMsg{err}
			}
		}
		user, err := api.Login(email, password)
		if err != nil {
			return errMsg{err}
		}
		items, err := api.List()
		if err != nil {
			return errMsg{err}
		}
		events, err := api.Subscribe()
		if err != nil {
			return errMsg{err}
		}
		return loginSuccessMsg{user: user, items: items, events: events}
	}
}

func waitForEvent(events <-chan ws.Envelope) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-events
		if !ok {
			return realtimeClosedMsg{}
		}
		return realtimeMsg(env)
	}
}

// The list itself is refreshed by the realtime events these calls trigger.
func addItem(api *apiClient, name string) tea.Cmd {
	return func() tea.Msg {
		item, err := api.Add(name)
		if err != nil {
			return errMsg{err}
		}
		return itemChangedMsg{"Added " + item.Name}
	}
}

func toggleItem(api *apiClient, item entities.GroceryItem) tea.Cmd {
	return func() tea.Msg {
		completed := entities.ItemCompleted
		if item.Completed == entities.ItemCompleted {
			completed = entities.ItemPending
		}
		updated, err := api.SetCompleted(item.ID, completed)
		if err != nil {
			return errMsg{err}
		}
		return itemChangedMsg{"Updated " + updated.Name}
	}
}

func deleteItem(api *apiClient, item entities.GroceryItem) tea.Cmd {
	return func() tea.Msg {
		deleted, err := api.Delete(item.ID)
		if err != nil {
			return errMsg{err}
		}
		return itemChangedMsg{"Deleted " + deleted.Name}
	}
}

type itemPayload struct {
	List entities.GroceryItem `json:"list"`
}

type locationPayload struct {
	UserID    string  `json:"userid"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// applyEvent folds a realtime event into the local list and returns a status
// line describing it, if any.
func applyEvent(items []entities.GroceryItem, env ws.Envelope) ([]entities.GroceryItem, string) {
	switch env.Event {
	case ws.EventGroceryAdd, ws.EventGroceryUpdate, ws.EventGroceryDelete:
		var p itemPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.List.ID == "" {
			return items, ""
		}
		idx := -1
		for i, it := range items {
			if it.ID == p.List.ID {
				idx = i
				break
			}
		}
		switch {
		case env.Event == ws.EventGroceryDelete:
			if idx >= 0 {
				items = append(items[:idx:idx], items[idx+1:]...)
			}
		case idx >= 0:
			items[idx] = p.List
		default:
			items = append(items, p.List)
		}
		return items, ""

	case ws.EventLocationUpdate:
		var p locationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return items, ""
		}
		return items, fmt.Sprintf("%s is at %.5f, %.5f", p.UserID, p.Latitude, p.Longitude)

	case ws.EventStartLocationUpdate:
		return items, "A friend started sharing their location"

	case ws.EventStopLocationUpdate:
		return items, "A friend stopped sharing their location"
	}
	return items, ""
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case loginSuccessMsg:
		m.user = msg.user
		m.items = msg.items
		m.events = msg.events
		m.step = stepBrowsing
		m.message = successStyle.Render("✓ Logged in as " + m.user.Email)
		return m, waitForEvent(m.events)

	case itemChangedMsg:
		m.message = successStyle.Render("✓ " + msg.text)

	case realtimeMsg:
		var status string
		m.items, status = applyEvent(m.items, ws.Envelope(msg))
		if m.cursor >= len(m.items) && m.cursor > 0 {
			m.cursor = len(m.items) - 1
		}
		if status != "" {
			m.message = status
		}
		return m, waitForEvent(m.events)

	case realtimeClosedMsg:
		m.message = errorStyle.Render("✗ Realtime connection lost")

	case errMsg:
		m.message = errorStyle.Render("✗ " + msg.err.Error())
		if m.step == stepLoggingIn {
			m.step = stepEnteringEmail
		}
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.step {
	case stepEnteringEmail, stepEnteringPassword, stepEnteringItem:
		switch key {
		case "esc":
			if m.step == stepEnteringItem {
				m.currentInput = ""
				m.step = stepBrowsing
			}
		case "backspace":
			if len(m.currentInput) > 0 {
				m.currentInput = m.currentInput[:len(m.currentInput)-1]
			}
		case "enter", "ctrl+s":
			return m.submitInput(key == "ctrl+s")
		default:
			switch msg.Type {
			case tea.KeySpace:
				m.currentInput += " "
			case tea.KeyRunes:
				m.currentInput += string(msg.Runes)
			}
		}

	case stepBrowsing:
		switch key {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "a":
			m.step = stepEnteringItem
			m.currentInput = ""
		case "enter", " ":
			if len(m.items) > 0 {
				return m, toggleItem(m.api, m.items[m.cursor])
			}
		case "d":
			if len(m.items) > 0 {
				return m, deleteItem(m.api, m.items[m.cursor])
			}
		}
	}
	return m, nil
}

func (m model) submitInput(signup bool) (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.currentInput)
	if input == "" {
		return m, nil
	}
	m.currentInput = ""

	switch m.step {
	case stepEnteringEmail:
		m.email = input
		m.step = stepEnteringPassword
	case stepEnteringPassword:
		m.password = input
		m.step = stepLoggingIn
		m.message = "Logging in..."
		return m, login(m.api, m.email, m.password, signup)
	case stepEnteringItem:
		m.step = stepBrowsing
		return m, addItem(m.api, input)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("🛒 Grocery Sync\n\n"))

	switch m.step {
	case stepEnteringEmail:
		if m.message != "" {
			s.WriteString(m.message + "\n\n")
		}
		s.WriteString(promptStyle.Render("Enter your email:\n"))
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter\n")

	case stepEnteringPassword:
		s.WriteString(promptStyle.Render("Enter your password:\n"))
		s.WriteString(inputStyle.Render("> " + strings.Repeat("•", len(m.currentInput))))
		s.WriteString("\n\nPress Enter to log in, Ctrl+S to sign up\n")

	case stepLoggingIn:
		s.WriteString(m.message + "\n")

	case stepBrowsing:
		if len(m.items) == 0 {
			s.WriteString(normalStyle.Render("The list is empty.") + "\n")
		}
		for i, item := range m.items {
			cursor := " "
			style := normalStyle
			if m.cursor == i {
				cursor = ">"
				style = selectedStyle
			}
			check := "[ ]"
			name := item.Name
			if item.Completed == entities.ItemCompleted {
				check = "[x]"
				name = doneStyle.Render(name)
			}
			s.WriteString(fmt.Sprintf("%s %s\n", cursor, style.Render(check+" "+name)))
		}
		if m.message != "" {
			s.WriteString("\n" + m.message + "\n")
		}
		s.WriteString("\n↑/↓ move, Enter toggle, a add, d delete, q quit\n")

	case stepEnteringItem:
		s.WriteString(promptStyle.Render("New item:\n"))
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nEnter to add, Esc to cancel\n")
	}

	return s.String()
}

func main() {
	var serverURL string

	cmd := &cobra.Command{
		Use:          "grocery-cli",
		Short:        "Terminal client for grocery-sync",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := tea.NewProgram(initialModel(newAPIClient(serverURL)))
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", envOr("GROCERY_SYNC_SERVER", "http://localhost:8080"), "grocery-sync server URL")

	if err := cmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
