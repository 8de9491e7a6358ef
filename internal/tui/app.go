// Package tui provides the interactive terminal board for pacer.
package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	groupHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(secondaryColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

const (
	modePipeline = "pipeline"
	modeBacklog  = "backlog"
	modeDetail   = "detail"
)

// refreshInterval is how often momentum is re-read while the board is open.
const refreshInterval = 30 * time.Second

var filters = []models.Status{"", models.StatusActive, models.StatusQueued, models.StatusBacklog, models.StatusDone}
var filterNames = []string{"ALL", "ACTIVE", "QUEUED", "BACKLOG", "DONE"}

// App is the main TUI application model.
type App struct {
	client       *Client
	tasks        []models.Task
	groups       []decay.ClientGroup
	aging        map[string]decay.AgedTask
	rows         []models.Task
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string
	current      *models.Task
	events       []models.TaskEvent
	momentum     *MomentumView
	message      string
	filterIdx    int
	loading      bool
	daemonOnline bool
	suggestions  *Suggestions
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <title> [@client] [effort] | promote | demote | archive | decay"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		viewport:    viewport.New(80, 20),
		mode:        modePipeline,
		aging:       map[string]decay.AgedTask{},
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.refresh(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = max(5, msg.Height-10)

	case momentumLoadedMsg:
		a.momentum = msg.momentum

	case tasksLoadedMsg:
		a.loading = false
		a.tasks = msg.tasks
		a.syncRows()

	case groupsLoadedMsg:
		a.loading = false
		a.groups = msg.groups
		a.syncRows()

	case agingLoadedMsg:
		a.aging = make(map[string]decay.AgedTask, len(msg.report.Tasks))
		for _, t := range msg.report.Tasks {
			a.aging[t.Task.ID] = t
		}

	case eventsLoadedMsg:
		a.events = msg.events
		a.viewport.SetContent(a.renderEvents())

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		cmds = append(cmds, a.fetchMomentum(), a.tickCmd())

	case commandResultMsg:
		a.message = msg.message
		return a, a.refresh()

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())
	if a.suggestions.prefix == "@" {
		a.suggestions.SetClients(a.clientNames())
	}

	if a.mode == modeDetail {
		a.viewport, cmd = a.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// handleKey processes navigation keys. Single-letter shortcuts only apply
// while the command input is empty so they never eat typed text.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	empty := a.input.Value() == ""

	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true

	case "esc":
		if a.mode == modeDetail {
			a.mode = modePipeline
			a.current = nil
			return a.refresh(), true
		}
		a.input.SetValue("")
		return nil, true

	case "up", "k":
		if a.suggestions.IsVisible() {
			a.suggestions.Prev()
			return nil, true
		}
		if msg.String() == "k" && !empty {
			return nil, false
		}
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return nil, true

	case "down", "j":
		if a.suggestions.IsVisible() {
			a.suggestions.Next()
			return nil, true
		}
		if msg.String() == "j" && !empty {
			return nil, false
		}
		if a.selectedIdx < len(a.rows)-1 {
			a.selectedIdx++
		}
		return nil, true

	case "tab":
		if a.suggestions.IsVisible() {
			a.input.SetValue(a.suggestions.Complete())
			a.input.CursorEnd()
			a.suggestions.Update(a.input.Value())
			return nil, true
		}
		if a.mode == modePipeline {
			a.filterIdx = (a.filterIdx + 1) % len(filters)
			return a.fetchTasks(), true
		}
		return nil, true

	case "enter":
		if a.suggestions.IsVisible() {
			a.input.SetValue(a.suggestions.Complete())
			a.input.CursorEnd()
			a.suggestions.Update(a.input.Value())
			return nil, true
		}
		if cmd := strings.TrimSpace(a.input.Value()); cmd != "" {
			a.input.SetValue("")
			return a.executeCommand(cmd), true
		}
		if task := a.selected(); task != nil && a.mode != modeDetail {
			a.mode = modeDetail
			a.current = task
			return a.fetchEvents(task.ID), true
		}
		return nil, true

	case "b":
		if !empty {
			return nil, false
		}
		if a.mode == modeBacklog {
			a.mode = modePipeline
		} else {
			a.mode = modeBacklog
		}
		a.selectedIdx = 0
		a.syncRows()
		return a.refresh(), true

	case "p", "d":
		if !empty {
			return nil, false
		}
		if msg.String() == "p" {
			return a.executeCommand("promote"), true
		}
		return a.executeCommand("demote"), true

	case "r":
		if !empty {
			return nil, false
		}
		return a.refresh(), true
	}
	return nil, false
}

// syncRows rebuilds the selectable rows for the current mode.
func (a *App) syncRows() {
	switch a.mode {
	case modeBacklog:
		a.rows = nil
		for _, g := range a.groups {
			a.rows = append(a.rows, g.Tasks...)
		}
	case modePipeline:
		a.rows = a.tasks
	}
	if a.selectedIdx >= len(a.rows) {
		a.selectedIdx = max(0, len(a.rows)-1)
	}
}

func (a *App) selected() *models.Task {
	if a.mode == modeDetail && a.current != nil {
		return a.current
	}
	if len(a.rows) == 0 || a.selectedIdx >= len(a.rows) {
		return nil
	}
	t := a.rows[a.selectedIdx]
	return &t
}

func (a *App) clientNames() []string {
	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, g := range a.groups {
		add(g.Client)
	}
	for _, t := range a.tasks {
		add(t.Client())
	}
	sort.Strings(names)
	return names
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("⏱  PACER") + "  " + daemonStatus + "  " + momentumLine(a.momentum)
	b.WriteString(header + "\n")
	if bar := momentumBar(a.momentum, max(10, a.width-4)); bar != "" {
		b.WriteString("  " + bar + "\n")
	}
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := max(5, a.height-9)

	switch a.mode {
	case modePipeline:
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
		b.WriteString(a.renderTaskList(contentHeight - 1))
	case modeBacklog:
		b.WriteString(a.renderBacklog(contentHeight))
	case modeDetail:
		b.WriteString(a.renderTaskDetail())
		b.WriteString(a.viewport.View())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case modePipeline:
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | Tab:filter | b:backlog | p/d:promote/demote | Enter:detail | Ctrl+C:quit", len(a.rows))
	case modeBacklog:
		status = fmt.Sprintf(" Backlog: %d in %d groups | ↑↓:nav | b:pipeline | p:promote | Enter:detail", len(a.rows), len(a.groups))
	default:
		status = " Esc:back | p/d:promote/demote | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderTaskList(height int) string {
	if a.loading && len(a.rows) == 0 {
		return "\n  Loading tasks...\n"
	}
	if len(a.rows) == 0 {
		return "\n  No tasks found. Type: add <title> to create one.\n"
	}

	var lines []string
	for i, task := range a.rows {
		client := ""
		if c := task.Client(); c != "" {
			client = lipgloss.NewStyle().Foreground(mutedColor).Render(" @" + c)
		}
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s  %dpt", formatStatusPlain(task.Status), task.Title, taskPoints(task)))+client)
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s  %dpt", formatStatus(task.Status), task.Title, taskPoints(task)))+client)
		}
	}

	start, end := window(len(lines), a.selectedIdx, height)
	return strings.Join(lines[start:end], "\n")
}

func (a *App) renderBacklog(height int) string {
	if len(a.rows) == 0 {
		return "\n  Backlog is empty.\n"
	}

	var lines []string
	selectedLine := 0
	idx := 0
	for _, g := range a.groups {
		name := g.Client
		if name == "" {
			name = "(no client)"
		}
		meta := fmt.Sprintf("  %d tasks", len(g.Tasks))
		if g.StaleDays > 0 {
			meta += fmt.Sprintf(", untouched %dd", g.StaleDays)
		}
		if g.TouchedToday {
			meta += ", touched today"
		}
		lines = append(lines, groupHeaderStyle.Render(name)+lipgloss.NewStyle().Foreground(mutedColor).Render(meta))

		for _, task := range g.Tasks {
			aged := a.aging[task.ID]
			age := tierStyle(aged.Tier).Render(fmt.Sprintf("%3dd %-8s", aged.AgeDays, aged.Tier))
			if idx == a.selectedIdx {
				selectedLine = len(lines)
				lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %dpt", task.Title, taskPoints(task)))+" "+age)
			} else {
				lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %dpt", task.Title, taskPoints(task)))+" "+age)
			}
			idx++
		}
	}

	start, end := window(len(lines), selectedLine, height)
	return strings.Join(lines[start:end], "\n")
}

func (a *App) renderTaskDetail() string {
	if a.current == nil {
		return "\n  Loading...\n"
	}

	var b strings.Builder
	t := a.current
	b.WriteString(fmt.Sprintf("\n  📋 %s\n", lipgloss.NewStyle().Bold(true).Render(t.Title)))
	b.WriteString(fmt.Sprintf("  ID: %s\n", shortID(t.ID)))
	b.WriteString(fmt.Sprintf("  Status: %s\n", formatStatus(t.Status)))
	b.WriteString(fmt.Sprintf("  Points: %d (effort %d)\n", taskPoints(*t), t.EffortEstimate))
	if c := t.Client(); c != "" {
		b.WriteString(fmt.Sprintf("  Client: %s\n", c))
	}
	if t.Description != "" {
		b.WriteString(fmt.Sprintf("  Description: %s\n", t.Description))
	}
	if aged, ok := a.aging[t.ID]; ok {
		b.WriteString(fmt.Sprintf("  Age: %s, deferred %d times\n",
			tierStyle(aged.Tier).Render(fmt.Sprintf("%dd %s", aged.AgeDays, aged.Tier)), aged.Deferrals))
	}
	b.WriteString("\n  📜 History:\n")
	return b.String()
}

func (a *App) renderEvents() string {
	var b strings.Builder
	for _, e := range a.events {
		line := fmt.Sprintf("    • %s  %-11s", e.CreatedAt.Local().Format("Jan 02 15:04"), e.Kind)
		if e.FromStatus != "" || e.ToStatus != "" {
			line += fmt.Sprintf(" %s → %s", e.FromStatus, e.ToStatus)
		}
		if e.Actor != "" {
			line += lipgloss.NewStyle().Foreground(mutedColor).Render("  by " + e.Actor)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// --- commands ---

func (a *App) refresh() tea.Cmd {
	cmds := []tea.Cmd{a.fetchMomentum(), a.fetchTasks()}
	if a.mode == modeBacklog {
		cmds = append(cmds, a.fetchGroups(), a.fetchAging())
	}
	if a.mode == modeDetail && a.current != nil {
		cmds = append(cmds, a.fetchEvents(a.current.ID))
	}
	return tea.Batch(cmds...)
}

func (a *App) fetchMomentum() tea.Cmd {
	return func() tea.Msg {
		m, err := a.client.Momentum()
		if err != nil {
			return errMsg{err}
		}
		return momentumLoadedMsg{m}
	}
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	filter := string(filters[a.filterIdx])
	return func() tea.Msg {
		tasks, err := a.client.ListTasks(filter)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (a *App) fetchGroups() tea.Cmd {
	return func() tea.Msg {
		groups, err := a.client.Groups()
		if err != nil {
			return errMsg{err}
		}
		return groupsLoadedMsg{groups}
	}
}

func (a *App) fetchAging() tea.Cmd {
	return func() tea.Msg {
		report, err := a.client.Aging()
		if err != nil {
			return errMsg{err}
		}
		return agingLoadedMsg{report}
	}
}

func (a *App) fetchEvents(id string) tea.Cmd {
	return func() tea.Msg {
		events, err := a.client.TaskEvents(id)
		if err != nil {
			return errMsg{err}
		}
		return eventsLoadedMsg{events}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		_, err := a.client.Momentum()
		return daemonStatusMsg{online: err == nil}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}
	cmd := parts[0]
	args := parts[1:]
	task := a.selected()

	return func() tea.Msg {
		switch cmd {
		case "add":
			title, client, effort := parseAdd(args)
			if title == "" {
				return commandResultMsg{"Usage: add <title> [@client] [effort 1-4]"}
			}
			created, err := a.client.CreateTask(title, client, effort)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Created task: %s", shortID(created.ID))}

		case "promote", "demote":
			if task == nil {
				return commandResultMsg{"No task selected"}
			}
			step := a.client.Promote
			if cmd == "demote" {
				step = a.client.Demote
			}
			moved, err := step(task.ID)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ %s → %s", moved.Title, moved.Status)}

		case "archive":
			if task == nil {
				return commandResultMsg{"No task selected"}
			}
			if err := a.client.Archive(task.ID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"✓ Archived " + task.Title}

		case "decay":
			result, err := a.client.RunDecay()
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Archived %d tasks (%d failed)", len(result.Archived), len(result.Failed))}

		case "refresh":
			return commandResultMsg{"✓ Refreshed"}

		case "q", "quit", "exit":
			return tea.Quit()

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: add, promote, demote, archive, decay)", cmd)}
		}
	}
}

// parseAdd splits "add" arguments into a title, an @client and a trailing
// effort between 1 and 4.
func parseAdd(args []string) (title, client string, effort int) {
	var words []string
	for i, arg := range args {
		if strings.HasPrefix(arg, "@") && len(arg) > 1 {
			client = arg[1:]
			continue
		}
		if i == len(args)-1 {
			if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= 4 {
				effort = n
				continue
			}
		}
		words = append(words, arg)
	}
	return strings.Join(words, " "), client, effort
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
