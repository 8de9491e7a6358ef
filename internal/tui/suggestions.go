package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for commands and client names
type Suggestions struct {
	items        []SuggestionItem
	filtered     []SuggestionItem
	selectedIdx  int
	visible      bool
	prefix       string // "/" or "@"
	currentInput string
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command" or "client"
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "Create a backlog task: add <title> [@client] [effort]", Type: "command"},
	{Text: "promote", Description: "Move the selected task forward", Type: "command"},
	{Text: "demote", Description: "Move the selected task back", Type: "command"},
	{Text: "archive", Description: "Send the selected task to the graveyard", Type: "command"},
	{Text: "decay", Description: "Archive every task past the archive age", Type: "command"},
	{Text: "refresh", Description: "Reload momentum and tasks", Type: "command"},
	{Text: "quit", Description: "Exit the board", Type: "command"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{
		items:   commandSuggestions,
		visible: false,
	}
}

// Update updates suggestions based on current input. "/" completes commands,
// "@" after a space completes client names.
func (s *Suggestions) Update(input string) {
	s.currentInput = input
	if input == "" {
		s.hide()
		return
	}

	if strings.HasPrefix(input, "/") {
		s.prefix = "/"
		s.items = commandSuggestions
		s.visible = true
		s.filter(strings.ToLower(strings.TrimPrefix(input, "/")))
		return
	}

	words := strings.Fields(input)
	if len(words) == 0 {
		s.hide()
		return
	}
	last := words[len(words)-1]
	if strings.HasPrefix(last, "@") && !strings.HasSuffix(input, " ") {
		if s.prefix != "@" {
			s.items = nil
		}
		s.prefix = "@"
		s.visible = true
		s.filter(strings.ToLower(strings.TrimPrefix(last, "@")))
		return
	}
	s.hide()
}

func (s *Suggestions) hide() {
	s.visible = false
	s.filtered = nil
	s.prefix = ""
}

// SetClients updates the client suggestions
func (s *Suggestions) SetClients(clients []string) {
	if s.prefix != "@" {
		return
	}
	s.items = make([]SuggestionItem, len(clients))
	for i, c := range clients {
		s.items[i] = SuggestionItem{Text: c, Description: "Assign to this client", Type: "client"}
	}
	words := strings.Fields(s.currentInput)
	s.filter(strings.ToLower(strings.TrimPrefix(words[len(words)-1], "@")))
}

// Complete returns the input with its last word replaced by the selected
// suggestion.
func (s *Suggestions) Complete() string {
	sel := s.Selected()
	if sel == nil {
		return s.currentInput
	}
	if s.prefix == "/" {
		return sel.Text + " "
	}
	i := strings.LastIndex(s.currentInput, "@")
	return s.currentInput[:i] + "@" + sel.Text + " "
}

func (s *Suggestions) filter(query string) {
	if query == "" {
		s.filtered = s.items
		s.selectedIdx = 0
		return
	}

	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Text), query) {
			s.filtered = append(s.filtered, item)
		}
	}
	s.selectedIdx = 0
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6366F1")).
		Padding(0, 1).
		Width(width - 4)

	selectedStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7C3AED")).
		Foreground(lipgloss.Color("#F9FAFB")).
		Bold(true)

	itemStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F9FAFB"))

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Italic(true)

	// Header
	var header string
	switch s.prefix {
	case "/":
		header = "💡 Commands"
	case "@":
		header = "👤 Clients"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render(header))
	b.WriteString("\n")

	// Show max 5 suggestions
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			more := len(s.filtered) - maxVisible
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", more)))
			break
		}

		line := ""
		if i == s.selectedIdx {
			line = selectedStyle.Render("▶ " + item.Text)
			if item.Description != "" {
				line += " " + selectedStyle.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + item.Text)
			if item.Description != "" {
				line += " " + descStyle.Render(item.Description)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(b.String())
}
