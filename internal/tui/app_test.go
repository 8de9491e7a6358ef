package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
)

func TestParseAdd(t *testing.T) {
	tests := []struct {
		args   string
		title  string
		client string
		effort int
	}{
		{"fix invoice", "fix invoice", "", 0},
		{"fix invoice @acme 3", "fix invoice", "acme", 3},
		{"@acme call back", "call back", "acme", 0},
		{"buy 5 chairs", "buy 5 chairs", "", 0},
		{"plan q4 9", "plan q4 9", "", 0},
		{"", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			title, client, effort := parseAdd(strings.Fields(tt.args))
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.client, client)
			assert.Equal(t, tt.effort, effort)
		})
	}
}

func TestWindowKeepsSelectionVisible(t *testing.T) {
	start, end := window(5, 4, 10)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	start, end = window(100, 50, 10)
	assert.Equal(t, 45, start)
	assert.Equal(t, 55, end)

	start, end = window(100, 99, 10)
	assert.Equal(t, 90, start)
	assert.Equal(t, 100, end)
}

func TestMomentumBar(t *testing.T) {
	assert.Empty(t, momentumBar(nil, 10))
	assert.Empty(t, momentumBar(&MomentumView{}, 10))

	m := &MomentumView{DailyTarget: 10, Momentum: pace.Momentum{Earned: 5, ExpectedByNow: 8, Status: pace.StatusBehind}}
	bar := momentumBar(m, 10)
	assert.Equal(t, 5, strings.Count(bar, "█"))
	assert.Equal(t, 1, strings.Count(bar, "│"))
}

func TestSyncRowsBacklogDoesNotClobberTasks(t *testing.T) {
	a := New("http://unused")
	a.tasks = []models.Task{{ID: "a"}, {ID: "b"}}
	a.syncRows()

	a.mode = modeBacklog
	a.groups = []decay.ClientGroup{{Client: "x", Tasks: []models.Task{{ID: "c"}}}}
	a.syncRows()

	require.Len(t, a.rows, 1)
	assert.Equal(t, "c", a.rows[0].ID)
	assert.Equal(t, "a", a.tasks[0].ID)
}

func TestShortcutsIgnoredWhileTyping(t *testing.T) {
	a := New("http://unused")
	a.input.SetValue("add b")

	_, handled := a.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	assert.False(t, handled)
	assert.Equal(t, modePipeline, a.mode)
}

func TestClientAgainstAPI(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/momentum":
			json.NewEncoder(w).Encode(MomentumView{Date: "2026-10-15", DailyTarget: 18, Momentum: pace.Momentum{Earned: 9}})
		case r.Method == http.MethodPost && r.URL.Path == "/tasks":
			json.NewDecoder(r.Body).Decode(&created)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Task{ID: "t1", Title: "x", Status: models.StatusBacklog})
		case r.URL.Path == "/tasks/missing/promote":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "task missing not found"})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	m, err := c.Momentum()
	require.NoError(t, err)
	assert.Equal(t, 9, m.Earned)
	assert.Equal(t, 18, m.DailyTarget)

	task, err := c.CreateTask("x", "acme", 2)
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "acme", created["client_name"])
	assert.EqualValues(t, 2, created["effort_estimate"])

	_, err = c.Promote("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task missing not found")
}
