package tui

import (
	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
)

// MomentumView mirrors the /momentum payload
type MomentumView struct {
	Date        string `json:"date"`
	DailyTarget int    `json:"daily_target"`
	TaskCount   int    `json:"task_count"`
	pace.Momentum
}

type momentumLoadedMsg struct {
	momentum *MomentumView
}

type tasksLoadedMsg struct {
	tasks []models.Task
}

type groupsLoadedMsg struct {
	groups []decay.ClientGroup
}

type eventsLoadedMsg struct {
	events []models.TaskEvent
}

type daemonStatusMsg struct {
	online bool
}

type commandResultMsg struct {
	message string
}

type tickMsg struct{}

type errMsg struct {
	err error
}

type agingLoadedMsg struct {
	report *decay.AgingReport
}
