package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
	"github.com/fentz26/pacer/internal/pipeline"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a new task",
	Args:  cobra.ArbitraryArgs,
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move [task-id] [status]",
	Short: "Move a task to any status (backlog, queued, active, done)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskMove,
}

var taskPromoteCmd = &cobra.Command{
	Use:   "promote [task-id]",
	Short: "Move a task one step toward done",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTaskStep(args[0], "promote") },
}

var taskDemoteCmd = &cobra.Command{
	Use:   "demote [task-id]",
	Short: "Move a task one step back toward backlog",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTaskStep(args[0], "demote") },
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit task fields other than status",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive [task-id]",
	Short: "Send a task to the graveyard",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskArchive,
}

var taskEventsCmd = &cobra.Command{
	Use:   "events [task-id]",
	Short: "Show a task's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEvents,
}

var (
	taskTitle     string
	taskDesc      string
	taskClient    string
	taskValueTier string
	taskDrainType string
	taskEffort    int
	taskPoints    int
	taskStatus    string
	taskActor     string
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskMoveCmd, taskPromoteCmd,
		taskDemoteCmd, taskEditCmd, taskArchiveCmd, taskEventsCmd)
	taskCmd.PersistentFlags().StringVar(&taskActor, "actor", "cli", "Actor recorded in the task history")

	for _, c := range []*cobra.Command{taskAddCmd, taskEditCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "Task title")
		c.Flags().StringVar(&taskDesc, "desc", "", "Task description")
		c.Flags().StringVar(&taskClient, "client", "", "Client name")
		c.Flags().StringVar(&taskValueTier, "value", "", "Value tier label")
		c.Flags().StringVar(&taskDrainType, "drain", "", "Drain type label")
		c.Flags().IntVar(&taskEffort, "effort", 0, "Effort estimate 1-4")
		c.Flags().IntVar(&taskPoints, "points", 0, "Final point value (overrides effort)")
	}
	taskAddCmd.Flags().StringVar(&taskStatus, "status", "", "Initial status (default backlog)")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (backlog, queued, active, done)")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	title := taskTitle
	if title == "" {
		title = strings.Join(args, " ")
	}
	if title == "" {
		return fmt.Errorf("a title is required")
	}

	body := struct {
		pipeline.NewTask
		Actor string `json:"actor"`
	}{
		NewTask: pipeline.NewTask{
			Title:       title,
			Description: taskDesc,
			ClientName:  taskClient,
			ValueTier:   taskValueTier,
			DrainType:   taskDrainType,
			Effort:      taskEffort,
			Status:      models.Status(taskStatus),
		},
		Actor: taskActor,
	}
	if cmd.Flags().Changed("points") {
		body.PointsFinal = &taskPoints
	}

	var task models.Task
	if printed, err := postJSON("/tasks", body, &task); err != nil || printed {
		return err
	}
	fmt.Printf("Created task: %s (%s, %d pts)\n", task.ID, task.Status, points(task))
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	url := "/tasks"
	if taskStatus != "" {
		url += "?status=" + taskStatus
	}

	var tasks []models.Task
	if printed, err := getJSON(url, &tasks); err != nil || printed {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCLIENT\tPTS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", truncateID(t.ID), truncate(t.Title, 40), t.Status, t.Client(), points(t))
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var task models.Task
	if printed, err := getJSON("/tasks/"+args[0], &task); err != nil || printed {
		return err
	}
	printTask(&task)
	return nil
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	var task models.Task
	body := map[string]string{"status": args[1], "actor": taskActor}
	if printed, err := postJSON("/tasks/"+args[0]+"/transition", body, &task); err != nil || printed {
		return err
	}
	fmt.Printf("%s → %s\n", task.Title, task.Status)
	return nil
}

func runTaskStep(id, action string) error {
	var task models.Task
	if printed, err := postJSON("/tasks/"+id+"/"+action, map[string]string{"actor": taskActor}, &task); err != nil || printed {
		return err
	}
	fmt.Printf("%s → %s\n", task.Title, task.Status)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	body := struct {
		pipeline.Edit
		Actor string `json:"actor"`
	}{Actor: taskActor}

	if flags.Changed("title") {
		body.Title = &taskTitle
	}
	if flags.Changed("desc") {
		body.Description = &taskDesc
	}
	if flags.Changed("client") {
		body.ClientName = &taskClient
	}
	if flags.Changed("value") {
		body.ValueTier = &taskValueTier
	}
	if flags.Changed("drain") {
		body.DrainType = &taskDrainType
	}
	if flags.Changed("effort") {
		body.Effort = &taskEffort
	}
	if flags.Changed("points") {
		body.PointsFinal = &taskPoints
	}

	var task models.Task
	if printed, err := postJSON("/tasks/"+args[0]+"/edit", body, &task); err != nil || printed {
		return err
	}
	printTask(&task)
	return nil
}

func runTaskArchive(cmd *cobra.Command, args []string) error {
	var entry models.GraveyardEntry
	body := map[string]string{"reason": string(models.ArchiveManual)}
	if printed, err := postJSON("/tasks/"+args[0]+"/archive", body, &entry); err != nil || printed {
		return err
	}
	fmt.Printf("Archived %q after %d days (graveyard id %s)\n", entry.Title, entry.AgeDays, entry.ID)
	return nil
}

func runTaskEvents(cmd *cobra.Command, args []string) error {
	var events []models.TaskEvent
	if printed, err := getJSON("/tasks/"+args[0]+"/events", &events); err != nil || printed {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tFROM\tTO\tACTOR")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.FromStatus, e.ToStatus, e.Actor)
	}
	w.Flush()
	return nil
}

func printTask(task *models.Task) {
	fmt.Printf("ID:          %s\n", task.ID)
	fmt.Printf("Title:       %s\n", task.Title)
	if task.Description != "" {
		fmt.Printf("Description: %s\n", task.Description)
	}
	fmt.Printf("Status:      %s\n", task.Status)
	if c := task.Client(); c != "" {
		fmt.Printf("Client:      %s\n", c)
	}
	fmt.Printf("Points:      %d (effort %d)\n", points(*task), task.EffortEstimate)
	fmt.Printf("Created:     %s\n", task.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Updated:     %s\n", task.UpdatedAt.Local().Format(time.DateTime))
	if task.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", task.CompletedAt.Local().Format(time.DateTime))
	}
}

// --- Helpers ---

func points(t models.Task) int {
	return pace.PointValue(t.PointsFinal, t.PointsAIGuess, t.EffortEstimate)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
