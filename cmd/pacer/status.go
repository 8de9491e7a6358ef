package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/pacer/internal/scheduler"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and scheduled job stats",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth()
	if health == nil {
		return err
	}
	state := "ok"
	if !health.OK {
		state = "unhealthy"
	}
	fmt.Printf("Daemon:   %s (version %s)\n", state, health.Version)
	fmt.Printf("Database: %s\n", health.DB)
	if err != nil {
		return err
	}

	var jobs []scheduler.JobStats
	if printed, err := getJSON("/jobs", &jobs); err != nil || printed {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No scheduled jobs")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSPEC\tRUNS\tFAILS\tLAST RUN\tNEXT RUN\tLAST RESULT")
	for _, j := range jobs {
		result := j.LastResult
		if j.LastError != "" {
			result = "error: " + j.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			j.Name, j.Spec, j.Runs, j.Failures, formatTime(j.LastRun), formatTime(j.NextRun), truncate(result, 50))
	}
	w.Flush()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}
