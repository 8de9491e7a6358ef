package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Inspect and decay the backlog",
}

var backlogAgingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Show every backlog task with its age tier",
	RunE:  runBacklogAging,
}

var backlogGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Show the backlog grouped by client, most neglected first",
	RunE:  runBacklogGroups,
}

var backlogDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Archive every backlog task past the archive age",
	RunE:  runBacklogDecay,
}

var graveyardCmd = &cobra.Command{
	Use:   "graveyard",
	Short: "Browse and restore archived tasks",
}

var graveyardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived tasks, newest first",
	RunE:  runGraveyardList,
}

var graveyardResurrectCmd = &cobra.Command{
	Use:   "resurrect [graveyard-id]",
	Short: "Restore an archived task to the backlog",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraveyardResurrect,
}

func init() {
	backlogCmd.AddCommand(backlogAgingCmd, backlogGroupsCmd, backlogDecayCmd)
	graveyardCmd.AddCommand(graveyardListCmd, graveyardResurrectCmd)
}

func runBacklogAging(cmd *cobra.Command, args []string) error {
	var report decay.AgingReport
	if printed, err := getJSON("/backlog/aging", &report); err != nil || printed {
		return err
	}

	if len(report.Tasks) == 0 {
		fmt.Println("Backlog is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCLIENT\tAGE\tTIER\tDEFERRED")
	for _, t := range report.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dd\t%s\t%d\n",
			truncateID(t.Task.ID), truncate(t.Task.Title, 40), t.Task.Client(), t.AgeDays, t.Tier, t.Deferrals)
	}
	w.Flush()

	fmt.Printf("\n%d normal, %d aging, %d stale, %d critical",
		report.Counts[decay.TierNormal], report.Counts[decay.TierAging],
		report.Counts[decay.TierStale], report.Counts[decay.TierCritical])
	if report.OldestID != "" {
		fmt.Printf("; oldest %s at %d days", truncateID(report.OldestID), report.OldestDays)
	}
	fmt.Println()
	return nil
}

func runBacklogGroups(cmd *cobra.Command, args []string) error {
	var groups []decay.ClientGroup
	if printed, err := getJSON("/backlog/groups", &groups); err != nil || printed {
		return err
	}

	if len(groups) == 0 {
		fmt.Println("Backlog is empty")
		return nil
	}

	for _, g := range groups {
		name := g.Client
		if name == "" {
			name = "(no client)"
		}
		touched := ""
		if g.TouchedToday {
			touched = ", touched today"
		}
		fmt.Printf("%s  [%d tasks, untouched %dd%s]\n", name, len(g.Tasks), g.StaleDays, touched)
		for _, t := range g.Tasks {
			fmt.Printf("  %s  %s  %d pts\n", truncateID(t.ID), truncate(t.Title, 50), points(t))
		}
	}
	return nil
}

func runBacklogDecay(cmd *cobra.Command, args []string) error {
	var result decay.DecayResult
	if printed, err := postJSON("/backlog/decay", struct{}{}, &result); err != nil || printed {
		return err
	}

	fmt.Printf("Archived %d tasks\n", len(result.Archived))
	for _, e := range result.Archived {
		fmt.Printf("  %s  %s (%d days)\n", truncateID(e.ID), e.Title, e.AgeDays)
	}
	if len(result.Failed) > 0 {
		fmt.Printf("Failed to archive %d tasks\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  %s: %s\n", truncateID(f.TaskID), f.Error)
		}
	}
	return nil
}

func runGraveyardList(cmd *cobra.Command, args []string) error {
	var entries []models.GraveyardEntry
	if printed, err := getJSON("/graveyard", &entries); err != nil || printed {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("Graveyard is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tREASON\tAGE\tARCHIVED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dd\t%s\n",
			truncateID(e.ID), truncate(e.Title, 40), e.Reason, e.AgeDays, e.ArchivedAt.Local().Format(time.DateOnly))
	}
	w.Flush()
	return nil
}

func runGraveyardResurrect(cmd *cobra.Command, args []string) error {
	var task models.Task
	if printed, err := postJSON("/graveyard/"+args[0]+"/resurrect", struct{}{}, &task); err != nil || printed {
		return err
	}
	fmt.Printf("Resurrected %q as %s\n", task.Title, task.ID)
	return nil
}
