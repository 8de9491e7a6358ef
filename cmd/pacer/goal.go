package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/pacer/internal/controlplane"
	"github.com/fentz26/pacer/internal/goals"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/notify"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Daily pace, goal records and streaks",
}

var goalMomentumCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Show today's pace against the daily target",
	RunE:  runGoalMomentum,
}

var goalUpdateCmd = &cobra.Command{
	Use:   "update [date]",
	Short: "Recompute the goal record for a date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGoalUpdate,
}

var goalHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent daily goal records",
	RunE:  runGoalHistory,
}

var goalHeatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show daily point totals",
	RunE:  runGoalHeatmap,
}

var urgencyCmd = &cobra.Command{
	Use:   "urgency",
	Short: "Urgency notifications",
}

var urgencyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check pace and send a nudge if behind (at most once per hour)",
	RunE:  runUrgencyCheck,
}

var (
	historyDays int
	heatmapFrom string
	heatmapTo   string
	checkHour   int
)

func init() {
	goalCmd.AddCommand(goalMomentumCmd, goalUpdateCmd, goalHistoryCmd, goalHeatmapCmd)
	goalHistoryCmd.Flags().IntVar(&historyDays, "days", 7, "Number of days to show")
	goalHeatmapCmd.Flags().StringVar(&heatmapFrom, "from", "", "First date, YYYY-MM-DD (default 27 days before --to)")
	goalHeatmapCmd.Flags().StringVar(&heatmapTo, "to", "", "Last date, YYYY-MM-DD (default today)")

	urgencyCmd.AddCommand(urgencyCheckCmd)
	urgencyCheckCmd.Flags().IntVar(&checkHour, "hour", 0, "Evaluate as of this hour 0-23 (default now)")
}

func runGoalMomentum(cmd *cobra.Command, args []string) error {
	var m controlplane.MomentumReport
	if printed, err := getJSON("/momentum", &m); err != nil || printed {
		return err
	}

	fmt.Printf("%s  %s\n", m.Date, strings.ToUpper(strings.ReplaceAll(string(m.Status), "_", " ")))
	fmt.Printf("Earned:    %d / %d points (%d tasks)\n", m.Earned, m.DailyTarget, m.TaskCount)
	fmt.Printf("Expected:  %d by now (%d%% of pace)\n", m.ExpectedByNow, m.Percent)
	fmt.Printf("Day:       %d%% through the work window\n", int(m.DayProgress*100))
	return nil
}

func runGoalUpdate(cmd *cobra.Command, args []string) error {
	body := map[string]string{}
	if len(args) == 1 {
		body["date"] = args[0]
	}

	var r models.DailyGoalRecord
	if printed, err := postJSON("/goals/update", body, &r); err != nil || printed {
		return err
	}
	printGoalRecord(&r)
	return nil
}

func runGoalHistory(cmd *cobra.Command, args []string) error {
	var records []models.DailyGoalRecord
	if printed, err := getJSON("/goals/history?days="+strconv.Itoa(historyDays), &records); err != nil || printed {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No goal records yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tEARNED\tTARGET\tTASKS\tDEBT\tWEEK DEBT\tPRESSURE\tSTREAK")
	for _, r := range records {
		hit := " "
		if r.HitGoal() {
			hit = "✓"
		}
		fmt.Fprintf(w, "%s %s\t%d\t%d\t%d\t%d\t%d\t%d/5\t%d\n",
			r.Date, hit, r.EarnedPoints, r.TargetPoints, r.TaskCount, r.DailyDebt, r.WeeklyDebt, r.PressureLevel, r.CurrentStreak)
	}
	w.Flush()
	return nil
}

func runGoalHeatmap(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if heatmapFrom != "" {
		q.Set("from", heatmapFrom)
	}
	if heatmapTo != "" {
		q.Set("to", heatmapTo)
	}
	path := "/goals/heatmap"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var days []goals.HeatmapDay
	if printed, err := getJSON(path, &days); err != nil || printed {
		return err
	}

	maxPoints := 0
	for _, d := range days {
		maxPoints = max(maxPoints, d.Points)
	}
	for _, d := range days {
		fmt.Printf("%s  %-20s %3d pts  %d tasks\n", d.Date, heatBar(d.Points, maxPoints, 20), d.Points, d.Tasks)
	}
	return nil
}

// heatBar scales points against the busiest day.
func heatBar(points, maxPoints, width int) string {
	if maxPoints <= 0 || points <= 0 {
		return ""
	}
	return strings.Repeat("▇", max(1, points*width/maxPoints))
}

func runUrgencyCheck(cmd *cobra.Command, args []string) error {
	body := map[string]any{}
	if cmd.Flags().Changed("hour") {
		body["hour"] = checkHour
	}

	var result notify.CheckResult
	if printed, err := postJSON("/urgency/check", body, &result); err != nil || printed {
		return err
	}

	fmt.Printf("%s %02d:00  tier %s, deficit %d, pressure %d/5\n", result.Date, result.Hour, result.Tier, result.Deficit, result.Pressure)
	switch {
	case result.Sent:
		fmt.Printf("Sent via %s: %s\n", result.Relay, result.Message.Title)
	case result.Error != "":
		fmt.Printf("Not delivered (%s): %s\n", result.Reason, result.Error)
	default:
		fmt.Printf("No nudge: %s\n", result.Reason)
	}
	return nil
}

func printGoalRecord(r *models.DailyGoalRecord) {
	fmt.Printf("Date:      %s\n", r.Date)
	fmt.Printf("Earned:    %d / %d points (%d tasks)\n", r.EarnedPoints, r.TargetPoints, r.TaskCount)
	fmt.Printf("Debt:      %d today, %d this week\n", r.DailyDebt, r.WeeklyDebt)
	fmt.Printf("Pressure:  %d/5\n", r.PressureLevel)
	fmt.Printf("Streak:    %d (best %d)\n", r.CurrentStreak, r.LongestStreak)
	if r.LastGoalHitDate != nil {
		fmt.Printf("Last hit:  %s\n", *r.LastGoalHitDate)
	}
}
