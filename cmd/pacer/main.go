package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pacer",
	Short: "pacer - daily pace, backlog decay and urgency nudges",
	Long: `pacer tracks points earned against a daily target, ages the backlog until
untouched work is archived, and sends one nudge per hour when you fall behind.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
	envFile    string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7466", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.pacer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file (default ~/.pacer/.env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON responses")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(backlogCmd)
	rootCmd.AddCommand(graveyardCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(urgencyCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
