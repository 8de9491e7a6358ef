package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/pacer/internal/controlplane"
	"github.com/fentz26/pacer/internal/models"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Per-client memory: profile, avoidance and staleness",
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE:  runClientList,
}

var clientSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or update a client profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientSet,
}

var clientResetCmd = &cobra.Command{
	Use:   "reset-avoidance [name]",
	Short: "Zero a client's avoidance score",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientReset,
}

var clientProfile controlplane.ClientProfile

func init() {
	clientCmd.AddCommand(clientListCmd, clientSetCmd, clientResetCmd)

	clientSetCmd.Flags().StringVar(&clientProfile.Tier, "tier", "", "Client tier label")
	clientSetCmd.Flags().StringVar(&clientProfile.Sentiment, "sentiment", "", "How the relationship feels")
	clientSetCmd.Flags().IntVar(&clientProfile.Importance, "importance", 0, "Importance 0-5")
	clientSetCmd.Flags().StringVar(&clientProfile.Notes, "notes", "", "Free-form notes")
}

func runClientList(cmd *cobra.Command, args []string) error {
	var clients []models.ClientMemory
	if printed, err := getJSON("/clients", &clients); err != nil || printed {
		return err
	}

	if len(clients) == 0 {
		fmt.Println("No clients yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIER\tIMPORTANCE\tAVOIDANCE\tSTALE\tLAST TOUCHED")
	for _, c := range clients {
		touched := "never"
		if c.LastTouchedAt != nil {
			touched = c.LastTouchedAt.Local().Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dd\t%s\n", c.Name, c.Tier, c.Importance, c.AvoidanceScore, c.StaleDays, touched)
	}
	w.Flush()
	return nil
}

func runClientSet(cmd *cobra.Command, args []string) error {
	var c models.ClientMemory
	if printed, err := postJSON("/clients/"+url.PathEscape(args[0]), clientProfile, &c); err != nil || printed {
		return err
	}
	fmt.Printf("Saved client %s (tier %q, importance %d)\n", c.Name, c.Tier, c.Importance)
	return nil
}

func runClientReset(cmd *cobra.Command, args []string) error {
	var c models.ClientMemory
	if printed, err := postJSON("/clients/"+url.PathEscape(args[0])+"/reset-avoidance", struct{}{}, &c); err != nil || printed {
		return err
	}
	fmt.Printf("Reset avoidance for %s\n", c.Name)
	return nil
}
