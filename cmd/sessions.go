package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"persai/internal/agent"
	pstrings "persai/pkg/strings"
)

// sessionsServerURL is the base URL of the running persai backend.
var sessionsServerURL string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the sessions of a running persai backend",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(sessionsServerURL + "/api/sessions")
	if err != nil {
		return fmt.Errorf("failed to reach backend at %s: %w", sessionsServerURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var sessions []agent.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return fmt.Errorf("failed to decode sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"SESSION ID", "NAME", "STARTED", "TURNS"})
	for _, s := range sessions {
		t.AppendRow(table.Row{
			s.SessionID,
			pstrings.TruncateSummary(s.SessionName, pstrings.DefaultSummaryMaxLen),
			s.StartedAt.Format(time.RFC3339),
			s.TurnCount,
		})
	}
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().StringVar(&sessionsServerURL, "server", "http://localhost:8080", "Base URL of the persai backend")
}
