package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"c", "health", "status"},
	Short:   "Check configuration, database and cache",
	Long: `Check that the configuration is valid, the database opens and the
cache answers. A failing cache is reported as a warning because reads fall
through to the upstream API.

Example:
  edfc check`,
	RunE: runCheck,
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	statusOK      = "OK"
	statusWarning = "WARNING"
	statusFail    = "FAIL"
)

func runCheck(cmd *cobra.Command, args []string) error {
	results := []CheckResult{}

	_, cfg, err := loadConfig(cmd)
	if err != nil {
		results = append(results, CheckResult{Name: "Configuration", Status: statusFail, Message: err.Error()})
		return outputCheckResults(cmd, results)
	}
	results = append(results, CheckResult{
		Name:    "Configuration",
		Status:  statusOK,
		Message: "Configuration valid",
		Details: fmt.Sprintf("Listen: %s%s, callback: %s", cfg.Server.Addr(), cfg.Server.BasePath, cfg.Frontier.CallbackBaseURL),
	})
	if cfg.Frontier.ClientID == "" {
		results = append(results, CheckResult{Name: "Frontier", Status: statusWarning, Message: "FRONTIER_CLIENT_ID is not set"})
	}
	if cfg.Discord.PublicKey == "" {
		results = append(results, CheckResult{Name: "Discord", Status: statusWarning, Message: "DISCORD_PUBLIC_KEY is not set, interactions are disabled"})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	s, err := openStore(cfg.Database)
	if err != nil {
		results = append(results, CheckResult{Name: "Database", Status: statusFail, Message: err.Error()})
	} else {
		defer s.Close()
		if stats, err := s.Stats(ctx); err != nil {
			results = append(results, CheckResult{Name: "Database", Status: statusFail, Message: err.Error()})
		} else {
			results = append(results, CheckResult{
				Name:    "Database",
				Status:  statusOK,
				Message: "Database opened",
				Details: fmt.Sprintf("users: %d, accounts: %d, pending sessions: %d", stats.UserCount, stats.AccountCount, stats.SessionCount),
			})
		}
	}

	c, err := openCache(cfg.Cache)
	if err != nil {
		results = append(results, CheckResult{Name: "Cache", Status: statusFail, Message: err.Error()})
	} else {
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			results = append(results, CheckResult{Name: "Cache", Status: statusWarning, Message: err.Error()})
		} else {
			results = append(results, CheckResult{Name: "Cache", Status: statusOK, Message: "Cache reachable", Details: cfg.Cache.Driver})
		}
	}

	return outputCheckResults(cmd, results)
}

func outputCheckResults(cmd *cobra.Command, results []CheckResult) error {
	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Status, r.Message)
			if r.Details != "" && globalFlags.Verbose {
				fmt.Fprintf(w, "\t\t%s\n", r.Details)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	for _, r := range results {
		if r.Status == statusFail {
			return fmt.Errorf("check failed: %s", r.Name)
		}
	}
	return nil
}
