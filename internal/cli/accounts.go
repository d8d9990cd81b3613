package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pokedi/edfc/internal/logging"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect or unlink a user's Frontier accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the accounts linked to a Discord user",
	Long: `List the Frontier accounts linked to a Discord user.

Example:
  edfc accounts list --user 123456789012345678`,
	RunE: runAccountsList,
}

var accountsUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Unlink one of a user's accounts",
	Long: `Unlink a Frontier account from a Discord user and purge its cached data.
Without --account the user's default account is unlinked.

Example:
  edfc accounts unlink --user 123456789012345678 --account 3`,
	RunE: runAccountsUnlink,
}

var accountsFlags struct {
	UserID    string
	AccountID int64
}

func init() {
	for _, c := range []*cobra.Command{accountsListCmd, accountsUnlinkCmd} {
		c.Flags().StringVar(&accountsFlags.UserID, "user", "", "Discord user id")
		_ = c.MarkFlagRequired("user")
	}
	accountsUnlinkCmd.Flags().Int64Var(&accountsFlags.AccountID, "account", 0, "Account id (default account when omitted)")
	accountsCmd.AddCommand(accountsListCmd, accountsUnlinkCmd)
}

// AccountRow is one line of `accounts list`.
type AccountRow struct {
	ID            int64     `json:"id"`
	CommanderName string    `json:"commander_name"`
	CarrierName   string    `json:"carrier_name,omitempty"`
	CarrierID     string    `json:"carrier_id,omitempty"`
	Default       bool      `json:"default"`
	ExpiresAt     time.Time `json:"expires_at"`
	LinkedAt      time.Time `json:"linked_at"`
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	a, err := adminApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	linked, err := a.accounts.ListAccounts(ctx, accountsFlags.UserID)
	if err != nil {
		return err
	}
	def, err := a.accounts.GetDefaultAccountID(ctx, accountsFlags.UserID)
	if err != nil {
		return err
	}

	rows := make([]AccountRow, 0, len(linked))
	for _, acc := range linked {
		rows = append(rows, AccountRow{
			ID:            acc.ID,
			CommanderName: acc.CommanderName,
			CarrierName:   acc.CarrierName,
			CarrierID:     acc.CarrierID,
			Default:       acc.ID == def,
			ExpiresAt:     acc.ExpiresAt,
			LinkedAt:      acc.CreatedAt,
		})
	}

	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "No accounts linked to user %s\n", accountsFlags.UserID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMANDER\tCARRIER\tDEFAULT\tTOKEN EXPIRES")
	for _, r := range rows {
		carrier := "-"
		if r.CarrierID != "" {
			carrier = fmt.Sprintf("%s (%s)", r.CarrierName, r.CarrierID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, orDash(r.CommanderName), carrier, yesNo(r.Default), r.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func runAccountsUnlink(cmd *cobra.Command, args []string) error {
	a, err := adminApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	id, removed, err := a.tokens.Revoke(ctx, accountsFlags.UserID, accountsFlags.AccountID)
	a.logger.Audit(ctx, logging.NewAuditEvent(logging.AdminAction, accountsFlags.UserID).
		WithAccount(id).
		WithDetail("action", "unlink").
		WithDetail("removed", removed).
		WithError(err))
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no matching account linked to user %s", accountsFlags.UserID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unlinked account %d from user %s\n", id, accountsFlags.UserID)
	return nil
}

// adminApp builds the application for one-shot operator commands. Logs go to
// stderr so stdout stays parseable.
func adminApp(cmd *cobra.Command) (*app, error) {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	level := cfg.Log
	if !globalFlags.Verbose {
		level.Level = "warn"
	}
	return buildApp(cfg, newLogger(level, cmd.ErrOrStderr()))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
