package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prop-risk-engine-go/internal/models"
)

func newPlansCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List purchasable challenge plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg.Plans)
		},
	}
}

func newAccountsCmd(rc *rootConfig) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts, optionally by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *models.AccountStatus
			if status != "" {
				s := models.AccountStatus(strings.ToUpper(status))
				if !s.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = &s
			}

			e, err := rc.open()
			if err != nil {
				return err
			}
			accounts, err := e.store.ListAccounts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), accounts)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only accounts with this status (ACTIVE, FAILED, PASSED)")
	return cmd
}

func newRegisterCmd(rc *rootConfig) *cobra.Command {
	var plan string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account funded by a challenge plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rc.open()
			if err != nil {
				return err
			}
			account, err := e.trading.RegisterAccount(cmd.Context(), args[0], plan)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan name (default: risk.default_plan)")
	return cmd
}

func newChallengeCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "challenge <account-id> <plan>",
		Short: "Start a new challenge, archiving the current one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rc.open()
			if err != nil {
				return err
			}
			account, err := e.trading.PurchaseChallenge(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
}

func newEvaluateCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <account-id>",
		Short: "Run a risk evaluation pass and persist the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rc.open()
			if err != nil {
				return err
			}
			res, err := e.evaluator.Evaluate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newMetricsCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <account-id>",
		Short: "Show risk metrics without changing the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rc.open()
			if err != nil {
				return err
			}
			snap, err := e.evaluator.Snapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
}
