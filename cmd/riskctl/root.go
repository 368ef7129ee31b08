package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"prop-risk-engine-go/internal/config"
	"prop-risk-engine-go/internal/database"
	"prop-risk-engine-go/internal/logger"
	"prop-risk-engine-go/internal/pricefeed"
	"prop-risk-engine-go/internal/risk"
	"prop-risk-engine-go/internal/store"
	"prop-risk-engine-go/internal/trading"
)

type rootConfig struct {
	configDir string
}

// engine is the wired risk stack a command runs against.
type engine struct {
	store     *store.Store
	evaluator *risk.Evaluator
	trading   *trading.Service
}

func newRootCmd() *cobra.Command {
	rc := &rootConfig{}

	cmd := &cobra.Command{
		Use:   "riskctl",
		Short: "Operate the prop firm risk engine from the command line",
		Long: `riskctl runs the same risk evaluation as the HTTP service against
the configured database and price feed.

It can:
  - list challenge plans and accounts
  - register accounts and start new challenges
  - evaluate an account or show its risk metrics`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&rc.configDir, "config", "./configs", "directory containing config.yml")

	cmd.AddCommand(
		newPlansCmd(rc),
		newAccountsCmd(rc),
		newRegisterCmd(rc),
		newChallengeCmd(rc),
		newEvaluateCmd(rc),
		newMetricsCmd(rc),
	)
	return cmd
}

func (rc *rootConfig) loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(rc.configDir)
	if err != nil {
		return cfg, fmt.Errorf("could not load config: %w", err)
	}
	return cfg, nil
}

func (rc *rootConfig) open() (*engine, error) {
	cfg, err := rc.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	oracle, err := pricefeed.NewFromConfig(&cfg.PriceFeed, log)
	if err != nil {
		return nil, err
	}

	st := store.New(db)
	locks := risk.NewLocker()
	evaluator := risk.NewEvaluator(
		st,
		risk.NewEquityCalculator(oracle, log, cfg.Risk.PriceConcurrency),
		risk.NewDailyWindow(nil),
		locks,
		log,
	)

	return &engine{
		store:     st,
		evaluator: evaluator,
		trading:   trading.NewService(log, &cfg, st, oracle, evaluator, locks),
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
