// Package cli implements the nurdbar command line: database setup, the
// operator API server, the scanner loop, and a few bookkeeping commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nurdspace/nurdbar/internal/config"
	"github.com/nurdspace/nurdbar/internal/db"
	"github.com/nurdspace/nurdbar/internal/ledger"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/metrics"
)

// RootOptions holds the global flags and what PersistentPreRunE loads
// from them.
type RootOptions struct {
	EnvFile string
	DBPath  string

	Config *config.Config
	Logger *logger.Logger

	// registry holds the metrics of the last scan loop.
	registry *prometheus.Registry
}

// NewRootCommand creates the nurdbar root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nurdbar",
		Short: "Self-service bar ledger",
		Long: `nurdbar keeps the books of a self-service bar: members scan their
card, then the items they take or bring, and payments are booked
against a sentinel payment barcode.

Settings come from NURDBAR_* environment variables, optionally
loaded from a dotenv file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with NURDBAR_* settings")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides NURDBAR_DB_PATH)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewMemberCommand(opts))
	cmd.AddCommand(NewItemCommand(opts))
	cmd.AddCommand(NewPayCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	if err := config.LoadDotenv(o.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.DBPath != "" {
		cfg.DB.Path = o.DBPath
	}
	o.Config = cfg
	o.Logger = logger.New(logger.Options{
		ServiceName: "nurdbar",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
		WarnStack:   cfg.Log.WarnStack,
		Output:      cmd.ErrOrStderr(),
	})
	return nil
}

// ledgerConfig maps the bar settings onto the ledger.
func (o *RootOptions) ledgerConfig() ledger.Config {
	return ledger.Config{
		PaymentBarcode:   o.Config.Bar.PaymentBarcode,
		PaymentUnitPrice: o.Config.Bar.PaymentUnitPrice,
		PriceTolerance:   o.Config.Bar.PriceTolerance,
	}
}

// openLedger opens and migrates the database and makes sure the payment
// lot exists. The caller closes the returned database.
func (o *RootOptions) openLedger(ctx context.Context, m *metrics.Bar) (*sql.DB, *ledger.Ledger, error) {
	database, err := db.Open(o.Config.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, nil, err
	}

	l, err := ledger.New(database, o.ledgerConfig(), ledger.WithLogger(o.Logger), ledger.WithMetrics(m))
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	if _, err := l.EnsurePaymentItem(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("creating payment item: %w", err)
	}
	return database, l, nil
}
