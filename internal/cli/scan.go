package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nurdspace/nurdbar/internal/barcode"
	"github.com/nurdspace/nurdbar/internal/metrics"
	"github.com/nurdspace/nurdbar/internal/notify"
	"github.com/nurdspace/nurdbar/internal/scan"
)

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		device      string
		mode        string
		amount      int
		quiet       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read barcodes from the scanner and book them",
		Long: `Read newline-terminated barcodes from a serial scanner device, or
from stdin with --device -, and book them: a member barcode starts a
session, the next item barcode is taken (or given in give mode) by
that member.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if device == "" {
				device = cfg.Scanner.Device
			}
			if mode == "" {
				mode = cfg.Bar.Mode
			}
			if amount == 0 {
				amount = cfg.Bar.DefaultAmount
			}
			if metricsAddr == "" {
				metricsAddr = cfg.Scanner.MetricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg, m := newMetrics()
			rootOpts.registry = reg
			if metricsAddr != "" {
				stopMetrics, err := serveMetrics(ctx, rootOpts.Logger, metricsAddr, reg)
				if err != nil {
					return err
				}
				defer stopMetrics()
			}

			in, err := openDevice(device, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()

			// A blocked read only returns once the device is closed.
			go func() {
				<-ctx.Done()
				in.Close()
			}()

			var console io.Writer = cmd.OutOrStdout()
			if quiet {
				console = nil
			}
			err = runScan(ctx, rootOpts, m, in, console, mode, amount)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&device, "device", "", `scanner device, "-" for stdin (overrides NURDBAR_SCANNER_DEVICE)`)
	cmd.Flags().StringVar(&mode, "mode", "", "take or give (overrides NURDBAR_BAR_MODE)")
	cmd.Flags().IntVar(&amount, "amount", 0, "units booked per item scan (overrides NURDBAR_BAR_DEFAULT_AMOUNT)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not print scan events")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides NURDBAR_SCANNER_METRICS_ADDR)")
	return cmd
}

// runScan feeds every line of in to a new scan session until in is
// exhausted. Events are printed to console when it is not nil.
func runScan(ctx context.Context, opts *RootOptions, m *metrics.Bar, in io.Reader, console io.Writer, mode string, amount int) error {
	database, l, err := opts.openLedger(ctx, m)
	if err != nil {
		return err
	}
	defer database.Close()

	session, err := scan.NewSession(l, barcode.NewClassifier(database, opts.Config.Bar.PaymentBarcode), scan.Options{
		Mode:    mode,
		Amount:  amount,
		Timeout: opts.Config.Bar.SessionTimeout,
		Logger:  opts.Logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if console != nil {
		if err := session.Sink().Register(notify.NewConsole(console)); err != nil {
			return err
		}
	}

	ctx = opts.Logger.WithSessionID(ctx, session.ID())
	opts.Logger.Info(opts.Logger.WithField(ctx, "mode", session.Mode()), "scan session started")
	defer opts.Logger.Info(ctx, "scan session ended")

	return scan.ReadLines(ctx, in, session)
}

func openDevice(device string, stdin io.Reader) (io.ReadCloser, error) {
	if device == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(device)
	if err != nil {
		return nil, fmt.Errorf("opening scanner: %w", err)
	}
	return f, nil
}
