package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/nurdspace/nurdbar/internal/ledger"
)

// withLedger runs fn against a freshly opened ledger.
func withLedger(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, l *ledger.Ledger) error) error {
	ctx := cmd.Context()
	database, l, err := opts.openLedger(ctx, nil)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(ctx, l)
}

// NewMemberCommand creates the member command group.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <barcode> <nick>",
		Short: "Register a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				m, err := l.RegisterMember(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered member %s (%s)\n", m.Nick, m.Barcode)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <barcode> <nick>",
		Short: "Change a member's nick",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				m, err := l.Member(ctx, args[0])
				if err != nil {
					return err
				}
				old := m.Nick
				m, err = l.RenameMember(ctx, m.ID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", old, m.Nick)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List members and their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				members, err := l.Members(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NICK\tBARCODE\tBALANCE")
				for _, m := range members {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Nick, m.Barcode, m.Balance.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	})

	return cmd
}

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage item lots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <barcode> <price>",
		Short: "Register a lot of an item at a price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[1], err)
			}
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				item, err := l.RegisterItem(ctx, args[0], price)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered lot %d: %s at %s\n", item.ID, item.Barcode, item.Price.StringFixed(2))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stock per barcode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				levels, err := l.Stock(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BARCODE\tLOTS\tSTOCK")
				for _, s := range levels {
					fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Barcode, s.Lots, s.Stock)
				}
				return tw.Flush()
			})
		},
	})

	return cmd
}

// NewPayCommand creates the pay command.
func NewPayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <member-barcode> <amount>",
		Short: "Credit a member with a payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				t, err := l.PayAmount(ctx, args[0], amount)
				if err != nil {
					return err
				}
				balance, err := l.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paid %s for %s, balance %s\n",
					t.Price.StringFixed(2), t.MemberNick, balance.StringFixed(2))
				return nil
			})
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <member-barcode>",
		Short: "Show a member's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *ledger.Ledger) error {
				m, err := l.Member(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.Nick, m.Balance.StringFixed(2))
				return nil
			})
		},
	}
}
