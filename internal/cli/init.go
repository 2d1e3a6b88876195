package cli

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/nurdspace/nurdbar/internal/auth"
	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

const defaultAdmin = "admin"

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var admin string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database, the payment item, and an admin operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config.DB.Path
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("database file %s already exists", path)
			}

			database, password, err := initDatabase(cmd.Context(), rootOpts, admin)
			if err != nil {
				return err
			}
			database.Close()

			printInitResult(cmd.OutOrStdout(), path, admin, password)
			return nil
		},
	}

	cmd.Flags().StringVar(&admin, "admin", defaultAdmin, "username of the first admin operator")
	return cmd
}

// initDatabase creates a new database with the payment item and an admin
// operator, and returns the admin's generated password. The file is
// removed again if any step fails.
func initDatabase(ctx context.Context, opts *RootOptions, adminUsername string) (*sql.DB, string, error) {
	path := opts.Config.DB.Path
	database, _, err := opts.openLedger(ctx, nil)
	if err != nil {
		os.Remove(path)
		return nil, "", err
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail(err)
	}
	if _, err := store.CreateUser(ctx, database, adminUsername, hash, model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	opts.Logger.Info(opts.Logger.WithField(ctx, "path", path), "database initialized")
	return database, password, nil
}

func printInitResult(w io.Writer, dbPath, username, password string) {
	fmt.Fprintf(w, "Database created: %s\n", dbPath)
	fmt.Fprintln(w, "Payment item created.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
