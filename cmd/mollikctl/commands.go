package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mollik/internal/cache"
	"mollik/internal/database"
	"mollik/internal/models"
	"mollik/internal/session"
	"mollik/internal/store"
)

// NewMigrateCommand applies pending schema migrations.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			v, err := database.Version(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}
}

// NewSeedCommand creates the development admin and sample poems.
func NewSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed development data (no-op when users exist)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Seed(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded; admin login %s\n", database.SeedAdminEmail)
			return nil
		},
	}
}

// NewUserCommand groups the account management subcommands.
func NewUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserCreateCommand())
	cmd.AddCommand(newUserListCommand())
	cmd.AddCommand(newUserSetRoleCommand())
	cmd.AddCommand(newUserResetTOTPCommand())
	return cmd
}

// parseRole accepts admin, editor or reader in any case.
func parseRole(s string) (models.Role, error) {
	role := models.Role(strings.ToLower(strings.TrimSpace(s)))
	switch role {
	case models.RoleAdmin, models.RoleEditor, models.RoleReader:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q (want admin, editor or reader)", s)
}

func newUserCreateCommand() *cobra.Command {
	var email, name, password, roleName string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(roleName)
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("MOLLIK_PASSWORD")
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters (use --password or MOLLIK_PASSWORD)")
			}

			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := store.NewUserStore(db).Create(ctx, email, password, name, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (defaults to $MOLLIK_PASSWORD)")
	cmd.Flags().StringVar(&roleName, "role", string(models.RoleReader), "admin, editor or reader")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newUserListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := store.NewUserStore(db).List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\t2FA\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.Email, u.DisplayName, u.Role, u.TOTPEnabled, u.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
}

func newUserSetRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			users := store.NewUserStore(db)
			user, err := users.FindByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if err := users.SetRole(ctx, user.ID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
			revokeSessions(cmd, user.ID)
			return nil
		},
	}
}

func newUserResetTOTPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-2fa <email>",
		Short: "Clear an account's TOTP enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			users := store.NewUserStore(db)
			user, err := users.FindByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if err := users.ResetTOTP(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "2FA reset for %s; they will enroll again at next login\n", user.Email)
			revokeSessions(cmd, user.ID)
			return nil
		},
	}
}

// revokeSessions signs the user out everywhere so the change applies at
// once. Without Valkey the old sessions run out on their own TTL.
func revokeSessions(cmd *cobra.Command, userID uuid.UUID) {
	ctx := cmd.Context()
	client, _, err := openValkey(ctx)
	if err != nil {
		slog.Warn("sessions not revoked", "user_id", userID, "error", err)
		return
	}
	defer client.Close()

	n, err := session.NewStore(client, false).RevokeUser(ctx, userID)
	if err != nil {
		slog.Warn("sessions not revoked", "user_id", userID, "error", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "signed out %d session(s)\n", n)
}

// NewVisitorsCommand prints the site visitor counters.
func NewVisitorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "visitors",
		Short: "Show visitor totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cfg, err := openValkey(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			stats, err := cache.NewVisitorCounter(client, cfg.VisitorWindow).Totals(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total %d\ntoday %d\nmonth %d\n", stats.Total, stats.Today, stats.Month)
			return nil
		},
	}
}

// NewCacheCommand groups response cache maintenance.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the public response cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Drop every cached public response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cfg, err := openValkey(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			cache.NewPageCache(client, cfg.PageCacheTTL).InvalidateAll(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "response cache flushed")
			return nil
		},
	})
	return cmd
}
