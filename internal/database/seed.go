package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Default development credentials created by Seed.
const (
	SeedAdminEmail    = "admin@mollik.local"
	SeedAdminPassword = "admin"
)

// seedPoems are published on first seed so the public API has something to
// list in development.
var seedPoems = []struct{ title, slug, body string }{
	{"Bidrohi", "bidrohi", "Bolo bir, bolo unnoto momo shir..."},
	{"Amar Kaifiyat", "amar-kaifiyat", "Borobhai kohen, shotto bolo..."},
}

// Seed populates the database with initial development data.
// It creates a default admin user if none exists. The admin will be
// prompted to set up 2FA on first login (totp_enabled = false).
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}
	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var adminID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, display_name, role, totp_enabled)
		VALUES ($1, $2, $3, 'admin', FALSE)
		RETURNING id
	`, SeedAdminEmail, string(hash), "Admin").Scan(&adminID)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	for _, p := range seedPoems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO content_items (kind, namespace, title, slug, body, status, author_id, published_at)
			VALUES ('poem', 'literature', $1, $2, $3, 'published', $4, NOW())
			ON CONFLICT (namespace, slug) DO NOTHING
		`, p.title, p.slug, p.body, adminID)
		if err != nil {
			return fmt.Errorf("seed insert poem %q: %w", p.slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", SeedAdminEmail,
		"password", SeedAdminPassword,
	)
	return nil
}
