package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				nickname VARCHAR(50) UNIQUE NOT NULL,
				name VARCHAR(100),
				avatar_url VARCHAR(500),
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_users_nickname ON users(nickname);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			CREATE TABLE IF NOT EXISTS conversations (
				id BIGSERIAL PRIMARY KEY,
				user1_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				user2_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				listing_id BIGINT,
				last_message_text VARCHAR(200),
				last_message_at TIMESTAMP NOT NULL DEFAULT NOW(),
				last_sender_id BIGINT,
				unread_count_user1 INT NOT NULL DEFAULT 0,
				unread_count_user2 INT NOT NULL DEFAULT 0,
				is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
				blocked_by BIGINT,
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				CHECK (user1_id < user2_id)
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_conversation_users
				ON conversations(user1_id, user2_id);
			CREATE INDEX IF NOT EXISTS idx_conversation_inbox1
				ON conversations(user1_id, last_message_at);
			CREATE INDEX IF NOT EXISTS idx_conversation_inbox2
				ON conversations(user2_id, last_message_at);
		`,
		Down: `
			DROP TABLE IF EXISTS conversations;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS messages (
				id BIGSERIAL PRIMARY KEY,
				conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content TEXT,
				image_url VARCHAR(500),
				message_type VARCHAR(20) NOT NULL DEFAULT 'text',
				is_read BOOLEAN NOT NULL DEFAULT FALSE,
				read_at TIMESTAMP,
				is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
				deleted_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_messages_conversation
				ON messages(conversation_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_messages_unread
				ON messages(conversation_id, is_read);
		`,
		Down: `
			DROP TABLE IF EXISTS messages;
		`,
	},
}

// RunMigrations applies all pending migrations in version order.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations := make([]Migration, len(Migrations))
	copy(migrations, Migrations)
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, m := range migrations {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`,
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// RollbackLatest reverts the most recently applied migration.
func RollbackLatest(db *sql.DB) error {
	var version int
	err := db.QueryRow(
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no migrations to roll back")
	}
	if err != nil {
		return fmt.Errorf("failed to find latest migration: %w", err)
	}

	var target *Migration
	for i := range Migrations {
		if Migrations[i].Version == version {
			target = &Migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %d not found", version)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rollback of %d: %w", version, err)
	}
	if _, err := tx.Exec(target.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to roll back migration %d: %w", version, err)
	}
	if _, err := tx.Exec(
		`DELETE FROM schema_migrations WHERE version = $1`, version,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to unrecord migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback of %d: %w", version, err)
	}
	return nil
}
