package main

import (
	"database/sql"
	"fmt"
	"log"
)

// migrations are applied in order at startup, each in its own transaction.
// Never edit an entry that has shipped; append a new one.
var migrations = []string{
	`CREATE TABLE courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lti_id TEXT NOT NULL,
		lti_label TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		canvas_id INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (lti_id)
	)`,

	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lti_id TEXT NOT NULL,
		consumer_key TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		lti_image_url TEXT,
		canvas_login TEXT,
		canvas_id INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		last_launched_at TIMESTAMP NOT NULL,
		UNIQUE (lti_id, consumer_key)
	)`,

	`CREATE TABLE resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		consumer_key TEXT NOT NULL,
		resource_link_id TEXT NOT NULL,
		course_id INTEGER REFERENCES courses (id) ON DELETE SET NULL,
		title TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (consumer_key, resource_link_id)
	)`,

	`CREATE TABLE course_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL REFERENCES courses (id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		roles TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (course_id, user_id)
	)`,

	`CREATE INDEX resources_course_id ON resources (course_id)`,
}

// migrate applies any migrations not yet recorded in the migrations table.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %v", err)
	}

	applied := 0
	if err := db.QueryRow(`SELECT COUNT(*) FROM migrations`).Scan(&applied); err != nil {
		return fmt.Errorf("counting applied migrations: %v", err)
	}
	if applied > len(migrations) {
		return fmt.Errorf("database has %d migrations applied, but only %d are known", applied, len(migrations))
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("starting transaction for migration %d: %v", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %v", i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO migrations (id) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %v", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %v", i+1, err)
		}
		log.Printf("applied migration %d", i+1)
	}

	return nil
}
