package database

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS user (
    id       INTEGER PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL UNIQUE,
    root_directory TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_project (
    user_id      INTEGER NOT NULL REFERENCES user(id) ON DELETE CASCADE,
    project_id   INTEGER NOT NULL REFERENCES project(id) ON DELETE CASCADE,
    access_level TEXT NOT NULL,
    UNIQUE(user_id, project_id)
);

CREATE INDEX IF NOT EXISTS idx_user_project_project
    ON user_project(project_id);
`

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
