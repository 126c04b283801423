package database_test

import (
	"database/sql"
	"errors"
	"testing"

	"tandem/internal/database"
)

// openTestDB initializes an in-memory SQLite database with the schema applied.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

// closeTestDB closes the database connection to release resources after each test.
func closeTestDB(t *testing.T, db *database.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// TestSchemaSetup verifies that the tables are created on open.
func TestSchemaSetup(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)

	for _, table := range []string{"user", "project", "user_project"} {
		if err := verifyTableExists(db.DB, table); err != nil {
			t.Errorf("%s table verification failed: %v", table, err)
		}
	}
}

// TestForeignKeysEnforced verifies that membership rows cannot reference
// missing users or projects.
func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)

	_, err := db.Exec(
		"INSERT INTO user_project (user_id, project_id, access_level) VALUES (999, 999, 'ADMIN')",
	)
	if err == nil {
		t.Fatal("expected foreign key violation, got nil")
	}
}

// TestUniqueViolation verifies that IsUniqueViolation recognizes duplicate
// inserts and nothing else.
func TestUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)

	if _, err := db.Exec(
		"INSERT INTO user (username, password) VALUES ('alice', 'x')",
	); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	_, err := db.Exec("INSERT INTO user (username, password) VALUES ('alice', 'y')")
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !database.IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got: %v", err)
	}
	if database.IsUniqueViolation(errors.New("other")) {
		t.Error("unrelated error reported as unique violation")
	}
}

// TestWithTxRollsBack verifies that a failing transaction leaves no rows behind.
func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)

	sentinel := errors.New("boom")
	err := db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO user (username, password) VALUES ('bob', 'x')",
		); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM user").Scan(&n); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback to remove the row, found %d users", n)
	}
}

// verifyTableExists checks if a table with the given name exists in the database.
func verifyTableExists(conn *sql.DB, tableName string) error {
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?;`
	row := conn.QueryRow(query, tableName)

	var name string
	return row.Scan(&name)
}
