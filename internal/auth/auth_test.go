package auth_test

import (
	"errors"
	"testing"

	"tandem/internal/access"
	"tandem/internal/auth"
	"tandem/internal/database"
	"tandem/internal/project"
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

// TestAddUser verifies account creation and the duplicate username error.
func TestAddUser(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	svc := auth.NewService(db)

	if err := svc.AddUser("alice", "secret", nil); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	users, err := svc.Users("")
	if err != nil {
		t.Fatalf("Users failed: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("expected one user alice, got %v", users)
	}

	// Duplicate usernames are rejected
	err = svc.AddUser("alice", "other", nil)
	if !errors.Is(err, database.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got: %v", err)
	}
}

// TestAddUserWithGrants verifies that initial project grants are stored.
func TestAddUserWithGrants(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	authSvc := auth.NewService(db)
	projectSvc := project.NewService(db)

	proj, err := projectSvc.Create("notes", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	grants := map[int64]access.Level{proj.ID: access.LevelContributor}
	if err := authSvc.AddUser("bob", "secret", grants); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	level, err := authSvc.Access("bob", proj.ID)
	if err != nil {
		t.Fatalf("Access failed: %v", err)
	}
	if level != access.LevelContributor {
		t.Errorf("expected CONTRIBUTOR, got %s", level)
	}
}

// TestAuthenticate verifies password checks against the stored hash.
func TestAuthenticate(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	svc := auth.NewService(db)

	if err := svc.AddUser("alice", "secret", nil); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	ok, err := svc.Authenticate("alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = svc.Authenticate("alice", "wrong")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}

	// Unknown users are distinguishable from bad passwords
	_, err = svc.Authenticate("nobody", "secret")
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// TestAuthenticateProject verifies that a valid password alone is not enough:
// the user must also be a member of the project.
func TestAuthenticateProject(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	authSvc := auth.NewService(db)
	projectSvc := project.NewService(db)

	proj, err := projectSvc.Create("notes", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	if err := authSvc.AddUser("alice", "secret", nil); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	ok, err := authSvc.AuthenticateProject("alice", "secret", proj.ID)
	if err != nil {
		t.Fatalf("AuthenticateProject failed: %v", err)
	}
	if ok {
		t.Error("non-member authenticated against project")
	}

	if err := authSvc.SetAccess("alice", proj.ID, access.LevelReadOnly); err != nil {
		t.Fatalf("SetAccess failed: %v", err)
	}
	ok, err = authSvc.AuthenticateProject("alice", "secret", proj.ID)
	if err != nil {
		t.Fatalf("AuthenticateProject failed: %v", err)
	}
	if !ok {
		t.Error("member with correct password rejected")
	}

	ok, err = authSvc.AuthenticateProject("alice", "wrong", proj.ID)
	if err != nil {
		t.Fatalf("AuthenticateProject failed: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

// TestSetAccess verifies that granting replaces any previous level.
func TestSetAccess(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	authSvc := auth.NewService(db)
	projectSvc := project.NewService(db)

	proj, err := projectSvc.Create("notes", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	if err := authSvc.AddUser("alice", "secret", nil); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	// No relationship yet
	_, err = authSvc.Access("alice", proj.ID)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}

	if err := authSvc.SetAccess("alice", proj.ID, access.LevelReadOnly); err != nil {
		t.Fatalf("SetAccess failed: %v", err)
	}
	if err := authSvc.SetAccess("alice", proj.ID, access.LevelAdmin); err != nil {
		t.Fatalf("SetAccess (replace) failed: %v", err)
	}
	level, err := authSvc.Access("alice", proj.ID)
	if err != nil {
		t.Fatalf("Access failed: %v", err)
	}
	if level != access.LevelAdmin {
		t.Errorf("expected ADMIN after replacement, got %s", level)
	}

	// Granting for an unknown user fails cleanly
	err = authSvc.SetAccess("nobody", proj.ID, access.LevelAdmin)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// TestRevokeAccess verifies that revocation removes the relationship.
func TestRevokeAccess(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	authSvc := auth.NewService(db)
	projectSvc := project.NewService(db)

	proj, err := projectSvc.Create("notes", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	if err := authSvc.AddUser("alice", "secret", nil); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := authSvc.SetAccess("alice", proj.ID, access.LevelContributor); err != nil {
		t.Fatalf("SetAccess failed: %v", err)
	}

	if err := authSvc.RevokeAccess("alice", proj.ID); err != nil {
		t.Fatalf("RevokeAccess failed: %v", err)
	}
	_, err = authSvc.Access("alice", proj.ID)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revocation, got: %v", err)
	}
}

// TestRemoveUser verifies that deleting a user cascades to memberships.
func TestRemoveUser(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	authSvc := auth.NewService(db)
	projectSvc := project.NewService(db)

	proj, err := projectSvc.Create("notes", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	if err := authSvc.AddUser("alice", "secret", nil); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := authSvc.SetAccess("alice", proj.ID, access.LevelAdmin); err != nil {
		t.Fatalf("SetAccess failed: %v", err)
	}

	if err := authSvc.RemoveUser("alice"); err != nil {
		t.Fatalf("RemoveUser failed: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM user_project").Scan(&n); err != nil {
		t.Fatalf("failed to count memberships: %v", err)
	}
	if n != 0 {
		t.Errorf("expected cascade to remove memberships, found %d", n)
	}

	err = authSvc.RemoveUser("alice")
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got: %v", err)
	}
}

// TestUsersQuery verifies substring matching, including characters that are
// meaningful to LIKE patterns.
func TestUsersQuery(t *testing.T) {
	db := openTestDB(t)
	defer closeTestDB(t, db)
	svc := auth.NewService(db)

	for _, name := range []string{"alice", "alicia", "bob"} {
		if err := svc.AddUser(name, "secret", nil); err != nil {
			t.Fatalf("AddUser %s failed: %v", name, err)
		}
	}

	users, err := svc.Users("ali")
	if err != nil {
		t.Fatalf("Users failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 matches for 'ali', got %d", len(users))
	}

	users, err = svc.Users("'; DROP TABLE user; --")
	if err != nil {
		t.Fatalf("Users with hostile query failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no matches, got %d", len(users))
	}
	// The table must have survived
	if _, err := svc.Users(""); err != nil {
		t.Fatalf("user table gone after hostile query: %v", err)
	}
}
