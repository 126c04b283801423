// Package auth stores users and their per-project access levels, and
// verifies credentials against bcrypt password hashes.
package auth

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"tandem/internal/access"
	"tandem/internal/database"
)

// bcryptCost is the work factor applied when hashing new passwords.
const bcryptCost = 12

// User is a stored account. The password hash never leaves this package.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Service struct {
	db *database.DB
}

func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// AddUser creates an account, optionally granting access to projects.
// Returns database.ErrAlreadyExists when the username is taken.
func (s *Service) AddUser(username, password string, grants map[int64]access.Level) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"INSERT INTO user (username, password) VALUES (?, ?)",
			username, string(hash),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return database.ErrAlreadyExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		userID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get user id: %w", err)
		}
		for projectID, level := range grants {
			if _, err := tx.Exec(
				"INSERT INTO user_project (user_id, project_id, access_level) VALUES (?, ?, ?)",
				userID, projectID, string(level),
			); err != nil {
				return fmt.Errorf("failed to grant access: %w", err)
			}
		}
		return nil
	})
}

// RemoveUser deletes an account and its project relationships.
func (s *Service) RemoveUser(username string) error {
	res, err := s.db.Exec("DELETE FROM user WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// SetAccess grants a user access to a project, replacing any existing level.
func (s *Service) SetAccess(username string, projectID int64, level access.Level) error {
	userID, err := s.userID(username)
	if err != nil {
		return err
	}
	return s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"DELETE FROM user_project WHERE user_id = ? AND project_id = ?",
			userID, projectID,
		); err != nil {
			return fmt.Errorf("failed to clear access: %w", err)
		}
		if _, err := tx.Exec(
			"INSERT INTO user_project (user_id, project_id, access_level) VALUES (?, ?, ?)",
			userID, projectID, string(level),
		); err != nil {
			return fmt.Errorf("failed to set access: %w", err)
		}
		return nil
	})
}

// RevokeAccess removes a user's access to a project.
func (s *Service) RevokeAccess(username string, projectID int64) error {
	userID, err := s.userID(username)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		"DELETE FROM user_project WHERE user_id = ? AND project_id = ?",
		userID, projectID,
	); err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}
	return nil
}

// Access returns the user's level for a project, or database.ErrNotFound
// when no relationship exists.
func (s *Service) Access(username string, projectID int64) (access.Level, error) {
	var level string
	err := s.db.QueryRow(`
        SELECT up.access_level
        FROM user u JOIN user_project up ON up.user_id = u.id
        WHERE u.username = ? AND up.project_id = ?
    `, username, projectID).Scan(&level)
	if err == sql.ErrNoRows {
		return "", database.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query access: %w", err)
	}
	return access.Level(level), nil
}

// Authenticate verifies the user's password. An unknown user returns
// database.ErrNotFound.
func (s *Service) Authenticate(username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(
		"SELECT password FROM user WHERE username = ?", username,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, database.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// AuthenticateProject verifies the password and additionally requires that
// the user has some relationship with the project.
func (s *Service) AuthenticateProject(username, password string, projectID int64) (bool, error) {
	ok, err := s.Authenticate(username, password)
	if err != nil || !ok {
		return false, err
	}
	var n int
	err = s.db.QueryRow(`
        SELECT COUNT(*)
        FROM user u JOIN user_project up ON up.user_id = u.id
        WHERE u.username = ? AND up.project_id = ?
    `, username, projectID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return n > 0, nil
}

// Users returns accounts whose username contains query. An empty query
// matches everyone.
func (s *Service) Users(query string) ([]User, error) {
	rows, err := s.db.Query(
		"SELECT id, username FROM user WHERE username LIKE ? ORDER BY username",
		"%"+query+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (s *Service) userID(username string) (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM user WHERE username = ?", username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, database.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query user: %w", err)
	}
	return id, nil
}
