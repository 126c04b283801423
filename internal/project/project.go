// Package project manages project metadata: each project is a named root
// directory that users hold access levels on.
package project

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"tandem/internal/access"
	"tandem/internal/database"
)

// Project is one collaborative workspace rooted at a directory.
type Project struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	RootDirectory string `json:"rootDirectory"`
}

// Member is a user together with their access level for one project.
type Member struct {
	Username string       `json:"username"`
	Level    access.Level `json:"accessLevel"`
}

// ProjectAccess is a project together with the querying user's level.
type ProjectAccess struct {
	Project
	Level access.Level `json:"accessLevel"`
}

type Service struct {
	db *database.DB
}

func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// Create registers a new project. Returns database.ErrAlreadyExists when
// the name is taken.
func (s *Service) Create(name, rootDirectory string) (Project, error) {
	abs, err := filepath.Abs(rootDirectory)
	if err != nil {
		return Project{}, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	res, err := s.db.Exec(
		"INSERT INTO project (name, root_directory) VALUES (?, ?)",
		name, abs,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Project{}, database.ErrAlreadyExists
		}
		return Project{}, fmt.Errorf("failed to insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Project{}, fmt.Errorf("failed to get project id: %w", err)
	}
	return Project{ID: id, Name: name, RootDirectory: abs}, nil
}

// Get retrieves a project by id, or database.ErrNotFound.
func (s *Service) Get(id int64) (Project, error) {
	return s.scanOne(s.db.QueryRow(
		"SELECT id, name, root_directory FROM project WHERE id = ?", id,
	))
}

// GetByName retrieves a project by name, or database.ErrNotFound.
func (s *Service) GetByName(name string) (Project, error) {
	return s.scanOne(s.db.QueryRow(
		"SELECT id, name, root_directory FROM project WHERE name = ?", name,
	))
}

// Delete removes a project and its membership rows.
func (s *Service) Delete(id int64) error {
	res, err := s.db.Exec("DELETE FROM project WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
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

// ForFile resolves the project owning path by matching the longest project
// root directory that contains it. The second return is false when no
// project contains the path.
func (s *Service) ForFile(path string) (int64, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve path: %w", err)
	}
	rows, err := s.db.Query("SELECT id, root_directory FROM project")
	if err != nil {
		return 0, false, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var (
		bestID  int64
		bestLen = -1
	)
	for rows.Next() {
		var (
			id   int64
			root string
		)
		if err := rows.Scan(&id, &root); err != nil {
			return 0, false, fmt.Errorf("failed to scan project: %w", err)
		}
		if WithinRoot(root, abs) && len(root) > bestLen {
			bestID, bestLen = id, len(root)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("error iterating projects: %w", err)
	}
	if bestLen < 0 {
		return 0, false, nil
	}
	return bestID, true, nil
}

// UsersForProject lists the members of a project with their levels.
func (s *Service) UsersForProject(id int64) ([]Member, error) {
	rows, err := s.db.Query(`
        SELECT u.username, up.access_level
        FROM user u JOIN user_project up ON up.user_id = u.id
        WHERE up.project_id = ?
        ORDER BY u.username
    `, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m     Member
			level string
		)
		if err := rows.Scan(&m.Username, &level); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Level = access.Level(level)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// ProjectsForUser lists the projects a user can access with their levels.
func (s *Service) ProjectsForUser(username string) ([]ProjectAccess, error) {
	rows, err := s.db.Query(`
        SELECT p.id, p.name, p.root_directory, up.access_level
        FROM project p
        JOIN user_project up ON up.project_id = p.id
        JOIN user u ON u.id = up.user_id
        WHERE u.username = ?
        ORDER BY p.name
    `, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectAccess
	for rows.Next() {
		var (
			p     ProjectAccess
			level string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.RootDirectory, &level); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Level = access.Level(level)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func (s *Service) scanOne(row *sql.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.RootDirectory)
	if err == sql.ErrNoRows {
		return Project{}, database.ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("failed to scan project: %w", err)
	}
	return p, nil
}

// WithinRoot reports whether path is root or lives under it. Handlers use
// it to reject project-relative paths that escape the project directory.
func WithinRoot(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == path {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
