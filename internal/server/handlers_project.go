package server

import (
	"encoding/json"
	"errors"

	"tandem/internal/access"
	"tandem/internal/database"
	"tandem/internal/fileio"
	"tandem/internal/project"
)

// handleCreateProject registers a new project and grants the creator
// ADMIN. Any authenticated user may create projects.
func (s *Server) handleCreateProject(c *client, raw json.RawMessage) any {
	var req createProjectRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	ok, err := s.auth.Authenticate(req.Credentials.Username, req.Credentials.Password)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return statusAck{Status: StatusAccessDenied}
		}
		log.Errorf("authentication failed for %s: %v", req.Credentials.Username, err)
		return statusAck{Status: StatusError}
	}
	if !ok {
		return statusAck{Status: StatusAccessDenied}
	}

	proj, err := s.projects.Create(req.ProjectName, req.RootDirectory)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			return statusAck{Status: StatusAlreadyExists}
		}
		log.Errorf("failed to create project %s: %v", req.ProjectName, err)
		return statusAck{Status: StatusError}
	}
	if err := fileio.CreateDir(proj.RootDirectory); err != nil {
		log.Errorf("failed to create project root %s: %v", proj.RootDirectory, err)
		return statusAck{Status: StatusError}
	}
	if err := s.auth.SetAccess(req.Credentials.Username, proj.ID, access.LevelAdmin); err != nil {
		log.Errorf("failed to grant admin on project %d: %v", proj.ID, err)
		return statusAck{Status: StatusError}
	}
	return createProjectAck{Status: StatusOK, ProjectID: proj.ID}
}

// handleOpenProject returns project metadata plus the recursive file tree
// of its root directory.
func (s *Server) handleOpenProject(c *client, raw json.RawMessage) any {
	var req openProjectRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateProject(req.Credentials, req.ProjectID, access.CapabilityRead); status != "" {
		return statusAck{Status: status}
	}

	proj, err := s.projects.Get(req.ProjectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return statusAck{Status: StatusDoesNotExist}
		}
		log.Errorf("failed to load project %d: %v", req.ProjectID, err)
		return statusAck{Status: StatusError}
	}

	tree, err := project.Tree(proj.RootDirectory)
	if err != nil {
		log.Errorf("failed to walk project %d: %v", req.ProjectID, err)
		return statusAck{Status: StatusError}
	}
	if tree == nil {
		log.Errorf("project %d root directory %s is missing", proj.ID, proj.RootDirectory)
		return statusAck{Status: StatusError}
	}

	return openProjectAck{
		Status: StatusOK,
		ProjectInfo: &projectInfo{
			ID:            proj.ID,
			Name:          proj.Name,
			RootDirectory: tree,
		},
	}
}
