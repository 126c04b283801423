package server

import (
	"encoding/json"
	"errors"

	"tandem/internal/access"
	"tandem/internal/database"
)

// handleAuthorize verifies the caller's credentials, binds the connection
// to the username, and returns the projects the user can access.
func (s *Server) handleAuthorize(c *client, raw json.RawMessage) any {
	var req authorizeRequest
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

	s.registry.MapIDToUsername(c.id, req.Credentials.Username)

	projects, err := s.projects.ProjectsForUser(req.Credentials.Username)
	if err != nil {
		log.Errorf("failed to list projects for %s: %v", req.Credentials.Username, err)
		return statusAck{Status: StatusError}
	}
	return authorizeAck{Status: StatusOK, Projects: projects}
}

func (s *Server) handleCreateUser(c *client, raw json.RawMessage) any {
	var req createUserRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if err := s.auth.AddUser(req.Username, req.Password, nil); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			return statusAck{Status: StatusAlreadyExists}
		}
		log.Errorf("failed to create user %s: %v", req.Username, err)
		return statusAck{Status: StatusError}
	}
	return statusAck{Status: StatusOK}
}

// handleGetUsers returns accounts matching a username substring. Requires
// a valid identity but no project-level access.
func (s *Server) handleGetUsers(c *client, raw json.RawMessage) any {
	var req getUsersRequest
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

	users, err := s.auth.Users(req.Query)
	if err != nil {
		log.Errorf("failed to list users: %v", err)
		return statusAck{Status: StatusError}
	}
	return usersAck{Status: StatusOK, Users: users}
}

// handleAddUserToProject grants a user CONTRIBUTOR access. Only a project
// ADMIN may do this; adding an existing member is a no-op.
func (s *Server) handleAddUserToProject(c *client, raw json.RawMessage) any {
	var req addUserToProjectRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateProject(req.Credentials, req.ProjectID, access.CapabilityAdmin); status != "" {
		return statusAck{Status: status}
	}

	members, err := s.projects.UsersForProject(req.ProjectID)
	if err != nil {
		log.Errorf("failed to list members of project %d: %v", req.ProjectID, err)
		return statusAck{Status: StatusError}
	}
	for _, m := range members {
		if m.Username == req.Username {
			return statusAck{Status: StatusOK}
		}
	}

	if err := s.auth.SetAccess(req.Username, req.ProjectID, access.LevelContributor); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return statusAck{Status: StatusDoesNotExist}
		}
		log.Errorf("failed to grant access to %s: %v", req.Username, err)
		return statusAck{Status: StatusError}
	}
	return statusAck{Status: StatusOK}
}
