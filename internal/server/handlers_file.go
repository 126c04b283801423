package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"

	"tandem/internal/access"
	"tandem/internal/buffer"
	"tandem/internal/database"
	"tandem/internal/fileio"
	"tandem/internal/project"
)

// handleOpen attaches the caller to a file. The first open loads the file
// from disk into a fresh piece table; later opens return the in-memory
// content so every editor shares one view.
func (s *Server) handleOpen(c *client, raw json.RawMessage) any {
	var req fileRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateFile(req.Credentials, req.File, access.CapabilityRead); status != "" {
		return statusAck{Status: status}
	}

	contents, open := s.registry.FileContents(req.File)
	if !open {
		text, err := fileio.Read(req.File)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return statusAck{Status: StatusDoesNotExist}
			}
			log.Errorf("failed to read %s: %v", req.File, err)
			return statusAck{Status: StatusError}
		}
		contents = text
	}

	// No-op when another client won the race to open the same path, so
	// the shared buffer is never replaced.
	s.registry.OpenFile(req.File, buffer.New(contents))
	s.registry.AddClient(req.File, c.id)

	// A racing open may have installed and already edited the buffer
	// between the lookup above and OpenFile; the registry copy is the
	// authoritative one to acknowledge with.
	if current, ok := s.registry.FileContents(req.File); ok {
		contents = current
	}

	s.broadcastToFile(req.File, c.id, "open", openNotification{
		File:     req.File,
		Username: req.Credentials.Username,
	})
	return openAck{Status: StatusOK, Contents: contents}
}

// handleClose detaches the caller; the last detach evicts the buffer.
func (s *Server) handleClose(c *client, raw json.RawMessage) any {
	var req fileRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusDoesNotExist}
	}

	s.registry.RemoveClient(req.File, c.id)
	s.broadcastToFile(req.File, c.id, "close", openNotification{
		File:     req.File,
		Username: req.Credentials.Username,
	})
	return statusAck{Status: StatusOK}
}

// handleCreate writes a new empty file under the project root, opens an
// empty buffer for it, and attaches the creator.
func (s *Server) handleCreate(c *client, raw json.RawMessage) any {
	var req createRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateProject(req.Credentials, req.ProjectID, access.CapabilityWrite); status != "" {
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

	path := filepath.Join(proj.RootDirectory, req.File)
	if !project.WithinRoot(proj.RootDirectory, path) {
		return statusAck{Status: StatusAccessDenied}
	}
	if s.registry.IsOpen(path) {
		return statusAck{Status: StatusAlreadyExists}
	}
	if err := fileio.Create(path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return statusAck{Status: StatusAlreadyExists}
		}
		log.Errorf("failed to create %s: %v", path, err)
		return statusAck{Status: StatusError}
	}

	s.registry.OpenFile(path, buffer.New(""))
	s.registry.AddClient(path, c.id)

	s.broadcastAll(c.id, "create", createNotification{
		File:      req.File,
		ProjectID: req.ProjectID,
		Path:      path,
	})
	return createAck{Status: StatusOK, Path: path}
}

func (s *Server) handleCreateDir(c *client, raw json.RawMessage) any {
	var req createDirRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateProject(req.Credentials, req.ProjectID, access.CapabilityWrite); status != "" {
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

	path := filepath.Join(proj.RootDirectory, req.Directory)
	if !project.WithinRoot(proj.RootDirectory, path) {
		return statusAck{Status: StatusAccessDenied}
	}
	if err := fileio.CreateDir(path); err != nil {
		log.Errorf("failed to create directory %s: %v", path, err)
		return statusAck{Status: StatusError}
	}

	s.broadcastAll(c.id, "createDir", createDirNotification{
		Directory: req.Directory,
		ProjectID: req.ProjectID,
	})
	return statusAck{Status: StatusOK}
}

// handleRemove deletes a file or directory from disk and evicts any
// tracked buffer for it.
func (s *Server) handleRemove(c *client, raw json.RawMessage) any {
	var req fileRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	if err := fileio.Delete(req.File); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return statusAck{Status: StatusDoesNotExist}
		}
		log.Errorf("failed to remove %s: %v", req.File, err)
		return statusAck{Status: StatusError}
	}

	s.registry.CloseFile(req.File)
	s.broadcastAll(c.id, "remove", openNotification{
		File:     req.File,
		Username: req.Credentials.Username,
	})
	return statusAck{Status: StatusOK}
}

// handleWrite persists the in-memory buffer to disk. The buffer itself is
// untouched; an eviction without write discards edits by design.
func (s *Server) handleWrite(c *client, raw json.RawMessage) any {
	var req fileRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	contents, ok := s.registry.FileContents(req.File)
	if !ok {
		return statusAck{Status: StatusDoesNotExist}
	}
	if err := fileio.Write(req.File, contents); err != nil {
		log.Errorf("failed to write %s: %v", req.File, err)
		return statusAck{Status: StatusError}
	}

	s.broadcastToFile(req.File, c.id, "write", openNotification{
		File:     req.File,
		Username: req.Credentials.Username,
	})
	return statusAck{Status: StatusOK}
}

// handleSync returns the authoritative in-memory content of a file the
// caller has open. Read-only clients may sync; nothing is mutated.
func (s *Server) handleSync(c *client, raw json.RawMessage) any {
	var req fileRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateFile(req.Credentials, req.File, access.CapabilityRead); status != "" {
		return statusAck{Status: status}
	}
	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusAccessDenied}
	}

	contents, ok := s.registry.FileContents(req.File)
	if !ok {
		return statusAck{Status: StatusDoesNotExist}
	}
	return syncAck{Status: StatusOK, Contents: contents}
}

// handleSetFileContent replaces a file's buffer wholesale, tracking the
// file and attaching the caller when necessary.
func (s *Server) handleSetFileContent(c *client, raw json.RawMessage) any {
	var req setFileContentRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	s.registry.OpenFile(req.File, buffer.New(*req.Content))
	s.registry.AddClient(req.File, c.id)
	s.registry.SetFileContent(req.File, *req.Content)

	s.broadcastToFile(req.File, c.id, "setFileContent", setFileContentNotification{
		File:    req.File,
		Content: *req.Content,
	})
	return statusAck{Status: StatusOK}
}
