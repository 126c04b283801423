package server

import (
	"encoding/json"
	"errors"
	"strings"

	"tandem/internal/access"
	"tandem/internal/buffer"
)

// handleInsert splices text into a file's buffer at a byte offset and
// replays the edit to the file's other subscribers.
func (s *Server) handleInsert(c *client, raw json.RawMessage) any {
	var req insertRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusAccessDenied}
	}
	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	if err := s.registry.InsertIntoFile(req.File, req.Str, *req.Offset); err != nil {
		if errors.Is(err, buffer.ErrOutOfRange) {
			// The client's view has drifted; it should issue a sync.
			log.Warningf("client %s insert out of range in %s", c.id, req.File)
			return statusAck{Status: StatusError}
		}
		log.Errorf("insert into %s failed: %v", req.File, err)
		return statusAck{Status: StatusError}
	}

	s.broadcastToFile(req.File, c.id, "insert", insertNotification{
		File:   req.File,
		Str:    req.Str,
		Offset: *req.Offset,
	})
	return statusAck{Status: StatusOK}
}

// handleDelete removes a byte range from a file's buffer and replays the
// edit to the file's other subscribers.
func (s *Server) handleDelete(c *client, raw json.RawMessage) any {
	var req deleteRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusAccessDenied}
	}
	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	if err := s.registry.DeleteFromFile(req.File, *req.Offset, *req.Length); err != nil {
		if errors.Is(err, buffer.ErrOutOfRange) {
			log.Warningf("client %s delete out of range in %s", c.id, req.File)
			return statusAck{Status: StatusError}
		}
		log.Errorf("delete from %s failed: %v", req.File, err)
		return statusAck{Status: StatusError}
	}

	s.broadcastToFile(req.File, c.id, "delete", deleteNotification{
		File:   req.File,
		Offset: *req.Offset,
		Length: *req.Length,
	})
	return statusAck{Status: StatusOK}
}

// handleAceInsert is the row/column-addressed insert variant used by ace
// editors. The coordinate is translated to a byte offset and the edit is
// broadcast in both addressing forms.
func (s *Server) handleAceInsert(c *client, raw json.RawMessage) any {
	var req aceInsertRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusAccessDenied}
	}
	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	str := strings.Join(req.Lines, "\n")
	offset, ok := s.registry.OffsetAt(req.File, req.Start)
	if !ok {
		return statusAck{Status: StatusDoesNotExist}
	}
	if err := s.registry.InsertIntoFile(req.File, str, offset); err != nil {
		log.Warningf("client %s ace insert failed in %s: %v", c.id, req.File, err)
		return statusAck{Status: StatusError}
	}

	s.broadcastToFile(req.File, c.id, "insert", insertNotification{
		File:   req.File,
		Str:    str,
		Offset: offset,
	})
	s.broadcastToFile(req.File, c.id, "aceInsert", aceInsertNotification{
		File:     req.File,
		Text:     str,
		Position: req.Start,
	})
	return statusAck{Status: StatusOK}
}

// handleAceDelete is the row/column-addressed delete variant.
func (s *Server) handleAceDelete(c *client, raw json.RawMessage) any {
	var req aceDeleteRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusAccessDenied}
	}
	if status := s.gateFile(req.Credentials, req.File, access.CapabilityWrite); status != "" {
		return statusAck{Status: status}
	}

	offset, length, ok := s.registry.SpanBetween(req.File, req.Start, req.End)
	if !ok {
		return statusAck{Status: StatusDoesNotExist}
	}
	if err := s.registry.DeleteFromFile(req.File, offset, length); err != nil {
		log.Warningf("client %s ace delete failed in %s: %v", c.id, req.File, err)
		return statusAck{Status: StatusError}
	}

	s.broadcastToFile(req.File, c.id, "delete", deleteNotification{
		File:   req.File,
		Offset: offset,
		Length: length,
	})
	s.broadcastToFile(req.File, c.id, "aceDelete", aceDeleteNotification{
		File:  req.File,
		Start: req.Start,
		End:   req.End,
	})
	return statusAck{Status: StatusOK}
}

// handleMoveCursor records a client's caret position and shares it with
// the file's other subscribers.
func (s *Server) handleMoveCursor(c *client, raw json.RawMessage) any {
	var req moveCursorRequest
	if err := decodePayload(raw, &req); err != nil {
		log.Warningf("client %s: %v", c.id, err)
		return statusAck{Status: StatusError}
	}

	if status := s.gateFile(req.Credentials, req.File, access.CapabilityRead); status != "" {
		return statusAck{Status: status}
	}
	if !s.registry.FileHasClient(req.File, c.id) {
		return statusAck{Status: StatusDoesNotExist}
	}

	s.registry.SetCursor(req.File, c.id, req.Cursor)

	s.broadcastToFile(req.File, c.id, "moveCursor", moveCursorNotification{
		File:     req.File,
		Username: req.Credentials.Username,
		Cursor:   req.Cursor,
	})
	return statusAck{Status: StatusOK}
}
