package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"tandem/internal/session"
)

// Message is the wire envelope for every request, acknowledgment, and
// broadcast. Requests carry a client-chosen ID that the matching ack
// echoes back; broadcasts carry the originating event name and no ID.
type Message struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Acknowledgment statuses.
const (
	StatusOK            = "OK"
	StatusError         = "SERVER_ERROR"
	StatusAccessDenied  = "ACCESS_DENIED"
	StatusAlreadyExists = "ENTITY_ALREADY_EXISTS"
	StatusDoesNotExist  = "ENTITY_DOES_NOT_EXIST"
)

var errMalformedPayload = errors.New("malformed payload")

func missingField(name string) error {
	return fmt.Errorf("%w: missing %s", errMalformedPayload, name)
}

// validator is implemented by every request payload; shapes are checked
// before a handler runs so a half-validated request never reaches one.
type validator interface {
	validate() error
}

// decodePayload unmarshals and validates a request payload.
func decodePayload(raw json.RawMessage, req validator) error {
	if len(raw) == 0 {
		return missingField("payload")
	}
	if err := json.Unmarshal(raw, req); err != nil {
		return fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return req.validate()
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentials) validate() error {
	if c.Username == "" {
		return missingField("credentials.username")
	}
	if c.Password == "" {
		return missingField("credentials.password")
	}
	return nil
}

type authorizeRequest struct {
	Credentials credentials `json:"credentials"`
}

func (r *authorizeRequest) validate() error { return r.Credentials.validate() }

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *createUserRequest) validate() error {
	if r.Username == "" {
		return missingField("username")
	}
	if r.Password == "" {
		return missingField("password")
	}
	return nil
}

type getUsersRequest struct {
	Credentials credentials `json:"credentials"`
	Query       string      `json:"query"`
}

func (r *getUsersRequest) validate() error { return r.Credentials.validate() }

type addUserToProjectRequest struct {
	Credentials credentials `json:"credentials"`
	Username    string      `json:"username"`
	ProjectID   int64       `json:"projectId"`
}

func (r *addUserToProjectRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.Username == "" {
		return missingField("username")
	}
	if r.ProjectID == 0 {
		return missingField("projectId")
	}
	return nil
}

type createProjectRequest struct {
	Credentials   credentials `json:"credentials"`
	ProjectName   string      `json:"projectName"`
	RootDirectory string      `json:"rootDirectory"`
}

func (r *createProjectRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.ProjectName == "" {
		return missingField("projectName")
	}
	if r.RootDirectory == "" {
		return missingField("rootDirectory")
	}
	return nil
}

type openProjectRequest struct {
	Credentials credentials `json:"credentials"`
	ProjectID   int64       `json:"projectId"`
}

func (r *openProjectRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.ProjectID == 0 {
		return missingField("projectId")
	}
	return nil
}

// fileRequest is shared by open, close, remove, write, and sync: the
// operations addressed by file path alone.
type fileRequest struct {
	Credentials credentials `json:"credentials"`
	File        string      `json:"file"`
}

func (r *fileRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	return nil
}

type createRequest struct {
	Credentials credentials `json:"credentials"`
	ProjectID   int64       `json:"projectId"`
	// File is a path relative to the project root.
	File string `json:"file"`
}

func (r *createRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.ProjectID == 0 {
		return missingField("projectId")
	}
	if r.File == "" {
		return missingField("file")
	}
	return nil
}

type createDirRequest struct {
	Credentials credentials `json:"credentials"`
	ProjectID   int64       `json:"projectId"`
	// Directory is a path relative to the project root.
	Directory string `json:"directory"`
}

func (r *createDirRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.ProjectID == 0 {
		return missingField("projectId")
	}
	if r.Directory == "" {
		return missingField("directory")
	}
	return nil
}

type insertRequest struct {
	Credentials credentials `json:"credentials"`
	File        string      `json:"file"`
	Str         string      `json:"str"`
	Offset      *int        `json:"offset"`
}

func (r *insertRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	if r.Offset == nil {
		return missingField("offset")
	}
	return nil
}

type deleteRequest struct {
	Credentials credentials `json:"credentials"`
	File        string      `json:"file"`
	Offset      *int        `json:"offset"`
	Length      *int        `json:"length"`
}

func (r *deleteRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	if r.Offset == nil {
		return missingField("offset")
	}
	if r.Length == nil {
		return missingField("length")
	}
	return nil
}

type aceInsertRequest struct {
	Credentials credentials    `json:"credentials"`
	File        string         `json:"file"`
	Lines       []string       `json:"lines"`
	Start       session.Cursor `json:"start"`
}

func (r *aceInsertRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	if r.Lines == nil {
		return missingField("lines")
	}
	return nil
}

type aceDeleteRequest struct {
	Credentials credentials    `json:"credentials"`
	File        string         `json:"file"`
	Start       session.Cursor `json:"start"`
	End         session.Cursor `json:"end"`
}

func (r *aceDeleteRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	return nil
}

type moveCursorRequest struct {
	Credentials credentials    `json:"credentials"`
	File        string         `json:"file"`
	Cursor      session.Cursor `json:"cursor"`
}

func (r *moveCursorRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	return nil
}

type setFileContentRequest struct {
	Credentials credentials `json:"credentials"`
	File        string      `json:"file"`
	Content     *string     `json:"content"`
}

func (r *setFileContentRequest) validate() error {
	if err := r.Credentials.validate(); err != nil {
		return err
	}
	if r.File == "" {
		return missingField("file")
	}
	if r.Content == nil {
		return missingField("content")
	}
	return nil
}
