package server

import (
	"tandem/internal/auth"
	"tandem/internal/project"
	"tandem/internal/session"
)

// statusAck is the minimal acknowledgment carrying only a status.
type statusAck struct {
	Status string `json:"status"`
}

type authorizeAck struct {
	Status   string                  `json:"status"`
	Projects []project.ProjectAccess `json:"projects,omitempty"`
}

type usersAck struct {
	Status string      `json:"status"`
	Users  []auth.User `json:"users,omitempty"`
}

type createProjectAck struct {
	Status    string `json:"status"`
	ProjectID int64  `json:"projectId,omitempty"`
}

// projectInfo is the openProject result: metadata plus the recursive
// directory listing.
type projectInfo struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	RootDirectory *project.Node `json:"rootDirectory"`
}

type openProjectAck struct {
	Status      string       `json:"status"`
	ProjectInfo *projectInfo `json:"projectInfo,omitempty"`
}

type openAck struct {
	Status   string `json:"status"`
	Contents string `json:"contents"`
}

type createAck struct {
	Status string `json:"status"`
	// Path is the server-side absolute path clients address edits to.
	Path string `json:"path,omitempty"`
}

type syncAck struct {
	Status   string `json:"status"`
	Contents string `json:"contents"`
}

// Broadcast payloads. Each carries enough for a passive client to replay
// the effect locally.

type openNotification struct {
	File     string `json:"file"`
	Username string `json:"username"`
}

type insertNotification struct {
	File   string `json:"file"`
	Str    string `json:"str"`
	Offset int    `json:"offset"`
}

type deleteNotification struct {
	File   string `json:"file"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

type aceInsertNotification struct {
	File     string         `json:"file"`
	Text     string         `json:"text"`
	Position session.Cursor `json:"position"`
}

type aceDeleteNotification struct {
	File  string         `json:"file"`
	Start session.Cursor `json:"start"`
	End   session.Cursor `json:"end"`
}

type createNotification struct {
	File      string `json:"file"`
	ProjectID int64  `json:"projectId"`
	Path      string `json:"path"`
}

type createDirNotification struct {
	Directory string `json:"directory"`
	ProjectID int64  `json:"projectId"`
}

type moveCursorNotification struct {
	File     string         `json:"file"`
	Username string         `json:"username"`
	Cursor   session.Cursor `json:"cursor"`
}

type setFileContentNotification struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

// syncPush is the periodic server-initiated reconciliation: the
// authoritative contents of every file the receiving client has open.
type syncPush struct {
	Files map[string]string `json:"files"`
}
