// Package session tracks which clients have which files open. It owns the
// piece table buffers for all open files and the mapping from connection
// ids to authenticated usernames.
package session

import (
	"sync"

	"tandem/internal/buffer"
)

// Cursor is a client's caret position within a file.
type Cursor struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

type clientState struct {
	cursor *Cursor
}

// fileEntry is the record of one currently open file. The entry mutex
// serializes buffer mutation and client-set changes for that file only, so
// edits to different files proceed independently.
type fileEntry struct {
	mu      sync.Mutex
	buf     *buffer.PieceTable
	clients map[string]*clientState
}

// Registry is the process-wide session state. It is constructed explicitly
// and injected wherever needed; tests build their own instances.
type Registry struct {
	mu    sync.RWMutex
	files map[string]*fileEntry

	idmu      sync.RWMutex
	usernames map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		files:     make(map[string]*fileEntry),
		usernames: make(map[string]string),
	}
}

// entry returns the file entry for path under a read lock.
func (r *Registry) entry(path string) (*fileEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.files[path]
	return e, ok
}

// OpenFile starts tracking path with buf. If the file is already open the
// existing buffer is kept: a second open must not discard in-flight edits.
func (r *Registry) OpenFile(path string, buf *buffer.PieceTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[path]; ok {
		return
	}
	r.files[path] = &fileEntry{
		buf:     buf,
		clients: make(map[string]*clientState),
	}
}

// CloseFile unconditionally stops tracking path.
func (r *Registry) CloseFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, path)
}

// IsOpen reports whether path is currently tracked.
func (r *Registry) IsOpen(path string) bool {
	_, ok := r.entry(path)
	return ok
}

// AddClient attaches clientID to an open file with no cursor. No-op when
// the file is not open.
func (r *Registry) AddClient(path, clientID string) {
	e, ok := r.entry(path)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.clients[clientID]; !ok {
		e.clients[clientID] = &clientState{}
	}
}

// RemoveClient detaches clientID from path. When the last client leaves,
// the entry is deleted and its buffer discarded; unwritten edits are gone,
// persisting requires an explicit write beforehand.
func (r *Registry) RemoveClient(path, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.files[path]
	if !ok {
		return
	}
	e.mu.Lock()
	delete(e.clients, clientID)
	empty := len(e.clients) == 0
	e.mu.Unlock()
	if empty {
		delete(r.files, path)
	}
}

// FileHasClient reports whether clientID has path open.
func (r *Registry) FileHasClient(path, clientID string) bool {
	e, ok := r.entry(path)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok = e.clients[clientID]
	return ok
}

// FilesForClient returns every path clientID has open. Used on disconnect
// to clean up the departing client's attachments.
func (r *Registry) FilesForClient(clientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var paths []string
	for path, e := range r.files {
		e.mu.Lock()
		_, ok := e.clients[clientID]
		e.mu.Unlock()
		if ok {
			paths = append(paths, path)
		}
	}
	return paths
}

// ClientsForFile returns the ids attached to path: the subscriber list for
// targeted broadcast.
func (r *Registry) ClientsForFile(path string) []string {
	e, ok := r.entry(path)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.clients))
	for id := range e.clients {
		ids = append(ids, id)
	}
	return ids
}

// SetCursor updates a client's cursor. Silently a no-op when the file or
// client entry is gone; racing close and cursor-move is expected.
func (r *Registry) SetCursor(path, clientID string, cursor Cursor) {
	e, ok := r.entry(path)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.clients[clientID]; ok {
		state.cursor = &cursor
	}
}

// InsertIntoFile inserts text at offset in path's buffer. No-op returning
// nil when the file is not open; callers verify FileHasClient first.
func (r *Registry) InsertIntoFile(path, text string, offset int) error {
	e, ok := r.entry(path)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Insert(text, offset)
}

// DeleteFromFile removes length bytes at offset from path's buffer. No-op
// returning nil when the file is not open.
func (r *Registry) DeleteFromFile(path string, offset, length int) error {
	e, ok := r.entry(path)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Delete(offset, length)
}

// FileContents returns the current text of path's buffer.
func (r *Registry) FileContents(path string) (string, bool) {
	e, ok := r.entry(path)
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Sequence(), true
}

// SetFileContent replaces path's buffer wholesale. No-op when the file is
// not open.
func (r *Registry) SetFileContent(path, content string) {
	e, ok := r.entry(path)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf = buffer.New(content)
}

// OpenFiles returns the current contents of every file clientID has open,
// keyed by path. Used by the periodic sync push.
func (r *Registry) OpenFiles(clientID string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	files := make(map[string]string)
	for path, e := range r.files {
		e.mu.Lock()
		if _, ok := e.clients[clientID]; ok {
			files[path] = e.buf.Sequence()
		}
		e.mu.Unlock()
	}
	return files
}

// MapIDToUsername records the authenticated username for a connection.
func (r *Registry) MapIDToUsername(clientID, username string) {
	r.idmu.Lock()
	defer r.idmu.Unlock()
	r.usernames[clientID] = username
}

// Username returns the authenticated username for a connection.
func (r *Registry) Username(clientID string) (string, bool) {
	r.idmu.RLock()
	defer r.idmu.RUnlock()
	username, ok := r.usernames[clientID]
	return username, ok
}

// RemoveIdentity forgets a connection's username on disconnect.
func (r *Registry) RemoveIdentity(clientID string) {
	r.idmu.Lock()
	defer r.idmu.Unlock()
	delete(r.usernames, clientID)
}
