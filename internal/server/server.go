// Package server speaks the edit protocol over persistent websocket
// connections: it validates request payloads, gates every operation on the
// caller's project access, applies mutations through the session registry,
// and notifies interested clients.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/tliron/commonlog"

	"tandem/internal/access"
	"tandem/internal/auth"
	"tandem/internal/database"
	"tandem/internal/project"
	"tandem/internal/session"
)

var log = commonlog.GetLogger("tandem.server")

// syncInterval is how often the server pushes authoritative file contents
// to every authenticated client.
const syncInterval = 3 * time.Second

type Server struct {
	registry *session.Registry
	auth     *auth.Service
	projects *project.Service
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	done     chan struct{}
	stopOnce sync.Once
}

func New(registry *session.Registry, authSvc *auth.Service, projectSvc *project.Service) *Server {
	return &Server{
		registry: registry,
		auth:     authSvc,
		projects: projectSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
}

// Handler returns the HTTP handler exposing the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(ulid.Make().String(), conn)

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	log.Infof("client %s connected from %s", c.id, r.RemoteAddr)

	go s.writePump(c)
	s.readPump(c)
}

// dropClient runs the implicit disconnect: detach the client from every
// file it had open, notify each file's remaining subscribers, and forget
// the connection.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	username, _ := s.registry.Username(c.id)
	for _, file := range s.registry.FilesForClient(c.id) {
		s.registry.RemoveClient(file, c.id)
		s.broadcastToFile(file, c.id, "close", openNotification{File: file, Username: username})
	}
	s.registry.RemoveIdentity(c.id)
	c.close()

	log.Infof("client %s disconnected", c.id)
}

// Run drives the periodic sync push until Stop is called.
func (s *Server) Run() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.PushSync()
		}
	}
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// PushSync sends each authenticated client the authoritative contents of
// the files it has open, letting clients that missed broadcasts converge.
// Run invokes it on the sync interval.
func (s *Server) PushSync() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if _, ok := s.registry.Username(c.id); !ok {
			continue
		}
		files := s.registry.OpenFiles(c.id)
		if len(files) == 0 {
			continue
		}
		c.sendMessage("sync", "", syncPush{Files: files})
	}
}

// broadcastToFile notifies every client attached to path except exclude.
func (s *Server) broadcastToFile(path, exclude, event string, payload any) {
	for _, id := range s.registry.ClientsForFile(path) {
		if id == exclude {
			continue
		}
		s.mu.RLock()
		c, ok := s.clients[id]
		s.mu.RUnlock()
		if ok {
			c.sendMessage(event, "", payload)
		}
	}
}

// broadcastAll notifies every authenticated client except exclude. Used
// for project-scoped events whose audience cannot be derived from open
// files.
func (s *Server) broadcastAll(exclude, event string, payload any) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if c.id == exclude {
			continue
		}
		if _, ok := s.registry.Username(c.id); !ok {
			continue
		}
		c.sendMessage(event, "", payload)
	}
}

// dispatch routes one request to its handler and sends the acknowledgment.
// It runs on a per-message goroutine.
func (s *Server) dispatch(c *client, msg Message) {
	var ack any
	switch msg.Event {
	case "authorize":
		ack = s.handleAuthorize(c, msg.Payload)
	case "createUser":
		ack = s.handleCreateUser(c, msg.Payload)
	case "getUsers":
		ack = s.handleGetUsers(c, msg.Payload)
	case "addUserToProject":
		ack = s.handleAddUserToProject(c, msg.Payload)
	case "createProject":
		ack = s.handleCreateProject(c, msg.Payload)
	case "openProject":
		ack = s.handleOpenProject(c, msg.Payload)
	case "open":
		ack = s.handleOpen(c, msg.Payload)
	case "close":
		ack = s.handleClose(c, msg.Payload)
	case "create":
		ack = s.handleCreate(c, msg.Payload)
	case "createDir":
		ack = s.handleCreateDir(c, msg.Payload)
	case "remove":
		ack = s.handleRemove(c, msg.Payload)
	case "insert":
		ack = s.handleInsert(c, msg.Payload)
	case "delete":
		ack = s.handleDelete(c, msg.Payload)
	case "aceInsert":
		ack = s.handleAceInsert(c, msg.Payload)
	case "aceDelete":
		ack = s.handleAceDelete(c, msg.Payload)
	case "write":
		ack = s.handleWrite(c, msg.Payload)
	case "sync":
		ack = s.handleSync(c, msg.Payload)
	case "moveCursor":
		ack = s.handleMoveCursor(c, msg.Payload)
	case "setFileContent":
		ack = s.handleSetFileContent(c, msg.Payload)
	default:
		log.Warningf("client %s sent unknown event %q", c.id, msg.Event)
		ack = statusAck{Status: StatusError}
	}
	c.sendMessage("ack", msg.ID, ack)
}

// gateFile resolves the project owning file and authorizes creds for cap.
// The empty string means allowed; anything else is the status to return. A
// file outside every known project is denied rather than reported missing,
// so the protocol cannot be used to enumerate the filesystem.
func (s *Server) gateFile(creds credentials, file string, cap access.Capability) string {
	projectID, ok, err := s.projects.ForFile(file)
	if err != nil {
		log.Errorf("failed to resolve project for %s: %v", file, err)
		return StatusError
	}
	if !ok {
		return StatusAccessDenied
	}
	return s.gateProject(creds, projectID, cap)
}

// gateProject authorizes creds against one project for cap.
func (s *Server) gateProject(creds credentials, projectID int64, cap access.Capability) string {
	authenticated, err := s.auth.AuthenticateProject(creds.Username, creds.Password, projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return StatusAccessDenied
		}
		log.Errorf("authentication failed for %s: %v", creds.Username, err)
		return StatusError
	}
	level, err := s.auth.Access(creds.Username, projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return StatusAccessDenied
		}
		log.Errorf("access lookup failed for %s: %v", creds.Username, err)
		return StatusError
	}
	if !access.Decide(authenticated, level, cap) {
		return StatusAccessDenied
	}
	return ""
}
