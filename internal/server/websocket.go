package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/ai/debug"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

const (
	CmdChange     = "change"
	CmdSelect     = "select"
	CmdPause      = "pause"
	CmdStep       = "step"
	CmdReset      = "reset"
	CmdAddNode    = "add_node"
	CmdUpdateNode = "update_node"
	CmdDeleteNode = "delete_node"

	MsgEditResult = "edit_result"
	MsgError      = "error"
)

// DebugControl is the part of the debug server driven by remote clients.
type DebugControl interface {
	SetDebug(zone string) error
	Select(id ai.CharacterID)
	Pause(pause bool)
	Step(millis int64)
	Reset()
	OnConnect()
	UpdateNode(characterID ai.CharacterID, nodeID ai.NodeID, name, typ, condition string) <-chan error
	AddNode(characterID ai.CharacterID, parentID ai.NodeID, name, typ, condition string) <-chan error
	DeleteNode(characterID ai.CharacterID, nodeID ai.NodeID) <-chan error
}

// Envelope frames every message on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command is a request from a debug client. Only the fields of its type are used.
type Command struct {
	Type        string `json:"type"`
	Zone        string `json:"zone,omitempty"`
	CharacterID int64  `json:"character_id,omitempty"`
	NodeID      int32  `json:"node_id,omitempty"`
	ParentID    int32  `json:"parent_id,omitempty"`
	Name        string `json:"name,omitempty"`
	NodeType    string `json:"node_type,omitempty"`
	Condition   string `json:"condition,omitempty"`
	Paused      bool   `json:"paused,omitempty"`
	Millis      int64  `json:"millis,omitempty"`
}

type EditResult struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type client struct {
	info   ClientInfo
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	logger log.Log
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type WebSocketOption func(*DebugWebSocket)

func WithAuthenticator(a Authenticator) WebSocketOption {
	return func(s *DebugWebSocket) { s.auth = a }
}

func WithWebSocketLogger(l log.Log) WebSocketOption {
	return func(s *DebugWebSocket) { s.logger = l }
}

// WithEditTimeout bounds how long a client waits for an edit to be applied
// by the tick loop.
func WithEditTimeout(d time.Duration) WebSocketOption {
	return func(s *DebugWebSocket) { s.editTimeout = d }
}

// DebugWebSocket ships debug messages to websocket clients and forwards
// their commands to the debug server. It implements debug.Broadcaster.
type DebugWebSocket struct {
	control     DebugControl
	auth        Authenticator
	logger      log.Log
	editTimeout time.Duration
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

var (
	_ debug.Broadcaster = (*DebugWebSocket)(nil)
	_ DebugControl      = (*debug.Server)(nil)
)

func NewDebugWebSocket(control DebugControl, opts ...WebSocketOption) *DebugWebSocket {
	s := &DebugWebSocket{
		control:     control,
		editTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = TokenAuth{}
	}
	if s.logger == nil {
		s.logger = log.Provide()
	}
	return s
}

// Clients returns the number of connected clients.
func (s *DebugWebSocket) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends msg to every client. Clients that cannot keep up are dropped.
func (s *DebugWebSocket) Broadcast(msg debug.Message) error {
	frame, err := encode(msg.MessageType(), msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			c.logger.Warn("debug client too slow, dropping")
			delete(s.clients, c)
			c.close()
		}
	}
	return nil
}

func encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}

func (s *DebugWebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := ClientInfo{
		ID:            uuid.NewString(),
		RemoteAddress: r.RemoteAddr,
		Metadata:      map[string]any{"token": r.URL.Query().Get("token")},
	}
	ctx := log.ContextWithFields(r.Context(),
		log.String("client_id", info.ID),
		log.String("remote", info.RemoteAddress),
	)
	logger := s.logger.WithContext(ctx)
	if err := s.auth.OnConnect(ctx, info); err != nil {
		logger.Warn("debug client rejected", log.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{info: info, conn: conn, send: make(chan []byte, 64), logger: logger}
	// Registered under the lock so the greeting queued by OnConnect cannot be
	// broadcast before the client is listed.
	s.mu.Lock()
	s.control.OnConnect()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	logger.Info("debug client connected")

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *DebugWebSocket) writeLoop(c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.logger.Debug("debug client write failed", log.Error(err))
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *DebugWebSocket) readLoop(c *client) {
	defer s.remove(c)
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				s.reply(c, MsgError, EditResult{Error: ErrInvalidMessage.Error()})
				continue
			}
			c.logger.Info("debug client disconnected")
			return
		}
		if err := s.dispatch(c, cmd); err != nil {
			s.reply(c, MsgError, EditResult{Command: cmd.Type, Error: err.Error()})
		}
	}
}

func (s *DebugWebSocket) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
}

// reply sends a frame to one client only.
func (s *DebugWebSocket) reply(c *client, typ string, data any) {
	frame, err := encode(typ, data)
	if err != nil {
		c.logger.Error("debug reply encoding failed", log.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (s *DebugWebSocket) dispatch(c *client, cmd Command) error {
	id := ai.CharacterID(cmd.CharacterID)
	switch cmd.Type {
	case CmdChange:
		return s.control.SetDebug(cmd.Zone)
	case CmdSelect:
		s.control.Select(id)
	case CmdPause:
		s.control.Pause(cmd.Paused)
	case CmdStep:
		s.control.Step(max(cmd.Millis, 1))
	case CmdReset:
		s.control.Reset()
	case CmdAddNode:
		go s.awaitEdit(c, cmd.Type, s.control.AddNode(id, ai.NodeID(cmd.ParentID), cmd.Name, cmd.NodeType, cmd.Condition))
	case CmdUpdateNode:
		go s.awaitEdit(c, cmd.Type, s.control.UpdateNode(id, ai.NodeID(cmd.NodeID), cmd.Name, cmd.NodeType, cmd.Condition))
	case CmdDeleteNode:
		go s.awaitEdit(c, cmd.Type, s.control.DeleteNode(id, ai.NodeID(cmd.NodeID)))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

func (s *DebugWebSocket) awaitEdit(c *client, command string, result <-chan error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.editTimeout)
	defer cancel()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ErrEditTimeout
	}
	res := EditResult{Command: command, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	s.reply(c, MsgEditResult, res)
}
