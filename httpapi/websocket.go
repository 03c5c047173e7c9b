package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/conch/internal/consoles"
	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/sessionprefs"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// Client message types.
const (
	MsgInsert    = "insert"
	MsgSetInput  = "set_input"
	MsgBackspace = "backspace"
	MsgDelete    = "delete"
	MsgMove      = "move"
	MsgCaret     = "caret"
	MsgHome      = "home"
	MsgEnd       = "end"
	MsgHistory   = "history"
	MsgSubmit    = "submit"
	MsgStop      = "stop"
	MsgClear     = "clear"
	MsgSnapshot  = "snapshot"
)

// Server message types.
const (
	MsgEvent = "event"
	MsgError = "error"
)

// ClientMessage is a request from the browser. Text carries inserted or
// replacement input, Line an optional line to submit, Delta a caret or
// history direction and Offset an absolute caret position.
type ClientMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Line   string `json:"line,omitempty"`
	Delta  int    `json:"delta,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ServerMessage is sent to the browser.
type ServerMessage struct {
	Type     string                  `json:"type"`
	Snapshot *schema.ConsoleSnapshot `json:"snapshot,omitempty"`
	Event    *schema.ConsoleEvent    `json:"event,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) send(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	log := pslog.Ctx(r.Context())
	if s.consoles == nil {
		http.Error(w, "consoles unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()

	profile := profileFromRequest(r)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopBase := context.AfterFunc(s.baseCtx, cancel)
	defer stopBase()

	ctx = logx.ContextWithFrontendLogger(ctx, log, "websocket")
	ctx = sessionprefs.WithContext(ctx, sessionprefs.New(profile, "websocket"))
	session, err := s.consoles.Open(ctx)
	if err != nil {
		log.Warn("websocket console open failed", "err", err)
		_ = ws.send(ServerMessage{Type: MsgError, Error: err.Error()})
		return
	}
	defer session.Close()
	log = log.With("console", session.Console.ID())
	log.Info("websocket console opened")

	snap := session.Console.Snapshot()
	if err := ws.send(ServerMessage{Type: MsgSnapshot, Snapshot: &snap}); err != nil {
		log.Debug("websocket write failed", "err", err)
		return
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readLoop(session.Context(), log, ws, session)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	events := session.Events
	for {
		select {
		case <-ctx.Done():
			log.Info("websocket console closed", "reason", "context done")
			return
		case <-readDone:
			log.Info("websocket console closed")
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				log.Debug("websocket ping failed", "err", err)
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := ws.send(ServerMessage{Type: MsgEvent, Event: &ev}); err != nil {
				log.Debug("websocket write failed", "err", err)
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, log pslog.Logger, ws *wsConn, session *consoles.Session) {
	conn := ws.conn
	conn.SetReadLimit(s.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	var submitting atomic.Bool
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var netErr net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			case errors.As(err, &netErr) && netErr.Timeout():
				log.Info("websocket read timeout")
			default:
				log.Debug("websocket read failed", "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		switch {
		case msg.Type == MsgSubmit && submitting.CompareAndSwap(false, true):
			// Submits run off the read loop so a stop can still arrive.
			go func(msg ClientMessage) {
				defer submitting.Store(false)
				if err := s.apply(ctx, ws, session.Console, msg); err != nil {
					_ = reject(log, ws, msg, err)
				}
			}(msg)
			continue
		case submitting.Load() && msg.Type != MsgStop && msg.Type != MsgSnapshot:
			if reject(log, ws, msg, schema.ErrConsoleBusy) != nil {
				return
			}
			continue
		}
		if err := s.apply(ctx, ws, session.Console, msg); err != nil {
			if reject(log, ws, msg, err) != nil {
				return
			}
		}
	}
}

func reject(log pslog.Logger, ws *wsConn, msg ClientMessage, err error) error {
	log.Debug("websocket message rejected", "type", msg.Type, "err", err)
	return ws.send(ServerMessage{Type: MsgError, Error: err.Error()})
}

// Console is the console surface driven by websocket clients.
type Console interface {
	InsertText(text string) error
	SetInput(text string) error
	Backspace() error
	Delete() error
	MoveCaret(delta int)
	SetCaret(offset int) error
	MoveCaretHome()
	MoveCaretEnd()
	RecallHistory(direction int) error
	Submit(ctx context.Context) error
	SubmitLine(ctx context.Context, line string) error
	Stop() bool
	ClearScreen()
	Snapshot() schema.ConsoleSnapshot
}

// ErrUnknownMessage reports a client message type the server does not know.
var ErrUnknownMessage = errors.New("unknown message type")

func (s *Server) apply(ctx context.Context, ws *wsConn, c Console, msg ClientMessage) error {
	switch msg.Type {
	case MsgInsert:
		return c.InsertText(msg.Text)
	case MsgSetInput:
		return c.SetInput(msg.Text)
	case MsgBackspace:
		return c.Backspace()
	case MsgDelete:
		return c.Delete()
	case MsgMove:
		c.MoveCaret(msg.Delta)
	case MsgCaret:
		return c.SetCaret(msg.Offset)
	case MsgHome:
		c.MoveCaretHome()
	case MsgEnd:
		c.MoveCaretEnd()
	case MsgHistory:
		direction := -1
		if msg.Delta > 0 {
			direction = 1
		}
		return c.RecallHistory(direction)
	case MsgSubmit:
		if msg.Line != "" {
			return c.SubmitLine(ctx, msg.Line)
		}
		return c.Submit(ctx)
	case MsgStop:
		c.Stop()
	case MsgClear:
		c.ClearScreen()
	case MsgSnapshot:
		snap := c.Snapshot()
		return ws.send(ServerMessage{Type: MsgSnapshot, Snapshot: &snap})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}
