package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"opsvoice/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSession upgrades the connection and runs one session
// orchestrator for its lifetime. Sessions are transient; disconnect
// destroys all turn state.
func (s *Server) handleSession(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New()
	log := s.log.With("session_id", sessionID.String())

	// gorilla allows one concurrent writer; the orchestrator loop and
	// the error path below share the connection.
	var writeMu sync.Mutex
	emit := func(ev session.Event) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug("websocket write failed", "error", err)
		}
	}

	orch := session.New(sessionID, s.cfg.Retriever, s.cfg.Responder, s.cfg.Session, s.cfg.Log, emit)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go orch.Run(ctx)

	log.Info("session connected")
	for {
		var ev session.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", "error", err)
			}
			break
		}
		orch.Dispatch(ev)
	}
	log.Info("session disconnected")
}
