package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/iop-forecast-server/internal/domain"
	"github.com/iop-forecast-server/internal/service"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveReply is the per-message frame sent back over the live risk feed.
type liveReply struct {
	Assessment *domain.RiskAssessment `json:"assessment,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Field      string                 `json:"field,omitempty"`
}

// wsSession serializes writes; the ping loop and the reply path share
// the connection.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (ws *wsSession) writeJSON(v interface{}) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.conn.WriteJSON(v)
}

func (ws *wsSession) ping() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleRiskLive upgrades to a websocket and evaluates each attribute
// snapshot the client sends, replying with an instantaneous assessment.
// Invalid snapshots produce an error frame without closing the socket.
func (s *Server) handleRiskLive(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	correlationID := c.GetString("correlation_id")
	s.log.WithField("correlation_id", correlationID).Info("Live risk feed opened")

	session := &wsSession{conn: conn}

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(session, done)

	for {
		var req service.ForecastRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).WithField("correlation_id", correlationID).
					Debug("Live risk feed read error")
			}
			return
		}

		if err := session.writeJSON(s.evaluateLive(&req)); err != nil {
			s.log.WithError(err).WithField("correlation_id", correlationID).
				Debug("Live risk feed write error")
			return
		}
	}
}

func (s *Server) evaluateLive(req *service.ForecastRequest) liveReply {
	attrs, err := s.parser.Parse(req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return liveReply{Error: verr.Message, Field: verr.Field}
		}
		return liveReply{Error: err.Error()}
	}

	assessment := s.scorer.Compute(attrs)
	return liveReply{Assessment: &assessment}
}

func (s *Server) pingLoop(session *wsSession, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := session.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
