package apihttp

import (
	"net/http"
	"sync"
	"time"

	"explorer/internal/dispatch"
	"explorer/internal/logger"
	"explorer/internal/pipeline"
	"explorer/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one message pushed to a streaming client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type outcomePayload struct {
	Index   int                `json:"index"`
	Outcome types.ModelOutcome `json:"outcome"`
}

type errorPayload struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// streamConn serializes writes; observers fire from several goroutines.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *streamConn) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return s.conn.WriteJSON(ev)
}

func (r *Router) handleExploreStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)
	sc := &streamConn{conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		logger.Debugf("websocket read failed: %v", err)
		return
	}
	req, err := decodeExplore(raw)
	if err != nil {
		_ = sc.send(Event{Type: "error", Payload: errorPayload{Error: err.Error(), Status: http.StatusBadRequest}})
		closeNormal(sc)
		return
	}

	obs := dispatch.ObserverFunc(func(i int, o types.ModelOutcome) {
		if err := sc.send(Event{Type: "outcome", Payload: outcomePayload{Index: i, Outcome: o}}); err != nil {
			logger.Debugf("websocket push outcome %d failed: %v", i, err)
		}
	})
	res, err := r.Explorer.ProcessObserved(c.Request.Context(), req.InputRecord, req.Context, obs)
	if err != nil {
		_ = sc.send(Event{Type: "error", Payload: errorPayload{Error: err.Error(), Status: pipeline.StatusOf(err)}})
		closeNormal(sc)
		return
	}
	r.persist(c.Request.Context(), res)
	if err := sc.send(Event{Type: "result", Payload: res}); err != nil {
		logger.Debugf("websocket push result failed: %v", err)
		return
	}
	closeNormal(sc)
}

func closeNormal(sc *streamConn) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = sc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
