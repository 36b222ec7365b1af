package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VicFreyre/handraw-pipe/internal/app"
	"github.com/VicFreyre/handraw-pipe/internal/landmark"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LandmarksHandler is the landmark WebSocket. Every connection receives the
// result of each processed frame. With ingest enabled, clients also send
// landmark frames that are fed to the pipeline.
type LandmarksHandler struct {
	app    *app.App
	ingest bool
	log    *zap.SugaredLogger
}

// NewLandmarksHandler creates a new LandmarksHandler.
func NewLandmarksHandler(a *app.App, ingest bool) *LandmarksHandler {
	return &LandmarksHandler{
		app:    a,
		ingest: ingest,
		log:    logger.Named("ws").Sugar(),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	// Hijacked connections outlive server shutdown unless closed here.
	stop := context.AfterFunc(r.Context(), func() { conn.Close() })
	defer stop()

	id := uuid.NewString()
	log := h.log.With("client", id, "remote", r.RemoteAddr)
	log.Info("client connected")

	clients := h.app.Metrics().Clients
	clients.Inc()
	defer clients.Dec()

	results, cancel := h.app.Session().Subscribe()
	done := make(chan struct{})
	go h.push(conn, results, done, log)

	h.read(conn, log)

	cancel()
	<-done
	log.Info("client disconnected")
}

// read consumes client messages until the connection fails.
func (h *LandmarksHandler) read(conn *websocket.Conn, log *zap.SugaredLogger) {
	conn.SetReadLimit(maxMessageSize)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugw("websocket read error", "error", err)
			}
			return
		}
		if !h.ingest || mt != websocket.TextMessage {
			continue
		}

		hands, _, err := landmark.DecodeFrame(data)
		if err != nil {
			log.Warnw("skipping malformed landmark frame", "error", err)
			continue
		}
		h.app.Submit(hands)
	}
}

// push writes frame results to the client until results is closed. A failed
// write closes the connection, which ends read.
func (h *LandmarksHandler) push(conn *websocket.Conn, results <-chan app.FrameResult, done chan<- struct{}, log *zap.SugaredLogger) {
	defer close(done)

	for res := range results {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(res); err != nil {
			log.Debugw("websocket write error", "error", err)
			conn.Close()
			for range results {
			}
			return
		}
	}
}
