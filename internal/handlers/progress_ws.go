package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

const (
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// ProgressSocketHandler streams the caller's progress writes from every device.
type ProgressSocketHandler struct {
	gateway  *middleware.Gateway
	hub      *services.ProgressHub
	upgrader websocket.Upgrader
	resp     *response.Responder
	log      *logger.Logger
}

func NewProgressSocketHandler(gateway *middleware.Gateway, hub *services.ProgressHub, allowedOrigins []string, resp *response.Responder, log *logger.Logger) *ProgressSocketHandler {
	return &ProgressSocketHandler{
		gateway: gateway,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origin, allowedOrigins)
			},
		},
		resp: resp,
		log:  log.Component("progress_ws"),
	}
}

// ServeHTTP handles GET /ws/progress. Browsers cannot set headers on websocket requests,
// so the token may also arrive as ?token=.
func (h *ProgressSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		h.resp.Error(w, r, services.ErrUnauthenticated("Authentication required"))
		return
	}
	ac, err := h.gateway.Resolve(r.Context(), token)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	userID := ac.User.ID.Hex()
	sub := h.hub.Register(userID, conn)
	defer h.hub.Unregister(sub)
	h.log.Debug().Str("user_id", userID).Int("connections", h.hub.Connections(userID)).Msg("progress socket opened")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	// Clients only listen; reading keeps the pong handler and close detection running.
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
