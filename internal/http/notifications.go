package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const socketReadLimit = 4096

// NotificationSocket upgrades the caller to a websocket and registers it on
// the hub under their user id until the client goes away.
func (s *Server) NotificationSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := CurrentIdentity(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: s.allowedOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	s.Hub.Add(id.ID, conn)
	defer func() {
		s.Hub.Remove(id.ID, conn)
		_ = conn.Close()
	}()

	conn.SetReadLimit(socketReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// allowedOrigin accepts same-host requests and the configured CORS origins.
func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.Config.CorsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
