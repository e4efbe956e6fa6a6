package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimRight(strings.TrimSpace(strings.ToLower(origin)), "/")
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits browsers from the allowed origins. Requests
// without an Origin header come from non-browser clients and pass.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// MakeHandler returns the handler for the realtime endpoint.
//
// The client names itself with the userId query parameter. The handshake
// is not authenticated: whoever claims an id receives that user's pushes.
// Authentication is enforced only on the HTTP API.
func MakeHandler(reg *Registry, allowedOrigins []string, sendQueue int, log *zap.Logger) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("ws: upgrade failed", zap.Error(err))
			return
		}

		c := newClient(userID, conn, sendQueue, log)
		go c.writePump()

		lease := reg.Register(userID, c)
		log.Info("ws: connected", zap.String("user_id", userID), zap.String("remote", conn.RemoteAddr().String()))

		c.readPump()

		reg.Unregister(lease)
		c.close()
		log.Info("ws: disconnected", zap.String("user_id", userID))
	}
}
