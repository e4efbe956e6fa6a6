package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"friendchat/internal/service"
)

// maxBodyBytes bounds JSON bodies, which may carry inline base64 images.
const maxBodyBytes = 16 << 20

// PresenceFunc reports the ids of users currently online.
type PresenceFunc func(ctx context.Context) ([]string, error)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Auth     *service.AuthService
	Messages *service.MessageService
	Friends  *service.FriendService
	Presence PresenceFunc
	Socket   http.Handler

	UploadDir    string
	CORSOrigins  []string
	SecureCookie bool
	Log          *zap.Logger
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "friendchat API", "version": "1.0.0"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// The websocket lives outside the timeout middleware; it is long-lived.
	if d.Socket != nil {
		r.Method(http.MethodGet, "/socket", d.Socket)
	}

	cookies := cookieSettings{secure: d.SecureCookie}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Stored images are referenced directly from <img> tags.
		r.Mount("/uploads", UploadRoutes(d.UploadDir))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", handleSignup(d.Auth, cookies, log))
			r.Post("/login", handleLogin(d.Auth, cookies, log))
			r.Post("/logout", handleLogout(cookies))

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(d.Auth, log))
				r.Put("/update-profile", handleUpdateProfile(d.Auth, log))
				r.Get("/check", handleCheck(d.Auth, log))
			})
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Auth, log))

			r.Route("/messages", func(r chi.Router) {
				r.Get("/users", handleSidebarUsers(d.Messages, log))
				r.Get("/{id}", handleHistory(d.Messages, log))
				r.Post("/send/{id}", handleSendMessage(d.Messages, log))
				r.Delete("/clear/{id}", handleClearChat(d.Messages, log))
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/all", handleAllUsers(d.Friends, log))
				r.Post("/request/{id}", handleFriendRequest(d.Friends, log))
				r.Post("/accept/{id}", handleAcceptFriend(d.Friends, log))
				r.Post("/reject/{id}", handleRejectFriend(d.Friends, log))
			})

			r.Get("/presence", handlePresence(d.Presence, log))
		})
	})

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON body"})
		return false
	}
	return true
}
