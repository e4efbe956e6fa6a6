package httpserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"friendchat/internal/security"
	"friendchat/internal/service"
)

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

type cookieSettings struct {
	secure bool
}

func (c cookieSettings) set(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c cookieSettings) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// @Summary      Sign up
// @Description  Create an account and start a session cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body signupRequest true "Signup input"
// @Success      201  {object}  domain.User
// @Failure      400  {object}  map[string]string
// @Router       /auth/signup [post]
func handleSignup(auth *service.AuthService, cookies cookieSettings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := auth.Signup(r.Context(), service.SignupInput{
			FullName: req.FullName,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		cookies.set(w, sess.Token, auth.TokenTTL())
		writeJSON(w, http.StatusCreated, sess.User)
	}
}

// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body loginRequest true "Login input"
// @Success      200  {object}  domain.User
// @Failure      400  {object}  map[string]string
// @Router       /auth/login [post]
func handleLogin(auth *service.AuthService, cookies cookieSettings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := auth.Login(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
		if err != nil {
			writeError(w, log, err)
			return
		}
		cookies.set(w, sess.Token, auth.TokenTTL())
		writeJSON(w, http.StatusOK, sess.User)
	}
}

func handleLogout(cookies cookieSettings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookies.clear(w)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

func handleUpdateProfile(auth *service.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		user, err := auth.UpdateProfilePic(r.Context(), CurrentUser(r).ID, req.ProfilePic)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// handleCheck returns the session's user with friends populated.
func handleCheck(auth *service.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.Profile(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
