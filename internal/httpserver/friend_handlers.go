package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"friendchat/internal/service"
)

func handleAllUsers(friendSvc *service.FriendService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := friendSvc.All(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// @Summary      Send a friend request
// @Tags         friends
// @Produce      json
// @Param        id   path  string  true "Target user id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /friends/request/{id} [post]
func handleFriendRequest(friendSvc *service.FriendService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		created, err := friendSvc.Request(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		msg := "Friend request sent"
		if !created {
			msg = "Friend request already sent"
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": msg})
	}
}

// @Summary      Accept a friend request
// @Tags         friends
// @Produce      json
// @Param        id   path  string  true "Requester id"
// @Success      200  {object}  domain.UserSummary
// @Failure      404  {object}  map[string]string
// @Router       /friends/accept/{id} [post]
func handleAcceptFriend(friendSvc *service.FriendService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, err := friendSvc.Accept(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, requester)
	}
}

func handleRejectFriend(friendSvc *service.FriendService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := friendSvc.Reject(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "id")); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Friend request rejected"})
	}
}

func handlePresence(presence PresenceFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if presence == nil {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		ids, err := presence(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, ids)
	}
}
