package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"friendchat/internal/service"
)

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// @Summary      Sidebar users
// @Description  Every other user, most recent conversation first
// @Tags         messages
// @Produce      json
// @Success      200  {array}   domain.User
// @Router       /messages/users [get]
func handleSidebarUsers(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := msgSvc.SidebarUsers(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func handleHistory(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := msgSvc.History(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id    path  string              true "Receiver id"
// @Param        input body  sendMessageRequest  true "Text and/or image data URL"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  map[string]string
// @Router       /messages/send/{id} [post]
func handleSendMessage(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := msgSvc.Send(r.Context(), service.SendInput{
			SenderID:   CurrentUser(r).ID,
			ReceiverID: chi.URLParam(r, "id"),
			Text:       req.Text,
			Image:      req.Image,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleClearChat(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := msgSvc.Clear(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "id")); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Chat cleared successfully"})
	}
}
