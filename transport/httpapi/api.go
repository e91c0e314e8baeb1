// Package httpapi is the synchronous read path: conversation listing,
// history paging, read receipts and presence probes over JSON.
package httpapi

import (
	"bizlink/auth"
	"bizlink/domain"
	"bizlink/errors"
	"bizlink/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/lo"
)

type API struct {
	log     *slog.Logger
	service services.IMessagingService
}

// NewRouter mounts the websocket handler on /ws and the messaging routes
// under /api/messaging, the latter behind the identity gate.
func NewRouter(log *slog.Logger, gate *auth.Gate, service services.IMessagingService, socket http.Handler, allowedOrigins []string) http.Handler {
	api := &API{log: log, service: service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: lo.Ternary(len(allowedOrigins) == 0, []string{"*"}, allowedOrigins),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if socket != nil {
		r.Handle("/ws", socket)
	}
	r.Route("/api/messaging", func(r chi.Router) {
		r.Use(auth.Middleware(gate, func(w http.ResponseWriter, err error) {
			WriteError(log, w, err)
		}))
		r.Get("/conversations", api.listConversations)
		r.Post("/conversations/{businessId}/start", api.startConversation)
		r.Get("/conversations/{conversationId}/messages", api.listMessages)
		r.Delete("/conversations/{conversationId}", api.deleteConversation)
		r.Post("/mark-read", api.markRead)
		r.Get("/unread-count", api.unreadCount)
		r.Get("/online/{userId}", api.online)
	})
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func (a *API) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		WriteError(a.log, w, errors.ErrMissingToken)
	}
	return identity, ok
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	conversations, err := a.service.ListConversations(r.Context(), caller)
	if err != nil {
		WriteError(a.log, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"conversations": lo.Ternary(conversations == nil, []services.ConversationView{}, conversations),
	})
}

func (a *API) startConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	conversation, err := a.service.StartConversation(r.Context(), caller, chi.URLParam(r, "businessId"))
	if err != nil {
		WriteError(a.log, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversation": conversation})
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := a.service.ListMessages(r.Context(), caller, chi.URLParam(r, "conversationId"), cursor)
	if err != nil {
		WriteError(a.log, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"messages":   lo.Ternary(messages == nil, []domain.Message{}, messages),
		"nextCursor": next,
	})
}

type markReadRequest struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(a.log, w, errors.Wrap(errors.KindValidation, "malformed request body", err))
		return
	}
	if err := auth.Validate(req); err != nil {
		WriteError(a.log, w, err)
		return
	}
	message, err := a.service.MarkRead(r.Context(), caller, req.MessageID, req.ConversationID)
	if err != nil {
		WriteError(a.log, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"messageId":      message.ID,
		"conversationId": message.ConversationID,
		"readAt":         message.ReadAt,
	})
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	count, err := a.service.UnreadCount(r.Context(), caller)
	if err != nil {
		WriteError(a.log, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"unreadCount": count})
}

func (a *API) deleteConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	deleted, err := a.service.DeleteConversation(r.Context(), caller, chi.URLParam(r, "conversationId"))
	if err != nil {
		WriteError(a.log, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deletedMessages": deleted})
}

func (a *API) online(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.caller(w, r); !ok {
		return
	}
	userID := chi.URLParam(r, "userId")
	WriteJSON(w, http.StatusOK, map[string]any{"userId": userID, "isOnline": a.service.IsOnline(userID)})
}
