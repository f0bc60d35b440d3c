// AngelaMos | 2026
// handler.go

package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
	"github.com/carterperez-dev/templates/journal-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts /chats behind authenticator. Extra middlewares run
// after authentication, so they can key on the caller.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	extra ...func(http.Handler) http.Handler,
) {
	r.Route("/chats", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(extra...)

		r.Post("/", h.CreateChat)
		r.Get("/", h.ListChats)
		r.Get("/sessions", h.ListSessions)
		r.Delete("/{chatID}", h.DeleteChat)
		r.Post("/{chatID}/messages", h.AppendMessage)
		r.Get("/{chatID}/messages", h.ListMessages)
		r.Delete("/{chatID}/messages/{messageID}", h.DeleteMessage)
	})
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	chat, err := h.service.CreateChat(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "chat")
		return
	}

	core.Created(w, ToChatResponse(chat))
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	params := pageParams(r)

	chats, total, err := h.service.ListChats(r.Context(), middleware.GetUserID(r.Context()), params)
	if err != nil {
		writeError(w, err, "chat")
		return
	}

	core.Paginated(w, ToChatResponseList(chats), params.Page, params.PageSize, total)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err, "chat")
		return
	}

	core.OK(w, ToSessionResponseList(sessions))
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteChat(r.Context(), middleware.GetUserID(r.Context()), chatID); err != nil {
		writeError(w, err, "chat")
		return
	}

	core.NoContent(w)
}

func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	msg, err := h.service.AppendMessage(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		writeError(w, err, "chat")
		return
	}

	core.Created(w, ToMessageResponse(msg))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	params := pageParams(r)
	msgs, total, err := h.service.ListMessages(
		r.Context(), middleware.GetUserID(r.Context()), chatID, params)
	if err != nil {
		writeError(w, err, "chat")
		return
	}

	core.Paginated(w, ToMessageResponseList(msgs), params.Page, params.PageSize, total)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	messageID := chi.URLParam(r, "messageID")
	if _, err := uuid.Parse(messageID); err != nil {
		core.NotFound(w, "message")
		return
	}

	err := h.service.DeleteMessage(r.Context(), middleware.GetUserID(r.Context()), chatID, messageID)
	if err != nil {
		writeError(w, err, "message")
		return
	}

	core.NoContent(w)
}

func pageParams(r *http.Request) PageParams {
	params := PageParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", defaultPageSize),
	}
	params.Normalize()
	return params
}

// chatIDParam treats a malformed id as an unknown chat.
func chatIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "chatID")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "chat")
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid chat input")
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
