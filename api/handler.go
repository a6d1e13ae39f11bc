package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/nasermirzaei89/reelthread/profiles"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
	"github.com/nasermirzaei89/reelthread/thread"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// SubjectHeader carries the caller's user id, set by the gateway in front of the service.
const SubjectHeader = "X-User-ID"

type ThreadConfig struct {
	IndentCap int
	MaxDepth  int
}

type Handler struct {
	mux          *http.ServeMux
	handler      http.Handler
	discussSvc   discuss.Service
	profilesSvc  *profiles.Service
	reactionsSvc *reactions.Service
	submitter    *replies.Submitter
	inbox        *notify.Inbox
	metrics      http.Handler
	threadConfig ThreadConfig
	markdown     goldmark.Markdown
}

var _ http.Handler = (*Handler)(nil)

// NewHandler wires the JSON API. inbox may be nil when no notification store is configured. A nil metrics handler
// serves the default prometheus registry.
func NewHandler(
	discussSvc discuss.Service,
	profilesSvc *profiles.Service,
	reactionsSvc *reactions.Service,
	submitter *replies.Submitter,
	inbox *notify.Inbox,
	metrics http.Handler,
	threadConfig ThreadConfig,
) *Handler {
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	if threadConfig.MaxDepth <= 0 {
		threadConfig.MaxDepth = thread.DefaultMaxDepth
	}

	h := &Handler{
		mux:          &http.ServeMux{},
		handler:      nil,
		discussSvc:   discussSvc,
		profilesSvc:  profilesSvc,
		reactionsSvc: reactionsSvc,
		submitter:    submitter,
		inbox:        inbox,
		metrics:      metrics,
		threadConfig: threadConfig,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Linkify,
			),
		),
	}

	h.registerRoutes()

	h.handler = h.subjectMiddleware(h.mux)
	h.handler = recoverMiddleware(h.handler)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.Handle("GET /healthz", h.HandleHealth())
	h.mux.Handle("GET /metrics", h.metrics)

	h.mux.Handle("PUT /me", h.HandleRegister())
	h.mux.Handle("PUT /me/push-token", h.HandleUpdatePushToken())
	h.mux.Handle("GET /me/notifications", h.HandleListNotifications())
	h.mux.Handle("POST /me/notifications/{notificationId}/read", h.HandleMarkNotificationRead())

	h.mux.Handle("GET /targets/{targetType}/{targetId}/comments", h.HandleListComments())
	h.mux.Handle("POST /targets/{targetType}/{targetId}/comments", h.HandleCreateComment())
	h.mux.Handle("GET /targets/{targetType}/{targetId}/thread", h.HandleThread())

	h.mux.Handle("GET /comments/{commentId}", h.HandleGetComment())
	h.mux.Handle("DELETE /comments/{commentId}", h.HandleDeleteComment())
	h.mux.Handle("GET /comments/{commentId}/replies", h.HandleListReplies())
	h.mux.Handle("POST /comments/{commentId}/replies", h.HandleCreateReply())
	h.mux.Handle("POST /comments/{commentId}/like", h.HandleToggleLike())
}

func (h *Handler) HandleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *Handler) subjectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := strings.TrimSpace(r.Header.Get(SubjectHeader))

		// system subjects are reserved for groups and services
		if subject != "" && !strings.HasPrefix(subject, "system:") {
			r = r.WithContext(authcontext.WithSubject(r.Context(), subject))
		}

		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if err := recover(); err != nil {
				slog.ErrorContext(
					ctx,
					"recovered from panic",
					"error",
					err,
					"stack",
					string(debug.Stack()),
				)

				writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error occurred"})
			}
		}(r.Context())

		next.ServeHTTP(w, r)
	})
}
