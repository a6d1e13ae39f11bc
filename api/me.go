package api

import (
	"fmt"
	"net/http"
	"strconv"

	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/authorization"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/nasermirzaei89/reelthread/profiles"
)

const inboxDomain = "github.com/nasermirzaei89/reelthread/notify"

type registerBody struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Email     string `json:"email"`
}

type profileResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	Email        string `json:"email,omitempty"`
	HasPushToken bool   `json:"hasPushToken"`
}

type pushTokenBody struct {
	Token string `json:"token"`
}

type notificationListResponse struct {
	Notifications []*notify.Notification `json:"notifications"`
}

func (h *Handler) HandleRegister() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body registerBody

		err := decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		profile, err := h.profilesSvc.Register(r.Context(), profiles.RegisterRequest{
			ID:        authcontext.GetSubject(r.Context()),
			Username:  body.Username,
			AvatarURL: body.AvatarURL,
			Email:     body.Email,
		})
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to register profile: %w", err))

			return
		}

		writeJSON(w, r, http.StatusOK, profileResponse{
			ID:           profile.ID,
			Username:     profile.Username,
			AvatarURL:    profile.AvatarURL,
			Email:        profile.Email,
			HasPushToken: profile.HasPushToken(),
		})
	})
}

func (h *Handler) HandleUpdatePushToken() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body pushTokenBody

		err := decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		err = h.profilesSvc.UpdatePushToken(r.Context(), authcontext.GetSubject(r.Context()), body.Token)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to update push token: %w", err))

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleListNotifications() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authcontext.IsAnonymous(r.Context()) {
			writeError(w, r, anonymousInboxError("list"))

			return
		}

		limit := notify.DefaultListLimit

		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, r, &BadRequestError{Reason: fmt.Sprintf("invalid limit %q", v)})

				return
			}

			limit = n
		}

		res := notificationListResponse{Notifications: []*notify.Notification{}}

		if h.inbox != nil {
			notifications, err := h.inbox.List(r.Context(), authcontext.GetSubject(r.Context()), limit)
			if err != nil {
				writeError(w, r, fmt.Errorf("failed to list notifications: %w", err))

				return
			}

			if notifications != nil {
				res.Notifications = notifications
			}
		}

		writeJSON(w, r, http.StatusOK, res)
	})
}

func (h *Handler) HandleMarkNotificationRead() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authcontext.IsAnonymous(r.Context()) {
			writeError(w, r, anonymousInboxError("markRead"))

			return
		}

		userID := authcontext.GetSubject(r.Context())
		id := r.PathValue("notificationId")

		if h.inbox == nil {
			writeError(w, r, &notify.NotificationNotFoundError{UserID: userID, ID: id})

			return
		}

		err := h.inbox.MarkRead(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to mark notification as read: %w", err))

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func anonymousInboxError(action string) *authorization.AccessDeniedError {
	return &authorization.AccessDeniedError{
		Subject: authcontext.Anonymous,
		Domain:  inboxDomain,
		Object:  "inbox",
		Action:  action,
	}
}
