package api

import (
	"context"
	"net/http"

	"github.com/milhas/loyalty-engine/loyalty"
)

// =============================================================================
// NOTIFICATION ENDPOINTS
// =============================================================================

// ListNotifications returns the caller's notifications, newest first.
// GET /notificacoes
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	ns, err := h.Store.ListNotifications(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(ns))
	for i, n := range ns {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CountUnread returns how many notifications the caller has not read.
// GET /notificacoes/nao-lidas/count
func (h *Handler) CountUnread(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.Store.CountUnreadNotifications(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, CountDTO{Count: n})
}

// MarkNotificationRead marks one notification as read.
// PATCH /notificacoes/{id}/lida
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.Store.MarkNotificationRead(r.Context(), user.ID, loyalty.NotificationID(id)); err != nil {
		writeDomainError(w, "Failed to mark notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every notification of the caller as read.
// PATCH /notificacoes/todas-lidas
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Store.MarkAllNotificationsRead(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark notifications", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// notify writes a notification. Failures are logged, never surfaced.
func (h *Handler) notify(ctx context.Context, userID loyalty.UserID, title, message string) {
	_, err := h.Store.CreateNotification(ctx, loyalty.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Kind:    loyalty.NotificationNotice,
	})
	if err != nil {
		h.Log.Warn("failed to write notification", "user_id", userID, "error", err)
	}
}
