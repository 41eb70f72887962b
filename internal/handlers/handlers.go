package handlers

import (
	"encoding/json"
	"net/http"

	"medreminder-go/internal/notify"
	"medreminder-go/internal/store"
)

type Handler struct {
	Users         store.UserStore
	Doses         store.DoseStore
	Notifications store.NotificationStore
	Settings      store.SettingsStore
	Push          *notify.WebPush
	Scheduler     *notify.Scheduler
}

func NewHandler(users store.UserStore, doses store.DoseStore, notifications store.NotificationStore, settings store.SettingsStore, push *notify.WebPush, scheduler *notify.Scheduler) *Handler {
	return &Handler{
		Users:         users,
		Doses:         doses,
		Notifications: notifications,
		Settings:      settings,
		Push:          push,
		Scheduler:     scheduler,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// storeError maps store failures onto responses: not-found stays
// indistinguishable from not-owned.
func storeError(w http.ResponseWriter, err error) {
	if err == store.ErrNotFound {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	http.Error(w, "Internal error", http.StatusInternalServerError)
}
