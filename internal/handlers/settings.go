package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// SettingsHandler serves the per-user preference flags: push
// notifications, reminder sound and auto-mark-missed.
func (h *Handler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPut, http.MethodPost:
		h.saveSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetCurrentUser(r)

	settings, err := h.Settings.GetSettings(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetCurrentUser(r)

	settings, err := h.Settings.GetSettings(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	// Decode onto the current values so a partial body only changes the
	// keys it names.
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.Settings.SaveSettings(r.Context(), userID, settings); err != nil {
		log.Printf("Failed to save settings: %v", err)
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": settings,
	})
}
