package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"medreminder-go/internal/models"
	"medreminder-go/internal/store"
)

// GetVAPIDKeyHandler returns the VAPID public key for push subscription
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"publicKey": h.Push.PublicKey()})
}

// SubscribePushHandler stores a push subscription for the current user.
// Resubscribing replaces the previous subscription; the newest one is
// the only delivery target.
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := GetCurrentUser(r)

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		http.Error(w, "endpoint and keys are required", http.StatusBadRequest)
		return
	}

	sub, err := h.Notifications.SavePushSubscription(r.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		log.Printf("Failed to save push subscription: %v", err)
		http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"subscription": sub,
	})
}

// UnsubscribePushHandler deactivates the user's push subscriptions.
func (h *Handler) UnsubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := GetCurrentUser(r)

	if err := h.Notifications.DeactivatePushSubscriptions(r.Context(), userID); err != nil {
		log.Printf("Failed to deactivate push subscriptions: %v", err)
		http.Error(w, "Failed to unsubscribe", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// TestPushHandler sends a test notification to the user's active
// subscription so they can verify the browser permission flow
func (h *Handler) TestPushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := GetCurrentUser(r)

	sub, err := h.Notifications.ActivePushSubscription(r.Context(), userID)
	if err == store.ErrNotFound {
		http.Error(w, "No active push subscription", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to load push subscription: %v", err)
		http.Error(w, "Failed to load subscription", http.StatusInternalServerError)
		return
	}

	if err := h.Push.Deliver(r.Context(), sub, models.TestPayload()); err != nil {
		log.Printf("Failed to send test notification: %v", err)
		http.Error(w, "Failed to send test notification", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
