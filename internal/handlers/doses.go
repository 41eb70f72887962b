package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medreminder-go/internal/metrics"
	"medreminder-go/internal/models"
	"medreminder-go/internal/schedule"
)

// doseView is a dose enriched with the real-time classification the
// dashboard renders. The classification is computed per request, never
// persisted.
type doseView struct {
	models.Dose
	DisplayStatus schedule.Status `json:"display_status"`
	Near          bool            `json:"near,omitempty"`
}

func enrichDoses(doses []models.Dose, now time.Time) []doseView {
	views := make([]doseView, 0, len(doses))
	for _, d := range doses {
		views = append(views, doseView{
			Dose:          d,
			DisplayStatus: schedule.ClassifyDose(d, now),
			Near:          schedule.Near(d.DoseTime, now),
		})
	}
	return views
}

// UpcomingDosesHandler returns the next doses across all of the user's
// medicines, classified at request time.
func (h *Handler) UpcomingDosesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := GetCurrentUser(r)

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	now := time.Now()
	doses, err := h.Doses.GetUpcomingDoses(r.Context(), userID, now.Add(-schedule.GracePeriod), limit)
	if err != nil {
		log.Printf("Failed to load upcoming doses: %v", err)
		http.Error(w, "Failed to load doses", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"doses": enrichDoses(doses, now)})
}

// DoseHistoryHandler returns past doses, newest first.
func (h *Handler) DoseHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := GetCurrentUser(r)

	doses, err := h.Doses.GetDoseHistory(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to load dose history: %v", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"doses": enrichDoses(doses, time.Now())})
}

// DashboardHandler aggregates today's doses into the stats the
// dashboard polls for: counts per status and an adherence percentage
// over the doses already resolved today.
func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := GetCurrentUser(r)
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	doses, err := h.Doses.GetDosesBetween(r.Context(), userID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		log.Printf("Failed to load dashboard doses: %v", err)
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	views := enrichDoses(doses, now)

	var taken, missed, due, upcoming int
	for _, v := range views {
		switch v.DisplayStatus {
		case schedule.StatusTaken:
			taken++
		case schedule.StatusMissed, schedule.StatusOverdue:
			missed++
		case schedule.StatusDue:
			due++
		case schedule.StatusUpcoming:
			upcoming++
		}
	}

	adherence := 0
	if resolved := taken + missed; resolved > 0 {
		adherence = taken * 100 / resolved
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doses": views,
		"stats": map[string]any{
			"total":     len(views),
			"taken":     taken,
			"missed":    missed,
			"due":       due,
			"upcoming":  upcoming,
			"adherence": adherence,
		},
	})
}

// MarkTakenHandler handles POST /api/doses/{id}/take, the direct UI
// entry point for the taken transition.
func (h *Handler) MarkTakenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/doses/")
	idStr, ok := strings.CutSuffix(path, "/take")
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "Invalid dose id", http.StatusBadRequest)
		return
	}

	h.markTaken(w, r, id, "dashboard")
}

// DoseTakenEventHandler handles POST /api/events/dose-taken, the relay
// used by the service worker when the user taps the notification
// action. Same transition, same guard.
func (h *Handler) DoseTakenEventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev models.DoseTakenEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if ev.DoseID <= 0 {
		http.Error(w, "dose_id is required", http.StatusBadRequest)
		return
	}

	source := ev.Source
	if source == "" {
		source = "notification"
	}

	h.markTaken(w, r, ev.DoseID, source)
}

// markTaken is the single funnel for the taken transition. Every entry
// point lands here; the store's conditional update decides the race,
// and only the winner publishes the fan-out event.
func (h *Handler) markTaken(w http.ResponseWriter, r *http.Request, doseID int, source string) {
	userID, _ := GetCurrentUser(r)
	now := time.Now()

	dose, changed, err := h.Doses.MarkDoseTaken(r.Context(), doseID, userID, now)
	if err != nil {
		storeError(w, err)
		return
	}

	if changed {
		metrics.DosesTaken.Inc()
		ev := models.DoseTakenEvent{DoseID: dose.ID, TakenAt: now, Source: source}
		if err := h.Settings.PublishDoseTaken(r.Context(), userID, ev); err != nil {
			log.Printf("Failed to publish dose-taken event: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"changed": changed,
		"dose":    dose,
	})
}

// DoseEventsHandler streams the caller's own dose-taken events over
// SSE so open dashboard tabs refresh without polling. The subscription
// is scoped to the session user's channel.
func (h *Handler) DoseEventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID, _ := GetCurrentUser(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Settings.SubscribeDoseEvents(r.Context(), userID)
	defer pubsub.Close()

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	ch := pubsub.Channel()
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
