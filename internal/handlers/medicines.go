package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medreminder-go/internal/models"
	"medreminder-go/internal/schedule"
)

type medicineRequest struct {
	Name         string   `json:"name"`
	Formula      string   `json:"formula"`
	Manufacturer string   `json:"manufacturer"`
	Strength     string   `json:"strength"`
	StartDate    string   `json:"start_date"` // "2006-01-02"
	Frequency    string   `json:"frequency"`
	DoseTimes    []string `json:"dose_times"`
	DurationDays int      `json:"duration_days"`
	Status       string   `json:"status"`
}

func (req medicineRequest) toModel(userID int) (models.Medicine, error) {
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local)
	if err != nil {
		return models.Medicine{}, err
	}

	status := req.Status
	if status == "" {
		status = models.MedicineActive
	}

	m := models.Medicine{
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		Formula:      req.Formula,
		Manufacturer: req.Manufacturer,
		Strength:     req.Strength,
		StartDate:    startDate,
		Frequency:    req.Frequency,
		DoseTimes:    req.DoseTimes,
		DurationDays: req.DurationDays,
		Status:       status,
	}

	if err := schedule.ValidateMedicine(m); err != nil {
		return models.Medicine{}, err
	}
	return m, nil
}

// MedicinesHandler serves the medicine collection: list and create.
func (h *Handler) MedicinesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listMedicines(w, r)
	case http.MethodPost:
		h.createMedicine(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetCurrentUser(r)

	medicines, err := h.Doses.GetMedicines(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to list medicines: %v", err)
		http.Error(w, "Failed to list medicines", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"medicines": medicines})
}

// createMedicine validates the schedule, persists the medicine, bulk
// inserts its expanded doses and rolls the notification window so the
// new doses get assignments right away. Validation failures happen
// before any store write.
func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetCurrentUser(r)

	var req medicineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	m, err := req.toModel(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Validated above, so this cannot fail.
	times, _ := schedule.Expand(m.StartDate, m.Frequency, m.DoseTimes, m.DurationDays)

	created, err := h.Doses.CreateMedicine(r.Context(), m)
	if err != nil {
		log.Printf("Failed to create medicine: %v", err)
		http.Error(w, "Failed to create medicine", http.StatusInternalServerError)
		return
	}

	doses, err := h.Doses.CreateDoses(r.Context(), created.ID, times)
	if err != nil {
		log.Printf("Failed to create doses for medicine %d: %v", created.ID, err)
		http.Error(w, "Failed to create dose schedule", http.StatusInternalServerError)
		return
	}

	if _, err := h.Scheduler.ScheduleWindow(r.Context(), time.Now()); err != nil {
		// Scheduling is retried by the periodic roll; creation succeeded.
		log.Printf("Failed to schedule notifications: %v", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"medicine":   created,
		"dose_count": len(doses),
	})
}

// MedicineHandler serves a single medicine: get, update, delete.
func (h *Handler) MedicineHandler(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/medicines/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "Invalid medicine id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getMedicine(w, r, id)
	case http.MethodPut:
		h.updateMedicine(w, r, id)
	case http.MethodDelete:
		h.deleteMedicine(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request, id int) {
	userID, _ := GetCurrentUser(r)

	medicine, err := h.Doses.GetMedicine(r.Context(), id, userID)
	if err != nil {
		storeError(w, err)
		return
	}

	doses, err := h.Doses.GetDosesForMedicine(r.Context(), id, userID)
	if err != nil {
		log.Printf("Failed to load doses for medicine %d: %v", id, err)
		http.Error(w, "Failed to load doses", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"medicine": medicine,
		"doses":    doses,
	})
}

// updateMedicine edits the medicine and regenerates its schedule:
// untaken future doses are swapped for the re-expanded ones in one
// store transaction. Taken doses are history and stay put.
func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request, id int) {
	userID, _ := GetCurrentUser(r)

	var req medicineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	m, err := req.toModel(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.ID = id

	updated, err := h.Doses.UpdateMedicine(r.Context(), m)
	if err != nil {
		storeError(w, err)
		return
	}

	now := time.Now()
	times, _ := schedule.Expand(updated.StartDate, updated.Frequency, updated.DoseTimes, updated.DurationDays)
	var future []time.Time
	for _, t := range times {
		if t.After(now) {
			future = append(future, t)
		}
	}

	doses, err := h.Doses.RegenerateDoses(r.Context(), id, now, future)
	if err != nil {
		log.Printf("Failed to regenerate doses for medicine %d: %v", id, err)
		http.Error(w, "Failed to regenerate doses", http.StatusInternalServerError)
		return
	}

	if _, err := h.Scheduler.ScheduleWindow(r.Context(), now); err != nil {
		log.Printf("Failed to schedule notifications: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"medicine":   updated,
		"dose_count": len(doses),
	})
}

// deleteMedicine removes the medicine; dose rows never outlive it (the
// store cascades).
func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request, id int) {
	userID, _ := GetCurrentUser(r)

	if err := h.Doses.DeleteMedicine(r.Context(), id, userID); err != nil {
		storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
