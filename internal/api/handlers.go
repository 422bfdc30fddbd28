package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/llyrli/working-mode/internal/models"
	"github.com/llyrli/working-mode/internal/scheduler"
	"github.com/llyrli/working-mode/internal/tracker"
)

type Handlers struct {
	controller *tracker.Controller
	sched      *scheduler.Scheduler
}

func NewHandlers(controller *tracker.Controller, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{controller: controller, sched: sched}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.AckResponse{OK: false, Error: message})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	store := "ok"
	if _, err := h.controller.Settings(); err != nil {
		store = "error: " + err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"store":   store,
		"version": "1.0.0",
	})
}

// rangeParam resolves the range token: explicit query param first, then the
// persisted display preference.
func rangeParam(r *http.Request, settings *models.Settings) string {
	if rng := r.URL.Query().Get("range"); rng != "" {
		return rng
	}
	return settings.PieRange
}

// TodayStats handles GET /api/v1/stats/today
func (h *Handlers) TodayStats(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}

	snap, err := h.controller.Ledger().TodaySnapshot(settings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading today stats failed")
		return
	}

	writeJSON(w, http.StatusOK, models.TodayStatsResponse{
		OK:            true,
		Data:          snap.Stats,
		Category:      snap.Category,
		Umbrella:      snap.Umbrella,
		CurrentDomain: snap.CurrentDomain,
		LastSwitchTs:  snap.LastSwitchTs.UnixMilli(),
	})
}

// StatsRangeFine handles GET /api/v1/stats/range
func (h *Handlers) StatsRangeFine(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}

	rng := rangeParam(r, settings)
	totals, err := h.controller.Ledger().RangeTotals(settings, rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading range totals failed")
		return
	}

	meta := make([]models.CategoryMeta, 0, len(settings.CategoriesConfig))
	for _, c := range settings.CategoriesConfig {
		umb := c.Umbrella
		if umb == "" {
			umb = models.UmbrellaOther
		}
		meta = append(meta, models.CategoryMeta{Name: c.Name, Umbrella: umb})
	}

	writeJSON(w, http.StatusOK, models.StatsRangeFineResponse{
		OK:             true,
		TotalsFine:     totals,
		Range:          rng,
		CategoriesMeta: meta,
	})
}

// TopDomainPairs handles GET /api/v1/stats/pairs
func (h *Handlers) TopDomainPairs(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}

	rng := rangeParam(r, settings)
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	pairs, err := h.controller.Ledger().TopDomainPairs(settings, rng, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading top pairs failed")
		return
	}

	writeJSON(w, http.StatusOK, models.TopDomainPairsResponse{
		OK:             true,
		TopDomainPairs: pairs,
		Range:          rng,
	})
}

// Timeline handles GET /api/v1/timeline
func (h *Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}

	rng := rangeParam(r, settings)
	segs, err := h.controller.Ledger().Timeline(settings, rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading timeline failed")
		return
	}
	if segs == nil {
		segs = []models.Segment{}
	}

	writeJSON(w, http.StatusOK, models.TimelineResponse{OK: true, Segs: segs, Range: rng})
}

// Reclassify handles POST /api/v1/reclassify
func (h *Handlers) Reclassify(w http.ResponseWriter, r *http.Request) {
	category, err := h.controller.Reclassify(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reclassification failed")
		return
	}
	writeJSON(w, http.StatusOK, models.ReclassifyResponse{OK: true, Category: category})
}

// Event handles POST /api/v1/events — the external event feed ingress.
func (h *Handlers) Event(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch ev.Type {
	case models.EventTabActivated, models.EventTabUpdated, models.EventWindowFocus:
	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	category, err := h.controller.HandleEvent(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event handling failed")
		return
	}
	writeJSON(w, http.StatusOK, models.ReclassifyResponse{OK: true, Category: category})
}

// GetPrefs handles GET /api/v1/prefs
func (h *Handlers) GetPrefs(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}

	writeJSON(w, http.StatusOK, models.PrefsResponse{
		OK: true,
		Prefs: models.UIPrefs{
			PieRange:          settings.PieRange,
			ShowCategoryTable: settings.ShowCategoryTable,
			PairsCollapsed:    settings.PairsCollapsed,
			CategoryColors:    settings.CategoryColors,
			TimeZone:          settings.TimeZone,
		},
	})
}

// SetPrefs handles PUT /api/v1/prefs. Only the provided fields change; this
// is an opaque passthrough with no business logic.
func (h *Handlers) SetPrefs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PieRange          *string           `json:"pie_range"`
		ShowCategoryTable *bool             `json:"show_category_table"`
		PairsCollapsed    *bool             `json:"pairs_collapsed"`
		CategoryColors    map[string]string `json:"category_colors"`
		TimeZone          *string           `json:"time_zone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}

	if req.PieRange != nil {
		settings.PieRange = *req.PieRange
	}
	if req.ShowCategoryTable != nil {
		settings.ShowCategoryTable = *req.ShowCategoryTable
	}
	if req.PairsCollapsed != nil {
		settings.PairsCollapsed = *req.PairsCollapsed
	}
	if req.CategoryColors != nil {
		settings.CategoryColors = req.CategoryColors
	}
	if req.TimeZone != nil {
		settings.TimeZone = *req.TimeZone
	}

	if _, err := h.controller.ApplySettings(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "saving settings failed")
		return
	}
	writeJSON(w, http.StatusOK, models.AckResponse{OK: true})
}

// GetRestAlarm handles GET /api/v1/alarm
func (h *Handlers) GetRestAlarm(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}
	writeJSON(w, http.StatusOK, models.RestAlarmResponse{OK: true, Enabled: settings.FocusPolicy.Enabled})
}

// SetRestAlarm handles PUT /api/v1/alarm
func (h *Handlers) SetRestAlarm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}
	settings.FocusPolicy.Enabled = req.Enabled
	if _, err := h.controller.ApplySettings(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "saving settings failed")
		return
	}

	h.rescheduleTick(settings)
	writeJSON(w, http.StatusOK, models.AckResponse{OK: true})
}

// SetManualCategory handles POST /api/v1/category
func (h *Handlers) SetManualCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.controller.SetManualCategory(req.Category); err != nil {
		if errors.Is(err, tracker.ErrInvalidCategory) {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
		writeError(w, http.StatusInternalServerError, "applying category failed")
		return
	}
	writeJSON(w, http.StatusOK, models.AckResponse{OK: true})
}

// SetCategoryColor handles PUT /api/v1/colors/{name}
func (h *Handlers) SetCategoryColor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || name == "" || req.Color == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}
	settings.CategoryColors[name] = req.Color
	if _, err := h.controller.ApplySettings(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "saving settings failed")
		return
	}
	writeJSON(w, http.StatusOK, models.AckResponse{OK: true})
}

// RestModalAction handles POST /api/v1/modal-action
func (h *Handlers) RestModalAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.controller.RestModalAction(req.Action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Disabling the policy stops the periodic tick entirely.
	if req.Action == models.ActionDisable {
		h.sched.StopTick()
	}
	writeJSON(w, http.StatusOK, models.AckResponse{OK: true})
}

// GetSettings handles GET /api/v1/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "settings": settings})
}

// SetSettings handles PUT /api/v1/settings
func (h *Handlers) SetSettings(w http.ResponseWriter, r *http.Request) {
	next := models.DefaultSettings()
	if err := json.NewDecoder(r.Body).Decode(next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tickChanged, err := h.controller.ApplySettings(next)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "saving settings failed")
		return
	}
	if tickChanged {
		h.rescheduleTick(next)
	}
	writeJSON(w, http.StatusOK, models.AckResponse{OK: true})
}

// ClearAllData handles DELETE /api/v1/data
func (h *Handlers) ClearAllData(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.controller.ClearAllData()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, models.ClearDataResponse{OK: true, Cleared: cleared})
}

func (h *Handlers) rescheduleTick(settings *models.Settings) {
	if !settings.Enabled {
		h.sched.StopTick()
		return
	}
	if err := h.sched.Reschedule(settings.IntervalMinutes); err != nil {
		log.Printf("rescheduling tick: %v", err)
	}
}
