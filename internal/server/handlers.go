package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := s.store.GetRunState(ctx)
	if err != nil {
		writeStoreError(w, "get run state", err)
		return
	}
	cursor, err := s.store.GetCursor(ctx)
	if err != nil {
		writeStoreError(w, "get cursor", err)
		return
	}
	counters, err := s.store.GetCounters(ctx)
	if err != nil {
		writeStoreError(w, "get counters", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"engine":   state,
		"cursor":   cursor,
		"counters": counters,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts := map[string]int{}
	for _, status := range []model.LeadStatus{
		model.LeadStatusScraped, model.LeadStatusAudited, model.LeadStatusEmailed,
	} {
		n, err := s.store.CountLeadsByStatus(ctx, status)
		if err != nil {
			writeStoreError(w, "count leads", err)
			return
		}
		counts[string(status)] = n
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		writeStoreError(w, "get settings", err)
		return
	}
	counters, err := s.store.GetCounters(ctx)
	if err != nil {
		writeStoreError(w, "get counters", err)
		return
	}
	cursor, err := s.store.GetCursor(ctx)
	if err != nil {
		writeStoreError(w, "get cursor", err)
		return
	}

	remaining := settings.DailyEmailLimit - counters.EmailsSentToday
	if remaining < 0 {
		remaining = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leads_by_status":      counts,
		"emails_sent_today":    counters.EmailsSentToday,
		"emails_remaining":     remaining,
		"daily_email_limit":    settings.DailyEmailLimit,
		"last_emailed_lead_id": cursor.LastEmailedLeadID,
	})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.LeadFilter{
		Status: model.LeadStatus(q.Get("status")),
	}
	switch filter.Status {
	case "", model.LeadStatusScraped, model.LeadStatusAudited, model.LeadStatusEmailed:
	default:
		writeMessage(w, http.StatusBadRequest, false, "unknown status %q", filter.Status)
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, false, "invalid limit %q", v)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, false, "invalid offset %q", v)
			return
		}
		filter.Offset = n
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeStoreError(w, "list leads", err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.ListTargets(r.Context())
	if err != nil {
		writeStoreError(w, "list targets", err)
		return
	}
	if targets == nil {
		targets = []model.Target{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var t model.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}
	if t.Industry == "" || t.Country == "" {
		writeMessage(w, http.StatusBadRequest, false, "industry and country are required")
		return
	}

	if _, err := s.store.CreateTarget(r.Context(), &t); err != nil {
		writeStoreError(w, "create target", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid target id")
		return
	}

	if err := s.store.DeleteTarget(r.Context(), id); err != nil {
		writeMessage(w, http.StatusNotFound, false, "target %d not found", id)
		return
	}
	writeMessage(w, http.StatusOK, true, "target %d deleted", id)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(w, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	switch settings.SMTPEncryption {
	case "SSL", "TLS", "NONE":
	default:
		writeMessage(w, http.StatusBadRequest, false,
			"smtp_encryption must be SSL, TLS, or NONE")
		return
	}
	if settings.DailyEmailLimit < 0 || settings.DailySerpLimit < 0 || settings.InventoryThreshold < 0 {
		writeMessage(w, http.StatusBadRequest, false, "limits must not be negative")
		return
	}

	if err := s.store.UpdateSettings(r.Context(), &settings); err != nil {
		writeStoreError(w, "update settings", err)
		return
	}
	writeMessage(w, http.StatusOK, true, "settings updated")
}

func (s *Server) handleTestTelegram(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(w, "get settings", err)
		return
	}
	if settings.TelegramBotToken == "" || settings.TelegramChatID == "" {
		writeMessage(w, http.StatusBadRequest, false, "telegram is not configured")
		return
	}

	prober := s.proberFactory(settings.TelegramBotToken, settings.TelegramChatID)
	username, err := prober.Me(r.Context())
	if err != nil {
		writeMessage(w, http.StatusBadGateway, false, "telegram connection failed")
		return
	}
	writeMessage(w, http.StatusOK, true, "connected as @%s", username)
}

func (s *Server) handleEngineControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	var enabled bool
	switch req.Action {
	case "start":
		enabled = true
	case "stop":
		enabled = false
	default:
		writeMessage(w, http.StatusBadRequest, false, "action must be start or stop")
		return
	}

	if err := s.store.SetEnabled(r.Context(), enabled); err != nil {
		writeStoreError(w, "set enabled", err)
		return
	}
	if enabled {
		writeMessage(w, http.StatusOK, true, "engine enabled")
		return
	}
	writeMessage(w, http.StatusOK, true, "engine disabled")
}

func (s *Server) handleEngineRun(w http.ResponseWriter, r *http.Request) {
	// Detached from the request context: the run outlives the response.
	go s.engine.Run(context.Background())
	writeMessage(w, http.StatusAccepted, true, "engine run started")
}
