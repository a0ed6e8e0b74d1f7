package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kestrel-sir/core/store"
	"kestrel-sir/core/utils"
)

type IncidentsHandler struct {
	store  store.IncidentsStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewIncidentsHandler(is store.IncidentsStore, audits store.AuditStore, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{store: is, audits: audits, logger: logger}
}

type incidentPayload struct {
	FacilityID  int64      `json:"facility_id"`
	CategoryID  int64      `json:"category_id"`
	ReportedBy  int64      `json:"reported_by"`
	AssignedTo  *int64     `json:"assigned_to"`
	DetectedAt  time.Time  `json:"detected_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Cost        *string    `json:"cost"`
	Description string     `json:"description"`
}

func (p incidentPayload) toIncident() (*store.Incident, error) {
	inc := &store.Incident{
		FacilityID:  p.FacilityID,
		CategoryID:  p.CategoryID,
		ReportedBy:  p.ReportedBy,
		AssignedTo:  p.AssignedTo,
		DetectedAt:  p.DetectedAt,
		ResolvedAt:  p.ResolvedAt,
		Severity:    p.Severity,
		Status:      p.Status,
		Description: p.Description,
	}
	if p.Cost != nil && strings.TrimSpace(*p.Cost) != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(*p.Cost))
		if err != nil {
			return nil, err
		}
		inc.Cost = &d
	}
	return inc, nil
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := store.IncidentFilter{
		From:     from,
		To:       to,
		Status:   strings.ToLower(strings.TrimSpace(q.Get("status"))),
		Severity: strings.ToLower(strings.TrimSpace(q.Get("severity"))),
		Limit:    parseIntDefault(q.Get("limit"), 0),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}
	if raw := strings.TrimSpace(q.Get("facility_id")); raw != "" {
		if id, err := parseID(raw); err == nil {
			filter.FacilityID = id
		}
	}
	if raw := strings.TrimSpace(q.Get("category_id")); raw != "" {
		if id, err := parseID(raw); err == nil {
			filter.CategoryID = id
		}
	}
	items, err := h.store.ListIncidents(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []store.Incident{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload incidentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	inc, err := payload.toIncident()
	if err != nil {
		http.Error(w, "invalid cost", http.StatusBadRequest)
		return
	}
	if _, err := h.store.CreateIncident(r.Context(), inc); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(urlParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	inc, err := h.store.GetIncident(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if inc == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(urlParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload struct {
		incidentPayload
		Version int `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	inc, err := payload.toIncident()
	if err != nil {
		http.Error(w, "invalid cost", http.StatusBadRequest)
		return
	}
	inc.ID = id
	if err := h.store.UpdateIncident(r.Context(), inc, payload.Version); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(urlParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload struct {
		ResolvedAt *time.Time `json:"resolved_at"`
		Status     string     `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	resolvedAt := time.Now().UTC()
	if payload.ResolvedAt != nil {
		resolvedAt = payload.ResolvedAt.UTC()
	}
	status := payload.Status
	if strings.TrimSpace(status) == "" {
		status = "closed"
	}
	inc, err := h.store.ResolveIncident(r.Context(), id, resolvedAt, status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(urlParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	actions, err := h.store.ListActions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if actions == nil {
		actions = []store.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (h *IncidentsHandler) AddAction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(urlParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload struct {
		PerformedBy int64      `json:"performed_by"`
		PerformedAt *time.Time `json:"performed_at"`
		Note        string     `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	action := &store.Action{
		IncidentID:  id,
		PerformedBy: payload.PerformedBy,
		Note:        payload.Note,
	}
	if payload.PerformedAt != nil {
		action.PerformedAt = payload.PerformedAt.UTC()
	}
	if _, err := h.store.AddAction(r.Context(), action); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func (h *IncidentsHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(urlParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	entries, err := h.audits.ListAudit(r.Context(), store.AuditFilter{
		EntityType: "incident",
		EntityID:   id,
		Limit:      parseIntDefault(r.URL.Query().Get("limit"), 100),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
