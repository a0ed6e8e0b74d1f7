package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kestrel-sir/core/reporting"
	"kestrel-sir/core/store"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeCSV(w http.ResponseWriter, filename string, table reporting.Table) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_ = table.WriteCSV(w)
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

func parseIntDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// parseTimeParam accepts RFC3339 or a bare date.
func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q", raw)
}

func reportFilter(r *http.Request) (reporting.Filter, error) {
	q := r.URL.Query()
	var f reporting.Filter
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		return f, err
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		return f, err
	}
	f.From = from
	f.To = to
	if raw := strings.TrimSpace(q.Get("facility_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return f, fmt.Errorf("invalid facility_id %q", raw)
		}
		f.FacilityID = id
	}
	if raw := strings.TrimSpace(q.Get("category_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return f, fmt.Errorf("invalid category_id %q", raw)
		}
		f.CategoryID = id
	}
	return f, nil
}

func writeReportError(w http.ResponseWriter, err error) {
	var ce *reporting.ConfigurationError
	if errors.As(err, &ce) {
		http.Error(w, ce.Error(), http.StatusBadRequest)
		return
	}
	var de *reporting.DataIntegrityError
	if errors.As(err, &de) {
		http.Error(w, de.Error(), http.StatusInternalServerError)
		return
	}
	var se *reporting.DataSourceError
	if errors.As(err, &se) {
		http.Error(w, "data source unavailable", http.StatusServiceUnavailable)
		return
	}
	if errors.Is(err, http.ErrHandlerTimeout) {
		http.Error(w, "report timed out", http.StatusGatewayTimeout)
		return
	}
	http.Error(w, "server error", http.StatusInternalServerError)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, store.ErrCategoryCycle),
		errors.Is(err, store.ErrInvalidSeverity),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrNegativeCost),
		errors.Is(err, store.ErrResolvedBeforeSet):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case isForeignKeyViolation(err):
		http.Error(w, "referenced entity does not exist", http.StatusBadRequest)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "FOREIGN KEY")
}
