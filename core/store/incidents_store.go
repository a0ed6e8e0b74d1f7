package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSeverity   = errors.New("invalid severity")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrNegativeCost      = errors.New("cost must not be negative")
	ErrResolvedBeforeSet = errors.New("resolved_at earlier than detected_at")
)

var validSeverity = map[string]struct{}{
	"low":      {},
	"medium":   {},
	"high":     {},
	"critical": {},
}

var validStatus = map[string]struct{}{
	"open":        {},
	"in_progress": {},
	"resolved":    {},
	"closed":      {},
}

type Incident struct {
	ID          int64            `json:"id"`
	FacilityID  int64            `json:"facility_id"`
	CategoryID  int64            `json:"category_id"`
	ReportedBy  int64            `json:"reported_by"`
	AssignedTo  *int64           `json:"assigned_to,omitempty"`
	DetectedAt  time.Time        `json:"detected_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	Severity    string           `json:"severity"`
	Status      string           `json:"status"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

// Action is an append-only remediation log entry owned by its incident.
type Action struct {
	ID          int64     `json:"id"`
	IncidentID  int64     `json:"incident_id"`
	PerformedBy int64     `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	Note        string    `json:"note"`
}

type IncidentFilter struct {
	From       *time.Time
	To         *time.Time
	FacilityID int64
	CategoryID int64
	Status     string
	Severity   string
	Limit      int
	Offset     int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, inc *Incident) (int64, error)
	UpdateIncident(ctx context.Context, inc *Incident, expectedVersion int) error
	ResolveIncident(ctx context.Context, id int64, resolvedAt time.Time, status string) (*Incident, error)
	GetIncident(ctx context.Context, id int64) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)

	AddAction(ctx context.Context, a *Action) (int64, error)
	ListActions(ctx context.Context, incidentID int64) ([]Action, error)
}

type incidentsStore struct {
	db *DB
}

func NewIncidentsStore(db *DB) IncidentsStore {
	return &incidentsStore{db: db}
}

func validateIncident(inc *Incident) error {
	inc.Severity = strings.ToLower(strings.TrimSpace(inc.Severity))
	if _, ok := validSeverity[inc.Severity]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, inc.Severity)
	}
	if strings.TrimSpace(inc.Status) == "" {
		inc.Status = "open"
	}
	inc.Status = strings.ToLower(strings.TrimSpace(inc.Status))
	if _, ok := validStatus[inc.Status]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, inc.Status)
	}
	if inc.ResolvedAt != nil && inc.ResolvedAt.Before(inc.DetectedAt) {
		return ErrResolvedBeforeSet
	}
	if inc.Cost != nil && inc.Cost.IsNegative() {
		return ErrNegativeCost
	}
	return nil
}

func costToText(c *decimal.Decimal) any {
	if c == nil {
		return nil
	}
	return c.String()
}

// The operations below take a Querier so they run identically on the DB
// and inside a transaction (see audited.go).

func createIncident(ctx context.Context, q Querier, inc *Incident) (int64, error) {
	if err := validateIncident(inc); err != nil {
		return 0, err
	}
	if inc.Version <= 0 {
		inc.Version = 1
	}
	now := time.Now().UTC()
	id, err := insertID(ctx, q, `
		INSERT INTO incidents(facility_id, category_id, reported_by, assigned_to, detected_at, resolved_at, severity, status, cost, description, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inc.FacilityID, inc.CategoryID, inc.ReportedBy, nullableID(inc.AssignedTo),
		inc.DetectedAt.UTC(), nullableTime(inc.ResolvedAt), inc.Severity, inc.Status,
		costToText(inc.Cost), strings.TrimSpace(inc.Description), now, now, inc.Version)
	if err != nil {
		return 0, err
	}
	inc.ID = id
	inc.CreatedAt = now
	inc.UpdatedAt = now
	return id, nil
}

func updateIncident(ctx context.Context, q Querier, inc *Incident, expectedVersion int) error {
	if err := validateIncident(inc); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		UPDATE incidents SET facility_id=?, category_id=?, reported_by=?, assigned_to=?, detected_at=?, resolved_at=?, severity=?, status=?, cost=?, description=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`,
		inc.FacilityID, inc.CategoryID, inc.ReportedBy, nullableID(inc.AssignedTo),
		inc.DetectedAt.UTC(), nullableTime(inc.ResolvedAt), inc.Severity, inc.Status,
		costToText(inc.Cost), strings.TrimSpace(inc.Description), now, inc.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	inc.Version = expectedVersion + 1
	inc.UpdatedAt = now
	return nil
}

// resolveIncident moves an incident into a terminal status and stamps its
// resolution time. Status must be resolved or closed.
func resolveIncident(ctx context.Context, q Querier, id int64, resolvedAt time.Time, status string) (*Incident, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "resolved" && status != "closed" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	current, err := getIncident(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if resolvedAt.Before(current.DetectedAt) {
		return nil, ErrResolvedBeforeSet
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		UPDATE incidents SET status=?, resolved_at=?, updated_at=?, version=version+1
		WHERE id=? AND status NOT IN ('resolved','closed')`,
		status, resolvedAt.UTC(), now, id)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrConflict
	}
	return getIncident(ctx, q, id)
}

func getIncident(ctx context.Context, q Querier, id int64) (*Incident, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, facility_id, category_id, reported_by, assigned_to, detected_at, resolved_at, severity, status, cost, description, created_at, updated_at, version
		FROM incidents WHERE id=?`, id)
	inc, err := scanIncident(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inc, nil
}

func scanIncident(scan func(dest ...any) error) (*Incident, error) {
	var inc Incident
	var assigned sql.NullInt64
	var resolved sql.NullTime
	var cost sql.NullString
	if err := scan(&inc.ID, &inc.FacilityID, &inc.CategoryID, &inc.ReportedBy, &assigned, &inc.DetectedAt, &resolved, &inc.Severity, &inc.Status, &cost, &inc.Description, &inc.CreatedAt, &inc.UpdatedAt, &inc.Version); err != nil {
		return nil, err
	}
	if assigned.Valid {
		inc.AssignedTo = &assigned.Int64
	}
	if resolved.Valid {
		t := resolved.Time
		inc.ResolvedAt = &t
	}
	if cost.Valid && strings.TrimSpace(cost.String) != "" {
		d, err := decimal.NewFromString(cost.String)
		if err != nil {
			return nil, fmt.Errorf("parse incident %d cost: %w", inc.ID, err)
		}
		inc.Cost = &d
	}
	return &inc, nil
}

func listIncidents(ctx context.Context, q Querier, filter IncidentFilter) ([]Incident, error) {
	var clauses []string
	var args []any
	if filter.From != nil {
		clauses = append(clauses, "detected_at>=?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "detected_at<=?")
		args = append(args, filter.To.UTC())
	}
	if filter.FacilityID > 0 {
		clauses = append(clauses, "facility_id=?")
		args = append(args, filter.FacilityID)
	}
	if filter.CategoryID > 0 {
		clauses = append(clauses, "category_id=?")
		args = append(args, filter.CategoryID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, filter.Severity)
	}
	query := `SELECT id, facility_id, category_id, reported_by, assigned_to, detected_at, resolved_at, severity, status, cost, description, created_at, updated_at, version FROM incidents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY detected_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		inc, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, *inc)
	}
	return res, rows.Err()
}

func addAction(ctx context.Context, q Querier, a *Action) (int64, error) {
	if a.PerformedAt.IsZero() {
		a.PerformedAt = time.Now().UTC()
	}
	id, err := insertID(ctx, q, `
		INSERT INTO actions(incident_id, performed_by, performed_at, note)
		VALUES(?,?,?,?)`,
		a.IncidentID, a.PerformedBy, a.PerformedAt.UTC(), strings.TrimSpace(a.Note))
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

func listActions(ctx context.Context, q Querier, incidentID int64) ([]Action, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, incident_id, performed_by, performed_at, note
		FROM actions WHERE incident_id=? ORDER BY performed_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.PerformedBy, &a.PerformedAt, &a.Note); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *incidentsStore) CreateIncident(ctx context.Context, inc *Incident) (int64, error) {
	return createIncident(ctx, s.db, inc)
}

func (s *incidentsStore) UpdateIncident(ctx context.Context, inc *Incident, expectedVersion int) error {
	return updateIncident(ctx, s.db, inc, expectedVersion)
}

func (s *incidentsStore) ResolveIncident(ctx context.Context, id int64, resolvedAt time.Time, status string) (*Incident, error) {
	return resolveIncident(ctx, s.db, id, resolvedAt, status)
}

func (s *incidentsStore) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	return getIncident(ctx, s.db, id)
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	return listIncidents(ctx, s.db, filter)
}

func (s *incidentsStore) AddAction(ctx context.Context, a *Action) (int64, error) {
	return addAction(ctx, s.db, a)
}

func (s *incidentsStore) ListActions(ctx context.Context, incidentID int64) ([]Action, error) {
	return listActions(ctx, s.db, incidentID)
}
