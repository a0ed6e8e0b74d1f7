package store

import (
	"context"
	"fmt"
	"time"
)

// auditedIncidents runs every mutation and its audit record in one
// transaction: the incident change and its trail commit together or not at
// all. Audit logging is an explicit capability of the write path here, not
// a hidden database trigger.
type auditedIncidents struct {
	db    *DB
	actor string
}

// NewAuditedIncidentsStore returns an incidents store whose mutations leave
// an audit trail attributed to actor.
func NewAuditedIncidentsStore(db *DB, actor string) IncidentsStore {
	return &auditedIncidents{db: db, actor: actor}
}

func (s *auditedIncidents) entry(entityID int64, action, details string) *AuditEntry {
	return &AuditEntry{
		Actor:      s.actor,
		EntityType: "incident",
		EntityID:   entityID,
		Action:     action,
		Details:    details,
	}
}

func (s *auditedIncidents) CreateIncident(ctx context.Context, inc *Incident) (int64, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	id, err := createIncident(ctx, tx, inc)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	details := fmt.Sprintf("severity=%s status=%s facility=%d category=%d", inc.Severity, inc.Status, inc.FacilityID, inc.CategoryID)
	if err := appendAudit(ctx, tx, s.entry(id, "incident.create", details)); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *auditedIncidents) UpdateIncident(ctx context.Context, inc *Incident, expectedVersion int) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := updateIncident(ctx, tx, inc, expectedVersion); err != nil {
		tx.Rollback()
		return err
	}
	details := fmt.Sprintf("version=%d status=%s", inc.Version, inc.Status)
	if err := appendAudit(ctx, tx, s.entry(inc.ID, "incident.update", details)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *auditedIncidents) ResolveIncident(ctx context.Context, id int64, resolvedAt time.Time, status string) (*Incident, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	inc, err := resolveIncident(ctx, tx, id, resolvedAt, status)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	details := fmt.Sprintf("status=%s resolved_at=%s", inc.Status, resolvedAt.UTC().Format(time.RFC3339))
	if err := appendAudit(ctx, tx, s.entry(id, "incident.resolve", details)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inc, nil
}

func (s *auditedIncidents) AddAction(ctx context.Context, a *Action) (int64, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	id, err := addAction(ctx, tx, a)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	details := fmt.Sprintf("action_id=%d performed_by=%d", id, a.PerformedBy)
	if err := appendAudit(ctx, tx, s.entry(a.IncidentID, "incident.action", details)); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Reads pass straight through.

func (s *auditedIncidents) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	return getIncident(ctx, s.db, id)
}

func (s *auditedIncidents) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	return listIncidents(ctx, s.db, filter)
}

func (s *auditedIncidents) ListActions(ctx context.Context, incidentID int64) ([]Action, error) {
	return listActions(ctx, s.db, incidentID)
}
