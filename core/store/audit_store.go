package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// AuditEntry is immutable once written. There is no update or delete path.
type AuditEntry struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Actor         string    `json:"actor"`
	EntityType    string    `json:"entity_type"`
	EntityID      int64     `json:"entity_id"`
	Action        string    `json:"action"`
	Details       string    `json:"details"`
	CreatedAt     time.Time `json:"created_at"`
}

type AuditFilter struct {
	EntityType string
	EntityID   int64
	Limit      int
}

type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type auditStore struct {
	db *DB
}

func NewAuditStore(db *DB) AuditStore {
	return &auditStore{db: db}
}

// appendAudit takes a Querier so the write-through decorator can append the
// trail inside the same transaction as the mutation it records.
func appendAudit(ctx context.Context, q Querier, entry *AuditEntry) error {
	if strings.TrimSpace(entry.CorrelationID) == "" {
		entry.CorrelationID = uuid.Must(uuid.NewV4()).String()
	}
	now := time.Now().UTC()
	id, err := insertID(ctx, q, `
		INSERT INTO audit_log(correlation_id, actor, entity_type, entity_id, action, details, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		entry.CorrelationID, strings.TrimSpace(entry.Actor), strings.TrimSpace(entry.EntityType),
		entry.EntityID, strings.TrimSpace(entry.Action), entry.Details, now)
	if err != nil {
		return err
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

func (s *auditStore) Append(ctx context.Context, entry *AuditEntry) error {
	return appendAudit(ctx, s.db, entry)
}

func (s *auditStore) ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	var clauses []string
	var args []any
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID > 0 {
		clauses = append(clauses, "entity_id=?")
		args = append(args, filter.EntityID)
	}
	query := `SELECT id, correlation_id, actor, entity_type, entity_id, action, details, created_at FROM audit_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.Actor, &e.EntityType, &e.EntityID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
