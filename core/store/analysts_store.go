package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Analyst carries no stored incident counter. ActiveIncidents is derived
// from live incident state on every read, so it cannot drift.
type Analyst struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	Active          bool      `json:"active"`
	ActiveIncidents int       `json:"active_incidents"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AnalystsStore interface {
	CreateAnalyst(ctx context.Context, a *Analyst) (int64, error)
	UpdateAnalyst(ctx context.Context, a *Analyst) error
	GetAnalyst(ctx context.Context, id int64) (*Analyst, error)
	ListAnalysts(ctx context.Context, activeOnly bool) ([]Analyst, error)
}

type analystsStore struct {
	db *DB
}

func NewAnalystsStore(db *DB) AnalystsStore {
	return &analystsStore{db: db}
}

const analystActiveIncidentsExpr = `(
	SELECT COUNT(1) FROM incidents i
	WHERE (i.assigned_to=a.id OR (i.assigned_to IS NULL AND i.reported_by=a.id))
	AND i.status IN ('open','in_progress')
)`

func (s *analystsStore) CreateAnalyst(ctx context.Context, a *Analyst) (int64, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return 0, errors.New("analyst name required")
	}
	role := strings.TrimSpace(a.Role)
	if role == "" {
		role = "analyst"
	}
	now := time.Now().UTC()
	id, err := insertID(ctx, s.db, `
		INSERT INTO analysts(name, role, active, created_at, updated_at)
		VALUES(?,?,?,?,?)`, name, role, boolToInt(a.Active), now, now)
	if err != nil {
		return 0, err
	}
	a.ID = id
	a.Name = name
	a.Role = role
	a.CreatedAt = now
	a.UpdatedAt = now
	return id, nil
}

func (s *analystsStore) UpdateAnalyst(ctx context.Context, a *Analyst) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysts SET name=?, role=?, active=?, updated_at=? WHERE id=?`,
		strings.TrimSpace(a.Name), strings.TrimSpace(a.Role), boolToInt(a.Active), now, a.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

func (s *analystsStore) GetAnalyst(ctx context.Context, id int64) (*Analyst, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.name, a.role, a.active, `+analystActiveIncidentsExpr+`, a.created_at, a.updated_at
		FROM analysts a WHERE a.id=?`, id)
	var a Analyst
	var active int
	if err := row.Scan(&a.ID, &a.Name, &a.Role, &active, &a.ActiveIncidents, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Active = active == 1
	return &a, nil
}

func (s *analystsStore) ListAnalysts(ctx context.Context, activeOnly bool) ([]Analyst, error) {
	query := `
		SELECT a.id, a.name, a.role, a.active, ` + analystActiveIncidentsExpr + `, a.created_at, a.updated_at
		FROM analysts a`
	if activeOnly {
		query += ` WHERE a.active=1`
	}
	query += ` ORDER BY a.name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Analyst
	for rows.Next() {
		var a Analyst
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &active, &a.ActiveIncidents, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Active = active == 1
		res = append(res, a)
	}
	return res, rows.Err()
}
