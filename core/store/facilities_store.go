package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Facility struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FacilitiesStore interface {
	CreateFacility(ctx context.Context, f *Facility) (int64, error)
	UpdateFacility(ctx context.Context, f *Facility) error
	GetFacility(ctx context.Context, id int64) (*Facility, error)
	ListFacilities(ctx context.Context, activeOnly bool) ([]Facility, error)
}

type facilitiesStore struct {
	db *DB
}

func NewFacilitiesStore(db *DB) FacilitiesStore {
	return &facilitiesStore{db: db}
}

func (s *facilitiesStore) CreateFacility(ctx context.Context, f *Facility) (int64, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return 0, errors.New("facility name required")
	}
	now := time.Now().UTC()
	id, err := insertID(ctx, s.db, `
		INSERT INTO facilities(name, active, created_at, updated_at)
		VALUES(?,?,?,?)`, name, boolToInt(f.Active), now, now)
	if err != nil {
		return 0, err
	}
	f.ID = id
	f.Name = name
	f.CreatedAt = now
	f.UpdatedAt = now
	return id, nil
}

func (s *facilitiesStore) UpdateFacility(ctx context.Context, f *Facility) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET name=?, active=?, updated_at=? WHERE id=?`,
		strings.TrimSpace(f.Name), boolToInt(f.Active), now, f.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	f.UpdatedAt = now
	return nil
}

func (s *facilitiesStore) GetFacility(ctx context.Context, id int64) (*Facility, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, created_at, updated_at FROM facilities WHERE id=?`, id)
	var f Facility
	var active int
	if err := row.Scan(&f.ID, &f.Name, &active, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	f.Active = active == 1
	return &f, nil
}

func (s *facilitiesStore) ListFacilities(ctx context.Context, activeOnly bool) ([]Facility, error) {
	query := `SELECT id, name, active, created_at, updated_at FROM facilities`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Facility
	for rows.Next() {
		var f Facility
		var active int
		if err := rows.Scan(&f.ID, &f.Name, &active, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Active = active == 1
		res = append(res, f)
	}
	return res, rows.Err()
}
