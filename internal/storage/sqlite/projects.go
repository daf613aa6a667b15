// ABOUTME: Project metadata persistence for SQLite
// ABOUTME: Implements upsert, lookup and listing of extracted project facts
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/danruili/archlogic/internal/models"
)

// Project is one stored case study with its extracted metadata
type Project struct {
	Name        string
	Metadata    models.ProjectMetadata
	ItemCount   int
	ExtractedAt time.Time
}

// ProjectStore handles project metadata persistence
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new ProjectStore
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// UpsertProject saves or refreshes one project's metadata. Satisfies the
// extraction runner's metadata sink.
func (s *ProjectStore) UpsertProject(ctx context.Context, name string, meta models.ProjectMetadata, itemCount int) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO projects (name, designer, year, country, city, function, style, material, area, item_count, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			designer = excluded.designer,
			year = excluded.year,
			country = excluded.country,
			city = excluded.city,
			function = excluded.function,
			style = excluded.style,
			material = excluded.material,
			area = excluded.area,
			item_count = excluded.item_count,
			extracted_at = excluded.extracted_at
	`, name, jsonList(meta.Designer), nullInt(meta.Year), nullString(meta.Country),
		nullString(meta.City), jsonList(meta.Function), jsonList(meta.Style),
		jsonList(meta.Material), nullInt(meta.Area), itemCount, time.Now())

	return err
}

// Get retrieves one project by name. Returns nil when not stored.
func (s *ProjectStore) Get(ctx context.Context, name string) (*Project, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT name, designer, year, country, city, function, style, material, area, item_count, extracted_at
		FROM projects
		WHERE name = ?
	`, name)

	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List retrieves all stored projects ordered by name
func (s *ProjectStore) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT name, designer, year, country, city, function, style, material, area, item_count, extracted_at
		FROM projects
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Count returns the number of stored projects
func (s *ProjectStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p        Project
		designer sql.NullString
		year     sql.NullInt64
		country  sql.NullString
		city     sql.NullString
		function sql.NullString
		style    sql.NullString
		material sql.NullString
		area     sql.NullInt64
	)

	err := row.Scan(&p.Name, &designer, &year, &country, &city,
		&function, &style, &material, &area, &p.ItemCount, &p.ExtractedAt)
	if err != nil {
		return nil, err
	}

	p.Metadata.Designer = fromJSONList(designer)
	p.Metadata.Function = fromJSONList(function)
	p.Metadata.Style = fromJSONList(style)
	p.Metadata.Material = fromJSONList(material)
	if year.Valid {
		p.Metadata.Year = int(year.Int64)
	}
	if area.Valid {
		p.Metadata.Area = int(area.Int64)
	}
	if country.Valid {
		p.Metadata.Country = country.String
	}
	if city.Valid {
		p.Metadata.City = city.String
	}

	return &p, nil
}

// jsonList stores a string slice as a JSON text column
func jsonList(values []string) sql.NullString {
	if len(values) == 0 {
		return sql.NullString{Valid: false}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func fromJSONList(col sql.NullString) []string {
	if !col.Valid {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(col.String), &values); err != nil {
		return nil
	}
	return values
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt converts a zero int to sql.NullInt64
func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}
