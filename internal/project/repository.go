package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists projects. Lookups of a missing id return nil, nil.
type Repository interface {
	Insert(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	// Update loads the record, lets fn mutate it and stores the result.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, id string, fn func(*Project) error) (*Project, error)
	// Delete removes the record and returns what was removed.
	Delete(ctx context.Context, id string) (*Project, error)
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository stores one row per project.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const projectColumns = `id, name, original_name, video_path, status, source_language, target_language,
	segments, translated_segments, subtitles, exported_video, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *Project) error {
	args, err := projectArgs(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, fn func(*Project) error) (*Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil || p == nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}

	args, err := projectArgs(p)
	if err != nil {
		return nil, err
	}
	// id is the first column; move it to the WHERE clause.
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET name = ?, original_name = ?, video_path = ?, status = ?,
			source_language = ?, target_language = ?, segments = ?, translated_segments = ?,
			subtitles = ?, exported_video = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, append(args[1:], id)...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (*Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil || p == nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func projectArgs(p *Project) ([]any, error) {
	segments, err := json.Marshal(nonNil(p.Segments))
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	translated, err := json.Marshal(nonNil(p.TranslatedSegments))
	if err != nil {
		return nil, fmt.Errorf("encode translated segments: %w", err)
	}
	return []any{
		p.ID, p.Name, p.OriginalName, p.VideoPath, string(p.Status),
		p.SourceLanguage, p.TargetLanguage, string(segments), string(translated),
		nullString(p.Subtitles), nullString(p.ExportedVideo),
		p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout),
	}, nil
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var status, segments, translated, createdAt, updatedAt string
	var subtitles, exported sql.NullString

	err := row.Scan(&p.ID, &p.Name, &p.OriginalName, &p.VideoPath, &status,
		&p.SourceLanguage, &p.TargetLanguage, &segments, &translated,
		&subtitles, &exported, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Status = Status(status)
	p.Subtitles = subtitles.String
	p.ExportedVideo = exported.String
	if err := json.Unmarshal([]byte(segments), &p.Segments); err != nil {
		return nil, fmt.Errorf("decode segments of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(translated), &p.TranslatedSegments); err != nil {
		return nil, fmt.Errorf("decode translated segments of %s: %w", p.ID, err)
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at of %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at of %s: %w", p.ID, err)
	}
	p.normalize()
	return &p, nil
}

func nonNil(s []Segment) []Segment {
	if s == nil {
		return []Segment{}
	}
	return s
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
