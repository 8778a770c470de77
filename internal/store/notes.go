package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateNote inserts a note under an existing chapter.
func (s *Store) CreateNote(ctx context.Context, chapterID int64, content string) (*Note, error) {
	if _, err := s.GetChapter(ctx, chapterID); err != nil {
		return nil, err
	}
	stamp := nowStamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (chapter_id, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		chapterID, content, stamp, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetNote(ctx, id)
}

// GetNote fetches one note by id.
func (s *Store) GetNote(ctx context.Context, id int64) (*Note, error) {
	var row Note
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, chapter_id, content, created_at, updated_at FROM notes WHERE id = ?`, id,
	).Scan(&row.ID, &row.ChapterID, &row.Content, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}
	row.CreatedAt = parseStamp(created)
	row.UpdatedAt = parseStamp(updated)
	return &row, nil
}

// UpdateNote replaces a note's content.
func (s *Store) UpdateNote(ctx context.Context, id int64, content string) (*Note, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET content = ?, updated_at = ? WHERE id = ?`,
		content, nowStamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetNote(ctx, id)
}

// ListNotes returns one page of a chapter's notes, oldest first.
func (s *Store) ListNotes(ctx context.Context, chapterID int64, limit, offset int) ([]Note, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notes WHERE chapter_id = ?`, chapterID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chapter_id, content, created_at, updated_at FROM notes
         WHERE chapter_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		chapterID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := make([]Note, 0, limit)
	for rows.Next() {
		var row Note
		var created, updated string
		if err := rows.Scan(&row.ID, &row.ChapterID, &row.Content, &created, &updated); err != nil {
			return nil, 0, fmt.Errorf("scan note: %w", err)
		}
		row.CreatedAt = parseStamp(created)
		row.UpdatedAt = parseStamp(updated)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// DeleteNote removes one note.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return requireAffected(res)
}

// NotesForScope returns notes joined with their series/book/chapter titles,
// optionally narrowed to one series or one book, bounded by limit. Ordering
// follows the reading order (series title, book position, chapter number) so
// the prompt context reads coherently.
func (s *Store) NotesForScope(ctx context.Context, seriesID, bookID *int64, limit int) ([]NoteContext, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT sr.title, b.title, c.title, n.content
        FROM notes n
        JOIN chapters c ON c.id = n.chapter_id
        JOIN books b ON b.id = c.book_id
        JOIN series sr ON sr.id = b.series_id`
	args := []any{}
	switch {
	case bookID != nil:
		query += ` WHERE b.id = ?`
		args = append(args, *bookID)
	case seriesID != nil:
		query += ` WHERE sr.id = ?`
		args = append(args, *seriesID)
	}
	query += ` ORDER BY sr.title, b.position, c.number, n.id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notes for scope: %w", err)
	}
	defer rows.Close()

	var out []NoteContext
	for rows.Next() {
		var row NoteContext
		if err := rows.Scan(&row.SeriesTitle, &row.BookTitle, &row.ChapterTitle, &row.Content); err != nil {
			return nil, fmt.Errorf("scan note context: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
