package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateSeries inserts a new series and returns the stored row.
func (s *Store) CreateSeries(ctx context.Context, title, author string) (*Series, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO series (title, author, created_at) VALUES (?, ?, ?)`,
		title, author, nowStamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert series: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSeries(ctx, id)
}

// GetSeries fetches one series by id.
func (s *Store) GetSeries(ctx context.Context, id int64) (*Series, error) {
	var row Series
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, author, created_at FROM series WHERE id = ?`, id,
	).Scan(&row.ID, &row.Title, &row.Author, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select series: %w", err)
	}
	row.CreatedAt = parseStamp(created)
	return &row, nil
}

// ListSeries returns one page of series ordered by title, plus the total count.
func (s *Store) ListSeries(ctx context.Context, limit, offset int) ([]Series, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM series`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count series: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, author, created_at FROM series ORDER BY title LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	out := make([]Series, 0, limit)
	for rows.Next() {
		var row Series
		var created string
		if err := rows.Scan(&row.ID, &row.Title, &row.Author, &created); err != nil {
			return nil, 0, fmt.Errorf("scan series: %w", err)
		}
		row.CreatedAt = parseStamp(created)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// DeleteSeries removes a series and, via cascade, its books, chapters and notes.
func (s *Store) DeleteSeries(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	return requireAffected(res)
}

// CreateBook inserts a book under an existing series.
func (s *Store) CreateBook(ctx context.Context, seriesID int64, title string, position int) (*Book, error) {
	if _, err := s.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (series_id, title, position, created_at) VALUES (?, ?, ?, ?)`,
		seriesID, title, position, nowStamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBook(ctx, id)
}

// GetBook fetches one book by id.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	var row Book
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, series_id, title, position, created_at FROM books WHERE id = ?`, id,
	).Scan(&row.ID, &row.SeriesID, &row.Title, &row.Position, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select book: %w", err)
	}
	row.CreatedAt = parseStamp(created)
	return &row, nil
}

// ListBooks returns one page of a series' books ordered by position.
func (s *Store) ListBooks(ctx context.Context, seriesID int64, limit, offset int) ([]Book, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books WHERE series_id = ?`, seriesID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, series_id, title, position, created_at FROM books
         WHERE series_id = ? ORDER BY position, id LIMIT ? OFFSET ?`,
		seriesID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]Book, 0, limit)
	for rows.Next() {
		var row Book
		var created string
		if err := rows.Scan(&row.ID, &row.SeriesID, &row.Title, &row.Position, &created); err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		row.CreatedAt = parseStamp(created)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// DeleteBook removes a book and its chapters and notes.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return requireAffected(res)
}

// CreateChapter inserts a chapter under an existing book.
func (s *Store) CreateChapter(ctx context.Context, bookID int64, title string, number int) (*Chapter, error) {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chapters (book_id, title, number, created_at) VALUES (?, ?, ?, ?)`,
		bookID, title, number, nowStamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chapter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetChapter(ctx, id)
}

// GetChapter fetches one chapter by id.
func (s *Store) GetChapter(ctx context.Context, id int64) (*Chapter, error) {
	var row Chapter
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, book_id, title, number, created_at FROM chapters WHERE id = ?`, id,
	).Scan(&row.ID, &row.BookID, &row.Title, &row.Number, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chapter: %w", err)
	}
	row.CreatedAt = parseStamp(created)
	return &row, nil
}

// ListChapters returns one page of a book's chapters ordered by number.
func (s *Store) ListChapters(ctx context.Context, bookID int64, limit, offset int) ([]Chapter, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chapters WHERE book_id = ?`, bookID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chapters: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, title, number, created_at FROM chapters
         WHERE book_id = ? ORDER BY number, id LIMIT ? OFFSET ?`,
		bookID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	out := make([]Chapter, 0, limit)
	for rows.Next() {
		var row Chapter
		var created string
		if err := rows.Scan(&row.ID, &row.BookID, &row.Title, &row.Number, &created); err != nil {
			return nil, 0, fmt.Errorf("scan chapter: %w", err)
		}
		row.CreatedAt = parseStamp(created)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// DeleteChapter removes a chapter and its notes.
func (s *Store) DeleteChapter(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
