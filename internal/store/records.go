package store

import (
	"context"
	"fmt"
)

// LogQuery records a question before the model is invoked. Callers treat the
// write as fire-and-forget: a failure here must never block the search.
func (s *Store) LogQuery(ctx context.Context, question, locale string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (question, locale, created_at) VALUES (?, ?, ?)`,
		question, locale, nowStamp(),
	); err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// RecordSearchError persists a failed ask call tagged with its coarse source.
func (s *Store) RecordSearchError(ctx context.Context, question, source, kind, message string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO search_errors (question, source, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		question, source, kind, message, nowStamp(),
	); err != nil {
		return fmt.Errorf("insert search error: %w", err)
	}
	return nil
}

// RecentQueries returns the most recent query-log entries, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, locale, created_at FROM query_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list query log: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var row QueryRecord
		var created string
		if err := rows.Scan(&row.ID, &row.Question, &row.Locale, &created); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		row.CreatedAt = parseStamp(created)
		out = append(out, row)
	}
	return out, rows.Err()
}

// RecentSearchErrors returns the most recent search-error records, newest first.
func (s *Store) RecentSearchErrors(ctx context.Context, limit int) ([]SearchError, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, source, kind, message, created_at FROM search_errors ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list search errors: %w", err)
	}
	defer rows.Close()

	var out []SearchError
	for rows.Next() {
		var row SearchError
		var created string
		if err := rows.Scan(&row.ID, &row.Question, &row.Source, &row.Kind, &row.Message, &created); err != nil {
			return nil, fmt.Errorf("scan search error: %w", err)
		}
		row.CreatedAt = parseStamp(created)
		out = append(out, row)
	}
	return out, rows.Err()
}
