package store

import "time"

// Series groups the books of one work.
type Series struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Book is one volume inside a series.
type Book struct {
	ID        int64     `json:"id"`
	SeriesID  int64     `json:"series_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Chapter is one unit of a book that notes attach to.
type Chapter struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	Title     string    `json:"title"`
	Number    int       `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a reading note attached to a chapter.
type Note struct {
	ID        int64     `json:"id"`
	ChapterID int64     `json:"chapter_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteContext is a note joined with the titles of the units it belongs to,
// used to build the prompt context for the ask orchestrator.
type NoteContext struct {
	SeriesTitle  string
	BookTitle    string
	ChapterTitle string
	Content      string
}

// QueryRecord is one logged question, written before the model is invoked
// regardless of outcome.
type QueryRecord struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"created_at"`
}

// Coarse sources a search failure can be attributed to.
const (
	ErrorSourceEmbedding = "embedding"
	ErrorSourceLLM       = "llm"
	ErrorSourceDatabase  = "database"
	ErrorSourceUnknown   = "unknown"
)

// SearchError is a persisted record of a failed ask call.
type SearchError struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
