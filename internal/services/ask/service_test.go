package ask

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginote/marginote/internal/llm"
	"github.com/marginote/marginote/internal/store"
)

func newAskFixture(t *testing.T, handler http.HandlerFunc) (*Service, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "marginote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := llm.New(llm.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	return NewService(st, client, nil), st
}

func seedNotes(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	series, err := st.CreateSeries(ctx, "Dune", "Frank Herbert")
	require.NoError(t, err)
	book, err := st.CreateBook(ctx, series.ID, "Dune", 1)
	require.NoError(t, err)
	chapter, err := st.CreateChapter(ctx, book.ID, "Book One", 1)
	require.NoError(t, err)
	_, err = st.CreateNote(ctx, chapter.ID, "Paul dreams of Chani before meeting her.")
	require.NoError(t, err)
}

func TestAskSuccessLogsQuery(t *testing.T) {
	svc, st := newAskFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"{\"text\":\"He dreams of Chani.\",\"low_confidence\":false}"}}],"usage":{"prompt_tokens":50,"completion_tokens":10,"total_tokens":60}}`))
	})
	seedNotes(t, st)

	resp, err := svc.Ask(context.Background(), "What does Paul dream about?", Scope{}, "en")
	require.NoError(t, err)
	assert.Equal(t, "He dreams of Chani.", resp.Answer.Text)
	assert.False(t, resp.Answer.LowConfidence)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 1, resp.Attempts)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 60, resp.Usage.TotalTokens)
	assert.False(t, resp.Cached)

	// The question was logged before the model call.
	queries, err := st.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "What does Paul dream about?", queries[0].Question)
	assert.Equal(t, "en", queries[0].Locale)

	// No failure record on success.
	errs, err := st.RecentSearchErrors(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestAskRecordsSearchErrorOnLLMFailure(t *testing.T) {
	svc, st := newAskFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	seedNotes(t, st)

	_, err := svc.Ask(context.Background(), "What does Paul dream about?", Scope{}, "en")
	require.Error(t, err)
	cerr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.KindAuth, cerr.Kind)

	errs, err := st.RecentSearchErrors(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, store.ErrorSourceLLM, errs[0].Source)
	assert.Equal(t, "auth", errs[0].Kind)

	// Query log was still written despite the failure.
	queries, err := st.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, queries, 1)
}

func TestAskSendsScopedContext(t *testing.T) {
	var gotBody atomic.Value
	svc, st := newAskFixture(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody.Store(string(buf))
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"text\":\"ok\",\"low_confidence\":false}"}}]}`))
	})

	ctx := context.Background()
	series, err := st.CreateSeries(ctx, "Dune", "")
	require.NoError(t, err)
	book, err := st.CreateBook(ctx, series.ID, "Dune", 1)
	require.NoError(t, err)
	chapter, err := st.CreateChapter(ctx, book.ID, "Book One", 1)
	require.NoError(t, err)
	_, err = st.CreateNote(ctx, chapter.ID, "The spice must flow.")
	require.NoError(t, err)

	other, err := st.CreateSeries(ctx, "Foundation", "")
	require.NoError(t, err)
	otherBook, err := st.CreateBook(ctx, other.ID, "Foundation", 1)
	require.NoError(t, err)
	otherChapter, err := st.CreateChapter(ctx, otherBook.ID, "Part I", 1)
	require.NoError(t, err)
	_, err = st.CreateNote(ctx, otherChapter.ID, "Psychohistory predicts the fall.")
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "What must flow?", Scope{SeriesID: &series.ID}, "en")
	require.NoError(t, err)

	body, _ := gotBody.Load().(string)
	assert.Contains(t, body, "The spice must flow.")
	assert.NotContains(t, body, "Psychohistory")
}

func TestPromptsForLocaleFallback(t *testing.T) {
	assert.Equal(t, prompts["en"], promptsFor("en"))
	assert.Equal(t, prompts["es"], promptsFor("ES "))
	assert.Equal(t, prompts["en"], promptsFor("fr"))
	assert.Equal(t, prompts["en"], promptsFor(""))
}

func TestBuildContextGroupsBySourceUnit(t *testing.T) {
	notes := []store.NoteContext{
		{SeriesTitle: "Dune", BookTitle: "Dune", ChapterTitle: "Book One", Content: "first note"},
		{SeriesTitle: "Dune", BookTitle: "Dune", ChapterTitle: "Book One", Content: "second note"},
		{SeriesTitle: "Dune", BookTitle: "Dune", ChapterTitle: "Book Two", Content: "third note"},
	}

	out := buildContext(notes, llm.MaxUserPromptLen)
	assert.Contains(t, out, "## Dune / Dune / Book One\n- first note\n- second note\n")
	assert.Contains(t, out, "## Dune / Dune / Book Two\n- third note\n")
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Equal(t, "(no notes recorded yet)", buildContext(nil, llm.MaxUserPromptLen))
}

func TestBuildContextDropsNotesBeyondBudget(t *testing.T) {
	notes := []store.NoteContext{
		{SeriesTitle: "S", BookTitle: "B", ChapterTitle: "C", Content: strings.Repeat("a", 100)},
		{SeriesTitle: "S", BookTitle: "B", ChapterTitle: "C", Content: strings.Repeat("b", 100)},
		{SeriesTitle: "S", BookTitle: "B", ChapterTitle: "C", Content: strings.Repeat("c", 100)},
	}

	out := buildContext(notes, 250)
	assert.LessOrEqual(t, len(out), 250)
	assert.Contains(t, out, strings.Repeat("a", 100))
	assert.Contains(t, out, strings.Repeat("b", 100))
	assert.NotContains(t, out, "c")
}

func TestBuildContextTruncatesOversizedLeadingNote(t *testing.T) {
	notes := []store.NoteContext{
		{SeriesTitle: "S", BookTitle: "B", ChapterTitle: "C", Content: strings.Repeat("x", 500)},
	}

	out := buildContext(notes, 100)
	assert.LessOrEqual(t, len(out), 100)
	assert.Contains(t, out, "## S / B / C\n- xxx")
}

func TestAskSucceedsWithOverBudgetCatalogue(t *testing.T) {
	var gotBody atomic.Value
	svc, st := newAskFixture(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody.Store(string(buf))
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"text\":\"ok\",\"low_confidence\":false}"}}]}`))
	})

	ctx := context.Background()
	series, err := st.CreateSeries(ctx, "Dune", "")
	require.NoError(t, err)
	book, err := st.CreateBook(ctx, series.ID, "Dune", 1)
	require.NoError(t, err)
	chapter, err := st.CreateChapter(ctx, book.ID, "Book One", 1)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err := st.CreateNote(ctx, chapter.ID, fmt.Sprintf("note %03d ", i)+strings.Repeat("x", 230))
		require.NoError(t, err)
	}

	resp, err := svc.Ask(ctx, "What happens?", Scope{}, "en")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Answer.Text)

	// Early notes survive, trailing ones are dropped to fit the prompt bound.
	body, _ := gotBody.Load().(string)
	assert.Contains(t, body, "note 000")
	assert.NotContains(t, body, "note 049")
}

func TestCacheKeyDistinguishesScopeAndLocale(t *testing.T) {
	seriesID := int64(1)
	bookID := int64(2)

	base := cacheKey("q", Scope{}, "en")
	assert.NotEqual(t, base, cacheKey("q", Scope{SeriesID: &seriesID}, "en"))
	assert.NotEqual(t, base, cacheKey("q", Scope{BookID: &bookID}, "en"))
	assert.NotEqual(t, base, cacheKey("q", Scope{}, "es"))
	assert.NotEqual(t, base, cacheKey("other", Scope{}, "en"))
	assert.Equal(t, base, cacheKey("q", Scope{}, "en"))
}
