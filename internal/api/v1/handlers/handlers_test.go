package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1handlers "github.com/marginote/marginote/internal/api/v1/handlers"
	"github.com/marginote/marginote/internal/api/v1/routes"
	"github.com/marginote/marginote/internal/config"
	"github.com/marginote/marginote/internal/llm"
	"github.com/marginote/marginote/internal/services/ask"
	"github.com/marginote/marginote/internal/services/session"
	"github.com/marginote/marginote/internal/store"
)

const testAPIKey = "test-api-key"

type apiFixture struct {
	router *mux.Router
	store  *store.Store
	token  string
}

func newAPIFixture(t *testing.T, llmHandler http.HandlerFunc) *apiFixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "marginote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if llmHandler == nil {
		llmHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":"{\"text\":\"ok\",\"low_confidence\":false}"}}]}`))
		}
	}
	upstream := httptest.NewServer(llmHandler)
	t.Cleanup(upstream.Close)

	client, err := llm.New(llm.Config{
		APIKey:  "llm-key",
		BaseURL: upstream.URL,
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	sessions, err := session.NewService("test-secret-0123456789", testAPIKey, time.Hour)
	require.NoError(t, err)

	askService := ask.NewService(st, client, nil)
	h := v1handlers.New(st, askService, sessions)

	router := mux.NewRouter()
	routes.RegisterV1Routes(router, &config.Config{}, h, sessions)

	token, _, err := sessions.Exchange(testAPIKey)
	require.NoError(t, err)

	return &apiFixture{router: router, store: st, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestTokenExchange(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(fmt.Sprintf(`{"api_key":%q}`, testAPIKey))
	f.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/auth/token", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	decodeInto(t, rec, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, int64(0))
}

func TestTokenExchangeRejectsWrongKey(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"api_key":"wrong"}`)
	f.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/auth/token", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/series", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/series", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCatalogCRUD(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, "POST", "/api/v1/series", map[string]any{"title": "Dune", "author": "Frank Herbert"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var series store.Series
	decodeInto(t, rec, &series)
	assert.Equal(t, "Dune", series.Title)

	rec = f.do(t, "POST", "/api/v1/books", map[string]any{"series_id": series.ID, "title": "Dune Messiah", "position": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	var book store.Book
	decodeInto(t, rec, &book)
	assert.Equal(t, series.ID, book.SeriesID)

	rec = f.do(t, "POST", "/api/v1/chapters", map[string]any{"book_id": book.ID, "title": "Chapter 1", "number": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chapter store.Chapter
	decodeInto(t, rec, &chapter)

	rec = f.do(t, "POST", "/api/v1/notes", map[string]any{"chapter_id": chapter.ID, "content": "Paul waits."})
	require.Equal(t, http.StatusCreated, rec.Code)
	var note store.Note
	decodeInto(t, rec, &note)

	rec = f.do(t, "GET", fmt.Sprintf("/api/v1/series/%d/books", series.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pageResp struct {
		Items []store.Book `json:"items"`
		Total int          `json:"total"`
	}
	decodeInto(t, rec, &pageResp)
	require.Len(t, pageResp.Items, 1)
	assert.Equal(t, 1, pageResp.Total)

	rec = f.do(t, "PUT", fmt.Sprintf("/api/v1/notes/%d", note.ID), map[string]any{"content": "Paul waits for the Reverend Mother."})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &note)
	assert.Equal(t, "Paul waits for the Reverend Mother.", note.Content)

	rec = f.do(t, "DELETE", fmt.Sprintf("/api/v1/series/%d", series.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Cascade removed the note too.
	rec = f.do(t, "GET", fmt.Sprintf("/api/v1/notes/%d", note.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSeriesRejectsMissingTitle(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, "POST", "/api/v1/series", map[string]any{"author": "nobody"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookUnknownSeries(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, "POST", "/api/v1/books", map[string]any{"series_id": 999, "title": "Orphan"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSeriesInvalidID(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, "GET", "/api/v1/series/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskEndpoint(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"{\"text\":\"He waits.\",\"low_confidence\":false}"}}]}`))
	})

	rec := f.do(t, "POST", "/api/v1/ask", map[string]any{"question": "What does Paul do?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Answer struct {
			Text string `json:"text"`
		} `json:"answer"`
		Model string `json:"model"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, "He waits.", resp.Answer.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
}

func TestAskRequiresQuestion(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, "POST", "/api/v1/ask", map[string]any{"question": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskMapsUpstreamAuthFailure(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec := f.do(t, "POST", "/api/v1/ask", map[string]any{"question": "anything"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "llm-key")
}
