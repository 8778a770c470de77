// Package ask orchestrates the question-answering flow: it gathers the
// reader's notes into a context string, invokes the structured completion
// client, and records query and failure metadata around the call.
package ask

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marginote/marginote/internal/infrastructure/redis"
	"github.com/marginote/marginote/internal/llm"
	"github.com/marginote/marginote/internal/store"
)

const (
	answerSchemaName = "reading_notes_answer"
	maxContextNotes  = 200
	cacheTTL         = time.Hour
)

// Answer is the output contract the model is constrained to.
type Answer struct {
	Text          string `json:"text" validate:"required"`
	LowConfidence bool   `json:"low_confidence"`
}

var answerSchema = llm.SchemaFor[Answer]()

// Scope narrows which notes feed the prompt context. Nil fields mean no
// restriction; BookID wins over SeriesID when both are set.
type Scope struct {
	SeriesID *int64
	BookID   *int64
}

// Response is a successful answer plus the call's usage metadata.
type Response struct {
	Answer    Answer     `json:"answer"`
	Model     string     `json:"model"`
	Usage     *llm.Usage `json:"usage,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Attempts  int        `json:"attempts"`
	ElapsedMS int64      `json:"elapsed_ms"`
	Cached    bool       `json:"cached"`
}

// Service is the AI query orchestrator.
type Service struct {
	store  *store.Store
	client *llm.Client
	cache  *redis.Service // nil when Redis is not configured
}

func NewService(st *store.Store, client *llm.Client, cache *redis.Service) *Service {
	return &Service{store: st, client: client, cache: cache}
}

// Ask answers a question from the reader's notes. The question is logged
// before the model is invoked regardless of outcome; on failure a
// search-error record tagged with a coarse source is persisted and the
// classified error is returned unchanged.
func (s *Service) Ask(ctx context.Context, question string, scope Scope, locale string) (*Response, error) {
	question = strings.TrimSpace(question)

	// Fire-and-forget: a failed query-log write is tolerated, never blocking.
	if err := s.store.LogQuery(ctx, question, locale); err != nil {
		log.Error().Err(err).Msg("Failed to write query log record")
	}

	if cached := s.cachedResponse(ctx, question, scope, locale); cached != nil {
		return cached, nil
	}

	notes, err := s.store.NotesForScope(ctx, scope.SeriesID, scope.BookID, maxContextNotes)
	if err != nil {
		s.recordFailure(ctx, question, store.ErrorSourceDatabase, "query", err)
		return nil, fmt.Errorf("fetch notes for context: %w", err)
	}

	pp := promptsFor(locale)
	// The context must leave room for the template and question within the
	// client's user prompt bound, or the call fails before it starts.
	budget := llm.MaxUserPromptLen - len(fmt.Sprintf(pp.user, "", question))
	start := time.Now()
	result, err := llm.Complete[Answer](ctx, s.client, llm.Request{
		System:     pp.system,
		User:       fmt.Sprintf(pp.user, buildContext(notes, budget), question),
		SchemaName: answerSchemaName,
		Schema:     answerSchema,
	})
	if err != nil {
		s.recordFailure(ctx, question, errorSource(err), errorKind(err), err)
		return nil, err
	}
	elapsed := time.Since(start)

	log.Info().
		Str("model", result.Model).
		Int("attempts", result.Attempts).
		Dur("elapsed", elapsed).
		Int("context_notes", len(notes)).
		Bool("low_confidence", result.Data.LowConfidence).
		Msg("Answered question from notes")

	resp := &Response{
		Answer:    result.Data,
		Model:     result.Model,
		Usage:     result.Usage,
		RequestID: result.RequestID,
		Attempts:  result.Attempts,
		ElapsedMS: elapsed.Milliseconds(),
	}
	s.storeCached(ctx, question, scope, locale, resp)
	return resp, nil
}

// recordFailure persists a search-error record; its own failure is only logged.
func (s *Service) recordFailure(ctx context.Context, question, source, kind string, cause error) {
	if err := s.store.RecordSearchError(ctx, question, source, kind, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to persist search-error record")
	}
}

// errorSource maps a failure onto the coarse source taxonomy persisted with
// search-error records.
func errorSource(err error) string {
	if _, ok := llm.AsError(err); ok {
		return store.ErrorSourceLLM
	}
	return store.ErrorSourceUnknown
}

func errorKind(err error) string {
	if cerr, ok := llm.AsError(err); ok {
		return cerr.Kind.String()
	}
	return "unknown"
}

func cacheKey(question string, scope Scope, locale string) string {
	var sb strings.Builder
	sb.WriteString(locale)
	sb.WriteByte('|')
	if scope.SeriesID != nil {
		fmt.Fprintf(&sb, "s%d", *scope.SeriesID)
	}
	if scope.BookID != nil {
		fmt.Fprintf(&sb, "b%d", *scope.BookID)
	}
	sb.WriteByte('|')
	sb.WriteString(question)
	sum := sha256.Sum256([]byte(sb.String()))
	return "ask:" + hex.EncodeToString(sum[:])
}

func (s *Service) cachedResponse(ctx context.Context, question string, scope Scope, locale string) *Response {
	if s.cache == nil {
		return nil
	}
	val, err := s.cache.Get(ctx, cacheKey(question, scope, locale))
	if err != nil {
		if !redis.IsMiss(err) {
			log.Warn().Err(err).Msg("Answer cache lookup failed")
		}
		return nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		log.Warn().Err(err).Msg("Discarding undecodable cached answer")
		return nil
	}
	resp.Cached = true
	return &resp
}

func (s *Service) storeCached(ctx context.Context, question string, scope Scope, locale string, resp *Response) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode answer for cache")
		return
	}
	if err := s.cache.Set(ctx, cacheKey(question, scope, locale), payload, cacheTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache answer")
	}
}
