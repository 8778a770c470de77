package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// bodySnippetLen caps how much of an upstream error body is kept for
	// diagnostics. Error bodies can be arbitrarily large and are untrusted.
	bodySnippetLen = 500

	requestIDHeader  = "X-Request-Id"
	retryAfterHeader = "Retry-After"
)

// rawResponse is a successful (2xx) transport result, still undecoded.
type rawResponse struct {
	status    int
	body      []byte
	requestID string
}

// transport issues exactly one network call per send. It owns the per-attempt
// timeout and is the only component that raises KindTimeout. It never logs
// the request body: the body carries the caller's prompt and travels with the
// credential, so only structural metadata (path, status, elapsed) is logged.
type transport struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

func (t *transport) send(ctx context.Context, path string, body []byte) (*rawResponse, *Error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	url := strings.TrimRight(t.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "build http request", cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Str("path", path).
				Dur("elapsed", elapsed).
				Dur("timeout", t.timeout).
				Msg("Completion attempt timed out")
			return nil, &Error{
				Kind:    KindTimeout,
				Message: fmt.Sprintf("request did not complete within %s", t.timeout),
				cause:   err,
			}
		}
		log.Warn().
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("Completion attempt failed at network level")
		return nil, &Error{Kind: KindUpstream, Message: "network-level failure", cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "read response body", cause: err}
	}
	requestID := resp.Header.Get(requestIDHeader)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("Completion attempt succeeded")
		return &rawResponse{status: resp.StatusCode, body: respBody, requestID: requestID}, nil
	}

	cerr := classifyStatus(resp.StatusCode, respBody, requestID)
	if cerr.Kind == KindRateLimit {
		cerr.RetryAfter = parseRetryAfter(resp.Header.Get(retryAfterHeader))
	}
	log.Warn().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Str("kind", cerr.Kind.String()).
		Str("request_id", requestID).
		Msg("Completion attempt rejected upstream")
	return nil, cerr
}

// classifyStatus maps a non-2xx status onto the error taxonomy.
func classifyStatus(status int, body []byte, requestID string) *Error {
	snippet := truncate(string(body), bodySnippetLen)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{
			Kind:       KindAuth,
			Message:    fmt.Sprintf("upstream rejected credential with status %d", status),
			StatusCode: status,
			Snippet:    snippet,
			RequestID:  requestID,
		}
	case status == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimit,
			Message:    "upstream rate limit exceeded",
			StatusCode: status,
			Snippet:    snippet,
			RequestID:  requestID,
		}
	default:
		return &Error{
			Kind:       KindUpstream,
			Message:    fmt.Sprintf("upstream returned status %d", status),
			StatusCode: status,
			Snippet:    snippet,
			RequestID:  requestID,
		}
	}
}

// parseRetryAfter understands the delta-seconds form of Retry-After. The
// HTTP-date form is rare on completion APIs and is ignored.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// truncate caps s at n bytes, backing up to a rune boundary so the snippet
// never ends in a split multi-byte character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
