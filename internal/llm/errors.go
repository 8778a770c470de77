package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind identifies one of the closed set of failure categories the client can
// surface. Every failure that crosses a package boundary is classified into
// exactly one Kind before it is returned.
type Kind int

const (
	// KindConfig indicates the client itself was misconfigured (missing
	// credential, bad base URL, empty model). Raised at construction time.
	KindConfig Kind = iota
	// KindValidation indicates caller input failed its contract before any
	// network traffic happened.
	KindValidation
	// KindAuth indicates the upstream rejected the credential (401/403).
	KindAuth
	// KindRateLimit indicates a 429, optionally carrying a server-directed
	// wait duration parsed from the Retry-After header.
	KindRateLimit
	// KindTimeout indicates the attempt did not complete within the
	// configured per-attempt timeout. Only the transport raises this.
	KindTimeout
	// KindUpstream covers 5xx responses, unclassified >=400 statuses, empty
	// completion envelopes and network-level failures.
	KindUpstream
	// KindParse indicates the model output contained no recoverable JSON.
	KindParse
	// KindSchemaMismatch indicates recovered JSON that does not satisfy the
	// caller's schema.
	KindSchemaMismatch
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindUpstream:
		return "upstream"
	case KindParse:
		return "parse"
	case KindSchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// Issue is a single schema-validation failure: the field path that failed and
// a short description of the violated constraint.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the classified error returned by every component of this package.
// It is a tagged union over Kind: only the fields relevant to a given kind
// are populated. Message is an internal diagnostic safe to log; it may carry
// truncated response snippets but never the credential or prompt content.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int           // upstream HTTP status, 0 for network-level failures
	RetryAfter time.Duration // server-directed wait, rate-limit responses only
	Snippet    string        // truncated response body or model output
	Issues     []Issue       // schema-mismatch details
	RequestID  string        // upstream correlation id when the server sent one

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("llm: %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("llm: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the retry orchestrator may resubmit the request
// after this failure. Timeout is nominally retryable but is additionally
// capped to a single retry by the orchestrator.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindTimeout:
		return true
	case KindUpstream:
		// Retry server faults and network-level failures, never 4xx.
		return e.StatusCode == 0 || e.StatusCode >= 500
	case KindConfig, KindValidation, KindAuth, KindParse, KindSchemaMismatch:
		return false
	default:
		return false
	}
}

// HTTPStatus maps the error onto the status code the application edge should
// answer with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		if e.StatusCode == http.StatusForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstream:
		if e.StatusCode >= 500 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	case KindParse, KindSchemaMismatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns safe, secret-free text suitable for end users. It is
// deliberately vaguer than Message.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindConfig:
		return "The assistant is not configured correctly. Please contact support."
	case KindValidation:
		return "The question could not be processed. Please check your input and try again."
	case KindAuth:
		return "Authentication failed. Please contact support."
	case KindRateLimit:
		return "The assistant is receiving too many requests. Please wait a moment and retry."
	case KindTimeout:
		return "The assistant took too long to answer. Please try again."
	case KindParse, KindSchemaMismatch:
		return "The assistant returned an unexpected answer. Please try again."
	default:
		return "The assistant is temporarily unavailable. Please try again later."
	}
}

func configErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err into the package's classified error type.
func AsError(err error) (*Error, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}
