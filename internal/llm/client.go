// Package llm is a structured chat-completion client: it turns a question
// plus retrieved note context into a validated, typed answer from a remote
// model endpoint, surviving network flakiness, rate limiting and malformed
// output. Every failure is classified into the package's error taxonomy
// before it is returned.
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

const completionsPath = "/chat/completions"

// Config is the immutable client configuration, validated once at
// construction. A misconfiguration is a deployment mistake and surfaces
// immediately as a Config error rather than failing per call.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration // per-attempt wall-clock bound, default 30s
	Retry    RetryPolicy   // zero value means DefaultRetryPolicy
	Defaults Params        // client-level parameter defaults
}

// Client issues structured completion calls. It holds no per-call state and
// is safe to share across concurrent calls.
type Client struct {
	model     string
	defaults  Params
	retry     RetryPolicy
	transport *transport
	validate  *validator.Validate
	sleep     func(ctx context.Context, d time.Duration) error
}

// New validates cfg and builds a client. All construction-time invariants
// (credential present, base URL well-formed, model non-empty, defaults within
// range) are checked here so calls never fail on configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, configErrorf("api key is empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, configErrorf("model is empty")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, configErrorf("base url %q is not a valid absolute URL", cfg.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, configErrorf("base url scheme %q is not http(s)", parsed.Scheme)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Timeout < 0 {
		return nil, configErrorf("timeout must be positive")
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cerr := cfg.Retry.validate(); cerr != nil {
		return nil, cerr
	}
	if _, cerr := mergeParams(cfg.Defaults); cerr != nil {
		return nil, configErrorf("default parameters: %s", cerr.Message)
	}

	return &Client{
		model:    cfg.Model,
		defaults: cfg.Defaults,
		retry:    cfg.Retry,
		transport: &transport{
			httpClient: &http.Client{},
			baseURL:    cfg.BaseURL,
			apiKey:     cfg.APIKey,
			timeout:    cfg.Timeout,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		sleep:    waitCtx,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Request is one completion call: an optional system prompt, bounded history,
// the final user prompt and the output contract the model must satisfy.
type Request struct {
	System     string
	History    []Message
	User       string
	Params     Params
	SchemaName string
	Schema     *jsonschema.Schema
}

// Result is the only success value the client returns. Data is the typed
// value recovered from the model output; Attempts counts underlying network
// calls including the successful one.
type Result[T any] struct {
	Data      T
	RawText   string
	Model     string
	Usage     *Usage
	RequestID string
	Attempts  int
}

// Complete runs the full pipeline: build and validate the request, submit it
// through the retry-wrapped transport, decode the envelope, then extract and
// validate the structured output. The first failure at any stage
// short-circuits the rest and is returned classified; no stage attempts
// recovery on behalf of a later one.
func Complete[T any](ctx context.Context, c *Client, req Request) (*Result[T], error) {
	chatReq, cerr := buildRequest(c.model, req.System, req.History, req.User, req.Params.overlay(c.defaults), req.SchemaName, req.Schema)
	if cerr != nil {
		return nil, cerr
	}
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "encode completion request", cause: err}
	}

	raw, attempts, cerr := c.execute(ctx, completionsPath, body)
	if cerr != nil {
		return nil, cerr
	}

	parsed, cerr := decodeResponse(raw, c.model)
	if cerr != nil {
		return nil, cerr
	}

	var data T
	if cerr := extractStructured(c.validate, parsed.text, &data); cerr != nil {
		return nil, cerr
	}

	return &Result[T]{
		Data:      data,
		RawText:   parsed.text,
		Model:     parsed.model,
		Usage:     parsed.usage,
		RequestID: parsed.requestID,
		Attempts:  attempts,
	}, nil
}
