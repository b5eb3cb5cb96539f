package services

import (
	"campusbot/internal/health"
	"campusbot/internal/logging"
	"campusbot/internal/providers"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultCandidateTimeout = 60 * time.Second

// Candidate is one provider the selector will try
type Candidate struct {
	Kind   providers.Kind
	Config providers.Config
}

// Result is the outcome of a successful Execute. Attempts lists the
// candidates that failed before the winning one.
type Result struct {
	Text     string
	Provider providers.Kind
	Attempts []providers.Attempt
}

type selectorState int

const (
	stateStart selectorState = iota
	stateAttempting
	stateSucceeded
	stateFailed
)

// ExecuteOption customises one Execute call
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	logger    *slog.Logger
	onAttempt func(index int, kind providers.Kind)
}

// WithLogger scopes the attempt logs of one Execute call
func WithLogger(logger *slog.Logger) ExecuteOption {
	return func(o *executeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAttemptHook is called before each candidate is tried
func WithAttemptHook(fn func(index int, kind providers.Kind)) ExecuteOption {
	return func(o *executeOptions) {
		o.onAttempt = fn
	}
}

// ProviderSelector plans and executes provider attempts for one request.
// It holds no per-request state.
type ProviderSelector struct {
	registry *providers.Registry
	health   *health.Service
	metrics  *Metrics
}

// NewProviderSelector creates a selector. healthService and metrics may be nil.
func NewProviderSelector(registry *providers.Registry, healthService *health.Service, metrics *Metrics) *ProviderSelector {
	return &ProviderSelector{
		registry: registry,
		health:   healthService,
		metrics:  metrics,
	}
}

// Plan returns the ordered candidates for settings.
//
// An explicit selection yields exactly one candidate or a ConfigError; it
// never falls back to another provider. An explicit hosted selection is only
// usable with a key sent on the request. In auto mode every usable kind is a
// candidate, local runtime first, then the hosted order. Health state does
// not influence the plan.
func (s *ProviderSelector) Plan(settings EffectiveSettings) ([]Candidate, error) {
	if kind, ok := settings.Selection.Kind(); ok {
		cfg := settings.Config(kind)
		if kind.Hosted() && cfg.KeySource != providers.SourceRequest {
			return nil, &providers.ConfigError{
				Provider: kind,
				Reason:   "no API key was sent with the request; add your key in settings or switch to auto",
			}
		}
		if missing := cfg.Missing(); missing != "" {
			reason := "missing " + missing
			if !kind.Hosted() && strings.TrimSpace(cfg.BaseURL) != "" {
				if err := providers.ValidateBaseURL(cfg.BaseURL); err != nil {
					reason = err.Error()
				}
			}
			return nil, &providers.ConfigError{Provider: kind, Reason: reason}
		}
		return []Candidate{{Kind: kind, Config: cfg}}, nil
	}

	if !settings.Selection.IsAuto() {
		return nil, &providers.ConfigError{Reason: fmt.Sprintf("unknown selection %q", settings.Selection)}
	}

	order := append([]providers.Kind{providers.KindOllama}, settings.HostedOrder...)
	candidates := make([]Candidate, 0, len(order))
	for _, kind := range order {
		cfg := settings.Config(kind)
		if cfg.Usable() {
			candidates = append(candidates, Candidate{Kind: kind, Config: cfg})
		}
	}
	return candidates, nil
}

// Execute runs the plan: each candidate gets its own deadline, the first
// success wins, and exhaustion returns a *CompositeError listing every
// attempt. A cancelled parent context stops the walk.
func (s *ProviderSelector) Execute(ctx context.Context, settings EffectiveSettings, req providers.Request, opts ...ExecuteOption) (*Result, error) {
	o := executeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultCandidateTimeout
	}

	var (
		candidates []Candidate
		attempts   []providers.Attempt
		result     *Result
		next       int
	)

	state := stateStart
	for {
		switch state {
		case stateStart:
			planned, err := s.Plan(settings)
			if err != nil {
				return nil, err
			}
			candidates = planned
			if len(candidates) == 0 {
				o.logger.Warn("no usable provider", "selection", string(settings.Selection))
				state = stateFailed
				continue
			}
			state = stateAttempting

		case stateAttempting:
			if next >= len(candidates) {
				state = stateFailed
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("request cancelled after %d attempt(s): %w", len(attempts), err)
			}

			c := candidates[next]
			if o.onAttempt != nil {
				o.onAttempt(next, c.Kind)
			}
			text, attempt := s.attempt(ctx, c, req, timeout, logging.WithProvider(o.logger, string(c.Kind), next+1))
			next++
			if attempt != nil {
				attempts = append(attempts, *attempt)
				continue
			}
			result = &Result{Text: text, Provider: c.Kind, Attempts: attempts}
			state = stateSucceeded

		case stateSucceeded:
			return result, nil

		case stateFailed:
			return nil, &providers.CompositeError{Attempts: attempts}
		}
	}
}

// attempt calls one adapter under its own deadline. It returns a non-nil
// Attempt on failure.
func (s *ProviderSelector) attempt(ctx context.Context, c Candidate, req providers.Request, timeout time.Duration, logger *slog.Logger) (string, *providers.Attempt) {
	start := time.Now()

	adapter, ok := s.registry.Get(c.Kind)
	if !ok {
		return "", &providers.Attempt{Provider: c.Kind, Kind: providers.ErrUnreachable, Message: "no adapter registered"}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fitted := req.Fit(c.Config.ContextTokens, c.Config.MaxTokens)
	if dropped := len(req.History) - len(fitted.History); dropped > 0 {
		logger.Debug("history trimmed to fit context", "dropped_messages", dropped)
	}

	text, err := adapter.Generate(attemptCtx, fitted, c.Config)
	elapsed := time.Since(start)

	// a cancelled caller says nothing about the provider
	if s.health != nil && ctx.Err() == nil {
		s.health.Record(c.Kind, err, elapsed)
	}

	if err == nil {
		s.metrics.RecordAttempt(c.Kind, "success", elapsed)
		logger.Info("provider attempt succeeded", "elapsed_ms", elapsed.Milliseconds())
		return text, nil
	}

	ue, ok := providers.AsUpstream(err)
	if !ok {
		ue = &providers.UpstreamError{Provider: c.Kind, Kind: providers.ErrMalformed, Message: err.Error(), Err: err}
	}
	s.metrics.RecordAttempt(c.Kind, string(ue.Kind), elapsed)
	logger.Warn("provider attempt failed",
		"kind", string(ue.Kind),
		"status", ue.StatusCode,
		"error", ue.Message,
		"detail", ue.Detail,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return "", &providers.Attempt{
		Provider: c.Kind,
		Kind:     ue.Kind,
		Message:  ue.Message,
		Elapsed:  elapsed,
	}
}
