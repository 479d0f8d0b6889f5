// Package ask orchestrates a question through rate limiting, input
// validation, intent extraction, schema validation, query compilation and
// execution, and answer generation. Each gate terminates with a typed
// *Error except answer generation, which recovers with a fallback answer.
package ask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/forecastqa/forecastqa/internal/config"
	"github.com/forecastqa/forecastqa/internal/intent"
	"github.com/forecastqa/forecastqa/internal/llm"
	"github.com/forecastqa/forecastqa/internal/observability"
	"github.com/forecastqa/forecastqa/internal/sqlgen"
	"github.com/forecastqa/forecastqa/internal/store"
)

// Store runs a compiled plan. Satisfied by *store.Store.
type Store interface {
	Query(ctx context.Context, plan sqlgen.Plan) ([]store.Row, error)
}

// Limiter answers whether a caller may proceed. Satisfied by
// *ratelimit.Limiter.
type Limiter interface {
	Allow(caller string) bool
}

type Service struct {
	logger  *slog.Logger
	cfg     config.AskConfig
	ai      config.AIConfig
	llm     llm.Client
	store   Store
	limiter Limiter
	clock   clockwork.Clock
}

type Result struct {
	Answer    string
	QueryType intent.QueryType
	Citations []Citation
	Fallback  bool
}

func NewService(logger *slog.Logger, cfg config.AskConfig, ai config.AIConfig, client llm.Client, st Store, limiter Limiter, clock clockwork.Clock) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = 5
	}
	if cfg.MinQuestionRunes <= 0 {
		cfg.MinQuestionRunes = 3
	}
	if cfg.MaxQuestionRunes <= 0 {
		cfg.MaxQuestionRunes = 500
	}
	return &Service{
		logger:  logger,
		cfg:     cfg,
		ai:      ai,
		llm:     client,
		store:   st,
		limiter: limiter,
		clock:   clock,
	}
}

// Ask runs the full pipeline for one question.
func (s *Service) Ask(ctx context.Context, caller, question string) (Result, error) {
	result, err := s.ask(ctx, caller, question)

	outcome := "success"
	if err != nil {
		var aerr *Error
		if errors.As(err, &aerr) {
			outcome = string(aerr.Code)
		} else {
			outcome = string(CodeInternal)
		}
	} else if result.Fallback {
		outcome = "fallback"
	}
	observability.ObserveAskOutcome(outcome)
	return result, err
}

func (s *Service) ask(ctx context.Context, caller, question string) (Result, error) {
	if !s.limiter.Allow(caller) {
		return Result{}, newError(CodeRateLimited, "too many questions, try again shortly")
	}

	question = strings.TrimSpace(question)
	if err := s.validateQuestion(question); err != nil {
		return Result{}, err
	}

	today := s.clock.Now().UTC()
	raw, err := s.llm.CompleteJSON(ctx, s.intentPrompt(question, today))
	if err != nil {
		return Result{}, s.classifyLLMError(err)
	}

	// Reserved shapes: rejection before unanswerable, both before schema
	// validation, so a rejection-shaped object never reaches compilation.
	if reserved, ok := reservedShape(raw); ok {
		return Result{}, reserved
	}

	in, err := intent.Validate(raw)
	if err != nil {
		s.logger.Warn("intent failed schema validation", "error", err, "raw_intent", string(raw))
		return Result{}, wrapError(CodeSchemaInvalid, "could not turn the question into a query, please rephrase", err)
	}
	observability.ObserveQueryType(string(in.QueryType))

	plan, err := sqlgen.Compile(in, today)
	if err != nil {
		// Unreachable with a validated intent. Loud log, silent user message.
		s.logger.Error("validated intent failed to compile", "error", err, "query_type", in.QueryType)
		return Result{}, wrapError(CodeInternal, "internal error", err)
	}

	rows, err := s.store.Query(ctx, plan)
	if err != nil {
		s.logger.Error("forecast query failed", "error", err, "query_type", in.QueryType)
		return Result{}, wrapError(CodeDBError, "could not read forecast data", err)
	}

	result := Result{
		QueryType: in.QueryType,
		Citations: buildCitations(rows, s.cfg.MaxCitations),
	}

	answer, err := s.llm.CompleteText(ctx, s.answerPrompt(question, in.QueryType, rows))
	if err != nil {
		s.logger.Warn("answer generation failed, using fallback", "error", err, "query_type", in.QueryType)
		observability.IncrementFallbackAnswers()
		result.Answer = fallbackAnswer(in.QueryType, rows)
		result.Fallback = true
		return result, nil
	}
	result.Answer = answer
	return result, nil
}

// disallowedMarkers are characters with no place in a weather question:
// HTML-like brackets, double quotes, statement separators and SQL comment
// markers. Apostrophes stay legal ("what's").
var disallowedMarkers = []string{"<", ">", `"`, "`", ";", "--", "/*"}

// injectionPatterns is the fixed phrase list that classifies a question as
// a manipulation attempt without spending an LLM call on it.
var injectionPatterns = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"disregard your instructions",
	"you are now",
	"system prompt",
	"pretend to be",
	"act as if",
}

func (s *Service) validateQuestion(question string) *Error {
	runes := utf8.RuneCountInString(question)
	if runes < s.cfg.MinQuestionRunes {
		return newError(CodeInvalidInput, fmt.Sprintf("question must be at least %d characters", s.cfg.MinQuestionRunes))
	}
	if runes > s.cfg.MaxQuestionRunes {
		return newError(CodeInvalidInput, fmt.Sprintf("question must be at most %d characters", s.cfg.MaxQuestionRunes))
	}
	for _, marker := range disallowedMarkers {
		if strings.Contains(question, marker) {
			return newError(CodeInvalidInput, "question contains disallowed characters")
		}
	}
	lowered := strings.ToLower(question)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lowered, pattern) {
			return newError(CodeSecurityRejected, "question was rejected as an instruction override attempt")
		}
	}
	return nil
}

func reservedShape(raw json.RawMessage) (*Error, bool) {
	var probe struct {
		Rejection    string `json:"rejection"`
		Unanswerable string `json:"unanswerable"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false
	}
	if reason := strings.TrimSpace(probe.Rejection); reason != "" {
		return newError(CodeSecurityRejected, reason), true
	}
	if reason := strings.TrimSpace(probe.Unanswerable); reason != "" {
		return newError(CodeUnanswerable, reason), true
	}
	return nil, false
}

func (s *Service) classifyLLMError(err error) *Error {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return wrapError(CodeLLMTimeout, "the model took too long to respond", err)
	case errors.Is(err, llm.ErrAuth):
		return wrapError(CodeLLMAuth, "the model rejected our credentials", err)
	case errors.Is(err, llm.ErrRateLimited):
		return wrapError(CodeLLMRateLimited, "the model is rate limiting us, try again shortly", err)
	case errors.Is(err, llm.ErrUnavailable):
		return wrapError(CodeLLMUnavailable, "the model is unavailable, try again shortly", err)
	default:
		// CompleteJSON extraction failures land here: the provider answered
		// but not with anything intent-shaped.
		s.logger.Warn("model reply was not intent-shaped", "error", err)
		return wrapError(CodeSchemaInvalid, "could not turn the question into a query, please rephrase", err)
	}
}
