package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core/llm"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

// Strategy is chosen once per job and never re-checked mid-job.
type Strategy string

const (
	StrategyHeuristic Strategy = "heuristic"
	StrategyDelegated Strategy = "delegated"
)

// Base confidences per extraction path, before field-presence bonuses.
const (
	HeuristicBaseConfidence = 0.7
	DelegatedBaseConfidence = 0.9
	FallbackBaseConfidence  = 0.3
)

// Outcome records which path actually produced the fields.
type Outcome struct {
	Selected Strategy
	Used     Strategy
	Fallback bool
	Reason   string
}

// Label is the value stored on the receipt job.
func (o Outcome) Label() string {
	if o.Fallback {
		return string(o.Used) + "-fallback"
	}
	return string(o.Used)
}

// Delegate is the optional text-completion collaborator.
type Delegate interface {
	HealthCheck(ctx context.Context) bool
	Extract(ctx context.Context, prompt string) (string, error)
}

// Config bounds the delegated path.
type Config struct {
	HealthTimeout  time.Duration
	ExtractTimeout time.Duration
	MaxPromptChars int
}

func (c Config) withDefaults() Config {
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 5 * time.Second
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 15 * time.Second
	}
	if c.MaxPromptChars <= 0 {
		c.MaxPromptChars = llm.DefaultMaxPromptChars
	}
	return c
}

// Engine runs the heuristic strategy or the delegated one with a full
// heuristic fallback.
type Engine struct {
	cfg       Config
	heuristic *Heuristic
	delegate  Delegate
	logger    *slog.Logger
}

// NewEngine builds an engine. delegate may be nil, in which case only the
// heuristic strategy is ever selected.
func NewEngine(cfg Config, heuristic *Heuristic, delegate Delegate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if heuristic == nil {
		heuristic = NewHeuristic(nil)
	}
	return &Engine{cfg: cfg.withDefaults(), heuristic: heuristic, delegate: delegate, logger: logger}
}

// SelectStrategy probes the collaborator once, bounded by HealthTimeout.
func (e *Engine) SelectStrategy(ctx context.Context) Strategy {
	logger := common.LoggerFromContext(ctx, e.logger)
	if e.delegate == nil {
		return StrategyHeuristic
	}
	hctx, cancel := context.WithTimeout(ctx, e.cfg.HealthTimeout)
	defer cancel()
	start := time.Now()
	healthy := e.delegate.HealthCheck(hctx)
	logger.Info("extract.strategy.selected",
		"healthy", healthy,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if healthy {
		return StrategyDelegated
	}
	return StrategyHeuristic
}

// Extract produces candidate fields with the given strategy. The delegated
// path switches to the heuristic for the whole document when the
// collaborator fails, times out or answers with nothing parseable.
func (e *Engine) Extract(ctx context.Context, text string, strategy Strategy) (entity.ExtractedFields, Outcome) {
	logger := common.LoggerFromContext(ctx, e.logger)
	out := Outcome{Selected: strategy, Used: strategy}

	if strategy == StrategyDelegated && e.delegate != nil {
		fields, reason, ok := e.delegated(ctx, text)
		if ok {
			fields.Confidence = strategyConfidence(DelegatedBaseConfidence, fields)
			logger.Info("extract.delegated.ok", "confidence", fields.Confidence)
			return fields, out
		}
		logger.Warn("extract.strategy.fallback", "reason", reason)
		fields = e.heuristic.Extract(text)
		fields.Confidence = strategyConfidence(FallbackBaseConfidence, fields)
		out.Used, out.Fallback, out.Reason = StrategyHeuristic, true, reason
		return fields, out
	}

	out.Used = StrategyHeuristic
	fields := e.heuristic.Extract(text)
	fields.Confidence = strategyConfidence(HeuristicBaseConfidence, fields)
	logger.Info("extract.heuristic.ok",
		"has_amount", fields.Amount != nil,
		"has_vendor", fields.Vendor != nil,
		"has_date", fields.Date != nil,
		"items", len(fields.Items),
	)
	return fields, out
}

func (e *Engine) delegated(ctx context.Context, text string) (entity.ExtractedFields, string, bool) {
	prompt := llm.BuildPrompt(text, e.cfg.MaxPromptChars)
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ExtractTimeout)
	defer cancel()

	raw, err := e.delegate.Extract(cctx, prompt)
	if err != nil {
		return entity.ExtractedFields{}, "collaborator error: " + err.Error(), false
	}
	if raw == "" {
		return entity.ExtractedFields{}, "empty response", false
	}
	fields, ok := llm.ParseResponse(raw)
	if !ok {
		return entity.ExtractedFields{}, "unparseable response", false
	}
	return fields, "", true
}

func strategyConfidence(base float64, f entity.ExtractedFields) float64 {
	c := base
	if f.Amount != nil {
		c += 0.3
	}
	if f.Vendor != nil {
		c += 0.2
	}
	if f.Date != nil {
		c += 0.1
	}
	return min(c, 1)
}
