package router

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/eval/cel"
	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// Config is an ordered list of rules with a fallback target
type Config struct {
	Rules    []Rule `json:"rules" yaml:"rules"`
	Fallback string `json:"fallback" yaml:"fallback"`
}

// Rule represents a CEL-based routing rule
type Rule struct {
	Condition string `json:"condition" yaml:"condition"`
	Target    string `json:"target" yaml:"target"`
}

// Router builds routes whose conditions read cells of one store
type Router struct {
	celEvaluator *cel.Evaluator
	store        *tracking.Store
	logger       *zap.Logger
}

// NewRouter creates a new router
func NewRouter(evaluator *cel.Evaluator, store *tracking.Store, logger *zap.Logger) *Router {
	if evaluator == nil {
		evaluator = cel.NewEvaluator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		celEvaluator: evaluator,
		store:        store,
		logger:       logger,
	}
}

// Route validates config and returns an expression evaluating to the
// target of the first matching rule, or the fallback.
func (r *Router) Route(config *Config) (*Route, error) {
	if err := r.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid route: %w", err)
	}
	cp := Config{
		Rules:    append([]Rule(nil), config.Rules...),
		Fallback: config.Fallback,
	}
	return &Route{router: r, config: cp}, nil
}

// Route is a tracked routing decision
type Route struct {
	router *Router
	config Config
}

// Eval implements helper.Expr. Only conditions up to the first match are
// evaluated, so only their cells become dependencies.
func (rt *Route) Eval(s *helper.Scope) (any, error) {
	return rt.router.routeDeterministic(s, &rt.config), nil
}

// Config returns a copy of the route's configuration
func (rt *Route) Config() Config {
	return Config{
		Rules:    append([]Rule(nil), rt.config.Rules...),
		Fallback: rt.config.Fallback,
	}
}

// validateConfig validates the routing configuration
func (r *Router) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.Fallback == "" {
		return fmt.Errorf("fallback route is required")
	}

	for i, rule := range config.Rules {
		if rule.Condition == "" {
			return fmt.Errorf("rule %d: condition is required", i)
		}
		if rule.Target == "" {
			return fmt.Errorf("rule %d: target is required", i)
		}
		if err := r.celEvaluator.ValidateExpression(rule.Condition); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}

	return nil
}
