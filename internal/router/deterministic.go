package router

import (
	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/helper"
)

// routeDeterministic evaluates rules in order and returns the first
// matching target. A rule that fails or yields a non-boolean is skipped.
func (r *Router) routeDeterministic(s *helper.Scope, config *Config) string {
	for i, rule := range config.Rules {
		r.logger.Debug("evaluating rule",
			zap.Int("rule_index", i),
			zap.String("condition", rule.Condition),
		)

		// Evaluate the condition
		result, err := r.celEvaluator.Evaluate(s, rule.Condition, r.store)
		if err != nil {
			r.logger.Warn("rule evaluation error",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			// Continue to next rule on error
			continue
		}

		// Check if condition is true
		matched, ok := result.(bool)
		if !ok {
			r.logger.Warn("rule condition did not return boolean",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Any("result", result),
			)
			continue
		}

		if matched {
			r.logger.Debug("rule matched",
				zap.Int("rule_index", i),
				zap.String("target", rule.Target),
			)
			return rule.Target
		}
	}

	// No rules matched, use fallback
	r.logger.Debug("no rules matched, using fallback",
		zap.String("fallback", config.Fallback),
	)
	return config.Fallback
}
