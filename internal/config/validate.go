package config

import (
	"fmt"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/internal/store"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Training.validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendSQLite, store.BackendBadger:
	default:
		return apperrors.NewValidation("store.backend", fmt.Sprintf("unknown backend %q", c.Store.Backend))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return apperrors.NewValidation("server.port", fmt.Sprintf("out of range (got %d)", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		return apperrors.NewValidation("server.rate_limit", "must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitBurst < 1 {
		return apperrors.NewValidation("server.rate_limit_burst", "must be >= 1 when rate limiting")
	}
	return nil
}

func (t *TrainingConfig) validate() error {
	switch {
	case t.MinComplexity <= 0:
		return apperrors.NewValidation("training.min_complexity", fmt.Sprintf("must be > 0 (got %d)", t.MinComplexity))
	case t.MaxComplexity < t.MinComplexity:
		return apperrors.NewValidation("training.max_complexity", "must be >= min_complexity")
	case t.InitialMaxComplexity < t.MinComplexity || t.InitialMaxComplexity > t.MaxComplexity:
		return apperrors.NewValidation("training.initial_max_complexity", "must lie within [min_complexity, max_complexity]")
	case t.Deadline <= 0:
		return apperrors.NewValidation("training.deadline", "must be positive")
	case t.LowThreshold <= 0 || t.HighThreshold <= t.LowThreshold:
		return apperrors.NewValidation("training.high_threshold", "must exceed low_threshold, both positive")
	case t.HighThreshold > t.Deadline:
		return apperrors.NewValidation("training.high_threshold", "must not exceed deadline")
	case t.TimeoutReduction <= 0 || t.TimeoutReduction >= 1:
		return apperrors.NewValidation("training.timeout_reduction", fmt.Sprintf("must be in (0, 1) (got %v)", t.TimeoutReduction))
	case t.MinTrainingExamples < 1:
		return apperrors.NewValidation("training.min_training_examples", "must be >= 1")
	case t.MinTrainingVerseRatio < 0:
		return apperrors.NewValidation("training.min_training_verse_ratio", "must be >= 0")
	case t.ProgressThrottlePct < 1:
		return apperrors.NewValidation("training.progress_throttle_pct", "must be >= 1")
	}
	return nil
}
