// Package config loads aligner configuration from YAML and the
// environment.
package config

import (
	"time"

	"github.com/FocuswithJustin/JuniperAlign/internal/store"
)

// Config is the root application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Training TrainingConfig `yaml:"training"`
	Store    store.Config   `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
	Context  ContextConfig  `yaml:"context"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// TrainingConfig controls the training orchestrator. Complexities are in
// the units of reduce.Complexity.
type TrainingConfig struct {
	InitialMaxComplexity int           `yaml:"initial_max_complexity" env:"TRAINING_INITIAL_MAX_COMPLEXITY" env-default:"400000"`
	MinComplexity        int           `yaml:"min_complexity"         env:"TRAINING_MIN_COMPLEXITY"         env-default:"20000"`
	MaxComplexity        int           `yaml:"max_complexity"         env:"TRAINING_MAX_COMPLEXITY"         env-default:"2000000"`
	Deadline             time.Duration `yaml:"deadline"               env:"TRAINING_DEADLINE"               env-default:"18m"`
	HighThreshold        time.Duration `yaml:"high_threshold"         env:"TRAINING_HIGH_THRESHOLD"         env-default:"15m"`
	LowThreshold         time.Duration `yaml:"low_threshold"          env:"TRAINING_LOW_THRESHOLD"          env-default:"5m"`
	TimeoutReduction     float64       `yaml:"timeout_reduction"      env:"TRAINING_TIMEOUT_REDUCTION"      env-default:"0.75"`
	MinTrainingExamples  int           `yaml:"min_training_examples"  env:"TRAINING_MIN_EXAMPLES"           env-default:"5"`

	// TrainOnlyOnCurrentBook drops every other book before trimming and
	// restores them only to reach MinTrainingVerseRatio.
	TrainOnlyOnCurrentBook bool    `yaml:"train_only_on_current_book" env:"TRAINING_CURRENT_BOOK_ONLY"  env-default:"false"`
	MinTrainingVerseRatio  float64 `yaml:"min_training_verse_ratio"   env:"TRAINING_MIN_VERSE_RATIO"    env-default:"1.0"`
	KeepAlignmentMemory    bool    `yaml:"keep_alignment_memory"      env:"TRAINING_KEEP_MEMORY"        env-default:"true"`
	IncludeCorpus          bool    `yaml:"include_corpus"             env:"TRAINING_INCLUDE_CORPUS"     env-default:"true"`
	AutoTrain              bool    `yaml:"auto_train"                 env:"TRAINING_AUTO"               env-default:"true"`
	EvaluateTestVerses     bool    `yaml:"evaluate_test_verses"       env:"TRAINING_EVALUATE"           env-default:"false"`
	ProgressThrottlePct    int     `yaml:"progress_throttle_pct"      env:"TRAINING_PROGRESS_STEP"      env-default:"1"`
}

// MidThreshold is the elapsed-time target used when growing the budget.
func (t TrainingConfig) MidThreshold() time.Duration {
	return (t.HighThreshold + t.LowThreshold) / 2
}

// Clamp bounds a complexity budget to [MinComplexity, MaxComplexity].
func (t TrainingConfig) Clamp(v int) int {
	return max(t.MinComplexity, min(t.MaxComplexity, v))
}

// CacheConfig sizes the in-memory hot tier of the model cache.
type CacheConfig struct {
	MaxEntries int   `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"8"`
	MaxBytes   int64 `yaml:"max_bytes"   env:"CACHE_MAX_BYTES"   env-default:"268435456"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"127.0.0.1"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8085"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowedOrigins  []string      `yaml:"allowed_origins"  env:"SERVER_ALLOWED_ORIGINS"  env-separator:","`
	// APIKey enables X-API-Key authentication when set.
	APIKey         string  `yaml:"api_key"          env:"ALIGNER_API_KEY"`
	RateLimit      float64 `yaml:"rate_limit"       env:"SERVER_RATE_LIMIT"       env-default:"0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"SERVER_RATE_LIMIT_BURST" env-default:"10"`
}

// ContextConfig names the project being aligned; it selects the model
// cache keys.
type ContextConfig struct {
	BibleID        string `yaml:"bible_id"        env:"CONTEXT_BIBLE_ID"`
	BookID         string `yaml:"book_id"         env:"CONTEXT_BOOK_ID"`
	Chapter        string `yaml:"chapter"         env:"CONTEXT_CHAPTER"`
	TargetLanguage string `yaml:"target_language" env:"CONTEXT_TARGET_LANGUAGE"`
	SourceLanguage string `yaml:"source_language" env:"CONTEXT_SOURCE_LANGUAGE"`
}
