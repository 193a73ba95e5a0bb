package reflection

import (
	"os"
	"strconv"
	"strings"
)

// Mode selects how reflection interacts with task retries (spec.md §3, §4.6).
type Mode string

const (
	ModeWithinTask Mode = "within_task"
	ModeMultiTrial Mode = "multi_trial"
	ModeHybrid     Mode = "hybrid"
	ModeDisabled   Mode = "disabled"
)

// Config is the immutable-per-task reflection configuration (spec.md §3).
type Config struct {
	Enabled     bool
	Mode        Mode
	MemorySize  int
	Temperature float64

	TriggerValidationFailure   bool
	TriggerToolError           bool
	TriggerConsecutiveMistakes bool
	TriggerPeriodic            bool
	TriggerTrialFailure        bool
	TriggerPreCompletion       bool

	MaxTrials            int
	PersistAcrossIssues  bool
	RepoCacheDir         string
}

// DefaultConfig mirrors the original implementation's dataclass defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                    true,
		Mode:                       ModeWithinTask,
		MemorySize:                 defaultMemorySize,
		Temperature:                0.5,
		TriggerValidationFailure:   true,
		TriggerToolError:           true,
		TriggerConsecutiveMistakes: true,
		TriggerPeriodic:            true,
		TriggerTrialFailure:        true,
		TriggerPreCompletion:       true,
		MaxTrials:                  5,
		PersistAcrossIssues:        false,
		RepoCacheDir:               "",
	}
}

// FromEnv parses the REFLEXION_* environment variables listed in spec.md
// §6, overlaying them on DefaultConfig. Unset variables keep their default;
// malformed values are ignored rather than raising, matching the
// original's from_env() tolerance.
func FromEnv() Config {
	c := DefaultConfig()

	if v, ok := os.LookupEnv("REFLEXION_ENABLED"); ok {
		c.Enabled = parseBool(v, c.Enabled)
	}
	if v, ok := os.LookupEnv("REFLEXION_MODE"); ok && v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("REFLEXION_MEMORY_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MemorySize = n
		}
	}
	if v, ok := os.LookupEnv("REFLEXION_TEMPERATURE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
	if v, ok := os.LookupEnv("REFLEXION_TRIGGER_VALIDATION_FAILURE"); ok {
		c.TriggerValidationFailure = parseBool(v, c.TriggerValidationFailure)
	}
	if v, ok := os.LookupEnv("REFLEXION_TRIGGER_TOOL_ERROR"); ok {
		c.TriggerToolError = parseBool(v, c.TriggerToolError)
	}
	if v, ok := os.LookupEnv("REFLEXION_TRIGGER_CONSECUTIVE_MISTAKES"); ok {
		c.TriggerConsecutiveMistakes = parseBool(v, c.TriggerConsecutiveMistakes)
	}
	if v, ok := os.LookupEnv("REFLEXION_TRIGGER_PERIODIC"); ok {
		c.TriggerPeriodic = parseBool(v, c.TriggerPeriodic)
	}
	if v, ok := os.LookupEnv("REFLEXION_TRIGGER_TRIAL_FAILURE"); ok {
		c.TriggerTrialFailure = parseBool(v, c.TriggerTrialFailure)
	}
	if v, ok := os.LookupEnv("REFLEXION_TRIGGER_PRE_COMPLETION"); ok {
		c.TriggerPreCompletion = parseBool(v, c.TriggerPreCompletion)
	}
	if v, ok := os.LookupEnv("REFLEXION_MAX_TRIALS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxTrials = n
		}
	}
	if v, ok := os.LookupEnv("REFLEXION_PERSIST_ACROSS_ISSUES"); ok {
		c.PersistAcrossIssues = parseBool(v, c.PersistAcrossIssues)
	}
	if v, ok := os.LookupEnv("REFLEXION_REPO_CACHE_DIR"); ok && v != "" {
		c.RepoCacheDir = v
	}

	return c
}

func (m Mode) enabledFor(t Trigger, c Config) bool {
	switch t {
	case TriggerValidationFailure:
		return c.TriggerValidationFailure
	case TriggerToolError:
		return c.TriggerToolError
	case TriggerConsecutiveMistakes:
		return c.TriggerConsecutiveMistakes
	case TriggerPeriodic:
		return c.TriggerPeriodic
	case TriggerTrialFailure:
		return c.TriggerTrialFailure
	case TriggerPreCompletion:
		return c.TriggerPreCompletion
	default:
		return false
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
