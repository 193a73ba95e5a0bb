// Package validation declares the multi-tier validation-runner
// collaborator contract (spec.md §6): the run_validation tool calls
// through a Runner to execute the repository's own test/lint/build
// commands and report a structured result. No concrete runner
// implementation is in scope for this module.
package validation

import (
	"context"
	"time"
)

// Status is the outcome of one validation tier or of the overall report.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Task describes what to validate: the working copy path and branch, and
// which tiers to run (empty means "the runner's own default ladder").
type Task struct {
	RepoPath string
	Branch   string
	Tiers    []string
}

// TierResult is one tier's outcome (e.g. "syntax", "lint", "unit_tests").
type TierResult struct {
	Tier     string
	Status   Status
	Summary  string
	Details  string
	Duration time.Duration
}

// Report is the run_validation tool's structured result (spec.md §4.6's
// context-update rule checks its Summary via substring match for
// "passed"/"success"/"skipped").
type Report struct {
	Status   Status
	Tiers    []TierResult
	Summary  string
	Details  string
	Duration time.Duration
}

// Runner is the external collaborator interface run_validation dispatches
// through (spec.md §6).
type Runner interface {
	Run(ctx context.Context, task Task) (*Report, error)
}
