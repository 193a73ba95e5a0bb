package agent

import (
	"sort"
	"sync"
)

// Status is the Task Context's lifecycle state (spec.md §3).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusAborted    Status = "aborted"
)

// TaskConfig is the immutable-per-task configuration (spec.md §3).
type TaskConfig struct {
	IssueNumber            string
	Repo                   string
	DefaultBranch          string
	MaxIterations          int
	MaxConsecutiveMistakes int
}

// DefaultTaskConfig returns spec.md's defaults (max_iterations=25,
// max_consecutive_mistakes=3).
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		MaxIterations:          25,
		MaxConsecutiveMistakes: 3,
	}
}

// TaskContext is the mutable state threaded through one trial of the inner
// loop (spec.md §3). It is not safe for concurrent use by design — spec.md
// §5 guarantees exactly one goroutine drives a given task's iterations.
type TaskContext struct {
	Status Status

	IterationCount             int
	ConsecutiveMistakes        int
	ConsecutiveEmptyResponses  int

	FilesAccessed set
	FilesModified set

	BranchName string
	PRURL      string

	ToolsUsedCount map[string]int

	ValidationPerformed bool
	ValidationPassed    bool

	LastValidationIteration int
	LastReflectionIteration int

	TrialNumber int

	// OriginalTaskText is the initial prompt, kept for reflection context
	// (pre_completion's "task_text" field, spec.md §4.2) since TaskContext
	// has no other way to see what the conversation opened with.
	OriginalTaskText string

	mu             sync.Mutex
	abortRequested bool

	CompletionMessage string
}

// NewTaskContext returns a fresh TaskContext ready for trial 1.
func NewTaskContext() *TaskContext {
	return &TaskContext{
		Status:         StatusPending,
		TrialNumber:    1,
		FilesAccessed:  newSet(),
		FilesModified:  newSet(),
		ToolsUsedCount: make(map[string]int),
	}
}

// RequestAbort sets abort_requested. Safe to call from another goroutine
// (spec.md §5, "abort_requested ... checked at the top of each iteration").
func (t *TaskContext) RequestAbort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abortRequested = true
}

func (t *TaskContext) AbortRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.abortRequested
}

// set is an unordered set of strings (files_accessed / files_modified).
type set map[string]struct{}

func newSet() set { return make(set) }

func (s set) Add(v string) { s[v] = struct{}{} }

func (s set) Slice() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ApplyToolEffect implements the context-update rules table (spec.md §4.6)
// for one successfully-executed tool call. metadata is the tool's
// structured side-channel (decoded from its ToolResult.Content where the
// handler encodes one; see internal/tools' handlers).
func (t *TaskContext) ApplyToolEffect(toolName string, metadata map[string]any) {
	switch toolName {
	case "create_branch", "create_branch_local":
		if v, ok := metadata["branch_name"].(string); ok && v != "" {
			t.BranchName = v
		}
	case "modify_file":
		if v, ok := metadata["file_path"].(string); ok && v != "" {
			t.FilesModified.Add(v)
		}
		t.resetValidationOnModify()
	case "commit_changes":
		if v, ok := metadata["files"].([]any); ok {
			for _, f := range v {
				if s, ok := f.(string); ok && s != "" {
					t.FilesModified.Add(s)
				}
			}
		}
		t.resetValidationOnModify()
	case "modify_files_local":
		if v, ok := metadata["files_modified"].([]any); ok {
			for _, f := range v {
				if s, ok := f.(string); ok && s != "" {
					t.FilesModified.Add(s)
				}
			}
		}
		t.resetValidationOnModify()
	case "create_pull_request":
		if v, ok := metadata["pr_url"].(string); ok && v != "" {
			t.PRURL = v
		}
	case "read_file":
		if v, ok := metadata["file_path"].(string); ok && v != "" {
			t.FilesAccessed.Add(v)
		}
	case "run_validation":
		t.ValidationPerformed = true
		t.LastValidationIteration = t.IterationCount
	}
}

// resetValidationOnModify implements invariant I-T1: any file-modifying
// tool resets both validation flags.
func (t *TaskContext) resetValidationOnModify() {
	if t.ValidationPerformed {
		t.ValidationPerformed = false
		t.ValidationPassed = false
	}
}

// ResetForNextTrial implements spec.md §4.7 step 6's preserve/clear list
// for a failed, non-final trial: iteration and mistake counters, the
// accessed/modified file sets, branch/PR identifiers, validation flags,
// the last-reflection marker, the completion message and the abort flag
// are all cleared and status returns to pending; TrialNumber,
// ToolsUsedCount (a running total across trials) and OriginalTaskText are
// left untouched, and the Conversation itself is reset separately by the
// caller (TrialController owns it, not TaskContext).
func (t *TaskContext) ResetForNextTrial() {
	t.IterationCount = 0
	t.ConsecutiveMistakes = 0
	t.ConsecutiveEmptyResponses = 0
	t.FilesAccessed = newSet()
	t.FilesModified = newSet()
	t.BranchName = ""
	t.PRURL = ""
	t.ValidationPerformed = false
	t.ValidationPassed = false
	t.LastValidationIteration = 0
	t.LastReflectionIteration = 0
	t.CompletionMessage = ""
	t.Status = StatusPending

	t.mu.Lock()
	t.abortRequested = false
	t.mu.Unlock()
}
