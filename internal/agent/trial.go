package agent

import (
	"context"
	"fmt"

	"github.com/brightforge/reflexagent/internal/convo"
	"github.com/brightforge/reflexagent/internal/reflection"
)

// defaultMaxTrials is used when ReflectionConfig.MaxTrials is left at its
// zero value, mirroring reflection.DefaultConfig's MaxTrials=5.
const defaultMaxTrials = 5

// TrialController is the Trial Controller (C7): it re-runs the Agent Loop
// across multiple independent attempts at the same task when reflection
// mode is multi_trial or hybrid-after-its-first-failure (spec.md §4.7).
//
// Grounded on original_source/src/tarsis/agent/task.py's
// execute_with_trials/_run_single_trial/_reset_for_next_trial.
type TrialController struct {
	loop *Loop
}

// NewTrialController wraps loop for multi-trial execution.
func NewTrialController(loop *Loop) *TrialController {
	return &TrialController{loop: loop}
}

// Execute runs trials until one succeeds or MaxTrials is exhausted
// (spec.md §4.7, steps 1-7). conversation must be empty (or freshly reset)
// on entry; trial 1's initial message is appended here, not by the
// caller, so that later trials can prepend a distinct banner instead.
func (c *TrialController) Execute(ctx context.Context, taskCtx *TaskContext, conversation *convo.Conversation, initialPrompt string) (*TaskResult, error) {
	maxTrials := c.loop.ReflectionConfig.MaxTrials
	if maxTrials <= 0 {
		maxTrials = defaultMaxTrials
	}

	var result *TaskResult
	var lastErr error

	for {
		taskCtx.TrialNumber++
		c.loop.Metrics.recordTrial()

		if taskCtx.TrialNumber == 1 {
			conversation.Append(convo.UserText(initialPrompt))
		} else {
			conversation.Append(convo.UserText(fmt.Sprintf(
				"--- Trial %d/%d ---\nA previous attempt at this task did not succeed. Try a different approach this time.\n\n%s",
				taskCtx.TrialNumber, maxTrials, initialPrompt,
			)))
		}

		result, lastErr = c.loop.runInner(ctx, taskCtx, conversation)

		if SuccessPredicate(taskCtx) {
			result.TrialsUsed = taskCtx.TrialNumber
			return result, nil
		}

		if taskCtx.AbortRequested() || taskCtx.TrialNumber >= maxTrials {
			break
		}

		c.loop.reflect(ctx, taskCtx, conversation, reflection.TriggerTrialFailure, map[string]any{
			"trial_number": taskCtx.TrialNumber,
			"summary":      summarizeFailedTrial(taskCtx, lastErr),
		})

		taskCtx.ResetForNextTrial()
		conversation.Reset()
	}

	taskCtx.Status = StatusFailed
	if lastErr == nil {
		lastErr = fmt.Errorf("all %d trials failed", maxTrials)
	}
	return &TaskResult{
		Status:            StatusFailed,
		CompletionMessage: taskCtx.CompletionMessage,
		IterationsUsed:    taskCtx.IterationCount,
		TrialsUsed:        taskCtx.TrialNumber,
		Err:               lastErr,
	}, lastErr
}

// summarizeFailedTrial builds the TRIAL_FAILURE reflection's "summary"
// context field (spec.md §4.2).
func summarizeFailedTrial(taskCtx *TaskContext, err error) string {
	reason := "did not reach a successful completion"
	if err != nil {
		reason = err.Error()
	} else if taskCtx.ValidationPerformed && !taskCtx.ValidationPassed {
		reason = "validation did not pass"
	}
	return fmt.Sprintf(
		"iterations_used=%d files_modified=%d validation_performed=%v validation_passed=%v reason=%s",
		taskCtx.IterationCount, len(taskCtx.FilesModified), taskCtx.ValidationPerformed, taskCtx.ValidationPassed, reason,
	)
}
