// Package agent implements the Agent Loop (C6): the sequential,
// single-iteration state machine that drives one coding task from an
// initial prompt to completion, failure, or abort (spec.md §4.6).
//
// Grounded on original_source/src/tarsis/agent/task.py's two-level
// structure (_initiate_task_loop's outer driver fused with
// _recursively_make_requests' per-call body into one Go for loop — Go has
// no need for Python's recursive-call/outer-driver split) and re-expressed
// in a phase-shaped loop idiom: guard, build prompt, call provider,
// extract tool uses, dispatch, persist.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brightforge/reflexagent/internal/convo"
	"github.com/brightforge/reflexagent/internal/prompt"
	"github.com/brightforge/reflexagent/internal/reflection"
	"github.com/brightforge/reflexagent/internal/vcs"
)

// maxConsecutiveEmptyResponses bounds the tool-free-response retry budget
// before the loop gives up (spec.md §4.6, mirroring the original's
// MAX_CONSECUTIVE_EMPTY_RESPONSES).
const maxConsecutiveEmptyResponses = 5

// continuePrompt is the literal continuation message substituted whenever
// an iteration neither calls a tool nor ends the task, grounded on
// task.py's hardcoded string.
const continuePrompt = "Please continue with the next step or use the attempt_completion tool if you're done."

// IncompletePhrases are the lowercased substrings task.py checks for in a
// pre-completion reflection's insight to decide whether to reject an
// attempt_completion call (spec.md §4.6, #6). It is exported so callers can
// tune the pre-completion gate.
var IncompletePhrases = []string{
	"incomplete", "missing", "not created", "haven't", "did not", "didn't",
	"should have", "need to", "required but", "not all", "partially",
}

// TaskResult is what Execute returns: the final task outcome plus enough
// bookkeeping for the webhook/CLI layer to report on it.
type TaskResult struct {
	Status            Status
	CompletionMessage string
	IterationsUsed    int
	TrialsUsed        int
	Mode              reflection.Mode
	Err               error
}

// Loop is the Agent Loop (C6). One Loop drives one task; it owns no
// mutable task state itself (that lives in TaskContext) so the same Loop
// value can in principle be reused across tasks sharing a provider,
// registry and reflection manager.
type Loop struct {
	Provider   LLMProvider
	Registry   *ToolRegistry
	Reflection *reflection.Manager
	Prompt     *prompt.Builder
	Metrics    *Metrics

	TaskConfig       TaskConfig
	ReflectionConfig reflection.Config

	Model       string
	MaxTokens   int
	Temperature float64

	// Workspace/WorkspacePath, when set, are cleaned up unconditionally
	// when Execute returns (spec.md §4.6, #9: the loop always releases
	// its clone, regardless of outcome).
	Workspace     vcs.Workspace
	WorkspacePath string
}

// NewLoop constructs a Loop with the given collaborators, defaulting
// MaxTokens/TaskConfig/ReflectionConfig when left zero.
func NewLoop(provider LLMProvider, registry *ToolRegistry, reflector *reflection.Manager, builder *prompt.Builder) *Loop {
	if builder == nil {
		builder = prompt.New()
	}
	return &Loop{
		Provider:         provider,
		Registry:         registry,
		Reflection:       reflector,
		Prompt:           builder,
		Metrics:          NewMetrics(),
		TaskConfig:       DefaultTaskConfig(),
		ReflectionConfig: reflection.DefaultConfig(),
		MaxTokens:        4096,
	}
}

// Execute runs a task to completion, dispatching on reflection mode
// (spec.md §4.6, "execute(initial_prompt) selects the mode"). owner/repo/
// issue identify the task for reflection cache persistence (spec.md §4.2);
// initialPrompt is the first user message describing the work.
func (l *Loop) Execute(ctx context.Context, taskCtx *TaskContext, conversation *convo.Conversation, owner, repo, issue, initialPrompt string) (*TaskResult, error) {
	taskCtx.OriginalTaskText = initialPrompt
	taskCtx.Status = StatusInProgress

	if l.Reflection != nil {
		l.Reflection.Initialize(owner, repo)
	}
	defer func() {
		if l.Reflection != nil {
			l.Reflection.Finalize(owner, repo, issue)
		}
		if l.Workspace != nil && l.WorkspacePath != "" {
			_ = l.Workspace.Cleanup(context.Background(), l.WorkspacePath)
		}
	}()

	switch l.ReflectionConfig.Mode {
	case reflection.ModeMultiTrial:
		taskCtx.TrialNumber = 0
		return NewTrialController(l).Execute(ctx, taskCtx, conversation, initialPrompt)

	case reflection.ModeHybrid:
		conversation.Append(convo.UserText(initialPrompt))
		result, _ := l.runInner(ctx, taskCtx, conversation)
		if SuccessPredicate(taskCtx) {
			result.Mode = reflection.ModeHybrid
			result.TrialsUsed = 1
			return result, nil
		}

		taskCtx.ResetForNextTrial()
		conversation.Reset()
		taskCtx.TrialNumber = 0
		tcResult, tcErr := NewTrialController(l).Execute(ctx, taskCtx, conversation, initialPrompt)
		if tcResult != nil {
			tcResult.Mode = reflection.ModeHybrid
		}
		return tcResult, tcErr

	default: // within_task, disabled
		conversation.Append(convo.UserText(initialPrompt))
		result, err := l.runInner(ctx, taskCtx, conversation)
		if result != nil {
			result.Mode = l.ReflectionConfig.Mode
			result.TrialsUsed = 1
		}
		return result, err
	}
}

// runInner drives one trial's iterations: the fused outer-driver/
// inner-call loop from task.py. The initial user message must already be
// appended to conversation before calling this.
func (l *Loop) runInner(ctx context.Context, taskCtx *TaskContext, conversation *convo.Conversation) (*TaskResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return l.finish(taskCtx, StatusAborted, err)
		}
		if taskCtx.AbortRequested() {
			return l.finish(taskCtx, StatusAborted, fmt.Errorf("task aborted"))
		}

		if taskCtx.ConsecutiveMistakes >= l.TaskConfig.MaxConsecutiveMistakes {
			l.reflect(ctx, taskCtx, conversation, reflection.TriggerConsecutiveMistakes, map[string]any{
				"mistake_count": taskCtx.ConsecutiveMistakes,
				"recent_errors": recentErrorSnippets(conversation),
				"iteration":     taskCtx.IterationCount,
				"pattern":       "repeated_failures",
			})
			return l.finish(taskCtx, StatusFailed, fmt.Errorf("stopping after %d consecutive tool failures", taskCtx.ConsecutiveMistakes))
		}

		if taskCtx.IterationCount > 0 && taskCtx.IterationCount%5 == 0 && taskCtx.IterationCount != taskCtx.LastReflectionIteration {
			l.reflect(ctx, taskCtx, conversation, reflection.TriggerPeriodic, map[string]any{
				"iteration":            taskCtx.IterationCount,
				"files_accessed":       len(taskCtx.FilesAccessed),
				"files_modified":       len(taskCtx.FilesModified),
				"validation_performed": taskCtx.ValidationPerformed,
				"validation_passed":    taskCtx.ValidationPassed,
				"tools_used":           taskCtx.ToolsUsedCount,
			})
			taskCtx.LastReflectionIteration = taskCtx.IterationCount
		}

		completed, err := l.runIteration(ctx, taskCtx, conversation)
		l.Metrics.recordIteration()
		if err != nil {
			return l.finish(taskCtx, StatusFailed, err)
		}
		if completed {
			return l.finish(taskCtx, StatusCompleted, nil)
		}

		taskCtx.IterationCount++
		if taskCtx.IterationCount >= l.TaskConfig.MaxIterations {
			return l.finish(taskCtx, StatusFailed, fmt.Errorf("%w: %d", ErrMaxIterations, l.TaskConfig.MaxIterations))
		}
	}
}

func (l *Loop) finish(taskCtx *TaskContext, status Status, err error) (*TaskResult, error) {
	taskCtx.Status = status
	l.Metrics.recordCompletion(status)
	return &TaskResult{
		Status:            status,
		CompletionMessage: taskCtx.CompletionMessage,
		IterationsUsed:    taskCtx.IterationCount,
		Err:               err,
	}, err
}

// runIteration performs one pass of the inner loop: build prompt, call the
// provider, extract tool uses, intercept attempt_completion, dispatch the
// rest, and persist results (spec.md §4.6, #2-8).
func (l *Loop) runIteration(ctx context.Context, taskCtx *TaskContext, conversation *convo.Conversation) (completed bool, err error) {
	systemPrompt := l.buildSystemPrompt(taskCtx)
	req := &CompletionRequest{
		Model:       l.Model,
		System:      systemPrompt,
		Messages:    conversation.Messages(),
		Tools:       l.Registry.AsLLMTools(),
		MaxTokens:   l.MaxTokens,
		Temperature: l.Temperature,
	}

	start := time.Now()
	stream, err := l.Provider.Complete(ctx, req)
	if err != nil {
		return false, err
	}

	var text strings.Builder
	var toolBlocks []convo.Block
	for chunk := range stream {
		if chunk.Error != nil {
			return false, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if chunk.ToolUse != nil {
			toolBlocks = append(toolBlocks, *chunk.ToolUse)
		}
	}
	l.Metrics.observeLLMCall(time.Since(start).Seconds())

	var content []convo.Block
	if text.Len() > 0 {
		content = append(content, convo.TextBlock(text.String()))
	}
	content = append(content, toolBlocks...)
	assistantMsg := convo.Message{Role: convo.RoleAssistant, Content: content}
	conversation.Append(assistantMsg)

	toolUses := assistantMsg.ToolUses()
	if len(toolUses) == 0 {
		taskCtx.ConsecutiveEmptyResponses++
		if taskCtx.ConsecutiveEmptyResponses >= maxConsecutiveEmptyResponses {
			return false, fmt.Errorf("task aborted: model returned %d consecutive empty responses", maxConsecutiveEmptyResponses)
		}
		conversation.Append(convo.UserText(continuePrompt))
		return false, nil
	}
	taskCtx.ConsecutiveEmptyResponses = 0

	var pendingResults []convo.Block
	usedCompletion := false

	for _, tu := range toolUses {
		if tu.ToolName == CompletionName {
			if l.handleCompletion(ctx, taskCtx, conversation, tu) {
				usedCompletion = true
			}
			continue
		}

		params, marshalErr := json.Marshal(tu.ToolInput)
		if marshalErr != nil {
			params = []byte("{}")
		}
		result, dispatchErr := l.Registry.Dispatch(ctx, tu.ToolName, params)
		if dispatchErr != nil {
			return false, dispatchErr
		}
		l.Metrics.recordToolCall(tu.ToolName, result.IsError)

		if result.IsError {
			taskCtx.ConsecutiveMistakes++
			l.reflect(ctx, taskCtx, conversation, reflection.TriggerToolError, map[string]any{
				"tool_name":            tu.ToolName,
				"error":                result.Content,
				"iteration":            taskCtx.IterationCount,
				"consecutive_mistakes": taskCtx.ConsecutiveMistakes,
			})
		} else {
			taskCtx.ConsecutiveMistakes = 0
			if taskCtx.ToolsUsedCount == nil {
				taskCtx.ToolsUsedCount = make(map[string]int)
			}
			taskCtx.ToolsUsedCount[tu.ToolName]++
			taskCtx.ApplyToolEffect(tu.ToolName, extractMetadata(result.Content))

			if tu.ToolName == "run_validation" {
				lower := strings.ToLower(result.Content)
				taskCtx.ValidationPassed = strings.Contains(lower, "passed") ||
					strings.Contains(lower, "success") ||
					strings.Contains(lower, "skipped")
				if !taskCtx.ValidationPassed {
					l.reflect(ctx, taskCtx, conversation, reflection.TriggerValidationFailure, map[string]any{
						"validation_details": result.Content,
						"iteration":          taskCtx.IterationCount,
						"files_modified":     taskCtx.FilesModified.Slice(),
					})
				}
			}
		}

		pendingResults = append(pendingResults, convo.ToolResultBlock(tu.ToolUseID, result.Content, result.IsError))
	}

	// task.py: "if tool_results and not did_use_attempt_completion" — when
	// completion was accepted this pass, any other tool results gathered
	// in the same response are discarded rather than appended, since the
	// task is ending.
	if len(pendingResults) > 0 && !usedCompletion {
		_ = conversation.AppendToolResults(pendingResults)
	}

	return usedCompletion, nil
}

// handleCompletion implements the attempt_completion interception
// (spec.md §4.6, #6): optionally gate acceptance behind a pre-completion
// reflection, and never produce a tool_result block for the call either
// way (task.py's for-loop `continue`s past the normal result-construction
// path in both branches).
func (l *Loop) handleCompletion(ctx context.Context, taskCtx *TaskContext, conversation *convo.Conversation, tu convo.Block) (accepted bool) {
	message := "Task completed"
	if v, ok := tu.ToolInput["result"].(string); ok && v != "" {
		message = v
	}

	if l.Reflection != nil && l.ReflectionConfig.TriggerPreCompletion {
		entry := l.Reflection.Trigger(ctx, taskCtx.IterationCount, reflection.TriggerPreCompletion, map[string]any{
			"task_text":            taskCtx.OriginalTaskText,
			"iterations_used":      taskCtx.IterationCount,
			"files_modified":       taskCtx.FilesModified.Slice(),
			"validation_performed": taskCtx.ValidationPerformed,
			"validation_passed":    taskCtx.ValidationPassed,
			"tools_used":           taskCtx.ToolsUsedCount,
			"completion_message":   message,
		}, conversation)
		taskCtx.LastReflectionIteration = taskCtx.IterationCount
		l.Metrics.recordReflection(string(reflection.TriggerPreCompletion))

		if entry != nil && isIncomplete(entry.Insight) {
			conversation.Append(convo.UserText(fmt.Sprintf(
				"Task Not Yet Complete\n\nYour pre-completion verification revealed that the task is INCOMPLETE:\n\n%s\n\n"+
					"You must address these missing requirements before calling attempt_completion again. Please continue working on the task.",
				entry.Insight,
			)))
			return false
		}
	}

	taskCtx.CompletionMessage = message
	return true
}

// reflect is a thin, nil-safe wrapper around Manager.Trigger that also
// records the outcome in Metrics.
func (l *Loop) reflect(ctx context.Context, taskCtx *TaskContext, conversation *convo.Conversation, trigger reflection.Trigger, triggerContext map[string]any) {
	if l.Reflection == nil {
		return
	}
	if entry := l.Reflection.Trigger(ctx, taskCtx.IterationCount, trigger, triggerContext, conversation); entry != nil {
		l.Metrics.recordReflection(string(trigger))
	}
}

// buildSystemPrompt assembles the system prompt for one iteration: the
// default sections plus a task-context section and, once any reflections
// exist, a lessons-learned section (spec.md §4.9).
func (l *Loop) buildSystemPrompt(taskCtx *TaskContext) string {
	l.Prompt.AddContextSection("TASK_CONTEXT", fmt.Sprintf(
		"## Task Context\n\nRepository: %s\nIssue: %s\nBranch: %s\nIteration: %d/%d\n",
		l.TaskConfig.Repo, l.TaskConfig.IssueNumber, taskCtx.BranchName,
		taskCtx.IterationCount, l.TaskConfig.MaxIterations,
	))

	include := []string{"AGENT_ROLE", "CAPABILITIES", "RULES", "WORKFLOW", "TASK_CONTEXT"}
	if l.Reflection != nil && l.Reflection.HasReflections() {
		l.Prompt.AddContextSection("REFLECTIONS", "## Lessons From Previous Attempts\n\n"+l.Reflection.Memory().FormatForPrompt())
		include = append(include, "REFLECTIONS")
	}

	return l.Prompt.Build(include, nil, nil)
}

// SuccessPredicate implements spec.md §4.7's trial success condition: the
// task reached completion (either by status or by a stored completion
// message), validation was either never run or passed, and abort was
// never requested.
func SuccessPredicate(taskCtx *TaskContext) bool {
	completed := taskCtx.Status == StatusCompleted || taskCtx.CompletionMessage != ""
	validationOK := !taskCtx.ValidationPerformed || taskCtx.ValidationPassed
	return completed && validationOK && !taskCtx.AbortRequested()
}

func isIncomplete(insight string) bool {
	lower := strings.ToLower(insight)
	for _, phrase := range IncompletePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// extractMetadata decodes a tool's structured side-channel from its
// ToolResult.Content. Handlers that want TaskContext.ApplyToolEffect to
// see branch_name/file_path/etc. encode them as a JSON object; a handler
// that returns plain text (or a non-object payload) simply yields no
// metadata, which is a no-op for ApplyToolEffect.
func extractMetadata(content string) map[string]any {
	var m map[string]any
	_ = json.Unmarshal([]byte(content), &m)
	return m
}

// recentErrorSnippets scans the last ten conversation entries for
// tool_result blocks with IsError set, per spec.md §4.6's
// consecutive_mistakes reflection context (task.py's recent_errors).
func recentErrorSnippets(conversation *convo.Conversation) string {
	msgs := conversation.Messages()
	if len(msgs) > 10 {
		msgs = msgs[len(msgs)-10:]
	}
	var lines []string
	for _, m := range msgs {
		for _, b := range m.Content {
			if b.Kind == convo.KindToolResult && b.IsError {
				lines = append(lines, truncateRunes(b.Text, 200))
			}
		}
	}
	if len(lines) == 0 {
		return "N/A"
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
