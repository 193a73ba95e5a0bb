package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightforge/reflexagent/internal/convo"
	"github.com/brightforge/reflexagent/internal/reflection"
)

// fakeProvider replays one pre-scripted response per call, grounded on
// existing channel-streaming LLMProvider test doubles.
type fakeProvider struct {
	responses [][]*CompletionChunk
	call      int32
}

func (p *fakeProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	idx := int(atomic.AddInt32(&p.call, 1)) - 1
	ch := make(chan *CompletionChunk, 8)
	go func() {
		defer close(ch)
		if idx < len(p.responses) {
			for _, c := range p.responses[idx] {
				ch <- c
			}
		}
	}()
	return ch, nil
}

func (p *fakeProvider) Name() string        { return "fake" }
func (p *fakeProvider) Models() []Model     { return nil }
func (p *fakeProvider) SupportsTools() bool { return true }

func textChunk(s string) *CompletionChunk { return &CompletionChunk{Text: s} }

func toolChunk(id, name string, input map[string]any) *CompletionChunk {
	block := convo.ToolUseBlock(id, name, input)
	return &CompletionChunk{ToolUse: &block}
}

// stubTool is a minimal agent.Tool whose Execute result is scripted.
type stubTool struct {
	name   string
	result *ToolResult
	err    error
	calls  int32
}

func (s *stubTool) Name() string           { return s.name }
func (s *stubTool) Description() string    { return "stub" }
func (s *stubTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s *stubTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.result, s.err
}

func newTestLoop(provider LLMProvider, reflector *reflection.Manager) (*Loop, *ToolRegistry) {
	registry := NewToolRegistry()
	l := NewLoop(provider, registry, reflector, nil)
	l.ReflectionConfig.Mode = reflection.ModeWithinTask
	l.TaskConfig = DefaultTaskConfig()
	return l, registry
}

func TestLoop_AttemptCompletionAccepted(t *testing.T) {
	provider := &fakeProvider{
		responses: [][]*CompletionChunk{
			{toolChunk("c1", CompletionName, map[string]any{"result": "all done"}), {Done: true}},
		},
	}
	loop, _ := newTestLoop(provider, nil)
	taskCtx := NewTaskContext()
	conv := convo.New()

	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "implement the thing")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "all done", result.CompletionMessage)
	assert.Equal(t, 0, result.IterationsUsed)
}

func TestLoop_ToolDispatchUpdatesContextThenCompletes(t *testing.T) {
	provider := &fakeProvider{
		responses: [][]*CompletionChunk{
			{toolChunk("c1", "create_branch", map[string]any{"name": "feature/x"}), {Done: true}},
			{toolChunk("c2", CompletionName, map[string]any{"result": "done"}), {Done: true}},
		},
	}
	loop, registry := newTestLoop(provider, nil)
	registry.Register(&stubTool{
		name:   "create_branch",
		result: &ToolResult{Content: `{"branch_name":"feature/x"}`},
	})

	taskCtx := NewTaskContext()
	conv := convo.New()
	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "start work")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "feature/x", taskCtx.BranchName)
	assert.Equal(t, 1, taskCtx.ToolsUsedCount["create_branch"])
	assert.Equal(t, 1, result.IterationsUsed)
}

func TestLoop_ToolErrorIncrementsConsecutiveMistakes(t *testing.T) {
	provider := &fakeProvider{
		responses: [][]*CompletionChunk{
			{toolChunk("c1", "run_validation", nil), {Done: true}},
		},
	}
	loop, registry := newTestLoop(provider, nil)
	registry.Register(&stubTool{name: "run_validation", result: &ToolResult{Content: "boom", IsError: true}})

	taskCtx := NewTaskContext()
	conv := convo.New()
	_, err := loop.runInnerForTest(conv, taskCtx, "check it")
	require.Error(t, err)
	assert.Equal(t, 1, taskCtx.ConsecutiveMistakes)
}

func TestLoop_ConsecutiveMistakesTerminates(t *testing.T) {
	responses := make([][]*CompletionChunk, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, []*CompletionChunk{toolChunk(fmt.Sprintf("c%d", i), "flaky", nil), {Done: true}})
	}
	provider := &fakeProvider{responses: responses}
	loop, registry := newTestLoop(provider, nil)
	registry.Register(&stubTool{name: "flaky", result: &ToolResult{Content: "nope", IsError: true}})
	loop.TaskConfig.MaxConsecutiveMistakes = 3

	taskCtx := NewTaskContext()
	conv := convo.New()
	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "do it")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 3, taskCtx.ConsecutiveMistakes)
}

func TestLoop_EmptyResponseAbortsAfterFiveStrikes(t *testing.T) {
	responses := make([][]*CompletionChunk, 0, maxConsecutiveEmptyResponses)
	for i := 0; i < maxConsecutiveEmptyResponses; i++ {
		responses = append(responses, []*CompletionChunk{textChunk("thinking out loud"), {Done: true}})
	}
	provider := &fakeProvider{responses: responses}
	loop, _ := newTestLoop(provider, nil)
	loop.TaskConfig.MaxIterations = 100

	taskCtx := NewTaskContext()
	conv := convo.New()
	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "go")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestLoop_MaxIterationsTerminates(t *testing.T) {
	responses := make([][]*CompletionChunk, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, []*CompletionChunk{toolChunk(fmt.Sprintf("c%d", i), "noop", nil), {Done: true}})
	}
	provider := &fakeProvider{responses: responses}
	loop, registry := newTestLoop(provider, nil)
	registry.Register(&stubTool{name: "noop", result: &ToolResult{Content: "ok"}})
	loop.TaskConfig.MaxIterations = 2

	taskCtx := NewTaskContext()
	conv := convo.New()
	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "go")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 2, result.IterationsUsed)
}

func TestLoop_AbortRequestedStopsImmediately(t *testing.T) {
	provider := &fakeProvider{responses: [][]*CompletionChunk{{toolChunk("c1", CompletionName, map[string]any{"result": "done"}), {Done: true}}}}
	loop, _ := newTestLoop(provider, nil)
	taskCtx := NewTaskContext()
	taskCtx.RequestAbort()
	conv := convo.New()

	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "go")
	require.Error(t, err)
	assert.Equal(t, StatusAborted, result.Status)
}

func TestSuccessPredicate(t *testing.T) {
	taskCtx := NewTaskContext()
	taskCtx.CompletionMessage = "done"
	assert.True(t, SuccessPredicate(taskCtx))

	taskCtx.ValidationPerformed = true
	taskCtx.ValidationPassed = false
	assert.False(t, SuccessPredicate(taskCtx))

	taskCtx.ValidationPassed = true
	assert.True(t, SuccessPredicate(taskCtx))

	taskCtx.RequestAbort()
	assert.False(t, SuccessPredicate(taskCtx))
}

func TestTrialController_RetriesOnFailureThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		responses: [][]*CompletionChunk{
			{toolChunk("c1", "run_validation", nil), {Done: true}},
			{toolChunk("c2", CompletionName, map[string]any{"result": "finished"}), {Done: true}},
		},
	}
	loop, registry := newTestLoop(provider, nil)
	registry.Register(&stubTool{name: "run_validation", result: &ToolResult{Content: "validation failed", IsError: true}})
	loop.ReflectionConfig.Mode = reflection.ModeMultiTrial
	loop.ReflectionConfig.MaxTrials = 2
	loop.TaskConfig.MaxConsecutiveMistakes = 1

	taskCtx := NewTaskContext()
	conv := convo.New()
	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "go")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.TrialsUsed)
	assert.Equal(t, "finished", result.CompletionMessage)
}

func TestTrialController_AllTrialsFail(t *testing.T) {
	responses := make([][]*CompletionChunk, 0, 4)
	for i := 0; i < 4; i++ {
		responses = append(responses, []*CompletionChunk{toolChunk(fmt.Sprintf("c%d", i), "flaky", nil), {Done: true}})
	}
	provider := &fakeProvider{responses: responses}
	loop, registry := newTestLoop(provider, nil)
	registry.Register(&stubTool{name: "flaky", result: &ToolResult{Content: "nope", IsError: true}})
	loop.ReflectionConfig.Mode = reflection.ModeMultiTrial
	loop.ReflectionConfig.MaxTrials = 2
	loop.TaskConfig.MaxConsecutiveMistakes = 1

	taskCtx := NewTaskContext()
	conv := convo.New()
	result, err := loop.Execute(context.Background(), taskCtx, conv, "o", "r", "1", "go")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 2, result.TrialsUsed)
}

func TestTaskContext_ResetForNextTrialPreservesToolsUsedCount(t *testing.T) {
	taskCtx := NewTaskContext()
	taskCtx.ToolsUsedCount["read_file"] = 3
	taskCtx.FilesModified.Add("a.go")
	taskCtx.BranchName = "feature/x"
	taskCtx.ValidationPerformed = true
	taskCtx.ValidationPassed = true
	taskCtx.CompletionMessage = "done"

	taskCtx.ResetForNextTrial()

	assert.Equal(t, 3, taskCtx.ToolsUsedCount["read_file"])
	assert.Empty(t, taskCtx.FilesModified.Slice())
	assert.Empty(t, taskCtx.BranchName)
	assert.False(t, taskCtx.ValidationPerformed)
	assert.False(t, taskCtx.ValidationPassed)
	assert.Empty(t, taskCtx.CompletionMessage)
	assert.Equal(t, StatusPending, taskCtx.Status)
}

// runInnerForTest is a thin test-only adapter so single-iteration tests
// don't need to drive a full Execute() call through mode dispatch.
func (l *Loop) runInnerForTest(conv *convo.Conversation, taskCtx *TaskContext, initialPrompt string) (*TaskResult, error) {
	conv.Append(convo.UserText(initialPrompt))
	return l.runInner(context.Background(), taskCtx, conv)
}
