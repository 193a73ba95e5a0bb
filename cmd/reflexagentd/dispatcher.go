package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/convo"
	"github.com/brightforge/reflexagent/internal/tools/coding"
	"github.com/brightforge/reflexagent/internal/tracker"
	"github.com/brightforge/reflexagent/internal/vcs"
)

// loopDispatcher adapts the Agent Loop into webhook.Dispatcher: one
// DispatchTask call fetches the issue, clones the repository, builds a
// tool registry scoped to that clone, and runs the loop to completion.
//
// Tracker/Workspace are nil unless a host configures them: spec.md §6
// treats tracker.Client/vcs.Workspace as external collaborator
// interfaces with no concrete implementation in this module's scope, so
// a reflexagentd deployment wanting real cloning/PR behavior must supply
// one. Dispatching without them logs and returns rather than panicking.
type loopDispatcher struct {
	loop      *agent.Loop
	tracker   tracker.Client
	workspace vcs.Workspace
}

func (d *loopDispatcher) DispatchTask(ctx context.Context, repo, issueNumber string) {
	logger := log.With().Str("repo", repo).Str("issue", issueNumber).Logger()

	if d.tracker == nil || d.workspace == nil {
		logger.Error().Msg("no tracker/workspace implementation configured; cannot dispatch task")
		return
	}

	owner, _, _ := strings.Cut(repo, "/")

	issue, err := d.tracker.GetIssue(ctx, repo, issueNumber)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch issue")
		return
	}

	workingDir, err := d.workspace.EnsureClone(ctx, repo)
	if err != nil {
		logger.Error().Err(err).Msg("failed to clone repository")
		return
	}

	registry := agent.NewToolRegistry()
	coding.RegisterAll(registry, coding.Config{
		Tracker:    d.tracker,
		Workspace:  d.workspace,
		Repo:       repo,
		Issue:      issueNumber,
		WorkingDir: workingDir,
	})

	taskLoop := *d.loop
	taskLoop.Registry = registry
	taskLoop.Workspace = d.workspace
	taskLoop.WorkspacePath = workingDir
	taskLoop.TaskConfig.Repo = repo
	taskLoop.TaskConfig.IssueNumber = issueNumber

	taskCtx := agent.NewTaskContext()
	conversation := convo.New()

	result, err := taskLoop.Execute(ctx, taskCtx, conversation, owner, repo, issueNumber, issue.Body)
	if err != nil {
		logger.Error().Err(err).Msg("task execution failed")
		return
	}
	logger.Info().
		Str("status", string(result.Status)).
		Int("iterations", result.IterationsUsed).
		Int("trials", result.TrialsUsed).
		Msg("task finished")
}
