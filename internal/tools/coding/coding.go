// Package coding implements the ten concrete tool handlers the Tool
// Registry (C3, spec.md §4.3) dispatches against: read_file, search_code,
// create_branch, modify_file, commit_changes, run_validation,
// create_pull_request, create_plan, post_comment, and attempt_completion
// (the last registered for schema exposure only — the Agent Loop
// intercepts it before dispatch).
//
// Each handler is grounded on internal/tools/files' Resolver/toolError
// style, dispatching through the external collaborator interfaces
// declared in internal/tracker, internal/vcs, and internal/validation
// rather than talking to any concrete backend itself.
package coding

import (
	"encoding/json"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/tools/files"
	"github.com/brightforge/reflexagent/internal/tracker"
	"github.com/brightforge/reflexagent/internal/validation"
	"github.com/brightforge/reflexagent/internal/vcs"
)

// Config wires the shared collaborators and per-task identifiers every
// handler in this package needs. One Config is built per task run (a repo
// + issue + local working copy), then passed to each tool constructor.
type Config struct {
	Tracker    tracker.Client
	Workspace  vcs.Workspace
	Validator  validation.Runner
	Repo       string
	Issue      string
	WorkingDir string // local clone path, as returned by Workspace.EnsureClone
}

func (c Config) resolver() files.Resolver {
	return files.Resolver{Root: c.WorkingDir}
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

func toolOK(v any) *agent.ToolResult {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("encode result: " + err.Error())
	}
	return &agent.ToolResult{Content: string(payload)}
}

func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
