package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
)

// ReadFileTool implements read_file (spec.md §4.3), reading from the
// task's local working copy. Its result embeds file_path so
// TaskContext.ApplyToolEffect can grow files_accessed.
type ReadFileTool struct {
	cfg Config
}

func NewReadFileTool(cfg Config) *ReadFileTool { return &ReadFileTool{cfg: cfg} }

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a file from the task's working copy, with optional line range."
}

func (t *ReadFileTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file, relative to the repository root.",
			},
			"start_line": map[string]any{
				"type":        "integer",
				"description": "First line to include (1-indexed, default: 1).",
				"minimum":     1,
			},
			"end_line": map[string]any{
				"type":        "integer",
				"description": "Last line to include (default: end of file).",
				"minimum":     1,
			},
		},
		"required": []string{"path"},
	})
}

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}

	resolved, err := t.cfg.resolver().Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	content := string(data)
	lines := strings.Split(content, "\n")
	start := input.StartLine
	if start < 1 {
		start = 1
	}
	end := input.EndLine
	if end < 1 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}
	if start > end {
		start, end = end, start
	}
	selected := strings.Join(lines[start-1:end], "\n")

	return toolOK(map[string]any{
		"file_path":   input.Path,
		"content":     selected,
		"total_lines": len(lines),
		"start_line":  start,
		"end_line":    end,
	}), nil
}
