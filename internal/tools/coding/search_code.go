package coding

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
)

const searchCodeMaxMatches = 200

// SearchCodeTool implements search_code (spec.md §4.3): a regex search
// across the task's working copy, skipping VCS and dependency
// directories. Grounded on internal/tools/files' workspace-scoped walk
// style; no third-party grep/ripgrep binding is in the example pack, so
// this one handler is built on the standard library's regexp + filepath
// (see DESIGN.md).
type SearchCodeTool struct {
	cfg Config
}

func NewSearchCodeTool(cfg Config) *SearchCodeTool { return &SearchCodeTool{cfg: cfg} }

func (t *SearchCodeTool) Name() string { return "search_code" }

func (t *SearchCodeTool) Description() string {
	return "Search the working copy for a regular expression, optionally scoped to a path glob."
}

func (t *SearchCodeTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regular expression to search for (RE2 syntax).",
			},
			"path_glob": map[string]any{
				"type":        "string",
				"description": "Optional glob to restrict which files are searched, e.g. \"*.go\".",
			},
			"max_matches": map[string]any{
				"type":        "integer",
				"description": "Cap on returned matches (default: 200).",
				"minimum":     1,
			},
		},
		"required": []string{"pattern"},
	})
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".hg": true, ".svn": true,
}

func (t *SearchCodeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pattern    string `json:"pattern"`
		PathGlob   string `json:"path_glob"`
		MaxMatches int    `json:"max_matches"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}
	re, err := regexp.Compile(input.Pattern)
	if err != nil {
		return toolError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	limit := input.MaxMatches
	if limit <= 0 || limit > searchCodeMaxMatches {
		limit = searchCodeMaxMatches
	}

	root := strings.TrimSpace(t.cfg.WorkingDir)
	if root == "" {
		root = "."
	}

	type match struct {
		Path string `json:"path"`
		Line int    `json:"line"`
		Text string `json:"text"`
	}
	var matches []match

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= limit {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if input.PathGlob != "" {
			if ok, _ := filepath.Match(input.PathGlob, filepath.Base(path)); !ok {
				return nil
			}
		}

		file, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if re.MatchString(line) {
				matches = append(matches, match{Path: rel, Line: lineNo, Text: strings.TrimSpace(line)})
				if len(matches) >= limit {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll && walkErr != ctx.Err() {
		return toolError(fmt.Sprintf("search failed: %v", walkErr)), nil
	}

	return toolOK(map[string]any{
		"matches":    matches,
		"count":      len(matches),
		"truncated":  len(matches) >= limit,
	}), nil
}
