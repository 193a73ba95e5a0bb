// Package prompt implements the Prompt Builder (C9): assembly of the
// system prompt from named, reusable sections with {{VAR}} substitution.
//
// Grounded on original_source/src/tarsis/prompts/builder.py — same
// register/build/add_context_section shape and the "\n\n====\n\n" section
// separator — re-expressed in a sync.RWMutex-guarded-registry idiom
// (internal/agent/tool_registry.go's Register/Get/Unregister shape).
package prompt

import (
	"regexp"
	"strings"
	"sync"
)

// Section is one named, reusable block of prompt text.
type Section struct {
	Name     string
	Content  string
	Required bool
}

// Builder assembles a system prompt from registered Sections (spec.md
// §4.9).
type Builder struct {
	mu       sync.RWMutex
	sections map[string]Section
	order    []string
}

// New returns a Builder pre-loaded with the coding agent's default
// sections (role, capabilities, rules, workflow), grounded verbatim on
// the original's _register_default_components (supplemented feature:
// spec.md's distillation leaves the system prompt's exact wording
// unspecified, so the original's content is carried through).
func New() *Builder {
	b := &Builder{sections: make(map[string]Section)}
	for _, s := range defaultSections {
		b.Register(s)
	}
	return b
}

// Register adds or replaces a section.
func (b *Builder) Register(s Section) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.sections[s.Name]; !exists {
		b.order = append(b.order, s.Name)
	}
	b.sections[s.Name] = s
}

// AddContextSection registers a non-required, dynamically generated
// section (e.g. task context, reflection memory) for the next Build call.
func (b *Builder) AddContextSection(name, content string) {
	b.Register(Section{Name: name, Content: content, Required: false})
}

// Build assembles the prompt. With include == nil, every required section
// is used, in registration order; otherwise only the named sections are
// used, in the order given. exclude removes sections by name after either
// selection. context substitutes {{VAR}} placeholders; an unmatched
// placeholder is left verbatim.
func (b *Builder) Build(include, exclude []string, context map[string]string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var chosen []Section
	if include == nil {
		for _, name := range b.order {
			if s := b.sections[name]; s.Required {
				chosen = append(chosen, s)
			}
		}
	} else {
		for _, name := range include {
			if s, ok := b.sections[name]; ok {
				chosen = append(chosen, s)
			}
		}
	}

	if len(exclude) > 0 {
		excluded := make(map[string]bool, len(exclude))
		for _, name := range exclude {
			excluded[name] = true
		}
		filtered := chosen[:0]
		for _, s := range chosen {
			if !excluded[s.Name] {
				filtered = append(filtered, s)
			}
		}
		chosen = filtered
	}

	sections := make([]string, 0, len(chosen))
	for _, s := range chosen {
		content := s.Content
		if context != nil {
			content = substitute(content, context)
		}
		sections = append(sections, content)
	}

	return strings.Join(sections, "\n\n====\n\n")
}

var varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

func substitute(content string, context map[string]string) string {
	return varPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := context[name]; ok {
			return v
		}
		return match
	})
}

var defaultSections = []Section{
	{
		Name:     "AGENT_ROLE",
		Required: true,
		Content: `You are an autonomous coding agent specialized in implementing issues end to end.

Your purpose is to:
1. Understand issue requirements by reading the issue description and comments
2. Analyze the codebase to identify files that need modification
3. Generate high-quality code changes that solve the issue
4. Validate your changes with the repository's own validation tooling
5. Create pull requests with clear descriptions

You work fully autonomously without human-in-the-loop interaction.`,
	},
	{
		Name:     "CAPABILITIES",
		Required: true,
		Content: `## Your Capabilities

You have access to tools that allow you to:
- **Read Files**: Examine existing code in the repository
- **Search Code**: Find relevant files and code patterns
- **Create Branches**: Start new feature branches
- **Modify Files**: Make code changes
- **Commit Changes**: Record your work
- **Create Pull Requests**: Submit your implementation
- **Run Validation**: Test your changes
- **Plan Implementation**: Break down work into steps
- **Complete Tasks**: Signal completion with attempt_completion`,
	},
	{
		Name:     "RULES",
		Required: true,
		Content: `## Important Rules

1. Always read before writing: use read_file to understand existing code before making changes.
2. For complex issues, use create_plan to outline your approach first.
3. Work autonomously: complete the task without asking questions via post_comment.
4. Be thorough: check for edge cases and error handling.
5. Follow existing patterns: match the coding style already in the codebase.
6. Use attempt_completion to signal when you believe the task is done — not before.

The post_comment tool is reserved for the final status update inside
attempt_completion. Do not use it to ask questions, report intermediate
errors, or request clarification. When you hit an error, fix it and
retry; only attempt_completion should report final status.`,
	},
	{
		Name:     "WORKFLOW",
		Required: true,
		Content: `## Recommended Workflow

1. Understand - read the issue and gather context
2. Plan - create an implementation plan for non-trivial changes
3. Explore - read relevant files to understand the codebase
4. Implement - make the necessary code changes
5. Validate - run run_validation before creating a pull request
6. Review - check your changes and the validation results
7. Submit - create a pull request
8. Complete - use attempt_completion to finish

A repository with no tests falling back to a syntax/lint check and
passing is a normal success condition, not a reason to stop short of a
pull request. Only an actual code error should block completion.`,
	},
}
