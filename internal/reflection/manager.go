package reflection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brightforge/reflexagent/internal/convo"
)

// Reflector is the narrow LLM capability the manager needs: one
// request-response call in "reflect" mode (no tools, fixed temperature).
// internal/agent adapts its LLMProvider to this interface so that this
// package stays free of a dependency on the provider/tool machinery.
type Reflector interface {
	Reflect(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// Cache is the narrow persistence capability the manager needs from C8.
// internal/reflection/cache implements it.
type Cache interface {
	Load(owner, repo string, maxAgeDays int) ([]Entry, error)
	Save(owner, repo, issue string, entries []Entry) error
}

// Manager is the Reflection Manager (C2): it decides when to call the LLM
// in reflect mode, builds trigger-specific prompts, and stores insights in
// a Memory.
type Manager struct {
	provider Reflector
	config   Config
	memory   *Memory
	cache    Cache
}

func NewManager(provider Reflector, config Config, cache Cache) *Manager {
	return &Manager{
		provider: provider,
		config:   config,
		memory:   NewMemory(config.MemorySize),
		cache:    cache,
	}
}

func (m *Manager) Memory() *Memory { return m.memory }

// Initialize seeds memory with up to three prior records from the cache,
// if persistence is enabled (spec.md §4.2).
func (m *Manager) Initialize(owner, repo string) {
	if !m.config.PersistAcrossIssues || m.cache == nil {
		return
	}
	entries, err := m.cache.Load(owner, repo, 30)
	if err != nil {
		log.Warn().Err(err).Str("repo", repo).Msg("reflection: failed to load cache")
		return
	}
	m.memory.Seed(entries, 3)
}

// Finalize saves the current reflections to cache if persistence is
// enabled and memory is non-empty (spec.md §4.2).
func (m *Manager) Finalize(owner, repo, issue string) {
	if !m.config.PersistAcrossIssues || m.cache == nil {
		return
	}
	if m.memory.Len() == 0 {
		return
	}
	if err := m.cache.Save(owner, repo, issue, m.memory.Recent(m.memory.Len())); err != nil {
		log.Warn().Err(err).Str("repo", repo).Str("issue", issue).Msg("reflection: failed to save cache")
	}
}

// Trigger builds a trigger-specific prompt, calls the LLM in reflect mode,
// and stores the resulting insight. Failures are logged and swallowed —
// the loop must not crash on a reflection error (spec.md §4.2, §7).
func (m *Manager) Trigger(ctx context.Context, iteration int, t Trigger, triggerContext map[string]any, conversation *convo.Conversation) *Entry {
	if !m.config.Enabled || !m.config.Mode.enabledFor(t, m.config) {
		return nil
	}

	prompt := m.buildPrompt(t, triggerContext, conversation)
	insight, err := m.provider.Reflect(ctx, reflectSystemPrompt, prompt, m.config.Temperature, 2048)
	if err != nil {
		log.Warn().Err(err).Str("trigger", string(t)).Msg("reflection: LLM call failed, skipping")
		return nil
	}
	insight = strings.TrimSpace(insight)
	if insight == "" {
		return nil
	}

	entry := Entry{
		Iteration: iteration,
		Trigger:   t,
		Context:   triggerContext,
		Insight:   insight,
		Timestamp: time.Now().UTC(),
		Applied:   false,
	}
	m.memory.Append(entry)
	return &entry
}

const reflectSystemPrompt = "You are reflecting on an in-progress coding task. " +
	"Produce a short, actionable lesson (2-4 sentences) that will help the agent avoid repeating the same mistake."

// buildPrompt assembles a trigger-specific reflection prompt. Any
// placeholder absent from context substitutes "N/A" rather than raising
// (spec.md §4.2, "Prompt assembly rule").
func (m *Manager) buildPrompt(t Trigger, triggerContext map[string]any, conversation *convo.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reflection trigger: %s\n\n", t)

	switch t {
	case TriggerValidationFailure:
		fmt.Fprintf(&b, "Validation failed. Details: %s\n\n", lookup(triggerContext, "validation_details"))
	case TriggerToolError:
		fmt.Fprintf(&b, "Tool %q failed with error: %s\n\n", lookup(triggerContext, "tool_name"), lookup(triggerContext, "error"))
	case TriggerConsecutiveMistakes:
		fmt.Fprintf(&b, "%s consecutive tool failures occurred. Recent errors:\n%s\n\n",
			lookup(triggerContext, "mistake_count"), lookup(triggerContext, "recent_errors"))
	case TriggerPeriodic:
		fmt.Fprintf(&b, "Periodic checkpoint at iteration %s. Review progress so far.\n\n", lookup(triggerContext, "iteration"))
	case TriggerTrialFailure:
		fmt.Fprintf(&b, "Trial %s failed. Summary:\n%s\n\n", lookup(triggerContext, "trial_number"), lookup(triggerContext, "summary"))
	case TriggerPreCompletion:
		fmt.Fprintf(&b, "The agent is about to declare the task complete. Task: %s\nModified files: %s\nValidation performed: %s, passed: %s\n\n",
			lookup(triggerContext, "task_text"), lookup(triggerContext, "files_modified"),
			lookup(triggerContext, "validation_performed"), lookup(triggerContext, "validation_passed"))
		b.WriteString("Is the task genuinely complete, or is something missing? Be specific about any gaps.\n\n")
	}

	b.WriteString("Recent actions:\n")
	b.WriteString(m.extractRecentActions(conversation))
	b.WriteString("\nPrevious reflections:\n")
	b.WriteString(m.memory.FormatForContext(5))

	return b.String()
}

func lookup(ctx map[string]any, key string) string {
	if ctx == nil {
		return "N/A"
	}
	v, ok := ctx[key]
	if !ok || v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%v", v)
}

// extractRecentActions scans the last five conversation entries: for each
// tool_use block it emits a "- Used tool: <name> (input: <first 100
// chars>...)" line; for each user message it emits the first 150 chars of
// textual content (spec.md §4.2).
func (m *Manager) extractRecentActions(conversation *convo.Conversation) string {
	if conversation == nil {
		return "N/A"
	}
	msgs := conversation.Messages()
	if len(msgs) > 5 {
		msgs = msgs[len(msgs)-5:]
	}

	var b strings.Builder
	for _, msg := range msgs {
		for _, block := range msg.Content {
			if block.Kind == convo.KindToolUse {
				input := fmt.Sprintf("%v", block.ToolInput)
				fmt.Fprintf(&b, "- Used tool: %s (input: %s...)\n", block.ToolName, truncate(input, 100))
			}
		}
		if msg.Role == convo.RoleUser {
			text := msg.Text()
			if text != "" {
				fmt.Fprintf(&b, "%s\n", truncate(text, 150))
			}
		}
	}
	if b.Len() == 0 {
		return "N/A"
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// HasReflections reports whether any reflection has been recorded.
func (m *Manager) HasReflections() bool { return m.memory.Len() > 0 }

// CountAppliedLessons counts records whose Applied flag is set. Not used
// by the core loop (spec.md never sets Applied) but kept as an
// introspection hook for the webhook's completion/failure reporting,
// grounded on the original's count_applied_lessons (SPEC_FULL.md §12).
func (m *Manager) CountAppliedLessons() int {
	n := 0
	for _, e := range m.memory.Recent(m.memory.Len()) {
		if e.Applied {
			n++
		}
	}
	return n
}

// GetLearningSummary reports a one-line summary used in completion/failure
// comments, grounded on the original's get_learning_summary.
func (m *Manager) GetLearningSummary() string {
	n := m.memory.Len()
	if n == 0 {
		return "No reflections were recorded during this task."
	}
	return fmt.Sprintf("%d reflection(s) recorded across the task.", n)
}
