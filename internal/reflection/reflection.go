// Package reflection implements the Reflexion self-improvement layer: a
// bounded FIFO memory of short LLM-authored lessons (C1) and the manager
// that decides when to ask for one and stores the result (C2).
//
// Grounded on original_source/src/tarsis/agent/reflection.py for exact FIFO
// and formatting semantics, re-expressed with a sync.RWMutex-guarded-
// struct-with-Config idiom (internal/memory/manager.go).
package reflection

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Trigger names the condition that prompted a reflection call.
type Trigger string

const (
	TriggerValidationFailure   Trigger = "validation_failure"
	TriggerToolError           Trigger = "tool_error"
	TriggerConsecutiveMistakes Trigger = "consecutive_mistakes"
	TriggerPeriodic            Trigger = "periodic"
	TriggerTrialFailure        Trigger = "trial_failure"
	TriggerPreCompletion       Trigger = "pre_completion"
)

// Entry is one reflection record (spec.md §3). Context is a free-form
// mapping captured at trigger time; Insight is the LLM-produced text.
type Entry struct {
	Iteration int
	Trigger   Trigger
	Context   map[string]any
	Insight   string
	Timestamp time.Time
	Applied   bool
}

// Memory is a bounded FIFO of Entries (C1). Zero value is usable with the
// default size; use NewMemory for a specific size.
type Memory struct {
	mu      sync.RWMutex
	size    int
	entries []Entry
}

const defaultMemorySize = 10

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &Memory{size: size}
}

// Append adds a record, evicting the oldest on overflow. Guarantees I-R1
// (len <= size) and I-R2 (insertion order preserved) — P1.
func (m *Memory) Append(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.size
	if size <= 0 {
		size = defaultMemorySize
	}
	m.entries = append(m.entries, e)
	if over := len(m.entries) - size; over > 0 {
		m.entries = m.entries[over:]
	}
}

// Len reports the current record count.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Recent returns the last k records (or fewer), in insertion order. The
// slice is a copy — readers get an immutable snapshot (spec.md §9).
func (m *Memory) Recent(k int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k > len(m.entries) {
		k = len(m.entries)
	}
	if k <= 0 {
		return nil
	}
	out := make([]Entry, k)
	copy(out, m.entries[len(m.entries)-k:])
	return out
}

// ByTrigger returns all records matching t, in insertion order.
func (m *Memory) ByTrigger(t Trigger) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Trigger == t {
			out = append(out, e)
		}
	}
	return out
}

// FormatForPrompt groups records by trigger and emits the last three per
// group, for injection into the system prompt (spec.md §4.1).
func (m *Memory) FormatForPrompt() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return "No previous reflections available."
	}

	byTrigger := make(map[Trigger][]Entry)
	var order []Trigger
	for _, e := range m.entries {
		if _, ok := byTrigger[e.Trigger]; !ok {
			order = append(order, e.Trigger)
		}
		byTrigger[e.Trigger] = append(byTrigger[e.Trigger], e)
	}

	var b strings.Builder
	for _, t := range order {
		group := byTrigger[t]
		if len(group) > 3 {
			group = group[len(group)-3:]
		}
		fmt.Fprintf(&b, "### %s\n", t)
		for _, e := range group {
			fmt.Fprintf(&b, "- [iteration %d] %s\n", e.Iteration, e.Insight)
		}
	}
	return b.String()
}

// FormatForContext returns the last k records as a flat list, each
// prefixed by iteration and trigger (spec.md §4.1).
func (m *Memory) FormatForContext(k int) string {
	entries := m.Recent(k)
	if len(entries) == 0 {
		return "No previous reflections available."
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[iteration %d, %s] %s\n", e.Iteration, e.Trigger, e.Insight)
	}
	return b.String()
}

// Clear removes all records.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// Seed sorts records so validation_failure entries and recent timestamps
// sort first, takes limit, resets Applied, and appends each — obeying I-R1
// (spec.md §4.1, §4.8).
func (m *Memory) Seed(records []Entry, limit int) {
	sorted := make([]Entry, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		iFail := sorted[i].Trigger == TriggerValidationFailure
		jFail := sorted[j].Trigger == TriggerValidationFailure
		if iFail != jFail {
			return iFail
		}
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	for _, e := range sorted {
		e.Applied = false
		m.Append(e)
	}
}
