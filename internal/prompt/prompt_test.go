package prompt

import (
	"strings"
	"testing"
)

func TestBuilder_Build_DefaultsOnly(t *testing.T) {
	b := New()
	out := b.Build(nil, nil, nil)

	if !strings.Contains(out, "AGENT_ROLE") && !strings.Contains(out, "autonomous coding agent") {
		t.Error("expected default AGENT_ROLE content in output")
	}
	if got, want := strings.Count(out, "\n\n====\n\n"), len(defaultSections)-1; got != want {
		t.Errorf("expected %d section separators, got %d", want, got)
	}
}

func TestBuilder_Build_IncludeExclude(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
		notWant []string
	}{
		{
			name:    "include subset",
			include: []string{"AGENT_ROLE", "RULES"},
			want:    []string{"autonomous coding agent", "Important Rules"},
			notWant: []string{"Recommended Workflow"},
		},
		{
			name:    "exclude from defaults",
			exclude: []string{"WORKFLOW"},
			notWant: []string{"Recommended Workflow"},
		},
		{
			name:    "unknown include name is silently skipped",
			include: []string{"NOT_A_SECTION"},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			out := b.Build(tt.include, tt.exclude, nil)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected output to contain %q", w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("expected output not to contain %q", nw)
				}
			}
		})
	}
}

func TestBuilder_ContextSubstitution(t *testing.T) {
	b := &Builder{sections: make(map[string]Section)}
	b.Register(Section{Name: "GREETING", Content: "Hello {{NAME}}, issue {{ISSUE}} awaits.", Required: true})

	out := b.Build(nil, nil, map[string]string{"NAME": "agent", "ISSUE": "42"})
	if out != "Hello agent, issue 42 awaits." {
		t.Errorf("got %q", out)
	}
}

func TestBuilder_ContextSubstitution_UnmatchedPlaceholderLeftVerbatim(t *testing.T) {
	b := &Builder{sections: make(map[string]Section)}
	b.Register(Section{Name: "X", Content: "Value: {{MISSING}}", Required: true})

	out := b.Build(nil, nil, map[string]string{"OTHER": "x"})
	if out != "Value: {{MISSING}}" {
		t.Errorf("got %q", out)
	}
}

func TestBuilder_AddContextSection(t *testing.T) {
	b := &Builder{sections: make(map[string]Section)}
	b.Register(Section{Name: "BASE", Content: "base", Required: true})
	b.AddContextSection("DYNAMIC", "dynamic content")

	// Not required, so omitted when include is nil.
	out := b.Build(nil, nil, nil)
	if strings.Contains(out, "dynamic content") {
		t.Error("non-required section should be excluded by default")
	}

	out = b.Build([]string{"BASE", "DYNAMIC"}, nil, nil)
	if !strings.Contains(out, "dynamic content") {
		t.Error("expected dynamic content when explicitly included")
	}
}

func TestBuilder_RegisterReplacesExistingSection(t *testing.T) {
	b := &Builder{sections: make(map[string]Section)}
	b.Register(Section{Name: "X", Content: "first", Required: true})
	b.Register(Section{Name: "X", Content: "second", Required: true})

	if len(b.order) != 1 {
		t.Errorf("expected order to contain one entry, got %d", len(b.order))
	}
	out := b.Build(nil, nil, nil)
	if out != "second" {
		t.Errorf("got %q, want replacement content", out)
	}
}
