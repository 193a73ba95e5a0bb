package errctx

import (
	"errors"
	"strings"
	"testing"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"api key", errors.New("invalid API key provided"), CategoryConfiguration},
		{"env var", errors.New("missing environment variable FOO"), CategoryConfiguration},
		{"unauthorized", errors.New("401 unauthorized"), CategoryAuth},
		{"forbidden", errors.New("request forbidden"), CategoryAuth},
		{"timeout", errors.New("context deadline exceeded: timeout"), CategoryTimeout},
		{"network", errors.New("connection refused"), CategoryNetwork},
		{"rate limit", errors.New("429 too many requests"), CategoryAPI},
		{"server error", errors.New("500 internal server error"), CategoryAPI},
		{"tool", errors.New("tool execution returned non-zero"), CategoryTool},
		{"validation", errors.New("unit test failures detected"), CategoryValidation},
		{"iteration limit", errors.New("maximum iteration count reached"), CategoryInternal},
		{"unknown", errors.New("gremlins in the system"), CategoryInternal},
		{"nil", nil, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, explanation := Categorize(tt.err)
			if got != tt.want {
				t.Errorf("Categorize(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if explanation == "" {
				t.Error("expected non-empty explanation")
			}
		})
	}
}

// Configuration is checked before authentication in the original's
// ordered rule — a message containing both "token" and "unauthorized"
// must classify as configuration, not auth.
func TestCategorize_ConfigurationPrecedesAuth(t *testing.T) {
	got, _ := Categorize(errors.New("token invalid, request unauthorized"))
	if got != CategoryConfiguration {
		t.Errorf("got %v, want CategoryConfiguration (checked first)", got)
	}
}

func TestFormatForTracker(t *testing.T) {
	out := FormatForTracker(errors.New("503 service unavailable"), "42", false)

	for _, want := range []string{
		"Task Failed",
		"Issue #42",
		"### What Happened",
		"### 💡 Suggestions",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Technical Details") {
		t.Error("should not include technical details when includeDetails is false")
	}
}

func TestFormatForTracker_WithDetails(t *testing.T) {
	out := FormatForTracker(errors.New("boom"), "7", true)
	if !strings.Contains(out, "Technical Details") {
		t.Error("expected technical details block")
	}
	if !strings.Contains(out, "boom") {
		t.Error("expected the raw error text in the details block")
	}
}

func TestFormatConcise(t *testing.T) {
	out := FormatConcise(errors.New("connection refused"))
	if !strings.Contains(out, "NETWORK") {
		t.Errorf("expected NETWORK category in concise output, got %q", out)
	}
}

func TestFormatForTracker_TruncatesLongErrorText(t *testing.T) {
	long := strings.Repeat("x", 500)
	out := FormatForTracker(errors.New(long), "1", false)
	if strings.Count(out, "x") > 210 {
		t.Error("expected error text truncated to ~200 runes in the What Happened line")
	}
}
