// Package errctx categorizes task-ending errors and formats them into the
// markdown failure comment posted back to the tracker.
//
// Grounded directly on
// original_source/src/tarsis/errors/categories.py (category enum and the
// exact text-matching rule, checked in order) and errors/formatter.py
// (the suggestion lists, emoji table, and "What Happened"/"Suggestions"/
// collapsed-technical-details markdown shape), re-expressed with
// internal/agent/errors.go's sentinel-and-classifier idiom.
package errctx

import (
	"fmt"
	"strconv"
	"strings"
)

// Category classifies why a task ended in failure, for the markdown
// comment posted back to the tracker (spec.md §7).
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryAPI           Category = "api"
	CategoryTimeout       Category = "timeout"
	CategoryTool          Category = "tool"
	CategoryValidation    Category = "validation"
	CategoryInternal      Category = "internal"
	CategoryNetwork       Category = "network"
	CategoryAuth          Category = "authentication"
)

// Categorize classifies err and returns a short user-facing explanation,
// following the original's ordered text-matching rule exactly: config,
// then auth, then timeout, then network, then rate-limit, then generic
// API status codes, then tool, then validation, then iteration-limit,
// defaulting to internal.
func Categorize(err error) (Category, string) {
	if err == nil {
		return CategoryInternal, "An unexpected error occurred"
	}
	text := strings.ToLower(err.Error())

	switch {
	case strings.Contains(text, "api key") || strings.Contains(text, "token") || strings.Contains(text, "config"):
		return CategoryConfiguration, "Configuration error - please check your API keys and environment variables"
	case strings.Contains(text, "env") || strings.Contains(text, "environment"):
		return CategoryConfiguration, "Missing or invalid environment variable"
	case strings.Contains(text, "401") || strings.Contains(text, "unauthorized") || strings.Contains(text, "forbidden"):
		return CategoryAuth, "Authentication failed - please check your API keys"
	case strings.Contains(text, "timeout"):
		return CategoryTimeout, "Operation timed out - the model or API took too long to respond"
	case strings.Contains(text, "connection") || strings.Contains(text, "network") || strings.Contains(text, "unreachable"):
		return CategoryNetwork, "Network error - please check your internet connection"
	case strings.Contains(text, "429") || strings.Contains(text, "rate limit"):
		return CategoryAPI, "Rate limit exceeded - too many requests"
	case strings.Contains(text, "400") || strings.Contains(text, "404") || strings.Contains(text, "500") ||
		strings.Contains(text, "502") || strings.Contains(text, "503"):
		return CategoryAPI, "API error - the service returned an error"
	case strings.Contains(text, "tool"):
		return CategoryTool, "Tool execution failed"
	case strings.Contains(text, "test") || strings.Contains(text, "lint") || strings.Contains(text, "syntax") || strings.Contains(text, "validation"):
		return CategoryValidation, "Validation failed - code did not pass checks"
	case strings.Contains(text, "iteration") || strings.Contains(text, "maximum"):
		return CategoryInternal, "Task aborted - reached iteration limit without completing"
	default:
		return CategoryInternal, "An unexpected error occurred"
	}
}

var suggestions = map[Category][]string{
	CategoryConfiguration: {
		"Check your environment configuration for missing or incorrect values",
		"Verify your API keys are valid and not expired",
		"Ensure all required environment variables are set",
	},
	CategoryAuth: {
		"Verify your tracker token has the correct permissions",
		"Check that your LLM provider API key is valid",
		"Ensure your API keys haven't expired",
	},
	CategoryTimeout: {
		"Try increasing the timeout settings in your configuration",
		"For a local model server, set its timeout to unlimited",
		"Check if the model or API service is responding",
	},
	CategoryNetwork: {
		"Check your internet connection",
		"Verify the API endpoint is accessible",
		"Try again in a few moments",
	},
	CategoryAPI: {
		"Check the service status page for outages",
		"Try again in a few moments",
		"Verify your request parameters are valid",
	},
	CategoryTool: {
		"Check the tool input parameters",
		"Verify the tool has necessary permissions",
		"Review the error details for specific issues",
	},
	CategoryValidation: {
		"Review the validation errors and fix the code",
		"Run tests locally to debug the issue",
		"Check syntax and type errors",
	},
	CategoryInternal: {
		"Try running the task again",
		"Check the server logs for more details",
		"Report this issue if it persists",
	},
}

var emojis = map[Category]string{
	CategoryConfiguration: "⚙️",
	CategoryAuth:          "🔒",
	CategoryTimeout:       "⏱️",
	CategoryNetwork:       "🌐",
	CategoryAPI:           "🔌",
	CategoryTool:          "🔧",
	CategoryValidation:    "✅",
	CategoryInternal:      "⚠️",
}

func title(c Category) string {
	s := strings.ReplaceAll(string(c), "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatForTracker formats err as the markdown failure comment posted
// back to the issue tracker (spec.md §7). includeDetails appends a
// collapsed technical-details block with the error's Go type and full
// message.
func FormatForTracker(err error, issueNumber string, includeDetails bool) string {
	category, explanation := Categorize(err)
	emoji, ok := emojis[category]
	if !ok {
		emoji = "❌"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s **Task Failed - %s Error**\n\n", emoji, title(category))
	fmt.Fprintf(&b, "Issue #%s could not be completed due to an error.\n\n", issueNumber)
	b.WriteString("### What Happened\n")
	fmt.Fprintf(&b, "%s: %s\n\n", explanation, truncate(err.Error(), 200))

	if sugs := suggestions[category]; len(sugs) > 0 {
		b.WriteString("### 💡 Suggestions\n")
		for _, s := range sugs {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	if includeDetails {
		b.WriteString("<details>\n<summary>Technical Details (click to expand)</summary>\n\n```\n")
		fmt.Fprintf(&b, "Error Type: %T\n", err)
		fmt.Fprintf(&b, "Error: %s\n", err.Error())
		b.WriteString("```\n</details>\n\n")
	}

	b.WriteString("---\n*This is an automated message from the implementation agent*")
	return b.String()
}

// FormatConcise formats err as a one-line string for logs (spec.md §7).
func FormatConcise(err error) string {
	category, explanation := Categorize(err)
	emoji, ok := emojis[category]
	if !ok {
		emoji = "❌"
	}
	return fmt.Sprintf("%s %s: %s - %s", emoji, strings.ToUpper(string(category)), explanation, truncate(err.Error(), 100))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// IssueNumberString normalizes an integer issue number for FormatForTracker,
// which takes issue numbers as strings to stay tracker-agnostic (a GitLab
// or Gitea tracker might use non-numeric IDs).
func IssueNumberString(n int) string {
	return strconv.Itoa(n)
}
