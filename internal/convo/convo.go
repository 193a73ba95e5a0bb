// Package convo holds the ordered, append-only conversation exchanged with
// an LLM provider for one trial.
package convo

import "fmt"

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates the variants of Block's tagged union.
type BlockKind string

const (
	KindText       BlockKind = "text"
	KindToolUse    BlockKind = "tool_use"
	KindToolResult BlockKind = "tool_result"
)

// Block is one content block inside a Message. Exactly the fields for its
// Kind are meaningful; the rest are zero. Modeling content as a tagged sum
// rather than an interface keeps providers' translation code (the only
// place that inspects Kind) simple table switches.
type Block struct {
	Kind BlockKind

	// Text carries the string for KindText, and the error/success payload
	// for KindToolResult.
	Text string

	// ToolUseID identifies a tool_use block, or the tool_use it answers for
	// a tool_result block.
	ToolUseID string

	// ToolName is set for KindToolUse.
	ToolName string

	// ToolInput is the call's arguments, set for KindToolUse.
	ToolInput map[string]any

	// IsError is set for KindToolResult.
	IsError bool
}

func TextBlock(s string) Block { return Block{Kind: KindText, Text: s} }

func ToolUseBlock(id, name string, input map[string]any) Block {
	return Block{Kind: KindToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

func ToolResultBlock(id, content string, isError bool) Block {
	return Block{Kind: KindToolResult, ToolUseID: id, Text: content, IsError: isError}
}

// Message is one role-tagged entry in a Conversation. Content is a sequence
// of Blocks; a plain-text message is simply a single KindText block.
type Message struct {
	Role    Role
	Content []Block
}

// ToolUses returns the tool_use blocks in the message, in order.
func (m Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Content {
		if b.Kind == KindToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Text concatenates the text blocks in the message.
func (m Message) Text() string {
	var s string
	for _, b := range m.Content {
		if b.Kind == KindText {
			s += b.Text
		}
	}
	return s
}

func UserText(s string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock(s)}}
}

// Conversation is the ordered, append-only sequence of messages for one
// trial. It is owned by a single task and never shared (spec.md §5).
type Conversation struct {
	messages []Message
}

func New() *Conversation { return &Conversation{} }

func (c *Conversation) Append(m Message) { c.messages = append(c.messages, m) }

func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int { return len(c.messages) }

func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Reset clears the conversation, used by the Trial Controller between
// trials (spec.md §4.7 step 6).
func (c *Conversation) Reset() { c.messages = nil }

// AppendToolResults appends a single user message carrying one tool_result
// block per call, in the same order as calls, preserving I-C2/P2.
func (c *Conversation) AppendToolResults(results []Block) error {
	for _, b := range results {
		if b.Kind != KindToolResult {
			return fmt.Errorf("convo: AppendToolResults: block %q is not a tool_result", b.Kind)
		}
	}
	c.Append(Message{Role: RoleUser, Content: results})
	return nil
}

// Validate checks I-C1/I-C3 over the whole sequence: every tool_result's
// call-id answers a tool_use appearing earlier, and no two adjacent
// messages share a role. Intended for tests, not the hot path.
func (c *Conversation) Validate() error {
	seen := map[string]bool{}
	for i, m := range c.messages {
		if i > 0 && c.messages[i-1].Role == m.Role {
			return fmt.Errorf("convo: adjacent messages %d,%d both have role %q", i-1, i, m.Role)
		}
		for _, b := range m.Content {
			switch b.Kind {
			case KindToolUse:
				seen[b.ToolUseID] = true
			case KindToolResult:
				if !seen[b.ToolUseID] {
					return fmt.Errorf("convo: tool_result %q at message %d has no preceding tool_use", b.ToolUseID, i)
				}
			}
		}
	}
	return nil
}
