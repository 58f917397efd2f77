package inference

import "strings"

// Role is who said a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

func NewSystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func NewUserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Prompt builds the request for a single-shot completion. An empty
// system prompt is left out.
func Prompt(system, user string) []Message {
	if system == "" {
		return []Message{NewUserMessage(user)}
	}
	return []Message{NewSystemMessage(system), NewUserMessage(user)}
}

// splitSystem pulls system instructions out of msgs, joined by a blank
// line, for APIs that take the system prompt out of band.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
