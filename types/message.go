// Package types provides the provider-agnostic core types of the gateway.
// This package has ZERO dependencies on other llmgate packages to avoid
// circular imports. All other packages should import types from here.
package types

import "encoding/json"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one conversation turn in normalized form.
// Ordering of messages is significant and preserved end to end; providers
// that take the system prompt out-of-band extract it at translation time.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// ToolSchema describes a tool the model may call, in normalized form.
// Parameters holds a JSON Schema document and is passed through to the
// provider's tool-declaration shape untouched.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Options carries per-call generation overrides. A nil field means
// "use the active configuration value"; capability-gated fields
// (ReasoningEffort, WebSearch, Tools) are silently dropped at request
// translation when the active model lacks the capability.
type Options struct {
	Temperature     *float32     `json:"temperature,omitempty"`
	MaxTokens       int          `json:"max_tokens,omitempty"`
	ReasoningEffort string       `json:"reasoning_effort,omitempty"`
	Tools           []ToolSchema `json:"tools,omitempty"`
	WebSearch       bool         `json:"web_search,omitempty"`
}
