package nlp

import (
	"context"

	"github.com/nimbium/cirro/pkg/types"
)

// Client is the chat surface the pipeline talks to. Every provider
// binding and every decorator (retry, circuit breaker, token tracking,
// routing) satisfies it, so pairwise judging, requirement extraction,
// and summarizing never care which backend answers.
type Client interface {
	// Chat sends the conversation and returns the model's reply.
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)

	// ChatWithStructuredOutput constrains the reply to the given JSON
	// schema on providers that support it; others approximate with
	// prompt instructions.
	ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error)

	// GetCapabilities reports which task kinds this client serves.
	GetCapabilities() []TaskCapability

	// Close cleans up any resources.
	Close() error
}

// Chat roles, mirroring the OpenAI wire values every supported provider
// accepts.
const (
	RoleSystem    types.Role = "system"
	RoleUser      types.Role = "user"
	RoleAssistant types.Role = "assistant"
)

// NewMessage creates a message with the given role and content.
func NewMessage(role types.Role, content string) types.Message {
	return types.Message{Role: role, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) types.Message { return NewMessage(RoleSystem, content) }

// NewUserMessage creates a user message.
func NewUserMessage(content string) types.Message { return NewMessage(RoleUser, content) }

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) types.Message { return NewMessage(RoleAssistant, content) }
