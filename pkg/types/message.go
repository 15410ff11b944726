package types

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // RoleSystem is an instruction message that frames the conversation.
	RoleUser      MessageRole = "user"      // RoleUser is content supplied by the caller.
	RoleAssistant MessageRole = "assistant" // RoleAssistant is content produced by the model.
)

// Message is a single chat message exchanged with an LLM provider.
type Message struct {
	// Role indicates who authored the message.
	Role MessageRole

	// Content is the message text.
	Content string
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// ModelInfo describes the model behind a provider.
type ModelInfo struct {
	// Metadata holds optional provider-specific details (e.g. base_url).
	Metadata map[string]interface{}

	// Provider is the provider family name (e.g. "openai").
	Provider string

	// Name is the model identifier sent on requests.
	Name string
}
