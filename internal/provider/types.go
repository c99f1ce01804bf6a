package provider

// Role describes the purpose a chain entry serves.
type Role string

const (
	// RolePrimary answers user questions.
	RolePrimary Role = "primary"
	// RoleInternal serves short machine-facing calls: intent
	// classification and cache similarity judgments.
	RoleInternal Role = "internal"
	// RoleFallback takes over when the entries of a role are unavailable.
	RoleFallback Role = "fallback"
)

// ParseRole validates a configured role name. Empty means primary.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "":
		return RolePrimary, true
	case RolePrimary, RoleInternal, RoleFallback:
		return Role(s), true
	default:
		return "", false
	}
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// FinishReason describes why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonFiltering FinishReason = "filtering"
)

// Message is one entry of a conversation sent to a provider.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// CompletionRequest is the input to Provider.Complete.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// System returns the concatenated system messages and the remaining
// conversation, for APIs that take the system prompt separately.
func (r CompletionRequest) System() (string, []Message) {
	var system string
	rest := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == MessageRoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// CompletionResponse is the output of Provider.Complete.
type CompletionResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
}

// TokenUsage reports token counts for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
