package types

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// MaxChatMessageLength bounds a single user question in runes. chat.SendRequest
// carries the same bound in its validate tag.
const MaxChatMessageLength = 2000
