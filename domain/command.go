package domain

import "time"

// Command is an intent accepted from a live connection and processed by the
// dispatcher. ShardKey decides which worker owns it.
type Command interface {
	ShardKey() string
}

type SendMessageCommand struct {
	Sender      Identity
	ReceiverID  string
	BusinessID  string
	Content     string
	MessageType MessageType
	Attachments []Attachment
	ReceivedAt  time.Time
}

// ShardKey keeps every message of a conversation on the same worker:
// all of them share the business.
func (c SendMessageCommand) ShardKey() string {
	return c.BusinessID
}

type MarkReadCommand struct {
	Reader         Identity
	MessageID      string
	ConversationID string
}

func (c MarkReadCommand) ShardKey() string {
	return c.ConversationID
}

type TypingCommand struct {
	From           Identity
	ReceiverID     string
	BusinessID     string
	ConversationID string
	Started        bool
}
