// Package event defines every frame the server pushes to a live connection.
// Name is the wire event name; the struct itself is the frame payload.
package event

import (
	"bizlink/domain"
	"time"
)

type DomainEvent interface {
	Name() string
}

const (
	ConnectedName         = "connected"
	MessageSentName       = "message-sent"
	MessageErrorName      = "message-error"
	NewMessageName        = "new-message"
	BusinessMessageName   = "business-message"
	MarkReadSuccessName   = "mark-read-success"
	MarkReadErrorName     = "mark-read-error"
	MessageReadName       = "message-read"
	UserTypingName        = "user-typing"
	UserStoppedTypingName = "user-stopped-typing"
	UserStatusChangeName  = "user-status-change"
	BusinessJoinedName    = "business-joined"
	ErrorName             = "error"
)

// Connected is the handshake frame. Clients expire typing indicators after
// TypingTimeoutMs even without a stop event.
type Connected struct {
	UserID          string      `json:"userId"`
	UserType        domain.Role `json:"userType"`
	TypingTimeoutMs int64       `json:"typingTimeoutMs"`
}

func (Connected) Name() string { return ConnectedName }

// MessageSent acknowledges a send to its author.
type MessageSent struct {
	Message        domain.Message `json:"message"`
	ConversationID string         `json:"conversationId"`
}

func (MessageSent) Name() string { return MessageSentName }

type MessageError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (MessageError) Name() string { return MessageErrorName }

type NewMessage struct {
	Message        domain.Message     `json:"message"`
	ConversationID string             `json:"conversationId"`
	Sender         domain.UserSummary `json:"sender"`
}

func (NewMessage) Name() string { return NewMessageName }

// BusinessMessage goes to every connection that joined the business channel.
type BusinessMessage struct {
	Message        domain.Message     `json:"message"`
	ConversationID string             `json:"conversationId"`
	Sender         domain.UserSummary `json:"sender"`
}

func (BusinessMessage) Name() string { return BusinessMessageName }

type MarkReadSuccess struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

func (MarkReadSuccess) Name() string { return MarkReadSuccessName }

type MarkReadError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (MarkReadError) Name() string { return MarkReadErrorName }

type MessageRead struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

func (MessageRead) Name() string { return MessageReadName }

type UserTyping struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	BusinessID     string `json:"businessId"`
	ConversationID string `json:"conversationId"`
}

func (UserTyping) Name() string { return UserTypingName }

type UserStoppedTyping struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	BusinessID     string `json:"businessId"`
	ConversationID string `json:"conversationId"`
}

func (UserStoppedTyping) Name() string { return UserStoppedTypingName }

type UserStatusChange struct {
	UserID   string      `json:"userId"`
	Status   string      `json:"status"`
	UserType domain.Role `json:"userType"`
}

func (UserStatusChange) Name() string { return UserStatusChangeName }

type BusinessJoined struct {
	BusinessID string `json:"businessId"`
}

func (BusinessJoined) Name() string { return BusinessJoinedName }

// Error answers frames that could not be decoded or are not supported.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) Name() string { return ErrorName }
