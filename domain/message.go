package domain

import (
	"bizlink/errors"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is an entry of the append-only log. Content never changes after
// creation and IsRead only moves from false to true.
type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"sender"`
	ReceiverID     string              `json:"receiver"`
	BusinessID     string              `json:"businessId"`
	Content        string              `json:"content"`
	MessageType    MessageType         `json:"messageType"`
	Attachments    []Attachment        `json:"attachments"`
	IsRead         bool                `json:"isRead"`
	ReadAt         *time.Time          `json:"readAt"`
	DeletedFor     map[string]struct{} `json:"-"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func (m Message) DeletedForUser(userID string) bool {
	_, ok := m.DeletedFor[userID]
	return ok
}

// NewMessage is the input of the message store.
type NewMessage struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	BusinessID     string
	Content        string
	MessageType    MessageType
	Attachments    []Attachment
}

// Normalize trims the content and defaults the type to text. Text needs
// content; images and files need content or at least one attachment.
func (m NewMessage) Normalize() (NewMessage, error) {
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	if !m.MessageType.Valid() {
		return m, errors.ErrInvalidMessageType
	}
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" && (m.MessageType == MessageTypeText || len(m.Attachments) == 0) {
		return m, errors.ErrEmptyContent
	}
	return m, nil
}
