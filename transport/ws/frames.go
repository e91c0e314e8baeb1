package ws

import (
	"bizlink/domain"

	"github.com/samber/lo"
)

// Inbound frame types.
const (
	SendMessageType  = "send-message"
	MarkReadType     = "mark-read"
	TypingStartType  = "typing-start"
	TypingStopType   = "typing-stop"
	UserStatusType   = "user-status"
	JoinBusinessType = "join-business"
)

type attachmentFrame struct {
	URL      string `json:"url" validate:"required"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size" validate:"gte=0"`
}

// Content and message type are checked by the router so that a missing body
// is reported with the same error over every transport.
type sendMessageFrame struct {
	ReceiverID  string             `json:"receiverId" validate:"required"`
	BusinessID  string             `json:"businessId" validate:"required"`
	Content     string             `json:"content" validate:"max=5000"`
	MessageType domain.MessageType `json:"messageType"`
	Attachments []attachmentFrame  `json:"attachments" validate:"max=10,dive"`
}

func (f sendMessageFrame) command(sender domain.Identity) domain.SendMessageCommand {
	return domain.SendMessageCommand{
		Sender:      sender,
		ReceiverID:  f.ReceiverID,
		BusinessID:  f.BusinessID,
		Content:     f.Content,
		MessageType: f.MessageType,
		Attachments: lo.Map(f.Attachments, func(a attachmentFrame, _ int) domain.Attachment {
			return domain.Attachment{URL: a.URL, Name: a.Name, MimeType: a.MimeType, Size: a.Size}
		}),
	}
}

type markReadFrame struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
}

type typingFrame struct {
	ReceiverID     string `json:"receiverId" validate:"required"`
	BusinessID     string `json:"businessId"`
	ConversationID string `json:"conversationId"`
}

type statusFrame struct {
	Status string `json:"status" validate:"required,oneof=online away busy offline"`
}

type joinBusinessFrame struct {
	BusinessID string `json:"businessId" validate:"required"`
}
