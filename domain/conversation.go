package domain

import (
	"fmt"
	"time"
)

// UnreadCount holds one counter per participant slot.
type UnreadCount struct {
	Customer      int `json:"customer"`
	BusinessOwner int `json:"businessOwner"`
}

// Conversation aggregates the messages exchanged between one customer and one
// business. Its ID is derived from the pair so concurrent creators converge.
type Conversation struct {
	ConversationID     string              `json:"conversationId"`
	CustomerID         string              `json:"customer"`
	BusinessOwnerID    string              `json:"businessOwner"`
	BusinessID         string              `json:"businessId"`
	Participants       [2]string           `json:"participants"`
	LastMessageID      string              `json:"lastMessageId,omitempty"`
	LastMessageContent string              `json:"lastMessageContent,omitempty"`
	LastMessageTime    time.Time           `json:"lastMessageTime"`
	UnreadCount        UnreadCount         `json:"unreadCount"`
	IsActive           bool                `json:"isActive"`
	DeactivatedFor     map[string]struct{} `json:"-"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// ConversationID is the canonical key of a (customer, business) pair.
// The customer always comes first, whoever sends the first message. Its
// length prefixes the key so that no two pairs share an id.
func ConversationID(customerID, businessID string) string {
	return fmt.Sprintf("conv_%d_%s_%s", len(customerID), customerID, businessID)
}

func NewConversation(customerID, businessID, businessOwnerID string, at time.Time) Conversation {
	return Conversation{
		ConversationID:  ConversationID(customerID, businessID),
		CustomerID:      customerID,
		BusinessOwnerID: businessOwnerID,
		BusinessID:      businessID,
		Participants:    [2]string{customerID, businessOwnerID},
		LastMessageTime: at,
		IsActive:        true,
		CreatedAt:       at,
	}
}

func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.CustomerID == userID || c.BusinessOwnerID == userID)
}

// RoleOf returns the slot userID occupies in the conversation.
func (c Conversation) RoleOf(userID string) (Role, bool) {
	switch userID {
	case "":
		return "", false
	case c.CustomerID:
		return RoleCustomer, true
	case c.BusinessOwnerID:
		return RoleBusiness, true
	}
	return "", false
}

func (c Conversation) UnreadFor(userID string) int {
	role, ok := c.RoleOf(userID)
	if !ok {
		return 0
	}
	if role == RoleCustomer {
		return c.UnreadCount.Customer
	}
	return c.UnreadCount.BusinessOwner
}

// VisibleTo reports whether the conversation shows up in userID's list.
func (c Conversation) VisibleTo(userID string) bool {
	if !c.IsActive || !c.HasParticipant(userID) {
		return false
	}
	_, hidden := c.DeactivatedFor[userID]
	return !hidden
}

// Counterpart returns the other participant.
func (c Conversation) Counterpart(userID string) string {
	if userID == c.CustomerID {
		return c.BusinessOwnerID
	}
	return c.CustomerID
}
