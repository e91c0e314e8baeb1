package services

import (
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/errors"
	"bizlink/repositories"
	"context"
	"log/slog"

	"github.com/samber/lo"
)

type IMessagingService interface {
	ListConversations(ctx context.Context, caller domain.Identity) ([]ConversationView, error)
	StartConversation(ctx context.Context, caller domain.Identity, businessID string) (domain.Conversation, error)
	ListMessages(ctx context.Context, caller domain.Identity, conversationID string, cursor *string) ([]domain.Message, *string, error)
	MarkRead(ctx context.Context, caller domain.Identity, messageID, conversationID string) (domain.Message, error)
	UnreadCount(ctx context.Context, caller domain.Identity) (int, error)
	DeleteConversation(ctx context.Context, caller domain.Identity, conversationID string) (int, error)
	IsOnline(userID string) bool
}

// MarkReader is the read-receipt half of the delivery router.
type MarkReader interface {
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (domain.Message, error)
}

// ConversationView is a conversation as its caller sees it.
type ConversationView struct {
	domain.Conversation
	Counterpart domain.UserSummary `json:"counterpart"`
	Business    domain.Business    `json:"business"`
	Unread      int                `json:"unread"`
}

// MessagingService is the synchronous read path next to the websocket.
type MessagingService struct {
	log           *slog.Logger
	directory     contract.IUserDirectory
	registry      contract.IRegistry
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	reader        MarkReader
}

func NewMessagingService(
	log *slog.Logger,
	directory contract.IUserDirectory,
	registry contract.IRegistry,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	reader MarkReader,
) *MessagingService {
	return &MessagingService{
		log:           log,
		directory:     directory,
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		reader:        reader,
	}
}

// ListConversations returns the caller's active conversations, most recent
// first, with the other participant and the business resolved.
func (s *MessagingService) ListConversations(ctx context.Context, caller domain.Identity) ([]ConversationView, error) {
	conversations, err := s.conversations.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]ConversationView, 0, len(conversations))
	for _, c := range conversations {
		view := ConversationView{Conversation: c, Unread: c.UnreadFor(caller.UserID)}
		if user, err := s.directory.GetUser(ctx, c.Counterpart(caller.UserID)); err == nil {
			view.Counterpart = domain.UserSummary{ID: user.ID, Name: user.FullName(), UserType: user.Role}
		} else {
			s.log.Warn("Counterpart not resolved", "conversation_id", c.ConversationID, "error", err)
			view.Counterpart = domain.UserSummary{ID: c.Counterpart(caller.UserID)}
		}
		if business, err := s.directory.GetBusiness(ctx, c.BusinessID); err == nil {
			view.Business = business
		} else {
			view.Business = domain.Business{ID: c.BusinessID}
		}
		views = append(views, view)
	}
	return views, nil
}

// StartConversation opens (or returns) the caller's conversation with a
// business. Only customers start conversations.
func (s *MessagingService) StartConversation(ctx context.Context, caller domain.Identity, businessID string) (domain.Conversation, error) {
	if caller.Role != domain.RoleCustomer {
		return domain.Conversation{}, errors.ErrOnlyCustomers
	}
	business, err := s.directory.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if business.OwnerID == caller.UserID {
		return domain.Conversation{}, errors.ErrSelfMessage
	}
	return s.conversations.FindOrCreate(ctx, caller.UserID, business.ID, business.OwnerID)
}

// ListMessages pages through a conversation the caller participates in.
func (s *MessagingService) ListMessages(ctx context.Context, caller domain.Identity, conversationID string, cursor *string) ([]domain.Message, *string, error) {
	if _, err := s.participantOf(ctx, caller, conversationID); err != nil {
		return nil, nil, err
	}
	return s.messages.ListForConversation(ctx, conversationID, caller.UserID, cursor)
}

func (s *MessagingService) MarkRead(ctx context.Context, caller domain.Identity, messageID, conversationID string) (domain.Message, error) {
	return s.reader.MarkRead(ctx, domain.MarkReadCommand{
		Reader:         caller,
		MessageID:      messageID,
		ConversationID: conversationID,
	})
}

// UnreadCount sums the caller's counters over their active conversations.
func (s *MessagingService) UnreadCount(ctx context.Context, caller domain.Identity) (int, error) {
	conversations, err := s.conversations.ListForUser(ctx, caller.UserID)
	if err != nil {
		return 0, err
	}
	return lo.SumBy(conversations, func(c domain.Conversation) int {
		return c.UnreadFor(caller.UserID)
	}), nil
}

// DeleteConversation hides every message of the conversation from the
// caller and removes it from their list. The other participant keeps both.
func (s *MessagingService) DeleteConversation(ctx context.Context, caller domain.Identity, conversationID string) (int, error) {
	if _, err := s.participantOf(ctx, caller, conversationID); err != nil {
		return 0, err
	}
	count, err := s.messages.SoftDeleteConversationForUser(ctx, conversationID, caller.UserID)
	if err != nil {
		return 0, err
	}
	if err = s.conversations.DeactivateForUser(ctx, conversationID, caller.UserID); err != nil {
		return 0, err
	}
	s.log.Info("Conversation deleted for user", "conversation_id", conversationID, "user_id", caller.UserID, "messages", count)
	return count, nil
}

func (s *MessagingService) IsOnline(userID string) bool {
	return s.registry.IsOnline(userID)
}

func (s *MessagingService) participantOf(ctx context.Context, caller domain.Identity, conversationID string) (domain.Conversation, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conversation.HasParticipant(caller.UserID) {
		return domain.Conversation{}, errors.ErrNotParticipant
	}
	return conversation, nil
}
