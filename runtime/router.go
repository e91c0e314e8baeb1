package runtime

import (
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/domain/event"
	"bizlink/errors"
	"bizlink/repositories"
	"context"
	"log/slog"
	"time"
)

var _ contract.CommandHandler = (*Router)(nil)

// Censor masks forbidden words in message content.
type Censor interface {
	Censor(content string) (string, []string)
}

// Router runs one send attempt through validation, conversation
// resolution, persistence, fan-out and acknowledgment. Nothing is written
// before validation succeeds; nothing is retried after persistence.
type Router struct {
	log           *slog.Logger
	registry      contract.IRegistry
	directory     contract.IUserDirectory
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	censor        Censor
	now           func() time.Time
	sinkTimeout   time.Duration
}

func NewRouter(
	log *slog.Logger,
	registry contract.IRegistry,
	directory contract.IUserDirectory,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	censor Censor,
	now func() time.Time,
	sinkTimeout time.Duration,
) *Router {
	return &Router{
		log:           log,
		registry:      registry,
		directory:     directory,
		conversations: conversations,
		messages:      messages,
		censor:        censor,
		now:           now,
		sinkTimeout:   sinkTimeout,
	}
}

// Handle executes a command and acknowledges it on the reply sink. Errors
// only ever reach the reply sink.
func (r *Router) Handle(ctx context.Context, envelope contract.Envelope) {
	switch cmd := envelope.Command.(type) {
	case domain.SendMessageCommand:
		message, err := r.Send(ctx, cmd)
		if err != nil {
			r.log.Debug("Send rejected", "user_id", cmd.Sender.UserID, "error", err)
			deliver(ctx, r.log, envelope.Reply, event.MessageError{Message: errors.Message(err), Code: errors.Code(err)}, r.sinkTimeout)
			return
		}
		deliver(ctx, r.log, envelope.Reply, event.MessageSent{Message: message, ConversationID: message.ConversationID}, r.sinkTimeout)
	case domain.MarkReadCommand:
		message, err := r.MarkRead(ctx, cmd)
		if err != nil {
			r.log.Debug("Mark read rejected", "user_id", cmd.Reader.UserID, "error", err)
			deliver(ctx, r.log, envelope.Reply, event.MarkReadError{Message: errors.Message(err), Code: errors.Code(err)}, r.sinkTimeout)
			return
		}
		deliver(ctx, r.log, envelope.Reply, event.MarkReadSuccess{MessageID: message.ID, ConversationID: message.ConversationID}, r.sinkTimeout)
	default:
		r.log.Warn("Unsupported command", "command", cmd)
	}
}

// participants is the resolved role assignment of a send.
type participants struct {
	customerID string
	receiver   domain.User
	business   domain.Business
}

// Send persists and routes a message. The returned message is the
// server-assigned record the sender gets in its acknowledgment.
func (r *Router) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	draft, resolved, err := r.validate(ctx, cmd)
	if err != nil {
		return domain.Message{}, err
	}

	// Past this point the client going away must not leave a half-routed message.
	ctx = context.WithoutCancel(ctx)

	conversation, err := r.conversations.FindOrCreate(ctx, resolved.customerID, resolved.business.ID, resolved.business.OwnerID)
	if err != nil {
		return domain.Message{}, err
	}
	draft.ConversationID = conversation.ConversationID

	if r.censor != nil {
		var words []string
		if draft.Content, words = r.censor.Censor(draft.Content); len(words) > 0 {
			r.log.Info("Message content censored",
				"conversation_id", conversation.ConversationID,
				"sender_id", cmd.Sender.UserID,
				"words", words)
		}
	}
	message, err := r.messages.Create(ctx, draft)
	if err != nil {
		return domain.Message{}, err
	}

	r.route(ctx, cmd.Sender, resolved.receiver, message)
	return message, nil
}

func (r *Router) validate(ctx context.Context, cmd domain.SendMessageCommand) (domain.NewMessage, participants, error) {
	if cmd.ReceiverID == "" || cmd.BusinessID == "" {
		return domain.NewMessage{}, participants{}, errors.ErrMissingPayload
	}
	draft, err := domain.NewMessage{
		SenderID:    cmd.Sender.UserID,
		ReceiverID:  cmd.ReceiverID,
		BusinessID:  cmd.BusinessID,
		Content:     cmd.Content,
		MessageType: cmd.MessageType,
		Attachments: cmd.Attachments,
	}.Normalize()
	if err != nil {
		return domain.NewMessage{}, participants{}, err
	}
	if cmd.ReceiverID == cmd.Sender.UserID {
		return domain.NewMessage{}, participants{}, errors.ErrSelfMessage
	}
	if !r.registry.IsOnline(cmd.Sender.UserID) {
		return domain.NewMessage{}, participants{}, errors.ErrSenderDisconnected
	}

	receiver, err := r.directory.GetUser(ctx, cmd.ReceiverID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return domain.NewMessage{}, participants{}, errors.ErrReceiverNotFound
	}
	if err != nil {
		return domain.NewMessage{}, participants{}, err
	}
	business, err := r.directory.GetBusiness(ctx, cmd.BusinessID)
	if err != nil {
		return domain.NewMessage{}, participants{}, err
	}

	resolved := participants{receiver: receiver, business: business}
	switch cmd.Sender.Role {
	case domain.RoleBusiness:
		if business.OwnerID != cmd.Sender.UserID {
			return domain.NewMessage{}, participants{}, errors.ErrNotBusinessOwner
		}
		if receiver.Role != domain.RoleCustomer {
			return domain.NewMessage{}, participants{}, errors.ErrReceiverNotCustomer
		}
		resolved.customerID = receiver.ID
	default:
		if business.OwnerID != receiver.ID {
			return domain.NewMessage{}, participants{}, errors.ErrReceiverNotOwner
		}
		resolved.customerID = cmd.Sender.UserID
	}
	return draft, resolved, nil
}

// route updates the conversation aggregate then pushes the message to the
// receiver and, for businesses, to the business channel. Store failures at
// this stage are logged: the message is already part of the log.
func (r *Router) route(ctx context.Context, sender domain.Identity, receiver domain.User, message domain.Message) {
	log := r.log.With("conversation_id", message.ConversationID, "message_id", message.ID)
	if err := r.conversations.UpdateLastMessage(ctx, message.ConversationID, message.ID, message.Content, message.CreatedAt); err != nil {
		log.Error("Failed to update last message", "error", err)
	}
	if err := r.conversations.IncrementUnread(ctx, message.ConversationID, receiver.ID); err != nil {
		log.Error("Failed to increment unread counter", "error", err)
	}

	if session, ok := r.registry.Lookup(receiver.ID); ok {
		deliver(ctx, log, session.Sink, event.NewMessage{
			Message:        message,
			ConversationID: message.ConversationID,
			Sender:         sender.Summary(),
		}, r.sinkTimeout)
	} else {
		log.Debug("Receiver offline, message stored only", "user_id", receiver.ID)
	}

	if receiver.Role == domain.RoleBusiness {
		for _, sink := range r.registry.BusinessSinks(message.BusinessID) {
			deliver(ctx, log, sink, event.BusinessMessage{
				Message:        message,
				ConversationID: message.ConversationID,
				Sender:         sender.Summary(),
			}, r.sinkTimeout)
		}
	}
}

// MarkRead marks a message read on behalf of its receiver. Repeating it is
// harmless: the counter reset and the read receipt only happen on the first
// transition.
func (r *Router) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (domain.Message, error) {
	if cmd.MessageID == "" {
		return domain.Message{}, errors.ErrMissingPayload
	}
	message, err := r.messages.Get(ctx, cmd.MessageID)
	if err != nil {
		return domain.Message{}, err
	}
	if cmd.ConversationID != "" && message.ConversationID != cmd.ConversationID {
		return domain.Message{}, errors.ErrConversationMismatch
	}
	conversation, err := r.conversations.Get(ctx, message.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.HasParticipant(cmd.Reader.UserID) {
		return domain.Message{}, errors.ErrNotParticipant
	}
	if message.ReceiverID != cmd.Reader.UserID {
		return domain.Message{}, errors.ErrNotReceiver
	}

	ctx = context.WithoutCancel(ctx)
	read, changed, err := r.messages.MarkAsRead(ctx, message.ID, r.now())
	if err != nil {
		return domain.Message{}, err
	}
	if !changed {
		return read, nil
	}

	log := r.log.With("conversation_id", read.ConversationID, "message_id", read.ID)
	if err = r.conversations.ResetUnread(ctx, read.ConversationID, cmd.Reader.UserID); err != nil {
		log.Error("Failed to reset unread counter", "error", err)
	}
	if session, ok := r.registry.Lookup(read.SenderID); ok && read.ReadAt != nil {
		deliver(ctx, log, session.Sink, event.MessageRead{
			MessageID:      read.ID,
			ConversationID: read.ConversationID,
			ReadBy:         cmd.Reader.UserID,
			ReadAt:         *read.ReadAt,
		}, r.sinkTimeout)
	}
	return read, nil
}
