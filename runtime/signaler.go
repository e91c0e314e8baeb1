package runtime

import (
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/domain/event"
	"context"
	"log/slog"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Signaler relays ephemeral notifications. Nothing it sends is persisted,
// retried or acknowledged.
type Signaler struct {
	log         *slog.Logger
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

func NewSignaler(log *slog.Logger, registry contract.IRegistry, sinkTimeout time.Duration) *Signaler {
	return &Signaler{log: log, registry: registry, sinkTimeout: sinkTimeout}
}

// Typing forwards a typing indicator to the receiver. It reports whether
// the receiver was reachable; an offline receiver is not an error.
func (s *Signaler) Typing(ctx context.Context, cmd domain.TypingCommand) bool {
	session, ok := s.registry.Lookup(cmd.ReceiverID)
	if !ok {
		return false
	}
	var e event.DomainEvent
	if cmd.Started {
		e = event.UserTyping{
			UserID:         cmd.From.UserID,
			UserName:       cmd.From.Name,
			BusinessID:     cmd.BusinessID,
			ConversationID: cmd.ConversationID,
		}
	} else {
		e = event.UserStoppedTyping{
			UserID:         cmd.From.UserID,
			UserName:       cmd.From.Name,
			BusinessID:     cmd.BusinessID,
			ConversationID: cmd.ConversationID,
		}
	}
	deliver(ctx, s.log, session.Sink, e, s.sinkTimeout)
	return true
}

// Status broadcasts a presence change of from to every other user.
func (s *Signaler) Status(ctx context.Context, from domain.Identity, status string) {
	e := event.UserStatusChange{UserID: from.UserID, Status: status, UserType: from.Role}
	for _, session := range s.registry.Sessions() {
		if session.UserID == from.UserID {
			continue
		}
		deliver(ctx, s.log, session.Sink, e, s.sinkTimeout)
	}
}

// Offline announces a disconnect, unless the user is still reachable on a
// newer connection.
func (s *Signaler) Offline(ctx context.Context, session contract.Session) {
	if s.registry.IsOnline(session.UserID) {
		return
	}
	s.Status(ctx, session.Identity(), StatusOffline)
}
