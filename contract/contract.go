//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"bizlink/domain"
	"bizlink/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the write side of one live connection.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Session is the presence record of one live connection.
type Session struct {
	UserID       string
	ConnectionID string
	Role         domain.Role
	Name         string
	Sink         EventSink
}

func (s Session) Identity() domain.Identity {
	return domain.Identity{UserID: s.UserID, Role: s.Role, Name: s.Name}
}

// IRegistry is the single source of truth for reachability.
// A user is reachable at one connection only (the most recent one); the
// business channel is the only place several connections share a target.
type IRegistry interface {
	Register(session Session)
	Unregister(connectionID string) (Session, bool)
	Lookup(userID string) (Session, bool)
	IsOnline(userID string) bool
	JoinBusiness(businessID string, session Session)
	BusinessSinks(businessID string) []EventSink
	Sessions() []Session
	Count() int
}

// Envelope carries a command to a worker together with the connection that
// must receive the acknowledgment.
type Envelope struct {
	Command domain.Command
	Reply   EventSink
}

type CommandHandler interface {
	Handle(ctx context.Context, envelope Envelope)
}
