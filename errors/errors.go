// Package errors defines the error taxonomy shared by the stores, the delivery
// router and the transports. Every error that can reach a client carries a Kind
// so the transport layer can turn it into a typed frame or an HTTP status.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication_error"
	case KindAuthorization:
		return "authorization_error"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// Error is a classified error. Msg is safe to show to the caller, Err is the
// underlying cause and is only logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Authentication(msg string) *Error { return New(KindAuthentication, msg) }
func Authorization(msg string) *Error  { return New(KindAuthorization, msg) }
func Validation(msg string) *Error     { return New(KindValidation, msg) }
func NotFound(msg string) *Error       { return New(KindNotFound, msg) }

func Persistence(msg string, err error) *Error {
	return Wrap(KindPersistence, msg, err)
}

var (
	ErrMissingToken         = Authentication("authentication token is missing")
	ErrInvalidToken         = Authentication("invalid or expired token")
	ErrUnknownIdentity      = Authentication("user not found")
	ErrNotParticipant       = Authorization("access denied to this conversation")
	ErrNotReceiver          = Authorization("you can only mark messages you received as read")
	ErrNotBusinessOwner     = Authorization("sender does not own this business")
	ErrMissingPayload       = Validation("invalid message data")
	ErrEmptyContent         = Validation("message content cannot be empty")
	ErrInvalidMessageType   = Validation("unsupported message type")
	ErrSelfMessage          = Validation("cannot send a message to yourself")
	ErrReceiverNotOwner     = Validation("receiver is not the owner of this business")
	ErrReceiverNotCustomer  = Validation("business owners can only message customers")
	ErrOnlyCustomers        = Validation("only customers can start a conversation")
	ErrSenderDisconnected   = Validation("sender is not connected")
	ErrConversationMismatch = Validation("message does not belong to this conversation")
	ErrReceiverNotFound     = NotFound("receiver not found")
	ErrBusinessNotFound     = NotFound("business not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrWorkerPanic          = stderrors.New("worker panic")
)

// KindOf returns the Kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the caller-facing message of err. Unclassified errors are
// never echoed back verbatim.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

func Code(err error) string {
	return KindOf(err).String()
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
