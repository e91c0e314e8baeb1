// Package ws is the real-time channel: one websocket per authenticated
// user, JSON frames in both directions.
package ws

import (
	"bizlink/auth"
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/domain/event"
	"bizlink/errors"
	"bizlink/runtime"
	"bizlink/transport/httpapi"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Dispatcher queues commands for the delivery router.
type Dispatcher interface {
	Dispatch(ctx context.Context, envelope contract.Envelope) error
}

type Options struct {
	AllowedOrigins       []string
	ConnectionBufferSize int
	SinkTimeout          time.Duration
	TypingTimeout        time.Duration
}

type Gateway struct {
	log        *slog.Logger
	gate       *auth.Gate
	registry   contract.IRegistry
	directory  contract.IUserDirectory
	dispatcher Dispatcher
	signaler   *runtime.Signaler
	upgrader   websocket.Upgrader
	options    Options
	now        func() time.Time
}

func NewGateway(
	log *slog.Logger,
	gate *auth.Gate,
	registry contract.IRegistry,
	directory contract.IUserDirectory,
	dispatcher Dispatcher,
	signaler *runtime.Signaler,
	options Options,
	now func() time.Time,
) *Gateway {
	return &Gateway{
		log:        log,
		gate:       gate,
		registry:   registry,
		directory:  directory,
		dispatcher: dispatcher,
		signaler:   signaler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(options.AllowedOrigins),
		},
		options: options,
		now:     now,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}

// ServeHTTP authenticates the caller, upgrades the request and serves the
// connection until the client goes away.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := g.gate.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		httpapi.WriteError(g.log, w, err)
		return
	}
	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	conn := NewConnection(identity.UserID, socket, g.options.ConnectionBufferSize)
	session := contract.Session{
		UserID:       identity.UserID,
		ConnectionID: conn.ID,
		Role:         identity.Role,
		Name:         identity.Name,
		Sink:         conn,
	}
	log := g.log.With("user_id", identity.UserID, "connection_id", conn.ID)

	// The request context ends with ServeHTTP; the session outlives nothing else.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn.Start()
	g.registry.Register(session)
	log.Info("User connected", "role", identity.Role)

	g.reply(ctx, log, conn, event.Connected{
		UserID:          identity.UserID,
		UserType:        identity.Role,
		TypingTimeoutMs: g.options.TypingTimeout.Milliseconds(),
	})
	g.signaler.Status(ctx, identity, runtime.StatusOnline)

	g.readLoop(ctx, log, session, conn, socket)

	if stale, ok := g.registry.Unregister(conn.ID); ok {
		g.signaler.Offline(ctx, stale)
	}
	conn.Close(websocket.CloseNormalClosure, "")
	log.Info("User disconnected")
}

func (g *Gateway) readLoop(ctx context.Context, log *slog.Logger, session contract.Session, conn *Connection, socket *websocket.Conn) {
	socket.SetReadLimit(readLimit)
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Websocket closed unexpectedly", "error", err)
			}
			return
		}
		_ = socket.SetReadDeadline(time.Now().Add(pongWait))

		var frame Frame
		if err = json.Unmarshal(payload, &frame); err != nil || frame.Type == "" {
			g.reply(ctx, log, conn, event.Error{Code: "bad_request", Message: "malformed frame"})
			continue
		}
		g.handle(ctx, log, session, conn, frame)
	}
}

func (g *Gateway) handle(ctx context.Context, log *slog.Logger, session contract.Session, conn *Connection, frame Frame) {
	identity := session.Identity()
	switch frame.Type {
	case SendMessageType:
		var f sendMessageFrame
		if err := decode(frame, &f); err != nil {
			g.reply(ctx, log, conn, event.MessageError{Message: errors.Message(err), Code: errors.Code(err)})
			return
		}
		cmd := f.command(identity)
		cmd.ReceivedAt = g.now()
		g.dispatch(ctx, log, conn, cmd)
	case MarkReadType:
		var f markReadFrame
		if err := decode(frame, &f); err != nil {
			g.reply(ctx, log, conn, event.MarkReadError{Message: errors.Message(err), Code: errors.Code(err)})
			return
		}
		g.dispatch(ctx, log, conn, domain.MarkReadCommand{
			Reader:         identity,
			MessageID:      f.MessageID,
			ConversationID: f.ConversationID,
		})
	case TypingStartType, TypingStopType:
		var f typingFrame
		if err := decode(frame, &f); err != nil {
			g.replyError(ctx, log, conn, err)
			return
		}
		g.signaler.Typing(ctx, domain.TypingCommand{
			From:           identity,
			ReceiverID:     f.ReceiverID,
			BusinessID:     f.BusinessID,
			ConversationID: f.ConversationID,
			Started:        frame.Type == TypingStartType,
		})
	case UserStatusType:
		var f statusFrame
		if err := decode(frame, &f); err != nil {
			g.replyError(ctx, log, conn, err)
			return
		}
		g.signaler.Status(ctx, identity, f.Status)
	case JoinBusinessType:
		var f joinBusinessFrame
		if err := decode(frame, &f); err != nil {
			g.replyError(ctx, log, conn, err)
			return
		}
		if err := g.joinBusiness(ctx, session, f.BusinessID); err != nil {
			g.replyError(ctx, log, conn, err)
			return
		}
		g.reply(ctx, log, conn, event.BusinessJoined{BusinessID: f.BusinessID})
	default:
		g.reply(ctx, log, conn, event.Error{Code: "unsupported_type", Message: "unsupported frame type " + frame.Type})
	}
}

// joinBusiness subscribes the session to the business channel of a
// business it owns.
func (g *Gateway) joinBusiness(ctx context.Context, session contract.Session, businessID string) error {
	if session.Role != domain.RoleBusiness {
		return errors.ErrNotBusinessOwner
	}
	business, err := g.directory.GetBusiness(ctx, businessID)
	if err != nil {
		return err
	}
	if business.OwnerID != session.UserID {
		return errors.ErrNotBusinessOwner
	}
	g.registry.JoinBusiness(businessID, session)
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, log *slog.Logger, conn *Connection, cmd domain.Command) {
	if err := g.dispatcher.Dispatch(ctx, contract.Envelope{Command: cmd, Reply: conn}); err != nil {
		log.Warn("Command not dispatched", "error", err)
	}
}

func (g *Gateway) replyError(ctx context.Context, log *slog.Logger, conn *Connection, err error) {
	g.reply(ctx, log, conn, event.Error{Code: errors.Code(err), Message: errors.Message(err)})
}

func (g *Gateway) reply(ctx context.Context, log *slog.Logger, conn *Connection, e event.DomainEvent) {
	if g.options.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.options.SinkTimeout)
		defer cancel()
	}
	if err := conn.Consume(ctx, e); err != nil {
		log.Warn("Reply not delivered", "event", e.Name(), "error", err)
	}
}

// Shutdown closes every live connection. Each read loop then unregisters
// its own session.
func (g *Gateway) Shutdown() {
	for _, session := range g.registry.Sessions() {
		if conn, ok := session.Sink.(*Connection); ok {
			conn.Close(websocket.CloseGoingAway, "server shutdown")
		}
	}
}

// decode unmarshals and validates the payload of a frame.
func decode(frame Frame, v any) error {
	data := bytes.TrimSpace(frame.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.ErrMissingPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.KindValidation, "malformed payload", err)
	}
	return auth.Validate(v)
}
