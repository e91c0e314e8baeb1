package httpapi

import (
	"bizlink/auth"
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/domain/event"
	"bizlink/repositories"
	"bizlink/runtime"
	"bizlink/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var (
	customer = domain.Identity{UserID: "customer-1", Role: domain.RoleCustomer, Name: "Alice"}
	stranger = domain.Identity{UserID: "customer-2", Role: domain.RoleCustomer, Name: "Eve"}
	owner    = domain.Identity{UserID: "owner-1", Role: domain.RoleBusiness, Name: "Bob"}
)

const businessID = "business-1"

type nopSink struct{}

func (nopSink) Consume(context.Context, event.DomainEvent) error { return nil }

type apiFixture struct {
	handler  http.Handler
	gate     *auth.Gate
	router   *runtime.Router
	registry *runtime.Registry
}

func setupAPI(t *testing.T) apiFixture {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	directory := repositories.NewDirectoryRepository(db)
	for _, identity := range []domain.Identity{customer, stranger, owner} {
		req.NoError(directory.PutUser(ctx, domain.User{ID: identity.UserID, FirstName: identity.Name, Role: identity.Role}))
	}
	req.NoError(directory.PutBusiness(ctx, domain.Business{ID: businessID, OwnerID: owner.UserID, Name: "Bakery"}))

	now := time.Now
	registry := runtime.NewRegistry()
	conversations := repositories.NewConversationRepository(db, log, now)
	messages := repositories.NewMessageRepository(db, directory, log, nil, now)
	router := runtime.NewRouter(log, registry, directory, conversations, messages, nil, now, time.Second)
	service := services.NewMessagingService(log, directory, registry, conversations, messages, router)
	gate := auth.NewGate("test-secret", directory, now)
	return apiFixture{
		handler:  NewRouter(log, gate, service, nil, nil),
		gate:     gate,
		router:   router,
		registry: registry,
	}
}

func (f apiFixture) do(t *testing.T, identity *domain.Identity, method, path, body string) (int, map[string]any) {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if identity != nil {
		token, err := f.gate.IssueToken(identity.UserID, identity.Role, time.Hour)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w.Code, decoded
}

func (f apiFixture) send(t *testing.T, content string) domain.Message {
	t.Helper()
	f.registry.Register(contract.Session{UserID: customer.UserID, ConnectionID: "c-1", Role: customer.Role, Name: customer.Name, Sink: nopSink{}})
	message, err := f.router.Send(context.Background(), domain.SendMessageCommand{
		Sender:     customer,
		ReceiverID: owner.UserID,
		BusinessID: businessID,
		Content:    content,
	})
	require.NoError(t, err)
	return message
}

func TestAPI_Rejects_Missing_Token(t *testing.T) {
	req := require.New(t)
	f := setupAPI(t)

	status, body := f.do(t, nil, http.MethodGet, "/api/messaging/conversations", "")

	req.Equal(http.StatusUnauthorized, status)
	req.Equal(false, body["success"])
	req.Equal("authentication_error", body["code"])
}

func TestAPI_Non_Participant_Gets_Forbidden(t *testing.T) {
	req := require.New(t)
	f := setupAPI(t)
	// Given a conversation between customer-1 and the business
	message := f.send(t, "private")

	// When a third user asks for its history
	status, body := f.do(t, &stranger, http.MethodGet, "/api/messaging/conversations/"+message.ConversationID+"/messages", "")

	// Then the request is denied without leaking anything
	req.Equal(http.StatusForbidden, status)
	req.Equal(false, body["success"])
	req.Equal("access denied to this conversation", body["message"])
	req.NotContains(body, "messages")
}

func TestAPI_Read_Path_Round_Trip(t *testing.T) {
	req := require.New(t)
	f := setupAPI(t)
	message := f.send(t, "hello")

	status, body := f.do(t, &owner, http.MethodGet, "/api/messaging/unread-count", "")
	req.Equal(http.StatusOK, status)
	req.Equal(float64(1), body["unreadCount"])

	status, body = f.do(t, &owner, http.MethodGet, "/api/messaging/conversations/"+message.ConversationID+"/messages", "")
	req.Equal(http.StatusOK, status)
	req.Len(body["messages"], 1)
	req.Nil(body["nextCursor"])

	status, body = f.do(t, &owner, http.MethodPost, "/api/messaging/mark-read",
		`{"messageId":"`+message.ID+`","conversationId":"`+message.ConversationID+`"}`)
	req.Equal(http.StatusOK, status)
	req.Equal(message.ID, body["messageId"])
	req.NotNil(body["readAt"])

	status, body = f.do(t, &owner, http.MethodGet, "/api/messaging/unread-count", "")
	req.Equal(http.StatusOK, status)
	req.Equal(float64(0), body["unreadCount"])
}

func TestAPI_Mark_Read_Validates_Body(t *testing.T) {
	req := require.New(t)
	f := setupAPI(t)

	status, body := f.do(t, &owner, http.MethodPost, "/api/messaging/mark-read", `{"messageId":"m-1"}`)

	req.Equal(http.StatusBadRequest, status)
	req.Equal("validation_error", body["code"])
	req.Contains(body["message"], "conversationId")
}

func TestAPI_Start_And_Delete_Conversation(t *testing.T) {
	req := require.New(t)
	f := setupAPI(t)

	// Business owners cannot start conversations
	status, _ := f.do(t, &owner, http.MethodPost, "/api/messaging/conversations/"+businessID+"/start", "")
	req.Equal(http.StatusBadRequest, status)

	status, body := f.do(t, &customer, http.MethodPost, "/api/messaging/conversations/"+businessID+"/start", "")
	req.Equal(http.StatusOK, status)
	conversation := body["conversation"].(map[string]any)
	conversationID := conversation["conversationId"].(string)
	req.NotEmpty(conversationID)

	status, body = f.do(t, &customer, http.MethodDelete, "/api/messaging/conversations/"+conversationID, "")
	req.Equal(http.StatusOK, status)
	req.Equal(float64(0), body["deletedMessages"])

	status, body = f.do(t, &customer, http.MethodGet, "/api/messaging/conversations", "")
	req.Equal(http.StatusOK, status)
	req.Empty(body["conversations"])
}

func TestAPI_Online_Probe(t *testing.T) {
	req := require.New(t)
	f := setupAPI(t)
	f.registry.Register(contract.Session{UserID: owner.UserID, ConnectionID: "c-2", Role: owner.Role, Sink: nopSink{}})

	status, body := f.do(t, &customer, http.MethodGet, "/api/messaging/online/"+owner.UserID, "")
	req.Equal(http.StatusOK, status)
	req.Equal(true, body["isOnline"])

	_, body = f.do(t, &customer, http.MethodGet, "/api/messaging/online/"+stranger.UserID, "")
	req.Equal(false, body["isOnline"])
}
