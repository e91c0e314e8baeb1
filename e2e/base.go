package e2e

import (
	"bizlink/auth"
	"bizlink/domain"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	gate   *auth.Gate
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HTTPAddr == "" {
		s.T().Skip("E2E_HTTP_ADDR not set")
	}
	s.Require().NotEmpty(s.Config.JWTSecret, "JWT_SECRET is required")
	s.gate = auth.NewGate(s.Config.JWTSecret, nil, time.Now)
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

func (s *BaseSuite) Token(userID string, role domain.Role) string {
	token, err := s.gate.IssueToken(userID, role, time.Hour)
	s.Require().NoError(err)
	return token
}

// GrpcConn initializes a gRPC connection with logging, colors, and JSON debugging
func (s *BaseSuite) GrpcConn(t *testing.T, name string) *grpc.ClientConn {
	s.header(t, name)
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}
	conn, err := grpc.NewClient(s.Config.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err == nil {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GRPCAddr)
	return conn
}

// WithHealth provides a health client within a contextual test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client grpc_health_v1.HealthClient)) {
	conn := s.GrpcConn(s.T(), name)
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, grpc_health_v1.NewHealthClient(conn))
}

// Socket opens a websocket for the given token.
func (s *BaseSuite) Socket(name, token string) *websocket.Conn {
	s.header(s.T(), name)
	url := "ws" + strings.TrimPrefix(s.Config.HTTPAddr, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

// Await reads frames until one of type typ arrives and decodes its data.
func (s *BaseSuite) Await(conn *websocket.Conn, typ string, data any) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for %s", typ)
		if frame.Type != typ {
			continue
		}
		if data != nil {
			s.Require().NoError(json.Unmarshal(frame.Data, data))
		}
		return
	}
}

// Call performs an authenticated HTTP request and decodes the JSON body.
func (s *BaseSuite) Call(method, path, token string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.Config.HTTPAddr+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	s.T().Logf("HTTP %s %s [%d]", method, path, resp.StatusCode)
	return resp.StatusCode, decoded
}
