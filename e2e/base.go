package e2e

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and skips when no relay is configured
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL is not set")
	}
}

func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseRelaySuite) Token(userID domain.UserID) string {
	token, err := auth.GenerateToken([]byte(s.Config.SecretKey), userID, time.Minute)
	s.Require().NoError(err)
	return token
}

// Dial opens a connection towards receiverID, owned by the user of token.
func (s *BaseRelaySuite) Dial(receiverID domain.UserID, token string) (*websocket.Conn, *http.Response, error) {
	endpoint := fmt.Sprintf("%s/chat/ws/%d?token=%s", strings.TrimRight(s.Config.ServerURL, "/"), receiverID, token)
	return websocket.DefaultDialer.Dial(endpoint, nil)
}

func (s *BaseRelaySuite) Send(conn *websocket.Conn, frame string) {
	if s.Config.DebugJSON {
		s.T().Log("SEND: " + frame)
	}
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (s *BaseRelaySuite) Read(conn *websocket.Conn) []byte {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		s.T().Log("RECV: " + string(data))
	}
	return data
}

func (s *BaseRelaySuite) ReadMessage(conn *websocket.Conn) domain.Message {
	var message domain.Message
	s.Require().NoError(json.Unmarshal(s.Read(conn), &message))
	return message
}

// Health queries the gRPC health service of the relay.
func (s *BaseRelaySuite) Health() healthpb.HealthCheckResponse_ServingStatus {
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	s.Require().NoError(err)

	if s.Config.DebugJSON {
		marshaler := protojson.MarshalOptions{UseProtoNames: true, Multiline: true, EmitUnpopulated: true}
		s.T().Log(marshaler.Format(resp))
	}
	return resp.GetStatus()
}
