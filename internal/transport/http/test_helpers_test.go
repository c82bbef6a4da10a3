package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/clinkchat/clinkchat-server/internal/auth"
	"github.com/clinkchat/clinkchat-server/internal/config"
	"github.com/clinkchat/clinkchat-server/internal/core"
	"github.com/clinkchat/clinkchat-server/internal/filter"
	"github.com/clinkchat/clinkchat-server/internal/proto"
	"github.com/clinkchat/clinkchat-server/internal/store/sqlite"
)

// outboundEnvelope mirrors proto.Outbound with a raw data field so tests can
// decode payloads per event.
type outboundEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// startTestServer wires a full server over an in-memory store and returns
// its base URL.
func startTestServer(t *testing.T) string {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	if err := st.EnsureRoom(context.Background(), cfg.DefaultRoom); err != nil {
		t.Fatalf("failed to ensure default room: %v", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	handoff := auth.NewHandoff(auth.DefaultHandoffTTL)

	logger := zerolog.Nop()
	hub := core.NewHub(cfg, st, handoff, filter.New(filter.DefaultWords), nil, nil, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, authService, handoff, cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts.URL
}

// postJSON sends a JSON body and decodes the JSON response into out.
func postJSON(t *testing.T, url, bearer string, body, out any) int {
	t.Helper()

	buf := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

// registerUser registers a user through the API and returns the JWT.
func registerUser(t *testing.T, baseURL, username, password string) string {
	t.Helper()

	var resp AuthResponse
	status := postJSON(t, baseURL+"/api/register", "", RegisterRequest{Username: username, Password: password}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register returned status %d", status)
	}
	return resp.Token
}

// socketToken exchanges a JWT for a handoff token.
func socketToken(t *testing.T, baseURL, jwt string) string {
	t.Helper()

	var resp SocketTokenResponse
	status := postJSON(t, baseURL+"/api/socket-token", jwt, nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("socket-token returned status %d", status)
	}
	return resp.Token
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func sendInbound(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed to marshal %s data: %v", msgType, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

// readUntilEvent reads outbound messages until one with the wanted event
// name arrives.
func readUntilEvent(t *testing.T, conn *websocket.Conn, name string) outboundEnvelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		var out outboundEnvelope
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read failed while waiting for %q: %v", name, err)
		}
		if out.Type == proto.OutboundTypeEvent && out.Event == name {
			return out
		}
	}
}

// readUntilError reads outbound messages until an error with the wanted code
// arrives.
func readUntilError(t *testing.T, conn *websocket.Conn, code string) outboundEnvelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		var out outboundEnvelope
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read failed while waiting for error %q: %v", code, err)
		}
		if out.Type == proto.OutboundTypeError && out.Error != nil && out.Error.Code == code {
			return out
		}
	}
}

// connectUser runs the full handshake: register, socket token, dial, join.
func connectUser(t *testing.T, baseURL, username string) *websocket.Conn {
	t.Helper()

	jwt := registerUser(t, baseURL, username, "password1")
	token := socketToken(t, baseURL, jwt)
	conn := dialWS(t, baseURL)
	sendInbound(t, conn, proto.InboundTypeJoin, proto.JoinData{Token: token, Protocol: proto.ProtocolVersion})
	readUntilEvent(t, conn, proto.EventRoomChanged)
	return conn
}
