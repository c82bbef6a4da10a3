package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinkchat/clinkchat-server/internal/config"
	"github.com/clinkchat/clinkchat-server/internal/filter"
	"github.com/clinkchat/clinkchat-server/internal/store/sqlite"
)

type redeemerFunc func(token string) (string, error)

func (f redeemerFunc) Redeem(token string) (string, error) { return f(token) }

// newTestHub builds a hub over an in-memory store. Handlers are called
// directly on the test goroutine, which matches the single-goroutine
// ownership model of Run.
func newTestHub(t *testing.T) *Hub {
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

	redeemer := redeemerFunc(func(token string) (string, error) {
		username, ok := strings.CutPrefix(token, "tok:")
		if !ok {
			return "", errors.New("invalid token")
		}
		return username, nil
	})

	logger := zerolog.Nop()
	h := NewHub(cfg, st, redeemer, filter.New(filter.DefaultWords), nil, nil, &logger)
	h.rng = rand.New(rand.NewSource(42))
	return h
}

// joinUser registers the identity and connects it through Join.
func joinUser(t *testing.T, h *Hub, username string) *Client {
	t.Helper()

	ctx := context.Background()
	if _, err := h.st.CreateUser(ctx, username, "hash"); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	c := NewClient(username + "-conn")
	h.Join(c, "tok:"+username)
	if c.Username != username {
		t.Fatalf("join failed for %s", username)
	}
	return c
}

// reconnect opens a fresh connection for an already registered identity.
func reconnect(h *Hub, username string) *Client {
	c := NewClient(fmt.Sprintf("%s-conn-%d", username, time.Now().UnixNano()))
	h.Join(c, "tok:"+username)
	return c
}

// mustEvent reads events until one of the wanted kind arrives.
func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events:
			if !ok {
				t.Fatalf("event channel closed while waiting for kind %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
		}
	}
}

// mustSystemContaining reads events until a system message containing the
// substring arrives.
func mustSystemContaining(t *testing.T, c *Client, substr string) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events:
			if !ok {
				t.Fatalf("event channel closed while waiting for system message %q", substr)
			}
			if ev.Kind == EventSystem && strings.Contains(ev.Text, substr) {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected system message containing %q not received", substr)
		}
	}
}

// mustErrorCode reads events until an error with the given code arrives.
func mustErrorCode(t *testing.T, c *Client, code string) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events:
			if !ok {
				t.Fatalf("event channel closed while waiting for error %q", code)
			}
			if ev.Kind == EventError && ev.Error != nil && ev.Error.Code == code {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected error code %q not received", code)
		}
	}
}

// drain discards everything currently buffered on the client.
func drain(c *Client) {
	for {
		select {
		case <-c.Events:
		default:
			return
		}
	}
}

func balanceOf(t *testing.T, h *Hub, username string) int64 {
	t.Helper()
	balance, err := h.coins.Balance(context.Background(), username)
	if err != nil {
		t.Fatalf("failed to read balance of %s: %v", username, err)
	}
	return balance
}

func fund(t *testing.T, h *Hub, username string, amount int64) {
	t.Helper()
	if _, err := h.coins.Add(context.Background(), username, amount); err != nil {
		t.Fatalf("failed to fund %s: %v", username, err)
	}
}
