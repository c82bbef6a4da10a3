package core

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/rs/zerolog"

	"github.com/clinkchat/clinkchat-server/internal/config"
	"github.com/clinkchat/clinkchat-server/internal/filter"
	"github.com/clinkchat/clinkchat-server/internal/ledger"
	"github.com/clinkchat/clinkchat-server/internal/metrics"
	"github.com/clinkchat/clinkchat-server/internal/preview"
	"github.com/clinkchat/clinkchat-server/internal/store"
)

// TokenRedeemer consumes a single-use handoff token, returning the username
// it was minted for.
type TokenRedeemer interface {
	Redeem(token string) (string, error)
}

// Previewer fetches link previews for URLs posted in private rooms.
type Previewer interface {
	Fetch(ctx context.Context, url string) *preview.Preview
}

// pendingDuel is a time-boxed wager challenge, keyed by the target.
type pendingDuel struct {
	from      string
	amount    int64
	room      string
	expiresAt time.Time
}

// claimEvent is the singleton first-come reward race.
type claimEvent struct {
	expiresAt time.Time
}

const claimCheckInterval = 5 * time.Second

// Hub owns every in-memory registry: sessions, room membership, typing
// sets, rate limits, pending duels, and the active claim event. All state
// is mutated only on the hub goroutine; transports submit work via Do.
type Hub struct {
	cfg      config.Config
	st       store.Store
	coins    *ledger.Ledger
	redeemer TokenRedeemer
	filter   *filter.Filter
	previews Previewer
	metrics  *metrics.Metrics
	log      *zerolog.Logger

	tasks chan func()

	sessions     map[string]*Client   // lowercased username -> live connection
	members      map[string]mapset.Set // room -> set of *Client
	typing       map[string]mapset.Set // room -> set of usernames
	typingTimers map[string]*time.Timer
	duels        map[string]*pendingDuel // lowercased target username
	claim        *claimEvent
	nextClaimAt  time.Time

	ctx context.Context
	rng *rand.Rand
	now func() time.Time
}

// NewHub constructs the hub. The ledger is created here so balance changes
// reach live connections through the hub's session registry.
func NewHub(cfg config.Config, st store.Store, redeemer TokenRedeemer, f *filter.Filter, previews Previewer, m *metrics.Metrics, logger *zerolog.Logger) *Hub {
	h := &Hub{
		cfg:          cfg,
		st:           st,
		redeemer:     redeemer,
		filter:       f,
		previews:     previews,
		metrics:      m,
		log:          logger,
		tasks:        make(chan func(), 256),
		sessions:     make(map[string]*Client),
		members:      make(map[string]mapset.Set),
		typing:       make(map[string]mapset.Set),
		typingTimers: make(map[string]*time.Timer),
		duels:        make(map[string]*pendingDuel),
		ctx:          context.Background(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
	}
	h.coins = ledger.New(st, h.pushBalance)
	return h
}

// Do submits a closure to run on the hub goroutine.
func (h *Hub) Do(fn func()) {
	h.tasks <- fn
}

// Run processes submitted work and drives the periodic jobs until the
// context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	h.scheduleNextClaim()

	pollTicker := time.NewTicker(h.cfg.Chat.PollSweepInterval)
	defer pollTicker.Stop()
	idleTicker := time.NewTicker(h.cfg.Chat.IdleSweepInterval)
	defer idleTicker.Stop()
	claimTicker := time.NewTicker(claimCheckInterval)
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-h.tasks:
			fn()
		case <-pollTicker.C:
			h.concludeDuePolls()
		case <-idleTicker.C:
			h.broadcastAllUserLists()
			h.pruneExpiredDuels()
		case <-claimTicker.C:
			h.checkClaim()
		}
	}
}

// ==== session lifecycle ====

// Join authenticates the connection with a handoff token and places it in
// the default room. A failed redeem closes the connection.
func (h *Hub) Join(c *Client, token string) {
	// A connection authenticates exactly once. A repeated join frame
	// would re-place the client without leaving its current room, so it
	// is dropped before the token is consumed.
	if c.Username != "" {
		return
	}

	username, err := h.redeemer.Redeem(token)
	if err != nil {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeAuthFailed, "Authentication failed. Please refresh and log in again.")})
		c.Close()
		return
	}

	user, err := h.st.GetUserByUsername(h.ctx, username)
	if err != nil {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeAuthFailed, "Authentication failed. Please refresh and log in again.")})
		c.Close()
		return
	}

	// At most one live connection per identity: admitting this one always
	// evicts the previous.
	key := strings.ToLower(user.Username)
	if old, ok := h.sessions[key]; ok && old != c {
		h.evict(old, "You were signed in from another device.", "session_replaced")
	}

	now := h.now()
	c.Username = user.Username
	c.Color = user.Color
	c.JoinedAt = now
	c.LastActivity = now
	h.sessions[key] = c
	h.metrics.UserConnected()

	h.sendRoomsList(c)
	h.placeInRoom(c, h.cfg.DefaultRoom)
	h.broadcastSystem(h.cfg.DefaultRoom, fmt.Sprintf("%s has joined #%s", c.Username, h.cfg.DefaultRoom))
	h.log.Info().Str("user", c.Username).Msg("client joined")
}

// Disconnect tears down the connection's presence. It is a no-op for a
// connection that was already evicted.
func (h *Hub) Disconnect(c *Client) {
	if c.Username == "" {
		c.Close()
		return
	}
	key := strings.ToLower(c.Username)
	if h.sessions[key] != c {
		c.Close()
		return
	}

	room := c.Room
	h.removeClient(c, "session_closed")
	if room != "" {
		h.broadcastSystem(room, fmt.Sprintf("%s has left #%s", c.Username, room))
	}
	h.log.Info().Str("user", c.Username).Msg("client disconnected")
}

// evict force-disconnects a client with a reason shown to it.
func (h *Hub) evict(c *Client, reason, metricReason string) {
	c.send(&Event{Kind: EventKicked, Text: reason})
	h.removeClient(c, metricReason)
}

// removeClient drops the client from every registry, persists its online
// time, and closes its event channel.
func (h *Hub) removeClient(c *Client, metricReason string) {
	key := strings.ToLower(c.Username)
	if h.sessions[key] == c {
		delete(h.sessions, key)
	}
	h.leaveCurrentRoom(c)
	h.cancelTypingTimer(c)

	seconds := int64(h.now().Sub(c.JoinedAt) / time.Second)
	if seconds > 0 {
		if err := h.st.AddTimeOnline(h.ctx, c.Username, seconds); err != nil {
			h.log.Warn().Err(err).Str("user", c.Username).Msg("failed to persist online time")
		}
	}

	h.metrics.UserDisconnected()
	if metricReason != "session_closed" {
		h.metrics.Evicted(metricReason)
	}
	c.Close()
}

// Activity refreshes the client's idle clock and republishes the roster.
func (h *Hub) Activity(c *Client) {
	if !h.registered(c) {
		return
	}
	c.LastActivity = h.now()
	h.broadcastUserList(c.Room)
}

// registered reports whether the client completed Join and still owns its
// session slot.
func (h *Hub) registered(c *Client) bool {
	if c.Username == "" {
		return false
	}
	return h.sessions[strings.ToLower(c.Username)] == c
}

// ==== lookup and delivery helpers ====

func (h *Hub) clientByUsername(username string) *Client {
	return h.sessions[strings.ToLower(username)]
}

func (h *Hub) memberSet(room string) mapset.Set {
	set, ok := h.members[room]
	if !ok {
		set = mapset.NewThreadUnsafeSet()
		h.members[room] = set
	}
	return set
}

func (h *Hub) roomClients(room string) []*Client {
	set, ok := h.members[room]
	if !ok {
		return nil
	}
	items := set.ToSlice()
	clients := make([]*Client, 0, len(items))
	for _, item := range items {
		clients = append(clients, item.(*Client))
	}
	return clients
}

func (h *Hub) broadcastRoom(room string, ev *Event) {
	for _, c := range h.roomClients(room) {
		c.send(ev)
	}
}

func (h *Hub) broadcastAll(ev *Event) {
	for _, c := range h.sessions {
		c.send(ev)
	}
}

func (h *Hub) sendSystem(c *Client, text string) {
	c.send(&Event{Kind: EventSystem, Text: text})
}

func (h *Hub) broadcastSystem(room, text string) {
	h.broadcastRoom(room, &Event{Kind: EventSystem, Room: room, Text: text})
}

func (h *Hub) broadcastSystemAll(text string) {
	h.broadcastAll(&Event{Kind: EventSystem, Text: text})
}

func (h *Hub) sendError(c *Client, code, msg string) {
	c.send(&Event{Kind: EventError, Error: coreError(code, msg)})
}

// pushBalance delivers a fresh balance to the identity's live connection.
// No-op for offline users; the balance is still durably updated.
func (h *Hub) pushBalance(username string, balance int64) {
	c := h.clientByUsername(username)
	if c == nil {
		return
	}
	c.send(&Event{Kind: EventCoinsUpdate, Balance: &BalanceView{Username: username, Coins: balance}})
}
