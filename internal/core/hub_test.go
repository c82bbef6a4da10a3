package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestJoin_PlacesClientInDefaultRoom(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")

	mustEvent(t, alice, EventRoomsList)
	ev := mustEvent(t, alice, EventRoomChanged)
	if ev.Room != h.cfg.DefaultRoom {
		t.Fatalf("expected default room, got %q", ev.Room)
	}
	if alice.Room != h.cfg.DefaultRoom {
		t.Fatalf("client room not set: %q", alice.Room)
	}

	members := h.roomClients(h.cfg.DefaultRoom)
	if len(members) != 1 || members[0] != alice {
		t.Fatalf("expected alice alone in default room, got %d members", len(members))
	}
}

func TestJoin_InvalidTokenClosesConnection(t *testing.T) {
	h := newTestHub(t)

	c := NewClient("conn-1")
	h.Join(c, "garbage")

	mustErrorCode(t, c, ErrCodeAuthFailed)
	if _, ok := <-c.Events; ok {
		t.Fatalf("expected event channel closed after failed auth")
	}
	if len(h.sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(h.sessions))
	}
}

func TestJoin_SecondSessionEvictsFirst(t *testing.T) {
	h := newTestHub(t)
	first := joinUser(t, h, "alice")
	drain(first)

	second := reconnect(h, "alice")

	ev := mustEvent(t, first, EventKicked)
	if !strings.Contains(ev.Text, "another device") {
		t.Fatalf("unexpected kick reason: %q", ev.Text)
	}

	if h.sessions["alice"] != second {
		t.Fatalf("expected second connection to own the session")
	}
	for _, m := range h.roomClients(h.cfg.DefaultRoom) {
		if m == first {
			t.Fatalf("evicted connection still in room")
		}
	}
}

func TestJoin_RepeatedHandshakeKeepsSingleMembership(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	h.HandleChat(alice, "/create den 1234", "")
	h.SwitchRoom(alice, "den", "")
	drain(alice)

	// A replayed handshake on a live connection must not re-place the
	// client in the default room or touch the session registry.
	h.Join(alice, "tok:alice")

	if alice.Room != "den" {
		t.Fatalf("expected alice to stay in den, got %q", alice.Room)
	}
	for _, m := range h.roomClients(h.cfg.DefaultRoom) {
		if m == alice {
			t.Fatalf("alice holds a second membership in the default room")
		}
	}
	members := h.roomClients("den")
	if len(members) != 1 || members[0] != alice {
		t.Fatalf("expected exactly one membership in den, got %d", len(members))
	}
	if h.sessions["alice"] != alice {
		t.Fatalf("session registry no longer owned by the connection")
	}

	// A replay under a different identity must not register that identity.
	if _, err := h.st.CreateUser(context.Background(), "bob", "hash"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	h.Join(alice, "tok:bob")
	if alice.Username != "alice" {
		t.Fatalf("connection identity changed to %q", alice.Username)
	}
	if _, ok := h.sessions["bob"]; ok {
		t.Fatalf("replayed handshake registered a second identity")
	}

	select {
	case ev := <-alice.Events:
		t.Fatalf("replayed handshake produced event %v", ev.Kind)
	default:
	}
}

func TestRoomsList_OwnerCodeVisibleToOwnerOnly(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")

	h.HandleChat(alice, "/create den 1234", "")
	drain(alice)
	drain(bob)

	h.sendRoomsList(alice)
	h.sendRoomsList(bob)

	findDen := func(t *testing.T, c *Client) RoomEntry {
		t.Helper()
		ev := mustEvent(t, c, EventRoomsList)
		for _, r := range ev.Rooms {
			if r.Name == "den" {
				return r
			}
		}
		t.Fatalf("den missing from rooms list")
		return RoomEntry{}
	}

	den := findDen(t, alice)
	if !den.IsOwner || den.OwnerCode != "1234" {
		t.Fatalf("owner cannot read the code back: %+v", den)
	}
	den = findDen(t, bob)
	if den.IsOwner || den.OwnerCode != "" {
		t.Fatalf("non-owner received the code: %+v", den)
	}
}

func TestSwitchRoom_PrivateRoomCodeFlow(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")

	h.HandleChat(alice, "/create den 1234", "")
	mustEvent(t, alice, EventRoomCreated)
	drain(bob)

	// No grant yet: the code-entry flow is triggered.
	h.SwitchRoom(bob, "den", "")
	if ev := mustEvent(t, bob, EventRoomRequiresCode); ev.Room != "den" {
		t.Fatalf("unexpected room: %q", ev.Room)
	}

	h.SwitchRoom(bob, "den", "9999")
	mustEvent(t, bob, EventKeypadError)
	if bob.Room != h.cfg.DefaultRoom {
		t.Fatalf("wrong code must not move the client")
	}

	h.SwitchRoom(bob, "den", "1234")
	mustEvent(t, bob, EventRoomChanged)
	if bob.Room != "den" {
		t.Fatalf("expected bob in den, got %q", bob.Room)
	}

	// The grant persists: re-entry needs no code.
	h.SwitchRoom(bob, h.cfg.DefaultRoom, "")
	drain(bob)
	h.SwitchRoom(bob, "den", "")
	mustEvent(t, bob, EventRoomChanged)
	if bob.Room != "den" {
		t.Fatalf("expected grant to admit bob without code")
	}
}

func TestSwitchRoom_AlwaysLeavesOldRoomFirst(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	h.HandleChat(alice, "/create den 1234", "")
	drain(alice)

	h.SwitchRoom(alice, "den", "")
	mustEvent(t, alice, EventRoomChanged)

	if len(h.roomClients(h.cfg.DefaultRoom)) != 0 {
		t.Fatalf("client still in old room")
	}
	members := h.roomClients("den")
	if len(members) != 1 || members[0] != alice {
		t.Fatalf("expected exactly one membership in den")
	}
}

func TestBan_OverridesGrant(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")

	h.HandleChat(alice, "/create den 1234", "")
	h.SwitchRoom(alice, "den", "")
	h.SwitchRoom(bob, "den", "1234")
	mustEvent(t, bob, EventRoomChanged)
	drain(bob)

	h.HandleChat(alice, "/ban bob", "")

	mustSystemContaining(t, bob, "banned from #den")
	if bob.Room != h.cfg.DefaultRoom {
		t.Fatalf("banned user not relocated, still in %q", bob.Room)
	}

	// Even with the correct code, the ban blocks entry.
	drain(bob)
	h.SwitchRoom(bob, "den", "1234")
	mustErrorCode(t, bob, ErrCodeForbidden)
	if bob.Room != h.cfg.DefaultRoom {
		t.Fatalf("banned user entered the room")
	}
}

func TestChat_TruncatesTo500Runes(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	drain(alice)

	h.HandleChat(alice, strings.Repeat("a", 600), "")

	ev := mustEvent(t, alice, EventChat)
	if got := len([]rune(ev.Message.Text)); got != 500 {
		t.Fatalf("expected broadcast truncated to 500, got %d", got)
	}

	msgs, err := h.st.ListRecent(context.Background(), h.cfg.DefaultRoom, "alice", 10)
	if err != nil {
		t.Fatalf("list recent failed: %v", err)
	}
	last := msgs[len(msgs)-1]
	if got := len([]rune(last.Text)); got != 500 {
		t.Fatalf("expected stored text truncated to 500, got %d", got)
	}
}

func TestChat_RedactsBannedWordsInPublicRooms(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	drain(alice)

	h.HandleChat(alice, "well shit happens", "")

	ev := mustEvent(t, alice, EventChat)
	if ev.Message.Text != "well **** happens" {
		t.Fatalf("expected redaction, got %q", ev.Message.Text)
	}
}

func TestChat_RejectsLinksInPublicRooms(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	drain(alice)

	h.HandleChat(alice, "look at https://example.com", "")

	mustSystemContaining(t, alice, "Links are not allowed")
	msgs, _ := h.st.ListRecent(context.Background(), h.cfg.DefaultRoom, "alice", 10)
	if len(msgs) != 0 {
		t.Fatalf("rejected message was persisted")
	}
}

func TestChat_AwardsCoinPerMessage(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	drain(alice)

	h.HandleChat(alice, "hello", "")

	if got := balanceOf(t, h, "alice"); got != h.cfg.Economy.ChatReward {
		t.Fatalf("expected chat reward %d, got %d", h.cfg.Economy.ChatReward, got)
	}
	ev := mustEvent(t, alice, EventCoinsUpdate)
	if ev.Balance.Coins != h.cfg.Economy.ChatReward {
		t.Fatalf("expected pushed balance %d, got %d", h.cfg.Economy.ChatReward, ev.Balance.Coins)
	}
}

func TestChat_SixthMessageInWindowTriggersMute(t *testing.T) {
	h := newTestHub(t)
	now := time.Now()
	h.now = func() time.Time { return now }

	alice := joinUser(t, h, "alice")
	drain(alice)

	for i := 0; i < 5; i++ {
		h.HandleChat(alice, "hello", "")
	}
	h.HandleChat(alice, "one too many", "")
	mustSystemContaining(t, alice, "muted for 10 seconds")

	// Input during the mute is dropped with a private notice.
	drain(alice)
	h.HandleChat(alice, "still here?", "")
	mustSystemContaining(t, alice, "muted for spamming")

	msgs, _ := h.st.ListRecent(context.Background(), h.cfg.DefaultRoom, "alice", 50)
	if len(msgs) != 5 {
		t.Fatalf("expected 5 persisted messages, got %d", len(msgs))
	}

	// Normal sending resumes after expiry.
	now = now.Add(h.cfg.Chat.MuteDuration + time.Second)
	drain(alice)
	h.HandleChat(alice, "back again", "")
	mustEvent(t, alice, EventChat)
}

func TestGive_ZeroAmountRejected(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	joinUser(t, h, "bob")
	fund(t, h, "alice", 100)
	drain(alice)

	h.HandleChat(alice, "/give bob 0", "")

	mustErrorCode(t, alice, ErrCodeValidation)
	if got := balanceOf(t, h, "alice"); got != 100 {
		t.Fatalf("balance changed on rejected give: %d", got)
	}
	if got := balanceOf(t, h, "bob"); got != 0 {
		t.Fatalf("target balance changed on rejected give: %d", got)
	}
}

func TestGive_TransfersZeroSum(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	joinUser(t, h, "bob")
	fund(t, h, "alice", 100)
	drain(alice)

	h.HandleChat(alice, "/give bob 40", "")

	mustSystemContaining(t, alice, "gave 40 coins to bob")
	a, b := balanceOf(t, h, "alice"), balanceOf(t, h, "bob")
	if a != 60 || b != 40 {
		t.Fatalf("expected 60/40, got %d/%d", a, b)
	}
	if a+b != 100 {
		t.Fatalf("transfer not zero-sum: %d", a+b)
	}
}

func TestDuel_OfflineTargetCreatesNoPendingDuel(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	fund(t, h, "alice", 100)
	drain(alice)

	h.HandleChat(alice, "/duel bob 50", "")

	mustErrorCode(t, alice, ErrCodeValidation)
	if len(h.duels) != 0 {
		t.Fatalf("expected no pending duel, got %d", len(h.duels))
	}
}

func TestDuel_AcceptPaysWinnerDoubleStake(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	fund(t, h, "alice", 100)
	fund(t, h, "bob", 100)
	drain(alice)
	drain(bob)

	h.HandleChat(alice, "/duel bob 50", "")
	mustSystemContaining(t, bob, "challenges bob to a coinflip for 50 coins")

	h.HandleChat(bob, "/accept", "")
	mustSystemContaining(t, bob, "COINFLIP")

	a, b := balanceOf(t, h, "alice"), balanceOf(t, h, "bob")
	if a+b != 200 {
		t.Fatalf("duel not zero-sum: %d + %d", a, b)
	}
	if !(a == 150 && b == 50) && !(a == 50 && b == 150) {
		t.Fatalf("expected one side up a stake, got %d/%d", a, b)
	}
	if len(h.duels) != 0 {
		t.Fatalf("duel not consumed")
	}
}

func TestDuel_AcceptRefundsWhenChallengerInsolvent(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	fund(t, h, "alice", 100)
	fund(t, h, "bob", 50)
	drain(alice)
	drain(bob)

	h.HandleChat(alice, "/duel bob 50", "")

	// The challenger goes insolvent between challenge and accept.
	if _, err := h.st.SetCoins(context.Background(), "alice", 0); err != nil {
		t.Fatalf("failed to drain alice: %v", err)
	}

	h.HandleChat(bob, "/accept", "")

	mustErrorCode(t, bob, ErrCodeRaceLost)
	if got := balanceOf(t, h, "bob"); got != 50 {
		t.Fatalf("accepter stake not refunded: %d", got)
	}
	if got := balanceOf(t, h, "alice"); got != 0 {
		t.Fatalf("challenger balance changed: %d", got)
	}
}

func TestDuel_AcceptAfterExpiryFails(t *testing.T) {
	h := newTestHub(t)
	now := time.Now()
	h.now = func() time.Time { return now }

	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	fund(t, h, "alice", 100)
	fund(t, h, "bob", 100)
	drain(bob)

	h.HandleChat(alice, "/duel bob 50", "")
	now = now.Add(h.cfg.Economy.DuelTimeout + time.Second)

	h.HandleChat(bob, "/accept", "")
	mustSystemContaining(t, bob, "expired")
	if got := balanceOf(t, h, "bob"); got != 100 {
		t.Fatalf("expired duel touched balance: %d", got)
	}
}

func TestRob_FailurePaysDoublePenalty(t *testing.T) {
	h := newTestHub(t)
	h.cfg.Economy.RobBaseOdds = 0 // force failure
	alice := joinUser(t, h, "alice")
	joinUser(t, h, "carol")
	fund(t, h, "alice", 500)
	fund(t, h, "carol", 200)
	drain(alice)

	h.HandleChat(alice, "/rob carol 100", "")

	// robAmount = 200, penalty = 400.
	mustSystemContaining(t, alice, "paid a 400 coin penalty")
	a, c := balanceOf(t, h, "alice"), balanceOf(t, h, "carol")
	if a != 100 || c != 600 {
		t.Fatalf("expected 100/600 after penalty, got %d/%d", a, c)
	}
}

func TestRob_AbortsWhenPenaltyUnaffordable(t *testing.T) {
	h := newTestHub(t)
	h.cfg.Economy.RobBaseOdds = 0 // force failure
	alice := joinUser(t, h, "alice")
	joinUser(t, h, "carol")
	fund(t, h, "alice", 10)
	fund(t, h, "carol", 200)
	drain(alice)

	h.HandleChat(alice, "/rob carol 100", "")

	mustErrorCode(t, alice, ErrCodeConflict)
	a, c := balanceOf(t, h, "alice"), balanceOf(t, h, "carol")
	if a != 10 || c != 200 {
		t.Fatalf("aborted robbery moved coins: %d/%d", a, c)
	}
}

func TestRob_SuccessTransfersRobAmount(t *testing.T) {
	h := newTestHub(t)
	h.cfg.Economy.RobBaseOdds = 1000 // force success
	alice := joinUser(t, h, "alice")
	joinUser(t, h, "carol")
	fund(t, h, "carol", 200)
	drain(alice)

	h.HandleChat(alice, "/rob carol 10", "")

	// robAmount = floor(200 * 10 / 100) = 20.
	mustSystemContaining(t, alice, "robbed carol of 20 coins")
	a, c := balanceOf(t, h, "alice"), balanceOf(t, h, "carol")
	if a != 20 || c != 180 {
		t.Fatalf("expected 20/180, got %d/%d", a, c)
	}
}

func TestClaim_ExactlyOneWinner(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	drain(alice)
	drain(bob)

	h.claim = &claimEvent{expiresAt: h.now().Add(time.Minute)}

	h.HandleChat(alice, "claim", "")
	mustSystemContaining(t, alice, "claimed the reward")
	if got := balanceOf(t, h, "alice"); got != h.cfg.Economy.ClaimReward {
		t.Fatalf("expected claim reward, got %d", got)
	}

	drain(bob)
	h.HandleChat(bob, "claim", "")
	mustSystemContaining(t, bob, "no active claim")
	if got := balanceOf(t, h, "bob"); got != 0 {
		t.Fatalf("second claimant was paid: %d", got)
	}
}

func TestClaim_ExpiresUnclaimed(t *testing.T) {
	h := newTestHub(t)
	now := time.Now()
	h.now = func() time.Time { return now }
	alice := joinUser(t, h, "alice")
	drain(alice)

	h.claim = &claimEvent{expiresAt: now.Add(h.cfg.Economy.ClaimLifetime)}
	now = now.Add(h.cfg.Economy.ClaimLifetime + time.Second)
	h.checkClaim()

	mustSystemContaining(t, alice, "Nobody claimed")
	if h.claim != nil {
		t.Fatalf("expired claim not cleared")
	}
}

func TestCreate_FourthPrivateRoomRejected(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	drain(alice)

	for _, room := range []string{"den1", "den2", "den3"} {
		h.HandleChat(alice, "/create "+room+" 1234", "")
		mustEvent(t, alice, EventRoomCreated)
	}

	h.HandleChat(alice, "/create den4 1234", "")
	ev := mustErrorCode(t, alice, ErrCodeConflict)
	if !strings.Contains(ev.Error.Message, "3 private rooms") {
		t.Fatalf("unexpected cap message: %q", ev.Error.Message)
	}

	// The existing three remain.
	count, err := h.st.CountPrivateRooms(context.Background(), "alice")
	if err != nil || count != 3 {
		t.Fatalf("expected 3 private rooms, got %d (err %v)", count, err)
	}
}

func TestKick_RevokesGrantAndRelocates(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")

	h.HandleChat(alice, "/create den 1234", "")
	h.SwitchRoom(alice, "den", "")
	h.SwitchRoom(bob, "den", "1234")
	mustEvent(t, bob, EventRoomChanged)
	drain(bob)

	h.HandleChat(alice, "/kick bob", "")

	mustSystemContaining(t, bob, "kicked from #den")
	if bob.Room != h.cfg.DefaultRoom {
		t.Fatalf("kicked user not relocated: %q", bob.Room)
	}
	granted, err := h.st.HasAccess(context.Background(), "bob", "den")
	if err != nil || granted {
		t.Fatalf("expected grant revoked, got granted=%v err=%v", granted, err)
	}
}

func TestChangepass_RevokesGrantsAndEvictsMembers(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")

	h.HandleChat(alice, "/create den 1234", "")
	h.SwitchRoom(alice, "den", "")
	h.SwitchRoom(bob, "den", "1234")
	mustEvent(t, bob, EventRoomChanged)
	drain(alice)
	drain(bob)

	h.HandleChat(alice, "/changepass 5678", "")
	ev := mustEvent(t, alice, EventConfirmChangepass)
	if ev.Code != "5678" {
		t.Fatalf("unexpected proposed code: %q", ev.Code)
	}

	h.ConfirmChangepass(alice, "den", ev.Code)

	mustEvent(t, alice, EventRoomCodeChanged)
	mustSystemContaining(t, bob, "code for #den was changed")
	if bob.Room != h.cfg.DefaultRoom {
		t.Fatalf("non-owner not evicted: %q", bob.Room)
	}
	if alice.Room != "den" {
		t.Fatalf("owner should stay, got %q", alice.Room)
	}
	granted, _ := h.st.HasAccess(context.Background(), "bob", "den")
	if granted {
		t.Fatalf("expected bob's grant revoked")
	}

	// Entry now requires the new code.
	drain(bob)
	h.SwitchRoom(bob, "den", "1234")
	mustEvent(t, bob, EventKeypadError)
	h.SwitchRoom(bob, "den", "5678")
	mustEvent(t, bob, EventRoomChanged)
}

func TestAdminCoins_RequiresAdminIdentity(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	joinUser(t, h, "bob")
	drain(alice)

	h.HandleChat(alice, "/coins bob 500", "")
	mustErrorCode(t, alice, ErrCodeForbidden)
	if got := balanceOf(t, h, "bob"); got != 0 {
		t.Fatalf("non-admin set a balance: %d", got)
	}

	admin := joinUser(t, h, h.cfg.AdminUser)
	drain(admin)
	h.HandleChat(admin, "/coins bob 500", "")
	mustSystemContaining(t, admin, "set bob's balance to 500")
	if got := balanceOf(t, h, "bob"); got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}
}

func TestDM_RequiresOnlineTargetAndDeliversToBoth(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	drain(alice)
	drain(bob)

	h.HandleChat(alice, "/msg ghost hi there", "")
	mustSystemContaining(t, alice, "not online")

	h.HandleChat(alice, "/msg bob psst", "")
	got := mustEvent(t, bob, EventDM)
	if got.Message.Sender != "alice" || got.Message.Text != "psst" {
		t.Fatalf("unexpected dm: %+v", got.Message)
	}
	echo := mustEvent(t, alice, EventDM)
	if echo.Message.Recipient != "bob" {
		t.Fatalf("sender copy missing recipient: %+v", echo.Message)
	}
}

func TestTyping_SummaryAndAutoClear(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	drain(alice)
	drain(bob)

	h.TypingStart(alice)
	ev := mustEvent(t, bob, EventTyping)
	if ev.Text != "alice is typing" {
		t.Fatalf("unexpected typing line: %q", ev.Text)
	}

	drain(alice)
	h.TypingStart(bob)
	ev = mustEvent(t, alice, EventTyping)
	if ev.Text != "Multiple users are typing" {
		t.Fatalf("unexpected typing line: %q", ev.Text)
	}

	// Sending a message clears the sender's typing state.
	drain(bob)
	h.HandleChat(alice, "done typing", "")
	ev = mustEvent(t, bob, EventTyping)
	if ev.Text != "bob is typing" {
		t.Fatalf("expected only bob typing, got %q", ev.Text)
	}
}

func TestDisconnect_CleansUpPresence(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	drain(bob)

	h.Disconnect(alice)

	mustSystemContaining(t, bob, "alice has left")
	if len(h.roomClients(h.cfg.DefaultRoom)) != 1 {
		t.Fatalf("expected one remaining member")
	}
	if _, ok := h.sessions["alice"]; ok {
		t.Fatalf("session not removed")
	}
}

func TestRoomActivity_NotifiesClientsElsewhere(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")

	h.HandleChat(alice, "/create den 1234", "")
	h.SwitchRoom(alice, "den", "")
	drain(alice)
	drain(bob)

	h.HandleChat(alice, "hello den", "")

	ev := mustEvent(t, bob, EventRoomActivity)
	if ev.Room != "den" {
		t.Fatalf("unexpected activity room: %q", ev.Room)
	}
}

func TestReactions_UpsertAndRemove(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	bob := joinUser(t, h, "bob")
	drain(alice)

	h.HandleChat(alice, "react to this", "")
	ev := mustEvent(t, alice, EventChat)
	msgID := ev.Message.ID
	drain(bob)

	h.React(bob, msgID, "🔥")
	got := mustEvent(t, alice, EventReactionUpdate)
	if got.Reaction.Counts["🔥"] != 1 {
		t.Fatalf("unexpected counts: %v", got.Reaction.Counts)
	}

	h.React(bob, msgID, "👍")
	got = mustEvent(t, alice, EventReactionUpdate)
	if got.Reaction.Counts["🔥"] != 0 || got.Reaction.Counts["👍"] != 1 {
		t.Fatalf("reaction not replaced: %v", got.Reaction.Counts)
	}

	h.Unreact(bob, msgID)
	got = mustEvent(t, alice, EventReactionUpdate)
	if len(got.Reaction.Counts) != 0 {
		t.Fatalf("reaction not removed: %v", got.Reaction.Counts)
	}
}

func TestColorUpdate_ValidatesAndPersists(t *testing.T) {
	h := newTestHub(t)
	alice := joinUser(t, h, "alice")
	drain(alice)

	h.ColorUpdate(alice, "not-a-color")
	mustErrorCode(t, alice, ErrCodeValidation)

	h.ColorUpdate(alice, "#ff8800")
	if alice.Color != "#ff8800" {
		t.Fatalf("color not applied: %q", alice.Color)
	}
	user, err := h.st.GetUserByUsername(context.Background(), "alice")
	if err != nil || user.Color != "#ff8800" {
		t.Fatalf("color not persisted: %q err=%v", user.Color, err)
	}
}
