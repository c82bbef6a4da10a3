package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/clinkchat/clinkchat-server/internal/store"
	"github.com/clinkchat/clinkchat-server/internal/store/sqlite"
)

type notification struct {
	username string
	balance  int64
}

func newTestLedger(t *testing.T) (*Ledger, *[]notification) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := st.CreateUser(ctx, u, "hash"); err != nil {
			t.Fatalf("failed to create user %s: %v", u, err)
		}
	}

	var notes []notification
	l := New(st, func(username string, balance int64) {
		notes = append(notes, notification{username, balance})
	})
	return l, &notes
}

func TestTransfer_IsZeroSum(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Add(ctx, "alice", 100); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	fromBal, toBal, err := l.Transfer(ctx, "alice", "bob", 40)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if fromBal != 60 || toBal != 40 {
		t.Fatalf("expected 60/40, got %d/%d", fromBal, toBal)
	}

	a, _ := l.Balance(ctx, "alice")
	b, _ := l.Balance(ctx, "bob")
	if a+b != 100 {
		t.Fatalf("transfer not zero-sum: %d + %d", a, b)
	}
}

func TestTransfer_InsufficientLeavesBalancesUntouched(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Add(ctx, "alice", 10); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if _, _, err := l.Transfer(ctx, "alice", "bob", 50); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	a, _ := l.Balance(ctx, "alice")
	b, _ := l.Balance(ctx, "bob")
	if a != 10 || b != 0 {
		t.Fatalf("balances changed on failed transfer: %d/%d", a, b)
	}
}

func TestTransfer_RefundsWhenCreditFails(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Add(ctx, "alice", 100); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Crediting an unknown user fails after the debit succeeded.
	if _, _, err := l.Transfer(ctx, "alice", "ghost", 30); err == nil {
		t.Fatal("expected transfer to fail")
	}

	a, _ := l.Balance(ctx, "alice")
	if a != 100 {
		t.Fatalf("expected refund to 100, got %d", a)
	}
}

func TestMutations_NotifyNewBalance(t *testing.T) {
	l, notes := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Add(ctx, "alice", 25); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := l.Deduct(ctx, "alice", 5); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if _, err := l.Set(ctx, "bob", 7); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	want := []notification{{"alice", 25}, {"alice", 20}, {"bob", 7}}
	if len(*notes) != len(want) {
		t.Fatalf("expected %d notifications, got %d: %v", len(want), len(*notes), *notes)
	}
	for i, n := range *notes {
		if n != want[i] {
			t.Errorf("notification %d: got %+v, want %+v", i, n, want[i])
		}
	}
}

func TestDeduct_FailureDoesNotNotify(t *testing.T) {
	l, notes := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deduct(ctx, "alice", 5); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(*notes) != 0 {
		t.Fatalf("expected no notifications, got %v", *notes)
	}
}
