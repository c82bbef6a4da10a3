// Package ledger wraps coin balance persistence with live-balance
// notifications. All mutations go through the store's single-statement
// conditional updates, so balances never go negative even when operations
// for the same user interleave.
package ledger

import (
	"context"
	"fmt"

	"github.com/clinkchat/clinkchat-server/internal/store"
)

// Notifier pushes a fresh balance to the user's live connection, if any.
// It is a no-op for offline users; the balance is still durably updated.
type Notifier func(username string, balance int64)

// Ledger manages coin balances.
type Ledger struct {
	st     store.LedgerStore
	notify Notifier
}

// New creates a ledger. notify may be nil.
func New(st store.LedgerStore, notify Notifier) *Ledger {
	if notify == nil {
		notify = func(string, int64) {}
	}
	return &Ledger{st: st, notify: notify}
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, username string) (int64, error) {
	return l.st.GetCoins(ctx, username)
}

// Add credits the user and pushes the new balance.
func (l *Ledger) Add(ctx context.Context, username string, amount int64) (int64, error) {
	balance, err := l.st.AddCoins(ctx, username, amount)
	if err != nil {
		return 0, err
	}
	l.notify(username, balance)
	return balance, nil
}

// Deduct debits the user if solvent and pushes the new balance. Returns
// store.ErrInsufficientFunds without touching the balance otherwise.
func (l *Ledger) Deduct(ctx context.Context, username string, amount int64) (int64, error) {
	balance, err := l.st.DeductCoins(ctx, username, amount)
	if err != nil {
		return 0, err
	}
	l.notify(username, balance)
	return balance, nil
}

// Set overwrites the user's balance and pushes it.
func (l *Ledger) Set(ctx context.Context, username string, amount int64) (int64, error) {
	balance, err := l.st.SetCoins(ctx, username, amount)
	if err != nil {
		return 0, err
	}
	l.notify(username, balance)
	return balance, nil
}

// Transfer moves amount from one user to another: deduct first, then credit.
// If the credit half fails the debit is re-credited before the error is
// returned, so a failed transfer never leaves one side debited.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64) (fromBalance, toBalance int64, err error) {
	fromBalance, err = l.Deduct(ctx, from, amount)
	if err != nil {
		return 0, 0, err
	}

	toBalance, err = l.Add(ctx, to, amount)
	if err != nil {
		if _, refundErr := l.Add(ctx, from, amount); refundErr != nil {
			return 0, 0, fmt.Errorf("credit %s failed (%w) and refund failed: %v", to, err, refundErr)
		}
		return 0, 0, fmt.Errorf("credit %s: %w", to, err)
	}

	return fromBalance, toBalance, nil
}
