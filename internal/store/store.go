// Package store persists account documents. The progression core
// never calls it directly: callers forward the change-sets the facade
// emits, and read documents back to rehydrate at session start.
package store

import (
	"context"
	"errors"

	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
)

var (
	ErrNotFound = errors.New("account not found")
	ErrExists   = errors.New("account already exists")
)

// Store is the document store contract: whole-document reads, partial
// field writes. Writes are best-effort from the caller's point of
// view; the core never rolls back local state when one fails.
type Store interface {
	// Create inserts a brand new account document.
	Create(ctx context.Context, accountID string, doc domain.AccountDocument) error
	// Load reads the full document for session-start hydration.
	Load(ctx context.Context, accountID string) (domain.AccountDocument, error)
	// Apply writes the changed subset of fields atomically.
	Apply(ctx context.Context, accountID string, cs progression.ChangeSet) error
	// ListAccounts enumerates known account ids.
	ListAccounts(ctx context.Context) ([]string, error)
}
