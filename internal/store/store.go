package store

import (
	"context"

	"watchparty-service/internal/models"
)

// PartyStore is the shared, TTL-expiring record of party state. All mutations
// are atomic at single-party granularity; joins and leaves from different
// instances race on the same key.
type PartyStore interface {
	// Create initializes a party with the host as sole member. Fails with
	// errs.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, party models.Party) (models.Party, error)

	// Get returns the current record, errs.ErrNotFound when absent or expired.
	// An ENDED record still within its retention window is returned as-is.
	Get(ctx context.Context, partyID string) (models.Party, error)

	// AddMember is idempotent; the bool reports whether membership actually
	// changed. Fails with errs.ErrNotFound / errs.ErrPartyEnded when the
	// party is missing or no longer ACTIVE.
	AddMember(ctx context.Context, partyID string, member models.PartyMember) (models.Party, bool, error)

	// RemoveMember is idempotent; the bool reports whether the member was
	// present. Removing the host transitions the party to ENDED.
	RemoveMember(ctx context.Context, partyID string, userID int64) (models.Party, bool, error)

	// Delete marks the party ENDED, retaining the record briefly so late
	// joiners get a clear answer. The bool is false when it already ended.
	Delete(ctx context.Context, partyID string) (models.Party, bool, error)
}
