package store

import (
	"context"
	"sync"
	"time"

	"watchparty-service/internal/errs"
	"watchparty-service/internal/models"
)

// MemoryStore is a mutex-guarded PartyStore for tests and single-node runs.
// Expiry is checked lazily on access rather than by a background sweeper.
type MemoryStore struct {
	mu             sync.Mutex
	parties        map[string]memoryEntry
	idleTTL        time.Duration
	endedRetention time.Duration
	now            func() time.Time
}

type memoryEntry struct {
	party     models.Party
	expiresAt time.Time
}

// NewMemoryStore builds an in-memory PartyStore with the given TTLs.
func NewMemoryStore(idleTTL, endedRetention time.Duration) *MemoryStore {
	return &MemoryStore{
		parties:        make(map[string]memoryEntry),
		idleTTL:        idleTTL,
		endedRetention: endedRetention,
		now:            time.Now,
	}
}

func (s *MemoryStore) live(partyID string) (models.Party, bool) {
	entry, ok := s.parties[partyID]
	if !ok {
		return models.Party{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.parties, partyID)
		return models.Party{}, false
	}
	return entry.party, true
}

func (s *MemoryStore) put(party models.Party, ttl time.Duration) {
	s.parties[party.PartyID] = memoryEntry{party: party, expiresAt: s.now().Add(ttl)}
}

func (s *MemoryStore) Create(_ context.Context, party models.Party) (models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(party.PartyID); ok {
		return models.Party{}, errs.ErrAlreadyExists
	}
	s.put(party, s.idleTTL)
	return party, nil
}

func (s *MemoryStore) Get(_ context.Context, partyID string) (models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, ok := s.live(partyID)
	if !ok {
		return models.Party{}, errs.ErrNotFound
	}
	return party, nil
}

func (s *MemoryStore) AddMember(_ context.Context, partyID string, member models.PartyMember) (models.Party, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, ok := s.live(partyID)
	if !ok {
		return models.Party{}, false, errs.ErrNotFound
	}
	if party.Status != models.PartyStatusActive {
		return models.Party{}, false, errs.ErrPartyEnded
	}
	if party.HasMember(member.UserID) {
		return party, false, nil
	}

	party.Members = append(party.Members, member)
	s.put(party, s.idleTTL)
	return party, true, nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, partyID string, userID int64) (models.Party, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, ok := s.live(partyID)
	if !ok {
		return models.Party{}, false, errs.ErrNotFound
	}
	if party.Status != models.PartyStatusActive || !party.HasMember(userID) {
		return party, false, nil
	}

	members := party.Members[:0:0]
	for _, m := range party.Members {
		if m.UserID != userID {
			members = append(members, m)
		}
	}
	party.Members = members

	ttl := s.idleTTL
	if userID == party.HostID {
		party.Status = models.PartyStatusEnded
		ttl = s.endedRetention
	}
	s.put(party, ttl)
	return party, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, partyID string) (models.Party, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, ok := s.live(partyID)
	if !ok {
		return models.Party{}, false, errs.ErrNotFound
	}
	if party.Status != models.PartyStatusActive {
		return party, false, nil
	}

	party.Status = models.PartyStatusEnded
	s.put(party, s.endedRetention)
	return party, true, nil
}
