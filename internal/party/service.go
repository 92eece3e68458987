// Package party implements the watch party lifecycle and the playback
// control relay on top of the shared store and the event bus.
package party

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"watchparty-service/internal/audit"
	"watchparty-service/internal/bus"
	"watchparty-service/internal/errs"
	"watchparty-service/internal/models"
	"watchparty-service/internal/observability"
	"watchparty-service/internal/store"
)

// Service drives party lifecycle transitions (CREATED -> ACTIVE -> ENDED) and
// emits the matching lifecycle events.
type Service struct {
	store store.PartyStore
	bus   bus.EventBus
	audit audit.Recorder
	log   *zap.Logger
	now   func() time.Time
}

// NewService builds a lifecycle service. recorder may be audit.Nop().
func NewService(st store.PartyStore, b bus.EventBus, recorder audit.Recorder, log *zap.Logger) *Service {
	if recorder == nil {
		recorder = audit.Nop()
	}
	return &Service{store: st, bus: b, audit: recorder, log: log, now: time.Now}
}

func publishEvent(ctx context.Context, b bus.EventBus, recorder audit.Recorder, event models.PartyEvent) error {
	if err := b.Publish(ctx, event.PartyID, event); err != nil {
		return err
	}
	observability.IncPartyEventPublished(string(event.Type))
	recorder.Record(event)
	return nil
}

func (s *Service) memberEvent(partyID string, eventType models.EventType, member models.PartyMember, participants int) models.PartyEvent {
	payload, _ := json.Marshal(models.MemberPayload{
		UserID:              member.UserID,
		UserName:            member.UserName,
		CurrentParticipants: participants,
	})
	return models.PartyEvent{
		PartyID:   partyID,
		UserID:    member.UserID,
		UserName:  member.UserName,
		Type:      eventType,
		Payload:   payload,
		Timestamp: s.now().UTC(),
	}
}

// CreateParty initializes a party with the host as its only member. The
// caller (the catalog service) has already validated movie and host.
func (s *Service) CreateParty(ctx context.Context, partyID string, movieID int64, movieURL string, hostID int64, hostName string) (models.WatchPartyDetailsResponse, error) {
	party := models.Party{
		PartyID:   partyID,
		MovieID:   movieID,
		MovieURL:  movieURL,
		HostID:    hostID,
		HostName:  hostName,
		Status:    models.PartyStatusActive,
		CreatedAt: s.now().UTC(),
		Members:   []models.PartyMember{{UserID: hostID, UserName: hostName}},
	}

	created, err := s.store.Create(ctx, party)
	if err != nil {
		return models.WatchPartyDetailsResponse{}, err
	}

	s.log.Info("party created",
		zap.String("party_id", partyID),
		zap.Int64("movie_id", movieID),
		zap.Int64("host_id", hostID))
	return created.Snapshot(), nil
}

// JoinParty adds a member and broadcasts USER_JOINED. Re-joining is a no-op
// that emits nothing and returns the current state.
func (s *Service) JoinParty(ctx context.Context, partyID string, userID int64, userName string) (models.WatchPartyDetailsResponse, error) {
	member := models.PartyMember{UserID: userID, UserName: userName}
	party, added, err := s.store.AddMember(ctx, partyID, member)
	if err != nil {
		return models.WatchPartyDetailsResponse{}, err
	}

	if added {
		event := s.memberEvent(partyID, models.EventUserJoined, member, party.CurrentParticipants())
		if err := publishEvent(ctx, s.bus, s.audit, event); err != nil {
			// Membership already changed; the caller retries the announce,
			// not the join.
			return party.Snapshot(), err
		}
	}
	return party.Snapshot(), nil
}

// LeaveParty removes a member and broadcasts USER_LEFT. When the host leaves
// the party ends and PARTY_DELETED is broadcast once. Leaving a missing or
// already-ended party is a no-op so disconnect cleanup stays idempotent.
func (s *Service) LeaveParty(ctx context.Context, partyID string, userID int64, userName string) error {
	party, removed, err := s.store.RemoveMember(ctx, partyID, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	member := models.PartyMember{UserID: userID, UserName: userName}
	event := s.memberEvent(partyID, models.EventUserLeft, member, party.CurrentParticipants())
	publishErr := publishEvent(ctx, s.bus, s.audit, event)

	if party.Status == models.PartyStatusEnded {
		s.log.Info("host left, party ended", zap.String("party_id", partyID), zap.Int64("host_id", userID))
		if err := s.publishPartyDeleted(ctx, partyID); err != nil && publishErr == nil {
			publishErr = err
		}
	}
	return publishErr
}

// DeleteParty ends a party explicitly and broadcasts PARTY_DELETED. Deleting
// an already-ended party is a no-op.
func (s *Service) DeleteParty(ctx context.Context, partyID string) error {
	_, ended, err := s.store.Delete(ctx, partyID)
	if err != nil {
		return err
	}
	if !ended {
		return nil
	}

	s.log.Info("party deleted", zap.String("party_id", partyID))
	return s.publishPartyDeleted(ctx, partyID)
}

func (s *Service) publishPartyDeleted(ctx context.Context, partyID string) error {
	event := models.PartyEvent{
		PartyID:   partyID,
		Type:      models.EventPartyDeleted,
		Timestamp: s.now().UTC(),
	}
	return publishEvent(ctx, s.bus, s.audit, event)
}

// GetParty returns the current snapshot. An ended party within its retention
// window reports errs.ErrPartyEnded rather than a bare miss.
func (s *Service) GetParty(ctx context.Context, partyID string) (models.WatchPartyDetailsResponse, error) {
	party, err := s.store.Get(ctx, partyID)
	if err != nil {
		return models.WatchPartyDetailsResponse{}, err
	}
	if party.Status != models.PartyStatusActive {
		return party.Snapshot(), errs.ErrPartyEnded
	}
	return party.Snapshot(), nil
}
