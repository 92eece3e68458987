package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"watchparty-service/internal/bus"
	"watchparty-service/internal/models"
)

type PartyStoreMock struct {
	mock.Mock
}

func (m *PartyStoreMock) Create(ctx context.Context, party models.Party) (models.Party, error) {
	args := m.Called(ctx, party)
	var p models.Party
	if val := args.Get(0); val != nil {
		p = val.(models.Party)
	}
	return p, args.Error(1)
}

func (m *PartyStoreMock) Get(ctx context.Context, partyID string) (models.Party, error) {
	args := m.Called(ctx, partyID)
	var p models.Party
	if val := args.Get(0); val != nil {
		p = val.(models.Party)
	}
	return p, args.Error(1)
}

func (m *PartyStoreMock) AddMember(ctx context.Context, partyID string, member models.PartyMember) (models.Party, bool, error) {
	args := m.Called(ctx, partyID, member)
	var p models.Party
	if val := args.Get(0); val != nil {
		p = val.(models.Party)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *PartyStoreMock) RemoveMember(ctx context.Context, partyID string, userID int64) (models.Party, bool, error) {
	args := m.Called(ctx, partyID, userID)
	var p models.Party
	if val := args.Get(0); val != nil {
		p = val.(models.Party)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *PartyStoreMock) Delete(ctx context.Context, partyID string) (models.Party, bool, error) {
	args := m.Called(ctx, partyID)
	var p models.Party
	if val := args.Get(0); val != nil {
		p = val.(models.Party)
	}
	return p, args.Bool(1), args.Error(2)
}

type EventBusMock struct {
	mock.Mock
}

func (m *EventBusMock) Publish(ctx context.Context, partyID string, event models.PartyEvent) error {
	args := m.Called(ctx, partyID, event)
	return args.Error(0)
}

func (m *EventBusMock) Subscribe(partyID string, handler bus.Handler) error {
	args := m.Called(partyID, handler)
	return args.Error(0)
}

func (m *EventBusMock) Unsubscribe(partyID string) {
	m.Called(partyID)
}

func (m *EventBusMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type PartyServiceMock struct {
	mock.Mock
}

func (m *PartyServiceMock) CreateParty(ctx context.Context, partyID string, movieID int64, movieURL string, hostID int64, hostName string) (models.WatchPartyDetailsResponse, error) {
	args := m.Called(ctx, partyID, movieID, movieURL, hostID, hostName)
	var resp models.WatchPartyDetailsResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.WatchPartyDetailsResponse)
	}
	return resp, args.Error(1)
}

func (m *PartyServiceMock) JoinParty(ctx context.Context, partyID string, userID int64, userName string) (models.WatchPartyDetailsResponse, error) {
	args := m.Called(ctx, partyID, userID, userName)
	var resp models.WatchPartyDetailsResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.WatchPartyDetailsResponse)
	}
	return resp, args.Error(1)
}

func (m *PartyServiceMock) LeaveParty(ctx context.Context, partyID string, userID int64, userName string) error {
	args := m.Called(ctx, partyID, userID, userName)
	return args.Error(0)
}

func (m *PartyServiceMock) DeleteParty(ctx context.Context, partyID string) error {
	args := m.Called(ctx, partyID)
	return args.Error(0)
}

func (m *PartyServiceMock) GetParty(ctx context.Context, partyID string) (models.WatchPartyDetailsResponse, error) {
	args := m.Called(ctx, partyID)
	var resp models.WatchPartyDetailsResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.WatchPartyDetailsResponse)
	}
	return resp, args.Error(1)
}
