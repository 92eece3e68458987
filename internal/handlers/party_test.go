package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"watchparty-service/internal/errs"
	"watchparty-service/internal/mocks"
	"watchparty-service/internal/models"
)

func setupPartyRouter(handler *PartyHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/parties", handler.InitParty)
	r.POST("/parties/:party_id/join", handler.JoinParty)
	r.POST("/parties/:party_id/leave", handler.LeaveParty)
	r.GET("/parties/:party_id", handler.GetParty)
	r.DELETE("/parties/:party_id", handler.DeleteParty)
	return r
}

func snapshotFixture() models.WatchPartyDetailsResponse {
	return models.WatchPartyDetailsResponse{
		PartyID:             "p1",
		MovieID:             100,
		MovieURL:            "https://cdn.example.com/100.m3u8",
		HostID:              42,
		HostName:            "alice",
		Status:              models.PartyStatusActive,
		CreatedAt:           time.Now().UTC(),
		Members:             []models.PartyMember{{UserID: 42, UserName: "alice"}},
		CurrentParticipants: 1,
	}
}

func TestInitPartySuccess(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("CreateParty", mock.Anything, "p1", int64(100), "https://cdn.example.com/100.m3u8", int64(42), "alice").
		Return(snapshotFixture(), nil).Once()

	body := bytes.NewBufferString(`{"party_id":"p1","movie_id":100,"movie_url":"https://cdn.example.com/100.m3u8","host_id":42,"host_name":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.WatchPartyDetailsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "p1", resp.PartyID)
	require.Equal(t, 1, resp.CurrentParticipants)
	svc.AssertExpectations(t)
}

func TestInitPartyMintsID(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("CreateParty", mock.Anything, mock.MatchedBy(func(id string) bool { return id != "" }),
		int64(100), "https://cdn.example.com/100.m3u8", int64(42), "alice").
		Return(snapshotFixture(), nil).Once()

	body := bytes.NewBufferString(`{"movie_id":100,"movie_url":"https://cdn.example.com/100.m3u8","host_id":42,"host_name":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestInitPartyDuplicate(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("CreateParty", mock.Anything, "p1", int64(100), "https://cdn.example.com/100.m3u8", int64(42), "alice").
		Return(models.WatchPartyDetailsResponse{}, errs.ErrAlreadyExists).Once()

	body := bytes.NewBufferString(`{"party_id":"p1","movie_id":100,"movie_url":"https://cdn.example.com/100.m3u8","host_id":42,"host_name":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestInitPartyMissingFields(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	req := httptest.NewRequest(http.MethodPost, "/parties", bytes.NewBufferString(`{"movie_id":100}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreateParty", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinPartySuccess(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	snapshot := snapshotFixture()
	snapshot.Members = append(snapshot.Members, models.PartyMember{UserID: 7, UserName: "bob"})
	snapshot.CurrentParticipants = 2
	svc.On("JoinParty", mock.Anything, "p1", int64(7), "bob").Return(snapshot, nil).Once()

	body := bytes.NewBufferString(`{"user_id":7,"user_name":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties/p1/join", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.WatchPartyDetailsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.CurrentParticipants)
	svc.AssertExpectations(t)
}

func TestJoinEndedParty(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("JoinParty", mock.Anything, "p1", int64(7), "bob").
		Return(models.WatchPartyDetailsResponse{}, errs.ErrPartyEnded).Once()

	body := bytes.NewBufferString(`{"user_id":7,"user_name":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties/p1/join", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "party ended")
	svc.AssertExpectations(t)
}

func TestJoinUnknownParty(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("JoinParty", mock.Anything, "ghost", int64(7), "bob").
		Return(models.WatchPartyDetailsResponse{}, errs.ErrNotFound).Once()

	body := bytes.NewBufferString(`{"user_id":7,"user_name":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties/ghost/join", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "party not found")
}

func TestJoinBusUnavailable(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("JoinParty", mock.Anything, "p1", int64(7), "bob").
		Return(snapshotFixture(), errs.ErrBusUnavailable).Once()

	body := bytes.NewBufferString(`{"user_id":7,"user_name":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties/p1/join", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLeavePartySuccess(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("LeaveParty", mock.Anything, "p1", int64(7), "bob").Return(nil).Once()

	body := bytes.NewBufferString(`{"user_id":7,"user_name":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/parties/p1/leave", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestGetPartySnapshot(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("GetParty", mock.Anything, "p1").Return(snapshotFixture(), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/parties/p1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteParty(t *testing.T) {
	svc := new(mocks.PartyServiceMock)
	router := setupPartyRouter(NewPartyHandler(svc))

	svc.On("DeleteParty", mock.Anything, "p1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/parties/p1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
