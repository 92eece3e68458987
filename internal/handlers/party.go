package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"watchparty-service/internal/errs"
	"watchparty-service/internal/models"
)

// PartyService is the lifecycle boundary consumed by the administration API.
type PartyService interface {
	CreateParty(ctx context.Context, partyID string, movieID int64, movieURL string, hostID int64, hostName string) (models.WatchPartyDetailsResponse, error)
	JoinParty(ctx context.Context, partyID string, userID int64, userName string) (models.WatchPartyDetailsResponse, error)
	LeaveParty(ctx context.Context, partyID string, userID int64, userName string) error
	DeleteParty(ctx context.Context, partyID string) error
	GetParty(ctx context.Context, partyID string) (models.WatchPartyDetailsResponse, error)
}

// PartyHandler exposes the party administration API consumed by the catalog
// service. Movie and user existence are validated by the caller before the
// hand-off.
type PartyHandler struct {
	svc PartyService
}

// NewPartyHandler builds a PartyHandler.
func NewPartyHandler(svc PartyService) *PartyHandler {
	return &PartyHandler{svc: svc}
}

// InitParty creates a new party. A missing party_id is minted server-side;
// on AlreadyExists the caller should regenerate the id and retry.
func (h *PartyHandler) InitParty(c *gin.Context) {
	var req struct {
		PartyID  string `json:"party_id"`
		MovieID  int64  `json:"movie_id" binding:"required"`
		MovieURL string `json:"movie_url" binding:"required"`
		HostID   int64  `json:"host_id" binding:"required"`
		HostName string `json:"host_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	partyID := req.PartyID
	if partyID == "" {
		partyID = uuid.NewString()
	}

	resp, err := h.svc.CreateParty(c.Request.Context(), partyID, req.MovieID, req.MovieURL, req.HostID, req.HostName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// JoinParty adds a member to an active party.
func (h *PartyHandler) JoinParty(c *gin.Context) {
	partyID := c.Param("party_id")

	var req struct {
		UserID   int64  `json:"user_id" binding:"required"`
		UserName string `json:"user_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.JoinParty(c.Request.Context(), partyID, req.UserID, req.UserName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LeaveParty removes a member; the host leaving ends the party.
func (h *PartyHandler) LeaveParty(c *gin.Context) {
	partyID := c.Param("party_id")

	var req struct {
		UserID   int64  `json:"user_id" binding:"required"`
		UserName string `json:"user_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.LeaveParty(c.Request.Context(), partyID, req.UserID, req.UserName); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetParty returns the current snapshot so clients can resync membership.
func (h *PartyHandler) GetParty(c *gin.Context) {
	resp, err := h.svc.GetParty(c.Request.Context(), c.Param("party_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteParty ends a party explicitly.
func (h *PartyHandler) DeleteParty(c *gin.Context) {
	if err := h.svc.DeleteParty(c.Request.Context(), c.Param("party_id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrPartyEnded):
		c.JSON(http.StatusNotFound, gin.H{"error": "party ended"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "party not found"})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "party already exists"})
	case errors.Is(err, errs.ErrBusUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus unavailable, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
