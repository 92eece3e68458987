package models

import (
	"encoding/json"
	"time"
)

// EventType enumerates watch party event kinds.
type EventType string

const (
	EventPlay         EventType = "PLAY"
	EventPause        EventType = "PAUSE"
	EventSeek         EventType = "SEEK"
	EventSyncRequest  EventType = "SYNC_REQUEST"
	EventChat         EventType = "CHAT"
	EventUserJoined   EventType = "USER_JOINED"
	EventUserLeft     EventType = "USER_LEFT"
	EventPartyDeleted EventType = "PARTY_DELETED"
)

// PartyEvent is the single envelope relayed between clients through the bus.
// UserID is zero for system-generated events. Events are immutable once
// published.
type PartyEvent struct {
	PartyID   string          `json:"party_id"`
	UserID    int64           `json:"user_id,omitempty"`
	UserName  string          `json:"user_name,omitempty"`
	Type      EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SeekPayload carries a position in the media for SEEK (and optionally
// PLAY/PAUSE, when the client reports where it acted).
type SeekPayload struct {
	Position float64 `json:"position"`
}

// ChatPayload carries a chat message.
type ChatPayload struct {
	Text string `json:"text"`
}

// MemberPayload describes the affected member on USER_JOINED/USER_LEFT and
// the resulting participant count.
type MemberPayload struct {
	UserID              int64  `json:"user_id"`
	UserName            string `json:"user_name"`
	CurrentParticipants int    `json:"current_participants"`
}
