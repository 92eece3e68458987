package models

import "time"

// PartyStatus represents watch party lifecycle state.
type PartyStatus string

const (
	PartyStatusActive PartyStatus = "ACTIVE"
	PartyStatusEnded  PartyStatus = "ENDED"
)

// PartyMember is a participant of a watch party, unique by UserID.
type PartyMember struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// Party is the shared watch party record kept in the party store.
type Party struct {
	PartyID   string        `json:"party_id"`
	MovieID   int64         `json:"movie_id"`
	MovieURL  string        `json:"movie_url"`
	HostID    int64         `json:"host_id"`
	HostName  string        `json:"host_name"`
	Status    PartyStatus   `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Members   []PartyMember `json:"members"`
}

// HasMember reports whether userID is currently a member.
func (p *Party) HasMember(userID int64) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// CurrentParticipants is derived from Members and never stored separately.
func (p *Party) CurrentParticipants() int {
	return len(p.Members)
}

// WatchPartyDetailsResponse is the snapshot returned from init/join/get calls.
type WatchPartyDetailsResponse struct {
	PartyID             string        `json:"party_id"`
	MovieID             int64         `json:"movie_id"`
	MovieURL            string        `json:"movie_url"`
	HostID              int64         `json:"host_id"`
	HostName            string        `json:"host_name"`
	Status              PartyStatus   `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
	Members             []PartyMember `json:"members"`
	CurrentParticipants int           `json:"current_participants"`
}

// Snapshot builds the API view of a party.
func (p *Party) Snapshot() WatchPartyDetailsResponse {
	members := make([]PartyMember, len(p.Members))
	copy(members, p.Members)
	return WatchPartyDetailsResponse{
		PartyID:             p.PartyID,
		MovieID:             p.MovieID,
		MovieURL:            p.MovieURL,
		HostID:              p.HostID,
		HostName:            p.HostName,
		Status:              p.Status,
		CreatedAt:           p.CreatedAt,
		Members:             members,
		CurrentParticipants: len(p.Members),
	}
}
