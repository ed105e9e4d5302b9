package giveaway

import "time"

// GiveawayStatus represents the lifecycle state of a giveaway. The only
// transitions are Active -> Ended and Active -> Cancelled.
type GiveawayStatus string

const (
	GiveawayStatusActive    GiveawayStatus = "active"
	GiveawayStatusEnded     GiveawayStatus = "ended"
	GiveawayStatusCancelled GiveawayStatus = "cancelled"
)

// Giveaway is the record kept for every announced giveaway. ID is the ID of
// the announcement message.
type Giveaway struct {
	ID           string         `json:"id"`
	GuildID      string         `json:"guild_id"`
	ChannelID    string         `json:"channel_id"`
	HostID       string         `json:"host_id"`
	Prize        string         `json:"prize"`
	DonorName    string         `json:"donor_name,omitempty"`
	WinnerCount  int            `json:"winner_count"`
	StartedAt    time.Time      `json:"started_at"`
	EndTime      time.Time      `json:"end_time"`
	Status       GiveawayStatus `json:"status"`
	Requirements Requirements   `json:"requirements"`
	Participants []string       `json:"participants"`
	WinnerIDs    []string       `json:"winner_ids,omitempty"`

	// EndedAt is set on the transition out of Active (natural end, end-now or cancel).
	EndedAt time.Time `json:"ended_at,omitempty"`
	// ResultAnnounced is false until the result (or cancellation) message was delivered.
	ResultAnnounced  bool `json:"result_announced"`
	AnnounceAttempts int  `json:"announce_attempts"`
	RerollCount      int  `json:"reroll_count"`
}

// IsActive reports whether the giveaway still accepts entries.
func (g *Giveaway) IsActive() bool {
	return g.Status == GiveawayStatusActive
}

// Expired reports whether an active giveaway is past its end time.
func (g *Giveaway) Expired(now time.Time) bool {
	return g.IsActive() && !now.Before(g.EndTime)
}

// HasParticipant reports whether the user already entered.
func (g *Giveaway) HasParticipant(userID string) bool {
	for _, p := range g.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// AddParticipant inserts userID and reports whether it was newly added.
func (g *Giveaway) AddParticipant(userID string) bool {
	if g.HasParticipant(userID) {
		return false
	}
	g.Participants = append(g.Participants, userID)
	return true
}

// Clone returns a deep copy.
func (g *Giveaway) Clone() *Giveaway {
	if g == nil {
		return nil
	}
	c := *g
	c.Participants = append([]string(nil), g.Participants...)
	if c.Participants == nil {
		c.Participants = []string{}
	}
	if g.WinnerIDs != nil {
		c.WinnerIDs = append([]string(nil), g.WinnerIDs...)
	}
	return &c
}
