package models

import "time"

// TeamMembership is a player's entry on a team roster for one category-edition.
type TeamMembership struct {
	ID                int        `json:"id" db:"id"`
	PlayerID          int        `json:"player_id" db:"player_id"`
	TeamID            int        `json:"team_id" db:"team_id"`
	CategoryEditionID int        `json:"category_edition_id" db:"category_edition_id"`
	Eventual          bool       `json:"eventual" db:"eventual"`
	Sanctioned        bool       `json:"sanctioned" db:"sanctioned"`
	Captain           bool       `json:"captain" db:"captain"`
	Active            bool       `json:"active" db:"active"`
	JoinedAt          time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt            *time.Time `json:"left_at,omitempty" db:"left_at"`

	Player *Player `json:"player,omitempty" db:"-"`
}

// IsActiveCaptain is true only for an active entry with the captain flag set.
func (m *TeamMembership) IsActiveCaptain() bool {
	return m.Active && m.Captain
}

// MaxActiveCaptains limits captains per team and category-edition.
const MaxActiveCaptains = 2
