package models

import "time"

// DreamTeam is the all-star lineup of one jornada in a category-edition.
type DreamTeam struct {
	ID                int        `json:"id" db:"id"`
	CategoryEditionID int        `json:"category_edition_id" db:"category_edition_id"`
	Jornada           int        `json:"jornada" db:"jornada"`
	Formation         string     `json:"formation" db:"formation"`
	Published         bool       `json:"published" db:"published"`
	PublishedAt       *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`

	Slots []DreamTeamSlotAssignment `json:"slots,omitempty" db:"-"`
}

// DreamTeamSlotAssignment places one player in one formation slot.
type DreamTeamSlotAssignment struct {
	ID           int       `json:"id" db:"id"`
	DreamTeamID  int       `json:"dreamteam_id" db:"dreamteam_id"`
	MatchID      int       `json:"match_id" db:"match_id"`
	PlayerID     int       `json:"player_id" db:"player_id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	Formation    string    `json:"formation" db:"formation"`
	SlotIndex    int       `json:"slot_index" db:"slot_index"`
	PositionCode *string   `json:"position_code,omitempty" db:"position_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DreamTeamView is a dream team with its formation layout and occupancy.
type DreamTeamView struct {
	DreamTeam *DreamTeam `json:"dreamteam"`
	Layout    Formation  `json:"layout"`
	Occupancy int        `json:"occupancy"`
}
