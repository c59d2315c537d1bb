package models

import "time"

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

// TeamRoster is the roster of one team in one category-edition.
type TeamRoster struct {
	Team              *Team             `json:"team"`
	CategoryEditionID int               `json:"category_edition_id"`
	Entries           []*TeamMembership `json:"entries"`
}

// ActiveCaptains counts entries that are active captains.
func (r *TeamRoster) ActiveCaptains() int {
	n := 0
	for _, e := range r.Entries {
		if e.IsActiveCaptain() {
			n++
		}
	}
	return n
}
