package models

// CategoryEdition is a category within a tournament edition; rosters and
// requests are scoped to it. Open is maintained outside this service.
type CategoryEdition struct {
	ID        int    `json:"id" db:"id"`
	EditionID int    `json:"edition_id" db:"edition_id"`
	Name      string `json:"name" db:"name"`
	Open      bool   `json:"open" db:"open"`
}
