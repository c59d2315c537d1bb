package models

// UserRole is the role claim carried by the access token.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleCaptain UserRole = "captain"
	RolePlayer  UserRole = "player"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleCaptain, RolePlayer:
		return true
	}
	return false
}

// Actor is the authenticated caller. For players and captains ID is the
// player id; captaincy itself is always checked against the roster.
type Actor struct {
	ID   int      `json:"id"`
	Role UserRole `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Player is the searchable player profile.
type Player struct {
	ID           int     `json:"id" db:"id"`
	FirstName    string  `json:"first_name" db:"first_name"`
	LastName     string  `json:"last_name" db:"last_name"`
	Nickname     *string `json:"nickname,omitempty" db:"nickname"`
	PositionCode *string `json:"position_code,omitempty" db:"position_code"`
	PhotoKey     *string `json:"-" db:"photo_key"`
}
