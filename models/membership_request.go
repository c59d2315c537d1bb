package models

import "time"

// RequestDirection показывает, кто создал заявку: игрок или капитан.
type RequestDirection string

const (
	DirectionPlayerInitiated  RequestDirection = "PLAYER_INITIATED"
	DirectionCaptainInitiated RequestDirection = "CAPTAIN_INITIATED"
)

func (d RequestDirection) Valid() bool {
	return d == DirectionPlayerInitiated || d == DirectionCaptainInitiated
}

// RequestState is the lifecycle state of a MembershipRequest.
type RequestState string

const (
	RequestPending   RequestState = "PENDING"
	RequestAccepted  RequestState = "ACCEPTED"
	RequestRejected  RequestState = "REJECTED"
	RequestCancelled RequestState = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s RequestState) IsTerminal() bool {
	return s != RequestPending
}

// RequestAction is a transition applied to a pending request.
type RequestAction string

const (
	ActionAccept RequestAction = "accept"
	ActionReject RequestAction = "reject"
	ActionCancel RequestAction = "cancel"
)

var requestTransitions = map[RequestState]map[RequestAction]RequestState{
	RequestPending: {
		ActionAccept: RequestAccepted,
		ActionReject: RequestRejected,
		ActionCancel: RequestCancelled,
	},
	RequestAccepted:  {},
	RequestRejected:  {},
	RequestCancelled: {},
}

// NextRequestState returns the state reached by applying action to current.
// ok is false when the transition does not exist.
func NextRequestState(current RequestState, action RequestAction) (next RequestState, ok bool) {
	next, ok = requestTransitions[current][action]
	return next, ok
}

// MembershipRequest is one join request or invitation linking a player to a
// team within a category-edition.
type MembershipRequest struct {
	ID                int              `json:"id" db:"id"`
	PlayerID          int              `json:"player_id" db:"player_id"`
	TeamID            int              `json:"team_id" db:"team_id"`
	CategoryEditionID int              `json:"category_edition_id" db:"category_edition_id"`
	EditionID         int              `json:"edition_id" db:"edition_id"`
	Direction         RequestDirection `json:"direction" db:"direction"`
	State             RequestState     `json:"state" db:"state"`
	InitiatorID       int              `json:"initiator_id" db:"initiator_id"`
	Message           *string          `json:"message,omitempty" db:"message"`
	ResponseNote      *string          `json:"response_note,omitempty" db:"response_note"`
	AddedBy           *string          `json:"added_by,omitempty" db:"added_by"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy        *int             `json:"resolved_by,omitempty" db:"resolved_by"`
}

// IsPending is true while the request accepts transitions.
func (r *MembershipRequest) IsPending() bool {
	return r.State == RequestPending
}

// Counterparty returns the id of the party expected to accept or reject.
// For captain-initiated invitations this is the invited player; for join
// requests it is 0 since any active captain of the team may resolve them.
func (r *MembershipRequest) Counterparty() int {
	if r.Direction == DirectionCaptainInitiated {
		return r.PlayerID
	}
	return 0
}
