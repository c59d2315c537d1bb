package models

import "time"

// LeaveState – статус заявки на выход из состава ("baja").
type LeaveState string

const (
	LeavePending  LeaveState = "PENDING"
	LeaveApproved LeaveState = "APPROVED"
	LeaveRejected LeaveState = "REJECTED"
)

// LeaveInitiator records whether the player asked to leave or a captain did
// it on the player's behalf.
type LeaveInitiator string

const (
	LeaveInitiatorSelf    LeaveInitiator = "SELF"
	LeaveInitiatorCaptain LeaveInitiator = "CAPTAIN"
)

type LeaveRequest struct {
	ID                int            `json:"id" db:"id"`
	PlayerID          int            `json:"player_id" db:"player_id"`
	TeamID            int            `json:"team_id" db:"team_id"`
	CategoryEditionID int            `json:"category_edition_id" db:"category_edition_id"`
	Initiator         LeaveInitiator `json:"initiator" db:"initiator"`
	RequestedBy       int            `json:"requested_by" db:"requested_by"`
	Reason            string         `json:"reason" db:"reason"`
	Observations      *string        `json:"observations,omitempty" db:"observations"`
	State             LeaveState     `json:"state" db:"state"`
	RejectionReason   *string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy        *int           `json:"resolved_by,omitempty" db:"resolved_by"`
}

func (l *LeaveRequest) IsPending() bool {
	return l.State == LeavePending
}
