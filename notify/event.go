package notify

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types pushed to websocket rooms.
const (
	MembershipRequestCreated   = "membership_request.created"
	MembershipRequestAccepted  = "membership_request.accepted"
	MembershipRequestRejected  = "membership_request.rejected"
	MembershipRequestCancelled = "membership_request.cancelled"
	LeaveRequestCreated        = "leave_request.created"
	LeaveRequestApproved       = "leave_request.approved"
	LeaveRequestRejected       = "leave_request.rejected"
	CaptainAssigned            = "captain.assigned"
	CaptainDeactivated         = "captain.deactivated"
	DreamTeamPublished         = "dreamteam.published"
)

const AdminRoom = "admin"

func TeamRoom(teamID int) string {
	return "team_" + strconv.Itoa(teamID)
}

func PlayerRoom(playerID int) string {
	return "player_" + strconv.Itoa(playerID)
}

// Event is the message written to every client of the target rooms.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
	Rooms      []string    `json:"-"`
}

func NewEvent(eventType string, payload interface{}, at time.Time, rooms ...string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: at,
		Rooms:      rooms,
	}
}
