package handlers

import (
	"context"
	"net/http"

	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/services"
)

type RosterService interface {
	Roster(ctx context.Context, teamID, categoryEditionID int) (*models.TeamRoster, error)
	AssignCaptain(ctx context.Context, actor models.Actor, teamID, categoryEditionID, playerID int) (*models.TeamMembership, error)
	DeactivateCaptain(ctx context.Context, actor models.Actor, teamID, categoryEditionID, playerID int) (*models.TeamMembership, error)
}

type LeaveRequestService interface {
	RequestOwnLeave(ctx context.Context, actor models.Actor, teamID, categoryEditionID int, input services.LeaveInput) (*models.LeaveRequest, error)
	RequestPlayerLeaveOnBehalf(ctx context.Context, actor models.Actor, playerID, teamID, categoryEditionID int, input services.LeaveInput) (*models.LeaveRequest, error)
	Approve(ctx context.Context, actor models.Actor, leaveID int) (*models.LeaveRequest, *models.TeamMembership, error)
	Reject(ctx context.Context, actor models.Actor, leaveID int, reason string) (*models.LeaveRequest, error)
}

// RosterHandler serves roster reads, captaincy changes and leave requests.
type RosterHandler struct {
	rosterService RosterService
	leaveService  LeaveRequestService
}

func NewRosterHandler(rs RosterService, ls LeaveRequestService) *RosterHandler {
	return &RosterHandler{rosterService: rs, leaveService: ls}
}

type rejectLeaveInput struct {
	Reason string `json:"reason"`
}

func (h *RosterHandler) Roster(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	roster, err := h.rosterService.Roster(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"roster": roster})
}

func (h *RosterHandler) AssignCaptain(w http.ResponseWriter, r *http.Request) {
	h.captaincy(w, r, h.rosterService.AssignCaptain)
}

func (h *RosterHandler) DeactivateCaptain(w http.ResponseWriter, r *http.Request) {
	h.captaincy(w, r, h.rosterService.DeactivateCaptain)
}

func (h *RosterHandler) captaincy(w http.ResponseWriter, r *http.Request,
	change func(ctx context.Context, actor models.Actor, teamID, categoryEditionID, playerID int) (*models.TeamMembership, error)) {
	ids, err := getIDsFromURL(r, "teamID", "ceID", "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	membership, err := change(r.Context(), actor, ids[0], ids[1], ids[2])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"membership": membership})
}

func (h *RosterHandler) RequestOwnLeave(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input services.LeaveInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	leave, err := h.leaveService.RequestOwnLeave(r.Context(), actor, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"leave_request": leave})
}

func (h *RosterHandler) RequestPlayerLeave(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID", "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input services.LeaveInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	leave, err := h.leaveService.RequestPlayerLeaveOnBehalf(r.Context(), actor, ids[2], ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"leave_request": leave})
}

func (h *RosterHandler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	leaveID, err := getIDFromURL(r, "leaveID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	leave, membership, err := h.leaveService.Approve(r.Context(), actor, leaveID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"leave_request": leave, "membership": membership})
}

func (h *RosterHandler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	leaveID, err := getIDFromURL(r, "leaveID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input rejectLeaveInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	leave, err := h.leaveService.Reject(r.Context(), actor, leaveID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"leave_request": leave})
}
