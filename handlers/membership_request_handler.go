package handlers

import (
	"context"
	"net/http"

	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/services"
)

// MembershipRequestService is the part of the request ledger the HTTP layer uses.
type MembershipRequestService interface {
	CreateJoinRequest(ctx context.Context, actor models.Actor, teamID, categoryEditionID int, message *string) (*models.MembershipRequest, error)
	CreateInvitation(ctx context.Context, actor models.Actor, playerID, teamID, categoryEditionID int, message *string) (*models.MembershipRequest, error)
	Accept(ctx context.Context, actor models.Actor, requestID int, input services.AcceptInput) (*models.MembershipRequest, *models.TeamMembership, error)
	Reject(ctx context.Context, actor models.Actor, requestID int, note *string) (*models.MembershipRequest, error)
	Cancel(ctx context.Context, actor models.Actor, requestID int) (*models.MembershipRequest, error)
	Get(ctx context.Context, requestID int) (*models.MembershipRequest, error)
	ListForPlayer(ctx context.Context, playerID int, state *models.RequestState) ([]*models.MembershipRequest, error)
	ListForTeam(ctx context.Context, teamID, categoryEditionID int, state *models.RequestState) ([]*models.MembershipRequest, error)
	TeamInbox(ctx context.Context, actor models.Actor, teamID, categoryEditionID int) (*services.TeamInbox, error)
}

type MembershipRequestHandler struct {
	requestService MembershipRequestService
}

func NewMembershipRequestHandler(rs MembershipRequestService) *MembershipRequestHandler {
	return &MembershipRequestHandler{requestService: rs}
}

type messageInput struct {
	Message *string `json:"message,omitempty"`
}

type invitationInput struct {
	PlayerID int     `json:"player_id"`
	Message  *string `json:"message,omitempty"`
}

type noteInput struct {
	ResponseNote *string `json:"response_note,omitempty"`
}

func stateFilter(r *http.Request) (*models.RequestState, error) {
	code := r.URL.Query().Get("state")
	if code == "" {
		return nil, nil
	}
	state, err := models.ParseRequestStateCode(code)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (h *MembershipRequestHandler) CreateJoinRequest(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input messageInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	req, err := h.requestService.CreateJoinRequest(r.Context(), actor, ids[0], ids[1], input.Message)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"request": req})
}

func (h *MembershipRequestHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input invitationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	req, err := h.requestService.CreateInvitation(r.Context(), actor, input.PlayerID, ids[0], ids[1], input.Message)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"request": req})
}

func (h *MembershipRequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	requestID, err := getIDFromURL(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input services.AcceptInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	req, membership, err := h.requestService.Accept(r.Context(), actor, requestID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"request": req, "membership": membership})
}

func (h *MembershipRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	requestID, err := getIDFromURL(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input noteInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	req, err := h.requestService.Reject(r.Context(), actor, requestID, input.ResponseNote)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"request": req})
}

func (h *MembershipRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID, err := getIDFromURL(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	req, err := h.requestService.Cancel(r.Context(), actor, requestID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"request": req})
}

func (h *MembershipRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID, err := getIDFromURL(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	req, err := h.requestService.Get(r.Context(), requestID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"request": req})
}

func (h *MembershipRequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	state, err := stateFilter(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	reqs, err := h.requestService.ListForPlayer(r.Context(), actor.ID, state)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"requests": reqs})
}

func (h *MembershipRequestHandler) ListForTeam(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	state, err := stateFilter(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	reqs, err := h.requestService.ListForTeam(r.Context(), ids[0], ids[1], state)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"requests": reqs})
}

func (h *MembershipRequestHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "teamID", "ceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	inbox, err := h.requestService.TeamInbox(r.Context(), actor, ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"inbox": inbox})
}
