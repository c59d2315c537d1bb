package handlers

import (
	"context"
	"net/http"

	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/services"
)

type DreamTeamService interface {
	Formations() models.FormationTable
	Create(ctx context.Context, categoryEditionID, jornada int, formationName string) (*models.DreamTeam, error)
	Get(ctx context.Context, id int) (*models.DreamTeamView, error)
	Assign(ctx context.Context, dreamTeamID int, input services.AssignInput) (int, error)
	Remove(ctx context.Context, dreamTeamID, matchID, playerID int) (int, error)
	ChangeFormation(ctx context.Context, dreamTeamID int, formationName string) (*models.DreamTeam, error)
	Publish(ctx context.Context, dreamTeamID int) (*models.DreamTeamView, error)
	SearchCandidates(ctx context.Context, dreamTeamID, slot int, query string, limit int) ([]models.Player, error)
}

type PlayerSearchService interface {
	Search(ctx context.Context, query string, limit int) ([]models.Player, error)
}

type DreamTeamHandler struct {
	dreamTeamService DreamTeamService
	searchService    PlayerSearchService
}

func NewDreamTeamHandler(ds DreamTeamService, ps PlayerSearchService) *DreamTeamHandler {
	return &DreamTeamHandler{dreamTeamService: ds, searchService: ps}
}

type createDreamTeamInput struct {
	CategoryEditionID int    `json:"category_edition_id"`
	Jornada           int    `json:"jornada"`
	Formation         string `json:"formation"`
}

type assignSlotInput struct {
	PlayerID     int     `json:"player_id"`
	TeamID       int     `json:"team_id"`
	MatchID      int     `json:"match_id"`
	PositionCode *string `json:"position_code,omitempty"`
}

type formationInput struct {
	Formation string `json:"formation"`
}

func (h *DreamTeamHandler) Formations(w http.ResponseWriter, r *http.Request) {
	table := h.dreamTeamService.Formations()
	formations := make([]models.Formation, 0, len(table))
	for _, name := range table.Names() {
		formations = append(formations, table[name])
	}
	respond(w, r, http.StatusOK, jsonResponse{"formations": formations})
}

func (h *DreamTeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input createDreamTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dt, err := h.dreamTeamService.Create(r.Context(), input.CategoryEditionID, input.Jornada, input.Formation)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"dreamteam": dt})
}

func (h *DreamTeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "dreamTeamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.dreamTeamService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

func (h *DreamTeamHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "dreamTeamID", "slot")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input assignSlotInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	occupancy, err := h.dreamTeamService.Assign(r.Context(), ids[0], services.AssignInput{
		Slot:         ids[1],
		PlayerID:     input.PlayerID,
		TeamID:       input.TeamID,
		MatchID:      input.MatchID,
		PositionCode: input.PositionCode,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"occupancy": occupancy})
}

func (h *DreamTeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "dreamTeamID", "matchID", "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	occupancy, err := h.dreamTeamService.Remove(r.Context(), ids[0], ids[1], ids[2])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"occupancy": occupancy})
}

func (h *DreamTeamHandler) ChangeFormation(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "dreamTeamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input formationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dt, err := h.dreamTeamService.ChangeFormation(r.Context(), id, input.Formation)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"dreamteam": dt})
}

func (h *DreamTeamHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "dreamTeamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.dreamTeamService.Publish(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

func (h *DreamTeamHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "dreamTeamID", "slot")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	players, err := h.dreamTeamService.SearchCandidates(r.Context(), ids[0], ids[1], r.URL.Query().Get("q"), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"players": players})
}

func (h *DreamTeamHandler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	players, err := h.searchService.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"players": players})
}
