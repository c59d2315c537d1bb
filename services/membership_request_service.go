package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/leaguehub/roster-service/metrics"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
)

// AcceptInput carries the optional data recorded on acceptance.
type AcceptInput struct {
	ResponseNote *string `json:"response_note,omitempty"`
	AddedBy      *string `json:"added_by,omitempty"`
}

// TeamInbox is what a captain has to act on for one team.
type TeamInbox struct {
	JoinRequests  []*models.MembershipRequest `json:"join_requests"`
	Invitations   []*models.MembershipRequest `json:"invitations"`
	LeaveRequests []*models.LeaveRequest      `json:"leave_requests"`
}

// MembershipRequestService is the ledger of join requests and invitations.
type MembershipRequestService struct {
	tx          TxRunner
	requests    repositories.MembershipRequestRepository
	memberships repositories.MembershipRepository
	categories  repositories.CategoryEditionRepository
	leaves      repositories.LeaveRequestRepository
	roster      *RosterService
	events      EventPublisher
	metrics     *metrics.Metrics
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewMembershipRequestService(
	tx TxRunner,
	requests repositories.MembershipRequestRepository,
	memberships repositories.MembershipRepository,
	categories repositories.CategoryEditionRepository,
	leaves repositories.LeaveRequestRepository,
	roster *RosterService,
	events EventPublisher,
	m *metrics.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) *MembershipRequestService {
	return &MembershipRequestService{
		tx:          tx,
		requests:    requests,
		memberships: memberships,
		categories:  categories,
		leaves:      leaves,
		roster:      roster,
		events:      publisherOrDiscard(events),
		metrics:     m,
		clock:       clock,
		logger:      logger,
	}
}

func normalizeMessage(msg *string) *string {
	if msg == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*msg)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *MembershipRequestService) loadOpenCategory(ctx context.Context, exec repositories.SQLExecutor, categoryEditionID int) (*models.CategoryEdition, error) {
	ce, err := s.categories.GetByID(ctx, exec, categoryEditionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCategoryEditionNotFound) {
			return nil, &RuleError{Kind: ErrNotFound, CategoryEditionID: categoryEditionID}
		}
		return nil, err
	}
	if err := CheckCategoryOpen(ce); err != nil {
		return nil, err
	}
	return ce, nil
}

// create runs the checks shared by join requests and invitations and stores
// the pending request.
func (s *MembershipRequestService) create(ctx context.Context, exec repositories.SQLExecutor, req *models.MembershipRequest, entries []*models.TeamMembership) error {
	if err := CheckNoDuplicateMembership(entries, req.PlayerID, req.TeamID, req.CategoryEditionID); err != nil {
		return err
	}

	dup := &RuleError{Kind: ErrDuplicatePendingRequest, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
	existing, err := s.requests.FindPending(ctx, exec, req.PlayerID, req.TeamID, req.CategoryEditionID, req.Direction)
	switch {
	case err == nil:
		dup.RequestID = existing.ID
		return dup
	case !errors.Is(err, repositories.ErrMembershipRequestNotFound):
		return fmt.Errorf("find pending request: %w", err)
	}

	if err := s.requests.Create(ctx, exec, req); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMembershipRequestPendingConflict):
			return dup
		case errors.Is(err, repositories.ErrMembershipRequestReferenceInvalid):
			return &RuleError{Kind: ErrNotFound, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
		}
		return err
	}
	return nil
}

// CreateJoinRequest records a player's request to join a team.
func (s *MembershipRequestService) CreateJoinRequest(ctx context.Context, actor models.Actor, teamID, categoryEditionID int, message *string) (*models.MembershipRequest, error) {
	if actor.IsAdmin() || actor.ID <= 0 {
		return nil, &RuleError{Kind: ErrUnauthorized, TeamID: teamID, CategoryEditionID: categoryEditionID}
	}

	req := &models.MembershipRequest{
		PlayerID:          actor.ID,
		TeamID:            teamID,
		CategoryEditionID: categoryEditionID,
		Direction:         models.DirectionPlayerInitiated,
		InitiatorID:       actor.ID,
		Message:           normalizeMessage(message),
		CreatedAt:         s.clock.Now(),
	}
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		ce, err := s.loadOpenCategory(ctx, exec, categoryEditionID)
		if err != nil {
			return err
		}
		req.EditionID = ce.EditionID

		entries, err := s.memberships.ListByTeam(ctx, exec, teamID, categoryEditionID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		return s.create(ctx, exec, req, entries)
	})
	s.metrics.ObserveTransition("membership_request", "create_join", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logTransition("join request created", req, actor)
	s.publish(notify.MembershipRequestCreated, req)
	return req, nil
}

// CreateInvitation records a captain's invitation of a player.
func (s *MembershipRequestService) CreateInvitation(ctx context.Context, actor models.Actor, playerID, teamID, categoryEditionID int, message *string) (*models.MembershipRequest, error) {
	if playerID <= 0 {
		return nil, &RuleError{Kind: ErrValidationFailed, Detail: "player id is required"}
	}

	req := &models.MembershipRequest{
		PlayerID:          playerID,
		TeamID:            teamID,
		CategoryEditionID: categoryEditionID,
		Direction:         models.DirectionCaptainInitiated,
		InitiatorID:       actor.ID,
		Message:           normalizeMessage(message),
		CreatedAt:         s.clock.Now(),
	}
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entries, err := s.memberships.ListByTeam(ctx, exec, teamID, categoryEditionID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		if !IsActiveCaptain(entries, actor, teamID, categoryEditionID) {
			return &RuleError{Kind: ErrUnauthorized, PlayerID: actor.ID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}

		ce, err := s.loadOpenCategory(ctx, exec, categoryEditionID)
		if err != nil {
			return err
		}
		req.EditionID = ce.EditionID
		return s.create(ctx, exec, req, entries)
	})
	s.metrics.ObserveTransition("membership_request", "create_invitation", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logTransition("invitation created", req, actor)
	s.publish(notify.MembershipRequestCreated, req)
	return req, nil
}

// authorizeResolution enforces the counterparty rule for accept and reject
// and the initiator rule for cancel.
func (s *MembershipRequestService) authorizeResolution(ctx context.Context, exec repositories.SQLExecutor, actor models.Actor, req *models.MembershipRequest, action models.RequestAction) error {
	denied := &RuleError{Kind: ErrUnauthorized, RequestID: req.ID, PlayerID: actor.ID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
	if actor.IsAdmin() {
		return denied
	}

	if action == models.ActionCancel {
		if actor.ID != req.InitiatorID {
			return denied
		}
		return nil
	}

	if actor.ID == req.InitiatorID {
		return denied
	}
	switch req.Direction {
	case models.DirectionCaptainInitiated:
		if actor.ID != req.PlayerID {
			return denied
		}
		return nil
	case models.DirectionPlayerInitiated:
		if actor.ID == req.PlayerID {
			return denied
		}
		entries, err := s.memberships.ListByTeam(ctx, exec, req.TeamID, req.CategoryEditionID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		if !IsActiveCaptain(entries, actor, req.TeamID, req.CategoryEditionID) {
			return denied
		}
		return nil
	}
	return denied
}

// resolve locks the request, checks state and authorization, runs apply and
// writes the terminal state, all in one transaction.
func (s *MembershipRequestService) resolve(
	ctx context.Context,
	actor models.Actor,
	requestID int,
	action models.RequestAction,
	apply func(exec repositories.SQLExecutor, req *models.MembershipRequest) error,
) (*models.MembershipRequest, error) {
	var req *models.MembershipRequest
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		req, err = s.requests.GetByIDForUpdate(ctx, exec, requestID)
		if err != nil {
			if errors.Is(err, repositories.ErrMembershipRequestNotFound) {
				return &RuleError{Kind: ErrNotFound, RequestID: requestID}
			}
			return err
		}

		next, ok := models.NextRequestState(req.State, action)
		if !ok {
			return &RuleError{Kind: ErrInvalidStateTransition, RequestID: req.ID, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
		}
		if err := s.authorizeResolution(ctx, exec, actor, req, action); err != nil {
			return err
		}
		if apply != nil {
			if err := apply(exec, req); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		req.State = next
		req.ResolvedAt = &now
		if action != models.ActionCancel {
			req.ResolvedBy = intPtr(actor.ID)
		}

		if err := s.requests.Resolve(ctx, exec, req); err != nil {
			if errors.Is(err, repositories.ErrMembershipRequestNotPending) {
				return &RuleError{Kind: ErrInvalidStateTransition, RequestID: req.ID}
			}
			return err
		}
		return nil
	})
	s.metrics.ObserveTransition("membership_request", string(action), outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Accept resolves a pending request and puts the player on the roster in the
// same transaction.
func (s *MembershipRequestService) Accept(ctx context.Context, actor models.Actor, requestID int, input AcceptInput) (*models.MembershipRequest, *models.TeamMembership, error) {
	var membership *models.TeamMembership
	req, err := s.resolve(ctx, actor, requestID, models.ActionAccept, func(exec repositories.SQLExecutor, req *models.MembershipRequest) error {
		if _, err := s.loadOpenCategory(ctx, exec, req.CategoryEditionID); err != nil {
			return err
		}

		entries, err := s.memberships.LockByTeam(ctx, exec, req.TeamID, req.CategoryEditionID)
		if err != nil {
			return fmt.Errorf("lock roster: %w", err)
		}
		if err := CheckNoDuplicateMembership(entries, req.PlayerID, req.TeamID, req.CategoryEditionID); err != nil {
			var re *RuleError
			if errors.As(err, &re) {
				re.RequestID = req.ID
			}
			return err
		}

		membership = &models.TeamMembership{
			PlayerID:          req.PlayerID,
			TeamID:            req.TeamID,
			CategoryEditionID: req.CategoryEditionID,
			JoinedAt:          s.clock.Now(),
		}
		if err := s.memberships.Activate(ctx, exec, membership); err != nil {
			return fmt.Errorf("activate membership: %w", err)
		}

		req.ResponseNote = normalizeMessage(input.ResponseNote)
		req.AddedBy = normalizeMessage(input.AddedBy)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logTransition("membership request accepted", req, actor)
	s.publish(notify.MembershipRequestAccepted, req)
	return req, membership, nil
}

func (s *MembershipRequestService) Reject(ctx context.Context, actor models.Actor, requestID int, note *string) (*models.MembershipRequest, error) {
	req, err := s.resolve(ctx, actor, requestID, models.ActionReject, func(_ repositories.SQLExecutor, req *models.MembershipRequest) error {
		req.ResponseNote = normalizeMessage(note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition("membership request rejected", req, actor)
	s.publish(notify.MembershipRequestRejected, req)
	return req, nil
}

func (s *MembershipRequestService) Cancel(ctx context.Context, actor models.Actor, requestID int) (*models.MembershipRequest, error) {
	req, err := s.resolve(ctx, actor, requestID, models.ActionCancel, nil)
	if err != nil {
		return nil, err
	}

	s.logTransition("membership request cancelled", req, actor)
	s.publish(notify.MembershipRequestCancelled, req)
	return req, nil
}

func (s *MembershipRequestService) Get(ctx context.Context, requestID int) (*models.MembershipRequest, error) {
	req, err := s.requests.GetByID(ctx, nil, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipRequestNotFound) {
			return nil, &RuleError{Kind: ErrNotFound, RequestID: requestID}
		}
		return nil, err
	}
	return req, nil
}

func (s *MembershipRequestService) ListForPlayer(ctx context.Context, playerID int, state *models.RequestState) ([]*models.MembershipRequest, error) {
	return s.requests.ListByPlayer(ctx, nil, playerID, state)
}

func (s *MembershipRequestService) ListForTeam(ctx context.Context, teamID, categoryEditionID int, state *models.RequestState) ([]*models.MembershipRequest, error) {
	return s.requests.ListByTeam(ctx, nil, teamID, categoryEditionID, state)
}

// HasPendingInvitation is a convenience read for clients. It may be stale by
// the time a transition runs; transitions re-check under lock.
func (s *MembershipRequestService) HasPendingInvitation(ctx context.Context, playerID, teamID, categoryEditionID int) (bool, error) {
	_, err := s.requests.FindPending(ctx, nil, playerID, teamID, categoryEditionID, models.DirectionCaptainInitiated)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipRequestNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// TeamInbox loads pending requests, invitations and leave requests for a
// team. Only admins and active captains of the team may read it.
func (s *MembershipRequestService) TeamInbox(ctx context.Context, actor models.Actor, teamID, categoryEditionID int) (*TeamInbox, error) {
	if !actor.IsAdmin() {
		if err := s.roster.AuthorizeCaptain(ctx, nil, actor, teamID, categoryEditionID); err != nil {
			return nil, err
		}
	}

	pending := models.RequestPending
	leavePending := models.LeavePending
	var (
		requests []*models.MembershipRequest
		leaves   []*models.LeaveRequest
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requests, err = s.requests.ListByTeam(gctx, nil, teamID, categoryEditionID, &pending)
		return err
	})
	g.Go(func() error {
		var err error
		leaves, err = s.leaves.ListByTeam(gctx, nil, teamID, categoryEditionID, &leavePending)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load team inbox: %w", err)
	}

	inbox := &TeamInbox{
		JoinRequests:  make([]*models.MembershipRequest, 0),
		Invitations:   make([]*models.MembershipRequest, 0),
		LeaveRequests: leaves,
	}
	for _, r := range requests {
		if r.Direction == models.DirectionPlayerInitiated {
			inbox.JoinRequests = append(inbox.JoinRequests, r)
		} else {
			inbox.Invitations = append(inbox.Invitations, r)
		}
	}
	return inbox, nil
}

func (s *MembershipRequestService) logTransition(msg string, req *models.MembershipRequest, actor models.Actor) {
	s.logger.Info(msg,
		slog.Int("request_id", req.ID),
		slog.Int("team_id", req.TeamID),
		slog.Int("player_id", req.PlayerID),
		slog.Int("category_edition_id", req.CategoryEditionID),
		slog.Int("actor_id", actor.ID),
		slog.String("state", string(req.State)))
}

func (s *MembershipRequestService) publish(eventType string, req *models.MembershipRequest) {
	s.events.Publish(notify.NewEvent(eventType, req, s.clock.Now(),
		notify.TeamRoom(req.TeamID), notify.PlayerRoom(req.PlayerID)))
}
