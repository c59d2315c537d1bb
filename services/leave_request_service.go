package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/leaguehub/roster-service/metrics"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
)

// LeaveInput is the free text attached to a leave request.
type LeaveInput struct {
	Reason       string  `json:"reason"`
	Observations *string `json:"observations,omitempty"`
}

// LeaveRequestService handles "baja" requests. Self-service and
// captain-on-behalf requests are separate operations over the same entity.
type LeaveRequestService struct {
	tx          TxRunner
	leaves      repositories.LeaveRequestRepository
	memberships repositories.MembershipRepository
	events      EventPublisher
	metrics     *metrics.Metrics
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewLeaveRequestService(
	tx TxRunner,
	leaves repositories.LeaveRequestRepository,
	memberships repositories.MembershipRepository,
	events EventPublisher,
	m *metrics.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) *LeaveRequestService {
	return &LeaveRequestService{
		tx:          tx,
		leaves:      leaves,
		memberships: memberships,
		events:      publisherOrDiscard(events),
		metrics:     m,
		clock:       clock,
		logger:      logger,
	}
}

func (in LeaveInput) validate() error {
	if strings.TrimSpace(in.Reason) == "" {
		return &RuleError{Kind: ErrValidationFailed, Detail: "reason is required"}
	}
	return nil
}

// RequestOwnLeave lets a player ask to be removed from a roster.
func (s *LeaveRequestService) RequestOwnLeave(ctx context.Context, actor models.Actor, teamID, categoryEditionID int, input LeaveInput) (*models.LeaveRequest, error) {
	if actor.IsAdmin() || actor.ID <= 0 {
		return nil, &RuleError{Kind: ErrUnauthorized, TeamID: teamID, CategoryEditionID: categoryEditionID}
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	req := s.newLeave(actor, actor.ID, teamID, categoryEditionID, models.LeaveInitiatorSelf, input)
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entries, err := s.memberships.ListByTeam(ctx, exec, teamID, categoryEditionID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		return s.create(ctx, exec, req, entries)
	})
	s.metrics.ObserveTransition("leave_request", "create_own", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logTransition("leave requested", req, actor)
	s.publish(notify.LeaveRequestCreated, req)
	return req, nil
}

// RequestPlayerLeaveOnBehalf lets an active captain ask for a teammate's removal.
func (s *LeaveRequestService) RequestPlayerLeaveOnBehalf(ctx context.Context, actor models.Actor, playerID, teamID, categoryEditionID int, input LeaveInput) (*models.LeaveRequest, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	req := s.newLeave(actor, playerID, teamID, categoryEditionID, models.LeaveInitiatorCaptain, input)
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entries, err := s.memberships.ListByTeam(ctx, exec, teamID, categoryEditionID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		if !IsActiveCaptain(entries, actor, teamID, categoryEditionID) {
			return &RuleError{Kind: ErrUnauthorized, PlayerID: actor.ID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}
		return s.create(ctx, exec, req, entries)
	})
	s.metrics.ObserveTransition("leave_request", "create_on_behalf", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logTransition("leave requested on behalf", req, actor)
	s.publish(notify.LeaveRequestCreated, req)
	return req, nil
}

func (s *LeaveRequestService) newLeave(actor models.Actor, playerID, teamID, categoryEditionID int, initiator models.LeaveInitiator, input LeaveInput) *models.LeaveRequest {
	return &models.LeaveRequest{
		PlayerID:          playerID,
		TeamID:            teamID,
		CategoryEditionID: categoryEditionID,
		Initiator:         initiator,
		RequestedBy:       actor.ID,
		Reason:            strings.TrimSpace(input.Reason),
		Observations:      normalizeMessage(input.Observations),
		CreatedAt:         s.clock.Now(),
	}
}

func (s *LeaveRequestService) create(ctx context.Context, exec repositories.SQLExecutor, req *models.LeaveRequest, entries []*models.TeamMembership) error {
	if findActiveEntry(entries, req.PlayerID) == nil {
		return &RuleError{Kind: ErrNotFound, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
	}

	dup := &RuleError{Kind: ErrDuplicatePendingRequest, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
	existing, err := s.leaves.FindPending(ctx, exec, req.PlayerID, req.TeamID, req.CategoryEditionID)
	switch {
	case err == nil:
		dup.RequestID = existing.ID
		return dup
	case !errors.Is(err, repositories.ErrLeaveRequestNotFound):
		return fmt.Errorf("find pending leave request: %w", err)
	}

	if err := s.leaves.Create(ctx, exec, req); err != nil {
		if errors.Is(err, repositories.ErrLeaveRequestPendingConflict) {
			return dup
		}
		return err
	}
	return nil
}

// resolve locks the leave request and the team roster, then checks that the
// actor is an admin or an active captain other than the leaving player.
func (s *LeaveRequestService) resolve(
	ctx context.Context,
	actor models.Actor,
	leaveID int,
	action string,
	apply func(exec repositories.SQLExecutor, req *models.LeaveRequest, entries []*models.TeamMembership) error,
) (*models.LeaveRequest, error) {
	var req *models.LeaveRequest
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		req, err = s.leaves.GetByIDForUpdate(ctx, exec, leaveID)
		if err != nil {
			if errors.Is(err, repositories.ErrLeaveRequestNotFound) {
				return &RuleError{Kind: ErrNotFound, RequestID: leaveID}
			}
			return err
		}
		if !req.IsPending() {
			return &RuleError{Kind: ErrInvalidStateTransition, RequestID: req.ID, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
		}

		entries, err := s.memberships.LockByTeam(ctx, exec, req.TeamID, req.CategoryEditionID)
		if err != nil {
			return fmt.Errorf("lock roster: %w", err)
		}
		if !actor.IsAdmin() {
			if actor.ID == req.PlayerID || !IsActiveCaptain(entries, actor, req.TeamID, req.CategoryEditionID) {
				return &RuleError{Kind: ErrUnauthorized, RequestID: req.ID, PlayerID: actor.ID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
			}
		}

		if err := apply(exec, req, entries); err != nil {
			return err
		}

		now := s.clock.Now()
		req.ResolvedAt = &now
		req.ResolvedBy = intPtr(actor.ID)
		if err := s.leaves.Resolve(ctx, exec, req); err != nil {
			if errors.Is(err, repositories.ErrLeaveRequestNotPending) {
				return &RuleError{Kind: ErrInvalidStateTransition, RequestID: req.ID}
			}
			return err
		}
		return nil
	})
	s.metrics.ObserveTransition("leave_request", action, outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Approve resolves the leave request and deactivates the membership in the
// same transaction.
func (s *LeaveRequestService) Approve(ctx context.Context, actor models.Actor, leaveID int) (*models.LeaveRequest, *models.TeamMembership, error) {
	var membership *models.TeamMembership
	req, err := s.resolve(ctx, actor, leaveID, "approve", func(exec repositories.SQLExecutor, req *models.LeaveRequest, entries []*models.TeamMembership) error {
		membership = findActiveEntry(entries, req.PlayerID)
		if membership == nil {
			return &RuleError{Kind: ErrNotFound, RequestID: req.ID, PlayerID: req.PlayerID, TeamID: req.TeamID, CategoryEditionID: req.CategoryEditionID}
		}
		leftAt := s.clock.Now()
		if err := s.memberships.Deactivate(ctx, exec, membership.ID, leftAt); err != nil {
			return fmt.Errorf("deactivate membership: %w", err)
		}
		membership.Active = false
		membership.Captain = false
		membership.LeftAt = &leftAt
		req.State = models.LeaveApproved
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logTransition("leave approved", req, actor)
	s.publish(notify.LeaveRequestApproved, req)
	return req, membership, nil
}

// Reject resolves the leave request without touching the roster. A reason is
// required.
func (s *LeaveRequestService) Reject(ctx context.Context, actor models.Actor, leaveID int, reason string) (*models.LeaveRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &RuleError{Kind: ErrValidationFailed, RequestID: leaveID, Detail: "rejection reason is required"}
	}

	req, err := s.resolve(ctx, actor, leaveID, "reject", func(_ repositories.SQLExecutor, req *models.LeaveRequest, _ []*models.TeamMembership) error {
		req.State = models.LeaveRejected
		req.RejectionReason = strPtr(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition("leave rejected", req, actor)
	s.publish(notify.LeaveRequestRejected, req)
	return req, nil
}

func (s *LeaveRequestService) ListForTeam(ctx context.Context, teamID, categoryEditionID int, state *models.LeaveState) ([]*models.LeaveRequest, error) {
	return s.leaves.ListByTeam(ctx, nil, teamID, categoryEditionID, state)
}

func (s *LeaveRequestService) logTransition(msg string, req *models.LeaveRequest, actor models.Actor) {
	s.logger.Info(msg,
		slog.Int("leave_request_id", req.ID),
		slog.Int("team_id", req.TeamID),
		slog.Int("player_id", req.PlayerID),
		slog.Int("category_edition_id", req.CategoryEditionID),
		slog.Int("actor_id", actor.ID),
		slog.String("state", string(req.State)))
}

func (s *LeaveRequestService) publish(eventType string, req *models.LeaveRequest) {
	s.events.Publish(notify.NewEvent(eventType, req, s.clock.Now(),
		notify.TeamRoom(req.TeamID), notify.PlayerRoom(req.PlayerID), notify.AdminRoom))
}
