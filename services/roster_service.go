package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/leaguehub/roster-service/metrics"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
)

// IsActiveCaptain reports whether actor holds an active captaincy on the
// team for the category-edition in the given roster snapshot. Admin tokens
// carry a user id rather than a player id and are never captains.
func IsActiveCaptain(entries []*models.TeamMembership, actor models.Actor, teamID, categoryEditionID int) bool {
	if actor.IsAdmin() || actor.ID <= 0 {
		return false
	}
	for _, e := range entries {
		if e.PlayerID == actor.ID && e.TeamID == teamID && e.CategoryEditionID == categoryEditionID {
			return e.IsActiveCaptain()
		}
	}
	return false
}

// CheckCaptainLimit fails when the team already has MaxActiveCaptains.
func CheckCaptainLimit(entries []*models.TeamMembership, teamID, categoryEditionID int) error {
	n := 0
	for _, e := range entries {
		if e.TeamID == teamID && e.CategoryEditionID == categoryEditionID && e.IsActiveCaptain() {
			n++
		}
	}
	if n >= models.MaxActiveCaptains {
		return &RuleError{Kind: ErrCaptainLimitExceeded, TeamID: teamID, CategoryEditionID: categoryEditionID}
	}
	return nil
}

// CheckNoDuplicateMembership fails when the player already holds an active,
// non-sanctioned entry on the team.
func CheckNoDuplicateMembership(entries []*models.TeamMembership, playerID, teamID, categoryEditionID int) error {
	for _, e := range entries {
		if e.PlayerID == playerID && e.TeamID == teamID && e.CategoryEditionID == categoryEditionID &&
			e.Active && !e.Sanctioned {
			return &RuleError{Kind: ErrDuplicateMembership, PlayerID: playerID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}
	}
	return nil
}

func CheckCategoryOpen(ce *models.CategoryEdition) error {
	if !ce.Open {
		return &RuleError{Kind: ErrCategoryClosed, CategoryEditionID: ce.ID}
	}
	return nil
}

func findActiveEntry(entries []*models.TeamMembership, playerID int) *models.TeamMembership {
	for _, e := range entries {
		if e.PlayerID == playerID && e.Active {
			return e
		}
	}
	return nil
}

// RosterService owns captaincy changes and roster reads.
type RosterService struct {
	tx          TxRunner
	memberships repositories.MembershipRepository
	teams       repositories.TeamRepository
	logoURL     func(key string) string
	events      EventPublisher
	metrics     *metrics.Metrics
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewRosterService(
	tx TxRunner,
	memberships repositories.MembershipRepository,
	teams repositories.TeamRepository,
	events EventPublisher,
	m *metrics.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) *RosterService {
	return &RosterService{
		tx:          tx,
		memberships: memberships,
		teams:       teams,
		events:      publisherOrDiscard(events),
		metrics:     m,
		clock:       clock,
		logger:      logger,
	}
}

// AuthorizeCaptain loads the roster through exec and fails with
// ErrUnauthorized unless actor is an active captain of the team.
func (s *RosterService) AuthorizeCaptain(ctx context.Context, exec repositories.SQLExecutor, actor models.Actor, teamID, categoryEditionID int) error {
	entries, err := s.memberships.ListByTeam(ctx, exec, teamID, categoryEditionID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if !IsActiveCaptain(entries, actor, teamID, categoryEditionID) {
		return &RuleError{Kind: ErrUnauthorized, PlayerID: actor.ID, TeamID: teamID, CategoryEditionID: categoryEditionID}
	}
	return nil
}

// WithLogoURLs makes Roster fill Team.LogoURL from the stored logo key.
func (s *RosterService) WithLogoURLs(fn func(key string) string) *RosterService {
	s.logoURL = fn
	return s
}

func (s *RosterService) Roster(ctx context.Context, teamID, categoryEditionID int) (*models.TeamRoster, error) {
	team, err := s.teams.GetByID(ctx, nil, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, &RuleError{Kind: ErrNotFound, TeamID: teamID}
		}
		return nil, fmt.Errorf("load team: %w", err)
	}
	if s.logoURL != nil && team.LogoKey != nil {
		team.LogoURL = strPtr(s.logoURL(*team.LogoKey))
	}

	entries, err := s.memberships.ListByTeam(ctx, nil, teamID, categoryEditionID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return &models.TeamRoster{Team: team, CategoryEditionID: categoryEditionID, Entries: entries}, nil
}

// AssignCaptain sets the captain flag on an active member. The actor must be
// an admin or an active captain of the same team.
func (s *RosterService) AssignCaptain(ctx context.Context, actor models.Actor, teamID, categoryEditionID, playerID int) (*models.TeamMembership, error) {
	var target *models.TeamMembership
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entries, err := s.memberships.LockByTeam(ctx, exec, teamID, categoryEditionID)
		if err != nil {
			return fmt.Errorf("lock roster: %w", err)
		}
		if !actor.IsAdmin() && !IsActiveCaptain(entries, actor, teamID, categoryEditionID) {
			return &RuleError{Kind: ErrUnauthorized, PlayerID: actor.ID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}

		target = findActiveEntry(entries, playerID)
		if target == nil {
			return &RuleError{Kind: ErrNotFound, PlayerID: playerID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}
		if target.Captain {
			return nil
		}
		if err := CheckCaptainLimit(entries, teamID, categoryEditionID); err != nil {
			return err
		}

		if err := s.memberships.SetCaptain(ctx, exec, target.ID, true); err != nil {
			return fmt.Errorf("set captain: %w", err)
		}
		target.Captain = true
		return nil
	})
	s.metrics.ObserveTransition("captain", "assign", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("captain assigned",
		slog.Int("team_id", teamID),
		slog.Int("category_edition_id", categoryEditionID),
		slog.Int("player_id", playerID),
		slog.Int("actor_id", actor.ID))
	s.events.Publish(notify.NewEvent(notify.CaptainAssigned, target, s.clock.Now(),
		notify.TeamRoom(teamID), notify.PlayerRoom(playerID)))
	return target, nil
}

// DeactivateCaptain clears the captain flag. The player stays on the roster.
func (s *RosterService) DeactivateCaptain(ctx context.Context, actor models.Actor, teamID, categoryEditionID, playerID int) (*models.TeamMembership, error) {
	var target *models.TeamMembership
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entries, err := s.memberships.LockByTeam(ctx, exec, teamID, categoryEditionID)
		if err != nil {
			return fmt.Errorf("lock roster: %w", err)
		}
		if !actor.IsAdmin() && !IsActiveCaptain(entries, actor, teamID, categoryEditionID) {
			return &RuleError{Kind: ErrUnauthorized, PlayerID: actor.ID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}

		target = findActiveEntry(entries, playerID)
		if target == nil || !target.Captain {
			return &RuleError{Kind: ErrNotFound, PlayerID: playerID, TeamID: teamID, CategoryEditionID: categoryEditionID}
		}
		if err := s.memberships.SetCaptain(ctx, exec, target.ID, false); err != nil {
			if errors.Is(err, repositories.ErrMembershipNotFound) {
				return &RuleError{Kind: ErrNotFound, PlayerID: playerID, TeamID: teamID, CategoryEditionID: categoryEditionID}
			}
			return fmt.Errorf("clear captain: %w", err)
		}
		target.Captain = false
		return nil
	})
	s.metrics.ObserveTransition("captain", "deactivate", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("captain deactivated",
		slog.Int("team_id", teamID),
		slog.Int("category_edition_id", categoryEditionID),
		slog.Int("player_id", playerID),
		slog.Int("actor_id", actor.ID))
	s.events.Publish(notify.NewEvent(notify.CaptainDeactivated, target, s.clock.Now(),
		notify.TeamRoom(teamID), notify.PlayerRoom(playerID)))
	return target, nil
}
