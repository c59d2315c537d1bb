package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leaguehub/roster-service/models"
)

var (
	ErrMembershipNotFound         = errors.New("team membership not found")
	ErrMembershipReferenceInvalid = errors.New("team membership references an unknown player, team or category-edition")
)

// MembershipRepository manages roster entries.
type MembershipRepository interface {
	// ListByTeam returns the roster snapshot of a team, active and inactive.
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int) ([]*models.TeamMembership, error)
	// LockByTeam is ListByTeam with the rows locked for the transaction.
	LockByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int) ([]*models.TeamMembership, error)
	Get(ctx context.Context, exec SQLExecutor, playerID, teamID, categoryEditionID int) (*models.TeamMembership, error)
	// Activate inserts the entry or re-activates an existing one for the same
	// player, team and category-edition. Captain is reset on re-activation.
	Activate(ctx context.Context, exec SQLExecutor, m *models.TeamMembership) error
	SetCaptain(ctx context.Context, exec SQLExecutor, id int, captain bool) error
	// Deactivate marks the entry inactive and clears the captain flag.
	Deactivate(ctx context.Context, exec SQLExecutor, id int, leftAt time.Time) error
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	return executorOr(r.db, exec)
}

const membershipColumns = `id, player_id, team_id, category_edition_id, eventual, sanctioned, captain, active, joined_at, left_at`

func scanMembership(s rowScanner) (*models.TeamMembership, error) {
	var m models.TeamMembership
	err := s.Scan(
		&m.ID,
		&m.PlayerID,
		&m.TeamID,
		&m.CategoryEditionID,
		&m.Eventual,
		&m.Sanctioned,
		&m.Captain,
		&m.Active,
		&m.JoinedAt,
		&m.LeftAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMembershipRepository) listByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int, lock bool) ([]*models.TeamMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM team_memberships
		WHERE team_id = $1 AND category_edition_id = $2
		ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, teamID, categoryEditionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.TeamMembership, 0)
	for rows.Next() {
		m, scanErr := scanMembership(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *postgresMembershipRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int) ([]*models.TeamMembership, error) {
	return r.listByTeam(ctx, exec, teamID, categoryEditionID, false)
}

func (r *postgresMembershipRepository) LockByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int) ([]*models.TeamMembership, error) {
	return r.listByTeam(ctx, exec, teamID, categoryEditionID, true)
}

func (r *postgresMembershipRepository) Get(ctx context.Context, exec SQLExecutor, playerID, teamID, categoryEditionID int) (*models.TeamMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM team_memberships
		WHERE player_id = $1 AND team_id = $2 AND category_edition_id = $3`

	m, err := scanMembership(r.getExecutor(exec).QueryRowContext(ctx, query, playerID, teamID, categoryEditionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMembershipRepository) Activate(ctx context.Context, exec SQLExecutor, m *models.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (player_id, team_id, category_edition_id, eventual, active, joined_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT ON CONSTRAINT team_memberships_player_team_ce_key DO UPDATE
		SET active = TRUE, captain = FALSE, eventual = EXCLUDED.eventual, joined_at = EXCLUDED.joined_at, left_at = NULL
		RETURNING id, sanctioned, captain`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		m.PlayerID,
		m.TeamID,
		m.CategoryEditionID,
		m.Eventual,
		m.JoinedAt,
	).Scan(&m.ID, &m.Sanctioned, &m.Captain)
	if err != nil {
		if _, ok := pgConstraintError(err, pqForeignKeyViolation); ok {
			return ErrMembershipReferenceInvalid
		}
		return fmt.Errorf("failed to activate membership: %w", err)
	}
	m.Active = true
	m.LeftAt = nil
	return nil
}

func (r *postgresMembershipRepository) SetCaptain(ctx context.Context, exec SQLExecutor, id int, captain bool) error {
	query := `UPDATE team_memberships SET captain = $1 WHERE id = $2 AND active = TRUE`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, captain, id)
	if err != nil {
		return fmt.Errorf("failed to update captain flag for membership %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) Deactivate(ctx context.Context, exec SQLExecutor, id int, leftAt time.Time) error {
	query := `UPDATE team_memberships SET active = FALSE, captain = FALSE, left_at = $1 WHERE id = $2 AND active = TRUE`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, leftAt, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}
