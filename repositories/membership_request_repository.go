package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leaguehub/roster-service/models"
)

var (
	ErrMembershipRequestNotFound         = errors.New("membership request not found")
	ErrMembershipRequestPendingConflict  = errors.New("a pending membership request already exists")
	ErrMembershipRequestNotPending       = errors.New("membership request is no longer pending")
	ErrMembershipRequestReferenceInvalid = errors.New("membership request references an unknown player, team or category-edition")
)

// MembershipRequestRepository хранит заявки игроков и приглашения капитанов.
type MembershipRequestRepository interface {
	// Create inserts a pending request and fills ID and CreatedAt.
	Create(ctx context.Context, exec SQLExecutor, req *models.MembershipRequest) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MembershipRequest, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.MembershipRequest, error)
	FindPending(ctx context.Context, exec SQLExecutor, playerID, teamID, categoryEditionID int, direction models.RequestDirection) (*models.MembershipRequest, error)
	// Resolve writes the terminal state of req only if the stored row is still
	// pending. Otherwise it returns ErrMembershipRequestNotPending.
	Resolve(ctx context.Context, exec SQLExecutor, req *models.MembershipRequest) error
	ListByPlayer(ctx context.Context, exec SQLExecutor, playerID int, state *models.RequestState) ([]*models.MembershipRequest, error)
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int, state *models.RequestState) ([]*models.MembershipRequest, error)
}

type postgresMembershipRequestRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRequestRepository(db *sql.DB) MembershipRequestRepository {
	return &postgresMembershipRequestRepository{db: db}
}

func (r *postgresMembershipRequestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	return executorOr(r.db, exec)
}

const membershipRequestColumns = `id, player_id, team_id, category_edition_id, edition_id, direction, state,
	initiator_id, message, response_note, added_by, created_at, resolved_at, resolved_by`

func scanMembershipRequest(s rowScanner) (*models.MembershipRequest, error) {
	var (
		req        models.MembershipRequest
		stateCode  string
		resolvedBy sql.NullInt64
		resolvedAt sql.NullTime
	)
	err := s.Scan(
		&req.ID,
		&req.PlayerID,
		&req.TeamID,
		&req.CategoryEditionID,
		&req.EditionID,
		&req.Direction,
		&stateCode,
		&req.InitiatorID,
		&req.Message,
		&req.ResponseNote,
		&req.AddedBy,
		&req.CreatedAt,
		&resolvedAt,
		&resolvedBy,
	)
	if err != nil {
		return nil, err
	}

	state, err := models.ParseRequestStateCode(stateCode)
	if err != nil {
		return nil, err
	}
	req.State = state
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	if resolvedBy.Valid {
		id := int(resolvedBy.Int64)
		req.ResolvedBy = &id
	}
	return &req, nil
}

func (r *postgresMembershipRequestRepository) Create(ctx context.Context, exec SQLExecutor, req *models.MembershipRequest) error {
	query := `
		INSERT INTO membership_requests
			(player_id, team_id, category_edition_id, edition_id, direction, state, initiator_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		req.PlayerID,
		req.TeamID,
		req.CategoryEditionID,
		req.EditionID,
		req.Direction,
		models.RequestPending.Code(),
		req.InitiatorID,
		req.Message,
		req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		if c, ok := pgConstraintError(err, pqUniqueViolation); ok && c == "membership_requests_pending_key" {
			return ErrMembershipRequestPendingConflict
		}
		if _, ok := pgConstraintError(err, pqForeignKeyViolation); ok {
			return ErrMembershipRequestReferenceInvalid
		}
		return fmt.Errorf("failed to create membership request: %w", err)
	}
	req.State = models.RequestPending
	return nil
}

func (r *postgresMembershipRequestRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.MembershipRequest, error) {
	req, err := scanMembershipRequest(r.getExecutor(exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *postgresMembershipRequestRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MembershipRequest, error) {
	query := `SELECT ` + membershipRequestColumns + ` FROM membership_requests WHERE id = $1`
	return r.getOne(ctx, exec, query, id)
}

func (r *postgresMembershipRequestRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.MembershipRequest, error) {
	query := `SELECT ` + membershipRequestColumns + ` FROM membership_requests WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, exec, query, id)
}

func (r *postgresMembershipRequestRepository) FindPending(ctx context.Context, exec SQLExecutor, playerID, teamID, categoryEditionID int, direction models.RequestDirection) (*models.MembershipRequest, error) {
	query := `
		SELECT ` + membershipRequestColumns + `
		FROM membership_requests
		WHERE player_id = $1 AND team_id = $2 AND category_edition_id = $3 AND direction = $4 AND state = $5`
	return r.getOne(ctx, exec, query, playerID, teamID, categoryEditionID, direction, models.RequestPending.Code())
}

func (r *postgresMembershipRequestRepository) Resolve(ctx context.Context, exec SQLExecutor, req *models.MembershipRequest) error {
	query := `
		UPDATE membership_requests
		SET state = $1, response_note = $2, added_by = $3, resolved_at = $4, resolved_by = $5
		WHERE id = $6 AND state = $7`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		req.State.Code(),
		req.ResponseNote,
		req.AddedBy,
		req.ResolvedAt,
		req.ResolvedBy,
		req.ID,
		models.RequestPending.Code(),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve membership request %d: %w", req.ID, err)
	}
	return checkAffectedRows(result, ErrMembershipRequestNotPending)
}

func (r *postgresMembershipRequestRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.MembershipRequest, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*models.MembershipRequest, 0)
	for rows.Next() {
		req, scanErr := scanMembershipRequest(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		requests = append(requests, req)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *postgresMembershipRequestRepository) ListByPlayer(ctx context.Context, exec SQLExecutor, playerID int, state *models.RequestState) ([]*models.MembershipRequest, error) {
	query := `
		SELECT ` + membershipRequestColumns + `
		FROM membership_requests
		WHERE player_id = $1 AND ($2::text IS NULL OR state = $2)
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, exec, query, playerID, stateCodeArg(state))
}

func (r *postgresMembershipRequestRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int, state *models.RequestState) ([]*models.MembershipRequest, error) {
	query := `
		SELECT ` + membershipRequestColumns + `
		FROM membership_requests
		WHERE team_id = $1 AND category_edition_id = $2 AND ($3::text IS NULL OR state = $3)
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, exec, query, teamID, categoryEditionID, stateCodeArg(state))
}

func stateCodeArg(state *models.RequestState) sql.NullString {
	if state == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: state.Code(), Valid: true}
}
