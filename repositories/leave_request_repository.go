package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leaguehub/roster-service/models"
)

var (
	ErrLeaveRequestNotFound        = errors.New("leave request not found")
	ErrLeaveRequestPendingConflict = errors.New("a pending leave request already exists")
	ErrLeaveRequestNotPending      = errors.New("leave request is no longer pending")
)

type LeaveRequestRepository interface {
	Create(ctx context.Context, exec SQLExecutor, req *models.LeaveRequest) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.LeaveRequest, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.LeaveRequest, error)
	FindPending(ctx context.Context, exec SQLExecutor, playerID, teamID, categoryEditionID int) (*models.LeaveRequest, error)
	Resolve(ctx context.Context, exec SQLExecutor, req *models.LeaveRequest) error
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int, state *models.LeaveState) ([]*models.LeaveRequest, error)
}

type postgresLeaveRequestRepository struct {
	db *sql.DB
}

func NewPostgresLeaveRequestRepository(db *sql.DB) LeaveRequestRepository {
	return &postgresLeaveRequestRepository{db: db}
}

func (r *postgresLeaveRequestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	return executorOr(r.db, exec)
}

const leaveRequestColumns = `id, player_id, team_id, category_edition_id, initiator, requested_by, reason, observations,
	state, rejection_reason, created_at, resolved_at, resolved_by`

func scanLeaveRequest(s rowScanner) (*models.LeaveRequest, error) {
	var (
		req        models.LeaveRequest
		stateCode  string
		resolvedBy sql.NullInt64
	)
	err := s.Scan(
		&req.ID,
		&req.PlayerID,
		&req.TeamID,
		&req.CategoryEditionID,
		&req.Initiator,
		&req.RequestedBy,
		&req.Reason,
		&req.Observations,
		&stateCode,
		&req.RejectionReason,
		&req.CreatedAt,
		&req.ResolvedAt,
		&resolvedBy,
	)
	if err != nil {
		return nil, err
	}
	if req.State, err = models.ParseLeaveStateCode(stateCode); err != nil {
		return nil, err
	}
	if resolvedBy.Valid {
		id := int(resolvedBy.Int64)
		req.ResolvedBy = &id
	}
	return &req, nil
}

func (r *postgresLeaveRequestRepository) Create(ctx context.Context, exec SQLExecutor, req *models.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
			(player_id, team_id, category_edition_id, initiator, requested_by, reason, observations, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		req.PlayerID,
		req.TeamID,
		req.CategoryEditionID,
		req.Initiator,
		req.RequestedBy,
		req.Reason,
		req.Observations,
		models.LeavePending.Code(),
		req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		if c, ok := pgConstraintError(err, pqUniqueViolation); ok && c == "leave_requests_pending_key" {
			return ErrLeaveRequestPendingConflict
		}
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	req.State = models.LeavePending
	return nil
}

func (r *postgresLeaveRequestRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.LeaveRequest, error) {
	req, err := scanLeaveRequest(r.getExecutor(exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeaveRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *postgresLeaveRequestRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.LeaveRequest, error) {
	return r.getOne(ctx, exec, `SELECT `+leaveRequestColumns+` FROM leave_requests WHERE id = $1`, id)
}

func (r *postgresLeaveRequestRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.LeaveRequest, error) {
	return r.getOne(ctx, exec, `SELECT `+leaveRequestColumns+` FROM leave_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresLeaveRequestRepository) FindPending(ctx context.Context, exec SQLExecutor, playerID, teamID, categoryEditionID int) (*models.LeaveRequest, error) {
	query := `
		SELECT ` + leaveRequestColumns + `
		FROM leave_requests
		WHERE player_id = $1 AND team_id = $2 AND category_edition_id = $3 AND state = $4`
	return r.getOne(ctx, exec, query, playerID, teamID, categoryEditionID, models.LeavePending.Code())
}

func (r *postgresLeaveRequestRepository) Resolve(ctx context.Context, exec SQLExecutor, req *models.LeaveRequest) error {
	query := `
		UPDATE leave_requests
		SET state = $1, rejection_reason = $2, resolved_at = $3, resolved_by = $4
		WHERE id = $5 AND state = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		req.State.Code(),
		req.RejectionReason,
		req.ResolvedAt,
		req.ResolvedBy,
		req.ID,
		models.LeavePending.Code(),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve leave request %d: %w", req.ID, err)
	}
	return checkAffectedRows(result, ErrLeaveRequestNotPending)
}

func (r *postgresLeaveRequestRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID, categoryEditionID int, state *models.LeaveState) ([]*models.LeaveRequest, error) {
	var code sql.NullString
	if state != nil {
		code = sql.NullString{String: state.Code(), Valid: true}
	}
	query := `
		SELECT ` + leaveRequestColumns + `
		FROM leave_requests
		WHERE team_id = $1 AND category_edition_id = $2 AND ($3::text IS NULL OR state = $3)
		ORDER BY created_at DESC, id DESC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, teamID, categoryEditionID, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*models.LeaveRequest, 0)
	for rows.Next() {
		req, scanErr := scanLeaveRequest(rows)
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
