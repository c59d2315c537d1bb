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
	ErrDreamTeamNotFound       = errors.New("dream team not found")
	ErrDreamTeamConflict       = errors.New("dream team already exists for this jornada")
	ErrDreamTeamSlotConflict   = errors.New("dream team slot is already occupied")
	ErrDreamTeamPlayerConflict = errors.New("player is already placed for this match")
	ErrDreamTeamSlotNotFound   = errors.New("dream team slot assignment not found")
)

type DreamTeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, dt *models.DreamTeam) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.DreamTeam, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.DreamTeam, error)
	UpdateFormation(ctx context.Context, exec SQLExecutor, id int, formation string) error
	MarkPublished(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	ListSlots(ctx context.Context, exec SQLExecutor, dreamTeamID int) ([]models.DreamTeamSlotAssignment, error)
	CountSlots(ctx context.Context, exec SQLExecutor, dreamTeamID int) (int, error)
	InsertSlot(ctx context.Context, exec SQLExecutor, slot *models.DreamTeamSlotAssignment) error
	DeleteSlot(ctx context.Context, exec SQLExecutor, dreamTeamID, matchID, playerID int) error
}

type postgresDreamTeamRepository struct {
	db *sql.DB
}

func NewPostgresDreamTeamRepository(db *sql.DB) DreamTeamRepository {
	return &postgresDreamTeamRepository{db: db}
}

func (r *postgresDreamTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	return executorOr(r.db, exec)
}

func (r *postgresDreamTeamRepository) Create(ctx context.Context, exec SQLExecutor, dt *models.DreamTeam) error {
	query := `
		INSERT INTO dreamteams (category_edition_id, jornada, formation, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, dt.CategoryEditionID, dt.Jornada, dt.Formation, dt.CreatedAt).Scan(&dt.ID)
	if err != nil {
		if c, ok := pgConstraintError(err, pqUniqueViolation); ok && c == "dreamteams_ce_jornada_key" {
			return ErrDreamTeamConflict
		}
		if _, ok := pgConstraintError(err, pqForeignKeyViolation); ok {
			return ErrCategoryEditionNotFound
		}
		return fmt.Errorf("failed to create dream team: %w", err)
	}
	return nil
}

func (r *postgresDreamTeamRepository) get(ctx context.Context, exec SQLExecutor, id int, lock bool) (*models.DreamTeam, error) {
	query := `
		SELECT id, category_edition_id, jornada, formation, published, published_at, created_at
		FROM dreamteams
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var dt models.DreamTeam
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&dt.ID,
		&dt.CategoryEditionID,
		&dt.Jornada,
		&dt.Formation,
		&dt.Published,
		&dt.PublishedAt,
		&dt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDreamTeamNotFound
		}
		return nil, err
	}
	return &dt, nil
}

func (r *postgresDreamTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.DreamTeam, error) {
	return r.get(ctx, exec, id, false)
}

func (r *postgresDreamTeamRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.DreamTeam, error) {
	return r.get(ctx, exec, id, true)
}

func (r *postgresDreamTeamRepository) UpdateFormation(ctx context.Context, exec SQLExecutor, id int, formation string) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE dreamteams SET formation = $1 WHERE id = $2 AND published = FALSE`, formation, id)
	if err != nil {
		return fmt.Errorf("failed to update formation of dream team %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDreamTeamNotFound)
}

func (r *postgresDreamTeamRepository) MarkPublished(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE dreamteams SET published = TRUE, published_at = $1 WHERE id = $2 AND published = FALSE`, at, id)
	if err != nil {
		return fmt.Errorf("failed to publish dream team %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDreamTeamNotFound)
}

func (r *postgresDreamTeamRepository) ListSlots(ctx context.Context, exec SQLExecutor, dreamTeamID int) ([]models.DreamTeamSlotAssignment, error) {
	query := `
		SELECT id, dreamteam_id, match_id, player_id, team_id, formation, slot_index, position_code, created_at
		FROM dreamteam_slots
		WHERE dreamteam_id = $1
		ORDER BY slot_index`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, dreamTeamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.DreamTeamSlotAssignment, 0)
	for rows.Next() {
		var s models.DreamTeamSlotAssignment
		if scanErr := rows.Scan(
			&s.ID,
			&s.DreamTeamID,
			&s.MatchID,
			&s.PlayerID,
			&s.TeamID,
			&s.Formation,
			&s.SlotIndex,
			&s.PositionCode,
			&s.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		slots = append(slots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *postgresDreamTeamRepository) CountSlots(ctx context.Context, exec SQLExecutor, dreamTeamID int) (int, error) {
	var n int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dreamteam_slots WHERE dreamteam_id = $1`, dreamTeamID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count slots of dream team %d: %w", dreamTeamID, err)
	}
	return n, nil
}

func (r *postgresDreamTeamRepository) InsertSlot(ctx context.Context, exec SQLExecutor, slot *models.DreamTeamSlotAssignment) error {
	query := `
		INSERT INTO dreamteam_slots (dreamteam_id, match_id, player_id, team_id, formation, slot_index, position_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		slot.DreamTeamID,
		slot.MatchID,
		slot.PlayerID,
		slot.TeamID,
		slot.Formation,
		slot.SlotIndex,
		slot.PositionCode,
		slot.CreatedAt,
	).Scan(&slot.ID)
	if err != nil {
		if c, ok := pgConstraintError(err, pqUniqueViolation); ok {
			switch c {
			case "dreamteam_slots_slot_key":
				return ErrDreamTeamSlotConflict
			case "dreamteam_slots_player_key":
				return ErrDreamTeamPlayerConflict
			}
		}
		return fmt.Errorf("failed to insert dream team slot: %w", err)
	}
	return nil
}

func (r *postgresDreamTeamRepository) DeleteSlot(ctx context.Context, exec SQLExecutor, dreamTeamID, matchID, playerID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM dreamteam_slots WHERE dreamteam_id = $1 AND match_id = $2 AND player_id = $3`,
		dreamTeamID, matchID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete dream team slot: %w", err)
	}
	return checkAffectedRows(result, ErrDreamTeamSlotNotFound)
}
