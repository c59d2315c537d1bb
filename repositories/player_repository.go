package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/leaguehub/roster-service/models"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerRepository interface {
	GetByID(ctx context.Context, id int) (*models.Player, error)
	// Search matches query against first name, last name and nickname. When
	// positionCodes is non-empty only players with one of those codes match.
	Search(ctx context.Context, query string, positionCodes []string, limit int) ([]models.Player, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `SELECT id, first_name, last_name, nickname, position_code, photo_key FROM players WHERE id = $1`

	var p models.Player
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Nickname, &p.PositionCode, &p.PhotoKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresPlayerRepository) Search(ctx context.Context, query string, positionCodes []string, limit int) ([]models.Player, error) {
	if positionCodes == nil {
		positionCodes = []string{}
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	sqlQuery := `
		SELECT id, first_name, last_name, nickname, position_code, photo_key
		FROM players
		WHERE (lower(first_name) LIKE $1 OR lower(last_name) LIKE $1 OR lower(coalesce(nickname, '')) LIKE $1)
		  AND (cardinality($2::text[]) = 0 OR position_code = ANY($2))
		ORDER BY last_name, first_name, id
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, sqlQuery, pattern, pq.Array(positionCodes), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		var p models.Player
		if scanErr := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Nickname, &p.PositionCode, &p.PhotoKey); scanErr != nil {
			return nil, scanErr
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
