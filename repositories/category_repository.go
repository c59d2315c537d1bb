package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leaguehub/roster-service/models"
)

var ErrCategoryEditionNotFound = errors.New("category-edition not found")

type CategoryEditionRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.CategoryEdition, error)
}

type postgresCategoryEditionRepository struct {
	db *sql.DB
}

func NewPostgresCategoryEditionRepository(db *sql.DB) CategoryEditionRepository {
	return &postgresCategoryEditionRepository{db: db}
}

// GetByID takes a share lock so the open flag cannot flip while a caller's
// transaction relies on it.
func (r *postgresCategoryEditionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.CategoryEdition, error) {
	query := `SELECT id, edition_id, name, open FROM category_editions WHERE id = $1`
	if exec != nil {
		query += ` FOR SHARE`
	}

	var ce models.CategoryEdition
	err := executorOr(r.db, exec).QueryRowContext(ctx, query, id).Scan(&ce.ID, &ce.EditionID, &ce.Name, &ce.Open)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryEditionNotFound
		}
		return nil, fmt.Errorf("failed to load category-edition %d: %w", id, err)
	}
	return &ce, nil
}
