package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/leaguehub/roster-service/cache"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/repositories"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultSearchLimit
	case limit > maxSearchLimit:
		return maxSearchLimit
	}
	return limit
}

// PlayerSearchService serves the player search box. Results may be stale up
// to the cache TTL; nothing in the roster rules reads from it.
type PlayerSearchService struct {
	players repositories.PlayerRepository
	cache   *cache.ReadThrough[[]models.Player]
}

func NewPlayerSearchService(players repositories.PlayerRepository, c *cache.ReadThrough[[]models.Player]) *PlayerSearchService {
	return &PlayerSearchService{players: players, cache: c}
}

func searchKey(query string, limit int) string {
	return fmt.Sprintf("players:%s|%d", strings.ToLower(strings.Join(strings.Fields(query), " ")), limit)
}

func (s *PlayerSearchService) Search(ctx context.Context, query string, limit int) ([]models.Player, error) {
	query = strings.TrimSpace(query)
	limit = clampLimit(limit)
	if len([]rune(query)) < 2 {
		return nil, &RuleError{Kind: ErrValidationFailed, Detail: "query must have at least 2 characters"}
	}

	return s.cache.Get(ctx, searchKey(query, limit), func(ctx context.Context) ([]models.Player, error) {
		return s.players.Search(ctx, query, nil, limit)
	})
}
