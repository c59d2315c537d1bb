package services

import (
	"context"

	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
)

// TxRunner executes fn inside one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

// EventPublisher receives lifecycle events after a transition has committed.
type EventPublisher interface {
	Publish(ev notify.Event)
}

// LineupArchiver stores a snapshot of a published dream team.
type LineupArchiver interface {
	ArchiveDreamTeam(ctx context.Context, view models.DreamTeamView) (string, error)
}

type discardPublisher struct{}

func (discardPublisher) Publish(notify.Event) {}

func publisherOrDiscard(p EventPublisher) EventPublisher {
	if p == nil {
		return discardPublisher{}
	}
	return p
}

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}
