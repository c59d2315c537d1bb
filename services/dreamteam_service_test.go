package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
)

type stubArchiver struct {
	views []models.DreamTeamView
	err   error
}

func (a *stubArchiver) ArchiveDreamTeam(_ context.Context, view models.DreamTeamView) (string, error) {
	a.views = append(a.views, view)
	return "dreamteams/archived.json", a.err
}

func TestDreamTeam_AssignPublishRemove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 3, "1-2-3-1")
	require.NoError(t, err)

	n, err := f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 4, PlayerID: 7, TeamID: teamID, MatchID: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 4, PlayerID: 8, TeamID: teamID, MatchID: 50})
	require.ErrorIs(t, err, ErrSlotOccupied)
	var re *RuleError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 4, re.Slot)

	view, err := f.dream.Publish(ctx, dt.ID)
	require.NoError(t, err)
	assert.True(t, view.DreamTeam.Published)
	assert.Equal(t, 1, view.Occupancy)
	assert.Equal(t, []string{notify.DreamTeamPublished}, f.events.types())

	_, err = f.dream.Remove(ctx, dt.ID, 50, 7)
	assert.ErrorIs(t, err, ErrPublishedImmutable)
	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 5, PlayerID: 8, TeamID: teamID, MatchID: 50})
	assert.ErrorIs(t, err, ErrPublishedImmutable)
	_, err = f.dream.ChangeFormation(ctx, dt.ID, "1-3-3")
	assert.ErrorIs(t, err, ErrPublishedImmutable)
	_, err = f.dream.Publish(ctx, dt.ID)
	assert.ErrorIs(t, err, ErrPublishedImmutable)

	got, err := f.dream.Get(ctx, dt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Occupancy)
}

func TestDreamTeam_AssignValidatesSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 1, "1-3-3")
	require.NoError(t, err)

	for _, slot := range []int{0, 8, -1} {
		_, err := f.dream.Assign(ctx, dt.ID, AssignInput{Slot: slot, PlayerID: 7, TeamID: teamID, MatchID: 50})
		assert.ErrorIs(t, err, ErrInvalidSlotForFormation, "slot %d", slot)
	}

	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 1, PlayerID: 7, MatchID: 50})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestDreamTeam_PlayerOncePerMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 1, "1-2-2-2")
	require.NoError(t, err)

	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 1, PlayerID: 7, TeamID: teamID, MatchID: 50})
	require.NoError(t, err)

	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 2, PlayerID: 7, TeamID: teamID, MatchID: 50})
	assert.ErrorIs(t, err, ErrPlayerAlreadyPlaced)

	n, err := f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 2, PlayerID: 7, TeamID: teamID, MatchID: 51})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDreamTeam_Remove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 1, "1-2-4")
	require.NoError(t, err)
	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 1, PlayerID: 7, TeamID: teamID, MatchID: 50})
	require.NoError(t, err)
	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 2, PlayerID: 8, TeamID: teamID, MatchID: 50})
	require.NoError(t, err)

	n, err := f.dream.Remove(ctx, dt.ID, 50, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.dream.Remove(ctx, dt.ID, 50, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	// the freed slot can be reused
	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 1, PlayerID: 9, TeamID: teamID, MatchID: 50})
	assert.NoError(t, err)
}

func TestDreamTeam_CreateRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.dream.Create(ctx, ceID, 1, "4-4-2")
	assert.ErrorIs(t, err, ErrInvalidSlotForFormation)

	_, err = f.dream.Create(ctx, ceID, 0, "1-3-3")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.dream.Create(ctx, ceID, 1, " 1-3-3 ")
	require.NoError(t, err)
	_, err = f.dream.Create(ctx, ceID, 1, "1-4-2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDreamTeam_ChangeFormationKeepsSlots(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 2, "1-2-3-1")
	require.NoError(t, err)
	_, err = f.dream.Assign(ctx, dt.ID, AssignInput{Slot: 7, PlayerID: 7, TeamID: teamID, MatchID: 50})
	require.NoError(t, err)

	_, err = f.dream.ChangeFormation(ctx, dt.ID, "9-9")
	assert.ErrorIs(t, err, ErrInvalidSlotForFormation)

	updated, err := f.dream.ChangeFormation(ctx, dt.ID, "1-3-3")
	require.NoError(t, err)
	assert.Equal(t, "1-3-3", updated.Formation)

	view, err := f.dream.Get(ctx, dt.ID)
	require.NoError(t, err)
	require.Len(t, view.DreamTeam.Slots, 1)
	assert.Equal(t, 7, view.DreamTeam.Slots[0].SlotIndex)
	assert.Equal(t, "1-2-3-1", view.DreamTeam.Slots[0].Formation)
	assert.Equal(t, "1-3-3", view.Layout.Name)
}

func TestDreamTeam_PublishArchives(t *testing.T) {
	f := newFixture()
	archiver := &stubArchiver{err: errors.New("bucket unavailable")}
	f.dream.archiver = archiver
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 4, "1-4-2")
	require.NoError(t, err)

	view, err := f.dream.Publish(ctx, dt.ID)

	require.NoError(t, err, "archive failures do not undo the publication")
	require.Len(t, archiver.views, 1)
	assert.Equal(t, view.DreamTeam.ID, archiver.views[0].DreamTeam.ID)
	assert.True(t, f.store.dreamteams[dt.ID].Published)
}

func TestDreamTeam_SlotCodes(t *testing.T) {
	f := newFixture()

	codes, err := f.dream.SlotCodes("1-2-3-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ARQ"}, codes)

	codes, err = f.dream.SlotCodes("1-2-3-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEF", "LD", "LI"}, codes)

	codes, err = f.dream.SlotCodes("1-2-3-1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"MED", "VOL"}, codes)

	codes, err = f.dream.SlotCodes("1-2-3-1", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEL"}, codes)

	_, err = f.dream.SlotCodes("1-2-3-1", 8)
	assert.ErrorIs(t, err, ErrInvalidSlotForFormation)
}

func TestDreamTeam_SearchCandidatesFiltersByLine(t *testing.T) {
	f := newFixture()
	code := func(s string) *string { return &s }
	f.store.players = []models.Player{
		{ID: 1, FirstName: "Lucas", LastName: "Arce", PositionCode: code("ARQ")},
		{ID: 2, FirstName: "Luciano", LastName: "Paz", PositionCode: code("DEL")},
		{ID: 3, FirstName: "Lucio", LastName: "Mora", PositionCode: code("LD")},
		{ID: 4, FirstName: "Luca", LastName: "Gil"},
	}
	ctx := context.Background()
	dt, err := f.dream.Create(ctx, ceID, 1, "1-3-3")
	require.NoError(t, err)

	got, err := f.dream.SearchCandidates(ctx, dt.ID, 2, "luc", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)

	_, err = f.dream.SearchCandidates(ctx, dt.ID, 99, "luc", 0)
	assert.ErrorIs(t, err, ErrInvalidSlotForFormation)

	_, err = f.dream.SearchCandidates(ctx, 4242, 1, "luc", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
