package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/leaguehub/roster-service/metrics"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
)

// AssignInput places one player in one slot.
type AssignInput struct {
	Slot         int     `json:"slot"`
	PlayerID     int     `json:"player_id"`
	TeamID       int     `json:"team_id"`
	MatchID      int     `json:"match_id"`
	PositionCode *string `json:"position_code,omitempty"`
}

// DreamTeamService assigns players to formation slots of a per-jornada
// dream team. Position codes only filter candidates; Assign does not check
// them.
type DreamTeamService struct {
	tx         TxRunner
	dreamteams repositories.DreamTeamRepository
	players    repositories.PlayerRepository
	formations models.FormationTable
	archiver   LineupArchiver
	events     EventPublisher
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewDreamTeamService(
	tx TxRunner,
	dreamteams repositories.DreamTeamRepository,
	players repositories.PlayerRepository,
	formations models.FormationTable,
	archiver LineupArchiver,
	events EventPublisher,
	m *metrics.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) *DreamTeamService {
	return &DreamTeamService{
		tx:         tx,
		dreamteams: dreamteams,
		players:    players,
		formations: formations,
		archiver:   archiver,
		events:     publisherOrDiscard(events),
		metrics:    m,
		clock:      clock,
		logger:     logger,
	}
}

func (s *DreamTeamService) Formations() models.FormationTable {
	return s.formations
}

func (s *DreamTeamService) formation(name string) (models.Formation, error) {
	f, ok := s.formations.Lookup(name)
	if !ok {
		return models.Formation{}, &RuleError{Kind: ErrInvalidSlotForFormation, Detail: fmt.Sprintf("unknown formation %q", name)}
	}
	return f, nil
}

// layoutOf resolves the stored formation of a dream team. Formations removed
// from the table after creation are still parsed so old lineups can be read.
func (s *DreamTeamService) layoutOf(dt *models.DreamTeam) (models.Formation, error) {
	if f, ok := s.formations.Lookup(dt.Formation); ok {
		return f, nil
	}
	f, err := models.ParseFormation(dt.Formation)
	if err != nil {
		return models.Formation{}, &RuleError{Kind: ErrInvalidSlotForFormation, DreamTeamID: dt.ID, Detail: err.Error()}
	}
	return f, nil
}

func dreamTeamNotFound(err error, id int) error {
	if errors.Is(err, repositories.ErrDreamTeamNotFound) {
		return &RuleError{Kind: ErrNotFound, DreamTeamID: id}
	}
	return err
}

// lockMutable loads the dream team for update and fails if it is published.
func (s *DreamTeamService) lockMutable(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.DreamTeam, error) {
	dt, err := s.dreamteams.GetByIDForUpdate(ctx, exec, id)
	if err != nil {
		return nil, dreamTeamNotFound(err, id)
	}
	if dt.Published {
		return nil, &RuleError{Kind: ErrPublishedImmutable, DreamTeamID: id}
	}
	return dt, nil
}

func (s *DreamTeamService) Create(ctx context.Context, categoryEditionID, jornada int, formationName string) (*models.DreamTeam, error) {
	if categoryEditionID <= 0 || jornada <= 0 {
		return nil, &RuleError{Kind: ErrValidationFailed, CategoryEditionID: categoryEditionID, Detail: "category-edition and jornada must be positive"}
	}
	f, err := s.formation(formationName)
	if err != nil {
		return nil, err
	}

	dt := &models.DreamTeam{
		CategoryEditionID: categoryEditionID,
		Jornada:           jornada,
		Formation:         f.Name,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.dreamteams.Create(ctx, nil, dt); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDreamTeamConflict):
			return nil, &RuleError{Kind: ErrConflict, CategoryEditionID: categoryEditionID, Detail: fmt.Sprintf("jornada %d", jornada)}
		case errors.Is(err, repositories.ErrCategoryEditionNotFound):
			return nil, &RuleError{Kind: ErrNotFound, CategoryEditionID: categoryEditionID}
		}
		return nil, err
	}
	s.logger.Info("dream team created", slog.Int("dreamteam_id", dt.ID), slog.Int("jornada", jornada), slog.String("formation", f.Name))
	return dt, nil
}

// Get returns the dream team with its slots, layout and occupancy.
func (s *DreamTeamService) Get(ctx context.Context, id int) (*models.DreamTeamView, error) {
	dt, err := s.dreamteams.GetByID(ctx, nil, id)
	if err != nil {
		return nil, dreamTeamNotFound(err, id)
	}
	return s.view(ctx, nil, dt)
}

func (s *DreamTeamService) view(ctx context.Context, exec repositories.SQLExecutor, dt *models.DreamTeam) (*models.DreamTeamView, error) {
	slots, err := s.dreamteams.ListSlots(ctx, exec, dt.ID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	layout, err := s.layoutOf(dt)
	if err != nil {
		return nil, err
	}
	dt.Slots = slots
	return &models.DreamTeamView{DreamTeam: dt, Layout: layout, Occupancy: len(slots)}, nil
}

// Assign puts a player in a slot and returns the new occupancy count.
func (s *DreamTeamService) Assign(ctx context.Context, dreamTeamID int, input AssignInput) (int, error) {
	if input.PlayerID <= 0 || input.MatchID <= 0 || input.TeamID <= 0 {
		return 0, &RuleError{Kind: ErrValidationFailed, DreamTeamID: dreamTeamID, Detail: "player, team and match are required"}
	}

	var occupancy int
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		dt, err := s.lockMutable(ctx, exec, dreamTeamID)
		if err != nil {
			return err
		}
		layout, err := s.layoutOf(dt)
		if err != nil {
			return err
		}
		if _, ok := layout.Slot(input.Slot); !ok {
			return &RuleError{Kind: ErrInvalidSlotForFormation, DreamTeamID: dreamTeamID, Slot: input.Slot, Detail: fmt.Sprintf("formation %s has %d slots", layout.Name, layout.SlotCount())}
		}

		slots, err := s.dreamteams.ListSlots(ctx, exec, dreamTeamID)
		if err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
		for _, existing := range slots {
			if existing.SlotIndex == input.Slot {
				return &RuleError{Kind: ErrSlotOccupied, DreamTeamID: dreamTeamID, Slot: input.Slot, PlayerID: existing.PlayerID}
			}
		}

		var code *string
		if input.PositionCode != nil {
			code = strPtr(strings.ToUpper(strings.TrimSpace(*input.PositionCode)))
		}
		assignment := &models.DreamTeamSlotAssignment{
			DreamTeamID:  dreamTeamID,
			MatchID:      input.MatchID,
			PlayerID:     input.PlayerID,
			TeamID:       input.TeamID,
			Formation:    dt.Formation,
			SlotIndex:    input.Slot,
			PositionCode: code,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.dreamteams.InsertSlot(ctx, exec, assignment); err != nil {
			switch {
			case errors.Is(err, repositories.ErrDreamTeamSlotConflict):
				return &RuleError{Kind: ErrSlotOccupied, DreamTeamID: dreamTeamID, Slot: input.Slot}
			case errors.Is(err, repositories.ErrDreamTeamPlayerConflict):
				return &RuleError{Kind: ErrPlayerAlreadyPlaced, DreamTeamID: dreamTeamID, PlayerID: input.PlayerID}
			}
			return err
		}
		occupancy = len(slots) + 1
		return nil
	})
	s.metrics.ObserveTransition("dreamteam", "assign", outcomeOf(err))
	if err != nil {
		return 0, err
	}

	s.logger.Info("dream team slot assigned",
		slog.Int("dreamteam_id", dreamTeamID),
		slog.Int("slot", input.Slot),
		slog.Int("player_id", input.PlayerID),
		slog.Int("match_id", input.MatchID))
	return occupancy, nil
}

// Remove deletes the assignment keyed by dream team, match and player.
func (s *DreamTeamService) Remove(ctx context.Context, dreamTeamID, matchID, playerID int) (int, error) {
	var occupancy int
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.lockMutable(ctx, exec, dreamTeamID); err != nil {
			return err
		}
		if err := s.dreamteams.DeleteSlot(ctx, exec, dreamTeamID, matchID, playerID); err != nil {
			if errors.Is(err, repositories.ErrDreamTeamSlotNotFound) {
				return &RuleError{Kind: ErrNotFound, DreamTeamID: dreamTeamID, PlayerID: playerID}
			}
			return err
		}
		n, err := s.dreamteams.CountSlots(ctx, exec, dreamTeamID)
		if err != nil {
			return err
		}
		occupancy = n
		return nil
	})
	s.metrics.ObserveTransition("dreamteam", "remove", outcomeOf(err))
	if err != nil {
		return 0, err
	}

	s.logger.Info("dream team slot removed",
		slog.Int("dreamteam_id", dreamTeamID),
		slog.Int("player_id", playerID),
		slog.Int("match_id", matchID))
	return occupancy, nil
}

// ChangeFormation replaces the formation of an unpublished dream team.
// Existing assignments keep their slot index and are not remapped.
func (s *DreamTeamService) ChangeFormation(ctx context.Context, dreamTeamID int, formationName string) (*models.DreamTeam, error) {
	f, err := s.formation(formationName)
	if err != nil {
		var re *RuleError
		if errors.As(err, &re) {
			re.DreamTeamID = dreamTeamID
		}
		return nil, err
	}

	var (
		dt        *models.DreamTeam
		stranded  int
		occupancy int
	)
	err = s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		if dt, err = s.lockMutable(ctx, exec, dreamTeamID); err != nil {
			return err
		}
		slots, err := s.dreamteams.ListSlots(ctx, exec, dreamTeamID)
		if err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
		for _, sl := range slots {
			if sl.SlotIndex > f.SlotCount() {
				stranded++
			}
		}
		occupancy = len(slots)

		if err := s.dreamteams.UpdateFormation(ctx, exec, dreamTeamID, f.Name); err != nil {
			return dreamTeamNotFound(err, dreamTeamID)
		}
		dt.Formation = f.Name
		return nil
	})
	s.metrics.ObserveTransition("dreamteam", "change_formation", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.Int("dreamteam_id", dreamTeamID),
		slog.String("formation", f.Name),
		slog.Int("occupancy", occupancy),
	}
	if occupancy > 0 {
		// TODO: decide with the league whether occupied slots should be remapped when the formation changes.
		s.logger.Warn("formation changed with occupied slots; assignments were not remapped", append(attrs, slog.Int("out_of_range", stranded))...)
	} else {
		s.logger.Info("formation changed", attrs...)
	}
	return dt, nil
}

// Publish freezes the dream team. The snapshot is archived after commit when
// an archiver is configured; archive failures are logged only.
func (s *DreamTeamService) Publish(ctx context.Context, dreamTeamID int) (*models.DreamTeamView, error) {
	var view *models.DreamTeamView
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		dt, err := s.lockMutable(ctx, exec, dreamTeamID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.dreamteams.MarkPublished(ctx, exec, dreamTeamID, now); err != nil {
			if errors.Is(err, repositories.ErrDreamTeamNotFound) {
				return &RuleError{Kind: ErrPublishedImmutable, DreamTeamID: dreamTeamID}
			}
			return err
		}
		dt.Published = true
		dt.PublishedAt = &now

		view, err = s.view(ctx, exec, dt)
		return err
	})
	s.metrics.ObserveTransition("dreamteam", "publish", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("dream team published", slog.Int("dreamteam_id", dreamTeamID), slog.Int("occupancy", view.Occupancy))
	if s.archiver != nil {
		if loc, err := s.archiver.ArchiveDreamTeam(ctx, *view); err != nil {
			s.logger.Error("failed to archive dream team", slog.Int("dreamteam_id", dreamTeamID), slog.Any("error", err))
		} else {
			s.logger.Info("dream team archived", slog.Int("dreamteam_id", dreamTeamID), slog.String("location", loc))
		}
	}
	s.events.Publish(notify.NewEvent(notify.DreamTeamPublished, view, s.clock.Now(), notify.AdminRoom))
	return view, nil
}

// SlotCodes returns the position codes a slot accepts in a formation.
func (s *DreamTeamService) SlotCodes(formationName string, slot int) ([]string, error) {
	f, err := s.formation(formationName)
	if err != nil {
		return nil, err
	}
	fs, ok := f.Slot(slot)
	if !ok {
		return nil, &RuleError{Kind: ErrInvalidSlotForFormation, Slot: slot}
	}
	return fs.Codes, nil
}

// SearchCandidates lists players whose position code suits the slot.
func (s *DreamTeamService) SearchCandidates(ctx context.Context, dreamTeamID, slot int, query string, limit int) ([]models.Player, error) {
	dt, err := s.dreamteams.GetByID(ctx, nil, dreamTeamID)
	if err != nil {
		return nil, dreamTeamNotFound(err, dreamTeamID)
	}
	layout, err := s.layoutOf(dt)
	if err != nil {
		return nil, err
	}
	fs, ok := layout.Slot(slot)
	if !ok {
		return nil, &RuleError{Kind: ErrInvalidSlotForFormation, DreamTeamID: dreamTeamID, Slot: slot}
	}
	return s.players.Search(ctx, query, fs.Codes, clampLimit(limit))
}
