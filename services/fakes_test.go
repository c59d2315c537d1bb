package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
)

// fakeTx marks calls made inside fakeStore.RunInTx. It is never used for SQL.
type fakeTx struct{}

func (fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	panic("fakeTx does not run SQL")
}

func (fakeTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	panic("fakeTx does not run SQL")
}

func (fakeTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	panic("fakeTx does not run SQL")
}

// fakeStore is an in-memory database. RunInTx holds the store mutex for the
// whole unit of work and restores a snapshot when fn fails, so transactions
// are serialized and atomic like row-locked postgres transactions.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int
	requests    map[int]models.MembershipRequest
	memberships map[int]models.TeamMembership
	leaves      map[int]models.LeaveRequest
	categories  map[int]models.CategoryEdition
	teams       map[int]models.Team
	dreamteams  map[int]models.DreamTeam
	slots       map[int]models.DreamTeamSlotAssignment
	players     []models.Player
	searches    int
	commits     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:      100,
		requests:    map[int]models.MembershipRequest{},
		memberships: map[int]models.TeamMembership{},
		leaves:      map[int]models.LeaveRequest{},
		categories:  map[int]models.CategoryEdition{},
		teams:       map[int]models.Team{},
		dreamteams:  map[int]models.DreamTeam{},
		slots:       map[int]models.DreamTeamSlotAssignment{},
	}
}

func (s *fakeStore) RunInTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := struct {
		nextID      int
		requests    map[int]models.MembershipRequest
		memberships map[int]models.TeamMembership
		leaves      map[int]models.LeaveRequest
		dreamteams  map[int]models.DreamTeam
		slots       map[int]models.DreamTeamSlotAssignment
	}{s.nextID, maps.Clone(s.requests), maps.Clone(s.memberships), maps.Clone(s.leaves), maps.Clone(s.dreamteams), maps.Clone(s.slots)}

	if err := fn(fakeTx{}); err != nil {
		s.nextID = snapshot.nextID
		s.requests = snapshot.requests
		s.memberships = snapshot.memberships
		s.leaves = snapshot.leaves
		s.dreamteams = snapshot.dreamteams
		s.slots = snapshot.slots
		return err
	}
	s.commits++
	return nil
}

// with locks the store unless the call runs inside RunInTx.
func (s *fakeStore) with(exec repositories.SQLExecutor, fn func()) {
	if exec == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

// seeding helpers, called outside transactions

func (s *fakeStore) addCategory(id, editionID int, open bool) {
	s.categories[id] = models.CategoryEdition{ID: id, EditionID: editionID, Name: "Libre", Open: open}
}

func (s *fakeStore) addMember(playerID, teamID, ceID int, captain bool) models.TeamMembership {
	m := models.TeamMembership{
		ID: s.id(), PlayerID: playerID, TeamID: teamID, CategoryEditionID: ceID,
		Captain: captain, Active: true, JoinedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.memberships[m.ID] = m
	if _, ok := s.teams[teamID]; !ok {
		s.teams[teamID] = models.Team{ID: teamID, Name: fmt.Sprintf("Equipo %d", teamID)}
	}
	return m
}

func (s *fakeStore) activeMemberships(playerID, teamID, ceID int) []models.TeamMembership {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TeamMembership
	for _, m := range s.memberships {
		if m.PlayerID == playerID && m.TeamID == teamID && m.CategoryEditionID == ceID && m.Active {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeStore) request(id int) models.MembershipRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

// teams

type fakeTeams struct{ *fakeStore }

func (f fakeTeams) GetByID(_ context.Context, exec repositories.SQLExecutor, id int) (*models.Team, error) {
	var (
		t  models.Team
		ok bool
	)
	f.with(exec, func() { t, ok = f.teams[id] })
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return &t, nil
}

// membership requests

type fakeRequests struct{ *fakeStore }

func (r fakeRequests) Create(_ context.Context, exec repositories.SQLExecutor, req *models.MembershipRequest) (err error) {
	r.with(exec, func() {
		for _, e := range r.requests {
			if e.State == models.RequestPending && e.PlayerID == req.PlayerID && e.TeamID == req.TeamID &&
				e.CategoryEditionID == req.CategoryEditionID && e.Direction == req.Direction {
				err = repositories.ErrMembershipRequestPendingConflict
				return
			}
		}
		req.ID = r.id()
		req.State = models.RequestPending
		r.requests[req.ID] = *req
	})
	return err
}

func (r fakeRequests) get(exec repositories.SQLExecutor, id int) (req *models.MembershipRequest, err error) {
	r.with(exec, func() {
		e, ok := r.requests[id]
		if !ok {
			err = repositories.ErrMembershipRequestNotFound
			return
		}
		req = &e
	})
	return req, err
}

func (r fakeRequests) GetByID(_ context.Context, exec repositories.SQLExecutor, id int) (*models.MembershipRequest, error) {
	return r.get(exec, id)
}

func (r fakeRequests) GetByIDForUpdate(_ context.Context, exec repositories.SQLExecutor, id int) (*models.MembershipRequest, error) {
	return r.get(exec, id)
}

func (r fakeRequests) FindPending(_ context.Context, exec repositories.SQLExecutor, playerID, teamID, ceID int, direction models.RequestDirection) (req *models.MembershipRequest, err error) {
	err = repositories.ErrMembershipRequestNotFound
	r.with(exec, func() {
		for _, e := range r.requests {
			if e.State == models.RequestPending && e.PlayerID == playerID && e.TeamID == teamID &&
				e.CategoryEditionID == ceID && e.Direction == direction {
				req, err = &e, nil
				return
			}
		}
	})
	return req, err
}

func (r fakeRequests) Resolve(_ context.Context, exec repositories.SQLExecutor, req *models.MembershipRequest) (err error) {
	r.with(exec, func() {
		stored, ok := r.requests[req.ID]
		if !ok || stored.State != models.RequestPending {
			err = repositories.ErrMembershipRequestNotPending
			return
		}
		r.requests[req.ID] = *req
	})
	return err
}

func (r fakeRequests) list(exec repositories.SQLExecutor, keep func(models.MembershipRequest) bool) []*models.MembershipRequest {
	out := make([]*models.MembershipRequest, 0)
	r.with(exec, func() {
		for _, e := range r.requests {
			if keep(e) {
				e := e
				out = append(out, &e)
			}
		}
	})
	slices.SortFunc(out, func(a, b *models.MembershipRequest) int { return a.ID - b.ID })
	return out
}

func (r fakeRequests) ListByPlayer(_ context.Context, exec repositories.SQLExecutor, playerID int, state *models.RequestState) ([]*models.MembershipRequest, error) {
	return r.list(exec, func(e models.MembershipRequest) bool {
		return e.PlayerID == playerID && (state == nil || e.State == *state)
	}), nil
}

func (r fakeRequests) ListByTeam(_ context.Context, exec repositories.SQLExecutor, teamID, ceID int, state *models.RequestState) ([]*models.MembershipRequest, error) {
	return r.list(exec, func(e models.MembershipRequest) bool {
		return e.TeamID == teamID && e.CategoryEditionID == ceID && (state == nil || e.State == *state)
	}), nil
}

// memberships

type fakeMemberships struct{ *fakeStore }

func (r fakeMemberships) ListByTeam(_ context.Context, exec repositories.SQLExecutor, teamID, ceID int) ([]*models.TeamMembership, error) {
	out := make([]*models.TeamMembership, 0)
	r.with(exec, func() {
		for _, m := range r.memberships {
			if m.TeamID == teamID && m.CategoryEditionID == ceID {
				m := m
				out = append(out, &m)
			}
		}
	})
	slices.SortFunc(out, func(a, b *models.TeamMembership) int { return a.ID - b.ID })
	return out, nil
}

func (r fakeMemberships) LockByTeam(ctx context.Context, exec repositories.SQLExecutor, teamID, ceID int) ([]*models.TeamMembership, error) {
	return r.ListByTeam(ctx, exec, teamID, ceID)
}

func (r fakeMemberships) Get(_ context.Context, exec repositories.SQLExecutor, playerID, teamID, ceID int) (m *models.TeamMembership, err error) {
	err = repositories.ErrMembershipNotFound
	r.with(exec, func() {
		for _, e := range r.memberships {
			if e.PlayerID == playerID && e.TeamID == teamID && e.CategoryEditionID == ceID {
				m, err = &e, nil
				return
			}
		}
	})
	return m, err
}

func (r fakeMemberships) Activate(_ context.Context, exec repositories.SQLExecutor, m *models.TeamMembership) error {
	r.with(exec, func() {
		for id, e := range r.memberships {
			if e.PlayerID == m.PlayerID && e.TeamID == m.TeamID && e.CategoryEditionID == m.CategoryEditionID {
				e.Active, e.Captain, e.LeftAt, e.JoinedAt, e.Eventual = true, false, nil, m.JoinedAt, m.Eventual
				r.memberships[id] = e
				*m = e
				return
			}
		}
		m.ID = r.id()
		m.Active = true
		r.memberships[m.ID] = *m
	})
	return nil
}

func (r fakeMemberships) SetCaptain(_ context.Context, exec repositories.SQLExecutor, id int, captain bool) (err error) {
	r.with(exec, func() {
		m, ok := r.memberships[id]
		if !ok || !m.Active {
			err = repositories.ErrMembershipNotFound
			return
		}
		m.Captain = captain
		r.memberships[id] = m
	})
	return err
}

func (r fakeMemberships) Deactivate(_ context.Context, exec repositories.SQLExecutor, id int, leftAt time.Time) (err error) {
	r.with(exec, func() {
		m, ok := r.memberships[id]
		if !ok || !m.Active {
			err = repositories.ErrMembershipNotFound
			return
		}
		m.Active, m.Captain, m.LeftAt = false, false, &leftAt
		r.memberships[id] = m
	})
	return err
}

// categories

type fakeCategories struct{ *fakeStore }

func (r fakeCategories) GetByID(_ context.Context, exec repositories.SQLExecutor, id int) (ce *models.CategoryEdition, err error) {
	r.with(exec, func() {
		c, ok := r.categories[id]
		if !ok {
			err = repositories.ErrCategoryEditionNotFound
			return
		}
		ce = &c
	})
	return ce, err
}

// leave requests

type fakeLeaves struct{ *fakeStore }

func (r fakeLeaves) Create(_ context.Context, exec repositories.SQLExecutor, req *models.LeaveRequest) (err error) {
	r.with(exec, func() {
		for _, e := range r.leaves {
			if e.State == models.LeavePending && e.PlayerID == req.PlayerID && e.TeamID == req.TeamID && e.CategoryEditionID == req.CategoryEditionID {
				err = repositories.ErrLeaveRequestPendingConflict
				return
			}
		}
		req.ID = r.id()
		req.State = models.LeavePending
		r.leaves[req.ID] = *req
	})
	return err
}

func (r fakeLeaves) get(exec repositories.SQLExecutor, id int) (req *models.LeaveRequest, err error) {
	r.with(exec, func() {
		e, ok := r.leaves[id]
		if !ok {
			err = repositories.ErrLeaveRequestNotFound
			return
		}
		req = &e
	})
	return req, err
}

func (r fakeLeaves) GetByID(_ context.Context, exec repositories.SQLExecutor, id int) (*models.LeaveRequest, error) {
	return r.get(exec, id)
}

func (r fakeLeaves) GetByIDForUpdate(_ context.Context, exec repositories.SQLExecutor, id int) (*models.LeaveRequest, error) {
	return r.get(exec, id)
}

func (r fakeLeaves) FindPending(_ context.Context, exec repositories.SQLExecutor, playerID, teamID, ceID int) (req *models.LeaveRequest, err error) {
	err = repositories.ErrLeaveRequestNotFound
	r.with(exec, func() {
		for _, e := range r.leaves {
			if e.State == models.LeavePending && e.PlayerID == playerID && e.TeamID == teamID && e.CategoryEditionID == ceID {
				req, err = &e, nil
				return
			}
		}
	})
	return req, err
}

func (r fakeLeaves) Resolve(_ context.Context, exec repositories.SQLExecutor, req *models.LeaveRequest) (err error) {
	r.with(exec, func() {
		stored, ok := r.leaves[req.ID]
		if !ok || stored.State != models.LeavePending {
			err = repositories.ErrLeaveRequestNotPending
			return
		}
		r.leaves[req.ID] = *req
	})
	return err
}

func (r fakeLeaves) ListByTeam(_ context.Context, exec repositories.SQLExecutor, teamID, ceID int, state *models.LeaveState) ([]*models.LeaveRequest, error) {
	out := make([]*models.LeaveRequest, 0)
	r.with(exec, func() {
		for _, e := range r.leaves {
			if e.TeamID == teamID && e.CategoryEditionID == ceID && (state == nil || e.State == *state) {
				e := e
				out = append(out, &e)
			}
		}
	})
	return out, nil
}

// dream teams

type fakeDreamTeams struct{ *fakeStore }

func (r fakeDreamTeams) Create(_ context.Context, exec repositories.SQLExecutor, dt *models.DreamTeam) (err error) {
	r.with(exec, func() {
		for _, e := range r.dreamteams {
			if e.CategoryEditionID == dt.CategoryEditionID && e.Jornada == dt.Jornada {
				err = repositories.ErrDreamTeamConflict
				return
			}
		}
		dt.ID = r.id()
		r.dreamteams[dt.ID] = *dt
	})
	return err
}

func (r fakeDreamTeams) GetByID(_ context.Context, exec repositories.SQLExecutor, id int) (dt *models.DreamTeam, err error) {
	r.with(exec, func() {
		e, ok := r.dreamteams[id]
		if !ok {
			err = repositories.ErrDreamTeamNotFound
			return
		}
		dt = &e
	})
	return dt, err
}

func (r fakeDreamTeams) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.DreamTeam, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeDreamTeams) UpdateFormation(_ context.Context, exec repositories.SQLExecutor, id int, formation string) (err error) {
	r.with(exec, func() {
		e, ok := r.dreamteams[id]
		if !ok || e.Published {
			err = repositories.ErrDreamTeamNotFound
			return
		}
		e.Formation = formation
		r.dreamteams[id] = e
	})
	return err
}

func (r fakeDreamTeams) MarkPublished(_ context.Context, exec repositories.SQLExecutor, id int, at time.Time) (err error) {
	r.with(exec, func() {
		e, ok := r.dreamteams[id]
		if !ok || e.Published {
			err = repositories.ErrDreamTeamNotFound
			return
		}
		e.Published, e.PublishedAt = true, &at
		r.dreamteams[id] = e
	})
	return err
}

func (r fakeDreamTeams) ListSlots(_ context.Context, exec repositories.SQLExecutor, dreamTeamID int) ([]models.DreamTeamSlotAssignment, error) {
	out := make([]models.DreamTeamSlotAssignment, 0)
	r.with(exec, func() {
		for _, sl := range r.slots {
			if sl.DreamTeamID == dreamTeamID {
				out = append(out, sl)
			}
		}
	})
	slices.SortFunc(out, func(a, b models.DreamTeamSlotAssignment) int { return a.SlotIndex - b.SlotIndex })
	return out, nil
}

func (r fakeDreamTeams) CountSlots(ctx context.Context, exec repositories.SQLExecutor, dreamTeamID int) (int, error) {
	slots, err := r.ListSlots(ctx, exec, dreamTeamID)
	return len(slots), err
}

func (r fakeDreamTeams) InsertSlot(_ context.Context, exec repositories.SQLExecutor, slot *models.DreamTeamSlotAssignment) (err error) {
	r.with(exec, func() {
		for _, sl := range r.slots {
			if sl.DreamTeamID != slot.DreamTeamID {
				continue
			}
			if sl.SlotIndex == slot.SlotIndex {
				err = repositories.ErrDreamTeamSlotConflict
				return
			}
			if sl.MatchID == slot.MatchID && sl.PlayerID == slot.PlayerID {
				err = repositories.ErrDreamTeamPlayerConflict
				return
			}
		}
		slot.ID = r.id()
		r.slots[slot.ID] = *slot
	})
	return err
}

func (r fakeDreamTeams) DeleteSlot(_ context.Context, exec repositories.SQLExecutor, dreamTeamID, matchID, playerID int) (err error) {
	err = repositories.ErrDreamTeamSlotNotFound
	r.with(exec, func() {
		for id, sl := range r.slots {
			if sl.DreamTeamID == dreamTeamID && sl.MatchID == matchID && sl.PlayerID == playerID {
				delete(r.slots, id)
				err = nil
				return
			}
		}
	})
	return err
}

// players

type fakePlayers struct{ *fakeStore }

func (r fakePlayers) GetByID(_ context.Context, id int) (p *models.Player, err error) {
	err = repositories.ErrPlayerNotFound
	r.with(nil, func() {
		for _, e := range r.players {
			if e.ID == id {
				p, err = &e, nil
				return
			}
		}
	})
	return p, err
}

func (r fakePlayers) Search(_ context.Context, query string, codes []string, limit int) ([]models.Player, error) {
	out := make([]models.Player, 0)
	q := strings.ToLower(query)
	r.with(nil, func() {
		r.searches++
		for _, p := range r.players {
			name := strings.ToLower(p.FirstName + " " + p.LastName)
			if !strings.Contains(name, q) {
				continue
			}
			if len(codes) > 0 && (p.PositionCode == nil || !slices.Contains(codes, *p.PositionCode)) {
				continue
			}
			out = append(out, p)
			if len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

// events

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// fixture wires every service over one fakeStore.
type fixture struct {
	store    *fakeStore
	clock    *clockwork.FakeClock
	events   *recordingPublisher
	roster   *RosterService
	requests *MembershipRequestService
	leaves   *LeaveRequestService
	dream    *DreamTeamService
}

func newFixture() *fixture {
	store := newFakeStore()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	events := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	roster := NewRosterService(store, fakeMemberships{store}, fakeTeams{store}, events, nil, clock, logger)
	return &fixture{
		store:  store,
		clock:  clock,
		events: events,
		roster: roster,
		requests: NewMembershipRequestService(store, fakeRequests{store}, fakeMemberships{store},
			fakeCategories{store}, fakeLeaves{store}, roster, events, nil, clock, logger),
		leaves: NewLeaveRequestService(store, fakeLeaves{store}, fakeMemberships{store}, events, nil, clock, logger),
		dream: NewDreamTeamService(store, fakeDreamTeams{store}, fakePlayers{store},
			models.DefaultFormationTable(), nil, events, nil, clock, logger),
	}
}

func player(id int) models.Actor  { return models.Actor{ID: id, Role: models.RolePlayer} }
func captain(id int) models.Actor { return models.Actor{ID: id, Role: models.RoleCaptain} }
func admin(id int) models.Actor   { return models.Actor{ID: id, Role: models.RoleAdmin} }
