package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/crewkeeper/internal/client/client"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
)

// rosterSession is the part of SessionManager the roster depends on.
type rosterSession interface {
	State() SessionState
	Profile() *models.UserProfile
	Expire(ctx context.Context) error
}

var _ rosterSession = (*SessionManager)(nil)

// RosterService manages the airline's crew roster on behalf of the
// signed-in member. New and changed entries are always filed under the
// member's own airline.
type RosterService struct {
	gateway client.CrewRoster
	session rosterSession
	gate    ConnectivityReader
	logger  logging.Logger
}

func NewRosterService(gateway client.CrewRoster, session rosterSession, gate ConnectivityReader, logger logging.Logger) *RosterService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RosterService{
		gateway: gateway,
		session: session,
		gate:    gate,
		logger:  logger.With("component", "roster"),
	}
}

// List returns one page of the roster, optionally filtered by search.
func (s *RosterService) List(ctx context.Context, page int, search string) (*models.CrewPage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	res, err := s.gateway.ListCrew(ctx, page, search)
	if err != nil {
		return nil, s.rejected(ctx, err)
	}
	s.logger.Debug(ctx, "roster page loaded",
		"page", res.Pagination.CurrentPage, "count", len(res.Members), "total", res.Pagination.Total)
	return res, nil
}

func (s *RosterService) Get(ctx context.Context, id int64) (*models.CrewMember, error) {
	if err := checkMemberID(id); err != nil {
		return nil, err
	}
	if err := s.guard(); err != nil {
		return nil, err
	}
	m, err := s.gateway.GetCrewMember(ctx, id)
	if err != nil {
		return nil, s.rejected(ctx, err)
	}
	return m, nil
}

// Create validates locally before anything is sent.
func (s *RosterService) Create(ctx context.Context, in models.CrewMemberInput) (*models.CrewMember, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	in.AirlineCode = s.airline()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m, err := s.gateway.CreateCrewMember(ctx, in)
	if err != nil {
		return nil, s.rejected(ctx, err)
	}
	s.logger.Info(ctx, "crew member added", "id", m.ID, "crew_id", m.CrewID)
	return m, nil
}

// Update sends a partial change. An empty change is ErrNothingToUpdate.
func (s *RosterService) Update(ctx context.Context, id int64, update models.CrewMemberUpdate) (*models.CrewMember, error) {
	if err := checkMemberID(id); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, ErrNothingToUpdate
	}
	if update.PositionID != nil && *update.PositionID <= 0 {
		return nil, &models.ValidationError{Fields: map[string]string{models.FieldPosition: "position must be selected"}}
	}
	if err := s.guard(); err != nil {
		return nil, err
	}
	update.AirlineCode = s.airline()
	m, err := s.gateway.UpdateCrewMember(ctx, id, update)
	if err != nil {
		return nil, s.rejected(ctx, err)
	}
	s.logger.Info(ctx, "crew member updated", "id", id)
	return m, nil
}

func (s *RosterService) Delete(ctx context.Context, id int64) error {
	if err := checkMemberID(id); err != nil {
		return err
	}
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.gateway.DeleteCrewMember(ctx, id); err != nil {
		return s.rejected(ctx, err)
	}
	s.logger.Info(ctx, "crew member deleted", "id", id)
	return nil
}

func (s *RosterService) guard() error {
	if s.session.State() != SessionAuthenticated {
		return ErrNotAuthenticated
	}
	if offline(s.gate) {
		return ErrOffline
	}
	return nil
}

func (s *RosterService) airline() string {
	if p := s.session.Profile(); p != nil {
		return p.AirlineCode
	}
	return ""
}

// rejected ends the session when the backend refused the token.
func (s *RosterService) rejected(ctx context.Context, err error) error {
	if !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	if serr := s.session.Expire(ctx); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

func checkMemberID(id int64) error {
	if id <= 0 {
		return &models.ValidationError{Fields: map[string]string{models.FieldMemberID: "a roster entry must be selected"}}
	}
	return nil
}
