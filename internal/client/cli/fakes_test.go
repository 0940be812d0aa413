package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/crewkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/services"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
)

type fakeSession struct {
	state   services.SessionState
	profile *models.UserProfile

	signInRet  *models.UserProfile
	signInErr  error
	signOutErr error
	updateRet  *models.UserProfile
	updateErr  error
	refreshErr error
	revalErr   error
	// revalSignsOut simulates the corrective sign-out on Unauthorized.
	revalSignsOut bool

	started      bool
	lastCreds    models.Credentials
	lastUpdate   models.ProfileUpdate
	signOutCalls int
	revalCalls   int
}

func (f *fakeSession) Start(context.Context) error   { f.started = true; return nil }
func (f *fakeSession) Wait()                         {}
func (f *fakeSession) State() services.SessionState  { return f.state }
func (f *fakeSession) Profile() *models.UserProfile  { return f.profile }
func (f *fakeSession) Refresh(context.Context) error { return f.refreshErr }

func (f *fakeSession) SignIn(_ context.Context, c models.Credentials) (*models.UserProfile, error) {
	f.lastCreds = c
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.state = services.SessionAuthenticated
	f.profile = f.signInRet
	return f.signInRet, nil
}

func (f *fakeSession) SignOut(context.Context) error {
	f.signOutCalls++
	f.state = services.SessionAnonymous
	f.profile = nil
	return f.signOutErr
}

func (f *fakeSession) UpdateProfile(_ context.Context, u models.ProfileUpdate) (*models.UserProfile, error) {
	f.lastUpdate = u
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.profile = f.updateRet
	return f.updateRet, nil
}

func (f *fakeSession) Revalidate(context.Context) error {
	f.revalCalls++
	if f.revalSignsOut {
		f.state = services.SessionAnonymous
		f.profile = nil
	}
	return f.revalErr
}

type fakeRegistration struct {
	state     services.RegistrationState
	challenge *models.VerificationChallenge
	cooldown  int

	initiateErr error
	verifyErrs  []error
	resendErr   error
	finalized   *models.FinalizedRegistration

	lastDraft   models.RegistrationDraft
	pins        []string
	resendCalls int
	abandoned   bool
	resets      int
}

func (f *fakeRegistration) InitiateRegister(_ context.Context, d models.RegistrationDraft) (*models.VerificationChallenge, error) {
	f.lastDraft = d
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	f.state = services.RegistrationInitiated
	f.challenge = &models.VerificationChallenge{VerificationKey: "vk_1", Email: d.Email, CrewID: d.CrewID, ExpiresInMinutes: 15}
	f.cooldown = 60
	return f.challenge, nil
}

func (f *fakeRegistration) VerifyEmail(_ context.Context, pin string) (*models.FinalizedRegistration, error) {
	f.pins = append(f.pins, pin)
	if len(f.verifyErrs) > 0 {
		err := f.verifyErrs[0]
		f.verifyErrs = f.verifyErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.state = services.RegistrationVerified
	return f.finalized, nil
}

func (f *fakeRegistration) ResendPin(context.Context) (*models.VerificationChallenge, error) {
	f.resendCalls++
	if f.resendErr != nil {
		return nil, f.resendErr
	}
	return f.challenge, nil
}

func (f *fakeRegistration) Abandon() error {
	f.abandoned = true
	f.state = services.RegistrationAbandoned
	return nil
}

func (f *fakeRegistration) Reset() {
	f.resets++
	f.state = services.RegistrationIdle
	f.challenge = nil
}

func (f *fakeRegistration) State() services.RegistrationState        { return f.state }
func (f *fakeRegistration) Challenge() *models.VerificationChallenge { return f.challenge }
func (f *fakeRegistration) Cooldown() int                            { return f.cooldown }
func (f *fakeRegistration) Close()                                   {}

type fakeCatalog struct {
	list []models.Position
	err  error
}

func (f *fakeCatalog) ListPositions(context.Context) ([]models.Position, error) {
	return f.list, f.err
}

type fakeGate struct{ snap connectivity.Snapshot }

func (f fakeGate) Snapshot() connectivity.Snapshot { return f.snap }

func readerFromLines(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func newTestApp(s *fakeSession, r *fakeRegistration, input *bufio.Reader) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		session:      s,
		registration: r,
		positions: &fakeCatalog{list: []models.Position{
			{ID: 1, Code: "CPT", Description: "Captain"},
			{ID: 2, Code: "FA", Description: "Flight Attendant"},
		}},
		gate:   fakeGate{snap: connectivity.Snapshot{State: connectivity.Connected, ConnectionType: "http"}},
		logger: logging.Nop(),
		reader: input,
		out:    &out,
	}, &out
}

// stubPasswords makes getPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := getPassword
	getPassword = func(string, io.Writer) ([]byte, error) {
		if len(answers) == 0 {
			return nil, io.EOF
		}
		pw := []byte(answers[0])
		answers = answers[1:]
		return pw, nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func sampleProfile() *models.UserProfile {
	return &models.UserProfile{
		CrewID:         "CM1234",
		Names:          "Ana",
		Surnames:       "Lopez",
		PassportNumber: "P998877",
		AirlineCode:    "CM",
		Position:       models.Position{ID: 2, Code: "FA", Description: "Flight Attendant"},
		ApprovalState:  models.ApprovalApproved,
		RequestedAt:    "2024-03-01",
	}
}

type fakeRoster struct {
	page    *models.CrewPage
	member  *models.CrewMember
	err     error
	listErr error

	lastPage   int
	lastSearch string
	lastID     int64
	lastInput  models.CrewMemberInput
	lastUpdate models.CrewMemberUpdate
	deletes    int
}

func (f *fakeRoster) List(_ context.Context, page int, search string) (*models.CrewPage, error) {
	f.lastPage, f.lastSearch = page, search
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page, nil
}

func (f *fakeRoster) Get(_ context.Context, id int64) (*models.CrewMember, error) {
	f.lastID = id
	return f.member, f.err
}

func (f *fakeRoster) Create(_ context.Context, in models.CrewMemberInput) (*models.CrewMember, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.CrewMember{ID: 12, CrewID: in.CrewID}, nil
}

func (f *fakeRoster) Update(_ context.Context, id int64, u models.CrewMemberUpdate) (*models.CrewMember, error) {
	f.lastID, f.lastUpdate = id, u
	if u.IsEmpty() {
		return nil, services.ErrNothingToUpdate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.member, nil
}

func (f *fakeRoster) Delete(_ context.Context, id int64) error {
	f.lastID = id
	f.deletes++
	return f.err
}

func sampleMember() *models.CrewMember {
	return &models.CrewMember{
		ID:             10,
		CrewID:         "CM0010",
		Names:          "Luis",
		Surnames:       "Mena",
		PassportNumber: "P123",
		Position:       models.Position{ID: 1, Code: "CPT", Description: "Captain"},
		Airline:        models.Airline{ID: 4, Description: "Copa", Code: "CM"},
		CreatedAt:      "2024-03-01",
	}
}

func signedInApp(r *fakeRoster, input *bufio.Reader) (*App, *bytes.Buffer) {
	a, out := newTestApp(&fakeSession{state: services.SessionAuthenticated, profile: sampleProfile()}, &fakeRegistration{}, input)
	a.roster = r
	return a, out
}
