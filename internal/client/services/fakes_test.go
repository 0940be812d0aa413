package services

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/crewkeeper/internal/client/client"
	"github.com/dmitrijs2005/crewkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/repositories/metadata"
)

// fakeClient implements client.Client for service tests. Return values and
// errors are preset; calls and arguments are recorded.
type fakeClient struct {
	mu sync.Mutex

	LoginRet *models.LoginResult
	LoginErr error

	InitiateRet *models.VerificationChallenge
	InitiateErr error

	VerifyRet *models.FinalizedRegistration
	VerifyErr error

	ResendRet *models.VerificationChallenge
	ResendErr error

	MeRet *models.UserProfile
	MeErr error
	// MeHook, when set, runs inside FetchCurrentProfile before returning.
	MeHook func()

	UpdateRet *models.UserProfile
	UpdateErr error

	RefreshRet string
	RefreshErr error

	LogoutErr error
	PingErr   error

	token string

	LoginCalls    int
	InitiateCalls int
	VerifyCalls   int
	ResendCalls   int
	MeCalls       int
	UpdateCalls   int
	RefreshCalls  int
	LogoutCalls   int

	LastLoginID     string
	LastLoginSecret string
	LastVerifyKey   string
	LastVerifyPIN   string
	LastResendKey   string
	LastUpdate      models.ProfileUpdate
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Login(_ context.Context, id, secret string) (*models.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	f.LastLoginID, f.LastLoginSecret = id, secret
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	r := *f.LoginRet
	return &r, nil
}

func (f *fakeClient) InitiateRegister(_ context.Context, _ models.RegistrationDraft) (*models.VerificationChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitiateCalls++
	if f.InitiateErr != nil {
		return nil, f.InitiateErr
	}
	c := *f.InitiateRet
	return &c, nil
}

func (f *fakeClient) VerifyEmail(_ context.Context, key, pin string) (*models.FinalizedRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyCalls++
	f.LastVerifyKey, f.LastVerifyPIN = key, pin
	if f.VerifyErr != nil {
		return nil, f.VerifyErr
	}
	r := *f.VerifyRet
	return &r, nil
}

func (f *fakeClient) ResendPin(_ context.Context, key string) (*models.VerificationChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResendCalls++
	f.LastResendKey = key
	if f.ResendErr != nil {
		return nil, f.ResendErr
	}
	c := *f.ResendRet
	return &c, nil
}

func (f *fakeClient) FetchCurrentProfile(context.Context) (*models.UserProfile, error) {
	f.mu.Lock()
	f.MeCalls++
	hook, ret, err := f.MeHook, f.MeRet, f.MeErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	p := *ret
	return &p, nil
}

func (f *fakeClient) UpdateProfile(_ context.Context, u models.ProfileUpdate) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	f.LastUpdate = u
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	p := *f.UpdateRet
	return &p, nil
}

func (f *fakeClient) RefreshToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	return f.RefreshRet, f.RefreshErr
}

func (f *fakeClient) ListPositions(context.Context) ([]models.Position, error) {
	return nil, nil
}

func (f *fakeClient) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *fakeClient) Ping(context.Context) error { return f.PingErr }

func (f *fakeClient) SetToken(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = t
}

func (f *fakeClient) ClearToken() { f.SetToken("") }

func (f *fakeClient) HasToken() bool { return f.Token() != "" }

func (f *fakeClient) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoginCalls + f.InitiateCalls + f.VerifyCalls + f.ResendCalls +
		f.MeCalls + f.UpdateCalls + f.RefreshCalls + f.LogoutCalls
}

// fixedGate reports a constant connectivity state.
type fixedGate connectivity.State

func (g fixedGate) Current() connectivity.State { return connectivity.State(g) }

var errStoreDown = errors.New("disk I/O error")

// failingStore wraps a repository and fails writes on demand.
type failingStore struct {
	metadata.Repository
	failTx  bool
	failGet bool
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errStoreDown
	}
	return s.Repository.Get(ctx, key)
}

func (s *failingStore) Tx(ctx context.Context, fn func(context.Context, metadata.Repository) error) error {
	if s.failTx {
		return errStoreDown
	}
	return s.Repository.Tx(ctx, fn)
}

func unauthorized() error {
	return &client.APIError{Kind: client.ErrUnauthorized, Status: 401, Message: "Unauthenticated."}
}

func unreachable() error {
	return &client.APIError{Kind: client.ErrUnavailable, Message: "unable to reach the server"}
}

// fakeRoster implements client.CrewRoster for roster service tests.
type fakeRoster struct {
	mu sync.Mutex

	ListRet *models.CrewPage
	Err     error

	Calls      int
	LastPage   int
	LastSearch string
	LastID     int64
	LastInput  models.CrewMemberInput
	LastUpdate models.CrewMemberUpdate
}

var _ client.CrewRoster = (*fakeRoster)(nil)

func (f *fakeRoster) ListCrew(_ context.Context, page int, search string) (*models.CrewPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastPage, f.LastSearch = page, search
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ListRet == nil {
		return &models.CrewPage{Pagination: models.Pagination{CurrentPage: page}}, nil
	}
	return f.ListRet, nil
}

func (f *fakeRoster) GetCrewMember(_ context.Context, id int64) (*models.CrewMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastID = id
	if f.Err != nil {
		return nil, f.Err
	}
	return &models.CrewMember{ID: id, CrewID: "CM0010"}, nil
}

func (f *fakeRoster) CreateCrewMember(_ context.Context, in models.CrewMemberInput) (*models.CrewMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastInput = in
	if f.Err != nil {
		return nil, f.Err
	}
	return &models.CrewMember{ID: 12, CrewID: in.CrewID}, nil
}

func (f *fakeRoster) UpdateCrewMember(_ context.Context, id int64, u models.CrewMemberUpdate) (*models.CrewMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastID, f.LastUpdate = id, u
	if f.Err != nil {
		return nil, f.Err
	}
	return &models.CrewMember{ID: id}, nil
}

func (f *fakeRoster) DeleteCrewMember(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastID = id
	return f.Err
}
