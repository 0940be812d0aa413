package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/crewkeeper/internal/client/client"
	"github.com/dmitrijs2005/crewkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/crewkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crewProfile(state models.ApprovalState) models.UserProfile {
	return models.UserProfile{
		RequestID:      7,
		CrewID:         "CM1234",
		Names:          "Ana",
		Surnames:       "Lopez",
		PassportNumber: "P998877",
		AirlineCode:    "CM",
		Position:       models.Position{ID: 2, Code: "FA", Description: "Flight Attendant"},
		IsActive:       true,
		ApprovalState:  state,
		RequestedAt:    "2024-03-01",
	}
}

func seedSession(t *testing.T, store metadata.Repository, token string, p models.UserProfile) {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, common.StorageKeyToken, []byte(token)))
	require.NoError(t, store.Set(ctx, common.StorageKeyProfile, raw))
}

// storedSession returns the persisted pair and fails the test when only one
// of the two keys is present.
func storedSession(t *testing.T, store metadata.Repository) (string, *models.UserProfile) {
	t.Helper()
	ctx := context.Background()
	tok, err := store.Get(ctx, common.StorageKeyToken)
	require.NoError(t, err)
	raw, err := store.Get(ctx, common.StorageKeyProfile)
	require.NoError(t, err)

	require.Equal(t, tok == nil, raw == nil, "token and profile must be stored together")
	if tok == nil {
		return "", nil
	}
	var p models.UserProfile
	require.NoError(t, json.Unmarshal(raw, &p))
	return string(tok), &p
}

func newManager(fc *fakeClient, store metadata.Repository, gate ConnectivityReader) *SessionManager {
	return NewSessionManager(fc, store, gate, nil)
}

func TestStart_FreshInstallEndsAnonymous(t *testing.T) {
	store := metadata.NewMemoryRepository()
	fc := &fakeClient{}
	m := newManager(fc, store, nil)

	var seen []SessionState
	var loadingDuringLoad bool
	m.OnChange(func(s SessionState, _ *models.UserProfile) {
		seen = append(seen, s)
		if s == SessionLoading {
			loadingDuringLoad = m.IsLoading()
		}
	})

	assert.Equal(t, SessionUnloaded, m.State())
	require.NoError(t, m.Start(context.Background()))
	m.Wait()

	assert.Equal(t, []SessionState{SessionLoading, SessionAnonymous}, seen)
	assert.True(t, loadingDuringLoad)
	assert.False(t, m.IsLoading())
	assert.Equal(t, SessionAnonymous, m.State())
	assert.Nil(t, m.Profile())
	assert.Zero(t, fc.networkCalls())
}

func TestStart_IsOnlyDoneOnce(t *testing.T) {
	m := newManager(&fakeClient{}, metadata.NewMemoryRepository(), nil)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, SessionAnonymous, m.State())
}

func TestStart_RestoresAndRevalidates(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok_cached", crewProfile(models.ApprovalPending))

	fresh := crewProfile(models.ApprovalApproved)
	release := make(chan struct{})
	fc := &fakeClient{MeRet: &fresh, MeHook: func() { <-release }}
	m := newManager(fc, store, nil)

	require.NoError(t, m.Start(context.Background()))

	// optimistic restore before the backend answers
	assert.Equal(t, SessionAuthenticated, m.State())
	assert.Equal(t, models.ApprovalPending, m.Profile().ApprovalState)
	assert.Equal(t, "tok_cached", fc.Token())
	assert.False(t, m.IsLoading())

	close(release)
	m.Wait()

	assert.Equal(t, SessionAuthenticated, m.State())
	assert.Equal(t, models.ApprovalApproved, m.Profile().ApprovalState)
	tok, p := storedSession(t, store)
	assert.Equal(t, "tok_cached", tok)
	assert.Equal(t, models.ApprovalApproved, p.ApprovalState)
}

func TestStart_ExpiredTokenSignsOut(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok_expired", crewProfile(models.ApprovalApproved))

	fc := &fakeClient{MeErr: unauthorized()}
	m := newManager(fc, store, nil)

	require.NoError(t, m.Start(context.Background()))
	m.Wait()

	assert.Equal(t, SessionAnonymous, m.State())
	assert.Nil(t, m.Profile())
	assert.Empty(t, m.Token())
	assert.Empty(t, fc.Token(), "gateway token must be detached")

	tok, p := storedSession(t, store)
	assert.Empty(t, tok)
	assert.Nil(t, p)
}

func TestStart_UnreachableKeepsCachedSession(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok_cached", crewProfile(models.ApprovalApproved))

	fc := &fakeClient{MeErr: unreachable()}
	m := newManager(fc, store, nil)

	require.NoError(t, m.Start(context.Background()))
	m.Wait()

	assert.Equal(t, SessionAuthenticated, m.State())
	tok, _ := storedSession(t, store)
	assert.Equal(t, "tok_cached", tok)
}

func TestStart_OfflineSkipsRevalidation(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok_cached", crewProfile(models.ApprovalApproved))

	fc := &fakeClient{}
	m := newManager(fc, store, fixedGate(connectivity.Disconnected))

	require.NoError(t, m.Start(context.Background()))
	m.Wait()

	assert.Equal(t, SessionAuthenticated, m.State())
	assert.Zero(t, fc.MeCalls)
}

func TestStart_PartialResidueIsCleared(t *testing.T) {
	tests := []struct {
		name string
		seed func(t *testing.T, s metadata.Repository)
	}{
		{
			name: "token only",
			seed: func(t *testing.T, s metadata.Repository) {
				require.NoError(t, s.Set(context.Background(), common.StorageKeyToken, []byte("tok")))
			},
		},
		{
			name: "profile only",
			seed: func(t *testing.T, s metadata.Repository) {
				raw, _ := json.Marshal(crewProfile(models.ApprovalApproved))
				require.NoError(t, s.Set(context.Background(), common.StorageKeyProfile, raw))
			},
		},
		{
			name: "unparsable profile",
			seed: func(t *testing.T, s metadata.Repository) {
				require.NoError(t, s.Set(context.Background(), common.StorageKeyToken, []byte("tok")))
				require.NoError(t, s.Set(context.Background(), common.StorageKeyProfile, []byte("{not json")))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := metadata.NewMemoryRepository()
			tt.seed(t, store)
			fc := &fakeClient{}
			m := newManager(fc, store, nil)

			require.NoError(t, m.Start(context.Background()))
			m.Wait()

			assert.Equal(t, SessionAnonymous, m.State())
			all, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Zero(t, fc.networkCalls())
		})
	}
}

func TestStart_StoreReadFailure(t *testing.T) {
	store := &failingStore{Repository: metadata.NewMemoryRepository(), failGet: true}
	m := newManager(&fakeClient{}, store, nil)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, SessionAnonymous, m.State())
	assert.False(t, m.IsLoading())
}

func TestSignIn_Success(t *testing.T) {
	store := metadata.NewMemoryRepository()
	fc := &fakeClient{LoginRet: &models.LoginResult{Token: "tok_abc", Profile: crewProfile(models.ApprovalApproved)}}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))

	p, err := m.SignIn(context.Background(), models.Credentials{Identifier: " CM1234 ", Secret: "correct-pw"})
	require.NoError(t, err)
	assert.Equal(t, "CM1234", p.CrewID)
	assert.Equal(t, "CM1234", fc.LastLoginID)
	assert.Equal(t, "correct-pw", fc.LastLoginSecret)

	assert.Equal(t, SessionAuthenticated, m.State())
	assert.Equal(t, "tok_abc", m.Token())
	assert.Equal(t, "tok_abc", fc.Token())

	tok, stored := storedSession(t, store)
	assert.Equal(t, "tok_abc", tok)
	assert.Equal(t, crewProfile(models.ApprovalApproved), *stored)

	// signing in again re-runs and overwrites
	fc.LoginRet = &models.LoginResult{Token: "tok_def", Profile: crewProfile(models.ApprovalPending)}
	_, err = m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "correct-pw"})
	require.NoError(t, err)
	assert.Equal(t, 2, fc.LoginCalls)
	tok, stored = storedSession(t, store)
	assert.Equal(t, "tok_def", tok)
	assert.Equal(t, models.ApprovalPending, stored.ApprovalState)
	assert.Equal(t, "tok_def", fc.Token())
}

func TestSignIn_RejectedKeepsAnonymous(t *testing.T) {
	store := metadata.NewMemoryRepository()
	rejected := &client.APIError{Kind: client.ErrCredentialsRejected, Status: 401, Message: "Credenciales inválidas"}
	fc := &fakeClient{LoginErr: rejected}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))

	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrCredentialsRejected)
	assert.Equal(t, "Credenciales inválidas", err.Error())

	assert.Equal(t, SessionAnonymous, m.State())
	tok, _ := storedSession(t, store)
	assert.Empty(t, tok)
}

func TestSignIn_UnreachableLeavesStoreUntouched(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok_old", crewProfile(models.ApprovalApproved))
	fc := &fakeClient{MeRet: ptr(crewProfile(models.ApprovalApproved)), LoginErr: unreachable()}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	m.Wait()

	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM9999", Secret: "pw"})
	assert.ErrorIs(t, err, client.ErrUnavailable)

	tok, p := storedSession(t, store)
	assert.Equal(t, "tok_old", tok)
	assert.Equal(t, "CM1234", p.CrewID)
	assert.Equal(t, SessionAuthenticated, m.State())
}

func TestSignIn_ConnectivityGate(t *testing.T) {
	res := &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)}

	t.Run("disconnected short-circuits", func(t *testing.T) {
		fc := &fakeClient{LoginRet: res}
		m := newManager(fc, metadata.NewMemoryRepository(), fixedGate(connectivity.Disconnected))
		require.NoError(t, m.Start(context.Background()))

		_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
		assert.ErrorIs(t, err, ErrOffline)
		assert.Equal(t, "no network connection", err.Error())
		assert.Zero(t, fc.LoginCalls)
	})

	t.Run("unknown still attempts", func(t *testing.T) {
		fc := &fakeClient{LoginRet: res}
		m := newManager(fc, metadata.NewMemoryRepository(), fixedGate(connectivity.Unknown))
		require.NoError(t, m.Start(context.Background()))

		_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
		require.NoError(t, err)
		assert.Equal(t, 1, fc.LoginCalls)
	})
}

func TestSignIn_LocalValidation(t *testing.T) {
	fc := &fakeClient{}
	m := newManager(fc, metadata.NewMemoryRepository(), nil)

	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "  ", Secret: ""})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, fc.networkCalls())
}

func TestSignIn_StoreFailureLeavesMemoryUnchanged(t *testing.T) {
	store := &failingStore{Repository: metadata.NewMemoryRepository()}
	fc := &fakeClient{LoginRet: &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)}}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))

	store.failTx = true
	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, SessionAnonymous, m.State())
	assert.Empty(t, fc.Token())
	assert.Nil(t, m.Profile())
}

func TestSignOut_Idempotent(t *testing.T) {
	store := metadata.NewMemoryRepository()
	fc := &fakeClient{LoginRet: &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)}}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
	require.NoError(t, err)

	require.NoError(t, m.SignOut(context.Background()))
	require.NoError(t, m.SignOut(context.Background()))

	assert.Equal(t, SessionAnonymous, m.State())
	assert.Equal(t, 1, fc.LogoutCalls)
	assert.Empty(t, fc.Token())
	tok, p := storedSession(t, store)
	assert.Empty(t, tok)
	assert.Nil(t, p)
}

func TestSignOut_FromUnloadedClearsStore(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok", crewProfile(models.ApprovalApproved))
	m := newManager(&fakeClient{}, store, nil)

	require.NoError(t, m.SignOut(context.Background()))
	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, SessionAnonymous, m.State())
	tok, _ := storedSession(t, store)
	assert.Empty(t, tok)
}

func TestSignOut_RemoteFailureIgnored(t *testing.T) {
	store := metadata.NewMemoryRepository()
	fc := &fakeClient{
		LoginRet:  &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)},
		LogoutErr: unreachable(),
	}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
	require.NoError(t, err)

	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, SessionAnonymous, m.State())
	tok, _ := storedSession(t, store)
	assert.Empty(t, tok)
}

func TestSignOut_StoreFailureStillClearsMemory(t *testing.T) {
	store := &failingStore{Repository: metadata.NewMemoryRepository()}
	fc := &fakeClient{LoginRet: &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)}}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
	require.NoError(t, err)

	store.failTx = true
	err = m.SignOut(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, SessionAnonymous, m.State())
	assert.Empty(t, fc.Token())
}

func TestSignOut_RetriesClearAfterStoreFailure(t *testing.T) {
	store := &failingStore{Repository: metadata.NewMemoryRepository()}
	fc := &fakeClient{LoginRet: &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)}}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
	require.NoError(t, err)

	store.failTx = true
	require.ErrorIs(t, m.SignOut(context.Background()), errStoreDown)
	require.Equal(t, SessionAnonymous, m.State())
	tok, _ := storedSession(t, store)
	require.Equal(t, "tok", tok, "first clear did not reach the store")

	store.failTx = false
	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, 1, fc.LogoutCalls)

	tok, p := storedSession(t, store)
	assert.Empty(t, tok)
	assert.Nil(t, p)

	next := newManager(&fakeClient{}, store, nil)
	require.NoError(t, next.Start(context.Background()))
	next.Wait()
	assert.Equal(t, SessionAnonymous, next.State())

	// nothing left to clear
	store.failTx = true
	assert.NoError(t, m.SignOut(context.Background()))
}

func TestSignOut_RetryDoesNotRenotify(t *testing.T) {
	store := &failingStore{Repository: metadata.NewMemoryRepository()}
	m := signedIn(t, &fakeClient{}, store)

	var seen []SessionState
	m.OnChange(func(s SessionState, _ *models.UserProfile) { seen = append(seen, s) })

	store.failTx = true
	require.Error(t, m.SignOut(context.Background()))
	store.failTx = false
	require.NoError(t, m.SignOut(context.Background()))

	assert.Equal(t, []SessionState{SessionAnonymous}, seen)
}

func TestForcedSignOut_ReportsStoreFailure(t *testing.T) {
	t.Run("revalidate", func(t *testing.T) {
		store := &failingStore{Repository: metadata.NewMemoryRepository()}
		fc := &fakeClient{MeErr: unauthorized()}
		m := signedIn(t, fc, store)

		store.failTx = true
		err := m.Revalidate(context.Background())
		assert.ErrorIs(t, err, client.ErrUnauthorized)
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, "Unauthenticated.", client.Message(err))
		assert.Equal(t, SessionAnonymous, m.State())
	})

	t.Run("update profile", func(t *testing.T) {
		store := &failingStore{Repository: metadata.NewMemoryRepository()}
		fc := &fakeClient{UpdateErr: unauthorized()}
		m := signedIn(t, fc, store)

		store.failTx = true
		_, err := m.UpdateProfile(context.Background(), models.ProfileUpdate{Names: ptr("X")})
		assert.ErrorIs(t, err, client.ErrUnauthorized)
		assert.ErrorIs(t, err, errStoreDown)
	})

	t.Run("refresh", func(t *testing.T) {
		store := &failingStore{Repository: metadata.NewMemoryRepository()}
		fc := &fakeClient{RefreshErr: unauthorized()}
		m := signedIn(t, fc, store)

		store.failTx = true
		err := m.Refresh(context.Background())
		assert.ErrorIs(t, err, client.ErrUnauthorized)
		assert.ErrorIs(t, err, errStoreDown)

		store.failTx = false
		require.NoError(t, m.SignOut(context.Background()))
		tok, _ := storedSession(t, store)
		assert.Empty(t, tok)
	})

	t.Run("clean store keeps the gateway error as is", func(t *testing.T) {
		fc := &fakeClient{MeErr: unauthorized()}
		m := signedIn(t, fc, metadata.NewMemoryRepository())

		err := m.Revalidate(context.Background())
		assert.Same(t, fc.MeErr, err)
	})
}

func signedIn(t *testing.T, fc *fakeClient, store metadata.Repository) *SessionManager {
	t.Helper()
	if fc.LoginRet == nil {
		fc.LoginRet = &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalApproved)}
	}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
	require.NoError(t, err)
	return m
}

func TestUpdateProfile(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		fc := &fakeClient{}
		m := newManager(fc, metadata.NewMemoryRepository(), nil)
		_, err := m.UpdateProfile(context.Background(), models.ProfileUpdate{Names: ptr("X")})
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Zero(t, fc.UpdateCalls)
	})

	t.Run("replaces whole profile", func(t *testing.T) {
		store := metadata.NewMemoryRepository()
		updated := crewProfile(models.ApprovalApproved)
		updated.PassportNumber = "P000111"
		updated.Names = "Ana Maria"
		fc := &fakeClient{UpdateRet: &updated}
		m := signedIn(t, fc, store)

		got, err := m.UpdateProfile(context.Background(), models.ProfileUpdate{PassportNumber: ptr("P000111")})
		require.NoError(t, err)
		assert.Equal(t, updated, *got)
		assert.Equal(t, updated, *m.Profile())

		tok, p := storedSession(t, store)
		assert.Equal(t, "tok", tok)
		assert.Equal(t, updated, *p)
	})

	t.Run("store failure keeps old profile", func(t *testing.T) {
		store := &failingStore{Repository: metadata.NewMemoryRepository()}
		updated := crewProfile(models.ApprovalApproved)
		updated.PassportNumber = "P000111"
		fc := &fakeClient{UpdateRet: &updated}
		m := signedIn(t, fc, store)

		store.failTx = true
		_, err := m.UpdateProfile(context.Background(), models.ProfileUpdate{PassportNumber: ptr("P000111")})
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, "P998877", m.Profile().PassportNumber)
	})

	t.Run("unauthorized signs out", func(t *testing.T) {
		store := metadata.NewMemoryRepository()
		fc := &fakeClient{UpdateErr: unauthorized()}
		m := signedIn(t, fc, store)

		_, err := m.UpdateProfile(context.Background(), models.ProfileUpdate{Names: ptr("X")})
		assert.ErrorIs(t, err, client.ErrUnauthorized)
		assert.Equal(t, SessionAnonymous, m.State())
		tok, _ := storedSession(t, store)
		assert.Empty(t, tok)
	})

	t.Run("empty update is local", func(t *testing.T) {
		fc := &fakeClient{}
		m := signedIn(t, fc, metadata.NewMemoryRepository())
		p, err := m.UpdateProfile(context.Background(), models.ProfileUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "CM1234", p.CrewID)
		assert.Zero(t, fc.UpdateCalls)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("rotates token", func(t *testing.T) {
		store := metadata.NewMemoryRepository()
		fc := &fakeClient{RefreshRet: "tok_new"}
		m := signedIn(t, fc, store)

		require.NoError(t, m.Refresh(context.Background()))
		assert.Equal(t, "tok_new", m.Token())
		assert.Equal(t, "tok_new", fc.Token())
		tok, p := storedSession(t, store)
		assert.Equal(t, "tok_new", tok)
		assert.Equal(t, "CM1234", p.CrewID)
	})

	t.Run("rejected token signs out", func(t *testing.T) {
		store := metadata.NewMemoryRepository()
		fc := &fakeClient{RefreshErr: unauthorized()}
		m := signedIn(t, fc, store)

		assert.ErrorIs(t, m.Refresh(context.Background()), client.ErrUnauthorized)
		assert.Equal(t, SessionAnonymous, m.State())
	})

	t.Run("anonymous", func(t *testing.T) {
		m := newManager(&fakeClient{}, metadata.NewMemoryRepository(), nil)
		assert.ErrorIs(t, m.Refresh(context.Background()), ErrNotAuthenticated)
	})
}

func TestSignInWaitsForRevalidation(t *testing.T) {
	store := metadata.NewMemoryRepository()
	seedSession(t, store, "tok_expired", crewProfile(models.ApprovalApproved))

	entered := make(chan struct{})
	release := make(chan struct{})
	fc := &fakeClient{
		MeErr:    unauthorized(),
		MeHook:   func() { close(entered); <-release },
		LoginRet: &models.LoginResult{Token: "tok_new", Profile: crewProfile(models.ApprovalApproved)},
	}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))
	<-entered

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.SignIn(context.Background(), models.Credentials{Identifier: "CM1234", Secret: "pw"})
		assert.NoError(t, err)
	}()

	// sign-in is queued behind the in-flight revalidation
	time.Sleep(20 * time.Millisecond)
	fc.mu.Lock()
	assert.Zero(t, fc.LoginCalls)
	fc.mu.Unlock()

	close(release)
	m.Wait()
	wg.Wait()

	// the corrective sign-out ran first and did not clobber the new session
	assert.Equal(t, SessionAuthenticated, m.State())
	tok, _ := storedSession(t, store)
	assert.Equal(t, "tok_new", tok)
	assert.Equal(t, "tok_new", fc.Token())
}

func TestStoreAndMemoryStayConsistent(t *testing.T) {
	store := metadata.NewMemoryRepository()
	updated := crewProfile(models.ApprovalApproved)
	updated.Surnames = "Lopez Diaz"
	fc := &fakeClient{
		LoginRet:  &models.LoginResult{Token: "tok", Profile: crewProfile(models.ApprovalPending)},
		UpdateRet: &updated,
	}
	m := newManager(fc, store, nil)
	require.NoError(t, m.Start(context.Background()))

	check := func() {
		tok, p := storedSession(t, store)
		assert.Equal(t, m.Token(), tok)
		if p == nil {
			assert.Nil(t, m.Profile())
		} else {
			assert.Equal(t, *p, *m.Profile())
		}
	}
	m.OnChange(func(SessionState, *models.UserProfile) { check() })

	ctx := context.Background()
	steps := []func() error{
		func() error { _, err := m.SignIn(ctx, models.Credentials{Identifier: "CM1234", Secret: "pw"}); return err },
		func() error { _, err := m.UpdateProfile(ctx, models.ProfileUpdate{Surnames: ptr("Lopez Diaz")}); return err },
		func() error { return m.SignOut(ctx) },
		func() error { _, err := m.UpdateProfile(ctx, models.ProfileUpdate{Surnames: ptr("x")}); return err },
		func() error { _, err := m.SignIn(ctx, models.Credentials{Identifier: "CM1234", Secret: "pw"}); return err },
		func() error { return m.SignOut(ctx) },
	}
	for _, step := range steps {
		err := step()
		if err != nil {
			require.True(t, errors.Is(err, ErrNotAuthenticated), "unexpected error: %v", err)
		}
		check()
	}
}

func ptr[T any](v T) *T { return &v }
