package client

import (
	"context"

	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
)

// Client is the backend contract used by the session and registration
// services. Apart from the attached bearer token it is stateless; only the
// session manager may call SetToken or ClearToken.
type Client interface {
	Login(ctx context.Context, identifier, secret string) (*models.LoginResult, error)
	InitiateRegister(ctx context.Context, draft models.RegistrationDraft) (*models.VerificationChallenge, error)
	VerifyEmail(ctx context.Context, verificationKey, pin string) (*models.FinalizedRegistration, error)
	ResendPin(ctx context.Context, verificationKey string) (*models.VerificationChallenge, error)
	FetchCurrentProfile(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error)
	RefreshToken(ctx context.Context) (string, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error

	SetToken(token string)
	ClearToken()
	HasToken() bool
	Close() error
}
