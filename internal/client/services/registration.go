package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/crewkeeper/internal/client/client"
	"github.com/dmitrijs2005/crewkeeper/internal/client/cooldown"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
)

// DefaultResendCooldown is the wait between verification code requests.
const DefaultResendCooldown = 60 * time.Second

type RegistrationState int

const (
	RegistrationIdle RegistrationState = iota
	RegistrationInitiated
	RegistrationVerified
	RegistrationAbandoned
)

func (s RegistrationState) String() string {
	switch s {
	case RegistrationInitiated:
		return "initiated"
	case RegistrationVerified:
		return "verified"
	case RegistrationAbandoned:
		return "abandoned"
	default:
		return "idle"
	}
}

// RegistrationCoordinator drives one two-phase enrollment: submit the draft,
// then confirm the emailed PIN. Operations that are illegal in the current
// state fail with ErrWrongPhase without touching the network. Nothing is
// retried automatically.
type RegistrationCoordinator struct {
	gateway  client.Client
	gate     ConnectivityReader
	timer    *cooldown.Timer
	cooldown time.Duration
	logger   logging.Logger

	mu        sync.Mutex
	state     RegistrationState
	draft     *models.RegistrationDraft
	challenge *models.VerificationChallenge
}

type RegistrationOption func(*RegistrationCoordinator)

// WithResendCooldown overrides DefaultResendCooldown.
func WithResendCooldown(d time.Duration) RegistrationOption {
	return func(c *RegistrationCoordinator) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithTimer injects the countdown, typically one built on a fake clock.
func WithTimer(t *cooldown.Timer) RegistrationOption {
	return func(c *RegistrationCoordinator) {
		if t != nil {
			c.timer = t
		}
	}
}

func WithRegistrationLogger(l logging.Logger) RegistrationOption {
	return func(c *RegistrationCoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewRegistrationCoordinator(gateway client.Client, gate ConnectivityReader, opts ...RegistrationOption) *RegistrationCoordinator {
	c := &RegistrationCoordinator{
		gateway:  gateway,
		gate:     gate,
		cooldown: DefaultResendCooldown,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timer == nil {
		c.timer = cooldown.New(nil)
	}
	c.logger = c.logger.With("component", "registration")
	return c
}

// InitiateRegister validates draft locally, submits it and, on success,
// starts the resend cooldown. It is refused while a previous flow is still
// awaiting verification; a finished or abandoned flow is replaced.
func (c *RegistrationCoordinator) InitiateRegister(ctx context.Context, draft models.RegistrationDraft) (*models.VerificationChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == RegistrationInitiated {
		return nil, ErrRegistrationInProgress
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if offline(c.gate) {
		return nil, ErrOffline
	}

	ch, err := c.gateway.InitiateRegister(ctx, draft)
	if err != nil {
		c.logger.Info(ctx, "registration request failed", "crew_id", draft.CrewID, "error", err)
		return nil, err
	}

	c.draft = &draft
	c.challenge = ch
	c.timer.Start(c.cooldown)
	c.setState(ctx, RegistrationInitiated)
	return cloneChallenge(ch), nil
}

// VerifyEmail confirms the PIN for the pending challenge. A PIN that is not
// exactly six digits is rejected locally. On a wrong or expired code the
// flow stays Initiated with draft and challenge kept.
func (c *RegistrationCoordinator) VerifyEmail(ctx context.Context, pin string) (*models.FinalizedRegistration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != RegistrationInitiated {
		return nil, ErrWrongPhase
	}
	if !models.ValidPIN(pin) {
		return nil, &models.ValidationError{Fields: map[string]string{models.FieldPIN: "the code must be exactly 6 digits"}}
	}
	if offline(c.gate) {
		return nil, ErrOffline
	}

	fin, err := c.gateway.VerifyEmail(ctx, c.challenge.VerificationKey, pin)
	if err != nil {
		c.logger.Info(ctx, "email verification failed", "crew_id", c.challenge.CrewID, "error", err)
		return nil, err
	}
	if fin.ApprovalState == "" {
		fin.ApprovalState = models.ApprovalPending
	}

	c.discard()
	c.setState(ctx, RegistrationVerified)
	return fin, nil
}

// ResendPin asks for a new code. It is refused with ErrCooldownActive while
// the countdown runs and restarts the countdown on success.
func (c *RegistrationCoordinator) ResendPin(ctx context.Context) (*models.VerificationChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != RegistrationInitiated {
		return nil, ErrWrongPhase
	}
	if left := c.timer.Remaining(); left > 0 {
		return nil, fmt.Errorf("%w (%d s)", ErrCooldownActive, left)
	}
	if offline(c.gate) {
		return nil, ErrOffline
	}

	ch, err := c.gateway.ResendPin(ctx, c.challenge.VerificationKey)
	if err != nil {
		c.logger.Info(ctx, "resend failed", "crew_id", c.challenge.CrewID, "error", err)
		return nil, err
	}
	if ch.VerificationKey == "" {
		ch.VerificationKey = c.challenge.VerificationKey
	}
	if ch.Email == "" {
		ch.Email = c.challenge.Email
	}
	if ch.CrewID == "" {
		ch.CrewID = c.challenge.CrewID
	}

	c.challenge = ch
	c.timer.Start(c.cooldown)
	c.logger.Info(ctx, "verification code resent", "crew_id", ch.CrewID)
	return cloneChallenge(ch), nil
}

// Abandon gives up on the pending flow.
func (c *RegistrationCoordinator) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != RegistrationInitiated {
		return ErrWrongPhase
	}
	c.discard()
	c.setState(context.Background(), RegistrationAbandoned)
	return nil
}

// Reset returns the coordinator to Idle from any state.
func (c *RegistrationCoordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discard()
	c.setState(context.Background(), RegistrationIdle)
}

func (c *RegistrationCoordinator) State() RegistrationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Challenge returns a copy of the pending challenge, or nil.
func (c *RegistrationCoordinator) Challenge() *models.VerificationChallenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneChallenge(c.challenge)
}

// Draft returns a copy of the submitted draft with the password blanked, or nil.
func (c *RegistrationCoordinator) Draft() *models.RegistrationDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return nil
	}
	d := *c.draft
	d.Password = ""
	return &d
}

// Cooldown returns the seconds left before ResendPin is allowed.
func (c *RegistrationCoordinator) Cooldown() int {
	return c.timer.Remaining()
}

// OnCooldownTick forwards countdown ticks, for progress display.
func (c *RegistrationCoordinator) OnCooldownTick(fn func(remaining int)) {
	c.timer.OnTick(fn)
}

// Close stops the countdown. The coordinator must not be used afterwards.
func (c *RegistrationCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discard()
}

func (c *RegistrationCoordinator) discard() {
	c.timer.Stop()
	if c.draft != nil {
		c.draft.Password = ""
	}
	c.draft = nil
	c.challenge = nil
}

func (c *RegistrationCoordinator) setState(ctx context.Context, to RegistrationState) {
	if c.state == to {
		return
	}
	c.logger.Info(ctx, "registration state changed", "from", c.state.String(), "to", to.String())
	c.state = to
}

func cloneChallenge(ch *models.VerificationChallenge) *models.VerificationChallenge {
	if ch == nil {
		return nil
	}
	c := *ch
	return &c
}
