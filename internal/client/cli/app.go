package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dmitrijs2005/crewkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/crewkeeper/internal/client/client"
	"github.com/dmitrijs2005/crewkeeper/internal/client/config"
	"github.com/dmitrijs2005/crewkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/crewkeeper/internal/client/services"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const appName = "crewkeeper"

// sessionService is the part of services.SessionManager the CLI drives.
type sessionService interface {
	Start(ctx context.Context) error
	Wait()
	State() services.SessionState
	Profile() *models.UserProfile
	SignIn(ctx context.Context, creds models.Credentials) (*models.UserProfile, error)
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error)
	Refresh(ctx context.Context) error
	Revalidate(ctx context.Context) error
}

// registrationService is the part of services.RegistrationCoordinator the CLI drives.
type registrationService interface {
	InitiateRegister(ctx context.Context, draft models.RegistrationDraft) (*models.VerificationChallenge, error)
	VerifyEmail(ctx context.Context, pin string) (*models.FinalizedRegistration, error)
	ResendPin(ctx context.Context) (*models.VerificationChallenge, error)
	Abandon() error
	Reset()
	State() services.RegistrationState
	Challenge() *models.VerificationChallenge
	Cooldown() int
	Close()
}

type positionCatalog interface {
	ListPositions(ctx context.Context) ([]models.Position, error)
}

type connectivityView interface {
	Snapshot() connectivity.Snapshot
}

type resumer interface {
	Resume(ctx context.Context) connectivity.State
}

// notifyResume relays resumeSignals to ch until stop is called.
var notifyResume = func(ch chan<- os.Signal) (stop func()) {
	if len(resumeSignals) == 0 {
		return func() {}
	}
	signal.Notify(ch, resumeSignals...)
	return func() { signal.Stop(ch) }
}

type App struct {
	config       *config.Config
	logger       logging.Logger
	session      sessionService
	registration registrationService
	positions    positionCatalog
	roster       rosterService
	gate         connectivityView
	metrics      prometheus.Gatherer

	reader *bufio.Reader
	out    io.Writer

	// run starts background work (connectivity loop); nil in tests.
	run     func(ctx context.Context)
	closers []func() error
}

// NewApp wires the store, gateway, connectivity gate and services from c.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, c, logger)
	if err != nil {
		logger.Error(ctx, "error opening session store", "backend", c.StoreBackend, "error", err)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	buildinfo.Register(reg)
	logger.Info(ctx, "crew client starting",
		"version", buildinfo.Version(),
		"server", c.ServerBaseURL,
		"store", c.StoreBackend,
	)

	gateway := client.NewHTTPClient(c.ServerBaseURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(logger.With("component", "gateway")),
		client.WithMetrics(client.NewMetrics(reg)),
	)

	gate := connectivity.New(connectivity.PingChecker(gateway),
		connectivity.WithInterval(c.OnlineCheckInterval),
		connectivity.WithLogger(logger.With("component", "connectivity")),
	)

	session := services.NewSessionManager(gateway, store, gate, logger)
	registration := services.NewRegistrationCoordinator(gateway, gate,
		services.WithResendCooldown(c.ResendCooldown),
		services.WithRegistrationLogger(logger),
	)

	a := &App{
		config:       c,
		logger:       logger,
		session:      session,
		registration: registration,
		positions:    gateway,
		roster:       services.NewRosterService(gateway, session, gate, logger),
		gate:         gate,
		metrics:      reg,
		reader:       bufio.NewReader(os.Stdin),
		out:          os.Stdout,
		closers:      []func() error{gateway.Close, closeStore},
	}

	a.run = func(ctx context.Context) {
		unsubscribe := gate.Subscribe(a.printConnectivity)
		defer unsubscribe()
		go a.watchResume(ctx, gate)
		gate.Run(ctx)
	}
	return a, nil
}

// openStore returns the configured session store and its release function.
func openStore(ctx context.Context, c *config.Config, logger logging.Logger) (metadata.Repository, func() error, error) {
	switch c.StoreBackend {
	case config.StoreFile:
		r, err := metadata.NewFileRepository(c.SessionFilePath, appName,
			metadata.WithFileLogger(logger.With("component", "store")),
		)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return metadata.NewRedisRepository(rdb, appName), rdb.Close, nil

	default:
		db, err := client.InitDatabase(ctx, c.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return metadata.NewSQLiteRepository(db), db.Close, nil
	}
}

// Run starts background work, drives the REPL and releases resources on return.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close releases the gateway and store.
func (a *App) Close() error {
	if a.registration != nil {
		a.registration.Close()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// watchResume re-checks connectivity every time the process is continued,
// since the last snapshot predates the stop.
func (a *App) watchResume(ctx context.Context, r resumer) {
	ch := make(chan os.Signal, 1)
	stop := notifyResume(ch)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			a.logger.Debug(ctx, "process resumed, re-checking connectivity")
			r.Resume(ctx)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.State() == services.SessionAuthenticated
}

func (a *App) printConnectivity(s connectivity.Snapshot) {
	switch s.State {
	case connectivity.Connected:
		a.println("[online]")
	case connectivity.Disconnected:
		a.println("[offline] server unreachable")
	}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// printErr shows the single user-facing message for err.
func (a *App) printErr(prefix string, err error) {
	a.printf("%s: %s\n", prefix, client.Message(err))
}
