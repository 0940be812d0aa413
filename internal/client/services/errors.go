package services

import (
	"errors"

	"github.com/dmitrijs2005/crewkeeper/internal/client/connectivity"
)

var (
	// ErrOffline is returned before any network call when the connectivity
	// gate reports Disconnected.
	ErrOffline = connectivity.ErrOffline

	ErrNotAuthenticated = errors.New("not signed in")

	// ErrWrongPhase means the registration operation is not legal in the
	// coordinator's current state.
	ErrWrongPhase = errors.New("operation not allowed at this registration step")

	ErrRegistrationInProgress = errors.New("a registration is already awaiting verification")

	ErrCooldownActive = errors.New("please wait before requesting a new code")

	ErrNothingToUpdate = errors.New("nothing to update")
)

// ConnectivityReader is the part of connectivity.Gate the services consult.
type ConnectivityReader interface {
	Current() connectivity.State
}

func offline(g ConnectivityReader) bool {
	return g != nil && g.Current() == connectivity.Disconnected
}
