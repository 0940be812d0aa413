// Package connectivity tracks whether the crew backend is reachable.
//
// A Gate fetches the current state once at startup and emits a snapshot,
// then re-checks on an interval and accepts pushed notifications. Listeners
// are called in registration order and see every transition; the first
// emission may go straight from Unknown to Connected.
//
// Session and registration services consult Gate.Current before network
// calls and short-circuit only when the state is definitively Disconnected.
package connectivity
