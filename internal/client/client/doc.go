// Package client is the crew backend gateway.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the crew
//     REST API: Login, InitiateRegister, VerifyEmail, ResendPin,
//     FetchCurrentProfile, UpdateProfile, RefreshToken, ListPositions,
//     Logout and Ping.
//  2. A concrete net/http implementation (see HTTPClient) that attaches the
//     bearer token, tags every call with an X-Request-ID, unwraps the
//     {success, data, message} envelope and records Prometheus metrics.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) for the CLI,
//     opening SQLite and applying the embedded goose migrations.
//
// # Error Handling
//
// Every failure is an *APIError whose Kind is one of the sentinels
// ErrUnavailable, ErrUnauthorized, ErrCredentialsRejected,
// ErrServerValidation, ErrChallengeInvalid or ErrUnknown; match with
// errors.Is. APIError.Error returns the single message meant for the user.
// For 422 responses that message belongs to the highest-priority failing
// field (crew_id, then pasaporte, then email, then alphabetical).
//
// Local validation failures surface as *models.ValidationError and match
// ErrValidation; they never reach the network.
//
// # Concurrency
//
// HTTPClient is safe for concurrent use. All network operations accept a
// context.Context and honor cancellation.
package client
