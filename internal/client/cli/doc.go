// Package cli implements the interactive crew client.
//
// The App wires the configured session store, the REST gateway, the
// connectivity gate and the session and registration services, then runs a
// small REPL. Typical flow: restore the stored session (revalidated in the
// background), sign in or register, confirm the emailed code, inspect or
// update the profile.
//
// Commands
//
//   - login / logout / refresh
//   - register (draft prompts, then code entry with resend and cancel)
//   - whoami / update
//   - positions / status / stats
//
// Connectivity changes are printed as they happen. See App, Root and runREPL.
package cli
