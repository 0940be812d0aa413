// Package common contains constants and small helpers shared by the crew
// client packages.
package common

// Header names and media types used on every backend request.
const (
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	MediaTypeJSON = "application/json"

	BearerPrefix = "Bearer "
)

// Local storage keys for the persisted session. Both are always written
// and cleared together.
const (
	StorageKeyToken   = "session.token"
	StorageKeyProfile = "session.profile"
)
