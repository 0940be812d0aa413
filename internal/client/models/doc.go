// Package models defines the crew client's data model: the authenticated
// profile, the transient registration draft and the verification challenge
// issued by the backend. JSON tags follow the backend's field names.
package models
