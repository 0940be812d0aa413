package models

import "strings"

// ApprovalState is the backend-owned review decision for a crew member.
// The client only ever copies it from a server response.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "Pendiente"
	ApprovalApproved ApprovalState = "Aprobado"
	ApprovalDenied   ApprovalState = "Denegado"
)

// Valid reports whether s is one of the known states.
func (s ApprovalState) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalDenied:
		return true
	}
	return false
}

type Position struct {
	ID          int    `json:"id_posicion"`
	Code        string `json:"codigo_posicion"`
	Description string `json:"descripcion"`
}

// UserProfile is the crew member record as last fetched from the backend.
type UserProfile struct {
	RequestID        int64         `json:"id_solicitud"`
	CrewID           string        `json:"crew_id"`
	Names            string        `json:"nombres"`
	Surnames         string        `json:"apellidos"`
	PassportNumber   string        `json:"pasaporte"`
	NationalIDNumber string        `json:"identidad,omitempty"`
	AirlineCode      string        `json:"iata_aerolinea"`
	Position         Position      `json:"posicion"`
	ImageURL         string        `json:"imagen_url,omitempty"`
	IsActive         bool          `json:"activo"`
	ApprovalState    ApprovalState `json:"estado"`
	RequestedAt      string        `json:"fecha_solicitud"`
	ApprovedAt       string        `json:"fecha_aprobacion,omitempty"`
}

// FullName joins names and surnames the way the backend displays them.
func (p UserProfile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.Names) + " " + strings.TrimSpace(p.Surnames))
}

// Complete reports whether the record carries the minimum a cached session
// needs to be trusted at startup.
func (p UserProfile) Complete() bool {
	return p.CrewID != ""
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched by
// the backend; ImagePath, when set, is uploaded as the new photo.
type ProfileUpdate struct {
	Names            *string
	Surnames         *string
	PassportNumber   *string
	NationalIDNumber *string
	PositionID       *int
	ImagePath        string
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Names == nil && u.Surnames == nil && u.PassportNumber == nil &&
		u.NationalIDNumber == nil && u.PositionID == nil && u.ImagePath == ""
}

// Credentials are held only for the duration of a sign-in call.
type Credentials struct {
	Identifier string
	Secret     string
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token   string      `json:"token"`
	Profile UserProfile `json:"tripulante"`
}
