package models

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// RegistrationDraft is everything needed to request enrollment. It lives in
// memory only, for the duration of one registration flow.
type RegistrationDraft struct {
	CrewID           string
	Names            string
	Surnames         string
	PassportNumber   string
	NationalIDNumber string
	PositionID       int
	AirlineCode      string
	Password         string
	Email            string
	// ImagePath is the local photo reference produced by the picker.
	ImagePath string
}

// Validate checks the draft locally. The returned error is a
// *ValidationError listing every failing field, or nil.
func (d RegistrationDraft) Validate() error {
	fields := map[string]string{}

	required := []struct {
		field string
		value string
		msg   string
	}{
		{FieldCrewID, d.CrewID, "crew id is required"},
		{FieldNames, d.Names, "names are required"},
		{FieldSurnames, d.Surnames, "surnames are required"},
		{FieldPassport, d.PassportNumber, "passport number is required"},
		{FieldAirline, d.AirlineCode, "airline must be selected"},
		{FieldPassword, d.Password, "password is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields[r.field] = r.msg
		}
	}

	if d.PositionID <= 0 {
		fields[FieldPosition] = "position must be selected"
	}

	if !ValidEmail(d.Email) {
		fields[FieldEmail] = "email address is not valid"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// ValidEmail accepts a bare addr-spec ("a@b.c"), rejecting display names.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domain, ok := strings.Cut(addr.Address, "@")
	return ok && strings.Contains(domain, ".")
}

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidPIN reports whether pin is exactly six ASCII digits.
func ValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// VerificationChallenge correlates an email address with a one-time PIN.
type VerificationChallenge struct {
	VerificationKey  string `json:"verification_key"`
	Email            string `json:"email"`
	CrewID           string `json:"crew_id"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
	// IssuedAt is stamped locally when the response is received.
	IssuedAt time.Time `json:"-"`
}

// ExpiresAt is the local estimate of when the PIN stops being accepted.
func (c VerificationChallenge) ExpiresAt() time.Time {
	return c.IssuedAt.Add(time.Duration(c.ExpiresInMinutes) * time.Minute)
}

// FinalizedRegistration summarises a verified enrollment request.
type FinalizedRegistration struct {
	CrewID        string        `json:"crew_id"`
	FullName      string        `json:"nombres_apellidos"`
	ApprovalState ApprovalState `json:"estado"`
	RequestedAt   string        `json:"fecha_solicitud"`
}
