package models

import "strings"

// FieldMemberID identifies a roster entry in local validation errors.
const FieldMemberID = "id_tripulante"

// Airline is the carrier a roster entry belongs to.
type Airline struct {
	ID          int    `json:"id_aerolinea"`
	Description string `json:"descripcion"`
	Code        string `json:"siglas"`
}

// CrewMember is one entry of the airline's crew roster.
type CrewMember struct {
	ID               int64    `json:"id_tripulante"`
	CrewID           string   `json:"crew_id"`
	Names            string   `json:"nombres"`
	Surnames         string   `json:"apellidos"`
	DisplayName      string   `json:"nombres_apellidos"`
	PassportNumber   string   `json:"pasaporte"`
	NationalIDNumber string   `json:"identidad,omitempty"`
	PositionID       int      `json:"posicion"`
	Position         Position `json:"posicion_info"`
	Airline          Airline  `json:"aerolinea"`
	ImageURL         string   `json:"imagen_url,omitempty"`
	CreatedAt        string   `json:"fecha_creacion"`
}

// FullName prefers the backend's display name.
func (m CrewMember) FullName() string {
	if n := strings.TrimSpace(m.DisplayName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(m.Names) + " " + strings.TrimSpace(m.Surnames))
}

// Pagination is the paging block returned next to a roster page.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// TotalPages is ceil(Total/PerPage), or 0 when the page size is unknown.
func (p Pagination) TotalPages() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// CrewPage is one page of the roster.
type CrewPage struct {
	Members    []CrewMember
	Pagination Pagination
}

// CrewMemberInput is a new roster entry. AirlineCode is the signed-in
// member's airline.
type CrewMemberInput struct {
	CrewID           string
	Names            string
	Surnames         string
	PassportNumber   string
	NationalIDNumber string
	PositionID       int
	AirlineCode      string
	ImagePath        string
}

// Validate reports every missing required field.
func (in CrewMemberInput) Validate() error {
	fields := map[string]string{}
	required := []struct {
		field string
		value string
		msg   string
	}{
		{FieldCrewID, in.CrewID, "crew id is required"},
		{FieldNames, in.Names, "names are required"},
		{FieldSurnames, in.Surnames, "surnames are required"},
		{FieldPassport, in.PassportNumber, "passport number is required"},
		{FieldAirline, in.AirlineCode, "airline is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields[r.field] = r.msg
		}
	}
	if in.PositionID <= 0 {
		fields[FieldPosition] = "position must be selected"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// CrewMemberUpdate is a partial roster change; nil fields are untouched.
type CrewMemberUpdate struct {
	CrewID           *string
	Names            *string
	Surnames         *string
	PassportNumber   *string
	NationalIDNumber *string
	PositionID       *int
	AirlineCode      string
	ImagePath        string
}

// IsEmpty ignores AirlineCode, which is always sent alongside a change.
func (u CrewMemberUpdate) IsEmpty() bool {
	return u.CrewID == nil && u.Names == nil && u.Surnames == nil && u.PassportNumber == nil &&
		u.NationalIDNumber == nil && u.PositionID == nil && u.ImagePath == ""
}
