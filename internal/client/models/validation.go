package models

import (
	"errors"
	"sort"
)

// Backend field names used both for local validation and for 422 payloads.
const (
	FieldCrewID     = "crew_id"
	FieldNames      = "nombres"
	FieldSurnames   = "apellidos"
	FieldPassport   = "pasaporte"
	FieldNationalID = "identidad"
	FieldPosition   = "posicion"
	FieldAirline    = "iata_aerolinea"
	FieldPassword   = "password"
	FieldEmail      = "email"
	FieldImage      = "image"
	FieldPIN        = "pin"
)

// FieldPriority orders fields when a single message has to be shown for a
// multi-field failure. Fields not listed follow in alphabetical order.
var FieldPriority = []string{FieldCrewID, FieldPassport, FieldEmail}

// ErrValidation is matched by every local validation failure.
var ErrValidation = errors.New("validation error")

// ValidationError is a local, pre-network validation failure.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return PickField(keys(e.Fields), func(f string) string { return e.Fields[f] })
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PrimaryField returns the field whose message Error reports.
func (e *ValidationError) PrimaryField() string {
	return primaryField(keys(e.Fields))
}

// PickField selects the highest-priority field among fields and returns
// msg(field). It returns "" when fields is empty.
func PickField(fields []string, msg func(string) string) string {
	f := primaryField(fields)
	if f == "" {
		return ""
	}
	return msg(f)
}

func primaryField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	present := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		present[f] = struct{}{}
	}
	for _, f := range FieldPriority {
		if _, ok := present[f]; ok {
			return f
		}
	}
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return sorted[0]
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
