package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/crewkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/services"
	"github.com/dmitrijs2005/crewkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for crew id and password and signs in. The backend's
// message is shown unchanged on failure.
func (a *App) Login(ctx context.Context) error {
	crewID, err := getSimpleText(a.reader, "Crew ID", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	p, err := a.session.SignIn(ctx, models.Credentials{Identifier: crewID, Secret: string(password)})
	if err != nil {
		a.printErr("Login failed", err)
		return err
	}

	a.printf("Welcome, %s (%s)\n", p.FullName(), p.ApprovalState)
	return nil
}

// Logout signs out. It never fails on remote errors.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.SignOut(ctx); err != nil {
		a.printErr("Logout incomplete", err)
		return err
	}
	a.println("Signed out")
	return nil
}

// WhoAmI refreshes the profile from the server when online and prints it.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.println("Not signed in")
		return services.ErrNotAuthenticated
	}

	if err := a.session.Revalidate(ctx); err != nil {
		if !a.isLoggedIn() {
			a.printErr("Session ended", err)
			return err
		}
		if !errors.Is(err, services.ErrOffline) {
			a.printErr("Could not refresh profile, showing cached copy", err)
		}
	}

	printProfile(a, a.session.Profile())
	return nil
}

func printProfile(a *App, p *models.UserProfile) {
	if p == nil {
		return
	}
	a.printf("Crew ID:     %s\n", p.CrewID)
	a.printf("Name:        %s\n", p.FullName())
	a.printf("Passport:    %s\n", p.PassportNumber)
	if p.NationalIDNumber != "" {
		a.printf("National ID: %s\n", p.NationalIDNumber)
	}
	a.printf("Airline:     %s\n", p.AirlineCode)
	a.printf("Position:    %s (%s)\n", p.Position.Description, p.Position.Code)
	a.printf("Status:      %s\n", p.ApprovalState)
	a.printf("Requested:   %s\n", p.RequestedAt)
	if p.ApprovedAt != "" {
		a.printf("Approved:    %s\n", p.ApprovedAt)
	}
}

// Refresh rotates the session token.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.session.Refresh(ctx); err != nil {
		a.printErr("Refresh failed", err)
		return err
	}
	a.println("Session refreshed")
	return nil
}

// Update prompts for profile fields; an empty answer keeps the current value.
func (a *App) Update(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.println("Not signed in")
		return services.ErrNotAuthenticated
	}

	var u models.ProfileUpdate
	prompts := []struct {
		label string
		dst   **string
	}{
		{"Names", &u.Names},
		{"Surnames", &u.Surnames},
		{"Passport number", &u.PassportNumber},
		{"National ID", &u.NationalIDNumber},
	}
	for _, p := range prompts {
		v, err := getSimpleText(a.reader, p.label+" (empty to keep)", a.out)
		if err != nil {
			return err
		}
		if v != "" {
			*p.dst = &v
		}
	}

	pos, err := getSimpleText(a.reader, "Position id (empty to keep)", a.out)
	if err != nil {
		return err
	}
	if pos != "" {
		id, err := strconv.Atoi(pos)
		if err != nil || id <= 0 {
			a.println("Position id must be a positive number")
			return models.ErrValidation
		}
		u.PositionID = &id
	}

	img, err := getSimpleText(a.reader, "Photo path (empty to keep)", a.out)
	if err != nil {
		return err
	}
	u.ImagePath = img

	if u.IsEmpty() {
		a.println("Nothing to update")
		return nil
	}

	p, err := a.session.UpdateProfile(ctx, u)
	if err != nil {
		a.printErr("Update failed", err)
		return err
	}
	a.println("Profile updated")
	printProfile(a, p)
	return nil
}

// Status prints session, connectivity and registration state.
func (a *App) Status(_ context.Context) error {
	state := a.session.State()
	line := "Session:      " + state.String()
	if p := a.session.Profile(); p != nil {
		line += " as " + p.CrewID
	}
	a.println(line)

	if a.gate != nil {
		s := a.gate.Snapshot()
		conn := s.State.String()
		if s.State == connectivity.Connected && s.ConnectionType != "" {
			conn += " via " + s.ConnectionType
		}
		a.println("Connectivity: " + conn)
	}

	rs := a.registration.State()
	line = "Registration: " + rs.String()
	if rs == services.RegistrationInitiated {
		if ch := a.registration.Challenge(); ch != nil {
			line += " (code sent to " + ch.Email + ")"
		}
		if left := a.registration.Cooldown(); left > 0 {
			line += ", resend in " + strconv.Itoa(left) + "s"
		}
	}
	a.println(line)
	return nil
}

// Positions lists the selectable crew positions.
func (a *App) Positions(ctx context.Context) error {
	list, err := a.positions.ListPositions(ctx)
	if err != nil {
		a.printErr("Could not load positions", err)
		return err
	}
	printPositions(a, list)
	return nil
}

func printPositions(a *App, list []models.Position) {
	if len(list) == 0 {
		a.println("No positions available")
		return
	}
	for _, p := range list {
		a.printf("%4d  %-6s %s\n", p.ID, p.Code, strings.TrimSpace(p.Description))
	}
}
