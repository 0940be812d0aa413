package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/services"
	"github.com/dmitrijs2005/crewkeeper/internal/common"
)

// Register runs the enrollment flow: collect the draft, submit it, then ask
// for the emailed code until it is accepted or the user cancels. A flow left
// pending (e.g. on EOF) is resumed by the next Register call.
func (a *App) Register(ctx context.Context) error {
	if a.registration.State() != services.RegistrationInitiated {
		a.registration.Reset()
		if err := a.submitDraft(ctx); err != nil {
			return err
		}
	} else {
		a.println("Resuming pending registration")
	}
	return a.verifyLoop(ctx)
}

func (a *App) submitDraft(ctx context.Context) error {
	var d models.RegistrationDraft

	text := []struct {
		label string
		dst   *string
	}{
		{"Crew ID", &d.CrewID},
		{"Names", &d.Names},
		{"Surnames", &d.Surnames},
		{"Passport number", &d.PassportNumber},
		{"National ID (optional)", &d.NationalIDNumber},
		{"Airline IATA code", &d.AirlineCode},
		{"Email", &d.Email},
	}
	for _, f := range text {
		v, err := getSimpleText(a.reader, f.label, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	d.AirlineCode = strings.ToUpper(d.AirlineCode)

	if list, err := a.positions.ListPositions(ctx); err == nil {
		printPositions(a, list)
	} else {
		a.printErr("Could not load positions", err)
	}
	pos, err := getSimpleText(a.reader, "Position id", a.out)
	if err != nil {
		return err
	}
	d.PositionID, _ = strconv.Atoi(pos)

	img, err := getSimpleText(a.reader, "Photo path (optional)", a.out)
	if err != nil {
		return err
	}
	d.ImagePath = img

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)
	if string(password) != string(confirm) {
		a.println("Passwords do not match")
		return &models.ValidationError{Fields: map[string]string{models.FieldPassword: "passwords do not match"}}
	}
	d.Password = string(password)

	ch, err := a.registration.InitiateRegister(ctx, d)
	if err != nil {
		a.printErr("Registration failed", err)
		return err
	}
	a.printf("A 6-digit code was sent to %s; it expires in %d minutes.\n", ch.Email, ch.ExpiresInMinutes)
	return nil
}

func (a *App) verifyLoop(ctx context.Context) error {
	for {
		email := ""
		if ch := a.registration.Challenge(); ch != nil {
			email = ch.Email
		}
		input, err := getSimpleText(a.reader, "Code sent to "+email+" ('resend' for a new one, 'cancel' to stop)", a.out)
		if err != nil {
			return err
		}

		switch strings.ToLower(input) {
		case "cancel":
			if err := a.registration.Abandon(); err != nil {
				return err
			}
			a.registration.Reset()
			a.println("Registration cancelled")
			return nil

		case "resend":
			if _, err := a.registration.ResendPin(ctx); err != nil {
				if errors.Is(err, services.ErrCooldownActive) {
					a.printf("Please wait %d s before requesting a new code\n", a.registration.Cooldown())
				} else {
					a.printErr("Resend failed", err)
				}
				continue
			}
			a.println("A new code has been sent")

		default:
			fin, err := a.registration.VerifyEmail(ctx, input)
			if err != nil {
				a.printErr("Verification failed", err)
				continue
			}
			a.printf("Registration received for %s (%s). Status: %s\n", fin.FullName, fin.CrewID, fin.ApprovalState)
			a.println("You can sign in once your request is approved.")
			a.registration.Reset()
			return nil
		}
	}
}
