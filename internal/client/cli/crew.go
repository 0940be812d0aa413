package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/services"
)

// rosterService is the part of services.RosterService the CLI drives.
type rosterService interface {
	List(ctx context.Context, page int, search string) (*models.CrewPage, error)
	Get(ctx context.Context, id int64) (*models.CrewMember, error)
	Create(ctx context.Context, in models.CrewMemberInput) (*models.CrewMember, error)
	Update(ctx context.Context, id int64, update models.CrewMemberUpdate) (*models.CrewMember, error)
	Delete(ctx context.Context, id int64) error
}

const crewUsage = "Usage: crew [list [page] [search...] | show <id> | add | edit <id> | delete <id>]"

// Crew dispatches the roster subcommands. Without arguments it lists the
// first page.
func (a *App) Crew(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		a.println("Not signed in")
		return services.ErrNotAuthenticated
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list", "ls":
		page := 1
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				page, args = n, args[1:]
			}
		}
		return a.crewList(ctx, page, strings.Join(args, " "))
	case "add":
		return a.crewAdd(ctx)
	case "show", "edit", "delete", "rm":
		id, err := parseMemberID(args)
		if err != nil {
			a.println(crewUsage)
			return err
		}
		switch sub {
		case "show":
			return a.crewShow(ctx, id)
		case "edit":
			return a.crewEdit(ctx, id)
		default:
			return a.crewDelete(ctx, id)
		}
	default:
		a.println(crewUsage)
		return models.ErrValidation
	}
}

func parseMemberID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, models.ErrValidation
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, models.ErrValidation
	}
	return id, nil
}

func (a *App) crewList(ctx context.Context, page int, search string) error {
	res, err := a.roster.List(ctx, page, search)
	if err != nil {
		a.printErr("Could not load crew", err)
		return err
	}
	if len(res.Members) == 0 {
		a.println("No crew members found")
	}
	for _, m := range res.Members {
		a.printf("%6d  %-10s %-30s %-6s %s\n", m.ID, m.CrewID, m.FullName(), m.Position.Code, m.Airline.Code)
	}

	p := res.Pagination
	if pages := p.TotalPages(); pages > 0 {
		a.printf("Page %d of %d (%d total)\n", p.CurrentPage, pages, p.Total)
	}
	return nil
}

func (a *App) crewShow(ctx context.Context, id int64) error {
	m, err := a.roster.Get(ctx, id)
	if err != nil {
		a.printErr("Could not load crew member", err)
		return err
	}
	printMember(a, m)
	return nil
}

func printMember(a *App, m *models.CrewMember) {
	a.printf("Id:          %d\n", m.ID)
	a.printf("Crew ID:     %s\n", m.CrewID)
	a.printf("Name:        %s\n", m.FullName())
	a.printf("Passport:    %s\n", m.PassportNumber)
	if m.NationalIDNumber != "" {
		a.printf("National ID: %s\n", m.NationalIDNumber)
	}
	a.printf("Airline:     %s\n", m.Airline.Code)
	a.printf("Position:    %s (%s)\n", m.Position.Description, m.Position.Code)
	if m.CreatedAt != "" {
		a.printf("Added:       %s\n", m.CreatedAt)
	}
}

func (a *App) crewAdd(ctx context.Context) error {
	var in models.CrewMemberInput
	prompts := []struct {
		label string
		dst   *string
	}{
		{"Crew ID", &in.CrewID},
		{"Names", &in.Names},
		{"Surnames", &in.Surnames},
		{"Passport number", &in.PassportNumber},
		{"National ID (optional)", &in.NationalIDNumber},
	}
	for _, p := range prompts {
		v, err := getSimpleText(a.reader, p.label, a.out)
		if err != nil {
			return err
		}
		*p.dst = v
	}

	pos, err := getSimpleText(a.reader, "Position id", a.out)
	if err != nil {
		return err
	}
	in.PositionID, _ = strconv.Atoi(pos)

	if in.ImagePath, err = getSimpleText(a.reader, "Photo path (optional)", a.out); err != nil {
		return err
	}

	m, err := a.roster.Create(ctx, in)
	if err != nil {
		a.printErr("Could not add crew member", err)
		return err
	}
	a.printf("Crew member %s added with id %d\n", m.CrewID, m.ID)
	return nil
}

// crewEdit prompts like Update does; an empty answer keeps the value.
func (a *App) crewEdit(ctx context.Context, id int64) error {
	var u models.CrewMemberUpdate
	prompts := []struct {
		label string
		dst   **string
	}{
		{"Crew ID", &u.CrewID},
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
		n, err := strconv.Atoi(pos)
		if err != nil || n <= 0 {
			a.println("Position id must be a positive number")
			return models.ErrValidation
		}
		u.PositionID = &n
	}

	if u.ImagePath, err = getSimpleText(a.reader, "Photo path (empty to keep)", a.out); err != nil {
		return err
	}

	m, err := a.roster.Update(ctx, id, u)
	if errors.Is(err, services.ErrNothingToUpdate) {
		a.println("Nothing to update")
		return nil
	}
	if err != nil {
		a.printErr("Could not update crew member", err)
		return err
	}
	a.println("Crew member updated")
	printMember(a, m)
	return nil
}

func (a *App) crewDelete(ctx context.Context, id int64) error {
	answer, err := getSimpleText(a.reader, "Delete crew member "+strconv.FormatInt(id, 10)+"? (yes/no)", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") && !strings.EqualFold(answer, "y") {
		a.println("Cancelled")
		return nil
	}

	if err := a.roster.Delete(ctx, id); err != nil {
		a.printErr("Could not delete crew member", err)
		return err
	}
	a.println("Crew member deleted")
	return nil
}
