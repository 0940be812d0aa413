package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
)

// CrewRoster is the airline roster API. Every call needs an attached token.
type CrewRoster interface {
	ListCrew(ctx context.Context, page int, search string) (*models.CrewPage, error)
	GetCrewMember(ctx context.Context, id int64) (*models.CrewMember, error)
	CreateCrewMember(ctx context.Context, in models.CrewMemberInput) (*models.CrewMember, error)
	UpdateCrewMember(ctx context.Context, id int64, update models.CrewMemberUpdate) (*models.CrewMember, error)
	DeleteCrewMember(ctx context.Context, id int64) error
}

var _ CrewRoster = (*HTTPClient)(nil)

// ListCrew reads one roster page. Pages start at 1; search is optional.
func (c *HTTPClient) ListCrew(ctx context.Context, page int, search string) (*models.CrewPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}

	r, _ := jsonRequest(EndpointCrewList, http.MethodGet, "/crew?"+q.Encode(), nil)
	var res models.CrewPage
	if err := c.doPaged(ctx, r, &res.Members, &res.Pagination); err != nil {
		return nil, err
	}
	if res.Pagination.CurrentPage == 0 {
		res.Pagination.CurrentPage = page
	}
	return &res, nil
}

func (c *HTTPClient) GetCrewMember(ctx context.Context, id int64) (*models.CrewMember, error) {
	r, _ := jsonRequest(EndpointCrewGet, http.MethodGet, crewPath(id), nil)
	var m models.CrewMember
	if err := c.do(ctx, r, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateCrewMember always posts multipart, with the photo when one is given.
func (c *HTTPClient) CreateCrewMember(ctx context.Context, in models.CrewMemberInput) (*models.CrewMember, error) {
	fields := []formField{
		{models.FieldCrewID, in.CrewID},
		{models.FieldNames, in.Names},
		{models.FieldSurnames, in.Surnames},
		{models.FieldPassport, in.PassportNumber},
		{models.FieldPosition, strconv.Itoa(in.PositionID)},
		{models.FieldAirline, in.AirlineCode},
		{models.FieldNationalID, in.NationalIDNumber},
	}
	r, err := multipartRequest(EndpointCrewCreate, http.MethodPost, "/crew", fields, in.ImagePath)
	if err != nil {
		return nil, err
	}

	var m models.CrewMember
	if err := c.do(ctx, r, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

type updateCrewRequest struct {
	CrewID           *string `json:"crew_id,omitempty"`
	Names            *string `json:"nombres,omitempty"`
	Surnames         *string `json:"apellidos,omitempty"`
	PassportNumber   *string `json:"pasaporte,omitempty"`
	NationalIDNumber *string `json:"identidad,omitempty"`
	PositionID       *int    `json:"posicion,omitempty"`
	AirlineCode      string  `json:"iata_aerolinea,omitempty"`
}

// UpdateCrewMember sends JSON, or multipart when a new photo is attached.
func (c *HTTPClient) UpdateCrewMember(ctx context.Context, id int64, update models.CrewMemberUpdate) (*models.CrewMember, error) {
	var (
		r   request
		err error
	)
	if update.ImagePath == "" {
		r, err = jsonRequest(EndpointCrewUpdate, http.MethodPut, crewPath(id), updateCrewRequest{
			CrewID:           update.CrewID,
			Names:            update.Names,
			Surnames:         update.Surnames,
			PassportNumber:   update.PassportNumber,
			NationalIDNumber: update.NationalIDNumber,
			PositionID:       update.PositionID,
			AirlineCode:      update.AirlineCode,
		})
	} else {
		var fields []formField
		add := func(name string, v *string) {
			if v != nil {
				fields = append(fields, formField{name, *v})
			}
		}
		add(models.FieldCrewID, update.CrewID)
		add(models.FieldNames, update.Names)
		add(models.FieldSurnames, update.Surnames)
		add(models.FieldPassport, update.PassportNumber)
		add(models.FieldNationalID, update.NationalIDNumber)
		if update.PositionID != nil {
			fields = append(fields, formField{models.FieldPosition, strconv.Itoa(*update.PositionID)})
		}
		fields = append(fields, formField{models.FieldAirline, update.AirlineCode})
		r, err = multipartRequest(EndpointCrewUpdate, http.MethodPut, crewPath(id), fields, update.ImagePath)
	}
	if err != nil {
		return nil, err
	}

	var m models.CrewMember
	if err := c.do(ctx, r, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) DeleteCrewMember(ctx context.Context, id int64) error {
	r, _ := jsonRequest(EndpointCrewDelete, http.MethodDelete, crewPath(id), nil)
	return c.do(ctx, r, nil)
}

func crewPath(id int64) string {
	return fmt.Sprintf("/crew/%d", id)
}
