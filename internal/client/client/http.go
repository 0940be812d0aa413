package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/common"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
	"github.com/google/uuid"
)

// Endpoint names, used for error classification and metric labels.
const (
	EndpointLogin            = "login"
	EndpointInitiateRegister = "initiate_register"
	EndpointVerifyEmail      = "verify_email"
	EndpointResendPin        = "resend_pin"
	EndpointMe               = "me"
	EndpointUpdateProfile    = "update_profile"
	EndpointRefresh          = "refresh"
	EndpointPositions        = "positions"
	EndpointLogout           = "logout"
	EndpointPing             = "ping"
	EndpointCrewList         = "crew_list"
	EndpointCrewGet          = "crew_get"
	EndpointCrewCreate       = "crew_create"
	EndpointCrewUpdate       = "crew_update"
	EndpointCrewDelete       = "crew_delete"
)

// HTTPClient talks to the crew REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	metrics    *Metrics
	now        func() time.Time

	mu    sync.RWMutex
	token string
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client (timeouts, TLS, test servers).
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		h.httpClient.Timeout = d
	}
}

func WithLogger(l logging.Logger) Option {
	return func(h *HTTPClient) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *HTTPClient) {
		h.metrics = m
	}
}

// WithClock overrides the time source used to stamp challenges.
func WithClock(now func() time.Time) Option {
	return func(h *HTTPClient) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHTTPClient builds a gateway for baseURL, e.g. "https://crew.example.com/api".
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) ClearToken() {
	c.SetToken("")
}

func (c *HTTPClient) HasToken() bool {
	return c.currentToken() != ""
}

func (c *HTTPClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// envelope is the common response wrapper.
type envelope struct {
	Success    *bool               `json:"success"`
	Data       json.RawMessage     `json:"data"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors"`
	Pagination *models.Pagination  `json:"pagination"`
}

// request is one prepared call.
type request struct {
	endpoint    string
	method      string
	path        string
	body        []byte
	contentType string
}

func jsonRequest(endpoint, method, path string, payload any) (request, error) {
	r := request{endpoint: endpoint, method: method, path: path}
	if payload == nil {
		return r, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return r, fmt.Errorf("failed to encode request: %w", err)
	}
	r.body = b
	r.contentType = common.MediaTypeJSON
	return r, nil
}

// do performs r and decodes envelope.data into out (when out is non-nil).
func (c *HTTPClient) do(ctx context.Context, r request, out any) error {
	return c.doPaged(ctx, r, out, nil)
}

// doPaged is do that also copies envelope.pagination into page.
func (c *HTTPClient) doPaged(ctx context.Context, r request, out any, page *models.Pagination) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe(r.endpoint, outcome(err), time.Since(start))
	}()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return &APIError{Kind: ErrUnknown, Endpoint: r.endpoint, Message: "could not build request", Err: err}
	}

	reqID := uuid.NewString()
	req.Header.Set(common.HeaderAccept, common.MediaTypeJSON)
	req.Header.Set(common.HeaderRequestID, reqID)
	if r.contentType != "" {
		req.Header.Set(common.HeaderContentType, r.contentType)
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set(common.HeaderAuthorization, common.BearerPrefix+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "backend unreachable", "endpoint", r.endpoint, "request_id", reqID, "error", err)
		return &APIError{Kind: ErrUnavailable, Endpoint: r.endpoint, Message: "unable to reach the server", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: ErrUnavailable, Endpoint: r.endpoint, Status: resp.StatusCode, Message: "connection lost while reading the response", Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && decodeErr == nil && (env.Success == nil || *env.Success) {
		if page != nil && env.Pagination != nil {
			*page = *env.Pagination
		}
		if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
			if out != nil {
				return &APIError{Kind: ErrUnknown, Endpoint: r.endpoint, Status: resp.StatusCode, Message: "invalid response from server"}
			}
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Kind: ErrUnknown, Endpoint: r.endpoint, Status: resp.StatusCode, Message: "invalid response from server", Err: err}
		}
		return nil
	}
	if ok && decodeErr != nil {
		if out == nil {
			// Bodyless 2xx (e.g. 204 on logout).
			return nil
		}
		return &APIError{Kind: ErrUnknown, Endpoint: r.endpoint, Status: resp.StatusCode, Message: "invalid response from server", Err: decodeErr}
	}

	apiErr := classify(r.endpoint, resp.StatusCode, env)
	c.logger.Info(ctx, "backend call failed",
		"endpoint", r.endpoint, "status", resp.StatusCode, "request_id", reqID, "message", apiErr.Message)
	return apiErr
}

// classify turns a failed response into an APIError.
func classify(endpoint string, status int, env envelope) *APIError {
	e := &APIError{Endpoint: endpoint, Status: status, Message: strings.TrimSpace(env.Message)}

	switch {
	case status == http.StatusUnprocessableEntity:
		e.Kind = ErrServerValidation
		e.Fields = env.Errors
		if msg := pickFieldMessage(env.Errors); msg != "" {
			e.Message = msg
		}
	case endpoint == EndpointLogin && (status < 500):
		e.Kind = ErrCredentialsRejected
	case status == http.StatusUnauthorized:
		e.Kind = ErrUnauthorized
	case (endpoint == EndpointVerifyEmail || endpoint == EndpointResendPin) &&
		(status < 300 || status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusGone):
		e.Kind = ErrChallengeInvalid
	default:
		e.Kind = ErrUnknown
	}

	if e.Message == "" {
		e.Message = defaultMessage(e.Kind, status)
	}
	return e
}

func defaultMessage(kind error, status int) string {
	switch kind {
	case ErrCredentialsRejected:
		return "invalid credentials"
	case ErrUnauthorized:
		return "session expired, please sign in again"
	case ErrServerValidation:
		return "the submitted data is not valid"
	case ErrChallengeInvalid:
		return "verification code is invalid or has expired"
	default:
		if status == 0 {
			return "unexpected server response"
		}
		return fmt.Sprintf("unexpected server response (HTTP %d)", status)
	}
}

func isKind(err, kind error) bool {
	return errors.Is(err, kind)
}

type loginRequest struct {
	CrewID   string `json:"crew_id"`
	Password string `json:"password"`
}

func (c *HTTPClient) Login(ctx context.Context, identifier, secret string) (*models.LoginResult, error) {
	r, err := jsonRequest(EndpointLogin, http.MethodPost, "/auth/login", loginRequest{CrewID: identifier, Password: secret})
	if err != nil {
		return nil, err
	}
	var res models.LoginResult
	if err := c.do(ctx, r, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &APIError{Kind: ErrUnknown, Endpoint: EndpointLogin, Status: http.StatusOK, Message: "invalid response from server"}
	}
	return &res, nil
}

func (c *HTTPClient) InitiateRegister(ctx context.Context, draft models.RegistrationDraft) (*models.VerificationChallenge, error) {
	fields := []formField{
		{models.FieldCrewID, draft.CrewID},
		{models.FieldNames, draft.Names},
		{models.FieldSurnames, draft.Surnames},
		{models.FieldPassport, draft.PassportNumber},
		{models.FieldNationalID, draft.NationalIDNumber},
		{models.FieldPosition, strconv.Itoa(draft.PositionID)},
		{models.FieldAirline, draft.AirlineCode},
		{models.FieldPassword, draft.Password},
		{models.FieldEmail, draft.Email},
	}
	r, err := multipartRequest(EndpointInitiateRegister, http.MethodPost, "/auth/initiate-register", fields, draft.ImagePath)
	if err != nil {
		return nil, err
	}

	var ch models.VerificationChallenge
	if err := c.do(ctx, r, &ch); err != nil {
		return nil, err
	}
	ch.IssuedAt = c.now()
	return &ch, nil
}

type verifyEmailRequest struct {
	VerificationKey string `json:"verification_key"`
	PIN             string `json:"pin"`
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, verificationKey, pin string) (*models.FinalizedRegistration, error) {
	r, err := jsonRequest(EndpointVerifyEmail, http.MethodPost, "/auth/verify-email", verifyEmailRequest{VerificationKey: verificationKey, PIN: pin})
	if err != nil {
		return nil, err
	}
	var fin models.FinalizedRegistration
	if err := c.do(ctx, r, &fin); err != nil {
		return nil, err
	}
	return &fin, nil
}

type resendPinRequest struct {
	VerificationKey string `json:"verification_key"`
}

func (c *HTTPClient) ResendPin(ctx context.Context, verificationKey string) (*models.VerificationChallenge, error) {
	r, err := jsonRequest(EndpointResendPin, http.MethodPost, "/auth/resend-pin", resendPinRequest{VerificationKey: verificationKey})
	if err != nil {
		return nil, err
	}
	var ch models.VerificationChallenge
	if err := c.do(ctx, r, &ch); err != nil {
		return nil, err
	}
	if ch.VerificationKey == "" {
		ch.VerificationKey = verificationKey
	}
	ch.IssuedAt = c.now()
	return &ch, nil
}

func (c *HTTPClient) FetchCurrentProfile(ctx context.Context) (*models.UserProfile, error) {
	r, _ := jsonRequest(EndpointMe, http.MethodGet, "/auth/me", nil)
	var p models.UserProfile
	if err := c.do(ctx, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type updateProfileRequest struct {
	Names            *string `json:"nombres,omitempty"`
	Surnames         *string `json:"apellidos,omitempty"`
	PassportNumber   *string `json:"pasaporte,omitempty"`
	NationalIDNumber *string `json:"identidad,omitempty"`
	PositionID       *int    `json:"posicion,omitempty"`
}

// UpdateProfile sends JSON, or multipart when a new photo is attached.
func (c *HTTPClient) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error) {
	var (
		r   request
		err error
	)
	if update.ImagePath == "" {
		r, err = jsonRequest(EndpointUpdateProfile, http.MethodPut, "/auth/me", updateProfileRequest{
			Names:            update.Names,
			Surnames:         update.Surnames,
			PassportNumber:   update.PassportNumber,
			NationalIDNumber: update.NationalIDNumber,
			PositionID:       update.PositionID,
		})
	} else {
		var fields []formField
		add := func(name string, v *string) {
			if v != nil {
				fields = append(fields, formField{name, *v})
			}
		}
		add(models.FieldNames, update.Names)
		add(models.FieldSurnames, update.Surnames)
		add(models.FieldPassport, update.PassportNumber)
		add(models.FieldNationalID, update.NationalIDNumber)
		if update.PositionID != nil {
			fields = append(fields, formField{models.FieldPosition, strconv.Itoa(*update.PositionID)})
		}
		r, err = multipartRequest(EndpointUpdateProfile, http.MethodPut, "/auth/me", fields, update.ImagePath)
	}
	if err != nil {
		return nil, err
	}

	var p models.UserProfile
	if err := c.do(ctx, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type refreshResponse struct {
	Token string `json:"token"`
}

// RefreshToken exchanges the attached token for a new one. The caller
// decides whether to attach the result.
func (c *HTTPClient) RefreshToken(ctx context.Context) (string, error) {
	r, _ := jsonRequest(EndpointRefresh, http.MethodPost, "/auth/refresh", nil)
	var res refreshResponse
	if err := c.do(ctx, r, &res); err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", &APIError{Kind: ErrUnknown, Endpoint: EndpointRefresh, Status: http.StatusOK, Message: "invalid response from server"}
	}
	return res.Token, nil
}

// ListPositions reads the position catalog. Older backends only serve the
// short path, so a non-network failure on the primary path is retried there.
func (c *HTTPClient) ListPositions(ctx context.Context) ([]models.Position, error) {
	var out []models.Position

	r, _ := jsonRequest(EndpointPositions, http.MethodGet, "/crew/posiciones/lista", nil)
	err := c.do(ctx, r, &out)
	if err == nil {
		return c.validPositions(ctx, out), nil
	}
	if isKind(err, ErrUnavailable) || isKind(err, ErrUnauthorized) {
		return nil, err
	}

	c.logger.Debug(ctx, "positions primary path failed, trying fallback", "error", err)
	r.path = "/crew/posiciones"
	out = nil
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return c.validPositions(ctx, out), nil
}

// validPositions drops entries that cannot be selected: no positive id,
// no code or no description.
func (c *HTTPClient) validPositions(ctx context.Context, list []models.Position) []models.Position {
	valid := make([]models.Position, 0, len(list))
	for _, p := range list {
		if p.ID <= 0 || strings.TrimSpace(p.Code) == "" || strings.TrimSpace(p.Description) == "" {
			continue
		}
		valid = append(valid, p)
	}
	if dropped := len(list) - len(valid); dropped > 0 {
		c.logger.Warn(ctx, "dropped invalid positions", "dropped", dropped, "kept", len(valid))
	}
	return valid
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	if !c.HasToken() {
		return nil
	}
	r, _ := jsonRequest(EndpointLogout, http.MethodPost, "/auth/logout", nil)
	return c.do(ctx, r, nil)
}

// Ping reports whether the API host answers at all. Any HTTP response
// counts as reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return &APIError{Kind: ErrUnknown, Endpoint: EndpointPing, Message: "could not build request", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: ErrUnavailable, Endpoint: EndpointPing, Message: "unable to reach the server", Err: err}
	}
	resp.Body.Close()
	return nil
}

type formField struct {
	name  string
	value string
}

// multipartRequest builds a multipart/form-data body. Empty values are
// omitted; imagePath, when set, is attached as the "image" part.
func multipartRequest(endpoint, method, path string, fields []formField, imagePath string) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return request{}, fmt.Errorf("failed to encode form: %w", err)
		}
	}

	if imagePath != "" {
		if err := attachImage(w, imagePath); err != nil {
			return request{}, err
		}
	}

	if err := w.Close(); err != nil {
		return request{}, fmt.Errorf("failed to encode form: %w", err)
	}
	return request{
		endpoint:    endpoint,
		method:      method,
		path:        path,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, nil
}

func attachImage(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &models.ValidationError{Fields: map[string]string{models.FieldImage: "the selected photo cannot be read"}}
	}
	defer f.Close()

	ctype := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ctype == "" {
		ctype = "image/jpeg"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, models.FieldImage, filepath.Base(path)))
	h.Set(common.HeaderContentType, ctype)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return &models.ValidationError{Fields: map[string]string{models.FieldImage: "the selected photo cannot be read"}}
	}
	return nil
}
