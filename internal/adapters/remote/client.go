package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// HTTPClient talks to the catalog REST API
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates a catalog API client. The token, when set, is sent on
// requests that carry no identity of their own.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     observability.Component("remote"),
	}
}

// HTTPError is a non-2xx response from the catalog API
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog api returned status %d: %s", e.StatusCode, e.Message)
}

// envelope is the paged response shape of list endpoints
type envelope[T any] struct {
	Content    []T                 `json:"content"`
	Pagination entities.Pagination `json:"pagination"`
}

// pageQuery encodes the pagination and sort fields of a filter
func pageQuery[P comparable](filter entities.FilterState[P]) url.Values {
	query := url.Values{}
	query.Set("page", strconv.Itoa(filter.Page))
	query.Set("size", strconv.Itoa(filter.PageSize))
	query.Set("sortBy", filter.SortKey)
	query.Set("sortDir", string(filter.SortDirection))
	return query
}

func (c *HTTPClient) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *HTTPClient) doJSON(ctx context.Context, identity *entities.Identity, method, endpoint string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("failed to encode request", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return apperrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenFor(identity); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("url", endpoint).Msg("request failed")
		return apperrors.NewRemoteUnavailableError("catalog service is unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewRemoteUnavailableError("failed to read catalog response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewRemoteUnavailableError("catalog response was malformed", err)
	}
	return nil
}

func (c *HTTPClient) tokenFor(identity *entities.Identity) string {
	if identity != nil && identity.Token != "" {
		return identity.Token
	}
	return c.token
}

// classify maps an API status to the catalog error taxonomy. The server's message,
// when it sends one, becomes the user-facing text.
func classify(status int, payload []byte) error {
	var errPayload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(payload, &errPayload)
	message := errPayload.Message
	if message == "" {
		message = errPayload.Error
	}
	httpErr := &HTTPError{StatusCode: status, Message: message}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if message == "" {
			message = "the catalog rejected the request"
		}
		return &apperrors.AppError{Type: apperrors.ErrorTypeInvalidQuery, Message: message, Err: httpErr}
	case status == http.StatusNotFound:
		if message == "" {
			message = "the requested record does not exist"
		}
		return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: message, Err: httpErr}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "you are not allowed to do that"
		}
		return &apperrors.AppError{Type: apperrors.ErrorTypeUnauthorized, Message: message, Err: httpErr}
	default:
		if message == "" {
			message = "catalog service is unavailable"
		}
		return apperrors.NewRemoteUnavailableError(message, httpErr)
	}
}
