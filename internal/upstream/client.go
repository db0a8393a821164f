package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/homematrix/panel-core/internal/infrastructure/logging"
	"github.com/homematrix/panel-core/internal/session"
)

// Client is the typed HTTP client for the HomeMatrix backend.
//
// It holds two underlying http.Clients sharing one cookie jar. The bare
// client carries no bearer token and is used for the credential endpoints
// (login, refresh, logout) where the refresh cookie does the work; the
// authorized client routes every request through the session refresh gate,
// which attaches the current access token and absorbs one 401 per request.
//
// The refresh credential exists only inside the shared cookie jar. No
// method reads, stores, or forwards it.
type Client struct {
	baseURL    string
	bare       *http.Client
	authorized *http.Client
	log        *logging.Logger
}

// New creates a backend client over the given refresh gate.
// The client registers itself as the gate's refresher.
func New(baseURL string, gate *session.Gate, log *logging.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bare: &http.Client{
			Jar: jar,
		},
		authorized: &http.Client{
			Jar:       jar,
			Transport: gate,
		},
		log: log.With("component", "upstream"),
	}

	gate.SetRefresher(c)
	return c, nil
}

// apiError is the backend's error envelope.
type apiError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e apiError) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// doJSON issues a request and decodes the JSON response into out (which may
// be nil). Non-2xx statuses are mapped onto the session error taxonomy.
func (c *Client) doJSON(ctx context.Context, client *http.Client, method, path string, body any, out any, header http.Header) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", session.ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// StatusError carries an HTTP status that has no dedicated sentinel in the
// session error taxonomy (e.g. 400 validation failures).
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Detail)
}

// statusError maps an HTTP error response onto the session error taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	var envelope apiError
	//nolint:errcheck // body may be empty or non-JSON; the status drives the mapping
	json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&envelope)

	detail := envelope.text()
	if detail == "" {
		detail = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", session.ErrSessionExpired, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", session.ErrForbidden, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", session.ErrNotFound, detail)
	default:
		return &StatusError{Code: resp.StatusCode, Detail: detail}
	}
}

// bearerHeader builds an explicit Authorization header. Used only for the
// temp-token challenge call, which must bypass the refresh gate.
func bearerHeader(token string) http.Header {
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+token)
	return h
}
