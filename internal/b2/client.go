package b2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	// apiPrefix is the version segment prepended to every API-host action.
	apiPrefix = "/b2api/v1/"

	// downloadPrefix is the file-serving segment on the download host.
	downloadPrefix = "/file/"

	userAgent = "b2go/0.1"
)

// endpointKind is a closed set of request targets. Each kind carries its
// own host, path, and token rule — host selection is explicit, never
// inferred from method/rawness combinations.
type endpointKind int

const (
	// endpointAPI targets the control-plane API host with the version
	// prefix and the session token.
	endpointAPI endpointKind = iota

	// endpointDownload targets the download host with the file-serving
	// prefix and the session token; body bytes bypass JSON.
	endpointDownload

	// endpointUpload targets the ticket's upload URL verbatim with the
	// ticket token; body bytes bypass JSON.
	endpointUpload
)

// endpoint selects which of the three resolved hosts a request reaches and
// which bearer token it carries.
type endpoint struct {
	kind        endpointKind
	uploadURL   string
	uploadToken string
}

func apiEndpoint() endpoint      { return endpoint{kind: endpointAPI} }
func downloadEndpoint() endpoint { return endpoint{kind: endpointDownload} }

func uploadEndpoint(ticket *UploadTicket) endpoint {
	return endpoint{kind: endpointUpload, uploadURL: ticket.UploadURL, uploadToken: ticket.Token}
}

// resolve returns the absolute request URL (before query parameters) and
// the Authorization token for the given action under this endpoint.
func (e endpoint) resolve(g grant, action string) (string, string) {
	switch e.kind {
	case endpointDownload:
		return g.downloadURL + downloadPrefix + action, g.token
	case endpointUpload:
		// The ticket URL already names host and path; action is unused.
		return e.uploadURL, e.uploadToken
	default:
		return g.apiURL + apiPrefix + action, g.token
	}
}

// Client routes requests to the correct B2 host with the correct token and
// exposes the storage operations. All operations are synchronous and
// blocking for one round trip (two for Upload); cancellation and timeouts
// are delegated to the context and the underlying http.Client.
type Client struct {
	session    *Session
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a B2 client on top of an authorized-on-demand session.
// httpClient and logger may be nil, in which case defaults are used.
// Panics if session is nil — there is no usable zero value.
func NewClient(session *Session, httpClient *http.Client, logger *slog.Logger) *Client {
	if session == nil {
		panic("b2: NewClient requires a non-nil Session")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		session:    session,
		httpClient: httpClient,
		logger:     logger,
	}
}

// request describes one routed call. Exactly one of jsonBody/rawBody may be
// set: jsonBody is JSON-encoded for API endpoints, rawBody passes through
// unmodified for the upload endpoint.
type request struct {
	method        string
	ep            endpoint
	action        string
	params        url.Values
	jsonBody      map[string]any
	rawBody       []byte
	headers       http.Header
	withAccountID bool
}

// do authorizes lazily, resolves the target host/path/token for req, and
// performs the HTTP round trip. The caller owns the response body; no
// status classification happens here.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	g, err := c.session.credentials(ctx, false)
	if err != nil {
		return nil, err
	}

	params := req.params
	body := req.jsonBody

	// Account-id injection: query parameters for GET, body for POST.
	if req.withAccountID {
		if req.method == http.MethodGet {
			if params == nil {
				params = url.Values{}
			}

			params.Set("accountId", g.accountID)
		} else {
			if body == nil {
				body = map[string]any{}
			}

			body["accountId"] = g.accountID
		}
	}

	target, token := req.ep.resolve(g, req.action)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var rdr io.Reader

	jsonEncoded := false

	switch {
	case body != nil:
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("b2: marshaling %s request: %w", req.action, marshalErr)
		}

		rdr = bytes.NewReader(encoded)
		jsonEncoded = true
	case req.rawBody != nil:
		rdr = bytes.NewReader(req.rawBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("b2: creating %s request: %w", req.action, err)
	}

	for key, values := range req.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpReq.Header.Set("Authorization", token)
	httpReq.Header.Set("User-Agent", userAgent)

	if jsonEncoded {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("request",
		slog.String("method", req.method),
		slog.String("action", req.action),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("b2: %s %s failed: %w", req.method, req.action, err)
	}

	return resp, nil
}

// failure reads and closes the response body and converts the response into
// a typed error. An observed 401 invalidates the session so the next call
// re-handshakes.
func (c *Client) failure(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		body = []byte("(failed to read response body)")
	}

	err := classify(resp.StatusCode, body)

	var authErr *AuthError
	if errors.As(err, &authErr) {
		c.session.Invalidate()
	}

	return err
}

// checkSuccess classifies the response: nil for 200/201/202, a typed error
// (with the body consumed and closed) otherwise.
func (c *Client) checkSuccess(resp *http.Response) error {
	if isSuccess(resp.StatusCode) {
		return nil
	}

	return c.failure(resp)
}

// apiGet performs a success-checked GET against the API host.
func (c *Client) apiGet(ctx context.Context, action string, params url.Values, withAccountID bool) (*http.Response, error) {
	resp, err := c.do(ctx, request{
		method:        http.MethodGet,
		ep:            apiEndpoint(),
		action:        action,
		params:        params,
		withAccountID: withAccountID,
	})
	if err != nil {
		return nil, err
	}

	if err := c.checkSuccess(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// apiPost performs a success-checked POST against the API host with a
// JSON-encoded body.
func (c *Client) apiPost(ctx context.Context, action string, body map[string]any, withAccountID bool) (*http.Response, error) {
	resp, err := c.do(ctx, request{
		method:        http.MethodPost,
		ep:            apiEndpoint(),
		action:        action,
		jsonBody:      body,
		withAccountID: withAccountID,
	})
	if err != nil {
		return nil, err
	}

	if err := c.checkSuccess(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// apiPostStatus performs a POST and reports only the response status. The
// delete operations map status to a boolean instead of treating non-success
// as an error; a 401 still surfaces as *AuthError.
func (c *Client) apiPostStatus(ctx context.Context, action string, body map[string]any, withAccountID bool) (int, error) {
	resp, err := c.do(ctx, request{
		method:        http.MethodPost,
		ep:            apiEndpoint(),
		action:        action,
		jsonBody:      body,
		withAccountID: withAccountID,
	})
	if err != nil {
		return 0, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, c.failure(resp)
	}

	defer resp.Body.Close()

	// Drain so the connection can be reused.
	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return resp.StatusCode, fmt.Errorf("b2: draining %s response body: %w", action, copyErr)
	}

	return resp.StatusCode, nil
}
