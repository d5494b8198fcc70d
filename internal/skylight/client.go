package skylight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public Skylight API root
	DefaultBaseURL = "https://app.ourskylight.com/api"
	// DefaultTimeout bounds every request
	DefaultTimeout = 10 * time.Second

	_maxBodySize = 5 * 1024 * 1024
	_dateLayout  = "2006-01-02"
	_userAgent   = "skylight-calendar/1.0"
)

// Client issues the Skylight REST calls. It holds no per-account state:
// every operation takes the credential it should use.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a Skylight API client.
// Keep-alives are disabled so each call uses its own connection.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{DisableKeepAlives: true, Proxy: http.ProxyFromEnvironment},
		},
		logger: logger,
	}
}

// Login posts the account credentials to /sessions and returns the decoded
// body. Any failure yields an empty SessionResult.
func (c *Client) Login(ctx context.Context, email, password string) SessionResult {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	form.Set("resettingPassword", "false")
	form.Set("textMeTheApp", "false")
	form.Set("agreedToMarketing", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		c.logger.Error("Failed to build session request", zap.Error(err))
		return SessionResult{}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		c.logger.Error("Skylight POST /sessions failed", zap.Error(err))
		return SessionResult{}
	}
	defer resp.Body.Close()

	var body any
	if err := json.NewDecoder(io.LimitReader(resp.Body, _maxBodySize)).Decode(&body); err != nil {
		c.logger.Error("Skylight POST /sessions returned non-JSON body",
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return SessionResult{}
	}

	raw, ok := body.(map[string]any)
	if !ok {
		c.logger.Error("Skylight POST /sessions returned unexpected body", zap.Int("status", resp.StatusCode))
		return SessionResult{}
	}

	c.logger.Debug("Skylight session response", zap.Int("status", resp.StatusCode))
	return SessionResult{Raw: raw}
}

type framesResponse struct {
	Data []struct {
		ID         any `json:"id"`
		Attributes struct {
			Name *string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

// ListFrames returns the frames of the account. A 401 yields an empty list
// and no error so callers can treat it as "no frames".
func (c *Client) ListFrames(ctx context.Context, credential string) ([]models.Frame, error) {
	resp, err := c.get(ctx, credential, "/frames", nil)
	if err != nil {
		c.logger.Error("Get frames failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Error("Get frames: unauthorized")
		return []models.Frame{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Get frames: unexpected status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrConnection, resp.StatusCode)
	}

	var payload framesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, _maxBodySize)).Decode(&payload); err != nil {
		c.logger.Error("Get frames: failed to decode body", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to decode frames: %v", ErrConnection, err)
	}

	frames := make([]models.Frame, 0, len(payload.Data))
	for _, item := range payload.Data {
		id, _ := models.ResourceID(item.ID)
		if id == "" || item.Attributes.Name == nil || *item.Attributes.Name == "" {
			continue
		}
		frames = append(frames, models.Frame{ID: id, Name: *item.Attributes.Name})
	}

	c.logger.Debug("Frames fetched", zap.Int("count", len(frames)))
	return frames, nil
}

// CheckAuth requests GET /frames/{frameID} and returns the HTTP status,
// or 0 if the request did not complete
func (c *Client) CheckAuth(ctx context.Context, credential, frameID string) int {
	return c.statusOf(ctx, credential, "/frames/"+url.PathEscape(frameID))
}

// CheckAccount requests GET /frames and returns the HTTP status,
// or 0 if the request did not complete
func (c *Client) CheckAccount(ctx context.Context, credential string) int {
	return c.statusOf(ctx, credential, "/frames")
}

func (c *Client) statusOf(ctx context.Context, credential, path string) int {
	resp, err := c.get(ctx, credential, path, nil)
	if err != nil {
		c.logger.Error("Skylight authentication request failed", zap.String("path", path), zap.Error(err))
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, _maxBodySize))

	c.logger.Debug("Auth response", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return resp.StatusCode
}

// ListEvents fetches the raw calendar events of a frame between two
// calendar dates. An empty timezone is sent as UTC.
func (c *Client) ListEvents(ctx context.Context, credential, frameID string, rangeStart, rangeEnd time.Time, timezone string) (json.RawMessage, error) {
	if timezone == "" {
		timezone = "UTC"
	}

	query := url.Values{}
	query.Set("date_min", rangeStart.Format(_dateLayout))
	query.Set("date_max", rangeEnd.Format(_dateLayout))
	query.Set("timezone", timezone)

	resp, err := c.get(ctx, credential, "/frames/"+url.PathEscape(frameID)+"/calendar_events", query)
	if err != nil {
		c.logger.Error("Skylight events request failed", zap.String("frame_id", frameID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Warn("Unauthorized: invalid auth code", zap.String("frame_id", frameID))
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Warn("Frame not found", zap.String("frame_id", frameID))
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Error("Skylight events request returned unexpected status",
			zap.String("frame_id", frameID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrConnection, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, _maxBodySize))
	if err != nil {
		c.logger.Error("Failed to read events body", zap.String("frame_id", frameID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrConnection, err)
	}
	if !json.Valid(body) {
		c.logger.Error("Events body is not JSON", zap.String("frame_id", frameID))
		return nil, fmt.Errorf("%w: response is not JSON", ErrConnection)
	}

	c.logger.Debug("Events fetched",
		zap.String("frame_id", frameID),
		zap.Int("bytes", len(body)))
	return json.RawMessage(body), nil
}

func (c *Client) get(ctx context.Context, credential, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+credential)
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", _userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	return resp, nil
}

