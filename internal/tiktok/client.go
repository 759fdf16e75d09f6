// Package tiktok implements recorder.LiveSource against the TikTok web and
// webcast APIs.
package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"

	"live-recorder/internal/platform/logger"
	"live-recorder/internal/recorder"
)

const (
	DefaultBaseURL    = "https://www.tiktok.com"
	DefaultWebcastURL = "https://webcast.tiktok.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// roomStatusLive is the webcast room status of an ongoing broadcast.
	roomStatusLive = 2
)

// qualities lists flv_pull_url keys from best to worst.
var qualities = []string{"FULL_HD1", "HD1", "SD1", "SD2"}

// Options configures a Client. Zero values select production defaults.
type Options struct {
	BaseURL    string
	WebcastURL string
	// Proxy is applied to API calls only; media is always pulled directly.
	Proxy   string
	Cookies map[string]string

	APITimeout  time.Duration
	IdleTimeout time.Duration
	Attempts    uint
	RetryDelay  time.Duration

	Log *slog.Logger
}

// Client talks to the platform. It is safe for concurrent use.
type Client struct {
	api        *http.Client
	stream     *http.Client
	baseURL    string
	webcastURL string
	cookies    string
	idle       time.Duration
	attempts   uint
	retryDelay time.Duration
	log        *slog.Logger
}

var _ recorder.LiveSource = (*Client)(nil)

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.WebcastURL == "" {
		opts.WebcastURL = DefaultWebcastURL
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = 15 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Second
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	direct := http.DefaultTransport.(*http.Transport).Clone()
	direct.Proxy = nil
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", opts.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		api: &http.Client{
			Transport: transport,
			Timeout:   opts.APITimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		stream:     &http.Client{Transport: direct},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		webcastURL: strings.TrimRight(opts.WebcastURL, "/"),
		cookies:    cookieHeader(opts.Cookies),
		idle:       opts.IdleTimeout,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
		log:        opts.Log.With(slog.String("component", "tiktok")),
	}, nil
}

func cookieHeader(cookies map[string]string) string {
	parts := make([]string, 0, len(cookies))
	for k, v := range cookies {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

type userRoomResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       struct {
		User struct {
			RoomID   string `json:"roomId"`
			UniqueID string `json:"uniqueId"`
		} `json:"user"`
	} `json:"data"`
}

// ResolveRoom returns the room id of user's current or most recent broadcast.
func (c *Client) ResolveRoom(ctx context.Context, user string) (string, error) {
	q := url.Values{"aid": {"1988"}, "sourceType": {"54"}, "uniqueId": {user}}
	var resp userRoomResponse
	if err := c.getJSON(ctx, c.baseURL+"/api-live/user/room/", q, &resp); err != nil {
		return "", err
	}
	if resp.Message == "user_not_found" {
		return "", fmt.Errorf("user @%s not found", user)
	}
	if resp.Data.User.RoomID == "" {
		return "", fmt.Errorf("@%s has no room: %w", user, recorder.ErrNotLive)
	}
	return resp.Data.User.RoomID, nil
}

type roomInfoResponse struct {
	StatusCode int `json:"status_code"`
	Data       struct {
		Status int `json:"status"`
		Owner  struct {
			DisplayID string `json:"display_id"`
		} `json:"owner"`
		StreamURL struct {
			FlvPullURL map[string]string `json:"flv_pull_url"`
		} `json:"stream_url"`
	} `json:"data"`
}

func (c *Client) roomInfo(ctx context.Context, roomID string) (*roomInfoResponse, error) {
	q := url.Values{"aid": {"1988"}, "room_id": {roomID}}
	var resp roomInfoResponse
	if err := c.getJSON(ctx, c.webcastURL+"/webcast/room/info/", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveUser returns the username owning roomID.
func (c *Client) ResolveUser(ctx context.Context, roomID string) (string, error) {
	info, err := c.roomInfo(ctx, roomID)
	if err != nil {
		return "", err
	}
	if info.Data.Owner.DisplayID == "" {
		return "", fmt.Errorf("room %s has no owner", roomID)
	}
	return info.Data.Owner.DisplayID, nil
}

type checkAliveResponse struct {
	Data []struct {
		Alive  bool   `json:"alive"`
		RoomID string `json:"room_id_str"`
	} `json:"data"`
}

// IsLive reports whether roomID is broadcasting.
func (c *Client) IsLive(ctx context.Context, roomID string) (bool, error) {
	if roomID == "" {
		return false, nil
	}
	q := url.Values{"aid": {"1988"}, "region": {"CH"}, "room_ids": {roomID}, "user_is_login": {"true"}}
	var resp checkAliveResponse
	if err := c.getJSON(ctx, c.webcastURL+"/webcast/room/check_alive/", q, &resp); err != nil {
		return false, err
	}
	if len(resp.Data) == 0 {
		return false, nil
	}
	return resp.Data[0].Alive, nil
}

// LiveURL returns the best available FLV pull URL for roomID.
func (c *Client) LiveURL(ctx context.Context, roomID string) (string, error) {
	info, err := c.roomInfo(ctx, roomID)
	if err != nil {
		return "", err
	}
	if info.Data.Status != 0 && info.Data.Status != roomStatusLive {
		return "", fmt.Errorf("room %s has status %d: %w", roomID, info.Data.Status, recorder.ErrLiveURLUnavailable)
	}
	pull := info.Data.StreamURL.FlvPullURL
	for _, q := range qualities {
		if u := pull[q]; u != "" {
			c.log.Debug("selected stream quality", slog.String("room_id", roomID), slog.String("quality", q))
			return u, nil
		}
	}
	return "", fmt.Errorf("room %s: %w", roomID, recorder.ErrLiveURLUnavailable)
}

// CountryBlocked reports whether /live redirects away, which is how the
// platform answers requests from blocked regions.
func (c *Client) CountryBlocked(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/live", nil)
	if err != nil {
		return false, err
	}
	c.decorate(req)
	resp, err := c.api.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", recorder.ErrConnection, err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusFound, nil
}

// Chunks opens the FLV pull stream. The request ends with ctx.
func (c *Client) Chunks(ctx context.Context, streamURL string) (recorder.ChunkStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	c.decorate(req)
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", recorder.ErrConnection, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: stream answered %s", recorder.ErrConnection, resp.Status)
	}
	return newChunkStream(resp.Body, c.idle), nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.baseURL+"/")
	if c.cookies != "" {
		req.Header.Set("Cookie", c.cookies)
	}
}

// getJSON fetches and decodes u, retrying transport and decoding failures.
// Exhausted retries are reported as recorder.ErrConnection.
func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	u := endpoint + "?" + q.Encode()
	err := retry.New(
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		c.decorate(req)
		resp, err := c.api.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: unexpected status %s", req.URL.Path, resp.Status)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s: %w", req.URL.Path, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", recorder.ErrConnection, err)
	}
	return nil
}
