// Package rest is the client for the room lifecycle backend.
package rest

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

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultMaxParticipants = 10

type Client struct {
	baseURL string
	http    *http.Client
	token   string
	timeout time.Duration
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds every call; a timed-out call surfaces as a transport error.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func roomPath(roomID domain.RoomID, suffix string) string {
	return "/meet/room/" + url.PathEscape(string(roomID)) + suffix
}

func (c *Client) CreateRoom(ctx context.Context, in domain.CreateRoom) (domain.CreatedRoom, error) {
	q := url.Values{}
	q.Set("host_id", string(in.HostID))
	q.Set("room_title", in.Title)
	q.Set("room_description", in.Description)
	if in.Password != "" {
		q.Set("password", in.Password)
	}
	max := in.MaxParticipants
	if max <= 0 {
		max = DefaultMaxParticipants
	}
	q.Set("max_participants", strconv.Itoa(max))

	var out domain.CreatedRoom
	err := c.do(ctx, http.MethodPost, "/meet/room/create", q, nil, &out)
	return out, err
}

func (c *Client) GetRoom(ctx context.Context, roomID domain.RoomID) (domain.RoomMeta, error) {
	var out domain.RoomMeta
	err := c.do(ctx, http.MethodGet, roomPath(roomID, ""), nil, nil, &out)
	return out, err
}

// JoinRoom passes credentials as query parameters; the password is omitted when empty.
func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, user *domain.LocalUser, password string) (domain.JoinResult, error) {
	q := url.Values{}
	q.Set("user_id", string(user.ID))
	q.Set("display_name", user.DisplayName)
	if password != "" {
		q.Set("password", password)
	}
	var out domain.JoinResult
	err := c.do(ctx, http.MethodPost, roomPath(roomID, "/join"), q, nil, &out)
	return out, err
}

func (c *Client) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	q := url.Values{}
	q.Set("user_id", string(userID))
	body := map[string]string{"user_id": string(userID)}
	return c.do(ctx, http.MethodPost, roomPath(roomID, "/leave"), q, body, nil)
}

func (c *Client) EndRoom(ctx context.Context, roomID domain.RoomID) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "/end"), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("module", "rest").Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := &core.RestRejectedError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
		log.Warn().Str("module", "rest").Str("method", method).Str("path", path).Int("status", rej.Status).Str("detail", rej.Detail).Msg("rejected")
		return fmt.Errorf("%s %s: %w", method, path, rej)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// readDetail pulls the human message out of {"detail": "..."} or {"message": "..."}.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return ""
	}
	if s, ok := body.Detail.(string); ok && s != "" {
		return s
	}
	return body.Message
}
