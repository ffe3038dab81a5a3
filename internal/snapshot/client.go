// Package snapshot pulls bulk chat state over HTTP.
//
// The server exposes one endpoint per family:
//
//	GET /messages        {"History":{"messages":{<key>:[msg...]}}}
//	GET /contacts        {"success":true,"data":{"contacts":[...]}}
//	GET /groups          {"success":true,"data":{"groups":[...]}}
//	GET /groups?id=<id>  {"success":true,"data":{"group":{...},"messages":[...]}}
//
// A family whose request fails is left nil in the Snapshot ("not fetched"),
// so the merge leaves local state for it alone.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/roach88/chatsync/internal/model"
)

// DefaultTimeout bounds each request when ctx has no deadline.
const DefaultTimeout = 10 * time.Second

// Client fetches snapshots with fasthttp.
type Client struct {
	base    string
	http    *fasthttp.Client
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDial overrides how connections are made (in-memory listeners in tests).
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &fasthttp.Client{
			Name:                "chatsync",
			MaxConnsPerHost:     4,
			ReadTimeout:         DefaultTimeout,
			WriteTimeout:        DefaultTimeout,
			MaxIdleConnDuration: time.Minute,
		},
		timeout: DefaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

type historyResponse struct {
	History struct {
		Messages map[string][]model.Message `json:"messages"`
	} `json:"History"`
}

// FetchSnapshot pulls every family. It fails only when nothing could be
// fetched; partial results carry nil for the failed families.
func (c *Client) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	var (
		snap model.Snapshot
		errs []error
	)

	if msgs, err := c.FetchMessages(ctx); err != nil {
		errs = append(errs, err)
	} else {
		snap.Messages = msgs
	}

	if contacts, err := c.FetchContacts(ctx); err != nil {
		errs = append(errs, err)
	} else {
		snap.Contacts = contacts
	}

	groups, err := c.FetchGroups(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		snap.Groups = groups
		snap.GroupMessages = make(map[string][]model.Message, len(groups))
		for _, g := range groups {
			msgs, err := c.FetchGroupMessages(ctx, g.ID)
			if err != nil {
				c.log.Warn("group history fetch failed", "group_id", g.ID, "error", err)
				continue
			}
			snap.GroupMessages[g.ID] = msgs
		}
	}

	if len(errs) == 3 {
		return model.Snapshot{}, errors.Join(errs...)
	}
	for _, err := range errs {
		c.log.Warn("partial snapshot", "error", err)
	}
	return snap, nil
}

// FetchMessages returns the direct message history.
func (c *Client) FetchMessages(ctx context.Context) (map[string][]model.Message, error) {
	body, err := c.get(ctx, "/messages")
	if err != nil {
		return nil, err
	}
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NewParseError("History", "decode /messages", err)
	}
	if resp.History.Messages == nil {
		return map[string][]model.Message{}, nil
	}
	return resp.History.Messages, nil
}

// FetchContacts returns the contact list.
func (c *Client) FetchContacts(ctx context.Context) ([]model.Contact, error) {
	var data struct {
		Contacts []model.Contact `json:"contacts"`
	}
	if err := c.getEnvelope(ctx, "/contacts", &data); err != nil {
		return nil, err
	}
	if data.Contacts == nil {
		data.Contacts = []model.Contact{}
	}
	return data.Contacts, nil
}

// FetchGroups returns the group list.
func (c *Client) FetchGroups(ctx context.Context) ([]model.Group, error) {
	var data struct {
		Groups []model.Group `json:"groups"`
	}
	if err := c.getEnvelope(ctx, "/groups", &data); err != nil {
		return nil, err
	}
	if data.Groups == nil {
		data.Groups = []model.Group{}
	}
	return data.Groups, nil
}

// FetchGroupMessages returns one group's history.
func (c *Client) FetchGroupMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	var data struct {
		Messages []model.Message `json:"messages"`
	}
	if err := c.getEnvelope(ctx, "/groups?id="+url.QueryEscape(groupID), &data); err != nil {
		return nil, err
	}
	if data.Messages == nil {
		data.Messages = []model.Message{}
	}
	return data.Messages, nil
}

func (c *Client) getEnvelope(ctx context.Context, path string, data any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.NewParseError(path, "decode envelope", err)
	}
	if !env.Success {
		msg := "request failed"
		if env.Error != nil {
			msg = *env.Error
		}
		return model.NewTransportError("GET "+path, errors.New(msg))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return model.NewParseError(path, "decode data", err)
	}
	return nil
}

// get performs one GET and returns a copy of the body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, model.NewTransportError("GET "+path, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, model.NewTransportError("GET "+path, fmt.Errorf("status %d", code))
	}

	// resp is released on return.
	return append([]byte(nil), resp.Body()...), nil
}
