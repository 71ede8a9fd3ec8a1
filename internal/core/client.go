package core

import "github.com/polyglotchat/polyglot-server/internal/auth"

// Client is a chat participant as seen by the core layer. One Client per
// websocket connection; Identity arrives validated from the transport.
type Client struct {
	ID       string
	Identity *auth.Identity
	Commands chan *Command
	Events   chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, identity *auth.Identity) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 32),
	}
}

// Username returns the authenticated username, or empty when anonymous.
func (c *Client) Username() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.Username
}

// UserID returns the authenticated user id, or empty when anonymous.
func (c *Client) UserID() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.UserID
}

func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
