package wsfeed

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/livepitch/pkg/logger"
)

const (
	defaultReconnectDelay = 2 * time.Second
	defaultKeepAlive      = 20 * time.Second
	writeTimeout          = 5 * time.Second
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithReconnectDelay sets the minimum spacing between dial attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithKeepAlive sets the ping interval. The connection is considered dead
// after two intervals without any frame from the server.
func WithKeepAlive(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.keepAlive = d
		}
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCheckOrigin sets the upgrader origin check.
func WithCheckOrigin(fn func(origin string) bool) ServerOption {
	return func(s *Server) {
		s.checkOrigin = fn
	}
}
