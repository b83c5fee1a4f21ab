// Package hass is a minimal Home Assistant websocket API client: it
// authenticates, issues commands and dispatches subscribed events.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrAuthInvalid       = errors.New("home assistant rejected the access token")
	ErrUnexpectedMessage = errors.New("unexpected home assistant message")
	ErrClosed            = errors.New("home assistant connection closed")
)

// Client is safe for concurrent use. Results and events are read by a single
// goroutine; event handlers run on it and must not block.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextId  int64
	pending map[int64]chan incoming
	subs    map[int64]func(Event)

	HAVersion string

	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// WebsocketURL maps the Home Assistant base url to its websocket endpoint.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse hass url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported hass url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/websocket"
	return u.String(), nil
}

// Dial connects and authenticates. The context bounds the handshake only.
func Dial(ctx context.Context, baseURL, token string, logger *zap.Logger) (*Client, error) {
	wsURL, err := WebsocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s (%s): %w", wsURL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: map[int64]chan incoming{},
		subs:    map[int64]func(Event){},
		done:    make(chan struct{}),
	}
	if err := c.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) authenticate(ctx context.Context, token string) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	var msg incoming
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != MSG_AUTH_REQUIRED {
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type)
	}
	if err := c.write(authMessage{Type: MSG_AUTH, AccessToken: token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	msg = incoming{}
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case MSG_AUTH_OK:
		c.HAVersion = msg.HAVersion
		c.logger.Debug("hass: authenticated", zap.String("version", msg.HAVersion))
		return nil
	case MSG_AUTH_INVALID:
		return fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type)
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	for {
		var msg incoming
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("hass: websocket error", zap.Error(err))
			}
			c.shutdown(err)
			return
		}
		switch msg.Type {
		case MSG_RESULT, MSG_PONG:
			c.mu.Lock()
			ch, ok := c.pending[msg.Id]
			delete(c.pending, msg.Id)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case MSG_EVENT:
			c.mu.Lock()
			handler := c.subs[msg.Id]
			c.mu.Unlock()
			if handler != nil && msg.Event != nil {
				handler(*msg.Event)
			}
		default:
			c.logger.Debug("hass: ignored message", zap.String("type", msg.Type))
		}
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		c.conn.Close()
	})
}

// Call sends a command and decodes its result into out, which may be nil.
func (c *Client) Call(ctx context.Context, cmdType string, extra map[string]any, out any) error {
	return c.command(ctx, cmdType, extra, out, nil)
}

// Subscribe registers handler for eventType and waits for the confirmation.
func (c *Client) Subscribe(ctx context.Context, eventType string, handler func(Event)) error {
	return c.command(ctx, CMD_SUBSCRIBE_EVENTS, map[string]any{"event_type": eventType}, nil, handler)
}

func (c *Client) command(ctx context.Context, cmdType string, extra map[string]any, out any, handler func(Event)) error {
	ch := make(chan incoming, 1)

	c.mu.Lock()
	c.nextId++
	id := c.nextId
	c.pending[id] = ch
	if handler != nil {
		c.subs[id] = handler
	}
	c.mu.Unlock()

	payload := map[string]any{}
	for k, v := range extra {
		payload[k] = v
	}
	payload["id"] = id
	payload["type"] = cmdType

	if err := c.write(payload); err != nil {
		c.forget(id)
		return fmt.Errorf("send %s: %w", cmdType, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return fmt.Errorf("%s: %w", cmdType, ctx.Err())
	case <-c.done:
		return fmt.Errorf("%s: %w", cmdType, ErrClosed)
	case msg := <-ch:
		if msg.Type == MSG_PONG {
			return nil
		}
		if !msg.Success {
			c.forgetSubscription(id)
			if msg.Error != nil {
				return fmt.Errorf("%s: %w", cmdType, msg.Error)
			}
			return fmt.Errorf("%s: %w", cmdType, &CommandError{Code: "unknown_error", Message: "command failed"})
		}
		if out != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", cmdType, err)
			}
		}
		return nil
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	delete(c.subs, id)
}

func (c *Client) forgetSubscription(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, CMD_PING, nil, nil)
}

// Done is closed when the connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended. It is nil while Done is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.shutdown(ErrClosed)
	return err
}
