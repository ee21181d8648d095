package tgstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	applogger "SigPull/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements MessageStream backed by a Telegram stream-gateway
// WebSocket (a sidecar that holds the MTProto session and relays channel
// messages as JSON frames).
type Client struct {
	token          string
	gatewayURL     string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a new Telegram gateway stream.
func New(token, gatewayURL string, channels []string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) drepo.MessageStream {
	return &Client{
		token:          token,
		gatewayURL:     gatewayURL,
		channels:       channels,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.gatewayURL, c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("tgstream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	if c.log != nil {
		c.log.Info("tgstream connected", applogger.String("gateway", c.gatewayURL))
	}
	return nil
}

// Subscribe subscribes to the configured channels.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("tgstream not connected")
	}
	for _, ch := range c.channels {
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		if c.log != nil {
			c.log.Debug("tgstream subscribed", applogger.String("channel", ch))
		}
	}
	return nil
}

type tgFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Date    int64  `json:"date"` // unix seconds
}

// Read streams RawMessage events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	msgs := make(chan *models.RawMessage, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(msgs)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("tgstream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("tgstream read: %w", err)
					return
				}
				var f tgFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-message frames
					continue
				}
				if f.Type != "message" || f.Text == "" {
					continue
				}
				m := &models.RawMessage{
					Platform:  models.PlatformTelegram,
					Channel:   f.Channel,
					MessageID: strconv.FormatInt(f.ID, 10),
					Text:      f.Text,
					Timestamp: f.Date,
				}
				select {
				case msgs <- m:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return msgs, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
