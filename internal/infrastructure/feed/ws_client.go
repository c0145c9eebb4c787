package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// WSClient consumes premium observations from an upstream websocket feed.
// It reconnects with a fixed wait after any read or dial failure and stops
// when the context is cancelled.
type WSClient struct {
	url           string
	handler       func(*domain.PremiumData)
	logger        *zap.Logger
	dialer        *websocket.Dialer
	reconnectWait time.Duration
}

func NewWSClient(url string, handler func(*domain.PremiumData), logger *zap.Logger) *WSClient {
	return &WSClient{
		url:           url,
		handler:       handler,
		logger:        logger,
		dialer:        websocket.DefaultDialer,
		reconnectWait: 5 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (c *WSClient) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.readOnce(ctx); err != nil {
			c.logger.Warn("premium feed disconnected",
				zap.Error(err),
				zap.Duration("retry_in", c.reconnectWait))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectWait):
		}
	}
}

func (c *WSClient) readOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.logger.Info("premium feed connected", zap.String("url", c.url))

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var data domain.PremiumData
		if err := json.Unmarshal(message, &data); err != nil {
			c.logger.Warn("premium feed message unreadable", zap.Error(err))
			continue
		}
		data.ReceivedAt = time.Now()
		c.handler(&data)
	}
}
