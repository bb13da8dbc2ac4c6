package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"healthmon-agent/internal/model"
)

const wsPingTimeout = 3 * time.Second

// wsSession is one dialed connection plus the context of its keepalive.
type wsSession struct {
	conn *websocket.Conn
	stop context.CancelFunc
}

func (s *wsSession) close(code websocket.StatusCode, reason string) error {
	s.stop()
	return s.conn.Close(code, reason)
}

// WebSocketClient pushes alert and health envelopes as text messages. A
// failed write redials once; a failed keepalive ping drops the session so
// the next send redials.
type WebSocketClient struct {
	logger    *slog.Logger
	endpoint  string
	token     string
	tlsConfig *tls.Config
	writeWait time.Duration
	keepalive time.Duration

	mu     sync.Mutex
	sess   *wsSession
	closed bool
}

func NewWebSocketClient(url, token string, tlsCfg *tls.Config, writeTimeout, pingInterval time.Duration, logger *slog.Logger) *WebSocketClient {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 10 * time.Second
	}
	return &WebSocketClient{
		logger:    logger,
		endpoint:  url,
		token:     token,
		tlsConfig: tlsCfg,
		writeWait: writeTimeout,
		keepalive: pingInterval,
	}
}

func (c *WebSocketClient) Name() string {
	return "websocket"
}

func (c *WebSocketClient) Notify(ctx context.Context, ev model.AlertEvent) error {
	return c.send(ctx, AlertEnvelope(ev))
}

func (c *WebSocketClient) ReportState(ctx context.Context, change model.StateChange) error {
	return c.send(ctx, StateEnvelope(change))
}

func (c *WebSocketClient) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.sess == nil {
		return nil
	}
	err := c.sess.close(websocket.StatusNormalClosure, "shutdown")
	c.sess = nil
	return err
}

func (c *WebSocketClient) send(ctx context.Context, envelope model.Envelope) error {
	payload, err := EncodeEnvelope(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	var lastErr error
	for attempt := range 2 {
		sess, err := c.sessionLocked(ctx)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, c.writeWait)
		lastErr = sess.conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if lastErr == nil {
			return nil
		}
		c.logger.Warn("websocket write failed", "error", lastErr, "attempt", attempt+1)
		c.dropLocked(sess)
	}
	return fmt.Errorf("write %s envelope: %w", envelope.Type, lastErr)
}

func (c *WebSocketClient) sessionLocked(ctx context.Context) (*wsSession, error) {
	if c.sess != nil {
		return c.sess, nil
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	opts := &websocket.DialOptions{HTTPHeader: header}
	if c.tlsConfig != nil {
		opts.HTTPClient = &http.Client{Transport: &http.Transport{TLSClientConfig: c.tlsConfig}}
	}
	conn, _, err := websocket.Dial(ctx, c.endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.endpoint, err)
	}

	// the receiver never sends data frames; CloseRead keeps control frames
	// flowing so Ping can complete
	keepCtx, stop := context.WithCancel(context.Background())
	conn.CloseRead(keepCtx)
	sess := &wsSession{conn: conn, stop: stop}
	c.sess = sess
	go c.keepAlive(keepCtx, sess)
	c.logger.Info("websocket alert stream connected", "url", c.endpoint)
	return sess, nil
}

// dropLocked discards sess if it is still the current session.
func (c *WebSocketClient) dropLocked(sess *wsSession) {
	if c.sess != sess {
		return
	}
	_ = sess.close(websocket.StatusGoingAway, "reconnect")
	c.sess = nil
}

func (c *WebSocketClient) keepAlive(ctx context.Context, sess *wsSession) {
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
		err := sess.conn.Ping(pingCtx)
		cancel()
		if err == nil || ctx.Err() != nil {
			continue
		}
		c.logger.Debug("websocket ping failed, dropping session", "error", err)
		c.mu.Lock()
		c.dropLocked(sess)
		c.mu.Unlock()
		return
	}
}
