package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"

	"healthmon-agent/internal/model"
	"healthmon-agent/internal/rpc"
)

// GRPCClient streams alert frames over a client-streaming RPC. The stream is
// opened lazily and reopened once when a send fails.
type GRPCClient struct {
	mu sync.Mutex

	logger      *slog.Logger
	addr        string
	tlsConfig   *tls.Config
	token       string
	method      string
	conn        *grpc.ClientConn
	alerts      grpc.ClientStream
	cancel      context.CancelFunc
	dialTimeout time.Duration
	closed      bool
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, method string, logger *slog.Logger) *GRPCClient {
	return &GRPCClient{
		logger:      logger,
		addr:        addr,
		tlsConfig:   tlsCfg,
		token:       token,
		method:      method,
		dialTimeout: rpc.DefaultDialTimeout,
	}
}

func (c *GRPCClient) Name() string {
	return "grpc"
}

func (c *GRPCClient) Notify(ctx context.Context, ev model.AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.ensureConnLocked(ctx); err != nil {
		return err
	}
	if c.alerts == nil {
		if err := c.openStreamLocked(); err != nil {
			return err
		}
	}
	frame := NewAlertFrame(ev)
	if err := c.alerts.SendMsg(frame); err != nil {
		c.logger.Warn("grpc alert send failed, reopening stream", "error", err)
		c.resetStreamLocked()
		if err2 := c.openStreamLocked(); err2 != nil {
			return fmt.Errorf("reopen alert stream: %w", err2)
		}
		if err2 := c.alerts.SendMsg(frame); err2 != nil {
			c.resetStreamLocked()
			return fmt.Errorf("send alert frame: %w", err2)
		}
	}
	return nil
}

func (c *GRPCClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.alerts != nil {
		_ = c.alerts.CloseSend()
	}
	c.resetStreamLocked()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *GRPCClient) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := rpc.Dial(ctx, c.addr, c.tlsConfig, c.dialTimeout)
	if err != nil {
		return err
	}
	c.conn = conn
	c.logger.Info("grpc alert stream connected", "addr", c.addr)
	return nil
}

// openStreamLocked ties the stream to its own context: the per-call context
// passed to Notify ends when the call returns.
func (c *GRPCClient) openStreamLocked() error {
	if c.conn == nil {
		return fmt.Errorf("grpc conn is nil")
	}
	streamCtx, cancel := context.WithCancel(rpc.WithToken(context.Background(), c.token))
	s, err := c.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, c.method)
	if err != nil {
		cancel()
		return fmt.Errorf("open alert stream: %w", err)
	}
	c.alerts = s
	c.cancel = cancel
	return nil
}

func (c *GRPCClient) resetStreamLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.alerts = nil
}
