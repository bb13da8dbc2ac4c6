package predict

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"google.golang.org/grpc"

	"healthmon-agent/internal/model"
	"healthmon-agent/internal/rpc"
)

type RemoteOptions struct {
	Addr        string
	Method      string
	Token       string
	Instance    string
	TLS         *tls.Config
	DialTimeout time.Duration
}

// ForecastRequest is the JSON body of the forecast call.
type ForecastRequest struct {
	Instance      string         `json:"instance"`
	WindowSeconds int64          `json:"window_seconds"`
	History       []model.Sample `json:"history"`
}

type ForecastResponse struct {
	Timestamp  time.Time          `json:"timestamp,omitempty"`
	Values     map[string]float64 `json:"values"`
	Confidence float64            `json:"confidence"`
}

// RemoteClient asks an external forecasting service over a unary gRPC call.
// The connection is dialed on first use and dropped after a failed call.
type RemoteClient struct {
	mu sync.Mutex

	logger *slog.Logger
	opts   RemoteOptions
	conn   *grpc.ClientConn
}

func NewRemoteClient(opts RemoteOptions, logger *slog.Logger) *RemoteClient {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = rpc.DefaultDialTimeout
	}
	return &RemoteClient{logger: logger, opts: opts}
}

func (c *RemoteClient) Forecast(ctx context.Context, history []model.Sample, window time.Duration) (model.Forecast, error) {
	if len(history) == 0 {
		return model.Forecast{}, ErrInsufficientHistory
	}
	conn, err := c.connection(ctx)
	if err != nil {
		return model.Forecast{}, err
	}

	req := ForecastRequest{
		Instance:      c.opts.Instance,
		WindowSeconds: int64(window / time.Second),
		History:       history,
	}
	var resp ForecastResponse
	if err := conn.Invoke(rpc.WithToken(ctx, c.opts.Token), c.opts.Method, &req, &resp); err != nil {
		c.drop(conn)
		return model.Forecast{}, fmt.Errorf("forecast rpc %s: %w", c.opts.Method, err)
	}
	if len(resp.Values) == 0 {
		return model.Forecast{}, errors.New("forecast response has no values")
	}
	at := resp.Timestamp
	if at.IsZero() {
		at = history[len(history)-1].Timestamp.Add(window)
	}
	return model.Forecast{
		Sample:     model.Sample{Timestamp: at, Values: resp.Values},
		Confidence: clampConfidence(resp.Confidence),
	}, nil
}

func (c *RemoteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *RemoteClient) connection(ctx context.Context) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := rpc.Dial(ctx, c.opts.Addr, c.opts.TLS, c.opts.DialTimeout)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.logger.Info("forecast service connected", "addr", c.opts.Addr)
	return conn, nil
}

func (c *RemoteClient) drop(conn *grpc.ClientConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

// clampConfidence maps v into [0,100]; NaN counts as no confidence.
func clampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
