// Package kvclient manages the NATS connection and exposes JetStream
// key-value buckets as the storage substrate.
package kvclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fulqrun/crmstore/errors"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Connection errors.
var (
	ErrNotConnected      = stderrors.New("not connected to NATS")
	ErrConnectionTimeout = stderrors.New("connection timeout")
)

// Client manages a NATS connection and its JetStream context.
type Client struct {
	url    string
	status atomic.Value // ConnectionStatus
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	username string
	password string
	token    string

	clientName string

	failures atomic.Int32

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a NATS client with optional configuration.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "kvclient", "NewClient", "url required")
	}
	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		clientName:    "crmstore",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "kvclient", "NewClient", "apply option")
		}
	}
	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the count of recorded connection failures.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	return opts
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.failures.Add(1)
	c.setStatus(StatusReconnecting)
	if err != nil {
		c.logger.Warn("NATS disconnected", "error", err)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	c.logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
}

// Connect establishes the NATS connection and initializes JetStream.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
		if err != nil {
			connectDone <- err
			return
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			connectDone <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.failures.Add(1)
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(err, "kvclient", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.failures.Add(1)
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "kvclient", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errors.WrapTransient(ErrNotConnected, "kvclient", "JetStream", "get context")
	}
	return c.js, nil
}

// EnsureBucket gets the named KV bucket, creating it when absent. The
// get-then-create order tolerates concurrent starters racing on creation.
func (c *Client) EnsureBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (*Bucket, error) {
	if c.Status() != StatusConnected {
		return nil, errors.WrapTransient(ErrNotConnected, "kvclient", "EnsureBucket", "check connection")
	}
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		c.logger.Debug("using existing KV bucket", "bucket", cfg.Bucket)
		return newBucket(kv, c.logger), nil
	}

	kv, err = js.CreateKeyValue(ctx, cfg)
	if err != nil {
		if isAlreadyExistsError(err) {
			kv, err = js.KeyValue(ctx, cfg.Bucket)
			if err != nil {
				return nil, errors.WrapTransient(err, "kvclient", "EnsureBucket", "access existing bucket")
			}
			return newBucket(kv, c.logger), nil
		}
		c.failures.Add(1)
		return nil, errors.WrapTransient(err, "kvclient", "EnsureBucket", "create bucket")
	}

	c.logger.Info("created KV bucket", "bucket", cfg.Bucket)
	return newBucket(kv, c.logger), nil
}

// DeleteBucket removes a KV bucket and all its data.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if err := js.DeleteKeyValue(ctx, name); err != nil {
		return errors.WrapTransient(err, "kvclient", "DeleteBucket", "delete bucket")
	}
	return nil
}

// RTT measures the round-trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	c.setStatus(StatusDisconnected)
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return errors.WrapTransient(err, "kvclient", "Close", "drain connection")
	}
	return nil
}

func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrBucketExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already in use")
}
